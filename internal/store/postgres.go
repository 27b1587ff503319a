package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/amishk599/leadsync/internal/model"
)

// PostgresStore persists eligible postings in PostgreSQL.
type PostgresStore struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

var _ model.LeadStore = (*PostgresStore)(nil)

// NewPostgresStore connects to dsn and ensures the postings table exists.
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("opening postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging postgres: %w", err)
	}

	_, err = pool.Exec(ctx, `
CREATE TABLE IF NOT EXISTS postings (
  id               TEXT PRIMARY KEY,
  company_name     TEXT NOT NULL,
  job_title        TEXT NOT NULL,
  link             TEXT NOT NULL UNIQUE,
  location         TEXT NOT NULL DEFAULT '',
  salary_range     TEXT NOT NULL DEFAULT '',
  description      TEXT NOT NULL DEFAULT '',
  category         TEXT NOT NULL,
  justification    TEXT NOT NULL DEFAULT '',
  is_applied       BOOLEAN NOT NULL DEFAULT FALSE,
  referral_secured BOOLEAN NOT NULL DEFAULT FALSE,
  referrer_name    TEXT NOT NULL DEFAULT '',
  referrer_contact TEXT NOT NULL DEFAULT '',
  created_at       TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_postings_unapplied ON postings(is_applied) WHERE NOT is_applied;
CREATE INDEX IF NOT EXISTS idx_postings_created_at ON postings(created_at DESC);
`)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("creating postings table: %w", err)
	}
	return &PostgresStore{pool: pool, now: time.Now}, nil
}

// Exists reports whether a posting with this link is stored.
func (s *PostgresStore) Exists(ctx context.Context, link string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM postings WHERE link = $1)`, link).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("checking existence of %s: %w", link, err)
	}
	return exists, nil
}

// Insert stores p. A link conflict yields model.ErrDuplicate.
func (s *PostgresStore) Insert(ctx context.Context, p model.StoredPosting) error {
	tag, err := s.pool.Exec(ctx, `
INSERT INTO postings (id, company_name, job_title, link, location, salary_range, description,
                      category, justification, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
ON CONFLICT (link) DO NOTHING`,
		newID(), p.CompanyName, p.JobTitle, p.Link, p.Location, p.SalaryRange, p.Description,
		string(p.Category), p.Justification, s.now().UTC())
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return fmt.Errorf("inserting posting %s: %w", p.Link, model.ErrDuplicate)
		}
		return fmt.Errorf("inserting posting %s: %w", p.Link, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("inserting posting %s: %w", p.Link, model.ErrDuplicate)
	}
	return nil
}

// CountUnapplied returns the number of postings not yet marked applied.
func (s *PostgresStore) CountUnapplied(ctx context.Context) (int, error) {
	var count int
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM postings WHERE NOT is_applied`).Scan(&count); err != nil {
		return 0, fmt.Errorf("counting unapplied postings: %w", err)
	}
	return count, nil
}

// List returns postings newest first, narrowed by f.
func (s *PostgresStore) List(ctx context.Context, f model.ListFilter) ([]model.StoredPosting, error) {
	query := `
SELECT id, company_name, job_title, link, location, salary_range, description,
       category, justification, is_applied, referral_secured, referrer_name, referrer_contact, created_at
FROM postings
WHERE ($1 = '' OR LOWER(company_name) LIKE $2 OR LOWER(job_title) LIKE $2)
  AND (NOT $3 OR NOT is_applied)
ORDER BY created_at DESC, id DESC
LIMIT $4 OFFSET $5`

	rows, err := s.pool.Query(ctx, query, f.Search, likePattern(f.Search), f.UnappliedOnly, listLimit(f), listOffset(f))
	if err != nil {
		return nil, fmt.Errorf("listing postings: %w", err)
	}
	defer rows.Close()

	var out []model.StoredPosting
	for rows.Next() {
		var (
			p        model.StoredPosting
			category string
		)
		if err := rows.Scan(&p.ID, &p.CompanyName, &p.JobTitle, &p.Link, &p.Location, &p.SalaryRange,
			&p.Description, &category, &p.Justification, &p.Applied, &p.ReferralSecured,
			&p.ReferrerName, &p.ReferrerContact, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning posting: %w", err)
		}
		p.Category = model.Category(category)
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing postings: %w", err)
	}
	return out, nil
}

// SetApplied marks the posting with id as applied or not.
func (s *PostgresStore) SetApplied(ctx context.Context, id string, applied bool) error {
	tag, err := s.pool.Exec(ctx, `UPDATE postings SET is_applied = $1 WHERE id = $2`, applied, id)
	if err != nil {
		return fmt.Errorf("updating applied for %s: %w", id, err)
	}
	return checkTag(tag, id)
}

// SetReferral records referral details for the posting with id.
func (s *PostgresStore) SetReferral(ctx context.Context, id string, ref model.Referral) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE postings SET referral_secured = $1, referrer_name = $2, referrer_contact = $3 WHERE id = $4`,
		ref.Secured, ref.Name, ref.Contact, id)
	if err != nil {
		return fmt.Errorf("updating referral for %s: %w", id, err)
	}
	return checkTag(tag, id)
}

// Close releases the pool.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func checkTag(tag pgconn.CommandTag, id string) error {
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("updating %s: %w", id, model.ErrNotFound)
	}
	return nil
}
