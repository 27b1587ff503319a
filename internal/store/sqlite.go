package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/amishk599/leadsync/internal/model"
)

// sqliteTimeLayout is fixed-width so created_at sorts lexically.
const sqliteTimeLayout = "2006-01-02 15:04:05.000000000"

// SQLiteStore persists eligible postings in a SQLite database.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

var _ model.LeadStore = (*SQLiteStore)(nil)

// NewSQLiteStore opens (or creates) a SQLite database at dbPath and ensures the
// postings table exists.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}
	// One writer avoids SQLITE_BUSY between the scheduler and the HTTP trigger.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging sqlite db: %w", err)
	}

	createTable := `CREATE TABLE IF NOT EXISTS postings (
		id               TEXT PRIMARY KEY,
		company_name     TEXT NOT NULL,
		job_title        TEXT NOT NULL,
		link             TEXT NOT NULL UNIQUE,
		location         TEXT NOT NULL DEFAULT '',
		salary_range     TEXT NOT NULL DEFAULT '',
		description      TEXT NOT NULL DEFAULT '',
		category         TEXT NOT NULL,
		justification    TEXT NOT NULL DEFAULT '',
		is_applied       INTEGER NOT NULL DEFAULT 0,
		referral_secured INTEGER NOT NULL DEFAULT 0,
		referrer_name    TEXT NOT NULL DEFAULT '',
		referrer_contact TEXT NOT NULL DEFAULT '',
		created_at       TEXT NOT NULL
	)`
	if _, err := db.Exec(createTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating postings table: %w", err)
	}
	if _, err := db.Exec("CREATE INDEX IF NOT EXISTS idx_postings_unapplied ON postings(is_applied)"); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating postings index: %w", err)
	}

	return &SQLiteStore{db: db, now: time.Now}, nil
}

// Exists reports whether a posting with this link is stored.
func (s *SQLiteStore) Exists(ctx context.Context, link string) (bool, error) {
	var exists int
	err := s.db.QueryRowContext(ctx, "SELECT 1 FROM postings WHERE link = ?", link).Scan(&exists)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("checking existence of %s: %w", link, err)
	}
	return true, nil
}

// Insert stores p with a fresh ID and creation time. A link that is already
// stored yields model.ErrDuplicate and leaves the existing row untouched.
func (s *SQLiteStore) Insert(ctx context.Context, p model.StoredPosting) error {
	res, err := s.db.ExecContext(ctx, `INSERT INTO postings
		(id, company_name, job_title, link, location, salary_range, description,
		 category, justification, is_applied, referral_secured, referrer_name, referrer_contact, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, 0, 0, '', '', ?)
		ON CONFLICT(link) DO NOTHING`,
		newID(), p.CompanyName, p.JobTitle, p.Link, p.Location, p.SalaryRange, p.Description,
		string(p.Category), p.Justification, s.now().UTC().Format(sqliteTimeLayout),
	)
	if err != nil {
		return fmt.Errorf("inserting posting %s: %w", p.Link, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("inserting posting %s: %w", p.Link, err)
	}
	if n == 0 {
		return fmt.Errorf("inserting posting %s: %w", p.Link, model.ErrDuplicate)
	}
	return nil
}

// CountUnapplied returns the number of postings not yet marked applied.
func (s *SQLiteStore) CountUnapplied(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM postings WHERE is_applied = 0").Scan(&count); err != nil {
		return 0, fmt.Errorf("counting unapplied postings: %w", err)
	}
	return count, nil
}

// List returns postings newest first, narrowed by f.
func (s *SQLiteStore) List(ctx context.Context, f model.ListFilter) ([]model.StoredPosting, error) {
	query := `SELECT id, company_name, job_title, link, location, salary_range, description,
		category, justification, is_applied, referral_secured, referrer_name, referrer_contact, created_at
		FROM postings WHERE 1 = 1`
	var args []any
	if f.Search != "" {
		query += ` AND (LOWER(company_name) LIKE ? ESCAPE '\' OR LOWER(job_title) LIKE ? ESCAPE '\')`
		pat := likePattern(f.Search)
		args = append(args, pat, pat)
	}
	if f.UnappliedOnly {
		query += " AND is_applied = 0"
	}
	query += " ORDER BY created_at DESC, rowid DESC LIMIT ? OFFSET ?"
	args = append(args, listLimit(f), listOffset(f))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing postings: %w", err)
	}
	defer rows.Close()

	var out []model.StoredPosting
	for rows.Next() {
		var (
			p        model.StoredPosting
			category string
			applied  int
			referral int
			created  string
		)
		if err := rows.Scan(&p.ID, &p.CompanyName, &p.JobTitle, &p.Link, &p.Location, &p.SalaryRange,
			&p.Description, &category, &p.Justification, &applied, &referral,
			&p.ReferrerName, &p.ReferrerContact, &created); err != nil {
			return nil, fmt.Errorf("scanning posting: %w", err)
		}
		p.Category = model.Category(category)
		p.Applied = applied != 0
		p.ReferralSecured = referral != 0
		if t, err := time.Parse(sqliteTimeLayout, created); err == nil {
			p.CreatedAt = t
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing postings: %w", err)
	}
	return out, nil
}

// SetApplied marks the posting with id as applied or not.
func (s *SQLiteStore) SetApplied(ctx context.Context, id string, applied bool) error {
	res, err := s.db.ExecContext(ctx, "UPDATE postings SET is_applied = ? WHERE id = ?", boolToInt(applied), id)
	if err != nil {
		return fmt.Errorf("updating applied for %s: %w", id, err)
	}
	return checkUpdated(res, id)
}

// SetReferral records referral details for the posting with id.
func (s *SQLiteStore) SetReferral(ctx context.Context, id string, ref model.Referral) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE postings SET referral_secured = ?, referrer_name = ?, referrer_contact = ? WHERE id = ?",
		boolToInt(ref.Secured), ref.Name, ref.Contact, id)
	if err != nil {
		return fmt.Errorf("updating referral for %s: %w", id, err)
	}
	return checkUpdated(res, id)
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func checkUpdated(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("updating %s: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("updating %s: %w", id, model.ErrNotFound)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
