package store

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/amishk599/leadsync/internal/model"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	s, err := NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// steppingClock returns a clock that advances one second per call, so
// insertion order is reflected in created_at.
func steppingClock() func() time.Time {
	var mu sync.Mutex
	t := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		t = t.Add(time.Second)
		return t
	}
}

func posting(company, title, link string) model.StoredPosting {
	return model.StoredPosting{
		CompanyName:   company,
		JobTitle:      title,
		Link:          link,
		Location:      "Remote, US",
		SalaryRange:   "$120k - $160k",
		Description:   "SQL and Python",
		Category:      model.CategoryAnalyst,
		Justification: "Regular LCA filings",
	}
}

func TestSQLite_InsertThenExists(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.Insert(ctx, posting("DoorDash", "Data Analyst", "https://x/1")); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	exists, err := s.Exists(ctx, "https://x/1")
	if err != nil {
		t.Fatalf("Exists: %v", err)
	}
	if !exists {
		t.Error("expected Exists to return true after Insert")
	}
}

func TestSQLite_ExistsUnknownReturnsFalse(t *testing.T) {
	s := newTestStore(t)

	exists, err := s.Exists(context.Background(), "https://nowhere")
	if err != nil {
		t.Fatalf("Exists: %v", err)
	}
	if exists {
		t.Error("expected Exists to return false for unknown link")
	}
}

func TestSQLite_DuplicateLinkIsRejected(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.Insert(ctx, posting("A", "Data Analyst", "https://x/dup")); err != nil {
		t.Fatalf("first Insert: %v", err)
	}
	err := s.Insert(ctx, posting("B", "Other Title", "https://x/dup"))
	if !errors.Is(err, model.ErrDuplicate) {
		t.Fatalf("second Insert: expected ErrDuplicate, got %v", err)
	}

	list, err := s.List(ctx, model.ListFilter{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 1 || list[0].CompanyName != "A" {
		t.Errorf("existing row must be untouched, got %+v", list)
	}
}

func TestSQLite_ConcurrentInsertsStoreOneRow(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make([]error, 8)
	for i := range errs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs[i] = s.Insert(ctx, posting("A", "Data Analyst", "https://x/race"))
		}()
	}
	wg.Wait()

	var ok int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case !errors.Is(err, model.ErrDuplicate):
			t.Errorf("unexpected error: %v", err)
		}
	}
	if ok != 1 {
		t.Errorf("successful inserts = %d, want 1", ok)
	}
}

func TestSQLite_CountUnappliedAndSetApplied(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := s.Insert(ctx, posting("C", "Data Engineer", fmt.Sprintf("https://x/%d", i))); err != nil {
			t.Fatalf("Insert %d: %v", i, err)
		}
	}
	count, err := s.CountUnapplied(ctx)
	if err != nil {
		t.Fatalf("CountUnapplied: %v", err)
	}
	if count != 3 {
		t.Fatalf("count = %d, want 3", count)
	}

	list, _ := s.List(ctx, model.ListFilter{})
	if err := s.SetApplied(ctx, list[0].ID, true); err != nil {
		t.Fatalf("SetApplied: %v", err)
	}
	if count, _ = s.CountUnapplied(ctx); count != 2 {
		t.Errorf("count after apply = %d, want 2", count)
	}

	// Idempotent and reversible.
	if err := s.SetApplied(ctx, list[0].ID, true); err != nil {
		t.Fatalf("SetApplied again: %v", err)
	}
	if err := s.SetApplied(ctx, list[0].ID, false); err != nil {
		t.Fatalf("SetApplied false: %v", err)
	}
	if count, _ = s.CountUnapplied(ctx); count != 3 {
		t.Errorf("count after unapply = %d, want 3", count)
	}
}

func TestSQLite_SetUnknownIDIsNotFound(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.SetApplied(ctx, "missing", true); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("SetApplied: expected ErrNotFound, got %v", err)
	}
	if err := s.SetReferral(ctx, "missing", model.Referral{Secured: true}); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("SetReferral: expected ErrNotFound, got %v", err)
	}
}

func TestSQLite_SetReferral(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.Insert(ctx, posting("Snowflake", "Data Engineer", "https://x/ref")); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	list, _ := s.List(ctx, model.ListFilter{})
	ref := model.Referral{Secured: true, Name: "Jane Doe", Contact: "https://linkedin.com/in/janedoe"}
	if err := s.SetReferral(ctx, list[0].ID, ref); err != nil {
		t.Fatalf("SetReferral: %v", err)
	}

	list, _ = s.List(ctx, model.ListFilter{})
	got := list[0]
	if !got.ReferralSecured || got.ReferrerName != "Jane Doe" || got.ReferrerContact != ref.Contact {
		t.Errorf("referral not stored: %+v", got)
	}
}

func TestSQLite_ListOrderSearchAndFilter(t *testing.T) {
	s := newTestStore(t)
	s.now = steppingClock()
	ctx := context.Background()

	inserts := []model.StoredPosting{
		posting("Airbnb", "Senior Data Scientist", "https://x/a"),
		posting("DoorDash", "Data Analyst, Marketing", "https://x/d"),
		posting("Snowflake", "Data Engineer", "https://x/s"),
	}
	for _, p := range inserts {
		if err := s.Insert(ctx, p); err != nil {
			t.Fatalf("Insert: %v", err)
		}
	}

	all, err := s.List(ctx, model.ListFilter{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(all) != 3 || all[0].CompanyName != "Snowflake" || all[2].CompanyName != "Airbnb" {
		t.Fatalf("expected newest first, got %v", companies(all))
	}
	if all[0].ID == "" || all[0].CreatedAt.IsZero() {
		t.Errorf("ID and CreatedAt must be assigned: %+v", all[0])
	}
	if all[0].Category != model.CategoryAnalyst || all[0].Justification != "Regular LCA filings" {
		t.Errorf("verdict metadata lost: %+v", all[0])
	}

	found, _ := s.List(ctx, model.ListFilter{Search: "DOOR"})
	if len(found) != 1 || found[0].CompanyName != "DoorDash" {
		t.Errorf("search by company = %v", companies(found))
	}
	found, _ = s.List(ctx, model.ListFilter{Search: "engineer"})
	if len(found) != 1 || found[0].CompanyName != "Snowflake" {
		t.Errorf("search by title = %v", companies(found))
	}
	found, _ = s.List(ctx, model.ListFilter{Search: "100%"})
	if len(found) != 0 {
		t.Errorf("wildcards must be literal, got %v", companies(found))
	}

	if err := s.SetApplied(ctx, all[0].ID, true); err != nil {
		t.Fatalf("SetApplied: %v", err)
	}
	unapplied, _ := s.List(ctx, model.ListFilter{UnappliedOnly: true})
	if len(unapplied) != 2 {
		t.Errorf("unapplied = %v, want 2", companies(unapplied))
	}

	limited, _ := s.List(ctx, model.ListFilter{Limit: 1})
	if len(limited) != 1 {
		t.Errorf("limit 1 returned %d", len(limited))
	}
}

func TestSQLite_ListPagesWithOffset(t *testing.T) {
	s := newTestStore(t)
	s.now = steppingClock()
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if err := s.Insert(ctx, posting(fmt.Sprintf("C%d", i), "Data Analyst", fmt.Sprintf("https://x/%d", i))); err != nil {
			t.Fatalf("Insert: %v", err)
		}
	}

	page, err := s.List(ctx, model.ListFilter{Limit: 2, Offset: 2})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if got := companies(page); len(got) != 2 || got[0] != "C2" || got[1] != "C1" {
		t.Errorf("second page = %v, want [C2 C1]", got)
	}
}

func TestListAll_ReturnsEveryRowBeyondOnePage(t *testing.T) {
	s := newTestStore(t)
	s.now = steppingClock()
	ctx := context.Background()

	const total = defaultListLimit + 10
	for i := 0; i < total; i++ {
		if err := s.Insert(ctx, posting("C", "Data Analyst", fmt.Sprintf("https://x/%d", i))); err != nil {
			t.Fatalf("Insert %d: %v", i, err)
		}
	}

	capped, err := s.List(ctx, model.ListFilter{Limit: 100000})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(capped) != defaultListLimit {
		t.Errorf("single List page = %d rows, want the %d cap", len(capped), defaultListLimit)
	}

	all, err := ListAll(ctx, s, model.ListFilter{UnappliedOnly: true})
	if err != nil {
		t.Fatalf("ListAll: %v", err)
	}
	if len(all) != total {
		t.Fatalf("ListAll returned %d rows, want %d", len(all), total)
	}
	seen := make(map[string]bool, total)
	for _, p := range all {
		if seen[p.Link] {
			t.Fatalf("link %s returned twice", p.Link)
		}
		seen[p.Link] = true
	}
	if all[0].Link != fmt.Sprintf("https://x/%d", total-1) {
		t.Errorf("first row = %s, want newest", all[0].Link)
	}
}

func TestListAll_ExactPageBoundary(t *testing.T) {
	pages := &pagedLister{rows: defaultListLimit}
	all, err := ListAll(context.Background(), pages, model.ListFilter{})
	if err != nil {
		t.Fatalf("ListAll: %v", err)
	}
	if len(all) != defaultListLimit {
		t.Errorf("got %d rows, want %d", len(all), defaultListLimit)
	}
	if pages.calls != 2 {
		t.Errorf("calls = %d, want 2 (full page then empty page)", pages.calls)
	}
}

func TestListAll_PropagatesError(t *testing.T) {
	_, err := ListAll(context.Background(), &pagedLister{err: errors.New("db gone")}, model.ListFilter{})
	if err == nil {
		t.Fatal("expected error")
	}
}

// pagedLister serves rows synthetic postings honouring Limit and Offset.
type pagedLister struct {
	rows  int
	calls int
	err   error
}

func (l *pagedLister) List(_ context.Context, f model.ListFilter) ([]model.StoredPosting, error) {
	l.calls++
	if l.err != nil {
		return nil, l.err
	}
	var out []model.StoredPosting
	for i := f.Offset; i < l.rows && len(out) < f.Limit; i++ {
		out = append(out, posting("C", "T", fmt.Sprintf("https://x/%d", i)))
	}
	return out, nil
}

func TestSQLite_PersistsAcrossReopen(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "reopen.db")
	ctx := context.Background()

	s1, err := NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := s1.Insert(ctx, posting("A", "Data Analyst", "https://x/keep")); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	s1.Close()

	s2, err := NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s2.Close()
	if exists, _ := s2.Exists(ctx, "https://x/keep"); !exists {
		t.Error("posting should survive reopen")
	}
}

func TestNopStore(t *testing.T) {
	s := NewNopStore()
	ctx := context.Background()

	if err := s.Insert(ctx, posting("A", "B", "https://x/1")); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if exists, _ := s.Exists(ctx, "https://x/1"); exists {
		t.Error("NopStore must never report existing postings")
	}
	if count, _ := s.CountUnapplied(ctx); count != 0 {
		t.Errorf("count = %d, want 0", count)
	}
}

func companies(ps []model.StoredPosting) []string {
	out := make([]string, len(ps))
	for i, p := range ps {
		out[i] = p.CompanyName
	}
	return out
}
