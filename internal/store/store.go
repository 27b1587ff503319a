package store

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/amishk599/leadsync/internal/model"
)

// defaultListLimit caps one List page.
const defaultListLimit = 500

func newID() string {
	return uuid.NewString()
}

// likePattern builds a case-insensitive substring pattern for LIKE ... ESCAPE '\'.
func likePattern(search string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(strings.ToLower(strings.TrimSpace(search))) + "%"
}

func listLimit(f model.ListFilter) int {
	if f.Limit <= 0 || f.Limit > defaultListLimit {
		return defaultListLimit
	}
	return f.Limit
}

func listOffset(f model.ListFilter) int {
	if f.Offset < 0 {
		return 0
	}
	return f.Offset
}

// Lister is the read side of a lead store.
type Lister interface {
	List(ctx context.Context, f model.ListFilter) ([]model.StoredPosting, error)
}

// ListAll pages through every posting matching f, newest first. f.Limit and
// f.Offset are ignored.
func ListAll(ctx context.Context, l Lister, f model.ListFilter) ([]model.StoredPosting, error) {
	f.Limit = defaultListLimit
	f.Offset = 0

	var all []model.StoredPosting
	for {
		page, err := l.List(ctx, f)
		if err != nil {
			return nil, err
		}
		all = append(all, page...)
		if len(page) < f.Limit {
			return all, nil
		}
		f.Offset += len(page)
	}
}
