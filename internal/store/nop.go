package store

import (
	"context"

	"github.com/amishk599/leadsync/internal/model"
)

// NopStore is a no-op store used in dry-run mode. Nothing is ever stored, so
// every posting looks new on each run and the backlog is always empty.
type NopStore struct{}

var _ model.LeadStore = (*NopStore)(nil)

func NewNopStore() *NopStore { return &NopStore{} }

func (s *NopStore) Exists(context.Context, string) (bool, error) { return false, nil }
func (s *NopStore) Insert(context.Context, model.StoredPosting) error { return nil }
func (s *NopStore) CountUnapplied(context.Context) (int, error) { return 0, nil }
func (s *NopStore) SetApplied(context.Context, string, bool) error { return model.ErrNotFound }
func (s *NopStore) SetReferral(context.Context, string, model.Referral) error { return model.ErrNotFound }
func (s *NopStore) Close() error { return nil }

func (s *NopStore) List(context.Context, model.ListFilter) ([]model.StoredPosting, error) {
	return nil, nil
}
