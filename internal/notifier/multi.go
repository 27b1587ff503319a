package notifier

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/amishk599/leadsync/internal/model"
)

// Ensure MultiNotifier implements model.Notifier.
var _ model.Notifier = (*MultiNotifier)(nil)

// MultiNotifier fans one alert out to several channels.
type MultiNotifier struct {
	notifiers []model.Notifier
	logger    *slog.Logger
}

// NewMultiNotifier combines notifiers.
func NewMultiNotifier(notifiers []model.Notifier, logger *slog.Logger) *MultiNotifier {
	return &MultiNotifier{notifiers: notifiers, logger: logger}
}

// Notify delivers to every channel in order. Returns an error only if ALL
// channels fail. Individual failures are logged.
func (m *MultiNotifier) Notify(ctx context.Context, count int) error {
	if len(m.notifiers) == 0 {
		return nil
	}

	var errs []error
	for i, n := range m.notifiers {
		if err := n.Notify(ctx, count); err != nil {
			m.logger.Error("notification channel failed", "channel", i, "error", err)
			errs = append(errs, err)
		}
	}

	if len(errs) == len(m.notifiers) {
		return fmt.Errorf("all %d notification channels failed: %w", len(errs), errors.Join(errs...))
	}
	return nil
}

// SendTestMessage sends an alert as if count postings were waiting, to verify
// the integration works.
func SendTestMessage(ctx context.Context, n model.Notifier, count int) error {
	return n.Notify(ctx, count)
}
