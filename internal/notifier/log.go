package notifier

import (
	"context"
	"log/slog"

	"github.com/amishk599/leadsync/internal/model"
)

// Ensure LogNotifier implements model.Notifier.
var _ model.Notifier = (*LogNotifier)(nil)

// LogNotifier writes backlog alerts to the given logger.
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier returns a notifier that logs each alert via slog.
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

// Notify logs the unapplied count. Returns nil (stdout logging does not fail).
func (n *LogNotifier) Notify(_ context.Context, count int) error {
	n.logger.Info("unapplied backlog alert", "unapplied", count)
	return nil
}
