package notify

import (
	"context"
	"log/slog"
)

// NoOpNotifier implements Notifier by logging discarded summaries. It is
// used when no webhook is configured.
type NoOpNotifier struct {
	log *slog.Logger
}

// NewNoOpNotifier creates a notifier that discards summaries with a log message.
func NewNoOpNotifier(log *slog.Logger) *NoOpNotifier {
	return &NoOpNotifier{log: log}
}

// Notify logs and discards a summary.
func (n *NoOpNotifier) Notify(_ context.Context, s *Summary) error {
	n.log.Debug("notification discarded (no backend configured)",
		"query", s.Query,
		"count", s.Count,
	)
	return nil
}
