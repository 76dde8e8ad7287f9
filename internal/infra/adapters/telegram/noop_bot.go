package telegram

import (
	"context"

	"github.com/rs/zerolog"

	"exam-access/internal/domain/ports/adapter"
)

var _ adapter.AdminNotifier = (*NoopNotifier)(nil)

// NoopNotifier logs alerts instead of sending them. Used when no bot token is
// configured.
type NoopNotifier struct {
	logger *zerolog.Logger
}

func NewNoopNotifier(logger *zerolog.Logger) *NoopNotifier {
	return &NoopNotifier{logger: logger}
}

func (n *NoopNotifier) NotifyAdmins(ctx context.Context, text string) error {
	if n.logger != nil {
		n.logger.Info().Str("channel", "noop").Str("text", text).Msg("admin notification")
	}
	return nil
}
