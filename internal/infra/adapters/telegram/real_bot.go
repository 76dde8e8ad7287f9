package telegram

import (
	"context"
	"errors"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"exam-access/internal/config"
	"exam-access/internal/domain/ports/adapter"
	"exam-access/internal/infra/metrics"
)

var _ adapter.AdminNotifier = (*AdminBotNotifier)(nil)

// messageSender is the part of *tgbotapi.BotAPI the notifier uses.
type messageSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// AdminBotNotifier pushes operational alerts to the admin chats over the
// Telegram Bot API.
type AdminBotNotifier struct {
	bot     messageSender
	chatIDs []int64
	logger  *zerolog.Logger
}

// NewAdminBotNotifier connects to Telegram with the configured token.
func NewAdminBotNotifier(cfg config.NotifyConfig, logger *zerolog.Logger) (*AdminBotNotifier, error) {
	if cfg.TelegramToken == "" {
		return nil, errors.New("telegram token empty")
	}
	if len(cfg.AdminChatIDs) == 0 {
		return nil, errors.New("no admin chat ids configured")
	}
	bot, err := tgbotapi.NewBotAPI(cfg.TelegramToken)
	if err != nil {
		return nil, err
	}
	return newAdminBotNotifier(bot, cfg.AdminChatIDs, logger), nil
}

func newAdminBotNotifier(bot messageSender, chatIDs []int64, logger *zerolog.Logger) *AdminBotNotifier {
	return &AdminBotNotifier{bot: bot, chatIDs: chatIDs, logger: logger}
}

// NotifyAdmins sends text to every admin chat. Delivery keeps going past a
// failed chat; the first error is returned.
func (n *AdminBotNotifier) NotifyAdmins(ctx context.Context, text string) error {
	var first error
	for _, id := range n.chatIDs {
		if err := ctx.Err(); err != nil {
			return err
		}
		msg := tgbotapi.NewMessage(id, text)
		msg.DisableWebPagePreview = true
		_, err := n.bot.Send(msg)
		metrics.IncAdminNotify("telegram", err)
		if err != nil {
			if n.logger != nil {
				n.logger.Warn().Err(err).Int64("chat_id", id).Msg("admin notification failed")
			}
			if first == nil {
				first = fmt.Errorf("notify chat %d: %w", id, err)
			}
		}
	}
	return first
}
