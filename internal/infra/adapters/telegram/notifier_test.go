//go:build !integration

package telegram

import (
	"context"
	"errors"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

type fakeSender struct {
	sent   []int64
	failOn int64
}

func (f *fakeSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	msg, ok := c.(tgbotapi.MessageConfig)
	if !ok {
		return tgbotapi.Message{}, errors.New("unexpected chattable")
	}
	if msg.ChatID == f.failOn {
		return tgbotapi.Message{}, errors.New("chat not found")
	}
	f.sent = append(f.sent, msg.ChatID)
	return tgbotapi.Message{}, nil
}

func TestAdminBotNotifier_NotifyAdmins(t *testing.T) {
	sender := &fakeSender{failOn: 2}
	n := newAdminBotNotifier(sender, []int64{1, 2, 3}, nil)

	err := n.NotifyAdmins(context.Background(), "pool exhausted for M1")
	if err == nil {
		t.Fatal("expected the failed chat to be reported")
	}
	if len(sender.sent) != 2 || sender.sent[0] != 1 || sender.sent[1] != 3 {
		t.Errorf("expected delivery to continue past the failure, sent to %v", sender.sent)
	}
}

func TestAdminBotNotifier_CanceledContext(t *testing.T) {
	sender := &fakeSender{}
	n := newAdminBotNotifier(sender, []int64{1}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := n.NotifyAdmins(ctx, "x"); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if len(sender.sent) != 0 {
		t.Error("nothing must be sent after cancellation")
	}
}

func TestNoopNotifier(t *testing.T) {
	if err := NewNoopNotifier(nil).NotifyAdmins(context.Background(), "hi"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
