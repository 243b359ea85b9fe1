package bot

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/Fi44er/community_payments/internal/models"
	"github.com/Fi44er/community_payments/utils"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type stubSender struct {
	messages []tgbotapi.MessageConfig
	err      error
}

func (s *stubSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	if msg, ok := c.(tgbotapi.MessageConfig); ok {
		s.messages = append(s.messages, msg)
	}
	return tgbotapi.Message{}, s.err
}

func TestPaymentFailedAlert(t *testing.T) {
	api := &stubSender{}
	b := newBot(api, 42, utils.NopLogger())

	b.PaymentFailed(context.Background(), &models.PaymentFailure{
		ID:        uuid.New(),
		UserEmail: "first_last@x.com",
		Type:      models.FailureRecurring,
		Amount:    decimal.NewFromInt(2500),
		Reason:    "Insufficient Funds",
	})

	if len(api.messages) != 1 {
		t.Fatalf("expected 1 message, got %d", len(api.messages))
	}
	msg := api.messages[0]
	if msg.ChatID != 42 {
		t.Errorf("expected chat 42, got %d", msg.ChatID)
	}
	if !strings.Contains(msg.Text, "2500.00") || !strings.Contains(msg.Text, "first\\_last@x.com") {
		t.Errorf("unexpected alert text: %s", msg.Text)
	}
}

func TestAlertWithoutChatIsDropped(t *testing.T) {
	api := &stubSender{}
	b := newBot(api, 0, utils.NopLogger())

	b.Alert(context.Background(), "hello")

	if len(api.messages) != 0 {
		t.Fatalf("expected no message, got %d", len(api.messages))
	}
}

func TestAlertSendErrorIsSwallowed(t *testing.T) {
	api := &stubSender{err: errors.New("telegram down")}
	b := newBot(api, 42, utils.NopLogger())

	b.RetriesExhausted(context.Background(), &models.PaymentFailure{RetryCount: 3, MaxRetries: 3})

	if len(api.messages) != 1 {
		t.Fatalf("expected the send to be attempted once, got %d", len(api.messages))
	}
}
