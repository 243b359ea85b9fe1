package bot

import (
	"context"
	"fmt"
	"strings"

	"github.com/Fi44er/community_payments/internal/models"
	"github.com/Fi44er/community_payments/utils"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Bot posts payment alerts to the administrators' telegram chat.
type Bot struct {
	api         sender
	adminChatID int64
	logger      *utils.Logger
}

func NewBot(token string, adminChatID int64, logger *utils.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot API: %w", err)
	}
	logger.Infof("Admin alerts enabled via telegram bot @%s", api.Self.UserName)
	return newBot(api, adminChatID, logger), nil
}

func newBot(api sender, adminChatID int64, logger *utils.Logger) *Bot {
	return &Bot{
		api:         api,
		adminChatID: adminChatID,
		logger:      logger,
	}
}

// Alert is fire-and-forget: failures are logged, never returned.
func (b *Bot) Alert(_ context.Context, text string) {
	b.sendMessage(b.adminChatID, text)
}

func (b *Bot) PaymentFailed(ctx context.Context, failure *models.PaymentFailure) {
	b.Alert(ctx, fmt.Sprintf(
		"*Payment failed*\nUser: %s\nType: %s\nAmount: %s\nReason: %s\nFailure: `%s`",
		escape(failure.UserEmail),
		failure.Type,
		failure.Amount.StringFixed(2),
		escape(failure.Reason),
		failure.ID,
	))
}

func (b *Bot) RetriesExhausted(ctx context.Context, failure *models.PaymentFailure) {
	b.Alert(ctx, fmt.Sprintf(
		"*Retries exhausted*\nUser: %s\nAmount: %s\nAttempts: %d/%d\nLast reason: %s\nFailure: `%s`",
		escape(failure.UserEmail),
		failure.Amount.StringFixed(2),
		failure.RetryCount,
		failure.MaxRetries,
		escape(failure.Reason),
		failure.ID,
	))
}

func (b *Bot) sendMessage(chatID int64, text string) {
	if chatID == 0 {
		b.logger.Warn("Admin chat id is not configured, alert dropped")
		return
	}
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown
	if _, err := b.api.Send(msg); err != nil {
		b.logger.Errorf("Failed to send admin alert: %v", err)
	}
}

var markdownEscaper = strings.NewReplacer("_", "\\_", "*", "\\*", "`", "\\`", "[", "\\[")

func escape(s string) string {
	return markdownEscaper.Replace(s)
}
