package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Fi44er/community_payments/internal/models"
	"github.com/Fi44er/community_payments/utils"
	"github.com/sirupsen/logrus"
)

// CleanupAge is how long read notifications are kept.
const CleanupAge = 90 * 24 * time.Hour

var (
	ErrUserNotFound = errors.New("notification target user not found")
	ErrInvalidType  = errors.New("invalid notification type")
)

// emailCategories maps notification types onto the per-user email preference keys.
// Types absent from the table (general, contribution) always email.
var emailCategories = map[models.NotificationType]string{
	models.NotificationKYCVerified:  "kyc",
	models.NotificationKYCRejected:  "kyc",
	models.NotificationInvestment:   "investments",
	models.NotificationWithdrawal:   "withdrawals",
	models.NotificationProposal:     "proposals",
	models.NotificationEvent:        "events",
	models.NotificationAnnouncement: "announcements",
}

func EmailCategory(t models.NotificationType) string {
	return emailCategories[t]
}

type Message struct {
	UserID      uint
	Type        models.NotificationType
	Title       string
	Message     string
	RelatedData map[string]any
	ActionURL   string
}

type Store interface {
	GetUserByID(ctx context.Context, id uint) (*models.User, error)
	CreateNotification(ctx context.Context, n *models.Notification) error
	ListNotifications(ctx context.Context, userID uint, unreadOnly bool, limit int) ([]models.Notification, error)
	CountUnreadNotifications(ctx context.Context, userID uint) (int64, error)
	MarkNotificationRead(ctx context.Context, userID, id uint, at time.Time) (bool, error)
	MarkAllNotificationsRead(ctx context.Context, userID uint, at time.Time) (int64, error)
	DeleteReadNotificationsBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type EmailSender interface {
	Send(ctx context.Context, email Email) error
}

// Publisher pushes freshly stored notifications to live subscribers.
type Publisher interface {
	Publish(userID uint, n *models.Notification)
}

type Dispatcher struct {
	store     Store
	email     EmailSender
	publisher Publisher
	baseURL   string
	logger    *utils.Logger
	now       func() time.Time
}

func NewDispatcher(store Store, email EmailSender, publisher Publisher, baseURL string, logger *utils.Logger) *Dispatcher {
	return &Dispatcher{
		store:     store,
		email:     email,
		publisher: publisher,
		baseURL:   baseURL,
		logger:    logger,
		now:       time.Now,
	}
}

// Send stores the in-app notification and emails the user according to their
// settings. It returns the stored notification, or nil when in-app delivery is
// disabled. Email delivery is best-effort and never fails the call.
func (d *Dispatcher) Send(ctx context.Context, msg Message) (*models.Notification, error) {
	if !msg.Type.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidType, msg.Type)
	}

	user, err := d.store.GetUserByID(ctx, msg.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to load notification settings: %w", err)
	}
	if user == nil {
		return nil, fmt.Errorf("%w: id %d", ErrUserNotFound, msg.UserID)
	}

	settings := user.NotificationSettings
	log := d.logger.WithFields(logrus.Fields{
		"user_id": msg.UserID,
		"type":    msg.Type,
	})

	var stored *models.Notification
	if settings.InAppEnabled() {
		stored = &models.Notification{
			UserID:      msg.UserID,
			Type:        msg.Type,
			Title:       msg.Title,
			Message:     msg.Message,
			RelatedData: msg.RelatedData,
			ActionURL:   msg.ActionURL,
		}
		if err := d.store.CreateNotification(ctx, stored); err != nil {
			return nil, err
		}
		if d.publisher != nil {
			d.publisher.Publish(msg.UserID, stored)
		}
	}

	if !settings.EmailEnabled() {
		log.Debug("email notifications disabled")
		return stored, nil
	}

	category := EmailCategory(msg.Type)
	if !settings.EmailCategoryEnabled(category) {
		log.WithField("category", category).Debug("email category disabled")
		return stored, nil
	}

	email := Email{
		ToName:    user.Name,
		ToAddress: user.Email,
		Subject:   msg.Title,
		Title:     msg.Title,
		Body:      msg.Message,
		ActionURL: d.absoluteURL(msg.ActionURL),
	}
	if err := d.email.Send(ctx, email); err != nil {
		log.WithError(err).Error("failed to send notification email")
	}

	return stored, nil
}

func (d *Dispatcher) List(ctx context.Context, userID uint, unreadOnly bool, limit int) ([]models.Notification, error) {
	return d.store.ListNotifications(ctx, userID, unreadOnly, limit)
}

func (d *Dispatcher) UnreadCount(ctx context.Context, userID uint) (int64, error) {
	return d.store.CountUnreadNotifications(ctx, userID)
}

func (d *Dispatcher) MarkRead(ctx context.Context, userID, id uint) (bool, error) {
	return d.store.MarkNotificationRead(ctx, userID, id, d.now())
}

func (d *Dispatcher) MarkAllRead(ctx context.Context, userID uint) (int64, error) {
	return d.store.MarkAllNotificationsRead(ctx, userID, d.now())
}

// CleanupRead deletes read notifications that were read more than olderThan ago.
func (d *Dispatcher) CleanupRead(ctx context.Context, olderThan time.Duration) (int64, error) {
	if olderThan <= 0 {
		olderThan = CleanupAge
	}
	return d.store.DeleteReadNotificationsBefore(ctx, d.now().Add(-olderThan))
}

func (d *Dispatcher) absoluteURL(path string) string {
	if path == "" || d.baseURL == "" || path[0] != '/' {
		return path
	}
	return d.baseURL + path
}
