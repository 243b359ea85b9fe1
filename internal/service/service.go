package service

import (
	"context"
	"strings"
	"time"

	"github.com/Fi44er/community_payments/config"
	"github.com/Fi44er/community_payments/internal/models"
	"github.com/Fi44er/community_payments/internal/notify"
	"github.com/Fi44er/community_payments/internal/paystack"
	"github.com/Fi44er/community_payments/utils"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
	"gorm.io/datatypes"
)

// Identity is the authenticated caller of a client-facing operation.
type Identity struct {
	UserID uint
	Email  string
}

type Repository interface {
	GetUserByID(ctx context.Context, id uint) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	UpdateCustomerCode(ctx context.Context, userID uint, customerCode string) error
	UpdateReservedAccount(ctx context.Context, userID uint, customerCode string, account models.ReservedAccount) error
	UpdateRecurringPayment(ctx context.Context, userID uint, recurring models.RecurringPayment) error
	SetRecurringActive(ctx context.Context, userID uint, active bool) error

	GetTransactionByReference(ctx context.Context, userID uint, reference string) (*models.Transaction, error)
	CreditBalance(ctx context.Context, txn *models.Transaction) error

	CreatePaymentFailure(ctx context.Context, failure *models.PaymentFailure) error
	GetPaymentFailure(ctx context.Context, id uuid.UUID, userID uint) (*models.PaymentFailure, error)
	ListPendingFailures(ctx context.Context, userID uint) ([]models.PaymentFailure, error)
	ListDueFailures(ctx context.Context, now time.Time, limit int) ([]models.PaymentFailure, error)
	RecordRetryFailure(ctx context.Context, id uuid.UUID, reason string, nextRetry time.Time) error
	ResolveFailure(ctx context.Context, id uuid.UUID, txn *models.Transaction, resolvedAt time.Time) error

	CreateWebhookEvent(ctx context.Context, event *models.WebhookEvent) error
	MarkWebhookEventProcessed(ctx context.Context, id uint, processingErr error) error
}

type Provider interface {
	InitializeTransaction(ctx context.Context, req paystack.InitializeRequest) (*paystack.InitializeData, error)
	VerifyTransaction(ctx context.Context, reference string) (*paystack.TransactionData, error)
	ChargeAuthorization(ctx context.Context, req paystack.ChargeRequest) (*paystack.TransactionData, error)
	CreateCustomer(ctx context.Context, req paystack.CustomerRequest) (*paystack.Customer, error)
	CreateDedicatedAccount(ctx context.Context, req paystack.DedicatedAccountRequest) (*paystack.DedicatedAccount, error)
	CreatePlan(ctx context.Context, req paystack.PlanRequest) (*paystack.Plan, error)
	UpdatePlan(ctx context.Context, planCode string, req paystack.PlanRequest) error
}

type Notifier interface {
	Send(ctx context.Context, msg notify.Message) (*models.Notification, error)
}

// Alerter receives operational alerts meant for administrators.
type Alerter interface {
	PaymentFailed(ctx context.Context, failure *models.PaymentFailure)
	RetriesExhausted(ctx context.Context, failure *models.PaymentFailure)
}

type Service struct {
	repo     Repository
	provider Provider
	notifier Notifier
	alerter  Alerter
	logger   *utils.Logger
	config   *config.Config

	verifyGroup singleflight.Group
	now         func() time.Time
}

func NewService(repo Repository, provider Provider, notifier Notifier, alerter Alerter, cfg *config.Config, logger *utils.Logger) *Service {
	return &Service{
		repo:     repo,
		provider: provider,
		notifier: notifier,
		alerter:  alerter,
		logger:   logger,
		config:   cfg,
		now:      time.Now,
	}
}

// notify dispatches after the business write has committed, so a failure here
// is logged rather than returned.
func (s *Service) notify(ctx context.Context, msg notify.Message) {
	if _, err := s.notifier.Send(ctx, msg); err != nil {
		s.logger.WithError(err).WithFields(logrus.Fields{
			"user_id": msg.UserID,
			"title":   msg.Title,
		}).Error("failed to dispatch notification")
	}
}

func (s *Service) callbackURL() string {
	base := strings.TrimRight(s.config.AppBaseURL, "/")
	if base == "" {
		return ""
	}
	return base + "/dashboard/payments/verify"
}

func newDeposit(user *models.User, amount decimal.Decimal, reference, source string, data *paystack.TransactionData) *models.Transaction {
	meta := datatypes.JSONMap{
		"reference": reference,
		"source":    source,
	}
	if data != nil {
		meta["providerId"] = data.ID
		meta["channel"] = data.Channel
		meta["currency"] = data.Currency
		meta["paidAt"] = data.PaidAt
	}

	return &models.Transaction{
		UserID:    user.ID,
		UserName:  user.Name,
		UserEmail: user.Email,
		Type:      models.TransactionDeposit,
		Status:    models.TransactionCompleted,
		Amount:    amount,
		Reference: reference,
		Metadata:  meta,
	}
}

func newReference(prefix string) string {
	return prefix + "-" + uuid.NewString()
}
