package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	DefaultMaxRetries = 3
	RetryInterval     = 24 * time.Hour
)

type User struct {
	ID      uint            `gorm:"primaryKey" json:"id"`
	Name    string          `json:"name"`
	Email   string          `gorm:"uniqueIndex;not null" json:"email"`
	Balance decimal.Decimal `gorm:"type:numeric(20,2);not null;default:0" json:"balance"`

	PaymentSettings      PaymentSettings      `gorm:"embedded;embeddedPrefix:payment_" json:"paymentSettings"`
	NotificationSettings NotificationSettings `gorm:"embedded;embeddedPrefix:notify_" json:"notificationSettings"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type PaymentSettings struct {
	PreferredMethod string           `json:"preferredMethod"`
	CustomerCode    string           `json:"customerCode"`
	ReservedAccount ReservedAccount  `gorm:"embedded;embeddedPrefix:reserved_" json:"reservedAccount"`
	Recurring       RecurringPayment `gorm:"embedded;embeddedPrefix:recurring_" json:"recurringPayment"`
}

type ReservedAccount struct {
	AccountNumber string     `json:"accountNumber"`
	BankName      string     `json:"bankName"`
	AccountName   string     `json:"accountName"`
	AssignedAt    *time.Time `json:"assignedAt,omitempty"`
}

type RecurringPayment struct {
	Amount            decimal.Decimal `gorm:"type:numeric(20,2);not null;default:0" json:"amount"`
	PlanCode          string          `json:"planCode"`
	SubscriptionCode  string          `json:"subscriptionCode"`
	AuthorizationCode string          `json:"-"`
	Active            bool            `gorm:"default:false" json:"active"`
}

// NotificationSettings flags are pointers so that accounts created before
// settings existed (NULL columns) read as enabled.
type NotificationSettings struct {
	InApp            *bool             `json:"inApp,omitempty"`
	Email            *bool             `json:"email,omitempty"`
	EmailPreferences datatypes.JSONMap `json:"emailPreferences,omitempty"`
}

func (s NotificationSettings) InAppEnabled() bool {
	return s.InApp == nil || *s.InApp
}

func (s NotificationSettings) EmailEnabled() bool {
	return s.Email == nil || *s.Email
}

// EmailCategoryEnabled is false only when the category is explicitly set to false.
func (s NotificationSettings) EmailCategoryEnabled(category string) bool {
	if category == "" || s.EmailPreferences == nil {
		return true
	}
	enabled, ok := s.EmailPreferences[category].(bool)
	return !ok || enabled
}

type TransactionType string

const (
	TransactionDeposit TransactionType = "Deposit"
)

type TransactionStatus string

const (
	TransactionCompleted TransactionStatus = "Completed"
)

type Transaction struct {
	ID        uint              `gorm:"primaryKey" json:"id"`
	UserID    uint              `gorm:"index;not null" json:"userId"`
	UserName  string            `json:"userName"`
	UserEmail string            `gorm:"index" json:"userEmail"`
	Type      TransactionType   `gorm:"type:varchar(32);not null" json:"type"`
	Status    TransactionStatus `gorm:"type:varchar(32);not null" json:"status"`
	Amount    decimal.Decimal   `gorm:"type:numeric(20,2);not null" json:"amount"`
	Reference string            `gorm:"uniqueIndex;not null" json:"reference"`
	Metadata  datatypes.JSONMap `json:"metadata"`
	CreatedAt time.Time         `json:"createdAt"`
}

type FailureType string

const (
	FailureOneTime   FailureType = "one-time"
	FailureRecurring FailureType = "recurring"
)

type PaymentFailure struct {
	ID            uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	UserID        uint            `gorm:"index;not null" json:"userId"`
	UserEmail     string          `json:"userEmail"`
	Type          FailureType     `gorm:"type:varchar(16);not null" json:"type"`
	Amount        decimal.Decimal `gorm:"type:numeric(20,2);not null" json:"amount"`
	Reason        string          `gorm:"type:text" json:"reason"`
	Reference     string          `gorm:"index" json:"reference,omitempty"`
	RetryCount    int             `gorm:"not null;default:0" json:"retryCount"`
	MaxRetries    int             `gorm:"not null;default:3" json:"maxRetries"`
	NextRetryDate time.Time       `gorm:"index" json:"nextRetryDate"`
	Resolved      bool            `gorm:"index;not null;default:false" json:"resolved"`
	ResolvedAt    *time.Time      `json:"resolvedAt,omitempty"`
	CreatedAt     time.Time       `json:"createdAt"`
	UpdatedAt     time.Time       `json:"updatedAt"`
}

func (f *PaymentFailure) BeforeCreate(tx *gorm.DB) error {
	if f.ID == uuid.Nil {
		f.ID = uuid.New()
	}
	if f.MaxRetries == 0 {
		f.MaxRetries = DefaultMaxRetries
	}
	if f.NextRetryDate.IsZero() {
		f.NextRetryDate = time.Now().Add(RetryInterval)
	}
	return nil
}

func (f *PaymentFailure) Exhausted() bool {
	return f.RetryCount >= f.MaxRetries
}

type NotificationType string

const (
	NotificationKYCVerified  NotificationType = "kyc_verified"
	NotificationKYCRejected  NotificationType = "kyc_rejected"
	NotificationInvestment   NotificationType = "investment"
	NotificationWithdrawal   NotificationType = "withdrawal"
	NotificationProposal     NotificationType = "proposal"
	NotificationEvent        NotificationType = "event"
	NotificationAnnouncement NotificationType = "announcement"
	NotificationContribution NotificationType = "contribution"
	NotificationGeneral      NotificationType = "general"
)

func (t NotificationType) Valid() bool {
	switch t {
	case NotificationKYCVerified, NotificationKYCRejected, NotificationInvestment,
		NotificationWithdrawal, NotificationProposal, NotificationEvent,
		NotificationAnnouncement, NotificationContribution, NotificationGeneral:
		return true
	}
	return false
}

type Notification struct {
	ID          uint              `gorm:"primaryKey" json:"id"`
	UserID      uint              `gorm:"index;not null" json:"userId"`
	Type        NotificationType  `gorm:"type:varchar(32);not null" json:"type"`
	Title       string            `gorm:"not null" json:"title"`
	Message     string            `gorm:"type:text;not null" json:"message"`
	RelatedData datatypes.JSONMap `json:"relatedData,omitempty"`
	ActionURL   string            `json:"actionUrl,omitempty"`
	Read        bool              `gorm:"index;not null;default:false" json:"read"`
	ReadAt      *time.Time        `gorm:"index" json:"readAt,omitempty"`
	CreatedAt   time.Time         `json:"createdAt"`
}

// WebhookEvent journals every signature-valid provider delivery.
type WebhookEvent struct {
	ID              uint           `gorm:"primaryKey" json:"id"`
	Event           string         `gorm:"type:varchar(100);not null;index" json:"event"`
	Reference       string         `gorm:"index" json:"reference"`
	Payload         datatypes.JSON `json:"payload"`
	ProcessedAt     *time.Time     `json:"processedAt,omitempty"`
	ProcessingError string         `gorm:"type:text" json:"processingError"`
	CreatedAt       time.Time      `gorm:"autoCreateTime;index" json:"createdAt"`
}
