package api

import (
	"time"

	"github.com/Fi44er/community_payments/internal/models"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

type referenceRequest struct {
	Reference string `json:"reference"`
}

type amountRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

type retryRequest struct {
	FailureID string `json:"failureId"`
}

type failureResponse struct {
	ID            string    `json:"id"`
	Type          string    `json:"type"`
	Amount        float64   `json:"amount"`
	Reason        string    `json:"reason"`
	Reference     string    `json:"reference,omitempty"`
	RetryCount    int       `json:"retryCount"`
	MaxRetries    int       `json:"maxRetries"`
	NextRetryDate time.Time `json:"nextRetryDate"`
	CreatedAt     time.Time `json:"createdAt"`
}

func toFailureResponses(failures []models.PaymentFailure) []failureResponse {
	return lo.Map(failures, func(f models.PaymentFailure, _ int) failureResponse {
		return failureResponse{
			ID:            f.ID.String(),
			Type:          string(f.Type),
			Amount:        f.Amount.InexactFloat64(),
			Reason:        f.Reason,
			Reference:     f.Reference,
			RetryCount:    f.RetryCount,
			MaxRetries:    f.MaxRetries,
			NextRetryDate: f.NextRetryDate,
			CreatedAt:     f.CreatedAt,
		}
	})
}

type accountResponse struct {
	AccountNumber string     `json:"accountNumber"`
	AccountName   string     `json:"accountName"`
	BankName      string     `json:"bankName"`
	AssignedAt    *time.Time `json:"assignedAt,omitempty"`
}
