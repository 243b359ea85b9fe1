package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Fi44er/community_payments/internal/models"
	"github.com/Fi44er/community_payments/internal/notify"
	"github.com/Fi44er/community_payments/internal/paystack"
	"github.com/Fi44er/community_payments/internal/repository"
	"github.com/Fi44er/community_payments/utils"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

const (
	defaultRetryBatch    = 100
	retryReferencePrefix = "retry-"
)

type RetryResult struct {
	Message       string
	Amount        decimal.Decimal
	TransactionID uint
}

// RetrySummary reports one sweep over due failures.
type RetrySummary struct {
	Attempted int
	Recovered int
	Failed    int
}

func (s *Service) ListPendingFailures(ctx context.Context, id Identity) ([]models.PaymentFailure, error) {
	failures, err := s.repo.ListPendingFailures(ctx, id.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to list payment failures: %w", err)
	}
	return failures, nil
}

func (s *Service) RetryFailure(ctx context.Context, id Identity, failureID string) (*RetryResult, error) {
	failureID = strings.TrimSpace(failureID)
	if failureID == "" {
		return nil, fmt.Errorf("%w: failureId is required", ErrValidation)
	}
	parsed, err := uuid.Parse(failureID)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid failureId", ErrValidation)
	}

	failure, err := s.repo.GetPaymentFailure(ctx, parsed, id.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to load payment failure: %w", err)
	}
	if failure == nil {
		return nil, fmt.Errorf("%w: payment failure %s", ErrNotFound, failureID)
	}

	return s.retry(ctx, failure)
}

// RetryDueFailures runs the retry path for every recurring failure whose next
// retry date has passed. Individual failures are logged and counted, not returned.
func (s *Service) RetryDueFailures(ctx context.Context, limit int) (RetrySummary, error) {
	var summary RetrySummary
	if limit <= 0 {
		limit = defaultRetryBatch
	}

	due, err := s.repo.ListDueFailures(ctx, s.now(), limit)
	if err != nil {
		return summary, fmt.Errorf("failed to list due failures: %w", err)
	}

	for i := range due {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		failure := &due[i]
		summary.Attempted++
		if _, err := s.retry(ctx, failure); err != nil {
			summary.Failed++
			s.logger.WithError(err).WithField("failure_id", failure.ID).Warn("Scheduled retry failed")
			continue
		}
		summary.Recovered++
	}

	s.logger.WithFields(logrus.Fields{
		"attempted": summary.Attempted,
		"recovered": summary.Recovered,
		"failed":    summary.Failed,
	}).Info("Retry sweep finished")
	return summary, nil
}

func (s *Service) retry(ctx context.Context, failure *models.PaymentFailure) (*RetryResult, error) {
	switch {
	case failure.Type == models.FailureOneTime:
		return nil, ErrOneTimeNotRetryable
	case failure.Exhausted():
		return nil, ErrRetriesExhausted
	case failure.Resolved:
		return nil, ErrAlreadyResolved
	}

	user, err := s.repo.GetUserByID(ctx, failure.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	if user == nil {
		return nil, fmt.Errorf("%w: user %d", ErrNotFound, failure.UserID)
	}

	authorization := user.PaymentSettings.Recurring.AuthorizationCode
	if authorization == "" {
		return nil, ErrNoAuthorization
	}

	log := s.logger.WithFields(logrus.Fields{
		"user_id":    user.ID,
		"failure_id": failure.ID,
		"attempt":    failure.RetryCount + 1,
	})

	// The reference only advances with a recorded decline, so an attempt whose
	// response was lost is replayed under the same reference.
	reference := retryReference(failure.ID, failure.RetryCount+1)
	data, err := s.provider.ChargeAuthorization(ctx, paystack.ChargeRequest{
		Email:             user.Email,
		Amount:            utils.ToMinor(failure.Amount),
		AuthorizationCode: authorization,
		Reference:         reference,
	})
	if err != nil {
		var apiErr *paystack.APIError
		if !errors.As(err, &apiErr) {
			return nil, fmt.Errorf("failed to charge authorization: %w", err)
		}
		if !apiErr.DuplicateReference() {
			return nil, s.recordFailedAttempt(ctx, failure, apiErr.Message, log)
		}

		log.Info("Retry reference already used, checking earlier attempt")
		data, err = s.provider.VerifyTransaction(ctx, reference)
		if err != nil {
			return nil, fmt.Errorf("failed to verify earlier retry attempt: %w", err)
		}
	}
	if !data.Successful() {
		return nil, s.recordFailedAttempt(ctx, failure, gatewayMessage(data, "Charge failed"), log)
	}

	amount := failure.Amount
	if data.Amount > 0 {
		amount = utils.ToMajor(data.Amount)
	}
	if data.Reference != "" {
		reference = data.Reference
	}

	txn := newDeposit(user, amount, reference, "retry", data)
	txn.Metadata["failureId"] = failure.ID.String()
	if err := s.repo.ResolveFailure(ctx, failure.ID, txn, s.now()); err != nil {
		if errors.Is(err, repository.ErrFailureNotFound) {
			return nil, ErrAlreadyResolved
		}
		return nil, fmt.Errorf("failed to resolve payment failure: %w", err)
	}

	log.WithField("amount", txn.Amount.StringFixed(2)).Info("Payment retry succeeded")
	s.notifyRetrySucceeded(ctx, failure.ID, txn)

	return &RetryResult{
		Message:       "Payment retry successful",
		Amount:        txn.Amount,
		TransactionID: txn.ID,
	}, nil
}

func (s *Service) notifyRetrySucceeded(ctx context.Context, failureID uuid.UUID, txn *models.Transaction) {
	s.notify(ctx, notify.Message{
		UserID:  txn.UserID,
		Type:    models.NotificationGeneral,
		Title:   "Payment Retry Successful",
		Message: fmt.Sprintf("Your payment of %s went through on retry and has been added to your balance.", txn.Amount.StringFixed(2)),
		RelatedData: map[string]any{
			"failureId":     failureID.String(),
			"transactionId": txn.ID,
			"amount":        txn.Amount.InexactFloat64(),
		},
		ActionURL: "/dashboard/transactions",
	})
}

func retryReference(failureID uuid.UUID, attempt int) string {
	return fmt.Sprintf("%s%s-%d", retryReferencePrefix, failureID, attempt)
}

// failureFromReference extracts the failure id from a retry charge reference.
func failureFromReference(reference string) (uuid.UUID, bool) {
	rest, ok := strings.CutPrefix(reference, retryReferencePrefix)
	if !ok {
		return uuid.Nil, false
	}
	i := strings.LastIndex(rest, "-")
	if i < 0 {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(rest[:i])
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}

// recordFailedAttempt persists a declined retry and returns the gateway reason
// as the caller's error.
func (s *Service) recordFailedAttempt(ctx context.Context, failure *models.PaymentFailure, reason string, log *logrus.Entry) error {
	if reason == "" {
		reason = "Charge failed"
	}
	next := s.now().Add(models.RetryInterval)
	if err := s.repo.RecordRetryFailure(ctx, failure.ID, reason, next); err != nil {
		return fmt.Errorf("failed to record retry attempt: %w", err)
	}

	failure.RetryCount++
	failure.Reason = reason
	failure.NextRetryDate = next
	log.WithField("reason", reason).Info("Payment retry declined")

	if failure.Exhausted() {
		if s.alerter != nil {
			s.alerter.RetriesExhausted(ctx, failure)
		}
		s.notify(ctx, notify.Message{
			UserID:  failure.UserID,
			Type:    models.NotificationGeneral,
			Title:   "Payment Retry Failed",
			Message: fmt.Sprintf("We could not collect your payment of %s after %d attempts. Please contact support.", failure.Amount.StringFixed(2), failure.RetryCount),
			RelatedData: map[string]any{
				"failureId": failure.ID.String(),
				"reason":    reason,
			},
			ActionURL: "/dashboard/payments",
		})
	}

	return &ProviderError{Message: reason}
}
