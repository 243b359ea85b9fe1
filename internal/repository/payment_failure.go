package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Fi44er/community_payments/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

func (r *Repository) CreatePaymentFailure(ctx context.Context, failure *models.PaymentFailure) error {
	if err := r.db.WithContext(ctx).Create(failure).Error; err != nil {
		return fmt.Errorf("failed to create payment failure: %w", err)
	}
	return nil
}

// GetPaymentFailure loads a failure only if it belongs to userID.
func (r *Repository) GetPaymentFailure(ctx context.Context, id uuid.UUID, userID uint) (*models.PaymentFailure, error) {
	var failure models.PaymentFailure
	err := r.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		First(&failure).
		Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get payment failure %s: %w", id, err)
	}
	return &failure, nil
}

func (r *Repository) ListPendingFailures(ctx context.Context, userID uint) ([]models.PaymentFailure, error) {
	var failures []models.PaymentFailure
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND resolved = ? AND retry_count < max_retries", userID, false).
		Order("created_at DESC").
		Find(&failures).
		Error

	if err != nil {
		return nil, fmt.Errorf("failed to list pending failures: %w", err)
	}
	return failures, nil
}

// ListDueFailures returns unresolved recurring failures whose retry window has opened.
func (r *Repository) ListDueFailures(ctx context.Context, now time.Time, limit int) ([]models.PaymentFailure, error) {
	var failures []models.PaymentFailure
	err := r.db.WithContext(ctx).
		Where("type = ? AND resolved = ? AND retry_count < max_retries AND next_retry_date <= ?",
			models.FailureRecurring, false, now).
		Order("next_retry_date ASC").
		Limit(limit).
		Find(&failures).
		Error

	if err != nil {
		return nil, fmt.Errorf("failed to list due failures: %w", err)
	}
	return failures, nil
}

// RecordRetryFailure bumps retry_count by one. The guard on max_retries keeps
// the counter from overshooting when two retries race.
func (r *Repository) RecordRetryFailure(ctx context.Context, id uuid.UUID, reason string, nextRetry time.Time) error {
	tx := r.db.WithContext(ctx).
		Model(&models.PaymentFailure{}).
		Where("id = ? AND resolved = ? AND retry_count < max_retries", id, false).
		Updates(map[string]any{
			"retry_count":     gorm.Expr("retry_count + 1"),
			"reason":          reason,
			"next_retry_date": nextRetry,
		})

	if tx.Error != nil {
		return fmt.Errorf("failed to record retry failure: %w", tx.Error)
	}
	if tx.RowsAffected == 0 {
		return fmt.Errorf("%w: %s is resolved or exhausted", ErrFailureNotFound, id)
	}
	return nil
}

// ResolveFailure credits the recovered charge and closes the failure atomically.
// A charge already credited under the same reference closes the failure without
// a second credit, and txn is replaced by the stored row.
func (r *Repository) ResolveFailure(ctx context.Context, id uuid.UUID, txn *models.Transaction, resolvedAt time.Time) error {
	return r.inTransaction(ctx, func(tx *gorm.DB) error {
		res := tx.Model(&models.PaymentFailure{}).
			Where("id = ? AND resolved = ?", id, false).
			Updates(map[string]any{
				"resolved":    true,
				"resolved_at": resolvedAt,
			})
		if res.Error != nil {
			return fmt.Errorf("failed to resolve payment failure: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("%w: %s already resolved", ErrFailureNotFound, id)
		}

		var existing models.Transaction
		err := tx.Where("reference = ?", txn.Reference).
			Limit(1).
			Find(&existing).
			Error
		if err != nil {
			return fmt.Errorf("failed to look up transaction %s: %w", txn.Reference, err)
		}
		if existing.ID == 0 {
			return r.credit(tx, txn)
		}
		if existing.UserID != txn.UserID {
			return fmt.Errorf("%w: %s", ErrDuplicateReference, txn.Reference)
		}

		r.logger.Infof("Payment failure %s closed against credited transaction %d", id, existing.ID)
		*txn = existing
		return nil
	})
}
