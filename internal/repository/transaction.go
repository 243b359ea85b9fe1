package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/Fi44er/community_payments/internal/models"
	"gorm.io/gorm"
)

func (r *Repository) GetTransactionByReference(ctx context.Context, userID uint, reference string) (*models.Transaction, error) {
	var txn models.Transaction
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND reference = ?", userID, reference).
		First(&txn).
		Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}

	return &txn, nil
}

// CreditBalance records a completed transaction and increments the owner's
// balance by its amount in one database transaction.
func (r *Repository) CreditBalance(ctx context.Context, txn *models.Transaction) error {
	return r.inTransaction(ctx, func(tx *gorm.DB) error {
		return r.credit(tx, txn)
	})
}

func (r *Repository) credit(tx *gorm.DB, txn *models.Transaction) error {
	if err := tx.Create(txn).Error; err != nil {
		if isDuplicate(err) {
			return fmt.Errorf("%w: %s", ErrDuplicateReference, txn.Reference)
		}
		return fmt.Errorf("failed to create transaction: %w", err)
	}

	res := tx.Model(&models.User{}).
		Where("id = ?", txn.UserID).
		UpdateColumn("balance", gorm.Expr("balance + ?", txn.Amount))
	if res.Error != nil {
		return fmt.Errorf("failed to increment balance: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: id %d", ErrUserNotFound, txn.UserID)
	}

	r.logger.Infof("Balance of user %d credited with %s (ref %s)", txn.UserID, txn.Amount.StringFixed(2), txn.Reference)
	return nil
}
