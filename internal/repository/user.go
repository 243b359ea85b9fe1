package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Fi44er/community_payments/internal/models"
	"gorm.io/gorm"
)

func (r *Repository) GetUserByID(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).First(&user, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get user %d: %w", id, err)
	}
	return &user, nil
}

func (r *Repository) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).
		Where("LOWER(email) = LOWER(?)", email).
		First(&user).
		Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user by email %s: %w", email, err)
	}

	return &user, nil
}

func (r *Repository) UpdateCustomerCode(ctx context.Context, userID uint, customerCode string) error {
	return r.updateUserColumns(ctx, userID, map[string]any{
		"payment_customer_code": customerCode,
	})
}

func (r *Repository) UpdateReservedAccount(ctx context.Context, userID uint, customerCode string, account models.ReservedAccount) error {
	assignedAt := time.Now()
	if account.AssignedAt != nil {
		assignedAt = *account.AssignedAt
	}

	columns := map[string]any{
		"payment_reserved_account_number": account.AccountNumber,
		"payment_reserved_bank_name":      account.BankName,
		"payment_reserved_account_name":   account.AccountName,
		"payment_reserved_assigned_at":    assignedAt,
	}
	if customerCode != "" {
		columns["payment_customer_code"] = customerCode
	}

	return r.updateUserColumns(ctx, userID, columns)
}

// UpdateRecurringPayment writes the whole recurring sub-object; balance is never touched.
func (r *Repository) UpdateRecurringPayment(ctx context.Context, userID uint, recurring models.RecurringPayment) error {
	return r.updateUserColumns(ctx, userID, map[string]any{
		"payment_recurring_amount":             recurring.Amount,
		"payment_recurring_plan_code":          recurring.PlanCode,
		"payment_recurring_subscription_code":  recurring.SubscriptionCode,
		"payment_recurring_authorization_code": recurring.AuthorizationCode,
		"payment_recurring_active":             recurring.Active,
	})
}

func (r *Repository) SetRecurringActive(ctx context.Context, userID uint, active bool) error {
	return r.updateUserColumns(ctx, userID, map[string]any{
		"payment_recurring_active": active,
	})
}

func (r *Repository) updateUserColumns(ctx context.Context, userID uint, columns map[string]any) error {
	tx := r.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", userID).
		Updates(columns)

	if tx.Error != nil {
		r.logger.Errorf("failed to update user %d: %v", userID, tx.Error)
		return fmt.Errorf("failed to update user: %w", tx.Error)
	}
	if tx.RowsAffected == 0 {
		return fmt.Errorf("%w: id %d", ErrUserNotFound, userID)
	}
	return nil
}
