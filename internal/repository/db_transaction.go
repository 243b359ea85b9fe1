package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"
)

// inTransaction runs fn inside a database transaction, rolling back on error or panic.
func (r *Repository) inTransaction(ctx context.Context, fn func(tx *gorm.DB) error) error {
	tx := r.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		r.logger.Errorf("Failed to start transaction: %v", tx.Error)
		return fmt.Errorf("failed to start transaction: %w", tx.Error)
	}

	defer func() {
		if p := recover(); p != nil {
			r.logger.Errorf("Panic in transaction, rolling back: %v", p)
			tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		r.logger.Debugf("Rolling back transaction: %v", err)
		tx.Rollback()
		return err
	}

	if err := tx.Commit().Error; err != nil {
		r.logger.Errorf("Failed to commit transaction: %v", err)
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
