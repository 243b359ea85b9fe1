package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/Fi44er/community_payments/internal/models"
)

func (r *Repository) CreateNotification(ctx context.Context, n *models.Notification) error {
	if err := r.db.WithContext(ctx).Create(n).Error; err != nil {
		return fmt.Errorf("failed to create notification: %w", err)
	}
	return nil
}

func (r *Repository) ListNotifications(ctx context.Context, userID uint, unreadOnly bool, limit int) ([]models.Notification, error) {
	var notifications []models.Notification
	q := r.db.WithContext(ctx).Where("user_id = ?", userID)
	if unreadOnly {
		q = q.Where("read = ?", false)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}

	if err := q.Order("created_at DESC").Find(&notifications).Error; err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	return notifications, nil
}

func (r *Repository) CountUnreadNotifications(ctx context.Context, userID uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Notification{}).
		Where("user_id = ? AND read = ?", userID, false).
		Count(&count).
		Error
	if err != nil {
		return 0, fmt.Errorf("failed to count unread notifications: %w", err)
	}
	return count, nil
}

// MarkNotificationRead reports false when the notification does not exist for userID.
func (r *Repository) MarkNotificationRead(ctx context.Context, userID, id uint, at time.Time) (bool, error) {
	tx := r.db.WithContext(ctx).
		Model(&models.Notification{}).
		Where("id = ? AND user_id = ?", id, userID).
		Updates(map[string]any{"read": true, "read_at": at})
	if tx.Error != nil {
		return false, fmt.Errorf("failed to mark notification read: %w", tx.Error)
	}
	return tx.RowsAffected > 0, nil
}

func (r *Repository) MarkAllNotificationsRead(ctx context.Context, userID uint, at time.Time) (int64, error) {
	tx := r.db.WithContext(ctx).
		Model(&models.Notification{}).
		Where("user_id = ? AND read = ?", userID, false).
		Updates(map[string]any{"read": true, "read_at": at})
	if tx.Error != nil {
		return 0, fmt.Errorf("failed to mark notifications read: %w", tx.Error)
	}
	return tx.RowsAffected, nil
}

// DeleteReadNotificationsBefore purges read notifications whose read_at is older than cutoff.
func (r *Repository) DeleteReadNotificationsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tx := r.db.WithContext(ctx).
		Where("read = ? AND read_at < ?", true, cutoff).
		Delete(&models.Notification{})
	if tx.Error != nil {
		r.logger.Errorf("failed to clean up notifications: %v", tx.Error)
		return 0, fmt.Errorf("failed to clean up notifications: %w", tx.Error)
	}

	r.logger.Infof("Removed %d read notifications older than %s", tx.RowsAffected, cutoff.Format(time.RFC3339))
	return tx.RowsAffected, nil
}
