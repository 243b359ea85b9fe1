package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/Fi44er/community_payments/internal/models"
)

func (r *Repository) CreateWebhookEvent(ctx context.Context, event *models.WebhookEvent) error {
	if err := r.db.WithContext(ctx).Create(event).Error; err != nil {
		return fmt.Errorf("failed to journal webhook event: %w", err)
	}
	return nil
}

func (r *Repository) MarkWebhookEventProcessed(ctx context.Context, id uint, processingErr error) error {
	columns := map[string]any{"processed_at": time.Now()}
	if processingErr != nil {
		columns = map[string]any{"processing_error": processingErr.Error()}
	}

	err := r.db.WithContext(ctx).
		Model(&models.WebhookEvent{}).
		Where("id = ?", id).
		Updates(columns).
		Error
	if err != nil {
		return fmt.Errorf("failed to update webhook event %d: %w", id, err)
	}
	return nil
}
