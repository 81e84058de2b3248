package repository

import (
	"context"
	"fmt"
	"time"

	domainErrors "github.com/upscalehq/payment-service/internal/domain/errors"
	"github.com/upscalehq/payment-service/internal/domain/model"
	domainRepo "github.com/upscalehq/payment-service/internal/domain/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type webhookEventRepository struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewWebhookEventRepository creates a webhook event store backed by GORM.
func NewWebhookEventRepository(db *gorm.DB, logger *zap.Logger) domainRepo.WebhookEventRepository {
	return &webhookEventRepository{
		db:     db,
		logger: logger,
	}
}

// Claim inserts the event in `processing` state. The unique index on
// stripe_event_id is the single serialization point: across N concurrent
// deliveries of one event id exactly one insert takes effect, the rest see
// RowsAffected == 0 and read back the winner's status.
func (r *webhookEventRepository) Claim(ctx context.Context, event *model.WebhookEvent) (domainRepo.ClaimResult, error) {
	event.Status = model.WebhookStatusProcessing

	tx := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "stripe_event_id"}},
			DoNothing: true,
		}).
		Create(event)
	if tx.Error != nil {
		r.logger.Error("Failed to claim webhook event",
			zap.String("event_id", event.StripeEventID),
			zap.String("event_type", event.EventType),
			zap.Error(tx.Error))
		return domainRepo.ClaimResult{}, fmt.Errorf("failed to claim webhook event: %w", tx.Error)
	}

	if tx.RowsAffected > 0 {
		return domainRepo.ClaimResult{Claimed: true}, nil
	}

	var existing model.WebhookEvent
	err := r.db.WithContext(ctx).
		Where("stripe_event_id = ?", event.StripeEventID).
		First(&existing).Error
	if err != nil {
		r.logger.Error("Failed to read status of already-claimed event",
			zap.String("event_id", event.StripeEventID),
			zap.Error(err))
		return domainRepo.ClaimResult{}, fmt.Errorf("failed to read claimed event: %w", err)
	}

	return domainRepo.ClaimResult{Claimed: false, ExistingStatus: existing.Status}, nil
}

// MarkCompleted finalizes a claimed event as completed.
func (r *webhookEventRepository) MarkCompleted(ctx context.Context, stripeEventID string) error {
	now := time.Now()
	return r.finalize(ctx, stripeEventID, map[string]interface{}{
		"status":       model.WebhookStatusCompleted,
		"completed_at": &now,
	})
}

// MarkFailed finalizes a claimed event as failed with the handler error.
func (r *webhookEventRepository) MarkFailed(ctx context.Context, stripeEventID string, processingErr error) error {
	errMsg := ""
	if processingErr != nil {
		errMsg = processingErr.Error()
	}
	return r.finalize(ctx, stripeEventID, map[string]interface{}{
		"status":        model.WebhookStatusFailed,
		"error_message": &errMsg,
	})
}

// MarkUnrecoverable flags an event no handler covers. The provider is still
// acked with 200, so the row is the only trace for operators.
func (r *webhookEventRepository) MarkUnrecoverable(ctx context.Context, stripeEventID string, reason string) error {
	now := time.Now()
	return r.finalize(ctx, stripeEventID, map[string]interface{}{
		"status":        model.WebhookStatusUnrecoverable,
		"error_message": &reason,
		"completed_at":  &now,
	})
}

// finalize transitions a row out of `processing`. The WHERE guard makes
// terminal states immutable: a row already finalized matches nothing and the
// caller gets ErrEventNotClaimable instead of a silent double transition.
func (r *webhookEventRepository) finalize(ctx context.Context, stripeEventID string, updates map[string]interface{}) error {
	result := r.db.WithContext(ctx).
		Model(&model.WebhookEvent{}).
		Where("stripe_event_id = ? AND status = ?", stripeEventID, model.WebhookStatusProcessing).
		Updates(updates)

	if result.Error != nil {
		r.logger.Error("Failed to finalize webhook event",
			zap.String("event_id", stripeEventID),
			zap.Error(result.Error))
		return fmt.Errorf("failed to finalize webhook event: %w", result.Error)
	}

	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: %s", domainErrors.ErrEventNotClaimable, stripeEventID)
	}

	return nil
}

// ListRecent returns the newest events for operator inspection.
func (r *webhookEventRepository) ListRecent(ctx context.Context, limit int) ([]*model.WebhookEvent, error) {
	var events []*model.WebhookEvent

	query := r.db.WithContext(ctx).Order("created_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}

	if err := query.Find(&events).Error; err != nil {
		r.logger.Error("Failed to list webhook events", zap.Error(err))
		return nil, fmt.Errorf("failed to list webhook events: %w", err)
	}

	return events, nil
}
