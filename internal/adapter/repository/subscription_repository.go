package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/upscalehq/payment-service/internal/domain/model"
	domainRepo "github.com/upscalehq/payment-service/internal/domain/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type subscriptionRepository struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewSubscriptionRepository creates a subscription store backed by GORM.
func NewSubscriptionRepository(db *gorm.DB, logger *zap.Logger) domainRepo.SubscriptionRepository {
	return &subscriptionRepository{
		db:     db,
		logger: logger,
	}
}

// Upsert creates or replaces the row keyed by stripe_subscription_id.
func (r *subscriptionRepository) Upsert(ctx context.Context, sub *model.Subscription) error {
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "stripe_subscription_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"user_id",
				"stripe_customer_id",
				"price_id",
				"plan_key",
				"status",
				"current_period_start",
				"current_period_end",
				"cancel_at_period_end",
				"canceled_at",
				"updated_at",
			}),
		}).
		Create(sub).Error
	if err != nil {
		r.logger.Error("Failed to upsert subscription",
			zap.String("stripe_subscription_id", sub.StripeSubscriptionID),
			zap.Error(err))
		return fmt.Errorf("failed to upsert subscription: %w", err)
	}
	return nil
}

// MarkCanceled sets the canceled status and timestamp. A missing row is not
// an error; the deletion event may arrive before the create was ever seen.
func (r *subscriptionRepository) MarkCanceled(ctx context.Context, stripeSubscriptionID string, at time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&model.Subscription{}).
		Where("stripe_subscription_id = ?", stripeSubscriptionID).
		Updates(map[string]interface{}{
			"status":      "canceled",
			"canceled_at": &at,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to mark subscription canceled: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		r.logger.Warn("Cancellation for unknown subscription",
			zap.String("stripe_subscription_id", stripeSubscriptionID))
	}
	return nil
}

func (r *subscriptionRepository) GetByStripeSubscriptionID(ctx context.Context, stripeSubscriptionID string) (*model.Subscription, error) {
	var sub model.Subscription
	err := r.db.WithContext(ctx).
		Where("stripe_subscription_id = ?", stripeSubscriptionID).
		First(&sub).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get subscription: %w", err)
	}
	return &sub, nil
}
