package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	domainErrors "github.com/upscalehq/payment-service/internal/domain/errors"
	"github.com/upscalehq/payment-service/internal/domain/model"
	domainRepo "github.com/upscalehq/payment-service/internal/domain/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type profileRepository struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewProfileRepository creates a user profile store backed by GORM.
func NewProfileRepository(db *gorm.DB, logger *zap.Logger) domainRepo.ProfileRepository {
	return &profileRepository{
		db:     db,
		logger: logger,
	}
}

// GetByStripeCustomerID returns nil, nil on a miss; the profile may not exist
// yet when webhook delivery races the signup flow.
func (r *profileRepository) GetByStripeCustomerID(ctx context.Context, customerID string) (*model.UserProfile, error) {
	var profile model.UserProfile
	err := r.db.WithContext(ctx).
		Where("stripe_customer_id = ?", customerID).
		First(&profile).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get profile by customer id: %w", err)
	}
	return &profile, nil
}

func (r *profileRepository) GetByID(ctx context.Context, userID uuid.UUID) (*model.UserProfile, error) {
	var profile model.UserProfile
	err := r.db.WithContext(ctx).
		Where("id = ?", userID).
		First(&profile).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, domainErrors.ErrProfileNotFound
		}
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}
	return &profile, nil
}

// AttachStripeCustomer links a Stripe customer id to a profile resolved from
// a checkout session's client_reference_id.
func (r *profileRepository) AttachStripeCustomer(ctx context.Context, userID uuid.UUID, customerID string) error {
	result := r.db.WithContext(ctx).
		Model(&model.UserProfile{}).
		Where("id = ?", userID).
		Update("stripe_customer_id", customerID)
	if result.Error != nil {
		return fmt.Errorf("failed to attach stripe customer: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return domainErrors.ErrProfileNotFound
	}

	r.logger.Info("Attached Stripe customer to profile",
		zap.String("user_id", userID.String()),
		zap.String("customer_id", customerID))
	return nil
}

// UpdateSubscriptionState writes the subscription status and tier.
func (r *profileRepository) UpdateSubscriptionState(ctx context.Context, userID uuid.UUID, status model.SubscriptionState, tier string) error {
	result := r.db.WithContext(ctx).
		Model(&model.UserProfile{}).
		Where("id = ?", userID).
		Updates(map[string]interface{}{
			"subscription_status": status,
			"subscription_tier":   tier,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to update subscription state: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return domainErrors.ErrProfileNotFound
	}
	return nil
}
