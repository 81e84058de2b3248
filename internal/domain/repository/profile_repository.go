package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/upscalehq/payment-service/internal/domain/model"
)

// ProfileRepository resolves and mutates the subscription fields of user
// profiles. Only the fields this service owns are ever written.
type ProfileRepository interface {
	// GetByStripeCustomerID returns nil, nil when no profile matches; the
	// profile may legitimately not exist yet due to signup/webhook ordering.
	GetByStripeCustomerID(ctx context.Context, customerID string) (*model.UserProfile, error)

	GetByID(ctx context.Context, userID uuid.UUID) (*model.UserProfile, error)

	// AttachStripeCustomer links a Stripe customer id to a profile that was
	// resolved out of band (checkout client_reference_id).
	AttachStripeCustomer(ctx context.Context, userID uuid.UUID, customerID string) error

	// UpdateSubscriptionState writes the subscription status and tier.
	UpdateSubscriptionState(ctx context.Context, userID uuid.UUID, status model.SubscriptionState, tier string) error
}
