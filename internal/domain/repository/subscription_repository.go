package repository

import (
	"context"
	"time"

	"github.com/upscalehq/payment-service/internal/domain/model"
)

// SubscriptionRepository stores the local mirror of Stripe subscriptions.
type SubscriptionRepository interface {
	// Upsert creates or replaces the row keyed by the Stripe subscription id.
	Upsert(ctx context.Context, sub *model.Subscription) error

	// MarkCanceled sets the canceled status and timestamp. Missing rows are
	// not an error; deletion events may arrive before the create was seen.
	MarkCanceled(ctx context.Context, stripeSubscriptionID string, at time.Time) error

	GetByStripeSubscriptionID(ctx context.Context, stripeSubscriptionID string) (*model.Subscription, error)
}
