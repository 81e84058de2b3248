package stripe

import (
	"context"
	"fmt"

	stripesdk "github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/subscription"
	"go.uber.org/zap"
)

// Client wraps the Stripe SDK calls the webhook processor needs.
type Client struct {
	logger *zap.Logger
}

// NewClient configures the SDK with the account's secret key and returns the
// API surface used for subscription re-fetches.
func NewClient(secretKey string, logger *zap.Logger) *Client {
	stripesdk.Key = secretKey
	return &Client{logger: logger}
}

// GetSubscription fetches a subscription with its items expanded so the
// caller can read the price id.
func (c *Client) GetSubscription(ctx context.Context, subscriptionID string) (*stripesdk.Subscription, error) {
	params := &stripesdk.SubscriptionParams{}
	params.Context = ctx
	params.AddExpand("items.data.price")

	sub, err := subscription.Get(subscriptionID, params)
	if err != nil {
		c.logger.Error("Failed to fetch subscription from Stripe",
			zap.String("subscription_id", subscriptionID),
			zap.Error(err))
		return nil, fmt.Errorf("failed to fetch subscription: %w", err)
	}
	return sub, nil
}
