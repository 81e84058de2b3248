package usecase_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v79"
	"go.uber.org/zap"

	domainErrors "github.com/upscalehq/payment-service/internal/domain/errors"
	"github.com/upscalehq/payment-service/internal/domain/model"
	"github.com/upscalehq/payment-service/internal/domain/repository"
	"github.com/upscalehq/payment-service/internal/plan"
	"github.com/upscalehq/payment-service/internal/usecase"
)

// MockProfileRepository is a mock implementation of ProfileRepository
type MockProfileRepository struct {
	mock.Mock
}

func (m *MockProfileRepository) GetByStripeCustomerID(ctx context.Context, customerID string) (*model.UserProfile, error) {
	args := m.Called(ctx, customerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.UserProfile), args.Error(1)
}

func (m *MockProfileRepository) GetByID(ctx context.Context, userID uuid.UUID) (*model.UserProfile, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.UserProfile), args.Error(1)
}

func (m *MockProfileRepository) AttachStripeCustomer(ctx context.Context, userID uuid.UUID, customerID string) error {
	args := m.Called(ctx, userID, customerID)
	return args.Error(0)
}

func (m *MockProfileRepository) UpdateSubscriptionState(ctx context.Context, userID uuid.UUID, status model.SubscriptionState, tier string) error {
	args := m.Called(ctx, userID, status, tier)
	return args.Error(0)
}

// MockSubscriptionRepository is a mock implementation of SubscriptionRepository
type MockSubscriptionRepository struct {
	mock.Mock
}

func (m *MockSubscriptionRepository) Upsert(ctx context.Context, sub *model.Subscription) error {
	args := m.Called(ctx, sub)
	return args.Error(0)
}

func (m *MockSubscriptionRepository) MarkCanceled(ctx context.Context, stripeSubscriptionID string, at time.Time) error {
	args := m.Called(ctx, stripeSubscriptionID, at)
	return args.Error(0)
}

func (m *MockSubscriptionRepository) GetByStripeSubscriptionID(ctx context.Context, stripeSubscriptionID string) (*model.Subscription, error) {
	args := m.Called(ctx, stripeSubscriptionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Subscription), args.Error(1)
}

// MockCreditRepository is a mock implementation of CreditRepository
type MockCreditRepository struct {
	mock.Mock
}

func (m *MockCreditRepository) IncrementCreditsWithLog(ctx context.Context, userID uuid.UUID, amount decimal.Decimal, txType model.TransactionType, referenceID string, description string) (*model.UserProfile, *model.CreditTransaction, error) {
	args := m.Called(ctx, userID, amount, txType, referenceID, description)
	if args.Get(0) == nil {
		return nil, nil, args.Error(2)
	}
	return args.Get(0).(*model.UserProfile), args.Get(1).(*model.CreditTransaction), args.Error(2)
}

func (m *MockCreditRepository) ClawbackCreditsByReference(ctx context.Context, userID uuid.UUID, originalReferenceID string, reason string) (*repository.ClawbackResult, error) {
	args := m.Called(ctx, userID, originalReferenceID, reason)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*repository.ClawbackResult), args.Error(1)
}

func (m *MockCreditRepository) GetTransactionByReference(ctx context.Context, referenceID string) (*model.CreditTransaction, error) {
	args := m.Called(ctx, referenceID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.CreditTransaction), args.Error(1)
}

func (m *MockCreditRepository) GetTransactionHistory(ctx context.Context, userID uuid.UUID, limit int) ([]*model.CreditTransaction, error) {
	args := m.Called(ctx, userID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.CreditTransaction), args.Error(1)
}

// MockStripeGateway is a mock implementation of StripeGateway
type MockStripeGateway struct {
	mock.Mock
}

func (m *MockStripeGateway) GetSubscription(ctx context.Context, subscriptionID string) (*stripe.Subscription, error) {
	args := m.Called(ctx, subscriptionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*stripe.Subscription), args.Error(1)
}

type processorMocks struct {
	profiles      *MockProfileRepository
	subscriptions *MockSubscriptionRepository
	credits       *MockCreditRepository
	gateway       *MockStripeGateway
}

func newProcessor(t *testing.T) (*usecase.EventProcessor, *processorMocks) {
	t.Helper()
	m := &processorMocks{
		profiles:      new(MockProfileRepository),
		subscriptions: new(MockSubscriptionRepository),
		credits:       new(MockCreditRepository),
		gateway:       new(MockStripeGateway),
	}
	p := usecase.NewEventProcessor(
		m.profiles, m.subscriptions, m.credits,
		plan.NewResolver(nil), m.gateway, zap.NewNop(),
	)
	return p, m
}

func newEvent(t *testing.T, eventType string, payload interface{}) stripe.Event {
	t.Helper()
	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	return stripe.Event{
		ID:   "evt_" + uuid.NewString(),
		Type: stripe.EventType(eventType),
		Data: &stripe.EventData{Raw: raw},
	}
}

func stripeSubscription(id, priceID string, status stripe.SubscriptionStatus) *stripe.Subscription {
	return &stripe.Subscription{
		ID:     id,
		Status: status,
		Items: &stripe.SubscriptionItemList{
			Data: []*stripe.SubscriptionItem{
				{Price: &stripe.Price{ID: priceID}},
			},
		},
	}
}

func amountEq(expected int64) interface{} {
	return mock.MatchedBy(func(d decimal.Decimal) bool {
		return d.Equal(decimal.NewFromInt(expected))
	})
}

func TestEventProcessor_InvoicePaymentSucceeded(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()

	invoicePayload := map[string]interface{}{
		"id":           "in_123",
		"customer":     "cus_1",
		"subscription": "sub_1",
	}

	t.Run("renewal grant capped by rollover limit", func(t *testing.T) {
		p, m := newProcessor(t)
		profile := &model.UserProfile{
			ID:                         userID,
			SubscriptionCreditsBalance: decimal.NewFromInt(5900),
		}
		m.profiles.On("GetByStripeCustomerID", ctx, "cus_1").Return(profile, nil)
		m.gateway.On("GetSubscription", ctx, "sub_1").
			Return(stripeSubscription("sub_1", "price_upscale_pro_monthly", stripe.SubscriptionStatusActive), nil)
		m.credits.On("IncrementCreditsWithLog", ctx, userID, amountEq(100),
			model.TransactionTypeSubscription, "invoice_in_123",
			mock.MatchedBy(func(desc string) bool {
				// the cap must be visible in the ledger description
				return strings.Contains(desc, "capped")
			})).
			Return(profile, &model.CreditTransaction{}, nil)

		outcome, err := p.Process(ctx, newEvent(t, "invoice.payment_succeeded", invoicePayload))

		require.NoError(t, err)
		assert.True(t, outcome.Processed)
		m.credits.AssertExpectations(t)
	})

	t.Run("grant fully forfeited at cap writes no ledger row", func(t *testing.T) {
		p, m := newProcessor(t)
		profile := &model.UserProfile{
			ID:                         userID,
			SubscriptionCreditsBalance: decimal.NewFromInt(6000),
		}
		m.profiles.On("GetByStripeCustomerID", ctx, "cus_1").Return(profile, nil)
		m.gateway.On("GetSubscription", ctx, "sub_1").
			Return(stripeSubscription("sub_1", "price_upscale_pro_monthly", stripe.SubscriptionStatusActive), nil)

		outcome, err := p.Process(ctx, newEvent(t, "invoice.payment_succeeded", invoicePayload))

		require.NoError(t, err)
		assert.True(t, outcome.Processed)
		m.credits.AssertNotCalled(t, "IncrementCreditsWithLog",
			mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("uncapped grant uses full monthly amount", func(t *testing.T) {
		p, m := newProcessor(t)
		profile := &model.UserProfile{
			ID:                         userID,
			SubscriptionCreditsBalance: decimal.NewFromInt(200),
		}
		m.profiles.On("GetByStripeCustomerID", ctx, "cus_1").Return(profile, nil)
		m.gateway.On("GetSubscription", ctx, "sub_1").
			Return(stripeSubscription("sub_1", "price_upscale_pro_monthly", stripe.SubscriptionStatusActive), nil)
		m.credits.On("IncrementCreditsWithLog", ctx, userID, amountEq(1000),
			model.TransactionTypeSubscription, "invoice_in_123", mock.Anything).
			Return(profile, &model.CreditTransaction{}, nil)

		outcome, err := p.Process(ctx, newEvent(t, "invoice.payment_succeeded", invoicePayload))

		require.NoError(t, err)
		assert.True(t, outcome.Processed)
		m.credits.AssertExpectations(t)
	})

	t.Run("plan resolved from the billed line item, not the current subscription", func(t *testing.T) {
		p, m := newProcessor(t)
		profile := &model.UserProfile{
			ID:                         userID,
			SubscriptionCreditsBalance: decimal.NewFromInt(0),
		}
		m.profiles.On("GetByStripeCustomerID", ctx, "cus_1").Return(profile, nil)
		// subscription already upgraded to pro; the invoice billed basic
		m.credits.On("IncrementCreditsWithLog", ctx, userID, amountEq(300),
			model.TransactionTypeSubscription, "invoice_in_123", mock.Anything).
			Return(profile, &model.CreditTransaction{}, nil)

		outcome, err := p.Process(ctx, newEvent(t, "invoice.payment_succeeded", map[string]interface{}{
			"id":           "in_123",
			"customer":     "cus_1",
			"subscription": "sub_1",
			"lines": map[string]interface{}{
				"data": []map[string]interface{}{
					{"price": map[string]interface{}{"id": "price_upscale_basic_monthly"}},
				},
			},
		}))

		require.NoError(t, err)
		assert.True(t, outcome.Processed)
		m.gateway.AssertNotCalled(t, "GetSubscription", mock.Anything, mock.Anything)
		m.credits.AssertExpectations(t)
	})

	t.Run("invoice without subscription is skipped", func(t *testing.T) {
		p, m := newProcessor(t)

		outcome, err := p.Process(ctx, newEvent(t, "invoice.payment_succeeded", map[string]interface{}{
			"id":       "in_oneoff",
			"customer": "cus_1",
		}))

		require.NoError(t, err)
		assert.False(t, outcome.Processed)
		assert.Contains(t, outcome.Reason, "not tied to a subscription")
		m.profiles.AssertNotCalled(t, "GetByStripeCustomerID", mock.Anything, mock.Anything)
	})

	t.Run("missing profile is a recoverable skip", func(t *testing.T) {
		p, m := newProcessor(t)
		m.profiles.On("GetByStripeCustomerID", ctx, "cus_1").Return(nil, nil)

		outcome, err := p.Process(ctx, newEvent(t, "invoice.payment_succeeded", invoicePayload))

		require.NoError(t, err)
		assert.False(t, outcome.Processed)
		assert.Contains(t, outcome.Reason, "no user profile")
	})
}

func TestEventProcessor_SubscriptionUpserted(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()

	subPayload := func(priceID string) map[string]interface{} {
		return map[string]interface{}{
			"id":       "sub_1",
			"customer": "cus_1",
			"status":   "active",
			"items": map[string]interface{}{
				"data": []map[string]interface{}{
					{"price": map[string]interface{}{"id": priceID}},
				},
			},
			"current_period_start": time.Now().Unix(),
			"current_period_end":   time.Now().Add(30 * 24 * time.Hour).Unix(),
		}
	}

	t.Run("mirrors subscription and moves profile to active tier", func(t *testing.T) {
		p, m := newProcessor(t)
		profile := &model.UserProfile{ID: userID}
		m.profiles.On("GetByStripeCustomerID", ctx, "cus_1").Return(profile, nil)
		m.subscriptions.On("Upsert", ctx, mock.MatchedBy(func(s *model.Subscription) bool {
			return s.StripeSubscriptionID == "sub_1" &&
				s.UserID == userID &&
				s.PlanKey == "pro" &&
				s.PriceID == "price_upscale_pro_monthly"
		})).Return(nil)
		m.profiles.On("UpdateSubscriptionState", ctx, userID, model.SubscriptionStateActive, "Pro").Return(nil)

		outcome, err := p.Process(ctx, newEvent(t, "customer.subscription.updated", subPayload("price_upscale_pro_monthly")))

		require.NoError(t, err)
		assert.True(t, outcome.Processed)
		m.subscriptions.AssertExpectations(t)
		m.profiles.AssertExpectations(t)
	})

	t.Run("unknown price id writes nothing", func(t *testing.T) {
		p, m := newProcessor(t)
		profile := &model.UserProfile{ID: userID}
		m.profiles.On("GetByStripeCustomerID", ctx, "cus_1").Return(profile, nil)

		outcome, err := p.Process(ctx, newEvent(t, "customer.subscription.updated", subPayload("price_never_configured")))

		require.NoError(t, err)
		assert.False(t, outcome.Processed)
		assert.Contains(t, outcome.Reason, "unknown price id")
		m.subscriptions.AssertNotCalled(t, "Upsert", mock.Anything, mock.Anything)
		m.profiles.AssertNotCalled(t, "UpdateSubscriptionState",
			mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("missing profile is a recoverable skip", func(t *testing.T) {
		p, m := newProcessor(t)
		m.profiles.On("GetByStripeCustomerID", ctx, "cus_1").Return(nil, nil)

		outcome, err := p.Process(ctx, newEvent(t, "customer.subscription.created", subPayload("price_upscale_pro_monthly")))

		require.NoError(t, err)
		assert.False(t, outcome.Processed)
		m.subscriptions.AssertNotCalled(t, "Upsert", mock.Anything, mock.Anything)
	})
}

func TestEventProcessor_SubscriptionDeleted(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()
	canceledAt := time.Now().Add(-time.Hour).Unix()

	payload := map[string]interface{}{
		"id":          "sub_1",
		"customer":    "cus_1",
		"status":      "canceled",
		"canceled_at": canceledAt,
	}

	t.Run("marks row and profile canceled", func(t *testing.T) {
		p, m := newProcessor(t)
		profile := &model.UserProfile{ID: userID, SubscriptionTier: "Pro"}
		m.subscriptions.On("MarkCanceled", ctx, "sub_1", time.Unix(canceledAt, 0)).Return(nil)
		m.profiles.On("GetByStripeCustomerID", ctx, "cus_1").Return(profile, nil)
		m.profiles.On("UpdateSubscriptionState", ctx, userID, model.SubscriptionStateCanceled, "Pro").Return(nil)

		outcome, err := p.Process(ctx, newEvent(t, "customer.subscription.deleted", payload))

		require.NoError(t, err)
		assert.True(t, outcome.Processed)
		m.subscriptions.AssertExpectations(t)
		m.profiles.AssertExpectations(t)
	})

	t.Run("row still canceled when profile is missing", func(t *testing.T) {
		p, m := newProcessor(t)
		m.subscriptions.On("MarkCanceled", ctx, "sub_1", time.Unix(canceledAt, 0)).Return(nil)
		m.profiles.On("GetByStripeCustomerID", ctx, "cus_1").Return(nil, nil)

		outcome, err := p.Process(ctx, newEvent(t, "customer.subscription.deleted", payload))

		require.NoError(t, err)
		assert.False(t, outcome.Processed)
		m.subscriptions.AssertExpectations(t)
	})
}

func TestEventProcessor_CheckoutCompleted(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()

	t.Run("grants first month uncapped with invoice reference", func(t *testing.T) {
		p, m := newProcessor(t)
		profile := &model.UserProfile{ID: userID}
		m.profiles.On("GetByStripeCustomerID", ctx, "cus_1").Return(profile, nil)
		m.gateway.On("GetSubscription", ctx, "sub_1").
			Return(stripeSubscription("sub_1", "price_upscale_pro_monthly", stripe.SubscriptionStatusActive), nil)
		m.credits.On("IncrementCreditsWithLog", ctx, userID, amountEq(1000),
			model.TransactionTypeSubscription, "invoice_in_1", mock.Anything).
			Return(profile, &model.CreditTransaction{}, nil)

		outcome, err := p.Process(ctx, newEvent(t, "checkout.session.completed", map[string]interface{}{
			"id":           "cs_1",
			"mode":         "subscription",
			"customer":     "cus_1",
			"subscription": "sub_1",
			"invoice":      "in_1",
		}))

		require.NoError(t, err)
		assert.True(t, outcome.Processed)
		m.credits.AssertExpectations(t)
	})

	t.Run("falls back to session reference without invoice", func(t *testing.T) {
		p, m := newProcessor(t)
		profile := &model.UserProfile{ID: userID}
		m.profiles.On("GetByStripeCustomerID", ctx, "cus_1").Return(profile, nil)
		m.gateway.On("GetSubscription", ctx, "sub_1").
			Return(stripeSubscription("sub_1", "price_upscale_basic_monthly", stripe.SubscriptionStatusActive), nil)
		m.credits.On("IncrementCreditsWithLog", ctx, userID, amountEq(300),
			model.TransactionTypeSubscription, "session_cs_1", mock.Anything).
			Return(profile, &model.CreditTransaction{}, nil)

		outcome, err := p.Process(ctx, newEvent(t, "checkout.session.completed", map[string]interface{}{
			"id":           "cs_1",
			"mode":         "subscription",
			"customer":     "cus_1",
			"subscription": "sub_1",
		}))

		require.NoError(t, err)
		assert.True(t, outcome.Processed)
		m.credits.AssertExpectations(t)
	})

	t.Run("resolves profile by client_reference_id and backfills customer", func(t *testing.T) {
		p, m := newProcessor(t)
		profile := &model.UserProfile{ID: userID}
		m.profiles.On("GetByStripeCustomerID", ctx, "cus_new").Return(nil, nil)
		m.profiles.On("GetByID", ctx, userID).Return(profile, nil)
		m.profiles.On("AttachStripeCustomer", ctx, userID, "cus_new").Return(nil)
		m.gateway.On("GetSubscription", ctx, "sub_1").
			Return(stripeSubscription("sub_1", "price_upscale_pro_monthly", stripe.SubscriptionStatusActive), nil)
		m.credits.On("IncrementCreditsWithLog", ctx, userID, amountEq(1000),
			model.TransactionTypeSubscription, "invoice_in_1", mock.Anything).
			Return(profile, &model.CreditTransaction{}, nil)

		outcome, err := p.Process(ctx, newEvent(t, "checkout.session.completed", map[string]interface{}{
			"id":                  "cs_1",
			"mode":                "subscription",
			"customer":            "cus_new",
			"subscription":        "sub_1",
			"invoice":             "in_1",
			"client_reference_id": userID.String(),
		}))

		require.NoError(t, err)
		assert.True(t, outcome.Processed)
		m.profiles.AssertExpectations(t)
		m.credits.AssertExpectations(t)
	})

	t.Run("non-subscription mode is rejected without processing", func(t *testing.T) {
		p, m := newProcessor(t)

		outcome, err := p.Process(ctx, newEvent(t, "checkout.session.completed", map[string]interface{}{
			"id":   "cs_payment",
			"mode": "payment",
		}))

		require.NoError(t, err)
		assert.False(t, outcome.Processed)
		assert.Contains(t, outcome.Reason, "unsupported checkout mode")
		m.credits.AssertNotCalled(t, "IncrementCreditsWithLog",
			mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestEventProcessor_InvoicePaymentFailed(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()

	t.Run("moves profile to past_due keeping the tier", func(t *testing.T) {
		p, m := newProcessor(t)
		profile := &model.UserProfile{ID: userID, SubscriptionTier: "Max"}
		m.profiles.On("GetByStripeCustomerID", ctx, "cus_1").Return(profile, nil)
		m.profiles.On("UpdateSubscriptionState", ctx, userID, model.SubscriptionStatePastDue, "Max").Return(nil)

		outcome, err := p.Process(ctx, newEvent(t, "invoice.payment_failed", map[string]interface{}{
			"id":       "in_fail",
			"customer": "cus_1",
		}))

		require.NoError(t, err)
		assert.True(t, outcome.Processed)
		m.profiles.AssertExpectations(t)
	})
}

func TestEventProcessor_ChargeRefunded(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()

	chargePayload := map[string]interface{}{
		"id":       "ch_1",
		"customer": "cus_1",
		"invoice":  "in_123",
		"refunded": true,
	}

	t.Run("claws back by invoice reference", func(t *testing.T) {
		p, m := newProcessor(t)
		profile := &model.UserProfile{ID: userID}
		m.profiles.On("GetByStripeCustomerID", ctx, "cus_1").Return(profile, nil)
		m.credits.On("ClawbackCreditsByReference", ctx, userID, "invoice_in_123", mock.Anything).
			Return(&repository.ClawbackResult{
				CreditsClawedBack: decimal.NewFromInt(1000),
				NewBalance:        decimal.NewFromInt(200),
			}, nil)

		outcome, err := p.Process(ctx, newEvent(t, "charge.refunded", chargePayload))

		require.NoError(t, err)
		assert.True(t, outcome.Processed)
		m.credits.AssertExpectations(t)
	})

	t.Run("clawback failure always propagates", func(t *testing.T) {
		p, m := newProcessor(t)
		profile := &model.UserProfile{ID: userID}
		m.profiles.On("GetByStripeCustomerID", ctx, "cus_1").Return(profile, nil)
		m.credits.On("ClawbackCreditsByReference", ctx, userID, "invoice_in_123", mock.Anything).
			Return(nil, fmt.Errorf("%w: invoice_in_123", domainErrors.ErrNoGrantForReference))

		_, err := p.Process(ctx, newEvent(t, "charge.refunded", chargePayload))

		require.Error(t, err)
		var clawbackErr *domainErrors.ClawbackError
		assert.True(t, errors.As(err, &clawbackErr))
		assert.True(t, errors.Is(err, domainErrors.ErrNoGrantForReference))
	})

	t.Run("missing profile propagates as clawback failure", func(t *testing.T) {
		p, m := newProcessor(t)
		m.profiles.On("GetByStripeCustomerID", ctx, "cus_1").Return(nil, nil)

		_, err := p.Process(ctx, newEvent(t, "charge.refunded", chargePayload))

		require.Error(t, err)
		assert.True(t, errors.Is(err, domainErrors.ErrProfileNotFound))
	})

	t.Run("charge without invoice is a no-op", func(t *testing.T) {
		p, m := newProcessor(t)

		outcome, err := p.Process(ctx, newEvent(t, "charge.refunded", map[string]interface{}{
			"id":       "ch_standalone",
			"customer": "cus_1",
			"refunded": true,
		}))

		require.NoError(t, err)
		assert.False(t, outcome.Processed)
		assert.Contains(t, outcome.Reason, "not tied to an invoice")
		m.credits.AssertNotCalled(t, "ClawbackCreditsByReference",
			mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestEventProcessor_MissingEventData(t *testing.T) {
	ctx := context.Background()

	t.Run("nil data payload is an error, not a panic", func(t *testing.T) {
		p, m := newProcessor(t)

		_, err := p.Process(ctx, stripe.Event{
			ID:   "evt_nodata",
			Type: "checkout.session.completed",
		})

		require.Error(t, err)
		assert.Contains(t, err.Error(), "no data payload")
		m.credits.AssertNotCalled(t, "IncrementCreditsWithLog",
			mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("empty raw payload is an error", func(t *testing.T) {
		p, _ := newProcessor(t)

		_, err := p.Process(ctx, stripe.Event{
			ID:   "evt_emptydata",
			Type: "invoice.payment_succeeded",
			Data: &stripe.EventData{},
		})

		require.Error(t, err)
		assert.Contains(t, err.Error(), "no data payload")
	})
}

func TestEventProcessor_UnhandledEventType(t *testing.T) {
	p, _ := newProcessor(t)

	_, err := p.Process(context.Background(), newEvent(t, "customer.updated", map[string]interface{}{
		"id": "cus_1",
	}))

	require.Error(t, err)
	assert.True(t, errors.Is(err, domainErrors.ErrUnhandledEventType))
}

func TestEventProcessor_Stubs(t *testing.T) {
	t.Run("dispute created only logs", func(t *testing.T) {
		p, m := newProcessor(t)

		outcome, err := p.Process(context.Background(), newEvent(t, "charge.dispute.created", map[string]interface{}{
			"id":     "dp_1",
			"reason": "fraudulent",
		}))

		require.NoError(t, err)
		assert.True(t, outcome.Processed)
		m.credits.AssertNotCalled(t, "ClawbackCreditsByReference",
			mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("invoice payment refunded only logs", func(t *testing.T) {
		p, m := newProcessor(t)

		outcome, err := p.Process(context.Background(), newEvent(t, "invoice.payment_refunded", map[string]interface{}{
			"id": "in_refunded",
		}))

		require.NoError(t, err)
		assert.True(t, outcome.Processed)
		m.credits.AssertNotCalled(t, "ClawbackCreditsByReference",
			mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})
}
