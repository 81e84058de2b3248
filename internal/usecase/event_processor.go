package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v79"
	domainErrors "github.com/upscalehq/payment-service/internal/domain/errors"
	"github.com/upscalehq/payment-service/internal/domain/model"
	"github.com/upscalehq/payment-service/internal/domain/repository"
	"github.com/upscalehq/payment-service/internal/plan"
	"go.uber.org/zap"
)

// Outcome reports what a handler did with an event. A skipped outcome is not
// an error: the event is still finalized as completed, the reason is recorded
// for operators. Errors returned alongside a zero Outcome mean the event must
// be retried (marked failed, 500 to the provider).
type Outcome struct {
	Processed bool
	Reason    string
}

func processed() Outcome {
	return Outcome{Processed: true}
}

func skipped(reason string) Outcome {
	return Outcome{Processed: false, Reason: reason}
}

// StripeGateway is the slice of the Stripe API the processor needs: checkout
// sessions and invoices carry only a subscription id, the price id requires a
// re-fetch.
type StripeGateway interface {
	GetSubscription(ctx context.Context, subscriptionID string) (*stripe.Subscription, error)
}

// EventProcessor routes a verified, claimed webhook event to its handler.
// Dispatch is a closed switch over the event types this service supports;
// anything else returns ErrUnhandledEventType so the dispatcher can mark the
// event unrecoverable rather than failed.
type EventProcessor struct {
	profiles      repository.ProfileRepository
	subscriptions repository.SubscriptionRepository
	credits       repository.CreditRepository
	plans         *plan.Resolver
	stripeAPI     StripeGateway
	logger        *zap.Logger
}

func NewEventProcessor(
	profiles repository.ProfileRepository,
	subscriptions repository.SubscriptionRepository,
	credits repository.CreditRepository,
	plans *plan.Resolver,
	stripeAPI StripeGateway,
	logger *zap.Logger,
) *EventProcessor {
	return &EventProcessor{
		profiles:      profiles,
		subscriptions: subscriptions,
		credits:       credits,
		plans:         plans,
		stripeAPI:     stripeAPI,
		logger:        logger,
	}
}

// Process dispatches the event to its handler. Events without a data payload
// are rejected before dispatch: a handler panic after the claim would strand
// the row in `processing` and block every redelivery.
func (p *EventProcessor) Process(ctx context.Context, event stripe.Event) (Outcome, error) {
	if event.Data == nil || len(event.Data.Raw) == 0 {
		return Outcome{}, fmt.Errorf("event %s has no data payload", event.ID)
	}

	switch event.Type {
	case "checkout.session.completed":
		return p.handleCheckoutCompleted(ctx, event)
	case "customer.subscription.created", "customer.subscription.updated":
		return p.handleSubscriptionUpserted(ctx, event)
	case "customer.subscription.deleted":
		return p.handleSubscriptionDeleted(ctx, event)
	case "invoice.payment_succeeded":
		return p.handleInvoicePaymentSucceeded(ctx, event)
	case "invoice.payment_failed":
		return p.handleInvoicePaymentFailed(ctx, event)
	case "charge.refunded":
		return p.handleChargeRefunded(ctx, event)
	case "charge.dispute.created":
		return p.handleDisputeCreated(ctx, event)
	case "invoice.payment_refunded":
		return p.handleInvoicePaymentRefunded(ctx, event)
	default:
		return Outcome{}, fmt.Errorf("%w: %s", domainErrors.ErrUnhandledEventType, event.Type)
	}
}

// handleCheckoutCompleted grants the first month of credits after checkout.
// Subscription mode only; the product has no one-time purchases, so any other
// mode is logged and skipped. The reference id prefers the invoice id so a
// later refund of that invoice can claw the grant back.
func (p *EventProcessor) handleCheckoutCompleted(ctx context.Context, event stripe.Event) (Outcome, error) {
	var session stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
		return Outcome{}, fmt.Errorf("failed to parse checkout session: %w", err)
	}

	if session.Mode != stripe.CheckoutSessionModeSubscription {
		p.logger.Warn("Checkout session in unsupported mode",
			zap.String("session_id", session.ID),
			zap.String("mode", string(session.Mode)))
		return skipped(fmt.Sprintf("unsupported checkout mode %q", session.Mode)), nil
	}

	profile, err := p.resolveCheckoutProfile(ctx, &session)
	if err != nil {
		return Outcome{}, err
	}
	if profile == nil {
		p.logger.Warn("Checkout session matches no user profile",
			zap.String("session_id", session.ID),
			zap.String("client_reference_id", session.ClientReferenceID))
		return skipped("no user profile for checkout session"), nil
	}

	if session.Subscription == nil {
		return Outcome{}, fmt.Errorf("subscription-mode checkout session %s has no subscription", session.ID)
	}
	sub, err := p.stripeAPI.GetSubscription(ctx, session.Subscription.ID)
	if err != nil {
		return Outcome{}, fmt.Errorf("failed to fetch subscription %s: %w", session.Subscription.ID, err)
	}

	priceID := subscriptionPriceID(sub)
	descriptor, ok := p.plans.Resolve(priceID)
	if !ok {
		p.logger.Error("Checkout subscription has unknown price id",
			zap.String("session_id", session.ID),
			zap.String("price_id", priceID))
		return skipped(fmt.Sprintf("unknown price id %q", priceID)), nil
	}

	refID := "session_" + session.ID
	if session.Invoice != nil {
		refID = "invoice_" + session.Invoice.ID
	}

	// The first-month grant is uncapped: a fresh subscriber has no rollover
	// balance to cap against.
	amount := decimal.NewFromInt(int64(descriptor.CreditsPerMonth))
	_, _, err = p.credits.IncrementCreditsWithLog(ctx, profile.ID, amount,
		model.TransactionTypeSubscription, refID,
		fmt.Sprintf("Initial subscription credits (%s)", descriptor.Name))
	if err != nil {
		return Outcome{}, fmt.Errorf("failed to grant checkout credits: %w", err)
	}

	p.logger.Info("Checkout completed, credits granted",
		zap.String("user_id", profile.ID.String()),
		zap.String("plan", descriptor.Key),
		zap.String("reference_id", refID),
		zap.String("amount", amount.String()))

	return processed(), nil
}

// resolveCheckoutProfile finds the profile a checkout session belongs to:
// first by the Stripe customer id, then by the session's client_reference_id
// (our user id, set when the checkout was created). A client_reference_id hit
// also backfills the customer id onto the profile.
func (p *EventProcessor) resolveCheckoutProfile(ctx context.Context, session *stripe.CheckoutSession) (*model.UserProfile, error) {
	if session.Customer != nil {
		profile, err := p.profiles.GetByStripeCustomerID(ctx, session.Customer.ID)
		if err != nil {
			return nil, err
		}
		if profile != nil {
			return profile, nil
		}
	}

	if session.ClientReferenceID == "" {
		return nil, nil
	}
	userID, err := uuid.Parse(session.ClientReferenceID)
	if err != nil {
		p.logger.Warn("Checkout client_reference_id is not a user id",
			zap.String("session_id", session.ID),
			zap.String("client_reference_id", session.ClientReferenceID))
		return nil, nil
	}

	profile, err := p.profiles.GetByID(ctx, userID)
	if err != nil {
		if err == domainErrors.ErrProfileNotFound {
			return nil, nil
		}
		return nil, err
	}

	if session.Customer != nil {
		if err := p.profiles.AttachStripeCustomer(ctx, profile.ID, session.Customer.ID); err != nil {
			return nil, fmt.Errorf("failed to attach stripe customer: %w", err)
		}
	}
	return profile, nil
}

// handleSubscriptionUpserted mirrors a created/updated subscription locally
// and moves the profile's subscription state. An unknown price id writes
// nothing: upserting a row for a plan we cannot resolve would let an
// unconfigured price silently grant a tier.
func (p *EventProcessor) handleSubscriptionUpserted(ctx context.Context, event stripe.Event) (Outcome, error) {
	var sub stripe.Subscription
	if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
		return Outcome{}, fmt.Errorf("failed to parse subscription: %w", err)
	}

	customerID := stripeCustomerID(sub.Customer)
	profile, err := p.profiles.GetByStripeCustomerID(ctx, customerID)
	if err != nil {
		return Outcome{}, err
	}
	if profile == nil {
		p.logger.Warn("Subscription event for unknown customer",
			zap.String("subscription_id", sub.ID),
			zap.String("customer_id", customerID))
		return skipped("no user profile for customer"), nil
	}

	priceID := subscriptionPriceID(&sub)
	descriptor, ok := p.plans.Resolve(priceID)
	if !ok {
		p.logger.Error("Subscription has unknown price id, not mirrored",
			zap.String("subscription_id", sub.ID),
			zap.String("price_id", priceID),
			zap.Strings("known_price_ids", p.plans.PriceIDs()))
		return skipped(fmt.Sprintf("unknown price id %q", priceID)), nil
	}

	record := &model.Subscription{
		StripeSubscriptionID: sub.ID,
		UserID:               profile.ID,
		StripeCustomerID:     customerID,
		PriceID:              priceID,
		PlanKey:              descriptor.Key,
		Status:               string(sub.Status),
		CurrentPeriodStart:   time.Unix(sub.CurrentPeriodStart, 0),
		CurrentPeriodEnd:     time.Unix(sub.CurrentPeriodEnd, 0),
		CancelAtPeriodEnd:    sub.CancelAtPeriodEnd,
	}
	if sub.CanceledAt > 0 {
		t := time.Unix(sub.CanceledAt, 0)
		record.CanceledAt = &t
	}
	if err := p.subscriptions.Upsert(ctx, record); err != nil {
		return Outcome{}, err
	}

	state := mapSubscriptionState(sub.Status)
	if err := p.profiles.UpdateSubscriptionState(ctx, profile.ID, state, descriptor.Name); err != nil {
		return Outcome{}, err
	}

	p.logger.Info("Subscription mirrored",
		zap.String("subscription_id", sub.ID),
		zap.String("user_id", profile.ID.String()),
		zap.String("plan", descriptor.Key),
		zap.String("state", string(state)))

	return processed(), nil
}

// handleSubscriptionDeleted marks the local subscription canceled and moves
// the profile to canceled. The subscription row is updated even when the
// profile is missing; the deletion may be the only event we ever see.
func (p *EventProcessor) handleSubscriptionDeleted(ctx context.Context, event stripe.Event) (Outcome, error) {
	var sub stripe.Subscription
	if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
		return Outcome{}, fmt.Errorf("failed to parse subscription: %w", err)
	}

	canceledAt := time.Now()
	if sub.CanceledAt > 0 {
		canceledAt = time.Unix(sub.CanceledAt, 0)
	}
	if err := p.subscriptions.MarkCanceled(ctx, sub.ID, canceledAt); err != nil {
		return Outcome{}, err
	}

	customerID := stripeCustomerID(sub.Customer)
	profile, err := p.profiles.GetByStripeCustomerID(ctx, customerID)
	if err != nil {
		return Outcome{}, err
	}
	if profile == nil {
		p.logger.Warn("Subscription deletion for unknown customer",
			zap.String("subscription_id", sub.ID),
			zap.String("customer_id", customerID))
		return skipped("no user profile for customer"), nil
	}

	if err := p.profiles.UpdateSubscriptionState(ctx, profile.ID, model.SubscriptionStateCanceled, profile.SubscriptionTier); err != nil {
		return Outcome{}, err
	}

	p.logger.Info("Subscription canceled",
		zap.String("subscription_id", sub.ID),
		zap.String("user_id", profile.ID.String()))

	return processed(), nil
}

// handleInvoicePaymentSucceeded grants renewal credits, capped by the plan's
// rollover limit. The first invoice of a subscription shares its reference id
// with the checkout grant, so the ledger's dedup prevents a double grant.
func (p *EventProcessor) handleInvoicePaymentSucceeded(ctx context.Context, event stripe.Event) (Outcome, error) {
	var invoice stripe.Invoice
	if err := json.Unmarshal(event.Data.Raw, &invoice); err != nil {
		return Outcome{}, fmt.Errorf("failed to parse invoice: %w", err)
	}

	if invoice.Subscription == nil {
		p.logger.Warn("Invoice without subscription, nothing to grant",
			zap.String("invoice_id", invoice.ID))
		return skipped("invoice not tied to a subscription"), nil
	}

	customerID := stripeCustomerID(invoice.Customer)
	profile, err := p.profiles.GetByStripeCustomerID(ctx, customerID)
	if err != nil {
		return Outcome{}, err
	}
	if profile == nil {
		p.logger.Warn("Invoice for unknown customer",
			zap.String("invoice_id", invoice.ID),
			zap.String("customer_id", customerID))
		return skipped("no user profile for customer"), nil
	}

	// The invoice line carries the price that was actually billed; the
	// subscription's current price may already have changed. Re-fetch only
	// when the line has no price.
	priceID := invoiceLinePriceID(&invoice)
	if priceID == "" {
		sub, err := p.stripeAPI.GetSubscription(ctx, invoice.Subscription.ID)
		if err != nil {
			return Outcome{}, fmt.Errorf("failed to fetch subscription %s: %w", invoice.Subscription.ID, err)
		}
		priceID = subscriptionPriceID(sub)
	}
	descriptor, ok := p.plans.Resolve(priceID)
	if !ok {
		p.logger.Error("Invoice subscription has unknown price id",
			zap.String("invoice_id", invoice.ID),
			zap.String("price_id", priceID))
		return skipped(fmt.Sprintf("unknown price id %q", priceID)), nil
	}

	grant, capApplied := cappedGrant(profile.SubscriptionCreditsBalance, descriptor)
	if grant.IsZero() {
		p.logger.Info("Renewal grant fully forfeited at rollover cap",
			zap.String("user_id", profile.ID.String()),
			zap.String("invoice_id", invoice.ID),
			zap.String("balance", profile.SubscriptionCreditsBalance.String()),
			zap.Int("max_rollover", descriptor.MaxRollover))
		return processed(), nil
	}

	description := fmt.Sprintf("Monthly subscription credits (%s)", descriptor.Name)
	if capApplied {
		description = fmt.Sprintf("Monthly subscription credits (%s, capped at rollover limit)", descriptor.Name)
	}

	refID := "invoice_" + invoice.ID
	_, _, err = p.credits.IncrementCreditsWithLog(ctx, profile.ID, grant,
		model.TransactionTypeSubscription, refID, description)
	if err != nil {
		return Outcome{}, fmt.Errorf("failed to grant renewal credits: %w", err)
	}

	p.logger.Info("Renewal credits granted",
		zap.String("user_id", profile.ID.String()),
		zap.String("plan", descriptor.Key),
		zap.String("reference_id", refID),
		zap.String("amount", grant.String()),
		zap.Bool("cap_applied", capApplied))

	return processed(), nil
}

// cappedGrant computes how many credits a renewal may add: the monthly grant,
// reduced so the balance never exceeds the plan's rollover cap, floored at
// zero when the balance already sits at or above the cap.
func cappedGrant(balance decimal.Decimal, descriptor plan.Descriptor) (decimal.Decimal, bool) {
	monthly := decimal.NewFromInt(int64(descriptor.CreditsPerMonth))
	headroom := decimal.NewFromInt(int64(descriptor.MaxRollover)).Sub(balance)
	if headroom.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero, true
	}
	if headroom.LessThan(monthly) {
		return headroom, true
	}
	return monthly, false
}

// handleInvoicePaymentFailed moves the profile to past_due. Credits are not
// touched; Stripe's dunning cycle decides whether the subscription survives.
func (p *EventProcessor) handleInvoicePaymentFailed(ctx context.Context, event stripe.Event) (Outcome, error) {
	var invoice stripe.Invoice
	if err := json.Unmarshal(event.Data.Raw, &invoice); err != nil {
		return Outcome{}, fmt.Errorf("failed to parse invoice: %w", err)
	}

	customerID := stripeCustomerID(invoice.Customer)
	profile, err := p.profiles.GetByStripeCustomerID(ctx, customerID)
	if err != nil {
		return Outcome{}, err
	}
	if profile == nil {
		p.logger.Warn("Failed invoice for unknown customer",
			zap.String("invoice_id", invoice.ID),
			zap.String("customer_id", customerID))
		return skipped("no user profile for customer"), nil
	}

	if err := p.profiles.UpdateSubscriptionState(ctx, profile.ID, model.SubscriptionStatePastDue, profile.SubscriptionTier); err != nil {
		return Outcome{}, err
	}

	p.logger.Info("Profile marked past_due after failed invoice",
		zap.String("user_id", profile.ID.String()),
		zap.String("invoice_id", invoice.ID))

	return processed(), nil
}

// handleChargeRefunded claws back the credits granted for the refunded
// charge's invoice. Unlike the other handlers, every failure here propagates:
// a user keeping credits after a refund is a financial-integrity defect, so
// the event must be retried until the clawback lands.
func (p *EventProcessor) handleChargeRefunded(ctx context.Context, event stripe.Event) (Outcome, error) {
	var charge stripe.Charge
	if err := json.Unmarshal(event.Data.Raw, &charge); err != nil {
		return Outcome{}, fmt.Errorf("failed to parse charge: %w", err)
	}

	if charge.Invoice == nil {
		p.logger.Info("Refunded charge has no invoice, nothing to claw back",
			zap.String("charge_id", charge.ID))
		return skipped("charge not tied to an invoice"), nil
	}

	refID := "invoice_" + charge.Invoice.ID

	customerID := stripeCustomerID(charge.Customer)
	profile, err := p.profiles.GetByStripeCustomerID(ctx, customerID)
	if err != nil {
		return Outcome{}, domainErrors.NewClawbackError(refID, err)
	}
	if profile == nil {
		return Outcome{}, domainErrors.NewClawbackError(refID, domainErrors.ErrProfileNotFound)
	}

	result, err := p.credits.ClawbackCreditsByReference(ctx, profile.ID, refID,
		fmt.Sprintf("Refund of charge %s", charge.ID))
	if err != nil {
		return Outcome{}, domainErrors.NewClawbackError(refID, err)
	}

	p.logger.Info("Refund clawed back credits",
		zap.String("user_id", profile.ID.String()),
		zap.String("charge_id", charge.ID),
		zap.String("reference_id", refID),
		zap.String("credits_clawed_back", result.CreditsClawedBack.String()),
		zap.String("new_balance", result.NewBalance.String()))

	return processed(), nil
}

// handleDisputeCreated only records receipt for now.
// TODO: freeze the disputed credits once the dispute workflow is specified.
func (p *EventProcessor) handleDisputeCreated(ctx context.Context, event stripe.Event) (Outcome, error) {
	var dispute stripe.Dispute
	if err := json.Unmarshal(event.Data.Raw, &dispute); err != nil {
		return Outcome{}, fmt.Errorf("failed to parse dispute: %w", err)
	}

	p.logger.Warn("Dispute created, no automated handling yet",
		zap.String("dispute_id", dispute.ID),
		zap.String("reason", string(dispute.Reason)))
	return processed(), nil
}

// handleInvoicePaymentRefunded only records receipt; refunds are reconciled
// through charge.refunded.
func (p *EventProcessor) handleInvoicePaymentRefunded(ctx context.Context, event stripe.Event) (Outcome, error) {
	var invoice stripe.Invoice
	if err := json.Unmarshal(event.Data.Raw, &invoice); err != nil {
		return Outcome{}, fmt.Errorf("failed to parse invoice: %w", err)
	}

	p.logger.Warn("Invoice payment refunded, no automated handling yet",
		zap.String("invoice_id", invoice.ID))
	return processed(), nil
}

// subscriptionPriceID extracts the price id of the first subscription item.
// The product sells single-item subscriptions only.
func subscriptionPriceID(sub *stripe.Subscription) string {
	if sub == nil || sub.Items == nil || len(sub.Items.Data) == 0 {
		return ""
	}
	item := sub.Items.Data[0]
	if item.Price == nil {
		return ""
	}
	return item.Price.ID
}

// invoiceLinePriceID returns the price id billed on the invoice's first line,
// or "" when the lines carry no price.
func invoiceLinePriceID(inv *stripe.Invoice) string {
	if inv.Lines == nil || len(inv.Lines.Data) == 0 {
		return ""
	}
	line := inv.Lines.Data[0]
	if line.Price == nil {
		return ""
	}
	return line.Price.ID
}

func stripeCustomerID(c *stripe.Customer) string {
	if c == nil {
		return ""
	}
	return c.ID
}

// mapSubscriptionState translates Stripe's subscription status into the
// profile-level state the rest of the application keys feature access on.
func mapSubscriptionState(status stripe.SubscriptionStatus) model.SubscriptionState {
	switch status {
	case stripe.SubscriptionStatusActive:
		return model.SubscriptionStateActive
	case stripe.SubscriptionStatusTrialing:
		return model.SubscriptionStateTrialing
	case stripe.SubscriptionStatusPastDue, stripe.SubscriptionStatusUnpaid:
		return model.SubscriptionStatePastDue
	case stripe.SubscriptionStatusCanceled, stripe.SubscriptionStatusIncompleteExpired:
		return model.SubscriptionStateCanceled
	default:
		return model.SubscriptionStateNone
	}
}
