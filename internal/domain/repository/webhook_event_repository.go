package repository

import (
	"context"

	"github.com/upscalehq/payment-service/internal/domain/model"
)

// ClaimResult reports the outcome of an atomic webhook event claim.
type ClaimResult struct {
	// Claimed is true when this call inserted the row and owns processing.
	Claimed bool
	// ExistingStatus holds the stored status when Claimed is false.
	ExistingStatus model.WebhookEventStatus
}

// WebhookEventRepository is the event store: one row per provider event id,
// created atomically in `processing` state, finalized exactly once.
type WebhookEventRepository interface {
	// Claim inserts the event in `processing` state. A uniqueness conflict
	// means another delivery already claimed it; the stored status is
	// returned so the caller can report which state caused the skip.
	Claim(ctx context.Context, event *model.WebhookEvent) (ClaimResult, error)

	// MarkCompleted / MarkFailed / MarkUnrecoverable finalize a claimed
	// event. They only match rows still in `processing`; finalizing a row in
	// any other state returns ErrEventNotClaimable.
	MarkCompleted(ctx context.Context, stripeEventID string) error
	MarkFailed(ctx context.Context, stripeEventID string, processingErr error) error
	MarkUnrecoverable(ctx context.Context, stripeEventID string, reason string) error

	// ListRecent returns the newest events for operator inspection.
	ListRecent(ctx context.Context, limit int) ([]*model.WebhookEvent, error)
}
