package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/upscalehq/payment-service/internal/domain/model"
)

// ClawbackResult reports what an atomic clawback reversed.
type ClawbackResult struct {
	CreditsClawedBack decimal.Decimal
	NewBalance        decimal.Decimal
}

// CreditRepository provides the two atomic ledger operations the webhook
// handlers depend on. Both run as a single database transaction so the
// balance mutation and the ledger-row insert can never apply partially.
type CreditRepository interface {
	// IncrementCreditsWithLog adds amount to the user's balance and writes
	// the matching ledger row. When referenceID is non-empty and a row with
	// that reference already exists, the call is a no-op and returns the
	// existing transaction (ledger-level idempotency for webhook retries).
	IncrementCreditsWithLog(
		ctx context.Context,
		userID uuid.UUID,
		amount decimal.Decimal,
		txType model.TransactionType,
		referenceID string,
		description string,
	) (*model.UserProfile, *model.CreditTransaction, error)

	// ClawbackCreditsByReference reverses the credits granted under
	// originalReferenceID, netting out any earlier clawback for the same
	// reference so repeated refund deliveries never double-reverse. Returns
	// ErrNoGrantForReference when no grant rows exist for the reference.
	ClawbackCreditsByReference(
		ctx context.Context,
		userID uuid.UUID,
		originalReferenceID string,
		reason string,
	) (*ClawbackResult, error)

	// GetTransactionByReference returns the first ledger row recorded under
	// the reference id, or nil when none exists.
	GetTransactionByReference(ctx context.Context, referenceID string) (*model.CreditTransaction, error)

	// GetTransactionHistory returns the newest ledger rows for a user.
	GetTransactionHistory(ctx context.Context, userID uuid.UUID, limit int) ([]*model.CreditTransaction, error)
}
