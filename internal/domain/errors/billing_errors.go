package errors

import (
	"errors"
	"fmt"
)

var (
	// ErrUnhandledEventType indicates the event type has no registered handler.
	// The dispatcher marks such events unrecoverable instead of failed.
	ErrUnhandledEventType = errors.New("no handler registered for event type")

	// ErrProfileNotFound indicates no user profile matched a Stripe customer id
	ErrProfileNotFound = errors.New("no user profile found for customer")

	// ErrUnknownPlan indicates a price id with no entry in the plan table
	ErrUnknownPlan = errors.New("price id does not map to a known plan")

	// ErrNoGrantForReference indicates a clawback found no prior grant
	// transactions for the given reference id
	ErrNoGrantForReference = errors.New("no credit grant found for reference id")

	// ErrEventNotClaimable indicates a finalize transition matched no row in
	// `processing` state, which would leave the audit trail inconsistent
	ErrEventNotClaimable = errors.New("webhook event is not in processing state")
)

// ClawbackError wraps a failed credit clawback. It always propagates to the
// dispatcher as a hard failure: silently keeping credits after a refund is a
// financial-integrity defect.
type ClawbackError struct {
	ReferenceID string
	Err         error
}

func (e *ClawbackError) Error() string {
	return fmt.Sprintf("clawback failed for %s: %v", e.ReferenceID, e.Err)
}

func (e *ClawbackError) Unwrap() error {
	return e.Err
}

// NewClawbackError creates a ClawbackError for the given reference id.
func NewClawbackError(referenceID string, err error) *ClawbackError {
	return &ClawbackError{ReferenceID: referenceID, Err: err}
}
