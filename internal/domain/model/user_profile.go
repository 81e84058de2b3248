package model

import (
	"database/sql/driver"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SubscriptionState represents a profile's subscription standing
type SubscriptionState string

const (
	SubscriptionStateNone     SubscriptionState = "none"
	SubscriptionStateActive   SubscriptionState = "active"
	SubscriptionStateTrialing SubscriptionState = "trialing"
	SubscriptionStatePastDue  SubscriptionState = "past_due"
	SubscriptionStateCanceled SubscriptionState = "canceled"
)

// Scan implements sql.Scanner interface
func (s *SubscriptionState) Scan(src interface{}) error {
	switch v := src.(type) {
	case string:
		*s = SubscriptionState(v)
	case []byte:
		*s = SubscriptionState(v)
	default:
		*s = SubscriptionStateNone
	}
	return nil
}

// Value implements driver.Valuer interface
func (s SubscriptionState) Value() (driver.Value, error) {
	return string(s), nil
}

// UserProfile holds the subscription and credit fields this service owns.
// The broader application owns the rest of the user record; webhook handlers
// only ever mutate the subscription state, tier and the two credit balances.
type UserProfile struct {
	ID                         uuid.UUID         `gorm:"type:uuid;primaryKey" json:"id"`
	StripeCustomerID           *string           `gorm:"unique;size:100;index" json:"stripe_customer_id,omitempty"`
	Email                      string            `gorm:"size:255" json:"email"`
	SubscriptionStatus         SubscriptionState `gorm:"type:subscription_state;not null;default:'none'" json:"subscription_status"`
	SubscriptionTier           string            `gorm:"size:100" json:"subscription_tier"`
	SubscriptionCreditsBalance decimal.Decimal   `gorm:"type:decimal(15,2);not null;default:0" json:"subscription_credits_balance"`
	PurchasedCreditsBalance    decimal.Decimal   `gorm:"type:decimal(15,2);not null;default:0" json:"purchased_credits_balance"`
	CreatedAt                  time.Time         `gorm:"default:now()" json:"created_at"`
	UpdatedAt                  time.Time         `gorm:"default:now()" json:"updated_at"`
}

// TotalCredits returns the combined spendable balance.
func (p *UserProfile) TotalCredits() decimal.Decimal {
	return p.SubscriptionCreditsBalance.Add(p.PurchasedCreditsBalance)
}

// TableName specifies the table name for GORM
func (UserProfile) TableName() string {
	return "user_profiles"
}
