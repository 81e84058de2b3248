package model

import (
	"time"

	"github.com/google/uuid"
)

// Subscription mirrors a Stripe subscription, keyed by the provider
// subscription id so out-of-order webhook deliveries upsert the same row.
type Subscription struct {
	ID                   int64      `gorm:"primaryKey;autoIncrement" json:"id"`
	StripeSubscriptionID string     `gorm:"unique;not null;size:100" json:"stripe_subscription_id"`
	UserID               uuid.UUID  `gorm:"type:uuid;not null;index" json:"user_id"`
	StripeCustomerID     string     `gorm:"not null;size:100;index" json:"stripe_customer_id"`
	PriceID              string     `gorm:"not null;size:100" json:"price_id"`
	PlanKey              string     `gorm:"size:50" json:"plan_key"`
	Status               string     `gorm:"not null;size:32" json:"status"`
	CurrentPeriodStart   time.Time  `gorm:"not null" json:"current_period_start"`
	CurrentPeriodEnd     time.Time  `gorm:"not null" json:"current_period_end"`
	CancelAtPeriodEnd    bool       `gorm:"default:false" json:"cancel_at_period_end"`
	CanceledAt           *time.Time `json:"canceled_at,omitempty"`
	CreatedAt            time.Time  `gorm:"default:now()" json:"created_at"`
	UpdatedAt            time.Time  `gorm:"default:now()" json:"updated_at"`
}

// TableName specifies the table name for GORM
func (Subscription) TableName() string {
	return "subscriptions"
}
