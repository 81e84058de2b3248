package model

import (
	"database/sql/driver"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TransactionType represents the type of credit transaction
type TransactionType string

const (
	TransactionTypeSubscription TransactionType = "subscription"
	TransactionTypePurchase     TransactionType = "purchase"
	TransactionTypeBonus        TransactionType = "bonus"
	TransactionTypeClawback     TransactionType = "clawback"
)

// Scan implements sql.Scanner interface
func (t *TransactionType) Scan(src interface{}) error {
	switch v := src.(type) {
	case string:
		*t = TransactionType(v)
	case []byte:
		*t = TransactionType(v)
	default:
		return nil
	}
	return nil
}

// Value implements driver.Valuer interface
func (t TransactionType) Value() (driver.Value, error) {
	return string(t), nil
}

// CreditTransaction is one append-only ledger row. Every non-zero balance
// change produces exactly one row; ReferenceID correlates the row back to the
// Stripe object (invoice/session) that caused it so a later clawback can find
// and reverse it.
type CreditTransaction struct {
	ID              int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID          uuid.UUID       `gorm:"column:user_id;type:uuid;not null;index:idx_credit_transactions_user_created" json:"user_id"`
	TransactionType TransactionType `gorm:"type:transaction_type;not null" json:"transaction_type"`
	Amount          decimal.Decimal `gorm:"type:decimal(15,2);not null" json:"amount"`
	BalanceAfter    decimal.Decimal `gorm:"type:decimal(15,2);not null" json:"balance_after"`
	Description     string          `gorm:"not null" json:"description"`
	ReferenceID     *string         `gorm:"size:200;index:idx_credit_transactions_reference,where:reference_id IS NOT NULL" json:"reference_id,omitempty"`
	CreatedAt       time.Time       `gorm:"default:now();index:idx_credit_transactions_user_created" json:"created_at"`
}

// TableName specifies the table name for GORM
func (CreditTransaction) TableName() string {
	return "credit_transactions"
}
