package model

import (
	"database/sql/driver"
	"encoding/json"
	"time"
)

// WebhookEventStatus represents the processing status of a webhook event
type WebhookEventStatus string

const (
	WebhookStatusProcessing    WebhookEventStatus = "processing"
	WebhookStatusCompleted     WebhookEventStatus = "completed"
	WebhookStatusFailed        WebhookEventStatus = "failed"
	WebhookStatusUnrecoverable WebhookEventStatus = "unrecoverable"
)

// IsTerminal reports whether the status permits no further transitions.
func (w WebhookEventStatus) IsTerminal() bool {
	switch w {
	case WebhookStatusCompleted, WebhookStatusFailed, WebhookStatusUnrecoverable:
		return true
	default:
		return false
	}
}

// Scan implements sql.Scanner interface
func (w *WebhookEventStatus) Scan(src interface{}) error {
	switch v := src.(type) {
	case string:
		*w = WebhookEventStatus(v)
	case []byte:
		*w = WebhookEventStatus(v)
	default:
		*w = WebhookStatusProcessing
	}
	return nil
}

// Value implements driver.Valuer interface
func (w WebhookEventStatus) Value() (driver.Value, error) {
	return string(w), nil
}

// WebhookEvent records one inbound Stripe event. A row is created in
// `processing` state by the atomic claim and transitioned exactly once to a
// terminal state; rows are never deleted (append-only audit trail).
type WebhookEvent struct {
	ID              int64              `gorm:"primaryKey;autoIncrement" json:"id"`
	StripeEventID   string             `gorm:"unique;not null;size:255;index" json:"stripe_event_id"`
	EventType       string             `gorm:"not null;size:100;index" json:"event_type"`
	Status          WebhookEventStatus `gorm:"type:webhook_status;default:'processing';index" json:"status"`
	Payload         JSONB              `gorm:"type:jsonb;not null" json:"payload"`
	ErrorMessage    *string            `json:"error_message,omitempty"`
	CompletedAt     *time.Time         `json:"completed_at,omitempty"`
	CreatedAt       time.Time          `gorm:"default:now()" json:"created_at"`
	StripeCreatedAt *time.Time         `json:"stripe_created_at,omitempty"`
}

// TableName specifies the table name for GORM
func (WebhookEvent) TableName() string {
	return "webhook_events"
}

// JSONB represents a JSONB database type
type JSONB map[string]interface{}

// Value implements driver.Valuer interface
func (j JSONB) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return json.Marshal(j)
}

// Scan implements sql.Scanner interface
func (j *JSONB) Scan(src interface{}) error {
	if src == nil {
		*j = nil
		return nil
	}

	switch v := src.(type) {
	case []byte:
		return json.Unmarshal(v, j)
	case string:
		return json.Unmarshal([]byte(v), j)
	default:
		*j = make(JSONB)
		return nil
	}
}
