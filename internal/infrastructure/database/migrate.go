package database

import (
	"github.com/upscalehq/payment-service/internal/domain/model"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Migrate runs database migrations
func Migrate(db *gorm.DB, logger *zap.Logger) error {
	logger.Info("Running database migrations...")

	if err := createExtensions(db); err != nil {
		logger.Error("Failed to create extensions", zap.Error(err))
		return err
	}

	// Custom types must exist BEFORE auto-migrate references them
	if err := createCustomTypes(db); err != nil {
		logger.Error("Failed to create custom types", zap.Error(err))
		return err
	}

	err := db.AutoMigrate(
		&model.UserProfile{},
		&model.Subscription{},
		&model.CreditTransaction{},
		&model.WebhookEvent{},
	)
	if err != nil {
		logger.Error("Failed to run migrations", zap.Error(err))
		return err
	}

	if err := createCustomIndexes(db); err != nil {
		logger.Error("Failed to create custom indexes", zap.Error(err))
		return err
	}

	logger.Info("Database migrations completed successfully")
	return nil
}

// createExtensions creates required PostgreSQL extensions
func createExtensions(db *gorm.DB) error {
	return db.Exec(`CREATE EXTENSION IF NOT EXISTS "uuid-ossp"`).Error
}

// createCustomTypes creates the enum types the models map onto
func createCustomTypes(db *gorm.DB) error {
	var exists bool

	db.Raw(`SELECT EXISTS (SELECT 1 FROM pg_type WHERE typname = 'webhook_status')`).Scan(&exists)
	if !exists {
		if err := db.Exec(`CREATE TYPE webhook_status AS ENUM ('processing', 'completed', 'failed', 'unrecoverable')`).Error; err != nil {
			return err
		}
	}

	db.Raw(`SELECT EXISTS (SELECT 1 FROM pg_type WHERE typname = 'transaction_type')`).Scan(&exists)
	if !exists {
		if err := db.Exec(`CREATE TYPE transaction_type AS ENUM ('subscription', 'purchase', 'bonus', 'clawback')`).Error; err != nil {
			return err
		}
	}

	db.Raw(`SELECT EXISTS (SELECT 1 FROM pg_type WHERE typname = 'subscription_state')`).Scan(&exists)
	if !exists {
		if err := db.Exec(`CREATE TYPE subscription_state AS ENUM ('none', 'active', 'trialing', 'past_due', 'canceled')`).Error; err != nil {
			return err
		}
	}

	return nil
}

// createCustomIndexes creates custom indexes that GORM doesn't handle automatically
func createCustomIndexes(db *gorm.DB) error {
	// Clawback lookup path: grants by reference id
	if err := db.Exec(`CREATE INDEX IF NOT EXISTS idx_credit_transactions_reference ON credit_transactions (reference_id) WHERE reference_id IS NOT NULL`).Error; err != nil {
		return err
	}

	// Operator view of events still pending or needing attention
	if err := db.Exec(`CREATE INDEX IF NOT EXISTS idx_webhook_events_attention ON webhook_events (created_at) WHERE status IN ('processing', 'failed', 'unrecoverable')`).Error; err != nil {
		return err
	}

	return nil
}
