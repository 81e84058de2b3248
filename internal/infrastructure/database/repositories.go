package database

import (
	"github.com/upscalehq/payment-service/internal/adapter/repository"
	domainRepo "github.com/upscalehq/payment-service/internal/domain/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Repositories holds all repository instances
type Repositories struct {
	WebhookEvents domainRepo.WebhookEventRepository
	Credits       domainRepo.CreditRepository
	Profiles      domainRepo.ProfileRepository
	Subscriptions domainRepo.SubscriptionRepository
}

// NewRepositories creates new repository instances with database connection
func NewRepositories(db *gorm.DB, logger *zap.Logger) *Repositories {
	return &Repositories{
		WebhookEvents: repository.NewWebhookEventRepository(db, logger),
		Credits:       repository.NewCreditRepository(db, logger),
		Profiles:      repository.NewProfileRepository(db, logger),
		Subscriptions: repository.NewSubscriptionRepository(db, logger),
	}
}
