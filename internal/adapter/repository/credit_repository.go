package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	domainErrors "github.com/upscalehq/payment-service/internal/domain/errors"
	"github.com/upscalehq/payment-service/internal/domain/model"
	domainRepo "github.com/upscalehq/payment-service/internal/domain/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type creditRepository struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewCreditRepository creates a credit ledger backed by GORM.
func NewCreditRepository(db *gorm.DB, logger *zap.Logger) domainRepo.CreditRepository {
	return &creditRepository{
		db:     db,
		logger: logger,
	}
}

// IncrementCreditsWithLog applies a balance change and writes its ledger row
// in one transaction. The profile row is locked FOR UPDATE for the duration,
// so concurrent grants for the same user serialize and balance_after is
// always consistent with the running balance.
//
// When referenceID is non-empty and a non-clawback transaction with the same
// reference already exists, the grant is a duplicate: the existing row is
// returned and nothing is written.
func (r *creditRepository) IncrementCreditsWithLog(
	ctx context.Context,
	userID uuid.UUID,
	amount decimal.Decimal,
	txType model.TransactionType,
	referenceID string,
	description string,
) (*model.UserProfile, *model.CreditTransaction, error) {
	var profile model.UserProfile
	var transaction model.CreditTransaction

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", userID).
			First(&profile).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return domainErrors.ErrProfileNotFound
			}
			return fmt.Errorf("failed to lock user profile: %w", err)
		}

		if referenceID != "" {
			var existing model.CreditTransaction
			err := tx.Where("user_id = ? AND reference_id = ? AND transaction_type <> ?",
				userID, referenceID, model.TransactionTypeClawback).
				First(&existing).Error
			if err == nil {
				r.logger.Info("Credit grant skipped, reference already recorded",
					zap.String("user_id", userID.String()),
					zap.String("reference_id", referenceID))
				transaction = existing
				return nil
			}
			if err != gorm.ErrRecordNotFound {
				return fmt.Errorf("failed to check reference id: %w", err)
			}
		}

		switch txType {
		case model.TransactionTypePurchase:
			profile.PurchasedCreditsBalance = profile.PurchasedCreditsBalance.Add(amount)
		default:
			profile.SubscriptionCreditsBalance = profile.SubscriptionCreditsBalance.Add(amount)
		}

		if err := tx.Model(&model.UserProfile{}).
			Where("id = ?", userID).
			Updates(map[string]interface{}{
				"subscription_credits_balance": profile.SubscriptionCreditsBalance,
				"purchased_credits_balance":    profile.PurchasedCreditsBalance,
			}).Error; err != nil {
			return fmt.Errorf("failed to update credit balance: %w", err)
		}

		transaction = model.CreditTransaction{
			UserID:          userID,
			TransactionType: txType,
			Amount:          amount,
			BalanceAfter:    profile.TotalCredits(),
			Description:     description,
			ReferenceID:     nilIfEmpty(referenceID),
		}
		if err := tx.Create(&transaction).Error; err != nil {
			return fmt.Errorf("failed to record credit transaction: %w", err)
		}

		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	return &profile, &transaction, nil
}

// ClawbackCreditsByReference reverses the credits granted under a reference
// id, net of any clawbacks already applied for the same reference. The
// balance decreases by exactly the net amount even when other grants happened
// in between for the same user.
func (r *creditRepository) ClawbackCreditsByReference(
	ctx context.Context,
	userID uuid.UUID,
	originalReferenceID string,
	reason string,
) (*domainRepo.ClawbackResult, error) {
	var result domainRepo.ClawbackResult

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var profile model.UserProfile
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", userID).
			First(&profile).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return domainErrors.ErrProfileNotFound
			}
			return fmt.Errorf("failed to lock user profile: %w", err)
		}

		var grants []model.CreditTransaction
		if err := tx.Where("user_id = ? AND reference_id = ? AND transaction_type <> ?",
			userID, originalReferenceID, model.TransactionTypeClawback).
			Find(&grants).Error; err != nil {
			return fmt.Errorf("failed to look up grants for reference: %w", err)
		}
		if len(grants) == 0 {
			return fmt.Errorf("%w: %s", domainErrors.ErrNoGrantForReference, originalReferenceID)
		}

		granted := decimal.Zero
		grantType := grants[0].TransactionType
		for _, g := range grants {
			granted = granted.Add(g.Amount)
		}

		var clawbacks []model.CreditTransaction
		if err := tx.Where("user_id = ? AND reference_id = ? AND transaction_type = ?",
			userID, originalReferenceID, model.TransactionTypeClawback).
			Find(&clawbacks).Error; err != nil {
			return fmt.Errorf("failed to look up prior clawbacks: %w", err)
		}

		alreadyClawed := decimal.Zero
		for _, c := range clawbacks {
			// Clawback rows carry negative amounts.
			alreadyClawed = alreadyClawed.Add(c.Amount.Neg())
		}

		toClaw := granted.Sub(alreadyClawed)
		if toClaw.LessThanOrEqual(decimal.Zero) {
			r.logger.Info("Clawback skipped, reference already fully reversed",
				zap.String("user_id", userID.String()),
				zap.String("reference_id", originalReferenceID))
			result = domainRepo.ClawbackResult{
				CreditsClawedBack: decimal.Zero,
				NewBalance:        profile.TotalCredits(),
			}
			return nil
		}

		switch grantType {
		case model.TransactionTypePurchase:
			profile.PurchasedCreditsBalance = profile.PurchasedCreditsBalance.Sub(toClaw)
		default:
			profile.SubscriptionCreditsBalance = profile.SubscriptionCreditsBalance.Sub(toClaw)
		}

		if err := tx.Model(&model.UserProfile{}).
			Where("id = ?", userID).
			Updates(map[string]interface{}{
				"subscription_credits_balance": profile.SubscriptionCreditsBalance,
				"purchased_credits_balance":    profile.PurchasedCreditsBalance,
			}).Error; err != nil {
			return fmt.Errorf("failed to update credit balance: %w", err)
		}

		clawbackTx := model.CreditTransaction{
			UserID:          userID,
			TransactionType: model.TransactionTypeClawback,
			Amount:          toClaw.Neg(),
			BalanceAfter:    profile.TotalCredits(),
			Description:     reason,
			ReferenceID:     &originalReferenceID,
		}
		if err := tx.Create(&clawbackTx).Error; err != nil {
			return fmt.Errorf("failed to record clawback transaction: %w", err)
		}

		result = domainRepo.ClawbackResult{
			CreditsClawedBack: toClaw,
			NewBalance:        profile.TotalCredits(),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	r.logger.Info("Clawback applied",
		zap.String("user_id", userID.String()),
		zap.String("reference_id", originalReferenceID),
		zap.String("credits_clawed_back", result.CreditsClawedBack.String()),
		zap.String("new_balance", result.NewBalance.String()))

	return &result, nil
}

// GetTransactionByReference returns the first non-clawback transaction
// recorded under a reference id, or nil when none exists.
func (r *creditRepository) GetTransactionByReference(ctx context.Context, referenceID string) (*model.CreditTransaction, error) {
	var transaction model.CreditTransaction
	err := r.db.WithContext(ctx).
		Where("reference_id = ? AND transaction_type <> ?",
			referenceID, model.TransactionTypeClawback).
		Order("created_at ASC").
		First(&transaction).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get transaction by reference: %w", err)
	}
	return &transaction, nil
}

// GetTransactionHistory returns a user's ledger, newest first.
func (r *creditRepository) GetTransactionHistory(ctx context.Context, userID uuid.UUID, limit int) ([]*model.CreditTransaction, error) {
	var transactions []*model.CreditTransaction

	query := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}

	if err := query.Find(&transactions).Error; err != nil {
		r.logger.Error("Failed to get transaction history",
			zap.String("user_id", userID.String()),
			zap.Error(err))
		return nil, fmt.Errorf("failed to get transaction history: %w", err)
	}

	return transactions, nil
}

func nilIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
