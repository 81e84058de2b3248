package http

import (
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	domainErrors "github.com/upscalehq/payment-service/internal/domain/errors"
	"github.com/upscalehq/payment-service/internal/domain/repository"
	"go.uber.org/zap"
)

const defaultListLimit = 50

// AdminHandler serves the internal operator endpoints: recent webhook events
// and a user's credit ledger. Both sit behind JWT auth.
type AdminHandler struct {
	events   repository.WebhookEventRepository
	credits  repository.CreditRepository
	profiles repository.ProfileRepository
	logger   *zap.Logger
}

func NewAdminHandler(
	events repository.WebhookEventRepository,
	credits repository.CreditRepository,
	profiles repository.ProfileRepository,
	logger *zap.Logger,
) *AdminHandler {
	return &AdminHandler{
		events:   events,
		credits:  credits,
		profiles: profiles,
		logger:   logger,
	}
}

// ListWebhookEvents returns the newest webhook events.
func (h *AdminHandler) ListWebhookEvents(c echo.Context) error {
	limit := parseLimit(c.QueryParam("limit"))

	events, err := h.events.ListRecent(c.Request().Context(), limit)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to list events"})
	}

	return c.JSON(http.StatusOK, echo.Map{
		"events": events,
		"count":  len(events),
	})
}

// GetUserLedger returns a user's profile balances and transaction history.
func (h *AdminHandler) GetUserLedger(c echo.Context) error {
	userID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid user id"})
	}
	limit := parseLimit(c.QueryParam("limit"))

	ctx := c.Request().Context()
	profile, err := h.profiles.GetByID(ctx, userID)
	if err != nil {
		if err == domainErrors.ErrProfileNotFound {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "user not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load profile"})
	}

	transactions, err := h.credits.GetTransactionHistory(ctx, userID, limit)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load ledger"})
	}

	return c.JSON(http.StatusOK, echo.Map{
		"user_id":                      profile.ID,
		"subscription_status":          profile.SubscriptionStatus,
		"subscription_tier":            profile.SubscriptionTier,
		"subscription_credits_balance": profile.SubscriptionCreditsBalance,
		"purchased_credits_balance":    profile.PurchasedCreditsBalance,
		"total_credits":                profile.TotalCredits(),
		"transactions":                 transactions,
	})
}

func parseLimit(raw string) int {
	if raw == "" {
		return defaultListLimit
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 {
		return defaultListLimit
	}
	if limit > 500 {
		return 500
	}
	return limit
}
