package http

import (
	"context"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	handlers "github.com/upscalehq/payment-service/internal/adapter/handler/http"
	"github.com/upscalehq/payment-service/internal/config"
	"github.com/upscalehq/payment-service/internal/infrastructure/database"
	stripeinfra "github.com/upscalehq/payment-service/internal/infrastructure/stripe"
	"github.com/upscalehq/payment-service/internal/middleware/auth"
	"github.com/upscalehq/payment-service/internal/plan"
	"github.com/upscalehq/payment-service/internal/usecase"
	"go.uber.org/zap"
)

type Server struct {
	config *config.Config
	logger *zap.Logger
	echo   *echo.Echo
	repos  *database.Repositories
	plans  *plan.Resolver
}

func NewServer(cfg *config.Config, logger *zap.Logger, repos *database.Repositories) *Server {
	e := echo.New()
	e.HideBanner = true

	// Middleware
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{cfg.Service.ClientURL},
		AllowMethods: []string{echo.GET, echo.POST},
	}))

	return &Server{
		config: cfg,
		logger: logger,
		echo:   e,
		repos:  repos,
		plans:  plan.NewResolver(planOverrides(cfg.Service.Plans)),
	}
}

func (s *Server) Start() error {
	// Setup routes
	s.setupRoutes()

	addr := fmt.Sprintf("%s:%d", s.config.Server.HTTP.Host, s.config.Server.HTTP.Port)
	s.logger.Info("Starting HTTP server", zap.String("address", addr))

	return s.echo.Start(addr)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

func (s *Server) setupRoutes() {
	// Health check
	s.echo.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "healthy",
			"service": s.config.Service.Name,
		})
	})

	// Initialize handlers
	stripeClient := stripeinfra.NewClient(s.config.Service.StripeSecretKey, s.logger)
	processor := usecase.NewEventProcessor(
		s.repos.Profiles,
		s.repos.Subscriptions,
		s.repos.Credits,
		s.plans,
		stripeClient,
		s.logger,
	)
	webhookHandler := handlers.NewWebhookHandler(s.config.Service, s.repos.WebhookEvents, processor, s.logger)
	adminHandler := handlers.NewAdminHandler(s.repos.WebhookEvents, s.repos.Credits, s.repos.Profiles, s.logger)

	// JWT middleware configuration
	jwtConfig := auth.JWTConfig{
		Secret: s.config.Service.JWTSecret,
		Logger: s.logger,
	}

	// Internal operator routes (require JWT authentication)
	internal := s.echo.Group("/api/v1/internal", auth.JWTMiddleware(jwtConfig))
	internal.GET("/webhook-events", adminHandler.ListWebhookEvents)
	internal.GET("/users/:id/ledger", adminHandler.GetUserLedger)

	// Webhook route (outside API versioning, authenticated by signature)
	s.echo.POST("/webhooks/payments", webhookHandler.HandleWebhook)
}

// planOverrides converts configured plans into resolver overrides.
func planOverrides(plans []config.PlanConfig) map[string]plan.Descriptor {
	if len(plans) == 0 {
		return nil
	}
	overrides := make(map[string]plan.Descriptor, len(plans))
	for _, p := range plans {
		overrides[p.PriceID] = plan.Descriptor{
			Key:             p.Key,
			Name:            p.Name,
			CreditsPerMonth: p.CreditsPerMonth,
			MaxRollover:     p.MaxRollover,
		}
	}
	return overrides
}
