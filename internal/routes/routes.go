// Package routes defines the ops API routing configuration.
package routes

import (
	"chainpay/internal/handlers"
	"chainpay/internal/middleware"
	"chainpay/internal/repositories"
	"chainpay/internal/services/webhook"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// Deps carries everything the route layer wires together.
type Deps struct {
	DB        *gorm.DB
	Intents   repositories.PaymentIntentRepository
	Events    repositories.WebhookEventRepository
	Merchants repositories.MerchantRepository
	Notifier  *webhook.Service
}

// SetupRoutes configures all ops API routes.
func SetupRoutes(app *fiber.App, deps Deps) {
	healthHandler := handlers.NewHealthHandler(deps.DB)
	intentHandler := handlers.NewPaymentIntentHandler(deps.Intents)
	webhookHandler := handlers.NewWebhookHandler(deps.Events, deps.Notifier)
	auth := middleware.NewAPIKeyMiddleware(deps.Merchants)

	app.Get("/health", healthHandler.Check)

	api := app.Group("/api", auth.Handler)
	api.Post("/payment-intents", intentHandler.Create)
	api.Get("/payment-intents", intentHandler.List)
	api.Get("/payment-intents/:id", intentHandler.Get)
	api.Get("/webhook-events/:id", webhookHandler.Get)
	api.Post("/webhook-events/:id/deliver", webhookHandler.Deliver)
}
