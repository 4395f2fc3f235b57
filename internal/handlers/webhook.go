package handlers

import (
	"errors"
	"log"

	"chainpay/internal/middleware"
	"chainpay/internal/models"
	"chainpay/internal/repositories"
	"chainpay/internal/services/webhook"

	"github.com/gofiber/fiber/v2"
)

// WebhookHandler exposes webhook event inspection and manual redelivery,
// the ops escape hatch for events that exhausted their retries.
type WebhookHandler struct {
	events   repositories.WebhookEventRepository
	notifier *webhook.Service
}

func NewWebhookHandler(events repositories.WebhookEventRepository, notifier *webhook.Service) *WebhookHandler {
	return &WebhookHandler{events: events, notifier: notifier}
}

// Get returns one webhook event with its delivery bookkeeping.
func (h *WebhookHandler) Get(c *fiber.Ctx) error {
	merchant := c.Locals(middleware.MerchantLocalKey).(*models.Merchant)

	event, err := h.events.GetByID(c.Context(), c.Params("id"))
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "webhook event not found"})
		}
		log.Printf("handlers: get webhook event: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to load webhook event"})
	}
	if event.MerchantID != merchant.ID {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "webhook event not found"})
	}
	return c.JSON(event)
}

// Deliver triggers one immediate delivery attempt of the event.
func (h *WebhookHandler) Deliver(c *fiber.Ctx) error {
	merchant := c.Locals(middleware.MerchantLocalKey).(*models.Merchant)
	eventID := c.Params("id")

	event, err := h.events.GetByID(c.Context(), eventID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "webhook event not found"})
		}
		log.Printf("handlers: load webhook event %s: %v", eventID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to load webhook event"})
	}
	if event.MerchantID != merchant.ID {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "webhook event not found"})
	}
	if event.Delivered() {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "webhook event already delivered"})
	}

	if err := h.notifier.Deliver(c.Context(), eventID); err != nil {
		log.Printf("handlers: manual delivery of %s: %v", eventID, err)
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": "delivery attempt failed"})
	}
	return c.JSON(fiber.Map{"status": "attempted", "event_id": eventID})
}
