// Package handlers provides the thin ops REST layer. Business rules live in
// the service packages; handlers only translate HTTP.
package handlers

import (
	"errors"
	"log"

	"chainpay/internal/middleware"
	"chainpay/internal/models"
	"chainpay/internal/repositories"

	"github.com/gofiber/fiber/v2"
)

// CreatePaymentIntentRequest is the intent-creation API body.
type CreatePaymentIntentRequest struct {
	Amount      int64                  `json:"amount"`
	Description string                 `json:"description"`
	Metadata    map[string]interface{} `json:"metadata"`
}

// PaymentIntentHandler exposes intent creation and lookup to merchants.
type PaymentIntentHandler struct {
	intents repositories.PaymentIntentRepository
}

func NewPaymentIntentHandler(intents repositories.PaymentIntentRepository) *PaymentIntentHandler {
	return &PaymentIntentHandler{intents: intents}
}

// Create registers a new payment intent at pending. The chain poller moves
// it forward once the contract reports an outcome.
func (h *PaymentIntentHandler) Create(c *fiber.Ctx) error {
	merchant := c.Locals(middleware.MerchantLocalKey).(*models.Merchant)

	var req CreatePaymentIntentRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}
	if req.Amount <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "amount must be greater than zero"})
	}

	metadata := models.NewJSON(req.Metadata)
	if err := metadata.Validate(); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	intent := &models.PaymentIntent{
		MerchantID:  merchant.ID,
		Amount:      req.Amount,
		Status:      models.IntentStatusPending,
		Description: req.Description,
		Metadata:    metadata,
	}
	if err := h.intents.Create(c.Context(), intent); err != nil {
		log.Printf("handlers: create payment intent: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to create payment intent"})
	}
	return c.Status(fiber.StatusCreated).JSON(intent)
}

// Get returns one of the merchant's intents.
func (h *PaymentIntentHandler) Get(c *fiber.Ctx) error {
	merchant := c.Locals(middleware.MerchantLocalKey).(*models.Merchant)

	intent, err := h.intents.GetByID(c.Context(), c.Params("id"))
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "payment intent not found"})
		}
		log.Printf("handlers: get payment intent: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to load payment intent"})
	}
	if intent.MerchantID != merchant.ID {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "payment intent not found"})
	}
	return c.JSON(intent)
}

// List returns the merchant's most recent intents.
func (h *PaymentIntentHandler) List(c *fiber.Ctx) error {
	merchant := c.Locals(middleware.MerchantLocalKey).(*models.Merchant)

	intents, err := h.intents.ListByMerchant(c.Context(), merchant.ID, c.QueryInt("limit", 50))
	if err != nil {
		log.Printf("handlers: list payment intents: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to list payment intents"})
	}
	return c.JSON(fiber.Map{"data": intents})
}
