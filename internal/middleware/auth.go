// Package middleware provides HTTP middleware for the ops API.
package middleware

import (
	"log"

	"chainpay/internal/repositories"
	"chainpay/internal/services/signature"

	"github.com/gofiber/fiber/v2"
)

// MerchantLocalKey is where the authenticated merchant is stored on the
// request context.
const MerchantLocalKey = "merchant"

// APIKeyMiddleware authenticates ops API requests with a merchant API key.
// Keys are never stored in plaintext; the presented key is compared against
// the stored bcrypt hash.
type APIKeyMiddleware struct {
	merchants repositories.MerchantRepository
}

func NewAPIKeyMiddleware(merchants repositories.MerchantRepository) *APIKeyMiddleware {
	return &APIKeyMiddleware{merchants: merchants}
}

// Handler validates the X-Merchant-Id / X-API-Key header pair and stores
// the merchant on the request context.
func (m *APIKeyMiddleware) Handler(c *fiber.Ctx) error {
	merchantID := c.Get("X-Merchant-Id")
	apiKey := c.Get("X-API-Key")
	if merchantID == "" || apiKey == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "missing api credentials"})
	}

	merchant, err := m.merchants.GetByID(c.Context(), merchantID)
	if err != nil {
		log.Printf("auth: merchant lookup failed for %s: %v", merchantID, err)
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid api credentials"})
	}
	if !merchant.Active {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "merchant is disabled"})
	}

	if err := signature.CheckAPIKey(apiKey, merchant.APIKeyHash); err != nil {
		log.Printf("auth: api key mismatch for merchant %s", merchantID)
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid api credentials"})
	}

	c.Locals(MerchantLocalKey, merchant)
	return c.Next()
}
