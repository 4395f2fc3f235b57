// Command merchant_seed creates a merchant with a freshly generated API key
// and webhook signing secret. The plaintext API key is printed exactly once.
package main

import (
	"context"
	"log"
	"os"

	"chainpay/internal/config"
	"chainpay/internal/models"
	"chainpay/internal/repositories"
	"chainpay/internal/services/signature"
	"chainpay/internal/utils"
)

func main() {
	config.LoadEnv()

	name := os.Getenv("MERCHANT_NAME")
	email := os.Getenv("MERCHANT_EMAIL")
	webhookURL := os.Getenv("MERCHANT_WEBHOOK_URL")

	if name == "" || email == "" {
		log.Fatal("MERCHANT_NAME and MERCHANT_EMAIL must be set in environment")
	}

	db, err := repositories.InitDB(repositories.DefaultDBConfig())
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer func() {
		if sqlDB, err := db.DB(); err == nil {
			if err := sqlDB.Close(); err != nil {
				log.Printf("⚠️ Failed to close PostgreSQL connection: %v", err)
			}
		}
	}()

	merchants := repositories.NewMerchantRepository(db)
	ctx := context.Background()

	if existing, err := merchants.GetByEmail(ctx, email); err == nil {
		log.Printf("Merchant already exists: %s", existing.ID)
		return
	}

	apiKey, err := utils.GenerateAPIKey()
	if err != nil {
		log.Fatalf("Failed to generate API key: %v", err)
	}
	apiKeyHash, err := signature.HashAPIKey(apiKey)
	if err != nil {
		log.Fatalf("Failed to hash API key: %v", err)
	}
	webhookSecret, err := utils.GenerateWebhookSecret()
	if err != nil {
		log.Fatalf("Failed to generate webhook secret: %v", err)
	}

	merchant := &models.Merchant{
		BusinessName:  name,
		Email:         email,
		WebhookURL:    webhookURL,
		WebhookSecret: webhookSecret,
		APIKeyHash:    apiKeyHash,
		Active:        true,
	}
	if err := merchants.Create(ctx, merchant); err != nil {
		log.Fatalf("Failed to create merchant: %v", err)
	}

	log.Printf("✅ Merchant created: %s", merchant.ID)
	log.Printf("API key (store it now, it will not be shown again): %s", apiKey)
	log.Printf("Webhook secret: %s", webhookSecret)
}
