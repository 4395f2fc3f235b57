package utils

import (
	"crypto/rand"
	"encoding/hex"
)

// GenerateAPIKey returns a merchant API key with a recognizable prefix.
// The plaintext is shown once at creation; only its hash is stored.
func GenerateAPIKey() (string, error) {
	b := make([]byte, 24)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return "ck_" + hex.EncodeToString(b), nil
}

// GenerateWebhookSecret returns a signing secret for webhook payloads.
func GenerateWebhookSecret() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return "whsec_" + hex.EncodeToString(b), nil
}
