// Package signature implements HMAC webhook payload signing and
// verification, plus API-key hashing for the ops API.
//
// Signed header format: "t=<unix_seconds>,v1=<hex_hmac_sha256>". Merchants
// verify with the same scheme; multiple v1 entries are accepted so secrets
// can be rotated without breaking in-flight deliveries.
package signature

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// DefaultTolerance is the maximum accepted clock skew between signing and
// verification.
const DefaultTolerance = 5 * time.Minute

var (
	ErrInvalidHeader      = errors.New("invalid signature header")
	ErrTimestampTooOld    = errors.New("signature timestamp outside tolerance")
	ErrSignatureMismatch  = errors.New("no matching signature")
	ErrMissingSecret      = errors.New("signing secret is empty")
	ErrInvalidCredentials = errors.New("invalid api key")
)

// Service signs and verifies webhook payloads.
type Service struct {
	now func() time.Time
}

// NewService creates a signature service using the wall clock.
func NewService() *Service {
	return &Service{now: time.Now}
}

// NewServiceWithClock creates a signature service with an injected clock.
func NewServiceWithClock(now func() time.Time) *Service {
	return &Service{now: now}
}

// Sign produces the Gateway-Signature header value for a payload.
func (s *Service) Sign(payload []byte, secret string, ts time.Time) (string, error) {
	if secret == "" {
		return "", ErrMissingSecret
	}
	unix := ts.Unix()
	mac := computeMAC(payload, secret, unix)
	return fmt.Sprintf("t=%d,v1=%s", unix, hex.EncodeToString(mac)), nil
}

// Verify checks a Gateway-Signature header against a payload. The header may
// carry several v1 entries; any match passes. Comparison is constant-time.
func (s *Service) Verify(payload []byte, header, secret string, tolerance time.Duration) error {
	if secret == "" {
		return ErrMissingSecret
	}
	if tolerance <= 0 {
		tolerance = DefaultTolerance
	}

	ts, sigs, err := parseHeader(header)
	if err != nil {
		return err
	}

	age := s.now().Unix() - ts
	if age < 0 {
		age = -age
	}
	if time.Duration(age)*time.Second > tolerance {
		return ErrTimestampTooOld
	}

	expected := computeMAC(payload, secret, ts)
	for _, sig := range sigs {
		raw, err := hex.DecodeString(sig)
		if err != nil {
			continue
		}
		if hmac.Equal(raw, expected) {
			return nil
		}
	}
	return ErrSignatureMismatch
}

// HashAPIKey produces the one-way hash stored for a merchant API key.
func HashAPIKey(key string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(key), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// CheckAPIKey compares a presented API key against the stored hash.
func CheckAPIKey(key, hash string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(key)); err != nil {
		return ErrInvalidCredentials
	}
	return nil
}

func computeMAC(payload []byte, secret string, ts int64) []byte {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(strconv.FormatInt(ts, 10)))
	mac.Write([]byte("."))
	mac.Write(payload)
	return mac.Sum(nil)
}

func parseHeader(header string) (ts int64, sigs []string, err error) {
	ts = -1
	for _, part := range strings.Split(header, ",") {
		pair := strings.SplitN(strings.TrimSpace(part), "=", 2)
		if len(pair) != 2 {
			continue
		}
		switch pair[0] {
		case "t":
			ts, err = strconv.ParseInt(pair[1], 10, 64)
			if err != nil {
				return 0, nil, ErrInvalidHeader
			}
		case "v1":
			sigs = append(sigs, pair[1])
		}
	}
	if ts < 0 || len(sigs) == 0 {
		return 0, nil, ErrInvalidHeader
	}
	return ts, sigs, nil
}
