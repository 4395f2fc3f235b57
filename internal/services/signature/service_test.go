package signature

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignVerifyRoundTrip(t *testing.T) {
	now := time.Unix(1700000000, 0)
	svc := NewServiceWithClock(func() time.Time { return now })
	payload := []byte(`{"id":"evt_123","type":"payment_intent.succeeded"}`)

	header, err := svc.Sign(payload, "whsec_test", now)
	require.NoError(t, err)
	assert.Contains(t, header, "t=1700000000")
	assert.Contains(t, header, "v1=")

	assert.NoError(t, svc.Verify(payload, header, "whsec_test", 300*time.Second))
}

func TestVerifyRejections(t *testing.T) {
	now := time.Unix(1700000000, 0)
	svc := NewServiceWithClock(func() time.Time { return now })
	payload := []byte(`{"amount":5000}`)

	header, err := svc.Sign(payload, "whsec_test", now)
	require.NoError(t, err)

	tests := []struct {
		name    string
		payload []byte
		header  string
		secret  string
		wantErr error
	}{
		{
			name:    "wrong secret",
			payload: payload,
			header:  header,
			secret:  "whsec_other",
			wantErr: ErrSignatureMismatch,
		},
		{
			name:    "mutated payload",
			payload: []byte(`{"amount":5001}`),
			header:  header,
			secret:  "whsec_test",
			wantErr: ErrSignatureMismatch,
		},
		{
			name:    "garbage header",
			payload: payload,
			header:  "not-a-header",
			secret:  "whsec_test",
			wantErr: ErrInvalidHeader,
		},
		{
			name:    "empty secret",
			payload: payload,
			header:  header,
			secret:  "",
			wantErr: ErrMissingSecret,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := svc.Verify(tt.payload, tt.header, tt.secret, 300*time.Second)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestVerifyToleranceWindow(t *testing.T) {
	signedAt := time.Unix(1700000000, 0)
	svc := NewServiceWithClock(func() time.Time { return signedAt.Add(301 * time.Second) })
	payload := []byte(`{}`)

	header, err := svc.Sign(payload, "whsec_test", signedAt)
	require.NoError(t, err)

	// 301s old with a 300s tolerance
	assert.ErrorIs(t, svc.Verify(payload, header, "whsec_test", 300*time.Second), ErrTimestampTooOld)

	// exactly at the boundary still passes
	onTime := NewServiceWithClock(func() time.Time { return signedAt.Add(300 * time.Second) })
	assert.NoError(t, onTime.Verify(payload, header, "whsec_test", 300*time.Second))
}

func TestVerifyAcceptsAnyMatchingV1(t *testing.T) {
	now := time.Unix(1700000000, 0)
	svc := NewServiceWithClock(func() time.Time { return now })
	payload := []byte(`{"id":"evt_1"}`)

	header, err := svc.Sign(payload, "whsec_test", now)
	require.NoError(t, err)

	// a stale entry from a rotated secret must not break verification
	withExtra := header + ",v1=deadbeef"
	assert.NoError(t, svc.Verify(payload, withExtra, "whsec_test", 300*time.Second))
}

func TestAPIKeyHashing(t *testing.T) {
	hash, err := HashAPIKey("ck_abc123")
	require.NoError(t, err)
	assert.NotEqual(t, "ck_abc123", hash)

	assert.NoError(t, CheckAPIKey("ck_abc123", hash))
	assert.ErrorIs(t, CheckAPIKey("ck_wrong", hash), ErrInvalidCredentials)
}
