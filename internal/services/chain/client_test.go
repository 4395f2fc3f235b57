package chain

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientTipHeight(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/blocks/tip", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		w.Write([]byte(`{"height":1234}`))
	}))
	defer server.Close()

	c := NewClient(server.URL, "test-key")
	height, err := c.TipHeight(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1234), height)
}

func TestClientBlockEvents(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/blocks/77/events", r.URL.Path)
		w.Write([]byte(`{"events":[{"address":"0xc","tx_hash":"0x1","block_height":77,"log_index":0,"event":"PaymentSucceeded","data":{"intent_id":"pi_1"}}]}`))
	}))
	defer server.Close()

	c := NewClient(server.URL, "")
	events, err := c.BlockEvents(context.Background(), 77)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, EventNamePaymentSucceeded, events[0].Event)
	assert.Equal(t, int64(77), events[0].BlockHeight)
}

func TestClientSurfacesAPIErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"rate limited"}`, http.StatusTooManyRequests)
	}))
	defer server.Close()

	c := NewClient(server.URL, "")
	_, err := c.TipHeight(context.Background())
	assert.ErrorContains(t, err, "chain API error 429")
}
