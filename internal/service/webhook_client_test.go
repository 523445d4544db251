package service

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestWebhookClient_Send(t *testing.T) {
	var got WebhookPayload
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	client := NewWebhookClient(2*time.Second, zap.NewNop())
	err := client.Send(context.Background(), server.URL, WebhookPayload{
		Actor:        "desk-1",
		EventID:      "ev-1",
		Organization: "North High",
		TeamNumbers:  []string{"001", "004"},
	})
	require.NoError(t, err)
	assert.Equal(t, "desk-1", got.Actor)
	assert.Equal(t, []string{"001", "004"}, got.TeamNumbers)
}

func TestWebhookClient_ErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	client := NewWebhookClient(2*time.Second, zap.NewNop())
	err := client.Send(context.Background(), server.URL, WebhookPayload{EventID: "ev-1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "400")
}
