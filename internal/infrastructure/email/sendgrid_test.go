package email

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"NewsDigest/internal/config"
	"NewsDigest/internal/ports"
)

func TestSendGridSenderAccepted(t *testing.T) {
	t.Parallel()

	var got mailRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer sg-key", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	sender := NewSendGridSender(config.EmailConfig{Endpoint: server.URL, APIKey: "sg-key", From: "digest@example.com"})

	receipt, err := sender.Send(context.Background(), ports.Email{
		Subject:   "Daily News Summary 2026-10-15",
		HTMLBody:  "<h1>Hi</h1>",
		Recipient: "reader@example.com",
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusAccepted, receipt.StatusCode)

	require.Len(t, got.Personalizations, 1)
	assert.Equal(t, "reader@example.com", got.Personalizations[0].To[0].Email)
	assert.Equal(t, "digest@example.com", got.From.Email)
	assert.Equal(t, "text/html", got.Content[0].Type)
	assert.Equal(t, "<h1>Hi</h1>", got.Content[0].Value)
}

func TestSendGridSenderRejectedReturnsReceipt(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"errors":[{"message":"The from address does not match a verified Sender Identity."}]}`))
	}))
	defer server.Close()

	sender := NewSendGridSender(config.EmailConfig{Endpoint: server.URL, APIKey: "k", From: "a@example.com"})

	receipt, err := sender.Send(context.Background(), ports.Email{Recipient: "b@example.com"})
	require.NoError(t, err)
	assert.Equal(t, http.StatusForbidden, receipt.StatusCode)
	assert.Contains(t, receipt.Body, "verified Sender Identity")
}

func TestSendGridSenderMisconfigured(t *testing.T) {
	t.Parallel()

	_, err := NewSendGridSender(config.EmailConfig{Endpoint: "http://localhost", From: "a@example.com"}).
		Send(context.Background(), ports.Email{})
	require.Error(t, err)

	_, err = NewSendGridSender(config.EmailConfig{Endpoint: "http://localhost", APIKey: "k"}).
		Send(context.Background(), ports.Email{})
	require.Error(t, err)
}
