// Package email sends HTML mail through the SendGrid v3 REST API.
package email

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"NewsDigest/internal/config"
	"NewsDigest/internal/ports"
)

// SendGridSender posts mail/send requests.
type SendGridSender struct {
	endpoint string
	apiKey   string
	from     string
	client   *http.Client
}

var _ ports.EmailSender = (*SendGridSender)(nil)

// NewSendGridSender builds a sender from config.
func NewSendGridSender(cfg config.EmailConfig) *SendGridSender {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &SendGridSender{
		endpoint: cfg.Endpoint,
		apiKey:   cfg.APIKey,
		from:     cfg.From,
		client:   &http.Client{Timeout: timeout},
	}
}

type address struct {
	Email string `json:"email"`
}

type personalization struct {
	To []address `json:"to"`
}

type content struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

type mailRequest struct {
	Personalizations []personalization `json:"personalizations"`
	From             address           `json:"from"`
	Subject          string            `json:"subject"`
	Content          []content         `json:"content"`
}

// Send dispatches one message. Any HTTP answer is returned as a receipt;
// only configuration and transport problems are errors.
func (s *SendGridSender) Send(ctx context.Context, msg ports.Email) (ports.SendReceipt, error) {
	if s.apiKey == "" {
		return ports.SendReceipt{}, fmt.Errorf("sendgrid api key not set")
	}
	if s.from == "" {
		return ports.SendReceipt{}, fmt.Errorf("sender address not set")
	}

	payload := mailRequest{
		Personalizations: []personalization{{To: []address{{Email: msg.Recipient}}}},
		From:             address{Email: s.from},
		Subject:          msg.Subject,
		Content:          []content{{Type: "text/html", Value: msg.HTMLBody}},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return ports.SendReceipt{}, fmt.Errorf("marshal mail: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return ports.SendReceipt{}, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return ports.SendReceipt{}, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	return ports.SendReceipt{
		StatusCode: resp.StatusCode,
		Body:       strings.TrimSpace(string(respBody)),
	}, nil
}
