package usecase

import (
	"bytes"
	"context"
	"fmt"
	"html"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"

	"NewsDigest/internal/domain"
	"NewsDigest/internal/metrics"
	"NewsDigest/internal/ports"
)

const subjectPrefix = "Daily News Summary "

// Deliverer renders the digest to HTML and sends it as one email.
type Deliverer struct {
	sender   ports.EmailSender
	markdown goldmark.Markdown
	policy   *bluemonday.Policy
	location *time.Location
	now      func() time.Time
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

// NewDeliverer wires the sender; the subject date is taken in loc.
func NewDeliverer(sender ports.EmailSender, loc *time.Location, logger *slog.Logger, m *metrics.Metrics) *Deliverer {
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Deliverer{
		sender:   sender,
		markdown: goldmark.New(),
		policy:   bluemonday.UGCPolicy(),
		location: loc,
		now:      time.Now,
		logger:   logger,
		metrics:  m,
	}
}

// Subject returns the email subject for the day of t.
func Subject(t time.Time) string {
	return subjectPrefix + t.Format("2006-01-02")
}

// RenderHTML converts Markdown to sanitized HTML. Raw HTML in the input is not passed through.
func (d *Deliverer) RenderHTML(markdown string) (string, error) {
	var buf bytes.Buffer
	if err := d.markdown.Convert([]byte(markdown), &buf); err != nil {
		return "", fmt.Errorf("render markdown: %w", err)
	}
	return d.policy.Sanitize(buf.String()), nil
}

// Deliver sends the digest to recipient. It never returns an error: every
// outcome, including failures, is reported in the DeliveryResult.
func (d *Deliverer) Deliver(ctx context.Context, digest domain.Digest, recipient string) (result domain.DeliveryResult) {
	defer func() {
		if p := recover(); p != nil {
			result = deliveryError(fmt.Sprintf("%v: panic: %v", domain.ErrDelivery, p))
		}
		d.metrics.Delivery(string(result.Status))
	}()

	addr, err := mail.ParseAddress(strings.TrimSpace(recipient))
	if err != nil {
		return deliveryError(fmt.Sprintf("invalid recipient %q: %v", recipient, err))
	}

	subject := Subject(d.now().In(d.location))
	fragment, err := d.RenderHTML(string(digest))
	if err != nil {
		return deliveryError(err.Error())
	}

	receipt, err := d.sender.Send(ctx, ports.Email{
		Subject:   subject,
		HTMLBody:  wrapDocument(subject, fragment),
		Recipient: addr.Address,
	})
	if err != nil {
		d.logger.Warn("email send failed", "recipient", addr.Address, "error", err)
		return deliveryError(err.Error())
	}

	if receipt.StatusCode < 200 || receipt.StatusCode > 299 {
		msg := fmt.Sprintf("email provider responded with status %d", receipt.StatusCode)
		if receipt.Body != "" {
			msg += ": " + receipt.Body
		}
		d.logger.Warn("email rejected", "recipient", addr.Address, "status", receipt.StatusCode)
		return deliveryError(msg)
	}

	return domain.DeliveryResult{
		Status:  domain.DeliverySuccess,
		Message: "Email sent to " + addr.Address,
	}
}

func deliveryError(msg string) domain.DeliveryResult {
	return domain.DeliveryResult{Status: domain.DeliveryError, Message: msg}
}

func wrapDocument(title, body string) string {
	return `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>` + html.EscapeString(title) + `</title>
</head>
<body style="font-family: Arial, Helvetica, sans-serif; line-height: 1.5; max-width: 720px; margin: 0 auto;">
` + body + `</body>
</html>
`
}
