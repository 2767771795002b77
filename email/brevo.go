package email

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/codeGROOVE-dev/retry"
)

const (
	brevoEndpoint = "https://api.brevo.com/v3/smtp/email"
	brevoTag      = "show-alert"
)

// BrevoError is a non-2xx answer from the Brevo API.
type BrevoError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	StatusCode int    `json:"-"`
}

func (e *BrevoError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("brevo: HTTP %d", e.StatusCode)
	}
	return fmt.Sprintf("brevo: HTTP %d: %s (%s)", e.StatusCode, e.Message, e.Code)
}

// retryable reports whether the same request may succeed later.
func (e *BrevoError) retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// BrevoProvider sends alerts through the Brevo transactional email API.
type BrevoProvider struct {
	client   *http.Client
	logger   *slog.Logger
	apiKey   string
	endpoint string
	sender   brevoContact
	attempts uint
}

// NewBrevoProvider creates a new Brevo email provider.
func NewBrevoProvider(apiKey, fromAddr, fromName string, logger *slog.Logger) *BrevoProvider {
	return &BrevoProvider{
		apiKey:   apiKey,
		endpoint: brevoEndpoint,
		sender:   brevoContact{Email: fromAddr, Name: fromName},
		client:   &http.Client{Timeout: 30 * time.Second},
		logger:   logger,
		attempts: 3,
	}
}

type brevoSendRequest struct {
	Sender  brevoContact   `json:"sender"`
	To      []brevoContact `json:"to"`
	Subject string         `json:"subject"`
	HTML    string         `json:"htmlContent"`
	Tags    []string       `json:"tags,omitempty"`
}

type brevoContact struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

type brevoSendResponse struct {
	MessageID string `json:"messageId"`
}

// brevoRecipients splits a comma-separated address list.
func brevoRecipients(to string) []brevoContact {
	var out []brevoContact
	for _, addr := range strings.Split(to, ",") {
		if addr = strings.TrimSpace(addr); addr != "" {
			out = append(out, brevoContact{Email: addr})
		}
	}
	return out
}

// Send delivers one alert. to may list several addresses separated by commas.
func (b *BrevoProvider) Send(ctx context.Context, to, subject, htmlBody string) error {
	recipients := brevoRecipients(to)
	if len(recipients) == 0 {
		return fmt.Errorf("brevo: no recipients in %q", to)
	}
	payload, err := json.Marshal(brevoSendRequest{
		Sender:  b.sender,
		To:      recipients,
		Subject: sanitizeEmailHeader(subject),
		HTML:    htmlBody,
		Tags:    []string{brevoTag},
	})
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	return retry.Do(
		func() error {
			messageID, err := b.post(ctx, payload)
			if err != nil {
				b.logger.Warn("Brevo send failed", "recipients", len(recipients), "error", err)
				return err
			}
			b.logger.Info("Brevo alert accepted", "recipients", len(recipients), "message_id", messageID)
			return nil
		},
		retry.Attempts(b.attempts),
		retry.Delay(time.Second),
		retry.MaxDelay(2*time.Minute),
		retry.MaxJitter(10*time.Second),
		retry.Context(ctx),
		retry.OnRetry(func(n uint, err error) {
			b.logger.Info("Retrying Brevo email send after error", "attempt", n, "error", err)
		}),
	)
}

// post performs one API call and returns the accepted message id.
// Errors that will not change on retry are marked unrecoverable.
func (b *BrevoProvider) post(ctx context.Context, payload []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", retry.Unrecoverable(fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("api-key", b.apiKey)

	start := time.Now()
	resp, err := b.client.Do(req)
	if err != nil {
		return "", err
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			b.logger.Warn("Failed to close response body", "error", closeErr)
		}
	}()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	b.logger.Debug("Brevo API request completed", "status_code", resp.StatusCode, "duration_ms", time.Since(start).Milliseconds())

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &BrevoError{StatusCode: resp.StatusCode}
		_ = json.Unmarshal(body, apiErr) //nolint:errcheck // body is optional detail
		if !apiErr.retryable() {
			return "", retry.Unrecoverable(apiErr)
		}
		return "", apiErr
	}

	var accepted brevoSendResponse
	_ = json.Unmarshal(body, &accepted) //nolint:errcheck // id is informational
	return accepted.MessageID, nil
}
