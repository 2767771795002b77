package dispatch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"showcheck/group"
)

const userAgent = "showcheck/1.0"

// Ntfy pushes a desktop and phone notification through an ntfy topic URL.
type Ntfy struct {
	client   *http.Client
	endpoint string
}

// NewNtfy creates an ntfy channel for the full topic URL.
func NewNtfy(endpoint string, timeout time.Duration) *Ntfy {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Ntfy{endpoint: strings.TrimSpace(endpoint), client: &http.Client{Timeout: timeout}}
}

// Name identifies the channel in logs.
func (*Ntfy) Name() string {
	return "ntfy"
}

// Send posts a summary of the batch.
func (n *Ntfy) Send(ctx context.Context, cards []group.Card) error {
	if len(cards) == 0 {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(Summary(cards)))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	req.Header.Set("Title", "Shows Checker")
	req.Header.Set("Tags", "ticket,showcheck")
	for _, c := range cards {
		if c.Rare {
			req.Header.Set("Priority", "high")
			break
		}
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck // read-only body

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048)) //nolint:errcheck // best effort detail
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body) //nolint:errcheck // drain for reuse
	return nil
}
