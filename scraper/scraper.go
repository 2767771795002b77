// Package scraper logs into the ticket portals and extracts raw show rows.
package scraper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/codeGROOVE-dev/retry"
	"golang.org/x/net/publicsuffix"

	"showcheck/pkg/shows"
)

// Scraper fetches the raw rows of one portal.
type Scraper interface {
	Source() shows.Source
	Fetch(ctx context.Context) ([]shows.RawItem, error)
}

// Options configures a portal scraper.
type Options struct {
	Logger   *slog.Logger
	BaseURL  string
	Email    string
	Password string
	Timeout  time.Duration // Per-request timeout
	Fast     bool          // Skip the random pauses between requests
}

// LoginError indicates the portal rejected or did not confirm the login.
type LoginError struct {
	Source shows.Source
	Reason string
}

func (e *LoginError) Error() string {
	return fmt.Sprintf("%s login failed: %s", e.Source, e.Reason)
}

// HTTPStatusError indicates a non-OK response.
type HTTPStatusError struct {
	URL        string
	StatusCode int
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.URL)
}

// IsLoginError checks if an error is a login failure.
func IsLoginError(err error) bool {
	var le *LoginError
	return errors.As(err, &le)
}

// retryable reports whether a request error is worth another attempt.
// Client errors other than 429 will not change on retry.
func retryable(err error) bool {
	var se *HTTPStatusError
	if errors.As(err, &se) {
		return se.StatusCode == http.StatusTooManyRequests || se.StatusCode >= 500
	}
	return true
}

// page is a fetched response body together with the final URL after redirects.
type page struct {
	URL  *url.URL
	Body string
}

// session is one logged-in browsing session with its own cookies.
type session struct {
	client *http.Client
	logger *slog.Logger
	fast   bool
}

func newSession(opts Options) (*session, error) {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("create cookie jar: %w", err)
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &session{
		client: &http.Client{Jar: jar, Timeout: timeout},
		logger: opts.Logger,
		fast:   opts.Fast,
	}, nil
}

// pause sleeps for a random duration in [lo, hi) unless the session is fast.
func (s *session) pause(ctx context.Context, lo, hi time.Duration) error {
	if s.fast || hi <= lo {
		return nil
	}
	d := lo + rand.N(hi-lo) //nolint:gosec // jitter, not security
	s.logger.Debug("Pausing between requests", "duration_ms", d.Milliseconds())
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (s *session) get(ctx context.Context, target string, extra http.Header) (*page, error) {
	return s.do(ctx, http.MethodGet, target, nil, extra)
}

func (s *session) postForm(ctx context.Context, target string, form url.Values) (*page, error) {
	h := http.Header{}
	h.Set("Content-Type", "application/x-www-form-urlencoded")
	return s.do(ctx, http.MethodPost, target, form, h)
}

func (s *session) do(ctx context.Context, method, target string, form url.Values, extra http.Header) (*page, error) {
	var result *page
	err := retry.Do(
		func() error {
			var body io.Reader = http.NoBody
			if form != nil {
				body = strings.NewReader(form.Encode())
			}
			req, err := http.NewRequestWithContext(ctx, method, target, body)
			if err != nil {
				return retry.Unrecoverable(fmt.Errorf("create request: %w", err))
			}

			// Chrome-like headers to avoid getting blocked
			req.Header.Set("User-Agent", "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36")
			req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8")
			req.Header.Set("Accept-Language", "en-US,en;q=0.9")
			for k, vs := range extra {
				for _, v := range vs {
					req.Header.Set(k, v)
				}
			}

			startTime := time.Now()
			resp, err := s.client.Do(req)
			duration := time.Since(startTime)
			if err != nil {
				s.logger.Warn("HTTP request failed", "method", method, "url", target, "duration_ms", duration.Milliseconds(), "error", err)
				return err
			}
			defer func() {
				if closeErr := resp.Body.Close(); closeErr != nil {
					s.logger.Warn("Failed to close response body", "error", closeErr)
				}
			}()

			s.logger.Debug("HTTP request completed",
				"method", method,
				"url", target,
				"status_code", resp.StatusCode,
				"duration_ms", duration.Milliseconds())

			if resp.StatusCode != http.StatusOK {
				return &HTTPStatusError{URL: target, StatusCode: resp.StatusCode}
			}

			data, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
			if err != nil {
				return fmt.Errorf("read body: %w", err)
			}
			result = &page{URL: resp.Request.URL, Body: string(data)}
			return nil
		},
		retry.Attempts(3),
		retry.Delay(time.Second),
		retry.MaxDelay(30*time.Second),
		retry.MaxJitter(2*time.Second),
		retry.Context(ctx),
		retry.OnRetry(func(n uint, err error) {
			s.logger.Info("Retrying request after error", "attempt", n, "url", target, "error", err)
		}),
		retry.RetryIf(retryable),
	)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, target, err)
	}
	return result, nil
}

// resolve turns a possibly relative href into an absolute URL against base.
func resolve(base *url.URL, href string) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return ""
	}
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	return base.ResolveReference(ref).String()
}
