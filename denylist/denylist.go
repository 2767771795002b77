// Package denylist loads the list of show-name patterns to suppress.
package denylist

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/codeGROOVE-dev/retry"

	"showcheck/pkg/shows"
	"showcheck/storage"
)

// List is an ordered sequence of lowercase substrings.
type List []string

// Parse reads one pattern per line, skipping blank lines and # comments.
// Patterns are lowercased and deduplicated, keeping first-seen order.
func Parse(r io.Reader) (List, error) {
	var list List
	seen := make(map[string]struct{})
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		pattern := shows.NormalizeName(line)
		if _, dup := seen[pattern]; dup {
			continue
		}
		seen[pattern] = struct{}{}
		list = append(list, pattern)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan denylist: %w", err)
	}
	return list, nil
}

// Match returns the first pattern contained in the normalized name.
func (l List) Match(name string) (string, bool) {
	normalized := shows.NormalizeName(name)
	for _, pattern := range l {
		if strings.Contains(normalized, pattern) {
			return pattern, true
		}
	}
	return "", false
}

// Matches reports whether any pattern is a substring of the normalized name.
func (l List) Matches(name string) bool {
	_, ok := l.Match(name)
	return ok
}

// Filter returns the shows not matched by the list and the number removed.
func (l List) Filter(list []shows.Show) ([]shows.Show, int) {
	if len(l) == 0 {
		return list, 0
	}
	kept := make([]shows.Show, 0, len(list))
	for _, s := range list {
		if l.Matches(s.Name) {
			continue
		}
		kept = append(kept, s)
	}
	return kept, len(list) - len(kept)
}

// Provider loads the denylist from a remote URL, keeping a local
// last-known-good copy for when the remote is unavailable.
type Provider struct {
	client    *http.Client
	logger    *slog.Logger
	url       string
	localPath string
	attempts  uint
}

// NewProvider creates a provider. Either url or localPath may be empty.
func NewProvider(client *http.Client, url, localPath string, logger *slog.Logger) *Provider {
	return &Provider{
		client:    client,
		logger:    logger,
		url:       url,
		localPath: localPath,
		attempts:  3,
	}
}

// Load returns the current denylist. It never fails: a remote failure falls
// back to the local copy, and a missing local copy yields an empty list.
func (p *Provider) Load(ctx context.Context) List {
	if p.url != "" {
		list, raw, err := p.fetch(ctx)
		if err == nil {
			p.logger.Info("Loaded denylist from remote", "url", p.url, "patterns", len(list))
			p.saveLocal(raw)
			return list
		}
		p.logger.Warn("Failed to fetch remote denylist, falling back to local copy", "url", p.url, "error", err)
	}

	if p.localPath == "" {
		p.logger.Warn("No denylist configured, nothing will be filtered")
		return nil
	}

	f, err := os.Open(p.localPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			p.logger.Warn("No local denylist file found, nothing will be filtered", "path", p.localPath)
		} else {
			p.logger.Error("Failed to open local denylist", "path", p.localPath, "error", err)
		}
		return nil
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil {
			p.logger.Warn("Failed to close denylist file", "error", closeErr)
		}
	}()

	list, err := Parse(f)
	if err != nil {
		p.logger.Error("Failed to parse local denylist", "path", p.localPath, "error", err)
		return nil
	}
	p.logger.Info("Loaded denylist from local file", "path", p.localPath, "patterns", len(list))
	return list
}

func (p *Provider) fetch(ctx context.Context) (List, []byte, error) {
	var raw []byte
	err := retry.Do(
		func() error {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url, http.NoBody)
			if err != nil {
				return retry.Unrecoverable(fmt.Errorf("create request: %w", err))
			}
			resp, err := p.client.Do(req)
			if err != nil {
				return err
			}
			defer func() {
				if closeErr := resp.Body.Close(); closeErr != nil {
					p.logger.Warn("Failed to close response body", "error", closeErr)
				}
			}()
			if resp.StatusCode != http.StatusOK {
				return fmt.Errorf("HTTP %d", resp.StatusCode)
			}
			raw, err = io.ReadAll(io.LimitReader(resp.Body, 1<<20))
			return err
		},
		retry.Attempts(p.attempts),
		retry.Delay(time.Second),
		retry.MaxJitter(time.Second),
		retry.Context(ctx),
		retry.OnRetry(func(n uint, err error) {
			p.logger.Info("Retrying denylist fetch after error", "attempt", n, "error", err)
		}),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("after retries: %w", err)
	}

	list, err := Parse(strings.NewReader(string(raw)))
	if err != nil {
		return nil, nil, err
	}
	return list, raw, nil
}

func (p *Provider) saveLocal(raw []byte) {
	if p.localPath == "" {
		return
	}
	if err := storage.WriteFileAtomic(p.localPath, raw, 0o644); err != nil {
		p.logger.Warn("Failed to refresh local denylist copy", "path", p.localPath, "error", err)
	}
}
