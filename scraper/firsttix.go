package scraper

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"showcheck/pkg/shows"
)

// DefaultFirstTixURL is the 1stTix portal.
const DefaultFirstTixURL = "https://www.1sttix.org"

// sponsorPatterns mark listing entries that are ads rather than events.
var sponsorPatterns = []string{
	"tactical",
	"coursera",
	"courses",
	"certs",
	"degrees",
	"sponsor",
	"donate",
	"discount",
	"coupon",
	"hotel",
	"free courses",
	"cooperator",
	"5.11",
}

var (
	firstTixDateRegex = regexp.MustCompile(`\w{3},\s*\d+\s+\w+\s+'\d+`)
	firstTixTimeRegex = regexp.MustCompile(`(?i)\d{1,2}:\d{2}\s*[AP]M`)
)

// FirstTix scrapes the 1stTix events listing.
type FirstTix struct {
	opts Options
	base *url.URL
}

// NewFirstTix creates a 1stTix scraper.
func NewFirstTix(opts Options) (*FirstTix, error) {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultFirstTixURL
	}
	base, err := url.Parse(strings.TrimSuffix(opts.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base URL: %w", err)
	}
	opts.Logger = opts.Logger.With("source", shows.FirstTix)
	return &FirstTix{opts: opts, base: base}, nil
}

// Source returns the portal tag.
func (*FirstTix) Source() shows.Source {
	return shows.FirstTix
}

// Fetch logs in with a fresh session and returns the listed events.
func (f *FirstTix) Fetch(ctx context.Context) ([]shows.RawItem, error) {
	if f.opts.Email == "" || f.opts.Password == "" {
		return nil, &LoginError{Source: shows.FirstTix, Reason: "credentials not configured"}
	}
	s, err := newSession(f.opts)
	if err != nil {
		return nil, err
	}

	loginURL := f.base.String() + "/login"
	if _, err := s.get(ctx, loginURL, nil); err != nil {
		return nil, fmt.Errorf("load login page: %w", err)
	}
	resp, err := s.postForm(ctx, loginURL, url.Values{
		"email":    {f.opts.Email},
		"password": {f.opts.Password},
	})
	if err != nil {
		return nil, fmt.Errorf("submit login: %w", err)
	}
	lower := strings.ToLower(resp.Body)
	if !strings.Contains(lower, "logout") && !strings.Contains(lower, "my account") &&
		!strings.Contains(strings.ToLower(resp.URL.String()), "welcome") {
		return nil, &LoginError{Source: shows.FirstTix, Reason: "no logged-in marker on response"}
	}
	f.opts.Logger.Info("Logged in")

	if err := s.pause(ctx, 2*time.Second, 6*time.Second); err != nil {
		return nil, err
	}

	listing, err := s.get(ctx, f.base.String()+"/tixer/get-tickets/events", nil)
	if err != nil {
		return nil, fmt.Errorf("fetch events: %w", err)
	}
	items, err := parseFirstTix(strings.NewReader(listing.Body), listing.URL, f.opts.Logger)
	if err != nil {
		return nil, err
	}
	f.opts.Logger.Info("Fetched shows", "count", len(items))
	return items, nil
}

// parseFirstTix extracts one row per event block, dropping sponsor entries
// and blocks without an event link or a date.
func parseFirstTix(r io.Reader, base *url.URL, logger *slog.Logger) ([]shows.RawItem, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parse listing: %w", err)
	}

	var items []shows.RawItem
	doc.Find("div.event").Each(func(_ int, event *goquery.Selection) {
		img := event.Find("img").First()
		name, _ := img.Attr("alt")
		name = strings.TrimSpace(name)
		if name == "" {
			name = strings.TrimSpace(event.Find("div.entry-title").First().Text())
		}
		if name == "" {
			return
		}

		item := shows.RawItem{Name: name}

		meta := strings.Join(strings.Fields(event.Find("div.entry-meta").First().Text()), " ")
		if date := firstTixDateRegex.FindString(meta); date != "" {
			item.Date = date
			if clock := firstTixTimeRegex.FindString(meta); clock != "" {
				item.Date += " " + clock
			}
		}

		event.Find("a[href]").EachWithBreak(func(_ int, a *goquery.Selection) bool {
			href, _ := a.Attr("href")
			if strings.Contains(href, "get-tickets/event") {
				item.Link = resolve(base, href)
				return false
			}
			return true
		})
		if src, ok := img.Attr("src"); ok {
			item.Image = resolve(base, src)
		}

		switch {
		case isSponsor(name):
			logger.Debug("Skipping sponsor entry", "name", name)
		case item.Link == "" || item.Date == "":
			logger.Debug("Skipping non-event entry without link or date", "name", name)
		default:
			items = append(items, item)
		}
	})
	return items, nil
}

func isSponsor(name string) bool {
	lower := strings.ToLower(name)
	for _, p := range sponsorPatterns {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}
