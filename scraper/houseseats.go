package scraper

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"showcheck/pkg/shows"
)

// DefaultHouseSeatsURL is the Las Vegas HouseSeats portal.
const DefaultHouseSeatsURL = "https://lv.houseseats.com"

// HouseSeats scrapes the member upcoming-shows listing.
type HouseSeats struct {
	opts Options
	base *url.URL
}

// NewHouseSeats creates a HouseSeats scraper.
func NewHouseSeats(opts Options) (*HouseSeats, error) {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultHouseSeatsURL
	}
	base, err := url.Parse(strings.TrimSuffix(opts.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base URL: %w", err)
	}
	opts.Logger = opts.Logger.With("source", shows.HouseSeats)
	return &HouseSeats{opts: opts, base: base}, nil
}

// Source returns the portal tag.
func (*HouseSeats) Source() shows.Source {
	return shows.HouseSeats
}

// Fetch logs in with a fresh session and returns the listed shows.
func (h *HouseSeats) Fetch(ctx context.Context) ([]shows.RawItem, error) {
	if h.opts.Email == "" || h.opts.Password == "" {
		return nil, &LoginError{Source: shows.HouseSeats, Reason: "credentials not configured"}
	}
	s, err := newSession(h.opts)
	if err != nil {
		return nil, err
	}

	// Establish session cookies before posting the form.
	if _, err := s.get(ctx, h.base.String(), nil); err != nil {
		return nil, fmt.Errorf("load homepage: %w", err)
	}

	resp, err := s.postForm(ctx, h.base.String()+"/member/index.bv", url.Values{
		"submit":    {"login"},
		"lastplace": {""},
		"email":     {h.opts.Email},
		"password":  {h.opts.Password},
	})
	if err != nil {
		return nil, fmt.Errorf("submit login: %w", err)
	}
	if err := houseSeatsLoginOK(resp.Body); err != nil {
		return nil, err
	}
	h.opts.Logger.Info("Logged in")

	if err := s.pause(ctx, 2*time.Second, 6*time.Second); err != nil {
		return nil, err
	}

	ajax := http.Header{}
	ajax.Set("X-Requested-With", "XMLHttpRequest")
	listing, err := s.get(ctx, h.base.String()+"/member/ajax/upcoming-shows.bv", ajax)
	if err != nil {
		return nil, fmt.Errorf("fetch upcoming shows: %w", err)
	}

	items, err := parseHouseSeats(strings.NewReader(listing.Body), h.base.JoinPath("member").String()+"/")
	if err != nil {
		return nil, err
	}
	h.opts.Logger.Info("Fetched shows", "count", len(items))
	return items, nil
}

// houseSeatsLoginOK inspects the page returned by the login form. The portal
// answers 200 either way, so success is judged from the content.
func houseSeatsLoginOK(body string) error {
	lower := strings.ToLower(body)
	if strings.Contains(lower, "logout") || strings.Contains(lower, "welcome") {
		return nil
	}
	if strings.Contains(lower, "member login") {
		reason := "still on login page"
		if doc, err := goquery.NewDocumentFromReader(strings.NewReader(body)); err == nil {
			if msg := strings.TrimSpace(doc.Find(".alert-danger, .alert, .error").First().Text()); msg != "" {
				reason = msg
			}
		}
		return &LoginError{Source: shows.HouseSeats, Reason: reason}
	}
	return nil
}

// parseHouseSeats extracts one row per show panel. Links and images are
// resolved against memberBase.
func parseHouseSeats(r io.Reader, memberBase string) ([]shows.RawItem, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parse listing: %w", err)
	}
	base, err := url.Parse(memberBase)
	if err != nil {
		return nil, fmt.Errorf("parse member base: %w", err)
	}

	var items []shows.RawItem
	doc.Find("div.panel-default").Each(func(_ int, panel *goquery.Selection) {
		link := panel.Find("div.panel-heading a").First()
		name := strings.TrimSpace(link.Text())
		if name == "" {
			return
		}
		item := shows.RawItem{
			Name: name,
			Date: strings.TrimSpace(panel.Find("div.grid-cal-date").First().Text()),
		}
		if href, ok := link.Attr("href"); ok {
			item.Link = resolve(base, href)
		}
		if src, ok := panel.Find("img.img-responsive").First().Attr("src"); ok {
			item.Image = resolve(base, src)
		}
		items = append(items, item)
	})
	return items, nil
}
