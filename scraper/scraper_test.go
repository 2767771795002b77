package scraper

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"showcheck/pkg/shows"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

const houseSeatsListing = `<html><body>
<div class="panel panel-default">
  <div class="panel-heading"><a href="./tickets/view/?showid=101">  Magic   Show </a></div>
  <div class="panel-body">
    <img class="img-responsive" src="/resources/media/101.jpg">
    <div class="grid-cal-date">Sat, Mar 7</div>
  </div>
</div>
<div class="panel panel-default">
  <div class="panel-heading"><a href="https://lv.houseseats.com/member/tickets/view/?showid=202">Comedy Night</a></div>
  <div class="grid-cal-date">Mon, Mar 9, 2026</div>
</div>
<div class="panel panel-default">
  <div class="panel-heading">No link here</div>
</div>
</body></html>`

func TestParseHouseSeats(t *testing.T) {
	got, err := parseHouseSeats(strings.NewReader(houseSeatsListing), "https://lv.houseseats.com/member/")
	if err != nil {
		t.Fatalf("parseHouseSeats() error = %v", err)
	}
	want := []shows.RawItem{
		{
			Name:  "Magic   Show",
			Date:  "Sat, Mar 7",
			Link:  "https://lv.houseseats.com/member/tickets/view/?showid=101",
			Image: "https://lv.houseseats.com/resources/media/101.jpg",
		},
		{
			Name: "Comedy Night",
			Date: "Mon, Mar 9, 2026",
			Link: "https://lv.houseseats.com/member/tickets/view/?showid=202",
		},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("parseHouseSeats() mismatch (-want +got):\n%s", diff)
	}
}

const firstTixListing = `<html><body>
<div class="event">
  <a href="/tixer/get-tickets/event/555"><img alt="Cirque Spectacular" src="https://cdn.example/555.jpg"></a>
  <div class="entry-meta">
    <span>Wed, 4 Feb '26</span>
    <span>7:30 PM</span>
  </div>
</div>
<div class="event">
  <img alt="5.11 Tactical Discount" src="/ad.jpg">
  <a href="/tixer/get-tickets/event/556">offer</a>
  <div class="entry-meta">Wed, 4 Feb '26</div>
</div>
<div class="event">
  <div class="entry-title">Promo Without Link</div>
  <div class="entry-meta">Thu, 5 Feb '26</div>
</div>
<div class="event">
  <div class="entry-title">Jazz Evening</div>
  <a href="/about">About</a>
  <a href="/tixer/get-tickets/event/557">Get tickets</a>
  <div class="entry-meta">Fri, 6 Feb '26</div>
</div>
</body></html>`

func TestParseFirstTix(t *testing.T) {
	base, err := url.Parse("https://www.1sttix.org/tixer/get-tickets/events")
	if err != nil {
		t.Fatal(err)
	}
	got, err := parseFirstTix(strings.NewReader(firstTixListing), base, discardLogger())
	if err != nil {
		t.Fatalf("parseFirstTix() error = %v", err)
	}
	want := []shows.RawItem{
		{
			Name:  "Cirque Spectacular",
			Date:  "Wed, 4 Feb '26 7:30 PM",
			Link:  "https://www.1sttix.org/tixer/get-tickets/event/555",
			Image: "https://cdn.example/555.jpg",
		},
		{
			Name: "Jazz Evening",
			Date: "Fri, 6 Feb '26",
			Link: "https://www.1sttix.org/tixer/get-tickets/event/557",
		},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("parseFirstTix() mismatch (-want +got):\n%s", diff)
	}
}

func TestIsSponsor(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{"Free Courses from Coursera", true},
		{"Grand HOTEL stay", true},
		{"Magic Show", false},
	}
	for _, tt := range tests {
		if got := isSponsor(tt.name); got != tt.want {
			t.Errorf("isSponsor(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}
}

// houseSeatsServer fakes the portal. Logins succeed only for the given password.
func houseSeatsServer(t *testing.T, password string) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, &http.Cookie{Name: "JSESSIONID", Value: "abc", Path: "/"})
		fmt.Fprint(w, "<html>home</html>")
	})
	mux.HandleFunc("/member/index.bv", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			http.Error(w, "bad form", http.StatusBadRequest)
			return
		}
		if r.PostForm.Get("password") != password {
			fmt.Fprint(w, `<h1>Member Login</h1><div class="alert alert-danger">Invalid password</div>`)
			return
		}
		fmt.Fprint(w, `<a href="/logout">Logout</a>`)
	})
	mux.HandleFunc("/member/ajax/upcoming-shows.bv", func(w http.ResponseWriter, r *http.Request) {
		if _, err := r.Cookie("JSESSIONID"); err != nil {
			http.Error(w, "no session", http.StatusForbidden)
			return
		}
		if r.Header.Get("X-Requested-With") != "XMLHttpRequest" {
			http.Error(w, "not ajax", http.StatusBadRequest)
			return
		}
		fmt.Fprint(w, houseSeatsListing)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestHouseSeatsFetch(t *testing.T) {
	srv := houseSeatsServer(t, "secret")
	hs, err := NewHouseSeats(Options{
		BaseURL:  srv.URL,
		Email:    "me@example.com",
		Password: "secret",
		Timeout:  5 * time.Second,
		Fast:     true,
		Logger:   discardLogger(),
	})
	if err != nil {
		t.Fatal(err)
	}

	items, err := hs.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("Fetch() returned %d items, want 2", len(items))
	}
	if want := srv.URL + "/member/tickets/view/?showid=101"; items[0].Link != want {
		t.Errorf("link = %q, want %q", items[0].Link, want)
	}
}

func TestHouseSeatsLoginFailure(t *testing.T) {
	srv := houseSeatsServer(t, "secret")
	hs, err := NewHouseSeats(Options{
		BaseURL:  srv.URL,
		Email:    "me@example.com",
		Password: "wrong",
		Fast:     true,
		Logger:   discardLogger(),
	})
	if err != nil {
		t.Fatal(err)
	}

	_, err = hs.Fetch(context.Background())
	if !IsLoginError(err) {
		t.Fatalf("Fetch() error = %v, want LoginError", err)
	}
	if !strings.Contains(err.Error(), "Invalid password") {
		t.Errorf("error should carry the portal message: %v", err)
	}
}

func TestMissingCredentials(t *testing.T) {
	ft, err := NewFirstTix(Options{Logger: discardLogger()})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := ft.Fetch(context.Background()); !IsLoginError(err) {
		t.Errorf("Fetch() error = %v, want LoginError", err)
	}
}

func TestFirstTixFetch(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/login", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			http.Redirect(w, r, "/welcome", http.StatusFound)
			return
		}
		fmt.Fprint(w, "<form></form>")
	})
	mux.HandleFunc("/welcome", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "<html>hello</html>")
	})
	mux.HandleFunc("/tixer/get-tickets/events", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, firstTixListing)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	ft, err := NewFirstTix(Options{
		BaseURL:  srv.URL,
		Email:    "me@example.com",
		Password: "pw",
		Fast:     true,
		Logger:   discardLogger(),
	})
	if err != nil {
		t.Fatal(err)
	}
	items, err := ft.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if len(items) != 2 || items[0].Name != "Cirque Spectacular" {
		t.Errorf("Fetch() = %+v", items)
	}
}

func TestClientErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "nope", http.StatusNotFound)
	}))
	defer srv.Close()

	s, err := newSession(Options{Logger: discardLogger(), Fast: true})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.get(context.Background(), srv.URL, nil); err == nil {
		t.Fatal("get() should fail on 404")
	}
	if n := calls.Load(); n != 1 {
		t.Errorf("server called %d times, want 1", n)
	}
}
