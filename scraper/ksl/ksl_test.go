package ksl

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"ksl-notify/models"
	"ksl-notify/utils"
)

func newTestLogger() *utils.Logger { return utils.NewLogger() }

func queryValues(t *testing.T, rawURL string) url.Values {
	t.Helper()
	u, err := url.Parse(rawURL)
	if err != nil {
		t.Fatalf("BuildSearchURL produced an unparseable URL %q: %v", rawURL, err)
	}
	return u.Query()
}

func TestBuildSearchURLDefaults(t *testing.T) {
	v := queryValues(t, BuildSearchURL(models.Query{Keyword: "lawn mower"}))

	tests := []struct {
		key  string
		want string
	}{
		{"keyword", "lawn mower"},
		{"nocache", "1"},
		{"sort", "0"},
		{"sold", "0"},
	}
	for _, tt := range tests {
		if got := v.Get(tt.key); got != tt.want {
			t.Errorf("query[%s] = %q; want %q", tt.key, got, tt.want)
		}
	}
	for _, absent := range []string{"priceFrom", "priceTo", "city", "state", "zip", "miles", "perPage"} {
		if v.Has(absent) {
			t.Errorf("query unexpectedly contains %s=%q", absent, v.Get(absent))
		}
	}
}

func TestBuildSearchURLPriceBounds(t *testing.T) {
	tests := []struct {
		name     string
		min, max int
		wantFrom string
		wantTo   string
	}{
		{"both set", 50, 200, "50", "200"},
		{"swapped", 200, 50, "50", "200"},
		{"min only", 50, 0, "50", ""},
		{"max only", 0, 200, "", "200"},
		{"negative clamped", -5, -10, "", ""},
	}

	for _, tt := range tests {
		v := queryValues(t, BuildSearchURL(models.Query{
			Keyword: "x", MinPrice: tt.min, MaxPrice: tt.max,
		}))
		if got := v.Get("priceFrom"); got != tt.wantFrom {
			t.Errorf("%s: priceFrom = %q; want %q", tt.name, got, tt.wantFrom)
		}
		if got := v.Get("priceTo"); got != tt.wantTo {
			t.Errorf("%s: priceTo = %q; want %q", tt.name, got, tt.wantTo)
		}
	}
}

func TestBuildSearchURLCityImpliesState(t *testing.T) {
	v := queryValues(t, BuildSearchURL(models.Query{Keyword: "x", City: "Provo"}))
	if got := v.Get("state"); got != "UT" {
		t.Errorf("state = %q; want UT default when only city is set", got)
	}

	v = queryValues(t, BuildSearchURL(models.Query{Keyword: "x", City: "Boise", State: "ID"}))
	if got := v.Get("state"); got != "ID" {
		t.Errorf("state = %q; explicit state must win", got)
	}
}

func TestBuildSearchURLFlags(t *testing.T) {
	v := queryValues(t, BuildSearchURL(models.Query{
		Keyword: "x", SortOldestFirst: true, IncludeSold: true,
	}))
	if got := v.Get("sort"); got != "1" {
		t.Errorf("sort = %q; want 1", got)
	}
	if got := v.Get("sold"); got != "1" {
		t.Errorf("sold = %q; want 1", got)
	}
}

const samplePage = `<html><head><script>var unrelated = 1;</script>
<script>
window.renderSearchSection({
    listings: [{"id":123,"title":"Honda Lawn Mower","city":"Provo","state":"UT","price":80,"displayTime":"2024-05-01T12:00:00Z","listingType":"default","description":"Runs great"},{"id":456,"title":"Sponsored Mower","city":"Lehi","state":"UT","price":500,"displayTime":"2024-05-01T13:00:00Z","listingType":"featured","description":"Ad"},{"id":789,"title":"Free couch","city":"Orem","state":"UT","displayTime":"2024-05-02T08:30:00Z","listingType":"default","description":"Slightly used"}],
    displayType: 'grid',
    userData: {"contactBehindLogin":true}
})
</script></head><body></body></html>`

func TestExtract(t *testing.T) {
	c := New(nil, newTestLogger())

	listings, err := c.Extract(samplePage)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if len(listings) != 2 {
		t.Fatalf("Extract returned %d listings; want 2 (featured skipped)", len(listings))
	}

	first := listings[0]
	if first.Link != "https://www.ksl.com/classifieds/listing/123" {
		t.Errorf("link = %q; want listing URL ending in /123", first.Link)
	}
	if first.Title != "Honda Lawn Mower" || first.Price != 80 || first.City != "Provo" || first.State != "UT" {
		t.Errorf("unexpected first listing: %+v", first)
	}
	if want := localDisplayTime("2024-05-01T12:00:00Z"); first.Age != want {
		t.Errorf("age = %q; want %q", first.Age, want)
	}

	// Free items carry no price field.
	if listings[1].Price != 0 {
		t.Errorf("missing price should default to 0, got %d", listings[1].Price)
	}
}

func TestExtractNoListingsPayload(t *testing.T) {
	c := New(nil, newTestLogger())

	_, err := c.Extract("<html><body>maintenance page</body></html>")
	if !errors.Is(err, ErrNoListings) {
		t.Errorf("Extract = %v; want ErrNoListings", err)
	}
}

func TestNormalizeText(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"  Honda   mower ", "Honda mower"},
		{"line one\nline two", "line one line two"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := normalizeText(tt.in); got != tt.want {
			t.Errorf("normalizeText(%q) = %q; want %q", tt.in, got, tt.want)
		}
	}
}

func TestLocalDisplayTimePassthrough(t *testing.T) {
	if got := localDisplayTime("garbage"); got != "garbage" {
		t.Errorf("unparseable display time mangled to %q", got)
	}
}

func TestHTTPEngineFetchPage(t *testing.T) {
	var gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		_, _ = w.Write([]byte("page body"))
	}))
	defer srv.Close()

	e := NewHTTPEngine(5*time.Second, newTestLogger())
	body, err := e.FetchPage(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("FetchPage: %v", err)
	}
	if body != "page body" {
		t.Errorf("body = %q; want %q", body, "page body")
	}

	found := false
	for _, ua := range userAgents {
		if ua == gotUA {
			found = true
			break
		}
	}
	if !found {
		t.Errorf("request User-Agent %q is not from the rotation list", gotUA)
	}
}

func TestHTTPEngineFetchPageServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	e := NewHTTPEngine(5*time.Second, newTestLogger())
	if _, err := e.FetchPage(context.Background(), srv.URL); err == nil {
		t.Error("FetchPage succeeded on a 503 response")
	}
}
