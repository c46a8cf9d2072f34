// Package ksl talks to the KSL classifieds search backend: it builds search
// URLs from query specifications, fetches result pages through a pluggable
// engine, and extracts structured listings from the page HTML.
package ksl

import (
	"context"
	"net/url"
	"strconv"

	"ksl-notify/models"
	"ksl-notify/utils"
)

const (
	searchURL  = "https://ksl.com/classifieds/search?"
	listingURL = "https://www.ksl.com/classifieds/listing/"
)

// Client fetches and parses classifieds search results.
type Client struct {
	engine Engine
	logger *utils.Logger
}

// New creates a Client that fetches pages with the given engine.
func New(engine Engine, logger *utils.Logger) *Client {
	return &Client{engine: engine, logger: logger}
}

// Fetch retrieves the raw search-results HTML for a single query.
func (c *Client) Fetch(ctx context.Context, q models.Query) (string, error) {
	u := BuildSearchURL(q)
	c.logger.Debug("[ksl] fetching %s", u)
	return c.engine.FetchPage(ctx, u)
}

// BuildSearchURL encodes a query specification into a search URL.
func BuildSearchURL(q models.Query) string {
	v := url.Values{}
	v.Set("keyword", q.Keyword)
	// Results must always be fresh; the backend honors this knob.
	v.Set("nocache", "1")

	minp, maxp := q.MinPrice, q.MaxPrice
	if minp < 0 {
		minp = 0
	}
	if maxp < 0 {
		maxp = 0
	}
	// When both bounds are given, the lower value is the floor.
	if minp > 0 && maxp > 0 && minp > maxp {
		minp, maxp = maxp, minp
	}
	if minp > 0 {
		v.Set("priceFrom", strconv.Itoa(minp))
	}
	if maxp > 0 {
		v.Set("priceTo", strconv.Itoa(maxp))
	}

	if q.Category != "" {
		v.Set("category", q.Category)
	}
	if q.SubCategory != "" {
		v.Set("subCategory", q.SubCategory)
	}
	if q.Zip != "" {
		v.Set("zip", q.Zip)
	}
	if q.City != "" {
		v.Set("city", q.City)
		// A city filter without a state is ambiguous server-side.
		if q.State == "" {
			v.Set("state", "UT")
		}
	}
	if q.State != "" {
		v.Set("state", q.State)
	}
	if q.Miles > 0 {
		v.Set("miles", strconv.Itoa(q.Miles))
	}
	if q.PerPage > 0 {
		v.Set("perPage", strconv.Itoa(q.PerPage))
	}

	sort := "0"
	if q.SortOldestFirst {
		sort = "1"
	}
	v.Set("sort", sort)

	sold := "0"
	if q.IncludeSold {
		sold = "1"
	}
	v.Set("sold", sold)

	return searchURL + v.Encode()
}
