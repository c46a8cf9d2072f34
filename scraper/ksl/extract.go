package ksl

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"ksl-notify/models"
)

// ErrNoListings means no embedded listings payload was found in the page,
// usually because the backend changed its markup.
var ErrNoListings = errors.New("ksl: no listings payload in page")

// displayTimeLayout is the UTC timestamp format the backend embeds.
const displayTimeLayout = "2006-01-02T15:04:05Z"

// rawListing mirrors one entry of the embedded listings JSON. Price is a
// float because free items omit it and a few categories use cents.
type rawListing struct {
	ID          int64   `json:"id"`
	Title       string  `json:"title"`
	City        string  `json:"city"`
	State       string  `json:"state"`
	Price       float64 `json:"price"`
	DisplayTime string  `json:"displayTime"`
	ListingType string  `json:"listingType"`
	Description string  `json:"description"`
}

// Extract pulls the structured listings out of a search-results page.
//
// The page carries its results in a JavaScript call of the shape
//
//	window.renderSearchSection({
//	    listings: [ ... ],
//	    displayType: 'grid',
//	    ...
//	})
//
// so the payload is sliced out of the call's argument, the listings key is
// quoted, and everything after the listings line is discarded before
// unmarshalling.
func (c *Client) Extract(html string) ([]models.Listing, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("ksl: parse page: %w", err)
	}

	var payload string
	doc.Find("script").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if txt := s.Text(); strings.Contains(txt, "listings: ") {
			payload = txt
			return false
		}
		return true
	})
	if payload == "" {
		return nil, ErrNoListings
	}

	start := strings.Index(payload, "(")
	end := strings.LastIndex(payload, ")")
	if start < 0 || end < start {
		return nil, ErrNoListings
	}
	raw := payload[start+1 : end]
	raw = strings.Replace(raw, "listings: ", `"listings": `, 1)

	// Keep only the opening brace and the listings line; the remaining
	// properties are not valid JSON.
	lines := strings.Split(raw, "\n")
	if len(lines) > 2 {
		lines = lines[:2]
	}
	raw = strings.TrimRight(strings.Join(lines, "\n"), ",") + "}"

	var wrapper struct {
		Listings []rawListing `json:"listings"`
	}
	if err := json.Unmarshal([]byte(raw), &wrapper); err != nil {
		return nil, fmt.Errorf("ksl: decode listings payload: %w", err)
	}

	listings := make([]models.Listing, 0, len(wrapper.Listings))
	for _, ad := range wrapper.Listings {
		// Featured listings repeat organic results; skip them.
		if strings.Contains(ad.ListingType, "featured") {
			continue
		}
		listings = append(listings, models.Listing{
			Link:        fmt.Sprintf("%s%d", listingURL, ad.ID),
			Title:       normalizeText(ad.Title),
			Price:       int(ad.Price),
			Age:         localDisplayTime(ad.DisplayTime),
			City:        ad.City,
			State:       ad.State,
			Description: normalizeText(ad.Description),
		})
	}

	c.logger.Debug("[ksl] extracted %d listings (of %d raw)", len(listings), len(wrapper.Listings))
	return listings, nil
}

// normalizeText strips leading/trailing whitespace and collapses internal
// whitespace. Seller-entered text routinely carries newlines that would
// break the one-line-per-field report blocks.
func normalizeText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// localDisplayTime converts the backend's UTC posting time to the local
// wall clock for display. Unparseable values pass through untouched.
func localDisplayTime(displayTime string) string {
	created, err := time.Parse(displayTimeLayout, displayTime)
	if err != nil {
		return displayTime
	}
	return created.In(time.Local).Format("2006-01-02 15:04:05")
}
