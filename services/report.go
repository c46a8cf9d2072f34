package services

import (
	"fmt"
	"strings"
	"unicode"

	"ksl-notify/models"
)

const separator = "*************************"

// BuildReport diffs a freshly fetched batch of listings against the links
// already seen for the query and renders one formatted block per genuinely
// new listing, in batch order. It returns the report text and the seen
// sequence extended with every newly encountered link.
//
// BuildReport is pure: the caller persists the returned sequence. An empty
// report means nothing new was found and must not be mailed.
func BuildReport(listings []models.Listing, seen []string) (string, []string) {
	seenSet := make(map[string]struct{}, len(seen))
	for _, link := range seen {
		seenSet[link] = struct{}{}
	}

	newSeen := append([]string(nil), seen...)
	var b strings.Builder
	for _, l := range listings {
		if _, ok := seenSet[l.Link]; ok {
			continue
		}
		fmt.Fprintf(&b, "%s\n%s\n%s\n$%d - %s - %s, %s\n*  %s\n\n",
			separator, l.Link, l.Title, l.Price, l.Age, l.City, l.State, l.Description)
		seenSet[l.Link] = struct{}{}
		newSeen = append(newSeen, l.Link)
	}

	return asciiOnly(b.String()), newSeen
}

// asciiOnly drops every rune outside the 7-bit range. Listings routinely
// carry smart quotes and emoji that plain-text mail bodies choke on.
func asciiOnly(s string) string {
	return strings.Map(func(r rune) rune {
		if r > unicode.MaxASCII {
			return -1
		}
		return r
	}, s)
}
