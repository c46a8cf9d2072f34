package models

// Listing is one classifieds search result. The Link is the stable unique
// identifier used for deduplication across polls.
type Listing struct {
	Link        string
	Title       string
	Price       int
	Age         string
	City        string
	State       string
	Description string
}

// Query is a saved search specification. It is immutable once the poll loop
// starts; two queries are the same query iff their Keyword matches.
type Query struct {
	Keyword string

	Category    string
	SubCategory string
	MinPrice    int
	MaxPrice    int
	Zip         string
	City        string
	State       string
	Miles       int
	PerPage     int

	// SortOldestFirst flips the backend sort from newest-first (default)
	// to oldest-first.
	SortOldestFirst bool
	// IncludeSold also returns listings already marked sold.
	IncludeSold bool
}
