package services

// SeenStore tracks, per query, the links that have already been reported.
// Entries are append-ordered and never evicted; the store lives and dies
// with the process. The poll loop is the only actor, so no locking.
type SeenStore struct {
	links map[string][]string
	index map[string]map[string]struct{}
}

// NewSeenStore creates an empty SeenStore.
func NewSeenStore() *SeenStore {
	return &SeenStore{
		links: make(map[string][]string),
		index: make(map[string]map[string]struct{}),
	}
}

// Has reports whether link was already recorded for query.
func (s *SeenStore) Has(query, link string) bool {
	_, ok := s.index[query][link]
	return ok
}

// All returns a copy of the recorded links for query, oldest first.
func (s *SeenStore) All(query string) []string {
	return append([]string(nil), s.links[query]...)
}

// Record appends link for query. Recording an already-present link is a
// no-op, so the per-query sequence never contains duplicates.
func (s *SeenStore) Record(query, link string) {
	if s.Has(query, link) {
		return
	}
	if s.index[query] == nil {
		s.index[query] = make(map[string]struct{})
	}
	s.index[query][link] = struct{}{}
	s.links[query] = append(s.links[query], link)
}

// Len returns the number of links recorded for query.
func (s *SeenStore) Len(query string) int {
	return len(s.links[query])
}
