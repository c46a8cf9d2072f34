package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"ksl-notify/models"
	"ksl-notify/utils"
)

// Searcher is the search-backend collaborator: fetch a raw result page for
// one query, then extract structured listings from it.
type Searcher interface {
	Fetch(ctx context.Context, q models.Query) (string, error)
	Extract(html string) ([]models.Listing, error)
}

// Notifier delivers a non-empty report for a query by email.
type Notifier interface {
	Send(report, query string, newCount int) error
}

// Archiver persists newly reported listings to an audit sink. Archive
// failures are logged, never accounted — the archive is write-only
// best-effort and no seen-state is ever read back from it.
type Archiver interface {
	Archive(query string, listings []models.Listing) error
}

// Poller is the orchestrating loop: fetch, diff, report, and update the
// seen store for every configured query, then sleep a fixed interval.
// Execution is fully sequential; one query finishes before the next starts.
type Poller struct {
	queries   []models.Query
	searcher  Searcher
	notifier  Notifier
	acct      *FailureAccountant
	archivers []Archiver
	seen      *SeenStore
	interval  time.Duration
	logger    *utils.Logger

	lastDump string
}

// NewPoller creates a Poller with an empty seen store.
func NewPoller(queries []models.Query, searcher Searcher, notifier Notifier,
	acct *FailureAccountant, archivers []Archiver, interval time.Duration,
	logger *utils.Logger) *Poller {
	return &Poller{
		queries:   queries,
		searcher:  searcher,
		notifier:  notifier,
		acct:      acct,
		archivers: archivers,
		seen:      NewSeenStore(),
		interval:  interval,
		logger:    logger,
	}
}

// Run executes passes until the context is cancelled or the failure
// accountant escalates to fatal. The error boundary is the pass, not the
// query: an interrupt is returned untouched, a soft or hard error is
// accounted and the loop continues, and fatal accumulation returns the
// last error so the process can exit non-zero.
func (p *Poller) Run(ctx context.Context) error {
	p.logger.Info("[poll] watching %d quer%s every %s",
		len(p.queries), pluralQueries(len(p.queries)), p.interval)

	for {
		passID := uuid.NewString()[:8]
		err := p.pass(ctx, passID)
		if err == nil {
			p.acct.OnSuccess()
			p.dumpSeenDaily()
		} else {
			switch Classify(err) {
			case ErrorInterrupt:
				p.logger.Info("[poll] %s: interrupt received, shutting down", passID)
				return err
			case ErrorSoft:
				p.acct.OnSoftError(err)
			case ErrorHard:
				p.acct.OnHardError(err)
			}
			if p.acct.Fatal() {
				p.logger.Error("[poll] %s: too many errors (count %d), terminating",
					passID, p.acct.Count())
				return fmt.Errorf("poll: giving up after repeated failures: %w", err)
			}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(p.interval):
		}
	}
}

// pass runs one full iteration over all queries.
func (p *Poller) pass(ctx context.Context, passID string) error {
	for _, q := range p.queries {
		if err := ctx.Err(); err != nil {
			return err
		}

		html, err := p.searcher.Fetch(ctx, q)
		if err != nil {
			return err
		}
		listings, err := p.searcher.Extract(html)
		if err != nil {
			return err
		}

		key := q.Keyword
		before := p.seen.Len(key)
		report, newSeen := BuildReport(listings, p.seen.All(key))

		if report != "" {
			newCount := len(newSeen) - before
			p.logger.Info("[poll] %s: %d new match%s for %q — sending email",
				passID, newCount, pluralMatches(newCount), key)
			if err := p.notifier.Send(report, key, newCount); err != nil {
				return err
			}
			p.archive(key, listings, newSeen[before:])
		} else {
			p.logger.Debug("[poll] %s: nothing new for %q", passID, key)
		}

		// Persist unconditionally so the store stays authoritative even
		// on an all-seen pass.
		for _, link := range newSeen {
			p.seen.Record(key, link)
		}
	}
	return nil
}

// archive forwards the newly reported listings to every configured sink.
func (p *Poller) archive(query string, listings []models.Listing, newLinks []string) {
	if len(p.archivers) == 0 || len(newLinks) == 0 {
		return
	}

	isNew := make(map[string]struct{}, len(newLinks))
	for _, link := range newLinks {
		isNew[link] = struct{}{}
	}
	fresh := make([]models.Listing, 0, len(newLinks))
	for _, l := range listings {
		if _, ok := isNew[l.Link]; ok {
			fresh = append(fresh, l)
			delete(isNew, l.Link)
		}
	}

	for _, a := range p.archivers {
		if err := a.Archive(query, fresh); err != nil {
			p.logger.Warn("[poll] archive failed for %q: %v", query, err)
		}
	}
}

// dumpSeenDaily debug-logs the seen-store sizes once per calendar day.
func (p *Poller) dumpSeenDaily() {
	today := time.Now().Format("2006-01-02")
	if p.lastDump == today {
		return
	}
	p.lastDump = today
	for _, q := range p.queries {
		p.logger.Debug("[poll] seen store: %d links for %q", p.seen.Len(q.Keyword), q.Keyword)
	}
}

func pluralQueries(n int) string {
	if n == 1 {
		return "y"
	}
	return "ies"
}

func pluralMatches(n int) string {
	if n == 1 {
		return ""
	}
	return "es"
}
