// Package feed acquires candidate items from syndicated sources. Fetches run
// on a bounded worker pool; per-source health feeds the next cycle's priority
// order.
package feed

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"

	"github.com/launchradar/launchradar/internal/cache"
	"github.com/launchradar/launchradar/internal/config"
	"github.com/launchradar/launchradar/internal/domain"
	"github.com/launchradar/launchradar/internal/netutil"
)

// Entry pages larger than this are truncated before extraction
const maxBodyBytes = 2 << 20

// HealthRegistry is the external collaborator that persists FeedHealth
// between cycles.
type HealthRegistry interface {
	Health(ctx context.Context, sourceID string) (domain.FeedHealth, bool)
	UpdateHealth(ctx context.Context, sourceID string, health domain.FeedHealth) error
}

// Scraper fetches feed sources and extracts entry content. One Scraper lives
// across cycles so circuit breakers keep their state.
type Scraper struct {
	cfg      config.FeedConfig
	client   *http.Client
	limiter  *netutil.HostLimiter
	store    cache.Store
	registry HealthRegistry

	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker
}

// NewScraper wires a Scraper. A nil client gets a default with the configured
// fetch timeout.
func NewScraper(cfg config.FeedConfig, client *http.Client, store cache.Store, registry HealthRegistry) *Scraper {
	if client == nil {
		client = &http.Client{Timeout: cfg.FetchTimeout}
	}
	return &Scraper{
		cfg:      cfg,
		client:   client,
		limiter:  netutil.NewHostLimiter(cfg.RequestsPerSec, cfg.Burst),
		store:    store,
		registry: registry,
		breakers: make(map[string]*gobreaker.CircuitBreaker),
	}
}

// Scrape fetches every feed source, re-ranked by historical discovery rate,
// and returns all newly seen items plus one SourceFetchError per failed
// source. A failing source never aborts its siblings.
func (s *Scraper) Scrape(ctx context.Context, sources []domain.Source) ([]domain.CandidateItem, []error) {
	ranked, healths := s.rank(ctx, sources)

	var (
		mu    sync.Mutex
		items []domain.CandidateItem
		errs  []error
	)
	sem := make(chan struct{}, s.cfg.Workers)

	var wg sync.WaitGroup
	for _, src := range ranked {
		src := src
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := s.scrapeSource(ctx, src, healths[src.ID], sem)
			mu.Lock()
			defer mu.Unlock()
			items = append(items, got...)
			if err != nil {
				errs = append(errs, err)
			}
		}()
	}
	wg.Wait()

	log.Debug().Int("sources", len(ranked)).Int("items", len(items)).Int("errors", len(errs)).
		Msg("feed scrape complete")
	return items, errs
}

// rank orders sources by historical discovery rate, most-recent-success
// breaking ties, and returns the health snapshot each source starts from.
func (s *Scraper) rank(ctx context.Context, sources []domain.Source) ([]domain.Source, map[string]domain.FeedHealth) {
	healths := make(map[string]domain.FeedHealth, len(sources))
	for _, src := range sources {
		if h, ok := s.registry.Health(ctx, src.ID); ok {
			healths[src.ID] = h
		} else {
			healths[src.ID] = domain.FeedHealth{SourceID: src.ID}
		}
	}

	ranked := append([]domain.Source(nil), sources...)
	sort.SliceStable(ranked, func(i, j int) bool {
		hi, hj := healths[ranked[i].ID], healths[ranked[j].ID]
		if hi.DiscoveryRate != hj.DiscoveryRate {
			return hi.DiscoveryRate > hj.DiscoveryRate
		}
		return hi.LastSuccess.After(hj.LastSuccess)
	})
	return ranked, healths
}

type entryResult struct {
	item *domain.CandidateItem
	err  error
}

// scrapeSource owns all FeedHealth mutation for one source: entry workers
// report outcomes on a channel and this goroutine applies them, so writes to
// a given health key are never concurrent.
func (s *Scraper) scrapeSource(ctx context.Context, src domain.Source, health domain.FeedHealth, sem chan struct{}) ([]domain.CandidateItem, error) {
	defer s.persistHealth(src.ID, &health)

	// Feed-document fetches share the worker pool with entry fetches, so
	// total in-flight requests stay bounded whatever the source count
	select {
	case sem <- struct{}{}:
	case <-ctx.Done():
		health.RecordFailure()
		health.ObserveDiscovery(0, s.cfg.HealthEWMAAlpha)
		return nil, &domain.SourceFetchError{SourceID: src.ID, Err: ctx.Err(), At: time.Now()}
	}
	body, err := s.fetchFeed(ctx, src)
	<-sem
	if err != nil {
		health.RecordFailure()
		health.ObserveDiscovery(0, s.cfg.HealthEWMAAlpha)
		return nil, &domain.SourceFetchError{SourceID: src.ID, Err: err, At: time.Now()}
	}

	entries, err := parseFeed(body)
	if err != nil {
		health.RecordFailure()
		health.ObserveDiscovery(0, s.cfg.HealthEWMAAlpha)
		return nil, &domain.SourceFetchError{SourceID: src.ID, Err: err, At: time.Now()}
	}
	if len(entries) > s.cfg.MaxEntriesPerFeed {
		entries = entries[:s.cfg.MaxEntriesPerFeed]
	}

	results := make(chan entryResult)
	launched := 0
	for _, e := range entries {
		if e.Link == "" || s.alreadySeen(ctx, src.ID, e.Link) {
			continue
		}
		launched++
		go func(e entry) {
			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				results <- entryResult{err: ctx.Err()}
				return
			}
			defer func() { <-sem }()
			item, err := s.fetchEntry(ctx, src, e)
			results <- entryResult{item: item, err: err}
		}(e)
	}

	var items []domain.CandidateItem
	now := time.Now()
	for i := 0; i < launched; i++ {
		r := <-results
		if r.err != nil {
			health.RecordFailure()
			log.Debug().Err(r.err).Str("source", src.ID).Msg("entry fetch failed")
			continue
		}
		health.RecordEntry(now)
		s.markSeen(ctx, src.ID, r.item.URL)
		items = append(items, *r.item)
	}
	health.ObserveDiscovery(len(items), s.cfg.HealthEWMAAlpha)
	return items, nil
}

func (s *Scraper) persistHealth(sourceID string, health *domain.FeedHealth) {
	// Persist with a fresh context so a cycle timeout cannot drop the update
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.registry.UpdateHealth(ctx, sourceID, *health); err != nil {
		log.Warn().Err(err).Str("source", sourceID).Msg("feed health persist failed")
	}
}

// fetchFeed retrieves the feed document through the source's circuit breaker.
func (s *Scraper) fetchFeed(ctx context.Context, src domain.Source) ([]byte, error) {
	breaker := s.breaker(src.ID)
	out, err := breaker.Execute(func() (interface{}, error) {
		ctx, cancel := context.WithTimeout(ctx, s.cfg.FetchTimeout)
		defer cancel()
		return s.get(ctx, src.URL)
	})
	if err != nil {
		return nil, err
	}
	return out.([]byte), nil
}

// fetchEntry retrieves one entry page and runs the extraction fallback chain:
// primary extractor, tag strip, then entry summary only. Extraction failure
// is non-fatal; only a fetch failure surfaces as an error.
func (s *Scraper) fetchEntry(ctx context.Context, src domain.Source, e entry) (*domain.CandidateItem, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.EntryTimeout)
	defer cancel()

	page, err := s.get(ctx, e.Link)
	if err != nil {
		return nil, err
	}

	body, err := extractContent(page)
	if err != nil {
		log.Debug().Str("url", e.Link).Err(&domain.ExtractionError{URL: e.Link, Err: err}).
			Msg("primary extraction failed, falling back")
		body = stripHTML(page)
		if body == "" {
			body = e.Summary
		}
	}

	return &domain.CandidateItem{
		SourceID:    src.ID,
		SourceKind:  domain.SourceKindFeed,
		URL:         domain.NormalizeURL(e.Link),
		Title:       e.Title,
		Body:        body,
		PublishedAt: e.Published,
		ObservedAt:  time.Now(),
		SourceTier:  src.Tier,
	}, nil
}

func (s *Scraper) get(ctx context.Context, rawURL string) ([]byte, error) {
	if u, err := url.Parse(rawURL); err == nil && u.Host != "" {
		if err := s.limiter.Wait(ctx, u.Host); err != nil {
			return nil, err
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", "launchradar/1.0 (+https://github.com/launchradar/launchradar)")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("unexpected status %d for %s", resp.StatusCode, rawURL)
	}
	return io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
}

func (s *Scraper) breaker(sourceID string) *gobreaker.CircuitBreaker {
	s.mu.Lock()
	defer s.mu.Unlock()

	if b, ok := s.breakers[sourceID]; ok {
		return b
	}
	failures := s.cfg.BreakerFailures
	b := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        sourceID,
		MaxRequests: 1,
		Timeout:     s.cfg.BreakerCooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().Str("source", name).Str("from", from.String()).Str("to", to.String()).
				Msg("feed breaker state change")
		},
	})
	s.breakers[sourceID] = b
	return b
}

func (s *Scraper) alreadySeen(ctx context.Context, sourceID, link string) bool {
	_, seen := s.store.Get(ctx, seenKey(sourceID, link))
	return seen
}

func (s *Scraper) markSeen(ctx context.Context, sourceID, link string) {
	s.store.Set(ctx, seenKey(sourceID, link), []byte{1}, s.cfg.SeenTTL)
}

// seenKey scopes the persisted seen-set to one source.
func seenKey(sourceID, link string) string {
	sum := sha256.Sum256([]byte(domain.NormalizeURL(link)))
	return "seen:" + sourceID + ":" + hex.EncodeToString(sum[:])
}
