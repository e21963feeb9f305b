package feed

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/launchradar/launchradar/internal/cache"
	"github.com/launchradar/launchradar/internal/config"
	"github.com/launchradar/launchradar/internal/domain"
)

type fakeRegistry struct {
	mu      sync.Mutex
	healths map[string]domain.FeedHealth
	updates int
}

func newFakeRegistry() *fakeRegistry {
	return &fakeRegistry{healths: make(map[string]domain.FeedHealth)}
}

func (r *fakeRegistry) Health(_ context.Context, sourceID string) (domain.FeedHealth, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	h, ok := r.healths[sourceID]
	return h, ok
}

func (r *fakeRegistry) UpdateHealth(_ context.Context, sourceID string, h domain.FeedHealth) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.healths[sourceID] = h
	r.updates++
	return nil
}

func testFeedConfig() config.FeedConfig {
	cfg := config.Default().Feeds
	cfg.Workers = 4
	cfg.RequestsPerSec = 1000
	cfg.Burst = 1000
	return cfg
}

const articleBody = `<html><body><article>Acme Protocol announced that its token
generation event opens today. The claim portal is live for early contributors and
the team published final tokenomics alongside the launch announcement.</article></body></html>`

func rssDocument(serverURL string, n int) string {
	var items strings.Builder
	for i := 0; i < n; i++ {
		fmt.Fprintf(&items, `<item>
  <title>Acme update %d</title>
  <link>%s/articles/%d</link>
  <description>Acme summary %d</description>
  <pubDate>Mon, 02 Jan 2006 15:04:05 -0700</pubDate>
</item>`, i, serverURL, i, i)
	}
	return `<?xml version="1.0"?><rss version="2.0"><channel>` + items.String() + `</channel></rss>`
}

func newFeedServer(t *testing.T, entries int) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	var srv *httptest.Server
	mux.HandleFunc("/feed", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, rssDocument(srv.URL, entries))
	})
	mux.HandleFunc("/articles/", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, articleBody)
	})
	srv = httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestParseFeed_RSS(t *testing.T) {
	entries, err := parseFeed([]byte(rssDocument("https://example.com", 2)))
	require.NoError(t, err)
	require.Len(t, entries, 2)

	assert.Equal(t, "Acme update 0", entries[0].Title)
	assert.Equal(t, "https://example.com/articles/0", entries[0].Link)
	assert.Equal(t, "Acme summary 0", entries[0].Summary)
	assert.False(t, entries[0].Published.IsZero())
}

func TestParseFeed_Atom(t *testing.T) {
	doc := `<?xml version="1.0"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <entry>
    <title>Acme TGE</title>
    <link rel="alternate" href="https://example.com/tge"/>
    <summary>claim portal live</summary>
    <updated>2026-08-01T10:00:00Z</updated>
  </entry>
</feed>`
	entries, err := parseFeed([]byte(doc))
	require.NoError(t, err)
	require.Len(t, entries, 1)

	assert.Equal(t, "Acme TGE", entries[0].Title)
	assert.Equal(t, "https://example.com/tge", entries[0].Link)
	assert.Equal(t, "claim portal live", entries[0].Summary)
}

func TestParseFeed_Rejects(t *testing.T) {
	_, err := parseFeed([]byte("not xml at all"))
	assert.Error(t, err)

	_, err = parseFeed([]byte("<html><body>page</body></html>"))
	assert.Error(t, err)
}

func TestExtractContent_FallbackChain(t *testing.T) {
	text, err := extractContent([]byte(articleBody))
	require.NoError(t, err)
	assert.Contains(t, text, "token generation event opens today")

	_, err = extractContent([]byte("<html><body><p>too short</p></body></html>"))
	require.Error(t, err)

	stripped := stripHTML([]byte("<div>Acme <b>TGE</b> live</div>"))
	assert.Equal(t, "Acme TGE live", stripped)
}

func TestScrape_CollectsAndDedupesAcrossCycles(t *testing.T) {
	srv := newFeedServer(t, 3)
	registry := newFakeRegistry()
	store := cache.NewMemory(1000)
	defer store.Close()

	s := NewScraper(testFeedConfig(), srv.Client(), store, registry)
	sources := []domain.Source{{ID: "feed1", Kind: domain.SourceKindFeed, URL: srv.URL + "/feed", Tier: 1}}

	items, errs := s.Scrape(context.Background(), sources)
	require.Empty(t, errs)
	require.Len(t, items, 3)

	assert.Equal(t, "feed1", items[0].SourceID)
	assert.Equal(t, domain.SourceKindFeed, items[0].SourceKind)
	assert.Equal(t, 1, items[0].SourceTier)
	assert.Contains(t, items[0].Body, "token generation event")

	health, ok := registry.Health(context.Background(), "feed1")
	require.True(t, ok)
	assert.Equal(t, 3, health.SuccessCount)
	assert.Zero(t, health.FailureCount)
	assert.Positive(t, health.DiscoveryRate)

	// Second cycle: every URL already in the seen set
	items, errs = s.Scrape(context.Background(), sources)
	require.Empty(t, errs)
	assert.Empty(t, items)
}

func TestScrape_FailingSourceDoesNotAbortSiblings(t *testing.T) {
	srv := newFeedServer(t, 2)
	broken := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer broken.Close()

	registry := newFakeRegistry()
	store := cache.NewMemory(1000)
	defer store.Close()

	s := NewScraper(testFeedConfig(), nil, store, registry)
	sources := []domain.Source{
		{ID: "bad", Kind: domain.SourceKindFeed, URL: broken.URL + "/feed"},
		{ID: "good", Kind: domain.SourceKindFeed, URL: srv.URL + "/feed"},
	}

	items, errs := s.Scrape(context.Background(), sources)

	assert.Len(t, items, 2, "healthy source still delivers")
	require.Len(t, errs, 1, "exactly one error per failing source")

	var fetchErr *domain.SourceFetchError
	require.ErrorAs(t, errs[0], &fetchErr)
	assert.Equal(t, "bad", fetchErr.SourceID)

	health, _ := registry.Health(context.Background(), "bad")
	assert.Equal(t, 1, health.FailureCount)
}

func TestRank_DiscoveryRateThenRecency(t *testing.T) {
	registry := newFakeRegistry()
	now := time.Now()
	registry.healths["cold"] = domain.FeedHealth{SourceID: "cold", DiscoveryRate: 0.1}
	registry.healths["hot"] = domain.FeedHealth{SourceID: "hot", DiscoveryRate: 2.5}
	registry.healths["tie_old"] = domain.FeedHealth{SourceID: "tie_old", DiscoveryRate: 1.0, LastSuccess: now.Add(-2 * time.Hour)}
	registry.healths["tie_new"] = domain.FeedHealth{SourceID: "tie_new", DiscoveryRate: 1.0, LastSuccess: now}

	store := cache.NewMemory(100)
	defer store.Close()
	s := NewScraper(testFeedConfig(), nil, store, registry)

	sources := []domain.Source{
		{ID: "cold", Kind: domain.SourceKindFeed, URL: "https://c"},
		{ID: "tie_old", Kind: domain.SourceKindFeed, URL: "https://o"},
		{ID: "hot", Kind: domain.SourceKindFeed, URL: "https://h"},
		{ID: "tie_new", Kind: domain.SourceKindFeed, URL: "https://n"},
	}

	ranked, _ := s.rank(context.Background(), sources)
	ids := []string{ranked[0].ID, ranked[1].ID, ranked[2].ID, ranked[3].ID}
	assert.Equal(t, []string{"hot", "tie_new", "tie_old", "cold"}, ids)
}

func TestScrape_BreakerOpensAfterRepeatedFailures(t *testing.T) {
	requests := 0
	broken := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		requests++
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer broken.Close()

	registry := newFakeRegistry()
	store := cache.NewMemory(100)
	defer store.Close()

	cfg := testFeedConfig()
	cfg.BreakerFailures = 2
	s := NewScraper(cfg, nil, store, registry)
	sources := []domain.Source{{ID: "flaky", Kind: domain.SourceKindFeed, URL: broken.URL + "/feed"}}

	for i := 0; i < 4; i++ {
		_, errs := s.Scrape(context.Background(), sources)
		require.Len(t, errs, 1)
	}
	assert.Equal(t, 2, requests, "breaker must stop hitting the endpoint after the failure threshold")
}

func TestScrape_FeedFetchConcurrencyIsBounded(t *testing.T) {
	var mu sync.Mutex
	inFlight, peak := 0, 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		mu.Lock()
		inFlight++
		if inFlight > peak {
			peak = inFlight
		}
		mu.Unlock()

		time.Sleep(30 * time.Millisecond)

		mu.Lock()
		inFlight--
		mu.Unlock()
		fmt.Fprint(w, `<?xml version="1.0"?><rss version="2.0"><channel></channel></rss>`)
	}))
	defer srv.Close()

	cfg := testFeedConfig()
	cfg.Workers = 1

	store := cache.NewMemory(1024)
	defer store.Close()
	s := NewScraper(cfg, srv.Client(), store, newFakeRegistry())

	sources := make([]domain.Source, 4)
	for i := range sources {
		sources[i] = domain.Source{
			ID:   fmt.Sprintf("feed:s%d", i),
			Kind: domain.SourceKindFeed,
			URL:  fmt.Sprintf("%s/feed%d", srv.URL, i),
		}
	}

	_, errs := s.Scrape(context.Background(), sources)
	require.Empty(t, errs)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, peak, "feed fetches share the worker pool")
}
