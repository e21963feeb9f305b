// Package social acquires candidate items from a rate-limited social API.
// The monitor picks a strategy ladder rung from the remaining quota and
// degrades to cheaper strategies as the budget shrinks.
package social

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/launchradar/launchradar/internal/config"
	"github.com/launchradar/launchradar/internal/domain"
)

// Post is one normalized item returned by the platform API
type Post struct {
	ID        string
	Author    string
	AuthorID  string
	Text      string
	URL       string
	CreatedAt time.Time
	Verified  bool
	Followers int
	Likes     int
	Reposts   int
	IsReply   bool
	IsQuote   bool
}

// Response is an API page plus the quota its headers reported
type Response struct {
	Posts []Post
	Quota *Quota
}

// API is the platform client surface the monitor depends on
type API interface {
	SearchRecent(ctx context.Context, query string, limit int) (*Response, error)
	UserTimeline(ctx context.Context, userID string, limit int) (*Response, error)
	ListTimeline(ctx context.Context, listID string, limit int) (*Response, error)
	// ResolveHandles maps handles to user ids; callers batch to keep calls few
	ResolveHandles(ctx context.Context, handles []string) (map[string]string, *Quota, error)
}

// Strategy names one rung of the acquisition ladder
type Strategy string

const (
	StrategyFull    Strategy = "full"    // timelines + multi-query search + lists
	StrategyReduced Strategy = "reduced" // lists + one merged search
	StrategyMinimal Strategy = "minimal" // lists only
)

// Result is one monitor pass: items, per-strategy errors, and whether quota
// exhaustion shaped the outcome.
type Result struct {
	Items       []domain.CandidateItem
	Errors      []error
	Strategy    Strategy
	RateLimited bool // Exhaustion downgraded or emptied the pass; not an error
	SearchCalls int  // Observability for strategy assertions
}

// Monitor runs the social side of acquisition. One Monitor lives across
// cycles so RateLimits carries over.
type Monitor struct {
	cfg    config.SocialConfig
	api    API
	limits *RateLimits

	mu      sync.Mutex
	idCache map[string]string // handle -> resolved user id
}

// NewMonitor wires a Monitor around a platform client.
func NewMonitor(cfg config.SocialConfig, api API, limits *RateLimits) *Monitor {
	if limits == nil {
		limits = NewRateLimits()
	}
	return &Monitor{cfg: cfg, api: api, limits: limits, idCache: make(map[string]string)}
}

// Limits exposes the monitor's rate-limit state for status reporting.
func (m *Monitor) Limits() *RateLimits { return m.limits }

// Fetch runs the ladder rung selected by remaining search quota. Strategies
// execute concurrently; results merge de-duplicated by platform item id.
// Sustained exhaustion yields an empty, non-error result. Social-kind sources
// contribute their configured queries to the search arm ahead of the
// per-entity queries.
func (m *Monitor) Fetch(ctx context.Context, entities []domain.Entity, sources []domain.Source) Result {
	strategy := m.selectStrategy()
	res := Result{Strategy: strategy, RateLimited: strategy != StrategyFull}

	if strategy == StrategyMinimal && m.limits.Exhausted(ClassLists) {
		log.Info().Msg("social quota exhausted on every class, skipping pass")
		res.RateLimited = true
		return res
	}

	ctx, cancel := context.WithTimeout(ctx, m.cfg.StrategyTimeout)
	defer cancel()

	type fetchOut struct {
		origin string
		posts  []Post
		calls  int
		err    error
	}
	outCh := make(chan fetchOut)
	launched := 0
	run := func(origin string, fn func(context.Context) ([]Post, int, error)) {
		launched++
		go func() {
			posts, calls, err := fn(ctx)
			outCh <- fetchOut{origin: origin, posts: posts, calls: calls, err: err}
		}()
	}

	run("social:lists", m.fetchLists)
	switch strategy {
	case StrategyFull:
		run("social:search", func(ctx context.Context) ([]Post, int, error) {
			return m.search(ctx, searchQueries(sources, entities, m.cfg.MaxSearchQueries))
		})
		run("social:timeline", func(ctx context.Context) ([]Post, int, error) {
			return m.fetchTimelines(ctx, entities)
		})
	case StrategyReduced:
		run("social:search", func(ctx context.Context) ([]Post, int, error) {
			return m.search(ctx, []string{mergedQuery(entities)})
		})
	}

	seen := make(map[string]bool)
	for i := 0; i < launched; i++ {
		out := <-outCh
		res.SearchCalls += out.calls
		if out.err != nil {
			if errors.Is(out.err, domain.ErrRateLimitExhausted) {
				res.RateLimited = true
				continue
			}
			res.Errors = append(res.Errors, &domain.SourceFetchError{
				SourceID: out.origin, Err: out.err, At: time.Now(),
			})
			continue
		}
		for _, p := range out.posts {
			if p.ID == "" || seen[p.ID] {
				continue
			}
			seen[p.ID] = true
			res.Items = append(res.Items, toCandidate(out.origin, p))
		}
	}

	log.Debug().Str("strategy", string(strategy)).Int("items", len(res.Items)).
		Bool("rate_limited", res.RateLimited).Msg("social pass complete")
	return res
}

func (m *Monitor) selectStrategy() Strategy {
	remaining := m.limits.Remaining(ClassSearch)
	switch {
	case remaining >= m.cfg.FullQuota:
		return StrategyFull
	case remaining >= m.cfg.ReducedQuota:
		return StrategyReduced
	default:
		return StrategyMinimal
	}
}

func (m *Monitor) search(ctx context.Context, queries []string) ([]Post, int, error) {
	var posts []Post
	calls := 0
	for _, q := range queries {
		if m.limits.Exhausted(ClassSearch) {
			return posts, calls, domain.ErrRateLimitExhausted
		}
		resp, err := m.api.SearchRecent(ctx, q, 50)
		calls++
		if err != nil {
			return posts, calls, fmt.Errorf("search %q: %w", q, err)
		}
		m.observe(ClassSearch, resp.Quota)
		posts = append(posts, resp.Posts...)
	}
	return posts, calls, nil
}

func (m *Monitor) fetchLists(ctx context.Context) ([]Post, int, error) {
	var posts []Post
	for _, listID := range m.cfg.ListIDs {
		if m.limits.Exhausted(ClassLists) {
			return posts, 0, domain.ErrRateLimitExhausted
		}
		resp, err := m.api.ListTimeline(ctx, listID, 100)
		if err != nil {
			return posts, 0, fmt.Errorf("list %s: %w", listID, err)
		}
		m.observe(ClassLists, resp.Quota)
		posts = append(posts, resp.Posts...)
	}
	return posts, 0, nil
}

// fetchTimelines resolves entity handles in the fewest possible batches, then
// pulls each resolved account's primary timeline.
func (m *Monitor) fetchTimelines(ctx context.Context, entities []domain.Entity) ([]Post, int, error) {
	ids, err := m.resolve(ctx, entityHandles(entities))
	if err != nil {
		return nil, 0, err
	}

	var posts []Post
	for _, id := range ids {
		if m.limits.Exhausted(ClassTimeline) {
			return posts, 0, domain.ErrRateLimitExhausted
		}
		resp, err := m.api.UserTimeline(ctx, id, 20)
		if err != nil {
			return posts, 0, fmt.Errorf("timeline %s: %w", id, err)
		}
		m.observe(ClassTimeline, resp.Quota)
		posts = append(posts, resp.Posts...)
	}
	return posts, 0, nil
}

// resolve maps handles to user ids, serving repeats from the cross-cycle
// cache and batching the rest.
func (m *Monitor) resolve(ctx context.Context, handles []string) ([]string, error) {
	var ids []string
	var missing []string

	m.mu.Lock()
	for _, h := range handles {
		if id, ok := m.idCache[h]; ok {
			ids = append(ids, id)
		} else {
			missing = append(missing, h)
		}
	}
	m.mu.Unlock()

	for start := 0; start < len(missing); start += m.cfg.BatchSize {
		end := start + m.cfg.BatchSize
		if end > len(missing) {
			end = len(missing)
		}
		if m.limits.Exhausted(ClassLookup) {
			return ids, domain.ErrRateLimitExhausted
		}
		resolved, quota, err := m.api.ResolveHandles(ctx, missing[start:end])
		if err != nil {
			return ids, fmt.Errorf("resolve handles: %w", err)
		}
		m.observe(ClassLookup, quota)

		m.mu.Lock()
		for handle, id := range resolved {
			m.idCache[handle] = id
		}
		m.mu.Unlock()
		for _, h := range missing[start:end] {
			if id, ok := resolved[h]; ok {
				ids = append(ids, id)
			}
		}
	}
	return ids, nil
}

func (m *Monitor) observe(class EndpointClass, q *Quota) {
	if q != nil {
		m.limits.Observe(class, *q)
	}
}

func toCandidate(origin string, p Post) domain.CandidateItem {
	return domain.CandidateItem{
		SourceID:    origin,
		SourceKind:  domain.SourceKindSocial,
		URL:         domain.NormalizeURL(p.URL),
		Body:        p.Text,
		PublishedAt: p.CreatedAt,
		ObservedAt:  time.Now(),
		Social: &domain.SocialMeta{
			ItemID:    p.ID,
			Author:    p.Author,
			Verified:  p.Verified,
			Followers: p.Followers,
			Likes:     p.Likes,
			Reposts:   p.Reposts,
			IsReply:   p.IsReply,
			IsQuote:   p.IsQuote,
		},
	}
}

// entityHandles collects aliases written as @handles, the convention for an
// entity's official accounts.
func entityHandles(entities []domain.Entity) []string {
	var handles []string
	seen := make(map[string]bool)
	for _, e := range entities {
		for _, alias := range e.Aliases {
			if strings.HasPrefix(alias, "@") {
				h := strings.TrimPrefix(alias, "@")
				if h != "" && !seen[h] {
					seen[h] = true
					handles = append(handles, h)
				}
			}
		}
	}
	return handles
}

// searchQueries combines explicitly configured source queries with the
// generated per-entity queries, capped at max.
func searchQueries(sources []domain.Source, entities []domain.Entity, max int) []string {
	var queries []string
	for _, src := range sources {
		if src.Kind == domain.SourceKindSocial && src.Query != "" && len(queries) < max {
			queries = append(queries, src.Query)
		}
	}
	for _, q := range buildQueries(entities, max-len(queries)) {
		queries = append(queries, q)
	}
	return queries
}

// buildQueries fans one search query out per entity, highest priority first,
// capped at max.
func buildQueries(entities []domain.Entity, max int) []string {
	ordered := make([]domain.Entity, 0, len(entities))
	for _, tier := range []domain.PriorityTier{domain.PriorityHigh, domain.PriorityMedium, domain.PriorityLow, ""} {
		for _, e := range entities {
			if e.Priority == tier {
				ordered = append(ordered, e)
			}
		}
	}

	var queries []string
	for _, e := range ordered {
		if len(queries) >= max {
			break
		}
		queries = append(queries, fmt.Sprintf("%q (TGE OR \"token generation event\" OR \"claim portal\")", e.Name))
	}
	return queries
}

// mergedQuery collapses every entity into one OR query for the reduced rung.
func mergedQuery(entities []domain.Entity) string {
	names := make([]string, 0, len(entities))
	for _, e := range entities {
		names = append(names, fmt.Sprintf("%q", e.Name))
	}
	return "(" + strings.Join(names, " OR ") + ") (TGE OR \"token generation event\")"
}
