// Package scrape coordinates the two acquisition paths. The coordinator runs
// the feed scraper and the social monitor concurrently, each under its own
// sub-budget, and merges whatever survives the deadlines.
package scrape

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/launchradar/launchradar/internal/domain"
	"github.com/launchradar/launchradar/internal/scrape/social"
)

// Progress stages reported to the callback
const (
	StageStart          = "start"
	StageFeedsComplete  = "feeds_complete"
	StageSocialComplete = "social_complete"
	StageComplete       = "complete"
)

// ProgressFunc receives acquisition milestones; items is the running total.
type ProgressFunc func(stage string, items int)

// FeedScraper is the feed-side acquisition surface
type FeedScraper interface {
	Scrape(ctx context.Context, sources []domain.Source) ([]domain.CandidateItem, []error)
}

// SocialFetcher is the social-side acquisition surface
type SocialFetcher interface {
	Fetch(ctx context.Context, entities []domain.Entity, sources []domain.Source) social.Result
}

// Outcome is the merged acquisition result for one cycle
type Outcome struct {
	Items       []domain.CandidateItem
	Errors      []error // Per-source, recoverable
	RateLimited bool    // Social side hit quota exhaustion
	FeedItems   int
	SocialItems int
}

// Observer receives per-source failures and quota-forced strategy
// downgrades, for instrumentation.
type Observer interface {
	RecordSourceFailure(sourceID string)
	RecordDowngrade(strategy string)
}

// Coordinator fans acquisition out over both source classes
type Coordinator struct {
	feeds        FeedScraper
	social       SocialFetcher
	feedBudget   time.Duration
	socialBudget time.Duration
	observer     Observer
}

// NewCoordinator wires a Coordinator with per-class sub-budgets. Budgets are
// clipped by the caller's context deadline, never extended past it.
func NewCoordinator(feeds FeedScraper, socialMonitor SocialFetcher, feedBudget, socialBudget time.Duration) *Coordinator {
	return &Coordinator{
		feeds:        feeds,
		social:       socialMonitor,
		feedBudget:   feedBudget,
		socialBudget: socialBudget,
	}
}

// SetObserver attaches an instrumentation observer. A nil observer is the
// default and disables recording.
func (c *Coordinator) SetObserver(o Observer) { c.observer = o }

func (c *Coordinator) recordFailures(errs []error) {
	if c.observer == nil {
		return
	}
	for _, err := range errs {
		var fetchErr *domain.SourceFetchError
		if errors.As(err, &fetchErr) {
			c.observer.RecordSourceFailure(fetchErr.SourceID)
		}
	}
}

// Acquire runs both scraper classes concurrently and returns the union of
// their items plus every per-source error. A class exceeding its sub-budget
// is abandoned without aborting its sibling. The callback fires on start,
// each class completion, and coordinator completion.
func (c *Coordinator) Acquire(ctx context.Context, sources []domain.Source, entities []domain.Entity, progress ProgressFunc) Outcome {
	if progress == nil {
		progress = func(string, int) {}
	}
	progress(StageStart, 0)

	feedSources := make([]domain.Source, 0, len(sources))
	socialSources := make([]domain.Source, 0)
	for _, src := range sources {
		switch src.Kind {
		case domain.SourceKindFeed:
			feedSources = append(feedSources, src)
		case domain.SourceKindSocial:
			socialSources = append(socialSources, src)
		}
	}

	var (
		mu      sync.Mutex
		outcome Outcome
	)

	// Plain group: a failing class must never cancel its sibling, so no
	// shared cancellation context.
	var g errgroup.Group

	g.Go(func() error {
		feedCtx, cancel := context.WithTimeout(ctx, c.feedBudget)
		defer cancel()

		items, errs := c.feeds.Scrape(feedCtx, feedSources)
		c.recordFailures(errs)

		mu.Lock()
		outcome.Items = append(outcome.Items, items...)
		outcome.Errors = append(outcome.Errors, errs...)
		outcome.FeedItems = len(items)
		total := len(outcome.Items)
		mu.Unlock()
		progress(StageFeedsComplete, total)
		return nil
	})

	g.Go(func() error {
		socialCtx, cancel := context.WithTimeout(ctx, c.socialBudget)
		defer cancel()

		res := c.social.Fetch(socialCtx, entities, socialSources)
		c.recordFailures(res.Errors)
		// Only quota-forced rungs count; a disabled social arm also runs minimal
		if c.observer != nil && res.RateLimited && res.Strategy != social.StrategyFull {
			c.observer.RecordDowngrade(string(res.Strategy))
		}

		mu.Lock()
		outcome.Items = append(outcome.Items, res.Items...)
		outcome.Errors = append(outcome.Errors, res.Errors...)
		outcome.SocialItems = len(res.Items)
		outcome.RateLimited = outcome.RateLimited || res.RateLimited
		total := len(outcome.Items)
		mu.Unlock()
		progress(StageSocialComplete, total)
		return nil
	})

	_ = g.Wait()

	progress(StageComplete, len(outcome.Items))
	log.Info().Int("feed_items", outcome.FeedItems).Int("social_items", outcome.SocialItems).
		Int("errors", len(outcome.Errors)).Bool("rate_limited", outcome.RateLimited).
		Msg("acquisition complete")
	return outcome
}
