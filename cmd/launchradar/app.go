package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"os"
	"text/tabwriter"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/launchradar/launchradar/internal/alert"
	"github.com/launchradar/launchradar/internal/cache"
	"github.com/launchradar/launchradar/internal/config"
	"github.com/launchradar/launchradar/internal/cycle"
	"github.com/launchradar/launchradar/internal/dedup"
	"github.com/launchradar/launchradar/internal/domain"
	"github.com/launchradar/launchradar/internal/metrics"
	"github.com/launchradar/launchradar/internal/registry"
	"github.com/launchradar/launchradar/internal/score"
	"github.com/launchradar/launchradar/internal/scrape"
	"github.com/launchradar/launchradar/internal/scrape/feed"
	"github.com/launchradar/launchradar/internal/scrape/social"
	"github.com/launchradar/launchradar/internal/signal"
	"github.com/launchradar/launchradar/internal/store"
)

const storageTimeout = 10 * time.Second

// app holds the wired engine plus everything that needs closing on exit.
type app struct {
	cfg      *config.Config
	engine   *cycle.Engine
	sessions sessionStore
	metrics  *metrics.Registry
	server   *http.Server
	db       *sqlx.DB
	cache    cache.Store
}

// buildApp loads config and wires the full pipeline.
func buildApp(configPath string) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	setupLogging(cfg.Log)

	matcher, err := signal.NewMatcher(signal.Config{
		Tier1:         cfg.Keywords.Tier1,
		Tier2:         cfg.Keywords.Tier2,
		Immediacy:     cfg.Keywords.Immediacy,
		Retrospective: cfg.Keywords.Retrospective,
		Exclusions:    cfg.Keywords.Exclusions,
	}, cfg.Entities)
	if err != nil {
		return nil, fmt.Errorf("compile keyword patterns: %w", err)
	}

	a := &app{cfg: cfg, metrics: metrics.NewRegistry()}

	if cfg.Cache.RedisAddr != "" {
		a.cache = cache.NewRedis(cfg.Cache.RedisAddr)
	} else {
		a.cache = cache.NewMemory(cfg.Cache.MaxEntries)
	}

	var healthReg feed.HealthRegistry
	if cfg.Storage.PostgresDSN != "" {
		db, err := sqlx.Open("postgres", cfg.Storage.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		pingCtx, cancel := context.WithTimeout(context.Background(), storageTimeout)
		defer cancel()
		if err := db.PingContext(pingCtx); err != nil {
			db.Close()
			return nil, fmt.Errorf("ping postgres: %w", err)
		}
		a.db = db
		healthReg = registry.NewPostgres(db, storageTimeout)
		a.sessions = store.NewPostgres(db, storageTimeout)
	} else {
		healthReg = registry.NewMemory()
		a.sessions = store.NewMemory(200)
	}

	feeds := feed.NewScraper(cfg.Feeds, nil, a.cache, healthReg)

	var socialFetcher scrape.SocialFetcher
	if cfg.Social.BearerToken != "" {
		api := social.NewHTTPAPI(cfg.Social.BaseURL, cfg.Social.BearerToken, cfg.Social.PageSize, nil)
		socialFetcher = social.NewMonitor(cfg.Social, api, nil)
	} else {
		log.Info().Msg("no social bearer token configured, social arm disabled")
		socialFetcher = disabledSocial{}
	}

	coordinator := scrape.NewCoordinator(feeds, socialFetcher, cfg.Monitor.FeedBudget, cfg.Monitor.SocialBudget)
	coordinator.SetObserver(a.metrics)
	scorer := score.New(cfg.Scoring, matcher)
	deduper := dedup.New(dedup.Config{
		WindowSize:       cfg.Dedup.WindowSize,
		WindowTTL:        cfg.Dedup.WindowTTL,
		JaccardThreshold: cfg.Dedup.JaccardThreshold,
		MinTokens:        cfg.Dedup.MinTokens,
	})

	a.engine = cycle.NewEngine(coordinator, scorer, deduper, a.sessions, alert.NewLogSink())

	if cfg.Server.ListenAddr != "" {
		a.server = newOpsServer(cfg.Server.ListenAddr, a.sessions, a.metrics)
		go func() {
			log.Info().Str("addr", cfg.Server.ListenAddr).Msg("ops listener started")
			if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Error().Err(err).Msg("ops listener failed")
			}
		}()
	}

	return a, nil
}

// Monitor runs cycles on the configured interval until the context ends.
func (a *app) Monitor(ctx context.Context) error {
	log.Info().Dur("interval", a.cfg.Monitor.Interval).Msg("monitor started")
	for {
		a.runOnce(ctx)

		delay := a.cfg.Monitor.Interval
		if j := a.cfg.Monitor.IntervalJitter; j > 0 {
			delay += time.Duration(rand.Int63n(int64(j)))
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			log.Info().Msg("monitor stopped")
			return nil
		}
	}
}

// Scan runs one cycle and prints the surviving alerts as a table.
func (a *app) Scan(ctx context.Context) error {
	alerts, err := a.runOnce(ctx)
	if err != nil {
		return err
	}

	if len(alerts) == 0 {
		fmt.Println("No relevant mentions found.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "CONFIDENCE\tENTITIES\tSOURCE\tTITLE\tURL")
	for _, item := range alerts {
		fmt.Fprintf(w, "%.1f\t%v\t%s\t%s\t%s\n",
			item.Confidence, item.MatchedEntities, item.Item.SourceID, item.Item.Title, item.Item.URL)
	}
	return w.Flush()
}

func (a *app) runOnce(ctx context.Context) ([]domain.ScoredItem, error) {
	start := time.Now()
	a.metrics.ActiveCycles.Inc()
	defer a.metrics.ActiveCycles.Dec()

	var (
		phaseStart = start
		lastPhase  cycle.Phase
	)
	cb := func(phase cycle.Phase, counters cycle.Counters) {
		if lastPhase != "" {
			a.metrics.PhaseDuration.WithLabelValues(string(lastPhase)).Observe(time.Since(phaseStart).Seconds())
		}
		lastPhase = phase
		phaseStart = time.Now()

		switch phase {
		case cycle.PhaseScoring:
			a.metrics.AddItems("acquired", counters.Acquired)
		case cycle.PhaseDeduplicating:
			a.metrics.AddItems("relevant", counters.Relevant)
		case cycle.PhaseCompleted:
			a.metrics.AddItems("alerted", counters.Alerted)
			a.metrics.DedupHitsTotal.Add(float64(counters.Deduplicated))
		}
	}

	alerts, err := a.engine.RunCycle(ctx, "", a.cfg.Sources, a.cfg.Entities, a.cfg.Monitor.GlobalTimeout, cb)

	status := "completed"
	switch {
	case errors.Is(err, domain.ErrSessionTimeout):
		status = "timed_out"
	case err != nil:
		status = "failed"
	}
	a.metrics.RecordCycle(status, time.Since(start))

	if err != nil && !errors.Is(err, domain.ErrSessionTimeout) {
		return alerts, err
	}
	return alerts, nil
}

// Close shuts down the ops listener and storage handles.
func (a *app) Close() {
	if a.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = a.server.Shutdown(ctx)
	}
	switch c := a.cache.(type) {
	case interface{ Close() }:
		c.Close()
	case io.Closer:
		_ = c.Close()
	}
	if a.db != nil {
		a.db.Close()
	}
}

func setupLogging(cfg config.LogConfig) {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	if cfg.Pretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	}
}

// disabledSocial stands in when no API credentials are configured.
type disabledSocial struct{}

func (disabledSocial) Fetch(context.Context, []domain.Entity, []domain.Source) social.Result {
	return social.Result{Strategy: social.StrategyMinimal}
}
