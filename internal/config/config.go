package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/launchradar/launchradar/internal/domain"
)

// Config is the full monitoring-engine configuration loaded from YAML
type Config struct {
	Monitor  MonitorConfig   `yaml:"monitor"`
	Feeds    FeedConfig      `yaml:"feeds"`
	Social   SocialConfig    `yaml:"social"`
	Scoring  ScoringConfig   `yaml:"scoring"`
	Dedup    DedupConfig     `yaml:"dedup"`
	Keywords KeywordsConfig  `yaml:"keywords"`
	Cache    CacheConfig     `yaml:"cache"`
	Storage  StorageConfig   `yaml:"storage"`
	Server   ServerConfig    `yaml:"server"`
	Log      LogConfig       `yaml:"log"`
	Sources  []domain.Source `yaml:"sources"`
	Entities []domain.Entity `yaml:"entities"`
}

// MonitorConfig controls the cycle state machine and the coordinator budgets
type MonitorConfig struct {
	Interval       time.Duration `yaml:"interval"`        // Delay between cycles in monitor mode
	IntervalJitter time.Duration `yaml:"interval_jitter"` // Random extra delay per cycle
	GlobalTimeout  time.Duration `yaml:"global_timeout"`  // Hard ceiling for one cycle
	FeedBudget     time.Duration `yaml:"feed_budget"`     // Sub-budget for the feed scraper
	SocialBudget   time.Duration `yaml:"social_budget"`   // Sub-budget for the social monitor
}

// FeedConfig controls the feed scraper
type FeedConfig struct {
	Workers           int           `yaml:"workers"`       // Concurrent entry fetches
	FetchTimeout      time.Duration `yaml:"fetch_timeout"` // Per-feed fetch timeout
	EntryTimeout      time.Duration `yaml:"entry_timeout"` // Per-entry extraction timeout
	MaxEntriesPerFeed int           `yaml:"max_entries_per_feed"`
	SeenTTL           time.Duration `yaml:"seen_ttl"`          // How long seen URLs stay deduped
	HealthEWMAAlpha   float64       `yaml:"health_ewma_alpha"` // Discovery-rate smoothing factor
	BreakerFailures   uint32        `yaml:"breaker_failures"`  // Consecutive failures to open breaker
	BreakerCooldown   time.Duration `yaml:"breaker_cooldown"`  // Open-state hold time
	RequestsPerSec    float64       `yaml:"requests_per_sec"`  // Per-host rate limit
	Burst             int           `yaml:"burst"`             // Per-host burst allowance
}

// SocialConfig controls the social monitor strategy ladder
type SocialConfig struct {
	StrategyTimeout  time.Duration `yaml:"strategy_timeout"`   // Per-strategy timeout
	FullQuota        int           `yaml:"full_quota"`         // Remaining search quota for full ladder
	ReducedQuota     int           `yaml:"reduced_quota"`      // Remaining search quota for reduced ladder
	BatchSize        int           `yaml:"batch_size"`         // Max handles per identity-resolution call
	MaxSearchQueries int           `yaml:"max_search_queries"` // Cap on per-entity search fan-out
	ListIDs          []string      `yaml:"list_ids"`           // Curated list ids to monitor
	BaseURL          string        `yaml:"base_url"`           // Platform API base, e.g. https://api.x.com/2
	BearerToken      string        `yaml:"bearer_token"`       // Empty disables the social arm
	PageSize         int           `yaml:"page_size"`          // Posts requested per API call
}

// ScoringConfig holds every tunable scoring constant. The numbers are
// empirically tuned policy values, not derived from a model.
type ScoringConfig struct {
	MaxConfidence        float64 `yaml:"max_confidence"`        // Upper clamp, default 100
	Tier1Bonus           float64 `yaml:"tier1_bonus"`           // High-confidence keyword hit
	Tier2Bonus           float64 `yaml:"tier2_bonus"`           // Medium keyword hit (entity-gated)
	EntityBonus          float64 `yaml:"entity_bonus"`          // Alias/token match
	HighPriorityScale    float64 `yaml:"high_priority_scale"`   // Multiplier on entity bonus for high tier
	ProximityBonus       float64 `yaml:"proximity_bonus"`       // Entity near keyword, once per item
	ProximityWindow      int     `yaml:"proximity_window"`      // Character window for proximity
	ImmediacyBonus       float64 `yaml:"immediacy_bonus"`       // "today", "live", "now"
	RetrospectivePenalty float64 `yaml:"retrospective_penalty"` // Past-tense language
	SourceTierBonus      float64 `yaml:"source_tier_bonus"`     // Known high-reliability source
	TitleWeight          float64 `yaml:"title_weight"`          // Multiplier for title/lead matches
	ExclusionPenalty     float64 `yaml:"exclusion_penalty"`     // Per exclusion-phrase hit
	VerifiedBonus        float64 `yaml:"verified_bonus"`        // Verified/official social account
	EngagementBonus      float64 `yaml:"engagement_bonus"`      // High-engagement social item
	EngagementMinLikes   int     `yaml:"engagement_min_likes"`  // Likes+reposts floor for the bonus
	ReplyPenalty         float64 `yaml:"reply_penalty"`         // Reply/quote context
	BaseThreshold        float64 `yaml:"base_threshold"`        // Relevance verdict threshold
	HighPriorityDelta    float64 `yaml:"high_priority_delta"`   // Threshold reduction for high-tier entities
}

// DedupConfig bounds the recent-duplicate window
type DedupConfig struct {
	WindowSize       int           `yaml:"window_size"`       // Max fingerprints retained
	WindowTTL        time.Duration `yaml:"window_ttl"`        // Max entry age
	JaccardThreshold float64       `yaml:"jaccard_threshold"` // Fuzzy-duplicate cutoff
	MinTokens        int           `yaml:"min_tokens"`        // Fuzzy path gate
}

// KeywordsConfig holds the global keyword tiers and language cue lists
type KeywordsConfig struct {
	Tier1         []string `yaml:"tier1"`         // High-confidence, e.g. "TGE", "token generation event"
	Tier2         []string `yaml:"tier2"`         // Medium, only count with an entity match
	Exclusions    []string `yaml:"exclusions"`    // Global exclusion phrases
	Immediacy     []string `yaml:"immediacy"`     // "today", "live", "now"
	Retrospective []string `yaml:"retrospective"` // "concluded", "last month", "recap"
}

// CacheConfig selects the cache-store backend
type CacheConfig struct {
	RedisAddr  string        `yaml:"redis_addr"` // Empty selects the in-memory store
	DefaultTTL time.Duration `yaml:"default_ttl"`
	MaxEntries int64         `yaml:"max_entries"` // In-memory store bound
}

// StorageConfig selects the session-store / feed-registry backend
type StorageConfig struct {
	PostgresDSN string `yaml:"postgres_dsn"` // Empty selects the in-memory stores
}

// ServerConfig controls the ops listener
type ServerConfig struct {
	ListenAddr string `yaml:"listen_addr"` // Empty disables the listener
}

// LogConfig controls zerolog output
type LogConfig struct {
	Level  string `yaml:"level"`
	Pretty bool   `yaml:"pretty"`
}

// Load reads, defaults, and validates a YAML configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

// Default returns a config with every tunable at its default value and no
// sources or entities. Used by tests and as the base for partial YAML files.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.Monitor.Interval == 0 {
		c.Monitor.Interval = 5 * time.Minute
	}
	if c.Monitor.GlobalTimeout == 0 {
		c.Monitor.GlobalTimeout = 2 * time.Minute
	}
	if c.Monitor.FeedBudget == 0 {
		c.Monitor.FeedBudget = 90 * time.Second
	}
	if c.Monitor.SocialBudget == 0 {
		c.Monitor.SocialBudget = 60 * time.Second
	}

	if c.Feeds.Workers == 0 {
		c.Feeds.Workers = 8
	}
	if c.Feeds.FetchTimeout == 0 {
		c.Feeds.FetchTimeout = 15 * time.Second
	}
	if c.Feeds.EntryTimeout == 0 {
		c.Feeds.EntryTimeout = 10 * time.Second
	}
	if c.Feeds.MaxEntriesPerFeed == 0 {
		c.Feeds.MaxEntriesPerFeed = 25
	}
	if c.Feeds.SeenTTL == 0 {
		c.Feeds.SeenTTL = 72 * time.Hour
	}
	if c.Feeds.HealthEWMAAlpha == 0 {
		c.Feeds.HealthEWMAAlpha = 0.3
	}
	if c.Feeds.BreakerFailures == 0 {
		c.Feeds.BreakerFailures = 3
	}
	if c.Feeds.BreakerCooldown == 0 {
		c.Feeds.BreakerCooldown = 10 * time.Minute
	}
	if c.Feeds.RequestsPerSec == 0 {
		c.Feeds.RequestsPerSec = 2.0
	}
	if c.Feeds.Burst == 0 {
		c.Feeds.Burst = 4
	}

	if c.Social.StrategyTimeout == 0 {
		c.Social.StrategyTimeout = 30 * time.Second
	}
	if c.Social.FullQuota == 0 {
		c.Social.FullQuota = 50
	}
	if c.Social.ReducedQuota == 0 {
		c.Social.ReducedQuota = 10
	}
	if c.Social.BatchSize == 0 {
		c.Social.BatchSize = 100
	}
	if c.Social.MaxSearchQueries == 0 {
		c.Social.MaxSearchQueries = 5
	}
	if c.Social.BaseURL == "" {
		c.Social.BaseURL = "https://api.x.com/2"
	}
	if c.Social.PageSize == 0 {
		c.Social.PageSize = 50
	}

	if c.Scoring.MaxConfidence == 0 {
		c.Scoring.MaxConfidence = 100
	}
	if c.Scoring.Tier1Bonus == 0 {
		c.Scoring.Tier1Bonus = 40
	}
	if c.Scoring.Tier2Bonus == 0 {
		c.Scoring.Tier2Bonus = 15
	}
	if c.Scoring.EntityBonus == 0 {
		c.Scoring.EntityBonus = 25
	}
	if c.Scoring.HighPriorityScale == 0 {
		c.Scoring.HighPriorityScale = 1.5
	}
	if c.Scoring.ProximityBonus == 0 {
		c.Scoring.ProximityBonus = 10
	}
	if c.Scoring.ProximityWindow == 0 {
		c.Scoring.ProximityWindow = 120
	}
	if c.Scoring.ImmediacyBonus == 0 {
		c.Scoring.ImmediacyBonus = 10
	}
	if c.Scoring.RetrospectivePenalty == 0 {
		c.Scoring.RetrospectivePenalty = 15
	}
	if c.Scoring.SourceTierBonus == 0 {
		c.Scoring.SourceTierBonus = 5
	}
	if c.Scoring.TitleWeight == 0 {
		c.Scoring.TitleWeight = 1.5
	}
	if c.Scoring.ExclusionPenalty == 0 {
		c.Scoring.ExclusionPenalty = 30
	}
	if c.Scoring.VerifiedBonus == 0 {
		c.Scoring.VerifiedBonus = 10
	}
	if c.Scoring.EngagementBonus == 0 {
		c.Scoring.EngagementBonus = 8
	}
	if c.Scoring.EngagementMinLikes == 0 {
		c.Scoring.EngagementMinLikes = 100
	}
	if c.Scoring.ReplyPenalty == 0 {
		c.Scoring.ReplyPenalty = 10
	}
	if c.Scoring.BaseThreshold == 0 {
		c.Scoring.BaseThreshold = 60
	}
	if c.Scoring.HighPriorityDelta == 0 {
		c.Scoring.HighPriorityDelta = 15
	}

	if c.Dedup.WindowSize == 0 {
		c.Dedup.WindowSize = 2000
	}
	if c.Dedup.WindowTTL == 0 {
		c.Dedup.WindowTTL = 24 * time.Hour
	}
	if c.Dedup.JaccardThreshold == 0 {
		c.Dedup.JaccardThreshold = 0.82
	}
	if c.Dedup.MinTokens == 0 {
		c.Dedup.MinTokens = 12
	}

	if len(c.Keywords.Tier1) == 0 {
		c.Keywords.Tier1 = []string{
			"TGE", "token generation event", "token launch", "airdrop claim", "claim portal",
		}
	}
	if len(c.Keywords.Tier2) == 0 {
		c.Keywords.Tier2 = []string{
			"tokenomics", "mainnet launch", "listing", "snapshot", "genesis",
		}
	}
	if len(c.Keywords.Immediacy) == 0 {
		c.Keywords.Immediacy = []string{"today", "live", "now", "just launched", "is live"}
	}
	if len(c.Keywords.Retrospective) == 0 {
		c.Keywords.Retrospective = []string{
			"last month", "last year", "concluded", "recap", "wrapped up", "took place",
		}
	}

	if c.Cache.DefaultTTL == 0 {
		c.Cache.DefaultTTL = 24 * time.Hour
	}
	if c.Cache.MaxEntries == 0 {
		c.Cache.MaxEntries = 50000
	}

	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

// Validate rejects configurations the engine cannot run with. Validation
// happens once at load time so components can trust their inputs.
func (c *Config) Validate() error {
	if c.Scoring.BaseThreshold > c.Scoring.MaxConfidence {
		return fmt.Errorf("scoring: base_threshold %.1f exceeds max_confidence %.1f",
			c.Scoring.BaseThreshold, c.Scoring.MaxConfidence)
	}
	if c.Dedup.JaccardThreshold <= 0 || c.Dedup.JaccardThreshold > 1 {
		return fmt.Errorf("dedup: jaccard_threshold must be in (0, 1], got %.2f", c.Dedup.JaccardThreshold)
	}
	if c.Feeds.HealthEWMAAlpha <= 0 || c.Feeds.HealthEWMAAlpha > 1 {
		return fmt.Errorf("feeds: health_ewma_alpha must be in (0, 1], got %.2f", c.Feeds.HealthEWMAAlpha)
	}

	seen := make(map[string]bool, len(c.Sources))
	for i, src := range c.Sources {
		if src.ID == "" {
			return fmt.Errorf("sources[%d]: missing id", i)
		}
		if seen[src.ID] {
			return fmt.Errorf("sources[%d]: duplicate id %q", i, src.ID)
		}
		seen[src.ID] = true

		switch src.Kind {
		case domain.SourceKindFeed:
			if src.URL == "" {
				return fmt.Errorf("source %s: feed kind requires url", src.ID)
			}
		case domain.SourceKindSocial:
			if src.Query == "" {
				return fmt.Errorf("source %s: social kind requires query", src.ID)
			}
		default:
			return fmt.Errorf("source %s: unknown kind %q", src.ID, src.Kind)
		}
	}

	for i, ent := range c.Entities {
		if ent.Name == "" {
			return fmt.Errorf("entities[%d]: missing name", i)
		}
		switch ent.Priority {
		case domain.PriorityHigh, domain.PriorityMedium, domain.PriorityLow, "":
		default:
			return fmt.Errorf("entity %s: unknown priority %q", ent.Name, ent.Priority)
		}
	}
	return nil
}
