package domain

import (
	"time"
)

// SourceKind distinguishes the two acquisition paths
type SourceKind string

const (
	SourceKindFeed   SourceKind = "feed"   // Syndicated feed (RSS/Atom/listing page)
	SourceKindSocial SourceKind = "social" // Social search/timeline definition
)

// PriorityTier ranks how aggressively an entity is tracked
type PriorityTier string

const (
	PriorityHigh   PriorityTier = "high"
	PriorityMedium PriorityTier = "medium"
	PriorityLow    PriorityTier = "low"
)

// Source describes one content origin for the acquisition coordinator
type Source struct {
	ID       string     `json:"id" yaml:"id"`             // Stable source identifier
	Kind     SourceKind `json:"kind" yaml:"kind"`         // "feed" or "social"
	URL      string     `json:"url" yaml:"url"`           // Feed locator (feed kind only)
	Query    string     `json:"query" yaml:"query"`       // Search definition (social kind only)
	Tier     int        `json:"tier" yaml:"tier"`         // Reliability tier: 1 = highest, 0 = unranked
	Priority float64    `json:"priority" yaml:"priority"` // Derived from historical discovery rate
}

// Entity is a tracked project; immutable within a cycle
type Entity struct {
	Name       string       `json:"name" yaml:"name"`
	Aliases    []string     `json:"aliases" yaml:"aliases"`       // Alternate names, case-insensitive
	Tokens     []string     `json:"tokens" yaml:"tokens"`         // Token symbols, e.g. "ACME"
	Priority   PriorityTier `json:"priority" yaml:"priority"`     // Tracking tier
	Exclusions []string     `json:"exclusions" yaml:"exclusions"` // Entity-specific exclusion phrases
}

// Terms returns the entity name plus all aliases and token symbols.
func (e Entity) Terms() []string {
	terms := make([]string, 0, 1+len(e.Aliases)+len(e.Tokens))
	terms = append(terms, e.Name)
	terms = append(terms, e.Aliases...)
	terms = append(terms, e.Tokens...)
	return terms
}

// SocialMeta carries source-kind-specific metadata for social items
type SocialMeta struct {
	ItemID    string `json:"item_id"`   // Platform-native item id, used for intra-fetch dedup
	Author    string `json:"author"`    // Author handle
	Verified  bool   `json:"verified"`  // Verified/official account flag
	Followers int    `json:"followers"` // Author follower count
	Likes     int    `json:"likes"`
	Reposts   int    `json:"reposts"`
	IsReply   bool   `json:"is_reply"` // Item is a reply to another item
	IsQuote   bool   `json:"is_quote"` // Item quotes another item
}

// CandidateItem is one raw fetched unit; read-only after construction
type CandidateItem struct {
	SourceID    string      `json:"source_id"`
	SourceKind  SourceKind  `json:"source_kind"`
	URL         string      `json:"url"` // Canonical normalized URL
	Title       string      `json:"title"`
	Body        string      `json:"body"`
	PublishedAt time.Time   `json:"published_at"` // Publisher timestamp, zero if unknown
	ObservedAt  time.Time   `json:"observed_at"`  // When the scraper saw it
	SourceTier  int         `json:"source_tier"`  // Reliability tier of the origin source
	Social      *SocialMeta `json:"social,omitempty"`
}

// Fingerprint returns the content-addressed identity of the item.
func (c CandidateItem) Fingerprint() string {
	return Fingerprint(c.URL, c.Title+" "+c.Body)
}

// ScoreComponent records one scoring layer's contribution, in layer order
type ScoreComponent struct {
	Layer  string  `json:"layer"`  // Layer name, e.g. "keyword_tier1"
	Delta  float64 `json:"delta"`  // Signed contribution before clamping
	Detail string  `json:"detail"` // What matched
}

// ScoredItem is a CandidateItem with its relevance verdict attached
type ScoredItem struct {
	Item            CandidateItem    `json:"item"`
	Confidence      float64          `json:"confidence"` // Clamped to [0, max_confidence]
	Relevant        bool             `json:"relevant"`   // Confidence cleared the adaptive threshold
	Threshold       float64          `json:"threshold"`  // Threshold actually applied
	MatchedEntities []string         `json:"matched_entities"`
	MatchedTiers    []string         `json:"matched_tiers"` // Keyword tiers that hit: "tier1", "tier2"
	Breakdown       []ScoreComponent `json:"breakdown"`     // Ordered, deterministic
}

// FeedHealth tracks per-source fetch outcomes across cycles.
// Mutated only by the feed scraper; persisted via the feed registry.
type FeedHealth struct {
	SourceID      string    `json:"source_id"`
	SuccessCount  int       `json:"success_count"`
	FailureCount  int       `json:"failure_count"`
	LastSuccess   time.Time `json:"last_success"`
	DiscoveryRate float64   `json:"discovery_rate"` // EWMA of relevant items per successful fetch
}

// RecordEntry counts one successfully extracted entry.
func (h *FeedHealth) RecordEntry(now time.Time) {
	h.SuccessCount++
	h.LastSuccess = now
}

// RecordFailure counts one failed fetch attempt, feed-level or entry-level.
func (h *FeedHealth) RecordFailure() {
	h.FailureCount++
}

// ObserveDiscovery folds one cycle's new-item count into the EWMA
// discovery rate used to re-rank source priority.
func (h *FeedHealth) ObserveDiscovery(n int, ewmaAlpha float64) {
	h.DiscoveryRate = ewmaAlpha*float64(n) + (1-ewmaAlpha)*h.DiscoveryRate
}
