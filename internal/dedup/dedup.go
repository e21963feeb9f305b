// Package dedup removes exact and near-duplicate items within a cycle and
// against a bounded window of recent history.
package dedup

import (
	"sync"
	"time"

	"github.com/launchradar/launchradar/internal/domain"
)

// Config bounds the recent-duplicate window
type Config struct {
	WindowSize       int           // Max entries retained
	WindowTTL        time.Duration // Max entry age
	JaccardThreshold float64       // Token-set similarity at or above this is a duplicate
	MinTokens        int           // Fuzzy path only runs at or above this token count
}

type windowEntry struct {
	fingerprint string
	tokens      map[string]struct{}
	added       time.Time
}

// Deduplicator keeps the sliding window. Safe for concurrent use, though the
// cycle state machine feeds it serially.
type Deduplicator struct {
	mu      sync.Mutex
	cfg     Config
	entries []windowEntry       // Oldest first
	byPrint map[string]struct{} // Exact-path index
	now     func() time.Time
}

// New creates a Deduplicator with an empty window.
func New(cfg Config) *Deduplicator {
	return &Deduplicator{
		cfg:     cfg,
		byPrint: make(map[string]struct{}),
		now:     time.Now,
	}
}

// IsDuplicate reports whether item matches the recent window, exactly by
// fingerprint or fuzzily by token-set similarity. Non-duplicates are inserted
// into the window, evicting entries beyond its size/TTL bound.
func (d *Deduplicator) IsDuplicate(item domain.CandidateItem) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	d.evict(now)

	fp := item.Fingerprint()
	if _, seen := d.byPrint[fp]; seen {
		return true
	}

	tokens := domain.TokenSet(item.Title + " " + item.Body)
	if len(tokens) >= d.cfg.MinTokens {
		for _, e := range d.entries {
			if jaccard(tokens, e.tokens) >= d.cfg.JaccardThreshold {
				return true
			}
		}
	}

	d.entries = append(d.entries, windowEntry{fingerprint: fp, tokens: tokens, added: now})
	d.byPrint[fp] = struct{}{}
	if len(d.entries) > d.cfg.WindowSize {
		d.dropOldest(len(d.entries) - d.cfg.WindowSize)
	}
	return false
}

// Len returns the current window occupancy.
func (d *Deduplicator) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.entries)
}

func (d *Deduplicator) evict(now time.Time) {
	if d.cfg.WindowTTL <= 0 {
		return
	}
	cutoff := now.Add(-d.cfg.WindowTTL)
	expired := 0
	for _, e := range d.entries {
		if e.added.After(cutoff) {
			break
		}
		expired++
	}
	if expired > 0 {
		d.dropOldest(expired)
	}
}

func (d *Deduplicator) dropOldest(n int) {
	for _, e := range d.entries[:n] {
		delete(d.byPrint, e.fingerprint)
	}
	d.entries = d.entries[n:]
}

// jaccard computes |a∩b| / |a∪b| for two token sets.
func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	small, large := a, b
	if len(b) < len(a) {
		small, large = b, a
	}
	intersection := 0
	for tok := range small {
		if _, ok := large[tok]; ok {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	return float64(intersection) / float64(union)
}
