package dedup

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/launchradar/launchradar/internal/domain"
)

func testConfig() Config {
	return Config{
		WindowSize:       100,
		WindowTTL:        time.Hour,
		JaccardThreshold: 0.82,
		MinTokens:        6,
	}
}

func item(url, title, body string) domain.CandidateItem {
	return domain.CandidateItem{SourceID: "s1", URL: url, Title: title, Body: body}
}

func TestIsDuplicate_ExactRepeat(t *testing.T) {
	d := New(testConfig())
	it := item("https://example.com/a", "Acme TGE", "claim portal live")

	assert.False(t, d.IsDuplicate(it), "first sighting is unique")
	assert.True(t, d.IsDuplicate(it), "second sighting is a duplicate")
}

func TestIsDuplicate_SameURLDifferentTracking(t *testing.T) {
	d := New(testConfig())

	first := item("https://example.com/a?utm_source=rss", "Acme TGE", "claim portal live")
	second := item("https://example.com/a", "Acme TGE", "claim portal live")

	assert.False(t, d.IsDuplicate(first))
	assert.True(t, d.IsDuplicate(second), "tracking params must not defeat the fingerprint")
}

func TestIsDuplicate_FuzzyNearDuplicate(t *testing.T) {
	d := New(testConfig())

	base := item("https://a.example.com/1", "Acme token generation event",
		"the acme token generation event goes live today with the claim portal open for early supporters")
	// Different URL, one word changed: token sets nearly identical
	near := item("https://b.example.com/syndicated", "Acme token generation event",
		"the acme token generation event goes live today with the claim portal open for all supporters")

	assert.False(t, d.IsDuplicate(base))
	assert.True(t, d.IsDuplicate(near), "syndicated near-copy should be caught by the fuzzy path")
}

func TestIsDuplicate_ShortTextSkipsFuzzyPath(t *testing.T) {
	d := New(testConfig())

	a := item("https://a.example.com/1", "Acme TGE live", "")
	b := item("https://b.example.com/2", "Acme TGE live", "")

	assert.False(t, d.IsDuplicate(a))
	assert.False(t, d.IsDuplicate(b), "below min_tokens only the exact path applies")
}

func TestWindow_SizeBound(t *testing.T) {
	cfg := testConfig()
	cfg.WindowSize = 3
	d := New(cfg)

	for i := 0; i < 5; i++ {
		d.IsDuplicate(item(fmt.Sprintf("https://example.com/%d", i), fmt.Sprintf("title %d", i), ""))
	}
	assert.Equal(t, 3, d.Len())

	// Entry 0 was evicted, so it reads as unique again
	assert.False(t, d.IsDuplicate(item("https://example.com/0", "title 0", "")))
}

func TestWindow_TTLEviction(t *testing.T) {
	cfg := testConfig()
	cfg.WindowTTL = 10 * time.Minute
	d := New(cfg)

	current := time.Now()
	d.now = func() time.Time { return current }

	it := item("https://example.com/a", "Acme TGE", "claim portal live")
	require.False(t, d.IsDuplicate(it))

	current = current.Add(11 * time.Minute)
	assert.False(t, d.IsDuplicate(it), "expired window entry no longer counts")
}

func TestJaccard(t *testing.T) {
	a := domain.TokenSet("one two three four")
	b := domain.TokenSet("one two three five")

	assert.InDelta(t, 0.6, jaccard(a, b), 1e-9)
	assert.Equal(t, 1.0, jaccard(a, a))
	assert.Equal(t, 0.0, jaccard(a, map[string]struct{}{}))
}
