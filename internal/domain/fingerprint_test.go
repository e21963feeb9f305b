package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeURL_StripsTrackingAndFragment(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "utm params removed",
			input:    "https://example.com/post?utm_source=rss&utm_medium=feed&id=7",
			expected: "https://example.com/post?id=7",
		},
		{
			name:     "fragment removed",
			input:    "https://Example.COM/post#section-2",
			expected: "https://example.com/post",
		},
		{
			name:     "trailing slash removed",
			input:    "https://example.com/post/",
			expected: "https://example.com/post",
		},
		{
			name:     "query order canonicalized",
			input:    "https://example.com/p?b=2&a=1",
			expected: "https://example.com/p?a=1&b=2",
		},
		{
			name:     "unparseable input returned trimmed",
			input:    "  not a url  ",
			expected: "not a url",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, NormalizeURL(tt.input))
		})
	}
}

func TestFingerprint_Deterministic(t *testing.T) {
	fp1 := Fingerprint("https://example.com/a?utm_source=x", "Acme TGE   Live")
	fp2 := Fingerprint("https://EXAMPLE.com/a", "acme tge live")

	require.NotEmpty(t, fp1)
	assert.Equal(t, fp1, fp2, "normalized-equal content must fingerprint identically")

	fp3 := Fingerprint("https://example.com/a", "different text entirely")
	assert.NotEqual(t, fp1, fp3)
}

func TestCandidateItem_FingerprintUsesTitleAndBody(t *testing.T) {
	a := CandidateItem{URL: "https://example.com/x", Title: "Acme TGE", Body: "claim portal live"}
	b := CandidateItem{URL: "https://example.com/x", Title: "Acme TGE", Body: "claim portal live"}
	c := CandidateItem{URL: "https://example.com/x", Title: "Acme TGE", Body: "claim portal closed"}

	assert.Equal(t, a.Fingerprint(), b.Fingerprint())
	assert.NotEqual(t, a.Fingerprint(), c.Fingerprint())
}

func TestTokenSet_NormalizesAndDedupes(t *testing.T) {
	set := TokenSet("Acme, acme! Launch launch  TODAY.")

	assert.Len(t, set, 3)
	assert.Contains(t, set, "acme")
	assert.Contains(t, set, "launch")
	assert.Contains(t, set, "today")
}

func TestFeedHealth_Recording(t *testing.T) {
	h := &FeedHealth{SourceID: "src1"}

	h.RecordEntry(time.Now())
	require.Equal(t, 1, h.SuccessCount)
	assert.False(t, h.LastSuccess.IsZero())

	h.ObserveDiscovery(4, 0.3)
	assert.InDelta(t, 1.2, h.DiscoveryRate, 1e-9)

	h.RecordFailure()
	assert.Equal(t, 1, h.FailureCount)
	assert.Equal(t, 1, h.SuccessCount, "failure must not touch success count")
}
