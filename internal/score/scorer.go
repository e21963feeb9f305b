// Package score turns raw candidate items into bounded confidence scores and
// relevance verdicts. Scoring is a pure function of its inputs: identical
// items with an unchanged matcher and config always produce identical output.
package score

import (
	"fmt"
	"sort"
	"strings"

	"github.com/launchradar/launchradar/internal/config"
	"github.com/launchradar/launchradar/internal/domain"
	"github.com/launchradar/launchradar/internal/signal"
)

// Scorer applies the layered scoring policy with a shared precompiled matcher
type Scorer struct {
	cfg     config.ScoringConfig
	matcher *signal.Matcher
}

// New creates a Scorer. The matcher must outlive it.
func New(cfg config.ScoringConfig, matcher *signal.Matcher) *Scorer {
	return &Scorer{cfg: cfg, matcher: matcher}
}

// Score evaluates one candidate item. Layers add or subtract independently;
// the final confidence is clamped to [0, max_confidence].
func (s *Scorer) Score(item domain.CandidateItem) domain.ScoredItem {
	// Title and body scored over one string so proximity can cross the gap;
	// offsets below titleEnd belong to the title/lead section.
	text := item.Title + "\n" + item.Body
	titleEnd := len(item.Title)

	var breakdown []domain.ScoreComponent
	var confidence float64
	add := func(layer string, delta float64, detail string) {
		confidence += delta
		breakdown = append(breakdown, domain.ScoreComponent{Layer: layer, Delta: delta, Detail: detail})
	}

	// Layer 1/2 inputs
	entityMatches := s.matcher.Entities(text)
	tier1 := s.matcher.Tier1(text)
	tier2 := s.matcher.Tier2(text)

	matchedEntities := make([]string, 0, len(entityMatches))
	highPriority := false
	for _, em := range entityMatches {
		matchedEntities = append(matchedEntities, em.Entity.Name)
		if em.Entity.Priority == domain.PriorityHigh {
			highPriority = true
		}
	}

	var matchedTiers []string

	// Layer 1: keyword tiers. Tier-2 hits only count once an entity anchors
	// the context.
	if len(tier1) > 0 {
		matchedTiers = append(matchedTiers, "tier1")
		weight := s.sectionWeight(tier1, titleEnd)
		add("keyword_tier1", s.cfg.Tier1Bonus*weight, termList(tier1))
	}
	if len(tier2) > 0 && len(entityMatches) > 0 {
		matchedTiers = append(matchedTiers, "tier2")
		weight := s.sectionWeight(tier2, titleEnd)
		add("keyword_tier2", s.cfg.Tier2Bonus*weight, termList(tier2))
	}

	// Layer 2: entity/token matches, scaled for high-priority entities
	for _, em := range entityMatches {
		bonus := s.cfg.EntityBonus
		if em.Entity.Priority == domain.PriorityHigh {
			bonus *= s.cfg.HighPriorityScale
		}
		bonus *= s.sectionWeight(em.Matches, titleEnd)
		add("entity", bonus, em.Entity.Name)
	}

	// Layer 3: proximity, first qualifying pair only
	keywords := append(append([]signal.Match(nil), tier1...), tier2...)
	if pair, ok := firstProximityPair(entityMatches, keywords, s.cfg.ProximityWindow); ok {
		add("proximity", s.cfg.ProximityBonus, pair)
	}

	// Layer 4: temporal cues
	if hits := s.matcher.Immediacy(text); len(hits) > 0 {
		add("immediacy", s.cfg.ImmediacyBonus, termList(hits))
	}
	if hits := s.matcher.Retrospective(text); len(hits) > 0 {
		add("retrospective", -s.cfg.RetrospectivePenalty, termList(hits))
	}

	// Layer 5: source-tier weighting; unranked sources get nothing
	if item.SourceTier == 1 {
		add("source_tier", s.cfg.SourceTierBonus, item.SourceID)
	}

	// Layer 7: exclusions only ever subtract
	if hits := s.matcher.Exclusions(text, matchedEntities); len(hits) > 0 {
		add("exclusion", -s.cfg.ExclusionPenalty*float64(len(hits)), termList(hits))
	}

	// Layer 8: engagement/authority, social items only
	if item.Social != nil {
		if item.Social.Verified {
			add("verified", s.cfg.VerifiedBonus, item.Social.Author)
		}
		if item.Social.Likes+item.Social.Reposts >= s.cfg.EngagementMinLikes {
			add("engagement", s.cfg.EngagementBonus,
				fmt.Sprintf("likes=%d reposts=%d", item.Social.Likes, item.Social.Reposts))
		}
		if item.Social.IsReply || item.Social.IsQuote {
			add("reply_context", -s.cfg.ReplyPenalty, "")
		}
	}

	// Clamp after all layers
	if confidence < 0 {
		confidence = 0
	}
	if confidence > s.cfg.MaxConfidence {
		confidence = s.cfg.MaxConfidence
	}

	threshold := s.cfg.BaseThreshold
	if highPriority {
		threshold -= s.cfg.HighPriorityDelta
	}

	return domain.ScoredItem{
		Item:            item,
		Confidence:      confidence,
		Relevant:        confidence >= threshold,
		Threshold:       threshold,
		MatchedEntities: matchedEntities,
		MatchedTiers:    matchedTiers,
		Breakdown:       breakdown,
	}
}

// sectionWeight returns the title multiplier when any match sits in the
// title/lead section, 1 otherwise.
func (s *Scorer) sectionWeight(matches []signal.Match, titleEnd int) float64 {
	for _, m := range matches {
		if m.Start < titleEnd {
			return s.cfg.TitleWeight
		}
	}
	return 1
}

// firstProximityPair finds the first entity-term/keyword pair within the
// character window, scanning in match order for determinism.
func firstProximityPair(entities []signal.EntityMatch, keywords []signal.Match, window int) (string, bool) {
	for _, em := range entities {
		for _, ematch := range em.Matches {
			for _, kw := range keywords {
				if distance(ematch, kw) <= window {
					return em.Entity.Name + " near " + kw.Term, true
				}
			}
		}
	}
	return "", false
}

func distance(a, b signal.Match) int {
	if a.End <= b.Start {
		return b.Start - a.End
	}
	if b.End <= a.Start {
		return a.Start - b.End
	}
	return 0 // Overlapping
}

// termList renders matched terms as a stable comma-separated detail string.
func termList(matches []signal.Match) string {
	seen := make(map[string]bool, len(matches))
	terms := make([]string, 0, len(matches))
	for _, m := range matches {
		if !seen[m.Term] {
			seen[m.Term] = true
			terms = append(terms, m.Term)
		}
	}
	sort.Strings(terms)
	return strings.Join(terms, ", ")
}
