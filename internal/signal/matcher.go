// Package signal provides the precompiled keyword/entity/exclusion matcher
// shared by every scoring call. A Matcher is immutable after construction and
// safe for concurrent use.
package signal

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/launchradar/launchradar/internal/domain"
)

// Config lists the term sets compiled into a Matcher
type Config struct {
	Tier1         []string // High-confidence keywords
	Tier2         []string // Medium keywords, context-gated by the scorer
	Immediacy     []string // Present-tense launch language
	Retrospective []string // Past-tense/recap language
	Exclusions    []string // Global exclusion phrases
}

// Match is one term occurrence with its byte offsets in the matched text
type Match struct {
	Term  string `json:"term"`
	Start int    `json:"start"`
	End   int    `json:"end"`
}

// EntityMatch groups all term occurrences for one entity
type EntityMatch struct {
	Entity  domain.Entity `json:"entity"`
	Matches []Match       `json:"matches"`
}

type patternSet struct {
	terms    []string
	patterns []*regexp.Regexp
}

type entityPatterns struct {
	entity     domain.Entity
	terms      *patternSet
	exclusions *patternSet
}

// Matcher holds every compiled pattern for a cycle's entity and keyword set
type Matcher struct {
	tier1         *patternSet
	tier2         *patternSet
	immediacy     *patternSet
	retrospective *patternSet
	exclusions    *patternSet
	entities      []entityPatterns
}

// NewMatcher compiles all term lists once. Construction is the only place a
// pattern error can surface; matching never fails.
func NewMatcher(cfg Config, entities []domain.Entity) (*Matcher, error) {
	m := &Matcher{}

	var err error
	if m.tier1, err = compileSet("tier1", cfg.Tier1); err != nil {
		return nil, err
	}
	if m.tier2, err = compileSet("tier2", cfg.Tier2); err != nil {
		return nil, err
	}
	if m.immediacy, err = compileSet("immediacy", cfg.Immediacy); err != nil {
		return nil, err
	}
	if m.retrospective, err = compileSet("retrospective", cfg.Retrospective); err != nil {
		return nil, err
	}
	if m.exclusions, err = compileSet("exclusions", cfg.Exclusions); err != nil {
		return nil, err
	}

	for _, ent := range entities {
		terms, err := compileSet("entity "+ent.Name, ent.Terms())
		if err != nil {
			return nil, err
		}
		excl, err := compileSet("entity "+ent.Name+" exclusions", ent.Exclusions)
		if err != nil {
			return nil, err
		}
		m.entities = append(m.entities, entityPatterns{entity: ent, terms: terms, exclusions: excl})
	}
	return m, nil
}

func compileSet(name string, terms []string) (*patternSet, error) {
	set := &patternSet{}
	for _, term := range terms {
		term = strings.TrimSpace(term)
		if term == "" {
			continue
		}
		re, err := regexp.Compile(termPattern(term))
		if err != nil {
			return nil, fmt.Errorf("compile %s term %q: %w", name, term, err)
		}
		set.terms = append(set.terms, term)
		set.patterns = append(set.patterns, re)
	}
	return set, nil
}

// termPattern builds a case-insensitive whole-word pattern. Word boundaries
// are only anchored where the term itself starts/ends with a word character,
// so symbols like "$ACME" still match.
func termPattern(term string) string {
	quoted := regexp.QuoteMeta(term)
	prefix, suffix := "", ""
	if isWordChar(term[0]) {
		prefix = `\b`
	}
	if isWordChar(term[len(term)-1]) {
		suffix = `\b`
	}
	return `(?i)` + prefix + quoted + suffix
}

func isWordChar(b byte) bool {
	return b == '_' || (b >= '0' && b <= '9') || (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}

func (s *patternSet) find(text string) []Match {
	var matches []Match
	for i, re := range s.patterns {
		for _, loc := range re.FindAllStringIndex(text, -1) {
			matches = append(matches, Match{Term: s.terms[i], Start: loc[0], End: loc[1]})
		}
	}
	return matches
}

// Tier1 returns all high-confidence keyword occurrences.
func (m *Matcher) Tier1(text string) []Match { return m.tier1.find(text) }

// Tier2 returns all medium-confidence keyword occurrences.
func (m *Matcher) Tier2(text string) []Match { return m.tier2.find(text) }

// Immediacy returns present-tense launch-language occurrences.
func (m *Matcher) Immediacy(text string) []Match { return m.immediacy.find(text) }

// Retrospective returns past-tense/recap-language occurrences.
func (m *Matcher) Retrospective(text string) []Match { return m.retrospective.find(text) }

// Entities returns, per entity with at least one hit, every alias/token
// occurrence in the text. Order follows the constructed entity list so
// repeated calls on identical input are identical.
func (m *Matcher) Entities(text string) []EntityMatch {
	var out []EntityMatch
	for _, ep := range m.entities {
		if matches := ep.terms.find(text); len(matches) > 0 {
			out = append(out, EntityMatch{Entity: ep.entity, Matches: matches})
		}
	}
	return out
}

// Exclusions returns global exclusion hits plus the entity-specific exclusion
// hits for the named entities.
func (m *Matcher) Exclusions(text string, entityNames []string) []Match {
	matches := m.exclusions.find(text)
	if len(entityNames) == 0 {
		return matches
	}
	named := make(map[string]bool, len(entityNames))
	for _, n := range entityNames {
		named[n] = true
	}
	for _, ep := range m.entities {
		if named[ep.entity.Name] {
			matches = append(matches, ep.exclusions.find(text)...)
		}
	}
	return matches
}
