package routing

import (
	"fmt"
	"sort"
	"strings"

	"github.com/geolens-ai/query-router/internal/domain"
	"github.com/geolens-ai/query-router/internal/types"
)

// Enhancement is the domain adaptation layer's output: the synonym-normalized
// query (internal only, never shown to the user), a generic domain-relevance
// signal independent of any single endpoint, and the recognized entities with
// their character spans.
type Enhancement struct {
	EnhancedQuery   string
	CanonicalTokens []string
	DomainRelevance float64
	Entities        []types.EntityMatch
	Trace           []string
}

// enhanceDomain rewrites recognized synonym variants to their canonical terms
// and extracts brand/place entities from the raw text.
func enhanceDomain(q types.Query, cfg *domain.Config) Enhancement {
	tokens := tokenize(q.Text)
	canonical := canonicalize(tokens, cfg)
	entities := recognizeEntities(q.Text, tokens, cfg)

	relevant := 0
	entitySpans := spanIndex(entities)
	for _, t := range tokens {
		switch {
		case cfg.InVocabulary(t.Text), cfg.IsStopword(t.Text):
			relevant++
		default:
			if _, ok := cfg.CanonicalTerm(t.Text); ok {
				relevant++
			} else if entitySpans.covers(t.Start) {
				relevant++
			}
		}
	}
	relevance := 0.0
	if len(tokens) > 0 {
		relevance = float64(relevant) / float64(len(tokens))
	}

	enh := Enhancement{
		EnhancedQuery:   strings.Join(canonical, " "),
		CanonicalTokens: canonical,
		DomainRelevance: relevance,
		Entities:        entities,
	}
	enh.Trace = append(enh.Trace, fmt.Sprintf("domain relevance %.2f (%d/%d tokens)", relevance, relevant, len(tokens)))
	if desc := describeEntities(entities); desc != "" {
		enh.Trace = append(enh.Trace, desc)
	}
	return enh
}

// canonicalize replaces synonym variants with their canonical terms. Variants
// may span multiple tokens; longer matches win.
func canonicalize(tokens []token, cfg *domain.Config) []string {
	texts := tokenTexts(tokens)
	out := make([]string, 0, len(texts))
	maxLen := cfg.MaxSynonymTokens()
	for i := 0; i < len(texts); {
		replaced := false
		for n := maxLen; n >= 1 && !replaced; n-- {
			if i+n > len(texts) {
				continue
			}
			phrase := strings.Join(texts[i:i+n], " ")
			if canonical, ok := cfg.CanonicalTerm(phrase); ok {
				out = append(out, strings.Fields(canonical)...)
				i += n
				replaced = true
			}
		}
		if !replaced {
			out = append(out, texts[i])
			i++
		}
	}
	return out
}

// recognizeEntities scans token n-grams against the entity dictionaries.
// Matching is case-insensitive, whole-token, and longest-first; aliases
// resolve to the canonical id before anything downstream sees them.
func recognizeEntities(raw string, tokens []token, cfg *domain.Config) []types.EntityMatch {
	var matches []types.EntityMatch
	maxN := cfg.MaxEntityTokens()
	consumed := make([]bool, len(tokens))
	for i := 0; i < len(tokens); i++ {
		if consumed[i] {
			continue
		}
		for n := maxN; n >= 1; n-- {
			if i+n > len(tokens) {
				continue
			}
			parts := make([]string, n)
			for j := 0; j < n; j++ {
				parts[j] = tokens[i+j].Text
			}
			id, kind, ok := cfg.LookupEntity(strings.Join(parts, " "))
			if !ok {
				continue
			}
			start, end := tokens[i].Start, tokens[i+n-1].End
			matches = append(matches, types.EntityMatch{
				Kind:        kind,
				Text:        raw[start:end],
				CanonicalID: id,
				Start:       start,
				End:         end,
			})
			for j := i; j < i+n; j++ {
				consumed[j] = true
			}
			break
		}
	}
	return matches
}

func describeEntities(entities []types.EntityMatch) string {
	byKind := make(map[string][]string)
	for _, e := range entities {
		byKind[e.Kind] = append(byKind[e.Kind], e.CanonicalID)
	}
	var parts []string
	if brands := byKind[types.EntityBrand]; len(brands) > 0 {
		parts = append(parts, "recognized brands: "+strings.Join(brands, ", "))
	}
	if places := byKind[types.EntityPlace]; len(places) > 0 {
		parts = append(parts, "geographic context: "+strings.Join(places, ", "))
	}
	sort.Strings(parts)
	return strings.Join(parts, "; ")
}

// spans is a sorted set of half-open character ranges.
type spans []types.EntityMatch

func spanIndex(entities []types.EntityMatch) spans {
	return spans(entities)
}

func (s spans) covers(pos int) bool {
	for _, e := range s {
		if pos >= e.Start && pos < e.End {
			return true
		}
	}
	return false
}
