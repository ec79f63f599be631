package routing

import (
	"fmt"

	"github.com/geolens-ai/query-router/internal/domain"
	"github.com/geolens-ai/query-router/internal/types"
)

// validateScope is the first-pass admissibility check: is this query
// plausibly about the supported domain at all. It is terminal: an
// out_of_scope verdict short-circuits every later layer.
func validateScope(q types.Query, cfg *domain.Config, opts Options) types.ValidationResult {
	tokens := tokenize(q.Text)

	// Hard-reject heuristics force out_of_scope with confidence 1.0
	// regardless of overlap.
	if !hasAlphabetic(tokens) {
		return types.ValidationResult{
			Scope:      types.ScopeOut,
			Confidence: 1.0,
			Reasons:    []string{"no alphabetic tokens in query"},
		}
	}
	if len(tokens) < opts.MinTokens {
		return types.ValidationResult{
			Scope:      types.ScopeOut,
			Confidence: 1.0,
			Reasons:    []string{fmt.Sprintf("query has %d tokens, minimum is %d", len(tokens), opts.MinTokens)},
		}
	}

	ratio := overlapRatio(tokens, cfg)
	source := "query"
	if ratio < opts.MinOverlap && q.ConversationContext != "" {
		// Prior turns are consulted only to disambiguate scope: a short
		// follow-up like "and for Portland?" carries its domain signal in
		// the preceding conversation.
		combined := append(tokens, tokenize(q.ConversationContext)...)
		if r := overlapRatio(combined, cfg); r > ratio {
			ratio = r
			source = "query+context"
		}
	}

	if ratio >= opts.MinOverlap {
		return types.ValidationResult{
			Scope:      types.ScopeIn,
			Confidence: clamp01(ratio),
			Reasons:    []string{fmt.Sprintf("vocabulary overlap %.2f over %s meets floor %.2f", ratio, source, opts.MinOverlap)},
		}
	}
	if ratio == 0 {
		// Nothing in the query is recognizable, a fully-confident rejection.
		return types.ValidationResult{
			Scope:      types.ScopeOut,
			Confidence: 1.0,
			Reasons:    []string{"no domain vocabulary, synonyms, or entities recognized"},
		}
	}
	return types.ValidationResult{
		Scope:      types.ScopeOut,
		Confidence: clamp01(ratio),
		Reasons:    []string{fmt.Sprintf("vocabulary overlap %.2f over %s below floor %.2f", ratio, source, opts.MinOverlap)},
	}
}

// overlapRatio is the fraction of tokens that belong to the domain: boost-term
// vocabulary, synonym variants, or entity dictionary entries.
func overlapRatio(tokens []token, cfg *domain.Config) float64 {
	if len(tokens) == 0 {
		return 0
	}
	matched := 0
	for _, t := range tokens {
		if cfg.InVocabulary(t.Text) {
			matched++
			continue
		}
		if _, ok := cfg.CanonicalTerm(t.Text); ok {
			matched++
			continue
		}
		if _, _, ok := cfg.LookupEntity(t.Text); ok {
			matched++
		}
	}
	return float64(matched) / float64(len(tokens))
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
