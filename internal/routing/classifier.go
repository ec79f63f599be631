package routing

import (
	"fmt"
	"sort"
	"strings"

	"github.com/geolens-ai/query-router/internal/domain"
	"github.com/geolens-ai/query-router/internal/types"
)

// relationalPhrases are comparison/contrast connectives rewarded on endpoints
// whose signature is marked comparative.
var relationalPhrases = []string{
	"compare", "versus", "vs", "against", "compared to",
	"difference between", "relative to", "side by side",
}

// Candidate is one endpoint's score against a query. The classifier never
// filters by threshold; thresholding belongs to the decision layer.
type Candidate struct {
	ID              string
	RawScore        float64
	NormScore       float64 // raw normalized against the endpoint's own maximum
	BlendedScore    float64 // set by the semantic enhancer when it runs
	MatchedTerms    []string
	MatchedEntities []string
	MinConfidence   float64
	PriorityRank    int
	RequiredFields  []string
	Reason          string
}

// Score returns the blended score when semantic enhancement ran, otherwise
// the keyword-only normalized score.
func (c *Candidate) Score() float64 {
	if c.BlendedScore > 0 {
		return c.BlendedScore
	}
	return c.NormScore
}

// CandidateList is the ranked classifier output, best first.
type CandidateList []Candidate

// classifyIntent scores the query against every endpoint's intent signature
// as one generic loop over descriptor data; endpoint-specific behavior lives
// entirely in the configuration.
func classifyIntent(q types.Query, cfg *domain.Config, enh Enhancement, opts Options) CandidateList {
	rawTokens := tokenTexts(tokenize(q.Text))
	canonTokens := enh.CanonicalTokens
	present := tokenSet(rawTokens)
	for _, t := range canonTokens {
		present[t] = struct{}{}
	}

	relational := matchesRelational(rawTokens, present)
	foreign := foreignTermWeights(cfg, rawTokens, canonTokens, present)

	var candidates CandidateList
	for i := range cfg.Endpoints {
		ep := &cfg.Endpoints[i]
		c := scoreEndpoint(ep, rawTokens, canonTokens, present, enh, relational, foreign, opts)
		if c.RawScore > 0 {
			candidates = append(candidates, c)
		}
	}

	// Rank descending by raw score; ties fall to matched-term breadth, then
	// the endpoint's static priority rank, then id for determinism.
	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.RawScore != b.RawScore {
			return a.RawScore > b.RawScore
		}
		if len(a.MatchedTerms) != len(b.MatchedTerms) {
			return len(a.MatchedTerms) > len(b.MatchedTerms)
		}
		if a.PriorityRank != b.PriorityRank {
			return a.PriorityRank < b.PriorityRank
		}
		return a.ID < b.ID
	})
	return candidates
}

func scoreEndpoint(ep *domain.EndpointDescriptor, rawTokens, canonTokens []string, present map[string]struct{}, enh Enhancement, relational bool, foreign map[string]float64, opts Options) Candidate {
	c := Candidate{
		ID:             ep.ID,
		MinConfidence:  ep.MinConfidence,
		PriorityRank:   ep.PriorityRank,
		RequiredFields: append([]string(nil), ep.RequiredFields...),
	}

	own := make(map[string]struct{}, len(ep.BoostTerms))
	for _, bt := range ep.BoostTerms {
		term := strings.ToLower(bt.Term)
		own[term] = struct{}{}
		phrase := strings.Fields(term)
		switch {
		case containsPhrase(rawTokens, phrase) || containsPhrase(canonTokens, phrase):
			c.RawScore += bt.Weight * opts.PhraseBonus
			c.MatchedTerms = append(c.MatchedTerms, term)
		case containsScattered(present, phrase):
			c.RawScore += bt.Weight
			c.MatchedTerms = append(c.MatchedTerms, term)
		}
	}

	for _, e := range enh.Entities {
		c.RawScore += opts.EntityBonus
		c.MatchedEntities = append(c.MatchedEntities, e.CanonicalID)
	}

	if ep.Comparative && relational {
		c.RawScore += opts.RelationalBonus
	}

	// Discourage endpoints riding on vocabulary that fits another endpoint
	// better: each matched foreign term costs a fraction of its weight.
	for term, weight := range foreign {
		if _, ours := own[term]; ours {
			continue
		}
		c.RawScore -= opts.OverlapPenalty * weight
	}
	if c.RawScore < 0 {
		c.RawScore = 0
	}

	if max := ep.MaxSignatureScore(opts.PhraseBonus); max > 0 {
		c.NormScore = clamp01(c.RawScore / max)
	}

	c.Reason = fmt.Sprintf("%s: %d terms [%s], %d entities, raw %.2f",
		ep.ID, len(c.MatchedTerms), strings.Join(c.MatchedTerms, ", "), len(c.MatchedEntities), c.RawScore)
	return c
}

// foreignTermWeights collects every boost term present in the query together
// with the highest weight any endpoint assigns it.
func foreignTermWeights(cfg *domain.Config, rawTokens, canonTokens []string, present map[string]struct{}) map[string]float64 {
	weights := make(map[string]float64)
	for i := range cfg.Endpoints {
		for _, bt := range cfg.Endpoints[i].BoostTerms {
			term := strings.ToLower(bt.Term)
			phrase := strings.Fields(term)
			if !containsPhrase(rawTokens, phrase) && !containsPhrase(canonTokens, phrase) && !containsScattered(present, phrase) {
				continue
			}
			if bt.Weight > weights[term] {
				weights[term] = bt.Weight
			}
		}
	}
	return weights
}

func matchesRelational(rawTokens []string, present map[string]struct{}) bool {
	for _, p := range relationalPhrases {
		phrase := strings.Fields(p)
		if len(phrase) == 1 {
			if _, ok := present[phrase[0]]; ok {
				return true
			}
			continue
		}
		if containsPhrase(rawTokens, phrase) {
			return true
		}
	}
	return false
}
