package routing

import (
	"fmt"
	"strings"

	"github.com/geolens-ai/query-router/internal/types"
)

// aggregate combines every layer's output into one final confidence and
// decision. All per-query conditions come back as data in the RoutingResult,
// never as errors.
func aggregate(validation types.ValidationResult, candidates CandidateList, enh Enhancement, ctxEnh *ContextEnhancement, opts Options) *types.RoutingResult {
	if len(candidates) == 0 {
		return &types.RoutingResult{
			Validation: validation,
			Reasoning:  []string{"no endpoint matched any intent signature"},
			UserResponse: types.UserResponse{
				Type:    types.ResponseRejected,
				Message: "I couldn't match that question to a supported analysis. Try naming the metric or comparison you're interested in.",
			},
		}
	}

	leader := candidates[0]
	coverage := 1.0
	boost := 0.0
	if ctxEnh != nil {
		coverage = ctxEnh.CoverageScore
		boost = ctxEnh.ContextualBoost
	}

	confidence := clamp01(leader.Score()*enh.DomainRelevance*(0.5+0.5*coverage) + boost)

	result := &types.RoutingResult{
		Confidence:   confidence,
		Validation:   validation,
		MatchedTerms: leader.MatchedTerms,
		Entities:     enh.Entities,
		Alternatives: alternatives(candidates, opts.TopCandidates),
		Reasoning: []string{fmt.Sprintf("final confidence %.2f = score %.2f x relevance %.2f x coverage factor %.2f + boost %.2f (threshold %.2f)",
			confidence, leader.Score(), enh.DomainRelevance, 0.5+0.5*coverage, boost, leader.MinConfidence)},
	}

	// A leader with missing required fields only reaches this point when no
	// ranked candidate was viable: never route to it.
	if ctxEnh != nil && len(ctxEnh.MissingFields) > 0 {
		result.Reasoning = append(result.Reasoning,
			fmt.Sprintf("%s withheld: required fields missing (%s)", leader.ID, strings.Join(ctxEnh.MissingFields, ", ")))
		result.UserResponse = types.UserResponse{
			Type:        types.ResponseClarify,
			Message:     fmt.Sprintf("The %s analysis is temporarily unavailable while its data refreshes. Try again shortly, or ask about something else.", humanize(leader.ID)),
			Suggestions: suggestions(candidates[1:], opts.TopCandidates),
		}
		return result
	}

	switch {
	case confidence >= leader.MinConfidence:
		result.Endpoint = leader.ID
		result.Success = true
		result.UserResponse = types.UserResponse{
			Type:    types.ResponseRouted,
			Message: fmt.Sprintf("Running the %s analysis.", humanize(leader.ID)),
		}
	case confidence >= leader.MinConfidence-opts.NearMissBand:
		result.UserResponse = types.UserResponse{
			Type:        types.ResponseClarify,
			Message:     fmt.Sprintf("I think you're asking about %s, but I'm not sure. Did you mean one of these?", humanize(leader.ID)),
			Suggestions: suggestions(candidates, opts.TopCandidates),
		}
	default:
		result.UserResponse = types.UserResponse{
			Type:        types.ResponseRejected,
			Message:     "I couldn't understand that question well enough to run an analysis.",
			Suggestions: suggestions(candidates, opts.TopCandidates),
		}
	}
	return result
}

// terminalReject is the short-circuit result for out_of_scope queries: no
// later layer ran and none will.
func terminalReject(validation types.ValidationResult) *types.RoutingResult {
	return &types.RoutingResult{
		Validation:     validation,
		EarlyExit:      types.EarlyExitValidation,
		LayersExecuted: []string{types.LayerScopeValidation},
		Reasoning:      append([]string{"query rejected as out of scope"}, validation.Reasons...),
		UserResponse: types.UserResponse{
			Type:    types.ResponseRejected,
			Message: "That doesn't look like a question about our geographic or demographic data.",
		},
	}
}

// alternatives lists the next-best candidates below the winner.
func alternatives(candidates CandidateList, n int) []types.Alternative {
	var alts []types.Alternative
	for _, c := range candidates[1:] {
		if len(alts) == n {
			break
		}
		alts = append(alts, types.Alternative{EndpointID: c.ID, Score: c.Score()})
	}
	return alts
}

func suggestions(candidates CandidateList, n int) []string {
	var out []string
	for _, c := range candidates {
		if len(out) == n {
			break
		}
		out = append(out, fmt.Sprintf("Try asking about %s", humanize(c.ID)))
	}
	return out
}

func humanize(endpointID string) string {
	return strings.NewReplacer("-", " ", "_", " ").Replace(endpointID)
}
