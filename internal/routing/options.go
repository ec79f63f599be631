package routing

// Options holds the engine's tunable scoring parameters. All of them are
// exposed through the application configuration rather than hard-coded; the
// defaults below match the values the product shipped with.
type Options struct {
	// Scope validation.
	MinOverlap float64 // overlap-ratio floor for in_scope
	MinTokens  int     // hard-reject queries shorter than this

	// Intent scoring.
	PhraseBonus     float64 // multiplier when a phrase matches contiguously
	EntityBonus     float64 // fixed bonus per recognized entity
	RelationalBonus float64 // bonus for comparison connectives on comparative endpoints
	OverlapPenalty  float64 // fraction of a foreign term's weight subtracted

	// Context enhancement.
	MentionBoost    float64 // additive reward per required field named in the query
	MentionBoostCap float64 // ceiling on the summed mention reward

	// Decision layer.
	NearMissBand  float64 // clarify instead of reject within this band below threshold
	TopCandidates int     // alternatives surfaced on a failed route
}

// DefaultOptions returns the shipped tuning.
func DefaultOptions() Options {
	return Options{
		MinOverlap:      0.15,
		MinTokens:       2,
		PhraseBonus:     1.5,
		EntityBonus:     2.0,
		RelationalBonus: 1.0,
		OverlapPenalty:  0.25,
		MentionBoost:    0.05,
		MentionBoostCap: 0.15,
		NearMissBand:    0.15,
		TopCandidates:   3,
	}
}
