package routing

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/geolens-ai/query-router/internal/domain"
	"github.com/geolens-ai/query-router/internal/types"
)

// Engine is the hybrid query routing pipeline. It is stateless per request:
// each query dereferences one configuration snapshot up front and threads all
// per-query data through locally-scoped values, so any number of queries can
// run concurrently against the same snapshot.
type Engine struct {
	store     *domain.Store
	inventory FieldInventory
	semantic  *SemanticEnhancer // nil when no similarity backend is configured
	opts      Options
	logger    *logrus.Logger
}

// NewEngine wires the pipeline. inventory and semantic may be nil; a nil
// inventory treats every required field as missing, a nil semantic enhancer
// skips the semantic layer entirely.
func NewEngine(store *domain.Store, inventory FieldInventory, semantic *SemanticEnhancer, opts Options, logger *logrus.Logger) *Engine {
	return &Engine{
		store:     store,
		inventory: inventory,
		semantic:  semantic,
		opts:      opts,
		logger:    logger,
	}
}

// Route classifies one query. It always returns a structured RoutingResult;
// per-query conditions (out of scope, no confident match, semantic backend
// down) are outcomes, not errors.
func (e *Engine) Route(ctx context.Context, q types.Query) *types.RoutingResult {
	start := time.Now()
	cfg := e.store.Snapshot()

	validation := validateScope(q, cfg, e.opts)
	if validation.Scope == types.ScopeOut {
		result := terminalReject(validation)
		e.logResult(q, result, start)
		return result
	}

	layers := []string{types.LayerScopeValidation}
	reasoning := append([]string{}, validation.Reasons...)

	enh := enhanceDomain(q, cfg)
	layers = append(layers, types.LayerAdaptation)
	reasoning = append(reasoning, enh.Trace...)

	candidates := classifyIntent(q, cfg, enh, e.opts)
	layers = append(layers, types.LayerClassification)
	for i, c := range candidates {
		if i == e.opts.TopCandidates {
			break
		}
		reasoning = append(reasoning, c.Reason)
	}

	var ctxEnh *ContextEnhancement
	if len(candidates) > 0 {
		var notes []string
		candidates, ctxEnh, notes = e.selectViable(q, candidates, cfg)
		layers = append(layers, types.LayerContext)
		reasoning = append(reasoning, notes...)
	}

	earlyExit := ""
	if e.semantic != nil && len(candidates) > 0 {
		keywordLeader := candidates[0].ID
		blended, available := e.semantic.Enhance(ctx, q.Text, candidates)
		if available {
			candidates = blended
			layers = append(layers, types.LayerSemantic)
			reasoning = append(reasoning, "semantic similarity blended into candidate scores")
			// The semantic layer may have promoted a different leader;
			// re-check it against the field inventory.
			if candidates[0].ID != keywordLeader {
				var notes []string
				candidates, ctxEnh, notes = e.selectViable(q, candidates, cfg)
				reasoning = append(reasoning, notes...)
			}
		} else {
			earlyExit = types.EarlyExitSemantic
			reasoning = append(reasoning, "semantic service unreachable, keyword-only scoring")
		}
	}

	result := aggregate(validation, candidates, enh, ctxEnh, e.opts)
	result.LayersExecuted = append(layers, types.LayerAggregation)
	result.EarlyExit = earlyExit
	result.Reasoning = append(reasoning, result.Reasoning...)

	e.logResult(q, result, start)
	return result
}

// selectViable walks the ranked candidates until one has every required field
// present in the live inventory, dropping temporarily-unavailable leaders.
// When no candidate is viable the keyword leader stays in place and its
// missing fields are carried forward so the decision layer can report the
// outage instead of routing to it.
func (e *Engine) selectViable(q types.Query, candidates CandidateList, cfg *domain.Config) (CandidateList, *ContextEnhancement, []string) {
	var notes []string
	var leaderCE *ContextEnhancement
	for i := range candidates {
		ce := enhanceContext(q, &candidates[i], cfg, e.inventory, e.opts)
		notes = append(notes, ce.Trace...)
		if len(ce.MissingFields) == 0 {
			return candidates[i:], &ce, notes
		}
		if leaderCE == nil {
			leaderCE = &ce
		}
	}
	return candidates, leaderCE, notes
}

func (e *Engine) logResult(q types.Query, result *types.RoutingResult, start time.Time) {
	e.logger.WithFields(logrus.Fields{
		"outcome":     result.UserResponse.Type,
		"endpoint":    result.Endpoint,
		"confidence":  result.Confidence,
		"layers":      len(result.LayersExecuted),
		"early_exit":  result.EarlyExit,
		"duration_ms": time.Since(start).Milliseconds(),
	}).Info("Query routed")
}
