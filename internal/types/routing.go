package types

// Query is the single input to the routing engine. ConversationContext, when
// present, is used only for scope disambiguation; FieldHint is an optional
// target-variable hint supplied by the caller.
type Query struct {
	Text                string `json:"query"`
	ConversationContext string `json:"conversation_context,omitempty"`
	FieldHint           string `json:"field_hint,omitempty"`
}

// Scope classification values.
const (
	ScopeIn  = "in_scope"
	ScopeOut = "out_of_scope"
)

// ValidationResult is the scope validator's verdict.
type ValidationResult struct {
	Scope      string   `json:"scope"`
	Confidence float64  `json:"confidence"`
	Reasons    []string `json:"reasons"`
}

// User response types.
const (
	ResponseRouted   = "routed"
	ResponseClarify  = "clarify"
	ResponseRejected = "rejected"
)

// Early-exit reasons recorded when later layers were skipped.
const (
	EarlyExitValidation = "validation_rejected"
	EarlyExitSemantic   = "semantic_unavailable"
)

// Layer names, in execution order.
const (
	LayerScopeValidation = "scope_validation"
	LayerAdaptation      = "domain_adaptation"
	LayerClassification  = "intent_classification"
	LayerContext         = "context_enhancement"
	LayerSemantic        = "semantic_enhancement"
	LayerAggregation     = "aggregation"
)

// UserResponse is the user-facing portion of a routing result.
type UserResponse struct {
	Type        string   `json:"type"`
	Message     string   `json:"message"`
	Suggestions []string `json:"suggestions,omitempty"`
}

// Alternative is a candidate endpoint that scored below the winner.
type Alternative struct {
	EndpointID string  `json:"endpoint_id"`
	Score      float64 `json:"score"`
}

// Entity kinds recognized by the domain dictionaries.
const (
	EntityBrand = "brand"
	EntityPlace = "place"
)

// EntityMatch records a recognized entity and the character span where it was
// found in the original query text.
type EntityMatch struct {
	Kind        string `json:"kind"`
	Text        string `json:"text"`
	CanonicalID string `json:"canonical_id"`
	Start       int    `json:"start"`
	End         int    `json:"end"`
}

// RoutingResult is produced exactly once per query and never mutated after
// construction. Endpoint holds the winning endpoint id by value (empty means
// no route), so results stay valid across configuration reloads.
type RoutingResult struct {
	Endpoint       string           `json:"endpoint,omitempty"`
	Confidence     float64          `json:"confidence"`
	Success        bool             `json:"success"`
	Validation     ValidationResult `json:"validation"`
	LayersExecuted []string         `json:"layers_executed"`
	EarlyExit      string           `json:"early_exit,omitempty"`
	Reasoning      []string         `json:"reasoning"`
	Alternatives   []Alternative    `json:"alternatives,omitempty"`
	MatchedTerms   []string         `json:"matched_terms,omitempty"`
	Entities       []EntityMatch    `json:"entities,omitempty"`
	UserResponse   UserResponse     `json:"user_response"`
}
