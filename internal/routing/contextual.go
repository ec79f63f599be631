package routing

import (
	"fmt"
	"strings"

	"github.com/geolens-ai/query-router/internal/domain"
	"github.com/geolens-ai/query-router/internal/types"
)

// FieldInventory is the read-only field-availability collaborator supplied by
// the data layer. The routing engine never writes to it.
type FieldInventory interface {
	HasField(endpointID, field string) bool
}

// FieldRequirement reports one required field's status for the candidate.
type FieldRequirement struct {
	Name      string `json:"name"`
	Available bool   `json:"available"`
	Mentioned bool   `json:"mentioned"`
}

// ContextEnhancement cross-references a candidate endpoint against the live
// field inventory. It runs only against the top-ranked candidate to bound
// cost, not the full list.
type ContextEnhancement struct {
	CoverageScore     float64
	ContextualBoost   float64
	FieldRequirements []FieldRequirement
	MissingFields     []string // non-empty marks the candidate temporarily unavailable
	Trace             []string
}

// enhanceContext computes how well the data the candidate actually needs is
// present, plus a small boost when the query explicitly names required fields.
// Required fields absent from the inventory are reported as missing; the
// decision layer treats a candidate with missing fields as temporarily
// unavailable.
func enhanceContext(q types.Query, candidate *Candidate, cfg *domain.Config, inv FieldInventory, opts Options) ContextEnhancement {
	required := candidate.RequiredFields
	if len(required) == 0 {
		return ContextEnhancement{
			CoverageScore: 1.0,
			Trace:         []string{fmt.Sprintf("%s requires no fields, coverage 1.00", candidate.ID)},
		}
	}

	mentioned := mentionedFields(q, cfg)
	available := 0
	reqs := make([]FieldRequirement, 0, len(required))
	var missing []string
	var boost float64
	for _, field := range required {
		fr := FieldRequirement{Name: field}
		if inv != nil && inv.HasField(candidate.ID, field) {
			fr.Available = true
			available++
		} else {
			missing = append(missing, field)
		}
		if mentioned[field] {
			fr.Mentioned = true
			boost += opts.MentionBoost
		}
		reqs = append(reqs, fr)
	}
	if boost > opts.MentionBoostCap {
		boost = opts.MentionBoostCap
	}

	coverage := float64(available) / float64(len(required))
	ce := ContextEnhancement{
		CoverageScore:     coverage,
		ContextualBoost:   boost,
		FieldRequirements: reqs,
		MissingFields:     missing,
		Trace: []string{fmt.Sprintf("%s field coverage %.2f (%d/%d available), mention boost %.2f",
			candidate.ID, coverage, available, len(required), boost)},
	}
	if len(missing) > 0 {
		ce.Trace = append(ce.Trace, fmt.Sprintf("%s temporarily unavailable, missing fields: %s",
			candidate.ID, strings.Join(missing, ", ")))
	}
	return ce
}

// mentionedFields detects field names and field aliases in the raw query
// text, plus the caller-supplied field hint.
func mentionedFields(q types.Query, cfg *domain.Config) map[string]bool {
	mentioned := make(map[string]bool)
	tokens := tokenTexts(tokenize(q.Text))
	// Field aliases can be multi-word ("median income"); scan short n-grams.
	for i := range tokens {
		for n := 3; n >= 1; n-- {
			if i+n > len(tokens) {
				continue
			}
			if field, ok := cfg.LookupField(strings.Join(tokens[i:i+n], " ")); ok {
				mentioned[field] = true
			}
		}
	}
	if q.FieldHint != "" {
		if field, ok := cfg.LookupField(q.FieldHint); ok {
			mentioned[field] = true
		} else {
			mentioned[strings.ToLower(q.FieldHint)] = true
		}
	}
	return mentioned
}
