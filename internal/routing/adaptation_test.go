package routing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/geolens-ai/query-router/internal/domain"
	"github.com/geolens-ai/query-router/internal/types"
)

func TestEnhanceDomainCanonicalization(t *testing.T) {
	cfg := testConfig(t)

	tests := []struct {
		name  string
		query string
		want  string
	}{
		{"multi-word variant", "share of market trends", "market share trends"},
		{"variant with suffix", "market penetration by region", "market share by region"},
		{"single-word variant", "earnings by county", "income by county"},
		{"no variants", "population density", "population density"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			enh := enhanceDomain(types.Query{Text: tt.query}, cfg)
			assert.Equal(t, tt.want, enh.EnhancedQuery)
		})
	}
}

func TestEnhanceDomainLongVariant(t *testing.T) {
	// The n-gram scan is bounded by the configured dictionary, not a fixed
	// width, so long variants still canonicalize.
	cfg, err := domain.Parse([]byte(`
version: "v1"
synonyms:
  market share: [share of the overall retail market]
endpoints:
  - id: market-share-analysis
    min_confidence: 0.45
    boost_terms: [{ term: market share, weight: 3.0 }]
`))
	require.NoError(t, err)
	assert.Equal(t, 6, cfg.MaxSynonymTokens())

	enh := enhanceDomain(types.Query{Text: "share of the overall retail market for nike"}, cfg)
	assert.Equal(t, "market share for nike", enh.EnhancedQuery)
}

func TestEnhanceDomainEntityRecognition(t *testing.T) {
	cfg := testConfig(t)

	enh := enhanceDomain(types.Query{Text: "Nike stores in Los Angeles"}, cfg)

	require.Len(t, enh.Entities, 2)
	assert.Equal(t, types.EntityBrand, enh.Entities[0].Kind)
	assert.Equal(t, "brand-nike", enh.Entities[0].CanonicalID)
	assert.Equal(t, "Nike", enh.Entities[0].Text)
	assert.Equal(t, types.EntityPlace, enh.Entities[1].Kind)
	assert.Equal(t, "US-CA-06037", enh.Entities[1].CanonicalID)
	assert.Equal(t, "Los Angeles", enh.Entities[1].Text)
}

func TestEnhanceDomainEntityCaseAndAliases(t *testing.T) {
	cfg := testConfig(t)

	for _, text := range []string{"NIKE market share", "nike market share", "Nike Inc market share"} {
		enh := enhanceDomain(types.Query{Text: text}, cfg)
		require.Len(t, enh.Entities, 1, text)
		assert.Equal(t, "brand-nike", enh.Entities[0].CanonicalID, text)
	}
}

func TestEnhanceDomainEntitySpans(t *testing.T) {
	cfg := testConfig(t)

	raw := "compare NIKE INC and adidas"
	enh := enhanceDomain(types.Query{Text: raw}, cfg)

	require.Len(t, enh.Entities, 2)
	for _, e := range enh.Entities {
		assert.Equal(t, raw[e.Start:e.End], e.Text)
	}
	assert.Equal(t, "NIKE INC", enh.Entities[0].Text)
}

func TestEnhanceDomainRelevance(t *testing.T) {
	cfg := testConfig(t)

	tests := []struct {
		query string
		want  float64
	}{
		// market, share vocabulary; of stopword; nike entity.
		{"market share of nike", 1.0},
		{"market weather", 0.5},
		{"weather sports news", 0.0},
	}
	for _, tt := range tests {
		enh := enhanceDomain(types.Query{Text: tt.query}, cfg)
		assert.InDelta(t, tt.want, enh.DomainRelevance, 1e-9, tt.query)
	}
}

func TestEnhanceDomainTraceMentionsEntities(t *testing.T) {
	cfg := testConfig(t)

	enh := enhanceDomain(types.Query{Text: "nike in los angeles"}, cfg)

	require.NotEmpty(t, enh.Trace)
	joined := ""
	for _, line := range enh.Trace {
		joined += line + "\n"
	}
	assert.Contains(t, joined, "brand-nike")
	assert.Contains(t, joined, "US-CA-06037")
}
