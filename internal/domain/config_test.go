package domain

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validYAML = `
version: "v1"
synonyms:
  market share:
    - share of market
stopwords: [the, of]
entities:
  brands:
    - id: brand-nike
      name: Nike
      aliases: [nike inc]
  places:
    - id: "US-CA-06037"
      name: Los Angeles
      aliases: [la]
field_aliases:
  median_income: [median income]
endpoints:
  - id: market-share-analysis
    min_confidence: 0.45
    priority_rank: 1
    boost_terms:
      - { term: market share, weight: 3.0 }
    required_fields: [store_count]
inventory:
  market-share-analysis: [store_count]
`

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func TestParseValid(t *testing.T) {
	cfg, err := Parse([]byte(validYAML))
	require.NoError(t, err)

	assert.Equal(t, "v1", cfg.Version)
	require.Len(t, cfg.Endpoints, 1)

	ep, ok := cfg.Endpoint("market-share-analysis")
	require.True(t, ok)
	assert.Equal(t, 0.45, ep.MinConfidence)

	_, ok = cfg.Endpoint("missing")
	assert.False(t, ok)
}

func TestParseAccessors(t *testing.T) {
	cfg, err := Parse([]byte(validYAML))
	require.NoError(t, err)

	canonical, ok := cfg.CanonicalTerm("Share Of Market")
	require.True(t, ok)
	assert.Equal(t, "market share", canonical)

	id, kind, ok := cfg.LookupEntity("NIKE INC")
	require.True(t, ok)
	assert.Equal(t, "brand-nike", id)
	assert.Equal(t, "brand", kind)

	id, kind, ok = cfg.LookupEntity("la")
	require.True(t, ok)
	assert.Equal(t, "US-CA-06037", id)
	assert.Equal(t, "place", kind)

	field, ok := cfg.LookupField("Median Income")
	require.True(t, ok)
	assert.Equal(t, "median_income", field)

	assert.True(t, cfg.InVocabulary("market"))
	assert.False(t, cfg.InVocabulary("weather"))
	assert.True(t, cfg.IsStopword("THE"))
	assert.Equal(t, 2, cfg.MaxEntityTokens())
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"no endpoints", `version: "v1"`},
		{"empty endpoint id", `
endpoints:
  - id: ""
    min_confidence: 0.5
    boost_terms: [{ term: x, weight: 1 }]
`},
		{"duplicate endpoint id", `
endpoints:
  - id: a
    min_confidence: 0.5
    boost_terms: [{ term: x, weight: 1 }]
  - id: a
    min_confidence: 0.5
    boost_terms: [{ term: y, weight: 1 }]
`},
		{"empty signature", `
endpoints:
  - id: a
    min_confidence: 0.5
    boost_terms: []
`},
		{"blank boost term", `
endpoints:
  - id: a
    min_confidence: 0.5
    boost_terms: [{ term: "  ", weight: 1 }]
`},
		{"non-positive weight", `
endpoints:
  - id: a
    min_confidence: 0.5
    boost_terms: [{ term: x, weight: 0 }]
`},
		{"min_confidence zero", `
endpoints:
  - id: a
    min_confidence: 0
    boost_terms: [{ term: x, weight: 1 }]
`},
		{"min_confidence above one", `
endpoints:
  - id: a
    min_confidence: 1.5
    boost_terms: [{ term: x, weight: 1 }]
`},
		{"synonym variant collision", `
synonyms:
  market share: [penetration]
  income: [penetration]
endpoints:
  - id: a
    min_confidence: 0.5
    boost_terms: [{ term: x, weight: 1 }]
`},
		{"entity missing name", `
entities:
  brands:
    - id: brand-x
      name: ""
endpoints:
  - id: a
    min_confidence: 0.5
    boost_terms: [{ term: x, weight: 1 }]
`},
		{"duplicate entity id", `
entities:
  places:
    - id: p1
      name: One
    - id: p1
      name: Two
endpoints:
  - id: a
    min_confidence: 0.5
    boost_terms: [{ term: x, weight: 1 }]
`},
		{"malformed yaml", `{{{`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			require.Error(t, err)
			var cfgErr *ConfigError
			assert.ErrorAs(t, err, &cfgErr)
		})
	}
}

func TestStoreReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "domain.yaml")
	require.NoError(t, os.WriteFile(path, []byte(validYAML), 0644))

	store, err := NewStore(path, testLogger())
	require.NoError(t, err)
	assert.Equal(t, "v1", store.Snapshot().Version)

	// Invalid rewrite: reload fails and the active snapshot is untouched.
	require.NoError(t, os.WriteFile(path, []byte("endpoints: []"), 0644))
	_, err = store.Reload()
	require.Error(t, err)
	assert.Equal(t, "v1", store.Snapshot().Version)

	// Valid rewrite swaps in atomically.
	v2 := []byte(`
version: "v2"
endpoints:
  - id: market-share-analysis
    min_confidence: 0.5
    boost_terms: [{ term: market share, weight: 3.0 }]
`)
	require.NoError(t, os.WriteFile(path, v2, 0644))
	cfg, err := store.Reload()
	require.NoError(t, err)
	assert.Equal(t, "v2", cfg.Version)
	assert.Equal(t, "v2", store.Snapshot().Version)
}

func TestNewStoreMissingFile(t *testing.T) {
	_, err := NewStore(filepath.Join(t.TempDir(), "absent.yaml"), testLogger())
	require.Error(t, err)
	var cfgErr *ConfigError
	assert.ErrorAs(t, err, &cfgErr)
}

func TestSnapshotSharedAcrossReaders(t *testing.T) {
	path := filepath.Join(t.TempDir(), "domain.yaml")
	require.NoError(t, os.WriteFile(path, []byte(validYAML), 0644))
	store, err := NewStore(path, testLogger())
	require.NoError(t, err)

	// A reader's snapshot survives a subsequent reload.
	snapshot := store.Snapshot()
	require.NoError(t, os.WriteFile(path, []byte(`
version: "v2"
endpoints:
  - id: other
    min_confidence: 0.5
    boost_terms: [{ term: other, weight: 1.0 }]
`), 0644))
	_, err = store.Reload()
	require.NoError(t, err)

	assert.Equal(t, "v1", snapshot.Version)
	assert.Equal(t, "v2", store.Snapshot().Version)
}
