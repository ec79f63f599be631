package routing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/geolens-ai/query-router/internal/domain"
	"github.com/geolens-ai/query-router/internal/types"
)

func classify(t *testing.T, text string) CandidateList {
	t.Helper()
	cfg := testConfig(t)
	q := types.Query{Text: text}
	return classifyIntent(q, cfg, enhanceDomain(q, cfg), DefaultOptions())
}

func candidateByID(t *testing.T, candidates CandidateList, id string) Candidate {
	t.Helper()
	for _, c := range candidates {
		if c.ID == id {
			return c
		}
	}
	t.Fatalf("candidate %s not in list", id)
	return Candidate{}
}

func TestClassifyRanking(t *testing.T) {
	candidates := classify(t, "market share of nike")

	require.NotEmpty(t, candidates)
	assert.Equal(t, "market-share-analysis", candidates[0].ID)
	assert.Contains(t, candidates[0].MatchedTerms, "market share")
	assert.Contains(t, candidates[0].MatchedEntities, "brand-nike")
}

func TestClassifyPhraseBeatsScattered(t *testing.T) {
	contiguous := candidateByID(t, classify(t, "market share"), "market-share-analysis")
	scattered := candidateByID(t, classify(t, "share market"), "market-share-analysis")

	assert.Greater(t, contiguous.RawScore, scattered.RawScore)
	assert.Contains(t, scattered.MatchedTerms, "market share")
}

func TestClassifyRelationalBonusOnComparative(t *testing.T) {
	candidates := classify(t, "compare nike and adidas market share")

	require.NotEmpty(t, candidates)
	assert.Equal(t, "competitor-comparison", candidates[0].ID)

	// Without the comparison connective, the market share endpoint leads.
	plain := classify(t, "nike and adidas market share")
	require.NotEmpty(t, plain)
	assert.Equal(t, "market-share-analysis", plain[0].ID)
}

func TestClassifyForeignTermPenalty(t *testing.T) {
	// "compare" belongs to competitor-comparison; market-share-analysis pays
	// for matching alongside it.
	with := candidateByID(t, classify(t, "compare market share"), "market-share-analysis")
	without := candidateByID(t, classify(t, "market share"), "market-share-analysis")

	assert.Less(t, with.RawScore, without.RawScore)
}

func TestClassifyMonotonicity(t *testing.T) {
	// Adding one of the endpoint's own boost terms never lowers its raw score.
	base := candidateByID(t, classify(t, "market share"), "market-share-analysis")
	extended := candidateByID(t, classify(t, "market share penetration"), "market-share-analysis")

	assert.GreaterOrEqual(t, extended.RawScore, base.RawScore)
}

func TestClassifySynonymExpandedMatch(t *testing.T) {
	// "share of market" canonicalizes to "market share" and earns the phrase
	// bonus through the expanded form.
	c := candidateByID(t, classify(t, "share of market"), "market-share-analysis")
	direct := candidateByID(t, classify(t, "market share"), "market-share-analysis")

	assert.Contains(t, c.MatchedTerms, "market share")
	assert.Equal(t, direct.RawScore, c.RawScore)
}

func TestClassifyNoThresholdFiltering(t *testing.T) {
	// The classifier reports weak candidates too; thresholding is the
	// aggregator's job.
	candidates := classify(t, "penetration rates")

	c := candidateByID(t, candidates, "market-share-analysis")
	assert.Less(t, c.NormScore, c.MinConfidence)
}

func TestClassifyDropsZeroScores(t *testing.T) {
	candidates := classify(t, "income by county")

	for _, c := range candidates {
		assert.Greater(t, c.RawScore, 0.0, c.ID)
	}
	assert.Equal(t, "income-analysis", candidates[0].ID)
}

func TestClassifyNormalizedScoreClamped(t *testing.T) {
	for _, c := range classify(t, "compare nike and adidas market share penetration versus competitor") {
		assert.GreaterOrEqual(t, c.NormScore, 0.0)
		assert.LessOrEqual(t, c.NormScore, 1.0)
	}
}

func TestClassifyDeterministicOrder(t *testing.T) {
	first := classify(t, "compare nike and adidas market share")
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, classify(t, "compare nike and adidas market share"))
	}
}

func BenchmarkClassifyIntent(b *testing.B) {
	cfg, err := domain.Parse([]byte(testDomainYAML))
	if err != nil {
		b.Fatal(err)
	}
	q := types.Query{Text: "compare nike and adidas market share in los angeles"}
	enh := enhanceDomain(q, cfg)
	opts := DefaultOptions()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		classifyIntent(q, cfg, enh, opts)
	}
}
