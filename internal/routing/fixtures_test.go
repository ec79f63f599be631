package routing

import (
	"io"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/geolens-ai/query-router/internal/domain"
)

const testDomainYAML = `
version: "test-1"
synonyms:
  market share:
    - share of market
    - market penetration
  income:
    - earnings
stopwords: [the, a, an, of, in, for, and, what, is]
entities:
  brands:
    - id: brand-nike
      name: Nike
      aliases: [nike inc]
    - id: brand-adidas
      name: Adidas
  places:
    - id: "US-CA-06037"
      name: Los Angeles
      aliases: [la]
field_aliases:
  median_income: [median income, income level]
  store_count: [store count, number of stores]
  revenue_estimate: [revenue]
  population_total: [population]
endpoints:
  - id: market-share-analysis
    min_confidence: 0.45
    priority_rank: 1
    boost_terms:
      - { term: market share, weight: 3.0 }
      - { term: share, weight: 1.0 }
      - { term: penetration, weight: 2.0 }
    required_fields: [store_count, revenue_estimate]
  - id: competitor-comparison
    min_confidence: 0.45
    priority_rank: 2
    comparative: true
    boost_terms:
      - { term: compare, weight: 2.5 }
      - { term: competitor, weight: 2.5 }
      - { term: versus, weight: 2.0 }
      - { term: market share, weight: 1.0 }
    required_fields: [store_count]
  - id: income-analysis
    min_confidence: 0.4
    priority_rank: 3
    boost_terms:
      - { term: income, weight: 3.0 }
      - { term: median income, weight: 3.0 }
    required_fields: [median_income]
  - id: population-density
    min_confidence: 0.4
    priority_rank: 4
    boost_terms:
      - { term: population, weight: 2.0 }
      - { term: density, weight: 2.5 }
    required_fields: [population_total]
inventory:
  market-share-analysis: [store_count, revenue_estimate]
  competitor-comparison: [store_count]
  income-analysis: [median_income]
  population-density: [population_total]
`

func testConfig(t *testing.T) *domain.Config {
	t.Helper()
	cfg, err := domain.Parse([]byte(testDomainYAML))
	require.NoError(t, err)
	return cfg
}

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

// staticInventory is a fixed field-availability map for tests.
type staticInventory map[string]map[string]bool

func (s staticInventory) HasField(endpointID, field string) bool {
	return s[endpointID][field]
}

func fullInventory(cfg *domain.Config) staticInventory {
	inv := make(staticInventory, len(cfg.Inventory))
	for ep, fields := range cfg.Inventory {
		m := make(map[string]bool, len(fields))
		for _, f := range fields {
			m[f] = true
		}
		inv[ep] = m
	}
	return inv
}
