package inventory

import (
	"io"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"

	"github.com/geolens-ai/query-router/internal/domain"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func seeded() *Inventory {
	return New(map[string][]string{
		"market-share-analysis": {"store_count", "revenue_estimate"},
		"income-analysis":       {"median_income"},
	}, testLogger())
}

func TestHasField(t *testing.T) {
	inv := seeded()

	assert.True(t, inv.HasField("market-share-analysis", "store_count"))
	assert.False(t, inv.HasField("market-share-analysis", "median_income"))
	assert.False(t, inv.HasField("unknown-endpoint", "store_count"))
}

func TestSetField(t *testing.T) {
	inv := seeded()

	inv.SetField("market-share-analysis", "store_count", false)
	assert.False(t, inv.HasField("market-share-analysis", "store_count"))

	inv.SetField("market-share-analysis", "store_count", true)
	assert.True(t, inv.HasField("market-share-analysis", "store_count"))

	// Setting on an unseeded endpoint creates its entry.
	inv.SetField("footfall-trends", "visit_count", true)
	assert.True(t, inv.HasField("footfall-trends", "visit_count"))
}

func TestFieldsSorted(t *testing.T) {
	inv := seeded()

	assert.Equal(t, []string{"revenue_estimate", "store_count"}, inv.Fields("market-share-analysis"))
	assert.Empty(t, inv.Fields("unknown-endpoint"))

	inv.SetField("market-share-analysis", "revenue_estimate", false)
	assert.Equal(t, []string{"store_count"}, inv.Fields("market-share-analysis"))
}

func TestMissingFields(t *testing.T) {
	inv := seeded()
	ep := &domain.EndpointDescriptor{
		ID:             "market-share-analysis",
		RequiredFields: []string{"store_count", "revenue_estimate", "visit_count"},
	}

	assert.Equal(t, []string{"visit_count"}, inv.MissingFields(ep))

	inv.SetField("market-share-analysis", "visit_count", true)
	assert.Empty(t, inv.MissingFields(ep))
}
