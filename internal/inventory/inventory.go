package inventory

import (
	"sort"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/geolens-ai/query-router/internal/domain"
)

// Inventory tracks which data fields are live for each analysis endpoint.
// The routing engine reads it through HasField; only the data layer writes,
// as fields fill or drain upstream.
type Inventory struct {
	mu     sync.RWMutex
	fields map[string]map[string]bool
	logger *logrus.Logger
}

// New builds an inventory seeded from the domain document's inventory
// section: every listed field starts present.
func New(seed map[string][]string, logger *logrus.Logger) *Inventory {
	inv := &Inventory{
		fields: make(map[string]map[string]bool, len(seed)),
		logger: logger,
	}
	for endpointID, fields := range seed {
		m := make(map[string]bool, len(fields))
		for _, f := range fields {
			m[f] = true
		}
		inv.fields[endpointID] = m
	}
	return inv
}

// HasField reports whether a field is present and non-empty for an endpoint.
func (inv *Inventory) HasField(endpointID, field string) bool {
	inv.mu.RLock()
	defer inv.mu.RUnlock()
	return inv.fields[endpointID][field]
}

// SetField marks a field present or absent for an endpoint.
func (inv *Inventory) SetField(endpointID, field string, present bool) {
	inv.mu.Lock()
	if inv.fields[endpointID] == nil {
		inv.fields[endpointID] = make(map[string]bool)
	}
	inv.fields[endpointID][field] = present
	inv.mu.Unlock()

	inv.logger.WithFields(logrus.Fields{
		"endpoint": endpointID,
		"field":    field,
		"present":  present,
	}).Debug("Field inventory updated")
}

// Fields returns the present fields for an endpoint, sorted.
func (inv *Inventory) Fields(endpointID string) []string {
	inv.mu.RLock()
	defer inv.mu.RUnlock()
	var out []string
	for f, present := range inv.fields[endpointID] {
		if present {
			out = append(out, f)
		}
	}
	sort.Strings(out)
	return out
}

// MissingFields lists an endpoint's required fields that are not currently
// present. A non-empty result means the endpoint is temporarily unavailable.
func (inv *Inventory) MissingFields(ep *domain.EndpointDescriptor) []string {
	inv.mu.RLock()
	defer inv.mu.RUnlock()
	var missing []string
	for _, f := range ep.RequiredFields {
		if !inv.fields[ep.ID][f] {
			missing = append(missing, f)
		}
	}
	return missing
}
