package domain

import (
	"sync/atomic"

	"github.com/sirupsen/logrus"
)

// Store publishes the active domain configuration. Reload builds a brand-new
// Config and swaps the pointer atomically only on success, so in-flight
// queries keep the snapshot they dereferenced at the start of the request and
// never observe a torn or partially-valid configuration.
type Store struct {
	current atomic.Pointer[Config]
	path    string
	logger  *logrus.Logger
}

// NewStore loads the document at path and returns a store holding it.
func NewStore(path string, logger *logrus.Logger) (*Store, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	s := &Store{path: path, logger: logger}
	s.current.Store(cfg)
	logger.WithFields(logrus.Fields{
		"version":   cfg.Version,
		"endpoints": len(cfg.Endpoints),
	}).Info("Domain configuration loaded")
	return s, nil
}

// Snapshot returns the active configuration. Callers dereference once per
// query and use that snapshot throughout.
func (s *Store) Snapshot() *Config {
	return s.current.Load()
}

// Reload revalidates the backing document and swaps it in. On failure the
// active configuration is left untouched and the error is returned.
func (s *Store) Reload() (*Config, error) {
	cfg, err := Load(s.path)
	if err != nil {
		s.logger.WithError(err).Error("Domain configuration reload rejected")
		return nil, err
	}
	old := s.current.Swap(cfg)
	s.logger.WithFields(logrus.Fields{
		"old_version": old.Version,
		"new_version": cfg.Version,
		"endpoints":   len(cfg.Endpoints),
	}).Info("Domain configuration reloaded")
	return cfg, nil
}
