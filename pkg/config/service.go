package config

import (
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// Service holds the live routing table, guarded by a reader-writer
// lock since writes only happen from the provider pipeline and reads
// are constant (spec.md §4.H, §5).
type Service struct {
	mu             sync.RWMutex
	configurations map[string]*ServerConfig
}

// NewService returns an empty configuration service.
func NewService() *Service {
	return &Service{configurations: make(map[string]*ServerConfig)}
}

// FindServerByDomain returns the first config whose domains wildcard-
// match the lowercased d, scanning config ids in sorted order so
// repeated lookups are deterministic (spec.md §4.H, §8 property 4).
func (s *Service) FindServerByDomain(d string) (*ServerConfig, bool) {
	lower := strings.ToLower(d)

	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.sortedIDsLocked()
	for _, id := range ids {
		cfg := s.configurations[id]
		for _, pattern := range cfg.Domains {
			if matchPattern(pattern, lower) {
				return cfg, true
			}
		}
	}
	return nil, false
}

// FindServerByIP returns the config whose addresses list contains an
// exact string match for ip (spec.md §4.H).
func (s *Service) FindServerByIP(ip string) (*ServerConfig, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, id := range s.sortedIDsLocked() {
		cfg := s.configurations[id]
		for _, addr := range cfg.Addresses {
			if addr == ip {
				return cfg, true
			}
		}
	}
	return nil, false
}

// Get returns the config for an exact config_id.
func (s *Service) Get(configID string) (*ServerConfig, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cfg, ok := s.configurations[configID]
	return cfg, ok
}

// All returns a snapshot of every active config.
func (s *Service) All() []*ServerConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*ServerConfig, 0, len(s.configurations))
	for _, id := range s.sortedIDsLocked() {
		out = append(out, s.configurations[id])
	}
	return out
}

// UpdateConfigurations inserts or replaces each entry by config_id,
// logging one added/updated line per entry (spec.md §4.H).
func (s *Service) UpdateConfigurations(list []*ServerConfig) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, cfg := range list {
		if !cfg.Valid() {
			zap.S().Warnw("skipping invalid server config", "config_id", cfg.ConfigID)
			continue
		}
		_, existed := s.configurations[cfg.ConfigID]
		s.configurations[cfg.ConfigID] = cfg
		if existed {
			zap.S().Infow("updated server config", "config_id", cfg.ConfigID)
		} else {
			zap.S().Infow("added server config", "config_id", cfg.ConfigID)
		}
	}
}

// RemoveConfiguration deletes a config_id, logging once if it existed.
func (s *Service) RemoveConfiguration(configID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.configurations[configID]; ok {
		delete(s.configurations, configID)
		zap.S().Infow("removed server config", "config_id", configID)
	}
}

func (s *Service) sortedIDsLocked() []string {
	ids := make([]string, 0, len(s.configurations))
	for id := range s.configurations {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
