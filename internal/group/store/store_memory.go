package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"warden/internal/group/models"
	"warden/pkg/domain"
	"warden/pkg/platform/sentinel"
)

// InMemory stores group configurations in process memory.
type InMemory struct {
	mu      sync.RWMutex
	configs map[domain.GroupID]models.Config
}

func NewInMemory() *InMemory {
	return &InMemory{configs: make(map[domain.GroupID]models.Config)}
}

func (s *InMemory) Find(_ context.Context, groupID domain.GroupID) (*models.Config, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.configs[groupID]
	if !ok {
		return nil, fmt.Errorf("group %s: %w", groupID, sentinel.ErrNotFound)
	}
	return &c, nil
}

// Save inserts or replaces the configuration. The first CreatedAt wins.
func (s *InMemory) Save(_ context.Context, cfg *models.Config) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := *cfg
	if existing, ok := s.configs[cfg.GroupID]; ok && !existing.CreatedAt.IsZero() {
		c.CreatedAt = existing.CreatedAt
	}
	s.configs[cfg.GroupID] = c
	return nil
}

// ListAutoGrant returns every group whose marker is granted on verification,
// ordered by group id.
func (s *InMemory) ListAutoGrant(_ context.Context) ([]*models.Config, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Config, 0)
	for _, c := range s.configs {
		if c.GrantsMarker() {
			cfg := c
			out = append(out, &cfg)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].GroupID < out[j].GroupID })
	return out, nil
}
