// Package memory provides in-memory implementations of driven port interfaces.
// These adapters are used for testing and for runs where persistence is
// not wanted; everything is lost when the process exits.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/opsquery/sleuth-cli/internal/core/domain"
	"github.com/opsquery/sleuth-cli/internal/core/ports/driven"
)

// Ensure EvidenceStore implements the interface.
var _ driven.EvidenceStore = (*EvidenceStore)(nil)

// EvidenceStore is an in-memory implementation of driven.EvidenceStore.
type EvidenceStore struct {
	mu      sync.RWMutex
	bundles map[string]domain.EvidenceBundle
	reports map[string]domain.Report
}

// NewEvidenceStore creates a new in-memory evidence store.
func NewEvidenceStore() *EvidenceStore {
	return &EvidenceStore{
		bundles: make(map[string]domain.EvidenceBundle),
		reports: make(map[string]domain.Report),
	}
}

// Save stores a bundle and the report synthesised from it.
func (s *EvidenceStore) Save(_ context.Context, bundle *domain.EvidenceBundle, report *domain.Report) error {
	if bundle == nil || bundle.ID == "" {
		return domain.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.bundles[bundle.ID] = *bundle
	if report != nil {
		s.reports[bundle.ID] = *report
	}
	return nil
}

// Get retrieves a bundle by investigation ID.
func (s *EvidenceStore) Get(_ context.Context, id string) (*domain.EvidenceBundle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	bundle, ok := s.bundles[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &bundle, nil
}

// GetReport retrieves the stored report for an investigation.
func (s *EvidenceStore) GetReport(_ context.Context, id string) (*domain.Report, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	report, ok := s.reports[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &report, nil
}

// List returns the most recent investigations, newest first.
func (s *EvidenceStore) List(_ context.Context, limit int) ([]domain.EvidenceBundle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.EvidenceBundle, 0, len(s.bundles))
	for _, bundle := range s.bundles {
		result = append(result, bundle)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})

	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// Close releases resources.
func (s *EvidenceStore) Close() error {
	return nil
}
