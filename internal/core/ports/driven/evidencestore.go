package driven

import (
	"context"

	"github.com/opsquery/sleuth-cli/internal/core/domain"
)

// EvidenceStore persists finished investigations.
// Optional: when nil, bundles are not kept after the request completes.
type EvidenceStore interface {
	// Save stores a bundle and the report synthesised from it.
	// The report may be nil when synthesis was skipped or failed.
	Save(ctx context.Context, bundle *domain.EvidenceBundle, report *domain.Report) error

	// Get retrieves a bundle by investigation ID.
	// Returns domain.ErrNotFound if absent.
	Get(ctx context.Context, id string) (*domain.EvidenceBundle, error)

	// List returns the most recent investigations, newest first.
	List(ctx context.Context, limit int) ([]domain.EvidenceBundle, error)

	// Close releases storage resources.
	Close() error
}
