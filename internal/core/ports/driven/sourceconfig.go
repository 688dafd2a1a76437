package driven

import (
	"context"

	"github.com/opsquery/sleuth-cli/internal/core/domain"
)

// SourceConfigStore supplies the configured set of source descriptors.
// This is the startup boundary: the core only requires a mapping from
// logical source name to (kind, config); how credentials are provisioned
// is not its concern.
type SourceConfigStore interface {
	// LoadSources reads all configured source descriptors.
	// Descriptors come back with health unknown.
	LoadSources() ([]domain.SourceDescriptor, error)

	// Watch reports when the source configuration changes on disk.
	// The channel closes when the context is cancelled. Long-running
	// processes use this to re-register sources without restarting.
	Watch(ctx context.Context) (<-chan struct{}, error)

	// Path returns the source configuration file path.
	Path() string
}
