package sources

import (
	"context"
	"fmt"

	"github.com/opsquery/sleuth-cli/internal/core/domain"
	"github.com/opsquery/sleuth-cli/internal/core/ports/driven"
	"github.com/opsquery/sleuth-cli/internal/sources/apm"
	"github.com/opsquery/sleuth-cli/internal/sources/orchestration"
	"github.com/opsquery/sleuth-cli/internal/sources/relational"
	"github.com/opsquery/sleuth-cli/internal/sources/searchindex"
	"github.com/opsquery/sleuth-cli/internal/sources/warehouse"
)

// Ensure Factory implements the port.
var _ driven.AdapterFactory = (*Factory)(nil)

// Factory creates source adapters from descriptors.
type Factory struct {
	builders map[domain.SourceKind]driven.AdapterBuilder
}

// NewFactory creates an empty adapter factory.
func NewFactory() *Factory {
	return &Factory{
		builders: make(map[domain.SourceKind]driven.AdapterBuilder),
	}
}

// NewDefaultFactory creates a factory with all built-in adapter kinds.
func NewDefaultFactory() *Factory {
	f := NewFactory()
	f.Register(domain.KindWarehouse, func(desc domain.SourceDescriptor) (driven.SourceAdapter, error) {
		return warehouse.New(desc)
	})
	f.Register(domain.KindRelational, func(desc domain.SourceDescriptor) (driven.SourceAdapter, error) {
		return relational.New(desc)
	})
	f.Register(domain.KindSearchIndex, func(desc domain.SourceDescriptor) (driven.SourceAdapter, error) {
		return searchindex.New(desc)
	})
	f.Register(domain.KindAPM, func(desc domain.SourceDescriptor) (driven.SourceAdapter, error) {
		return apm.New(desc)
	})
	f.Register(domain.KindOrchestration, func(desc domain.SourceDescriptor) (driven.SourceAdapter, error) {
		return orchestration.New(desc)
	})
	return f
}

// Register adds a constructor for the given kind.
func (f *Factory) Register(kind domain.SourceKind, build driven.AdapterBuilder) {
	f.builders[kind] = build
}

// Create returns an unconnected adapter for the descriptor.
// The caller connects it and registers it; a source whose connection
// fails at startup is still registered, with unreachable health.
func (f *Factory) Create(_ context.Context, desc domain.SourceDescriptor) (driven.SourceAdapter, error) {
	if err := desc.Validate(); err != nil {
		return nil, err
	}
	build, ok := f.builders[desc.Kind]
	if !ok {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnsupportedKind, desc.Kind)
	}
	return build(desc)
}

// SupportedKinds returns all registered kinds.
func (f *Factory) SupportedKinds() []domain.SourceKind {
	kinds := make([]domain.SourceKind, 0, len(f.builders))
	for kind := range f.builders {
		kinds = append(kinds, kind)
	}
	return kinds
}
