package builders

import (
	"fmt"

	"github.com/opsquery/sleuth-cli/internal/core/domain"
	"github.com/opsquery/sleuth-cli/internal/core/ports/driven"
)

// Ensure Registry implements the port.
var _ driven.BuilderRegistry = (*Registry)(nil)

// Registry maps source kinds to their query builders.
type Registry struct {
	builders map[domain.SourceKind]driven.QueryBuilder
}

// NewRegistry creates an empty builder registry.
func NewRegistry() *Registry {
	return &Registry{
		builders: make(map[domain.SourceKind]driven.QueryBuilder),
	}
}

// NewDefaultRegistry creates a registry with all built-in builders.
func NewDefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(NewWarehouseBuilder())
	r.Register(NewRelationalBuilder())
	r.Register(NewSearchIndexBuilder())
	r.Register(NewAPMBuilder())
	r.Register(NewOrchestrationBuilder())
	return r
}

// Register adds a builder under its kind, replacing any previous one.
func (r *Registry) Register(b driven.QueryBuilder) {
	r.builders[b.Kind()] = b
}

// ForKind returns the builder registered for the kind.
func (r *Registry) ForKind(kind domain.SourceKind) (driven.QueryBuilder, error) {
	b, ok := r.builders[kind]
	if !ok {
		return nil, fmt.Errorf("%w: no query builder for %q", domain.ErrUnsupportedKind, kind)
	}
	return b, nil
}

// Kinds returns all kinds with a registered builder.
func (r *Registry) Kinds() []domain.SourceKind {
	kinds := make([]domain.SourceKind, 0, len(r.builders))
	for kind := range r.builders {
		kinds = append(kinds, kind)
	}
	return kinds
}
