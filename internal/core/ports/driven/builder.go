package driven

import (
	"github.com/opsquery/sleuth-cli/internal/core/domain"
)

// QueryBuilder synthesises a backend-specific query payload for one
// source kind. Builders are the only place that knows backend query
// syntax; the planner itself stays backend-agnostic.
type QueryBuilder interface {
	// Kind returns the source kind this builder serves.
	Kind() domain.SourceKind

	// Build produces the query payload for one candidate source and
	// capability. Returns domain.ErrUnsupportedCapability if the kind
	// cannot express that capability.
	Build(intent domain.InvestigationIntent, desc domain.SourceDescriptor, cap domain.Capability) (string, error)
}

// BuilderRegistry selects the query builder for a source kind.
type BuilderRegistry interface {
	// ForKind returns the builder registered for the kind.
	// Returns domain.ErrUnsupportedKind if none is registered.
	ForKind(kind domain.SourceKind) (QueryBuilder, error)

	// Kinds returns all kinds with a registered builder.
	Kinds() []domain.SourceKind
}
