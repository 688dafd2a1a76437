package domain

import (
	"fmt"
	"time"
)

// SourceKind identifies the class of backend behind a source.
type SourceKind string

const (
	// KindWarehouse is an analytics warehouse (e.g., BigQuery).
	KindWarehouse SourceKind = "warehouse"
	// KindRelational is a per-team relational database.
	KindRelational SourceKind = "relational-database"
	// KindSearchIndex is a log/search index (e.g., Elasticsearch).
	KindSearchIndex SourceKind = "search-index"
	// KindAPM is an application-performance-metrics service.
	KindAPM SourceKind = "apm"
	// KindOrchestration is a container-orchestration control plane.
	KindOrchestration SourceKind = "orchestration-api"
)

// Valid reports whether the kind is one of the supported backend classes.
func (k SourceKind) Valid() bool {
	switch k {
	case KindWarehouse, KindRelational, KindSearchIndex, KindAPM, KindOrchestration:
		return true
	}
	return false
}

// Capability describes a query style a source can answer.
type Capability string

const (
	// CapStructuredQuery is SQL-style structured querying.
	CapStructuredQuery Capability = "structured-query"
	// CapFullTextSearch is free-text search over indexed content.
	CapFullTextSearch Capability = "full-text-search"
	// CapTimeSeries is metric/time-series retrieval.
	CapTimeSeries Capability = "time-series"
	// CapLogTail is recent-log retrieval.
	CapLogTail Capability = "log-tail"
	// CapKeyLookup is direct lookup of a named object.
	CapKeyLookup Capability = "key-lookup"
)

// CapabilitySet is the set of capabilities a source declares.
type CapabilitySet []Capability

// Has reports whether the set declares the given capability.
func (s CapabilitySet) Has(c Capability) bool {
	for _, v := range s {
		if v == c {
			return true
		}
	}
	return false
}

// HealthStatus is the last-known health of a source's backend.
type HealthStatus string

const (
	// HealthUnknown means the source has never been probed.
	HealthUnknown HealthStatus = "unknown"
	// HealthHealthy means the last probe succeeded.
	HealthHealthy HealthStatus = "healthy"
	// HealthDegraded means the backend responds but with reduced service.
	HealthDegraded HealthStatus = "degraded"
	// HealthUnreachable means the last probe could not reach the backend.
	HealthUnreachable HealthStatus = "unreachable"
)

// Routable reports whether the planner may route queries to a source
// in this state. Unreachable sources are excluded from capability
// listings; unknown sources have simply not been probed yet.
func (h HealthStatus) Routable() bool {
	return h == HealthHealthy || h == HealthDegraded || h == HealthUnknown
}

// SourceDescriptor describes a registered data source.
// Created at registration from external configuration; the health fields
// are the only part mutated afterwards, and only by probes. A failing
// source is never silently dropped: failure shows up in Health, removal
// happens only by explicit deregistration.
type SourceDescriptor struct {
	// Name is the unique logical name of the source.
	Name string

	// Kind identifies the backend class.
	Kind SourceKind

	// Config contains backend-specific connection settings.
	// Opaque to the core; interpreted only by the adapter.
	Config map[string]string

	// Capabilities is the static declared capability set.
	Capabilities CapabilitySet

	// Health is the last-known health status.
	Health HealthStatus

	// LastProbed is when Health was last updated. Zero if never probed.
	LastProbed time.Time
}

// Validate checks the descriptor is well-formed for registration.
func (d *SourceDescriptor) Validate() error {
	if d.Name == "" {
		return fmt.Errorf("%w: source name is empty", ErrInvalidInput)
	}
	if !d.Kind.Valid() {
		return fmt.Errorf("%w: %q", ErrUnsupportedKind, d.Kind)
	}
	if len(d.Capabilities) == 0 {
		return fmt.Errorf("%w: source %q declares no capabilities", ErrInvalidInput, d.Name)
	}
	return nil
}
