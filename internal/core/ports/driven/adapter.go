package driven

import (
	"context"

	"github.com/opsquery/sleuth-cli/internal/core/domain"
)

// SourceAdapter runs queries against one concrete backend.
// Each backend kind (warehouse, relational, search index, APM,
// orchestration API) implements this interface.
//
// An adapter owns exactly one live session to its backend. Adapters are
// created and disposed only by the registry; every other component
// borrows a reference for the duration of one operation and must not
// retain it afterwards. Concurrent Execute calls against the same
// adapter are serialised by the adapter itself, since most backend
// client sessions are not safe for concurrent use.
type SourceAdapter interface {
	// Name returns the logical source name this adapter serves.
	Name() string

	// Kind returns the backend class.
	Kind() domain.SourceKind

	// Capabilities returns the static declared capability set.
	// Used by the planner for routing, never by the executor.
	Capabilities() domain.CapabilitySet

	// Connect establishes the backend session. Idempotent: calling
	// while already connected is a no-op. Returns an error wrapping
	// domain.ErrConnectionFailed on network or auth failure.
	Connect(ctx context.Context) error

	// Probe is a cheap liveness check. It never returns an error:
	// an unreachable backend reports domain.HealthUnreachable.
	Probe(ctx context.Context) domain.HealthStatus

	// Execute runs one sub-query. The context carries the per-query
	// deadline; the adapter must honour it by cancelling the in-flight
	// backend call. If the backend protocol cannot be cancelled, the
	// adapter must at minimum stop blocking the caller and taint its
	// session for the next health probe.
	//
	// Failures wrap domain.ErrBackendError or
	// domain.ErrUnsupportedCapability; deadline overruns surface as
	// context.DeadlineExceeded.
	Execute(ctx context.Context, q domain.SubQuery) (*QueryResult, error)

	// LeaksOnTimeout reports whether a timed-out Execute may leave
	// backend-side work running (e.g., a warehouse job). The executor
	// uses this to decide whether best-effort cancellation is worth
	// attempting.
	LeaksOnTimeout() bool

	// Close releases the backend session.
	Close() error
}

// QueryResult is the normalised envelope every adapter returns from
// Execute, whatever shape the backend responds with.
type QueryResult struct {
	// Rows holds the result records, each a mapping of field name to
	// typed value. May be empty: a reachable backend that found
	// nothing is "no evidence", not a failure.
	Rows []map[string]any

	// Truncated indicates the backend had more rows than the adapter
	// kept. Trimming is governed by the sub-query's priority budget.
	Truncated bool
}

// AdapterFactory creates source adapters from descriptors.
// It maintains a registry of kind-specific constructors.
type AdapterFactory interface {
	// Create returns an unconnected adapter for the descriptor; the
	// caller connects and registers it. Returns domain.ErrUnsupportedKind
	// if no constructor is registered for the descriptor's kind.
	Create(ctx context.Context, desc domain.SourceDescriptor) (SourceAdapter, error)

	// Register adds a constructor for the given kind.
	Register(kind domain.SourceKind, build AdapterBuilder)

	// SupportedKinds returns all registered kinds.
	SupportedKinds() []domain.SourceKind
}

// AdapterBuilder constructs an adapter from a descriptor.
type AdapterBuilder func(desc domain.SourceDescriptor) (SourceAdapter, error)
