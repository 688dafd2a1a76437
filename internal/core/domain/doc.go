// Package domain defines the core business entities for Sleuth.
//
// This package is part of the hexagonal architecture's innermost layer.
// It has NO external dependencies and defines the fundamental types:
//
//   - SourceDescriptor: A registered data source and its declared capabilities
//   - InvestigationIntent: One structured investigation request
//   - InvestigationPlan / SubQuery: Per-source work derived from an intent
//   - SourceResult / Record: Normalised, attributable evidence
//   - EvidenceBundle: The merged answer handed to synthesis
//
// # Architectural Position
//
// Domain is at the centre of the hexagon. It may only import
// the Go standard library. All other packages depend on domain,
// never the reverse.
//
// # Import Rules
//
//   - Can Import: Standard library only
//   - Cannot Import: Any internal/ package, any external dependency
package domain
