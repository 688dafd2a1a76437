// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Required Interfaces
//
// These must be provided for the application to function:
//
//   - SourceAdapter: Runs queries against one concrete backend
//   - AdapterFactory: Creates adapters from source descriptors
//   - QueryBuilder / BuilderRegistry: Backend-specific query synthesis
//   - SourceConfigStore: Supplies source descriptors at startup
//   - ConfigStore: Application configuration
//
// # Optional Interfaces
//
// These can be nil - the application degrades gracefully:
//
//   - IntentAnalyzer: LLM intent analysis. Without it, investigations
//     require a pre-structured intent.
//   - ReportSynthesizer: LLM narrative synthesis. Without it, the raw
//     evidence bundle is the final output.
//   - EvidenceStore: Investigation persistence. Without it, bundles are
//     not kept after the request completes.
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter or source package
package driven
