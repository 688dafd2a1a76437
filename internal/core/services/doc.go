// Package services implements the driving port interfaces.
// Services contain the core business logic - registry, planner,
// fan-out executor, aggregator - and orchestrate calls to driven
// ports (adapters).
//
// Services are pure Go with no external dependencies beyond the
// domain and ports packages.
package services
