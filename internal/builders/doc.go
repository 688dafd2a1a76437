// Package builders provides per-kind query builders: the only place in
// the codebase that knows backend query syntax. The planner hands each
// candidate source to the builder registered for its kind and receives
// an opaque payload back.
//
// Builders are registered with the Registry at startup.
package builders
