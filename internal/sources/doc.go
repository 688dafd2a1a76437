// Package sources provides implementations of the SourceAdapter
// interface for the supported backend kinds. Each adapter knows how to
// speak one backend protocol (warehouse jobs, SQL sessions, search
// index HTTP API, APM metrics API, orchestration control plane) behind
// the uniform capability surface.
//
// Adapters are registered with the Factory at startup.
package sources
