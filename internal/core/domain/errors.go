package domain

import "errors"

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested source does not exist in the registry.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateSource indicates a source name is already registered.
	ErrDuplicateSource = errors.New("duplicate source")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnsupportedKind indicates an unknown source kind.
	ErrUnsupportedKind = errors.New("unsupported source kind")

	// ErrUnsupportedCapability indicates an adapter was asked for a
	// capability it does not declare. Rejected at plan-construction time.
	ErrUnsupportedCapability = errors.New("unsupported capability")

	// ErrConnectionFailed indicates an adapter cannot reach its backend.
	// Surfaces as unreachable health until the next successful probe.
	ErrConnectionFailed = errors.New("connection failed")

	// ErrBackendError indicates the backend was reachable but rejected
	// or failed the query.
	ErrBackendError = errors.New("backend error")

	// ErrAdapterClosed indicates the adapter has been disposed.
	ErrAdapterClosed = errors.New("adapter closed")

	// Boundary errors. These abort the whole request and are surfaced
	// distinctly from "investigation completed but evidence was partial".

	// ErrAnalysisFailed indicates the intent analysis step failed.
	// The investigation aborts before planning.
	ErrAnalysisFailed = errors.New("intent analysis failed")

	// ErrSynthesisFailed indicates the narrative synthesis step failed.
	ErrSynthesisFailed = errors.New("report synthesis failed")

	// ErrLLMUnavailable indicates the configured LLM provider could not
	// be created or reached.
	ErrLLMUnavailable = errors.New("LLM service unavailable")
)
