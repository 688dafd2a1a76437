package driven

import (
	"context"

	"github.com/opsquery/sleuth-cli/internal/core/domain"
)

// IntentAnalyzer turns a raw natural-language question into a structured
// investigation intent. This is an external LLM-backed capability: text
// in, structured text out. The core never depends on a specific provider
// or prompt format.
//
// Implementations may include:
//   - Anthropic (Claude)
//   - OpenAI (GPT-4)
//   - Any local inference server with a compatible chat API
type IntentAnalyzer interface {
	// Analyze produces an intent from the raw query plus caller context
	// (service inventory, environment names). A failure here aborts the
	// investigation before planning; wrap domain.ErrAnalysisFailed.
	Analyze(ctx context.Context, rawQuery string, callerCtx map[string]string) (*domain.InvestigationIntent, error)

	// ModelName returns the name of the model being used.
	ModelName() string

	// Ping validates the service is reachable with a lightweight request.
	Ping(ctx context.Context) error

	// Close releases resources.
	Close() error
}

// ReportSynthesizer turns an evidence bundle into a human-readable
// report. It must accept incomplete bundles: synthesis notes gaps, it
// never requires completeness.
type ReportSynthesizer interface {
	// Synthesize narrates the bundle. Failures wrap
	// domain.ErrSynthesisFailed and are surfaced distinctly from
	// "investigation completed but evidence was partial".
	Synthesize(ctx context.Context, bundle *domain.EvidenceBundle) (*domain.Report, error)

	// ModelName returns the name of the model being used.
	ModelName() string

	// Close releases resources.
	Close() error
}
