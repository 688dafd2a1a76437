package driving

import (
	"context"
	"time"

	"github.com/opsquery/sleuth-cli/internal/core/domain"
)

// InvestigateOptions configures one investigation request.
type InvestigateOptions struct {
	// DryRun plans the investigation without executing any sub-query.
	DryRun bool

	// Deadline bounds the whole fan-out. Zero means the service default.
	Deadline time.Duration

	// SourceHints restricts planning to these logical source names.
	SourceHints []string

	// CallerContext is extra context handed to intent analysis
	// (service inventory, environment names).
	CallerContext map[string]string
}

// InvestigationOutcome is everything one investigation produced.
type InvestigationOutcome struct {
	// Plan is the executed (or dry-run) plan.
	Plan domain.InvestigationPlan

	// Bundle is the aggregated evidence. Nil on dry-run.
	Bundle *domain.EvidenceBundle

	// Report is the synthesised narrative. Nil on dry-run or when no
	// synthesizer is configured.
	Report *domain.Report
}

// InvestigationService runs investigations end to end:
// analyse, plan, fan out, aggregate, synthesise.
type InvestigationService interface {
	// Investigate answers a raw natural-language question.
	// Requires an IntentAnalyzer.
	Investigate(ctx context.Context, rawQuery string, opts InvestigateOptions) (*InvestigationOutcome, error)

	// InvestigateIntent answers a pre-structured intent, bypassing
	// the analysis boundary. Used by tests and integrations that build
	// intents themselves.
	InvestigateIntent(ctx context.Context, intent domain.InvestigationIntent, opts InvestigateOptions) (*InvestigationOutcome, error)
}

// SourceCatalog gives external actors a read/probe view of the registry.
type SourceCatalog interface {
	// List returns descriptors for all registered sources,
	// in registration order.
	List(ctx context.Context) []domain.SourceDescriptor

	// Probe sweeps all registered sources and returns the refreshed
	// descriptors. Individual probe failures never abort the sweep.
	Probe(ctx context.Context) []domain.SourceDescriptor
}
