package services

import (
	"fmt"
	"time"

	"github.com/opsquery/sleuth-cli/internal/core/domain"
	"github.com/opsquery/sleuth-cli/internal/core/ports/driven"
	"github.com/opsquery/sleuth-cli/internal/logger"
)

// categoryCapabilities maps each issue category to the capabilities
// likely to hold evidence for it, in priority order. The table is fixed:
// planning stays deterministic for a given intent and registry state.
var categoryCapabilities = map[domain.IssueCategory][]domain.Capability{
	domain.IssuePerformance: {
		domain.CapTimeSeries,
		domain.CapLogTail,
		domain.CapStructuredQuery,
	},
	domain.IssueErrors: {
		domain.CapLogTail,
		domain.CapFullTextSearch,
		domain.CapTimeSeries,
	},
	domain.IssueAvailability: {
		domain.CapKeyLookup,
		domain.CapTimeSeries,
		domain.CapLogTail,
	},
	domain.IssueData: {
		domain.CapStructuredQuery,
		domain.CapKeyLookup,
	},
	domain.IssueGeneral: {
		domain.CapFullTextSearch,
		domain.CapLogTail,
		domain.CapStructuredQuery,
	},
}

// defaultTimeouts holds the per-capability sub-query timeout defaults.
// Overridable per intent via TimeoutHint.
var defaultTimeouts = map[domain.Capability]time.Duration{
	domain.CapStructuredQuery: 30 * time.Second,
	domain.CapFullTextSearch:  10 * time.Second,
	domain.CapTimeSeries:      10 * time.Second,
	domain.CapLogTail:         10 * time.Second,
	domain.CapKeyLookup:       5 * time.Second,
}

// Planner maps an investigation intent to a concrete per-source plan.
// It consults the registry for capability-matching sources and delegates
// payload construction to per-kind query builders; the planner itself
// knows no backend syntax. Pure over its inputs: no locking needed.
type Planner struct {
	registry *Registry
	builders driven.BuilderRegistry
}

// NewPlanner creates a planner over the given registry and builders.
func NewPlanner(registry *Registry, builders driven.BuilderRegistry) *Planner {
	return &Planner{
		registry: registry,
		builders: builders,
	}
}

// Plan derives the ordered sub-query set for an intent.
//
// For each capability implied by the intent's category, candidate
// sources come from the registry in registration order, intersected
// with explicit source hints when present. A (source, capability) pair
// is planned at most once, keeping the first occurrence. Finding no
// candidate source for a capability is not an error: the capability
// simply contributes no sub-queries, which surfaces downstream as a
// bundle with no evidence for that angle.
func (p *Planner) Plan(intent domain.InvestigationIntent) (domain.InvestigationPlan, error) {
	caps := capabilitiesFor(intent.Category)
	logger.Debug("Planning %s investigation: capabilities %v", intent.Category, caps)

	hinted := make(map[string]bool, len(intent.SourceHints))
	for _, h := range intent.SourceHints {
		hinted[h] = true
	}

	type pair struct {
		source string
		cap    domain.Capability
	}
	seen := make(map[pair]bool)

	var queries []domain.SubQuery
	for prio, cap := range caps {
		candidates := p.registry.ListByCapability(cap)
		if len(candidates) == 0 {
			logger.Debug("No routable source declares %s", cap)
			continue
		}

		for _, desc := range candidates {
			if len(hinted) > 0 && !hinted[desc.Name] {
				continue
			}
			key := pair{desc.Name, cap}
			if seen[key] {
				continue
			}
			seen[key] = true

			q, err := p.buildSubQuery(intent, desc, cap, prio)
			if err != nil {
				return domain.InvestigationPlan{}, err
			}
			queries = append(queries, *q)
		}
	}

	logger.Info("Planned %d sub-queries for %s investigation", len(queries), intent.Category)
	return domain.InvestigationPlan{Queries: queries}, nil
}

// buildSubQuery synthesises one sub-query via the kind's query builder.
func (p *Planner) buildSubQuery(
	intent domain.InvestigationIntent,
	desc domain.SourceDescriptor,
	cap domain.Capability,
	priority int,
) (*domain.SubQuery, error) {
	builder, err := p.builders.ForKind(desc.Kind)
	if err != nil {
		return nil, fmt.Errorf("source %q: %w", desc.Name, err)
	}

	payload, err := builder.Build(intent, desc, cap)
	if err != nil {
		// Misdeclared capabilities are configuration errors, rejected
		// at plan-construction time rather than at execution.
		return nil, fmt.Errorf("source %q: %w", desc.Name, err)
	}

	timeout := defaultTimeouts[cap]
	if intent.TimeoutHint > 0 {
		timeout = intent.TimeoutHint
	}

	return &domain.SubQuery{
		Source:     desc.Name,
		Kind:       desc.Kind,
		Capability: cap,
		Payload:    payload,
		Timeout:    timeout,
		Priority:   priority,
	}, nil
}

// capabilitiesFor resolves the capability list for a category,
// falling back to the general table for unknown categories.
func capabilitiesFor(category domain.IssueCategory) []domain.Capability {
	if caps, ok := categoryCapabilities[category]; ok {
		return caps
	}
	return categoryCapabilities[domain.IssueGeneral]
}
