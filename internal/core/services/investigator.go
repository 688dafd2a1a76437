package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/opsquery/sleuth-cli/internal/core/domain"
	"github.com/opsquery/sleuth-cli/internal/core/ports/driven"
	"github.com/opsquery/sleuth-cli/internal/core/ports/driving"
	"github.com/opsquery/sleuth-cli/internal/logger"
)

// Ensure Investigator implements the interface.
var _ driving.InvestigationService = (*Investigator)(nil)

// Investigator runs investigations end to end: analyse the question,
// plan per-source sub-queries, fan them out, aggregate the evidence,
// and hand the bundle to synthesis.
//
// The analyzer, synthesizer and evidence store are optional; each
// degrades independently when nil.
type Investigator struct {
	registry    *Registry
	planner     *Planner
	executor    *Executor
	aggregator  *Aggregator
	analyzer    driven.IntentAnalyzer
	synthesizer driven.ReportSynthesizer
	evidence    driven.EvidenceStore
}

// NewInvestigator creates an investigation service.
// The analyzer, synthesizer and evidence parameters may be nil.
func NewInvestigator(
	registry *Registry,
	planner *Planner,
	executor *Executor,
	aggregator *Aggregator,
	analyzer driven.IntentAnalyzer,
	synthesizer driven.ReportSynthesizer,
	evidence driven.EvidenceStore,
) *Investigator {
	return &Investigator{
		registry:    registry,
		planner:     planner,
		executor:    executor,
		aggregator:  aggregator,
		analyzer:    analyzer,
		synthesizer: synthesizer,
		evidence:    evidence,
	}
}

// Investigate answers a raw natural-language question.
func (s *Investigator) Investigate(
	ctx context.Context, rawQuery string, opts driving.InvestigateOptions,
) (*driving.InvestigationOutcome, error) {
	if s.analyzer == nil {
		return nil, fmt.Errorf("%w: no intent analyzer configured", domain.ErrAnalysisFailed)
	}

	logger.Section("Intent Analysis")
	logger.Debug("Question: %q", rawQuery)

	intent, err := s.analyzer.Analyze(ctx, rawQuery, opts.CallerContext)
	if err != nil {
		if errors.Is(err, domain.ErrAnalysisFailed) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", domain.ErrAnalysisFailed, err)
	}
	logger.Info("Intent: category=%s entities=%v", intent.Category, intent.Entities)

	return s.InvestigateIntent(ctx, *intent, opts)
}

// InvestigateIntent answers a pre-structured intent.
func (s *Investigator) InvestigateIntent(
	ctx context.Context, intent domain.InvestigationIntent, opts driving.InvestigateOptions,
) (*driving.InvestigationOutcome, error) {
	if len(opts.SourceHints) > 0 {
		intent.SourceHints = opts.SourceHints
	}

	plan, err := s.planner.Plan(intent)
	if err != nil {
		return nil, fmt.Errorf("plan: %w", err)
	}

	if opts.DryRun {
		logger.Info("Dry run: returning plan with %d sub-queries, skipping execution", len(plan.Queries))
		return &driving.InvestigationOutcome{Plan: plan}, nil
	}

	executions := s.executor.Run(ctx, plan, opts.Deadline)
	bundle := s.aggregator.Aggregate(uuid.NewString(), intent, plan, executions)

	s.reportOutcome(bundle)

	report, synthErr := s.synthesize(ctx, bundle)

	s.persist(ctx, bundle, report)

	if synthErr != nil {
		return nil, synthErr
	}

	return &driving.InvestigationOutcome{
		Plan:   plan,
		Bundle: bundle,
		Report: report,
	}, nil
}

// synthesize narrates the bundle when a synthesizer is configured.
// An incomplete bundle is still synthesised; synthesis notes gaps
// rather than requiring completeness.
func (s *Investigator) synthesize(ctx context.Context, bundle *domain.EvidenceBundle) (*domain.Report, error) {
	if s.synthesizer == nil {
		return nil, nil
	}

	report, err := s.synthesizer.Synthesize(ctx, bundle)
	if err != nil {
		if errors.Is(err, domain.ErrSynthesisFailed) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", domain.ErrSynthesisFailed, err)
	}
	return report, nil
}

// persist saves the finished investigation when a store is configured.
// Persistence is supplemental: a storage failure degrades history, it
// never fails the investigation that produced the evidence.
func (s *Investigator) persist(ctx context.Context, bundle *domain.EvidenceBundle, report *domain.Report) {
	if s.evidence == nil {
		return
	}
	if err := s.evidence.Save(ctx, bundle, report); err != nil {
		logger.Warn("Failed to persist investigation %s: %v", bundle.ID, err)
	}
}

// reportOutcome emits per-source status and duration plus the bundle
// completeness flag for any observability sink reading the logs.
func (s *Investigator) reportOutcome(bundle *domain.EvidenceBundle) {
	for i := range bundle.Results {
		r := &bundle.Results[i]
		logger.Info("Source %s/%s: status=%s records=%d elapsed=%s",
			r.Source, r.Capability, r.Status, len(r.Records), r.Elapsed)
	}
	logger.Info("Investigation %s complete=%t", bundle.ID, bundle.Complete)
}
