package domain

import (
	"time"
)

// IssueCategory classifies what kind of problem an investigation is about.
// The planner maps each category to the capabilities likely to hold evidence.
type IssueCategory string

const (
	// IssuePerformance covers latency and throughput degradation.
	IssuePerformance IssueCategory = "performance-degradation"
	// IssueErrors covers elevated error rates and failures.
	IssueErrors IssueCategory = "error-spike"
	// IssueAvailability covers outages and unreachable services.
	IssueAvailability IssueCategory = "availability"
	// IssueData covers data quality and business-metric questions.
	IssueData IssueCategory = "data-question"
	// IssueGeneral is the fallback for uncategorised questions.
	IssueGeneral IssueCategory = "general"
)

// Valid reports whether the category is a known value.
func (c IssueCategory) Valid() bool {
	switch c {
	case IssuePerformance, IssueErrors, IssueAvailability, IssueData, IssueGeneral:
		return true
	}
	return false
}

// TimeRange is the window an investigation looks at.
// A zero End means "now".
type TimeRange struct {
	Start time.Time
	End   time.Time
}

// Open reports whether the range's end is open ("now").
func (r TimeRange) Open() bool {
	return r.End.IsZero()
}

// EffectiveEnd resolves the end of the range, substituting now for an open end.
func (r TimeRange) EffectiveEnd(now time.Time) time.Time {
	if r.Open() {
		return now
	}
	return r.End
}

// InvestigationIntent is the structured form of one investigation request.
// Produced by the external analysis step, consumed only by the planner.
// Immutable once constructed.
type InvestigationIntent struct {
	// Category classifies the issue being investigated.
	Category IssueCategory

	// Description is the free-text problem statement.
	Description string

	// Window is the time range to investigate.
	Window TimeRange

	// Entities are named things the question is about
	// (service names, request IDs, pod names).
	Entities []string

	// SourceHints restricts planning to these logical source names.
	// Empty means all capability-matching sources are candidates.
	SourceHints []string

	// TimeoutHint overrides the per-capability default sub-query timeout.
	// Zero means use defaults.
	TimeoutHint time.Duration
}

// SubQuery is one backend-bound unit of work in a plan.
// Created by the planner, consumed exactly once by the executor.
type SubQuery struct {
	// Source is the logical name of the target source.
	Source string

	// Kind is the target source's backend class.
	Kind SourceKind

	// Capability is the capability this sub-query exercises.
	Capability Capability

	// Payload is the backend-specific query. Interpretation is owned
	// by the adapter; the core treats it as opaque.
	Payload string

	// Timeout bounds the single backend attempt.
	Timeout time.Duration

	// Priority is used only for result-budget trimming, never for
	// ordering or scheduling.
	Priority int
}

// InvestigationPlan is an ordered set of sub-queries for one intent.
// Ordering is advisory (execution is concurrent) but preserved so result
// presentation is deterministic. Immutable once produced. An empty plan
// is valid: it surfaces as a bundle with no evidence, which is itself
// diagnostic information.
type InvestigationPlan struct {
	Queries []SubQuery
}

// Empty reports whether the plan contains no sub-queries.
func (p InvestigationPlan) Empty() bool {
	return len(p.Queries) == 0
}

// ResultStatus is the outcome of executing one sub-query.
type ResultStatus string

const (
	// StatusOK means the query ran and returned (possibly zero) records.
	StatusOK ResultStatus = "ok"
	// StatusTimeout means the query was attempted but exceeded its time budget.
	StatusTimeout ResultStatus = "timeout"
	// StatusError means the backend was reached but rejected or failed the query.
	StatusError ResultStatus = "error"
	// StatusSkipped means the query was never attempted.
	StatusSkipped ResultStatus = "skipped"
)

// Record is one normalised evidence record: field name to typed value.
// Every record carries provenance so a finding is always attributable
// to the source that produced it.
type Record struct {
	// Fields holds the record's values keyed by field name.
	Fields map[string]any

	// Source is the logical name of the source that produced the record.
	Source string

	// Capability is the capability the producing sub-query exercised.
	Capability Capability
}

// SourceResult is the outcome of exactly one sub-query.
// Created by the executor, never mutated after creation. Failures are
// data, not the absence of data: a failed sub-query still yields a result.
type SourceResult struct {
	// Source is the logical name of the queried source.
	Source string

	// Capability is the capability the sub-query exercised.
	Capability Capability

	// Status is the execution outcome.
	Status ResultStatus

	// Records holds the normalised payload. Nil unless Status is ok.
	// An ok result with zero records means "no evidence found", which
	// is distinct from "evidence unavailable" (timeout or error).
	Records []Record

	// Err holds the failure detail. Set only when Status is error.
	Err string

	// Truncated indicates records were trimmed, either by the adapter
	// or by the aggregator's result budget.
	Truncated bool

	// Elapsed is how long the backend attempt took.
	Elapsed time.Duration
}

// Evidence reports whether the result carries usable records.
func (r *SourceResult) Evidence() bool {
	return r.Status == StatusOK && len(r.Records) > 0
}

// EvidenceBundle is the merged, attributable answer of one investigation,
// handed to the external synthesis boundary. Immutable after aggregation.
type EvidenceBundle struct {
	// ID uniquely identifies the investigation.
	ID string

	// Intent is the intent this bundle answers.
	Intent InvestigationIntent

	// Plan is the plan that was executed.
	Plan InvestigationPlan

	// Results holds exactly one SourceResult per planned sub-query,
	// in plan order, including failed and timed-out ones.
	Results []SourceResult

	// Complete is true only if every sub-query reached status ok.
	Complete bool

	// CreatedAt is when aggregation finished.
	CreatedAt time.Time
}

// Report is the human-readable narrative produced by the external
// synthesis step from an evidence bundle.
type Report struct {
	// BundleID links the report to the investigation it narrates.
	BundleID string

	// Summary is the narrative answer.
	Summary string

	// Gaps lists sources whose evidence was unavailable, so partial
	// answers are never presented as complete ones.
	Gaps []string
}
