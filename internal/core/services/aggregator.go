package services

import (
	"sort"
	"time"

	"github.com/opsquery/sleuth-cli/internal/core/domain"
	"github.com/opsquery/sleuth-cli/internal/logger"
)

// DefaultRecordBudget caps how many records a bundle carries to the
// synthesis boundary. Trimming starts with the lowest-priority results.
const DefaultRecordBudget = 500

// Aggregator normalises raw executions into the evidence bundle handed
// to synthesis. Pure over its inputs: no locking needed.
type Aggregator struct {
	// RecordBudget caps total records per bundle. Zero means the default.
	RecordBudget int
}

// NewAggregator creates an aggregator with the default record budget.
func NewAggregator() *Aggregator {
	return &Aggregator{RecordBudget: DefaultRecordBudget}
}

// Aggregate packages executions into an evidence bundle.
//
// Every execution becomes exactly one SourceResult in plan order; failed
// and timed-out ones are retained as produced, so synthesis (or a human)
// can see what could not be answered, not just what could. Each record
// is tagged with the source name and capability that produced it. The
// bundle is complete only if every sub-query reached status ok.
func (a *Aggregator) Aggregate(
	id string,
	intent domain.InvestigationIntent,
	plan domain.InvestigationPlan,
	executions []Execution,
) *domain.EvidenceBundle {
	results := make([]domain.SourceResult, 0, len(executions))
	complete := len(executions) == len(plan.Queries)

	for i := range executions {
		exec := &executions[i]
		res := domain.SourceResult{
			Source:     exec.Query.Source,
			Capability: exec.Query.Capability,
			Status:     exec.Status,
			Err:        exec.Err,
			Elapsed:    exec.Elapsed,
		}
		if exec.Status != domain.StatusOK {
			complete = false
		}
		if exec.Raw != nil {
			res.Records = normaliseRows(exec.Raw.Rows, exec.Query)
			res.Truncated = exec.Raw.Truncated
		}
		results = append(results, res)
	}

	a.applyRecordBudget(results, plan)

	bundle := &domain.EvidenceBundle{
		ID:        id,
		Intent:    intent,
		Plan:      plan,
		Results:   results,
		Complete:  complete,
		CreatedAt: time.Now(),
	}

	logger.Info("Aggregated bundle %s: %d results, complete=%t", id, len(results), complete)
	return bundle
}

// normaliseRows converts an adapter's rows into provenance-tagged records.
func normaliseRows(rows []map[string]any, q domain.SubQuery) []domain.Record {
	if rows == nil {
		return nil
	}
	records := make([]domain.Record, len(rows))
	for i, row := range rows {
		records[i] = domain.Record{
			Fields:     row,
			Source:     q.Source,
			Capability: q.Capability,
		}
	}
	return records
}

// applyRecordBudget trims records when the bundle exceeds the budget.
// Priority governs trimming only; it never reorders results. Lower
// priority values are kept longest.
func (a *Aggregator) applyRecordBudget(results []domain.SourceResult, plan domain.InvestigationPlan) {
	budget := a.RecordBudget
	if budget <= 0 {
		budget = DefaultRecordBudget
	}

	total := 0
	for i := range results {
		total += len(results[i].Records)
	}
	if total <= budget {
		return
	}

	// Trim lowest-priority results first (highest priority number),
	// later plan positions first within the same priority.
	order := make([]int, len(results))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(x, y int) bool {
		px, py := priorityOf(plan, order[x]), priorityOf(plan, order[y])
		if px != py {
			return px > py
		}
		return order[x] > order[y]
	})

	for _, idx := range order {
		if total <= budget {
			break
		}
		res := &results[idx]
		excess := total - budget
		if excess >= len(res.Records) {
			total -= len(res.Records)
			res.Records = res.Records[:0]
		} else {
			res.Records = res.Records[:len(res.Records)-excess]
			total = budget
		}
		res.Truncated = true
		logger.Debug("Record budget trimmed %s/%s to %d records", res.Source, res.Capability, len(res.Records))
	}
}

// priorityOf looks up the plan priority for a result index.
func priorityOf(plan domain.InvestigationPlan, idx int) int {
	if idx < len(plan.Queries) {
		return plan.Queries[idx].Priority
	}
	return 0
}
