package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opsquery/sleuth-cli/internal/core/domain"
	"github.com/opsquery/sleuth-cli/internal/core/ports/driven"
)

func okExecution(source string, cap domain.Capability, rows int) Execution {
	result := &driven.QueryResult{}
	for i := 0; i < rows; i++ {
		result.Rows = append(result.Rows, map[string]any{"n": i})
	}
	return Execution{
		Query:   domain.SubQuery{Source: source, Capability: cap},
		Status:  domain.StatusOK,
		Raw:     result,
		Elapsed: 10 * time.Millisecond,
	}
}

func planOf(executions []Execution) domain.InvestigationPlan {
	var plan domain.InvestigationPlan
	for i, e := range executions {
		q := e.Query
		q.Priority = i
		plan.Queries = append(plan.Queries, q)
	}
	return plan
}

func TestAggregator_Aggregate_Complete(t *testing.T) {
	a := NewAggregator()
	executions := []Execution{
		okExecution("alpha", domain.CapLogTail, 2),
		okExecution("bravo", domain.CapTimeSeries, 1),
	}
	intent := domain.InvestigationIntent{Category: domain.IssueErrors}

	bundle := a.Aggregate("inv-1", intent, planOf(executions), executions)

	assert.Equal(t, "inv-1", bundle.ID)
	assert.True(t, bundle.Complete)
	require.Len(t, bundle.Results, 2)
	assert.Len(t, bundle.Results[0].Records, 2)
	assert.Len(t, bundle.Results[1].Records, 1)
	assert.False(t, bundle.CreatedAt.IsZero())
}

func TestAggregator_Aggregate_FailuresAreRetained(t *testing.T) {
	a := NewAggregator()
	executions := []Execution{
		okExecution("alpha", domain.CapLogTail, 1),
		{
			Query:  domain.SubQuery{Source: "bravo", Capability: domain.CapTimeSeries},
			Status: domain.StatusError,
			Err:    "backend error: boom",
		},
		{
			Query:  domain.SubQuery{Source: "charlie", Capability: domain.CapStructuredQuery},
			Status: domain.StatusTimeout,
		},
	}
	intent := domain.InvestigationIntent{Category: domain.IssueErrors}

	bundle := a.Aggregate("inv-2", intent, planOf(executions), executions)

	assert.False(t, bundle.Complete)
	require.Len(t, bundle.Results, 3, "failed and timed-out results stay in the bundle")
	assert.Equal(t, domain.StatusError, bundle.Results[1].Status)
	assert.Equal(t, "backend error: boom", bundle.Results[1].Err)
	assert.Nil(t, bundle.Results[1].Records)
	assert.Equal(t, domain.StatusTimeout, bundle.Results[2].Status)
}

func TestAggregator_Aggregate_RecordProvenance(t *testing.T) {
	a := NewAggregator()
	executions := []Execution{okExecution("alpha", domain.CapLogTail, 1)}
	intent := domain.InvestigationIntent{Category: domain.IssueErrors}

	bundle := a.Aggregate("inv-3", intent, planOf(executions), executions)

	require.Len(t, bundle.Results[0].Records, 1)
	record := bundle.Results[0].Records[0]
	assert.Equal(t, "alpha", record.Source)
	assert.Equal(t, domain.CapLogTail, record.Capability)
	assert.Equal(t, 0, record.Fields["n"])
}

func TestAggregator_Aggregate_EmptyRowsIsEvidence(t *testing.T) {
	a := NewAggregator()
	executions := []Execution{okExecution("alpha", domain.CapLogTail, 0)}
	intent := domain.InvestigationIntent{Category: domain.IssueErrors}

	bundle := a.Aggregate("inv-4", intent, planOf(executions), executions)

	// OK with zero records means "nothing found", which still counts
	// toward completeness.
	assert.True(t, bundle.Complete)
	assert.Equal(t, domain.StatusOK, bundle.Results[0].Status)
	assert.Empty(t, bundle.Results[0].Records)
}

func TestAggregator_Aggregate_AdapterTruncationPreserved(t *testing.T) {
	a := NewAggregator()
	exec := okExecution("alpha", domain.CapLogTail, 2)
	exec.Raw.Truncated = true
	executions := []Execution{exec}
	intent := domain.InvestigationIntent{Category: domain.IssueErrors}

	bundle := a.Aggregate("inv-5", intent, planOf(executions), executions)

	assert.True(t, bundle.Results[0].Truncated)
}

func TestAggregator_Aggregate_RecordBudget_TrimsLowestPriorityFirst(t *testing.T) {
	a := &Aggregator{RecordBudget: 5}
	executions := []Execution{
		okExecution("primary", domain.CapLogTail, 4),       // priority 0
		okExecution("secondary", domain.CapTimeSeries, 4),  // priority 1
	}
	intent := domain.InvestigationIntent{Category: domain.IssueErrors}

	bundle := a.Aggregate("inv-6", intent, planOf(executions), executions)

	// Budget 5 over 8 records: the lower-priority result loses 3.
	assert.Len(t, bundle.Results[0].Records, 4)
	assert.False(t, bundle.Results[0].Truncated)
	assert.Len(t, bundle.Results[1].Records, 1)
	assert.True(t, bundle.Results[1].Truncated)
}

func TestAggregator_Aggregate_RecordBudget_NeverReorders(t *testing.T) {
	a := &Aggregator{RecordBudget: 2}
	executions := []Execution{
		okExecution("alpha", domain.CapLogTail, 3),
		okExecution("bravo", domain.CapTimeSeries, 3),
		okExecution("charlie", domain.CapStructuredQuery, 3),
	}
	intent := domain.InvestigationIntent{Category: domain.IssueErrors}

	bundle := a.Aggregate("inv-7", intent, planOf(executions), executions)

	require.Len(t, bundle.Results, 3)
	assert.Equal(t, "alpha", bundle.Results[0].Source)
	assert.Equal(t, "bravo", bundle.Results[1].Source)
	assert.Equal(t, "charlie", bundle.Results[2].Source)

	total := 0
	for i := range bundle.Results {
		total += len(bundle.Results[i].Records)
	}
	assert.Equal(t, 2, total)
}

func TestAggregator_Aggregate_RecordBudget_UnderBudgetUntouched(t *testing.T) {
	a := &Aggregator{RecordBudget: 100}
	executions := []Execution{okExecution("alpha", domain.CapLogTail, 10)}
	intent := domain.InvestigationIntent{Category: domain.IssueErrors}

	bundle := a.Aggregate("inv-8", intent, planOf(executions), executions)

	assert.Len(t, bundle.Results[0].Records, 10)
	assert.False(t, bundle.Results[0].Truncated)
}

func TestAggregator_Aggregate_MissingExecutionsIncomplete(t *testing.T) {
	a := NewAggregator()
	executions := []Execution{okExecution("alpha", domain.CapLogTail, 1)}
	plan := planOf(executions)
	plan.Queries = append(plan.Queries, domain.SubQuery{Source: "bravo", Capability: domain.CapTimeSeries})
	intent := domain.InvestigationIntent{Category: domain.IssueErrors}

	bundle := a.Aggregate("inv-9", intent, plan, executions)

	assert.False(t, bundle.Complete)
}
