package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/opsquery/sleuth-cli/internal/core/domain"
	"github.com/opsquery/sleuth-cli/internal/core/ports/driven"
	"github.com/opsquery/sleuth-cli/internal/logger"
)

// DefaultOverallDeadline bounds a whole fan-out when the caller gives none.
const DefaultOverallDeadline = 60 * time.Second

// Execution is the raw outcome of one sub-query: the evidence bundle in
// progress before aggregation. Exactly one Execution exists per planned
// sub-query, whatever the outcome.
type Execution struct {
	// Query is the sub-query that was dispatched.
	Query domain.SubQuery

	// Status is the execution outcome.
	Status domain.ResultStatus

	// Raw is the adapter's result envelope. Nil unless Status is ok.
	Raw *driven.QueryResult

	// Err holds failure detail. Set only when Status is error.
	Err string

	// Elapsed is how long the backend attempt took.
	Elapsed time.Duration
}

// Executor fans a plan out across source adapters.
//
// Every sub-query is dispatched concurrently in its own goroutine with
// its own error boundary: one adapter's failure, panic, or hang never
// blocks collection of sibling results. There are no retries here; a
// sub-query gets a single backend attempt.
type Executor struct {
	registry *Registry
}

// NewExecutor creates an executor borrowing adapters from the registry.
func NewExecutor(registry *Registry) *Executor {
	return &Executor{registry: registry}
}

// indexedExecution carries a finished dispatch back to the collector.
type indexedExecution struct {
	idx  int
	exec Execution
}

// Run executes every sub-query in the plan concurrently and returns
// exactly one Execution per sub-query, in plan order regardless of
// completion order.
//
// Each dispatch runs under its own timeout, clipped to the remaining
// overall deadline. Run returns once every dispatch has resolved or the
// overall deadline elapses; in the latter case outstanding dispatches
// are marked timeout (they were attempted, so never skipped) and
// cancellation is signalled to their adapters best-effort.
func (e *Executor) Run(ctx context.Context, plan domain.InvestigationPlan, overall time.Duration) []Execution {
	if plan.Empty() {
		return nil
	}
	if overall <= 0 {
		overall = DefaultOverallDeadline
	}

	runCtx, cancel := context.WithTimeout(ctx, overall)
	defer cancel()

	logger.Section("Fan-Out Execution")
	logger.Debug("Dispatching %d sub-queries, overall deadline %s", len(plan.Queries), overall)

	resCh := make(chan indexedExecution, len(plan.Queries))
	for i, q := range plan.Queries {
		go func(idx int, q domain.SubQuery) {
			resCh <- indexedExecution{idx: idx, exec: e.dispatch(runCtx, q)}
		}(i, q)
	}

	executions := make([]Execution, len(plan.Queries))
	filled := make([]bool, len(plan.Queries))
	outstanding := len(plan.Queries)

	for outstanding > 0 {
		select {
		case r := <-resCh:
			executions[r.idx] = r.exec
			filled[r.idx] = true
			outstanding--

		case <-runCtx.Done():
			// Overall deadline fired. Outstanding dispatches get a
			// timeout result; runCtx cancellation is the best-effort
			// signal to their adapters.
			for i := range executions {
				if filled[i] {
					continue
				}
				q := plan.Queries[i]
				executions[i] = Execution{
					Query:   q,
					Status:  domain.StatusTimeout,
					Elapsed: overall,
				}
				e.noteLeak(q)
			}
			logger.Warn("Overall deadline elapsed with %d sub-queries outstanding", outstanding)
			return executions
		}
	}

	return executions
}

// dispatch runs one sub-query with its own timeout and error boundary.
func (e *Executor) dispatch(ctx context.Context, q domain.SubQuery) (exec Execution) {
	exec = Execution{Query: q}
	start := time.Now()

	// An adapter panic must not take sibling dispatches down with it.
	defer func() {
		if rec := recover(); rec != nil {
			exec.Status = domain.StatusError
			exec.Err = fmt.Sprintf("adapter panic: %v", rec)
			exec.Elapsed = time.Since(start)
			logger.Warn("Sub-query %s/%s panicked: %v", q.Source, q.Capability, rec)
		}
	}()

	adapter, err := e.registry.Get(q.Source)
	if err != nil {
		// Source deregistered between planning and execution.
		exec.Status = domain.StatusError
		exec.Err = err.Error()
		return exec
	}

	timeout := q.Timeout
	if timeout <= 0 {
		timeout = DefaultOverallDeadline
	}
	qctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	raw, err := adapter.Execute(qctx, q)
	exec.Elapsed = time.Since(start)

	switch {
	case err == nil:
		exec.Status = domain.StatusOK
		exec.Raw = raw
		logger.Debug("Sub-query %s/%s ok: %d rows in %s", q.Source, q.Capability, len(raw.Rows), exec.Elapsed)

	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		// The query was attempted and ran out of time; that is a
		// timeout, never a skip.
		exec.Status = domain.StatusTimeout
		e.noteLeak(q)
		logger.Debug("Sub-query %s/%s timed out after %s", q.Source, q.Capability, exec.Elapsed)

	default:
		exec.Status = domain.StatusError
		exec.Err = err.Error()
		logger.Debug("Sub-query %s/%s failed: %v", q.Source, q.Capability, err)
	}

	return exec
}

// noteLeak records when a timed-out sub-query may still be consuming
// backend resources, so operators can chase orphaned work.
func (e *Executor) noteLeak(q domain.SubQuery) {
	adapter, err := e.registry.Get(q.Source)
	if err != nil {
		return
	}
	if adapter.LeaksOnTimeout() {
		logger.Warn("Timed-out sub-query on %q may still be running backend-side", q.Source)
	}
}
