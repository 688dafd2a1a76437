// Package warehouse provides the analytics-warehouse source adapter,
// speaking the BigQuery v2 jobs API.
package warehouse

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/oauth2"
	bigquery "google.golang.org/api/bigquery/v2"
	"google.golang.org/api/option"

	"github.com/opsquery/sleuth-cli/internal/core/domain"
	"github.com/opsquery/sleuth-cli/internal/core/ports/driven"
)

// Ensure Adapter implements the interface.
var _ driven.SourceAdapter = (*Adapter)(nil)

// queryTimeoutMs is the server-side wait for job completion. The
// client-side context deadline is the real bound; this just keeps the
// API call from long-polling past it.
const queryTimeoutMs = 30_000

// maxRows caps rows returned per query job.
const maxRows = 500

// Adapter runs structured queries against an analytics warehouse.
//
// Config keys:
//   - project: billing project ID (required)
//   - token: static OAuth access token (optional; default credentials
//     apply when omitted)
//   - endpoint: API endpoint override, used for testing (optional)
type Adapter struct {
	desc domain.SourceDescriptor

	mu        sync.Mutex
	svc       *bigquery.Service
	connected bool
	closed    bool

	// tainted marks the session after a timed-out job whose
	// cancellation could not be confirmed; the next probe re-checks
	// the backend before the session is trusted again.
	tainted bool
}

// New creates a warehouse adapter from a descriptor.
func New(desc domain.SourceDescriptor) (*Adapter, error) {
	if desc.Config["project"] == "" {
		return nil, fmt.Errorf("%w: warehouse source %q missing project config", domain.ErrInvalidInput, desc.Name)
	}
	return &Adapter{desc: desc}, nil
}

// Name returns the logical source name.
func (a *Adapter) Name() string {
	return a.desc.Name
}

// Kind returns the backend class.
func (a *Adapter) Kind() domain.SourceKind {
	return domain.KindWarehouse
}

// Capabilities returns the declared capability set.
func (a *Adapter) Capabilities() domain.CapabilitySet {
	return a.desc.Capabilities
}

// Connect builds the API client session. Idempotent.
func (a *Adapter) Connect(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return domain.ErrAdapterClosed
	}
	if a.connected {
		return nil
	}

	var opts []option.ClientOption
	if endpoint := a.desc.Config["endpoint"]; endpoint != "" {
		opts = append(opts, option.WithEndpoint(endpoint))
	}
	if token := a.desc.Config["token"]; token != "" {
		opts = append(opts, option.WithTokenSource(
			oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})))
	} else if a.desc.Config["endpoint"] != "" {
		opts = append(opts, option.WithoutAuthentication())
	}

	svc, err := bigquery.NewService(ctx, opts...)
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrConnectionFailed, err)
	}

	a.svc = svc
	a.connected = true
	return nil
}

// Probe lists datasets as a cheap liveness check. Never errors.
func (a *Adapter) Probe(ctx context.Context) domain.HealthStatus {
	a.mu.Lock()
	svc := a.svc
	a.mu.Unlock()

	if svc == nil {
		return domain.HealthUnknown
	}

	_, err := svc.Datasets.List(a.desc.Config["project"]).MaxResults(1).Context(ctx).Do()
	if err != nil {
		return domain.HealthUnreachable
	}

	a.mu.Lock()
	a.tainted = false
	a.mu.Unlock()
	return domain.HealthHealthy
}

// Execute runs one SQL sub-query as a warehouse job.
func (a *Adapter) Execute(ctx context.Context, q domain.SubQuery) (*driven.QueryResult, error) {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil, domain.ErrAdapterClosed
	}
	if !a.connected {
		a.mu.Unlock()
		return nil, fmt.Errorf("%w: not connected", domain.ErrConnectionFailed)
	}
	svc := a.svc
	a.mu.Unlock()

	useLegacy := false
	req := &bigquery.QueryRequest{
		Query:        q.Payload,
		UseLegacySql: &useLegacy,
		MaxResults:   maxRows,
		TimeoutMs:    queryTimeoutMs,
	}

	resp, err := svc.Jobs.Query(a.desc.Config["project"], req).Context(ctx).Do()
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil {
			// The job may still run server-side; taint the session so
			// the next probe verifies the backend.
			a.mu.Lock()
			a.tainted = true
			a.mu.Unlock()
			return nil, context.DeadlineExceeded
		}
		return nil, fmt.Errorf("%w: %w", domain.ErrBackendError, err)
	}

	if !resp.JobComplete {
		a.mu.Lock()
		a.tainted = true
		a.mu.Unlock()
		return nil, fmt.Errorf("%w: job %s did not complete within the wait window",
			domain.ErrBackendError, jobID(resp))
	}

	return &driven.QueryResult{
		Rows:      normaliseRows(resp),
		Truncated: resp.TotalRows > uint64(len(resp.Rows)),
	}, nil
}

// LeaksOnTimeout reports that a timed-out warehouse job keeps consuming
// backend slots until it finishes or is cancelled server-side.
func (a *Adapter) LeaksOnTimeout() bool {
	return true
}

// Close releases the API session.
func (a *Adapter) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.closed = true
	a.connected = false
	a.svc = nil
	return nil
}

// jobID extracts the job reference from a response for error detail.
func jobID(resp *bigquery.QueryResponse) string {
	if resp.JobReference == nil {
		return "unknown"
	}
	return resp.JobReference.JobId
}

// normaliseRows flattens the warehouse's schema+cells wire shape into
// field-name-keyed records.
func normaliseRows(resp *bigquery.QueryResponse) []map[string]any {
	rows := make([]map[string]any, 0, len(resp.Rows))
	if resp.Schema == nil {
		return rows
	}

	fields := resp.Schema.Fields
	for _, r := range resp.Rows {
		record := make(map[string]any, len(fields))
		for i, cell := range r.F {
			if i >= len(fields) {
				break
			}
			record[fields[i].Name] = cell.V
		}
		rows = append(rows, record)
	}
	return rows
}
