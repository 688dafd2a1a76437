// Package apm provides the APM/metrics source adapter, speaking a
// Datadog-style metrics query HTTP API.
package apm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/opsquery/sleuth-cli/internal/core/domain"
	"github.com/opsquery/sleuth-cli/internal/core/ports/driven"
)

// Ensure Adapter implements the interface.
var _ driven.SourceAdapter = (*Adapter)(nil)

// Metrics backends throttle aggressively; two queries a second with a
// burst of one keeps us under the common per-org limits.
const (
	queriesPerSecond = 2
	burst            = 1

	clientTimeout = 60 * time.Second
)

// apmQuery mirrors the payload envelope the planner builds for
// time-series sub-queries.
type apmQuery struct {
	Query string `json:"query"`
	From  int64  `json:"from"`
	To    int64  `json:"to"`
}

// queryResponse is the subset of the metrics query response we read.
type queryResponse struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
	Series []struct {
		Metric    string      `json:"metric"`
		Scope     string      `json:"scope"`
		Pointlist [][]float64 `json:"pointlist"`
	} `json:"series"`
}

// Adapter runs time-series sub-queries against an APM backend.
//
// Config keys:
//   - url: base URL of the metrics API (required)
//   - api_key: API key header value (optional)
//   - app_key: application key header value (optional)
type Adapter struct {
	desc    domain.SourceDescriptor
	client  *http.Client
	limiter *rate.Limiter

	mu        sync.Mutex
	connected bool
	closed    bool
}

// New creates an APM adapter from a descriptor.
func New(desc domain.SourceDescriptor) (*Adapter, error) {
	if desc.Config["url"] == "" {
		return nil, fmt.Errorf("%w: apm source %q missing url config", domain.ErrInvalidInput, desc.Name)
	}
	return &Adapter{
		desc:    desc,
		client:  &http.Client{Timeout: clientTimeout},
		limiter: rate.NewLimiter(rate.Limit(queriesPerSecond), burst),
	}, nil
}

// Name returns the logical source name.
func (a *Adapter) Name() string {
	return a.desc.Name
}

// Kind returns the backend class.
func (a *Adapter) Kind() domain.SourceKind {
	return domain.KindAPM
}

// Capabilities returns the declared capability set.
func (a *Adapter) Capabilities() domain.CapabilitySet {
	return a.desc.Capabilities
}

// Connect validates the configured credentials. Idempotent.
func (a *Adapter) Connect(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return domain.ErrAdapterClosed
	}
	if a.connected {
		return nil
	}

	if status := a.probe(ctx); status == domain.HealthUnreachable {
		return fmt.Errorf("%w: apm backend at %s rejected credentials", domain.ErrConnectionFailed, a.baseURL())
	}

	a.connected = true
	return nil
}

// Probe validates credentials against the backend. Never errors.
func (a *Adapter) Probe(ctx context.Context) domain.HealthStatus {
	return a.probe(ctx)
}

func (a *Adapter) probe(ctx context.Context) domain.HealthStatus {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL()+"/api/v1/validate", http.NoBody)
	if err != nil {
		return domain.HealthUnreachable
	}
	a.authorise(req)

	resp, err := a.client.Do(req)
	if err != nil {
		return domain.HealthUnreachable
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		return domain.HealthHealthy
	case resp.StatusCode == http.StatusTooManyRequests:
		return domain.HealthDegraded
	default:
		return domain.HealthUnreachable
	}
}

// Execute runs one metrics query. Requests wait on the shared rate
// limiter before hitting the wire, so a fan-out of time-series
// sub-queries cannot trip the backend's throttle.
func (a *Adapter) Execute(ctx context.Context, q domain.SubQuery) (*driven.QueryResult, error) {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil, domain.ErrAdapterClosed
	}
	a.mu.Unlock()

	var payload apmQuery
	if err := json.Unmarshal([]byte(q.Payload), &payload); err != nil {
		return nil, fmt.Errorf("%w: decode payload: %w", domain.ErrBackendError, err)
	}

	if err := a.limiter.Wait(ctx); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, context.DeadlineExceeded
		}
		return nil, err
	}

	params := url.Values{}
	params.Set("query", payload.Query)
	params.Set("from", strconv.FormatInt(payload.From, 10))
	params.Set("to", strconv.FormatInt(payload.To, 10))

	reqURL := a.baseURL() + "/api/v1/query?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrBackendError, err)
	}
	a.authorise(req)

	resp, err := a.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil {
			return nil, context.DeadlineExceeded
		}
		return nil, fmt.Errorf("%w: %w", domain.ErrBackendError, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: metrics query returned status %d", domain.ErrBackendError, resp.StatusCode)
	}

	var parsed queryResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("%w: decode response: %w", domain.ErrBackendError, err)
	}
	if parsed.Error != "" {
		return nil, fmt.Errorf("%w: %s", domain.ErrBackendError, parsed.Error)
	}

	var rows []map[string]any
	for _, series := range parsed.Series {
		for _, point := range series.Pointlist {
			if len(point) < 2 {
				continue
			}
			rows = append(rows, map[string]any{
				"metric":    series.Metric,
				"scope":     series.Scope,
				"timestamp": int64(point[0] / 1000),
				"value":     point[1],
			})
		}
	}

	return &driven.QueryResult{Rows: rows}, nil
}

// LeaksOnTimeout reports that abandoned metric queries do not keep
// consuming backend resources.
func (a *Adapter) LeaksOnTimeout() bool {
	return false
}

// Close releases resources.
func (a *Adapter) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.closed = true
	a.connected = false
	return nil
}

func (a *Adapter) baseURL() string {
	return strings.TrimSuffix(a.desc.Config["url"], "/")
}

// authorise attaches the API and application key headers when configured.
func (a *Adapter) authorise(req *http.Request) {
	if key := a.desc.Config["api_key"]; key != "" {
		req.Header.Set("DD-API-KEY", key)
	}
	if key := a.desc.Config["app_key"]; key != "" {
		req.Header.Set("DD-APPLICATION-KEY", key)
	}
}
