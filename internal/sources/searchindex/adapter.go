// Package searchindex provides the log/search index source adapter,
// speaking an Elasticsearch-compatible HTTP API.
package searchindex

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/opsquery/sleuth-cli/internal/core/domain"
	"github.com/opsquery/sleuth-cli/internal/core/ports/driven"
)

// Ensure Adapter implements the interface.
var _ driven.SourceAdapter = (*Adapter)(nil)

// clientTimeout is the transport-level ceiling; per-query deadlines
// come from the request context.
const clientTimeout = 60 * time.Second

// Adapter runs search sub-queries against a log/search index.
//
// Config keys:
//   - url: base URL of the index HTTP API (required)
//   - index: index pattern to search (default "logs-*")
//   - api_key: ApiKey authorization value (optional)
type Adapter struct {
	desc   domain.SourceDescriptor
	client *http.Client

	mu        sync.Mutex
	connected bool
	closed    bool
}

// searchResponse is the subset of the _search response we read.
type searchResponse struct {
	Hits struct {
		Total struct {
			Value int `json:"value"`
		} `json:"total"`
		Hits []struct {
			ID     string         `json:"_id"`
			Source map[string]any `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
	Error *struct {
		Type   string `json:"type"`
		Reason string `json:"reason"`
	} `json:"error,omitempty"`
}

// healthResponse is the subset of the cluster health response we read.
type healthResponse struct {
	Status string `json:"status"`
}

// New creates a search-index adapter from a descriptor.
func New(desc domain.SourceDescriptor) (*Adapter, error) {
	if desc.Config["url"] == "" {
		return nil, fmt.Errorf("%w: search-index source %q missing url config", domain.ErrInvalidInput, desc.Name)
	}
	return &Adapter{
		desc:   desc,
		client: &http.Client{Timeout: clientTimeout},
	}, nil
}

// Name returns the logical source name.
func (a *Adapter) Name() string {
	return a.desc.Name
}

// Kind returns the backend class.
func (a *Adapter) Kind() domain.SourceKind {
	return domain.KindSearchIndex
}

// Capabilities returns the declared capability set.
func (a *Adapter) Capabilities() domain.CapabilitySet {
	return a.desc.Capabilities
}

// Connect verifies the index API answers. Idempotent.
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
		return fmt.Errorf("%w: search index at %s not answering", domain.ErrConnectionFailed, a.baseURL())
	}

	a.connected = true
	return nil
}

// Probe checks cluster health. Never errors.
func (a *Adapter) Probe(ctx context.Context) domain.HealthStatus {
	return a.probe(ctx)
}

func (a *Adapter) probe(ctx context.Context) domain.HealthStatus {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL()+"/_cluster/health", http.NoBody)
	if err != nil {
		return domain.HealthUnreachable
	}
	a.authorise(req)

	resp, err := a.client.Do(req)
	if err != nil {
		return domain.HealthUnreachable
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return domain.HealthUnreachable
	}

	var health healthResponse
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		return domain.HealthUnreachable
	}
	if health.Status == "red" {
		return domain.HealthDegraded
	}
	return domain.HealthHealthy
}

// Execute POSTs one search body to the configured index.
func (a *Adapter) Execute(ctx context.Context, q domain.SubQuery) (*driven.QueryResult, error) {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil, domain.ErrAdapterClosed
	}
	a.mu.Unlock()

	index := a.desc.Config["index"]
	if index == "" {
		index = "logs-*"
	}

	url := fmt.Sprintf("%s/%s/_search", a.baseURL(), index)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader([]byte(q.Payload)))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrBackendError, err)
	}
	req.Header.Set("Content-Type", "application/json")
	a.authorise(req)

	resp, err := a.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil {
			return nil, context.DeadlineExceeded
		}
		return nil, fmt.Errorf("%w: %w", domain.ErrBackendError, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %w", domain.ErrBackendError, err)
	}

	var parsed searchResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("%w: decode response: %w", domain.ErrBackendError, err)
	}
	if parsed.Error != nil {
		return nil, fmt.Errorf("%w: %s: %s", domain.ErrBackendError, parsed.Error.Type, parsed.Error.Reason)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: search returned status %d", domain.ErrBackendError, resp.StatusCode)
	}

	rows := make([]map[string]any, 0, len(parsed.Hits.Hits))
	for _, hit := range parsed.Hits.Hits {
		record := make(map[string]any, len(hit.Source)+1)
		for k, v := range hit.Source {
			record[k] = v
		}
		record["_id"] = hit.ID
		rows = append(rows, record)
	}

	return &driven.QueryResult{
		Rows:      rows,
		Truncated: parsed.Hits.Total.Value > len(rows),
	}, nil
}

// LeaksOnTimeout reports that cancelled searches are torn down with the
// HTTP request; nothing keeps running index-side.
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

// authorise attaches the ApiKey header when configured.
func (a *Adapter) authorise(req *http.Request) {
	if key := a.desc.Config["api_key"]; key != "" {
		req.Header.Set("Authorization", "ApiKey "+key)
	}
}
