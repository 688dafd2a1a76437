// Package orchestration provides the container orchestration source
// adapter, speaking the Kubernetes-style REST API read-only.
package orchestration

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/opsquery/sleuth-cli/internal/core/domain"
	"github.com/opsquery/sleuth-cli/internal/core/ports/driven"
)

// Ensure Adapter implements the interface.
var _ driven.SourceAdapter = (*Adapter)(nil)

const clientTimeout = 30 * time.Second

// orchestrationQuery mirrors the payload envelope the planner builds
// for orchestration sub-queries.
type orchestrationQuery struct {
	Resource  string   `json:"resource"`
	Namespace string   `json:"namespace"`
	Workloads []string `json:"workloads,omitempty"`
}

// podList is the subset of the pod list response we read.
type podList struct {
	Items []struct {
		Metadata struct {
			Name string `json:"name"`
		} `json:"metadata"`
		Spec struct {
			NodeName string `json:"nodeName"`
		} `json:"spec"`
		Status struct {
			Phase             string `json:"phase"`
			ContainerStatuses []struct {
				RestartCount int `json:"restartCount"`
			} `json:"containerStatuses"`
		} `json:"status"`
	} `json:"items"`
}

// eventList is the subset of the event list response we read.
type eventList struct {
	Items []struct {
		Reason         string `json:"reason"`
		Message        string `json:"message"`
		Type           string `json:"type"`
		LastTimestamp  string `json:"lastTimestamp"`
		InvolvedObject struct {
			Kind string `json:"kind"`
			Name string `json:"name"`
		} `json:"involvedObject"`
	} `json:"items"`
}

// Adapter runs orchestration sub-queries against a cluster API server.
//
// Config keys:
//   - api_server: base URL of the API server (required)
//   - token: bearer token for authentication (optional)
//   - insecure: "true" to skip TLS verification (optional)
type Adapter struct {
	desc   domain.SourceDescriptor
	client *http.Client

	mu        sync.Mutex
	connected bool
	closed    bool
}

// New creates an orchestration adapter from a descriptor.
func New(desc domain.SourceDescriptor) (*Adapter, error) {
	if desc.Config["api_server"] == "" {
		return nil, fmt.Errorf("%w: orchestration source %q missing api_server config", domain.ErrInvalidInput, desc.Name)
	}

	transport := http.DefaultTransport
	if desc.Config["insecure"] == "true" {
		transport = &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		}
	}

	return &Adapter{
		desc: desc,
		client: &http.Client{
			Timeout:   clientTimeout,
			Transport: transport,
		},
	}, nil
}

// Name returns the logical source name.
func (a *Adapter) Name() string {
	return a.desc.Name
}

// Kind returns the backend class.
func (a *Adapter) Kind() domain.SourceKind {
	return domain.KindOrchestration
}

// Capabilities returns the declared capability set.
func (a *Adapter) Capabilities() domain.CapabilitySet {
	return a.desc.Capabilities
}

// Connect verifies the API server answers its readiness check. Idempotent.
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
		return fmt.Errorf("%w: api server at %s not ready", domain.ErrConnectionFailed, a.baseURL())
	}

	a.connected = true
	return nil
}

// Probe hits the API server readiness endpoint. Never errors.
func (a *Adapter) Probe(ctx context.Context) domain.HealthStatus {
	return a.probe(ctx)
}

func (a *Adapter) probe(ctx context.Context) domain.HealthStatus {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL()+"/readyz", http.NoBody)
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
	return domain.HealthHealthy
}

// Execute runs one pods or events lookup against the cluster.
func (a *Adapter) Execute(ctx context.Context, q domain.SubQuery) (*driven.QueryResult, error) {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil, domain.ErrAdapterClosed
	}
	a.mu.Unlock()

	var payload orchestrationQuery
	if err := json.Unmarshal([]byte(q.Payload), &payload); err != nil {
		return nil, fmt.Errorf("%w: decode payload: %w", domain.ErrBackendError, err)
	}
	if payload.Namespace == "" {
		payload.Namespace = "default"
	}

	switch payload.Resource {
	case "pods":
		return a.listPods(ctx, payload)
	case "events":
		return a.listEvents(ctx, payload)
	default:
		return nil, fmt.Errorf("%w: resource %q", domain.ErrUnsupportedCapability, payload.Resource)
	}
}

func (a *Adapter) listPods(ctx context.Context, q orchestrationQuery) (*driven.QueryResult, error) {
	var list podList
	url := fmt.Sprintf("%s/api/v1/namespaces/%s/pods", a.baseURL(), q.Namespace)
	if err := a.get(ctx, url, &list); err != nil {
		return nil, err
	}

	var rows []map[string]any
	for _, pod := range list.Items {
		if !matchesWorkload(pod.Metadata.Name, q.Workloads) {
			continue
		}
		restarts := 0
		for _, cs := range pod.Status.ContainerStatuses {
			restarts += cs.RestartCount
		}
		rows = append(rows, map[string]any{
			"name":     pod.Metadata.Name,
			"phase":    pod.Status.Phase,
			"restarts": restarts,
			"node":     pod.Spec.NodeName,
		})
	}

	return &driven.QueryResult{Rows: rows}, nil
}

func (a *Adapter) listEvents(ctx context.Context, q orchestrationQuery) (*driven.QueryResult, error) {
	var list eventList
	url := fmt.Sprintf("%s/api/v1/namespaces/%s/events", a.baseURL(), q.Namespace)
	if err := a.get(ctx, url, &list); err != nil {
		return nil, err
	}

	var rows []map[string]any
	for _, event := range list.Items {
		if !matchesWorkload(event.InvolvedObject.Name, q.Workloads) {
			continue
		}
		rows = append(rows, map[string]any{
			"reason":    event.Reason,
			"message":   event.Message,
			"type":      event.Type,
			"object":    event.InvolvedObject.Kind + "/" + event.InvolvedObject.Name,
			"last_seen": event.LastTimestamp,
		})
	}

	return &driven.QueryResult{Rows: rows}, nil
}

func (a *Adapter) get(ctx context.Context, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrBackendError, err)
	}
	a.authorise(req)

	resp, err := a.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil {
			return context.DeadlineExceeded
		}
		return fmt.Errorf("%w: %w", domain.ErrBackendError, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: api server returned status %d", domain.ErrBackendError, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode response: %w", domain.ErrBackendError, err)
	}
	return nil
}

// matchesWorkload reports whether a resource name belongs to one of the
// given workloads. Pod names carry generated suffixes, so prefix match.
func matchesWorkload(name string, workloads []string) bool {
	if len(workloads) == 0 {
		return true
	}
	for _, w := range workloads {
		if strings.HasPrefix(name, w) {
			return true
		}
	}
	return false
}

// LeaksOnTimeout reports that abandoned list calls do not keep running
// on the API server.
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
	return strings.TrimSuffix(a.desc.Config["api_server"], "/")
}

// authorise attaches the bearer token when configured.
func (a *Adapter) authorise(req *http.Request) {
	if token := a.desc.Config["token"]; token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
}
