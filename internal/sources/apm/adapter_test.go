package apm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opsquery/sleuth-cli/internal/core/domain"
)

func testDescriptor(url string) domain.SourceDescriptor {
	return domain.SourceDescriptor{
		Name:         "prod-apm",
		Kind:         domain.KindAPM,
		Capabilities: domain.CapabilitySet{domain.CapTimeSeries},
		Config:       map[string]string{"url": url},
	}
}

func queryPayload(t *testing.T) string {
	t.Helper()
	payload, err := json.Marshal(apmQuery{
		Query: "avg:trace.http.request.duration{service:checkout}",
		From:  1764583200,
		To:    1764586800,
	})
	require.NoError(t, err)
	return string(payload)
}

func TestNew_RequiresURL(t *testing.T) {
	desc := testDescriptor("")
	desc.Config = nil

	_, err := New(desc)

	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestAdapter_Identity(t *testing.T) {
	a, err := New(testDescriptor("http://localhost:8126"))
	require.NoError(t, err)

	assert.Equal(t, "prod-apm", a.Name())
	assert.Equal(t, domain.KindAPM, a.Kind())
	assert.False(t, a.LeaksOnTimeout())
}

func TestAdapter_Probe(t *testing.T) {
	tests := []struct {
		name   string
		status int
		want   domain.HealthStatus
	}{
		{"valid credentials", http.StatusOK, domain.HealthHealthy},
		{"throttled", http.StatusTooManyRequests, domain.HealthDegraded},
		{"rejected", http.StatusForbidden, domain.HealthUnreachable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/api/v1/validate", r.URL.Path)
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			a, err := New(testDescriptor(srv.URL))
			require.NoError(t, err)

			assert.Equal(t, tt.want, a.Probe(context.Background()))
		})
	}
}

func TestAdapter_Execute(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/query", r.URL.Path)
		assert.Equal(t, "avg:trace.http.request.duration{service:checkout}", r.URL.Query().Get("query"))
		assert.Equal(t, "1764583200", r.URL.Query().Get("from"))
		assert.Equal(t, "1764586800", r.URL.Query().Get("to"))
		_ = json.NewEncoder(w).Encode(map[string]any{
			"status": "ok",
			"series": []map[string]any{
				{
					"metric": "trace.http.request.duration",
					"scope":  "service:checkout",
					"pointlist": [][]float64{
						{1764583200000, 0.25},
						{1764583260000, 0.31},
					},
				},
			},
		})
	}))
	defer srv.Close()

	a, err := New(testDescriptor(srv.URL))
	require.NoError(t, err)

	result, err := a.Execute(context.Background(), domain.SubQuery{Payload: queryPayload(t)})

	require.NoError(t, err)
	require.Len(t, result.Rows, 2)
	assert.Equal(t, "trace.http.request.duration", result.Rows[0]["metric"])
	assert.Equal(t, "service:checkout", result.Rows[0]["scope"])
	assert.Equal(t, int64(1764583200), result.Rows[0]["timestamp"])
	assert.Equal(t, 0.25, result.Rows[0]["value"])
}

func TestAdapter_Execute_AuthHeaders(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "api-secret", r.Header.Get("DD-API-KEY"))
		assert.Equal(t, "app-secret", r.Header.Get("DD-APPLICATION-KEY"))
		_ = json.NewEncoder(w).Encode(map[string]any{"status": "ok"})
	}))
	defer srv.Close()

	desc := testDescriptor(srv.URL)
	desc.Config["api_key"] = "api-secret"
	desc.Config["app_key"] = "app-secret"
	a, err := New(desc)
	require.NoError(t, err)

	_, err = a.Execute(context.Background(), domain.SubQuery{Payload: queryPayload(t)})
	require.NoError(t, err)
}

func TestAdapter_Execute_BackendError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"status": "error", "error": "invalid query"})
	}))
	defer srv.Close()

	a, err := New(testDescriptor(srv.URL))
	require.NoError(t, err)

	_, err = a.Execute(context.Background(), domain.SubQuery{Payload: queryPayload(t)})

	assert.ErrorIs(t, err, domain.ErrBackendError)
	assert.Contains(t, err.Error(), "invalid query")
}

func TestAdapter_Execute_MalformedPayload(t *testing.T) {
	a, err := New(testDescriptor("http://localhost:8126"))
	require.NoError(t, err)

	_, err = a.Execute(context.Background(), domain.SubQuery{Payload: "not json"})

	assert.ErrorIs(t, err, domain.ErrBackendError)
}

func TestAdapter_Execute_DeadlineExceeded(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(5 * time.Second):
		}
	}))
	defer srv.Close()

	a, err := New(testDescriptor(srv.URL))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err = a.Execute(ctx, domain.SubQuery{Payload: queryPayload(t)})

	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestAdapter_Execute_RateLimited(t *testing.T) {
	var hits int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits++
		_ = json.NewEncoder(w).Encode(map[string]any{"status": "ok"})
	}))
	defer srv.Close()

	a, err := New(testDescriptor(srv.URL))
	require.NoError(t, err)

	// Three sequential queries through a limiter of 2/s with burst 1
	// must take at least a second in total.
	start := time.Now()
	for i := 0; i < 3; i++ {
		_, err := a.Execute(context.Background(), domain.SubQuery{Payload: queryPayload(t)})
		require.NoError(t, err)
	}

	assert.Equal(t, 3, hits)
	assert.GreaterOrEqual(t, time.Since(start), time.Second)
}

func TestAdapter_Execute_AfterClose(t *testing.T) {
	a, err := New(testDescriptor("http://localhost:8126"))
	require.NoError(t, err)
	require.NoError(t, a.Close())

	_, err = a.Execute(context.Background(), domain.SubQuery{Payload: queryPayload(t)})

	assert.ErrorIs(t, err, domain.ErrAdapterClosed)
}
