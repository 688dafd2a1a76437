package llm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opsquery/sleuth-cli/internal/core/domain"
	"github.com/opsquery/sleuth-cli/internal/core/ports/driven"
)

// mockProvider records the prompt it receives and returns a canned
// completion.
type mockProvider struct {
	response    string
	generateErr error
	lastPrompt  string
	lastSystem  string
	pingErr     error
}

func (m *mockProvider) Generate(_ context.Context, system, prompt string, _ int, _ float64) (string, error) {
	m.lastSystem = system
	m.lastPrompt = prompt
	if m.generateErr != nil {
		return "", m.generateErr
	}
	return m.response, nil
}

func (m *mockProvider) ModelName() string          { return "mock-model" }
func (m *mockProvider) Ping(context.Context) error { return m.pingErr }
func (m *mockProvider) Close() error               { return nil }

// mockPromptStore serves a fixed prompt for one name.
type mockPromptStore struct {
	prompts map[string]string
}

var _ driven.PromptStore = (*mockPromptStore)(nil)

func (m *mockPromptStore) Load(name string) (string, error) {
	prompt, ok := m.prompts[name]
	if !ok {
		return "", errors.New("unknown prompt")
	}
	return prompt, nil
}

func (m *mockPromptStore) Reload() {}

func TestService_Analyze_ParsesIntent(t *testing.T) {
	provider := &mockProvider{response: `{
		"category": "error-spike",
		"description": "checkout 500s climbing since the 10:00 deploy",
		"window": {"start": "2026-03-01T10:00:00Z", "end": "2026-03-01T11:00:00Z"},
		"entities": ["checkout"],
		"source_hints": ["prod-logs"]
	}`}
	service := NewService(provider)

	intent, err := service.Analyze(context.Background(), "why are checkout 500s spiking?", nil)

	require.NoError(t, err)
	assert.Equal(t, domain.IssueErrors, intent.Category)
	assert.Equal(t, "checkout 500s climbing since the 10:00 deploy", intent.Description)
	assert.Equal(t, []string{"checkout"}, intent.Entities)
	assert.Equal(t, []string{"prod-logs"}, intent.SourceHints)
	assert.Equal(t, time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC), intent.Window.Start)
	assert.Equal(t, time.Date(2026, 3, 1, 11, 0, 0, 0, time.UTC), intent.Window.End)
}

func TestService_Analyze_StripsCodeFences(t *testing.T) {
	provider := &mockProvider{response: "```json\n{\"category\": \"availability\", \"description\": \"pods down\"}\n```"}
	service := NewService(provider)

	intent, err := service.Analyze(context.Background(), "is anything down?", nil)

	require.NoError(t, err)
	assert.Equal(t, domain.IssueAvailability, intent.Category)
}

func TestService_Analyze_UnknownCategoryFallsBackToGeneral(t *testing.T) {
	provider := &mockProvider{response: `{"category": "mystery", "description": "something odd"}`}
	service := NewService(provider)

	intent, err := service.Analyze(context.Background(), "something odd is happening", nil)

	require.NoError(t, err)
	assert.Equal(t, domain.IssueGeneral, intent.Category)
}

func TestService_Analyze_EmptyDescriptionUsesRawQuery(t *testing.T) {
	provider := &mockProvider{response: `{"category": "general"}`}
	service := NewService(provider)

	intent, err := service.Analyze(context.Background(), "what happened overnight?", nil)

	require.NoError(t, err)
	assert.Equal(t, "what happened overnight?", intent.Description)
}

func TestService_Analyze_MalformedWindowTolerated(t *testing.T) {
	provider := &mockProvider{response: `{
		"category": "general",
		"description": "vague",
		"window": {"start": "yesterday-ish", "end": ""}
	}`}
	service := NewService(provider)

	intent, err := service.Analyze(context.Background(), "vague question", nil)

	require.NoError(t, err)
	assert.True(t, intent.Window.Start.IsZero())
	assert.True(t, intent.Window.Open())
}

func TestService_Analyze_EmptyQuery(t *testing.T) {
	service := NewService(&mockProvider{})

	_, err := service.Analyze(context.Background(), "   ", nil)

	assert.ErrorIs(t, err, domain.ErrAnalysisFailed)
}

func TestService_Analyze_ProviderFailure(t *testing.T) {
	provider := &mockProvider{generateErr: errors.New("connection refused")}
	service := NewService(provider)

	_, err := service.Analyze(context.Background(), "why is it slow?", nil)

	require.ErrorIs(t, err, domain.ErrAnalysisFailed)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestService_Analyze_UnparseableResponse(t *testing.T) {
	provider := &mockProvider{response: "I think the problem is probably the database."}
	service := NewService(provider)

	_, err := service.Analyze(context.Background(), "why is it slow?", nil)

	assert.ErrorIs(t, err, domain.ErrAnalysisFailed)
}

func TestService_Analyze_CallerContextInPrompt(t *testing.T) {
	provider := &mockProvider{response: `{"category": "general", "description": "x"}`}
	service := NewService(provider)

	_, err := service.Analyze(context.Background(), "anything wrong?", map[string]string{
		"environment": "production",
		"team":        "payments",
	})

	require.NoError(t, err)
	assert.Contains(t, provider.lastPrompt, "environment: production")
	assert.Contains(t, provider.lastPrompt, "team: payments")
}

func TestService_Analyze_UsesPromptStore(t *testing.T) {
	provider := &mockProvider{response: `{"category": "general", "description": "x"}`}
	service := NewService(provider)
	service.SetPromptStore(&mockPromptStore{prompts: map[string]string{
		driven.PromptIntentAnalysis: "CUSTOM INTENT PROMPT ctx=%s q=%s",
	}})

	_, err := service.Analyze(context.Background(), "anything wrong?", nil)

	require.NoError(t, err)
	assert.Contains(t, provider.lastPrompt, "CUSTOM INTENT PROMPT")
}

func synthBundle() *domain.EvidenceBundle {
	return &domain.EvidenceBundle{
		ID: "inv-1",
		Intent: domain.InvestigationIntent{
			Category:    domain.IssueErrors,
			Description: "checkout 500s spiking",
		},
		Results: []domain.SourceResult{
			{
				Source:     "prod-logs",
				Capability: domain.CapLogTail,
				Status:     domain.StatusOK,
				Records: []domain.Record{
					{Fields: map[string]any{"message": "oom killed"}},
				},
			},
			{
				Source:     "prod-metrics",
				Capability: domain.CapTimeSeries,
				Status:     domain.StatusTimeout,
				Elapsed:    10 * time.Second,
			},
			{
				Source:     "warehouse",
				Capability: domain.CapStructuredQuery,
				Status:     domain.StatusError,
				Err:        "table not found",
			},
			{
				Source:     "cluster",
				Capability: domain.CapKeyLookup,
				Status:     domain.StatusSkipped,
			},
		},
	}
}

func TestService_Synthesize_BuildsReport(t *testing.T) {
	provider := &mockProvider{response: "  The checkout service is being OOM killed.  "}
	service := NewService(provider)

	report, err := service.Synthesize(context.Background(), synthBundle())

	require.NoError(t, err)
	assert.Equal(t, "inv-1", report.BundleID)
	assert.Equal(t, "The checkout service is being OOM killed.", report.Summary)
}

func TestService_Synthesize_GapsComputedFromBundle(t *testing.T) {
	provider := &mockProvider{response: "summary"}
	service := NewService(provider)

	report, err := service.Synthesize(context.Background(), synthBundle())

	require.NoError(t, err)
	require.Len(t, report.Gaps, 3)
	assert.Contains(t, report.Gaps[0], "prod-metrics")
	assert.Contains(t, report.Gaps[0], "timed out after 10s")
	assert.Contains(t, report.Gaps[1], "table not found")
	assert.Contains(t, report.Gaps[2], "skipped, source unavailable")
}

func TestService_Synthesize_EvidenceInPrompt(t *testing.T) {
	provider := &mockProvider{response: "summary"}
	service := NewService(provider)

	_, err := service.Synthesize(context.Background(), synthBundle())

	require.NoError(t, err)
	assert.Contains(t, provider.lastPrompt, "checkout 500s spiking")
	assert.Contains(t, provider.lastPrompt, "oom killed")
	assert.Contains(t, provider.lastPrompt, `"status": "timeout"`)
}

func TestService_Synthesize_SamplesLargeResults(t *testing.T) {
	records := make([]domain.Record, 50)
	for i := range records {
		records[i] = domain.Record{Fields: map[string]any{"row": i}}
	}
	bundle := &domain.EvidenceBundle{
		ID:     "inv-2",
		Intent: domain.InvestigationIntent{Description: "big one"},
		Results: []domain.SourceResult{
			{Source: "warehouse", Capability: domain.CapStructuredQuery, Status: domain.StatusOK, Records: records},
		},
	}
	provider := &mockProvider{response: "summary"}
	service := NewService(provider)

	_, err := service.Synthesize(context.Background(), bundle)

	require.NoError(t, err)
	assert.Contains(t, provider.lastPrompt, `"record_count": 50`)
	assert.NotContains(t, provider.lastPrompt, `"row": 49`, "sample should stop well before the full result")
}

func TestService_Synthesize_NilBundle(t *testing.T) {
	service := NewService(&mockProvider{})

	_, err := service.Synthesize(context.Background(), nil)

	assert.ErrorIs(t, err, domain.ErrSynthesisFailed)
}

func TestService_Synthesize_ProviderFailure(t *testing.T) {
	provider := &mockProvider{generateErr: errors.New("model overloaded")}
	service := NewService(provider)

	_, err := service.Synthesize(context.Background(), synthBundle())

	assert.ErrorIs(t, err, domain.ErrSynthesisFailed)
}

func TestStripFences(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"no fences", `{"a": 1}`, `{"a": 1}`},
		{"plain fences", "```\n{\"a\": 1}\n```", `{"a": 1}`},
		{"json fences", "```json\n{\"a\": 1}\n```", `{"a": 1}`},
		{"surrounding whitespace", "  {\"a\": 1}  ", `{"a": 1}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, stripFences(tt.input))
		})
	}
}

func TestFormatCallerContext_Empty(t *testing.T) {
	assert.Equal(t, "(none provided)", formatCallerContext(nil))
}

func TestFormatCallerContext_SortedKeys(t *testing.T) {
	got := formatCallerContext(map[string]string{"zone": "eu", "app": "checkout"})
	assert.Equal(t, "app: checkout\nzone: eu", got)
}
