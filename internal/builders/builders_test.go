package builders

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opsquery/sleuth-cli/internal/core/domain"
)

func testIntent() domain.InvestigationIntent {
	return domain.InvestigationIntent{
		Category:    domain.IssueErrors,
		Description: "checkout errors spiking",
		Window: domain.TimeRange{
			Start: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
			End:   time.Date(2026, 3, 1, 11, 0, 0, 0, time.UTC),
		},
		Entities: []string{"checkout"},
	}
}

func TestWarehouseBuilder_Build(t *testing.T) {
	b := NewWarehouseBuilder()
	desc := domain.SourceDescriptor{
		Name:   "dwh",
		Kind:   domain.KindWarehouse,
		Config: map[string]string{"table": "acme.prod.events"},
	}

	sql, err := b.Build(testIntent(), desc, domain.CapStructuredQuery)

	require.NoError(t, err)
	assert.Contains(t, sql, "FROM `acme.prod.events`")
	assert.Contains(t, sql, "event_time >= TIMESTAMP('2026-03-01 10:00:00')")
	assert.Contains(t, sql, "event_time <= TIMESTAMP('2026-03-01 11:00:00')")
	assert.Contains(t, sql, "service IN ('checkout')")
	assert.Contains(t, sql, "LIMIT 100")
}

func TestWarehouseBuilder_Build_MissingTable(t *testing.T) {
	b := NewWarehouseBuilder()
	desc := domain.SourceDescriptor{Name: "dwh", Kind: domain.KindWarehouse}

	_, err := b.Build(testIntent(), desc, domain.CapStructuredQuery)

	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestWarehouseBuilder_Build_UnsupportedCapability(t *testing.T) {
	b := NewWarehouseBuilder()
	desc := domain.SourceDescriptor{
		Name:   "dwh",
		Kind:   domain.KindWarehouse,
		Config: map[string]string{"table": "acme.prod.events"},
	}

	_, err := b.Build(testIntent(), desc, domain.CapLogTail)

	assert.ErrorIs(t, err, domain.ErrUnsupportedCapability)
}

func TestWarehouseBuilder_Build_EscapesQuotes(t *testing.T) {
	b := NewWarehouseBuilder()
	desc := domain.SourceDescriptor{
		Name:   "dwh",
		Kind:   domain.KindWarehouse,
		Config: map[string]string{"table": "acme.prod.events"},
	}
	intent := testIntent()
	intent.Entities = []string{"o'brien-svc"}

	sql, err := b.Build(intent, desc, domain.CapStructuredQuery)

	require.NoError(t, err)
	assert.Contains(t, sql, "'o''brien-svc'")
}

func TestRelationalBuilder_Build_StructuredQuery(t *testing.T) {
	b := NewRelationalBuilder()
	desc := domain.SourceDescriptor{Name: "teamdb", Kind: domain.KindRelational}

	sql, err := b.Build(testIntent(), desc, domain.CapStructuredQuery)

	require.NoError(t, err)
	assert.Contains(t, sql, "FROM events")
	assert.Contains(t, sql, "created_at >=")
	assert.Contains(t, sql, "service IN ('checkout')")
	assert.Contains(t, sql, "ORDER BY created_at DESC")
}

func TestRelationalBuilder_Build_KeyLookup(t *testing.T) {
	b := NewRelationalBuilder()
	desc := domain.SourceDescriptor{
		Name:   "teamdb",
		Kind:   domain.KindRelational,
		Config: map[string]string{"key_column": "order_id"},
	}

	sql, err := b.Build(testIntent(), desc, domain.CapKeyLookup)

	require.NoError(t, err)
	assert.Contains(t, sql, "order_id IN ('checkout')")
}

func TestRelationalBuilder_Build_KeyLookupWithoutEntities(t *testing.T) {
	b := NewRelationalBuilder()
	desc := domain.SourceDescriptor{Name: "teamdb", Kind: domain.KindRelational}
	intent := testIntent()
	intent.Entities = nil

	sql, err := b.Build(intent, desc, domain.CapKeyLookup)

	require.NoError(t, err)
	assert.Contains(t, sql, "ORDER BY created_at DESC")
}

func TestRelationalBuilder_Build_UnsupportedCapability(t *testing.T) {
	b := NewRelationalBuilder()
	desc := domain.SourceDescriptor{Name: "teamdb", Kind: domain.KindRelational}

	_, err := b.Build(testIntent(), desc, domain.CapTimeSeries)

	assert.ErrorIs(t, err, domain.ErrUnsupportedCapability)
}

func TestSearchIndexBuilder_Build_FullTextSearch(t *testing.T) {
	b := NewSearchIndexBuilder()
	desc := domain.SourceDescriptor{Name: "prod-logs", Kind: domain.KindSearchIndex}

	payload, err := b.Build(testIntent(), desc, domain.CapFullTextSearch)

	require.NoError(t, err)
	var body map[string]any
	require.NoError(t, json.Unmarshal([]byte(payload), &body))
	assert.EqualValues(t, 100, body["size"])

	// Entities are folded into the match text.
	assert.Contains(t, payload, "checkout")
	assert.Contains(t, payload, "checkout errors spiking")
	assert.Contains(t, payload, "2026-03-01T10:00:00Z")
}

func TestSearchIndexBuilder_Build_LogTail(t *testing.T) {
	b := NewSearchIndexBuilder()
	desc := domain.SourceDescriptor{Name: "prod-logs", Kind: domain.KindSearchIndex}

	payload, err := b.Build(testIntent(), desc, domain.CapLogTail)

	require.NoError(t, err)
	assert.Contains(t, payload, `"terms"`)
	assert.Contains(t, payload, "checkout")
}

func TestSearchIndexBuilder_Build_LogTailWithoutEntities(t *testing.T) {
	b := NewSearchIndexBuilder()
	desc := domain.SourceDescriptor{Name: "prod-logs", Kind: domain.KindSearchIndex}
	intent := testIntent()
	intent.Entities = nil

	payload, err := b.Build(intent, desc, domain.CapLogTail)

	require.NoError(t, err)
	assert.Contains(t, payload, "match_all")
}

func TestSearchIndexBuilder_Build_CustomFields(t *testing.T) {
	b := NewSearchIndexBuilder()
	desc := domain.SourceDescriptor{
		Name: "prod-logs",
		Kind: domain.KindSearchIndex,
		Config: map[string]string{
			"timestamp_field": "ts",
			"message_field":   "body",
		},
	}

	payload, err := b.Build(testIntent(), desc, domain.CapFullTextSearch)

	require.NoError(t, err)
	assert.Contains(t, payload, `"ts"`)
	assert.Contains(t, payload, `"body"`)
}

func TestSearchIndexBuilder_Build_UnsupportedCapability(t *testing.T) {
	b := NewSearchIndexBuilder()
	desc := domain.SourceDescriptor{Name: "prod-logs", Kind: domain.KindSearchIndex}

	_, err := b.Build(testIntent(), desc, domain.CapStructuredQuery)

	assert.ErrorIs(t, err, domain.ErrUnsupportedCapability)
}

func TestAPMBuilder_Build(t *testing.T) {
	b := NewAPMBuilder()
	desc := domain.SourceDescriptor{Name: "prod-apm", Kind: domain.KindAPM}

	payload, err := b.Build(testIntent(), desc, domain.CapTimeSeries)

	require.NoError(t, err)
	var q apmQuery
	require.NoError(t, json.Unmarshal([]byte(payload), &q))
	assert.Equal(t, "avg:trace.http.request.duration{service:checkout}", q.Query)
	assert.Equal(t, testIntent().Window.Start.Unix(), q.From)
	assert.Equal(t, testIntent().Window.End.Unix(), q.To)
}

func TestAPMBuilder_Build_NoEntities(t *testing.T) {
	b := NewAPMBuilder()
	desc := domain.SourceDescriptor{
		Name:   "prod-apm",
		Kind:   domain.KindAPM,
		Config: map[string]string{"metric": "system.cpu.user", "aggregator": "max"},
	}
	intent := testIntent()
	intent.Entities = nil

	payload, err := b.Build(intent, desc, domain.CapTimeSeries)

	require.NoError(t, err)
	var q apmQuery
	require.NoError(t, json.Unmarshal([]byte(payload), &q))
	assert.Equal(t, "max:system.cpu.user{*}", q.Query)
}

func TestAPMBuilder_Build_UnsupportedCapability(t *testing.T) {
	b := NewAPMBuilder()
	desc := domain.SourceDescriptor{Name: "prod-apm", Kind: domain.KindAPM}

	_, err := b.Build(testIntent(), desc, domain.CapKeyLookup)

	assert.ErrorIs(t, err, domain.ErrUnsupportedCapability)
}

func TestOrchestrationBuilder_Build_KeyLookup(t *testing.T) {
	b := NewOrchestrationBuilder()
	desc := domain.SourceDescriptor{
		Name:   "prod-cluster",
		Kind:   domain.KindOrchestration,
		Config: map[string]string{"namespace": "payments"},
	}

	payload, err := b.Build(testIntent(), desc, domain.CapKeyLookup)

	require.NoError(t, err)
	var q orchestrationQuery
	require.NoError(t, json.Unmarshal([]byte(payload), &q))
	assert.Equal(t, "pods", q.Resource)
	assert.Equal(t, "payments", q.Namespace)
	assert.Equal(t, []string{"checkout"}, q.Workloads)
}

func TestOrchestrationBuilder_Build_LogTail(t *testing.T) {
	b := NewOrchestrationBuilder()
	desc := domain.SourceDescriptor{Name: "prod-cluster", Kind: domain.KindOrchestration}

	payload, err := b.Build(testIntent(), desc, domain.CapLogTail)

	require.NoError(t, err)
	var q orchestrationQuery
	require.NoError(t, json.Unmarshal([]byte(payload), &q))
	assert.Equal(t, "events", q.Resource)
	assert.Equal(t, "default", q.Namespace)
}

func TestOrchestrationBuilder_Build_UnsupportedCapability(t *testing.T) {
	b := NewOrchestrationBuilder()
	desc := domain.SourceDescriptor{Name: "prod-cluster", Kind: domain.KindOrchestration}

	_, err := b.Build(testIntent(), desc, domain.CapTimeSeries)

	assert.ErrorIs(t, err, domain.ErrUnsupportedCapability)
}

func TestSearchIndexBuilder_Build_OpenWindowUsesNow(t *testing.T) {
	b := NewSearchIndexBuilder()
	desc := domain.SourceDescriptor{Name: "prod-logs", Kind: domain.KindSearchIndex}
	intent := testIntent()
	intent.Window.End = time.Time{}

	payload, err := b.Build(intent, desc, domain.CapLogTail)

	require.NoError(t, err)
	// The open end resolves to roughly now, so the lte bound lands in
	// the current year rather than the intent's start year.
	assert.NotContains(t, payload, `"lte":"0001-`)
}
