package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opsquery/sleuth-cli/internal/core/domain"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func testBundle(id string) *domain.EvidenceBundle {
	return &domain.EvidenceBundle{
		ID: id,
		Intent: domain.InvestigationIntent{
			Category:    domain.IssueErrors,
			Description: "checkout errors spiking",
			Entities:    []string{"checkout"},
		},
		Plan: domain.InvestigationPlan{
			Queries: []domain.SubQuery{
				{Source: "prod-logs", Capability: domain.CapLogTail, Payload: "{}"},
			},
		},
		Results: []domain.SourceResult{
			{
				Source:     "prod-logs",
				Capability: domain.CapLogTail,
				Status:     domain.StatusOK,
				Records: []domain.Record{
					{
						Fields:     map[string]any{"message": "oom killed"},
						Source:     "prod-logs",
						Capability: domain.CapLogTail,
					},
				},
			},
		},
		Complete:  true,
		CreatedAt: time.Now().UTC().Truncate(time.Second),
	}
}

func TestStore_SaveAndGet(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()
	bundle := testBundle("inv-1")

	require.NoError(t, store.Save(ctx, bundle, nil))

	got, err := store.Get(ctx, "inv-1")
	require.NoError(t, err)
	assert.Equal(t, bundle.ID, got.ID)
	assert.Equal(t, bundle.Intent.Category, got.Intent.Category)
	assert.Equal(t, bundle.Intent.Description, got.Intent.Description)
	assert.True(t, got.Complete)
	require.Len(t, got.Results, 1)
	assert.Equal(t, "oom killed", got.Results[0].Records[0].Fields["message"])
}

func TestStore_SaveWithReport(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()
	report := &domain.Report{
		Summary: "memory pressure on checkout",
		Gaps:    []string{"prod-metrics timed out after 10s"},
	}

	require.NoError(t, store.Save(ctx, testBundle("inv-2"), report))

	got, err := store.GetReport(ctx, "inv-2")
	require.NoError(t, err)
	assert.Equal(t, "memory pressure on checkout", got.Summary)
	assert.Equal(t, []string{"prod-metrics timed out after 10s"}, got.Gaps)
}

func TestStore_Get_NotFound(t *testing.T) {
	store := testStore(t)

	_, err := store.Get(context.Background(), "ghost")

	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestStore_GetReport_NotFound(t *testing.T) {
	store := testStore(t)

	_, err := store.GetReport(context.Background(), "ghost")

	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestStore_GetReport_NoReportSaved(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()
	require.NoError(t, store.Save(ctx, testBundle("inv-3"), nil))

	_, err := store.GetReport(ctx, "inv-3")

	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestStore_Save_Upsert(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()
	bundle := testBundle("inv-4")
	require.NoError(t, store.Save(ctx, bundle, nil))

	bundle.Complete = false
	require.NoError(t, store.Save(ctx, bundle, &domain.Report{Summary: "second pass"}))

	got, err := store.Get(ctx, "inv-4")
	require.NoError(t, err)
	assert.False(t, got.Complete)

	report, err := store.GetReport(ctx, "inv-4")
	require.NoError(t, err)
	assert.Equal(t, "second pass", report.Summary)

	bundles, err := store.List(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, bundles, 1, "upsert must not duplicate rows")
}

func TestStore_List_NewestFirst(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	old := testBundle("inv-old")
	old.CreatedAt = time.Now().Add(-time.Hour).UTC()
	recent := testBundle("inv-recent")
	recent.CreatedAt = time.Now().UTC()

	require.NoError(t, store.Save(ctx, old, nil))
	require.NoError(t, store.Save(ctx, recent, nil))

	bundles, err := store.List(ctx, 10)
	require.NoError(t, err)
	require.Len(t, bundles, 2)
	assert.Equal(t, "inv-recent", bundles[0].ID)
	assert.Equal(t, "inv-old", bundles[1].ID)
}

func TestStore_List_Limit(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()
	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, store.Save(ctx, testBundle(id), nil))
	}

	bundles, err := store.List(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, bundles, 2)
}

func TestStore_List_Empty(t *testing.T) {
	store := testStore(t)

	bundles, err := store.List(context.Background(), 10)

	require.NoError(t, err)
	assert.Empty(t, bundles)
}

func TestStore_PersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	store, err := NewStore(dir)
	require.NoError(t, err)
	require.NoError(t, store.Save(context.Background(), testBundle("inv-5"), nil))
	require.NoError(t, store.Close())

	reopened, err := NewStore(dir)
	require.NoError(t, err)
	defer reopened.Close()

	got, err := reopened.Get(context.Background(), "inv-5")
	require.NoError(t, err)
	assert.Equal(t, "inv-5", got.ID)
}
