package memory

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opsquery/sleuth-cli/internal/core/domain"
)

func bundleWithID(id string) *domain.EvidenceBundle {
	return &domain.EvidenceBundle{
		ID: id,
		Intent: domain.InvestigationIntent{
			Category:    domain.IssueErrors,
			Description: "api 500s after deploy",
		},
		Complete:  true,
		CreatedAt: time.Now().UTC(),
	}
}

func TestEvidenceStore_SaveAndGet(t *testing.T) {
	store := NewEvidenceStore()
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, bundleWithID("inv-1"), nil))

	got, err := store.Get(ctx, "inv-1")
	require.NoError(t, err)
	assert.Equal(t, "inv-1", got.ID)
	assert.Equal(t, domain.IssueErrors, got.Intent.Category)
}

func TestEvidenceStore_Save_RequiresID(t *testing.T) {
	store := NewEvidenceStore()

	err := store.Save(context.Background(), &domain.EvidenceBundle{}, nil)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	err = store.Save(context.Background(), nil, nil)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestEvidenceStore_Get_NotFound(t *testing.T) {
	store := NewEvidenceStore()

	_, err := store.Get(context.Background(), "ghost")

	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestEvidenceStore_GetReturnsCopy(t *testing.T) {
	store := NewEvidenceStore()
	ctx := context.Background()
	require.NoError(t, store.Save(ctx, bundleWithID("inv-1"), nil))

	first, err := store.Get(ctx, "inv-1")
	require.NoError(t, err)
	first.Complete = false

	second, err := store.Get(ctx, "inv-1")
	require.NoError(t, err)
	assert.True(t, second.Complete, "mutating a returned bundle must not affect the store")
}

func TestEvidenceStore_GetReport(t *testing.T) {
	store := NewEvidenceStore()
	ctx := context.Background()
	report := &domain.Report{Summary: "pods restarting on oom"}

	require.NoError(t, store.Save(ctx, bundleWithID("inv-1"), report))

	got, err := store.GetReport(ctx, "inv-1")
	require.NoError(t, err)
	assert.Equal(t, "pods restarting on oom", got.Summary)
}

func TestEvidenceStore_GetReport_NoReport(t *testing.T) {
	store := NewEvidenceStore()
	ctx := context.Background()
	require.NoError(t, store.Save(ctx, bundleWithID("inv-1"), nil))

	_, err := store.GetReport(ctx, "inv-1")

	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestEvidenceStore_List_NewestFirst(t *testing.T) {
	store := NewEvidenceStore()
	ctx := context.Background()

	old := bundleWithID("inv-old")
	old.CreatedAt = time.Now().Add(-time.Hour)
	recent := bundleWithID("inv-recent")

	require.NoError(t, store.Save(ctx, old, nil))
	require.NoError(t, store.Save(ctx, recent, nil))

	bundles, err := store.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, bundles, 2)
	assert.Equal(t, "inv-recent", bundles[0].ID)
	assert.Equal(t, "inv-old", bundles[1].ID)
}

func TestEvidenceStore_List_Limit(t *testing.T) {
	store := NewEvidenceStore()
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		b := bundleWithID(fmt.Sprintf("inv-%d", i))
		b.CreatedAt = time.Now().Add(time.Duration(i) * time.Minute)
		require.NoError(t, store.Save(ctx, b, nil))
	}

	bundles, err := store.List(ctx, 3)
	require.NoError(t, err)
	assert.Len(t, bundles, 3)
}

func TestEvidenceStore_ConcurrentAccess(t *testing.T) {
	store := NewEvidenceStore()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("inv-%d", i)
			_ = store.Save(ctx, bundleWithID(id), nil)
			_, _ = store.Get(ctx, id)
			_, _ = store.List(ctx, 0)
		}(i)
	}
	wg.Wait()

	bundles, err := store.List(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, bundles, 50)
}
