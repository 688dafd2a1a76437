package file

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opsquery/sleuth-cli/internal/core/domain"
	"github.com/opsquery/sleuth-cli/internal/core/ports/driven"
)

func TestSourceStore_ImplementsInterface(t *testing.T) {
	var _ driven.SourceConfigStore = (*SourceStore)(nil)
}

func TestSourceStore_LoadSources_MissingFile(t *testing.T) {
	dir := t.TempDir()
	store, err := NewSourceStore(dir)
	require.NoError(t, err)

	descriptors, err := store.LoadSources()

	require.NoError(t, err)
	assert.Nil(t, descriptors)
}

func TestSourceStore_LoadSources(t *testing.T) {
	dir := t.TempDir()
	content := `
[[sources]]
name = "prod-warehouse"
kind = "warehouse"
capabilities = ["structured-query"]
[sources.config]
project = "acme-prod"

[[sources]]
name = "prod-logs"
kind = "search-index"
capabilities = ["full-text-search"]
[sources.config]
url = "http://elastic.internal:9200"
index = "logs-*"
`
	err := os.WriteFile(filepath.Join(dir, "sources.toml"), []byte(content), 0600)
	require.NoError(t, err)

	store, err := NewSourceStore(dir)
	require.NoError(t, err)

	descriptors, err := store.LoadSources()
	require.NoError(t, err)
	require.Len(t, descriptors, 2)

	assert.Equal(t, "prod-warehouse", descriptors[0].Name)
	assert.Equal(t, domain.KindWarehouse, descriptors[0].Kind)
	assert.Equal(t, "acme-prod", descriptors[0].Config["project"])
	assert.Equal(t, domain.HealthUnknown, descriptors[0].Health)

	assert.Equal(t, "prod-logs", descriptors[1].Name)
	assert.Equal(t, domain.KindSearchIndex, descriptors[1].Kind)
	require.Len(t, descriptors[1].Capabilities, 1)
	assert.Equal(t, domain.CapFullTextSearch, descriptors[1].Capabilities[0])
}

func TestSourceStore_LoadSources_InvalidKind(t *testing.T) {
	dir := t.TempDir()
	content := `
[[sources]]
name = "mystery"
kind = "carrier-pigeon"
capabilities = ["full-text-search"]
`
	err := os.WriteFile(filepath.Join(dir, "sources.toml"), []byte(content), 0600)
	require.NoError(t, err)

	store, err := NewSourceStore(dir)
	require.NoError(t, err)

	_, err = store.LoadSources()
	assert.ErrorIs(t, err, domain.ErrUnsupportedKind)
}

func TestSourceStore_LoadSources_MissingName(t *testing.T) {
	dir := t.TempDir()
	content := `
[[sources]]
kind = "apm"
capabilities = ["time-series"]
`
	err := os.WriteFile(filepath.Join(dir, "sources.toml"), []byte(content), 0600)
	require.NoError(t, err)

	store, err := NewSourceStore(dir)
	require.NoError(t, err)

	_, err = store.LoadSources()
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestSourceStore_LoadSources_MalformedTOML(t *testing.T) {
	dir := t.TempDir()
	err := os.WriteFile(filepath.Join(dir, "sources.toml"), []byte("[[sources]\nbroken"), 0600)
	require.NoError(t, err)

	store, err := NewSourceStore(dir)
	require.NoError(t, err)

	_, err = store.LoadSources()
	assert.Error(t, err)
}

func TestSourceStore_Path(t *testing.T) {
	dir := t.TempDir()
	store, err := NewSourceStore(dir)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "sources.toml"), store.Path())
}

func TestSourceStore_Watch_NotifiesOnWrite(t *testing.T) {
	dir := t.TempDir()
	store, err := NewSourceStore(dir)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changes, err := store.Watch(ctx)
	require.NoError(t, err)

	err = os.WriteFile(store.Path(), []byte("[[sources]]\n"), 0600)
	require.NoError(t, err)

	select {
	case _, ok := <-changes:
		assert.True(t, ok)
	case <-time.After(3 * time.Second):
		t.Fatal("expected a change notification")
	}
}

func TestSourceStore_Watch_IgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	store, err := NewSourceStore(dir)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changes, err := store.Watch(ctx)
	require.NoError(t, err)

	err = os.WriteFile(filepath.Join(dir, "config.toml"), []byte("unrelated = true\n"), 0600)
	require.NoError(t, err)

	select {
	case <-changes:
		t.Fatal("unrelated file should not notify")
	case <-time.After(watchDebounce * 2):
	}
}

func TestSourceStore_Watch_ClosesOnCancel(t *testing.T) {
	dir := t.TempDir()
	store, err := NewSourceStore(dir)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	changes, err := store.Watch(ctx)
	require.NoError(t, err)

	cancel()

	select {
	case _, ok := <-changes:
		assert.False(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("channel should close when the context is cancelled")
	}
}
