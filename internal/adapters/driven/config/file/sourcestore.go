package file

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/pelletier/go-toml/v2"

	"github.com/opsquery/sleuth-cli/internal/core/domain"
	"github.com/opsquery/sleuth-cli/internal/core/ports/driven"
)

// Ensure SourceStore implements the interface.
var _ driven.SourceConfigStore = (*SourceStore)(nil)

// watchDebounce batches rapid saves from editors into one notification.
const watchDebounce = 500 * time.Millisecond

// SourceStore is a TOML-based implementation of driven.SourceConfigStore.
// Sources are declared in sources.toml within the sleuth config directory:
//
//	[[sources]]
//	name = "prod-warehouse"
//	kind = "warehouse"
//	capabilities = ["structured-query"]
//	[sources.config]
//	project = "acme-prod"
type SourceStore struct {
	filePath string
}

// sourcesFile is the on-disk TOML layout.
type sourcesFile struct {
	Sources []sourceEntry `toml:"sources"`
}

// sourceEntry is one declared source.
type sourceEntry struct {
	Name         string            `toml:"name"`
	Kind         string            `toml:"kind"`
	Capabilities []string          `toml:"capabilities"`
	Config       map[string]string `toml:"config"`
}

// NewSourceStore creates a TOML-based source config store.
// If configDir is empty, defaults to ~/.sleuth/sources.toml.
func NewSourceStore(configDir string) (*SourceStore, error) {
	if configDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, err
		}
		configDir = filepath.Join(home, ".sleuth")
	}

	if err := os.MkdirAll(configDir, 0700); err != nil {
		return nil, err
	}

	return &SourceStore{
		filePath: filepath.Join(configDir, "sources.toml"),
	}, nil
}

// LoadSources reads all configured source descriptors.
// A missing file is not an error: it means no sources are configured yet.
func (s *SourceStore) LoadSources() ([]domain.SourceDescriptor, error) {
	data, err := os.ReadFile(s.filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read %s: %w", s.filePath, err)
	}

	var parsed sourcesFile
	if err := toml.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("parse %s: %w", s.filePath, err)
	}

	descriptors := make([]domain.SourceDescriptor, 0, len(parsed.Sources))
	for _, entry := range parsed.Sources {
		caps := make(domain.CapabilitySet, 0, len(entry.Capabilities))
		for _, c := range entry.Capabilities {
			caps = append(caps, domain.Capability(c))
		}

		desc := domain.SourceDescriptor{
			Name:         entry.Name,
			Kind:         domain.SourceKind(entry.Kind),
			Config:       entry.Config,
			Capabilities: caps,
			Health:       domain.HealthUnknown,
		}
		if err := desc.Validate(); err != nil {
			return nil, fmt.Errorf("%s: %w", s.filePath, err)
		}
		descriptors = append(descriptors, desc)
	}

	return descriptors, nil
}

// Watch reports when sources.toml changes on disk. Events are debounced
// so one editor save produces one notification. The returned channel
// closes when the context is cancelled.
func (s *SourceStore) Watch(ctx context.Context) (<-chan struct{}, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}

	// Watch the directory, not the file: editors replace files on save
	// and a file watch dies with the old inode.
	if err := watcher.Add(filepath.Dir(s.filePath)); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("watch %s: %w", filepath.Dir(s.filePath), err)
	}

	changes := make(chan struct{}, 1)

	go func() {
		defer close(changes)
		defer watcher.Close()

		var pending bool
		debounce := time.NewTimer(watchDebounce)
		if !debounce.Stop() {
			<-debounce.C
		}
		defer debounce.Stop()

		for {
			select {
			case <-ctx.Done():
				return

			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Name != s.filePath {
					continue
				}
				if !event.Op.Has(fsnotify.Write) && !event.Op.Has(fsnotify.Create) && !event.Op.Has(fsnotify.Rename) {
					continue
				}
				if !pending {
					pending = true
					debounce.Reset(watchDebounce)
				}

			case <-debounce.C:
				pending = false
				select {
				case changes <- struct{}{}:
				default:
					// Consumer has not drained the previous notification.
				}

			case _, ok := <-watcher.Errors:
				if !ok {
					return
				}
			}
		}
	}()

	return changes, nil
}

// Path returns the source configuration file path.
func (s *SourceStore) Path() string {
	return s.filePath
}
