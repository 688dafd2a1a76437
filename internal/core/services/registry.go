package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/opsquery/sleuth-cli/internal/core/domain"
	"github.com/opsquery/sleuth-cli/internal/core/ports/driven"
	"github.com/opsquery/sleuth-cli/internal/core/ports/driving"
	"github.com/opsquery/sleuth-cli/internal/logger"
)

// Ensure Registry implements the catalog interface.
var _ driving.SourceCatalog = (*Registry)(nil)

// registration pairs a descriptor with its live adapter.
type registration struct {
	desc    domain.SourceDescriptor
	adapter driven.SourceAdapter
}

// Registry is the central, thread-safe catalog of source adapters.
//
// The registry exclusively owns adapter instances: it is the only
// component permitted to create or dispose them. Other components borrow
// references via Get for the duration of one operation. The registry is
// created once at startup and torn down explicitly with Close, which
// disconnects every adapter.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*registration
	order   []string // registration order, for deterministic listings
}

// NewRegistry creates an empty source registry.
func NewRegistry() *Registry {
	return &Registry{
		entries: make(map[string]*registration),
	}
}

// Register adds a source and its adapter under the descriptor's name.
// Returns domain.ErrDuplicateSource if the name is already registered;
// the original registration is left untouched.
func (r *Registry) Register(desc domain.SourceDescriptor, adapter driven.SourceAdapter) error {
	if err := desc.Validate(); err != nil {
		return err
	}
	if adapter == nil {
		return fmt.Errorf("%w: nil adapter for source %q", domain.ErrInvalidInput, desc.Name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.entries[desc.Name]; exists {
		return fmt.Errorf("%w: %q", domain.ErrDuplicateSource, desc.Name)
	}

	if desc.Health == "" {
		desc.Health = domain.HealthUnknown
	}
	r.entries[desc.Name] = &registration{desc: desc, adapter: adapter}
	r.order = append(r.order, desc.Name)

	logger.Info("Registered source %q (%s)", desc.Name, desc.Kind)
	return nil
}

// Deregister disconnects and removes a source.
// Returns domain.ErrNotFound if the name is not registered.
func (r *Registry) Deregister(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	reg, ok := r.entries[name]
	if !ok {
		return fmt.Errorf("%w: %q", domain.ErrNotFound, name)
	}

	delete(r.entries, name)
	for i, n := range r.order {
		if n == name {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}

	if err := reg.adapter.Close(); err != nil {
		return fmt.Errorf("close adapter %q: %w", name, err)
	}

	logger.Info("Deregistered source %q", name)
	return nil
}

// Get returns a borrowed adapter reference by explicit name, bypassing
// health filtering. Callers must not retain the reference past the
// current operation. Returns domain.ErrNotFound if absent.
func (r *Registry) Get(name string) (driven.SourceAdapter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	reg, ok := r.entries[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", domain.ErrNotFound, name)
	}
	return reg.adapter, nil
}

// Descriptor returns a copy of the descriptor for a registered source.
// Returns domain.ErrNotFound if absent.
func (r *Registry) Descriptor(name string) (*domain.SourceDescriptor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	reg, ok := r.entries[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", domain.ErrNotFound, name)
	}
	desc := reg.desc
	return &desc, nil
}

// ListByCapability returns descriptors for every source declaring the
// capability whose health permits routing, in registration order.
// A source in unreachable status is never returned; unprobed (unknown)
// sources are candidates until a probe says otherwise. Callers needing
// to bypass health filtering must use Get by explicit name.
func (r *Registry) ListByCapability(cap domain.Capability) []domain.SourceDescriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []domain.SourceDescriptor
	for _, name := range r.order {
		reg := r.entries[name]
		if !reg.desc.Capabilities.Has(cap) {
			continue
		}
		if !reg.desc.Health.Routable() {
			continue
		}
		out = append(out, reg.desc)
	}
	return out
}

// List returns descriptors for all registered sources, in registration order.
func (r *Registry) List(_ context.Context) []domain.SourceDescriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.SourceDescriptor, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.entries[name].desc)
	}
	return out
}

// Probe concurrently probes every registered adapter, updates health
// statuses, and returns the refreshed descriptors in registration order.
// Individual probe failures update status; they never abort the sweep.
func (r *Registry) Probe(ctx context.Context) []domain.SourceDescriptor {
	r.mu.RLock()
	names := make([]string, len(r.order))
	copy(names, r.order)
	adapters := make(map[string]driven.SourceAdapter, len(names))
	for _, name := range names {
		adapters[name] = r.entries[name].adapter
	}
	r.mu.RUnlock()

	statuses := make(map[string]domain.HealthStatus, len(names))
	var (
		wg sync.WaitGroup
		sm sync.Mutex
	)
	for _, name := range names {
		wg.Add(1)
		go func(name string, adapter driven.SourceAdapter) {
			defer wg.Done()
			// Probe never errors; a panicking adapter reads as unreachable.
			status := domain.HealthUnreachable
			func() {
				defer func() {
					if rec := recover(); rec != nil {
						logger.Warn("Probe of %q panicked: %v", name, rec)
					}
				}()
				status = adapter.Probe(ctx)
			}()
			sm.Lock()
			statuses[name] = status
			sm.Unlock()
		}(name, adapters[name])
	}
	wg.Wait()

	now := time.Now()
	r.mu.Lock()
	for name, status := range statuses {
		// A source deregistered mid-sweep stays deregistered.
		if reg, ok := r.entries[name]; ok {
			reg.desc.Health = status
			reg.desc.LastProbed = now
		}
	}
	r.mu.Unlock()

	return r.List(ctx)
}

// Close disconnects every adapter and empties the registry.
// Called once at shutdown.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var errs []error
	for _, name := range r.order {
		if err := r.entries[name].adapter.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close adapter %q: %w", name, err))
		}
	}
	r.entries = make(map[string]*registration)
	r.order = nil

	return errors.Join(errs...)
}
