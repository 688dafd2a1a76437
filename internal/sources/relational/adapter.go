// Package relational provides the per-team relational database source
// adapter over database/sql.
package relational

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/opsquery/sleuth-cli/internal/core/domain"
	"github.com/opsquery/sleuth-cli/internal/core/ports/driven"
)

// Ensure Adapter implements the interface.
var _ driven.SourceAdapter = (*Adapter)(nil)

// probeTimeout bounds the liveness ping.
const probeTimeout = 3 * time.Second

// Adapter runs SQL sub-queries against one relational database session.
//
// Config keys:
//   - dsn: data source name (required)
//   - driver: database/sql driver name (default "sqlite")
//
// Execute calls are serialised with an internal mutex: the adapter owns
// a single session and most database sessions are not safe for
// concurrent use.
type Adapter struct {
	desc domain.SourceDescriptor

	mu        sync.Mutex
	db        *sql.DB
	connected bool
	closed    bool
}

// New creates a relational adapter from a descriptor.
func New(desc domain.SourceDescriptor) (*Adapter, error) {
	if desc.Config["dsn"] == "" {
		return nil, fmt.Errorf("%w: relational source %q missing dsn config", domain.ErrInvalidInput, desc.Name)
	}
	return &Adapter{desc: desc}, nil
}

// Name returns the logical source name.
func (a *Adapter) Name() string {
	return a.desc.Name
}

// Kind returns the backend class.
func (a *Adapter) Kind() domain.SourceKind {
	return domain.KindRelational
}

// Capabilities returns the declared capability set.
func (a *Adapter) Capabilities() domain.CapabilitySet {
	return a.desc.Capabilities
}

// Connect opens and pings the database. Idempotent.
func (a *Adapter) Connect(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return domain.ErrAdapterClosed
	}
	if a.connected {
		return nil
	}

	driver := a.desc.Config["driver"]
	if driver == "" {
		driver = "sqlite"
	}

	db, err := sql.Open(driver, a.desc.Config["dsn"])
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrConnectionFailed, err)
	}
	// One session, serialised by the adapter.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return fmt.Errorf("%w: %w", domain.ErrConnectionFailed, err)
	}

	a.db = db
	a.connected = true
	return nil
}

// Probe pings the database. Never errors.
func (a *Adapter) Probe(ctx context.Context) domain.HealthStatus {
	a.mu.Lock()
	db := a.db
	a.mu.Unlock()

	if db == nil {
		return domain.HealthUnknown
	}

	pctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	if err := db.PingContext(pctx); err != nil {
		return domain.HealthUnreachable
	}
	return domain.HealthHealthy
}

// Execute runs one SQL sub-query and scans every row into a
// field-name-keyed record. Query cancellation rides on the context.
func (a *Adapter) Execute(ctx context.Context, q domain.SubQuery) (*driven.QueryResult, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return nil, domain.ErrAdapterClosed
	}
	if !a.connected {
		return nil, fmt.Errorf("%w: not connected", domain.ErrConnectionFailed)
	}

	rows, err := a.db.QueryContext(ctx, q.Payload)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil {
			return nil, context.DeadlineExceeded
		}
		return nil, fmt.Errorf("%w: %w", domain.ErrBackendError, err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrBackendError, err)
	}

	var out []map[string]any
	for rows.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("%w: %w", domain.ErrBackendError, err)
		}

		record := make(map[string]any, len(columns))
		for i, col := range columns {
			record[col] = normaliseValue(values[i])
		}
		out = append(out, record)
	}
	if err := rows.Err(); err != nil {
		if errors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil {
			return nil, context.DeadlineExceeded
		}
		return nil, fmt.Errorf("%w: %w", domain.ErrBackendError, err)
	}

	return &driven.QueryResult{Rows: out}, nil
}

// LeaksOnTimeout reports that cancelled queries stop consuming the
// session; database/sql propagates context cancellation to the driver.
func (a *Adapter) LeaksOnTimeout() bool {
	return false
}

// Close releases the database session.
func (a *Adapter) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return nil
	}
	a.closed = true
	a.connected = false

	if a.db != nil {
		err := a.db.Close()
		a.db = nil
		return err
	}
	return nil
}

// normaliseValue converts driver byte slices to strings so records are
// JSON-friendly whatever the driver returns.
func normaliseValue(v any) any {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}
