package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/opsquery/sleuth-cli/internal/adapters/driven/storage/sqlite/migrations"
	"github.com/opsquery/sleuth-cli/internal/core/domain"
	"github.com/opsquery/sleuth-cli/internal/core/ports/driven"
)

// Ensure Store implements the interface.
var _ driven.EvidenceStore = (*Store)(nil)

// Store is a SQLite-based implementation of driven.EvidenceStore.
type Store struct {
	db   *sql.DB
	path string
}

// NewStore creates a new SQLite store at the specified data directory.
// If dataDir is empty, defaults to ~/.sleuth/data/investigations.db.
func NewStore(dataDir string) (*Store, error) {
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}
		dataDir = filepath.Join(home, ".sleuth", "data")
	}

	// Ensure directory exists
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, "investigations.db")

	// Open database with WAL mode for better concurrency
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{
		db:   db,
		path: dbPath,
	}

	// Run migrations
	if err := s.migrate(migrations.FS); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// migrate applies any unapplied .up.sql migrations in version order.
func (s *Store) migrate(fsys embed.FS) error {
	// Ensure schema_migrations table exists
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	// Get current version
	var currentVersion int
	row := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("getting current version: %w", err)
	}

	// Find all up migrations
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	// Sort and run migrations
	var upFiles []string
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasSuffix(name, ".up.sql") {
			upFiles = append(upFiles, name)
		}
	}
	sort.Strings(upFiles)

	for _, name := range upFiles {
		// Extract version number (e.g., "001_initial.up.sql" -> 1)
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil {
			continue // Skip files that don't match pattern
		}

		if version <= currentVersion {
			continue // Already applied
		}

		// Read and execute migration
		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}

		if _, err := s.db.Exec(string(content)); err != nil {
			return fmt.Errorf("executing migration %s: %w", name, err)
		}

		if _, err := s.db.Exec("INSERT INTO schema_migrations (version) VALUES (?)", version); err != nil {
			return fmt.Errorf("recording migration %s: %w", name, err)
		}
	}

	return nil
}

// Save stores a bundle and the report synthesised from it.
func (s *Store) Save(ctx context.Context, bundle *domain.EvidenceBundle, report *domain.Report) error {
	if bundle == nil || bundle.ID == "" {
		return fmt.Errorf("%w: bundle must have an ID", domain.ErrInvalidInput)
	}

	intentJSON, err := json.Marshal(bundle.Intent)
	if err != nil {
		return fmt.Errorf("marshalling intent: %w", err)
	}
	planJSON, err := json.Marshal(bundle.Plan)
	if err != nil {
		return fmt.Errorf("marshalling plan: %w", err)
	}
	resultsJSON, err := json.Marshal(bundle.Results)
	if err != nil {
		return fmt.Errorf("marshalling results: %w", err)
	}

	var reportJSON sql.NullString
	if report != nil {
		encoded, err := json.Marshal(report)
		if err != nil {
			return fmt.Errorf("marshalling report: %w", err)
		}
		reportJSON = sql.NullString{String: string(encoded), Valid: true}
	}

	createdAt := bundle.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO investigations (id, category, description, intent, plan, results, complete, report, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			results = excluded.results,
			complete = excluded.complete,
			report = excluded.report
	`, bundle.ID, string(bundle.Intent.Category), bundle.Intent.Description,
		string(intentJSON), string(planJSON), string(resultsJSON),
		bundle.Complete, reportJSON, createdAt)

	if err != nil {
		return fmt.Errorf("saving investigation: %w", err)
	}
	return nil
}

// Get retrieves a bundle by investigation ID.
func (s *Store) Get(ctx context.Context, id string) (*domain.EvidenceBundle, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, intent, plan, results, complete, created_at
		FROM investigations WHERE id = ?
	`, id)

	bundle, err := scanBundle(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return bundle, nil
}

// List returns the most recent investigations, newest first.
func (s *Store) List(ctx context.Context, limit int) ([]domain.EvidenceBundle, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, intent, plan, results, complete, created_at
		FROM investigations
		ORDER BY created_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying investigations: %w", err)
	}
	defer rows.Close()

	var bundles []domain.EvidenceBundle //nolint:prealloc // size unknown from query
	for rows.Next() {
		bundle, err := scanBundle(rows.Scan)
		if err != nil {
			return nil, err
		}
		bundles = append(bundles, *bundle)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating investigations: %w", err)
	}

	return bundles, nil
}

// GetReport retrieves the stored report for an investigation.
// Returns domain.ErrNotFound when the investigation is absent or has no report.
func (s *Store) GetReport(ctx context.Context, id string) (*domain.Report, error) {
	row := s.db.QueryRowContext(ctx, "SELECT report FROM investigations WHERE id = ?", id)

	var reportJSON sql.NullString
	if err := row.Scan(&reportJSON); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scanning report: %w", err)
	}
	if !reportJSON.Valid {
		return nil, domain.ErrNotFound
	}

	var report domain.Report
	if err := json.Unmarshal([]byte(reportJSON.String), &report); err != nil {
		return nil, fmt.Errorf("unmarshaling report: %w", err)
	}
	return &report, nil
}

// scanBundle reads one investigation row into a bundle.
func scanBundle(scan func(dest ...any) error) (*domain.EvidenceBundle, error) {
	var bundle domain.EvidenceBundle
	var intentJSON, planJSON, resultsJSON string
	var createdAt sql.NullTime

	if err := scan(&bundle.ID, &intentJSON, &planJSON, &resultsJSON, &bundle.Complete, &createdAt); err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(intentJSON), &bundle.Intent); err != nil {
		return nil, fmt.Errorf("unmarshaling intent: %w", err)
	}
	if err := json.Unmarshal([]byte(planJSON), &bundle.Plan); err != nil {
		return nil, fmt.Errorf("unmarshaling plan: %w", err)
	}
	if err := json.Unmarshal([]byte(resultsJSON), &bundle.Results); err != nil {
		return nil, fmt.Errorf("unmarshaling results: %w", err)
	}
	if createdAt.Valid {
		bundle.CreatedAt = createdAt.Time
	}

	return &bundle, nil
}
