package builders

import (
	"fmt"
	"strings"
	"time"

	"github.com/opsquery/sleuth-cli/internal/core/domain"
	"github.com/opsquery/sleuth-cli/internal/core/ports/driven"
)

// Ensure WarehouseBuilder implements the port.
var _ driven.QueryBuilder = (*WarehouseBuilder)(nil)

// warehouseRowLimit caps rows fetched from the warehouse per sub-query.
const warehouseRowLimit = 100

// WarehouseBuilder synthesises SQL for analytics warehouses.
//
// Descriptor config keys:
//   - table: fully-qualified events table (required)
//   - timestamp_column: event time column (default "event_time")
//   - entity_column: service/entity name column (default "service")
type WarehouseBuilder struct{}

// NewWarehouseBuilder creates a warehouse query builder.
func NewWarehouseBuilder() *WarehouseBuilder {
	return &WarehouseBuilder{}
}

// Kind returns the source kind this builder serves.
func (b *WarehouseBuilder) Kind() domain.SourceKind {
	return domain.KindWarehouse
}

// Build produces a SQL payload for the capability.
func (b *WarehouseBuilder) Build(
	intent domain.InvestigationIntent, desc domain.SourceDescriptor, cap domain.Capability,
) (string, error) {
	if cap != domain.CapStructuredQuery {
		return "", fmt.Errorf("%w: warehouse cannot serve %q", domain.ErrUnsupportedCapability, cap)
	}

	table := desc.Config["table"]
	if table == "" {
		return "", fmt.Errorf("%w: source %q missing table config", domain.ErrInvalidInput, desc.Name)
	}
	tsCol := configOr(desc.Config, "timestamp_column", "event_time")
	entityCol := configOr(desc.Config, "entity_column", "service")

	var sb strings.Builder
	fmt.Fprintf(&sb, "SELECT * FROM `%s`", table)
	fmt.Fprintf(&sb, " WHERE %s >= TIMESTAMP('%s')", tsCol, sqlTime(intent.Window.Start))
	fmt.Fprintf(&sb, " AND %s <= TIMESTAMP('%s')", tsCol, sqlTime(intent.Window.EffectiveEnd(time.Now().UTC())))
	if clause := entityClause(entityCol, intent.Entities); clause != "" {
		fmt.Fprintf(&sb, " AND %s", clause)
	}
	fmt.Fprintf(&sb, " ORDER BY %s DESC LIMIT %d", tsCol, warehouseRowLimit)

	return sb.String(), nil
}

// sqlTime formats a timestamp for SQL literals.
func sqlTime(t time.Time) string {
	return t.UTC().Format("2006-01-02 15:04:05")
}

// entityClause builds an IN clause for the intent's entities.
// Returns empty string when there are no entities.
func entityClause(column string, entities []string) string {
	if len(entities) == 0 {
		return ""
	}
	quoted := make([]string, len(entities))
	for i, e := range entities {
		quoted[i] = "'" + strings.ReplaceAll(e, "'", "''") + "'"
	}
	return fmt.Sprintf("%s IN (%s)", column, strings.Join(quoted, ", "))
}

// configOr reads a config key with a fallback default.
func configOr(cfg map[string]string, key, fallback string) string {
	if v := cfg[key]; v != "" {
		return v
	}
	return fallback
}
