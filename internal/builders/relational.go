package builders

import (
	"fmt"
	"strings"
	"time"

	"github.com/opsquery/sleuth-cli/internal/core/domain"
	"github.com/opsquery/sleuth-cli/internal/core/ports/driven"
)

// Ensure RelationalBuilder implements the port.
var _ driven.QueryBuilder = (*RelationalBuilder)(nil)

// relationalRowLimit caps rows fetched per relational sub-query.
const relationalRowLimit = 100

// RelationalBuilder synthesises SQL for per-team relational databases.
//
// Descriptor config keys:
//   - table: events/audit table (default "events")
//   - timestamp_column: event time column (default "created_at")
//   - entity_column: service/entity name column (default "service")
//   - key_column: primary lookup column for key-lookup (default "id")
type RelationalBuilder struct{}

// NewRelationalBuilder creates a relational query builder.
func NewRelationalBuilder() *RelationalBuilder {
	return &RelationalBuilder{}
}

// Kind returns the source kind this builder serves.
func (b *RelationalBuilder) Kind() domain.SourceKind {
	return domain.KindRelational
}

// Build produces a SQL payload for the capability.
func (b *RelationalBuilder) Build(
	intent domain.InvestigationIntent, desc domain.SourceDescriptor, cap domain.Capability,
) (string, error) {
	table := configOr(desc.Config, "table", "events")
	tsCol := configOr(desc.Config, "timestamp_column", "created_at")
	entityCol := configOr(desc.Config, "entity_column", "service")

	switch cap {
	case domain.CapStructuredQuery:
		var sb strings.Builder
		fmt.Fprintf(&sb, "SELECT * FROM %s", table)
		fmt.Fprintf(&sb, " WHERE %s >= '%s'", tsCol, sqlTime(intent.Window.Start))
		fmt.Fprintf(&sb, " AND %s <= '%s'", tsCol, sqlTime(intent.Window.EffectiveEnd(time.Now().UTC())))
		if clause := entityClause(entityCol, intent.Entities); clause != "" {
			fmt.Fprintf(&sb, " AND %s", clause)
		}
		fmt.Fprintf(&sb, " ORDER BY %s DESC LIMIT %d", tsCol, relationalRowLimit)
		return sb.String(), nil

	case domain.CapKeyLookup:
		keyCol := configOr(desc.Config, "key_column", "id")
		clause := entityClause(keyCol, intent.Entities)
		if clause == "" {
			// Without named entities there is nothing to look up;
			// fall back to the most recent rows.
			return fmt.Sprintf("SELECT * FROM %s ORDER BY %s DESC LIMIT %d",
				table, tsCol, relationalRowLimit), nil
		}
		return fmt.Sprintf("SELECT * FROM %s WHERE %s LIMIT %d", table, clause, relationalRowLimit), nil

	default:
		return "", fmt.Errorf("%w: relational database cannot serve %q", domain.ErrUnsupportedCapability, cap)
	}
}
