package builders

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/opsquery/sleuth-cli/internal/core/domain"
	"github.com/opsquery/sleuth-cli/internal/core/ports/driven"
)

// Ensure SearchIndexBuilder implements the port.
var _ driven.QueryBuilder = (*SearchIndexBuilder)(nil)

// searchHitLimit caps hits fetched per search sub-query.
const searchHitLimit = 100

// SearchIndexBuilder synthesises search DSL bodies for log/search indexes.
//
// Descriptor config keys:
//   - timestamp_field: document time field (default "@timestamp")
//   - message_field: free-text field for matching (default "message")
type SearchIndexBuilder struct{}

// NewSearchIndexBuilder creates a search-index query builder.
func NewSearchIndexBuilder() *SearchIndexBuilder {
	return &SearchIndexBuilder{}
}

// Kind returns the source kind this builder serves.
func (b *SearchIndexBuilder) Kind() domain.SourceKind {
	return domain.KindSearchIndex
}

// Build produces a JSON search body for the capability.
func (b *SearchIndexBuilder) Build(
	intent domain.InvestigationIntent, desc domain.SourceDescriptor, cap domain.Capability,
) (string, error) {
	tsField := configOr(desc.Config, "timestamp_field", "@timestamp")
	msgField := configOr(desc.Config, "message_field", "message")

	rangeFilter := map[string]any{
		"range": map[string]any{
			tsField: map[string]any{
				"gte": intent.Window.Start.UTC().Format(time.RFC3339),
				"lte": intent.Window.EffectiveEnd(time.Now().UTC()).UTC().Format(time.RFC3339),
			},
		},
	}

	var match map[string]any
	switch cap {
	case domain.CapFullTextSearch:
		text := intent.Description
		if len(intent.Entities) > 0 {
			text = strings.Join(intent.Entities, " ") + " " + text
		}
		match = map[string]any{
			"match": map[string]any{msgField: text},
		}

	case domain.CapLogTail:
		if len(intent.Entities) > 0 {
			match = map[string]any{
				"terms": map[string]any{"service": intent.Entities},
			}
		} else {
			match = map[string]any{"match_all": map[string]any{}}
		}

	default:
		return "", fmt.Errorf("%w: search index cannot serve %q", domain.ErrUnsupportedCapability, cap)
	}

	body := map[string]any{
		"size": searchHitLimit,
		"sort": []any{map[string]any{tsField: map[string]any{"order": "desc"}}},
		"query": map[string]any{
			"bool": map[string]any{
				"must":   []any{match},
				"filter": []any{rangeFilter},
			},
		},
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("marshal search body: %w", err)
	}
	return string(payload), nil
}
