package builders

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/opsquery/sleuth-cli/internal/core/domain"
	"github.com/opsquery/sleuth-cli/internal/core/ports/driven"
)

// Ensure APMBuilder implements the port.
var _ driven.QueryBuilder = (*APMBuilder)(nil)

// apmQuery is the payload envelope the APM adapter consumes.
type apmQuery struct {
	Query string `json:"query"`
	From  int64  `json:"from"`
	To    int64  `json:"to"`
}

// APMBuilder synthesises metric queries for APM services.
//
// Descriptor config keys:
//   - metric: metric to query (default "trace.http.request.duration")
//   - aggregator: rollup function (default "avg")
type APMBuilder struct{}

// NewAPMBuilder creates an APM query builder.
func NewAPMBuilder() *APMBuilder {
	return &APMBuilder{}
}

// Kind returns the source kind this builder serves.
func (b *APMBuilder) Kind() domain.SourceKind {
	return domain.KindAPM
}

// Build produces a metric query payload for the capability.
func (b *APMBuilder) Build(
	intent domain.InvestigationIntent, desc domain.SourceDescriptor, cap domain.Capability,
) (string, error) {
	if cap != domain.CapTimeSeries {
		return "", fmt.Errorf("%w: APM cannot serve %q", domain.ErrUnsupportedCapability, cap)
	}

	metric := configOr(desc.Config, "metric", "trace.http.request.duration")
	agg := configOr(desc.Config, "aggregator", "avg")

	scope := "*"
	if len(intent.Entities) > 0 {
		tags := make([]string, len(intent.Entities))
		for i, e := range intent.Entities {
			tags[i] = "service:" + e
		}
		scope = strings.Join(tags, ",")
	}

	q := apmQuery{
		Query: fmt.Sprintf("%s:%s{%s}", agg, metric, scope),
		From:  intent.Window.Start.Unix(),
		To:    intent.Window.EffectiveEnd(time.Now().UTC()).Unix(),
	}

	payload, err := json.Marshal(q)
	if err != nil {
		return "", fmt.Errorf("marshal apm query: %w", err)
	}
	return string(payload), nil
}
