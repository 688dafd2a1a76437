package builders

import (
	"encoding/json"
	"fmt"

	"github.com/opsquery/sleuth-cli/internal/core/domain"
	"github.com/opsquery/sleuth-cli/internal/core/ports/driven"
)

// Ensure OrchestrationBuilder implements the port.
var _ driven.QueryBuilder = (*OrchestrationBuilder)(nil)

// orchestrationQuery is the payload envelope the orchestration adapter
// consumes: which resource collection to read and which workloads to
// narrow to.
type orchestrationQuery struct {
	Resource  string   `json:"resource"`
	Namespace string   `json:"namespace"`
	Workloads []string `json:"workloads,omitempty"`
}

// OrchestrationBuilder synthesises control-plane reads for
// container-orchestration APIs.
//
// Descriptor config keys:
//   - namespace: namespace to inspect (default "default")
type OrchestrationBuilder struct{}

// NewOrchestrationBuilder creates an orchestration query builder.
func NewOrchestrationBuilder() *OrchestrationBuilder {
	return &OrchestrationBuilder{}
}

// Kind returns the source kind this builder serves.
func (b *OrchestrationBuilder) Kind() domain.SourceKind {
	return domain.KindOrchestration
}

// Build produces a control-plane read payload for the capability.
func (b *OrchestrationBuilder) Build(
	intent domain.InvestigationIntent, desc domain.SourceDescriptor, cap domain.Capability,
) (string, error) {
	namespace := configOr(desc.Config, "namespace", "default")

	var resource string
	switch cap {
	case domain.CapKeyLookup:
		// Workload state: pod phases, restart counts.
		resource = "pods"
	case domain.CapLogTail:
		// Recent cluster events approximate a log tail of the control plane.
		resource = "events"
	default:
		return "", fmt.Errorf("%w: orchestration API cannot serve %q", domain.ErrUnsupportedCapability, cap)
	}

	q := orchestrationQuery{
		Resource:  resource,
		Namespace: namespace,
		Workloads: intent.Entities,
	}

	payload, err := json.Marshal(q)
	if err != nil {
		return "", fmt.Errorf("marshal orchestration query: %w", err)
	}
	return string(payload), nil
}
