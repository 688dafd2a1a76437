package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/opsquery/sleuth-cli/internal/core/domain"
	"github.com/opsquery/sleuth-cli/internal/core/ports/driven"
)

// Ensure Service implements the interfaces.
var (
	_ driven.IntentAnalyzer    = (*Service)(nil)
	_ driven.ReportSynthesizer = (*Service)(nil)
	_ driven.PromptStoreAware  = (*Service)(nil)
)

// Generation parameters. Intent analysis wants determinism; synthesis
// gets more room for prose.
const (
	intentMaxTokens      = 1024
	intentTemperature    = 0.0
	synthesisMaxTokens   = 2048
	synthesisTemperature = 0.3

	// evidenceSampleRows caps how many records per source are included
	// in the synthesis prompt. Bundles can hold hundreds of records and
	// the model only needs a representative slice.
	evidenceSampleRows = 20
)

// Service provides intent analysis and report synthesis over any
// chat-completion Provider.
type Service struct {
	provider    Provider
	promptStore driven.PromptStore
}

// NewService creates a Service over the given provider.
func NewService(provider Provider) *Service {
	return &Service{provider: provider}
}

// defaultIntentPrompt is the fallback prompt when no PromptStore is configured.
const defaultIntentPrompt = `You classify operational questions for a federated investigation engine.

Available context about the caller's systems:
%s

Classify the question below. Respond with ONLY a JSON object, no prose, no code fences:
{
  "category": one of "performance-degradation", "error-spike", "availability", "data-question", "general",
  "description": a one-sentence restatement of what is being investigated,
  "window": {"start": RFC3339 timestamp or "", "end": RFC3339 timestamp or ""},
  "entities": list of service or component names mentioned,
  "source_hints": list of source names if the question names specific sources, else []
}

Question: %s`

// defaultSynthesisPrompt is the fallback prompt when no PromptStore is configured.
const defaultSynthesisPrompt = `You write investigation reports for on-call engineers.

The question under investigation:
%s

Evidence collected from the caller's data sources, in JSON. Sources with a
status other than "ok" returned nothing; treat them as gaps, never guess
at what they might have contained.

%s

Write a concise report: what the evidence shows, what it rules out, and
what remains unknown because of failed or missing sources. Plain text only.`

// analysedIntent is the JSON shape the intent analysis prompt asks for.
type analysedIntent struct {
	Category    string   `json:"category"`
	Description string   `json:"description"`
	Window      struct {
		Start string `json:"start"`
		End   string `json:"end"`
	} `json:"window"`
	Entities    []string `json:"entities"`
	SourceHints []string `json:"source_hints"`
}

// Analyze turns a raw question into a structured investigation intent.
func (s *Service) Analyze(ctx context.Context, rawQuery string, callerCtx map[string]string) (*domain.InvestigationIntent, error) {
	if strings.TrimSpace(rawQuery) == "" {
		return nil, fmt.Errorf("%w: empty query", domain.ErrAnalysisFailed)
	}

	promptTemplate := s.loadPrompt(driven.PromptIntentAnalysis, defaultIntentPrompt)
	prompt := fmt.Sprintf(promptTemplate, formatCallerContext(callerCtx), rawQuery)

	raw, err := s.provider.Generate(ctx, "", prompt, intentMaxTokens, intentTemperature)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrAnalysisFailed, err)
	}

	var parsed analysedIntent
	if err := json.Unmarshal([]byte(stripFences(raw)), &parsed); err != nil {
		return nil, fmt.Errorf("%w: model returned unparseable intent: %w", domain.ErrAnalysisFailed, err)
	}

	intent := &domain.InvestigationIntent{
		Category:    domain.IssueCategory(parsed.Category),
		Description: parsed.Description,
		Entities:    parsed.Entities,
		SourceHints: parsed.SourceHints,
	}
	if !intent.Category.Valid() {
		intent.Category = domain.IssueGeneral
	}
	if intent.Description == "" {
		intent.Description = rawQuery
	}
	intent.Window = parseWindow(parsed.Window.Start, parsed.Window.End)

	return intent, nil
}

// Synthesize narrates an evidence bundle into a report. Gaps are
// computed from the bundle itself rather than trusted to the model.
func (s *Service) Synthesize(ctx context.Context, bundle *domain.EvidenceBundle) (*domain.Report, error) {
	if bundle == nil {
		return nil, fmt.Errorf("%w: nil bundle", domain.ErrSynthesisFailed)
	}

	evidence, err := renderEvidence(bundle)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrSynthesisFailed, err)
	}

	promptTemplate := s.loadPrompt(driven.PromptSynthesis, defaultSynthesisPrompt)
	prompt := fmt.Sprintf(promptTemplate, bundle.Intent.Description, evidence)

	summary, err := s.provider.Generate(ctx, "", prompt, synthesisMaxTokens, synthesisTemperature)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrSynthesisFailed, err)
	}

	return &domain.Report{
		BundleID: bundle.ID,
		Summary:  strings.TrimSpace(summary),
		Gaps:     bundleGaps(bundle),
	}, nil
}

// ModelName returns the name of the underlying model.
func (s *Service) ModelName() string {
	return s.provider.ModelName()
}

// Ping validates the underlying provider is reachable.
func (s *Service) Ping(ctx context.Context) error {
	return s.provider.Ping(ctx)
}

// SetPromptStore sets the prompt store for loading customisable prompts.
// If not set, the service uses hardcoded default prompts.
func (s *Service) SetPromptStore(store driven.PromptStore) {
	s.promptStore = store
}

// Close releases resources.
func (s *Service) Close() error {
	return s.provider.Close()
}

// loadPrompt loads a prompt from the store, falling back to the default if unavailable.
func (s *Service) loadPrompt(name, fallback string) string {
	if s.promptStore == nil {
		return fallback
	}
	prompt, err := s.promptStore.Load(name)
	if err != nil {
		return fallback
	}
	return prompt
}

// formatCallerContext renders the caller context map as "key: value"
// lines in stable order.
func formatCallerContext(callerCtx map[string]string) string {
	if len(callerCtx) == 0 {
		return "(none provided)"
	}

	keys := make([]string, 0, len(callerCtx))
	for k := range callerCtx {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		fmt.Fprintf(&b, "%s: %s\n", k, callerCtx[k])
	}
	return strings.TrimRight(b.String(), "\n")
}

// stripFences removes a markdown code fence wrapper if the model added
// one despite instructions.
func stripFences(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	trimmed = strings.TrimPrefix(trimmed, "```json")
	trimmed = strings.TrimPrefix(trimmed, "```")
	trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")
	return strings.TrimSpace(trimmed)
}

// parseWindow builds a time range from RFC3339 strings, tolerating
// empty or malformed values.
func parseWindow(start, end string) domain.TimeRange {
	var window domain.TimeRange
	if t, err := time.Parse(time.RFC3339, start); err == nil {
		window.Start = t
	}
	if t, err := time.Parse(time.RFC3339, end); err == nil {
		window.End = t
	}
	return window
}

// evidenceView is the condensed bundle representation sent to the model.
type evidenceView struct {
	Source     string           `json:"source"`
	Capability string           `json:"capability"`
	Status     string           `json:"status"`
	Error      string           `json:"error,omitempty"`
	Records    int              `json:"record_count"`
	Truncated  bool             `json:"truncated,omitempty"`
	Sample     []map[string]any `json:"sample,omitempty"`
}

// renderEvidence serialises the bundle for the synthesis prompt,
// sampling records so large bundles stay within prompt budget.
func renderEvidence(bundle *domain.EvidenceBundle) (string, error) {
	views := make([]evidenceView, 0, len(bundle.Results))
	for _, result := range bundle.Results {
		view := evidenceView{
			Source:     result.Source,
			Capability: string(result.Capability),
			Status:     string(result.Status),
			Error:      result.Err,
			Records:    len(result.Records),
			Truncated:  result.Truncated,
		}
		for i, record := range result.Records {
			if i >= evidenceSampleRows {
				break
			}
			view.Sample = append(view.Sample, record.Fields)
		}
		views = append(views, view)
	}

	encoded, err := json.MarshalIndent(views, "", "  ")
	if err != nil {
		return "", fmt.Errorf("serialise evidence: %w", err)
	}
	return string(encoded), nil
}

// bundleGaps lists the sources that contributed nothing and why.
func bundleGaps(bundle *domain.EvidenceBundle) []string {
	var gaps []string
	for _, result := range bundle.Results {
		switch result.Status {
		case domain.StatusOK:
			continue
		case domain.StatusTimeout:
			gaps = append(gaps, fmt.Sprintf("%s (%s): timed out after %s", result.Source, result.Capability, result.Elapsed.Round(time.Millisecond)))
		case domain.StatusSkipped:
			gaps = append(gaps, fmt.Sprintf("%s (%s): skipped, source unavailable", result.Source, result.Capability))
		default:
			gaps = append(gaps, fmt.Sprintf("%s (%s): %s", result.Source, result.Capability, result.Err))
		}
	}
	return gaps
}
