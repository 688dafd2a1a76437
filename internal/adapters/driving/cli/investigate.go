package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/opsquery/sleuth-cli/internal/core/domain"
	"github.com/opsquery/sleuth-cli/internal/core/ports/driving"
)

var (
	investigateJSON    bool
	investigateDryRun  bool
	investigateSources []string
	investigateTimeout time.Duration
	investigateContext []string
)

var investigateCmd = &cobra.Command{
	Use:   "investigate [question]",
	Short: "Investigate an operational question across all sources",
	Long: `Runs one federated investigation: the question is analysed into a
structured intent, planned against the sources whose capabilities can
answer it, executed concurrently, and the evidence synthesised into a
report. Sources that fail or time out are reported as gaps, never
silently dropped.`,
	Args: cobra.ExactArgs(1),
	RunE: runInvestigate,
}

func init() {
	investigateCmd.Flags().BoolVar(&investigateJSON, "json", false, "output the evidence bundle as JSON")
	investigateCmd.Flags().BoolVar(&investigateDryRun, "dry-run", false, "plan only, do not query any backend")
	investigateCmd.Flags().StringSliceVar(&investigateSources, "source", nil, "restrict to these source names (repeatable)")
	investigateCmd.Flags().DurationVar(&investigateTimeout, "timeout", 0, "overall deadline for the fan-out")
	investigateCmd.Flags().StringArrayVar(&investigateContext, "context", nil, "caller context as key=value (repeatable)")
	rootCmd.AddCommand(investigateCmd)
}

func runInvestigate(cmd *cobra.Command, args []string) error {
	question := args[0]

	if investigator == nil {
		return errors.New("investigation service not configured")
	}

	opts := driving.InvestigateOptions{
		DryRun:        investigateDryRun,
		Deadline:      investigateTimeout,
		SourceHints:   investigateSources,
		CallerContext: parseCallerContext(investigateContext),
	}

	outcome, err := investigator.Investigate(cmd.Context(), question, opts)
	if err != nil {
		if errors.Is(err, domain.ErrAnalysisFailed) && llmService == nil {
			return fmt.Errorf("%w. Run 'sleuth config llm' to configure a provider", err)
		}
		return fmt.Errorf("investigation failed: %w", err)
	}

	if investigateJSON {
		return outputOutcomeJSON(cmd, outcome)
	}
	return outputOutcomeText(cmd, outcome)
}

// parseCallerContext converts key=value flags into the analysis context map.
func parseCallerContext(pairs []string) map[string]string {
	if len(pairs) == 0 {
		return nil
	}
	result := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		key, value, found := strings.Cut(pair, "=")
		if !found || key == "" {
			continue
		}
		result[key] = value
	}
	return result
}

func outputOutcomeJSON(cmd *cobra.Command, outcome *driving.InvestigationOutcome) error {
	data, err := json.MarshalIndent(outcome, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal outcome: %w", err)
	}
	cmd.Println(string(data))
	return nil
}

func outputOutcomeText(cmd *cobra.Command, outcome *driving.InvestigationOutcome) error {
	if outcome.Plan.Empty() {
		cmd.Println("No source can answer this question; nothing was planned.")
		if outcome.Bundle != nil {
			cmd.Printf("Investigation ID: %s\n", outcome.Bundle.ID)
		}
		return nil
	}

	cmd.Println("Plan:")
	for i, q := range outcome.Plan.Queries {
		cmd.Printf("  [%d] %s (%s, timeout %s)\n", i+1, q.Source, q.Capability, q.Timeout)
	}
	cmd.Println()

	if outcome.Bundle == nil {
		// Dry run stops at planning.
		return nil
	}

	cmd.Println("Evidence:")
	for i := range outcome.Bundle.Results {
		result := &outcome.Bundle.Results[i]
		switch result.Status {
		case domain.StatusOK:
			suffix := ""
			if result.Truncated {
				suffix = ", truncated"
			}
			cmd.Printf("  %-24s %-18s %d records in %s%s\n",
				result.Source, result.Capability, len(result.Records),
				result.Elapsed.Round(time.Millisecond), suffix)
		case domain.StatusTimeout:
			cmd.Printf("  %-24s %-18s TIMEOUT after %s\n",
				result.Source, result.Capability, result.Elapsed.Round(time.Millisecond))
		case domain.StatusSkipped:
			cmd.Printf("  %-24s %-18s SKIPPED\n", result.Source, result.Capability)
		default:
			cmd.Printf("  %-24s %-18s ERROR: %s\n", result.Source, result.Capability, result.Err)
		}
	}
	cmd.Println()

	if outcome.Bundle.Complete {
		cmd.Println("All sources answered.")
	} else {
		cmd.Println("Evidence is partial; see gaps above.")
	}
	cmd.Printf("Investigation ID: %s\n", outcome.Bundle.ID)

	if outcome.Report != nil {
		cmd.Println()
		cmd.Println("Report:")
		cmd.Println(outcome.Report.Summary)
		if len(outcome.Report.Gaps) > 0 {
			cmd.Println()
			cmd.Println("Gaps:")
			for _, gap := range outcome.Report.Gaps {
				cmd.Printf("  - %s\n", gap)
			}
		}
	}

	return nil
}
