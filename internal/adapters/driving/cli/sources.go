package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/opsquery/sleuth-cli/internal/core/domain"
)

var (
	sourcesProbe bool
	sourcesJSON  bool
)

var sourcesCmd = &cobra.Command{
	Use:   "sources",
	Short: "List configured data sources",
	Long: `Lists every configured source with its kind, declared capabilities
and last-known health. With --probe, each source's backend is checked
first and the stored health refreshed.`,
	RunE: runSources,
}

func init() {
	sourcesCmd.Flags().BoolVar(&sourcesProbe, "probe", false, "probe every source before listing")
	sourcesCmd.Flags().BoolVar(&sourcesJSON, "json", false, "output sources as JSON")
	rootCmd.AddCommand(sourcesCmd)
}

func runSources(cmd *cobra.Command, _ []string) error {
	if catalog == nil {
		return errors.New("source catalog not configured")
	}

	var descriptors []domain.SourceDescriptor
	if sourcesProbe {
		descriptors = catalog.Probe(cmd.Context())
	} else {
		descriptors = catalog.List(cmd.Context())
	}

	if sourcesJSON {
		data, err := json.MarshalIndent(descriptors, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal sources: %w", err)
		}
		cmd.Println(string(data))
		return nil
	}

	if len(descriptors) == 0 {
		cmd.Println("No sources configured.")
		if sourceStore != nil {
			cmd.Printf("Declare sources in %s\n", sourceStore.Path())
		}
		return nil
	}

	for _, desc := range descriptors {
		cmd.Printf("  %-24s %-20s %-12s", desc.Name, desc.Kind, desc.Health)
		for i, c := range desc.Capabilities {
			if i > 0 {
				cmd.Print(", ")
			} else {
				cmd.Print(" ")
			}
			cmd.Print(string(c))
		}
		cmd.Println()
		if !desc.LastProbed.IsZero() {
			cmd.Printf("      last probed %s\n", desc.LastProbed.Format(time.RFC3339))
		}
	}

	return nil
}
