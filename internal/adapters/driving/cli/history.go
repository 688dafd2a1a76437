package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var (
	historyLimit int
	historyJSON  bool
	showJSON     bool
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List past investigations",
	RunE:  runHistory,
}

var showCmd = &cobra.Command{
	Use:   "show [investigation-id]",
	Short: "Show a past investigation's evidence",
	Args:  cobra.ExactArgs(1),
	RunE:  runShow,
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "maximum number of investigations")
	historyCmd.Flags().BoolVar(&historyJSON, "json", false, "output as JSON")
	showCmd.Flags().BoolVar(&showJSON, "json", false, "output the full bundle as JSON")
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(showCmd)
}

func runHistory(cmd *cobra.Command, _ []string) error {
	if evidenceStore == nil {
		return errors.New("evidence store not configured")
	}

	bundles, err := evidenceStore.List(cmd.Context(), historyLimit)
	if err != nil {
		return fmt.Errorf("listing investigations: %w", err)
	}

	if historyJSON {
		data, err := json.MarshalIndent(bundles, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal investigations: %w", err)
		}
		cmd.Println(string(data))
		return nil
	}

	if len(bundles) == 0 {
		cmd.Println("No investigations recorded yet.")
		return nil
	}

	for i := range bundles {
		status := "partial"
		if bundles[i].Complete {
			status = "complete"
		}
		cmd.Printf("  %s  %-24s %-8s %s\n",
			bundles[i].CreatedAt.Format(time.RFC3339),
			bundles[i].Intent.Category, status, bundles[i].ID)
		if bundles[i].Intent.Description != "" {
			cmd.Printf("      %s\n", bundles[i].Intent.Description)
		}
	}

	return nil
}

func runShow(cmd *cobra.Command, args []string) error {
	if evidenceStore == nil {
		return errors.New("evidence store not configured")
	}

	bundle, err := evidenceStore.Get(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("getting investigation: %w", err)
	}

	if showJSON {
		data, err := json.MarshalIndent(bundle, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal bundle: %w", err)
		}
		cmd.Println(string(data))
		return nil
	}

	cmd.Printf("Investigation %s\n", bundle.ID)
	cmd.Printf("  Category:  %s\n", bundle.Intent.Category)
	cmd.Printf("  Question:  %s\n", bundle.Intent.Description)
	cmd.Printf("  Created:   %s\n", bundle.CreatedAt.Format(time.RFC3339))
	if bundle.Complete {
		cmd.Println("  Evidence:  complete")
	} else {
		cmd.Println("  Evidence:  partial")
	}
	cmd.Println()

	for i := range bundle.Results {
		result := &bundle.Results[i]
		cmd.Printf("  %-24s %-18s %-8s %d records\n",
			result.Source, result.Capability, result.Status, len(result.Records))
		if result.Err != "" {
			cmd.Printf("      %s\n", result.Err)
		}
	}

	return nil
}
