// Package cli provides the cobra command tree for the sleuth binary.
package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/opsquery/sleuth-cli/internal/adapters/driven/ai"
	"github.com/opsquery/sleuth-cli/internal/adapters/driven/config/file"
	"github.com/opsquery/sleuth-cli/internal/adapters/driven/llm"
	"github.com/opsquery/sleuth-cli/internal/adapters/driven/storage/sqlite"
	"github.com/opsquery/sleuth-cli/internal/builders"
	"github.com/opsquery/sleuth-cli/internal/core/domain"
	"github.com/opsquery/sleuth-cli/internal/core/ports/driven"
	"github.com/opsquery/sleuth-cli/internal/core/ports/driving"
	"github.com/opsquery/sleuth-cli/internal/core/services"
	"github.com/opsquery/sleuth-cli/internal/logger"
	"github.com/opsquery/sleuth-cli/internal/sources"
)

// version is set at build time via ldflags.
var version = "dev"

// connectTimeout bounds each source connection attempt during startup.
const connectTimeout = 10 * time.Second

// Persistent flags.
var (
	verboseFlag bool
	configDir   string
)

// Services wired by bootstrap. Tests inject fakes directly.
var (
	configStore   *file.ConfigStore
	sourceStore   *file.SourceStore
	registry      *services.Registry
	investigator  driving.InvestigationService
	catalog       driving.SourceCatalog
	evidenceStore driven.EvidenceStore
	llmService    *llm.Service
)

var rootCmd = &cobra.Command{
	Use:   "sleuth",
	Short: "Federated investigation engine for operational questions",
	Long: `Sleuth answers operational questions by fanning out across the data
sources you configure: warehouses, team databases, log indexes, APM and
orchestration APIs. Evidence from every source comes back attributed,
including the sources that failed to answer.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		logger.SetVerbose(verboseFlag)
		return bootstrap(cmd)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false, "print pipeline detail to stderr")
	rootCmd.PersistentFlags().StringVar(&configDir, "config-dir", "", "configuration directory (default ~/.sleuth)")
}

// Execute runs the root command and releases wired resources afterwards.
func Execute() error {
	defer teardown()
	return rootCmd.Execute()
}

// bootstrap wires stores, sources and services for the invoked command.
// Failing sources are registered as unreachable rather than dropped, so
// their absence is visible in every listing and bundle.
func bootstrap(cmd *cobra.Command) error {
	if investigator != nil {
		// Already wired (tests, or repeated Execute calls).
		return nil
	}

	var err error
	configStore, err = file.NewConfigStore(configDir)
	if err != nil {
		return fmt.Errorf("opening config store: %w", err)
	}
	sourceStore, err = file.NewSourceStore(configDir)
	if err != nil {
		return fmt.Errorf("opening source store: %w", err)
	}

	registry = services.NewRegistry()
	catalog = registry
	if err := registerSources(cmd.Context()); err != nil {
		return err
	}

	llmSettings := configStore.LLMSettings()
	llmService, err = ai.CreateService(&llmSettings)
	if err != nil {
		return fmt.Errorf("creating LLM service: %w", err)
	}
	if llmService != nil {
		promptStore, err := file.NewPromptStore("")
		if err == nil {
			llmService.SetPromptStore(promptStore)
		}
	}

	store, err := sqlite.NewStore("")
	if err != nil {
		return fmt.Errorf("opening evidence store: %w", err)
	}
	evidenceStore = store

	settings := configStore.InvestigationSettings()
	planner := services.NewPlanner(registry, builders.NewDefaultRegistry())
	executor := services.NewExecutor(registry)
	aggregator := services.NewAggregator()
	if settings.RecordBudget > 0 {
		aggregator.RecordBudget = settings.RecordBudget
	}

	var analyzer driven.IntentAnalyzer
	var synthesizer driven.ReportSynthesizer
	if llmService != nil {
		analyzer = llmService
		synthesizer = llmService
	}

	investigator = services.NewInvestigator(
		registry, planner, executor, aggregator,
		analyzer, synthesizer, evidenceStore,
	)

	return nil
}

// registerSources creates and registers an adapter per declared source.
func registerSources(ctx context.Context) error {
	descriptors, err := sourceStore.LoadSources()
	if err != nil {
		return fmt.Errorf("loading sources: %w", err)
	}

	factory := sources.NewDefaultFactory()
	for _, desc := range descriptors {
		adapter, err := factory.Create(ctx, desc)
		if err != nil {
			return fmt.Errorf("source %q: %w", desc.Name, err)
		}

		connectCtx, cancel := context.WithTimeout(ctx, connectTimeout)
		if err := adapter.Connect(connectCtx); err != nil {
			logger.Warn("Source %q unreachable at startup: %v", desc.Name, err)
			desc.Health = domain.HealthUnreachable
		} else {
			desc.Health = domain.HealthHealthy
		}
		desc.LastProbed = time.Now()
		cancel()

		if err := registry.Register(desc, adapter); err != nil {
			adapter.Close()
			return fmt.Errorf("registering source %q: %w", desc.Name, err)
		}
	}

	return nil
}

// teardown closes everything bootstrap opened.
func teardown() {
	if registry != nil {
		registry.Close() //nolint:errcheck
	}
	if evidenceStore != nil {
		evidenceStore.Close() //nolint:errcheck
	}
	if llmService != nil {
		llmService.Close() //nolint:errcheck
	}
}
