package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/opsquery/sleuth-cli/internal/adapters/driven/ai"
	"github.com/opsquery/sleuth-cli/internal/core/domain"
)

var (
	llmProviderFlag string
	llmModelFlag    string
	llmBaseURLFlag  string
	llmAPIKeyFlag   string
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage sleuth configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the current configuration",
	RunE:  runConfigShow,
}

var configLLMCmd = &cobra.Command{
	Use:   "llm",
	Short: "Configure the LLM provider",
	Long: `Configure the LLM provider used for intent analysis and report synthesis.

Without an LLM configured, investigations require structured input and
reports are skipped. Supported providers: ollama, openai, anthropic.`,
	RunE: runConfigLLM,
}

func init() {
	configLLMCmd.Flags().StringVar(&llmProviderFlag, "provider", "", "LLM provider (ollama, openai, anthropic)")
	configLLMCmd.Flags().StringVar(&llmModelFlag, "model", "", "model name (defaults to the provider's recommended model)")
	configLLMCmd.Flags().StringVar(&llmBaseURLFlag, "base-url", "", "API base URL (Ollama only)")
	configLLMCmd.Flags().StringVar(&llmAPIKeyFlag, "api-key", "", "API key (OpenAI and Anthropic)")

	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configLLMCmd)
	rootCmd.AddCommand(configCmd)
}

func runConfigShow(cmd *cobra.Command, _ []string) error {
	if configStore == nil {
		return errors.New("config store not initialised")
	}

	settings := configStore.LLMSettings()
	investigation := configStore.InvestigationSettings()

	cmd.Printf("Config file: %s\n\n", configStore.Path())

	if settings.IsConfigured() {
		cmd.Printf("LLM provider:    %s\n", settings.Provider)
		cmd.Printf("LLM model:       %s\n", settings.Model)
		if settings.BaseURL != "" {
			cmd.Printf("LLM base URL:    %s\n", settings.BaseURL)
		}
		if settings.APIKey != "" {
			cmd.Println("LLM API key:     (set)")
		}
	} else {
		cmd.Println("LLM provider:    not configured")
	}

	cmd.Printf("Overall timeout: %s\n", investigation.OverallTimeout)
	cmd.Printf("Record budget:   %d\n", investigation.RecordBudget)

	return nil
}

func runConfigLLM(cmd *cobra.Command, _ []string) error {
	if configStore == nil {
		return errors.New("config store not initialised")
	}

	if llmProviderFlag == "" {
		cmd.Println("Available providers:")
		for _, p := range domain.AllLLMProviders() {
			cmd.Printf("  %-10s %s\n", p, p.Description())
		}
		cmd.Println("\nRun 'sleuth config llm --provider <name>' to select one.")
		return nil
	}

	provider := domain.AIProvider(llmProviderFlag)
	if !provider.IsValid() {
		return fmt.Errorf("unknown provider %q, expected one of: ollama, openai, anthropic", llmProviderFlag)
	}

	model := llmModelFlag
	if model == "" {
		model = domain.DefaultLLMModels()[provider]
	}

	settings := domain.LLMSettings{
		Provider: provider,
		Model:    model,
		BaseURL:  llmBaseURLFlag,
		APIKey:   llmAPIKeyFlag,
	}

	if err := ai.NewConfigValidator().ValidateLLM(&settings); err != nil {
		return err
	}

	if err := configStore.SetLLMSettings(settings); err != nil {
		return fmt.Errorf("saving LLM settings: %w", err)
	}

	cmd.Printf("LLM provider set to %s (model %s)\n", provider, model)
	return nil
}
