package driven

import "github.com/opsquery/sleuth-cli/internal/core/domain"

// AIConfigValidator validates AI provider configurations by contacting
// the provider. Used when configuration is written, so bad credentials
// fail at setup time instead of mid-investigation.
type AIConfigValidator interface {
	// ValidateLLM validates an LLM configuration by pinging the provider.
	ValidateLLM(config *domain.LLMSettings) error
}
