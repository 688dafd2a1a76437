// Package ai provides factory functions for creating LLM-backed service adapters.
package ai

import (
	"context"
	"fmt"
	"time"

	"github.com/opsquery/sleuth-cli/internal/adapters/driven/llm"
	"github.com/opsquery/sleuth-cli/internal/adapters/driven/llm/anthropic"
	"github.com/opsquery/sleuth-cli/internal/adapters/driven/llm/ollama"
	"github.com/opsquery/sleuth-cli/internal/adapters/driven/llm/openai"
	"github.com/opsquery/sleuth-cli/internal/core/domain"
)

// pingTimeout is the maximum time to wait for service connectivity validation.
const pingTimeout = 5 * time.Second

// CreateService creates the LLM service for the configured provider.
// Returns nil if no provider is configured: investigations then run
// from pre-built intents only, with no synthesis step.
func CreateService(settings *domain.LLMSettings) (*llm.Service, error) {
	if settings == nil || !settings.IsConfigured() {
		return nil, nil
	}

	provider, err := createProvider(settings)
	if err != nil {
		return nil, err
	}

	return llm.NewService(provider), nil
}

// CreateAndValidateService creates the LLM service and validates connectivity.
// Returns the service if successful, or an error with guidance.
func CreateAndValidateService(settings *domain.LLMSettings) (*llm.Service, error) {
	svc, err := CreateService(settings)
	if err != nil {
		return nil, fmt.Errorf("%w: %w. Run 'sleuth config llm' to fix",
			domain.ErrLLMUnavailable, err)
	}
	if svc == nil {
		return nil, nil
	}

	// Validate connectivity.
	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()

	if err := svc.Ping(ctx); err != nil {
		svc.Close()
		return nil, fmt.Errorf("%w: service unreachable (%w). Run 'sleuth config llm' to fix",
			domain.ErrLLMUnavailable, err)
	}

	return svc, nil
}

// ValidateLLMConfig validates an LLM configuration by creating a service and pinging it.
// This is intended for use at configuration time to catch bad credentials early.
func ValidateLLMConfig(settings *domain.LLMSettings) error {
	if settings == nil || !settings.IsConfigured() {
		return nil
	}

	svc, err := CreateService(settings)
	if err != nil {
		return err
	}
	if svc == nil {
		return nil
	}
	defer svc.Close()

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	return svc.Ping(ctx)
}

// createProvider creates the transport for the configured provider.
func createProvider(settings *domain.LLMSettings) (llm.Provider, error) {
	switch settings.Provider {
	case domain.AIProviderOllama:
		return ollama.NewClient(ollama.Config{
			BaseURL: settings.BaseURL,
			Model:   settings.Model,
		}), nil

	case domain.AIProviderOpenAI:
		return openai.NewClient(openai.Config{
			APIKey:  settings.APIKey,
			BaseURL: settings.BaseURL,
			Model:   settings.Model,
		})

	case domain.AIProviderAnthropic:
		return anthropic.NewClient(anthropic.Config{
			APIKey:  settings.APIKey,
			BaseURL: settings.BaseURL,
			Model:   settings.Model,
		})

	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", settings.Provider)
	}
}
