package ai

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opsquery/sleuth-cli/internal/core/domain"
)

func TestCreateService_Unconfigured(t *testing.T) {
	svc, err := CreateService(nil)
	require.NoError(t, err)
	assert.Nil(t, svc)

	svc, err = CreateService(&domain.LLMSettings{})
	require.NoError(t, err)
	assert.Nil(t, svc)
}

func TestCreateService_MissingAPIKeyMeansUnconfigured(t *testing.T) {
	svc, err := CreateService(&domain.LLMSettings{Provider: domain.AIProviderAnthropic})

	require.NoError(t, err)
	assert.Nil(t, svc)
}

func TestCreateService_Ollama(t *testing.T) {
	svc, err := CreateService(&domain.LLMSettings{
		Provider: domain.AIProviderOllama,
		Model:    "llama3.2",
	})

	require.NoError(t, err)
	require.NotNil(t, svc)
	defer svc.Close()
	assert.Equal(t, "llama3.2", svc.ModelName())
}

func TestCreateService_Anthropic(t *testing.T) {
	svc, err := CreateService(&domain.LLMSettings{
		Provider: domain.AIProviderAnthropic,
		APIKey:   "sk-test",
	})

	require.NoError(t, err)
	require.NotNil(t, svc)
	defer svc.Close()
	assert.Equal(t, "claude-3-5-sonnet-latest", svc.ModelName())
}

func TestCreateService_OpenAI(t *testing.T) {
	svc, err := CreateService(&domain.LLMSettings{
		Provider: domain.AIProviderOpenAI,
		APIKey:   "sk-test",
		Model:    "gpt-4o-mini",
	})

	require.NoError(t, err)
	require.NotNil(t, svc)
	defer svc.Close()
	assert.Equal(t, "gpt-4o-mini", svc.ModelName())
}

func TestCreateAndValidateService_Reachable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"models": []}`))
	}))
	defer server.Close()

	svc, err := CreateAndValidateService(&domain.LLMSettings{
		Provider: domain.AIProviderOllama,
		BaseURL:  server.URL,
	})

	require.NoError(t, err)
	require.NotNil(t, svc)
	svc.Close()
}

func TestCreateAndValidateService_Unreachable(t *testing.T) {
	svc, err := CreateAndValidateService(&domain.LLMSettings{
		Provider: domain.AIProviderOllama,
		BaseURL:  "http://127.0.0.1:1",
	})

	require.ErrorIs(t, err, domain.ErrLLMUnavailable)
	assert.Nil(t, svc)
	assert.Contains(t, err.Error(), "sleuth config llm")
}

func TestCreateAndValidateService_Unconfigured(t *testing.T) {
	svc, err := CreateAndValidateService(nil)

	require.NoError(t, err)
	assert.Nil(t, svc)
}

func TestValidateLLMConfig_UnconfiguredIsValid(t *testing.T) {
	assert.NoError(t, ValidateLLMConfig(nil))
	assert.NoError(t, ValidateLLMConfig(&domain.LLMSettings{}))
}

func TestValidateLLMConfig_BadEndpoint(t *testing.T) {
	err := ValidateLLMConfig(&domain.LLMSettings{
		Provider: domain.AIProviderOllama,
		BaseURL:  "http://127.0.0.1:1",
	})

	assert.Error(t, err)
}

func TestConfigValidator_DelegatesToFactory(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"models": []}`))
	}))
	defer server.Close()

	validator := NewConfigValidator()

	assert.NoError(t, validator.ValidateLLM(&domain.LLMSettings{
		Provider: domain.AIProviderOllama,
		BaseURL:  server.URL,
	}))
	assert.NoError(t, validator.ValidateLLM(nil))
}
