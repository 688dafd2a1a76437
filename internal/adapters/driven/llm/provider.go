// Package llm adapts chat-completion providers into the intent analysis
// and report synthesis ports. Provider packages handle transport only;
// prompting and response parsing live here so every provider behaves the
// same way.
package llm

import "context"

// Provider is the transport contract a chat-completion backend must
// satisfy. One user prompt in, one text completion out.
type Provider interface {
	// Generate produces a completion for the prompt. A non-empty system
	// prompt is passed through when the backend supports one.
	Generate(ctx context.Context, system, prompt string, maxTokens int, temperature float64) (string, error)

	// ModelName returns the name of the model being used.
	ModelName() string

	// Ping validates the backend is reachable without running inference.
	Ping(ctx context.Context) error

	// Close releases resources.
	Close() error
}
