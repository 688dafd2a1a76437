// Package file provides file-based implementations of driven port interfaces.
// These adapters persist data to the local filesystem.
//
// Adapters:
//   - ConfigStore: TOML-based configuration storage
//   - SourceStore: TOML-based source declarations with change watching
//   - PromptStore: user-editable LLM prompt templates
package file
