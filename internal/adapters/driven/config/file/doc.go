// Package file provides file-based implementations of driven port interfaces.
// These adapters persist data to the local filesystem.
//
// Adapters:
//   - ConfigStore: key-by-key editing of the TOML configuration file
//   - PromptStore: user-editable prompts of the extraction agents
package file
