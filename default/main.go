// Package defaults provides embedded default assets (prompt templates and config).
package defaults

import _ "embed"

//go:embed complete_prompt.md
var CompletePrompt string

//go:embed instruct_prompt.md
var InstructPrompt string

//go:embed default_config.toml
var DefaultConfigTOML []byte
