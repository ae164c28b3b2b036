package llm

import (
	"fmt"
	"strings"

	"quill/pkg/config"
)

type Config struct {
	Provider  string
	Model     string
	APIKey    string
	APIURL    string
	MaxTokens int
}

// LoadConfigFor loads provider configuration for one pipeline role from
// <PREFIX>_* env vars, falling back to their LLM_* counterparts when unset.
// The organizer and drafter each get their own provider this way while a
// single-provider deployment only sets LLM_*.
func LoadConfigFor(prefix string) Config {
	return Config{
		Provider:  config.GetEnv(prefix+"_PROVIDER", config.GetEnv("LLM_PROVIDER", "openai")),
		Model:     config.GetEnv(prefix+"_MODEL", config.GetEnv("LLM_MODEL", "")),
		APIKey:    config.GetEnv(prefix+"_API_KEY", config.GetEnv("LLM_API_KEY", "")),
		APIURL:    config.GetEnv(prefix+"_API_URL", config.GetEnv("LLM_API_URL", "")),
		MaxTokens: config.GetEnvInt(prefix+"_MAX_TOKENS", config.GetEnvInt("LLM_MAX_TOKENS", 0)),
	}
}

func NewProvider(cfg Config) (Provider, error) {
	switch strings.ToLower(cfg.Provider) {
	case "openai":
		return NewOpenAIProvider(cfg), nil
	case "anthropic":
		return NewAnthropicProvider(cfg), nil
	default:
		return nil, fmt.Errorf("unknown LLM provider %q", cfg.Provider)
	}
}
