// Package resolve creates conclave.Provider values from provider-agnostic
// configuration, filling in the default base URL for known providers.
package resolve

import (
	"log/slog"
	"net/http"

	"github.com/nevindra/conclave"
	"github.com/nevindra/conclave/provider/openaicompat"
)

// Config holds provider-agnostic configuration for creating a Provider.
type Config struct {
	Provider string // "openai", "groq", "deepseek", "together", "mistral", "ollama"
	APIKey   string
	BaseURL  string // auto-filled for known providers when empty

	HTTPClient *http.Client
	Logger     *slog.Logger
}

// Provider creates a conclave.Provider from a provider-agnostic Config.
// Unknown provider names are a configuration error.
func Provider(cfg Config) (conclave.Provider, error) {
	switch cfg.Provider {
	case "openai", "groq", "deepseek", "together", "mistral", "ollama":
		return openaiCompatProvider(cfg), nil
	default:
		return nil, &conclave.ErrConfig{Reason: "unknown provider " + cfg.Provider}
	}
}

func openaiCompatProvider(cfg Config) conclave.Provider {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL(cfg.Provider)
	}
	opts := []openaicompat.Option{openaicompat.WithName(cfg.Provider)}
	if cfg.HTTPClient != nil {
		opts = append(opts, openaicompat.WithHTTPClient(cfg.HTTPClient))
	}
	if cfg.Logger != nil {
		opts = append(opts, openaicompat.WithLogger(cfg.Logger))
	}
	return openaicompat.New(cfg.APIKey, baseURL, opts...)
}

func defaultBaseURL(provider string) string {
	switch provider {
	case "openai":
		return "https://api.openai.com/v1"
	case "groq":
		return "https://api.groq.com/openai/v1"
	case "deepseek":
		return "https://api.deepseek.com/v1"
	case "together":
		return "https://api.together.xyz/v1"
	case "mistral":
		return "https://api.mistral.ai/v1"
	case "ollama":
		return "http://localhost:11434/v1"
	default:
		return ""
	}
}
