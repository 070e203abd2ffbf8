// Package config loads conclave CLI configuration from a TOML file with
// environment variable overrides.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
)

type Config struct {
	LLM      LLMConfig      `toml:"llm"`
	Debate   DebateConfig   `toml:"debate"`
	Agents   []AgentConfig  `toml:"agents"`
	Judge    AgentConfig    `toml:"judge"`
	Store    StoreConfig    `toml:"store"`
	Guard    GuardConfig    `toml:"guard"`
	Observer ObserverConfig `toml:"observer"`
}

// LLMConfig is the default provider for agents that do not set their own.
type LLMConfig struct {
	Provider string `toml:"provider"`
	Model    string `toml:"model"`
	APIKey   string `toml:"api_key"`
	BaseURL  string `toml:"base_url"`
}

type DebateConfig struct {
	Rounds               int                 `toml:"rounds"`
	TimeoutPerRoundSecs  int                 `toml:"timeout_per_round_seconds"`
	IncludeFullHistory   bool                `toml:"include_full_history"`
	CollectQuestions     bool                `toml:"collect_questions"`
	MaxQuestionsPerAgent int                 `toml:"max_questions_per_agent"`
	Summarization        SummarizationConfig `toml:"summarization"`
}

// TimeoutPerRound returns the configured per-round deadline.
func (d DebateConfig) TimeoutPerRound() time.Duration {
	return time.Duration(d.TimeoutPerRoundSecs) * time.Second
}

type SummarizationConfig struct {
	Enabled   bool `toml:"enabled"`
	Threshold int  `toml:"threshold"`
	MaxLength int  `toml:"max_length"`
}

type AgentConfig struct {
	ID          string  `toml:"id"`
	Name        string  `toml:"name"`
	Role        string  `toml:"role"`
	Model       string  `toml:"model"`
	Provider    string  `toml:"provider"`
	Temperature float64 `toml:"temperature"`
	Enabled     *bool   `toml:"enabled"`
}

type StoreConfig struct {
	Backend     string `toml:"backend"` // "file", "sqlite", "postgres"
	Dir         string `toml:"dir"`     // file backend
	Path        string `toml:"path"`    // sqlite backend
	PostgresDSN string `toml:"postgres_dsn"`
}

type GuardConfig struct {
	Blocking bool     `toml:"blocking"`
	Patterns []string `toml:"patterns"`
}

type ObserverConfig struct {
	Enabled bool                       `toml:"enabled"`
	Pricing map[string]ObserverPricing `toml:"pricing"`
}

type ObserverPricing struct {
	Input  float64 `toml:"input"`
	Output float64 `toml:"output"`
}

// Default returns a Config with all defaults applied: a three-agent panel
// and a judge on the default provider, file storage, warn-only guard.
func Default() Config {
	return Config{
		LLM: LLMConfig{Provider: "openai", Model: "gpt-4o-mini"},
		Debate: DebateConfig{
			Rounds:               2,
			TimeoutPerRoundSecs:  300,
			MaxQuestionsPerAgent: 3,
			Summarization:        SummarizationConfig{Enabled: true, Threshold: 8000, MaxLength: 2000},
		},
		Agents: []AgentConfig{
			{ID: "architect", Name: "Architect", Role: "architect", Temperature: 0.7},
			{ID: "performance", Name: "Performance", Role: "performance", Temperature: 0.7},
			{ID: "security", Name: "Security", Role: "security", Temperature: 0.7},
		},
		Judge: AgentConfig{ID: "judge", Name: "Judge", Role: "judge", Temperature: 0.3},
		Store: StoreConfig{Backend: "file", Dir: "debates", Path: "conclave.db"},
	}
}

// Load reads config: defaults -> TOML file -> env vars (env wins).
func Load(path string) Config {
	cfg := Default()

	if path == "" {
		path = "conclave.toml"
	}

	if data, err := os.ReadFile(path); err == nil {
		_ = toml.Unmarshal(data, &cfg)
	}

	// Env overrides
	if v := os.Getenv("CONCLAVE_LLM_API_KEY"); v != "" {
		cfg.LLM.APIKey = v
	}
	if v := os.Getenv("CONCLAVE_LLM_PROVIDER"); v != "" {
		cfg.LLM.Provider = v
	}
	if v := os.Getenv("CONCLAVE_LLM_MODEL"); v != "" {
		cfg.LLM.Model = v
	}
	if v := os.Getenv("CONCLAVE_LLM_BASE_URL"); v != "" {
		cfg.LLM.BaseURL = v
	}
	if v := os.Getenv("CONCLAVE_STORE_BACKEND"); v != "" {
		cfg.Store.Backend = v
	}
	if v := os.Getenv("CONCLAVE_STORE_DIR"); v != "" {
		cfg.Store.Dir = v
	}
	if v := os.Getenv("CONCLAVE_POSTGRES_DSN"); v != "" {
		cfg.Store.PostgresDSN = v
	}
	if v := os.Getenv("CONCLAVE_ROUNDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Debate.Rounds = n
		}
	}
	if v := os.Getenv("CONCLAVE_OBSERVER_ENABLED"); v != "" {
		cfg.Observer.Enabled = v == "1" || v == "true"
	}

	return cfg
}
