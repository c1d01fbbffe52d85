package store

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	ProviderGenAI = "GENAI"
	ProviderREST  = "REST"
	ProviderNoop  = "NOOP"

	DefaultMinSignal = 50.0
)

type Config struct {
	PollSeconds int `yaml:"poll_seconds"`
	Dirs        struct {
		Source  string `yaml:"source"`
		Service string `yaml:"service"`
		Predict string `yaml:"predict"`
	} `yaml:"dirs"`
	LLM struct {
		Provider        string `yaml:"provider"`
		Model           string `yaml:"model"`
		URL             string `yaml:"url"`
		APIKeyEnv       string `yaml:"api_key_env"`
		CooldownSeconds int    `yaml:"cooldown_seconds"`
		BackoffSeconds  int    `yaml:"backoff_seconds"`
		TimeoutSeconds  int    `yaml:"timeout_seconds"`
	} `yaml:"llm"`
	Queue struct {
		EscalationThreshold int `yaml:"escalation_threshold"`
	} `yaml:"queue"`
	H4 struct {
		Enabled   *bool    `yaml:"enabled"`
		MinSignal *float64 `yaml:"min_signal"`
	} `yaml:"h4"`
	Prompts struct {
		Daily  string `yaml:"daily"`
		H4     string `yaml:"h4"`
		Trader string `yaml:"trader"`
	} `yaml:"prompts"`
	Journal struct {
		Dir           string `yaml:"dir"`
		RetentionDays int    `yaml:"retention_days"`
	} `yaml:"journal"`
}

// H4Enabled reports whether the 4-hour phase runs. Unset means enabled.
func (c *Config) H4Enabled() bool {
	return c.H4.Enabled == nil || *c.H4.Enabled
}

// H4MinSignal is the BUY or SELL score a daily entry must exceed to get a
// 4-hour call. Unset means 50; 0 admits every scored entry.
func (c *Config) H4MinSignal() float64 {
	if c.H4.MinSignal == nil {
		return DefaultMinSignal
	}
	return *c.H4.MinSignal
}

// APIKey reads the key from the environment variable named by llm.api_key_env.
func (c *Config) APIKey() string {
	return os.Getenv(c.LLM.APIKeyEnv)
}

// DirsSet reports whether all three exchange directories are configured.
func (c *Config) DirsSet() bool {
	return c.Dirs.Source != "" && c.Dirs.Service != "" && c.Dirs.Predict != ""
}

func (c *Config) Validate() error {
	switch c.LLM.Provider {
	case ProviderGenAI, ProviderREST, ProviderNoop:
	default:
		return fmt.Errorf("invalid llm.provider '%s': must be 'GENAI', 'REST' or 'NOOP'", c.LLM.Provider)
	}
	if c.LLM.Provider == ProviderREST && c.LLM.URL == "" {
		return errors.New("llm.url is required for the REST provider")
	}
	if c.PollSeconds < 0 {
		return fmt.Errorf("poll_seconds must be positive, got %d", c.PollSeconds)
	}
	if c.LLM.CooldownSeconds < 0 || c.LLM.BackoffSeconds < 0 {
		return errors.New("llm.cooldown_seconds and llm.backoff_seconds cannot be negative")
	}
	if c.Queue.EscalationThreshold < 1 {
		return fmt.Errorf("queue.escalation_threshold must be at least 1, got %d", c.Queue.EscalationThreshold)
	}
	if m := c.H4MinSignal(); m < 0 || m > 100 {
		return fmt.Errorf("h4.min_signal must be between 0-100, got %.2f", m)
	}
	return nil
}

// LoadConfig reads path (a missing file means defaults), applies the
// environment overrides and validates. Directories are checked per cycle.
func LoadConfig(path string) (*Config, error) {
	var c Config
	b, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(b, &c); err != nil {
			return nil, err
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, err
	}

	applyEnv(&c)
	applyDefaults(&c)

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &c, nil
}

func applyEnv(c *Config) {
	override := func(dst *string, key string) {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			*dst = v
		}
	}
	override(&c.Dirs.Source, "MQL_SOURCE_FOLDER")
	override(&c.Dirs.Service, "SERVICE_DEST_FOLDER")
	override(&c.Dirs.Predict, "PREDICT_DEST_FOLDER")
	override(&c.LLM.URL, "GEMINI_URL")
	override(&c.LLM.Model, "GEMINI_MODEL")
	override(&c.LLM.Provider, "LLM_PROVIDER")
}

func applyDefaults(c *Config) {
	if c.PollSeconds == 0 {
		c.PollSeconds = 60
	}
	c.LLM.Provider = strings.ToUpper(c.LLM.Provider)
	if c.LLM.Provider == "" {
		if c.LLM.URL != "" {
			c.LLM.Provider = ProviderREST
		} else {
			c.LLM.Provider = ProviderGenAI
		}
	}
	if c.LLM.Model == "" {
		c.LLM.Model = "gemini-2.0-flash"
	}
	if c.LLM.APIKeyEnv == "" {
		c.LLM.APIKeyEnv = "GEMINI_API_KEY"
	}
	if c.LLM.CooldownSeconds == 0 {
		c.LLM.CooldownSeconds = 5
	}
	if c.LLM.BackoffSeconds == 0 {
		c.LLM.BackoffSeconds = 36
	}
	if c.LLM.TimeoutSeconds == 0 {
		c.LLM.TimeoutSeconds = 120
	}
	if c.Queue.EscalationThreshold == 0 {
		c.Queue.EscalationThreshold = 5
	}
	if c.Journal.Dir == "" {
		c.Journal.Dir = "logs"
	}
	if c.Journal.RetentionDays == 0 {
		c.Journal.RetentionDays = 30
	}
}
