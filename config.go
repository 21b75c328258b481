package main

import (
	_ "embed"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

const minContentMaxTokens = 2000

// ConfigOverrides allows overriding embedded defaults with file paths
type ConfigOverrides struct {
	SystemPromptPath *string
	UserPromptPath   *string
	SchemaPath       *string
}

// Embedded configuration files
//
//go:embed .pricing-extractor/extraction-system-prompt.md
var defaultSystemPrompt string

//go:embed .pricing-extractor/extraction-user-prompt.md
var defaultUserPrompt string

//go:embed .pricing-extractor/pricing-output-schema.json
var defaultSchema string

// Settings represents the YAML configuration structure
type Settings struct {
	ResultsFile string `yaml:"results_file"`
	Fetch       struct {
		RequestIntervalMs int `yaml:"request_interval_ms"`
		TimeoutSeconds    int `yaml:"timeout_seconds"`
		MaxAttempts       int `yaml:"max_attempts"`
		ContentMaxChars   int `yaml:"content_max_chars"`
	} `yaml:"fetch"`
	Extraction struct {
		Provider         string  `yaml:"provider"`
		Model            string  `yaml:"model"`
		MaxTokens        int     `yaml:"max_tokens"`
		Temperature      float64 `yaml:"temperature"`
		ContentMaxTokens int     `yaml:"content_max_tokens"`
	} `yaml:"extraction"`
	Discovery struct {
		Enabled       bool `yaml:"enabled"`
		MaxCandidates int  `yaml:"max_candidates"`
	} `yaml:"discovery"`
}

// Config holds configuration and overrides
type Config struct {
	Settings  *Settings
	Overrides *ConfigOverrides
}

// NewConfig creates a new Config with settings and overrides
func NewConfig(overrides *ConfigOverrides) (*Config, error) {
	settings, err := loadSettings()
	if err != nil {
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}

	return &Config{
		Settings:  settings,
		Overrides: overrides,
	}, nil
}

// GetSystemPrompt returns the extraction system prompt (from override file or embedded)
func (c *Config) GetSystemPrompt() string {
	if c.Overrides != nil && c.Overrides.SystemPromptPath != nil {
		if content, err := os.ReadFile(*c.Overrides.SystemPromptPath); err == nil {
			return string(content)
		}
	}
	return defaultSystemPrompt
}

// GetUserPrompt returns the extraction user prompt template (from override file or embedded)
func (c *Config) GetUserPrompt() string {
	if c.Overrides != nil && c.Overrides.UserPromptPath != nil {
		if content, err := os.ReadFile(*c.Overrides.UserPromptPath); err == nil {
			return string(content)
		}
	}
	return defaultUserPrompt
}

// GetSchema returns the pricing output schema (from override file or embedded)
func (c *Config) GetSchema() string {
	if c.Overrides != nil && c.Overrides.SchemaPath != nil {
		if content, err := os.ReadFile(*c.Overrides.SchemaPath); err == nil {
			return string(content)
		}
	}
	return defaultSchema
}

// loadSettings loads settings from the default location
func loadSettings() (*Settings, error) {
	settingsPath := getConfigPath("settings.yaml")

	data, err := os.ReadFile(settingsPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read settings file %s: %w", settingsPath, err)
	}

	var settings Settings
	if err := yaml.Unmarshal(data, &settings); err != nil {
		return nil, fmt.Errorf("failed to parse settings YAML: %w", err)
	}

	// Ensure ContentMaxTokens is at least the minimum
	if settings.Extraction.ContentMaxTokens < minContentMaxTokens {
		log.Printf("Warning: extraction.content_max_tokens is %d, defaulting to %d (minimum)", settings.Extraction.ContentMaxTokens, minContentMaxTokens)
		settings.Extraction.ContentMaxTokens = minContentMaxTokens
	}

	applyDefaults(&settings)

	return &settings, nil
}

// applyDefaults fills zero values left by a hand-edited settings file
func applyDefaults(settings *Settings) {
	if settings.ResultsFile == "" {
		settings.ResultsFile = "pricing-results.json"
	}
	if settings.Fetch.RequestIntervalMs <= 0 {
		settings.Fetch.RequestIntervalMs = 2000
	}
	if settings.Fetch.TimeoutSeconds <= 0 {
		settings.Fetch.TimeoutSeconds = 30
	}
	if settings.Fetch.MaxAttempts <= 0 {
		settings.Fetch.MaxAttempts = 3
	}
	if settings.Fetch.ContentMaxChars <= 0 {
		settings.Fetch.ContentMaxChars = 50000
	}
	if settings.Extraction.Provider == "" {
		settings.Extraction.Provider = "openrouter"
	}
	if settings.Extraction.MaxTokens <= 0 {
		settings.Extraction.MaxTokens = 4000
	}
	if settings.Discovery.MaxCandidates <= 0 {
		settings.Discovery.MaxCandidates = 5
	}
}

// getConfigPath returns the path to a config file in .pricing-extractor directory
func getConfigPath(filename string) string {
	return filepath.Join(".pricing-extractor", filename)
}

// ensureConfigExists creates the config directory and default files if they don't exist
func ensureConfigExists() error {
	configDir := ".pricing-extractor"

	if _, err := os.Stat(configDir); os.IsNotExist(err) {
		if err := os.MkdirAll(configDir, 0755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}

	// Write default settings if it doesn't exist
	settingsPath := getConfigPath("settings.yaml")
	if _, err := os.Stat(settingsPath); os.IsNotExist(err) {
		defaultSettings := `results_file: pricing-results.json
fetch:
  request_interval_ms: 2000
  timeout_seconds: 30
  max_attempts: 3
  content_max_chars: 50000
extraction:
  provider: openrouter
  model: x-ai/grok-4-fast:free
  max_tokens: 4000
  temperature: 0.0
  content_max_tokens: 12000
discovery:
  enabled: false
  max_candidates: 5
`
		if err := os.WriteFile(settingsPath, []byte(defaultSettings), 0644); err != nil {
			return fmt.Errorf("failed to write default settings: %w", err)
		}
	}

	return nil
}
