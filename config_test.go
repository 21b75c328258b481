package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func chdirTemp(t *testing.T) string {
	t.Helper()
	tempDir := t.TempDir()
	oldWd, _ := os.Getwd()
	t.Cleanup(func() { os.Chdir(oldWd) })
	os.Chdir(tempDir)
	return tempDir
}

func TestEnsureConfigExists(t *testing.T) {
	chdirTemp(t)

	if err := ensureConfigExists(); err != nil {
		t.Fatalf("ensureConfigExists() error = %v", err)
	}

	settings, err := loadSettings()
	if err != nil {
		t.Fatalf("loadSettings() error = %v", err)
	}

	if settings.Extraction.Provider != "openrouter" {
		t.Errorf("default provider = %q, want openrouter", settings.Extraction.Provider)
	}
	if settings.Extraction.Model == "" {
		t.Error("default settings have no model")
	}
	if settings.Fetch.RequestIntervalMs != 2000 {
		t.Errorf("default request interval = %d, want 2000", settings.Fetch.RequestIntervalMs)
	}
	if settings.Discovery.Enabled {
		t.Error("discovery should default to disabled")
	}
}

func TestEnsureConfigExistsPreservesEdits(t *testing.T) {
	chdirTemp(t)

	os.MkdirAll(".pricing-extractor", 0755)
	custom := "results_file: custom.json\nextraction:\n  model: my-model\n"
	os.WriteFile(getConfigPath("settings.yaml"), []byte(custom), 0644)

	if err := ensureConfigExists(); err != nil {
		t.Fatalf("ensureConfigExists() error = %v", err)
	}

	content, err := os.ReadFile(getConfigPath("settings.yaml"))
	if err != nil {
		t.Fatalf("failed to read settings: %v", err)
	}
	if string(content) != custom {
		t.Error("ensureConfigExists() overwrote an existing settings file")
	}
}

func TestLoadSettingsClampsContentTokens(t *testing.T) {
	chdirTemp(t)

	os.MkdirAll(".pricing-extractor", 0755)
	os.WriteFile(getConfigPath("settings.yaml"), []byte("extraction:\n  content_max_tokens: 500\n"), 0644)

	settings, err := loadSettings()
	if err != nil {
		t.Fatalf("loadSettings() error = %v", err)
	}
	if settings.Extraction.ContentMaxTokens != minContentMaxTokens {
		t.Errorf("content_max_tokens = %d, want clamped to %d", settings.Extraction.ContentMaxTokens, minContentMaxTokens)
	}
}

func TestLoadSettingsAppliesDefaults(t *testing.T) {
	chdirTemp(t)

	os.MkdirAll(".pricing-extractor", 0755)
	os.WriteFile(getConfigPath("settings.yaml"), []byte("extraction:\n  model: my-model\n"), 0644)

	settings, err := loadSettings()
	if err != nil {
		t.Fatalf("loadSettings() error = %v", err)
	}

	if settings.ResultsFile != "pricing-results.json" {
		t.Errorf("results_file = %q, want default", settings.ResultsFile)
	}
	if settings.Fetch.TimeoutSeconds != 30 {
		t.Errorf("timeout_seconds = %d, want 30", settings.Fetch.TimeoutSeconds)
	}
	if settings.Fetch.MaxAttempts != 3 {
		t.Errorf("max_attempts = %d, want 3", settings.Fetch.MaxAttempts)
	}
	if settings.Extraction.MaxTokens != 4000 {
		t.Errorf("max_tokens = %d, want 4000", settings.Extraction.MaxTokens)
	}
	if settings.Extraction.Model != "my-model" {
		t.Errorf("model = %q, configured value should survive defaults", settings.Extraction.Model)
	}
	if settings.Discovery.MaxCandidates != 5 {
		t.Errorf("max_candidates = %d, want 5", settings.Discovery.MaxCandidates)
	}
}

func TestLoadSettingsMissingFile(t *testing.T) {
	chdirTemp(t)

	if _, err := loadSettings(); err == nil {
		t.Error("loadSettings() should fail without a settings file")
	}
}

func TestGetPromptOverrides(t *testing.T) {
	tempDir := t.TempDir()

	promptPath := filepath.Join(tempDir, "custom-prompt.md")
	os.WriteFile(promptPath, []byte("custom system prompt"), 0644)

	config := &Config{
		Settings:  &Settings{},
		Overrides: &ConfigOverrides{SystemPromptPath: &promptPath},
	}

	if got := config.GetSystemPrompt(); got != "custom system prompt" {
		t.Errorf("GetSystemPrompt() = %q, want override file content", got)
	}
	if !strings.Contains(config.GetUserPrompt(), "{{.content}}") {
		t.Error("embedded user prompt is missing the content variable")
	}
	if !strings.Contains(config.GetSchema(), "currency") {
		t.Error("embedded schema is missing the currency field")
	}
}

func TestGetPromptOverrideMissingFile(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "nope.md")
	config := &Config{
		Settings:  &Settings{},
		Overrides: &ConfigOverrides{SystemPromptPath: &missing},
	}

	if got := config.GetSystemPrompt(); got != defaultSystemPrompt {
		t.Error("GetSystemPrompt() should fall back to the embedded default")
	}
}
