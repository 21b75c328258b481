package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeLegacyFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "legacy.json")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("writing legacy file: %v", err)
	}
	return path
}

func readResults(t *testing.T, path string) map[string]extractionResult {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading results file: %v", err)
	}
	var record map[string]extractionResult
	if err := json.Unmarshal(data, &record); err != nil {
		t.Fatalf("parsing results file: %v", err)
	}
	return record
}

func TestImportLegacy(t *testing.T) {
	legacy := writeLegacyFile(t, `{
		"Acme": {"name": "Acme", "domain": "acme.com", "source_url": "https://acme.com/pricing", "success": true, "currency": "usd", "plans": [{"name": "Pro"}]},
		"Broken": {"name": "Broken", "website": "https://broken.io", "success": false, "error": "HTTP 403 error"},
		"NoURL": {"name": "NoURL", "success": false, "error": "never resolved"}
	}`)
	resultsPath := filepath.Join(t.TempDir(), "results.json")

	if err := importLegacy(legacy, resultsPath); err != nil {
		t.Fatalf("importLegacy() error = %v", err)
	}

	record := readResults(t, resultsPath)
	if len(record) != 2 {
		t.Fatalf("imported %d entries, want 2 (entry without URL skipped)", len(record))
	}

	acmeID := generateSlug("https://acme.com") + "-" + generateURLHash("https://acme.com")
	acme, ok := record[acmeID]
	if !ok {
		t.Fatalf("record missing %s, got keys %v", acmeID, keysOf(record))
	}
	if acme.Status != "success" {
		t.Errorf("acme status = %q, want success", acme.Status)
	}
	if acme.URL != "https://acme.com" {
		t.Errorf("acme url = %q, want normalized URL", acme.URL)
	}
	if acme.SourceURL != "https://acme.com/pricing" {
		t.Errorf("acme source_url = %q, want legacy source page", acme.SourceURL)
	}
	if acme.Price == nil || acme.Price.Currency != "usd" {
		t.Errorf("acme price = %+v, want usd currency", acme.Price)
	}
	if acme.Price != nil && !strings.Contains(string(acme.Price.Plans), "Pro") {
		t.Errorf("acme plans = %s, want legacy plans carried over", acme.Price.Plans)
	}

	brokenID := generateSlug("https://broken.io") + "-" + generateURLHash("https://broken.io")
	broken, ok := record[brokenID]
	if !ok {
		t.Fatalf("record missing %s", brokenID)
	}
	if broken.Status != "failed" || broken.ErrorKind != "fetch" {
		t.Errorf("broken = %q/%q, want failed/fetch", broken.Status, broken.ErrorKind)
	}
	if broken.ErrorMessage != "HTTP 403 error" {
		t.Errorf("broken error = %q, want legacy message", broken.ErrorMessage)
	}
}

func TestImportLegacyCheckpoint(t *testing.T) {
	legacy := writeLegacyFile(t, `{
		"results": {
			"Acme": {"name": "Acme", "domain": "acme.com", "success": true, "currency": "eur"}
		},
		"processed_count": 1,
		"total_count": 5
	}`)
	resultsPath := filepath.Join(t.TempDir(), "results.json")

	if err := importLegacy(legacy, resultsPath); err != nil {
		t.Fatalf("importLegacy() error = %v", err)
	}

	record := readResults(t, resultsPath)
	if len(record) != 1 {
		t.Fatalf("imported %d entries from checkpoint, want 1", len(record))
	}
	for _, result := range record {
		if result.Status != "success" {
			t.Errorf("status = %q, want success", result.Status)
		}
		if result.Price == nil || string(result.Price.Plans) != "[]" {
			t.Errorf("entry without plans should get an empty plans array, got %+v", result.Price)
		}
	}
}

func TestImportLegacyKeepsExistingResults(t *testing.T) {
	id := generateSlug("https://acme.com") + "-" + generateURLHash("https://acme.com")
	resultsPath := filepath.Join(t.TempDir(), "results.json")
	existing := `{"` + id + `": {"item_id": "` + id + `", "url": "https://acme.com", "status": "failed", "error_kind": "fetch", "updated_at": "2026-01-01T00:00:00Z"}}`
	if err := os.WriteFile(resultsPath, []byte(existing), 0644); err != nil {
		t.Fatalf("writing results file: %v", err)
	}

	legacy := writeLegacyFile(t, `{
		"Acme": {"name": "Acme", "domain": "acme.com", "success": true, "currency": "usd", "plans": []}
	}`)

	if err := importLegacy(legacy, resultsPath); err != nil {
		t.Fatalf("importLegacy() error = %v", err)
	}

	record := readResults(t, resultsPath)
	if record[id].Status != "failed" {
		t.Errorf("existing entry was overwritten: status = %q, want failed", record[id].Status)
	}
}

func TestClassifyLegacyError(t *testing.T) {
	tests := []struct {
		message  string
		expected string
	}{
		{"Could not find pricing routes", "fetch"},
		{"No pricing pages found for domain", "fetch"},
		{"HTTP 404 error", "fetch"},
		{"AI returned invalid JSON", "extract"},
		{"", "extract"},
	}

	for _, tt := range tests {
		if got := classifyLegacyError(tt.message); got != tt.expected {
			t.Errorf("classifyLegacyError(%q) = %q, want %q", tt.message, got, tt.expected)
		}
	}
}

func keysOf(record map[string]extractionResult) []string {
	keys := make([]string, 0, len(record))
	for k := range record {
		keys = append(keys, k)
	}
	return keys
}
