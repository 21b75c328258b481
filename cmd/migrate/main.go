// Command migrate imports results produced by the legacy extraction tool
// into the pricing-extractor results format.
package main

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"log"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"
)

func main() {
	if len(os.Args) < 4 {
		log.Fatal("Usage: migrate import <legacy-results.json> <results.json>")
	}

	command := os.Args[1]

	switch command {
	case "import":
		if err := importLegacy(os.Args[2], os.Args[3]); err != nil {
			log.Fatal(err)
		}
	default:
		log.Fatalf("Unknown command %q", command)
	}
}

// legacyEntry is one record of the legacy results map, keyed by product name
type legacyEntry struct {
	Name      string          `json:"name"`
	Domain    string          `json:"domain"`
	Website   string          `json:"website"`
	SourceURL string          `json:"source_url"`
	Success   bool            `json:"success"`
	Error     string          `json:"error"`
	Currency  string          `json:"currency"`
	Plans     json.RawMessage `json:"plans"`
}

// legacyCheckpoint wraps the legacy results map with progress counters
type legacyCheckpoint struct {
	Results        map[string]legacyEntry `json:"results"`
	ProcessedCount int                    `json:"processed_count"`
	TotalCount     int                    `json:"total_count"`
}

type priceData struct {
	Currency string          `json:"currency,omitempty"`
	Plans    json.RawMessage `json:"plans"`
}

type extractionResult struct {
	ItemID       string     `json:"item_id"`
	URL          string     `json:"url"`
	Title        string     `json:"title,omitempty"`
	Status       string     `json:"status"`
	SourceURL    string     `json:"source_url,omitempty"`
	Price        *priceData `json:"price_data,omitempty"`
	ErrorKind    string     `json:"error_kind,omitempty"`
	ErrorMessage string     `json:"error_message,omitempty"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

func importLegacy(legacyPath, resultsPath string) error {
	entries, err := loadLegacy(legacyPath)
	if err != nil {
		return err
	}

	record, err := loadResults(resultsPath)
	if err != nil {
		return err
	}

	names := make([]string, 0, len(entries))
	for name := range entries {
		names = append(names, name)
	}
	sort.Strings(names)

	imported, skipped, kept := 0, 0, 0
	for _, name := range names {
		entry := entries[name]

		rawURL := entry.Domain
		if rawURL == "" {
			rawURL = entry.Website
		}
		if rawURL == "" {
			log.Printf("Skipping %q: no URL", name)
			skipped++
			continue
		}

		normalized, err := normalizeURL(rawURL)
		if err != nil {
			log.Printf("Skipping %q: %v", name, err)
			skipped++
			continue
		}

		id := fmt.Sprintf("%s-%s", generateSlug(normalized), generateURLHash(normalized))
		if _, exists := record[id]; exists {
			// Never overwrite outcomes written by the current tool
			kept++
			continue
		}

		title := entry.Name
		if title == "" {
			title = name
		}

		result := extractionResult{
			ItemID:    id,
			URL:       normalized,
			Title:     title,
			SourceURL: entry.SourceURL,
			UpdatedAt: time.Now().UTC(),
		}

		if entry.Success {
			result.Status = "success"
			plans := entry.Plans
			if len(plans) == 0 {
				plans = json.RawMessage("[]")
			}
			result.Price = &priceData{Currency: entry.Currency, Plans: plans}
		} else {
			result.Status = "failed"
			result.ErrorKind = classifyLegacyError(entry.Error)
			result.ErrorMessage = entry.Error
		}

		record[id] = result
		imported++
	}

	if err := saveResults(resultsPath, record); err != nil {
		return err
	}

	log.Printf("Imported %d items into %s (%d skipped, %d already present)", imported, resultsPath, skipped, kept)
	return nil
}

// loadLegacy reads a legacy results file, unwrapping the checkpoint format
// when present
func loadLegacy(path string) (map[string]legacyEntry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading legacy file %s: %w", path, err)
	}

	var checkpoint legacyCheckpoint
	if err := json.Unmarshal(data, &checkpoint); err == nil && checkpoint.Results != nil {
		log.Printf("Detected checkpoint file: %d/%d processed", checkpoint.ProcessedCount, checkpoint.TotalCount)
		return checkpoint.Results, nil
	}

	var entries map[string]legacyEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parsing legacy file %s: %w", path, err)
	}
	return entries, nil
}

func loadResults(path string) (map[string]extractionResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return make(map[string]extractionResult), nil
		}
		return nil, fmt.Errorf("reading results file %s: %w", path, err)
	}

	var record map[string]extractionResult
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("parsing results file %s: %w", path, err)
	}
	if record == nil {
		record = make(map[string]extractionResult)
	}
	return record, nil
}

func saveResults(path string, record map[string]extractionResult) error {
	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling results: %w", err)
	}
	data = append(data, '\n')

	tmp, err := os.CreateTemp(filepath.Dir(path), ".results-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp results file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("writing temp results file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("closing temp results file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replacing results file: %w", err)
	}
	return nil
}

// classifyLegacyError maps legacy error strings to recorded error kinds
func classifyLegacyError(message string) string {
	switch {
	case strings.Contains(message, "pricing routes"),
		strings.Contains(message, "No pricing pages"),
		strings.Contains(message, "HTTP"):
		return "fetch"
	default:
		return "extract"
	}
}

func normalizeURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if !strings.HasPrefix(raw, "http://") && !strings.HasPrefix(raw, "https://") {
		raw = "https://" + raw
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("invalid URL %q: %w", raw, err)
	}
	if parsed.Host == "" {
		return "", fmt.Errorf("invalid URL %q: missing host", raw)
	}

	return parsed.String(), nil
}

func generateSlug(url string) string {
	re := regexp.MustCompile(`https?://(?:www\.)?([^/]+)`)
	matches := re.FindStringSubmatch(url)
	if len(matches) < 2 {
		return "item"
	}

	domain := matches[1]
	parts := strings.Split(domain, ".")
	if len(parts) > 0 {
		slug := parts[0]
		slug = strings.ToLower(slug)
		slug = regexp.MustCompile(`[^a-z0-9-]`).ReplaceAllString(slug, "-")
		slug = regexp.MustCompile(`-+`).ReplaceAllString(slug, "-")
		slug = strings.Trim(slug, "-")
		if slug == "" {
			return "item"
		}
		return slug
	}

	return "item"
}

func generateURLHash(url string) string {
	h := sha256.Sum256([]byte(url))
	return fmt.Sprintf("%x", h)[:8]
}
