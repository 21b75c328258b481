package main

import (
	"crypto/sha256"
	"encoding/csv"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"regexp"
	"strings"
	"time"
)

// LoadItems reads work items from a local CSV file or an HTTP(S) URL.
// An input that yields no usable items is an error.
func LoadItems(source string) ([]WorkItem, error) {
	var items []WorkItem
	var err error
	if strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") {
		items, err = loadItemsFromURL(source)
	} else {
		items, err = loadItemsFromFile(source)
	}
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("no usable items in %s", source)
	}
	return items, nil
}

// loadItemsFromFile loads work items from a local CSV file
func loadItemsFromFile(path string) ([]WorkItem, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening input file: %w", err)
	}
	defer f.Close()

	return parseItems(f)
}

// loadItemsFromURL loads work items from a CSV URL
func loadItemsFromURL(csvURL string) ([]WorkItem, error) {
	client := &http.Client{
		Timeout: 30 * time.Second,
	}

	resp, err := client.Get(csvURL)
	if err != nil {
		return nil, fmt.Errorf("fetching CSV from URL: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP error %d when fetching CSV", resp.StatusCode)
	}

	return parseItems(resp.Body)
}

// parseItems converts CSV rows to work items. Malformed rows are logged and
// skipped, duplicate URLs keep the first occurrence.
func parseItems(r io.Reader) ([]WorkItem, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	// Default column layout when no header row is present
	urlIdx, titleIdx := 0, 1
	headerChecked := false

	seen := make(map[string]bool)
	var items []WorkItem
	row := 0

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		row++
		if err != nil {
			log.Printf("Warning: row %d: %v, skipping", row, err)
			continue
		}

		if !headerChecked {
			headerChecked = true
			if u, t, ok := headerIndexes(record); ok {
				urlIdx = u
				if t != -1 {
					titleIdx = t
				}
				continue
			}
		}

		if urlIdx >= len(record) || strings.TrimSpace(record[urlIdx]) == "" {
			log.Printf("Warning: row %d: missing URL, skipping", row)
			continue
		}

		normalized, err := normalizeURL(record[urlIdx])
		if err != nil {
			log.Printf("Warning: row %d: %v, skipping", row, err)
			continue
		}

		if seen[normalized] {
			log.Printf("Skipping duplicate URL %s (row %d)", normalized, row)
			continue
		}
		seen[normalized] = true

		title := ""
		if titleIdx < len(record) {
			title = strings.TrimSpace(record[titleIdx])
		}
		if title == "" {
			title = extractDomain(normalized)
		}

		items = append(items, WorkItem{
			ID:    generateItemID(normalized),
			URL:   normalized,
			Title: title,
		})
	}

	return items, nil
}

// headerIndexes detects a header row and maps its columns. The url and title
// columns also match their legacy names, website and name.
func headerIndexes(record []string) (urlIdx, titleIdx int, ok bool) {
	urlIdx, titleIdx = -1, -1
	for i, cell := range record {
		switch strings.ToLower(strings.TrimSpace(cell)) {
		case "url", "website":
			if urlIdx == -1 {
				urlIdx = i
			}
		case "title", "name":
			if titleIdx == -1 {
				titleIdx = i
			}
		}
	}
	return urlIdx, titleIdx, urlIdx != -1
}

// normalizeURL trims the raw value, prepends https:// when the scheme is
// missing, and validates the result
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

// generateItemID creates a stable item identifier from a normalized URL
func generateItemID(url string) string {
	return fmt.Sprintf("%s-%s", generateSlug(url), generateURLHash(url))
}

// generateSlug creates a short slug from a URL
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

// generateURLHash returns the first 8 hex characters of the URL's SHA-256
func generateURLHash(url string) string {
	h := sha256.Sum256([]byte(url))
	return fmt.Sprintf("%x", h)[:8]
}

// extractDomain extracts the domain name from a URL
func extractDomain(url string) string {
	re := regexp.MustCompile(`https?://(?:www\.)?([^/]+)`)
	matches := re.FindStringSubmatch(url)
	if len(matches) >= 2 {
		return matches[1]
	}
	return url
}
