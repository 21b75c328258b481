package main

import (
	"sort"
	"time"
)

// WorkItem is one URL/title pair taken from the input list
type WorkItem struct {
	ID    string
	URL   string
	Title string
}

// ItemStatus represents the recorded outcome of processing an item
type ItemStatus string

const (
	StatusSuccess ItemStatus = "success"
	StatusFailed  ItemStatus = "failed"
	StatusSkipped ItemStatus = "skipped"
)

// Terminal reports whether a status is final. Terminal items are never
// reprocessed on resume; anything else is picked up again by the next run.
func (s ItemStatus) Terminal() bool {
	return s == StatusSuccess || s == StatusFailed
}

// ErrorKind classifies a recorded per-item failure
type ErrorKind string

const (
	KindFetch        ErrorKind = "fetch"
	KindExtract      ErrorKind = "extract"
	KindExtractParse ErrorKind = "extract_parse"
	KindExtractQuota ErrorKind = "extract_quota"
)

// PricingTier is a single purchasable configuration within a plan
type PricingTier struct {
	Type          string   `json:"type,omitempty"`
	UsageType     string   `json:"usage_type,omitempty"`
	BillingPeriod string   `json:"billing_period,omitempty"`
	Price         float64  `json:"price"`
	Currency      string   `json:"currency,omitempty"`
	Features      []string `json:"features,omitempty"`
}

// Plan is one named pricing plan with its tiers
type Plan struct {
	Name        string        `json:"name"`
	Description string        `json:"description,omitempty"`
	Tiers       []PricingTier `json:"pricing_tiers,omitempty"`
}

// PriceData is the structured pricing payload extracted from a page
type PriceData struct {
	Currency string `json:"currency,omitempty"`
	Plans    []Plan `json:"plans"`
}

// ExtractionResult is the durable per-item outcome stored in the results file
type ExtractionResult struct {
	ItemID       string     `json:"item_id"`
	URL          string     `json:"url"`
	Title        string     `json:"title,omitempty"`
	Status       ItemStatus `json:"status"`
	SourceURL    string     `json:"source_url,omitempty"`
	Price        *PriceData `json:"price_data,omitempty"`
	ErrorKind    ErrorKind  `json:"error_kind,omitempty"`
	ErrorMessage string     `json:"error_message,omitempty"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// ProgressRecord maps item IDs to recorded outcomes. It is the top-level
// value of the results file.
type ProgressRecord map[string]ExtractionResult

// SortedIDs returns the record's item IDs in lexical order
func (pr ProgressRecord) SortedIDs() []string {
	ids := make([]string, 0, len(pr))
	for id := range pr {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// FailedItems returns the failed entries in stable ID order
func (pr ProgressRecord) FailedItems() []ExtractionResult {
	var failed []ExtractionResult
	for _, id := range pr.SortedIDs() {
		if r := pr[id]; r.Status == StatusFailed {
			failed = append(failed, r)
		}
	}
	return failed
}

// RunSummary tracks counts for a single invocation
type RunSummary struct {
	RunID   string
	Total   int
	Success int
	Failed  int
	Skipped int
	Elapsed time.Duration
}
