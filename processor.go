package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
)

// minContentChars is the smallest page payload worth sending for analysis
const minContentChars = 100

// Pipeline runs work items sequentially: fetch, analyze, record. Every item
// outcome is persisted before the next item starts, so an interrupted run
// resumes where it left off.
type Pipeline struct {
	fetcher  *PageFetcher
	content  *ContentExtractor
	analyzer PricingAnalyzer
	store    *Store
	config   *Config

	limit       int
	retryFailed bool
}

// NewPipeline creates a pipeline with components built from settings
func NewPipeline(provider, apiKey, resultsPath string, config *Config) (*Pipeline, error) {
	analyzer, err := NewAnalyzer(provider, apiKey, config)
	if err != nil {
		return nil, err
	}

	fetch := config.Settings.Fetch
	return &Pipeline{
		fetcher: NewPageFetcher(
			time.Duration(fetch.RequestIntervalMs)*time.Millisecond,
			time.Duration(fetch.TimeoutSeconds)*time.Second,
			fetch.MaxAttempts,
		),
		content:  NewContentExtractor(fetch.ContentMaxChars),
		analyzer: analyzer,
		store:    NewStore(resultsPath),
		config:   config,
	}, nil
}

// SetLimit caps how many new items a single run processes, 0 means no cap
func (p *Pipeline) SetLimit(n int) {
	p.limit = n
}

// SetRetryFailed clears failed entries before the run so they reprocess
func (p *Pipeline) SetRetryFailed(enabled bool) {
	p.retryFailed = enabled
}

// Store returns the pipeline's progress store
func (p *Pipeline) Store() *Store {
	return p.store
}

// Run processes the items in order, skipping anything already recorded as
// terminal. The context is checked between items, never mid-item, so an
// interrupt always leaves a consistent results file.
func (p *Pipeline) Run(ctx context.Context, items []WorkItem) (*RunSummary, error) {
	if err := p.store.Load(); err != nil {
		return nil, err
	}

	if p.retryFailed {
		cleared, err := p.store.ResetFailed()
		if err != nil {
			return nil, err
		}
		if cleared > 0 {
			log.Printf("Cleared %d failed items for retry", cleared)
		}
	}

	summary := &RunSummary{
		RunID: uuid.New().String(),
		Total: len(items),
	}
	started := time.Now()

	log.Printf("Processing %d items (run %s)...", len(items), summary.RunID)

	processed := 0
	for i, item := range items {
		if err := ctx.Err(); err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				log.Printf("Max runtime reached, stopping. Progress saved, rerun to resume.")
			} else {
				log.Printf("Interrupted, stopping. Progress saved, rerun to resume.")
			}
			break
		}

		if p.store.IsComplete(item.ID) {
			summary.Skipped++
			log.Printf("[%d/%d] Skipping %s: already done", i+1, len(items), item.URL)
			continue
		}

		if p.limit > 0 && processed >= p.limit {
			log.Printf("Limit of %d items reached, stopping", p.limit)
			break
		}

		log.Printf("[%d/%d] Processing: %s", i+1, len(items), item.URL)
		result := p.processItem(item)
		processed++

		if err := p.store.Record(result); err != nil {
			return nil, fmt.Errorf("recording result for %s: %w", item.ID, err)
		}

		switch result.Status {
		case StatusSuccess:
			summary.Success++
			planCount := 0
			if result.Price != nil {
				planCount = len(result.Price.Plans)
			}
			log.Printf("✓ Extracted %d plans from %s", planCount, result.SourceURL)
		case StatusFailed:
			summary.Failed++
			log.Printf("✗ Failed %s: %s", result.URL, result.ErrorMessage)
		}
	}

	summary.Elapsed = time.Since(started)
	return summary, nil
}

// processItem runs one item through fetch, content cleanup, and analysis.
// Failures are captured in the result, never returned.
func (p *Pipeline) processItem(item WorkItem) ExtractionResult {
	result := ExtractionResult{
		ItemID: item.ID,
		URL:    item.URL,
		Title:  item.Title,
	}

	target := item.URL
	if p.config.Settings.Discovery.Enabled {
		target = DiscoverPricingURL(p.fetcher, item.URL, p.config.Settings.Discovery.MaxCandidates)
	}
	result.SourceURL = target

	log.Printf("  → Fetching content...")
	html, err := p.fetcher.Fetch(target)
	if err != nil {
		result.Status = StatusFailed
		result.ErrorKind = KindFetch
		result.ErrorMessage = err.Error()
		return result
	}

	page, err := p.content.Extract(html)
	if err != nil {
		result.Status = StatusFailed
		result.ErrorKind = KindFetch
		result.ErrorMessage = err.Error()
		return result
	}

	if len(page.Markdown) < minContentChars {
		result.Status = StatusFailed
		result.ErrorKind = KindExtract
		result.ErrorMessage = fmt.Sprintf("page content too short (%d chars)", len(page.Markdown))
		return result
	}

	if !page.PricingSignal {
		log.Printf("  No obvious pricing indicators on %s, analyzing anyway", target)
	}

	log.Printf("  → Analyzing pricing (%d chars)...", len(page.Markdown))
	price, err := p.analyzer.Analyze(item, page.Markdown)
	if err != nil {
		result.Status = StatusFailed
		result.ErrorKind = classifyAnalyzeError(err)
		result.ErrorMessage = err.Error()
		return result
	}

	// A well-formed reply with zero plans means the page had no pricing
	if price == nil || len(price.Plans) == 0 {
		result.Status = StatusFailed
		result.ErrorKind = KindExtract
		result.ErrorMessage = fmt.Sprintf("no pricing plans found on %s", target)
		return result
	}

	result.Status = StatusSuccess
	result.Price = price
	return result
}

// classifyAnalyzeError maps analyzer failures to recorded error kinds
func classifyAnalyzeError(err error) ErrorKind {
	var parseErr *ParseError
	if errors.As(err, &parseErr) {
		return KindExtractParse
	}
	var quotaErr *QuotaError
	if errors.As(err, &quotaErr) {
		return KindExtractQuota
	}
	return KindExtract
}

// PrintSummary logs the run totals and every failed item still in the store
func (p *Pipeline) PrintSummary(summary *RunSummary) {
	log.Printf("Run %s finished in %s", summary.RunID, summary.Elapsed.Round(time.Second))
	log.Printf("  Total:   %d", summary.Total)
	log.Printf("  Success: %d", summary.Success)
	log.Printf("  Failed:  %d", summary.Failed)
	log.Printf("  Skipped: %d", summary.Skipped)

	failed := p.store.Results().FailedItems()
	if len(failed) > 0 {
		log.Printf("Failed items:")
		for _, r := range failed {
			log.Printf("  ✗ %s (%s): %s", r.URL, r.ErrorKind, r.ErrorMessage)
		}
	}
}
