package main

import (
	"fmt"
	"regexp"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"
)

// pricingSelectors are class patterns that commonly mark pricing sections
var pricingSelectors = []string{
	".pricing", ".price", ".plan", ".subscription", ".billing",
	".pricing-table", ".price-table", ".plan-table",
	".subscription-plans", ".pricing-card", ".price-card", ".plan-card",
	`[class*="pricing"]`, `[class*="price"]`, `[class*="plan"]`,
	".product-pricing", ".package", ".tier", ".offer",
}

var currencyMarkers = []string{"PLN", "$", "€", "£"}

var priceRe = regexp.MustCompile(`\d+[.,]?\d*\s?(?:PLN|\$|€|£)`)

// PageContent is the cleaned text of a page plus a pricing-signal flag.
// The flag is informational, pages without an obvious signal are analyzed
// anyway.
type PageContent struct {
	Markdown      string
	PricingSignal bool
}

// ContentExtractor turns raw page HTML into trimmed markdown for analysis
type ContentExtractor struct {
	converter *md.Converter
	maxChars  int
}

// NewContentExtractor creates an extractor that caps output at maxChars
func NewContentExtractor(maxChars int) *ContentExtractor {
	return &ContentExtractor{
		converter: md.NewConverter("", true, nil),
		maxChars:  maxChars,
	}
}

// Extract strips boilerplate elements, converts the body to markdown, and
// caps its length
func (ce *ContentExtractor) Extract(html string) (*PageContent, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parsing HTML: %w", err)
	}

	doc.Find("script, style, nav, footer, header").Remove()

	signal := hasPricingSignal(doc)

	body := doc.Find("body")
	if body.Length() == 0 {
		return nil, fmt.Errorf("no body element found")
	}

	bodyHTML, err := body.Html()
	if err != nil {
		return nil, fmt.Errorf("extracting body HTML: %w", err)
	}

	markdown, err := ce.converter.ConvertString(bodyHTML)
	if err != nil {
		return nil, fmt.Errorf("converting HTML to markdown: %w", err)
	}

	markdown = strings.TrimSpace(markdown)
	if len(markdown) > ce.maxChars {
		markdown = markdown[:ce.maxChars]
	}

	return &PageContent{
		Markdown:      markdown,
		PricingSignal: signal,
	}, nil
}

// hasPricingSignal checks for pricing indicators. Selector matches win,
// otherwise a card-styled div holding a currency marker or a price pattern
// anywhere in the text counts
func hasPricingSignal(doc *goquery.Document) bool {
	for _, selector := range pricingSelectors {
		if doc.Find(selector).Length() > 0 {
			return true
		}
	}

	signal := false
	doc.Find(`div[class*="border-"]`).EachWithBreak(func(_ int, card *goquery.Selection) bool {
		text := card.Text()
		for _, marker := range currencyMarkers {
			if strings.Contains(text, marker) {
				signal = true
				return false
			}
		}
		return true
	})
	if signal {
		return true
	}

	return priceRe.MatchString(doc.Text())
}
