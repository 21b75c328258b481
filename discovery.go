package main

import (
	"log"
	"net/url"
)

// candidatePricingPaths are probed in order when discovery is enabled
var candidatePricingPaths = []string{"/pricing", "/price", "/plans", "/plan", "/subscription"}

// DiscoverPricingURL probes common pricing paths on the item's host and
// returns the first one that responds, falling back to the original URL.
// Probes share the fetcher's request pacing.
func DiscoverPricingURL(fetcher *PageFetcher, rawURL string, maxCandidates int) string {
	base, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}

	probed := 0
	for _, path := range candidatePricingPaths {
		if probed >= maxCandidates {
			break
		}
		candidate := base.ResolveReference(&url.URL{Path: path}).String()
		if candidate == rawURL {
			continue
		}
		probed++
		if fetcher.Exists(candidate) {
			log.Printf("  → Found pricing page: %s", candidate)
			return candidate
		}
		debugLog("no pricing page at %s", candidate)
	}

	return rawURL
}
