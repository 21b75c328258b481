package main

import (
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"sync"
	"time"
)

// HTTPError represents an HTTP error with status code
type HTTPError struct {
	StatusCode int
	URL        string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d for %s", e.StatusCode, e.URL)
}

var debugEnabled bool

// SetDebugMode enables or disables debug logging
func SetDebugMode(enabled bool) {
	debugEnabled = enabled
}

func debugLog(format string, args ...interface{}) {
	if debugEnabled {
		log.Printf("[DEBUG] "+format, args...)
	}
}

// PageFetcher retrieves page HTML with a minimum interval between requests
// and a bounded retry ladder. One fetcher is shared by the whole run so the
// interval applies across every outbound request.
type PageFetcher struct {
	client      *http.Client
	interval    time.Duration
	maxAttempts int

	mu          sync.Mutex
	lastRequest time.Time

	// Clock hooks, replaced in tests to verify pacing without real sleeps
	now   func() time.Time
	sleep func(time.Duration)
}

// NewPageFetcher creates a fetcher with the given pacing and retry limits
func NewPageFetcher(interval, timeout time.Duration, maxAttempts int) *PageFetcher {
	return &PageFetcher{
		client:      &http.Client{Timeout: timeout},
		interval:    interval,
		maxAttempts: maxAttempts,
		now:         time.Now,
		sleep:       time.Sleep,
	}
}

// Fetch retrieves the raw HTML for a URL. Transient failures are retried with
// exponential backoff; other HTTP errors are returned immediately.
func (f *PageFetcher) Fetch(url string) (string, error) {
	var lastErr error
	for i := 0; i < f.maxAttempts; i++ {
		body, err := f.fetchOnce(url)
		if err == nil {
			return body, nil
		}
		lastErr = err

		if !isRetryable(err) {
			return "", err
		}

		if i < f.maxAttempts-1 {
			f.sleep(retryBackoff(i))
		}
	}
	return "", fmt.Errorf("exceeded max retries after %d attempts: %w", f.maxAttempts, lastErr)
}

// retryBackoff returns the wait before transient-error attempt i+1,
// exponential with jitter: 2^i + 0.5*(1+i) seconds
func retryBackoff(i int) time.Duration {
	backoff := time.Duration(1<<uint(i)) * time.Second
	jitter := time.Duration(float64(time.Second) * 0.5 * (1.0 + float64(i)))
	return backoff + jitter
}

// Exists probes whether a URL responds with 200. HEAD is tried first, with a
// GET fallback for servers that reject HEAD.
func (f *PageFetcher) Exists(url string) bool {
	f.waitTurn()

	req, err := http.NewRequest("HEAD", url, nil)
	if err != nil {
		return false
	}
	setBrowserHeaders(req)

	if resp, err := f.client.Do(req); err == nil {
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
		if resp.StatusCode == http.StatusOK {
			return true
		}
		if resp.StatusCode != http.StatusMethodNotAllowed && resp.StatusCode != http.StatusForbidden {
			return false
		}
	}

	_, err = f.fetchOnce(url)
	return err == nil
}

// fetchOnce performs a single paced request
func (f *PageFetcher) fetchOnce(url string) (string, error) {
	f.waitTurn()

	req, err := http.NewRequest("GET", url, nil)
	if err != nil {
		return "", err
	}
	setBrowserHeaders(req)

	resp, err := f.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	debugLog("fetch %s: status=%d", url, resp.StatusCode)

	if resp.StatusCode != http.StatusOK {
		return "", &HTTPError{StatusCode: resp.StatusCode, URL: url}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}

	return string(body), nil
}

// waitTurn enforces the minimum interval between outbound requests
func (f *PageFetcher) waitTurn() {
	f.mu.Lock()
	elapsed := f.now().Sub(f.lastRequest)
	if !f.lastRequest.IsZero() && elapsed < f.interval {
		f.sleep(f.interval - elapsed)
	}
	f.lastRequest = f.now()
	f.mu.Unlock()
}

// isRetryable reports whether a fetch error is worth another attempt.
// Network errors, timeouts, 408, 429, and 5xx responses are transient;
// any other HTTP status fails immediately.
func isRetryable(err error) bool {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		switch {
		case httpErr.StatusCode == http.StatusRequestTimeout:
			return true
		case httpErr.StatusCode == http.StatusTooManyRequests:
			return true
		case httpErr.StatusCode >= 500:
			return true
		default:
			return false
		}
	}
	return true
}

// setBrowserHeaders mimics a desktop browser. Several pricing pages return
// 403 to the default Go client headers.
func setBrowserHeaders(req *http.Request) {
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36")
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")
	req.Header.Set("Connection", "keep-alive")
	req.Header.Set("Upgrade-Insecure-Requests", "1")
}
