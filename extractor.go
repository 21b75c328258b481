package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/aktagon/llmkit/anthropic"
	"github.com/aktagon/llmkit/anthropic/types"
)

const (
	openRouterEndpoint = "https://openrouter.ai/api/v1/chat/completions"
	maxAnalyzeAttempts = 3
)

// ParseError reports a model reply that contained no usable JSON
type ParseError struct {
	Raw string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("no valid JSON in model response: %q", e.Raw)
}

// QuotaError reports a provider rate-limit or quota rejection
type QuotaError struct {
	Provider string
	Message  string
}

func (e *QuotaError) Error() string {
	return fmt.Sprintf("%s quota exhausted: %s", e.Provider, e.Message)
}

// PricingAnalyzer sends page content to a completion API and parses the reply
type PricingAnalyzer interface {
	Analyze(item WorkItem, content string) (*PriceData, error)
}

// NewAnalyzer selects the completion provider from settings
func NewAnalyzer(provider, apiKey string, config *Config) (PricingAnalyzer, error) {
	switch provider {
	case "openrouter":
		return NewOpenRouterAnalyzer(apiKey, config), nil
	case "anthropic":
		return NewAnthropicAnalyzer(apiKey, config), nil
	default:
		return nil, fmt.Errorf("unknown extraction provider %q (must be openrouter or anthropic)", provider)
	}
}

// OpenRouterAnalyzer calls an OpenAI-compatible chat completions API
type OpenRouterAnalyzer struct {
	apiKey   string
	config   *Config
	client   *http.Client
	endpoint string
	siteURL  string
	siteName string
	sleep    func(time.Duration)
}

// NewOpenRouterAnalyzer creates an analyzer for the OpenRouter API. Optional
// attribution headers are read from YOUR_SITE_URL and YOUR_SITE_NAME.
func NewOpenRouterAnalyzer(apiKey string, config *Config) *OpenRouterAnalyzer {
	return &OpenRouterAnalyzer{
		apiKey:   apiKey,
		config:   config,
		client:   &http.Client{Timeout: 120 * time.Second},
		endpoint: openRouterEndpoint,
		siteURL:  os.Getenv("YOUR_SITE_URL"),
		siteName: os.Getenv("YOUR_SITE_NAME"),
		sleep:    time.Sleep,
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Code    int    `json:"code"`
	} `json:"error,omitempty"`
}

// Analyze sends the page content for pricing extraction. Transient failures
// are retried like page fetches, quota rejections with a much longer backoff,
// and unparseable replies fail on the first attempt.
func (a *OpenRouterAnalyzer) Analyze(item WorkItem, content string) (*PriceData, error) {
	systemPrompt := a.config.GetSystemPrompt()
	userPrompt, err := buildUserPrompt(a.config.GetUserPrompt(), item, limitContentTokens(content, a.config.Settings.Extraction.ContentMaxTokens))
	if err != nil {
		return nil, err
	}

	var lastErr error
	for i := 0; i < maxAnalyzeAttempts; i++ {
		text, err := a.complete(systemPrompt, userPrompt)
		if err == nil {
			return parsePriceData(text)
		}
		lastErr = err

		var quotaErr *QuotaError
		switch {
		case errors.As(err, &quotaErr):
			// Provider quotas reset on the order of minutes, back off much
			// longer than for ordinary transient errors
			if i < maxAnalyzeAttempts-1 {
				a.sleep(quotaBackoff(i))
			}
		case isTransientCompletionError(err):
			if i < maxAnalyzeAttempts-1 {
				a.sleep(retryBackoff(i))
			}
		default:
			return nil, err
		}
	}
	return nil, fmt.Errorf("exceeded max retries after %d attempts: %w", maxAnalyzeAttempts, lastErr)
}

// isTransientCompletionError reports whether a completion attempt is worth
// retrying: transport failures and retryable HTTP statuses qualify, errors
// reported in the API payload do not
func isTransientCompletionError(err error) bool {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode == http.StatusRequestTimeout || httpErr.StatusCode >= 500
	}
	var netErr *url.Error
	return errors.As(err, &netErr)
}

// complete performs a single chat completion request
func (a *OpenRouterAnalyzer) complete(systemPrompt, userPrompt string) (string, error) {
	reqBody := chatRequest{
		Model: a.config.Settings.Extraction.Model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt},
		},
		MaxTokens:   a.config.Settings.Extraction.MaxTokens,
		Temperature: a.config.Settings.Extraction.Temperature,
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshaling completion request: %w", err)
	}

	req, err := http.NewRequest("POST", a.endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+a.apiKey)
	// Optional attribution headers, see openrouter.ai/docs
	if a.siteURL != "" {
		req.Header.Set("HTTP-Referer", a.siteURL)
	}
	if a.siteName != "" {
		req.Header.Set("X-Title", a.siteName)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}

	debugLog("completion response: status=%d", resp.StatusCode)

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == http.StatusPaymentRequired {
		return "", &QuotaError{Provider: "openrouter", Message: truncate(string(body), 200)}
	}
	if resp.StatusCode != http.StatusOK {
		return "", &HTTPError{StatusCode: resp.StatusCode, URL: a.endpoint}
	}

	var parsed chatResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("parsing completion response: %w", err)
	}
	if parsed.Error != nil && parsed.Error.Message != "" {
		if parsed.Error.Code == http.StatusTooManyRequests {
			return "", &QuotaError{Provider: "openrouter", Message: parsed.Error.Message}
		}
		return "", fmt.Errorf("completion API error: %s", parsed.Error.Message)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("no choices in completion response")
	}

	return parsed.Choices[0].Message.Content, nil
}

// AnthropicAnalyzer calls the Anthropic API with structured output
type AnthropicAnalyzer struct {
	apiKey string
	config *Config
	sleep  func(time.Duration)
}

// NewAnthropicAnalyzer creates an analyzer for the Anthropic API
func NewAnthropicAnalyzer(apiKey string, config *Config) *AnthropicAnalyzer {
	return &AnthropicAnalyzer{
		apiKey: apiKey,
		config: config,
		sleep:  time.Sleep,
	}
}

// Analyze sends the page content for pricing extraction using the structured
// output schema
func (a *AnthropicAnalyzer) Analyze(item WorkItem, content string) (*PriceData, error) {
	systemPrompt := a.config.GetSystemPrompt()
	userPrompt, err := buildUserPrompt(a.config.GetUserPrompt(), item, limitContentTokens(content, a.config.Settings.Extraction.ContentMaxTokens))
	if err != nil {
		return nil, err
	}
	schema := a.config.GetSchema()

	settings := types.RequestSettings{
		Model:       a.config.Settings.Extraction.Model,
		MaxTokens:   a.config.Settings.Extraction.MaxTokens,
		Temperature: a.config.Settings.Extraction.Temperature,
	}

	var lastErr error
	quotaLimited := false
	for i := 0; i < maxAnalyzeAttempts; i++ {
		response, err := anthropic.PromptWithSettings(systemPrompt, userPrompt, schema, a.apiKey, settings)
		if err != nil {
			lastErr = err

			var netErr *url.Error
			switch {
			case strings.Contains(err.Error(), "429"):
				quotaLimited = true
				if i < maxAnalyzeAttempts-1 {
					a.sleep(quotaBackoff(i))
				}
			case errors.As(err, &netErr):
				if i < maxAnalyzeAttempts-1 {
					a.sleep(retryBackoff(i))
				}
			default:
				return nil, fmt.Errorf("completion request failed: %w", err)
			}
			continue
		}

		if len(response.Content) == 0 {
			return nil, fmt.Errorf("no content in completion response")
		}

		return parsePriceData(response.Content[0].Text)
	}

	if quotaLimited {
		lastErr = &QuotaError{Provider: "anthropic", Message: lastErr.Error()}
	}
	return nil, fmt.Errorf("exceeded max retries after %d attempts: %w", maxAnalyzeAttempts, lastErr)
}

// quotaBackoff returns the wait before quota retry attempt i+1
func quotaBackoff(i int) time.Duration {
	return time.Duration(30<<uint(i)) * time.Second
}

// buildUserPrompt fills the prompt template with item and page values
func buildUserPrompt(template string, item WorkItem, content string) (string, error) {
	for _, v := range []string{"{{.url}}", "{{.title}}", "{{.content}}"} {
		if !strings.Contains(template, v) {
			return "", fmt.Errorf("extraction user prompt template must contain %s variable", v)
		}
	}

	prompt := strings.ReplaceAll(template, "{{.url}}", item.URL)
	prompt = strings.ReplaceAll(prompt, "{{.title}}", item.Title)
	prompt = strings.ReplaceAll(prompt, "{{.content}}", content)
	return prompt, nil
}

var jsonBlobRe = regexp.MustCompile(`(?s)\{.*\}`)

// parsePriceData pulls the first JSON object out of a model reply. Models
// sometimes wrap the JSON in prose or markdown fences.
func parsePriceData(text string) (*PriceData, error) {
	match := jsonBlobRe.FindString(text)
	if match == "" {
		return nil, &ParseError{Raw: truncate(text, 500)}
	}

	var data PriceData
	if err := json.Unmarshal([]byte(match), &data); err != nil {
		return nil, &ParseError{Raw: truncate(text, 500)}
	}

	return &data, nil
}

// limitContentTokens limits content to approximately N tokens (using 4 chars ≈ 1 token)
func limitContentTokens(content string, maxTokens int) string {
	maxChars := maxTokens * 4
	if len(content) <= maxChars {
		return content
	}
	return content[:maxChars] + "..."
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
