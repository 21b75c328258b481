package main

import (
	"strings"
	"testing"
)

func TestExtractStripsBoilerplate(t *testing.T) {
	html := `<html><head><title>Acme</title></head><body>
<nav>Home | About | Contact</nav>
<header>Acme header banner</header>
<script>trackVisitor();</script>
<style>.plan { color: red; }</style>
<h1>Pricing</h1>
<p>Pro plan costs $29 per month.</p>
<footer>Copyright Acme</footer>
</body></html>`

	ce := NewContentExtractor(50000)
	page, err := ce.Extract(html)
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}

	if !strings.Contains(page.Markdown, "Pro plan costs $29 per month") {
		t.Errorf("Extract() dropped body text: %q", page.Markdown)
	}

	for _, removed := range []string{"trackVisitor", "color: red", "Home | About", "header banner", "Copyright"} {
		if strings.Contains(page.Markdown, removed) {
			t.Errorf("Extract() kept boilerplate %q", removed)
		}
	}
}

func TestExtractConvertsToMarkdown(t *testing.T) {
	html := `<html><body>
<h1>Plans</h1>
<ul><li>Basic</li><li>Pro</li></ul>
</body></html>`

	ce := NewContentExtractor(50000)
	page, err := ce.Extract(html)
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}

	if !strings.Contains(page.Markdown, "# Plans") {
		t.Errorf("Extract() did not convert heading: %q", page.Markdown)
	}
	if !strings.Contains(page.Markdown, "- Basic") {
		t.Errorf("Extract() did not convert list: %q", page.Markdown)
	}
}

func TestExtractCapsLength(t *testing.T) {
	var b strings.Builder
	b.WriteString("<html><body>")
	for i := 0; i < 500; i++ {
		b.WriteString("<p>Filler paragraph about product features and benefits.</p>")
	}
	b.WriteString("</body></html>")

	maxChars := 1000
	ce := NewContentExtractor(maxChars)
	page, err := ce.Extract(b.String())
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}

	if len(page.Markdown) > maxChars {
		t.Errorf("Extract() returned %d chars, want at most %d", len(page.Markdown), maxChars)
	}
}

func TestHasPricingSignal(t *testing.T) {
	tests := []struct {
		name     string
		html     string
		expected bool
	}{
		{
			"pricing class",
			`<html><body><div class="pricing">Plans</div></body></html>`,
			true,
		},
		{
			"pricing table class",
			`<html><body><table class="pricing-table"><tr><td>Pro</td></tr></table></body></html>`,
			true,
		},
		{
			"tailwind card with currency",
			`<html><body><div class="rounded border-2">199 PLN / month</div></body></html>`,
			true,
		},
		{
			"price pattern in text",
			`<html><body><p>Get started for 9.99 $ today</p></body></html>`,
			true,
		},
		{
			"plain content",
			`<html><body><p>We build great software for teams.</p></body></html>`,
			false,
		},
		{
			"tailwind card without currency",
			`<html><body><div class="rounded border-2">Feature list</div></body></html>`,
			false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ce := NewContentExtractor(50000)
			page, err := ce.Extract(tt.html)
			if err != nil {
				t.Fatalf("Extract() error = %v", err)
			}
			if page.PricingSignal != tt.expected {
				t.Errorf("PricingSignal = %v, want %v", page.PricingSignal, tt.expected)
			}
		})
	}
}

func TestExtractEmptyBody(t *testing.T) {
	ce := NewContentExtractor(50000)
	page, err := ce.Extract("<html><body></body></html>")
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if page.Markdown != "" {
		t.Errorf("Extract() markdown = %q, want empty", page.Markdown)
	}
}
