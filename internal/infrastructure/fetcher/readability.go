package fetcher

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-shiori/go-readability"

	"NewsDigest/internal/config"
	"NewsDigest/internal/ports"
)

// defaultMaxBytes caps how much of a page is read when no limit is configured.
const defaultMaxBytes int64 = 2 << 20

// boilerplate lists elements that never hold article prose.
const boilerplate = "script, style, noscript, nav, header, footer, aside, iframe, form, svg, button, [role=navigation], [aria-hidden=true]"

// ReadabilityFetcher downloads a page and extracts its main article text.
type ReadabilityFetcher struct {
	client    *http.Client
	userAgent string
	maxChars  int
	maxBytes  int64
}

var _ ports.ContentFetcher = (*ReadabilityFetcher)(nil)

// NewReadabilityFetcher wires an HTTP client; a nil client gets the configured timeout.
func NewReadabilityFetcher(client *http.Client, cfg config.FetchConfig) *ReadabilityFetcher {
	if client == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	ua := cfg.UserAgent
	if ua == "" {
		ua = "NewsDigest/1.0"
	}
	maxBytes := cfg.MaxBytes
	if maxBytes <= 0 {
		maxBytes = defaultMaxBytes
	}
	return &ReadabilityFetcher{client: client, userAgent: ua, maxChars: cfg.MaxChars, maxBytes: maxBytes}
}

// Fetch returns cleaned prose of the article at rawURL.
func (f *ReadabilityFetcher) Fetch(ctx context.Context, rawURL string) (string, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return "", fmt.Errorf("invalid article url %q", rawURL)
	}

	doc, err := f.fetchDocument(ctx, parsed.String())
	if err != nil {
		return "", err
	}
	doc.Find(boilerplate).Remove()

	html, err := doc.Html()
	if err != nil {
		return "", fmt.Errorf("render cleaned document: %w", err)
	}

	text := ""
	article, err := readability.FromReader(strings.NewReader(html), parsed)
	if err == nil {
		text = article.TextContent
	}
	if strings.TrimSpace(text) == "" {
		// readability gives up on short pages; fall back to the body text.
		text = doc.Find("body").Text()
	}

	text = normalizeWhitespace(text)
	if text == "" {
		return "", fmt.Errorf("no readable content at %s", rawURL)
	}
	return truncate(text, f.maxChars), nil
}

func (f *ReadabilityFetcher) fetchDocument(ctx context.Context, pageURL string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request article: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("article host returned %s", resp.Status)
	}

	doc, err := goquery.NewDocumentFromReader(io.LimitReader(resp.Body, f.maxBytes))
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}

	return doc, nil
}

// normalizeWhitespace keeps paragraph breaks and collapses everything else.
func normalizeWhitespace(text string) string {
	lines := strings.Split(text, "\n")
	paragraphs := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.Join(strings.Fields(line), " ")
		if line != "" {
			paragraphs = append(paragraphs, line)
		}
	}
	return strings.Join(paragraphs, "\n\n")
}

func truncate(text string, maxChars int) string {
	if maxChars <= 0 {
		return text
	}
	runes := []rune(text)
	if len(runes) <= maxChars {
		return text
	}
	return strings.TrimSpace(string(runes[:maxChars]))
}
