// Package newsapi pulls the daily top-headlines snapshot from newsapi.org.
package newsapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"NewsDigest/internal/config"
	"NewsDigest/internal/domain"
	"NewsDigest/internal/ports"
)

// SourceName identifies the client inside the source registry.
const SourceName = "newsapi"

// Client calls the NewsAPI top-headlines endpoint.
type Client struct {
	endpoint string
	apiKey   string
	country  string
	language string
	pageSize int
	http     *http.Client
}

var _ ports.HeadlineSource = (*Client)(nil)

// NewClient builds a client; a nil http client gets a 20s timeout.
func NewClient(httpClient *http.Client, cfg config.NewsAPIConfig) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 20 * time.Second}
	}
	return &Client{
		endpoint: cfg.Endpoint,
		apiKey:   cfg.APIKey,
		country:  cfg.Country,
		language: cfg.Language,
		pageSize: cfg.PageSize,
		http:     httpClient,
	}
}

// Name implements ports.HeadlineSource.
func (c *Client) Name() string {
	return SourceName
}

type topHeadlinesResponse struct {
	Status   string `json:"status"`
	Code     string `json:"code"`
	Message  string `json:"message"`
	Articles []struct {
		Source struct {
			Name string `json:"name"`
		} `json:"source"`
		Title       string `json:"title"`
		Description string `json:"description"`
		URL         string `json:"url"`
	} `json:"articles"`
}

// TopHeadlines returns the current top headlines for the configured country and language.
func (c *Client) TopHeadlines(ctx context.Context) ([]domain.NewsItem, error) {
	if c.apiKey == "" {
		return nil, fmt.Errorf("newsapi: api key is not configured")
	}

	reqURL, err := c.buildURL()
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("newsapi: build request: %w", err)
	}
	req.Header.Set("X-Api-Key", c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("newsapi: request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, fmt.Errorf("newsapi: read body: %w", err)
	}

	var parsed topHeadlinesResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("newsapi: unexpected status %s", resp.Status)
		}
		return nil, fmt.Errorf("newsapi: decode response: %w", err)
	}
	if resp.StatusCode != http.StatusOK || parsed.Status != "ok" {
		return nil, fmt.Errorf("newsapi: status %d %s: %s", resp.StatusCode, parsed.Code, parsed.Message)
	}

	items := make([]domain.NewsItem, 0, len(parsed.Articles))
	for _, a := range parsed.Articles {
		items = append(items, domain.NewsItem{
			URL:         strings.TrimSpace(a.URL),
			Title:       plainText(a.Title),
			Description: plainText(a.Description),
			Source:      a.Source.Name,
		})
	}
	return items, nil
}

func (c *Client) buildURL() (string, error) {
	parsed, err := url.Parse(c.endpoint)
	if err != nil {
		return "", fmt.Errorf("newsapi: invalid endpoint %s: %w", c.endpoint, err)
	}

	query := parsed.Query()
	if c.country != "" {
		query.Set("country", c.country)
	}
	if c.language != "" {
		query.Set("language", c.language)
	}
	if c.pageSize > 0 {
		query.Set("pageSize", strconv.Itoa(c.pageSize))
	}
	parsed.RawQuery = query.Encode()
	return parsed.String(), nil
}

// plainText strips markup and entities some publishers leave in titles and descriptions.
func plainText(s string) string {
	s = strings.TrimSpace(s)
	if s == "" || !strings.ContainsAny(s, "<&") {
		return s
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return s
	}
	return strings.Join(strings.Fields(doc.Text()), " ")
}
