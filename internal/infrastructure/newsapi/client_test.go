package newsapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"NewsDigest/internal/config"
)

func TestClientTopHeadlines(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Api-Key") != "news-key" {
			t.Errorf("missing api key header")
		}
		q := r.URL.Query()
		if q.Get("country") != "us" || q.Get("language") != "en" || q.Get("pageSize") != "100" {
			t.Errorf("unexpected query %s", r.URL.RawQuery)
		}
		_, _ = w.Write([]byte(`{"status":"ok","totalResults":2,"articles":[
			{"source":{"name":"Wire"},"title":"Markets &amp; rates","description":"<p>Stocks <b>rose</b> today.</p>","url":"https://example.com/markets"},
			{"source":{"name":"Daily"},"title":"Plain title","description":null,"url":" https://example.com/plain "}
		]}`))
	}))
	defer server.Close()

	client := NewClient(server.Client(), config.NewsAPIConfig{
		Endpoint: server.URL + "/v2/top-headlines",
		APIKey:   "news-key",
		Country:  "us",
		Language: "en",
		PageSize: 100,
	})

	items, err := client.TopHeadlines(context.Background())
	if err != nil {
		t.Fatalf("TopHeadlines returned error: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(items))
	}
	if items[0].Title != "Markets & rates" || items[0].Description != "Stocks rose today." {
		t.Fatalf("markup not stripped: %+v", items[0])
	}
	if items[0].Source != "Wire" {
		t.Fatalf("unexpected source %q", items[0].Source)
	}
	if items[1].URL != "https://example.com/plain" || items[1].Description != "" {
		t.Fatalf("unexpected second item %+v", items[1])
	}
}

func TestClientTopHeadlinesAPIError(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"status":"error","code":"apiKeyInvalid","message":"Your API key is invalid."}`))
	}))
	defer server.Close()

	client := NewClient(server.Client(), config.NewsAPIConfig{Endpoint: server.URL, APIKey: "bad"})

	if _, err := client.TopHeadlines(context.Background()); err == nil {
		t.Fatal("expected error for invalid key")
	}
}

func TestClientRequiresKey(t *testing.T) {
	t.Parallel()

	client := NewClient(nil, config.NewsAPIConfig{Endpoint: "http://localhost"})
	if _, err := client.TopHeadlines(context.Background()); err == nil {
		t.Fatal("expected error without api key")
	}
}
