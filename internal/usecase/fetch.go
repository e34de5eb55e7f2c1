package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"NewsDigest/internal/domain"
	"NewsDigest/internal/metrics"
	"NewsDigest/internal/ports"
)

// fetchResult is the outcome of one fetch task: text or err, never both.
type fetchResult struct {
	text string
	err  error
}

// ArticleFetcher retrieves full text for every headline concurrently.
type ArticleFetcher struct {
	content ports.ContentFetcher
	timeout time.Duration
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// NewArticleFetcher bounds every task by timeout when it is positive.
func NewArticleFetcher(content ports.ContentFetcher, timeout time.Duration, logger *slog.Logger, m *metrics.Metrics) *ArticleFetcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &ArticleFetcher{content: content, timeout: timeout, logger: logger, metrics: m}
}

// FetchAll launches one task per headline and waits for all of them.
// A failed task yields a failure-marked article; siblings keep running.
func (f *ArticleFetcher) FetchAll(ctx context.Context, headlines domain.HeadlinesOutput) []domain.FetchedArticle {
	worklist := headlines.Flatten()
	results := make([]fetchResult, len(worklist))

	var wg sync.WaitGroup
	for i, h := range worklist {
		wg.Add(1)
		go func(i int, url string) {
			defer wg.Done()
			results[i] = f.fetchOne(ctx, url)
		}(i, h.URL)
	}
	wg.Wait()

	articles := make([]domain.FetchedArticle, len(worklist))
	for i, h := range worklist {
		res := results[i]
		if res.err != nil {
			f.logger.Warn("article fetch failed", "url", h.URL, "error", res.err)
			articles[i] = domain.NewFailedArticle(h, res.err)
			f.metrics.Fetch(false)
			continue
		}
		articles[i] = domain.NewFetchedArticle(h, res.text)
		f.metrics.Fetch(true)
	}
	return articles
}

func (f *ArticleFetcher) fetchOne(ctx context.Context, url string) (res fetchResult) {
	defer func() {
		if p := recover(); p != nil {
			res = fetchResult{err: fmt.Errorf("%w: %s: panic: %v", domain.ErrArticleFetch, url, p)}
		}
	}()

	if f.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}

	text, err := f.content.Fetch(ctx, url)
	if err != nil {
		return fetchResult{err: fmt.Errorf("%w: %s: %w", domain.ErrArticleFetch, url, err)}
	}
	if strings.TrimSpace(text) == "" {
		return fetchResult{err: fmt.Errorf("%w: %s: empty content", domain.ErrArticleFetch, url)}
	}
	return fetchResult{text: text}
}
