package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"NewsDigest/internal/domain"
	"NewsDigest/internal/logging"
)

func headlinesOf(n int) domain.HeadlinesOutput {
	var hs []domain.Headline
	for i := 0; i < n; i++ {
		hs = append(hs, domain.Headline{URL: fmt.Sprintf("https://n/%d", i), Text: fmt.Sprintf("Headline %d", i)})
	}
	half := n / 2
	return domain.HeadlinesOutput{Categories: []domain.HeadlineCategory{
		{Category: "first", Headlines: hs[:half]},
		{Category: "second", Headlines: hs[half:]},
	}}
}

func TestFetchAllPartialFailure(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		total  int
		failed []int
	}{
		{name: "none fail", total: 6},
		{name: "some fail", total: 6, failed: []int{1, 4}},
		{name: "all fail", total: 4, failed: []int{0, 1, 2, 3}},
		{name: "single", total: 1, failed: []int{0}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			content := &fakeContent{fail: map[string]bool{}}
			for _, i := range tc.failed {
				content.fail[fmt.Sprintf("https://n/%d", i)] = true
			}

			articles := NewArticleFetcher(content, time.Second, logging.Discard(), nil).FetchAll(context.Background(), headlinesOf(tc.total))

			require.Len(t, articles, tc.total)
			assert.Equal(t, len(tc.failed), domain.CountFailed(articles))
			assert.Equal(t, tc.total, content.callCount())

			for i, a := range articles {
				assert.Equal(t, fmt.Sprintf("https://n/%d", i), a.URL)
				assert.Equal(t, fmt.Sprintf("Headline %d", i), a.BriefDescription)
				if a.Failed() {
					assert.Equal(t, domain.FailureMarker, a.FullText)
					assert.ErrorIs(t, a.Err, domain.ErrArticleFetch)
				} else {
					assert.Equal(t, "Full text of "+a.URL, a.FullText)
					assert.NoError(t, a.Err)
				}
			}
		})
	}
}

func TestFetchAllEmptyInput(t *testing.T) {
	t.Parallel()

	articles := NewArticleFetcher(&fakeContent{}, 0, logging.Discard(), nil).FetchAll(context.Background(), domain.HeadlinesOutput{})
	assert.Empty(t, articles)
}

// gatedContent fails one URL right away and makes the others wait until that
// failure has happened, proving siblings keep running after it.
type gatedContent struct {
	failURL string
	failed  chan struct{}
	once    sync.Once
}

func (g *gatedContent) Fetch(ctx context.Context, url string) (string, error) {
	if url == g.failURL {
		g.once.Do(func() { close(g.failed) })
		return "", errors.New("503 service unavailable")
	}
	select {
	case <-g.failed:
	case <-time.After(2 * time.Second):
		return "", errors.New("failure never happened")
	}
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("sibling was cancelled: %w", err)
	}
	return "text of " + url, nil
}

func TestFetchAllFailureDoesNotCancelSiblings(t *testing.T) {
	t.Parallel()

	content := &gatedContent{failURL: "https://n/2", failed: make(chan struct{})}

	articles := NewArticleFetcher(content, 5*time.Second, logging.Discard(), nil).FetchAll(context.Background(), headlinesOf(5))

	require.Len(t, articles, 5)
	assert.Equal(t, 1, domain.CountFailed(articles))
	assert.True(t, articles[2].Failed())
	for i, a := range articles {
		if i == 2 {
			continue
		}
		assert.Equal(t, "text of "+a.URL, a.FullText)
	}
}

type slowContent struct{}

func (slowContent) Fetch(ctx context.Context, url string) (string, error) {
	if url == "https://n/0" {
		<-ctx.Done()
		return "", ctx.Err()
	}
	return "fast", nil
}

func TestFetchAllTimeoutIsPerItemFailure(t *testing.T) {
	t.Parallel()

	articles := NewArticleFetcher(slowContent{}, 50*time.Millisecond, logging.Discard(), nil).FetchAll(context.Background(), headlinesOf(3))

	require.Len(t, articles, 3)
	assert.True(t, articles[0].Failed())
	assert.ErrorIs(t, articles[0].Err, context.DeadlineExceeded)
	assert.False(t, articles[1].Failed())
	assert.False(t, articles[2].Failed())
}

type panickingContent struct{}

func (panickingContent) Fetch(_ context.Context, url string) (string, error) {
	if url == "https://n/1" {
		panic("parser exploded")
	}
	return "ok", nil
}

func TestFetchAllRecoversPanickingTask(t *testing.T) {
	t.Parallel()

	articles := NewArticleFetcher(panickingContent{}, 0, logging.Discard(), nil).FetchAll(context.Background(), headlinesOf(2))

	require.Len(t, articles, 2)
	assert.False(t, articles[0].Failed())
	assert.True(t, articles[1].Failed())
}

func TestFetchAllEmptyTextIsFailure(t *testing.T) {
	t.Parallel()

	content := &fakeContent{texts: map[string]string{"https://n/0": "   "}}
	articles := NewArticleFetcher(content, 0, logging.Discard(), nil).FetchAll(context.Background(), headlinesOf(2))

	assert.True(t, articles[0].Failed())
	assert.False(t, articles[1].Failed())
}
