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

// SnapshotCollector yields today's news items from the configured sources.
type SnapshotCollector interface {
	Collect(ctx context.Context) ([]domain.NewsItem, error)
}

// JobGuard keeps the index refresh and the digest batch from overlapping.
type JobGuard struct {
	sem chan struct{}
}

// NewJobGuard returns an unlocked guard.
func NewJobGuard() *JobGuard {
	return &JobGuard{sem: make(chan struct{}, 1)}
}

// Acquire blocks until the guard is free or ctx is done.
func (g *JobGuard) Acquire(ctx context.Context) error {
	select {
	case g.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("wait for running job: %w", ctx.Err())
	}
}

// Release frees the guard taken by Acquire.
func (g *JobGuard) Release() {
	<-g.sem
}

// RefreshReport summarizes one index refresh.
type RefreshReport struct {
	Received int
	Indexed  int
	Skipped  int
	Duration time.Duration
}

// Refresher rebuilds the headline corpus from a news snapshot.
type Refresher struct {
	snapshot SnapshotCollector
	embedder ports.Embedder
	corpus   ports.Corpus
	notifier ports.Notifier
	metrics  *metrics.Metrics
	logger   *slog.Logger
	now      func() time.Time

	mu          sync.Mutex
	lastSuccess time.Time
}

// RefresherDeps groups the refresher collaborators.
type RefresherDeps struct {
	Snapshot SnapshotCollector
	Embedder ports.Embedder
	Corpus   ports.Corpus
	Notifier ports.Notifier
	Metrics  *metrics.Metrics
	Logger   *slog.Logger
}

// NewRefresher wires the refresher.
func NewRefresher(deps RefresherDeps) *Refresher {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Refresher{
		snapshot: deps.Snapshot,
		embedder: deps.Embedder,
		corpus:   deps.Corpus,
		notifier: deps.Notifier,
		metrics:  deps.Metrics,
		logger:   logger,
		now:      time.Now,
	}
}

// Refresh replaces the corpus with today's snapshot. An empty snapshot or any
// failure leaves the previous corpus in place.
func (r *Refresher) Refresh(ctx context.Context) (report RefreshReport, err error) {
	started := r.now()
	defer func() {
		report.Duration = r.now().Sub(started)
		r.metrics.Refresh(err, report.Indexed)
		if err != nil {
			r.logger.Error("index refresh failed", "error", err)
			r.alert(ctx, err)
			return
		}
		r.logger.Info("index refreshed", "indexed", report.Indexed, "skipped", report.Skipped, "took", report.Duration)
	}()

	items, err := r.snapshot.Collect(ctx)
	if err != nil {
		return report, fmt.Errorf("collect snapshot: %w", err)
	}
	report.Received = len(items)

	docs := buildDocuments(items)
	report.Skipped = len(items) - len(docs)
	if len(docs) == 0 {
		return report, domain.ErrEmptySnapshot
	}

	texts := make([]string, len(docs))
	for i, d := range docs {
		texts[i] = d.Text
	}
	vectors, err := r.embedder.Embed(ctx, texts)
	if err != nil {
		return report, fmt.Errorf("embed documents: %w", err)
	}
	if len(vectors) != len(docs) {
		return report, fmt.Errorf("embed documents: got %d vectors for %d documents", len(vectors), len(docs))
	}
	for i := range docs {
		docs[i].Embedding = vectors[i]
	}

	if err := r.corpus.Replace(ctx, docs); err != nil {
		return report, fmt.Errorf("replace corpus: %w", err)
	}
	report.Indexed = len(docs)

	r.mu.Lock()
	r.lastSuccess = r.now()
	r.mu.Unlock()

	return report, nil
}

// LastSuccess returns when the corpus was last rebuilt, zero if never.
func (r *Refresher) LastSuccess() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastSuccess
}

func (r *Refresher) alert(ctx context.Context, cause error) {
	if r.notifier == nil {
		return
	}
	if err := r.notifier.Notify(context.WithoutCancel(ctx), "Headline index refresh failed: "+cause.Error()); err != nil {
		r.logger.Warn("notify operator", "error", err)
	}
}

// buildDocuments keys documents by URL, first occurrence wins.
func buildDocuments(items []domain.NewsItem) []domain.CorpusDocument {
	seen := map[string]struct{}{}
	docs := make([]domain.CorpusDocument, 0, len(items))
	for _, item := range items {
		url := strings.TrimSpace(item.URL)
		if url == "" || strings.TrimSpace(item.Title) == "" {
			continue
		}
		if _, ok := seen[url]; ok {
			continue
		}
		seen[url] = struct{}{}
		docs = append(docs, domain.CorpusDocument{ID: url, Text: item.DocumentText()})
	}
	return docs
}

// DailyGate refreshes the corpus before an interactive run when it has not
// been refreshed yet on the current day.
type DailyGate struct {
	refresher *Refresher
	guard     *JobGuard
	location  *time.Location
	now       func() time.Time
	mu        sync.Mutex
}

// NewDailyGate evaluates "today" in loc.
func NewDailyGate(refresher *Refresher, guard *JobGuard, loc *time.Location) *DailyGate {
	if loc == nil {
		loc = time.UTC
	}
	return &DailyGate{refresher: refresher, guard: guard, location: loc, now: time.Now}
}

// Ensure runs a refresh if today's has not happened yet.
func (g *DailyGate) Ensure(ctx context.Context) error {
	if g == nil || g.refresher == nil {
		return nil
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if sameDay(g.refresher.LastSuccess(), g.now(), g.location) {
		return nil
	}

	if g.guard != nil {
		if err := g.guard.Acquire(ctx); err != nil {
			return err
		}
		defer g.guard.Release()

		// A scheduled refresh may have finished while we waited.
		if sameDay(g.refresher.LastSuccess(), g.now(), g.location) {
			return nil
		}
	}

	_, err := g.refresher.Refresh(ctx)
	return err
}

func sameDay(a, b time.Time, loc *time.Location) bool {
	if a.IsZero() {
		return false
	}
	ay, am, ad := a.In(loc).Date()
	by, bm, bd := b.In(loc).Date()
	return ay == by && am == bm && ad == bd
}
