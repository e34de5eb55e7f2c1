package usecase

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"NewsDigest/internal/domain"
)

// Runner executes one digest request.
type Runner interface {
	Run(ctx context.Context, req domain.DigestRequest) Result
}

// BatchReport collects the results of a subscriber batch in request order.
type BatchReport struct {
	Results []Result
	Failed  int
}

// Batch runs digests for many subscribers with bounded concurrency.
type Batch struct {
	runner      Runner
	concurrency int
	logger      *slog.Logger
}

// NewBatch bounds parallel runs by concurrency; values below 1 mean 1.
func NewBatch(runner Runner, concurrency int, logger *slog.Logger) *Batch {
	if concurrency < 1 {
		concurrency = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Batch{runner: runner, concurrency: concurrency, logger: logger}
}

// RunAll processes every request. One failing run never stops the others.
func (b *Batch) RunAll(ctx context.Context, reqs []domain.DigestRequest) BatchReport {
	results := make([]Result, len(reqs))

	var g errgroup.Group
	g.SetLimit(b.concurrency)
	for i, req := range reqs {
		g.Go(func() error {
			results[i] = b.runner.Run(ctx, req)
			return nil
		})
	}
	_ = g.Wait()

	report := BatchReport{Results: results}
	for _, res := range results {
		if res.Failed() {
			report.Failed++
		}
	}
	b.logger.Info("digest batch finished", "runs", len(results), "failed", report.Failed)
	return report
}
