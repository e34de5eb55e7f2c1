package usecase

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"NewsDigest/internal/domain"
	"NewsDigest/internal/logging"
)

// countingRunner tracks peak concurrency and fails recipients listed in fail.
type countingRunner struct {
	active atomic.Int32
	peak   atomic.Int32
	fail   map[string]bool

	mu   sync.Mutex
	seen []string
}

func (r *countingRunner) Run(_ context.Context, req domain.DigestRequest) Result {
	n := r.active.Add(1)
	defer r.active.Add(-1)
	for {
		p := r.peak.Load()
		if n <= p || r.peak.CompareAndSwap(p, n) {
			break
		}
	}
	time.Sleep(20 * time.Millisecond)

	r.mu.Lock()
	r.seen = append(r.seen, req.Recipient)
	r.mu.Unlock()

	res := Result{Request: req, States: []domain.RunState{domain.StateIdle, domain.StateDone}}
	if r.fail[req.Recipient] {
		res.Err = errors.New("boom")
	}
	return res
}

func batchRequests(n int) []domain.DigestRequest {
	reqs := make([]domain.DigestRequest, n)
	for i := range reqs {
		reqs[i] = domain.DigestRequest{Preferences: "news", Recipient: string(rune('a'+i)) + "@example.com"}
	}
	return reqs
}

func TestBatchRunAll(t *testing.T) {
	t.Parallel()

	runner := &countingRunner{fail: map[string]bool{"b@example.com": true, "e@example.com": true}}
	reqs := batchRequests(6)

	report := NewBatch(runner, 2, logging.Discard()).RunAll(context.Background(), reqs)

	require.Len(t, report.Results, 6)
	for i, res := range report.Results {
		assert.Equal(t, reqs[i], res.Request, "results keep request order")
	}
	assert.Equal(t, 2, report.Failed)
	assert.LessOrEqual(t, runner.peak.Load(), int32(2))
	assert.Len(t, runner.seen, 6)
}

func TestBatchDefaultsToSequential(t *testing.T) {
	t.Parallel()

	runner := &countingRunner{}
	report := NewBatch(runner, 0, nil).RunAll(context.Background(), batchRequests(3))

	assert.Len(t, report.Results, 3)
	assert.Zero(t, report.Failed)
	assert.Equal(t, int32(1), runner.peak.Load())
}

func TestBatchEmpty(t *testing.T) {
	t.Parallel()

	report := NewBatch(&countingRunner{}, 4, logging.Discard()).RunAll(context.Background(), nil)
	assert.Empty(t, report.Results)
	assert.Zero(t, report.Failed)
}
