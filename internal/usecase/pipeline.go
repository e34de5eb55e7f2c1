package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"NewsDigest/internal/domain"
	"NewsDigest/internal/metrics"
	"NewsDigest/internal/ports"
	"NewsDigest/internal/tracing"
)

// PipelineDeps wires the stages and driven adapters into the orchestrator.
type PipelineDeps struct {
	Retriever   *Retriever
	Fetcher     *ArticleFetcher
	Synthesizer *Synthesizer
	Deliverer   *Deliverer
	Recorder    ports.RunRecorder
	Notifier    ports.Notifier
	Metrics     *metrics.Metrics
	Logger      *slog.Logger
}

// Pipeline runs retrieval, fetch, synthesis and delivery for one request.
// It holds no per-run state, so concurrent runs are independent.
type Pipeline struct {
	retriever   *Retriever
	fetcher     *ArticleFetcher
	synthesizer *Synthesizer
	deliverer   *Deliverer
	recorder    ports.RunRecorder
	notifier    ports.Notifier
	metrics     *metrics.Metrics
	logger      *slog.Logger
	now         func() time.Time
}

// NewPipeline constructs the orchestration component.
func NewPipeline(deps PipelineDeps) *Pipeline {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		retriever:   deps.Retriever,
		fetcher:     deps.Fetcher,
		synthesizer: deps.Synthesizer,
		deliverer:   deps.Deliverer,
		recorder:    deps.Recorder,
		notifier:    deps.Notifier,
		metrics:     deps.Metrics,
		logger:      logger,
		now:         time.Now,
	}
}

// Result is everything one run produced. Delivery is nil when the run
// never reached the delivery stage.
type Result struct {
	RunID     string
	Request   domain.DigestRequest
	States    []domain.RunState
	Headlines domain.HeadlinesOutput
	Articles  []domain.FetchedArticle
	Digest    domain.Digest
	Delivery  *domain.DeliveryResult
	Err       error
}

// State returns the last state the run reached.
func (r Result) State() domain.RunState {
	if len(r.States) == 0 {
		return domain.StateIdle
	}
	return r.States[len(r.States)-1]
}

// NoResults reports whether retrieval found nothing and the fixed digest was used.
func (r Result) NoResults() bool {
	return r.Err == nil && r.Delivery != nil && r.Headlines.Empty()
}

// Failed reports a fatal error or an unsuccessful delivery.
func (r Result) Failed() bool {
	return r.Err != nil || (r.Delivery != nil && !r.Delivery.OK())
}

// Message is the single human-readable outcome line of the run.
func (r Result) Message() string {
	switch {
	case r.Err != nil:
		return "Digest not sent: " + r.Err.Error()
	case r.Delivery == nil:
		return "Digest not sent"
	case !r.Delivery.OK():
		return fmt.Sprintf("%s stage failed: %s", domain.StageDelivery, r.Delivery.Message)
	case r.Headlines.Empty():
		return "No relevant headlines found today. " + r.Delivery.Message
	default:
		return r.Delivery.Message
	}
}

// Run executes one pipeline invocation. Fatal errors are returned in Result.Err
// tagged with the failing stage; delivery problems only in Result.Delivery.
func (p *Pipeline) Run(ctx context.Context, req domain.DigestRequest) (res Result) {
	res = Result{
		RunID:   uuid.NewString(),
		Request: req,
		States:  []domain.RunState{domain.StateIdle},
	}
	started := p.now()
	logger := p.logger.With("run_id", res.RunID)

	ctx, span := tracing.Tracer().Start(ctx, "digest.run", trace.WithAttributes(
		attribute.String("run.id", res.RunID),
	))
	defer func() {
		tracing.End(span, res.Err)
		p.finish(ctx, logger, res, started)
	}()

	if err := validateRequest(req); err != nil {
		res.Err = err
		return res
	}

	logger.Info("digest run started", "recipient", req.Recipient)

	res.States = append(res.States, domain.StateRetrieving)
	err := p.stage(ctx, domain.StageRetrieval, func(ctx context.Context) error {
		out, err := p.retriever.Retrieve(ctx, req.Preferences)
		res.Headlines = out
		return err
	})
	if err != nil {
		return p.abort(res, domain.StageRetrieval, err)
	}

	if res.Headlines.Empty() {
		logger.Info("no relevant headlines, sending empty digest", "reason", domain.ErrNoRelevantContent)
		res.Digest = domain.NoResultsDigest
		return p.deliver(ctx, res)
	}

	res.States = append(res.States, domain.StateFetching)
	_ = p.stage(ctx, domain.StageFetch, func(ctx context.Context) error {
		res.Articles = p.fetcher.FetchAll(ctx, res.Headlines)
		return nil
	})
	logger.Info("articles fetched", "total", len(res.Articles), "failed", domain.CountFailed(res.Articles))

	res.States = append(res.States, domain.StateSynthesizing)
	err = p.stage(ctx, domain.StageSynthesis, func(ctx context.Context) error {
		digest, err := p.synthesizer.Synthesize(ctx, res.Articles, req.Preferences)
		res.Digest = digest
		return err
	})
	if err != nil {
		return p.abort(res, domain.StageSynthesis, err)
	}

	return p.deliver(ctx, res)
}

func (p *Pipeline) deliver(ctx context.Context, res Result) Result {
	res.States = append(res.States, domain.StateDelivering)
	_ = p.stage(ctx, domain.StageDelivery, func(ctx context.Context) error {
		delivery := p.deliverer.Deliver(ctx, res.Digest, res.Request.Recipient)
		res.Delivery = &delivery
		if !delivery.OK() {
			return fmt.Errorf("%w: %s", domain.ErrDelivery, delivery.Message)
		}
		return nil
	})
	res.States = append(res.States, domain.StateDone)
	return res
}

func (p *Pipeline) abort(res Result, stage domain.Stage, err error) Result {
	res.Err = domain.NewStageError(stage, err)
	res.States = append(res.States, domain.StateAborted)
	return res
}

// stage wraps one step with a span and a duration observation.
func (p *Pipeline) stage(ctx context.Context, stage domain.Stage, fn func(context.Context) error) error {
	ctx, span := tracing.Tracer().Start(ctx, "stage."+string(stage))
	started := p.now()
	err := fn(ctx)
	p.metrics.ObserveStage(string(stage), p.now().Sub(started))
	tracing.End(span, err)
	return err
}

func (p *Pipeline) finish(ctx context.Context, logger *slog.Logger, res Result, started time.Time) {
	state := res.State()
	p.metrics.RunFinished(string(state))

	if res.Failed() {
		logger.Warn("digest run finished", "state", state, "message", res.Message())
	} else {
		logger.Info("digest run finished", "state", state, "headlines", res.Headlines.Count())
	}

	if state == domain.StateIdle {
		return
	}

	// Bookkeeping must outlive a cancelled run context.
	ctx = context.WithoutCancel(ctx)

	if p.recorder != nil {
		if err := p.recorder.Record(ctx, runRecord(res, started, p.now())); err != nil {
			logger.Error("record run", "error", err)
		}
	}

	if p.notifier != nil && res.Failed() {
		text := fmt.Sprintf("Digest run %s for %s: %s", res.RunID, res.Request.Recipient, res.Message())
		if err := p.notifier.Notify(ctx, text); err != nil {
			logger.Warn("notify operator", "error", err)
		}
	}
}

func runRecord(res Result, started, finished time.Time) domain.RunRecord {
	rec := domain.RunRecord{
		ID:            res.RunID,
		Recipient:     res.Request.Recipient,
		Preferences:   res.Request.Preferences,
		State:         res.State(),
		HeadlineCount: res.Headlines.Count(),
		FailedFetches: domain.CountFailed(res.Articles),
		StartedAt:     started.UTC(),
		FinishedAt:    finished.UTC(),
	}
	if res.Err != nil {
		rec.Error = res.Err.Error()
		if stage, ok := domain.FailedStage(res.Err); ok {
			rec.FailedStage = stage
		}
	}
	if res.Delivery != nil {
		rec.DeliveryStatus = res.Delivery.Status
		if !res.Delivery.OK() {
			rec.FailedStage = domain.StageDelivery
			rec.Error = res.Delivery.Message
		}
	}
	return rec
}

func validateRequest(req domain.DigestRequest) error {
	if strings.TrimSpace(req.Preferences) == "" {
		return fmt.Errorf("%w: preferences are empty", domain.ErrInvalidRequest)
	}
	recipient := strings.TrimSpace(req.Recipient)
	if recipient == "" {
		return fmt.Errorf("%w: recipient is empty", domain.ErrInvalidRequest)
	}
	if _, err := mail.ParseAddress(recipient); err != nil {
		return fmt.Errorf("%w: recipient %q: %w", domain.ErrInvalidRequest, recipient, err)
	}
	return nil
}
