package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"

	"NewsDigest/internal/config"
	"NewsDigest/internal/domain"
	"NewsDigest/internal/httpapi"
	"NewsDigest/internal/infrastructure/email"
	"NewsDigest/internal/infrastructure/fetcher"
	"NewsDigest/internal/infrastructure/llm"
	"NewsDigest/internal/infrastructure/newsapi"
	"NewsDigest/internal/infrastructure/scheduler"
	"NewsDigest/internal/infrastructure/session"
	"NewsDigest/internal/infrastructure/storage"
	"NewsDigest/internal/infrastructure/telegram"
	"NewsDigest/internal/infrastructure/vectorstore"
	"NewsDigest/internal/logging"
	"NewsDigest/internal/metrics"
	"NewsDigest/internal/ports"
	"NewsDigest/internal/source"
	"NewsDigest/internal/tracing"
	"NewsDigest/internal/usecase"
)

// Application wires configs to use cases and lifecycle orchestration.
type Application struct {
	cfg    config.Config
	logger *slog.Logger

	pool        *pgxpool.Pool
	redis       *redis.Client
	stopTracing func(context.Context) error
	metrics     *metrics.Metrics
	runs        *storage.RunRepository
	pipeline    *usecase.Pipeline
	refresher   *usecase.Refresher
	gate        *usecase.DailyGate
	scheduler   *usecase.Scheduler
}

// New connects to every backing service and builds the use cases.
func New(ctx context.Context, cfg config.Config, baseLogger *slog.Logger) (_ *Application, err error) {
	if baseLogger == nil {
		baseLogger = logging.NewWithFormat(cfg.Logging.Level, cfg.Logging.Format, os.Stdout)
	}
	a := &Application{cfg: cfg, logger: baseLogger}
	defer func() {
		if err != nil {
			a.Close(context.WithoutCancel(ctx))
		}
	}()

	a.stopTracing, err = tracing.Setup(ctx, cfg.Tracing.Endpoint, cfg.Tracing.ServiceName)
	if err != nil {
		return nil, err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	a.metrics = metrics.New(registry)

	a.pool, err = storage.NewPool(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}

	embedder := llm.NewEmbeddingClient(cfg.OpenAI)
	corpus := vectorstore.NewStore(a.pool, embedder, cfg.Corpus)
	if err := corpus.EnsureSchema(ctx); err != nil {
		return nil, err
	}
	a.runs = storage.NewRunRepository(a.pool)
	if err := a.runs.EnsureSchema(ctx); err != nil {
		return nil, err
	}

	var notifier ports.Notifier
	if tg := telegram.NewNotifier(cfg.Telegram.BotToken, cfg.Telegram.ChatID); tg.Enabled() {
		notifier = tg
	}

	registrySources := source.NewRegistry()
	registrySources.Register(newsapi.NewClient(nil, cfg.NewsAPI))
	snapshot := source.NewSnapshot(registrySources, cfg.Sources, baseLogger.With("component", "source"))

	chat := llm.NewChatClient(cfg.OpenAI)
	loc := cfg.Scheduler.Location()

	a.pipeline = usecase.NewPipeline(usecase.PipelineDeps{
		Retriever:   usecase.NewRetriever(chat, corpus, cfg.Corpus.TopK, cfg.Corpus.QueryTimeout, baseLogger.With("component", "retrieval")),
		Fetcher:     usecase.NewArticleFetcher(fetcher.NewReadabilityFetcher(nil, cfg.Fetch), cfg.Fetch.Timeout, baseLogger.With("component", "fetch"), a.metrics),
		Synthesizer: usecase.NewSynthesizer(chat, baseLogger.With("component", "synthesis")),
		Deliverer:   usecase.NewDeliverer(email.NewSendGridSender(cfg.Email), loc, baseLogger.With("component", "delivery"), a.metrics),
		Recorder:    a.runs,
		Notifier:    notifier,
		Metrics:     a.metrics,
		Logger:      baseLogger.With("component", "pipeline"),
	})

	guard := usecase.NewJobGuard()
	a.refresher = usecase.NewRefresher(usecase.RefresherDeps{
		Snapshot: snapshot,
		Embedder: embedder,
		Corpus:   corpus,
		Notifier: notifier,
		Metrics:  a.metrics,
		Logger:   baseLogger.With("component", "refresh"),
	})
	a.gate = usecase.NewDailyGate(a.refresher, guard, loc)

	a.scheduler = usecase.NewScheduler(
		scheduler.NewCronScheduler(loc, baseLogger.With("component", "cron")),
		a.refresher,
		usecase.NewBatch(a.pipeline, cfg.Batch.Concurrency, baseLogger.With("component", "batch")),
		guard,
		usecase.ScheduleConfig{
			RefreshSpec:   cfg.Scheduler.RefreshCron,
			DigestSpec:    cfg.Scheduler.DigestCron,
			Subscriptions: subscriptions(cfg.Subscriptions),
		},
		baseLogger.With("component", "scheduler"),
	)

	return a, nil
}

// RunDigest refreshes a stale index, then runs the pipeline once.
// A failed refresh is logged and the run continues on the existing index.
func (a *Application) RunDigest(ctx context.Context, req domain.DigestRequest) usecase.Result {
	if err := a.gate.Ensure(ctx); err != nil {
		a.logger.Warn("index refresh before run failed, using existing index", "error", err)
	}
	return a.pipeline.Run(ctx, req)
}

// Refresh rebuilds the headline index now.
func (a *Application) Refresh(ctx context.Context) error {
	return a.scheduler.RefreshNow(ctx)
}

// Serve runs the HTTP API until ctx is cancelled.
func (a *Application) Serve(ctx context.Context) error {
	store, err := a.sessionStore(ctx)
	if err != nil {
		return err
	}

	srv := httpapi.NewServer(a.cfg.Server, httpapi.Deps{
		Sessions: store,
		Runner:   a.pipeline,
		Gate:     a.gate,
		History:  a.runs,
		Metrics:  a.metrics,
		Logger:   a.logger.With("component", "http"),
	})
	return srv.Run(ctx)
}

// Schedule runs the cron jobs until ctx is cancelled.
func (a *Application) Schedule(ctx context.Context) error {
	if err := a.scheduler.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()

	timeout := a.cfg.Server.ShutdownTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()
	return a.scheduler.Stop(stopCtx)
}

// Close releases connections and flushes spans.
func (a *Application) Close(ctx context.Context) {
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Warn("close redis", "error", err)
		}
	}
	if a.pool != nil {
		a.pool.Close()
	}
	if a.stopTracing != nil {
		if err := a.stopTracing(ctx); err != nil && !errors.Is(err, context.Canceled) {
			a.logger.Warn("flush traces", "error", err)
		}
	}
}

func (a *Application) sessionStore(ctx context.Context) (session.Store, error) {
	if a.cfg.Redis.Addr == "" {
		return session.NewMemoryStore(a.cfg.Sessions.Capacity, a.cfg.Sessions.TTL), nil
	}
	rdb, err := session.NewRedisClient(ctx, a.cfg.Redis)
	if err != nil {
		return nil, fmt.Errorf("session store: %w", err)
	}
	a.redis = rdb
	return session.NewRedisStore(rdb, a.cfg.Sessions.TTL), nil
}

func subscriptions(subs []config.SubscriptionConfig) []domain.DigestRequest {
	out := make([]domain.DigestRequest, 0, len(subs))
	for _, s := range subs {
		out = append(out, domain.DigestRequest{Preferences: s.Preferences, Recipient: s.Email})
	}
	return out
}
