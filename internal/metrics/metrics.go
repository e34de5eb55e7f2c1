// Package metrics defines the Prometheus collectors of the digest pipeline
// and exposes an HTTP handler for scraping.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors. A nil *Metrics is a valid no-op.
type Metrics struct {
	StageDuration   *prometheus.HistogramVec
	RunsTotal       *prometheus.CounterVec
	FetchesTotal    *prometheus.CounterVec
	DeliveriesTotal *prometheus.CounterVec
	RefreshesTotal  *prometheus.CounterVec
	CorpusDocuments prometheus.Gauge

	gatherer prometheus.Gatherer
}

// New creates the collectors and registers them on reg.
func New(reg *prometheus.Registry) *Metrics {
	m := &Metrics{
		StageDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "newsdigest_stage_duration_seconds",
				Help:    "Pipeline stage latency in seconds.",
				Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
			},
			[]string{"stage"},
		),
		RunsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "newsdigest_runs_total",
				Help: "Pipeline runs by final state.",
			},
			[]string{"state"},
		),
		FetchesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "newsdigest_article_fetches_total",
				Help: "Article fetch attempts by outcome (ok, failed).",
			},
			[]string{"outcome"},
		),
		DeliveriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "newsdigest_deliveries_total",
				Help: "Email deliveries by status.",
			},
			[]string{"status"},
		),
		RefreshesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "newsdigest_index_refreshes_total",
				Help: "Headline index refreshes by status.",
			},
			[]string{"status"},
		),
		CorpusDocuments: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "newsdigest_corpus_documents",
				Help: "Documents in the headline corpus after the last refresh.",
			},
		),
		gatherer: reg,
	}

	reg.MustRegister(
		m.StageDuration,
		m.RunsTotal,
		m.FetchesTotal,
		m.DeliveriesTotal,
		m.RefreshesTotal,
		m.CorpusDocuments,
	)

	return m
}

// ObserveStage records how long a stage took.
func (m *Metrics) ObserveStage(stage string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.StageDuration.WithLabelValues(stage).Observe(elapsed.Seconds())
}

// RunFinished counts a run by its final state.
func (m *Metrics) RunFinished(state string) {
	if m == nil {
		return
	}
	m.RunsTotal.WithLabelValues(state).Inc()
}

// Fetch counts one article fetch outcome.
func (m *Metrics) Fetch(ok bool) {
	if m == nil {
		return
	}
	outcome := "ok"
	if !ok {
		outcome = "failed"
	}
	m.FetchesTotal.WithLabelValues(outcome).Inc()
}

// Delivery counts one delivery by status.
func (m *Metrics) Delivery(status string) {
	if m == nil {
		return
	}
	m.DeliveriesTotal.WithLabelValues(status).Inc()
}

// Refresh counts one refresh and, on success, the new corpus size.
func (m *Metrics) Refresh(err error, documents int) {
	if m == nil {
		return
	}
	if err != nil {
		m.RefreshesTotal.WithLabelValues("error").Inc()
		return
	}
	m.RefreshesTotal.WithLabelValues("ok").Inc()
	m.CorpusDocuments.Set(float64(documents))
}

// Handler returns the Prometheus scrape HTTP handler for this registry.
func (m *Metrics) Handler() http.Handler {
	if m == nil || m.gatherer == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
