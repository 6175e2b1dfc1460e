// Package metrics exposes the voice server's Prometheus collectors. A nil
// *Metrics is valid and records nothing.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "openclaw_voice"

type Metrics struct {
	Registry *prometheus.Registry

	turns             *prometheus.CounterVec
	transcripts       *prometheus.CounterVec
	batchSkipped      prometheus.Counter
	synthesisFailures prometheus.Counter
	rejected          *prometheus.CounterVec
	activeConnections prometheus.Gauge
	turnDuration      prometheus.Histogram
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		Registry: reg,
		turns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "turns_total",
			Help:      "Completed turns by outcome.",
		}, []string{"outcome"}),
		transcripts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transcripts_total",
			Help:      "Resolved transcripts by source.",
		}, []string{"source"}),
		batchSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "batch_fallback_skipped_total",
			Help:      "Turns where batch transcription was skipped because no speech was detected.",
		}),
		synthesisFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "synthesis_failures_total",
			Help:      "Sentences whose speech synthesis failed.",
		}),
		rejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connections_rejected_total",
			Help:      "Websocket connections refused at the auth gate.",
		}, []string{"reason"}),
		activeConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_connections",
			Help:      "Open voice connections.",
		}),
		turnDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "turn_duration_seconds",
			Help:      "Time from stop_listening to response_complete.",
			Buckets:   []float64{0.25, 0.5, 1, 2, 4, 8, 16, 32, 64},
		}),
	}
	reg.MustRegister(
		m.turns, m.transcripts, m.batchSkipped, m.synthesisFailures,
		m.rejected, m.activeConnections, m.turnDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}

func (m *Metrics) TurnCompleted(outcome string, took time.Duration) {
	if m == nil {
		return
	}
	m.turns.WithLabelValues(outcome).Inc()
	m.turnDuration.Observe(took.Seconds())
}

func (m *Metrics) TranscriptResolved(source string) {
	if m == nil {
		return
	}
	m.transcripts.WithLabelValues(source).Inc()
}

func (m *Metrics) BatchSkipped() {
	if m == nil {
		return
	}
	m.batchSkipped.Inc()
}

func (m *Metrics) SynthesisFailed() {
	if m == nil {
		return
	}
	m.synthesisFailures.Inc()
}

func (m *Metrics) ConnectionRejected(reason string) {
	if m == nil {
		return
	}
	m.rejected.WithLabelValues(reason).Inc()
}

func (m *Metrics) ConnectionOpened() {
	if m == nil {
		return
	}
	m.activeConnections.Inc()
}

func (m *Metrics) ConnectionClosed() {
	if m == nil {
		return
	}
	m.activeConnections.Dec()
}
