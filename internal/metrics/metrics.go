// Package metrics exposes Prometheus instrumentation for the daemon.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "cluely"

// Metrics holds every collector. A nil *Metrics is valid and records nothing.
type Metrics struct {
	// Transcription session
	SessionStarts      prometheus.Counter
	SessionState       *prometheus.GaugeVec
	SessionErrors      *prometheus.CounterVec
	TokenFetchLatency  prometheus.Histogram
	TranscriptsPartial prometheus.Counter
	TranscriptsFinal   prometheus.Counter
	FinalTranscripts   prometheus.Counter
	StaleCallbacks     prometheus.Counter

	// Pipeline
	PipelineEvents  *prometheus.CounterVec
	IgnoredEvents   *prometheus.CounterVec
	PipelineStage   *prometheus.GaugeVec
	CacheWrites     *prometheus.CounterVec
	Notifications   *prometheus.CounterVec
	EventsPublished *prometheus.CounterVec
}

// New registers all collectors with reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		SessionStarts: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_starts_total",
			Help:      "Transcription sessions started",
		}),
		SessionState: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "session_state",
			Help:      "1 for the current transcription session state, 0 otherwise",
		}, []string{"state"}),
		SessionErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_errors_total",
			Help:      "Transcription session failures by kind",
		}, []string{"kind"}),
		TokenFetchLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "token_fetch_latency_seconds",
			Help:      "Single-use token exchange latency",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		}),
		TranscriptsPartial: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transcripts_partial_total",
			Help:      "Partial transcripts received",
		}),
		TranscriptsFinal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transcripts_committed_total",
			Help:      "Committed transcripts received",
		}),
		FinalTranscripts: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "final_transcripts_total",
			Help:      "Accumulated transcripts flushed on stop",
		}),
		StaleCallbacks: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stale_callbacks_total",
			Help:      "Stream callbacks dropped because their session was superseded",
		}),
		PipelineEvents: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pipeline_events_total",
			Help:      "Lifecycle events handled by the coordinator",
		}, []string{"kind"}),
		IgnoredEvents: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pipeline_events_ignored_total",
			Help:      "Lifecycle events ignored by the coordinator",
		}, []string{"kind", "reason"}),
		PipelineStage: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pipeline_stage",
			Help:      "1 for the current pipeline stage, 0 otherwise",
		}, []string{"stage"}),
		CacheWrites: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_writes_total",
			Help:      "Result cache writes by key and operation",
		}, []string{"key", "op"}),
		Notifications: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "User notifications raised by variant",
		}, []string{"variant"}),
		EventsPublished: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "gateway_events_received_total",
			Help:      "Lifecycle events received over the gateway ingress",
		}, []string{"kind"}),
	}
}

func (m *Metrics) RecordSessionStart() {
	if m == nil {
		return
	}
	m.SessionStarts.Inc()
}

// RecordSessionState marks state as the only active session state.
func (m *Metrics) RecordSessionState(state string, all []string) {
	if m == nil {
		return
	}
	setExclusive(m.SessionState, state, all)
}

func (m *Metrics) RecordSessionError(kind string) {
	if m == nil {
		return
	}
	m.SessionErrors.WithLabelValues(kind).Inc()
}

func (m *Metrics) RecordTokenFetch(d time.Duration) {
	if m == nil {
		return
	}
	m.TokenFetchLatency.Observe(d.Seconds())
}

func (m *Metrics) RecordPartial() {
	if m == nil {
		return
	}
	m.TranscriptsPartial.Inc()
}

func (m *Metrics) RecordCommitted() {
	if m == nil {
		return
	}
	m.TranscriptsFinal.Inc()
}

func (m *Metrics) RecordFinalTranscript() {
	if m == nil {
		return
	}
	m.FinalTranscripts.Inc()
}

func (m *Metrics) RecordStaleCallback() {
	if m == nil {
		return
	}
	m.StaleCallbacks.Inc()
}

func (m *Metrics) RecordEvent(kind string) {
	if m == nil {
		return
	}
	m.PipelineEvents.WithLabelValues(kind).Inc()
}

func (m *Metrics) RecordIgnoredEvent(kind, reason string) {
	if m == nil {
		return
	}
	m.IgnoredEvents.WithLabelValues(kind, reason).Inc()
}

func (m *Metrics) RecordStage(stage string, all []string) {
	if m == nil {
		return
	}
	setExclusive(m.PipelineStage, stage, all)
}

func (m *Metrics) RecordCacheWrite(key string, removed bool) {
	if m == nil {
		return
	}
	op := "set"
	if removed {
		op = "remove"
	}
	m.CacheWrites.WithLabelValues(key, op).Inc()
}

func (m *Metrics) RecordNotification(variant string) {
	if m == nil {
		return
	}
	m.Notifications.WithLabelValues(variant).Inc()
}

func (m *Metrics) RecordGatewayEvent(kind string) {
	if m == nil {
		return
	}
	m.EventsPublished.WithLabelValues(kind).Inc()
}

func setExclusive(vec *prometheus.GaugeVec, current string, all []string) {
	for _, label := range all {
		if label == current {
			vec.WithLabelValues(label).Set(1)
			continue
		}
		vec.WithLabelValues(label).Set(0)
	}
}
