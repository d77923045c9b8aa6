// Package metrics exposes prometheus collectors for chat exchanges.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Exchange outcomes, used as the outcome label.
const (
	OutcomeSuccess       = "success"
	OutcomeConfiguration = "configuration_error"
	OutcomeValidation    = "validation_error"
	OutcomeExternal      = "external_error"
	OutcomeInternal      = "internal_error"
)

// Metrics holds the collectors and the registry they are registered on.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	exchanges     *prometheus.CounterVec
	modelDuration prometheus.Histogram
	attachments   prometheus.Counter
	conversations prometheus.Counter
}

// New creates the collectors on a fresh registry, together with the Go and
// process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		exchanges: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "claudechat_exchanges_total",
				Help: "Chat exchanges by outcome.",
			},
			[]string{"outcome"},
		),
		modelDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "claudechat_model_request_duration_seconds",
				Help:    "Duration of model API calls.",
				Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300, 600},
			},
		),
		attachments: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "claudechat_attachments_total",
				Help: "Uploaded files attached to user turns.",
			},
		),
		conversations: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "claudechat_conversations_created_total",
				Help: "Conversations created.",
			},
		),
	}
	m.registry.MustRegister(
		m.exchanges,
		m.modelDuration,
		m.attachments,
		m.conversations,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry returns the registry the collectors live on.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveExchange counts one exchange under outcome.
func (m *Metrics) ObserveExchange(outcome string) {
	if m == nil {
		return
	}
	m.exchanges.WithLabelValues(outcome).Inc()
}

// ObserveModelRequest records the duration of one model call.
func (m *Metrics) ObserveModelRequest(d time.Duration) {
	if m == nil {
		return
	}
	m.modelDuration.Observe(d.Seconds())
}

// AddAttachments counts uploaded files attached to a user turn.
func (m *Metrics) AddAttachments(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.attachments.Add(float64(n))
}

// ConversationCreated fits session.WithCreateHook.
func (m *Metrics) ConversationCreated() {
	if m == nil {
		return
	}
	m.conversations.Inc()
}
