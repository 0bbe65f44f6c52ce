package metrics

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tiger/interview-assistant/internal/observability/telemetry"
)

// Metrics holds the prometheus collectors for the assistant.
type Metrics struct {
	registry *prometheus.Registry

	ProviderCalls    *prometheus.CounterVec
	ProviderDuration *prometheus.HistogramVec
	StageDuration    *prometheus.HistogramVec
	FallbacksTotal   *prometheus.CounterVec
	RunsTotal        *prometheus.CounterVec
	BackpressureDrop prometheus.Counter
	SessionsActive   prometheus.Gauge
}

// New registers every collector on a private registry.
func New(namespace string) *Metrics {
	if namespace == "" {
		namespace = "assistant"
	}
	registry := prometheus.NewRegistry()

	providerCalls := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_calls_total",
			Help:      "Provider calls by capability, provider and outcome",
		},
		[]string{"capability", "provider", "outcome"},
	)
	providerDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "provider_call_duration_seconds",
			Help:      "Provider call round trip in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		},
		[]string{"capability", "provider"},
	)
	stageDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Pipeline stage duration including fallbacks",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"stage"},
	)
	fallbacksTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fallbacks_total",
			Help:      "Stages answered by a non-primary provider",
		},
		[]string{"capability", "provider"},
	)
	runsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pipeline_runs_total",
			Help:      "Finished pipeline runs by status",
		},
		[]string{"status"},
	)
	backpressure := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "backpressure_drops_total",
		Help:      "Audio chunks rejected because the session queue was full",
	})
	sessionsActive := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "sessions_active",
		Help:      "Live websocket sessions",
	})

	registry.MustRegister(
		providerCalls,
		providerDuration,
		stageDuration,
		fallbacksTotal,
		runsTotal,
		backpressure,
		sessionsActive,
	)

	return &Metrics{
		registry:         registry,
		ProviderCalls:    providerCalls,
		ProviderDuration: providerDuration,
		StageDuration:    stageDuration,
		FallbacksTotal:   fallbacksTotal,
		RunsTotal:        runsTotal,
		BackpressureDrop: backpressure,
		SessionsActive:   sessionsActive,
	}
}

// Registry exposes the underlying registry for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns an HTTP handler for the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Export implements telemetry.Sink by mapping metric events onto collectors.
// Log and span events are ignored.
func (m *Metrics) Export(_ context.Context, event telemetry.Event) error {
	if event.Kind != telemetry.EventKindMetric || event.Metric == nil {
		return nil
	}
	attrs := event.Metric.Attributes
	switch event.Metric.Name {
	case telemetry.MetricProviderRTTMS:
		capability := event.Correlation.Stage
		provider := event.Correlation.Provider
		m.ProviderCalls.WithLabelValues(capability, provider, attrs["outcome"]).Inc()
		m.ProviderDuration.WithLabelValues(capability, provider).Observe(event.Metric.Value / 1000)
	case telemetry.MetricStageLatencyMS:
		m.StageDuration.WithLabelValues(event.Correlation.Stage).Observe(event.Metric.Value / 1000)
	case telemetry.MetricFallbackTotal:
		m.FallbacksTotal.WithLabelValues(event.Correlation.Stage, event.Correlation.Provider).Add(event.Metric.Value)
	case telemetry.MetricRunOutcome:
		m.RunsTotal.WithLabelValues(attrs["status"]).Add(event.Metric.Value)
	case telemetry.MetricBackpressureDrops:
		m.BackpressureDrop.Add(event.Metric.Value)
	case telemetry.MetricSessionsActive:
		m.SessionsActive.Set(event.Metric.Value)
	}
	return nil
}
