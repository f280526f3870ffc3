package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/opspilot/toolgate/pkg/registry"
)

// Metrics holds all Prometheus metrics for the gateway.
type Metrics struct {
	registry *prometheus.Registry

	// Registry metrics
	ToolsLoadedTotal  prometheus.Counter
	ReloadsTotal      prometheus.Counter
	LoadWarningsTotal prometheus.Counter
	ToolCount         prometheus.Gauge

	// Execution metrics
	ExecutionsTotal   *prometheus.CounterVec
	ExecutionDuration *prometheus.HistogramVec
}

// New creates and registers all metrics.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		registry: reg,

		ToolsLoadedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "toolgate_tools_loaded_total",
				Help: "Total number of tools loaded across all reloads",
			},
		),
		ReloadsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "toolgate_catalog_reloads_total",
				Help: "Total number of catalog reload attempts",
			},
		),
		LoadWarningsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "toolgate_catalog_load_warnings_total",
				Help: "Total number of warnings produced by catalog loads",
			},
		),
		ToolCount: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "toolgate_tools",
				Help: "Number of tools currently registered",
			},
		),

		ExecutionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "toolgate_executions_total",
				Help: "Total number of tool executions",
			},
			[]string{"tool", "status"},
		),
		ExecutionDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "toolgate_execution_duration_seconds",
				Help:    "Duration of tool executions in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"tool"},
		),
	}

	reg.MustRegister(
		m.ToolsLoadedTotal,
		m.ReloadsTotal,
		m.LoadWarningsTotal,
		m.ToolCount,
		m.ExecutionsTotal,
		m.ExecutionDuration,
	)

	return m
}

// RegistryHooks adapts the metrics into the registry's injectable
// callbacks.
func (m *Metrics) RegistryHooks() registry.Hooks {
	return registry.Hooks{
		OnLoad: func(toolCount int) {
			m.ToolsLoadedTotal.Add(float64(toolCount))
			m.ToolCount.Set(float64(toolCount))
		},
		OnReload: func() {
			m.ReloadsTotal.Inc()
		},
		OnLoadWarning: func() {
			m.LoadWarningsTotal.Inc()
		},
	}
}

// RunnerHook adapts the metrics into the runner's result callback.
func (m *Metrics) RunnerHook() func(tool, status string, seconds float64) {
	return func(tool, status string, seconds float64) {
		m.ExecutionsTotal.WithLabelValues(tool, status).Inc()
		m.ExecutionDuration.WithLabelValues(tool).Observe(seconds)
	}
}

// Handler serves the metrics over HTTP.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying prometheus registry for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
