package server

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/derickschaefer/pickup/internal/engine"
)

// Metrics holds the server's Prometheus collectors on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	Requests  *prometheus.CounterVec
	Latency   *prometheus.HistogramVec
	Throttled prometheus.Counter
	Reloads   *prometheus.CounterVec

	ModelRecords  prometheus.Gauge
	ModelSkipped  prometheus.Gauge
	ModelCheckIns prometheus.Gauge
	ModelBuiltAt  prometheus.Gauge
}

// NewMetrics creates and registers every collector.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		Requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pickup_http_requests_total",
				Help: "HTTP requests by route, method and status code",
			},
			[]string{"route", "method", "code"},
		),
		Latency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "pickup_http_request_duration_seconds",
				Help:    "HTTP request latency by route",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
			},
			[]string{"route"},
		),
		Throttled: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pickup_http_throttled_total",
			Help: "Requests rejected by the rate limiter",
		}),
		Reloads: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pickup_model_reloads_total",
				Help: "Model reload attempts by trigger and result",
			},
			[]string{"trigger", "result"},
		),
		ModelRecords: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "pickup_model_records",
			Help: "Snapshot rows in the active model",
		}),
		ModelSkipped: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "pickup_model_skipped_rows",
			Help: "Raw rows dropped during ingestion of the active model",
		}),
		ModelCheckIns: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "pickup_model_check_ins",
			Help: "Distinct check-in dates in the active model",
		}),
		ModelBuiltAt: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "pickup_model_built_timestamp_seconds",
			Help: "Unix time the active model was built",
		}),
	}
	m.registry.MustRegister(
		m.Requests, m.Latency, m.Throttled, m.Reloads,
		m.ModelRecords, m.ModelSkipped, m.ModelCheckIns, m.ModelBuiltAt,
	)
	return m
}

// ObserveModel publishes the build stats of the active model.
func (m *Metrics) ObserveModel(model *engine.Model) {
	if model == nil {
		return
	}
	st := model.Stats()
	m.ModelRecords.Set(float64(st.Records))
	m.ModelSkipped.Set(float64(st.Skipped))
	m.ModelCheckIns.Set(float64(st.CheckIns))
	m.ModelBuiltAt.Set(float64(st.BuiltAt.Unix()))
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
