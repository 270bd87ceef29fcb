// Package metrics exposes Prometheus counters for record saves and HTTP
// traffic. Collectors are registered on a caller-supplied registry so tests
// can use an isolated one.
package metrics

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	registry *prometheus.Registry

	recordSaves        *prometheus.CounterVec
	recordSaveDuration *prometheus.HistogramVec
	recordLoads        *prometheus.CounterVec

	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
}

// New creates the collectors and registers them on registry.
func New(registry *prometheus.Registry) (*Metrics, error) {
	m := &Metrics{
		registry: registry,
		recordSaves: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dental_record_saves_total",
				Help: "Patient record save attempts by outcome",
			},
			[]string{"outcome"}, // full, granular, noop, failed, rejected
		),
		recordSaveDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "dental_record_save_duration_seconds",
				Help:    "Time spent persisting a patient record",
				Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
			},
			[]string{"outcome"},
		),
		recordLoads: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dental_record_loads_total",
				Help: "Patient record loads by status",
			},
			[]string{"status"},
		),
		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dental_http_requests_total",
				Help: "HTTP requests served by the command surface",
			},
			[]string{"method", "route", "status_code"},
		),
		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "dental_http_request_duration_seconds",
				Help:    "HTTP request latency",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
	}

	for _, c := range []prometheus.Collector{
		m.recordSaves, m.recordSaveDuration, m.recordLoads,
		m.httpRequestsTotal, m.httpRequestDuration,
	} {
		if err := registry.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// ObserveSave records one save attempt. It satisfies record.SaveObserver.
func (m *Metrics) ObserveSave(outcome string, d time.Duration) {
	m.recordSaves.WithLabelValues(outcome).Inc()
	m.recordSaveDuration.WithLabelValues(outcome).Observe(d.Seconds())
}

// ObserveLoad records one record load.
func (m *Metrics) ObserveLoad(ok bool) {
	status := "ok"
	if !ok {
		status = "error"
	}
	m.recordLoads.WithLabelValues(status).Inc()
}

// Middleware counts requests per registered route, not per raw path, to keep
// label cardinality bounded.
func (m *Metrics) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)

			status := c.Response().Status
			if he, ok := err.(*echo.HTTPError); ok {
				status = he.Code
			}
			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			m.httpRequestsTotal.WithLabelValues(c.Request().Method, route, strconv.Itoa(status)).Inc()
			m.httpRequestDuration.WithLabelValues(c.Request().Method, route).Observe(time.Since(start).Seconds())
			return err
		}
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() echo.HandlerFunc {
	return echo.WrapHandler(promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
}
