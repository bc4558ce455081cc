package main

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/yourorg/tradeline-engine/internal/circuitbreaker"
)

// serverMetrics holds Prometheus metrics for the server
type serverMetrics struct {
	requestCounter  *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	inventoryErrors prometheus.Counter
	circuitBreaker  prometheus.Gauge
	inventorySize   prometheus.Gauge
	rateLimited     prometheus.Counter
}

// registerMetrics sets up Prometheus metrics collection
func registerMetrics(reg prometheus.Registerer) *serverMetrics {
	m := &serverMetrics{
		requestCounter: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tradeline_http_requests_total",
				Help: "Total number of requests processed",
			},
			[]string{"route", "code"},
		),
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tradeline_http_request_duration_seconds",
				Help:    "Request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"route"},
		),
		inventoryErrors: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "tradeline_inventory_errors_total",
				Help: "Total number of failed inventory loads",
			},
		),
		circuitBreaker: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "tradeline_circuit_breaker_state",
				Help: "Inventory guard state (0=closed, 1=open, 2=half-open)",
			},
		),
		inventorySize: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "tradeline_inventory_listings",
				Help: "Number of listings in the inventory snapshot last served",
			},
		),
		rateLimited: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "tradeline_rate_limited_total",
				Help: "Total number of requests rejected by the rate limiter",
			},
		),
	}

	reg.MustRegister(
		m.requestCounter,
		m.requestDuration,
		m.inventoryErrors,
		m.circuitBreaker,
		m.inventorySize,
		m.rateLimited,
	)
	return m
}

func (m *serverMetrics) observe(route string, code int, d time.Duration) {
	m.requestCounter.WithLabelValues(route, strconv.Itoa(code)).Inc()
	m.requestDuration.WithLabelValues(route).Observe(d.Seconds())
}

func (m *serverMetrics) setCircuit(state circuitbreaker.State) {
	m.circuitBreaker.Set(float64(state))
}
