package middleware

import (
	"log"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the service collectors on a private registry. It also
// implements application.Metrics for the scan and threat services.
type Metrics struct {
	registry *prometheus.Registry

	requestsTotal    *prometheus.CounterVec
	requestDuration  *prometheus.HistogramVec
	requestsInFlight prometheus.Gauge

	scansStarted    *prometheus.CounterVec
	scansFinished   *prometheus.CounterVec
	runningSessions prometheus.Gauge
	threatsDetected *prometheus.CounterVec
	threatsResolved *prometheus.CounterVec
}

// NewMetrics registers every collector. Runtime collectors are included so
// /metrics keeps the memory and goroutine numbers of the old JSON endpoint.
func NewMetrics() (*Metrics, error) {
	m := &Metrics{registry: prometheus.NewRegistry()}

	m.requestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "n0dr1e_http_requests_total",
		Help: "Total HTTP requests by route, method and status code",
	}, []string{"route", "method", "code"})
	m.requestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "n0dr1e_http_request_duration_seconds",
		Help:    "HTTP request latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"route", "method"})
	m.requestsInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "n0dr1e_http_requests_in_flight",
		Help: "HTTP requests currently being served",
	})

	m.scansStarted = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "n0dr1e_scans_started_total",
		Help: "Scans started by type",
	}, []string{"type"})
	m.scansFinished = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "n0dr1e_scans_finished_total",
		Help: "Scans finished by type and outcome (completed, stopped, failed)",
	}, []string{"type", "outcome"})
	m.runningSessions = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "n0dr1e_scan_sessions_running",
		Help: "Scan sessions currently running",
	})
	m.threatsDetected = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "n0dr1e_threats_detected_total",
		Help: "Threats detected by severity",
	}, []string{"severity"})
	m.threatsResolved = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "n0dr1e_threats_resolved_total",
		Help: "Threat resolutions by action",
	}, []string{"action"})

	for _, c := range []prometheus.Collector{
		m.requestsTotal, m.requestDuration, m.requestsInFlight,
		m.scansStarted, m.scansFinished, m.runningSessions,
		m.threatsDetected, m.threatsResolved,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	} {
		if err := m.registry.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Registry exposes the private registry, mostly for tests.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

func (m *Metrics) ScanStarted(scanType string) {
	m.scansStarted.WithLabelValues(scanType).Inc()
	m.runningSessions.Inc()
}

func (m *Metrics) ScanFinished(scanType, outcome string) {
	m.scansFinished.WithLabelValues(scanType, outcome).Inc()
	m.runningSessions.Dec()
}

func (m *Metrics) ThreatDetected(severity string) {
	m.threatsDetected.WithLabelValues(severity).Inc()
}

func (m *Metrics) ThreatResolved(action string) {
	m.threatsResolved.WithLabelValues(action).Inc()
}

// Middleware tracks request count, latency and in-flight requests. The route
// label uses the chi pattern so ids do not explode cardinality.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		m.requestsInFlight.Inc()
		defer m.requestsInFlight.Dec()

		wrapped := wrapWriter(w)
		next.ServeHTTP(wrapped, r)

		route := "unmatched"
		if rc := chi.RouteContext(r.Context()); rc != nil {
			if p := rc.RoutePattern(); p != "" {
				route = p
			}
		}
		m.requestsTotal.WithLabelValues(route, r.Method, strconv.Itoa(wrapped.statusCode)).Inc()
		m.requestDuration.WithLabelValues(route, r.Method).Observe(time.Since(start).Seconds())
	})
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		ErrorLog:      log.New(os.Stderr, "metrics handler: ", log.LstdFlags),
		ErrorHandling: promhttp.HTTPErrorOnError,
	})
}
