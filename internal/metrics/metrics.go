// Package metrics holds the Prometheus collectors for plantcare.
package metrics

import (
	"log"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Upstream service labels.
const (
	ServiceStore   = "plant_store"
	ServiceSpecies = "species"
)

// Inbox outcome labels.
const (
	InboxUploaded  = "uploaded"
	InboxDuplicate = "duplicate"
	InboxFailed    = "failed"
)

// Metrics contains every plantcare collector. All methods are safe on a nil
// receiver so components can run without metrics.
type Metrics struct {
	registry *prometheus.Registry

	upstreamRequestsTotal   *prometheus.CounterVec
	upstreamRequestDuration *prometheus.HistogramVec
	speciesCacheTotal       *prometheus.CounterVec

	plantsTracked         prometheus.Gauge
	plantsOverdue         prometheus.Gauge
	remindersEmittedTotal prometheus.Counter
	reminderChecksTotal   prometheus.Counter
	inboxFilesTotal       *prometheus.CounterVec
	httpRequestsTotal     *prometheus.CounterVec
	httpRequestDuration   *prometheus.HistogramVec
	sseActiveConnections  prometheus.Gauge
}

// New creates the collectors and registers them, plus the Go and process
// collectors, on a fresh registry.
func New() (*Metrics, error) {
	reg := prometheus.NewRegistry()
	m := &Metrics{registry: reg}
	m.initMetrics()
	if err := reg.Register(m); err != nil {
		return nil, err
	}
	if err := reg.Register(collectors.NewGoCollector()); err != nil {
		return nil, err
	}
	if err := reg.Register(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{})); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Metrics) initMetrics() {
	m.upstreamRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "plantcare_upstream_requests_total",
			Help: "Requests sent to upstream services",
		},
		[]string{"service", "op", "code"}, // code: HTTP status or "error"
	)
	m.upstreamRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "plantcare_upstream_request_duration_seconds",
			Help:    "Latency of upstream requests",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
		},
		[]string{"service", "op"},
	)
	m.speciesCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "plantcare_species_cache_total",
			Help: "Species response cache lookups",
		},
		[]string{"result"}, // hit, miss
	)
	m.plantsTracked = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "plantcare_plants_tracked",
		Help: "Plants in the current snapshot",
	})
	m.plantsOverdue = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "plantcare_plants_overdue",
		Help: "Plants due for water at the last reminder check",
	})
	m.remindersEmittedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "plantcare_reminders_emitted_total",
		Help: "Reminder messages emitted by the scheduler",
	})
	m.reminderChecksTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "plantcare_reminder_checks_total",
		Help: "Reminder checks run by the scheduler",
	})
	m.inboxFilesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "plantcare_inbox_files_total",
			Help: "Photo inbox files processed",
		},
		[]string{"result"},
	)
	m.httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "plantcare_http_requests_total",
			Help: "HTTP requests served",
		},
		[]string{"method", "route", "code"},
	)
	m.httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "plantcare_http_request_duration_seconds",
			Help:    "Latency of served HTTP requests",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
	m.sseActiveConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "plantcare_sse_active_connections",
		Help: "Connected event stream clients",
	})
}

// Describe implements prometheus.Collector.
func (m *Metrics) Describe(ch chan<- *prometheus.Desc) {
	m.upstreamRequestsTotal.Describe(ch)
	m.upstreamRequestDuration.Describe(ch)
	m.speciesCacheTotal.Describe(ch)
	m.plantsTracked.Describe(ch)
	m.plantsOverdue.Describe(ch)
	m.remindersEmittedTotal.Describe(ch)
	m.reminderChecksTotal.Describe(ch)
	m.inboxFilesTotal.Describe(ch)
	m.httpRequestsTotal.Describe(ch)
	m.httpRequestDuration.Describe(ch)
	m.sseActiveConnections.Describe(ch)
}

// Collect implements prometheus.Collector.
func (m *Metrics) Collect(ch chan<- prometheus.Metric) {
	m.upstreamRequestsTotal.Collect(ch)
	m.upstreamRequestDuration.Collect(ch)
	m.speciesCacheTotal.Collect(ch)
	m.plantsTracked.Collect(ch)
	m.plantsOverdue.Collect(ch)
	m.remindersEmittedTotal.Collect(ch)
	m.reminderChecksTotal.Collect(ch)
	m.inboxFilesTotal.Collect(ch)
	m.httpRequestsTotal.Collect(ch)
	m.httpRequestDuration.Collect(ch)
	m.sseActiveConnections.Collect(ch)
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		ErrorLog:      log.New(os.Stderr, "metrics handler: ", log.LstdFlags),
		ErrorHandling: promhttp.HTTPErrorOnError,
	})
}

// ObserveUpstream records one upstream request. status 0 means the request
// never got an HTTP answer.
func (m *Metrics) ObserveUpstream(service, op string, status int, d time.Duration) {
	if m == nil {
		return
	}
	code := "error"
	if status > 0 {
		code = strconv.Itoa(status)
	}
	m.upstreamRequestsTotal.WithLabelValues(service, op, code).Inc()
	m.upstreamRequestDuration.WithLabelValues(service, op).Observe(d.Seconds())
}

// SpeciesCache records a species cache lookup.
func (m *Metrics) SpeciesCache(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.speciesCacheTotal.WithLabelValues(result).Inc()
}

// SetPlantsTracked sets the snapshot size.
func (m *Metrics) SetPlantsTracked(n int) {
	if m == nil {
		return
	}
	m.plantsTracked.Set(float64(n))
}

// ReminderCheck records a scheduler tick and the reminders it emitted.
func (m *Metrics) ReminderCheck(overdue int) {
	if m == nil {
		return
	}
	m.reminderChecksTotal.Inc()
	m.plantsOverdue.Set(float64(overdue))
	m.remindersEmittedTotal.Add(float64(overdue))
}

// InboxFile records the outcome of processing one inbox file.
func (m *Metrics) InboxFile(result string) {
	if m == nil {
		return
	}
	m.inboxFilesTotal.WithLabelValues(result).Inc()
}

// ObserveHTTP records one served request.
func (m *Metrics) ObserveHTTP(method, route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.httpRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpRequestDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

// SSEConnected adjusts the connected client gauge by delta.
func (m *Metrics) SSEConnected(delta int) {
	if m == nil {
		return
	}
	m.sseActiveConnections.Add(float64(delta))
}
