// Package metrics exposes hrdesk activity to prometheus.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "hrdesk"

// Collector is a prometheus.Collector for the store, authentication and HTTP
// layers. It implements hr.Observer and auth.Observer.
type Collector struct {
	mutations       *prometheus.CounterVec
	persistFailures prometheus.Counter
	persistSeconds  prometheus.Histogram
	dirty           prometheus.Gauge
	logins          *prometheus.CounterVec
	requests        *prometheus.CounterVec
	externalChanges prometheus.Counter
}

// NewCollector returns a new Collector.
func NewCollector() *Collector {
	return &Collector{
		mutations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "store_mutations_total",
				Help:      "Records inserted, updated or deleted.",
			}, []string{"collection", "op"},
		),
		persistFailures: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "store_persist_failures_total",
				Help:      "Failed writes of the document to storage.",
			},
		),
		persistSeconds: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "store_persist_seconds",
				Help:      "Time to encode and write the document.",
				Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
			},
		),
		dirty: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "store_dirty",
				Help:      "1 when storage holds an older document than memory.",
			},
		),
		logins: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "auth_logins_total",
				Help:      "Login attempts by outcome.",
			}, []string{"result"},
		),
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "HTTP requests served by method and status code.",
			}, []string{"method", "code"},
		),
		externalChanges: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "store_external_changes_total",
				Help:      "Writes to the document by another process.",
			},
		),
	}
}

// Mutation implements hr.Observer.
func (c *Collector) Mutation(collection, op string) {
	c.mutations.WithLabelValues(collection, op).Inc()
}

// Persisted implements hr.Observer.
func (c *Collector) Persisted(d time.Duration, err error) {
	c.persistSeconds.Observe(d.Seconds())
	if err != nil {
		c.persistFailures.Inc()
		c.dirty.Set(1)
		return
	}
	c.dirty.Set(0)
}

// Login implements auth.Observer.
func (c *Collector) Login(result string) {
	c.logins.WithLabelValues(result).Inc()
}

// Request records one served HTTP request.
func (c *Collector) Request(method string, code int) {
	c.requests.WithLabelValues(method, strconv.Itoa(code)).Inc()
}

// ExternalChange records a foreign write to the document.
func (c *Collector) ExternalChange() {
	c.externalChanges.Inc()
}

// Describe is part of the prometheus.Collector interface.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	c.mutations.Describe(ch)
	c.persistFailures.Describe(ch)
	c.persistSeconds.Describe(ch)
	c.dirty.Describe(ch)
	c.logins.Describe(ch)
	c.requests.Describe(ch)
	c.externalChanges.Describe(ch)
}

// Collect is part of the prometheus.Collector interface.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	c.mutations.Collect(ch)
	c.persistFailures.Collect(ch)
	c.persistSeconds.Collect(ch)
	c.dirty.Collect(ch)
	c.logins.Collect(ch)
	c.requests.Collect(ch)
	c.externalChanges.Collect(ch)
}
