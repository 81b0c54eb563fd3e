// Package metrics exposes Prometheus counters for feed synchronization,
// message sends and session bootstrap.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Snapshot outcomes.
const (
	SnapshotApplied   = "applied"
	SnapshotDiscarded = "discarded_empty"
	SnapshotError     = "error"
)

// Send kinds and results.
const (
	SendText  = "text"
	SendImage = "image"

	SendOK     = "ok"
	SendFailed = "failed"
)

// Recorder is the metrics interface used by the application services.
type Recorder interface {
	RecordSnapshot(outcome string)
	RecordCacheWriteFailure()
	RecordSend(kind, result string)
	RecordBootstrap(state string)
}

// Collector is the Prometheus implementation of Recorder.
type Collector struct {
	snapshots    *prometheus.CounterVec
	cacheFail    prometheus.Counter
	sends        *prometheus.CounterVec
	bootstrapped *prometheus.CounterVec
}

// Compile-time interface satisfaction check.
var _ Recorder = (*Collector)(nil)

// NewCollector creates a Collector and registers its metrics with reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		snapshots: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "firechat_feed_snapshots_total",
			Help: "Live feed snapshots by outcome.",
		}, []string{"outcome"}),
		cacheFail: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "firechat_cache_write_failures_total",
			Help: "Failed writes of the local message cache.",
		}),
		sends: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "firechat_messages_sent_total",
			Help: "Outbound message submissions by kind and result.",
		}, []string{"kind", "result"}),
		bootstrapped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "firechat_bootstrap_total",
			Help: "Completed session bootstraps by resulting state.",
		}, []string{"state"}),
	}

	reg.MustRegister(
		c.snapshots,
		c.cacheFail,
		c.sends,
		c.bootstrapped,
	)

	return c
}

// RecordSnapshot counts one live snapshot with the given outcome.
func (c *Collector) RecordSnapshot(outcome string) {
	c.snapshots.WithLabelValues(outcome).Inc()
}

// RecordCacheWriteFailure counts one failed message cache write.
func (c *Collector) RecordCacheWriteFailure() {
	c.cacheFail.Inc()
}

// RecordSend counts one outbound submission.
func (c *Collector) RecordSend(kind, result string) {
	c.sends.WithLabelValues(kind, result).Inc()
}

// RecordBootstrap counts one completed bootstrap.
func (c *Collector) RecordBootstrap(state string) {
	c.bootstrapped.WithLabelValues(state).Inc()
}

// Handler returns the HTTP handler for Prometheus scrapes.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// Nop is a Recorder that records nothing.
type Nop struct{}

func (Nop) RecordSnapshot(string)     {}
func (Nop) RecordCacheWriteFailure()  {}
func (Nop) RecordSend(string, string) {}
func (Nop) RecordBootstrap(string)    {}
