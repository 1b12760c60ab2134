// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package metrics defines the Prometheus instruments for the retrieval
// pipeline. Instruments live on a private registry so that short-lived CLI
// invocations can dump them to a node-exporter textfile.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus instruments. A nil *Metrics is valid and
// records nothing, so packages can be used without instrumentation.
type Metrics struct {
	registry *prometheus.Registry

	CacheLookups      *prometheus.CounterVec
	Evictions         *prometheus.CounterVec
	FetchAttempts     *prometheus.CounterVec
	Extractions       *prometheus.CounterVec
	Operations        *prometheus.CounterVec
	CoalescedRequests prometheus.Counter
	CacheBytes        prometheus.Gauge
	CacheRecords      prometheus.Gauge
}

// New creates and registers all instruments on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		CacheLookups: f.NewCounterVec(prometheus.CounterOpts{
			Name: "paper_reader_cache_lookups_total",
			Help: "Cache lookups by result (hit, miss).",
		}, []string{"result"}),
		Evictions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "paper_reader_cache_evictions_total",
			Help: "Records removed by the eviction sweep, by reason (age, size).",
		}, []string{"reason"}),
		FetchAttempts: f.NewCounterVec(prometheus.CounterOpts{
			Name: "paper_reader_fetch_attempts_total",
			Help: "PDF download attempts by outcome (ok, invalid, error).",
		}, []string{"outcome"}),
		Extractions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "paper_reader_extractions_total",
			Help: "Text extraction runs by engine and outcome.",
		}, []string{"engine", "outcome"}),
		Operations: f.NewCounterVec(prometheus.CounterOpts{
			Name: "paper_reader_operations_total",
			Help: "Outer operations by name and outcome kind.",
		}, []string{"operation", "outcome"}),
		CoalescedRequests: f.NewCounter(prometheus.CounterOpts{
			Name: "paper_reader_coalesced_requests_total",
			Help: "Content requests served by another caller's in-flight fetch.",
		}),
		CacheBytes: f.NewGauge(prometheus.GaugeOpts{
			Name: "paper_reader_cache_bytes",
			Help: "Bytes of cached artifacts after the last sweep.",
		}),
		CacheRecords: f.NewGauge(prometheus.GaugeOpts{
			Name: "paper_reader_cache_records",
			Help: "Cached records after the last sweep.",
		}),
	}
}

// Registry exposes the underlying registry as a Gatherer.
func (m *Metrics) Registry() prometheus.Gatherer {
	return m.registry
}

// WriteTextfile writes all instruments to path in the Prometheus text format.
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil {
		return nil
	}
	return prometheus.WriteToTextfile(path, m.registry)
}

// CacheLookup records a cache hit or miss.
func (m *Metrics) CacheLookup(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.CacheLookups.WithLabelValues(result).Inc()
}

// Evicted records n evictions for reason.
func (m *Metrics) Evicted(reason string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.Evictions.WithLabelValues(reason).Add(float64(n))
}

// FetchAttempt records one download attempt.
func (m *Metrics) FetchAttempt(outcome string) {
	if m == nil {
		return
	}
	m.FetchAttempts.WithLabelValues(outcome).Inc()
}

// Extraction records one engine run.
func (m *Metrics) Extraction(engine, outcome string) {
	if m == nil {
		return
	}
	m.Extractions.WithLabelValues(engine, outcome).Inc()
}

// Operation records one outer operation.
func (m *Metrics) Operation(name, outcome string) {
	if m == nil {
		return
	}
	m.Operations.WithLabelValues(name, outcome).Inc()
}

// Coalesced records a request that shared an in-flight result.
func (m *Metrics) Coalesced() {
	if m == nil {
		return
	}
	m.CoalescedRequests.Inc()
}

// CacheSize sets the cache gauges.
func (m *Metrics) CacheSize(records int, bytes int64) {
	if m == nil {
		return
	}
	m.CacheRecords.Set(float64(records))
	m.CacheBytes.Set(float64(bytes))
}
