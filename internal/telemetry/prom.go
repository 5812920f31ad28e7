package telemetry

import (
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// PromMetrics backs the Metrics interface with a Prometheus registry,
// exposing every telemetry key as a counter (Add) or gauge (Store) under the
// "zonecore_" namespace. Keys are arbitrary strings chosen by callers
// (e.g. "ability_reject_cooldown", "los_recompute_total"); they are
// lazily registered on first use since the full key set is not known
// statically.
type PromMetrics struct {
	registry *prometheus.Registry
	mu       sync.Mutex
	counters map[string]prometheus.Counter
	gauges   map[string]prometheus.Gauge
}

// NewPromMetrics constructs a metrics adapter registered against reg. If reg
// is nil, prometheus.NewRegistry() is used.
func NewPromMetrics(reg *prometheus.Registry) *PromMetrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	return &PromMetrics{
		registry: reg,
		counters: make(map[string]prometheus.Counter),
		gauges:   make(map[string]prometheus.Gauge),
	}
}

// Registry returns the underlying Prometheus registry so a caller can mount
// it behind promhttp.HandlerFor.
func (p *PromMetrics) Registry() *prometheus.Registry {
	return p.registry
}

func sanitize(key string) string {
	return "zonecore_" + strings.ReplaceAll(key, ".", "_")
}

// Add implements Metrics by incrementing a counter named after key.
func (p *PromMetrics) Add(key string, delta uint64) {
	if p == nil || delta == 0 {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	c, ok := p.counters[key]
	if !ok {
		c = prometheus.NewCounter(prometheus.CounterOpts{Name: sanitize(key)})
		p.registry.MustRegister(c)
		p.counters[key] = c
	}
	c.Add(float64(delta))
}

// Store implements Metrics by setting a gauge named after key.
func (p *PromMetrics) Store(key string, value uint64) {
	if p == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	g, ok := p.gauges[key]
	if !ok {
		g = prometheus.NewGauge(prometheus.GaugeOpts{Name: sanitize(key)})
		p.registry.MustRegister(g)
		p.gauges[key] = g
	}
	g.Set(float64(value))
}
