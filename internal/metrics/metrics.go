// Package metrics exposes Prometheus collectors for module runs, the result
// cache, the job queue and graph size.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"attackgraph/pkg/models"
)

const namespace = "attackgraph"

// Metrics holds every collector on a private registry. All methods are safe
// on a nil receiver so callers can run without metrics.
type Metrics struct {
	registry *prometheus.Registry

	moduleRuns     *prometheus.CounterVec
	moduleDuration *prometheus.HistogramVec
	cacheLookups   *prometheus.CounterVec
	jobs           *prometheus.CounterVec
	ruleTags       prometheus.Counter
	graphNodes     prometheus.Gauge
	graphEdges     prometheus.Gauge
}

// New registers all collectors on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		moduleRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "module_runs_total",
			Help:      "Module runs by module and status.",
		}, []string{"module", "status"}),
		moduleDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "module_duration_seconds",
			Help:      "Wall-clock duration of module runs.",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 180, 360, 600, 1800},
		}, []string{"module"}),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "result_cache_lookups_total",
			Help:      "Result cache lookups by outcome.",
		}, []string{"result"}),
		jobs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_total",
			Help:      "Queue jobs by outcome.",
		}, []string{"outcome"}),
		ruleTags: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rule_tagged_nodes_total",
			Help:      "Nodes tagged by detection rules.",
		}),
		graphNodes: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "graph_nodes",
			Help:      "Nodes in the live graph.",
		}),
		graphEdges: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "graph_edges",
			Help:      "Edges in the live graph.",
		}),
	}
	m.registry.MustRegister(
		m.moduleRuns,
		m.moduleDuration,
		m.cacheLookups,
		m.jobs,
		m.ruleTags,
		m.graphNodes,
		m.graphEdges,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// ObserveResult records one module result. Cached results count as runs but
// not towards duration.
func (m *Metrics) ObserveResult(res models.ModuleResult) {
	if m == nil {
		return
	}
	m.moduleRuns.WithLabelValues(res.Module, string(res.Status)).Inc()
	if !res.Cached && !res.StartedAt.IsZero() && !res.EndedAt.IsZero() {
		m.moduleDuration.WithLabelValues(res.Module).Observe(res.EndedAt.Sub(res.StartedAt).Seconds())
	}
}

// CacheLookup records a cache hit or miss.
func (m *Metrics) CacheLookup(hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.cacheLookups.WithLabelValues("hit").Inc()
		return
	}
	m.cacheLookups.WithLabelValues("miss").Inc()
}

// Job records a queue job outcome such as "processed", "invalid" or "failed".
func (m *Metrics) Job(outcome string) {
	if m == nil {
		return
	}
	m.jobs.WithLabelValues(outcome).Inc()
}

// RuleTags adds n tagged nodes.
func (m *Metrics) RuleTags(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.ruleTags.Add(float64(n))
}

// SetGraph records the live graph size.
func (m *Metrics) SetGraph(nodes, edges int) {
	if m == nil {
		return
	}
	m.graphNodes.Set(float64(nodes))
	m.graphEdges.Set(float64(edges))
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
