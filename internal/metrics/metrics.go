// Package metrics exposes Prometheus metrics for the task queue. Counters and
// the duration histogram are fed by observing queue changes; gauges are read
// from the queue at scrape time.
package metrics

import (
	"net/http"

	"github.com/aiadmin/ai-admin/internal/task"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "aiadmin"

// StatsSource is what the gauges read at scrape time.
type StatsSource interface {
	Stats() task.Stats
}

// Metrics holds the queue collectors.
type Metrics struct {
	registry *prometheus.Registry

	Submitted *prometheus.CounterVec
	Finished  *prometheus.CounterVec
	Duration  *prometheus.HistogramVec
	Evicted   prometheus.Counter
}

// New creates the collectors on a fresh registry that also carries the Go and
// process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		Submitted: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "queue",
			Name:      "tasks_submitted_total",
			Help:      "Total tasks accepted by the queue.",
		}, []string{"kind"}),

		Finished: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "queue",
			Name:      "tasks_finished_total",
			Help:      "Total tasks that reached a terminal status.",
		}, []string{"kind", "status"}),

		Duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "queue",
			Name:      "task_duration_seconds",
			Help:      "Time from start to terminal status for tasks that ran.",
			Buckets:   []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300, 600, 1800},
		}, []string{"kind"}),

		Evicted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "queue",
			Name:      "tasks_evicted_total",
			Help:      "Total terminal tasks removed from the registry.",
		}),
	}
}

// RegisterQueue adds gauges that read the queue's stats at scrape time.
func (m *Metrics) RegisterQueue(source StatsSource) {
	factory := promauto.With(m.registry)

	factory.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "queue",
		Name:      "tasks_running",
		Help:      "Tasks currently holding a concurrency slot.",
	}, func() float64 { return float64(source.Stats().CurrentRunning) })

	factory.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "queue",
		Name:      "tasks_pending",
		Help:      "Tasks waiting for admission.",
	}, func() float64 { return float64(source.Stats().Pending) })

	factory.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "queue",
		Name:      "max_concurrent",
		Help:      "Current admission bound.",
	}, func() float64 { return float64(source.Stats().MaxConcurrent) })
}

// TaskChanged implements task.Observer.
func (m *Metrics) TaskChanged(change task.Change) {
	snap := change.Task
	kind := string(snap.Kind)

	switch change.Type {
	case task.ChangeSubmitted:
		m.Submitted.WithLabelValues(kind).Inc()
	case task.ChangeEvicted:
		m.Evicted.Inc()
	case task.ChangeStatus:
		if !snap.Status.IsTerminal() {
			return
		}
		m.Finished.WithLabelValues(kind, string(snap.Status)).Inc()
		if snap.Duration != nil {
			m.Duration.WithLabelValues(kind).Observe(*snap.Duration)
		}
	}
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
