// Package metrics exposes a simulation run's resource utilization, queue
// statistics and entity counters as Prometheus gauges (spec §6 "Metrics
// output"), scoped to a single run registry so concurrent runs never share
// collectors.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the collectors for one simulation run.
type Metrics struct {
	registry *prometheus.Registry

	EntityCount      prometheus.Gauge
	EntitiesProcessed prometheus.Gauge
	ProcessedEvents  prometheus.Gauge
	SimulationTime   prometheus.Gauge

	ResourceUtilization *prometheus.GaugeVec // labels: resource_table
	ResourcesAllocated  *prometheus.GaugeVec // labels: resource_table
	ResourcesTotal      *prometheus.GaugeVec // labels: resource_table

	QueueLength   *prometheus.GaugeVec // labels: queue_name
	QueueAvgWait  *prometheus.GaugeVec // labels: queue_name
	QueueMaxWait  *prometheus.GaugeVec // labels: queue_name
	QueueTotal    *prometheus.GaugeVec // labels: queue_name
}

// New creates a fresh, independently-registered Metrics for one run,
// labeled by runID so parallel runs (e.g. in tests) never collide on a
// shared default registry.
func New(runID string) *Metrics {
	registry := prometheus.NewRegistry()

	constLabels := prometheus.Labels{"run_id": runID}

	m := &Metrics{
		registry: registry,
		EntityCount: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "eventsim_entity_count",
			Help:        "Number of entities created in this run",
			ConstLabels: constLabels,
		}),
		EntitiesProcessed: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "eventsim_entities_processed",
			Help:        "Number of entities processed in this run, reported as the entity row count",
			ConstLabels: constLabels,
		}),
		ProcessedEvents: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "eventsim_processed_events",
			Help:        "Number of events processed, used by the ENTITIES()/EVENTS() termination formula",
			ConstLabels: constLabels,
		}),
		SimulationTime: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "eventsim_simulation_time_base_units",
			Help:        "Current virtual clock time, in the simulation's base time unit",
			ConstLabels: constLabels,
		}),
		ResourceUtilization: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name:        "eventsim_resource_utilization_ratio",
			Help:        "Fraction of a resource table's rows currently allocated",
			ConstLabels: constLabels,
		}, []string{"resource_table"}),
		ResourcesAllocated: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name:        "eventsim_resources_allocated",
			Help:        "Currently allocated resource rows by table",
			ConstLabels: constLabels,
		}, []string{"resource_table"}),
		ResourcesTotal: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name:        "eventsim_resources_total",
			Help:        "Total resource rows by table",
			ConstLabels: constLabels,
		}, []string{"resource_table"}),
		QueueLength: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name:        "eventsim_queue_length",
			Help:        "Current queue length",
			ConstLabels: constLabels,
		}, []string{"queue_name"}),
		QueueAvgWait: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name:        "eventsim_queue_avg_wait_time",
			Help:        "Average wait time observed by a queue so far",
			ConstLabels: constLabels,
		}, []string{"queue_name"}),
		QueueMaxWait: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name:        "eventsim_queue_max_wait_time",
			Help:        "Max wait time observed by a queue so far",
			ConstLabels: constLabels,
		}, []string{"queue_name"}),
		QueueTotal: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name:        "eventsim_queue_total_processed",
			Help:        "Total entries that have exited a queue",
			ConstLabels: constLabels,
		}, []string{"queue_name"}),
	}

	registry.MustRegister(
		m.EntityCount,
		m.EntitiesProcessed,
		m.ProcessedEvents,
		m.SimulationTime,
		m.ResourceUtilization,
		m.ResourcesAllocated,
		m.ResourcesTotal,
		m.QueueLength,
		m.QueueAvgWait,
		m.QueueMaxWait,
		m.QueueTotal,
	)

	return m
}

// Registry returns the run-scoped Prometheus registry, for callers that
// want to serve /metrics over HTTP themselves.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// SetResourceStats updates the per-resource-table gauges.
func (m *Metrics) SetResourceStats(table string, allocated, total int) {
	m.ResourcesAllocated.WithLabelValues(table).Set(float64(allocated))
	m.ResourcesTotal.WithLabelValues(table).Set(float64(total))
	if total > 0 {
		m.ResourceUtilization.WithLabelValues(table).Set(float64(allocated) / float64(total))
	} else {
		m.ResourceUtilization.WithLabelValues(table).Set(0)
	}
}

// SetQueueStats updates the per-queue gauges.
func (m *Metrics) SetQueueStats(queueName string, length int, avgWait, maxWait float64, totalProcessed int) {
	m.QueueLength.WithLabelValues(queueName).Set(float64(length))
	m.QueueAvgWait.WithLabelValues(queueName).Set(avgWait)
	m.QueueMaxWait.WithLabelValues(queueName).Set(maxWait)
	m.QueueTotal.WithLabelValues(queueName).Set(float64(totalProcessed))
}

var (
	globalMu      sync.Mutex
	globalMetrics *Metrics
)

// Init installs m as the process-wide metrics instance, for a CLI entry
// point that wants to expose /metrics for the one run it's driving.
func Init(m *Metrics) {
	globalMu.Lock()
	defer globalMu.Unlock()
	globalMetrics = m
}

// Global returns the process-wide metrics instance, or nil if Init was
// never called (metrics export is opt-in, per RuntimeConfig.MetricsEnabled).
func Global() *Metrics {
	globalMu.Lock()
	defer globalMu.Unlock()
	return globalMetrics
}
