package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"zapretd/internal/domain"
)

type PrometheusMetrics struct {
	workerSpawns  *prometheus.CounterVec
	workerExits   *prometheus.CounterVec
	startDuration prometheus.Histogram
	startWorkers  prometheus.Gauge
	orphansKilled prometheus.Counter
	activeWorkers prometheus.Gauge
	conflicts     prometheus.Gauge
}

func NewPrometheusMetrics(registerer prometheus.Registerer) *PrometheusMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	factory := promauto.With(registerer)

	return &PrometheusMetrics{
		workerSpawns: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "zapretd_worker_spawns_total",
				Help: "Total number of worker spawn attempts by outcome",
			},
			[]string{"category", "result"},
		),
		workerExits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "zapretd_worker_exits_total",
				Help: "Total number of observed worker exits",
			},
			[]string{"category"},
		),
		startDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "zapretd_start_duration_seconds",
				Help:    "Duration of start operations including the settle delay",
				Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10},
			},
		),
		startWorkers: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "zapretd_last_start_workers",
				Help: "Workers spawned by the most recent start operation",
			},
		),
		orphansKilled: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "zapretd_orphans_killed_total",
				Help: "Total number of untracked worker processes terminated by the orphan sweep",
			},
		),
		activeWorkers: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "zapretd_active_workers",
				Help: "Current number of tracked workers that have not exited",
			},
		),
		conflicts: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "zapretd_conflicts_detected",
				Help: "Conflicting processes found by the most recent check",
			},
		),
	}
}

func (p *PrometheusMetrics) ObserveSpawn(category domain.Category, result domain.SpawnResult) {
	p.workerSpawns.WithLabelValues(category.String(), string(result)).Inc()
}

func (p *PrometheusMetrics) ObserveWorkerExit(category domain.Category) {
	p.workerExits.WithLabelValues(category.String()).Inc()
}

func (p *PrometheusMetrics) ObserveStart(duration time.Duration, workers int) {
	p.startDuration.Observe(duration.Seconds())
	p.startWorkers.Set(float64(workers))
}

func (p *PrometheusMetrics) ObserveOrphansKilled(count int) {
	if count <= 0 {
		return
	}
	p.orphansKilled.Add(float64(count))
}

func (p *PrometheusMetrics) SetActiveWorkers(count int) {
	p.activeWorkers.Set(float64(count))
}

func (p *PrometheusMetrics) SetConflicts(count int) {
	p.conflicts.Set(float64(count))
}

var _ domain.Metrics = (*PrometheusMetrics)(nil)
