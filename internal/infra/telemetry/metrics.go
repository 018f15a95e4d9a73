package telemetry

import (
	"time"

	"zapretd/internal/domain"
)

type NoopMetrics struct{}

func NewNoopMetrics() *NoopMetrics {
	return &NoopMetrics{}
}

func (n *NoopMetrics) ObserveSpawn(_ domain.Category, _ domain.SpawnResult) {}

func (n *NoopMetrics) ObserveWorkerExit(_ domain.Category) {}

func (n *NoopMetrics) ObserveStart(_ time.Duration, _ int) {}

func (n *NoopMetrics) ObserveOrphansKilled(_ int) {}

func (n *NoopMetrics) SetActiveWorkers(_ int) {}

func (n *NoopMetrics) SetConflicts(_ int) {}

var _ domain.Metrics = (*NoopMetrics)(nil)
