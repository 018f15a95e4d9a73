package domain

import "time"

// SpawnResult labels the outcome of a worker spawn.
type SpawnResult string

const (
	// SpawnResultStarted indicates the worker process started.
	SpawnResultStarted SpawnResult = "started"
	// SpawnResultFailed indicates the OS refused to start the worker.
	SpawnResultFailed SpawnResult = "failed"
	// SpawnResultSkipped indicates the profile had no arguments.
	SpawnResultSkipped SpawnResult = "skipped"
)

// Metrics records orchestrator observations.
type Metrics interface {
	ObserveSpawn(category Category, result SpawnResult)
	ObserveWorkerExit(category Category)
	ObserveStart(duration time.Duration, workers int)
	ObserveOrphansKilled(count int)
	SetActiveWorkers(count int)
	SetConflicts(count int)
}
