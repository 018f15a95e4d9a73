package telemetry

import (
	"time"

	"go.uber.org/zap"

	"zapretd/internal/domain"
)

const (
	FieldEvent      = "event"
	FieldProfile    = "profile"
	FieldCategory   = "category"
	FieldPID        = "pid"
	FieldRunID      = "run_id"
	FieldState      = "state"
	FieldDurationMs = "duration_ms"
	FieldLogSource  = "log_source"
	FieldLogStream  = "log_stream"
)

const (
	EventStartRequested = "start_requested"
	EventSpawnSuccess   = "spawn_success"
	EventSpawnFailure   = "spawn_failure"
	EventSpawnSkipped   = "spawn_skipped"
	EventWorkerExit     = "worker_exit"
	EventStopSuccess    = "stop_success"
	EventStopFailure    = "stop_failure"
	EventOrphanKilled   = "orphan_killed"
	EventConflict       = "conflict_detected"
	EventScratchPurge   = "scratch_purge"
)

const (
	LogSourceCore   = "core"
	LogSourceWorker = "worker"
	LogSourceCLI    = "cli"
)

func EventField(event string) zap.Field {
	return zap.String(FieldEvent, event)
}

func ProfileField(profile domain.Profile) zap.Field {
	return zap.String(FieldProfile, profile.FileName)
}

func CategoryField(category domain.Category) zap.Field {
	return zap.String(FieldCategory, category.String())
}

func PIDField(pid int) zap.Field {
	return zap.Int(FieldPID, pid)
}

func RunIDField(id string) zap.Field {
	return zap.String(FieldRunID, id)
}

func StateField(state string) zap.Field {
	return zap.String(FieldState, state)
}

func DurationField(duration time.Duration) zap.Field {
	return zap.Int64(FieldDurationMs, duration.Milliseconds())
}
