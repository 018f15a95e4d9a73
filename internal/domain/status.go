package domain

import "time"

// StatusEvent is delivered to observers after the orchestrator's handle set changes.
type StatusEvent struct {
	Running bool
	Workers int
	At      time.Time
}

// StatusObserver receives status-changed notifications.
type StatusObserver func(StatusEvent)
