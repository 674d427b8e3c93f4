package dashboard

import "time"

// State is the lifecycle state of a tracked task.
type State int

const (
	StatePending State = iota
	StateRunning
	StateEnded
)

// String returns the display name for a state.
func (s State) String() string {
	switch s {
	case StateRunning:
		return "running"
	case StateEnded:
		return "ended"
	default:
		return "pending"
	}
}

// TaskInfo tracks one file's conversion through the dashboard. Records are
// owned by the Renderer and mutated only through its synchronized entry
// points; tasks refer to them by ID alone.
type TaskInfo struct {
	ID          int
	Filename    string
	Progress    int // 0-100
	Description string
	State       State
	StartTime   time.Time
	EndTime     time.Time
	ErrMsg      string
}

// Completed reports whether the task ended without an error.
func (t *TaskInfo) Completed() bool {
	return t.State == StateEnded && t.ErrMsg == ""
}

// Running reports whether the task is currently in flight.
func (t *TaskInfo) Running() bool {
	return t.State == StateRunning
}

// Pending reports whether the task has not started yet.
func (t *TaskInfo) Pending() bool {
	return t.State == StatePending
}

// HasError reports whether the task failed.
func (t *TaskInfo) HasError() bool {
	return t.ErrMsg != ""
}

// Duration returns how long the task ran, and false when either endpoint
// has not been recorded.
func (t *TaskInfo) Duration() (time.Duration, bool) {
	if t.StartTime.IsZero() || t.EndTime.IsZero() {
		return 0, false
	}
	return t.EndTime.Sub(t.StartTime), true
}
