package supervisor

import "time"

// EventType captures lifecycle notifications emitted by the supervisor and
// its hook.
type EventType string

const (
	EventTypeStarting EventType = "starting"
	EventTypeRunning  EventType = "running"
	EventTypeSkipped  EventType = "skipped"
	EventTypeFailed   EventType = "failed"
	EventTypeStopping EventType = "stopping"
	EventTypeStopped  EventType = "stopped"
	EventTypeError    EventType = "error"
	EventTypeHook     EventType = "hook"
)

// Event represents a single lifecycle notification.
type Event struct {
	Timestamp time.Time
	RunID     string
	Process   string
	Type      EventType
	Message   string
	Level     string
	Reason    string
	PID       int
	Err       error
}

const (
	ReasonStartup         = "startup"
	ReasonAlreadyRunning  = "already_running"
	ReasonSpawnFailed     = "spawn_failed"
	ReasonTerminate       = "terminate"
	ReasonNotRunning      = "not_running"
	ReasonKillFailed      = "kill_failed"
	ReasonHookBound       = "hook_bound"
	ReasonWindowClose     = "window_close"
	ReasonStartupAborted  = "startup_aborted"
	ReasonShutdownPending = "shutdown_pending"
)

// sendEvent never blocks: lifecycle callbacks run on the host's dispatch
// thread, so a full sink drops the event instead.
func sendEvent(events chan<- Event, evt Event) {
	if events == nil {
		return
	}
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now()
	}
	if evt.Level == "" {
		evt.Level = "info"
	}
	select {
	case events <- evt:
	default:
	}
}
