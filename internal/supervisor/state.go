package supervisor

import (
	"fmt"
	"sync"
	"time"

	"github.com/Paintersrp/tether/internal/runtime"
)

// ProcessState is the supervisor's belief about a managed process. It tracks
// intent: Running after a successful spawn, NotStarted as soon as a
// termination request has been issued.
type ProcessState int

const (
	StateNotStarted ProcessState = iota
	StateRunning
)

func (s ProcessState) String() string {
	switch s {
	case StateRunning:
		return "running"
	default:
		return "not_started"
	}
}

// MarshalText renders the state for JSON consumers.
func (s ProcessState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText parses a state rendered by MarshalText.
func (s *ProcessState) UnmarshalText(text []byte) error {
	switch string(text) {
	case "running":
		*s = StateRunning
	case "not_started":
		*s = StateNotStarted
	default:
		return fmt.Errorf("unknown process state %q", string(text))
	}
	return nil
}

// ProcessStatus is a point-in-time copy of one entry.
type ProcessStatus struct {
	Name      string       `json:"name"`
	Image     string       `json:"image"`
	State     ProcessState `json:"state"`
	Required  bool         `json:"required"`
	Autostart bool         `json:"autostart"`
	PID       int          `json:"pid,omitempty"`
	// Exited is set when the retained child has exited on its own while
	// the state still says Running.
	Exited bool      `json:"exited,omitempty"`
	Since  time.Time `json:"since"`
}

// entry is the per-name slot of the registry. Its mutex serialises Launch and
// Terminate for one name so neither update is lost when they race.
type entry struct {
	cfg ProcessConfig

	mu    sync.Mutex
	state ProcessState
	proc  runtime.Process
	since time.Time
}

func (e *entry) pid() int {
	if e.proc == nil {
		return 0
	}
	return e.proc.PID()
}

func (e *entry) status(image string) ProcessStatus {
	e.mu.Lock()
	defer e.mu.Unlock()
	st := ProcessStatus{
		Name:      e.cfg.Name,
		Image:     image,
		State:     e.state,
		Required:  e.cfg.Required,
		Autostart: e.cfg.Autostart,
		PID:       e.pid(),
		Since:     e.since,
	}
	if e.state == StateRunning && e.proc != nil {
		select {
		case <-e.proc.Done():
			st.Exited = true
		default:
		}
	}
	return st
}
