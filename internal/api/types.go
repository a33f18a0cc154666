package api

import (
	stdcontext "context"
	"errors"
	"time"

	"github.com/Paintersrp/tether/internal/supervisor"
)

var (
	ErrUnknownCommand = errors.New("unknown command")
	ErrInvalidRequest = errors.New("invalid request")
	// ErrShuttingDown rejects launches once the window close hook has fired.
	ErrShuttingDown = errors.New("shutting down")
)

// Built-in commands taking the process name from the request.
const (
	CommandOpenExe  = "open_exe"
	CommandCloseExe = "close_exe"
)

// Command actions.
const (
	ActionOpen  = "open"
	ActionClose = "close"
)

// Command binds a fixed-name command to an action on one process.
type Command struct {
	Action  string `json:"action"`
	Process string `json:"process"`
}

// InvokeRequest is the argument object of an invoke call, e.g.
// {"name":"agent"}.
type InvokeRequest struct {
	Name string `json:"name"`
}

// InvokeResponse acknowledges a successful invoke.
type InvokeResponse struct {
	OK bool `json:"ok"`
}

// ErrorResponse carries a human readable failure.
type ErrorResponse struct {
	Error string `json:"error"`
}

// ProcessesReport describes every managed process.
type ProcessesReport struct {
	RunID       string                     `json:"run_id"`
	Hook        string                     `json:"hook"`
	GeneratedAt time.Time                  `json:"generated_at"`
	Processes   []supervisor.ProcessStatus `json:"processes"`
	Commands    map[string]Command         `json:"commands,omitempty"`
}

// Controller exposes supervisor operations to the command surface.
type Controller interface {
	Invoke(ctx stdcontext.Context, command, name string) error
	Processes(ctx stdcontext.Context) (*ProcessesReport, error)
}
