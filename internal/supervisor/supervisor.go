package supervisor

import (
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/Paintersrp/tether/internal/metrics"
	"github.com/Paintersrp/tether/internal/runtime"
)

// KillMode selects how Terminate finds the processes to stop.
type KillMode string

const (
	// KillByImage terminates every OS process whose image matches the managed
	// name, including instances the supervisor did not start.
	KillByImage KillMode = "image"
	// KillByHandle terminates only the child retained from the last launch.
	KillByHandle KillMode = "handle"
)

// ProcessConfig declares one managed executable.
type ProcessConfig struct {
	Name      string
	Required  bool
	Autostart bool
	Args      []string
	Env       map[string]string
}

// Supervisor owns the process registry. Launch and Terminate may be called
// concurrently from any goroutine; calls for the same name are serialised.
type Supervisor struct {
	runtime runtime.Runtime

	resourceDir string
	extension   string
	killMode    KillMode
	reapOnExit  bool
	runID       string
	events      chan<- Event
	now         func() time.Time

	order   []string
	entries map[string]*entry
}

// Option customises a Supervisor.
type Option func(*Supervisor)

// WithResourceDir sets the directory that holds the managed executables.
func WithResourceDir(dir string) Option {
	return func(s *Supervisor) { s.resourceDir = dir }
}

// WithExtension overrides the platform executable extension.
func WithExtension(ext string) Option {
	return func(s *Supervisor) { s.extension = ext }
}

func WithKillMode(mode KillMode) Option {
	return func(s *Supervisor) {
		if mode != "" {
			s.killMode = mode
		}
	}
}

// WithReapOnExit asks the runtime to terminate children when the host
// process dies without running the close hook.
func WithReapOnExit(enabled bool) Option {
	return func(s *Supervisor) { s.reapOnExit = enabled }
}

// WithEvents routes lifecycle events to the provided channel.
func WithEvents(events chan<- Event) Option {
	return func(s *Supervisor) { s.events = events }
}

func WithRunID(id string) Option {
	return func(s *Supervisor) {
		if id != "" {
			s.runID = id
		}
	}
}

// New creates a supervisor for the declared processes. Every entry starts
// NotStarted.
func New(rt runtime.Runtime, procs []ProcessConfig, opts ...Option) (*Supervisor, error) {
	if rt == nil {
		return nil, errors.New("supervisor: runtime is required")
	}
	s := &Supervisor{
		runtime:   rt,
		extension: runtime.DefaultExtension(),
		killMode:  KillByImage,
		runID:     uuid.NewString(),
		now:       time.Now,
		entries:   make(map[string]*entry, len(procs)),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	switch s.killMode {
	case KillByImage, KillByHandle:
	default:
		return nil, fmt.Errorf("supervisor: unknown kill mode %q", s.killMode)
	}

	for _, cfg := range procs {
		if cfg.Name == "" {
			return nil, errors.New("supervisor: process name is required")
		}
		if _, dup := s.entries[cfg.Name]; dup {
			return nil, fmt.Errorf("supervisor: duplicate process %q", cfg.Name)
		}
		s.entries[cfg.Name] = &entry{cfg: cloneConfig(cfg), since: s.now()}
		s.order = append(s.order, cfg.Name)
		// Series left by an earlier supervisor for the same name would
		// otherwise carry over into this run.
		metrics.ResetProcess(cfg.Name)
		metrics.SetProcessRunning(cfg.Name, false)
	}
	return s, nil
}

// RunID identifies this supervisor instance in events.
func (s *Supervisor) RunID() string {
	return s.runID
}

// Names returns the declared process names in declaration order.
func (s *Supervisor) Names() []string {
	return append([]string(nil), s.order...)
}

// Autostart returns the names launched at setup, in declaration order.
func (s *Supervisor) Autostart() []string {
	var out []string
	for _, name := range s.order {
		if s.entries[name].cfg.Autostart {
			out = append(out, name)
		}
	}
	return out
}

// Required reports whether a launch failure of name aborts startup.
func (s *Supervisor) Required(name string) bool {
	e, ok := s.entries[name]
	return ok && e.cfg.Required
}

// Image returns the executable file name for name.
func (s *Supervisor) Image(name string) string {
	return runtime.ImageName(name, s.extension)
}

// State returns the believed state of name.
func (s *Supervisor) State(name string) (ProcessState, error) {
	e, err := s.lookup(name)
	if err != nil {
		return StateNotStarted, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state, nil
}

// Snapshot reports every managed process in declaration order.
func (s *Supervisor) Snapshot() []ProcessStatus {
	out := make([]ProcessStatus, 0, len(s.order))
	for _, name := range s.order {
		out = append(out, s.entries[name].status(s.Image(name)))
	}
	return out
}

// Launch starts name if it is not already believed to be running. It returns
// as soon as the OS has accepted the process; the child is never awaited.
func (s *Supervisor) Launch(name string) error {
	return s.launch(name, "")
}

// launch tags the starting and running events with reason.
func (s *Supervisor) launch(name, reason string) error {
	e, err := s.lookup(name)
	if err != nil {
		return err
	}
	image := s.Image(name)

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state == StateRunning {
		metrics.ObserveLaunch(name, metrics.ResultSkipped)
		s.emit(Event{
			Process: name,
			Type:    EventTypeSkipped,
			Message: fmt.Sprintf("%s is already running", image),
			Reason:  ReasonAlreadyRunning,
			PID:     e.pid(),
		})
		return nil
	}

	s.emit(Event{
		Process: name,
		Type:    EventTypeStarting,
		Message: fmt.Sprintf("starting %s", image),
		Reason:  reason,
	})

	proc, err := s.runtime.Spawn(s.buildSpec(e.cfg, image))
	if err != nil {
		launchErr := &LaunchError{Name: name, Image: image, Err: err}
		metrics.ObserveLaunch(name, metrics.ResultFailed)
		s.emit(Event{
			Process: name,
			Type:    EventTypeFailed,
			Message: launchErr.Error(),
			Level:   "error",
			Reason:  ReasonSpawnFailed,
			Err:     launchErr,
		})
		return launchErr
	}

	e.state = StateRunning
	e.proc = proc
	e.since = s.now()
	metrics.SetProcessRunning(name, true)
	metrics.ObserveLaunch(name, metrics.ResultOK)
	s.emit(Event{
		Process: name,
		Type:    EventTypeRunning,
		Message: fmt.Sprintf("%s started", image),
		Reason:  reason,
		PID:     proc.PID(),
	})
	return nil
}

// Terminate requests forced termination of name. The entry becomes NotStarted
// whether or not anything was killed; dispatch failures are reported through
// events only. The only error returned is ErrUnknownProcess.
func (s *Supervisor) Terminate(name string) error {
	e, err := s.lookup(name)
	if err != nil {
		return err
	}
	image := s.Image(name)

	e.mu.Lock()
	defer e.mu.Unlock()

	proc := e.proc
	pid := e.pid()
	e.state = StateNotStarted
	e.proc = nil
	e.since = s.now()
	metrics.SetProcessRunning(name, false)

	s.emit(Event{
		Process: name,
		Type:    EventTypeStopping,
		Message: fmt.Sprintf("terminating %s", image),
		Reason:  ReasonTerminate,
		PID:     pid,
	})

	var killErr error
	switch s.killMode {
	case KillByHandle:
		if proc == nil {
			killErr = fmt.Errorf("%s: %w", image, runtime.ErrNoMatchingProcess)
		} else {
			killErr = proc.Kill()
		}
	default:
		killErr = s.runtime.KillImage(image)
	}

	switch {
	case killErr == nil:
		metrics.ObserveTermination(name, metrics.ResultOK)
		s.emit(Event{
			Process: name,
			Type:    EventTypeStopped,
			Message: fmt.Sprintf("%s terminated", image),
			Reason:  ReasonTerminate,
			PID:     pid,
		})
	case errors.Is(killErr, runtime.ErrNoMatchingProcess):
		metrics.ObserveTermination(name, metrics.ResultAbsent)
		s.emit(Event{
			Process: name,
			Type:    EventTypeStopped,
			Message: fmt.Sprintf("no running %s found", image),
			Reason:  ReasonNotRunning,
		})
	default:
		dispatchErr := fmt.Errorf("%w: %s: %w", ErrKillDispatchFailed, image, killErr)
		metrics.ObserveTermination(name, metrics.ResultFailed)
		s.emit(Event{
			Process: name,
			Type:    EventTypeError,
			Message: dispatchErr.Error(),
			Level:   "warn",
			Reason:  ReasonKillFailed,
			PID:     pid,
			Err:     dispatchErr,
		})
	}
	return nil
}

func (s *Supervisor) lookup(name string) (*entry, error) {
	e, ok := s.entries[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownProcess, name)
	}
	return e, nil
}

func (s *Supervisor) buildSpec(cfg ProcessConfig, image string) runtime.Spec {
	spec := runtime.Spec{
		Name:           cfg.Name,
		Image:          image,
		Dir:            s.resourceDir,
		Path:           image,
		HideWindow:     true,
		KillOnHostExit: s.reapOnExit,
	}
	if s.resourceDir != "" {
		spec.Path = filepath.Join(s.resourceDir, image)
	}
	if len(cfg.Args) > 0 {
		spec.Args = append([]string(nil), cfg.Args...)
	}
	if len(cfg.Env) > 0 {
		keys := make([]string, 0, len(cfg.Env))
		for k := range cfg.Env {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			spec.Env = append(spec.Env, fmt.Sprintf("%s=%s", k, cfg.Env[k]))
		}
	}
	return spec
}

func (s *Supervisor) emit(evt Event) {
	if evt.Timestamp.IsZero() {
		evt.Timestamp = s.now()
	}
	evt.RunID = s.runID
	sendEvent(s.events, evt)
}

func cloneConfig(cfg ProcessConfig) ProcessConfig {
	cp := cfg
	if len(cfg.Args) > 0 {
		cp.Args = append([]string(nil), cfg.Args...)
	}
	if len(cfg.Env) > 0 {
		cp.Env = make(map[string]string, len(cfg.Env))
		for k, v := range cfg.Env {
			cp.Env[k] = v
		}
	}
	return cp
}
