package supervisor

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Paintersrp/tether/internal/metrics"
)

const (
	// DefaultWindowLabel is the label of the window whose close request
	// stops the managed processes.
	DefaultWindowLabel     = "main"
	DefaultShutdownTimeout = 2 * time.Second
)

// Window is the part of a host window the hook depends on.
type Window interface {
	// OnCloseRequested registers fn to run on the host's dispatch thread
	// when the user asks to close the window. fn must not be invoked again
	// after it returns for the same request.
	OnCloseRequested(fn func())
}

// Host exposes the windows of the application shell.
type Host interface {
	Window(label string) (Window, bool)
}

// HookState tracks the lifecycle hook. Transitions only move forward.
type HookState int32

const (
	HookUninitialized HookState = iota
	HookBound
	HookFired
)

func (s HookState) String() string {
	switch s {
	case HookBound:
		return "bound"
	case HookFired:
		return "fired"
	default:
		return "uninitialized"
	}
}

// ShutdownOrder selects the order processes are terminated in on close.
type ShutdownOrder string

const (
	ShutdownReverse  ShutdownOrder = "reverse"
	ShutdownDeclared ShutdownOrder = "declared"
)

// Hook ties the supervisor to the application lifecycle: Bind launches the
// autostart processes and Shutdown, run when the main window is asked to
// close, terminates every managed process.
type Hook struct {
	sup     *Supervisor
	window  string
	order   ShutdownOrder
	timeout time.Duration

	state    atomic.Int32
	done     chan struct{}
	doneOnce sync.Once
}

// HookOption customises a Hook.
type HookOption func(*Hook)

func WithWindowLabel(label string) HookOption {
	return func(h *Hook) {
		if label != "" {
			h.window = label
		}
	}
}

func WithShutdownOrder(order ShutdownOrder) HookOption {
	return func(h *Hook) {
		if order != "" {
			h.order = order
		}
	}
}

// WithShutdownTimeout bounds how long the close observer waits for
// termination dispatch before letting the window close. Zero means it does
// not wait at all.
func WithShutdownTimeout(timeout time.Duration) HookOption {
	return func(h *Hook) {
		if timeout >= 0 {
			h.timeout = timeout
		}
	}
}

// NewHook creates an unbound hook for sup.
func NewHook(sup *Supervisor, opts ...HookOption) *Hook {
	h := &Hook{
		sup:     sup,
		window:  DefaultWindowLabel,
		order:   ShutdownReverse,
		timeout: DefaultShutdownTimeout,
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h
}

// State returns the current hook state.
func (h *Hook) State() HookState {
	return HookState(h.state.Load())
}

// Done is closed once termination requests have been dispatched for every
// managed process after the hook fired.
func (h *Hook) Done() <-chan struct{} {
	return h.done
}

// Bind runs the setup sequence once. It locates the main window, launches
// the autostart processes in declared order and registers the close
// observer. A failed required launch terminates what was already started and
// returns the launch error; optional failures are reported through events
// only.
func (h *Hook) Bind(host Host) error {
	if !h.state.CompareAndSwap(int32(HookUninitialized), int32(HookBound)) {
		return ErrHookBound
	}

	var win Window
	if host != nil {
		win, _ = host.Window(h.window)
	}
	if win == nil {
		err := fmt.Errorf("%w: %q", ErrWindowHandleMissing, h.window)
		h.state.Store(int32(HookFired))
		h.closeDone()
		h.sup.emit(Event{
			Type:    EventTypeError,
			Message: err.Error(),
			Level:   "error",
			Reason:  ReasonStartupAborted,
			Err:     err,
		})
		return err
	}

	var launched []string
	for _, name := range h.sup.Autostart() {
		err := h.sup.launch(name, ReasonStartup)
		if err == nil {
			launched = append(launched, name)
			continue
		}
		if !h.sup.Required(name) {
			continue
		}
		abortErr := fmt.Errorf("launch required process %s: %w", name, err)
		h.state.Store(int32(HookFired))
		h.sup.emit(Event{
			Process: name,
			Type:    EventTypeError,
			Message: abortErr.Error(),
			Level:   "error",
			Reason:  ReasonStartupAborted,
			Err:     abortErr,
		})
		h.terminate(launched)
		return abortErr
	}

	win.OnCloseRequested(h.Shutdown)
	h.sup.emit(Event{
		Type:    EventTypeHook,
		Message: fmt.Sprintf("shutdown hook bound to window %q", h.window),
		Reason:  ReasonHookBound,
	})
	return nil
}

// Shutdown terminates every managed process. Only the first call after Bind
// has any effect. Terminations run on their own goroutine; Shutdown waits for
// them at most the configured timeout so the window close is never held up
// by a stuck kill request.
func (h *Hook) Shutdown() {
	if !h.state.CompareAndSwap(int32(HookBound), int32(HookFired)) {
		return
	}
	metrics.IncrementHookFired()
	h.sup.emit(Event{
		Type:    EventTypeHook,
		Message: "window close requested, stopping managed processes",
		Reason:  ReasonWindowClose,
	})

	go h.terminate(h.sup.Names())

	if h.timeout <= 0 {
		return
	}
	timer := time.NewTimer(h.timeout)
	defer timer.Stop()
	select {
	case <-h.done:
	case <-timer.C:
		h.sup.emit(Event{
			Type:    EventTypeHook,
			Message: fmt.Sprintf("termination still in progress after %s", h.timeout),
			Level:   "warn",
			Reason:  ReasonShutdownPending,
		})
	}
}

func (h *Hook) terminate(names []string) {
	defer h.closeDone()
	for _, name := range h.ordered(names) {
		_ = h.sup.Terminate(name)
	}
}

func (h *Hook) ordered(names []string) []string {
	out := append([]string(nil), names...)
	if h.order == ShutdownDeclared {
		return out
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}

func (h *Hook) closeDone() {
	h.doneOnce.Do(func() { close(h.done) })
}
