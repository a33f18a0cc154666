// Package headless provides a windowless host for running tether as a
// background companion. Its only window is virtual: a close request is raised
// when the run context ends, typically on SIGINT or SIGTERM.
package headless

import (
	"context"
	"sync"

	"github.com/Paintersrp/tether/internal/supervisor"
)

// Host implements supervisor.Host with a single virtual window.
type Host struct {
	label string

	// dispatch serialises observer callbacks the way a UI thread would.
	dispatch  sync.Mutex
	mu        sync.Mutex
	observers []func()

	closeOnce sync.Once
	closed    chan struct{}
}

// New creates a host whose window answers to label.
func New(label string) *Host {
	if label == "" {
		label = supervisor.DefaultWindowLabel
	}
	return &Host{label: label, closed: make(chan struct{})}
}

// Window returns the virtual window when label matches.
func (h *Host) Window(label string) (supervisor.Window, bool) {
	if label != h.label {
		return nil, false
	}
	return h, true
}

// OnCloseRequested registers fn to run on every close request.
func (h *Host) OnCloseRequested(fn func()) {
	if fn == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.observers = append(h.observers, fn)
}

// RequestClose delivers a close request to every observer and then marks the
// window closed. Observers run on the calling goroutine, one request at a
// time.
func (h *Host) RequestClose() {
	h.dispatch.Lock()
	defer h.dispatch.Unlock()

	h.mu.Lock()
	observers := append([]func(){}, h.observers...)
	h.mu.Unlock()

	for _, fn := range observers {
		fn()
	}
	h.closeOnce.Do(func() { close(h.closed) })
}

// Closed is closed after the first close request has been delivered.
func (h *Host) Closed() <-chan struct{} {
	return h.closed
}

// Run blocks until the window is closed, raising a close request when ctx
// ends.
func (h *Host) Run(ctx context.Context) error {
	select {
	case <-ctx.Done():
		h.RequestClose()
	case <-h.closed:
	}
	return nil
}
