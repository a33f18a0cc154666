package supervisor

import (
	"sync"

	"github.com/Paintersrp/tether/internal/runtime"
)

// fakeRuntime records spawn and kill requests. Its processes never exit on
// their own.
type fakeRuntime struct {
	mu       sync.Mutex
	nextPID  int
	spawns   []runtime.Spec
	images   []string
	handles  []int
	spawnErr map[string]error
	killErr  map[string]error
	// killGate, when set, blocks KillImage until it is closed.
	killGate chan struct{}
}

func newFakeRuntime() *fakeRuntime {
	return &fakeRuntime{
		nextPID:  100,
		spawnErr: make(map[string]error),
		killErr:  make(map[string]error),
	}
}

func (f *fakeRuntime) Spawn(spec runtime.Spec) (runtime.Process, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.spawnErr[spec.Name]; err != nil {
		return nil, err
	}
	f.spawns = append(f.spawns, spec)
	f.nextPID++
	return &fakeProcess{rt: f, pid: f.nextPID, done: make(chan struct{})}, nil
}

func (f *fakeRuntime) KillImage(image string) error {
	if f.killGate != nil {
		<-f.killGate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.images = append(f.images, image)
	return f.killErr[image]
}

func (f *fakeRuntime) spawned() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.spawns))
	for _, spec := range f.spawns {
		out = append(out, spec.Image)
	}
	return out
}

func (f *fakeRuntime) killed() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.images...)
}

func (f *fakeRuntime) killedHandles() []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int(nil), f.handles...)
}

type fakeProcess struct {
	rt   *fakeRuntime
	pid  int
	done chan struct{}
}

func (p *fakeProcess) PID() int { return p.pid }

func (p *fakeProcess) Kill() error {
	p.rt.mu.Lock()
	defer p.rt.mu.Unlock()
	p.rt.handles = append(p.rt.handles, p.pid)
	return nil
}

func (p *fakeProcess) Done() <-chan struct{} { return p.done }

type fakeWindow struct {
	mu        sync.Mutex
	observers []func()
}

func (w *fakeWindow) OnCloseRequested(fn func()) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.observers = append(w.observers, fn)
}

// requestClose delivers a close request to every observer, the way a host
// does on its dispatch thread.
func (w *fakeWindow) requestClose() {
	w.mu.Lock()
	observers := append([]func(){}, w.observers...)
	w.mu.Unlock()
	for _, fn := range observers {
		fn()
	}
}

func (w *fakeWindow) observerCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.observers)
}

type fakeHost struct {
	windows map[string]*fakeWindow
}

func newFakeHost(labels ...string) *fakeHost {
	h := &fakeHost{windows: make(map[string]*fakeWindow)}
	for _, label := range labels {
		h.windows[label] = &fakeWindow{}
	}
	return h
}

func (h *fakeHost) Window(label string) (Window, bool) {
	w, ok := h.windows[label]
	if !ok {
		return nil, false
	}
	return w, true
}

func drainEvents(events chan Event) []Event {
	var out []Event
	for {
		select {
		case evt := <-events:
			out = append(out, evt)
		default:
			return out
		}
	}
}

func findEvent(events []Event, process string, typ EventType) (Event, bool) {
	for _, evt := range events {
		if evt.Process == process && evt.Type == typ {
			return evt, true
		}
	}
	return Event{}, false
}
