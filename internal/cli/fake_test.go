package cli

import (
	"sync"
	"testing"

	"github.com/Paintersrp/tether/internal/config"
	"github.com/Paintersrp/tether/internal/runtime"
)

type fakeRuntime struct {
	mu       sync.Mutex
	nextPID  int
	spawns   []string
	kills    []string
	spawnErr map[string]error
}

func newFakeRuntime() *fakeRuntime {
	return &fakeRuntime{nextPID: 4000, spawnErr: make(map[string]error)}
}

func (f *fakeRuntime) Spawn(spec runtime.Spec) (runtime.Process, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.spawnErr[spec.Name]; err != nil {
		return nil, err
	}
	f.spawns = append(f.spawns, spec.Image)
	f.nextPID++
	return &fakeProcess{pid: f.nextPID, done: make(chan struct{})}, nil
}

func (f *fakeRuntime) KillImage(image string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.kills = append(f.kills, image)
	return nil
}

func (f *fakeRuntime) spawned() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.spawns...)
}

func (f *fakeRuntime) killed() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.kills...)
}

type fakeProcess struct {
	pid  int
	done chan struct{}
}

func (p *fakeProcess) PID() int { return p.pid }

func (p *fakeProcess) Kill() error { return nil }

func (p *fakeProcess) Done() <-chan struct{} { return p.done }

// useFakeRuntime swaps the runtime constructor for the duration of the test.
func useFakeRuntime(t *testing.T, rt *fakeRuntime) {
	prev := newRuntime
	newRuntime = func(*config.Manifest) (runtime.Runtime, error) { return rt, nil }
	t.Cleanup(func() { newRuntime = prev })
}
