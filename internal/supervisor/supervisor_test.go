package supervisor

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/Paintersrp/tether/internal/metrics"
	"github.com/Paintersrp/tether/internal/runtime"
)

func newTestSupervisor(t *testing.T, rt *fakeRuntime, procs []ProcessConfig, opts ...Option) (*Supervisor, chan Event) {
	t.Helper()
	events := make(chan Event, 256)
	base := []Option{WithExtension(".exe"), WithResourceDir("/app/resources"), WithEvents(events), WithRunID("run-1")}
	sup, err := New(rt, procs, append(base, opts...)...)
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	return sup, events
}

func TestNewRejectsInvalidInput(t *testing.T) {
	if _, err := New(nil, nil); err == nil {
		t.Fatalf("expected error for nil runtime")
	}
	rt := newFakeRuntime()
	if _, err := New(rt, []ProcessConfig{{Name: "agent"}, {Name: "agent"}}); err == nil {
		t.Fatalf("expected error for duplicate process")
	}
	if _, err := New(rt, []ProcessConfig{{Name: ""}}); err == nil {
		t.Fatalf("expected error for empty name")
	}
	if _, err := New(rt, nil, WithKillMode("pid")); err == nil {
		t.Fatalf("expected error for unknown kill mode")
	}
}

func TestNewStartsEveryProcessNotStarted(t *testing.T) {
	sup, _ := newTestSupervisor(t, newFakeRuntime(), []ProcessConfig{{Name: "agent"}, {Name: "backend"}})
	for _, name := range []string{"agent", "backend"} {
		state, err := sup.State(name)
		if err != nil {
			t.Fatalf("State(%s): %v", name, err)
		}
		if state != StateNotStarted {
			t.Fatalf("expected %s to be not_started, got %s", name, state)
		}
	}
}

func TestLaunchIsIdempotent(t *testing.T) {
	rt := newFakeRuntime()
	sup, events := newTestSupervisor(t, rt, []ProcessConfig{{Name: "agent"}})

	if err := sup.Launch("agent"); err != nil {
		t.Fatalf("first launch: %v", err)
	}
	if err := sup.Launch("agent"); err != nil {
		t.Fatalf("second launch: %v", err)
	}

	if got := rt.spawned(); !reflect.DeepEqual(got, []string{"agent.exe"}) {
		t.Fatalf("expected exactly one spawn, got %v", got)
	}
	state, _ := sup.State("agent")
	if state != StateRunning {
		t.Fatalf("expected running, got %s", state)
	}
	evt, ok := findEvent(drainEvents(events), "agent", EventTypeSkipped)
	if !ok {
		t.Fatalf("expected skipped event for second launch")
	}
	if evt.Reason != ReasonAlreadyRunning || evt.RunID != "run-1" {
		t.Fatalf("unexpected skipped event: %+v", evt)
	}
}

func TestConcurrentLaunchSpawnsOnce(t *testing.T) {
	rt := newFakeRuntime()
	sup, _ := newTestSupervisor(t, rt, []ProcessConfig{{Name: "agent"}})

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := sup.Launch("agent"); err != nil {
				t.Errorf("launch: %v", err)
			}
		}()
	}
	wg.Wait()

	if got := len(rt.spawned()); got != 1 {
		t.Fatalf("expected a single spawn, got %d", got)
	}
}

func TestLaunchReturnsWhileChildRuns(t *testing.T) {
	rt := newFakeRuntime()
	sup, _ := newTestSupervisor(t, rt, []ProcessConfig{{Name: "agent"}})

	returned := make(chan error, 1)
	go func() { returned <- sup.Launch("agent") }()

	select {
	case err := <-returned:
		if err != nil {
			t.Fatalf("launch: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("launch blocked on a child that never exits")
	}
}

func TestLaunchBuildsSpec(t *testing.T) {
	rt := newFakeRuntime()
	sup, _ := newTestSupervisor(t, rt, []ProcessConfig{{
		Name: "backend",
		Args: []string{"--port", "9000"},
		Env:  map[string]string{"B": "2", "A": "1"},
	}}, WithReapOnExit(true))

	if err := sup.Launch("backend"); err != nil {
		t.Fatalf("launch: %v", err)
	}

	spec := rt.spawns[0]
	if spec.Name != "backend" || spec.Image != "backend.exe" {
		t.Fatalf("unexpected identity: %+v", spec)
	}
	if want := filepath.Join("/app/resources", "backend.exe"); spec.Path != want {
		t.Fatalf("expected path %q, got %q", want, spec.Path)
	}
	if spec.Dir != "/app/resources" {
		t.Fatalf("expected resource dir as working dir, got %q", spec.Dir)
	}
	if !reflect.DeepEqual(spec.Args, []string{"--port", "9000"}) {
		t.Fatalf("unexpected args: %v", spec.Args)
	}
	if !reflect.DeepEqual(spec.Env, []string{"A=1", "B=2"}) {
		t.Fatalf("expected sorted env, got %v", spec.Env)
	}
	if !spec.HideWindow {
		t.Fatalf("expected console window to be suppressed")
	}
	if !spec.KillOnHostExit {
		t.Fatalf("expected reap on exit to be forwarded")
	}
}

func TestLaunchFailureReportsSpawnError(t *testing.T) {
	rt := newFakeRuntime()
	rt.spawnErr["agent"] = os.ErrNotExist
	sup, events := newTestSupervisor(t, rt, []ProcessConfig{{Name: "agent"}})

	err := sup.Launch("agent")
	if err == nil {
		t.Fatalf("expected launch error")
	}
	if !errors.Is(err, ErrSpawnFailed) {
		t.Fatalf("expected ErrSpawnFailed, got %v", err)
	}
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected underlying cause to be preserved, got %v", err)
	}
	var launchErr *LaunchError
	if !errors.As(err, &launchErr) || launchErr.Name != "agent" {
		t.Fatalf("expected *LaunchError for agent, got %T", err)
	}
	if want := fmt.Sprintf("failed to start agent.exe: %v", os.ErrNotExist); err.Error() != want {
		t.Fatalf("unexpected message %q, want %q", err.Error(), want)
	}

	state, _ := sup.State("agent")
	if state != StateNotStarted {
		t.Fatalf("expected state to stay not_started, got %s", state)
	}
	evt, ok := findEvent(drainEvents(events), "agent", EventTypeFailed)
	if !ok || evt.Level != "error" || evt.Reason != ReasonSpawnFailed {
		t.Fatalf("expected failed event, got %+v", evt)
	}

	delete(rt.spawnErr, "agent")
	if err := sup.Launch("agent"); err != nil {
		t.Fatalf("retry launch: %v", err)
	}
}

func TestUnknownProcess(t *testing.T) {
	rt := newFakeRuntime()
	sup, _ := newTestSupervisor(t, rt, []ProcessConfig{{Name: "agent"}})

	if err := sup.Launch("ghost"); !errors.Is(err, ErrUnknownProcess) {
		t.Fatalf("expected ErrUnknownProcess from Launch, got %v", err)
	}
	if err := sup.Terminate("ghost"); !errors.Is(err, ErrUnknownProcess) {
		t.Fatalf("expected ErrUnknownProcess from Terminate, got %v", err)
	}
	if _, err := sup.State("ghost"); !errors.Is(err, ErrUnknownProcess) {
		t.Fatalf("expected ErrUnknownProcess from State, got %v", err)
	}
	if len(rt.spawned()) != 0 || len(rt.killed()) != 0 {
		t.Fatalf("unknown names must not reach the runtime")
	}
}

func TestTerminateToleratesAbsence(t *testing.T) {
	rt := newFakeRuntime()
	rt.killErr["agent.exe"] = fmt.Errorf("agent.exe: %w", runtime.ErrNoMatchingProcess)
	sup, events := newTestSupervisor(t, rt, []ProcessConfig{{Name: "agent"}})

	if err := sup.Terminate("agent"); err != nil {
		t.Fatalf("terminate: %v", err)
	}
	state, _ := sup.State("agent")
	if state != StateNotStarted {
		t.Fatalf("expected not_started, got %s", state)
	}
	if got := rt.killed(); !reflect.DeepEqual(got, []string{"agent.exe"}) {
		t.Fatalf("expected kill by image, got %v", got)
	}
	evt, ok := findEvent(drainEvents(events), "agent", EventTypeStopped)
	if !ok || evt.Reason != ReasonNotRunning {
		t.Fatalf("expected stopped/not_running event, got %+v", evt)
	}
}

func TestTerminateSwallowsDispatchFailure(t *testing.T) {
	rt := newFakeRuntime()
	rt.killErr["agent.exe"] = errors.New("access denied")
	sup, events := newTestSupervisor(t, rt, []ProcessConfig{{Name: "agent"}})

	if err := sup.Launch("agent"); err != nil {
		t.Fatalf("launch: %v", err)
	}
	if err := sup.Terminate("agent"); err != nil {
		t.Fatalf("terminate must not surface dispatch errors, got %v", err)
	}
	state, _ := sup.State("agent")
	if state != StateNotStarted {
		t.Fatalf("expected not_started after terminate, got %s", state)
	}
	evt, ok := findEvent(drainEvents(events), "agent", EventTypeError)
	if !ok {
		t.Fatalf("expected error event for failed dispatch")
	}
	if !errors.Is(evt.Err, ErrKillDispatchFailed) || evt.Reason != ReasonKillFailed {
		t.Fatalf("unexpected error event: %+v", evt)
	}
}

func TestTerminateThenLaunchSpawnsAgain(t *testing.T) {
	rt := newFakeRuntime()
	sup, _ := newTestSupervisor(t, rt, []ProcessConfig{{Name: "agent"}})

	for i := 0; i < 2; i++ {
		if err := sup.Launch("agent"); err != nil {
			t.Fatalf("launch %d: %v", i, err)
		}
		if err := sup.Terminate("agent"); err != nil {
			t.Fatalf("terminate %d: %v", i, err)
		}
	}
	if got := len(rt.spawned()); got != 2 {
		t.Fatalf("expected two spawns, got %d", got)
	}
	if got := len(rt.killed()); got != 2 {
		t.Fatalf("expected two kills, got %d", got)
	}
}

func TestTerminateByHandle(t *testing.T) {
	rt := newFakeRuntime()
	sup, events := newTestSupervisor(t, rt, []ProcessConfig{{Name: "agent"}}, WithKillMode(KillByHandle))

	if err := sup.Terminate("agent"); err != nil {
		t.Fatalf("terminate without handle: %v", err)
	}
	if len(rt.killedHandles()) != 0 {
		t.Fatalf("expected nothing killed without a retained handle")
	}
	if evt, ok := findEvent(drainEvents(events), "agent", EventTypeStopped); !ok || evt.Reason != ReasonNotRunning {
		t.Fatalf("expected not_running event, got %+v", evt)
	}

	if err := sup.Launch("agent"); err != nil {
		t.Fatalf("launch: %v", err)
	}
	status := sup.Snapshot()[0]
	if err := sup.Terminate("agent"); err != nil {
		t.Fatalf("terminate: %v", err)
	}
	if got := rt.killedHandles(); !reflect.DeepEqual(got, []int{status.PID}) {
		t.Fatalf("expected handle %d to be killed, got %v", status.PID, got)
	}
	if got := rt.killed(); len(got) != 0 {
		t.Fatalf("handle mode must not kill by image, got %v", got)
	}
}

func TestSnapshotReportsDeclaredOrder(t *testing.T) {
	rt := newFakeRuntime()
	sup, _ := newTestSupervisor(t, rt, []ProcessConfig{
		{Name: "agent", Autostart: true},
		{Name: "backend", Autostart: true, Required: true},
		{Name: "main"},
	})
	if err := sup.Launch("backend"); err != nil {
		t.Fatalf("launch: %v", err)
	}

	snap := sup.Snapshot()
	if len(snap) != 3 {
		t.Fatalf("expected three entries, got %d", len(snap))
	}
	if snap[0].Name != "agent" || snap[1].Name != "backend" || snap[2].Name != "main" {
		t.Fatalf("unexpected order: %+v", snap)
	}
	if snap[1].State != StateRunning || snap[1].PID == 0 || !snap[1].Required {
		t.Fatalf("unexpected backend status: %+v", snap[1])
	}
	if snap[0].State != StateNotStarted || snap[0].PID != 0 {
		t.Fatalf("unexpected agent status: %+v", snap[0])
	}
	if snap[2].Image != "main.exe" || snap[2].Autostart {
		t.Fatalf("unexpected main status: %+v", snap[2])
	}
	if got := sup.Autostart(); !reflect.DeepEqual(got, []string{"agent", "backend"}) {
		t.Fatalf("unexpected autostart list: %v", got)
	}
}

func TestProcessStateTextRoundTrip(t *testing.T) {
	for _, want := range []ProcessState{StateNotStarted, StateRunning} {
		text, err := want.MarshalText()
		if err != nil {
			t.Fatalf("marshal %v: %v", want, err)
		}
		var got ProcessState
		if err := got.UnmarshalText(text); err != nil {
			t.Fatalf("unmarshal %q: %v", text, err)
		}
		if got != want {
			t.Fatalf("round trip mismatch: got %v want %v", got, want)
		}
	}

	var state ProcessState
	if err := state.UnmarshalText([]byte("stopped")); err == nil {
		t.Fatalf("expected unknown state to be rejected")
	}
}

func TestNewResetsMetricSeries(t *testing.T) {
	rt := newFakeRuntime()
	first, _ := newTestSupervisor(t, rt, []ProcessConfig{{Name: "metrics_reset_agent"}})
	if err := first.Launch("metrics_reset_agent"); err != nil {
		t.Fatalf("launch: %v", err)
	}
	if got := launchCount(t, "metrics_reset_agent"); got != 1 {
		t.Fatalf("expected one launch counted, got %v", got)
	}

	newTestSupervisor(t, rt, []ProcessConfig{{Name: "metrics_reset_agent"}})
	if got := launchCount(t, "metrics_reset_agent"); got != 0 {
		t.Fatalf("expected launch series to be cleared by a new supervisor, got %v", got)
	}
}

func launchCount(t *testing.T, process string) float64 {
	t.Helper()
	families, err := metrics.Registry().Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	var total float64
	for _, family := range families {
		if family.GetName() != "tether_process_launches_total" {
			continue
		}
		for _, m := range family.GetMetric() {
			for _, label := range m.GetLabel() {
				if label.GetName() == "process" && label.GetValue() == process {
					total += m.GetCounter().GetValue()
				}
			}
		}
	}
	return total
}
