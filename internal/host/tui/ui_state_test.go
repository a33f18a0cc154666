package tui

import (
	"strings"
	"testing"
	"time"

	"github.com/rivo/tview"

	"github.com/Paintersrp/tether/internal/supervisor"
)

func TestApplyEventTracksProcessState(t *testing.T) {
	ui := New(WithProcesses("agent"))
	base := time.Now()

	ui.applyEventLocked(supervisor.Event{Process: "agent", Type: supervisor.EventTypeRunning, PID: 77, Timestamp: base})
	state := ui.processes["agent"]
	if state.state != supervisor.EventTypeRunning || state.pid != 77 {
		t.Fatalf("expected running with pid, got %+v", state)
	}

	ui.applyEventLocked(supervisor.Event{Process: "agent", Type: supervisor.EventTypeSkipped, Reason: supervisor.ReasonAlreadyRunning, Timestamp: base.Add(time.Second)})
	if state.state != supervisor.EventTypeRunning || state.pid != 77 {
		t.Fatalf("expected skipped launch to keep running state, got %+v", state)
	}

	ui.applyEventLocked(supervisor.Event{Process: "agent", Type: supervisor.EventTypeStopped, Timestamp: base.Add(2 * time.Second)})
	if state.state != supervisor.EventTypeStopped || state.pid != 0 {
		t.Fatalf("expected stopped state, got %+v", state)
	}
	if got := formatState(state.state); got != "Not started" {
		t.Fatalf("unexpected state label %q", got)
	}

	ui.applyEventLocked(supervisor.Event{Process: "worker", Type: supervisor.EventTypeFailed, Message: "failed to start worker"})
	if len(ui.order) != 2 || ui.order[1] != "worker" {
		t.Fatalf("expected new processes to be appended, got %v", ui.order)
	}
	if got := formatState(ui.processes["worker"].state); got != "Failed" {
		t.Fatalf("unexpected state label %q", got)
	}
}

func TestApplyEventRetainsRecentRecords(t *testing.T) {
	ui := New(WithMaxLogs(2))
	for i, msg := range []string{"one", "two", "three"} {
		ui.applyEventLocked(supervisor.Event{Process: "agent", Message: msg, Timestamp: time.Unix(int64(i), 0)})
	}
	ui.applyEventLocked(supervisor.Event{Type: supervisor.EventTypeHook, Message: "hook bound"})

	if len(ui.records) != 2 {
		t.Fatalf("expected two retained records, got %d", len(ui.records))
	}
	if ui.records[0].Message != "three" || ui.records[1].Message != "hook bound" {
		t.Fatalf("unexpected records %+v", ui.records)
	}
	if _, ok := ui.processes[""]; ok {
		t.Fatalf("application level events must not create table rows")
	}
}

func TestApplyFilter(t *testing.T) {
	ui := New(WithProcesses("agent", "backend", "main"))

	ui.applyFilter("back")
	if len(ui.visible) != 1 || ui.visible[0] != "backend" {
		t.Fatalf("expected only backend to be visible, got %v", ui.visible)
	}
	if got := ui.selectedLocked(); got != "backend" {
		t.Fatalf("expected selection to follow filter, got %q", got)
	}
	if !strings.Contains(ui.table.GetTitle(), "/back/") {
		t.Fatalf("expected filter in title, got %q", ui.table.GetTitle())
	}

	ui.applyFilter("(")
	if ui.filter != "back" {
		t.Fatalf("invalid filter must not replace the current one, got %q", ui.filter)
	}
	if name, _ := ui.pages.GetFrontPage(); name != filterPageName {
		t.Fatalf("expected error modal, got front page %q", name)
	}
	if _, ok := ui.pages.GetPage(filterPageName).(*tview.Modal); !ok {
		t.Fatalf("expected modal to be shown")
	}

	ui.pages.RemovePage(filterPageName)
	ui.applyFilter("")
	if len(ui.visible) != 3 {
		t.Fatalf("expected clearing the filter to show all processes, got %v", ui.visible)
	}
}

func TestUIHostsSupervisorHook(t *testing.T) {
	ui := New()
	sup, err := supervisor.New(nopRuntime{}, []supervisor.ProcessConfig{{Name: "agent"}}, supervisor.WithEvents(ui.EventSink()))
	if err != nil {
		t.Fatalf("supervisor: %v", err)
	}
	hook := supervisor.NewHook(sup)
	if err := hook.Bind(ui); err != nil {
		t.Fatalf("bind: %v", err)
	}

	ui.RequestClose()
	waitClosed(t, ui)
	select {
	case <-hook.Done():
	case <-time.After(time.Second):
		t.Fatalf("hook did not finish after close request")
	}
	ui.CloseEvents()
}
