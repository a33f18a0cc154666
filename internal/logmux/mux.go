// Package logmux funnels supervisor events into a bounded channel for a slow
// consumer such as a terminal or a piped stderr.
package logmux

import (
	"fmt"
	"sync"
	"time"

	"github.com/Paintersrp/tether/internal/supervisor"
)

// ReasonDropped tags the warning synthesized after events were discarded.
const ReasonDropped = "events_dropped"

// Mux fans in events from one or more sources. When the consumer falls behind
// and the output would overflow, events are dropped per process and a single
// warning carrying the count is delivered once there is room again.
type Mux struct {
	out chan supervisor.Event

	mu     sync.Mutex
	drops  map[string]dropRecord
	inputs sync.WaitGroup
}

type dropRecord struct {
	count int
	runID string
}

// New constructs a mux whose output holds size events. A size of zero results
// in a minimally buffered channel.
func New(size int) *Mux {
	if size <= 0 {
		size = 1
	}
	return &Mux{
		out:   make(chan supervisor.Event, size),
		drops: make(map[string]dropRecord),
	}
}

// Output exposes the muxed event channel.
func (m *Mux) Output() <-chan supervisor.Event {
	return m.out
}

// Add consumes source until it is closed.
func (m *Mux) Add(source <-chan supervisor.Event) {
	if source == nil {
		return
	}
	m.inputs.Add(1)
	go func() {
		defer m.inputs.Done()
		for evt := range source {
			m.deliver(normalize(evt))
		}
	}()
}

// Close waits for all sources to be drained, reports pending drops and closes
// the output channel.
func (m *Mux) Close() {
	m.inputs.Wait()
	m.flushDrops()
	close(m.out)
}

func (m *Mux) deliver(evt supervisor.Event) {
	// Pending drop warnings go first so the count precedes newer events.
	if !m.flushPending(evt.Process) || !m.trySend(evt) {
		m.recordDrop(evt.Process, evt.RunID, 1)
	}
}

func (m *Mux) flushPending(process string) bool {
	rec := m.takeDrops(process)
	if rec.count == 0 {
		return true
	}
	if m.trySend(synthesizeDropEvent(process, rec)) {
		return true
	}
	m.recordDrop(process, rec.runID, rec.count)
	return false
}

func (m *Mux) takeDrops(process string) dropRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec := m.drops[process]
	if rec.count != 0 {
		delete(m.drops, process)
	}
	return rec
}

func (m *Mux) recordDrop(process, runID string, count int) {
	if count <= 0 {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	rec := m.drops[process]
	rec.count += count
	if rec.runID == "" {
		rec.runID = runID
	}
	m.drops[process] = rec
}

func (m *Mux) flushDrops() {
	m.mu.Lock()
	pending := m.drops
	m.drops = make(map[string]dropRecord)
	m.mu.Unlock()

	for process, rec := range pending {
		if rec.count == 0 {
			continue
		}
		m.out <- synthesizeDropEvent(process, rec)
	}
}

func (m *Mux) trySend(evt supervisor.Event) bool {
	select {
	case m.out <- evt:
		return true
	default:
		return false
	}
}

func normalize(evt supervisor.Event) supervisor.Event {
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now()
	}
	if evt.Level == "" {
		switch evt.Type {
		case supervisor.EventTypeFailed, supervisor.EventTypeError:
			evt.Level = "warn"
		default:
			evt.Level = "info"
		}
	}
	return evt
}

func synthesizeDropEvent(process string, rec dropRecord) supervisor.Event {
	return supervisor.Event{
		Timestamp: time.Now(),
		RunID:     rec.runID,
		Process:   process,
		Type:      supervisor.EventTypeError,
		Message:   fmt.Sprintf("dropped=%d", rec.count),
		Level:     "warn",
		Reason:    ReasonDropped,
	}
}
