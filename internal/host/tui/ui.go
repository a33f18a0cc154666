// Package tui hosts tether in a terminal window. The process table stands in
// for the application's main window: pressing q or Ctrl+C raises a close
// request, which stops the managed processes before the UI exits.
package tui

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/Paintersrp/tether/internal/api"
	"github.com/Paintersrp/tether/internal/cliutil"
	"github.com/Paintersrp/tether/internal/supervisor"
)

const (
	tableTitle          = "Processes"
	logsTitle           = "Events"
	filterPageName      = "filter"
	defaultLogRetention = 500
	commandTimeout      = 5 * time.Second
)

// Commander runs process commands on behalf of key bindings.
type Commander interface {
	Invoke(ctx context.Context, command, name string) error
}

// Option configures UI behaviour.
type Option func(*UI)

// WithMaxLogs sets the maximum number of event records retained.
func WithMaxLogs(n int) Option {
	return func(u *UI) {
		if n > 0 {
			u.maxLogs = n
		}
	}
}

// WithWindowLabel sets the label the UI answers to as a host window.
func WithWindowLabel(label string) Option {
	return func(u *UI) {
		if label != "" {
			u.label = label
		}
	}
}

// WithProcesses seeds the table with the declared processes so they show
// before any event arrives.
func WithProcesses(names ...string) Option {
	return func(u *UI) {
		for _, name := range names {
			u.trackLocked(name, time.Now())
		}
	}
}

// WithCommander enables the o and x keys to open and close the selected
// process.
func WithCommander(c Commander) Option {
	return func(u *UI) { u.commander = c }
}

// UI is a tview application that implements supervisor.Host.
type UI struct {
	app    *tview.Application
	pages  *tview.Pages
	table  *tview.Table
	logs   *tview.TextView
	events chan supervisor.Event

	label     string
	commander Commander

	processes map[string]*processState
	order     []string
	records   []cliutil.LogRecord

	visible     []string
	selectedRow atomic.Int32
	logsPretty  bool
	filter      string
	filterExpr  *regexp.Regexp
	logsFocused bool
	maxLogs     int

	mu sync.RWMutex

	observerMu sync.Mutex
	observers  []func()
	closeOnce  sync.Once

	cancelMu sync.Mutex
	cancel   context.CancelFunc

	wg         sync.WaitGroup
	stopOnce   sync.Once
	eventsOnce sync.Once
	done       chan struct{}
}

type processState struct {
	name      string
	since     time.Time
	lastEvent time.Time
	state     supervisor.EventType
	pid       int
	message   string
}

// New constructs a UI configured with the supplied options.
func New(opts ...Option) *UI {
	app := tview.NewApplication()
	table := tview.NewTable().SetFixed(1, 1).SetSelectable(true, false)
	table.SetBorder(true).SetTitle(tableTitle)

	logs := tview.NewTextView().SetDynamicColors(true).SetWrap(false)
	logs.SetBorder(true).SetTitle(logsTitle)
	logs.SetChangedFunc(func() {
		app.Draw()
	})

	flex := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(table, 0, 3, true).
		AddItem(logs, 0, 2, false)

	pages := tview.NewPages().AddPage("main", flex, true, true)

	ui := &UI{
		app:       app,
		pages:     pages,
		table:     table,
		logs:      logs,
		events:    make(chan supervisor.Event, 256),
		label:     supervisor.DefaultWindowLabel,
		processes: make(map[string]*processState),
		maxLogs:   defaultLogRetention,
		done:      make(chan struct{}),
	}

	for _, opt := range opts {
		opt(ui)
	}

	// Select invokes this synchronously, often while mu is held.
	table.SetSelectionChangedFunc(func(row, column int) {
		ui.selectedRow.Store(int32(row))
	})

	app.SetRoot(pages, true)
	app.SetInputCapture(ui.handleKey)

	ui.mu.Lock()
	ui.refreshTableLocked()
	ui.mu.Unlock()

	return ui
}

// EventSink exposes the channel where supervisor events should be delivered.
func (u *UI) EventSink() chan<- supervisor.Event {
	return u.events
}

// CloseEvents releases the event channel, allowing internal goroutines to
// exit cleanly.
func (u *UI) CloseEvents() {
	u.eventsOnce.Do(func() {
		close(u.events)
	})
}

// SetCommander replaces the commander used by the o and x keys.
func (u *UI) SetCommander(c Commander) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.commander = c
}

// Done returns a channel that is closed when the UI stops.
func (u *UI) Done() <-chan struct{} {
	return u.done
}

// Window returns the UI itself when label matches its window label.
func (u *UI) Window(label string) (supervisor.Window, bool) {
	if label != u.label {
		return nil, false
	}
	return u, true
}

// OnCloseRequested registers fn to run when the user asks to quit.
func (u *UI) OnCloseRequested(fn func()) {
	if fn == nil {
		return
	}
	u.observerMu.Lock()
	defer u.observerMu.Unlock()
	u.observers = append(u.observers, fn)
}

// RequestClose delivers the close request to every observer once and then
// stops the application.
func (u *UI) RequestClose() {
	u.closeOnce.Do(func() {
		u.observerMu.Lock()
		observers := append([]func(){}, u.observers...)
		u.observerMu.Unlock()
		for _, fn := range observers {
			fn()
		}
	})
	u.Stop()
}

// Run starts the tview application and processes incoming events until the
// window closes. Cancelling ctx raises a close request.
func (u *UI) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)

	u.cancelMu.Lock()
	u.cancel = cancel
	u.cancelMu.Unlock()

	u.wg.Add(1)
	go func() {
		defer u.wg.Done()
		u.consumeEvents(ctx)
	}()

	go func() {
		select {
		case <-ctx.Done():
			u.RequestClose()
		case <-u.done:
		}
	}()

	err := u.app.Run()

	u.cancelMu.Lock()
	cancel = u.cancel
	u.cancel = nil
	u.cancelMu.Unlock()
	if cancel != nil {
		cancel()
	}

	u.wg.Wait()
	u.Stop()

	return err
}

// Stop terminates the application loop without raising a close request.
func (u *UI) Stop() {
	u.stopOnce.Do(func() {
		u.cancelMu.Lock()
		cancel := u.cancel
		u.cancel = nil
		u.cancelMu.Unlock()
		if cancel != nil {
			cancel()
		}
		u.app.Stop()
		close(u.done)
	})
}

func (u *UI) consumeEvents(ctx context.Context) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-u.events:
			if !ok {
				return
			}
			u.mu.Lock()
			u.applyEventLocked(evt)
			u.mu.Unlock()
			u.queueRefresh()
		case <-ticker.C:
			u.queueRefresh()
		}
	}
}

func (u *UI) handleKey(event *tcell.EventKey) *tcell.EventKey {
	if u.overlayActive() {
		return event
	}
	switch event.Key() {
	case tcell.KeyCtrlC:
		go u.RequestClose()
		return nil
	case tcell.KeyEnter:
		u.toggleFocus()
		return nil
	case tcell.KeyRune:
		switch event.Rune() {
		case 'q', 'Q':
			go u.RequestClose()
			return nil
		case '/':
			u.showFilterPrompt()
			return nil
		case 'j', 'J':
			u.toggleJSON()
			return nil
		case 'o', 'O':
			u.invokeSelected(api.CommandOpenExe)
			return nil
		case 'x', 'X':
			u.invokeSelected(api.CommandCloseExe)
			return nil
		}
	}
	return event
}

func (u *UI) overlayActive() bool {
	name, _ := u.pages.GetFrontPage()
	return name == filterPageName
}

func (u *UI) invokeSelected(command string) {
	u.mu.RLock()
	name := u.selectedLocked()
	commander := u.commander
	u.mu.RUnlock()
	if commander == nil || name == "" {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
		defer cancel()
		if err := commander.Invoke(ctx, command, name); err != nil {
			u.app.QueueUpdateDraw(func() {
				u.showErrorModal(fmt.Sprintf("%s %s: %v", command, name, err))
			})
		}
	}()
}

func (u *UI) toggleFocus() {
	if u.logsFocused {
		u.app.SetFocus(u.table)
	} else {
		u.app.SetFocus(u.logs)
	}
	u.logsFocused = !u.logsFocused
}

func (u *UI) toggleJSON() {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.logsPretty = !u.logsPretty
	u.renderLogsLocked()
}

func (u *UI) showFilterPrompt() {
	u.mu.RLock()
	current := u.filter
	u.mu.RUnlock()

	input := tview.NewInputField().
		SetLabel("Regex filter: ").
		SetText(current).
		SetFieldWidth(40)

	form := tview.NewForm().
		AddFormItem(input).
		AddButton("Apply", func() {
			u.applyFilter(input.GetText())
			u.pages.RemovePage(filterPageName)
			u.app.SetFocus(u.table)
		}).
		AddButton("Cancel", func() {
			u.pages.RemovePage(filterPageName)
			u.app.SetFocus(u.table)
		})

	form.SetBorder(true).SetTitle("Filter Processes")

	grid := tview.NewGrid().
		SetColumns(0, 60, 0).
		SetRows(0, 7, 0).
		AddItem(form, 1, 1, 1, 1, 0, 0, true)

	u.pages.AddPage(filterPageName, grid, true, true)
	u.app.SetFocus(input)
}

func (u *UI) applyFilter(expr string) {
	expr = strings.TrimSpace(expr)
	var re *regexp.Regexp
	if expr != "" {
		var err error
		re, err = regexp.Compile(expr)
		if err != nil {
			u.showErrorModal(fmt.Sprintf("Invalid filter: %v", err))
			return
		}
	}

	u.mu.Lock()
	u.filter = expr
	u.filterExpr = re
	u.refreshTableLocked()
	u.renderLogsLocked()
	u.mu.Unlock()
}

func (u *UI) showErrorModal(message string) {
	modal := tview.NewModal().
		SetText(message).
		AddButtons([]string{"OK"}).
		SetDoneFunc(func(buttonIndex int, buttonLabel string) {
			u.pages.RemovePage(filterPageName)
			u.app.SetFocus(u.table)
		})

	u.pages.RemovePage(filterPageName)
	u.pages.AddPage(filterPageName, modal, true, true)
}

func (u *UI) trackLocked(name string, ts time.Time) *processState {
	state := u.processes[name]
	if state == nil {
		state = &processState{name: name, since: ts}
		u.processes[name] = state
		u.order = append(u.order, name)
	}
	return state
}

func (u *UI) applyEventLocked(evt supervisor.Event) {
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now()
	}

	u.records = append(u.records, cliutil.NewLogRecord(evt))
	if len(u.records) > u.maxLogs {
		trim := len(u.records) - u.maxLogs
		u.records = append([]cliutil.LogRecord(nil), u.records[trim:]...)
	}

	if evt.Process == "" {
		return
	}
	state := u.trackLocked(evt.Process, evt.Timestamp)
	state.lastEvent = evt.Timestamp
	state.message = formatEventMessage(evt)

	switch evt.Type {
	case supervisor.EventTypeSkipped:
		// launch was a no-op; keep the running state and PID
	case supervisor.EventTypeRunning:
		state.state = evt.Type
		state.pid = evt.PID
		state.since = evt.Timestamp
	case supervisor.EventTypeStopping, supervisor.EventTypeStopped:
		state.state = supervisor.EventTypeStopped
		state.pid = 0
		state.since = evt.Timestamp
	default:
		state.state = evt.Type
	}
}

func (u *UI) queueRefresh() {
	u.app.QueueUpdateDraw(func() {
		u.mu.Lock()
		defer u.mu.Unlock()
		u.refreshTableLocked()
		u.renderLogsLocked()
	})
}

func (u *UI) refreshTableLocked() {
	u.table.Clear()

	headers := []string{"PROCESS", "STATE", "PID", "AGE", "MESSAGE"}
	for col, header := range headers {
		cell := tview.NewTableCell(header).
			SetSelectable(false).
			SetAttributes(tcell.AttrBold)
		u.table.SetCell(0, col, cell)
	}

	prev := u.selectedLocked()
	u.visible = nil
	for _, name := range u.order {
		if u.filterExpr != nil && !u.filterExpr.MatchString(name) {
			continue
		}
		u.visible = append(u.visible, name)
	}

	if u.filter != "" {
		u.table.SetTitle(fmt.Sprintf("%s /%s/", tableTitle, u.filter))
	} else {
		u.table.SetTitle(tableTitle)
	}

	for row, name := range u.visible {
		state := u.processes[name]
		age := "-"
		if !state.since.IsZero() {
			age = time.Since(state.since).Truncate(time.Second).String()
		}
		pid := "-"
		if state.pid > 0 {
			pid = fmt.Sprintf("%d", state.pid)
		}
		message := state.message
		if len(message) > 80 {
			message = message[:77] + "..."
		}

		values := []string{name, formatState(state.state), pid, age, message}
		for col, value := range values {
			cell := tview.NewTableCell(value)
			if col == 0 {
				cell = cell.SetReference(name)
			}
			u.table.SetCell(row+1, col, cell)
		}
	}

	u.ensureSelectionLocked(prev)
}

func (u *UI) renderLogsLocked() {
	u.logs.Clear()
	for _, record := range u.records {
		if u.filterExpr != nil && record.Process != "" && !u.filterExpr.MatchString(record.Process) {
			continue
		}
		var data []byte
		var err error
		if u.logsPretty {
			data, err = json.MarshalIndent(record, "", "  ")
		} else {
			data, err = json.Marshal(record)
		}
		if err != nil {
			fmt.Fprintf(u.logs, "{\"error\":\"%v\"}\n", err)
			continue
		}
		fmt.Fprintf(u.logs, "%s\n", data)
	}
	u.logs.ScrollToEnd()
}

func (u *UI) ensureSelectionLocked(prev string) {
	if len(u.visible) == 0 {
		u.table.Select(0, 0)
		return
	}
	idx := 0
	for i, name := range u.visible {
		if name == prev {
			idx = i
			break
		}
	}
	u.table.Select(idx+1, 0)
}

func (u *UI) selectedLocked() string {
	row := int(u.selectedRow.Load())
	if row <= 0 || row-1 >= len(u.visible) {
		return ""
	}
	return u.visible[row-1]
}

func formatEventMessage(evt supervisor.Event) string {
	message := evt.Message
	if evt.Err != nil && !strings.Contains(message, evt.Err.Error()) {
		if message == "" {
			message = evt.Err.Error()
		} else {
			message = message + ": " + evt.Err.Error()
		}
	}
	if evt.Reason != "" {
		if message == "" {
			return evt.Reason
		}
		message = fmt.Sprintf("%s (%s)", message, evt.Reason)
	}
	return message
}

func formatState(t supervisor.EventType) string {
	switch t {
	case "":
		return "Not started"
	case supervisor.EventTypeStopped:
		return "Not started"
	}
	s := string(t)
	return strings.ToUpper(s[:1]) + s[1:]
}
