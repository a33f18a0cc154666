package cli

import (
	stdcontext "context"
	"fmt"
	"sort"
	"time"

	"github.com/Paintersrp/tether/internal/api"
	"github.com/Paintersrp/tether/internal/config"
	"github.com/Paintersrp/tether/internal/supervisor"
)

// ControlAPI exposes supervisor operations to the command surface and the
// terminal UI.
type ControlAPI struct {
	sup      *supervisor.Supervisor
	hook     *supervisor.Hook
	commands map[string]api.Command
}

// NewControlAPI wraps a supervisor and its hook. commands holds the
// fixed-name commands declared in the manifest.
func NewControlAPI(sup *supervisor.Supervisor, hook *supervisor.Hook, commands map[string]*config.CommandSpec) *ControlAPI {
	if sup == nil {
		return nil
	}
	ctrl := &ControlAPI{sup: sup, hook: hook, commands: make(map[string]api.Command, len(commands))}
	for name, spec := range commands {
		if spec == nil {
			continue
		}
		ctrl.commands[name] = api.Command{Action: spec.Action, Process: spec.Process}
	}
	return ctrl
}

// Invoke runs a built-in or fixed-name command. open_exe and close_exe take
// the process name from the caller; fixed-name commands ignore it.
func (c *ControlAPI) Invoke(ctx stdcontext.Context, command, name string) error {
	if ctx != nil {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
	}

	action, target := "", name
	switch command {
	case api.CommandOpenExe:
		action = api.ActionOpen
	case api.CommandCloseExe:
		action = api.ActionClose
	default:
		fixed, ok := c.commands[command]
		if !ok {
			return fmt.Errorf("%w: %q", api.ErrUnknownCommand, command)
		}
		action, target = fixed.Action, fixed.Process
	}
	if target == "" {
		return fmt.Errorf("%w: %s requires a process name", api.ErrInvalidRequest, command)
	}

	switch action {
	case api.ActionOpen:
		// Nothing terminates a child spawned after the close hook fired.
		if c.hook != nil && c.hook.State() == supervisor.HookFired {
			return fmt.Errorf("%w: cannot open %s after the window closed", api.ErrShuttingDown, target)
		}
		if err := c.sup.Launch(target); err != nil {
			return err
		}
		// The hook may have fired while the spawn was in flight, after its
		// shutdown pass already covered target.
		if c.hook != nil && c.hook.State() == supervisor.HookFired {
			_ = c.sup.Terminate(target)
			return fmt.Errorf("%w: %s was stopped again because the window closed", api.ErrShuttingDown, target)
		}
		return nil
	case api.ActionClose:
		return c.sup.Terminate(target)
	default:
		return fmt.Errorf("%w: %s has unknown action %q", api.ErrInvalidRequest, command, action)
	}
}

// Processes reports every managed process.
func (c *ControlAPI) Processes(ctx stdcontext.Context) (*api.ProcessesReport, error) {
	if ctx != nil {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
	}
	report := &api.ProcessesReport{
		RunID:       c.sup.RunID(),
		GeneratedAt: time.Now().UTC(),
		Processes:   c.sup.Snapshot(),
	}
	if c.hook != nil {
		report.Hook = c.hook.State().String()
	}
	if len(c.commands) > 0 {
		report.Commands = make(map[string]api.Command, len(c.commands))
		for name, cmd := range c.commands {
			report.Commands[name] = cmd
		}
	}
	return report, nil
}

// CommandNames lists the fixed-name commands in sorted order.
func (c *ControlAPI) CommandNames() []string {
	names := make([]string, 0, len(c.commands))
	for name := range c.commands {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
