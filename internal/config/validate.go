package config

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/Paintersrp/tether/internal/runtime"
)

var namePattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*$`)

// ApplyDefaults fills unset fields with their defaults.
func (m *Manifest) ApplyDefaults() error {
	if m.App.Window == "" {
		m.App.Window = DefaultWindow
	}
	if m.Runtime == "" {
		m.Runtime = runtime.DefaultName
	}
	if m.Resources.Directory == "" {
		m.Resources.Directory = DefaultResourceDir
	}
	if m.Resources.Extension == nil {
		ext := runtime.DefaultExtension()
		m.Resources.Extension = &ext
	} else if ext := *m.Resources.Extension; ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
		m.Resources.Extension = &ext
	}
	if m.Shutdown.Order == "" {
		m.Shutdown.Order = OrderReverse
	}
	if m.Shutdown.Kill == "" {
		m.Shutdown.Kill = KillImage
	}
	if !m.Shutdown.Timeout.IsSet() {
		m.Shutdown.Timeout.Duration = DefaultShutdownTimeout
	}
	return nil
}

// Validate enforces manifest invariants.
func (m *Manifest) Validate() error {
	if m.Version == "" {
		return fmt.Errorf("%s: is required", fieldPath("version"))
	}
	if m.Version != CurrentVersion {
		return fmt.Errorf("%s: unsupported version %q (expected %q)", fieldPath("version"), m.Version, CurrentVersion)
	}
	if len(m.Processes) == 0 {
		return fmt.Errorf("%s: must declare at least one process", fieldPath("processes"))
	}

	switch m.Shutdown.Order {
	case OrderReverse, OrderDeclared:
	default:
		return fmt.Errorf("%s: must be %q or %q, got %q", fieldPath("shutdown", "order"), OrderReverse, OrderDeclared, m.Shutdown.Order)
	}
	switch m.Shutdown.Kill {
	case KillImage, KillHandle:
	default:
		return fmt.Errorf("%s: must be %q or %q, got %q", fieldPath("shutdown", "kill"), KillImage, KillHandle, m.Shutdown.Kill)
	}
	if m.Shutdown.ReapOnExit && m.Runtime == RuntimeShell {
		return fmt.Errorf("%s: not supported by the %q runtime", fieldPath("shutdown", "reapOnExit"), RuntimeShell)
	}
	if m.Shutdown.Timeout.Duration < 0 {
		return fmt.Errorf("%s: must be non-negative", fieldPath("shutdown", "timeout"))
	}
	if ext := m.Resources.Ext(); strings.ContainsAny(ext, `/\`) {
		return fmt.Errorf("%s: must not contain path separators", fieldPath("resources", "extension"))
	}

	seen := make(map[string]int, len(m.Processes))
	for idx, p := range m.Processes {
		if p == nil {
			return fmt.Errorf("%s: must not be empty", processField(idx))
		}
		if p.Name == "" {
			return fmt.Errorf("%s: is required", processField(idx, "name"))
		}
		if !namePattern.MatchString(p.Name) {
			return fmt.Errorf("%s: %q is not a valid executable stem", processField(idx, "name"), p.Name)
		}
		if p.Required && !p.Autostarts() {
			return fmt.Errorf("%s: required processes must autostart", processField(idx, "required"))
		}
		// Image names compare case-insensitively on Windows, so "Agent" and
		// "agent" would kill each other.
		key := strings.ToLower(p.Name)
		if prev, dup := seen[key]; dup {
			return fmt.Errorf("%s: name %q collides with %s", processField(idx, "name"), p.Name, processField(prev, "name"))
		}
		seen[key] = idx
	}

	names := make([]string, 0, len(m.Commands))
	for name := range m.Commands {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		cmd := m.Commands[name]
		if !namePattern.MatchString(name) {
			return fmt.Errorf("%s: invalid command name", commandField(name))
		}
		if name == CommandOpenExe || name == CommandCloseExe {
			return fmt.Errorf("%s: %q is a built-in command", commandField(name), name)
		}
		if cmd == nil {
			return fmt.Errorf("%s: must not be empty", commandField(name))
		}
		switch cmd.Action {
		case ActionOpen, ActionClose:
		default:
			return fmt.Errorf("%s: must be %q or %q, got %q", commandField(name, "action"), ActionOpen, ActionClose, cmd.Action)
		}
		if _, ok := m.Process(cmd.Process); !ok {
			return fmt.Errorf("%s: unknown process %q", commandField(name, "process"), cmd.Process)
		}
	}
	return nil
}
