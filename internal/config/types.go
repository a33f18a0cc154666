package config

import (
	"fmt"
	"strings"
	"time"
)

const (
	// CurrentVersion is the only manifest version understood by tether.
	CurrentVersion = "1"

	DefaultWindow          = "main"
	DefaultResourceDir     = "resources"
	DefaultShutdownTimeout = 2 * time.Second

	OrderReverse  = "reverse"
	OrderDeclared = "declared"

	// RuntimeShell names the runtime that launches through the platform
	// shell.
	RuntimeShell = "shell"

	KillImage  = "image"
	KillHandle = "handle"

	ActionOpen  = "open"
	ActionClose = "close"

	// Built-in command names exposed to the UI layer.
	CommandOpenExe  = "open_exe"
	CommandCloseExe = "close_exe"
)

// Duration wraps time.Duration for YAML unmarshalling.
type Duration struct {
	time.Duration
	explicit bool
}

// UnmarshalText parses a textual duration, accepting empty strings.
func (d *Duration) UnmarshalText(text []byte) error {
	d.explicit = true
	if len(text) == 0 {
		d.Duration = 0
		return nil
	}
	dur, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", string(text), err)
	}
	d.Duration = dur
	return nil
}

// MarshalText renders the duration using time.Duration formatting.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// IsSet reports whether the duration was explicitly provided or non-zero.
func (d Duration) IsSet() bool {
	return d.explicit || d.Duration != 0
}

// Manifest mirrors the tether.yaml document structure.
type Manifest struct {
	Version   string                  `yaml:"version"`
	App       AppMeta                 `yaml:"app"`
	Runtime   string                  `yaml:"runtime"`
	Resources ResourcesSpec           `yaml:"resources"`
	Shutdown  ShutdownSpec            `yaml:"shutdown"`
	API       APISpec                 `yaml:"api"`
	Processes []*ProcessSpec          `yaml:"processes"`
	Commands  map[string]*CommandSpec `yaml:"commands"`

	// Source is the absolute path the manifest was loaded from.
	Source string `yaml:"-"`
}

// AppMeta describes the host application.
type AppMeta struct {
	Name    string `yaml:"name"`
	Workdir string `yaml:"workdir"`
	// Window is the label of the main window whose close request stops the
	// managed processes.
	Window string `yaml:"window"`
}

// ResourcesSpec locates the directory holding the managed executables.
type ResourcesSpec struct {
	Directory string  `yaml:"directory"`
	Extension *string `yaml:"extension"`

	// ResolvedDir is the absolute resource directory.
	ResolvedDir string `yaml:"-"`
}

// Ext returns the executable extension, empty when none applies.
func (r ResourcesSpec) Ext() string {
	if r.Extension == nil {
		return ""
	}
	return *r.Extension
}

// ShutdownSpec controls how processes are stopped when the window closes.
type ShutdownSpec struct {
	Order      string   `yaml:"order"`
	Kill       string   `yaml:"kill"`
	Timeout    Duration `yaml:"timeout"`
	ReapOnExit bool     `yaml:"reapOnExit"`
}

// APISpec configures the loopback command surface. An empty address disables
// it.
type APISpec struct {
	Addr string `yaml:"addr"`
}

// ProcessSpec declares one managed executable.
type ProcessSpec struct {
	Name        string            `yaml:"name"`
	Required    bool              `yaml:"required"`
	Autostart   *bool             `yaml:"autostart"`
	Args        []string          `yaml:"args"`
	Env         map[string]string `yaml:"env"`
	EnvFromFile string            `yaml:"envFromFile"`
}

// Autostarts reports whether the process is launched at application setup.
func (p *ProcessSpec) Autostarts() bool {
	return p.Autostart == nil || *p.Autostart
}

// Clone creates a deep copy of the process spec.
func (p *ProcessSpec) Clone() *ProcessSpec {
	if p == nil {
		return nil
	}
	cp := *p
	if p.Autostart != nil {
		v := *p.Autostart
		cp.Autostart = &v
	}
	if len(p.Args) > 0 {
		cp.Args = append([]string(nil), p.Args...)
	}
	if len(p.Env) > 0 {
		cp.Env = make(map[string]string, len(p.Env))
		for k, v := range p.Env {
			cp.Env[k] = v
		}
	}
	return &cp
}

// CommandSpec binds a fixed-name UI command to a process action, e.g.
// start_main_app → open main.
type CommandSpec struct {
	Action  string `yaml:"action"`
	Process string `yaml:"process"`
}

// Process returns the declared process with the given name.
func (m *Manifest) Process(name string) (*ProcessSpec, bool) {
	for _, p := range m.Processes {
		if p != nil && p.Name == name {
			return p, true
		}
	}
	return nil, false
}

// ProcessNames returns the declared names in declaration order.
func (m *Manifest) ProcessNames() []string {
	out := make([]string, 0, len(m.Processes))
	for _, p := range m.Processes {
		if p != nil {
			out = append(out, p.Name)
		}
	}
	return out
}

func fieldPath(parts ...string) string {
	return strings.Join(parts, ".")
}

func processField(index int, parts ...string) string {
	pathParts := append([]string{fmt.Sprintf("processes[%d]", index)}, parts...)
	return fieldPath(pathParts...)
}

func commandField(name string, parts ...string) string {
	pathParts := append([]string{"commands", name}, parts...)
	return fieldPath(pathParts...)
}
