package config

import (
	"strings"
	"testing"
)

func validManifest() *Manifest {
	m := &Manifest{
		Version: CurrentVersion,
		Processes: []*ProcessSpec{
			{Name: "agent"},
			{Name: "backend", Required: true},
		},
	}
	_ = m.ApplyDefaults()
	return m
}

func TestValidateAcceptsMinimalManifest(t *testing.T) {
	if err := validManifest().Validate(); err != nil {
		t.Fatalf("Validate returned error: %v", err)
	}
}

func TestValidateFailures(t *testing.T) {
	off := false
	cases := []struct {
		name   string
		mutate func(*Manifest)
		want   string
	}{
		{
			name:   "missing version",
			mutate: func(m *Manifest) { m.Version = "" },
			want:   "version: is required",
		},
		{
			name: "reap on exit with shell runtime",
			mutate: func(m *Manifest) {
				m.Runtime = RuntimeShell
				m.Shutdown.ReapOnExit = true
			},
			want: "shutdown.reapOnExit: not supported",
		},
		{
			name:   "unsupported version",
			mutate: func(m *Manifest) { m.Version = "2" },
			want:   "unsupported version",
		},
		{
			name:   "no processes",
			mutate: func(m *Manifest) { m.Processes = nil },
			want:   "at least one process",
		},
		{
			name: "case-insensitive collision",
			mutate: func(m *Manifest) {
				m.Processes = append(m.Processes, &ProcessSpec{Name: "Agent"})
			},
			want: "collides with processes[0].name",
		},
		{
			name: "required without autostart",
			mutate: func(m *Manifest) {
				m.Processes[1].Autostart = &off
			},
			want: "required processes must autostart",
		},
		{
			name:   "bad shutdown order",
			mutate: func(m *Manifest) { m.Shutdown.Order = "random" },
			want:   "shutdown.order",
		},
		{
			name:   "negative timeout",
			mutate: func(m *Manifest) { m.Shutdown.Timeout.Duration = -1 },
			want:   "shutdown.timeout",
		},
		{
			name: "command shadows builtin",
			mutate: func(m *Manifest) {
				m.Commands = map[string]*CommandSpec{CommandOpenExe: {Action: ActionOpen, Process: "agent"}}
			},
			want: "built-in command",
		},
		{
			name: "command targets unknown process",
			mutate: func(m *Manifest) {
				m.Commands = map[string]*CommandSpec{"start_main_app": {Action: ActionOpen, Process: "main"}}
			},
			want: `commands.start_main_app.process: unknown process "main"`,
		},
		{
			name: "command with bad action",
			mutate: func(m *Manifest) {
				m.Commands = map[string]*CommandSpec{"open_agent": {Action: "restart", Process: "agent"}}
			},
			want: "commands.open_agent.action",
		},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			m := validManifest()
			tc.mutate(m)
			err := m.Validate()
			if err == nil {
				t.Fatalf("expected validation error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected error containing %q, got %v", tc.want, err)
			}
		})
	}
}

func TestValidateAllowsReapOnExitWithProcessRuntime(t *testing.T) {
	m := validManifest()
	m.Shutdown.ReapOnExit = true
	if err := m.Validate(); err != nil {
		t.Fatalf("Validate returned error: %v", err)
	}
}

func TestProcessSpecCloneIsDeep(t *testing.T) {
	on := true
	orig := &ProcessSpec{Name: "agent", Autostart: &on, Args: []string{"-v"}, Env: map[string]string{"A": "1"}}
	cp := orig.Clone()
	cp.Args[0] = "-q"
	cp.Env["A"] = "2"
	*cp.Autostart = false

	if orig.Args[0] != "-v" || orig.Env["A"] != "1" || !*orig.Autostart {
		t.Fatalf("clone shares state with original: %+v", orig)
	}
}
