package runtime

import (
	"errors"
	"path/filepath"
	goruntime "runtime"
	"strings"
)

// ErrNoMatchingProcess reports that a kill request found nothing to terminate.
var ErrNoMatchingProcess = errors.New("no matching process")

// Spec describes a single executable launch.
type Spec struct {
	// Name is the logical process name, e.g. "agent".
	Name string
	// Image is the executable file name, e.g. "agent.exe".
	Image string
	// Path is the absolute path of the executable.
	Path string
	// Dir is the working directory of the child, usually the resource
	// directory holding the executable.
	Dir  string
	Args []string
	// Env holds KEY=VALUE pairs appended to the parent environment.
	Env []string

	// HideWindow suppresses any console window for the child.
	HideWindow bool
	// KillOnHostExit asks the OS to reap the child when the host process
	// dies, where the platform supports it.
	KillOnHostExit bool
}

// Process is a handle to a spawned child.
type Process interface {
	// PID returns the OS process identifier.
	PID() int

	// Kill forcefully terminates the child. It does not wait for the
	// child to exit and is safe to call more than once.
	Kill() error

	// Done is closed once the child has exited and been reaped.
	Done() <-chan struct{}
}

// Runtime is the OS process interface used by the supervisor. Spawn and
// KillImage are the only side effects tether has on the system.
type Runtime interface {
	// Spawn starts the executable described by spec and returns as soon as
	// the OS has accepted the request. Implementations must not wait for
	// the child to initialise or produce output.
	Spawn(spec Spec) (Process, error)

	// KillImage issues a forced termination request for every process whose
	// executable image matches image. It returns ErrNoMatchingProcess when
	// nothing matched.
	KillImage(image string) error
}

// Registry maps runtime identifiers to their concrete implementations.
type Registry map[string]Runtime

// DefaultExtension is the executable suffix of the current platform.
func DefaultExtension() string {
	if goruntime.GOOS == "windows" {
		return ".exe"
	}
	return ""
}

// ImageName joins a process name with an executable extension.
func ImageName(name, ext string) string {
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return name + ext
}

// ImageStem strips a trailing extension from an image name, so "agent.exe"
// and "agent" compare equal on platforms without executable suffixes.
func ImageStem(image string) string {
	base := filepath.Base(image)
	if ext := filepath.Ext(base); ext != "" && strings.EqualFold(ext, ".exe") {
		return strings.TrimSuffix(base, ext)
	}
	return base
}
