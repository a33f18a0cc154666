//go:build linux

package process

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"

	"github.com/Paintersrp/tether/internal/runtime"
)

const procRoot = "/proc"

// commLen is the kernel's TASK_COMM_LEN minus the terminating NUL.
const commLen = 15

func killImage(image string) error {
	pids, err := findImage(procRoot, runtime.ImageStem(image))
	if err != nil {
		return err
	}
	if len(pids) == 0 {
		return fmt.Errorf("%s: %w", image, runtime.ErrNoMatchingProcess)
	}

	var errs []error
	for _, pid := range pids {
		if err := unix.Kill(pid, unix.SIGKILL); err != nil && !errors.Is(err, unix.ESRCH) {
			errs = append(errs, fmt.Errorf("kill %s (pid %d): %w", image, pid, err))
		}
	}
	return errors.Join(errs...)
}

// findImage scans a procfs tree for processes whose executable or command
// name equals stem. The calling process is never matched.
func findImage(root, stem string) ([]int, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", root, err)
	}

	comm := stem
	if len(comm) > commLen {
		comm = comm[:commLen]
	}
	self := os.Getpid()

	var pids []int
	for _, entry := range entries {
		pid, err := strconv.Atoi(entry.Name())
		if err != nil || pid == self {
			continue
		}
		dir := filepath.Join(root, entry.Name())

		if exe, err := os.Readlink(filepath.Join(dir, "exe")); err == nil {
			exe = strings.TrimSuffix(exe, " (deleted)")
			if runtime.ImageStem(exe) == stem {
				pids = append(pids, pid)
				continue
			}
		}
		if raw, err := os.ReadFile(filepath.Join(dir, "comm")); err == nil {
			if strings.TrimSpace(string(raw)) == comm {
				pids = append(pids, pid)
			}
		}
	}
	return pids, nil
}
