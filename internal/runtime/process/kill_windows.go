//go:build windows

package process

import (
	"errors"
	"fmt"
	"os/exec"
	"syscall"

	"golang.org/x/sys/windows"

	"github.com/Paintersrp/tether/internal/runtime"
)

// taskkill exits with 128 when no process matched the image name.
const taskkillNotFound = 128

func killImage(image string) error {
	cmd := exec.Command("taskkill", "/F", "/IM", image)
	cmd.SysProcAttr = &syscall.SysProcAttr{
		HideWindow:    true,
		CreationFlags: windows.CREATE_NO_WINDOW,
	}
	err := cmd.Run()
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && exitErr.ExitCode() == taskkillNotFound {
		return fmt.Errorf("%s: %w", image, runtime.ErrNoMatchingProcess)
	}
	if err != nil {
		return fmt.Errorf("taskkill %s: %w", image, err)
	}
	return nil
}
