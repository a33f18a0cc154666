//go:build !linux && !windows

package process

import (
	"errors"
	"fmt"
	"os/exec"

	"github.com/Paintersrp/tether/internal/runtime"
)

func killImage(image string) error {
	stem := runtime.ImageStem(image)
	err := exec.Command("pkill", "-9", "-x", stem).Run()
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && exitErr.ExitCode() == 1 {
		return fmt.Errorf("%s: %w", image, runtime.ErrNoMatchingProcess)
	}
	if err != nil {
		return fmt.Errorf("pkill %s: %w", stem, err)
	}
	return nil
}
