package iw

import (
	"errors"
	"fmt"
	"os/exec"
)

func findRuntime(runtime string) (string, error) {
	binPath, err := exec.LookPath(runtime)
	if err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return "", fmt.Errorf("%w: `%s` not in PATH", ErrRuntimeNotFound, runtime)
		}
		return "", fmt.Errorf("locating `%s`: %w", runtime, err)
	}

	return binPath, nil
}
