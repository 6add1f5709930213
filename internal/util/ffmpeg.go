package util

import (
	"fmt"
	"os/exec"
)

// ResolveBinary returns the executable to run for a helper program. A
// configured path must itself be executable; otherwise name is looked up in
// PATH.
func ResolveBinary(configured, name string) (string, error) {
	if configured != "" {
		path, err := exec.LookPath(configured)
		if err != nil {
			return "", fmt.Errorf("configured %s %q is not executable: %w", name, configured, err)
		}
		return path, nil
	}
	path, err := exec.LookPath(name)
	if err != nil {
		return "", fmt.Errorf("%s not found in PATH: %w", name, err)
	}
	return path, nil
}
