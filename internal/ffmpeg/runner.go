// Package ffmpeg implements the media framework on top of the FFmpeg binary.
//
// Devices are discovered by parsing the device listings FFmpeg (or arecord on
// Linux) prints, nodes and pins model the inputs and the libvpx encoder of an
// FFmpeg invocation, and a connected graph renders to an FFmpeg command line.
package ffmpeg

import (
	"context"
	"fmt"
	"os/exec"
	"time"

	"github.com/oszuidwest/zwfm-webmlive/internal/util"
)

// probeTimeout bounds every listing or version command.
const probeTimeout = 10 * time.Second

// Runner executes a command and returns its combined output.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// ExecRunner runs commands as subprocesses.
type ExecRunner struct{}

// Run implements Runner.
func (ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Cancel = func() error {
		return util.InterruptProbe(cmd.Process)
	}
	cmd.WaitDelay = 3 * time.Second

	out, err := cmd.CombinedOutput()
	if err != nil {
		if msg := util.ExtractLastError(string(out)); msg != "" {
			return out, fmt.Errorf("%s: %w: %s", name, err, msg)
		}
		return out, fmt.Errorf("%s: %w", name, err)
	}
	return out, nil
}

// run executes a probe command with the standard timeout.
func (f *Framework) run(command []string) ([]byte, error) {
	if len(command) == 0 {
		return nil, fmt.Errorf("empty command")
	}
	name := command[0]
	if name == "ffmpeg" {
		name = f.path
	}

	ctx, cancel := context.WithTimeout(context.Background(), probeTimeout)
	defer cancel()
	return f.runner.Run(ctx, name, command[1:]...)
}
