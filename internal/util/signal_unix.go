//go:build !windows

package util

import (
	"os"
	"syscall"
)

// ShutdownSignals returns the signals that stop the service.
func ShutdownSignals() []os.Signal {
	return []os.Signal{syscall.SIGINT, syscall.SIGTERM}
}

// InterruptProbe asks a probe command that ran past its deadline to exit.
// FFmpeg treats SIGINT as a request to finish cleanly.
func InterruptProbe(p *os.Process) error {
	return p.Signal(os.Interrupt)
}
