//go:build windows

package util

import "os"

// ShutdownSignals returns the signals that stop the service.
func ShutdownSignals() []os.Signal {
	return []os.Signal{os.Interrupt}
}

// InterruptProbe ends a probe command that ran past its deadline. Child
// processes cannot be interrupted on Windows, and probes hold no state
// worth flushing.
func InterruptProbe(p *os.Process) error {
	return p.Kill()
}
