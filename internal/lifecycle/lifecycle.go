// Package lifecycle holds process-wide run state shared by serve and /health.
package lifecycle

import "sync/atomic"

var shuttingDown atomic.Bool

// SetShuttingDown flips the drain flag. serve sets it on SIGINT/SIGTERM so
// /health reports shutting-down while in-flight lookups finish.
func SetShuttingDown(v bool) {
	shuttingDown.Store(v)
}

// IsShuttingDown reports whether the process is draining.
func IsShuttingDown() bool {
	return shuttingDown.Load()
}
