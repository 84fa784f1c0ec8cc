package rowan

import (
	"fmt"
	"os"
	"sync/atomic"
)

// debugMode gates verbose tracing to stderr. Off by default.
var debugMode atomic.Bool

// SetDebugMode enables or disables verbose tracing. When enabled, the loader
// logs every fetch and decode, the watcher logs every reload, and the atlas
// logs region synthesis. Lines are written to stderr with a [rowan] prefix.
func SetDebugMode(enabled bool) {
	debugMode.Store(enabled)
}

// debugf prints a trace line to stderr when debug mode is on.
func debugf(format string, args ...any) {
	if !debugMode.Load() {
		return
	}
	_, _ = fmt.Fprintf(os.Stderr, "[rowan] "+format+"\n", args...)
}
