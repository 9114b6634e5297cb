//go:build !windows

package syncs

import (
	"os"
	"syscall"
)

// SIGUSR1 asks a running watcher to sync now.
var nudgeSignals = []os.Signal{syscall.SIGUSR1}
