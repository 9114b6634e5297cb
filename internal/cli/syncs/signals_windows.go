//go:build windows

package syncs

import "os"

var nudgeSignals []os.Signal
