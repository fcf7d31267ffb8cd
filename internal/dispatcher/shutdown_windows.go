//go:build windows

package dispatcher

import "os"

// terminateProcessGroup has no POSIX process-group equivalent on windows
// without additional job-object plumbing; this falls back to exiting the
// current process, which is sufficient given the windows loadblock fallback
// already requires replicas to run in-process rather than as separate OS
// processes (see internal/loadblock/loadblock_windows.go).
func terminateProcessGroup() {
	os.Exit(1)
}
