//go:build linux || darwin

package dispatcher

import "golang.org/x/sys/unix"

// terminateProcessGroup sends SIGKILL to the dispatcher's own process
// group, per spec.md §4.E/§6's shutdown contract: once every worker has
// already been SIGKILLed, the parent process group itself is terminated. A
// negative pid targets the calling process's group.
func terminateProcessGroup() {
	pgid, err := unix.Getpgid(0)
	if err != nil {
		return
	}
	_ = unix.Kill(-pgid, unix.SIGKILL)
}
