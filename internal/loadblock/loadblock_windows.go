//go:build windows

package loadblock

import (
	"fmt"
	"sync"
)

// inProcStorage is the windows fallback: POSIX mmap+flock aren't available
// without cgo, so the Shared Load Block degrades to a plain in-process
// slice-backed struct. Replica "workers" sharing a Block on this platform
// must run in-process (goroutines), not as separate OS processes; see
// SPEC_FULL.md's "process model adaptation" section.
type inProcStorage struct {
	cb, kv, nr []int64
}

func (s *inProcStorage) currentBS() []int64        { return s.cb }
func (s *inProcStorage) availableKVCache() []int64 { return s.kv }
func (s *inProcStorage) numReqs() []int64          { return s.nr }
func (s *inProcStorage) Close() error              { return nil }

type inProcMutex struct {
	mu sync.Mutex
}

func (m *inProcMutex) Lock() error   { m.mu.Lock(); return nil }
func (m *inProcMutex) Unlock() error { m.mu.Unlock(); return nil }
func (m *inProcMutex) Close() error  { return nil }

func newShared(n int) (storage, locker, string, string, error) {
	st := &inProcStorage{cb: make([]int64, n), kv: make([]int64, n), nr: make([]int64, n)}
	return st, &inProcMutex{}, "", "", nil
}

func openShared(shmPath, lockPath string, n int) (storage, locker, error) {
	return nil, nil, fmt.Errorf("loadblock: cross-process attach is unsupported on windows; run replicas in-process instead")
}
