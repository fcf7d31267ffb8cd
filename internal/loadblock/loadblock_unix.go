//go:build linux || darwin

package loadblock

import (
	"fmt"
	"os"
	"unsafe"

	"golang.org/x/sys/unix"
)

// mmapStorage backs the three counter arrays with a single temporary-file
// mmap(2) region, shared (MAP_SHARED) so every process that opens the same
// path and maps it sees the same memory. Layout: [current_bs | n int64][
// available_kv_cache | n int64][num_reqs | n int64].
type mmapStorage struct {
	file *os.File
	data []byte // the mmap'd region
	n    int
}

const int64Size = 8

func newShared(n int) (storage, locker, string, string, error) {
	shmFile, err := os.CreateTemp("", "dispatchctl-shm-*")
	if err != nil {
		return nil, nil, "", "", fmt.Errorf("loadblock: create shm file: %w", err)
	}
	shmPath := shmFile.Name()

	size := int64(n) * 3 * int64Size
	if err := shmFile.Truncate(size); err != nil {
		shmFile.Close()
		os.Remove(shmPath)
		return nil, nil, "", "", fmt.Errorf("loadblock: truncate shm file: %w", err)
	}

	st, err := mmapFile(shmFile, n)
	if err != nil {
		shmFile.Close()
		os.Remove(shmPath)
		return nil, nil, "", "", err
	}

	lockFile, err := os.CreateTemp("", "dispatchctl-lock-*")
	if err != nil {
		st.Close()
		os.Remove(shmPath)
		return nil, nil, "", "", fmt.Errorf("loadblock: create lock file: %w", err)
	}
	lockPath := lockFile.Name()

	return st, &flockMutex{file: lockFile}, shmPath, lockPath, nil
}

func openShared(shmPath, lockPath string, n int) (storage, locker, error) {
	shmFile, err := os.OpenFile(shmPath, os.O_RDWR, 0o600)
	if err != nil {
		return nil, nil, fmt.Errorf("loadblock: open shm file: %w", err)
	}

	st, err := mmapFile(shmFile, n)
	if err != nil {
		shmFile.Close()
		return nil, nil, err
	}

	lockFile, err := os.OpenFile(lockPath, os.O_RDWR, 0o600)
	if err != nil {
		st.Close()
		return nil, nil, fmt.Errorf("loadblock: open lock file: %w", err)
	}

	return st, &flockMutex{file: lockFile}, nil
}

func mmapFile(f *os.File, n int) (*mmapStorage, error) {
	size := int(n) * 3 * int64Size
	data, err := unix.Mmap(int(f.Fd()), 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("loadblock: mmap: %w", err)
	}
	return &mmapStorage{file: f, data: data, n: n}, nil
}

func (m *mmapStorage) slice(section int) []int64 {
	base := (*int64)(unsafe.Pointer(&m.data[section*m.n*int64Size]))
	return unsafe.Slice(base, m.n)
}

func (m *mmapStorage) currentBS() []int64        { return m.slice(0) }
func (m *mmapStorage) availableKVCache() []int64 { return m.slice(1) }
func (m *mmapStorage) numReqs() []int64          { return m.slice(2) }

func (m *mmapStorage) Close() error {
	err1 := unix.Munmap(m.data)
	err2 := m.file.Close()
	if err1 != nil {
		return err1
	}
	return err2
}

// flockMutex is a robust inter-process mutex realized as an exclusive
// flock(2) on a sibling file descriptor. Every process that opens the same
// lockPath and flocks it serializes against every other.
type flockMutex struct {
	file *os.File
}

func (f *flockMutex) Lock() error {
	return unix.Flock(int(f.file.Fd()), unix.LOCK_EX)
}

func (f *flockMutex) Unlock() error {
	return unix.Flock(int(f.file.Fd()), unix.LOCK_UN)
}

func (f *flockMutex) Close() error {
	return f.file.Close()
}
