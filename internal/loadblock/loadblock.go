// Package loadblock implements the Shared Load Block: a fixed-length,
// process-shared, mutex-guarded set of per-replica counters. It is written
// by the dispatcher (admission reservation) and by replica worker processes
// (completion/admission events); every write takes the same mutex.
package loadblock

import (
	"errors"
	"fmt"
)

// ErrNegativeCounter indicates a worker or dispatcher accounting bug: a
// counter would have gone negative. This is always fatal, never silently
// clamped.
var ErrNegativeCounter = errors.New("loadblock: counter would go negative")

// ErrReplicaOutOfRange is returned when an index outside [0, N) is used.
var ErrReplicaOutOfRange = errors.New("loadblock: replica index out of range")

// Snapshot is a consistent, independent copy of the three counter arrays,
// taken under the block's mutex.
type Snapshot struct {
	CurrentBS        []int64 // current_bs[i]: tokens queued/in-flight at replica i
	AvailableKVCache []int64 // available_kv_cache[i]: free attention-cache slots at replica i
	NumReqs          []int64 // num_reqs[i]: in-flight request count at replica i
}

// locker abstracts a robust inter-process mutex. On linux/darwin it is
// backed by flock(2) on a sibling file; on windows (where
// that primitive isn't available without cgo) it falls back to an in-process
// sync.Mutex (see loadblock_windows.go).
type locker interface {
	Lock() error
	Unlock() error
	Close() error
}

// storage abstracts the shared counter region: a memory-mapped file on
// linux/darwin, a plain slice in-process on windows.
type storage interface {
	currentBS() []int64
	availableKVCache() []int64
	numReqs() []int64
	Close() error
}

// Block is the Shared Load Block. Allocated once at start-up by the
// dispatcher, shared by handle/inheritance with every worker, destroyed when
// the dispatcher exits. Zero value is not usable; construct via
// NewSharedLoadBlock or OpenSharedLoadBlock.
type Block struct {
	n    int
	lock locker
	st   storage

	// ShmPath and LockPath are the filesystem paths backing the shared
	// region and its mutex, respectively. They are empty on platforms using
	// the in-process fallback. Pass these to a spawned replica process (e.g.
	// via DISPATCHER_SHM_PATH / DISPATCHER_SHM_LOCK_PATH environment
	// variables) so it can OpenSharedLoadBlock the same region.
	ShmPath  string
	LockPath string
}

// NewSharedLoadBlock allocates a fresh Shared Load Block of length n,
// backed by a newly created shared-memory region. n must be >= 1.
func NewSharedLoadBlock(n int) (*Block, error) {
	if n < 1 {
		return nil, fmt.Errorf("loadblock: n must be >= 1, got %d", n)
	}
	st, lk, shmPath, lockPath, err := newShared(n)
	if err != nil {
		return nil, err
	}
	return &Block{n: n, lock: lk, st: st, ShmPath: shmPath, LockPath: lockPath}, nil
}

// OpenSharedLoadBlock attaches to an existing Shared Load Block created by
// NewSharedLoadBlock elsewhere (typically: in the dispatcher's parent
// process), identified by shmPath/lockPath. Used by replica worker processes
// to address the same counters by index.
func OpenSharedLoadBlock(shmPath, lockPath string, n int) (*Block, error) {
	if n < 1 {
		return nil, fmt.Errorf("loadblock: n must be >= 1, got %d", n)
	}
	st, lk, err := openShared(shmPath, lockPath, n)
	if err != nil {
		return nil, err
	}
	return &Block{n: n, lock: lk, st: st, ShmPath: shmPath, LockPath: lockPath}, nil
}

// N returns the (fixed, never-resized) number of replicas.
func (b *Block) N() int { return b.n }

// ReadSnapshot acquires the mutex, copies all three arrays, releases the
// mutex, and returns the copy.
func (b *Block) ReadSnapshot() (Snapshot, error) {
	if err := b.lock.Lock(); err != nil {
		return Snapshot{}, err
	}
	defer b.lock.Unlock()

	snap := Snapshot{
		CurrentBS:        append([]int64(nil), b.st.currentBS()...),
		AvailableKVCache: append([]int64(nil), b.st.availableKVCache()...),
		NumReqs:          append([]int64(nil), b.st.numReqs()...),
	}
	return snap, nil
}

// Reserve performs the dispatcher's admission-side mutation: under the
// mutex, current_bs[i] += inputLen. inputLen must be >= 0.
func (b *Block) Reserve(i int, inputLen int) error {
	if i < 0 || i >= b.n {
		return fmt.Errorf("%w: %d", ErrReplicaOutOfRange, i)
	}
	if inputLen < 0 {
		return fmt.Errorf("loadblock: negative inputLen %d", inputLen)
	}
	if err := b.lock.Lock(); err != nil {
		return err
	}
	defer b.lock.Unlock()

	b.st.currentBS()[i] += int64(inputLen)
	return nil
}

// Release is invoked by workers upon batch completion: current_bs[i] and
// the other two arrays are adjusted by the given deltas (typically
// negative for current_bs as tokens complete, positive/negative for
// available_kv_cache and num_reqs as requests finish). Its call site lives
// in the worker, not the dispatcher. Returns ErrNegativeCounter, without
// applying any partial mutation, if the result would make any field
// negative.
func (b *Block) Release(i int, deltaCurrentBS, deltaAvailableKV, deltaNumReqs int64) error {
	if i < 0 || i >= b.n {
		return fmt.Errorf("%w: %d", ErrReplicaOutOfRange, i)
	}
	if err := b.lock.Lock(); err != nil {
		return err
	}
	defer b.lock.Unlock()

	cb := b.st.currentBS()
	kv := b.st.availableKVCache()
	nr := b.st.numReqs()

	nextCB := cb[i] + deltaCurrentBS
	nextKV := kv[i] + deltaAvailableKV
	nextNR := nr[i] + deltaNumReqs
	if nextCB < 0 || nextKV < 0 || nextNR < 0 {
		return ErrNegativeCounter
	}

	cb[i] = nextCB
	kv[i] = nextKV
	nr[i] = nextNR
	return nil
}

// SetInitial seeds available_kv_cache[i]/num_reqs[i] at start-up, prior to
// any worker or dispatcher admission activity. Intended for test setup and
// for the dispatcher's own bring-up, not for steady-state use.
func (b *Block) SetInitial(i int, availableKV, numReqs int64) error {
	if i < 0 || i >= b.n {
		return fmt.Errorf("%w: %d", ErrReplicaOutOfRange, i)
	}
	if err := b.lock.Lock(); err != nil {
		return err
	}
	defer b.lock.Unlock()
	b.st.availableKVCache()[i] = availableKV
	b.st.numReqs()[i] = numReqs
	return nil
}

// Close releases the backing resources (mmap region, lock file handle, or
// in-process no-op). Safe to call once per Block obtained from either
// NewSharedLoadBlock or OpenSharedLoadBlock.
func (b *Block) Close() error {
	err1 := b.st.Close()
	err2 := b.lock.Close()
	if err1 != nil {
		return err1
	}
	return err2
}
