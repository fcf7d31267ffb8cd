package workertable

import (
	"context"
	"fmt"

	"github.com/tokenfleet/dispatchctl/internal/loadblock"
)

// Table is the ordered Worker Handle Table: its length equals N for the
// dispatcher's entire lifetime, and replica_id always equals a handle's
// index.
type Table struct {
	handles []*WorkerHandle
}

// SpawnTableOptions configures Spawn.
type SpawnTableOptions struct {
	N       int // dp_size
	TPSize  int
	Command string
	Args    []string
	Block   *loadblock.Block
}

// Spawn spawns N replica control processes in order, blocking on each one's
// init handshake before starting the next, so the table's ordering
// invariant (replica_id == index) always holds. On the first failure, every
// already-spawned handle is killed and the error is returned — this is a
// fatal InitError/ConfigError condition at start-up, never partially
// recovered.
func Spawn(ctx context.Context, opts SpawnTableOptions) (*Table, error) {
	if opts.N < 1 {
		return nil, fmt.Errorf("workertable: dp_size must be >= 1, got %d", opts.N)
	}
	if opts.TPSize < 1 {
		return nil, fmt.Errorf("workertable: tp_size must be >= 1, got %d", opts.TPSize)
	}

	t := &Table{handles: make([]*WorkerHandle, 0, opts.N)}
	for i := 0; i < opts.N; i++ {
		h, err := SpawnReplica(ctx, SpawnOptions{
			ReplicaID: i,
			TPSize:    opts.TPSize,
			Command:   opts.Command,
			Args:      opts.Args,
			Block:     opts.Block,
			DPSize:    opts.N,
		})
		if err != nil {
			t.KillAll()
			return nil, err
		}
		t.handles = append(t.handles, h)
	}
	return t, nil
}

// Len returns N, the fixed replica count.
func (t *Table) Len() int { return len(t.handles) }

// Handle returns the handle for replica i. Panics if i is out of range,
// since the table's length is fixed for the dispatcher's lifetime and every
// caller is expected to have validated i against Len already.
func (t *Table) Handle(i int) *WorkerHandle { return t.handles[i] }

// All returns the handles in replica_id order.
func (t *Table) All() []*WorkerHandle { return t.handles }

// IngressQueues returns each handle's ingress queue, in replica_id order.
func (t *Table) IngressQueues() []*Queue {
	queues := make([]*Queue, len(t.handles))
	for i, h := range t.handles {
		queues[i] = h.Ingress
	}
	return queues
}

// KillAll sends SIGKILL to every replica's control process, part of the
// shutdown path that also terminates the dispatcher's own process group.
func (t *Table) KillAll() {
	for _, h := range t.handles {
		if h != nil {
			_ = h.Kill()
		}
	}
}

// CloseAll stops every ingress queue and waits for delivery to drain. Used
// during an orderly shutdown, as opposed to the fatal KillAll path.
func (t *Table) CloseAll() {
	for _, h := range t.handles {
		if h != nil {
			h.Close()
		}
	}
}
