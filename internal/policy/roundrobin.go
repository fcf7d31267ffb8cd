package policy

import (
	"fmt"

	"github.com/tokenfleet/dispatchctl/internal/wire"
	"github.com/tokenfleet/dispatchctl/internal/workertable"
)

// RoundRobin assigns target = cursor, then advances cursor = (cursor + 1)
// mod N. It never reads the Shared Load Block. The cursor is owned
// exclusively by the dispatcher.
type RoundRobin struct {
	n      int
	cursor int
}

// NewRoundRobin constructs a RoundRobin policy for n replicas, cursor
// starting at 0.
func NewRoundRobin(n int) *RoundRobin {
	return &RoundRobin{n: n}
}

func (p *RoundRobin) Name() string { return "ROUND_ROBIN" }

// Cursor reports the current cursor value, in [0, N). After dispatching a
// batch of size k, the cursor advances by k mod N.
func (p *RoundRobin) Cursor() int { return p.cursor }

func (p *RoundRobin) Dispatch(batch []wire.Item, queues []*workertable.Queue) error {
	if len(queues) != p.n {
		return fmt.Errorf("policy: round_robin configured for %d replicas, got %d queues", p.n, len(queues))
	}
	for _, item := range batch {
		queues[p.cursor].Push(item)
		p.cursor = (p.cursor + 1) % p.n
	}
	return nil
}
