package policy

import (
	"github.com/tokenfleet/dispatchctl/internal/wire"
	"github.com/tokenfleet/dispatchctl/internal/workertable"
)

// ShortestQueue routes each request to the replica with the minimum current
// ingress queue depth, ties broken by lowest index. It never reads the
// Shared Load Block; queue-depth interrogation is the cheap, non-blocking
// Queue.Len.
type ShortestQueue struct{}

// NewShortestQueue constructs a ShortestQueue policy.
func NewShortestQueue() *ShortestQueue { return &ShortestQueue{} }

func (p *ShortestQueue) Name() string { return "SHORTEST_QUEUE" }

func (p *ShortestQueue) Dispatch(batch []wire.Item, queues []*workertable.Queue) error {
	for _, item := range batch {
		target := 0
		min := queues[0].Len()
		for i := 1; i < len(queues); i++ {
			if d := queues[i].Len(); d < min {
				min = d
				target = i
			}
		}
		queues[target].Push(item)
	}
	return nil
}
