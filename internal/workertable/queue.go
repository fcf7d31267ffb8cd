package workertable

import (
	"sync"

	"github.com/tokenfleet/dispatchctl/internal/wire"
)

// Queue is the per-replica ingress queue: single-producer (the dispatcher)
// single-consumer (the delivery goroutine feeding the worker's
// process-crossing transport), unbounded, FIFO. Depth is a cheap,
// non-blocking, O(1) query, as needed by the SHORTEST_QUEUE policy.
type Queue struct {
	mu     sync.Mutex
	cond   *sync.Cond
	items  []wire.Item
	closed bool

	// OnPush, if set, is invoked after every successful Push with the
	// pushed item, outside the queue's lock. Used to wire observability
	// (e.g. internal/ratewatch) without the policies themselves needing to
	// know about it.
	OnPush func(item wire.Item)
}

// NewQueue constructs an empty, open Queue.
func NewQueue() *Queue {
	q := &Queue{}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Push enqueues item. Order of Push calls is preserved by Pop (FIFO).
// Pushing to a closed Queue is a no-op; it must never happen in practice,
// since the dispatcher owns the Queue's lifetime and always closes it last.
func (q *Queue) Push(item wire.Item) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.items = append(q.items, item)
	q.cond.Signal()
	q.mu.Unlock()

	if q.OnPush != nil {
		q.OnPush(item)
	}
}

// Pop blocks until an item is available or the Queue is closed, returning
// ok=false only in the latter case (once drained).
func (q *Queue) Pop() (item wire.Item, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.items) == 0 && !q.closed {
		q.cond.Wait()
	}
	if len(q.items) == 0 {
		return nil, false
	}
	item = q.items[0]
	q.items[0] = nil
	q.items = q.items[1:]
	return item, true
}

// Len reports the current backlog depth: items enqueued but not yet popped
// by the delivery goroutine. Cheap and non-blocking.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Close marks the Queue closed, waking any blocked Pop. Items already
// pending are not discarded: Pop keeps returning them, in order, and reports
// ok=false only once the Queue is empty.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	q.cond.Broadcast()
}
