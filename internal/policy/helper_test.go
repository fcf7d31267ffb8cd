package policy

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tokenfleet/dispatchctl/internal/loadblock"
	"github.com/tokenfleet/dispatchctl/internal/workertable"
)

// newTestSnapshotBlock builds a real Shared Load Block seeded with the given
// per-replica current_bs, available_kv_cache, and num_reqs arrays, for
// policies that read a snapshot rather than a bare mock.
func newTestSnapshotBlock(t *testing.T, currentBS, availableKV, numReqs []int64) *loadblock.Block {
	t.Helper()
	n := len(currentBS)
	b, err := loadblock.NewSharedLoadBlock(n)
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })

	for i := 0; i < n; i++ {
		require.NoError(t, b.SetInitial(i, availableKV[i], numReqs[i]))
		if currentBS[i] > 0 {
			require.NoError(t, b.Reserve(i, int(currentBS[i])))
		}
	}
	return b
}

func newQueues(n int) []*workertable.Queue {
	qs := make([]*workertable.Queue, n)
	for i := range qs {
		qs[i] = workertable.NewQueue()
	}
	return qs
}

// popIDs pops exactly n already-enqueued items off q and returns their
// request IDs in FIFO order. Safe only when the caller knows q already
// holds at least n items (true for every policy test here, which dispatches
// synchronously before draining).
func popIDs(t *testing.T, q *workertable.Queue, n int) []string {
	t.Helper()
	ids := make([]string, 0, n)
	for i := 0; i < n; i++ {
		item, ok := q.Pop()
		require.True(t, ok)
		ids = append(ids, item.RequestID())
	}
	return ids
}
