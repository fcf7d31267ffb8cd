package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tokenfleet/dispatchctl/internal/wire"
)

func tokenRequests(inputLens ...int) []wire.Item {
	items := make([]wire.Item, len(inputLens))
	for i, n := range inputLens {
		items[i] = &wire.Request{RID: "r", InputIDs: make([]int64, n)}
	}
	return items
}

// TestResourcesAwareEligibleBranch reproduces scenario S3 from spec.md §8:
// N=2, threshold=100, snapshot cb=[0,0] mem=[1000,500] nr=[0,0], three
// requests of input_len 200 each, expected targets [0, 1, 0].
func TestResourcesAwareEligibleBranch(t *testing.T) {
	b := newTestSnapshotBlock(t, []int64{0, 0}, []int64{1000, 500}, []int64{0, 0})
	p := NewResourcesAware(b, 100)
	queues := newQueues(2)

	require.NoError(t, p.Dispatch(tokenRequests(200, 200, 200), queues))

	assert.Equal(t, 2, queues[0].Len())
	assert.Equal(t, 1, queues[1].Len())

	snap, err := b.ReadSnapshot()
	require.NoError(t, err)
	assert.Equal(t, []int64{400, 200}, snap.CurrentBS)
}

// TestResourcesAwareFallback reproduces scenario S4: no replica has headroom
// above threshold, so every request falls back to argmin(num_reqs).
func TestResourcesAwareFallback(t *testing.T) {
	b := newTestSnapshotBlock(t, []int64{0, 0}, []int64{50, 60}, []int64{5, 2})
	p := NewResourcesAware(b, 100)
	queues := newQueues(2)

	require.NoError(t, p.Dispatch(tokenRequests(10, 10, 10), queues))

	assert.Equal(t, 0, queues[0].Len())
	assert.Equal(t, 3, queues[1].Len())
}

func TestResourcesAwareSingleReplica(t *testing.T) {
	b := newTestSnapshotBlock(t, []int64{0}, []int64{1000}, []int64{0})
	p := NewResourcesAware(b, 100)
	queues := newQueues(1)

	require.NoError(t, p.Dispatch(tokenRequests(50, 50), queues))
	assert.Equal(t, 2, queues[0].Len())
}

func TestResourcesAwareEmptyBatchNoOp(t *testing.T) {
	b := newTestSnapshotBlock(t, []int64{0, 0}, []int64{1000, 1000}, []int64{0, 0})
	p := NewResourcesAware(b, 100)
	queues := newQueues(2)

	require.NoError(t, p.Dispatch(nil, queues))

	snap, err := b.ReadSnapshot()
	require.NoError(t, err)
	assert.Equal(t, []int64{0, 0}, snap.CurrentBS)
}

// TestResourcesAwareAbortCarriesNoCost checks that an Abort occupying a
// batch slot (see internal/intake) is routed like a Request but never
// contributes to a replica's projected load.
func TestResourcesAwareAbortCarriesNoCost(t *testing.T) {
	b := newTestSnapshotBlock(t, []int64{0, 0}, []int64{1000, 500}, []int64{0, 0})
	p := NewResourcesAware(b, 100)
	queues := newQueues(2)

	batch := []wire.Item{&wire.Abort{RID: "x"}}
	require.NoError(t, p.Dispatch(batch, queues))

	snap, err := b.ReadSnapshot()
	require.NoError(t, err)
	assert.Equal(t, []int64{0, 0}, snap.CurrentBS)
}
