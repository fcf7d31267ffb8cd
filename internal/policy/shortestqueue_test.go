package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tokenfleet/dispatchctl/internal/wire"
)

func TestShortestQueuePrefersLeastLoadedThenLowestIndex(t *testing.T) {
	p := NewShortestQueue()
	queues := newQueues(3)

	// seed initial depths [4, 1, 2]
	for i := 0; i < 4; i++ {
		queues[0].Push(&dummyItem{})
	}
	queues[1].Push(&dummyItem{})
	for i := 0; i < 2; i++ {
		queues[2].Push(&dummyItem{})
	}

	require.NoError(t, p.Dispatch(requests("r0", "r1", "r2", "r3"), queues))

	// depths after seeding: [4,1,2]. dispatch r0 -> min is index1(1) => target1, depths [4,2,2]
	// r1 -> min among [4,2,2] lowest index tie => index1, depths [4,3,2]
	// r2 -> min is index2(2) => target2, depths [4,3,3]
	// r3 -> min tie between index1(3) and index2(3), lowest index wins => index1, depths [4,4,3]
	popIDs(t, queues[0], 4) // drain seed items, discard
	popIDs(t, queues[1], 1)
	popIDs(t, queues[2], 2)
	got1 := popIDs(t, queues[1], 3)
	got2 := popIDs(t, queues[2], 1)

	assert.Equal(t, []string{"r0", "r1", "r3"}, got1)
	assert.Equal(t, []string{"r2"}, got2)
}

func TestShortestQueueEmptyBatchNoOp(t *testing.T) {
	p := NewShortestQueue()
	queues := newQueues(2)
	require.NoError(t, p.Dispatch(nil, queues))
	assert.Equal(t, 0, queues[0].Len())
	assert.Equal(t, 0, queues[1].Len())
}

type dummyItem struct{}

func (dummyItem) RequestID() string { return "seed" }
func (dummyItem) Cost() int         { return 0 }
func (dummyItem) Kind() wire.Kind   { return wire.KindRequest }
