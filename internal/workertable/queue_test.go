package workertable

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tokenfleet/dispatchctl/internal/wire"
)

func TestQueueFIFOOrder(t *testing.T) {
	q := NewQueue()
	want := []*wire.Request{
		{RID: "a"}, {RID: "b"}, {RID: "c"},
	}
	for _, r := range want {
		q.Push(r)
	}
	assert.Equal(t, 3, q.Len())

	for _, r := range want {
		got, ok := q.Pop()
		require.True(t, ok)
		assert.Equal(t, r.RID, got.RequestID())
	}
	assert.Equal(t, 0, q.Len())
}

func TestQueuePopBlocksUntilPush(t *testing.T) {
	q := NewQueue()
	done := make(chan wire.Item, 1)
	go func() {
		item, ok := q.Pop()
		if ok {
			done <- item
		} else {
			close(done)
		}
	}()

	select {
	case <-done:
		t.Fatal("Pop returned before Push")
	case <-time.After(20 * time.Millisecond):
	}

	q.Push(&wire.Abort{RID: "x"})

	select {
	case item := <-done:
		assert.Equal(t, "x", item.RequestID())
	case <-time.After(time.Second):
		t.Fatal("Pop never returned after Push")
	}
}

func TestQueueCloseUnblocksPop(t *testing.T) {
	q := NewQueue()
	done := make(chan bool, 1)
	go func() {
		_, ok := q.Pop()
		done <- ok
	}()

	time.Sleep(10 * time.Millisecond)
	q.Close()

	select {
	case ok := <-done:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("Pop never unblocked after Close")
	}
}

func TestQueueCloseDrainsPendingFirst(t *testing.T) {
	q := NewQueue()
	q.Push(&wire.Request{RID: "pending"})
	q.Close()

	item, ok := q.Pop()
	require.True(t, ok)
	assert.Equal(t, "pending", item.RequestID())

	_, ok = q.Pop()
	assert.False(t, ok)
}
