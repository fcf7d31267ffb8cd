package dispatcher

import (
	"context"
	"net"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tokenfleet/dispatchctl/internal/intake"
	"github.com/tokenfleet/dispatchctl/internal/loadblock"
	"github.com/tokenfleet/dispatchctl/internal/logging"
	"github.com/tokenfleet/dispatchctl/internal/policy"
	"github.com/tokenfleet/dispatchctl/internal/wire"
	"github.com/tokenfleet/dispatchctl/internal/workertable"
)

func spawnTestTable(t *testing.T, n int) (*workertable.Table, *loadblock.Block) {
	t.Helper()
	t.Setenv("DISPATCHCTL_WANT_HELPER_PROCESS", "1")

	block, err := loadblock.NewSharedLoadBlock(n)
	require.NoError(t, err)
	t.Cleanup(func() { _ = block.Close() })

	table, err := workertable.Spawn(context.Background(), workertable.SpawnTableOptions{
		N:       n,
		TPSize:  1,
		Command: os.Args[0],
		Block:   block,
	})
	require.NoError(t, err)
	t.Cleanup(table.KillAll)

	return table, block
}

func TestRunDispatchesRoundRobinUntilCancelled(t *testing.T) {
	table, _ := spawnTestTable(t, 2)

	mux, err := intake.Listen("127.0.0.1:0", logging.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { mux.Close() })

	conn, err := net.Dial("tcp", mux.Addr().String())
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	require.NoError(t, wire.Encode(conn, &wire.Request{RID: "a"}))
	require.NoError(t, wire.Encode(conn, &wire.Request{RID: "b"}))

	pol := policy.NewRoundRobin(2)
	d := New(mux, table, pol, logging.NewNop(), nil)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	err = d.Run(ctx)
	require.NoError(t, err)
	require.Equal(t, 0, pol.Cursor()) // two requests over N=2: cursor wraps back to 0
}

func TestRunEscalatesFatalDispatchError(t *testing.T) {
	table, _ := spawnTestTable(t, 2)

	mux, err := intake.Listen("127.0.0.1:0", logging.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { mux.Close() })

	conn, err := net.Dial("tcp", mux.Addr().String())
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	require.NoError(t, wire.Encode(conn, &wire.Request{RID: "a"}))

	// a policy configured for the wrong replica count always errors, giving
	// Run a deterministic fatal condition to escalate.
	pol := policy.NewRoundRobin(99)
	var fatal *LoopException
	d := New(mux, table, pol, logging.NewNop(), nil)
	d.onFatal = func(e *LoopException) { fatal = e }

	err = d.Run(context.Background())
	require.Error(t, err)
	require.NotNil(t, fatal)
}

