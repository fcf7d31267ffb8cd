// Command replicaworker is a minimal stand-in for the out-of-scope replica
// worker process named in spec.md §1 as an external collaborator. It exists
// only so the Worker Handle Table's spawn/init-handshake/ingress-delivery
// path (spec.md §4.B) has a real child process to drive end-to-end: it
// performs the init handshake, reads ingress messages from stdin, and
// simulates completion of every Request by releasing its tokens back onto
// the Shared Load Block. It performs no inference whatsoever.
package main

import (
	"bufio"
	"fmt"
	"os"
	"strconv"

	"github.com/tokenfleet/dispatchctl/internal/loadblock"
	"github.com/tokenfleet/dispatchctl/internal/wire"
)

func main() {
	if err := run(); err != nil {
		fmt.Println("error: " + err.Error())
		os.Exit(1)
	}
}

func run() error {
	replicaID, err := envInt("DISPATCHER_REPLICA_ID")
	if err != nil {
		return err
	}
	dpSize, err := envInt("DISPATCHER_DP_SIZE")
	if err != nil {
		return err
	}

	shmPath := os.Getenv("DISPATCHER_SHM_PATH")
	lockPath := os.Getenv("DISPATCHER_SHM_LOCK_PATH")

	var block *loadblock.Block
	if shmPath != "" {
		block, err = loadblock.OpenSharedLoadBlock(shmPath, lockPath, dpSize)
		if err != nil {
			return fmt.Errorf("open shared load block: %w", err)
		}
		defer block.Close()
	}

	// The init handshake: a single line, either the literal sentinel or an
	// error description, per spec.md §4.B/§6.
	fmt.Println("init ok")

	r := bufio.NewReader(os.Stdin)
	for {
		item, err := wire.Decode(r)
		if err != nil {
			return nil // stdin closed: the dispatcher is shutting this replica down
		}

		switch v := item.(type) {
		case *wire.Request:
			if block != nil {
				inputLen := int64(v.Cost())
				// simulate immediate completion: release the tokens this
				// request reserved; num_reqs and available_kv_cache are left
				// unchanged. A rejected release (ErrNegativeCounter, e.g.
				// when nothing was reserved for this request) is ignored.
				// A real replica worker would do this asynchronously, after
				// actually running inference.
				_ = block.Release(replicaID, -inputLen, 0, 0)
			}
		case wire.FlushCache:
			// no cache state modeled in this stand-in; nothing to flush.
		case *wire.Abort:
			// no pending-request bookkeeping modeled in this stand-in.
		}
	}
}

func envInt(name string) (int, error) {
	v := os.Getenv(name)
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid integer %q", name, v)
	}
	return n, nil
}
