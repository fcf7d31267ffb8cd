// Package policy implements the Policy Selector and the three dispatch
// strategies: ROUND_ROBIN, SHORTEST_QUEUE, and RESOURCES_AWARE. All three
// share the signature (batch, worker ingress queues) -> error, resolved once
// at start-up and never hot-swapped.
package policy

import (
	"errors"
	"fmt"
	"strings"

	"github.com/tokenfleet/dispatchctl/internal/loadblock"
	"github.com/tokenfleet/dispatchctl/internal/wire"
	"github.com/tokenfleet/dispatchctl/internal/workertable"
)

// ErrUnknownPolicy is a ConfigError: an identifier outside the closed set
// fails start-up.
var ErrUnknownPolicy = errors.New("policy: unknown load_balance_method")

// Policy enqueues every item in batch into exactly one worker's ingress
// queue, in batch order.
type Policy interface {
	Name() string
	Dispatch(batch []wire.Item, queues []*workertable.Queue) error
}

// Select maps a case-insensitive load_balance_method identifier to a bound
// Policy. n is the fixed replica count (dp_size); threshold and block are
// only consulted by RESOURCES_AWARE.
func Select(name string, n int, block *loadblock.Block, threshold int64) (Policy, error) {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "ROUND_ROBIN":
		return NewRoundRobin(n), nil
	case "SHORTEST_QUEUE":
		return NewShortestQueue(), nil
	case "RESOURCES_AWARE":
		if block == nil {
			return nil, fmt.Errorf("policy: resources_aware requires a shared load block")
		}
		return NewResourcesAware(block, threshold), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownPolicy, name)
	}
}

func argminInt64(values []int64) int {
	best := 0
	for i := 1; i < len(values); i++ {
		if values[i] < values[best] {
			best = i
		}
	}
	return best
}
