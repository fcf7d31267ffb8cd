package policy

import (
	"golang.org/x/exp/slices"

	"github.com/tokenfleet/dispatchctl/internal/loadblock"
	"github.com/tokenfleet/dispatchctl/internal/wire"
	"github.com/tokenfleet/dispatchctl/internal/workertable"
)

// DefaultThreshold is THRESOLD's default value, retained under its
// misspelled environment variable name for behavioural compatibility.
const DefaultThreshold int64 = 100

type eligibleEntry struct {
	id            int
	remainedToken int64
}

// ResourcesAware avoids admitting a request to a replica that is about to
// thrash its attention cache. It takes one snapshot of the Shared Load
// Block per batch and tracks dispatcher-local projections (remained_token,
// available_mem, num_reqs) across the batch, falling back to
// least-loaded-by-count when no replica has headroom.
type ResourcesAware struct {
	block     *loadblock.Block
	threshold int64
}

// NewResourcesAware constructs a ResourcesAware policy reading snapshots
// from block and using threshold as the headroom cutoff.
func NewResourcesAware(block *loadblock.Block, threshold int64) *ResourcesAware {
	return &ResourcesAware{block: block, threshold: threshold}
}

func (p *ResourcesAware) Name() string { return "RESOURCES_AWARE" }

func (p *ResourcesAware) Dispatch(batch []wire.Item, queues []*workertable.Queue) error {
	if len(batch) == 0 {
		return nil // an empty batch is a no-op
	}

	snap, err := p.block.ReadSnapshot()
	if err != nil {
		return err
	}
	n := len(snap.CurrentBS)

	remainedToken := append([]int64(nil), snap.CurrentBS...)
	availableMem := append([]int64(nil), snap.AvailableKVCache...)
	numReqs := append([]int64(nil), snap.NumReqs...)

	eligible := make([]eligibleEntry, 0, n)
	for i := 0; i < n; i++ {
		if availableMem[i]-snap.CurrentBS[i] > p.threshold {
			eligible = append(eligible, eligibleEntry{id: i, remainedToken: remainedToken[i]})
		}
	}

	for _, item := range batch {
		inputLen := int64(item.Cost())

		var target int
		if len(eligible) > 0 {
			// Sort by remained_token ascending, ties to lowest id; this
			// runs every iteration, so entries beyond the chosen one are
			// reconsidered on the next sort rather than removed outright.
			slices.SortFunc(eligible, func(a, b eligibleEntry) int {
				switch {
				case a.remainedToken != b.remainedToken:
					if a.remainedToken < b.remainedToken {
						return -1
					}
					return 1
				case a.id < b.id:
					return -1
				case a.id > b.id:
					return 1
				default:
					return 0
				}
			})
			target = eligible[0].id
		} else {
			target = argminInt64(numReqs)
		}

		queues[target].Push(item)

		numReqs[target]++
		remainedToken[target] += inputLen
		availableMem[target] -= inputLen

		if len(eligible) > 0 {
			headroom := availableMem[target] - remainedToken[target]
			if headroom <= p.threshold {
				eligible = eligible[1:] // pop the chosen entry only
			} else {
				eligible[0].remainedToken = remainedToken[target]
			}
		}

		if err := p.block.Reserve(target, int(inputLen)); err != nil {
			return err
		}
	}

	return nil
}
