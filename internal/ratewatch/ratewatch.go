// Package ratewatch gives the dispatcher a live, per-replica admission-rate
// signal, built on the sliding-window primitive in
// github.com/joeycumines/go-catrate. It never changes a routing decision —
// spec.md's Non-goals forbid fairness/QoS logic — it only logs when a
// replica's admission rate crosses a configurable soft ceiling, so an
// operator has something to grep for without touching policy code.
package ratewatch

import (
	"time"

	"github.com/joeycumines/go-catrate"

	"github.com/tokenfleet/dispatchctl/internal/logging"
)

// DefaultRates mirrors the two windows named in SPEC_FULL.md's domain stack
// section: a short 1s burst ceiling and a longer 10s sustained ceiling.
func DefaultRates(burstPerSecond, sustainedPer10Seconds int) map[time.Duration]int {
	return map[time.Duration]int{
		time.Second:     burstPerSecond,
		10 * time.Second: sustainedPer10Seconds,
	}
}

// Watcher tracks each replica's admission rate over the configured windows
// and logs at Notice when a replica crosses its ceiling. It does not gate,
// delay, or reject admissions; Observe is always called after the dispatch
// decision has already been made.
type Watcher struct {
	limiter *catrate.Limiter
	logger  *logging.Logger
}

// New constructs a Watcher. rates must satisfy catrate.NewLimiter's
// monotonic-windows requirement (the count for a shorter window must be
// strictly less than the count for any longer window); see DefaultRates for
// the shape this repository uses.
func New(rates map[time.Duration]int, logger *logging.Logger) *Watcher {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Watcher{limiter: catrate.NewLimiter(rates), logger: logger}
}

// Observe registers one admission event for replicaID and logs a Notice if
// it crosses the configured soft ceiling. Safe to call from the dispatcher's
// single loop goroutine after every Policy.Dispatch enqueue.
func (w *Watcher) Observe(replicaID int, inputLen int) {
	_, ok := w.limiter.Allow(replicaID)
	if !ok {
		w.logger.Notice().
			Int("replica_id", replicaID).
			Int("input_len", inputLen).
			Log("ratewatch: replica admission rate over soft ceiling")
	}
}
