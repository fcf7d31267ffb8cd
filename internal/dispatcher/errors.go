// Package dispatcher implements the Dispatcher Loop (spec.md §4.E): the
// cooperative loop that drains the intake multiplexer, runs the selected
// policy over each batch, and escalates an unrecoverable error into killing
// every worker and terminating the process group.
package dispatcher

import "fmt"

// LoopException wraps any uncaught error surfaced from a single iteration of
// the dispatch loop (drain, policy dispatch, or a worker's ingress-delivery
// failure). It is always fatal: spec.md §7 requires a full trace be logged,
// every worker SIGKILLed, and the parent process group terminated. Nothing
// is retried.
type LoopException struct {
	Op  string
	Err error
}

func (e *LoopException) Error() string {
	return fmt.Sprintf("dispatcher: loop exception during %s: %v", e.Op, e.Err)
}

func (e *LoopException) Unwrap() error { return e.Err }
