package dispatcher

import (
	"context"
	"runtime/debug"
	"time"

	"github.com/tokenfleet/dispatchctl/internal/intake"
	"github.com/tokenfleet/dispatchctl/internal/logging"
	"github.com/tokenfleet/dispatchctl/internal/policy"
	"github.com/tokenfleet/dispatchctl/internal/ratewatch"
	"github.com/tokenfleet/dispatchctl/internal/wire"
	"github.com/tokenfleet/dispatchctl/internal/workertable"
)

// idleYield is the brief pause taken when a drain returns an empty batch, so
// the loop does not spin a CPU core on an idle socket. spec.md §4.E leaves
// the exact duration implementation-defined.
const idleYield = 2 * time.Millisecond

// Dispatcher runs the loop described in spec.md §4.E: repeated drain, policy
// dispatch, forward. It is a single logical thread of control: there is no
// parallelism within it, matching spec.md §5's scheduling model. The only
// suspension points are acquiring the Shared Load Block mutex (inside
// Policy.Dispatch for RESOURCES_AWARE), enqueuing to a worker ingress queue,
// and this idle yield.
type Dispatcher struct {
	Multiplexer *intake.Multiplexer
	Table       *workertable.Table
	Policy      policy.Policy
	Logger      *logging.Logger
	RateWatch   *ratewatch.Watcher // optional; nil disables admission-rate observability

	onFatal func(*LoopException) // overridable for tests; defaults to killAndTerminate
}

// New constructs a Dispatcher bound to its collaborators. policy is resolved
// once at start-up (per spec.md §4.D) and never hot-swapped. If rw is
// non-nil, every replica's ingress queue is instrumented (via Queue.OnPush)
// to feed it admission events, so ratewatch observes the real per-item
// target regardless of which policy chose it.
func New(mux *intake.Multiplexer, table *workertable.Table, pol policy.Policy, logger *logging.Logger, rw *ratewatch.Watcher) *Dispatcher {
	if logger == nil {
		logger = logging.NewNop()
	}
	if rw != nil {
		for _, h := range table.All() {
			replicaID := h.ReplicaID
			h.Ingress.OnPush = func(item wire.Item) {
				rw.Observe(replicaID, item.Cost())
			}
		}
	}
	return &Dispatcher{Multiplexer: mux, Table: table, Policy: pol, Logger: logger, RateWatch: rw}
}

// Run executes the dispatch loop until ctx is cancelled or a LoopException
// occurs. A LoopException is always fatal: every worker is SIGKILLed and the
// process group is terminated. By default that termination also ends the
// dispatcher's own process (SIGKILL to its process group on linux/darwin,
// os.Exit on windows), so Run returns the *LoopException to its caller only
// when onFatal is overridden, as tests do to observe the escalation without
// killing the test binary.
func (d *Dispatcher) Run(ctx context.Context) error {
	queues := d.Table.IngressQueues()

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		batch, err := d.drainSafely(queues)
		if err != nil {
			return d.escalate("drain", err)
		}

		if len(batch) == 0 {
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(idleYield):
			}
			continue
		}

		if err := d.dispatchSafely(batch, queues); err != nil {
			return d.escalate("policy_dispatch", err)
		}

		if err := d.checkWorkerErrors(); err != nil {
			return d.escalate("ingress_delivery", err)
		}
	}
}

// drainSafely recovers a panic out of the multiplexer into a LoopException
// path, matching spec.md §7's "any uncaught error" framing for §4.E step 1.
func (d *Dispatcher) drainSafely(queues []*workertable.Queue) (batch []wire.Item, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = panicError(r)
		}
	}()
	return d.Multiplexer.Drain(queues), nil
}

// dispatchSafely recovers a panic out of the selected policy into a
// LoopException path, matching spec.md §4.E step 3.
func (d *Dispatcher) dispatchSafely(batch []wire.Item, queues []*workertable.Queue) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = panicError(r)
		}
	}()
	return d.Policy.Dispatch(batch, queues)
}

func (d *Dispatcher) checkWorkerErrors() error {
	for _, h := range d.Table.All() {
		select {
		case err := <-h.SendErrs():
			return err
		default:
		}
	}
	return nil
}

func (d *Dispatcher) escalate(op string, err error) error {
	loopErr := &LoopException{Op: op, Err: err}
	d.Logger.Crit().
		Str("op", op).
		Err(err).
		Str("stack", string(debug.Stack())).
		Log("dispatcher: unrecoverable loop exception, killing all workers")

	if d.onFatal != nil {
		d.onFatal(loopErr)
	} else {
		d.killAndTerminate()
	}
	return loopErr
}

func (d *Dispatcher) killAndTerminate() {
	d.Table.KillAll()
	terminateProcessGroup()
}

func panicError(r any) error {
	if err, ok := r.(error); ok {
		return &recoveredPanic{value: err}
	}
	return &recoveredPanic{value: r}
}

// recoveredPanic wraps a recovered panic value as an error, so drainSafely
// and dispatchSafely can feed it through the same LoopException path as an
// ordinary returned error.
type recoveredPanic struct{ value any }

func (p *recoveredPanic) Error() string {
	if err, ok := p.value.(error); ok {
		return "dispatcher: recovered panic: " + err.Error()
	}
	if s, ok := p.value.(string); ok {
		return "dispatcher: recovered panic: " + s
	}
	return "dispatcher: recovered panic"
}

func (p *recoveredPanic) Unwrap() error {
	if err, ok := p.value.(error); ok {
		return err
	}
	return nil
}
