// Package workertable implements the Worker Handle Table: spawning replica
// control processes, the per-replica init handshake, and the ingress queues
// that feed each replica.
package workertable

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"time"

	"github.com/tokenfleet/dispatchctl/internal/loadblock"
	"github.com/tokenfleet/dispatchctl/internal/wire"
)

// InitError reports that a spawned replica failed its init handshake:
// anything other than the literal "init ok" sentinel.
type InitError struct {
	ReplicaID int
	Got       string
}

func (e *InitError) Error() string {
	return fmt.Sprintf("workertable: replica %d failed init handshake: %q", e.ReplicaID, e.Got)
}

const initOKSentinel = "init ok"

// SpawnOptions configures SpawnReplica. Command/Args describe how to start a
// replica control process; the spawned process is expected to read
// DISPATCHER_* environment variables (replica id, accelerator range, shared
// load block paths) and speak the wire protocol on stdin, writing the init
// sentinel (or an error) as its first line of stdout.
type SpawnOptions struct {
	ReplicaID   int
	TPSize      int
	Command     string
	Args        []string
	Block       *loadblock.Block
	DPSize      int
	InitTimeout time.Duration // defaults to 10s if zero
}

// WorkerHandle is {replica_id -> (control process, ingress queue)}. It is
// appended to the Worker Handle Table only after a successful init
// handshake, preserving the invariant replica_id == index.
type WorkerHandle struct {
	ReplicaID     int
	AcceleratorLo int // inclusive
	AcceleratorHi int // exclusive

	Ingress *Queue

	cmd      *exec.Cmd
	stdin    io.WriteCloser
	doneCh   chan struct{}
	sendErrs chan error
}

// SpawnReplica spawns one replica control process, performs the init
// handshake, and on success returns a ready WorkerHandle whose Ingress
// queue is already being drained into the child's stdin. On any failure the
// child process (if started) is killed and a non-nil error is returned
// (wrapping an *InitError for a failed handshake); the caller should treat
// this as fatal start-up failure.
func SpawnReplica(ctx context.Context, opts SpawnOptions) (*WorkerHandle, error) {
	lo := opts.ReplicaID * opts.TPSize
	hi := lo + opts.TPSize

	cmd := exec.CommandContext(ctx, opts.Command, opts.Args...)
	cmd.Env = append(os.Environ(),
		fmt.Sprintf("DISPATCHER_REPLICA_ID=%d", opts.ReplicaID),
		fmt.Sprintf("DISPATCHER_DP_SIZE=%d", opts.DPSize),
		fmt.Sprintf("DISPATCHER_ACCEL_LO=%d", lo),
		fmt.Sprintf("DISPATCHER_ACCEL_HI=%d", hi),
		fmt.Sprintf("DISPATCHER_SHM_PATH=%s", opts.Block.ShmPath),
		fmt.Sprintf("DISPATCHER_SHM_LOCK_PATH=%s", opts.Block.LockPath),
	)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("workertable: stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("workertable: stdout pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("workertable: start replica %d: %w", opts.ReplicaID, err)
	}

	initTimeout := opts.InitTimeout
	if initTimeout <= 0 {
		initTimeout = 10 * time.Second
	}

	line, err := readInitLine(stdout, initTimeout)
	if err != nil {
		_ = cmd.Process.Kill()
		_ = cmd.Wait()
		return nil, fmt.Errorf("workertable: replica %d init handshake: %w", opts.ReplicaID, err)
	}
	if line != initOKSentinel {
		_ = cmd.Process.Kill()
		_ = cmd.Wait()
		return nil, &InitError{ReplicaID: opts.ReplicaID, Got: line}
	}

	h := &WorkerHandle{
		ReplicaID:     opts.ReplicaID,
		AcceleratorLo: lo,
		AcceleratorHi: hi,
		Ingress:       NewQueue(),
		cmd:           cmd,
		stdin:         stdin,
		doneCh:        make(chan struct{}),
		sendErrs:      make(chan error, 1),
	}
	go h.deliverLoop()

	return h, nil
}

func readInitLine(r io.Reader, timeout time.Duration) (string, error) {
	type result struct {
		line string
		err  error
	}
	resCh := make(chan result, 1)
	go func() {
		scanner := bufio.NewScanner(r)
		if scanner.Scan() {
			resCh <- result{line: scanner.Text()}
			return
		}
		if err := scanner.Err(); err != nil {
			resCh <- result{err: err}
			return
		}
		resCh <- result{err: io.EOF}
	}()

	select {
	case res := <-resCh:
		return res.line, res.err
	case <-time.After(timeout):
		return "", fmt.Errorf("timed out waiting for init sentinel")
	}
}

// deliverLoop pops items off Ingress, in order, and writes them down the
// replica's stdin — the process-crossing leg of the ingress queue's SPSC
// contract. Enqueue delivery is assumed infallible within the dispatcher's
// lifetime; a write failure is fatal and is surfaced via SendErrs for the
// dispatcher loop to observe and escalate.
func (h *WorkerHandle) deliverLoop() {
	defer close(h.doneCh)
	for {
		item, ok := h.Ingress.Pop()
		if !ok {
			return
		}
		if err := wire.Encode(h.stdin, item); err != nil {
			select {
			case h.sendErrs <- fmt.Errorf("workertable: replica %d: %w", h.ReplicaID, err):
			default:
			}
			return
		}
	}
}

// SendErrs reports fatal ingress-delivery failures (see deliverLoop).
func (h *WorkerHandle) SendErrs() <-chan error { return h.sendErrs }

// Kill sends SIGKILL to the replica's control process.
func (h *WorkerHandle) Kill() error {
	if h.cmd.Process == nil {
		return nil
	}
	return h.cmd.Process.Kill()
}

// Close stops accepting new ingress items and waits for the delivery loop to
// drain.
func (h *WorkerHandle) Close() {
	h.Ingress.Close()
	<-h.doneCh
	_ = h.stdin.Close()
}

// Wait blocks until the replica's control process exits.
func (h *WorkerHandle) Wait() error {
	return h.cmd.Wait()
}
