// Package intake implements the Intake Multiplexer: a non-blocking drain of
// the intake socket into a dispatchable batch, with FlushCache broadcast
// and Abort replacement/broadcast handled inline.
package intake

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"

	"github.com/tokenfleet/dispatchctl/internal/logging"
	"github.com/tokenfleet/dispatchctl/internal/wire"
	"github.com/tokenfleet/dispatchctl/internal/workertable"
)

// inboxSize bounds how many decoded-but-undrained messages can sit ahead of
// the dispatcher loop before a reader goroutine blocks on send. It does not
// bound the socket itself, which the drain must never block on.
const inboxSize = 4096

// Stats tracks the testable fan-out properties: every FlushCache is
// broadcast exactly once per replica, and every Abort is either a
// same-batch in-place replacement or a broadcast.
type Stats struct {
	FlushBroadcast atomic.Int64
	AbortBroadcast atomic.Int64
	AbortReplaced  atomic.Int64
	ProtocolErrors atomic.Int64
}

// Multiplexer accepts connections on a TCP listener, decodes the wire
// protocol from each, and exposes a non-blocking Drain.
type Multiplexer struct {
	listener  net.Listener
	inbox     chan wire.Item
	logger    *logging.Logger
	done      chan struct{}
	closeOnce sync.Once

	Stats Stats
}

// Listen binds the TCP address addr, given as host:port (conventionally
// 127.0.0.1:<controller_port>), and starts accepting connections in the
// background.
func Listen(addr string, logger *logging.Logger) (*Multiplexer, error) {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("intake: listen %s: %w", addr, err)
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	m := &Multiplexer{
		listener: l,
		inbox:    make(chan wire.Item, inboxSize),
		logger:   logger,
		done:     make(chan struct{}),
	}
	go m.acceptLoop()
	return m, nil
}

// Addr returns the bound address, useful when the configured port is 0
// (ephemeral, primarily for tests).
func (m *Multiplexer) Addr() net.Addr { return m.listener.Addr() }

func (m *Multiplexer) acceptLoop() {
	for {
		conn, err := m.listener.Accept()
		if err != nil {
			return // listener closed
		}
		go m.readLoop(conn)
	}
}

func (m *Multiplexer) readLoop(conn net.Conn) {
	defer conn.Close()
	r := bufio.NewReader(conn)
	for {
		item, err := wire.Decode(r)
		if err != nil {
			if errors.Is(err, wire.ErrUnknownKind) {
				// a ProtocolError: log and discard, never fatal, keep
				// reading further frames on this connection.
				m.Stats.ProtocolErrors.Add(1)
				m.logger.Err().Err(err).Log("intake: unknown message kind, discarding")
				continue
			}
			if !errors.Is(err, io.EOF) {
				m.logger.Warning().Err(err).Log("intake: connection read error, closing")
			}
			return
		}

		select {
		case m.inbox <- item:
		case <-m.done:
			return
		}
	}
}

// Drain repeatedly polls the inbox in non-blocking mode until empty,
// appending dispatchable Requests to the
// returned batch, forwarding FlushCache to every replica immediately, and
// resolving Abort either as an in-place batch replacement or a broadcast.
// It never blocks when the inbox is empty.
func (m *Multiplexer) Drain(queues []*workertable.Queue) []wire.Item {
	var batch []wire.Item
	for {
		select {
		case item, ok := <-m.inbox:
			if !ok {
				return batch
			}
			switch v := item.(type) {
			case *wire.Request:
				batch = append(batch, v)

			case wire.FlushCache:
				m.broadcastAll(queues, v)
				m.Stats.FlushBroadcast.Add(1)

			case *wire.Abort:
				if replaced := replaceInBatch(batch, v); replaced {
					m.Stats.AbortReplaced.Add(1)
				} else {
					m.broadcastAll(queues, v)
					m.Stats.AbortBroadcast.Add(1)
				}

			default:
				m.Stats.ProtocolErrors.Add(1)
				m.logger.Err().Log("intake: decoded item of unrecognized Go type, discarding")
			}

		default:
			return batch
		}
	}
}

// replaceInBatch scans batch for a pending *wire.Request with the same rid
// as abort and, if found, replaces that slot in place: the Abort now
// occupies the request's dispatch slot and will be routed by the same
// policy decision.
func replaceInBatch(batch []wire.Item, abort *wire.Abort) bool {
	for i, item := range batch {
		if req, ok := item.(*wire.Request); ok && req.RID == abort.RID {
			batch[i] = abort
			return true
		}
	}
	return false
}

func (m *Multiplexer) broadcastAll(queues []*workertable.Queue, item wire.Item) {
	for _, q := range queues {
		q.Push(item)
	}
}

// Close stops accepting new connections. In-flight reads are abandoned.
func (m *Multiplexer) Close() error {
	m.closeOnce.Do(func() { close(m.done) })
	return m.listener.Close()
}
