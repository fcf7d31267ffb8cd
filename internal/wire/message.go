// Package wire defines the messages exchanged between tokenizer front-ends,
// the dispatcher, and replica worker processes, along with the framing used
// to carry them over a socket.
package wire

import "fmt"

// Kind discriminates the three message shapes carried on the intake socket
// and on each replica's ingress queue.
type Kind byte

const (
	// KindRequest tags a dispatchable, already-tokenized generation request.
	KindRequest Kind = iota + 1
	// KindFlushCache tags a broadcast cache-flush control message.
	KindFlushCache
	// KindAbort tags a cancellation for a previously submitted request.
	KindAbort
)

func (k Kind) String() string {
	switch k {
	case KindRequest:
		return "request"
	case KindFlushCache:
		return "flush_cache"
	case KindAbort:
		return "abort"
	default:
		return fmt.Sprintf("unknown(%d)", byte(k))
	}
}

// Item is the common shape the dispatcher's policies route: a dispatchable
// Request or an Abort that has taken a pending request's slot in the batch.
// Abort carries no token cost.
type Item interface {
	// RequestID returns the rid correlating this item to its origin request.
	RequestID() string
	// Cost returns the number of tokens this item contributes toward a
	// replica's projected load. Always zero for Abort.
	Cost() int
	// Kind reports which wire message this item represents.
	Kind() Kind
}

// Request is an opaque, already-tokenized dispatchable unit. The dispatcher
// never inspects InputIDs beyond taking its length.
type Request struct {
	RID      string  `json:"rid"`
	InputIDs []int64 `json:"input_ids"`
}

func (r *Request) RequestID() string { return r.RID }
func (r *Request) Cost() int         { return len(r.InputIDs) }
func (r *Request) Kind() Kind        { return KindRequest }

// FlushCache carries no payload and must reach every replica.
type FlushCache struct{}

func (FlushCache) RequestID() string { return "" }
func (FlushCache) Cost() int         { return 0 }
func (FlushCache) Kind() Kind        { return KindFlushCache }

// Abort cancels a request by rid. If a pending Request with the same rid is
// still in the current batch it replaces that slot in-place; otherwise it is
// broadcast to every replica.
type Abort struct {
	RID string `json:"rid"`
}

func (a *Abort) RequestID() string { return a.RID }
func (a *Abort) Cost() int         { return 0 }
func (a *Abort) Kind() Kind        { return KindAbort }
