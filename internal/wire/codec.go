package wire

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
)

// maxFrameLen bounds a single frame body, guarding against a corrupt length
// prefix turning into an unbounded allocation.
const maxFrameLen = 16 << 20 // 16MiB

// ErrUnknownKind is returned by Decode when a frame's kind tag is not one of
// the three known message kinds. This is a ProtocolError: the caller should
// log it and discard the frame, never treat it as fatal.
var ErrUnknownKind = fmt.Errorf("wire: unknown message kind")

// Encode writes item as a single length-prefixed frame: a 4-byte big-endian
// length (covering the kind byte and body), a 1-byte kind tag, and a JSON
// body (empty for FlushCache). This mirrors the hand-rolled, length-prefixed
// binary framing idiom used by wire protocol encoders in the retrieved pack,
// rather than reaching for a generic RPC/serialization framework.
func Encode(w io.Writer, item Item) error {
	var body []byte
	var err error

	switch v := item.(type) {
	case *Request:
		body, err = json.Marshal(v)
	case FlushCache:
		body = nil
	case *Abort:
		body, err = json.Marshal(v)
	default:
		return fmt.Errorf("wire: encode: unsupported item type %T", item)
	}
	if err != nil {
		return fmt.Errorf("wire: encode: %w", err)
	}

	frame := make([]byte, 4+1+len(body))
	binary.BigEndian.PutUint32(frame[0:4], uint32(1+len(body)))
	frame[4] = byte(item.Kind())
	copy(frame[5:], body)

	_, err = w.Write(frame)
	return err
}

// Decode reads a single frame from r, blocking until a complete frame is
// available, the stream ends (io.EOF), or the underlying reader errors.
//
// An unknown kind tag yields ErrUnknownKind with the frame otherwise fully
// consumed, so the caller can keep reading subsequent frames on the same
// stream.
func Decode(r *bufio.Reader) (Item, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return nil, err
	}
	n := binary.BigEndian.Uint32(lenBuf[:])
	if n == 0 {
		return nil, fmt.Errorf("wire: decode: empty frame")
	}
	if n > maxFrameLen {
		return nil, fmt.Errorf("wire: decode: frame of %d bytes exceeds limit", n)
	}

	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}

	kind := Kind(buf[0])
	body := buf[1:]

	switch kind {
	case KindRequest:
		var req Request
		if err := json.Unmarshal(body, &req); err != nil {
			return nil, fmt.Errorf("wire: decode request: %w", err)
		}
		return &req, nil

	case KindFlushCache:
		return FlushCache{}, nil

	case KindAbort:
		var abort Abort
		if err := json.Unmarshal(body, &abort); err != nil {
			return nil, fmt.Errorf("wire: decode abort: %w", err)
		}
		return &abort, nil

	default:
		return nil, ErrUnknownKind
	}
}
