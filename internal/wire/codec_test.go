package wire

import (
	"bufio"
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	for _, tc := range [...]struct {
		name string
		item Item
	}{
		{`request`, &Request{RID: "r0", InputIDs: []int64{1, 2, 3}}},
		{`request empty ids`, &Request{RID: "r1"}},
		{`flush cache`, FlushCache{}},
		{`abort`, &Abort{RID: "r0"}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, Encode(&buf, tc.item))

			got, err := Decode(bufio.NewReader(&buf))
			require.NoError(t, err)
			assert.Equal(t, tc.item.Kind(), got.Kind())
			assert.Equal(t, tc.item.RequestID(), got.RequestID())
			assert.Equal(t, tc.item.Cost(), got.Cost())
		})
	}
}

func TestDecodeMultipleFrames(t *testing.T) {
	var buf bytes.Buffer
	items := []Item{
		&Request{RID: "a", InputIDs: []int64{1}},
		FlushCache{},
		&Abort{RID: "a"},
	}
	for _, it := range items {
		require.NoError(t, Encode(&buf, it))
	}

	r := bufio.NewReader(&buf)
	for _, want := range items {
		got, err := Decode(r)
		require.NoError(t, err)
		assert.Equal(t, want.Kind(), got.Kind())
	}

	_, err := Decode(r)
	assert.ErrorIs(t, err, io.EOF)
}

func TestDecodeUnknownKind(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, &Request{RID: "x"}))
	raw := buf.Bytes()
	// corrupt the kind tag (byte index 4, right after the length prefix)
	raw[4] = 0xEE

	_, err := Decode(bufio.NewReader(bytes.NewReader(raw)))
	assert.ErrorIs(t, err, ErrUnknownKind)
}

func TestDecodeOversizedFrame(t *testing.T) {
	var lenBuf [4]byte
	// claim a body far larger than the sane limit
	lenBuf[0] = 0xFF
	lenBuf[1] = 0xFF
	lenBuf[2] = 0xFF
	lenBuf[3] = 0xFF

	_, err := Decode(bufio.NewReader(bytes.NewReader(lenBuf[:])))
	assert.Error(t, err)
}
