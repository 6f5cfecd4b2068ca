package kfilter

import (
	"encoding/binary"
	"fmt"
)

// BufferFilter transforms a fully wire-encoded message buffer: once
// after record filtering and serialization and before fragmentation on
// send, once after fragment reassembly and before header parsing and
// record filtering on receive (§4.4, §6.4).
// ID identifies the filter on the wire so a mismatched chain on the
// receiving end drops the packet instead of mis-decoding it; Version
// lets a filter change its encoding while still tagging old output
// recognizably.
type BufferFilter interface {
	ID() [4]byte
	Version() uint32
	Encode(buf []byte) ([]byte, error)
	Decode(buf []byte) ([]byte, error)
}

// bufferHeaderSize is the fixed byte length of a buffer-filter header:
// filter id(4) + filter version(4) + post-filter size(8), per §3.4.
const bufferHeaderSize = 4 + 4 + 8

// BufferChain is the ordered sequence of BufferFilters shared across
// all three directions (encryption/compression apply uniformly
// regardless of why a message is going out or coming in).
type BufferChain struct {
	filters []BufferFilter
}

// NewBufferChain returns an empty BufferChain.
func NewBufferChain() *BufferChain { return &BufferChain{} }

// Add appends f to the end of the chain.
func (c *BufferChain) Add(f BufferFilter) { c.filters = append(c.filters, f) }

// Encode runs the chain forward, in registration order; each filter's
// output is prefixed with a buffer-filter header naming the filter
// that produced it, so the header stack nests in encode order with
// the last filter applied ending up outermost.
func (c *BufferChain) Encode(buf []byte) ([]byte, error) {
	for _, f := range c.filters {
		out, err := f.Encode(buf)
		if err != nil {
			return nil, err
		}
		buf = prependBufferHeader(f, out)
	}
	return buf, nil
}

// Decode runs the chain in reverse, undoing Encode. At each step the
// outermost header's filter id must match the filter being unwound or
// the packet is dropped (§3.4 "the tag must match a registered filter
// or the packet is dropped").
func (c *BufferChain) Decode(buf []byte) ([]byte, error) {
	for i := len(c.filters) - 1; i >= 0; i-- {
		f := c.filters[i]
		payload, err := stripBufferHeader(f, buf)
		if err != nil {
			return nil, err
		}
		buf, err = f.Decode(payload)
		if err != nil {
			return nil, err
		}
	}
	return buf, nil
}

func prependBufferHeader(f BufferFilter, payload []byte) []byte {
	id := f.ID()
	out := make([]byte, bufferHeaderSize+len(payload))
	copy(out[0:4], id[:])
	binary.BigEndian.PutUint32(out[4:8], f.Version())
	binary.BigEndian.PutUint64(out[8:16], uint64(len(payload)))
	copy(out[bufferHeaderSize:], payload)
	return out
}

func stripBufferHeader(f BufferFilter, buf []byte) ([]byte, error) {
	if len(buf) < bufferHeaderSize {
		return nil, fmt.Errorf("kfilter: short buffer-filter header (%d bytes)", len(buf))
	}
	var gotID [4]byte
	copy(gotID[:], buf[0:4])
	wantID := f.ID()
	if gotID != wantID {
		return nil, fmt.Errorf("kfilter: buffer-filter mismatch: expected %q got %q", wantID, gotID)
	}
	size := binary.BigEndian.Uint64(buf[8:16])
	payload := buf[bufferHeaderSize:]
	if uint64(len(payload)) != size {
		return nil, fmt.Errorf("kfilter: buffer-filter %q post-filter size mismatch: header says %d, got %d", wantID, size, len(payload))
	}
	return payload, nil
}
