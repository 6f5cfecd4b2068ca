package kfilter

import (
	"bytes"
	"compress/flate"
	"fmt"
	"io"
)

// CompressFilter is a BufferChain BufferFilter using DEFLATE
// (compress/flate, stdlib — see DESIGN.md for why this buffer filter
// is the one place the domain stack's LZ4/klauspost-compress libraries
// are not wired) to shrink outgoing messages before any encryption
// filter further down the chain.
type CompressFilter struct {
	Level int
}

// compressFilterID is the 4-byte buffer-filter tag CompressFilter
// prepends on encode and checks for on decode.
var compressFilterID = [4]byte{'D', 'F', 'L', '1'}

const compressFilterVersion = 1

// ID identifies this filter on the wire.
func (c *CompressFilter) ID() [4]byte { return compressFilterID }

// Version reports this filter's wire encoding version.
func (c *CompressFilter) Version() uint32 { return compressFilterVersion }

// NewCompressFilter returns a CompressFilter at the given flate
// compression level (flate.DefaultCompression if zero).
func NewCompressFilter(level int) *CompressFilter {
	if level == 0 {
		level = flate.DefaultCompression
	}
	return &CompressFilter{Level: level}
}

// Encode compresses buf.
func (c *CompressFilter) Encode(buf []byte) ([]byte, error) {
	var out bytes.Buffer
	w, err := flate.NewWriter(&out, c.Level)
	if err != nil {
		return nil, fmt.Errorf("kfilter: flate writer: %w", err)
	}
	if _, err := w.Write(buf); err != nil {
		return nil, fmt.Errorf("kfilter: flate write: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("kfilter: flate close: %w", err)
	}
	return out.Bytes(), nil
}

// Decode decompresses buf.
func (c *CompressFilter) Decode(buf []byte) ([]byte, error) {
	r := flate.NewReader(bytes.NewReader(buf))
	defer r.Close()
	out, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("kfilter: flate read: %w", err)
	}
	return out, nil
}
