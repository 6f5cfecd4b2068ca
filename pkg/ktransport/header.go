package ktransport

import (
	"encoding/binary"
	"fmt"
)

// FullTag and ReducedTag are the two header prefixes defined in §3.4:
// a full header carries the originator and domain inline; a reduced
// header omits both, relying on the carrier to supply them out of
// band (e.g. a registry carrier that already knows every peer's id).
var (
	FullTag    = [4]byte{'K', 'a', 'R', 'L'}
	ReducedTag = [4]byte{'K', 'a', 'R', 'l'}
)

// Header is the fixed-plus-variable envelope prefixing every record
// payload (§3.4).
type Header struct {
	Reduced bool

	PayloadSize  uint64
	Originator   string
	Domain       string
	SenderClock  uint64
	TTL          uint8
	UpdateCount  uint32
	TimestampNs  int64
}

// Encode renders h followed by nothing else (callers append the
// record-payload entries themselves).
func (h Header) Encode() []byte {
	tag := FullTag
	if h.Reduced {
		tag = ReducedTag
	}

	size := 4 + 8 + 8 + 1 + 4 + 8 // tag, payload size, sender clock, ttl, update count, timestamp
	if !h.Reduced {
		size += 4 + len(h.Originator) + 4 + len(h.Domain)
	}

	buf := make([]byte, size)
	off := 0
	copy(buf[off:], tag[:])
	off += 4
	binary.BigEndian.PutUint64(buf[off:], h.PayloadSize)
	off += 8

	if !h.Reduced {
		binary.BigEndian.PutUint32(buf[off:], uint32(len(h.Originator)))
		off += 4
		off += copy(buf[off:], h.Originator)
		binary.BigEndian.PutUint32(buf[off:], uint32(len(h.Domain)))
		off += 4
		off += copy(buf[off:], h.Domain)
	}

	binary.BigEndian.PutUint64(buf[off:], h.SenderClock)
	off += 8
	buf[off] = h.TTL
	off++
	binary.BigEndian.PutUint32(buf[off:], h.UpdateCount)
	off += 4
	binary.BigEndian.PutUint64(buf[off:], uint64(h.TimestampNs))
	off += 8

	return buf[:off]
}

// DecodeHeader parses a header previously produced by Encode. originator
// and domain are supplied by the caller (from the carrier's own peer
// book) when the header is reduced, since reduced headers carry
// neither field on the wire.
func DecodeHeader(buf []byte, fallbackOriginator, fallbackDomain string) (Header, int, error) {
	if len(buf) < 4 {
		return Header{}, 0, fmt.Errorf("ktransport: short header")
	}
	var h Header
	switch {
	case buf[0] == FullTag[0] && buf[1] == FullTag[1] && buf[2] == FullTag[2] && buf[3] == FullTag[3]:
		h.Reduced = false
	case buf[0] == ReducedTag[0] && buf[1] == ReducedTag[1] && buf[2] == ReducedTag[2] && buf[3] == ReducedTag[3]:
		h.Reduced = true
	default:
		return Header{}, 0, fmt.Errorf("ktransport: unrecognized header tag")
	}
	off := 4

	if len(buf) < off+8 {
		return Header{}, 0, fmt.Errorf("ktransport: short header payload size")
	}
	h.PayloadSize = binary.BigEndian.Uint64(buf[off:])
	off += 8

	if h.Reduced {
		h.Originator = fallbackOriginator
		h.Domain = fallbackDomain
	} else {
		if len(buf) < off+4 {
			return Header{}, 0, fmt.Errorf("ktransport: short originator length")
		}
		n := int(binary.BigEndian.Uint32(buf[off:]))
		off += 4
		if len(buf) < off+n {
			return Header{}, 0, fmt.Errorf("ktransport: short originator")
		}
		h.Originator = string(buf[off : off+n])
		off += n

		if len(buf) < off+4 {
			return Header{}, 0, fmt.Errorf("ktransport: short domain length")
		}
		n = int(binary.BigEndian.Uint32(buf[off:]))
		off += 4
		if len(buf) < off+n {
			return Header{}, 0, fmt.Errorf("ktransport: short domain")
		}
		h.Domain = string(buf[off : off+n])
		off += n
	}

	if len(buf) < off+8+1+4+8 {
		return Header{}, 0, fmt.Errorf("ktransport: short header tail")
	}
	h.SenderClock = binary.BigEndian.Uint64(buf[off:])
	off += 8
	h.TTL = buf[off]
	off++
	h.UpdateCount = binary.BigEndian.Uint32(buf[off:])
	off += 4
	h.TimestampNs = int64(binary.BigEndian.Uint64(buf[off:]))
	off += 8

	return h, off, nil
}
