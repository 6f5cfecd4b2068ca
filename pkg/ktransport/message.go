package ktransport

import (
	"fmt"

	"github.com/madara-go/karl/pkg/krecord"
)

// Message is a decoded wire message: the header plus its named
// records in wire order (§4.6 receive step 5, "records are applied in
// the order serialized").
type Message struct {
	Header  Header
	Names   []string
	Records []*krecord.Record
}

// EncodeMessage serializes header and the (name, record) pairs in
// names/records order into one contiguous buffer (§4.6 send step 5).
// Uncreated records are skipped per the §3.1 invariant that they must
// never appear in a published payload.
func EncodeMessage(h Header, names []string, records map[string]*krecord.Record) ([]byte, error) {
	var entries []struct {
		name string
		rec  *krecord.Record
	}
	for _, name := range names {
		rec, ok := records[name]
		if !ok || rec.Status() == krecord.Uncreated {
			continue
		}
		entries = append(entries, struct {
			name string
			rec  *krecord.Record
		}{name, rec})
	}

	h.UpdateCount = uint32(len(entries))

	payloadLen := 0
	for _, e := range entries {
		payloadLen += e.rec.EncodedLen(e.name)
	}
	h.PayloadSize = uint64(payloadLen)

	headerBuf := h.Encode()
	out := make([]byte, len(headerBuf)+payloadLen)
	copy(out, headerBuf)

	off := len(headerBuf)
	for _, e := range entries {
		n, err := e.rec.WriteEntry(out[off:], e.name, nil)
		if err != nil {
			return nil, fmt.Errorf("ktransport: encode record %q: %w", e.name, err)
		}
		off += n
	}
	return out[:off], nil
}

// DecodeMessage parses a buffer produced by EncodeMessage.
// fallbackOriginator/fallbackDomain supply the out-of-band identity a
// reduced header omits.
func DecodeMessage(buf []byte, fallbackOriginator, fallbackDomain string) (Message, error) {
	h, off, err := DecodeHeader(buf, fallbackOriginator, fallbackDomain)
	if err != nil {
		return Message{}, err
	}

	m := Message{Header: h}
	rest := buf[off:]
	for i := uint32(0); i < h.UpdateCount; i++ {
		name, rec, n, err := krecord.ReadEntry(rest)
		if err != nil {
			return Message{}, fmt.Errorf("ktransport: decode record %d/%d: %w", i+1, h.UpdateCount, err)
		}
		m.Names = append(m.Names, name)
		m.Records = append(m.Records, rec)
		rest = rest[n:]
	}
	return m, nil
}
