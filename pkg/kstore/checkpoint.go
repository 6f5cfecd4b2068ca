package kstore

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/madara-go/karl/pkg/krecord"
)

// CheckpointMagic is the fixed 16-byte magic prefixing every binary
// checkpoint file (§6.5): "KaRLCHECKPOINT" zero-padded to 16 bytes.
var CheckpointMagic = [16]byte{'K', 'a', 'R', 'L', 'C', 'H', 'E', 'C', 'K', 'P', 'O', 'I', 'N', 'T', 0, 0}

// SaveContext writes a binary whole-store snapshot to path: the fixed
// magic, an originator field, the store clock, a record count, and
// that many record-payload entries (§3.4).
func (s *Store) SaveContext(path, originator string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("kstore: save context: %w", err)
	}
	defer f.Close()
	return s.WriteCheckpoint(f, originator)
}

// WriteCheckpoint writes the binary checkpoint format to w.
func (s *Store) WriteCheckpoint(w io.Writer, originator string) error {
	bw := bufio.NewWriter(w)

	if _, err := bw.Write(CheckpointMagic[:]); err != nil {
		return err
	}
	if err := writeLenPrefixed(bw, originator); err != nil {
		return err
	}

	s.mu.RLock()
	clock := s.clock.Load()
	entries := make(map[string]*krecord.Record, len(s.names))
	for name, sl := range s.names {
		if sl.live {
			entries[name] = sl.rec.Clone()
		}
	}
	s.mu.RUnlock()

	if err := binary.Write(bw, binary.BigEndian, clock); err != nil {
		return err
	}
	if err := binary.Write(bw, binary.BigEndian, uint32(len(entries))); err != nil {
		return err
	}

	for name, rec := range entries {
		buf := make([]byte, rec.EncodedLen(name))
		n, err := rec.WriteEntry(buf, name, nil)
		if err != nil {
			return err
		}
		if _, err := bw.Write(buf[:n]); err != nil {
			return err
		}
	}

	return bw.Flush()
}

// LoadContext replaces the store's contents with the binary checkpoint
// read from path, returning the originator and store clock it recorded.
func (s *Store) LoadContext(path string) (originator string, clock uint64, err error) {
	f, err := os.Open(path)
	if err != nil {
		return "", 0, fmt.Errorf("kstore: load context: %w", err)
	}
	defer f.Close()
	return s.ReadCheckpoint(f)
}

// ReadCheckpoint reads the binary checkpoint format from r and
// replaces the store's contents.
func (s *Store) ReadCheckpoint(r io.Reader) (originator string, clock uint64, err error) {
	br := bufio.NewReader(r)

	var magic [16]byte
	if _, err = io.ReadFull(br, magic[:]); err != nil {
		return "", 0, err
	}
	if magic != CheckpointMagic {
		return "", 0, fmt.Errorf("kstore: bad checkpoint magic %x", magic)
	}

	originator, err = readLenPrefixed(br)
	if err != nil {
		return "", 0, err
	}

	if err = binary.Read(br, binary.BigEndian, &clock); err != nil {
		return "", 0, err
	}
	var count uint32
	if err = binary.Read(br, binary.BigEndian, &count); err != nil {
		return "", 0, err
	}

	rest, err := io.ReadAll(br)
	if err != nil {
		return "", 0, err
	}

	s.mu.Lock()
	s.names = make(map[string]*slot)
	s.globals = make(map[string]struct{})
	s.locals = make(map[string]struct{})
	s.clock.Store(clock)

	off := 0
	for i := uint32(0); i < count; i++ {
		name, rec, n, derr := krecord.ReadEntry(rest[off:])
		if derr != nil {
			s.mu.Unlock()
			return "", 0, derr
		}
		off += n
		s.names[name] = &slot{rec: rec, live: true}
	}
	s.mu.Unlock()

	return originator, clock, nil
}

func writeLenPrefixed(w io.Writer, s string) error {
	if err := binary.Write(w, binary.BigEndian, uint32(len(s))); err != nil {
		return err
	}
	_, err := io.WriteString(w, s)
	return err
}

func readLenPrefixed(r io.Reader) (string, error) {
	var n uint32
	if err := binary.Read(r, binary.BigEndian, &n); err != nil {
		return "", err
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", err
	}
	return string(buf), nil
}
