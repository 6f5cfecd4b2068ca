package krecord

import (
	"encoding/binary"
	"math"
)

// wireTag maps a Type to its on-the-wire 32-bit type tag. The tag is
// the Type enum value itself, so reordering the Type constants would
// change the wire format.
func wireTag(t Type) uint32 { return uint32(t) }

func typeFromTag(tag uint32) Type { return Type(tag) }

// WriteEntry serializes the record-payload wire entry (§3.4) for name
// into buf at offset 0: a 32-bit name length, the zero-terminated name,
// a 32-bit type tag, a 32-bit element count, and the value bytes in
// network byte order. It returns the number of bytes written and
// decrements *remaining by that amount; if the entry would not fit in
// *remaining, it writes nothing and returns ErrBufferFull.
func (r *Record) WriteEntry(buf []byte, name string, remaining *int) (int, error) {
	need := r.EncodedLen(name)
	if remaining != nil && need > *remaining {
		return 0, ErrBufferFull
	}
	if len(buf) < need {
		return 0, ErrShortBuffer
	}

	off := 0
	nameBytes := append([]byte(name), 0)
	binary.BigEndian.PutUint32(buf[off:], uint32(len(nameBytes)))
	off += 4
	copy(buf[off:], nameBytes)
	off += len(nameBytes)

	binary.BigEndian.PutUint32(buf[off:], wireTag(r.typ))
	off += 4

	size := uint32(r.wireSize())
	binary.BigEndian.PutUint32(buf[off:], size)
	off += 4

	off += r.writeValue(buf[off:])

	if remaining != nil {
		*remaining -= off
	}
	return off, nil
}

// EncodedLen returns the number of bytes WriteEntry(name) would write.
func (r *Record) EncodedLen(name string) int {
	return 4 + len(name) + 1 + 4 + 4 + r.valueLen()
}

// wireSize is the value written into the wire "size" field (§3.4):
// element count for array types (readValue multiplies it back out by
// 8), 1 for Integer and Double scalars, 0 for Empty, and byte length
// for string and binary types. It differs from the public
// Size() only for Any, where the wire size must also cover the type-id
// framing writeValue emits ahead of the payload bytes, while Size()
// (the #size system call) reports just the payload's own byte length.
func (r *Record) wireSize() int {
	if r.typ == Any {
		return 4 + len(r.anyTypeID) + len(r.buf.bin)
	}
	return r.Size()
}

func (r *Record) valueLen() int {
	switch r.typ {
	case Empty:
		return 0
	case Integer:
		return 8
	case Double:
		return 8
	case IntegerArray:
		return 8 * len(r.buf.ints)
	case DoubleArray:
		return 8 * len(r.buf.doubles)
	case String, TextFile, Xml:
		return len(r.buf.str) + 1
	case BinaryFile, ImageJpeg:
		return len(r.buf.bin)
	case Any:
		return 4 + len(r.anyTypeID) + len(r.buf.bin)
	default:
		return 0
	}
}

func (r *Record) writeValue(buf []byte) int {
	switch r.typ {
	case Empty:
		return 0
	case Integer:
		binary.BigEndian.PutUint64(buf, uint64(r.scalarInt))
		return 8
	case Double:
		binary.BigEndian.PutUint64(buf, math.Float64bits(r.scalarDouble))
		return 8
	case IntegerArray:
		for i, v := range r.buf.ints {
			binary.BigEndian.PutUint64(buf[i*8:], uint64(v))
		}
		return 8 * len(r.buf.ints)
	case DoubleArray:
		for i, v := range r.buf.doubles {
			binary.BigEndian.PutUint64(buf[i*8:], math.Float64bits(v))
		}
		return 8 * len(r.buf.doubles)
	case String, TextFile, Xml:
		n := copy(buf, r.buf.str)
		buf[n] = 0
		return n + 1
	case BinaryFile, ImageJpeg:
		return copy(buf, r.buf.bin)
	case Any:
		off := 0
		binary.BigEndian.PutUint32(buf[off:], uint32(len(r.anyTypeID)))
		off += 4
		off += copy(buf[off:], r.anyTypeID)
		off += copy(buf[off:], r.buf.bin)
		return off
	default:
		return 0
	}
}

// ReadEntry deserializes one record-payload wire entry from buf,
// returning the name, the record, and the number of bytes consumed.
func ReadEntry(buf []byte) (name string, rec *Record, n int, err error) {
	if len(buf) < 4 {
		return "", nil, 0, ErrShortBuffer
	}
	off := 0
	nameLen := int(binary.BigEndian.Uint32(buf[off:]))
	off += 4
	if len(buf) < off+nameLen+8 {
		return "", nil, 0, ErrShortBuffer
	}
	nameBytes := buf[off : off+nameLen]
	if nameLen > 0 && nameBytes[nameLen-1] == 0 {
		nameBytes = nameBytes[:nameLen-1]
	}
	name = string(nameBytes)
	off += nameLen

	tag := typeFromTag(binary.BigEndian.Uint32(buf[off:]))
	off += 4
	size := int(binary.BigEndian.Uint32(buf[off:]))
	off += 4

	rec = &Record{typ: tag, status: Modified}
	consumed, err := rec.readValue(buf[off:], size)
	if err != nil {
		return "", nil, 0, err
	}
	off += consumed
	return name, rec, off, nil
}

func (r *Record) readValue(buf []byte, size int) (int, error) {
	switch r.typ {
	case Empty:
		return 0, nil
	case Integer:
		if len(buf) < 8 {
			return 0, ErrShortBuffer
		}
		r.scalarInt = int64(binary.BigEndian.Uint64(buf))
		return 8, nil
	case Double:
		if len(buf) < 8 {
			return 0, ErrShortBuffer
		}
		r.scalarDouble = math.Float64frombits(binary.BigEndian.Uint64(buf))
		return 8, nil
	case IntegerArray:
		need := 8 * size
		if len(buf) < need {
			return 0, ErrShortBuffer
		}
		vals := make([]int64, size)
		for i := range vals {
			vals[i] = int64(binary.BigEndian.Uint64(buf[i*8:]))
		}
		r.buf = newBuffer()
		r.buf.ints = vals
		return need, nil
	case DoubleArray:
		need := 8 * size
		if len(buf) < need {
			return 0, ErrShortBuffer
		}
		vals := make([]float64, size)
		for i := range vals {
			vals[i] = math.Float64frombits(binary.BigEndian.Uint64(buf[i*8:]))
		}
		r.buf = newBuffer()
		r.buf.doubles = vals
		return need, nil
	case String, TextFile, Xml:
		if len(buf) < size {
			return 0, ErrShortBuffer
		}
		s := buf[:size]
		if size > 0 && s[size-1] == 0 {
			s = s[:size-1]
		}
		r.buf = newBuffer()
		r.buf.str = string(s)
		return size, nil
	case BinaryFile, ImageJpeg:
		if len(buf) < size {
			return 0, ErrShortBuffer
		}
		r.buf = newBuffer()
		r.buf.bin = append([]byte(nil), buf[:size]...)
		return size, nil
	case Any:
		if len(buf) < size || size < 4 {
			return 0, ErrShortBuffer
		}
		idLen := int(binary.BigEndian.Uint32(buf))
		if 4+idLen > size {
			return 0, ErrShortBuffer
		}
		r.anyTypeID = string(buf[4 : 4+idLen])
		r.buf = newBuffer()
		r.buf.bin = append([]byte(nil), buf[4+idLen:size]...)
		return size, nil
	default:
		return 0, nil
	}
}
