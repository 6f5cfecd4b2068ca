package krecord

import "sync/atomic"

// buffer is the reference-counted backing store for string, array, and
// binary payloads. Record.Share hands out a new *Record pointing at the
// same buffer and bumps refs; any subsequent mutation of a shared
// buffer clones it first (copy-on-write) so the original holder's view
// never changes underneath it.
type buffer struct {
	refs    atomic.Int32
	ints    []int64
	doubles []float64
	str     string
	bin     []byte
}

func newBuffer() *buffer {
	b := &buffer{}
	b.refs.Store(1)
	return b
}

func (b *buffer) clone() *buffer {
	nb := newBuffer()
	nb.str = b.str
	if b.ints != nil {
		nb.ints = append([]int64(nil), b.ints...)
	}
	if b.doubles != nil {
		nb.doubles = append([]float64(nil), b.doubles...)
	}
	if b.bin != nil {
		nb.bin = append([]byte(nil), b.bin...)
	}
	return nb
}

// Record is a tagged-union value plus MADARA-style version metadata:
// a Lamport clock, a writer-assigned quality, and the quality the
// holder will assert on its own next local write.
type Record struct {
	typ          Type
	scalarInt    int64
	scalarDouble float64
	buf          *buffer
	anyTypeID    string

	clock        uint64
	quality      uint32
	writeQuality uint32
	status       Status
}

// New returns an Uncreated Empty record.
func New() *Record {
	return &Record{typ: Empty, status: Uncreated}
}

// NewInteger returns a Modified Integer record with no version metadata set.
func NewInteger(v int64) *Record {
	return &Record{typ: Integer, scalarInt: v, status: Modified}
}

// NewDouble returns a Modified Double record.
func NewDouble(v float64) *Record {
	return &Record{typ: Double, scalarDouble: v, status: Modified}
}

// NewString returns a Modified String record.
func NewString(v string) *Record {
	b := newBuffer()
	b.str = v
	return &Record{typ: String, buf: b, status: Modified}
}

// NewIntegerArray returns a Modified IntegerArray record owning a copy of v.
func NewIntegerArray(v []int64) *Record {
	b := newBuffer()
	b.ints = append([]int64(nil), v...)
	return &Record{typ: IntegerArray, buf: b, status: Modified}
}

// NewDoubleArray returns a Modified DoubleArray record owning a copy of v.
func NewDoubleArray(v []float64) *Record {
	b := newBuffer()
	b.doubles = append([]float64(nil), v...)
	return &Record{typ: DoubleArray, buf: b, status: Modified}
}

// NewBinary returns a Modified record of the given binary-ish type
// (BinaryFile, TextFile, Xml, or ImageJpeg) owning a copy of v.
func NewBinary(t Type, v []byte) *Record {
	b := newBuffer()
	if t.IsString() {
		b.str = string(v)
	} else {
		b.bin = append([]byte(nil), v...)
	}
	return &Record{typ: t, buf: b, status: Modified}
}

// NewAny returns a Modified Any record carrying a registered type id and
// its serialized bytes.
func NewAny(typeID string, raw []byte) *Record {
	b := newBuffer()
	b.bin = append([]byte(nil), raw...)
	return &Record{typ: Any, buf: b, anyTypeID: typeID, status: Modified}
}

// Type returns the record's payload type.
func (r *Record) Type() Type { return r.typ }

// Status returns whether the record has ever been assigned a value.
func (r *Record) Status() Status { return r.status }

// Clock returns the record's version counter.
func (r *Record) Clock() uint64 { return r.clock }

// SetClock sets the record's version counter. Only the Store may call
// this; Record never advances its own clock (per the store-owns-clock
// invariant).
func (r *Record) SetClock(c uint64) { r.clock = c }

// Quality returns the writer-assigned priority used to break ties on
// equal clocks.
func (r *Record) Quality() uint32 { return r.quality }

func (r *Record) SetQuality(q uint32) { r.quality = q }

// WriteQuality returns the quality this holder will assert on its own
// next local write.
func (r *Record) WriteQuality() uint32 { return r.writeQuality }

func (r *Record) SetWriteQuality(q uint32) { r.writeQuality = q }

// AnyTypeID returns the registered type identifier for an Any record.
func (r *Record) AnyTypeID() string { return r.anyTypeID }

// IsEmpty reports whether the record carries the Empty type.
func (r *Record) IsEmpty() bool { return r.typ == Empty }

// Size returns the element count for array/string types (1 for
// scalars, 0 for Empty).
func (r *Record) Size() int {
	switch r.typ {
	case Empty:
		return 0
	case IntegerArray:
		return len(r.buf.ints)
	case DoubleArray:
		return len(r.buf.doubles)
	case String, TextFile, Xml:
		return len(r.buf.str) + 1 // trailing zero counted per wire format
	case BinaryFile, ImageJpeg, Any:
		return len(r.buf.bin)
	default:
		return 1
	}
}

// ensureUnique clones the backing buffer if it is shared (refs > 1)
// before an in-place mutation, implementing copy-on-write.
func (r *Record) ensureUnique() {
	if r.buf == nil {
		r.buf = newBuffer()
		return
	}
	if r.buf.refs.Load() > 1 {
		r.buf.refs.Add(-1)
		r.buf = r.buf.clone()
	}
}

// Share returns a new Record handle sharing this record's backing
// buffer (for scalars, a plain value copy suffices since they are
// inline). Mutating either handle triggers copy-on-write on that
// handle only.
func (r *Record) Share() *Record {
	cp := *r
	if r.buf != nil {
		r.buf.refs.Add(1)
	}
	return &cp
}

// Clone returns a deep, fully independent copy.
func (r *Record) Clone() *Record {
	cp := *r
	if r.buf != nil {
		cp.buf = r.buf.clone()
	}
	return &cp
}

// SetValue replaces the payload and type in place, copy-on-write safe.
// It clears Uncreated status but does not touch the clock: the Store
// owns clock assignment.
func (r *Record) SetValue(v *Record) {
	r.typ = v.typ
	r.scalarInt = v.scalarInt
	r.scalarDouble = v.scalarDouble
	r.anyTypeID = v.anyTypeID
	if v.buf != nil {
		v.buf.refs.Add(1)
	}
	if r.buf != nil {
		r.buf.refs.Add(-1)
	}
	r.buf = v.buf
	r.status = Modified
}

// Fragment returns a new Record holding the half-open slice [first,last)
// of an array or string record. Out-of-range bounds are clamped.
func (r *Record) Fragment(first, last int) *Record {
	switch r.typ {
	case IntegerArray:
		first, last = clampRange(first, last, len(r.buf.ints))
		return NewIntegerArray(r.buf.ints[first:last])
	case DoubleArray:
		first, last = clampRange(first, last, len(r.buf.doubles))
		return NewDoubleArray(r.buf.doubles[first:last])
	case String, TextFile, Xml:
		first, last = clampRange(first, last, len(r.buf.str))
		return NewString(r.buf.str[first:last])
	case BinaryFile, ImageJpeg, Any:
		first, last = clampRange(first, last, len(r.buf.bin))
		return NewBinary(r.typ, r.buf.bin[first:last])
	default:
		return New()
	}
}

func clampRange(first, last, n int) (int, int) {
	if first < 0 {
		first = 0
	}
	if last > n {
		last = n
	}
	if first > last {
		first = last
	}
	return first, last
}
