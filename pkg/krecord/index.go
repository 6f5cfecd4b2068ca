package krecord

// Index returns the i-th element of an array (or the scalar itself for
// i==0 on a scalar). Out-of-range reads return 0, never an error, per
// the bounds-error policy of the spec.
func (r *Record) Index(i int) float64 {
	switch r.typ {
	case IntegerArray:
		if i < 0 || i >= len(r.buf.ints) {
			return 0
		}
		return float64(r.buf.ints[i])
	case DoubleArray:
		if i < 0 || i >= len(r.buf.doubles) {
			return 0
		}
		return r.buf.doubles[i]
	case Integer:
		if i == 0 {
			return float64(r.scalarInt)
		}
		return 0
	case Double:
		if i == 0 {
			return r.scalarDouble
		}
		return 0
	default:
		return 0
	}
}

// SetIndex writes v at position i, growing and zero-padding the array
// if i is beyond the current length. Writing a non-integral value to
// an IntegerArray promotes it in place to a DoubleArray.
func (r *Record) SetIndex(i int, v float64) {
	if i < 0 {
		return
	}
	promote := v != float64(int64(v))

	switch r.typ {
	case Empty, Integer:
		r.typ = IntegerArray
		r.buf = nil
		r.ensureUnique()
	case Double:
		r.typ = DoubleArray
		r.buf = nil
		r.ensureUnique()
	case IntegerArray:
		r.ensureUnique()
		if promote {
			ints := r.buf.ints
			doubles := make([]float64, len(ints))
			for idx, iv := range ints {
				doubles[idx] = float64(iv)
			}
			r.buf.ints = nil
			r.buf.doubles = doubles
			r.typ = DoubleArray
		}
	case DoubleArray:
		r.ensureUnique()
	default:
		return
	}

	if r.typ == IntegerArray {
		growInts(&r.buf.ints, i)
		r.buf.ints[i] = int64(v)
	} else {
		growDoubles(&r.buf.doubles, i)
		r.buf.doubles[i] = v
	}
	r.status = Modified
}

func growInts(s *[]int64, i int) {
	if i >= len(*s) {
		grown := make([]int64, i+1)
		copy(grown, *s)
		*s = grown
	}
}

func growDoubles(s *[]float64, i int) {
	if i >= len(*s) {
		grown := make([]float64, i+1)
		copy(grown, *s)
		*s = grown
	}
}

// Ints returns a copy of the record coerced to an integer slice.
func (r *Record) Ints() []int64 {
	switch r.typ {
	case IntegerArray:
		return append([]int64(nil), r.buf.ints...)
	case DoubleArray:
		out := make([]int64, len(r.buf.doubles))
		for i, d := range r.buf.doubles {
			out[i] = int64(d)
		}
		return out
	case Empty:
		return nil
	default:
		return []int64{int64(r.Float())}
	}
}

// Doubles returns a copy of the record coerced to a float64 slice.
func (r *Record) Doubles() []float64 {
	switch r.typ {
	case DoubleArray:
		return append([]float64(nil), r.buf.doubles...)
	case IntegerArray:
		out := make([]float64, len(r.buf.ints))
		for i, v := range r.buf.ints {
			out[i] = float64(v)
		}
		return out
	case Empty:
		return nil
	default:
		return []float64{r.Float()}
	}
}
