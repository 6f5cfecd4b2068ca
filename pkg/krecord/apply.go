package krecord

// Apply performs the last-writer-wins merge of the receiver (the
// incoming value) into local, mutating local in place so any
// VariableReference already pointing at it observes the new value.
// name is checked for emptiness only; callers decide whether a
// leading '.' (local-only) name should even reach here.
//
// Tie-break: on clock < local.Clock(), the update is stale and
// discarded. On equal clocks, quality decides; strictly higher quality
// wins. On equal clock AND equal quality — the spec's edge case where
// two originators independently produce the same (clock, quality) —
// the earlier-received (local) value is kept, folded into the same
// DiscardedLowQuality outcome since the incoming update did not
// present a strictly higher priority (see DESIGN.md). If the incoming
// value is identical to the local one, the result is NoChange instead.
func (incoming *Record) Apply(local *Record, name string, quality uint32, clock uint64) ApplyResult {
	if name == "" {
		return DiscardedNullKey
	}
	if clock < local.clock {
		return DiscardedStaleClock
	}
	if clock == local.clock && quality <= local.quality {
		if quality == local.quality {
			same := *incoming
			same.clock, same.quality = clock, quality
			if same.Equals(local) {
				return NoChange
			}
		}
		return DiscardedLowQuality
	}

	local.SetValue(incoming)
	local.clock = clock
	local.quality = quality
	local.status = Modified
	return Applied
}

// Equals reports deep value equality (type, payload, clock, quality)
// between two records — used for idempotent-write detection.
func (a *Record) Equals(b *Record) bool {
	if a.typ != b.typ || a.clock != b.clock || a.quality != b.quality {
		return false
	}
	switch a.typ {
	case Empty:
		return true
	case Integer:
		return a.scalarInt == b.scalarInt
	case Double:
		return a.scalarDouble == b.scalarDouble
	case String, TextFile, Xml:
		return a.buf.str == b.buf.str
	case IntegerArray:
		return int64SliceEqual(a.buf.ints, b.buf.ints)
	case DoubleArray:
		return float64SliceEqual(a.buf.doubles, b.buf.doubles)
	case BinaryFile, ImageJpeg, Any:
		return bytesEqual(a.buf.bin, b.buf.bin) && a.anyTypeID == b.anyTypeID
	default:
		return false
	}
}

func int64SliceEqual(a, b []int64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func float64SliceEqual(a, b []float64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
