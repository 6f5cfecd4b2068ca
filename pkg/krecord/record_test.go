package krecord

import "testing"

func TestWireRoundTrip(t *testing.T) {
	cases := []struct {
		name string
		rec  *Record
	}{
		{"empty", New()},
		{"int", NewInteger(-42)},
		{"double", NewDouble(3.14159)},
		{"string", NewString("hello, world")},
		{"longstring", NewString(string(make([]byte, 4096)))},
		{"emptyarray", NewIntegerArray(nil)},
		{"intarray", NewIntegerArray([]int64{1, 2, 3, -4})},
		{"doublearray", NewDoubleArray([]float64{1.5, -2.25, 0})},
		{"binary", NewBinary(BinaryFile, []byte{0, 1, 2, 255, 254})},
		{"any", NewAny("my.type", []byte("payload"))},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			buf := make([]byte, c.rec.EncodedLen("x"))
			remaining := len(buf)
			n, err := c.rec.WriteEntry(buf, "x", &remaining)
			if err != nil {
				t.Fatalf("WriteEntry: %v", err)
			}
			name, got, consumed, err := ReadEntry(buf[:n])
			if err != nil {
				t.Fatalf("ReadEntry: %v", err)
			}
			if consumed != n {
				t.Fatalf("consumed %d want %d", consumed, n)
			}
			if name != "x" {
				t.Fatalf("name = %q", name)
			}
			if got.Type() != c.rec.Type() {
				t.Fatalf("type = %v want %v", got.Type(), c.rec.Type())
			}
			if c.rec.Type() == Any && got.AnyTypeID() != c.rec.AnyTypeID() {
				t.Fatalf("any type id mismatch")
			}
		})
	}
}

func TestApplyTieBreakByClock(t *testing.T) {
	// clock_A < clock_B: final state is B regardless of delivery order.
	a := NewInteger(1)
	b := NewInteger(2)

	local := New()
	if res := a.Apply(local, "v", 5, 1); res != Applied {
		t.Fatalf("apply A: %v", res)
	}
	if res := b.Apply(local, "v", 5, 2); res != Applied {
		t.Fatalf("apply B: %v", res)
	}
	if local.ToInteger() != 2 {
		t.Fatalf("want B's value, got %d", local.ToInteger())
	}

	// Reverse order.
	local2 := New()
	if res := b.Apply(local2, "v", 5, 2); res != Applied {
		t.Fatalf("apply B first: %v", res)
	}
	if res := a.Apply(local2, "v", 5, 1); res != DiscardedStaleClock {
		t.Fatalf("apply A second: %v", res)
	}
	if local2.ToInteger() != 2 {
		t.Fatalf("want B's value, got %d", local2.ToInteger())
	}
}

func TestApplyTieBreakByQuality(t *testing.T) {
	// clock_A == clock_B, quality_A > quality_B: final state is A regardless of order.
	a := NewInteger(1)
	b := NewInteger(2)

	local := New()
	if res := a.Apply(local, "v", 10, 7); res != Applied {
		t.Fatalf("apply A: %v", res)
	}
	if res := b.Apply(local, "v", 5, 7); res != DiscardedLowQuality {
		t.Fatalf("apply B: %v", res)
	}
	if local.ToInteger() != 1 {
		t.Fatalf("want A's value, got %d", local.ToInteger())
	}

	local2 := New()
	if res := b.Apply(local2, "v", 5, 7); res != Applied {
		t.Fatalf("apply B first: %v", res)
	}
	if res := a.Apply(local2, "v", 10, 7); res != Applied {
		t.Fatalf("apply A second: %v", res)
	}
	if local2.ToInteger() != 1 {
		t.Fatalf("want A's value, got %d", local2.ToInteger())
	}
}

func TestDivisionByZero(t *testing.T) {
	r := Div(NewInteger(5), NewInteger(0))
	if r.Type() != String || r.ToString("") != DivByZeroMessage {
		t.Fatalf("want Division by Zero string, got %v %q", r.Type(), r.ToString(""))
	}
}

func TestArrayGrowZeroPads(t *testing.T) {
	r := NewIntegerArray([]int64{1, 2})
	r.SetIndex(5, 9)
	if r.Size() != 6 {
		t.Fatalf("size = %d", r.Size())
	}
	for i := 2; i < 5; i++ {
		if r.Index(i) != 0 {
			t.Fatalf("index %d = %v, want 0", i, r.Index(i))
		}
	}
	if r.Index(5) != 9 {
		t.Fatalf("index 5 = %v", r.Index(5))
	}
}

func TestArrayPromotionOnDoubleWrite(t *testing.T) {
	r := NewIntegerArray([]int64{1, 2, 3})
	r.SetIndex(1, 2.5)
	if r.Type() != DoubleArray {
		t.Fatalf("type = %v, want DoubleArray", r.Type())
	}
	if r.Index(1) != 2.5 {
		t.Fatalf("index 1 = %v", r.Index(1))
	}
}

func TestCopyOnWrite(t *testing.T) {
	orig := NewIntegerArray([]int64{1, 2, 3})
	shared := orig.Share()
	shared.SetIndex(0, 99)
	if orig.Index(0) != 1 {
		t.Fatalf("original mutated: %v", orig.Index(0))
	}
	if shared.Index(0) != 99 {
		t.Fatalf("shared not mutated")
	}
}

func TestOutOfRangeReadIsZero(t *testing.T) {
	r := NewIntegerArray([]int64{1, 2})
	if r.Index(99) != 0 {
		t.Fatalf("out of range read = %v, want 0", r.Index(99))
	}
}

func TestLocalWriteIdempotent(t *testing.T) {
	local := New()
	v := NewInteger(7)
	if res := v.Apply(local, "v", 1, 1); res != Applied {
		t.Fatalf("first apply: %v", res)
	}
	v2 := NewInteger(7)
	if res := v2.Apply(local, "v", 1, 1); res != NoChange {
		t.Fatalf("second identical apply: %v, want NoChange", res)
	}
}
