package kfrag

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Fragmentation completeness (§8): a message of size N split into
// ceil(N/F) fragments reassembles byte-identical for any F >= 1.
func TestSplitReassembleRoundTrip(t *testing.T) {
	payload := bytes.Repeat([]byte("0123456789abcdef"), 1+900000/16)
	payload = payload[:900000]

	for _, fragSize := range []int{1, 7, 1000, 60000, len(payload), len(payload) + 1} {
		t.Run("", func(t *testing.T) {
			frags, err := Fragmenter{}.Split(payload, fragSize)
			require.NoError(t, err)

			wantN := (len(payload) + fragSize - 1) / fragSize
			if wantN == 0 {
				wantN = 1
			}
			require.Len(t, frags, wantN)

			r := NewReassembler(time.Minute, 0)
			now := time.Now()
			var got []byte
			var ok bool
			for _, f := range frags {
				encoded := f.Encode()
				require.True(t, IsFragment(encoded))
				decoded, err := Decode(encoded)
				require.NoError(t, err)
				got, ok = r.Add("peer-0", decoded, now)
				if ok {
					break
				}
			}
			require.True(t, ok, "reassembly never completed")
			assert.True(t, bytes.Equal(got, payload))
			assert.Equal(t, 0, r.Pending())
		})
	}
}

func TestSplitReassembleOutOfOrder(t *testing.T) {
	payload := []byte("the quick brown fox jumps over the lazy dog")
	frags, err := Fragmenter{}.Split(payload, 5)
	require.NoError(t, err)
	require.Greater(t, len(frags), 2)

	// reverse delivery order
	r := NewReassembler(time.Minute, 0)
	now := time.Now()
	var got []byte
	var ok bool
	for i := len(frags) - 1; i >= 0; i-- {
		got, ok = r.Add("peer-0", frags[i], now)
	}
	require.True(t, ok)
	assert.Equal(t, payload, got)
}

func TestSplitRejectsNonPositiveFragSize(t *testing.T) {
	_, err := Fragmenter{}.Split([]byte("x"), 0)
	assert.Error(t, err)
	_, err = Fragmenter{}.Split([]byte("x"), -1)
	assert.Error(t, err)
}

func TestDecodeRejectsBadTagAndVersion(t *testing.T) {
	_, err := Decode([]byte("notafragmentheader"))
	assert.Error(t, err)

	f := Fragment{MessageID: 1, Total: 1, Index: 0, Payload: []byte("x")}
	buf := f.Encode()
	buf[4] = HeaderVersion1 + 1
	_, err = Decode(buf)
	assert.Error(t, err)

	short := []byte{'K', 'F', 'R', 'G', HeaderVersion1}
	_, err = Decode(short)
	assert.Error(t, err)
}

func TestReassemblerDeduplicatesRepeatedFragment(t *testing.T) {
	frags, err := Fragmenter{}.Split([]byte("hello world"), 4)
	require.NoError(t, err)

	r := NewReassembler(time.Minute, 0)
	now := time.Now()
	// deliver the first fragment twice before the rest
	r.Add("peer-0", frags[0], now)
	r.Add("peer-0", frags[0], now)
	var got []byte
	var ok bool
	for _, f := range frags[1:] {
		got, ok = r.Add("peer-0", f, now)
	}
	require.True(t, ok)
	assert.Equal(t, []byte("hello world"), got)
}

func TestReassemblerTTLEviction(t *testing.T) {
	frags, err := Fragmenter{}.Split([]byte("abcdefghij"), 3)
	require.NoError(t, err)
	require.Greater(t, len(frags), 1)

	r := NewReassembler(10*time.Second, 0)
	start := time.Now()
	_, ok := r.Add("peer-0", frags[0], start)
	require.False(t, ok)
	assert.Equal(t, 1, r.Pending())

	removed := r.Sweep(start.Add(20 * time.Second))
	assert.Equal(t, 1, removed)
	assert.Equal(t, 0, r.Pending())

	// delivering the remaining fragments after eviction starts a fresh,
	// permanently incomplete train since the first fragment is gone.
	now := start.Add(20 * time.Second)
	for _, f := range frags[1:] {
		_, ok = r.Add("peer-0", f, now)
	}
	assert.False(t, ok)
}

func TestReassemblerBudgetEvictsLeastRecentlyTouched(t *testing.T) {
	r := NewReassembler(time.Minute, 10)

	fOld := Fragment{MessageID: 1, Total: 2, Index: 0, Payload: []byte("12345")}
	fNew := Fragment{MessageID: 2, Total: 2, Index: 0, Payload: []byte("67890")}

	now := time.Now()
	r.Add("peer-0", fOld, now)
	assert.Equal(t, 1, r.Pending())

	// adding the second partial pushes total buffered bytes (10) right
	// at budget; a third touch should evict the least-recently-touched
	// (message 1) to stay within the byte cap.
	r.Add("peer-0", fNew, now.Add(time.Second))
	assert.Equal(t, 2, r.Pending())

	fNewer := Fragment{MessageID: 3, Total: 2, Index: 0, Payload: []byte("abcde")}
	r.Add("peer-0", fNewer, now.Add(2*time.Second))

	// message 1 (oldest touch) should have been evicted to respect the
	// 10-byte budget once a third 5-byte partial arrived.
	assert.Equal(t, 2, r.Pending())
	_, completedOld := r.Add("peer-0", Fragment{MessageID: 1, Total: 2, Index: 1, Payload: []byte("x")}, now.Add(3*time.Second))
	assert.False(t, completedOld, "message 1's second fragment alone cannot complete a fresh train")
}
