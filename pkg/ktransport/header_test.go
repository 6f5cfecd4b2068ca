package ktransport

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHeaderRoundTripFull(t *testing.T) {
	h := Header{
		Originator:  "node-a",
		Domain:      "karl",
		SenderClock: 42,
		TTL:         3,
		UpdateCount: 2,
		TimestampNs: 1234567890,
	}
	buf := h.Encode()

	decoded, n, err := DecodeHeader(buf, "fallback-originator", "fallback-domain")
	require.NoError(t, err)
	assert.Equal(t, len(buf), n)
	assert.Equal(t, "node-a", decoded.Originator)
	assert.Equal(t, "karl", decoded.Domain)
	assert.EqualValues(t, 42, decoded.SenderClock)
	assert.EqualValues(t, 3, decoded.TTL)
	assert.EqualValues(t, 2, decoded.UpdateCount)
	assert.EqualValues(t, 1234567890, decoded.TimestampNs)
}

func TestHeaderRoundTripReducedUsesFallback(t *testing.T) {
	h := Header{
		Reduced:     true,
		SenderClock: 7,
		TTL:         1,
		TimestampNs: 99,
	}
	buf := h.Encode()

	decoded, _, err := DecodeHeader(buf, "fallback-originator", "fallback-domain")
	require.NoError(t, err)
	assert.Equal(t, "fallback-originator", decoded.Originator)
	assert.Equal(t, "fallback-domain", decoded.Domain)
}

func TestDecodeHeaderRejectsUnknownTag(t *testing.T) {
	_, _, err := DecodeHeader([]byte("XXXX12345678"), "", "")
	assert.Error(t, err)
}

func TestDecodeHeaderRejectsShortBuffer(t *testing.T) {
	_, _, err := DecodeHeader(FullTag[:], "", "")
	assert.Error(t, err)
}
