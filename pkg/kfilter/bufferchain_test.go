package kfilter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBufferChainRoundTripSingleFilter(t *testing.T) {
	chain := NewBufferChain()
	chain.Add(NewCompressFilter(0))

	encoded, err := chain.Encode([]byte("hello world"))
	require.NoError(t, err)

	decoded, err := chain.Decode(encoded)
	require.NoError(t, err)
	assert.Equal(t, []byte("hello world"), decoded)
}

func TestBufferChainRoundTripMultipleFilters(t *testing.T) {
	chain := NewBufferChain()
	chain.Add(NewCompressFilter(0))
	chain.Add(NewAESFilter("s3cr3t"))

	payload := []byte("a fully encoded KaRL message buffer")
	encoded, err := chain.Encode(payload)
	require.NoError(t, err)

	decoded, err := chain.Decode(encoded)
	require.NoError(t, err)
	assert.Equal(t, payload, decoded)
}

func TestBufferChainEncodePrependsHeaderPerFilter(t *testing.T) {
	chain := NewBufferChain()
	chain.Add(NewCompressFilter(0))

	encoded, err := chain.Encode([]byte("x"))
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(encoded), bufferHeaderSize)

	var gotID [4]byte
	copy(gotID[:], encoded[0:4])
	assert.Equal(t, compressFilterID, gotID)
}

func TestBufferChainDecodeRejectsMismatchedFilterID(t *testing.T) {
	chain := NewBufferChain()
	chain.Add(NewCompressFilter(0))

	encoded, err := chain.Encode([]byte("x"))
	require.NoError(t, err)
	encoded[0] = 'Z' // corrupt the filter id

	_, err = chain.Decode(encoded)
	assert.Error(t, err)
}

func TestBufferChainDecodeEmptyChainPassesThrough(t *testing.T) {
	chain := NewBufferChain()
	buf := []byte("KaRL-unfiltered")

	encoded, err := chain.Encode(buf)
	require.NoError(t, err)
	assert.Equal(t, buf, encoded)

	decoded, err := chain.Decode(encoded)
	require.NoError(t, err)
	assert.Equal(t, buf, decoded)
}
