package ktransport

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/madara-go/karl/pkg/krecord"
)

func TestEncodeDecodeMessageRoundTrip(t *testing.T) {
	h := Header{Originator: "node-a", Domain: "karl", SenderClock: 1, TimestampNs: 100}
	records := map[string]*krecord.Record{
		"alpha": krecord.NewInteger(7),
		"beta":  krecord.NewString("hi"),
	}
	names := []string{"alpha", "beta"}

	buf, err := EncodeMessage(h, names, records)
	require.NoError(t, err)

	msg, err := DecodeMessage(buf, "fallback", "fallback-domain")
	require.NoError(t, err)
	require.Len(t, msg.Names, 2)
	assert.Equal(t, "alpha", msg.Names[0])
	assert.EqualValues(t, 7, msg.Records[0].ToInteger())
	assert.Equal(t, "beta", msg.Names[1])
	assert.Equal(t, "hi", msg.Records[1].ToString(","))
}

func TestEncodeMessageSkipsUncreatedRecords(t *testing.T) {
	h := Header{Originator: "node-a", Domain: "karl"}
	records := map[string]*krecord.Record{
		"untouched": krecord.New(),
		"written":   krecord.NewInteger(1),
	}
	names := []string{"untouched", "written"}

	buf, err := EncodeMessage(h, names, records)
	require.NoError(t, err)

	msg, err := DecodeMessage(buf, "", "")
	require.NoError(t, err)
	require.Len(t, msg.Names, 1)
	assert.Equal(t, "written", msg.Names[0])
}
