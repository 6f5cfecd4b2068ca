package ktransport

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/madara-go/karl/pkg/kfilter"
	"github.com/madara-go/karl/pkg/krecord"
	"github.com/madara-go/karl/pkg/kstore"
)

// loopbackCarrier is an in-memory Carrier that hands whatever is Sent
// straight back out of Receive, as if a peer echoed it, letting tests
// drive Transport.handleInbound without a real socket.
type loopbackCarrier struct {
	id string
	ch chan Datagram
}

func newLoopbackCarrier(id string) *loopbackCarrier {
	return &loopbackCarrier{id: id, ch: make(chan Datagram, 16)}
}

func (c *loopbackCarrier) Send(ctx context.Context, buf []byte) (int, error) {
	cp := make([]byte, len(buf))
	copy(cp, buf)
	c.ch <- Datagram{Data: cp, Endpoint: "peer"}
	return len(cp), nil
}

func (c *loopbackCarrier) Receive(ctx context.Context) (<-chan Datagram, error) {
	return c.ch, nil
}

func (c *loopbackCarrier) LocalID() string { return c.id }

func (c *loopbackCarrier) Close() error { return nil }

func newTestTransport(settings Settings, originator string) (*Transport, *kstore.Store, *loopbackCarrier) {
	store := kstore.New()
	carrier := newLoopbackCarrier(originator)
	tr := New(settings, originator, store, carrier)
	return tr, store, carrier
}

func injectFullHeaderMessage(t *testing.T, tr *Transport, h Header, names []string, records map[string]*krecord.Record, endpoint string) {
	t.Helper()
	buf, err := EncodeMessage(h, names, records)
	require.NoError(t, err)
	tr.handleInbound(context.Background(), Datagram{Data: buf, Endpoint: endpoint})
}

// withClock stamps rec with clock c so it out-ranks a never-written
// local slot (clock 0) under Apply's last-writer-wins tie-break,
// letting "accept" tests distinguish from the "drop" ones on outcome
// rather than on a coincidental tie.
func withClock(rec *krecord.Record, c uint64) *krecord.Record {
	rec.SetClock(c)
	return rec
}

func TestHandleInboundSuppressesOwnOriginatorLoop(t *testing.T) {
	tr, store, _ := newTestTransport(Settings{Domain: "karl"}, "node-a")
	h := Header{Originator: "node-a", Domain: "karl", SenderClock: 1, TimestampNs: time.Now().UnixNano()}
	injectFullHeaderMessage(t, tr, h, []string{"x"}, map[string]*krecord.Record{"x": krecord.NewInteger(42)}, "peer")

	assert.Equal(t, int64(0), store.Get("x").ToInteger())
}

func TestHandleInboundDropsMismatchedDomain(t *testing.T) {
	tr, store, _ := newTestTransport(Settings{Domain: "karl"}, "node-a")
	h := Header{Originator: "node-b", Domain: "other-domain", SenderClock: 1, TimestampNs: time.Now().UnixNano()}
	injectFullHeaderMessage(t, tr, h, []string{"x"}, map[string]*krecord.Record{"x": krecord.NewInteger(42)}, "peer")

	assert.Equal(t, int64(0), store.Get("x").ToInteger())
}

func TestHandleInboundAcceptsMatchingDomain(t *testing.T) {
	tr, store, _ := newTestTransport(Settings{Domain: "karl"}, "node-a")
	h := Header{Originator: "node-b", Domain: "karl", SenderClock: 1, TimestampNs: time.Now().UnixNano()}
	injectFullHeaderMessage(t, tr, h, []string{"x"}, map[string]*krecord.Record{"x": withClock(krecord.NewInteger(42), 1)}, "peer")

	assert.Equal(t, int64(42), store.Get("x").ToInteger())
}

func TestHandleInboundDropsStalePacketPastDeadline(t *testing.T) {
	tr, store, _ := newTestTransport(Settings{Domain: "karl", DeadlineSeconds: 1}, "node-a")
	stale := time.Now().Add(-10 * time.Second).UnixNano()
	h := Header{Originator: "node-b", Domain: "karl", SenderClock: 1, TimestampNs: stale}
	injectFullHeaderMessage(t, tr, h, []string{"x"}, map[string]*krecord.Record{"x": krecord.NewInteger(42)}, "peer")

	assert.Equal(t, int64(0), store.Get("x").ToInteger())
}

func TestHandleInboundAcceptsPacketWithinDeadline(t *testing.T) {
	tr, store, _ := newTestTransport(Settings{Domain: "karl", DeadlineSeconds: 60}, "node-a")
	h := Header{Originator: "node-b", Domain: "karl", SenderClock: 1, TimestampNs: time.Now().UnixNano()}
	injectFullHeaderMessage(t, tr, h, []string{"x"}, map[string]*krecord.Record{"x": withClock(krecord.NewInteger(42), 1)}, "peer")

	assert.Equal(t, int64(42), store.Get("x").ToInteger())
}

func TestHandleInboundDropsBannedOriginator(t *testing.T) {
	tr, store, _ := newTestTransport(Settings{Domain: "karl", BannedPeers: []string{"node-b"}}, "node-a")
	h := Header{Originator: "node-b", Domain: "karl", SenderClock: 1, TimestampNs: time.Now().UnixNano()}
	injectFullHeaderMessage(t, tr, h, []string{"x"}, map[string]*krecord.Record{"x": krecord.NewInteger(42)}, "peer")

	assert.Equal(t, int64(0), store.Get("x").ToInteger())
}

func TestHandleInboundDropsUntrustedOriginatorWhenAllowlistSet(t *testing.T) {
	tr, store, _ := newTestTransport(Settings{Domain: "karl", TrustedPeers: []string{"node-c"}}, "node-a")
	h := Header{Originator: "node-b", Domain: "karl", SenderClock: 1, TimestampNs: time.Now().UnixNano()}
	injectFullHeaderMessage(t, tr, h, []string{"x"}, map[string]*krecord.Record{"x": krecord.NewInteger(42)}, "peer")

	assert.Equal(t, int64(0), store.Get("x").ToInteger())
}

func TestHandleInboundSkipsLocalNamedRecords(t *testing.T) {
	tr, store, _ := newTestTransport(Settings{Domain: "karl"}, "node-a")
	h := Header{Originator: "node-b", Domain: "karl", SenderClock: 1, TimestampNs: time.Now().UnixNano()}
	injectFullHeaderMessage(t, tr, h, []string{".local", "global"},
		map[string]*krecord.Record{".local": withClock(krecord.NewInteger(1), 1), "global": withClock(krecord.NewInteger(2), 1)}, "peer")

	assert.Equal(t, int64(0), store.Get(".local").ToInteger())
	assert.Equal(t, int64(2), store.Get("global").ToInteger())
}

// TestSendThenReceiveAppliesAcrossTransports exercises the full send
// pipeline into the full receive pipeline over a shared loopback
// channel, between two independent Transport/Store pairs, proving the
// pipeline round-trips an ordinary update end to end.
func TestSendThenReceiveAppliesAcrossTransports(t *testing.T) {
	settings := Settings{Domain: "karl", RebroadcastTTL: 0, MaxSendBandwidth: -1}
	senderStore := kstore.New()
	carrier := newLoopbackCarrier("node-a")
	sender := New(settings, "node-a", senderStore, carrier)

	senderStore.Set("shared.value", krecord.NewInteger(7))

	n, err := sender.Send(context.Background(), []string{"shared.value"}, 0)
	require.NoError(t, err)
	assert.Greater(t, n, 0)

	receiverStore := kstore.New()
	receiver := New(settings, "node-b", receiverStore, carrier)

	select {
	case dg := <-carrier.ch:
		receiver.handleInbound(context.Background(), dg)
	default:
		t.Fatal("expected a datagram on the loopback channel")
	}

	assert.Equal(t, int64(7), receiverStore.Get("shared.value").ToInteger())
}

func TestSendSkipsEmptyPayloadWhenSendFilterRejectsEverything(t *testing.T) {
	store := kstore.New()
	carrier := newLoopbackCarrier("node-a")
	tr := New(Settings{Domain: "karl"}, "node-a", store, carrier)
	store.Set("watched", krecord.NewInteger(9))
	store.SendChain().AddAggregateFilter(func(records map[string]*krecord.Record, ctx *kfilter.FilterContext) {
		for name := range records {
			delete(records, name)
		}
	})

	n, err := tr.Send(context.Background(), []string{"watched"}, 0)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}
