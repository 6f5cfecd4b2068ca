package ktransport

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"syscall"
	"time"

	"github.com/madara-go/karl/internal/krlog"
	"github.com/madara-go/karl/pkg/kfilter"
	"github.com/madara-go/karl/pkg/kfrag"
	"github.com/madara-go/karl/pkg/krecord"
	"github.com/madara-go/karl/pkg/kstore"
)

// Transport coordinates a pluggable Carrier with the send/receive
// pipeline of §4.6: filter chains, bandwidth/drop enforcement,
// fragmentation, and the loop/domain/deadline/trust drops on receive.
type Transport struct {
	settings   Settings
	originator string
	store      *kstore.Store
	carrier    Carrier

	frag  kfrag.Fragmenter
	reasm *kfrag.Reassembler

	sendMonitor *bandwidthMonitor
	recvMonitor *bandwidthMonitor
	dropper     *packetDropper

	banned  map[string]struct{}
	trusted map[string]struct{}

	metrics Metrics

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Metrics is the set of counters Transport reports into, satisfied by
// pkg/ktransport/metrics.Collector; a nil-safe no-op Metrics is used
// when the caller doesn't wire one in.
type Metrics interface {
	BytesSent(n int)
	BytesReceived(n int)
	PacketDropped(reason string)
	FragmentsInFlight(n int)
	FilterReject()
}

type noopMetrics struct{}

func (noopMetrics) BytesSent(int)         {}
func (noopMetrics) BytesReceived(int)     {}
func (noopMetrics) PacketDropped(string)  {}
func (noopMetrics) FragmentsInFlight(int) {}
func (noopMetrics) FilterReject()         {}

// New returns a Transport bound to store and carrier, ready to Start.
// originator is this process's identity, asserted in every full
// header and compared on receive for loop suppression.
func New(settings Settings, originator string, store *kstore.Store, carrier Carrier) *Transport {
	t := &Transport{
		settings:    settings,
		originator:  originator,
		store:       store,
		carrier:     carrier,
		reasm:       kfrag.NewReassembler(time.Duration(settings.FragmentTTLSeconds)*time.Second, settings.FragmentBudgetBytes),
		sendMonitor: newBandwidthMonitor(),
		recvMonitor: newBandwidthMonitor(),
		dropper:     newPacketDropper(settings),
		banned:      toSet(settings.BannedPeers),
		trusted:     toSet(settings.TrustedPeers),
		metrics:     noopMetrics{},
	}
	return t
}

// SetMetrics installs m as the Transport's metrics sink.
func (t *Transport) SetMetrics(m Metrics) {
	if m == nil {
		m = noopMetrics{}
	}
	t.metrics = m
}

func toSet(peers []string) map[string]struct{} {
	out := make(map[string]struct{}, len(peers))
	for _, p := range peers {
		out[p] = struct{}{}
	}
	return out
}

// Reassembler exposes the fragment-reassembly table so a scheduled
// housekeeping job can sweep it (§4.5, §9).
func (t *Transport) Reassembler() *kfrag.Reassembler { return t.reasm }

// Start launches the receive worker pool (§5: count = read_threads,
// paced at read_thread_hertz when configured).
func (t *Transport) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	t.cancel = cancel

	datagrams, err := t.carrier.Receive(ctx)
	if err != nil {
		cancel()
		return fmt.Errorf("ktransport: starting carrier receive: %w", err)
	}

	threads := t.settings.ReadThreads
	if threads < 1 {
		threads = 1
	}
	var interval time.Duration
	if t.settings.ReadThreadHertz > 0 {
		interval = time.Duration(float64(time.Second) / t.settings.ReadThreadHertz)
	}

	for i := 0; i < threads; i++ {
		t.wg.Add(1)
		go func() {
			defer t.wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case dg, ok := <-datagrams:
					if !ok {
						return
					}
					t.handleInbound(ctx, dg)
					if interval > 0 {
						time.Sleep(interval)
					}
				}
			}
		}()
	}
	return nil
}

// Stop signals every receive worker to return at its next suspension
// point and joins them (§5 cancellation/teardown).
func (t *Transport) Stop() {
	if t.cancel != nil {
		t.cancel()
	}
	t.wg.Wait()
	t.carrier.Close()
}

// Send runs the full §4.6 send pipeline over the given modified names:
// send filters, serialization, bandwidth/drop enforcement, buffer
// filters, fragmentation, and carrier transmission. ttl is the
// rebroadcast hop count placed in the outbound header.
func (t *Transport) Send(ctx context.Context, names []string, ttl uint8) (int, error) {
	records := make(map[string]*krecord.Record, len(names))
	for _, n := range names {
		records[n] = t.store.Get(n)
	}

	ctxFilter := &kfilter.FilterContext{
		Originator:  t.originator,
		Clock:       t.store.Clock(),
		CurrentTime: time.Now().UnixNano(),
		Vars:        t.store,
	}
	filtered := t.store.SendChain().Apply(records, ctxFilter)
	if len(filtered) == 0 {
		return 0, nil
	}

	survivingNames := make([]string, 0, len(filtered))
	for _, n := range names {
		if _, ok := filtered[n]; ok {
			survivingNames = append(survivingNames, n)
		}
	}

	return t.sendRecords(ctx, t.originator, survivingNames, filtered, ttl)
}

// sendRecords runs the remainder of the §4.6 send pipeline (encode,
// bandwidth/drop enforcement, buffer filters, fragmentation, carrier
// transmission) over an already-resolved (originator, names, records)
// triple. Send uses it for a local originator after the send filter
// chain; handleInbound's rebroadcast path uses it directly with the
// original packet's originator and the already rebroadcast-filtered
// record map, per §4.6's "rebroadcast packets preserve the original
// originator" invariant.
func (t *Transport) sendRecords(ctx context.Context, originator string, names []string, records map[string]*krecord.Record, ttl uint8) (int, error) {
	h := Header{
		Reduced:     t.settings.SendReducedMessageHeader,
		Originator:  originator,
		Domain:      t.settings.Domain,
		SenderClock: t.store.Clock(),
		TTL:         ttl,
		TimestampNs: time.Now().UnixNano(),
	}

	buf, err := EncodeMessage(h, names, records)
	if err != nil {
		return 0, fmt.Errorf("ktransport: encode message: %w", err)
	}

	if !t.sendMonitor.Allow(len(buf), t.settings.MaxSendBandwidth) {
		t.metrics.PacketDropped("bandwidth")
		return 0, nil
	}
	if t.dropper.Drop() {
		t.metrics.PacketDropped("synthetic")
		return 0, nil
	}

	buf, err = t.store.BufferChain().Encode(buf)
	if err != nil {
		return 0, fmt.Errorf("ktransport: buffer filter encode: %w", err)
	}
	if t.settings.QueueLength > 0 && len(buf) > t.settings.QueueLength {
		return 0, fmt.Errorf("ktransport: encoded message (%d bytes) exceeds queue length %d", len(buf), t.settings.QueueLength)
	}

	sent, err := t.sendFragmented(ctx, buf)
	if err != nil {
		return sent, err
	}
	t.sendMonitor.Record(sent)
	t.metrics.BytesSent(sent)
	return sent, nil
}

func (t *Transport) sendFragmented(ctx context.Context, buf []byte) (int, error) {
	fragSize := t.settings.MaxFragmentSize
	if fragSize <= 0 || len(buf) <= fragSize {
		return t.sendWithRetry(ctx, buf)
	}

	frags, err := kfrag.Fragmenter{}.Split(buf, fragSize)
	if err != nil {
		return 0, fmt.Errorf("ktransport: fragmenting: %w", err)
	}
	t.metrics.FragmentsInFlight(len(frags))

	total := 0
	for _, f := range frags {
		n, err := t.sendWithRetry(ctx, f.Encode())
		total += n
		if err != nil {
			return total, err
		}
		if t.settings.SlackTimeMillis > 0 {
			time.Sleep(time.Duration(t.settings.SlackTimeMillis) * time.Millisecond)
		}
	}
	return total, nil
}

// sendWithRetry classifies syscall errors per §4.6 "Failure
// semantics": EINTR/EWOULDBLOCK are retried up to resend_attempts;
// everything else (including unknown errors) is logged and skipped
// without retry.
func (t *Transport) sendWithRetry(ctx context.Context, buf []byte) (int, error) {
	attempts := t.settings.ResendAttempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for i := 0; i < attempts; i++ {
		n, err := t.carrier.Send(ctx, buf)
		if err == nil {
			return n, nil
		}
		lastErr = err
		if !isRetryable(err) {
			krlog.Warnf("ktransport: send failed (non-retryable): %v", err)
			return n, nil
		}
		krlog.Debugf("ktransport: send attempt %d/%d failed, retrying: %v", i+1, attempts, err)
	}
	krlog.Warnf("ktransport: send failed after %d attempts: %v", attempts, lastErr)
	return 0, nil
}

func isRetryable(err error) bool {
	return errors.Is(err, syscall.EINTR) || errors.Is(err, syscall.EWOULDBLOCK) || errors.Is(err, syscall.EAGAIN)
}

// handleInbound runs the full §4.6 receive pipeline for one datagram:
// fragment reassembly, buffer-filter decode, header parse, the
// loop/domain/deadline/trust drops, per-record merge, and conditional
// rebroadcast.
func (t *Transport) handleInbound(ctx context.Context, dg Datagram) {
	t.recvMonitor.Record(len(dg.Data))
	t.metrics.BytesReceived(len(dg.Data))

	buf := dg.Data
	if kfrag.IsFragment(buf) {
		frag, err := kfrag.Decode(buf)
		if err != nil {
			t.metrics.PacketDropped("malformed-fragment")
			return
		}
		complete, ok := t.reasm.Add(dg.Endpoint, frag, time.Now())
		if !ok {
			return
		}
		buf = complete
	}

	decoded, err := t.store.BufferChain().Decode(buf)
	if err != nil {
		t.metrics.PacketDropped("buffer-filter-mismatch")
		krlog.Warnf("ktransport: buffer filter decode failed, dropping packet: %v", err)
		return
	}

	msg, err := DecodeMessage(decoded, dg.Endpoint, t.settings.Domain)
	if err != nil {
		t.metrics.PacketDropped("malformed-message")
		return
	}
	h := msg.Header

	if h.Originator == t.originator || (h.Reduced && dg.Endpoint == t.carrier.LocalID()) {
		t.metrics.PacketDropped("loop")
		return
	}
	if t.settings.Domain != "" && h.Domain != t.settings.Domain {
		t.metrics.PacketDropped("domain-mismatch")
		return
	}
	if _, banned := t.banned[h.Originator]; banned {
		t.metrics.PacketDropped("banned")
		return
	}
	if len(t.trusted) > 0 {
		if _, ok := t.trusted[h.Originator]; !ok {
			t.metrics.PacketDropped("untrusted")
			return
		}
	}
	if t.settings.DeadlineSeconds > 0 {
		age := time.Since(time.Unix(0, h.TimestampNs))
		if age > time.Duration(t.settings.DeadlineSeconds)*time.Second {
			t.metrics.PacketDropped("deadline")
			return
		}
	}

	lastSeen, hadSeen := t.store.LastSeenClock(h.Originator)
	if hadSeen && h.SenderClock < lastSeen {
		// Stale packet-level clock; individual records still get
		// their own (clock, quality) test in MergeInbound, so this is
		// an optimization, not a hard drop (§4.6 receive step 4).
		krlog.Debugf("ktransport: stale header clock from %s (%d < %d)", h.Originator, h.SenderClock, lastSeen)
	}
	t.store.RecordSeenClock(h.Originator, h.SenderClock)
	t.store.AdvanceClockTo(h.SenderClock)

	rebroadcast := t.settings.RebroadcastTTL > 0 && h.TTL > 0
	nextTTL := h.TTL
	if nextTTL > 0 {
		nextTTL--
	}
	if nextTTL > t.settings.ParticipantRebroadcastTTL {
		nextTTL = t.settings.ParticipantRebroadcastTTL
	}

	toRebroadcast := make(map[string]*krecord.Record)
	for i, name := range msg.Names {
		rec := msg.Records[i]
		if kstore.IsLocalName(name) {
			continue
		}

		ctxFilter := &kfilter.FilterContext{
			Originator:  h.Originator,
			Endpoint:    dg.Endpoint,
			Clock:       h.SenderClock,
			Quality:     rec.Quality(),
			CurrentTime: time.Now().UnixNano(),
			Vars:        t.store,
		}
		filtered := t.store.ReceiveChain().Apply(map[string]*krecord.Record{name: rec}, ctxFilter)
		rec, ok := filtered[name]
		if !ok {
			t.metrics.FilterReject()
			continue
		}

		res := t.store.MergeInbound(name, rec, rec.Quality(), rec.Clock(), rebroadcast)
		if res == krecord.Applied && rebroadcast {
			toRebroadcast[name] = rec
		}
	}

	if rebroadcast && len(toRebroadcast) > 0 {
		rbCtx := &kfilter.FilterContext{Originator: h.Originator, Clock: h.SenderClock, Vars: t.store}
		toRebroadcast = t.store.RebroadcastChain().Apply(toRebroadcast, rbCtx)
		if len(toRebroadcast) > 0 {
			names := make([]string, 0, len(toRebroadcast))
			for n := range toRebroadcast {
				names = append(names, n)
			}
			if _, err := t.sendRecords(ctx, h.Originator, names, toRebroadcast, nextTTL); err != nil {
				krlog.Warnf("ktransport: rebroadcast failed: %v", err)
			}
		}
	}
}
