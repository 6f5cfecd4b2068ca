package kfilter

import (
	"sync"
	"time"

	"github.com/madara-go/karl/pkg/krecord"
)

// PeerDiscovery is an AggregateFilter that records each message's
// originator and last-seen timestamp under Prefix+originator, evicting
// entries that haven't been heard from within HeartBeat — grounded on
// original_source's PeerDiscovery.cpp (peers_.set(originator,
// cur_time) followed by a heartbeat sweep over peers_.keys()).
type PeerDiscovery struct {
	Prefix    string
	HeartBeat time.Duration

	mu        sync.Mutex
	lastClear int64
	seen      map[string]int64
}

// NewPeerDiscovery returns a PeerDiscovery recording into names
// prefix+originator, evicting peers silent for longer than heartBeat
// (zero disables eviction).
func NewPeerDiscovery(prefix string, heartBeat time.Duration) *PeerDiscovery {
	return &PeerDiscovery{Prefix: prefix, HeartBeat: heartBeat, seen: make(map[string]int64)}
}

// Filter is the AggregateFilter value to register on a Chain.
func (p *PeerDiscovery) Filter(records map[string]*krecord.Record, ctx *FilterContext) {
	if ctx == nil || ctx.Originator == "" {
		return
	}
	curTime := ctx.CurrentTime
	if curTime == 0 {
		curTime = time.Now().UnixNano()
	}

	p.mu.Lock()
	p.seen[ctx.Originator] = curTime
	ctx.Vars.Set(p.Prefix+ctx.Originator, krecord.NewInteger(curTime))

	if p.HeartBeat > 0 && p.lastClear != curTime {
		p.lastClear = curTime
		for originator, last := range p.seen {
			if time.Duration(curTime-last) > p.HeartBeat {
				delete(p.seen, originator)
				ctx.Vars.Erase(p.Prefix + originator)
			}
		}
	}
	p.mu.Unlock()
}

// Peers returns the originators currently considered alive.
func (p *PeerDiscovery) Peers() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.seen))
	for originator := range p.seen {
		out = append(out, originator)
	}
	return out
}
