package kfilter

import (
	"sync"
	"time"

	"github.com/madara-go/karl/pkg/krecord"

	"github.com/madara-go/karl/internal/krlog"
)

// EndpointDiscovery is an AggregateFilter that records each message's
// network endpoint (as opposed to PeerDiscovery's logical originator
// id) and evicts ones silent past HeartBeat — grounded on
// original_source's EndpointDiscovery.cpp.
type EndpointDiscovery struct {
	Prefix    string
	HeartBeat time.Duration

	mu        sync.Mutex
	lastClear int64
	seen      map[string]int64
}

// NewEndpointDiscovery returns an EndpointDiscovery recording into
// names prefix+endpoint, evicting endpoints silent past heartBeat
// (zero disables eviction).
func NewEndpointDiscovery(prefix string, heartBeat time.Duration) *EndpointDiscovery {
	return &EndpointDiscovery{Prefix: prefix, HeartBeat: heartBeat, seen: make(map[string]int64)}
}

// Filter is the AggregateFilter value to register on a Chain.
func (e *EndpointDiscovery) Filter(records map[string]*krecord.Record, ctx *FilterContext) {
	if ctx == nil || ctx.Endpoint == "" {
		return
	}
	krlog.Debugf("EndpointDiscovery: processing update with %d records", len(records))

	curTime := ctx.CurrentTime
	if curTime == 0 {
		curTime = time.Now().UnixNano()
	}

	e.mu.Lock()
	e.seen[ctx.Endpoint] = curTime
	ctx.Vars.Set(e.Prefix+ctx.Endpoint, krecord.NewInteger(curTime))

	if e.HeartBeat > 0 && e.lastClear != curTime {
		for endpoint, last := range e.seen {
			if time.Duration(curTime-last) > e.HeartBeat {
				krlog.Debugf("EndpointDiscovery: erasing endpoint %s", endpoint)
				delete(e.seen, endpoint)
				ctx.Vars.Erase(e.Prefix + endpoint)
			}
		}
		e.lastClear = curTime
	}
	e.mu.Unlock()
}
