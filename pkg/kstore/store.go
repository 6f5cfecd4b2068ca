// Package kstore implements the process-wide, thread-safe name→Record
// map described in spec §3.2/§4.2: lookup, last-writer-wins merge,
// modified-set tracking, and a change-signal condition variable.
package kstore

import (
	"strings"
	"sync"
	"sync/atomic"

	"github.com/madara-go/karl/pkg/kfilter"
	"github.com/madara-go/karl/pkg/krecord"
)

// slot is the map value backing a name: the live record pointer plus
// a liveness flag that VariableReference consults after Erase.
type slot struct {
	rec  *krecord.Record
	live bool
}

// Store is the concurrent name→Record map. A single writer lock guards
// the name table, both modified sets, and the store clock; readers
// take the same lock's read side for Get and enumeration, matching the
// single-writer/many-readers discipline of §5.
type Store struct {
	mu    sync.RWMutex
	cond  *sync.Cond
	names map[string]*slot

	globals map[string]struct{}
	locals  map[string]struct{}

	clock atomic.Uint64

	// lastSeenClock tracks, per originator id, the highest store clock
	// observed in a received message header — used by Transport to
	// decide whether an inbound packet is stale before even looking at
	// per-record clocks (§4.6 receive step 4).
	lastSeenClock map[string]uint64

	sendChain        *kfilter.Chain
	receiveChain     *kfilter.Chain
	rebroadcastChain *kfilter.Chain
	bufferChain      *kfilter.BufferChain
}

// New returns an empty Store.
func New() *Store {
	s := &Store{
		names:         make(map[string]*slot),
		globals:       make(map[string]struct{}),
		locals:        make(map[string]struct{}),
		lastSeenClock:    make(map[string]uint64),
		sendChain:        kfilter.NewChain(),
		receiveChain:     kfilter.NewChain(),
		rebroadcastChain: kfilter.NewChain(),
		bufferChain:      kfilter.NewBufferChain(),
	}
	s.cond = sync.NewCond(s.mu.RLocker())
	return s
}

// SendChain returns the filter chain applied to records before they
// are published.
func (s *Store) SendChain() *kfilter.Chain { return s.sendChain }

// ReceiveChain returns the filter chain applied to records as they
// arrive from the transport layer.
func (s *Store) ReceiveChain() *kfilter.Chain { return s.receiveChain }

// RebroadcastChain returns the filter chain applied when an unmodified
// inbound record is forwarded on to other peers.
func (s *Store) RebroadcastChain() *kfilter.Chain { return s.rebroadcastChain }

// BufferChain returns the ordered buffer-filter chain (compression,
// encryption) shared by all three directions.
func (s *Store) BufferChain() *kfilter.BufferChain { return s.bufferChain }

// IsLocalName reports whether name begins with '.' and is therefore
// never eligible for transmission.
func IsLocalName(name string) bool {
	return strings.HasPrefix(name, ".")
}

func (s *Store) slotFor(name string) *slot {
	sl, ok := s.names[name]
	if !ok {
		sl = &slot{rec: krecord.New(), live: true}
		s.names[name] = sl
	}
	return sl
}

// Get returns the current record for name, or an Empty record if name
// has never been set.
func (s *Store) Get(name string) *krecord.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if sl, ok := s.names[name]; ok && sl.live {
		return sl.rec.Clone()
	}
	return krecord.New()
}

// Set assigns value to name as a local write: it advances the store
// clock, stamps the record with the new clock, marks name modified
// (in the locals or globals set per its leading '.'), and signals the
// change condition.
func (s *Store) Set(name string, value *krecord.Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setLocked(name, value)
	s.cond.Broadcast()
}

func (s *Store) setLocked(name string, value *krecord.Record) {
	sl := s.slotFor(name)
	newClock := s.clock.Add(1)
	sl.rec.SetValue(value)
	sl.rec.SetClock(newClock)
	if q := value.WriteQuality(); q != 0 {
		sl.rec.SetQuality(q)
	}
	sl.live = true
	s.markModifiedLocked(name)
}

func (s *Store) markModifiedLocked(name string) {
	if IsLocalName(name) {
		s.locals[name] = struct{}{}
	} else {
		s.globals[name] = struct{}{}
	}
}

// Clock returns the current store-wide clock.
func (s *Store) Clock() uint64 { return s.clock.Load() }

// AdvanceClockTo bumps the store clock to at least c, as happens on
// receipt of any message whose header clock exceeds the local clock.
func (s *Store) AdvanceClockTo(c uint64) {
	for {
		cur := s.clock.Load()
		if c <= cur {
			return
		}
		if s.clock.CompareAndSwap(cur, c) {
			return
		}
	}
}

// Erase removes name from the store. Any VariableReference obtained
// for name becomes inert: subsequent reads return Empty.
func (s *Store) Erase(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sl, ok := s.names[name]; ok {
		sl.live = false
	}
	delete(s.names, name)
	delete(s.globals, name)
	delete(s.locals, name)
}

// WaitForChange blocks until the modified set has grown since the
// last call, or returns immediately if it is already non-empty.
func (s *Store) WaitForChange() {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for len(s.globals) == 0 && len(s.locals) == 0 {
		s.cond.Wait()
	}
}

// Broadcast wakes every WaitForChange waiter without requiring a
// modified-set change, for callers that need to re-check an external
// condition on a timer as well.
func (s *Store) Broadcast() {
	s.mu.RLock()
	defer s.mu.RUnlock()
	s.cond.Broadcast()
}
