package kstore

import "github.com/madara-go/karl/pkg/krecord"

// MergeInbound applies an inbound (originator, quality, clock)-stamped
// record to name under last-writer-wins (§4.1 Apply / §4.2 merge
// protocol). If requestRebroadcast is true and the record was applied,
// name is also added to the modified set so a subsequent
// ApplyModified/publish cycle will re-emit it; otherwise only the
// change signal fires.
func (s *Store) MergeInbound(name string, incoming *krecord.Record, quality uint32, clock uint64, requestRebroadcast bool) krecord.ApplyResult {
	s.mu.Lock()
	sl := s.slotFor(name)
	res := incoming.Apply(sl.rec, name, quality, clock)
	if res == krecord.Applied {
		sl.live = true
		if requestRebroadcast {
			s.markModifiedLocked(name)
		}
	}
	s.mu.Unlock()

	if res == krecord.Applied {
		s.cond.Broadcast()
	}
	return res
}

// LastSeenClock returns the highest store clock previously observed
// from originator, and whether one has been recorded at all.
func (s *Store) LastSeenClock(originator string) (uint64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.lastSeenClock[originator]
	return c, ok
}

// RecordSeenClock updates the highest store clock observed from
// originator if c is newer.
func (s *Store) RecordSeenClock(originator string, c uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cur, ok := s.lastSeenClock[originator]; !ok || c > cur {
		s.lastSeenClock[originator] = c
	}
}
