package kstore

import "github.com/madara-go/karl/pkg/krecord"

// VariableReference is a stable handle into a store slot, letting hot
// paths skip the map lookup on every access. It remains valid for the
// lifetime of the store unless the variable is erased, at which point
// it goes inert: reads return Empty and writes are silently dropped.
type VariableReference struct {
	store *Store
	name  string
	sl    *slot
}

// GetRef returns a VariableReference for name, creating the backing
// slot (as Empty/Uncreated) if it does not exist yet.
func (s *Store) GetRef(name string) *VariableReference {
	s.mu.Lock()
	defer s.mu.Unlock()
	return &VariableReference{store: s, name: name, sl: s.slotFor(name)}
}

// Name returns the variable name this reference was obtained for.
func (r *VariableReference) Name() string { return r.name }

// Get returns the current value, or Empty if the slot has been erased.
func (r *VariableReference) Get() *krecord.Record {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	if !r.sl.live {
		return krecord.New()
	}
	return r.sl.rec.Clone()
}

// Set writes value through the reference exactly as Store.Set would,
// a no-op if the reference has gone inert.
func (r *VariableReference) Set(value *krecord.Record) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if !r.sl.live {
		return
	}
	r.store.setLocked(r.name, value)
	r.store.cond.Broadcast()
}
