// Package kfilter implements the send/receive/rebroadcast record
// filter chains and the ordered buffer-filter chain described in
// spec §4.4, plus a handful of built-in filters grounded on
// original_source/include/madara/filters/.
package kfilter

import "github.com/madara-go/karl/pkg/krecord"

// Variables is the slice of kstore.Store a filter needs: reading local
// state (a predicate filter testing a stored threshold) and writing it
// (PeerDiscovery recording observed originators). kstore.Store
// satisfies this without either package importing the other.
type Variables interface {
	Get(name string) *krecord.Record
	Set(name string, value *krecord.Record)
	Erase(name string)
}

// FilterContext carries per-message metadata into a filter invocation:
// the message's originator id, its header clock and quality, and a
// handle onto the local store.
type FilterContext struct {
	Originator  string
	Endpoint    string
	Clock       uint64
	Quality     uint32
	CurrentTime int64
	Vars        Variables
}

// RecordFilter transforms a single named record crossing a chain.
// Returning an Empty record removes the entry from the batch, matching
// the "empty-to-drop" convention original_source uses throughout its
// filter API instead of a separate boolean.
type RecordFilter func(rec *krecord.Record, name string, ctx *FilterContext) *krecord.Record

// AggregateFilter runs once per message over the whole surviving
// batch, after every per-type RecordFilter has run, and may add,
// remove, or rewrite entries as a group.
type AggregateFilter func(records map[string]*krecord.Record, ctx *FilterContext)

// Chain is one direction's filter pipeline: a per-type table of record
// filters (plus a krecord.Any bucket that runs for every type) and an
// ordered list of aggregate filters.
type Chain struct {
	byType    map[krecord.Type][]RecordFilter
	aggregate []AggregateFilter
}

// NewChain returns an empty Chain.
func NewChain() *Chain {
	return &Chain{byType: make(map[krecord.Type][]RecordFilter)}
}

// AddRecordFilter registers f for records of type t, or for every type
// if t is krecord.Any.
func (c *Chain) AddRecordFilter(t krecord.Type, f RecordFilter) {
	c.byType[t] = append(c.byType[t], f)
}

// AddAggregateFilter appends f to the aggregate-filter list.
func (c *Chain) AddAggregateFilter(f AggregateFilter) {
	c.aggregate = append(c.aggregate, f)
}

// Apply runs the chain over records: every per-type filter (specific
// type first, then the krecord.Any bucket), dropping entries a filter
// empties, then every aggregate filter over the surviving batch.
func (c *Chain) Apply(records map[string]*krecord.Record, ctx *FilterContext) map[string]*krecord.Record {
	out := make(map[string]*krecord.Record, len(records))
	for name, rec := range records {
		cur := rec
		for _, f := range c.byType[cur.Type()] {
			cur = f(cur, name, ctx)
			if cur.IsEmpty() {
				break
			}
		}
		if !cur.IsEmpty() {
			for _, f := range c.byType[krecord.Any] {
				cur = f(cur, name, ctx)
				if cur.IsEmpty() {
					break
				}
			}
		}
		if !cur.IsEmpty() {
			out[name] = cur
		}
	}
	for _, f := range c.aggregate {
		f(out, ctx)
	}
	return out
}
