package kfilter

import (
	"sync/atomic"
	"time"

	"github.com/madara-go/karl/pkg/krecord"
)

// CounterFilter is an AggregateFilter that tallies packets and bytes
// passing through a chain, reporting throughput — grounded on
// original_source's CounterFilter (packets_/first_message_/
// last_message_/get_throughput). The counts are read through Count,
// Bytes and Throughput; the Prometheus collector in
// pkg/ktransport/metrics does not export them.
type CounterFilter struct {
	packets atomic.Int64
	bytes   atomic.Int64
	first   atomic.Int64
	last    atomic.Int64
}

// NewCounterFilter returns an unstarted CounterFilter.
func NewCounterFilter() *CounterFilter { return &CounterFilter{} }

// Filter is the AggregateFilter value to register on a Chain via
// chain.AddAggregateFilter(counter.Filter).
func (c *CounterFilter) Filter(records map[string]*krecord.Record, ctx *FilterContext) {
	now := time.Now().UnixNano()
	if c.first.Load() == 0 {
		c.first.Store(now)
	}
	c.last.Store(now)
	c.packets.Add(1)

	size := int64(0)
	for name, rec := range records {
		size += int64(rec.EncodedLen(name))
	}
	c.bytes.Add(size)
}

// Count returns the number of messages counted so far.
func (c *CounterFilter) Count() int64 { return c.packets.Load() }

// Bytes returns the total record payload size counted so far.
func (c *CounterFilter) Bytes() int64 { return c.bytes.Load() }

// Throughput returns packets/second measured between the first and
// most recent counted message.
func (c *CounterFilter) Throughput() float64 {
	elapsed := c.last.Load() - c.first.Load()
	if elapsed <= 0 {
		return 0
	}
	return float64(c.packets.Load()) / (float64(elapsed) / float64(time.Second))
}
