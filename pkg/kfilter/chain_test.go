package kfilter

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/madara-go/karl/pkg/krecord"
)

// fakeVars is a minimal Variables implementation for filter tests that
// write back into the store (PeerDiscovery, EndpointDiscovery,
// PredicateFilter's EnvVars).
type fakeVars struct {
	m map[string]*krecord.Record
}

func newFakeVars() *fakeVars { return &fakeVars{m: make(map[string]*krecord.Record)} }

func (f *fakeVars) Get(name string) *krecord.Record {
	if r, ok := f.m[name]; ok {
		return r
	}
	return krecord.New()
}
func (f *fakeVars) Set(name string, value *krecord.Record) { f.m[name] = value }
func (f *fakeVars) Erase(name string)                      { delete(f.m, name) }

func TestChainRecordFilterDropsOnEmpty(t *testing.T) {
	c := NewChain()
	pf := PrefixFilter{Prefix: ".", Keep: false}
	c.AddRecordFilter(krecord.Any, pf.Filter)

	records := map[string]*krecord.Record{
		"public":  krecord.NewInteger(1),
		".secret": krecord.NewInteger(2),
	}
	out := c.Apply(records, &FilterContext{Vars: newFakeVars()})
	assert.Contains(t, out, "public")
	assert.NotContains(t, out, ".secret")
}

func TestChainTypeSpecificBeforeAnyBucket(t *testing.T) {
	c := NewChain()
	var order []string
	c.AddRecordFilter(krecord.Integer, func(rec *krecord.Record, name string, ctx *FilterContext) *krecord.Record {
		order = append(order, "integer")
		return rec
	})
	c.AddRecordFilter(krecord.Any, func(rec *krecord.Record, name string, ctx *FilterContext) *krecord.Record {
		order = append(order, "any")
		return rec
	})

	out := c.Apply(map[string]*krecord.Record{"x": krecord.NewInteger(5)}, &FilterContext{Vars: newFakeVars()})
	require.Contains(t, out, "x")
	assert.Equal(t, []string{"integer", "any"}, order)
}

func TestChainAggregateFilterRunsAfterRecordFilters(t *testing.T) {
	c := NewChain()
	c.AddAggregateFilter(func(records map[string]*krecord.Record, ctx *FilterContext) {
		records["injected"] = krecord.NewInteger(42)
		delete(records, "dropped-by-aggregate")
	})

	out := c.Apply(map[string]*krecord.Record{
		"kept":                 krecord.NewInteger(1),
		"dropped-by-aggregate": krecord.NewInteger(2),
	}, &FilterContext{Vars: newFakeVars()})

	assert.Contains(t, out, "kept")
	assert.Contains(t, out, "injected")
	assert.NotContains(t, out, "dropped-by-aggregate")
}

func TestPrefixFilterKeepAndDrop(t *testing.T) {
	keep := PrefixFilter{Prefix: "domain.", Keep: true}
	assert.False(t, keep.Filter(krecord.NewInteger(1), "domain.x", nil).IsEmpty())
	assert.True(t, keep.Filter(krecord.NewInteger(1), "other", nil).IsEmpty())

	drop := PrefixFilter{Prefix: ".", Keep: false}
	assert.True(t, drop.Filter(krecord.NewInteger(1), ".local", nil).IsEmpty())
	assert.False(t, drop.Filter(krecord.NewInteger(1), "global", nil).IsEmpty())
}

func TestCounterFilterTalliesPacketsAndBytes(t *testing.T) {
	counter := NewCounterFilter()
	ctx := &FilterContext{}
	counter.Filter(map[string]*krecord.Record{"a": krecord.NewInteger(1)}, ctx)
	counter.Filter(map[string]*krecord.Record{"b": krecord.NewInteger(2), "c": krecord.NewInteger(3)}, ctx)

	assert.EqualValues(t, 2, counter.Count())
	assert.Greater(t, counter.Bytes(), int64(0))
}

func TestPeerDiscoveryRecordsAndEvicts(t *testing.T) {
	vars := newFakeVars()
	pd := NewPeerDiscovery("domain.peers.", 10*time.Millisecond)

	ctx := &FilterContext{Originator: "p0", CurrentTime: 1000, Vars: vars}
	pd.Filter(map[string]*krecord.Record{}, ctx)
	assert.Contains(t, pd.Peers(), "p0")
	assert.False(t, vars.Get("domain.peers.p0").IsEmpty())

	// advance far past the heartbeat with a different originator so
	// lastClear actually changes and the sweep runs.
	ctx2 := &FilterContext{Originator: "p1", CurrentTime: 1000 + int64(20*time.Millisecond), Vars: vars}
	pd.Filter(map[string]*krecord.Record{}, ctx2)

	peers := pd.Peers()
	assert.Contains(t, peers, "p1")
	assert.NotContains(t, peers, "p0")
	assert.True(t, vars.Get("domain.peers.p0").IsEmpty())
}

func TestEndpointDiscoveryIgnoresMissingEndpoint(t *testing.T) {
	vars := newFakeVars()
	ed := NewEndpointDiscovery("domain.endpoints.", 0)
	ed.Filter(map[string]*krecord.Record{}, &FilterContext{Vars: vars})
	assert.Empty(t, vars.m)

	ed.Filter(map[string]*krecord.Record{}, &FilterContext{Endpoint: "10.0.0.1:9000", CurrentTime: 5, Vars: vars})
	assert.False(t, vars.Get("domain.endpoints.10.0.0.1:9000").IsEmpty())
}

func TestPredicateFilterKeepsAndDrops(t *testing.T) {
	pf, err := NewPredicateFilter("quality >= 5")
	require.NoError(t, err)

	highQuality := krecord.NewInteger(1)
	highQuality.SetQuality(10)
	out := pf.Filter(highQuality, "v", &FilterContext{Vars: newFakeVars()})
	assert.False(t, out.IsEmpty())

	lowQuality := krecord.NewInteger(1)
	lowQuality.SetQuality(1)
	out = pf.Filter(lowQuality, "v", &FilterContext{Vars: newFakeVars()})
	assert.True(t, out.IsEmpty())
}

func TestPredicateFilterReadsEnvVarsFromStore(t *testing.T) {
	pf, err := NewPredicateFilter("value > threshold", "threshold")
	require.NoError(t, err)

	vars := newFakeVars()
	vars.Set("threshold", krecord.NewDouble(100))

	rec := krecord.NewDouble(150)
	out := pf.Filter(rec, "v", &FilterContext{Vars: vars})
	assert.False(t, out.IsEmpty())

	rec2 := krecord.NewDouble(50)
	out2 := pf.Filter(rec2, "v", &FilterContext{Vars: vars})
	assert.True(t, out2.IsEmpty())
}

func TestPredicateFilterCompileError(t *testing.T) {
	_, err := NewPredicateFilter("this is not ( valid")
	assert.Error(t, err)
}
