package kfilter

import (
	"strings"

	"github.com/madara-go/karl/pkg/krecord"
)

// PrefixFilter drops (Keep=false) or keeps (Keep=true) records whose
// name starts with Prefix, grounded on original_source's
// DynamicPrefixFilter/PrefixIntConvert family of name-prefix-gated
// filters.
type PrefixFilter struct {
	Prefix string
	Keep   bool
}

// Filter is the RecordFilter value to register on a Chain.
func (p PrefixFilter) Filter(rec *krecord.Record, name string, ctx *FilterContext) *krecord.Record {
	matches := strings.HasPrefix(name, p.Prefix)
	if matches == p.Keep {
		return rec
	}
	return krecord.New()
}
