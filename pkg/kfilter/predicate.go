package kfilter

import (
	"fmt"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/madara-go/karl/internal/krlog"
	"github.com/madara-go/karl/pkg/krecord"
)

// PredicateFilter is a RecordFilter that keeps a record only if a
// compiled boolean expression evaluates true against an environment
// built from the record's own fields plus any EnvVars read from the
// store. If evaluation fails, the record is kept and a warning is
// logged. Grounded on the rule-requirement compile/run pattern in
// internal/tagger/classifyJob.go (expr.Compile(..., expr.AsBool()),
// expr.Run(program, env)) — this is the one place the expr-lang
// library with its general boolean/arithmetic grammar is a better fit
// than pkg/karl's own KaRL evaluator, since a predicate filter has no
// need for KaRL's sequencing, system calls, or store side effects.
type PredicateFilter struct {
	program *vm.Program
	envVars []string
}

// NewPredicateFilter compiles expression, which may reference `value`,
// `clock`, `quality`, `name`, and any name listed in envVars (read from
// the store at filter time).
func NewPredicateFilter(expression string, envVars ...string) (*PredicateFilter, error) {
	env := map[string]any{
		"value":   0.0,
		"clock":   uint64(0),
		"quality": uint32(0),
		"name":    "",
	}
	for _, v := range envVars {
		env[v] = 0.0
	}
	program, err := expr.Compile(expression, expr.AsBool(), expr.Env(env))
	if err != nil {
		return nil, fmt.Errorf("kfilter: compile predicate: %w", err)
	}
	return &PredicateFilter{program: program, envVars: envVars}, nil
}

// Filter is the RecordFilter value to register on a Chain.
func (p *PredicateFilter) Filter(rec *krecord.Record, name string, ctx *FilterContext) *krecord.Record {
	env := map[string]any{
		"value":   rec.Float(),
		"clock":   rec.Clock(),
		"quality": rec.Quality(),
		"name":    name,
	}
	if ctx != nil && ctx.Vars != nil {
		for _, v := range p.envVars {
			env[v] = ctx.Vars.Get(v).Float()
		}
	}

	keep, err := expr.Run(p.program, env)
	if err != nil {
		krlog.Warnf("kfilter: predicate evaluation failed for %s: %v", name, err)
		return rec
	}
	if ok, _ := keep.(bool); ok {
		return rec
	}
	return krecord.New()
}
