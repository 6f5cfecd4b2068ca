package karl

import "github.com/madara-go/karl/pkg/krecord"

// node is the tagged-variant expression tree node (§3.3). A compiled
// Expression holds an immutable node; evaluating it never mutates the
// tree.
type node interface {
	eval(ev *evalState) (*krecord.Record, error)
}

// Expression is a compiled, immutable KaRL expression, safe to
// evaluate repeatedly and concurrently from multiple goroutines (the
// tree itself is read-only; all mutable state lives in evalState).
type Expression struct {
	source string
	root   node
}

// Source returns the original text this Expression was compiled from.
func (e *Expression) Source() string { return e.source }

type intLit struct{ v int64 }
type doubleLit struct{ v float64 }
type stringLit struct{ v string }
type arrayLit struct{ elems []node }

type varRef struct {
	// name is static unless expandParts is non-nil, in which case the
	// name is rebuilt at evaluation time by expanding `{...}` runtime
	// variable references against the store (§3.3 "Variable names
	// inside {...} are expanded at evaluation time").
	name        string
	expandParts []expandPart
}

// expandPart is one literal-or-reference piece of a name containing
// `{...}` expansions, e.g. `robot.{.id}.position` becomes
// [lit("robot."), ref(".id"), lit(".position")].
type expandPart struct {
	lit bool
	s   string
	ref node
}

type sysCall struct {
	name string
	args []node
}

type unary struct {
	op      string // "!", "neg", "++pre", "--pre", "++post", "--post"
	operand node
}

type index struct {
	target node
	idx    node
}

type binary struct {
	op          string
	left, right node
}

// seq models the three sequencing/implication n-ary operators: `;`
// (both, return right), `,` (both, return left), `;>` (return right,
// alias of `;` kept distinct for clarity), and `=>` (implies).
type seq struct {
	op    string
	items []node
}

type forLoop struct {
	varName   string
	start     node
	end       node
	step      node // nil means step 1
	inclusive bool
	body      node
}

type funcCall struct {
	name string
	args []node
}

type assign struct {
	target   node // varRef or index
	compound string // "", "+", "-", "*", "/", "%" for compound assignment
	value    node
}
