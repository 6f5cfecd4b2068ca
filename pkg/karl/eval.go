package karl

import (
	"fmt"
	"strings"

	"github.com/madara-go/karl/pkg/krecord"
	"github.com/madara-go/karl/pkg/kstore"
)

// Settings controls one evaluation (§4.3/§5): whether assignments to
// global names are tracked in the modified set, and the polling rate
// and ceiling used by Wait.
type Settings struct {
	// TreatGlobalsAsLocals makes every assignment during this
	// evaluation a local write (never added to the globals modified
	// set), letting a function opt out of triggering a publish.
	TreatGlobalsAsLocals bool
	PollFrequencyHz      float64
	MaxWaitSeconds       float64
}

// evalState is the mutable per-evaluation context threaded through
// node.eval: the store, the owning Evaluator (and through it the
// function table), and the settings of this evaluation.
type evalState struct {
	store    *kstore.Store
	eval     *Evaluator
	settings Settings
}

func (ev *evalState) varRecord(name string) *kstore.VariableReference {
	return ev.store.GetRef(name)
}

func (ev *evalState) setVar(name string, v *krecord.Record) {
	if ev.settings.TreatGlobalsAsLocals && !kstore.IsLocalName(name) {
		name = "." + name
	}
	ev.store.Set(name, v)
}

// --- literals ---

func (n *intLit) eval(ev *evalState) (*krecord.Record, error)    { return krecord.NewInteger(n.v), nil }
func (n *doubleLit) eval(ev *evalState) (*krecord.Record, error) { return krecord.NewDouble(n.v), nil }
func (n *stringLit) eval(ev *evalState) (*krecord.Record, error) { return krecord.NewString(n.v), nil }

func (n *arrayLit) eval(ev *evalState) (*krecord.Record, error) {
	allInt := true
	ints := make([]int64, len(n.elems))
	doubles := make([]float64, len(n.elems))
	for i, e := range n.elems {
		v, err := e.eval(ev)
		if err != nil {
			return nil, err
		}
		doubles[i] = v.Float()
		if v.Type() == krecord.Double || v.Type() == krecord.DoubleArray {
			allInt = false
		}
		ints[i] = int64(doubles[i])
	}
	if allInt {
		return krecord.NewIntegerArray(ints), nil
	}
	return krecord.NewDoubleArray(doubles), nil
}

// --- variable reference / expansion ---

func (n *varRef) resolveName(ev *evalState) (string, error) {
	if n.expandParts == nil {
		return n.name, nil
	}
	var b strings.Builder
	for _, part := range n.expandParts {
		if part.lit {
			b.WriteString(part.s)
			continue
		}
		v, err := part.ref.eval(ev)
		if err != nil {
			return "", err
		}
		b.WriteString(v.ToString(""))
	}
	return b.String(), nil
}

func (n *varRef) eval(ev *evalState) (*krecord.Record, error) {
	name, err := n.resolveName(ev)
	if err != nil {
		return nil, err
	}
	return ev.store.Get(name), nil
}

// --- system calls ---

func (n *sysCall) eval(ev *evalState) (*krecord.Record, error) {
	return ev.eval.callSystem(ev, n.name, n.args)
}

// --- unary ---

func (n *unary) eval(ev *evalState) (*krecord.Record, error) {
	switch n.op {
	case "!":
		v, err := n.operand.eval(ev)
		if err != nil {
			return nil, err
		}
		if v.IsTrue() {
			return krecord.NewInteger(0), nil
		}
		return krecord.NewInteger(1), nil
	case "neg":
		v, err := n.operand.eval(ev)
		if err != nil {
			return nil, err
		}
		return krecord.Neg(v), nil
	case "++pre", "--pre", "++post", "--post":
		return evalIncDec(ev, n.operand, n.op)
	}
	return nil, fmt.Errorf("karl: unknown unary operator %q", n.op)
}

func evalIncDec(ev *evalState, operand node, op string) (*krecord.Record, error) {
	delta := int64(1)
	if op == "--pre" || op == "--post" {
		delta = -1
	}

	cur, err := operand.eval(ev)
	if err != nil {
		return nil, err
	}
	next := krecord.Add(cur, krecord.NewInteger(delta))

	switch target := operand.(type) {
	case *varRef:
		name, err := target.resolveName(ev)
		if err != nil {
			return nil, err
		}
		ev.setVar(name, next)
	case *index:
		if err := assignIndex(ev, target, next); err != nil {
			return nil, err
		}
	default:
		// literal operand: increment yields a value without mutating anything.
	}

	if op == "++pre" || op == "--pre" {
		return next, nil
	}
	return cur, nil
}

// --- indexing ---

func (n *index) eval(ev *evalState) (*krecord.Record, error) {
	ref, ok := n.target.(*varRef)
	if !ok {
		return nil, fmt.Errorf("karl: index target must be a variable")
	}
	name, err := ref.resolveName(ev)
	if err != nil {
		return nil, err
	}
	idx, err := n.idx.eval(ev)
	if err != nil {
		return nil, err
	}
	rec := ev.store.Get(name)
	return krecord.NewDouble(rec.Index(int(idx.ToInteger()))), nil
}

func assignIndex(ev *evalState, n *index, v *krecord.Record) error {
	ref, ok := n.target.(*varRef)
	if !ok {
		return fmt.Errorf("karl: index target must be a variable")
	}
	name, err := ref.resolveName(ev)
	if err != nil {
		return err
	}
	idx, err := n.idx.eval(ev)
	if err != nil {
		return err
	}
	r := ev.varRecord(name)
	cur := r.Get()
	cur.SetIndex(int(idx.ToInteger()), v.Float())
	ev.setVar(name, cur)
	return nil
}

// --- binary ---

func (n *binary) eval(ev *evalState) (*krecord.Record, error) {
	if n.op == "&&" {
		l, err := n.left.eval(ev)
		if err != nil {
			return nil, err
		}
		if !l.IsTrue() {
			return krecord.NewInteger(0), nil
		}
		r, err := n.right.eval(ev)
		if err != nil {
			return nil, err
		}
		return boolRecord(r.IsTrue()), nil
	}
	if n.op == "||" {
		l, err := n.left.eval(ev)
		if err != nil {
			return nil, err
		}
		if l.IsTrue() {
			return krecord.NewInteger(1), nil
		}
		r, err := n.right.eval(ev)
		if err != nil {
			return nil, err
		}
		return boolRecord(r.IsTrue()), nil
	}

	l, err := n.left.eval(ev)
	if err != nil {
		return nil, err
	}
	r, err := n.right.eval(ev)
	if err != nil {
		return nil, err
	}

	switch n.op {
	case "+":
		return krecord.Add(l, r), nil
	case "-":
		return krecord.Sub(l, r), nil
	case "*":
		return krecord.Mul(l, r), nil
	case "/":
		return krecord.Div(l, r), nil
	case "%":
		return krecord.Mod(l, r), nil
	case "==":
		return boolRecord(krecord.Equal(l, r)), nil
	case "!=":
		return boolRecord(krecord.NotEqual(l, r)), nil
	case "<":
		return boolRecord(krecord.Less(l, r)), nil
	case "<=":
		return boolRecord(krecord.LessOrEqual(l, r)), nil
	case ">":
		return boolRecord(krecord.Greater(l, r)), nil
	case ">=":
		return boolRecord(krecord.GreaterOrEqual(l, r)), nil
	}
	return nil, fmt.Errorf("karl: unknown binary operator %q", n.op)
}

func boolRecord(b bool) *krecord.Record {
	if b {
		return krecord.NewInteger(1)
	}
	return krecord.NewInteger(0)
}

// --- sequencing / implication ---

func (n *seq) eval(ev *evalState) (*krecord.Record, error) {
	switch n.op {
	case ",":
		// evaluate both, return left
		left, err := n.items[0].eval(ev)
		if err != nil {
			return nil, err
		}
		if _, err := n.items[1].eval(ev); err != nil {
			return nil, err
		}
		return left, nil
	case ";", ";>":
		// evaluate both, return right
		if _, err := n.items[0].eval(ev); err != nil {
			return nil, err
		}
		return n.items[1].eval(ev)
	case "=>":
		cond, err := n.items[0].eval(ev)
		if err != nil {
			return nil, err
		}
		if cond.IsTrue() {
			if _, err := n.items[1].eval(ev); err != nil {
				return nil, err
			}
		}
		return boolRecord(cond.IsTrue()), nil
	}
	return nil, fmt.Errorf("karl: unknown sequencing operator %q", n.op)
}

// --- for-loop ---

func (n *forLoop) eval(ev *evalState) (*krecord.Record, error) {
	start, err := n.start.eval(ev)
	if err != nil {
		return nil, err
	}
	end, err := n.end.eval(ev)
	if err != nil {
		return nil, err
	}
	step := int64(1)
	if n.step != nil {
		s, err := n.step.eval(ev)
		if err != nil {
			return nil, err
		}
		step = s.ToInteger()
	}
	if step == 0 {
		return nil, fmt.Errorf("karl: for-loop step cannot be zero")
	}

	result := krecord.New()
	i := start.ToInteger()
	endV := end.ToInteger()
	for {
		if step > 0 {
			if n.inclusive && i > endV {
				break
			}
			if !n.inclusive && i >= endV {
				break
			}
		} else {
			if n.inclusive && i < endV {
				break
			}
			if !n.inclusive && i <= endV {
				break
			}
		}

		ev.setVar(n.varName, krecord.NewInteger(i))
		result, err = n.body.eval(ev)
		if err != nil {
			return nil, err
		}
		i += step
	}
	return result, nil
}

// --- assignment ---

func (n *assign) eval(ev *evalState) (*krecord.Record, error) {
	value, err := n.value.eval(ev)
	if err != nil {
		return nil, err
	}

	if n.compound != "" {
		cur, err := n.target.eval(ev)
		if err != nil {
			return nil, err
		}
		switch n.compound {
		case "+":
			value = krecord.Add(cur, value)
		case "-":
			value = krecord.Sub(cur, value)
		case "*":
			value = krecord.Mul(cur, value)
		case "/":
			value = krecord.Div(cur, value)
		case "%":
			value = krecord.Mod(cur, value)
		}
	}

	switch target := n.target.(type) {
	case *varRef:
		name, err := target.resolveName(ev)
		if err != nil {
			return nil, err
		}
		ev.setVar(name, value)
	case *index:
		if err := assignIndex(ev, target, value); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("karl: invalid assignment target")
	}
	return value, nil
}

// --- function call ---

func (n *funcCall) eval(ev *evalState) (*krecord.Record, error) {
	return ev.eval.callFunction(ev, n.name, n.args)
}
