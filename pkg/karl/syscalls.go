package karl

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/madara-go/karl/internal/krlog"
	"github.com/madara-go/karl/pkg/krecord"
)

// callSystem dispatches a `#name(...)` system call (§4.3/§6.3),
// supplemented from original_source's Variables.cpp system-call table.
func (e *Evaluator) callSystem(ev *evalState, name string, argNodes []node) (*krecord.Record, error) {
	args := make([]*krecord.Record, len(argNodes))
	for i, a := range argNodes {
		v, err := a.eval(ev)
		if err != nil {
			return nil, err
		}
		args[i] = v
	}

	switch name {
	case "print":
		return sysPrint(ev, args)
	case "size":
		return sysSize(args)
	case "get_clock":
		return krecord.NewInteger(int64(ev.store.Clock())), nil
	case "set_clock":
		return sysSetClock(ev, args)
	case "log_level":
		return sysLogLevel(args)
	case "sleep":
		return sysSleep(args)
	case "to_integer":
		return sysToInteger(args)
	case "to_double":
		return sysToDouble(args)
	case "to_string":
		return sysToString(args)
	case "fragment":
		return sysFragment(args)
	case "exists":
		return sysExists(ev, argNodes)
	case "delete":
		return sysDelete(ev, argNodes)
	case "rand_int":
		return sysRandInt(args)
	case "rand_double":
		return sysRandDouble(args)
	default:
		return nil, fmt.Errorf("karl: unknown system call #%s", name)
	}
}

func requireArgs(name string, args []*krecord.Record, n int) error {
	if len(args) != n {
		return fmt.Errorf("karl: #%s expects %d argument(s), got %d", name, n, len(args))
	}
	return nil
}

func sysPrint(ev *evalState, args []*krecord.Record) (*krecord.Record, error) {
	if err := requireArgs("print", args, 1); err != nil {
		return nil, err
	}
	ev.store.Print(args[0].ToString(","), "info")
	return krecord.New(), nil
}

func sysSize(args []*krecord.Record) (*krecord.Record, error) {
	if err := requireArgs("size", args, 1); err != nil {
		return nil, err
	}
	return krecord.NewInteger(int64(args[0].Size())), nil
}

func sysSetClock(ev *evalState, args []*krecord.Record) (*krecord.Record, error) {
	if err := requireArgs("set_clock", args, 1); err != nil {
		return nil, err
	}
	c := uint64(args[0].ToInteger())
	ev.store.AdvanceClockTo(c)
	return krecord.NewInteger(int64(c)), nil
}

func sysLogLevel(args []*krecord.Record) (*krecord.Record, error) {
	if err := requireArgs("log_level", args, 1); err != nil {
		return nil, err
	}
	levels := []string{"err", "warn", "info", "debug"}
	lvl := int(args[0].ToInteger())
	if lvl < 0 {
		lvl = 0
	}
	if lvl >= len(levels) {
		lvl = len(levels) - 1
	}
	krlog.SetLevel(levels[lvl])
	return krecord.NewInteger(int64(lvl)), nil
}

func sysSleep(args []*krecord.Record) (*krecord.Record, error) {
	if err := requireArgs("sleep", args, 1); err != nil {
		return nil, err
	}
	time.Sleep(time.Duration(args[0].ToDouble() * float64(time.Second)))
	return krecord.New(), nil
}

func sysToInteger(args []*krecord.Record) (*krecord.Record, error) {
	if err := requireArgs("to_integer", args, 1); err != nil {
		return nil, err
	}
	return krecord.NewInteger(args[0].ToInteger()), nil
}

func sysToDouble(args []*krecord.Record) (*krecord.Record, error) {
	if err := requireArgs("to_double", args, 1); err != nil {
		return nil, err
	}
	return krecord.NewDouble(args[0].ToDouble()), nil
}

func sysToString(args []*krecord.Record) (*krecord.Record, error) {
	if len(args) < 1 || len(args) > 2 {
		return nil, fmt.Errorf("karl: #to_string expects 1 or 2 arguments")
	}
	delim := ","
	if len(args) == 2 {
		delim = args[1].ToString("")
	}
	return krecord.NewString(args[0].ToString(delim)), nil
}

func sysFragment(args []*krecord.Record) (*krecord.Record, error) {
	if err := requireArgs("fragment", args, 3); err != nil {
		return nil, err
	}
	first := int(args[1].ToInteger())
	last := int(args[2].ToInteger())
	return args[0].Fragment(first, last), nil
}

func sysExists(ev *evalState, argNodes []node) (*krecord.Record, error) {
	if len(argNodes) != 1 {
		return nil, fmt.Errorf("karl: #exists expects 1 argument")
	}
	ref, ok := argNodes[0].(*varRef)
	if !ok {
		return nil, fmt.Errorf("karl: #exists expects a variable name")
	}
	name, err := ref.resolveName(ev)
	if err != nil {
		return nil, err
	}
	if ev.store.Get(name).IsEmpty() {
		return krecord.NewInteger(0), nil
	}
	return krecord.NewInteger(1), nil
}

func sysDelete(ev *evalState, argNodes []node) (*krecord.Record, error) {
	if len(argNodes) != 1 {
		return nil, fmt.Errorf("karl: #delete expects 1 argument")
	}
	ref, ok := argNodes[0].(*varRef)
	if !ok {
		return nil, fmt.Errorf("karl: #delete expects a variable name")
	}
	name, err := ref.resolveName(ev)
	if err != nil {
		return nil, err
	}
	ev.store.Erase(name)
	return krecord.New(), nil
}

func sysRandInt(args []*krecord.Record) (*krecord.Record, error) {
	if len(args) == 0 {
		return krecord.NewInteger(rand.Int63()), nil
	}
	if err := requireArgs("rand_int", args, 2); err != nil {
		return nil, err
	}
	lo, hi := args[0].ToInteger(), args[1].ToInteger()
	if hi <= lo {
		return krecord.NewInteger(lo), nil
	}
	return krecord.NewInteger(lo + rand.Int63n(hi-lo)), nil
}

func sysRandDouble(args []*krecord.Record) (*krecord.Record, error) {
	if len(args) == 0 {
		return krecord.NewDouble(rand.Float64()), nil
	}
	if err := requireArgs("rand_double", args, 2); err != nil {
		return nil, err
	}
	lo, hi := args[0].ToDouble(), args[1].ToDouble()
	return krecord.NewDouble(lo + rand.Float64()*(hi-lo)), nil
}
