package karl

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/madara-go/karl/internal/krlog"
	"github.com/madara-go/karl/pkg/krecord"
	"github.com/madara-go/karl/pkg/kstore"
)

// DefaultCompileCacheSize bounds the number of distinct source strings
// an Evaluator keeps compiled trees for.
const DefaultCompileCacheSize = 256

// NativeFunction is a Go-implemented callable registered with
// DefineFunction, receiving the already-evaluated argument records.
type NativeFunction func(store *kstore.Store, args []*krecord.Record) (*krecord.Record, error)

type karlFunction struct {
	expr *Expression
}

// Evaluator compiles and runs KaRL expressions against a Store: the
// §4.3 "Expression Evaluator" component. One Evaluator is normally
// shared by every caller evaluating expressions against the same
// store.
type Evaluator struct {
	cache *compileCache

	mu        sync.RWMutex
	native    map[string]NativeFunction
	functions map[string]*karlFunction
}

// NewEvaluator returns an Evaluator with a compile cache bounded to
// DefaultCompileCacheSize entries.
func NewEvaluator() *Evaluator {
	return &Evaluator{
		cache:     newCompileCache(DefaultCompileCacheSize),
		native:    make(map[string]NativeFunction),
		functions: make(map[string]*karlFunction),
	}
}

// Compile parses source into an Expression, serving from (and
// populating) the bounded compile cache.
func (e *Evaluator) Compile(source string) (*Expression, error) {
	if cached, ok := e.cache.get(source); ok {
		return cached, nil
	}
	expr, err := Compile(source)
	if err != nil {
		return nil, err
	}
	e.cache.put(source, expr)
	return expr, nil
}

// Evaluate compiles source if necessary and evaluates it once against
// store under settings.
func (e *Evaluator) Evaluate(store *kstore.Store, source string, settings Settings) (*krecord.Record, error) {
	expr, err := e.Compile(source)
	if err != nil {
		return nil, err
	}
	return e.EvaluateCompiled(store, expr, settings)
}

// EvaluateCompiled evaluates an already-compiled Expression.
func (e *Evaluator) EvaluateCompiled(store *kstore.Store, expr *Expression, settings Settings) (*krecord.Record, error) {
	st := &evalState{store: store, eval: e, settings: settings}
	return expr.root.eval(st)
}

// DefineFunction registers name as callable from KaRL expressions via
// `name(args...)`. impl is either a NativeFunction or a KaRL source
// string whose body is compiled once and re-evaluated per call with
// arguments bound to the locals `.0, .1, ...` (§4.3).
func (e *Evaluator) DefineFunction(name string, impl any) error {
	switch fn := impl.(type) {
	case NativeFunction:
		e.mu.Lock()
		e.native[name] = fn
		e.mu.Unlock()
		return nil
	case string:
		expr, err := Compile(fn)
		if err != nil {
			return fmt.Errorf("karl: define function %s: %w", name, err)
		}
		e.mu.Lock()
		e.functions[name] = &karlFunction{expr: expr}
		e.mu.Unlock()
		return nil
	default:
		return fmt.Errorf("karl: DefineFunction impl must be a NativeFunction or KaRL source string")
	}
}

func (e *Evaluator) callFunction(ev *evalState, name string, argNodes []node) (*krecord.Record, error) {
	args := make([]*krecord.Record, len(argNodes))
	for i, a := range argNodes {
		v, err := a.eval(ev)
		if err != nil {
			return nil, err
		}
		args[i] = v
	}

	e.mu.RLock()
	native, isNative := e.native[name]
	fn, isKarl := e.functions[name]
	e.mu.RUnlock()

	switch {
	case isNative:
		return native(ev.store, args)
	case isKarl:
		for i, a := range args {
			ev.store.Set("."+strconv.Itoa(i), a)
		}
		callState := &evalState{store: ev.store, eval: e, settings: ev.settings}
		return fn.expr.root.eval(callState)
	default:
		return nil, fmt.Errorf("karl: undefined function %q", name)
	}
}

// Wait evaluates source repeatedly until it is truthy or
// settings.MaxWaitSeconds elapses, polling at settings.PollFrequencyHz
// or waking on the store's change signal, whichever comes first
// (§4.3/§4.7). It returns the last evaluated value and whether it was
// truthy when Wait returned.
func (e *Evaluator) Wait(ctx context.Context, store *kstore.Store, source string, settings Settings) (*krecord.Record, bool) {
	expr, err := e.Compile(source)
	if err != nil {
		krlog.Errorf("karl: wait compile error: %v", err)
		return krecord.New(), false
	}

	result, err := e.EvaluateCompiled(store, expr, settings)
	if err == nil && result.IsTrue() {
		return result, true
	}

	deadline := time.Time{}
	if settings.MaxWaitSeconds > 0 {
		deadline = time.Now().Add(time.Duration(settings.MaxWaitSeconds * float64(time.Second)))
	}

	interval := time.Second
	if settings.PollFrequencyHz > 0 {
		interval = time.Duration(float64(time.Second) / settings.PollFrequencyHz)
	}

	for {
		if !deadline.IsZero() && time.Now().After(deadline) {
			return result, false
		}

		changed := make(chan struct{})
		go func() {
			store.WaitForChange()
			close(changed)
		}()

		select {
		case <-ctx.Done():
			return result, false
		case <-changed:
		case <-time.After(interval):
		}

		result, err = e.EvaluateCompiled(store, expr, settings)
		if err != nil {
			krlog.Errorf("karl: wait evaluation error: %v", err)
			return result, false
		}
		if result.IsTrue() {
			return result, true
		}
	}
}
