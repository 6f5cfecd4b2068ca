// Package kfacade provides the single public coordinator object a
// host process embeds: Agent binds a Store, an Evaluator, and an
// optional Transport behind the thin method surface §4.7 describes.
// Named Agent (not Karl or Expression) to keep it distinct from
// karl.Expression and to read naturally at call sites — an Agent
// waits, sets, evaluates.
package kfacade

import (
	"context"
	"fmt"
	"os"

	"github.com/madara-go/karl/internal/krlog"
	"github.com/madara-go/karl/pkg/karl"
	"github.com/madara-go/karl/pkg/krecord"
	"github.com/madara-go/karl/pkg/kstore"
	"github.com/madara-go/karl/pkg/ktransport"
)

// Agent is a thin coordinator: every method below is a direct,
// documented composition of the Store/Evaluator/Transport it binds —
// it holds no state of its own beyond the settings used to drive Wait.
type Agent struct {
	store     *kstore.Store
	evaluator *karl.Evaluator
	transport *ktransport.Transport

	settings karl.Settings
}

// New returns an Agent over a fresh Store and Evaluator, with the
// given default Wait/Evaluate settings.
func New(settings karl.Settings) *Agent {
	return &Agent{
		store:     kstore.New(),
		evaluator: karl.NewEvaluator(),
		settings:  settings,
	}
}

// Store returns the bound store, for callers that need direct access
// (e.g. to register filter chains before Start).
func (a *Agent) Store() *kstore.Store { return a.store }

// Evaluator returns the bound expression evaluator.
func (a *Agent) Evaluator() *karl.Evaluator { return a.evaluator }

// Transport returns the attached transport, or nil if AttachTransport
// has not been called.
func (a *Agent) Transport() *ktransport.Transport { return a.transport }

// Settings returns the Agent's default Evaluate/Wait settings.
func (a *Agent) Settings() karl.Settings { return a.settings }

// SetSettings replaces the default Evaluate/Wait settings.
func (a *Agent) SetSettings(s karl.Settings) { a.settings = s }

// AttachTransport binds t to the agent. SendModifieds publishes only
// after this call; with a nil transport it drains the modified set
// without publishing, matching an Agent that is local-only (store +
// evaluator, no wire).
func (a *Agent) AttachTransport(t *ktransport.Transport) {
	a.transport = t
}

// Set assigns value to name, exactly as Store.Set.
func (a *Agent) Set(name string, value *krecord.Record) {
	a.store.Set(name, value)
}

// Get returns the current record for name, exactly as Store.Get.
func (a *Agent) Get(name string) *krecord.Record {
	return a.store.Get(name)
}

// GetRef returns a stable VariableReference for name.
func (a *Agent) GetRef(name string) *kstore.VariableReference {
	return a.store.GetRef(name)
}

// Compile parses source into a reusable Expression via the bound
// evaluator's compile cache.
func (a *Agent) Compile(source string) (*karl.Expression, error) {
	return a.evaluator.Compile(source)
}

// Evaluate compiles (if necessary) and evaluates source once against
// the bound store, using the Agent's default settings.
func (a *Agent) Evaluate(source string) (*krecord.Record, error) {
	return a.evaluator.Evaluate(a.store, source, a.settings)
}

// Wait evaluates source repeatedly until truthy or the Agent's
// MaxWaitSeconds elapses, per §4.7: compile once, evaluate, and on a
// falsy result sleep until the poll interval or the store's change
// signal, whichever comes first.
func (a *Agent) Wait(ctx context.Context, source string) (*krecord.Record, bool) {
	return a.evaluator.Wait(ctx, a.store, source, a.settings)
}

// DefineFunction registers name as callable from KaRL expressions.
func (a *Agent) DefineFunction(name string, impl any) error {
	return a.evaluator.DefineFunction(name, impl)
}

// SaveContext writes a binary whole-store checkpoint to path.
func (a *Agent) SaveContext(path, originator string) error {
	return a.store.SaveContext(path, originator)
}

// LoadContext replaces the store's contents from a binary checkpoint.
func (a *Agent) LoadContext(path string) (originator string, clock uint64, err error) {
	return a.store.LoadContext(path)
}

// SendModifieds drains the store's modified set and publishes it
// through the attached transport, returning the byte count Send
// reports (§4.6/§4.7). With no transport attached this drains the
// modified set without publishing anything, so a local-only Agent
// does not accumulate an unbounded backlog.
func (a *Agent) SendModifieds(ctx context.Context, ttl uint8) (int, error) {
	modified := a.store.ApplyModified()
	if a.transport == nil {
		return 0, nil
	}
	names := make([]string, 0, len(modified.Globals))
	names = append(names, modified.Globals...)
	return a.transport.Send(ctx, names, ttl)
}

// ReadFile reads path into a binary record at name. Per §7's IO error
// handling, a failure leaves the record empty and is reported through
// the returned status (0 = ok, non-zero = failure) rather than only
// the error, so callers that check status inline (as KaRL's #size or
// similar system calls would) see the same signal a failed read gives
// the original implementation.
func (a *Agent) ReadFile(name, path string) (status int, err error) {
	data, err := os.ReadFile(path)
	if err != nil {
		a.store.Set(name, krecord.New())
		krlog.Warnf("kfacade: read_file %s: %v", path, err)
		return 1, err
	}
	a.store.Set(name, krecord.NewBinary(krecord.BinaryFile, data))
	return 0, nil
}

// WriteFile writes the raw bytes of name's current record to path.
func (a *Agent) WriteFile(name, path string) (status int, err error) {
	data := a.store.Get(name).Bytes()
	if err := os.WriteFile(path, data, 0o644); err != nil {
		krlog.Warnf("kfacade: write_file %s: %v", path, err)
		return 1, fmt.Errorf("kfacade: write_file %s: %w", path, err)
	}
	return 0, nil
}

// Start brings the attached transport's receive workers up, a no-op
// if no transport has been attached.
func (a *Agent) Start(ctx context.Context) error {
	if a.transport == nil {
		return nil
	}
	return a.transport.Start(ctx)
}

// Stop tears the attached transport down, a no-op if none is attached.
func (a *Agent) Stop() {
	if a.transport != nil {
		a.transport.Stop()
	}
}
