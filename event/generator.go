/*
Copyright 2026 The Plan Engine Authors

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

https://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package event implements the event generator of spec.md §4.3: a
// named, repeatable, instantaneous event source with a bounded history,
// a controllable/contingent flag, and synchronous handlers.
//
// The propagation algorithm itself (the per-cycle fixpoint that drives
// calling and emitting across forward_to/signals edges) lives in the
// engine package, since it needs the whole Plan's relation graphs and
// object arena; this package only provides the Generator primitive that
// the engine drives, grounded on the teacher's exec.Event/exec.Action
// split (pkg/cloud/rgraph/exec/event.go, exec/action.go): Event there is
// an immutable occurrence identity, Action is the stateful thing that
// can be signaled and run. Generator here plays both roles at once,
// since spec.md's Event generator is a single stateful object with
// history, not a pair of interface types.
package event

import (
	"fmt"
	"time"

	"github.com/corectl/planengine/planobj"
)

// State is the generator lifecycle of spec.md §4.3:
// unattached → free|bound → added → finalized.
type State int

const (
	StateUnattached State = iota
	StateFree
	StateBound
	StateAdded
	StateFinalized
)

func (s State) String() string {
	switch s {
	case StateUnattached:
		return "unattached"
	case StateFree:
		return "free"
	case StateBound:
		return "bound"
	case StateAdded:
		return "added"
	case StateFinalized:
		return "finalized"
	default:
		return "invalid"
	}
}

// Emission is one recorded firing: a timestamp and an opaque context
// payload (spec.md §3 "ordered sequence of emissions with timestamps and
// contexts").
type Emission struct {
	Context any
	Time    time.Time
}

// HandlerFunc is a user-defined per-generator hook invoked synchronously
// on every emission. An error return is packaged by the engine as a
// LocalizedError with this generator as origin (spec.md §4.3).
type HandlerFunc func(Emission) error

// Caller is the engine-provided hook a command uses to schedule further
// occurrences while it runs (spec.md §4.3: calling a generator runs its
// command, which "may itself emit or call further events"). Emit
// enqueues a direct emission of the named generator; Call enqueues a
// call, which the engine will reject with ErrNotControllable unless the
// target is itself controllable.
type Caller interface {
	Emit(id planobj.ObjID, ctx any)
	Call(id planobj.ObjID, ctx any)
}

// CommandFunc is the callable body of a controllable generator's
// command (spec.md §4.3). now is the time of the call that triggered it.
type CommandFunc func(caller Caller, ctx any, now time.Time) error

// ErrNotAdded is returned by Record when the generator has not been
// added to a plan; emissions are only recorded while State() == StateAdded
// (spec.md §4.3 "Generator state machine").
var ErrNotAdded = fmt.Errorf("event: emissions only recorded while added")

// ErrNotControllable is returned when a call targets a generator that
// cannot be called: spec.md §7's error taxonomy raises this whenever a
// `signals` edge (or any other call) reaches a generator with
// Controllable() == false. Only the engine's propagate checks this (it
// needs to reject the call before recording anything); Generator itself
// just runs whatever command is registered.
var ErrNotControllable = fmt.Errorf("event: call target is not controllable")

// DefaultHistoryLimit bounds Generator.history when no explicit limit is
// given to New, so that long-running plans don't grow memory
// unboundedly from a repeatedly-emitted generator.
const DefaultHistoryLimit = 256

// Generator is a named, repeatable, instantaneous event source.
type Generator struct {
	planobj.Base

	name         string
	controllable bool
	owner        any // *task.Task (bound) or nil (free); see OwningPlan for plan membership.
	state        State
	historyLimit int

	history []Emission
	pending bool

	handlers []HandlerFunc
	command  CommandFunc
}

// New returns a Generator not yet bound to a task or added to a plan.
// Call MarkFree or SetOwner(task) to attach it, per spec.md's lifecycle.
func New(name string, controllable bool) *Generator {
	return &Generator{
		name:         name,
		controllable: controllable,
		state:        StateUnattached,
		historyLimit: DefaultHistoryLimit,
	}
}

func (g *Generator) Name() string         { return g.name }
func (g *Generator) Controllable() bool   { return g.controllable }
func (g *Generator) State() State         { return g.state }
func (g *Generator) Owner() any           { return g.owner }
func (g *Generator) String() string       { return "Event(" + g.name + ")" }

// SetOwner binds the generator to a task, transitioning unattached→bound.
// Free events are attached with MarkFree instead.
func (g *Generator) SetOwner(owner any) {
	g.owner = owner
	if g.state == StateUnattached {
		g.state = StateBound
	}
}

// MarkFree transitions an unattached generator to the free state.
func (g *Generator) MarkFree() {
	if g.state == StateUnattached {
		g.state = StateFree
	}
}

// MarkAdded transitions free|bound → added. Called by plan.Plan.Add.
func (g *Generator) MarkAdded() error {
	if g.state != StateFree && g.state != StateBound {
		return fmt.Errorf("event %s: cannot add from state %s", g.name, g.state)
	}
	g.state = StateAdded
	return nil
}

// MarkFinalized transitions added → finalized.
func (g *Generator) MarkFinalized(t time.Time) {
	g.state = StateFinalized
	g.Finalize(t)
}

// SetHistoryLimit overrides DefaultHistoryLimit. A limit of 0 means
// unbounded.
func (g *Generator) SetHistoryLimit(n int) { g.historyLimit = n }

// History returns every recorded emission, oldest first.
func (g *Generator) History() []Emission { return append([]Emission(nil), g.history...) }

// EmittedEver reports whether this generator has ever recorded an
// emission (spec.md §3 `emitted?`).
func (g *Generator) EmittedEver() bool { return len(g.history) > 0 }

// LastEmission returns the most recent emission, if any.
func (g *Generator) LastEmission() (Emission, bool) {
	if len(g.history) == 0 {
		return Emission{}, false
	}
	return g.history[len(g.history)-1], true
}

// Pending reports whether a call has been scheduled for this generator
// but not yet emitted (spec.md §3 `pending?`).
func (g *Generator) Pending() bool      { return g.pending }
func (g *Generator) SetPending(p bool)  { g.pending = p }

// AddHandler registers a synchronous per-emission hook.
func (g *Generator) AddHandler(h HandlerFunc) { g.handlers = append(g.handlers, h) }

// SetCommand registers the command run when this generator is called
// (spec.md §4.3 "the destination is called: a controllable generator's
// command runs, which may itself emit or call further events").
// Meaningful only on a controllable generator; the engine is responsible
// for rejecting a call on a non-controllable one with
// ErrNotControllable before a command would ever run.
func (g *Generator) SetCommand(cmd CommandFunc) { g.command = cmd }

// HasCommand reports whether a command has been registered.
func (g *Generator) HasCommand() bool { return g.command != nil }

// RunCommand invokes the registered command, if any, giving it caller to
// schedule further emissions/calls. It is a no-op returning nil if no
// command was registered.
func (g *Generator) RunCommand(caller Caller, ctx any, now time.Time) error {
	if g.command == nil {
		return nil
	}
	return g.command(caller, ctx, now)
}

// Record appends an emission to history and runs every registered
// handler in registration order, returning the first handler error (the
// remaining handlers still run); callers should still consider the
// emission recorded even if a handler fails, matching spec.md §4.3 ("propagation continues" after a
// handler exception is packaged and reported).
func (g *Generator) Record(ctx any, t time.Time) (Emission, error) {
	if g.state != StateAdded {
		return Emission{}, fmt.Errorf("%s: %w", g.name, ErrNotAdded)
	}
	e := Emission{Context: ctx, Time: t}
	g.history = append(g.history, e)
	if g.historyLimit > 0 && len(g.history) > g.historyLimit {
		g.history = g.history[len(g.history)-g.historyLimit:]
	}
	g.pending = false

	var firstErr error
	for _, h := range g.handlers {
		if err := h(e); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return e, firstErr
}
