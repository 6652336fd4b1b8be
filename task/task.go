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

// Package task implements the task core of spec.md §3/§4.4: a model
// reference, a settable-until-start argument map, bound events with the
// start/stop/success/failed invariants, and the mission/permanent flags
// maintained by the owning plan.
//
// Grounded on the teacher's rnode.Node/NodeBase split
// (pkg/cloud/rgraph/rnode/node.go): NodeBase holds common non-typed
// fields and small accessor methods, with state transitions mediated by
// a handful of explicit verbs rather than open field mutation. Task
// follows the same shape, generalized from a convergence-graph node to
// a lifecycle state machine.
package task

import (
	"fmt"

	"github.com/corectl/planengine/event"
	"github.com/corectl/planengine/planobj"
)

// Standard bound event names every task carries (spec.md §3).
const (
	Start   = "start"
	Stop    = "stop"
	Success = "success"
	Failed  = "failed"
)

// FullfilledModel snapshots the (model, tags, arguments) triple used by
// replacement validation (spec.md §3): a replacement task must fulfill
// the placeholder's FullfilledModel for the swap to be accepted.
type FullfilledModel struct {
	Model     string
	Tags      []string
	Arguments map[string]any
}

// Fulfills reports whether this model is compatible with want: same
// model name, want's tags are a subset of this model's tags, and every
// argument want specifies matches this model's value.
func (m FullfilledModel) Fulfills(want FullfilledModel) bool {
	if m.Model != want.Model {
		return false
	}
	have := map[string]bool{}
	for _, t := range m.Tags {
		have[t] = true
	}
	for _, t := range want.Tags {
		if !have[t] {
			return false
		}
	}
	for k, v := range want.Arguments {
		got, ok := m.Arguments[k]
		if !ok || got != v {
			return false
		}
	}
	return true
}

// Task is a plan object with a lifecycle state machine, bound events,
// and argument bindings (spec.md §3, §4.4).
type Task struct {
	planobj.Base

	model     string
	tags      []string
	arguments map[string]any

	boundEvents map[string]*event.Generator
	state       State

	successEmitted bool
	failedEmitted  bool

	mission   bool
	permanent bool

	// planningTask/plannedTask implement the job placeholder<->planner
	// pairing of spec.md §4.4: planningTask is the *Task elaborating
	// this one (nil unless this is a placeholder); plannedTask is the
	// inverse (nil unless this is a planning task).
	planningTask *Task
	plannedTask  *Task
}

// New creates a task of the given model, unattached to any plan, in
// StatePending with start/stop/success/failed bound as uncontrollable
// events owned by the task (the engine, not the user, calls them).
func New(model string) *Task {
	t := &Task{
		model:       model,
		arguments:   map[string]any{},
		boundEvents: map[string]*event.Generator{},
		state:       StatePending,
	}
	for _, name := range []string{Start, Stop, Success, Failed} {
		t.bindEvent(name, false)
	}
	return t
}

func (t *Task) bindEvent(name string, controllable bool) *event.Generator {
	g := event.New(name, controllable)
	g.SetOwner(t)
	t.boundEvents[name] = g
	return g
}

// BindEvent adds a model-defined event beyond the standard four. It
// panics if name is already bound, matching the teacher's
// fail-fast-on-programmer-error convention for construction-time misuse.
func (t *Task) BindEvent(name string, controllable bool) *event.Generator {
	if _, exists := t.boundEvents[name]; exists {
		panic(fmt.Sprintf("task: event %q already bound", name))
	}
	return t.bindEvent(name, controllable)
}

// Event looks up a bound event by name.
func (t *Task) Event(name string) (*event.Generator, bool) {
	g, ok := t.boundEvents[name]
	return g, ok
}

// Events returns every bound event generator, in no particular order.
func (t *Task) Events() []*event.Generator {
	out := make([]*event.Generator, 0, len(t.boundEvents))
	for _, g := range t.boundEvents {
		out = append(out, g)
	}
	return out
}

func (t *Task) Model() string    { return t.model }
func (t *Task) Tags() []string   { return append([]string(nil), t.tags...) }
func (t *Task) State() State     { return t.state }
func (t *Task) Mission() bool    { return t.mission }
func (t *Task) Permanent() bool  { return t.permanent }
func (t *Task) String() string   { return "Task(" + t.model + ")" }

// SetMission and SetPermanent are called by the owning plan's garbage
// collector bookkeeping (spec.md §4.2); not meant to be called directly
// by task implementations.
func (t *Task) SetMission(v bool)   { t.mission = v }
func (t *Task) SetPermanent(v bool) { t.permanent = v }

// AddTag appends a tag used by replacement/fullfilled-model matching.
func (t *Task) AddTag(tag string) { t.tags = append(t.tags, tag) }

// ErrArgumentsLocked is returned by SetArgument once the task has left
// StatePending (spec.md §3 "settable until start").
var ErrArgumentsLocked = fmt.Errorf("task: arguments are only settable before start")

// SetArgument binds a key to a value. Only valid while State() ==
// StatePending.
func (t *Task) SetArgument(key string, value any) error {
	if t.state != StatePending {
		return fmt.Errorf("%s: %w", key, ErrArgumentsLocked)
	}
	t.arguments[key] = value
	return nil
}

// Argument returns a bound argument value.
func (t *Task) Argument(key string) (any, bool) {
	v, ok := t.arguments[key]
	return v, ok
}

// Arguments returns a copy of the full argument map.
func (t *Task) Arguments() map[string]any {
	out := make(map[string]any, len(t.arguments))
	for k, v := range t.arguments {
		out[k] = v
	}
	return out
}

// Fullfilled returns the (model, tags, arguments) snapshot used for
// replacement validation.
func (t *Task) Fullfilled() FullfilledModel {
	return FullfilledModel{Model: t.model, Tags: t.Tags(), Arguments: t.Arguments()}
}

func (t *Task) PlanningTask() *Task        { return t.planningTask }
func (t *Task) SetPlanningTask(p *Task)    { t.planningTask = p }
func (t *Task) PlannedTask() *Task         { return t.plannedTask }
func (t *Task) SetPlannedTask(p *Task)     { t.plannedTask = p }

// IsPlaceholder reports whether this task has an associated planning
// task still elaborating it (spec.md §4.4 Jobs).
func (t *Task) IsPlaceholder() bool { return t.planningTask != nil }

// errBadTransition reports an attempted state transition the current
// state does not allow.
func errBadTransition(from State, to string) error {
	return fmt.Errorf("task: cannot transition from %s to %s", from, to)
}

// MarkStarting records that the start event has been called
// (pending → starting).
func (t *Task) MarkStarting() error {
	if t.state != StatePending {
		return errBadTransition(t.state, "starting")
	}
	t.state = StateStarting
	return nil
}

// MarkRunning records that start has emitted (starting → running).
func (t *Task) MarkRunning() error {
	if t.state != StateStarting {
		return errBadTransition(t.state, "running")
	}
	t.state = StateRunning
	return nil
}

// MarkFailedToStart records that the task was killed before start ever
// emitted (pending|starting → failed_to_start).
func (t *Task) MarkFailedToStart() error {
	if t.state != StatePending && t.state != StateStarting {
		return errBadTransition(t.state, "failed_to_start")
	}
	t.state = StateFailedToStart
	return nil
}

// MarkSuccess records a success emission while running (spec.md §3
// invariant: exactly one of success/failed emits before stop).
func (t *Task) MarkSuccess() error {
	if t.state != StateRunning {
		return errBadTransition(t.state, "success")
	}
	if t.failedEmitted {
		return fmt.Errorf("task: failed already emitted, success is exclusive")
	}
	t.successEmitted = true
	return nil
}

// MarkFailed records a failed emission while running.
func (t *Task) MarkFailed() error {
	if t.state != StateRunning {
		return errBadTransition(t.state, "failed")
	}
	if t.successEmitted {
		return fmt.Errorf("task: success already emitted, failed is exclusive")
	}
	t.failedEmitted = true
	return nil
}

// MarkFinishing records that stop has been called (running → finishing).
// Requires success or failed to have emitted first.
func (t *Task) MarkFinishing() error {
	if t.state != StateRunning {
		return errBadTransition(t.state, "finishing")
	}
	if !t.successEmitted && !t.failedEmitted {
		return fmt.Errorf("task: stop called before success or failed emitted")
	}
	t.state = StateFinishing
	return nil
}

// MarkFinished records that stop has emitted (finishing → finished),
// terminal.
func (t *Task) MarkFinished() error {
	if t.state != StateFinishing {
		return errBadTransition(t.state, "finished")
	}
	t.state = StateFinished
	return nil
}

// Succeeded reports whether success emitted during this task's run.
func (t *Task) Succeeded() bool { return t.successEmitted }

// TaskFailed reports whether failed emitted during this task's run.
func (t *Task) TaskFailed() bool { return t.failedEmitted }
