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

package coordination

import (
	"fmt"
	"time"

	"github.com/corectl/planengine/event"
	"github.com/corectl/planengine/plan"
	"github.com/corectl/planengine/task"
)

// TaskSpec is one task a State instantiates on entry, identified within
// the state by Role (spec.md §4.6 "states carry a set of tasks to
// instantiate ... with roles").
type TaskSpec struct {
	Role      string
	Model     string
	Arguments map[string]any
}

// EventForward declares that the named event on the Role task, once
// emitted, should be forwarded to the named event on the state
// machine's root task (spec.md §4.6 "apply declared forwards
// (state-local event → root event)").
type EventForward struct {
	Role       string
	LocalEvent string
	RootEvent  string
}

// State is one node of the coordination state machine.
type State struct {
	Name     string
	Tasks    []TaskSpec
	Forwards []EventForward
}

// Transition is a (source-state, source-event) → target-state rule.
type Transition struct {
	FromState string
	OnEvent   string
	ToState   string
}

// ErrUnknownState is returned when a transition or Enter call names a
// state that was not registered.
var ErrUnknownState = fmt.Errorf("coordination: unknown state")

// ErrNoTransition is returned by HandleEvent when the current state has
// no transition for the given event.
var ErrNoTransition = fmt.Errorf("coordination: no transition for event")

// StateMachine composes actions and events into higher-level control:
// exactly one declared State is active at a time (spec.md §4.6 "Exactly
// one state is active at a time").
type StateMachine struct {
	root *task.Task

	states      map[string]*State
	transitions map[string]map[string]string

	current   string
	roleTasks map[string]*task.Task
}

// NewStateMachine validates the state/transition tables and returns a
// machine bound to root, not yet in any state; call Enter with an
// initial state name to start it.
func NewStateMachine(root *task.Task, states []*State, transitions []Transition) (*StateMachine, error) {
	sm := &StateMachine{
		root:        root,
		states:      map[string]*State{},
		transitions: map[string]map[string]string{},
	}
	for _, s := range states {
		sm.states[s.Name] = s
	}
	for _, tr := range transitions {
		if _, ok := sm.states[tr.FromState]; !ok {
			return nil, fmt.Errorf("%w: %q (transition source)", ErrUnknownState, tr.FromState)
		}
		if _, ok := sm.states[tr.ToState]; !ok {
			return nil, fmt.Errorf("%w: %q (transition target)", ErrUnknownState, tr.ToState)
		}
		if sm.transitions[tr.FromState] == nil {
			sm.transitions[tr.FromState] = map[string]string{}
		}
		sm.transitions[tr.FromState][tr.OnEvent] = tr.ToState
	}
	return sm, nil
}

// Current returns the name of the active state, or "" before the first
// Enter.
func (sm *StateMachine) Current() string { return sm.current }

// RoleTask returns the task instantiated for role in the active state.
func (sm *StateMachine) RoleTask(role string) (*task.Task, bool) {
	t, ok := sm.roleTasks[role]
	return t, ok
}

// Enter instantiates name's tasks as transaction-added dependencies of
// the root and wires its declared forwards (spec.md §4.6 "On entering a
// state"). It does not tear down any previously active state; callers
// drive the full transition through HandleEvent.
func (sm *StateMachine) Enter(p *plan.Plan, name string, now time.Time) error {
	st, ok := sm.states[name]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownState, name)
	}

	roleTasks := make(map[string]*task.Task, len(st.Tasks))
	for _, spec := range st.Tasks {
		tk := task.New(spec.Model)
		for k, v := range spec.Arguments {
			if err := tk.SetArgument(k, v); err != nil {
				return fmt.Errorf("state %q role %q: %w", name, spec.Role, err)
			}
		}
		// The dependency is satisfied by success and broken by stop
		// firing without success, or by start never firing (spec.md
		// §4.6 "failure = stop.or(start.never)"); required_events
		// records only the success side, since requiredEvents is a
		// fulfillment list, not a failure predicate. The engine's
		// structural-constraint check flags a finished child that never
		// emitted success; a child that fails to start is not flagged by
		// that check.
		if err := p.DependsOnEdge(sm.root, tk, []string{task.Success}); err != nil {
			return fmt.Errorf("state %q role %q: %w", name, spec.Role, err)
		}
		roleTasks[spec.Role] = tk
	}

	for _, fwd := range st.Forwards {
		local, ok := roleTasks[fwd.Role]
		if !ok {
			return fmt.Errorf("state %q: forward references unknown role %q", name, fwd.Role)
		}
		lg, ok := local.Event(fwd.LocalEvent)
		if !ok {
			return fmt.Errorf("state %q role %q: no event %q", name, fwd.Role, fwd.LocalEvent)
		}
		rg, ok := sm.root.Event(fwd.RootEvent)
		if !ok {
			return fmt.Errorf("state %q: root has no event %q", name, fwd.RootEvent)
		}
		lg.AddHandler(forwardHandler(rg))
	}

	sm.current = name
	sm.roleTasks = roleTasks
	return nil
}

func forwardHandler(target *event.Generator) event.HandlerFunc {
	return func(e event.Emission) error {
		_, err := target.Record(e.Context, e.Time)
		return err
	}
}

// Exit tears down the active state's tasks by removing their depends_on
// edge from the root; the tasks themselves are left for garbage
// collection to reap once unreachable (spec.md §4.6 "tear down the
// current state's tasks (remove their dependencies; rely on garbage
// collection)").
func (sm *StateMachine) Exit(p *plan.Plan) {
	dependsOn := p.TaskGraph().Graph(plan.DependsOn)
	for _, tk := range sm.roleTasks {
		dependsOn.RemoveEdge(sm.root.ID(), tk.ID())
	}
	sm.current = ""
	sm.roleTasks = nil
}

// HandleEvent applies the transition for the current state and the
// given event name, tearing down the old state and entering the new
// one. Returns ErrNoTransition if the current state has no such
// transition.
func (sm *StateMachine) HandleEvent(p *plan.Plan, eventName string, now time.Time) error {
	next, ok := sm.transitions[sm.current][eventName]
	if !ok {
		return fmt.Errorf("%w: state %q event %q", ErrNoTransition, sm.current, eventName)
	}
	sm.Exit(p)
	return sm.Enter(p, next, now)
}
