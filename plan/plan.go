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

// Package plan implements the plan aggregate of spec.md §4.2: object
// membership, mission/permanent status, the task-space and event-space
// relation registries, and the add/remove/replace operations that
// mediate every structural change. Transactions are in transaction.go.
//
// Grounded on the teacher's rgraph.Builder/Graph split
// (pkg/cloud/rgraph/graph.go, rgraph/builder.go): a Builder there
// accumulates nodes before Build() freezes them into an immutable
// Graph. Plan generalizes that idea into a single long-lived mutable
// aggregate with an overlay Transaction standing in for Builder's
// staging role, since this domain's plans are never "frozen" — they
// mutate for the life of the supervised process.
package plan

import (
	"fmt"
	"time"

	"github.com/corectl/planengine/event"
	"github.com/corectl/planengine/planobj"
	"github.com/corectl/planengine/relgraph"
	"github.com/corectl/planengine/task"
)

// ErrInvalidArgument is returned by Add when given something that is
// neither a *task.Task nor a *event.Generator.
var ErrInvalidArgument = fmt.Errorf("plan: argument is neither a task nor an event")

// ErrFinalized is returned when attempting to add an object that was
// already finalized (in this plan or a previous one).
var ErrFinalized = fmt.Errorf("plan: object was already finalized")

// StatusListener is notified exactly when a mission or permanent flag
// transitions (spec.md §4.2 "notify status-change observers exactly
// when the flag transitions").
type StatusListener func(id planobj.ObjID, mission, permanent bool)

// Plan owns every task and event it has accepted, their relation
// graphs, and their mission/permanent status.
type Plan struct {
	nextTaskIndex  int
	nextEventIndex int

	tasks      map[planobj.ObjID]*task.Task
	freeEvents map[planobj.ObjID]*event.Generator

	// boundEvents indexes every bound event generator (including those
	// owned by a task) by ObjID, so the engine can resolve relation
	// edges (which are keyed by ObjID) back to generators regardless of
	// whether they are free or task-bound.
	boundEvents map[planobj.ObjID]*event.Generator

	taskGraph  *relgraph.Registry[planobj.ObjID]
	eventGraph *relgraph.Registry[planobj.ObjID]

	mission   map[planobj.ObjID]bool
	permanent map[planobj.ObjID]bool

	listeners []StatusListener

	// version counts membership/status mutations, used by Transaction to
	// detect concurrent base-plan changes (spec.md §4.2 "a transaction
	// fails to commit if concurrent base-plan mutations violate its
	// preconditions"). Non-membership edge mutations don't bump it: a
	// transaction only needs to know whether the objects it touched are
	// still in the shape it assumed.
	version int
}

// New returns an empty plan with the standard relation classes wired.
func New() *Plan {
	return &Plan{
		tasks:       map[planobj.ObjID]*task.Task{},
		freeEvents:  map[planobj.ObjID]*event.Generator{},
		boundEvents: map[planobj.ObjID]*event.Generator{},
		taskGraph:   relgraph.NewRegistry[planobj.ObjID](TaskClasses()...),
		eventGraph:  relgraph.NewRegistry[planobj.ObjID](EventClasses()...),
		mission:     map[planobj.ObjID]bool{},
		permanent:   map[planobj.ObjID]bool{},
	}
}

// TaskGraph and EventGraph expose the underlying registries, primarily
// for the engine package to drive propagation and GC reachability.
func (p *Plan) TaskGraph() *relgraph.Registry[planobj.ObjID]  { return p.taskGraph }
func (p *Plan) EventGraph() *relgraph.Registry[planobj.ObjID] { return p.eventGraph }

// OnStatusChange registers a listener for mission/permanent transitions.
func (p *Plan) OnStatusChange(l StatusListener) { p.listeners = append(p.listeners, l) }

// Task looks up a task by ID.
func (p *Plan) Task(id planobj.ObjID) (*task.Task, bool) {
	t, ok := p.tasks[id]
	return t, ok
}

// Event looks up any event generator (free or bound) by ID.
func (p *Plan) Event(id planobj.ObjID) (*event.Generator, bool) {
	g, ok := p.boundEvents[id]
	return g, ok
}

// Tasks returns every task currently held by the plan, in no particular
// order.
func (p *Plan) Tasks() []*task.Task {
	out := make([]*task.Task, 0, len(p.tasks))
	for _, t := range p.tasks {
		out = append(out, t)
	}
	return out
}

// FreeEvents returns every free (task-unbound) event generator currently
// held by the plan, in no particular order. Used by the engine's
// garbage collector, which reaps free events the same way it reaps
// tasks (spec.md §4.7 step 6).
func (p *Plan) FreeEvents() []*event.Generator {
	out := make([]*event.Generator, 0, len(p.freeEvents))
	for _, g := range p.freeEvents {
		out = append(out, g)
	}
	return out
}

func (p *Plan) allocTaskID() planobj.ObjID {
	id := planobj.ObjID{Kind: planobj.KindTask, Index: p.nextTaskIndex}
	p.nextTaskIndex++
	return id
}

func (p *Plan) allocEventID() planobj.ObjID {
	id := planobj.ObjID{Kind: planobj.KindEvent, Index: p.nextEventIndex}
	p.nextEventIndex++
	return id
}

// Add accepts a *task.Task or *event.Generator, assigning identity and
// registering it (and, for a task, its bound events) in the relevant
// graphs. It fails with ErrInvalidArgument for anything else and
// ErrFinalized if the object has already been finalized.
func (p *Plan) Add(obj any) error {
	switch v := obj.(type) {
	case *task.Task:
		return p.addTask(v)
	case *event.Generator:
		return p.addFreeEvent(v)
	default:
		return ErrInvalidArgument
	}
}

func (p *Plan) addTask(t *task.Task) error {
	if t.IsFinalized() {
		return fmt.Errorf("%s: %w", t.Model(), ErrFinalized)
	}
	if t.OwningPlan() == p {
		return nil // already a member; Add is idempotent for recursive adds.
	}
	id := p.allocTaskID()
	t.Init(id)
	t.SetOwningPlan(p)
	p.tasks[id] = t
	p.taskGraph.TouchAll(id)
	p.version++

	for _, g := range t.Events() {
		if err := p.addBoundEvent(g); err != nil {
			return err
		}
	}
	return nil
}

func (p *Plan) addBoundEvent(g *event.Generator) error {
	if g.IsFinalized() {
		return fmt.Errorf("%s: %w", g.Name(), ErrFinalized)
	}
	id := p.allocEventID()
	g.Init(id)
	g.SetOwningPlan(p)
	if err := g.MarkAdded(); err != nil {
		return err
	}
	p.boundEvents[id] = g
	p.eventGraph.TouchAll(id)
	return nil
}

func (p *Plan) addFreeEvent(g *event.Generator) error {
	if g.IsFinalized() {
		return fmt.Errorf("%s: %w", g.Name(), ErrFinalized)
	}
	if g.OwningPlan() == p {
		return nil
	}
	if g.State() == event.StateUnattached {
		g.MarkFree()
	}
	id := p.allocEventID()
	g.Init(id)
	g.SetOwningPlan(p)
	if err := g.MarkAdded(); err != nil {
		return err
	}
	p.freeEvents[id] = g
	p.boundEvents[id] = g
	p.eventGraph.TouchAll(id)
	p.version++
	return nil
}

// DependsOnEdge adds a depends_on(required-events) edge from parent to
// child, auto-adding either side that is not yet a plan member (spec.md
// §4.2 "Adds recursively ... connected plan objects reached through any
// relation").
func (p *Plan) DependsOnEdge(parent, child *task.Task, requiredEvents []string) error {
	if parent.OwningPlan() != p {
		if err := p.addTask(parent); err != nil {
			return err
		}
	}
	if child.OwningPlan() != p {
		if err := p.addTask(child); err != nil {
			return err
		}
	}
	_, err := p.taskGraph.Graph(DependsOn).AddEdge(parent.ID(), child.ID(), requiredEvents)
	return err
}

// notifyStatus reports (id, mission, permanent) to listeners; callers
// invoke it only when a flag actually flips, per the idempotency
// requirement.
func (p *Plan) notifyStatus(id planobj.ObjID) {
	m, perm := p.mission[id], p.permanent[id]
	for _, l := range p.listeners {
		l(id, m, perm)
	}
}

// MarkMission flags t as a mission task (a GC root). Idempotent.
func (p *Plan) MarkMission(t *task.Task) {
	if p.mission[t.ID()] {
		return
	}
	p.mission[t.ID()] = true
	t.SetMission(true)
	p.version++
	p.notifyStatus(t.ID())
}

// UnmarkMission clears the mission flag. Idempotent.
func (p *Plan) UnmarkMission(t *task.Task) {
	if !p.mission[t.ID()] {
		return
	}
	delete(p.mission, t.ID())
	t.SetMission(false)
	p.version++
	p.notifyStatus(t.ID())
}

// MarkPermanent flags obj (a task or free event) as permanent (a GC
// root). Idempotent.
func (p *Plan) MarkPermanent(obj planobj.ObjID) {
	if p.permanent[obj] {
		return
	}
	p.permanent[obj] = true
	if t, ok := p.tasks[obj]; ok {
		t.SetPermanent(true)
	}
	p.version++
	p.notifyStatus(obj)
}

// UnmarkPermanent clears the permanent flag. Idempotent.
func (p *Plan) UnmarkPermanent(obj planobj.ObjID) {
	if !p.permanent[obj] {
		return
	}
	delete(p.permanent, obj)
	if t, ok := p.tasks[obj]; ok {
		t.SetPermanent(false)
	}
	p.version++
	p.notifyStatus(obj)
}

// Version returns the plan's mutation counter, used by Transaction to
// detect concurrent base-plan changes.
func (p *Plan) Version() int { return p.version }

// IsMission and IsPermanent report current flag state.
func (p *Plan) IsMission(id planobj.ObjID) bool   { return p.mission[id] }
func (p *Plan) IsPermanent(id planobj.ObjID) bool { return p.permanent[id] }

// Remove detaches obj from every relation graph, drops it from
// membership, and finalizes it at now. Removing a task also removes its
// bound events.
func (p *Plan) Remove(obj any, now time.Time) error {
	switch v := obj.(type) {
	case *task.Task:
		return p.removeTask(v, now)
	case *event.Generator:
		return p.removeFreeEvent(v, now)
	default:
		return ErrInvalidArgument
	}
}

func (p *Plan) removeTask(t *task.Task, now time.Time) error {
	id := t.ID()
	p.taskGraph.RemoveAll(id)
	delete(p.tasks, id)
	delete(p.mission, id)
	delete(p.permanent, id)
	for _, g := range t.Events() {
		p.removeBoundEvent(g, now)
	}
	t.Finalize(now)
	p.version++
	return nil
}

func (p *Plan) removeBoundEvent(g *event.Generator, now time.Time) {
	id := g.ID()
	p.eventGraph.RemoveAll(id)
	delete(p.boundEvents, id)
	g.MarkFinalized(now)
}

func (p *Plan) removeFreeEvent(g *event.Generator, now time.Time) error {
	id := g.ID()
	p.eventGraph.RemoveAll(id)
	delete(p.freeEvents, id)
	delete(p.boundEvents, id)
	delete(p.permanent, id)
	g.MarkFinalized(now)
	p.version++
	return nil
}
