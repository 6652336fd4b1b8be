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

package engine

import (
	"fmt"
	"time"

	"github.com/corectl/planengine/plan"
	"github.com/corectl/planengine/planobj"
	"github.com/corectl/planengine/relgraph"
	"github.com/corectl/planengine/task"
	"k8s.io/klog/v2"
)

// LocalizedError attaches an error to the plan object it originated
// from, so it can be propagated along dependency edges toward roots
// (spec.md §4.7 "Exceptions are localized (attached to an origin plan
// object) and propagated along dependency edges toward roots").
type LocalizedError struct {
	Origin planobj.ObjID
	Cause  error
}

func (e *LocalizedError) Error() string {
	return fmt.Sprintf("engine: %v: %v", e.Origin, e.Cause)
}

func (e *LocalizedError) Unwrap() error { return e.Cause }

// FatalError reports a LocalizedError that reached a root task (no
// DependsOn parent) without being handled (spec.md §4.7 "Fatal unhandled
// exceptions at the root terminate the offending tasks and are reported
// via the EXCEPTION_FATAL notification").
type FatalError struct {
	Root  planobj.ObjID
	Cause *LocalizedError
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("engine: EXCEPTION_FATAL at %v: %v", e.Root, e.Cause)
}

func (e *FatalError) Unwrap() error { return e.Cause }

// Disposition is a handler's verdict on a propagating exception.
type Disposition int

const (
	// Pass continues the exception upward unchanged.
	Pass Disposition = iota
	// Handle consumes the exception; propagation stops here.
	Handle
	// Transform continues the exception upward with a replacement cause.
	Transform
)

// Handler decides the disposition of an exception localized at origin.
// Registered as the edge info of a plan.ErrorHandledBy edge from origin
// to the handler's owning task.
type Handler func(origin *task.Task, err error) (Disposition, error)

// RegisterErrorHandler routes exceptions localized at origin through h,
// by adding an ErrorHandledBy edge from origin to handlerOwner (spec.md
// §4.7 "A handler at a given node may handle ... pass ... or propagate
// with transformation").
func RegisterErrorHandler(p *plan.Plan, origin, handlerOwner *task.Task, h Handler) error {
	_, err := p.TaskGraph().Graph(plan.ErrorHandledBy).AddEdge(origin.ID(), handlerOwner.ID(), h)
	return err
}

// propagateException walks DependsOn parents of origin, consulting any
// ErrorHandledBy handler at each node, until a handler consumes the
// exception or a root is reached with none (spec.md §4.7). Only one
// parent is followed per node (the first in insertion order), matching
// the single-control-thread model: a plan object's depends_on parents
// are not expected to race for the same exception.
func (e *Engine) propagateException(origin planobj.ObjID, cause error, now time.Time) {
	localized := &LocalizedError{Origin: origin, Cause: cause}
	errHandled := e.plan.TaskGraph().Graph(plan.ErrorHandledBy)
	dependsOn := e.plan.TaskGraph().Graph(plan.DependsOn)

	current := origin
	visited := map[planobj.ObjID]bool{}
	for {
		if visited[current] {
			break
		}
		visited[current] = true

		handled := false
		for _, handlerID := range errHandled.Neighbors(current, relgraph.Out) {
			info, ok := errHandled.EdgeInfo(current, handlerID)
			if !ok {
				continue
			}
			h, ok := info.(Handler)
			if !ok {
				continue
			}
			t, ok := e.plan.Task(current)
			if !ok {
				continue
			}
			switch disp, transformed := h(t, localized); disp {
			case Handle:
				handled = true
			case Transform:
				localized = &LocalizedError{Origin: current, Cause: transformed}
			case Pass:
			}
			if handled {
				break
			}
		}
		if handled {
			return
		}

		parents := dependsOn.Neighbors(current, relgraph.In)
		if len(parents) == 0 {
			fatal := &FatalError{Root: current, Cause: localized}
			e.queue(Notification{Kind: NotificationException, Payload: fatal})
			if t, ok := e.plan.Task(current); ok {
				terminate(t, now)
			}
			return
		}
		current = parents[0]
	}
}

// Terminate forcibly stops t: a task that never started fails to start;
// a running task is failed and stopped. Exported for jobapi's
// kill_job, which needs the same "forcibly stop the task" behavior the
// engine applies to a fatal unhandled exception's origin and to an
// unreachable running task reaped by garbage collection.
func Terminate(t *task.Task, now time.Time) { terminate(t, now) }

// terminate kills t in response to a fatal unhandled exception: a task
// that never started fails to start; a running task is failed and
// stopped.
func terminate(t *task.Task, now time.Time) {
	switch t.State() {
	case task.StatePending, task.StateStarting:
		_ = t.MarkFailedToStart()
	case task.StateRunning:
		if !t.Succeeded() && !t.TaskFailed() {
			if g, ok := t.Event(task.Failed); ok {
				if _, err := g.Record(nil, now); err == nil {
					_ = t.MarkFailed()
				}
			}
		}
		if t.State() == task.StateRunning {
			if err := t.MarkFinishing(); err == nil {
				if g, ok := t.Event(task.Stop); ok {
					if _, err := g.Record(nil, now); err == nil {
						_ = t.MarkFinished()
					}
				}
			}
		}
	}
}

// FaultMatcher reports whether a fault-response entry applies to err.
type FaultMatcher func(err error) bool

// FaultHandler responds to a matched fault, returning the disposition
// applied to the plan (reserved for future fault-response actions;
// current handlers act through p directly and return a human-readable
// disposition for CycleStats/notification purposes).
type FaultHandler func(p *plan.Plan, err error, now time.Time) string

type faultEntry struct {
	match   FaultMatcher
	handler FaultHandler
}

// FaultTable is an ordered registry of (matcher, handler) entries
// evaluated for every constraint violation raised in a cycle (spec.md
// §4.6/§4.7 reference "fault-response tables" without defining their
// shape). Grounded on the teacher's single global ExecutorConfig
// ErrorStrategy (exec/executor.go), generalized from one strategy for
// every error to a per-error-class table with a global fallback.
type FaultTable struct {
	entries  []faultEntry
	fallback FaultHandler
}

// NewFaultTable returns an empty table whose fallback logs and
// continues (teacher's ContinueOnError default).
func NewFaultTable() *FaultTable {
	return &FaultTable{
		fallback: func(_ *plan.Plan, err error, _ time.Time) string {
			klog.Errorf("engine: unhandled fault: %v", err)
			return "continue"
		},
	}
}

// Register appends a (matcher, handler) entry, evaluated in registration
// order before the fallback.
func (ft *FaultTable) Register(m FaultMatcher, h FaultHandler) {
	ft.entries = append(ft.entries, faultEntry{match: m, handler: h})
}

// SetFallback overrides the table's default handler for unmatched
// faults.
func (ft *FaultTable) SetFallback(h FaultHandler) { ft.fallback = h }

func (ft *FaultTable) dispatch(p *plan.Plan, err error, now time.Time) string {
	for _, e := range ft.entries {
		if e.match(err) {
			return e.handler(p, err, now)
		}
	}
	return ft.fallback(p, err, now)
}

// applyFaults runs the fault table against every violation raised this
// cycle (spec.md §4.7 step 5 "apply_fault_responses for any raised
// exceptions") and returns the count handled.
func (e *Engine) applyFaults(violations []error, now time.Time) int {
	for _, v := range violations {
		e.faults.dispatch(e.plan, v, now)
	}
	return len(violations)
}
