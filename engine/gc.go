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
	"time"

	"github.com/corectl/planengine/planobj"
	"github.com/corectl/planengine/relgraph"
	"k8s.io/klog/v2"
)

// garbageCollect removes tasks and free events unreachable from any
// mission or permanent task through any task- or event-space relation
// (spec.md §4.7 step 6 "garbage_collect unreachable tasks and events
// (unreachable from any mission or permanent task through any
// relation). Killed tasks have their stop_event called; already-finished
// ones are removed."). Returns the number of objects removed.
//
// In dry-run mode, objects that would be collected are counted but left
// in place (not even terminate()d): unlike Plan.Add/Remove/DependsOnEdge,
// Generator.Record and Task's Mark* transitions have no staged-Transaction
// equivalent to discard, so the only part of GC this engine can make
// truly disposable is the removal itself.
func (e *Engine) garbageCollect(now time.Time) int {
	roots := e.gcRoots()
	reachableTasks := relgraph.ReachableFrom(e.plan.TaskGraph().Graphs(), roots.tasks)
	reachableEvents := relgraph.ReachableFrom(e.plan.EventGraph().Graphs(), roots.events)

	collected := 0
	for _, t := range e.plan.Tasks() {
		if reachableTasks[t.ID()] {
			continue
		}
		if e.dryRun {
			collected++
			continue
		}
		if !t.State().Terminal() {
			terminate(t, now)
		}
		if err := e.plan.Remove(t, now); err != nil {
			klog.Errorf("engine: gc remove %s: %v", t, err)
			continue
		}
		collected++
	}

	for _, g := range e.plan.FreeEvents() {
		if reachableEvents[g.ID()] {
			continue
		}
		if e.dryRun {
			collected++
			continue
		}
		if err := e.plan.Remove(g, now); err != nil {
			klog.Errorf("engine: gc remove %s: %v", g, err)
			continue
		}
		collected++
	}
	return collected
}

type gcRootSet struct {
	tasks  []planobj.ObjID
	events []planobj.ObjID
}

func (e *Engine) gcRoots() gcRootSet {
	var roots gcRootSet
	for _, t := range e.plan.Tasks() {
		if e.plan.IsMission(t.ID()) || e.plan.IsPermanent(t.ID()) {
			roots.tasks = append(roots.tasks, t.ID())
			for _, g := range t.Events() {
				roots.events = append(roots.events, g.ID())
			}
		}
	}
	return roots
}
