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

package plan

import (
	"fmt"
	"time"

	"github.com/corectl/planengine/planobj"
	"github.com/corectl/planengine/relgraph"
	"github.com/corectl/planengine/task"
)

// ErrInvalidReplace is returned when new does not fulfill old's
// FullfilledModel.
var ErrInvalidReplace = fmt.Errorf("plan: invalid replace")

// ReplacementFilter excludes specific tasks, specific relation classes,
// or an entire graph (task-space or event-space) from a replacement;
// excluded edges are preserved unchanged (spec.md §4.2).
type ReplacementFilter struct {
	ExcludeTasks      map[planobj.ObjID]bool
	ExcludeClasses    map[*relgraph.Class]bool
	ExcludeTaskGraph  bool
	ExcludeEventGraph bool
}

func (f *ReplacementFilter) excludesTask(id planobj.ObjID) bool {
	return f != nil && f.ExcludeTasks[id]
}

func (f *ReplacementFilter) excludesClass(c *relgraph.Class) bool {
	return f != nil && f.ExcludeClasses[c]
}

// edgeAction is the per-class policy decided by the replacement policy
// table in spec.md §4.2: the edge at old's side is moved by default,
// copied for copy_on_replace classes, and skipped (left on old)
// entirely for strong classes.
type edgeAction int

const (
	actionMove edgeAction = iota
	actionCopy
	actionSkip
)

func policyFor(c *relgraph.Class) edgeAction {
	switch {
	case c.Strong:
		return actionSkip
	case c.CopyOnReplace:
		return actionCopy
	default:
		return actionMove
	}
}

// validateFullfilled checks new against old's FullfilledModel, per
// spec.md §4.2 "A replacement fails with InvalidReplace if new does not
// fullfill the fullfilled_model of old".
func validateFullfilled(old, new *task.Task) error {
	want := old.Fullfilled()
	have := new.Fullfilled()
	if have.Model != want.Model {
		return fmt.Errorf("%w: model %q does not provide model %q", ErrInvalidReplace, have.Model, want.Model)
	}
	haveTags := map[string]bool{}
	for _, t := range have.Tags {
		haveTags[t] = true
	}
	for _, t := range want.Tags {
		if !haveTags[t] {
			return fmt.Errorf("%w: missing provided model tag %q", ErrInvalidReplace, t)
		}
	}
	for k, v := range want.Arguments {
		got, ok := have.Arguments[k]
		if !ok {
			return fmt.Errorf("%w: missing argument %q", ErrInvalidReplace, k)
		}
		if got != v {
			return fmt.Errorf("%w: argument %q mismatch (got %v, want %v)", ErrInvalidReplace, k, got, v)
		}
	}
	return nil
}

// ReplaceTask moves/copies task-space edges where old is the child end
// onto new, per graph policy, and transfers mission/permanent flags.
// Edges where old is the parent (its own depends_on children, say) are
// left on old untouched. Task-event relations are never rewritten here
// (spec.md §4.2.1); use Replace for that. old is not removed from the
// plan; callers typically follow with Remove(old, now) once satisfied
// with the swap.
func (p *Plan) ReplaceTask(old, new *task.Task, filter *ReplacementFilter) error {
	if err := validateFullfilled(old, new); err != nil {
		return err
	}
	if new.OwningPlan() != p {
		if err := p.addTask(new); err != nil {
			return err
		}
	}
	if filter.excludesTask(old.ID()) {
		return nil
	}
	if !filter.ExcludeTaskGraph {
		for _, c := range p.taskGraph.Classes() {
			if filter.excludesClass(c) {
				continue
			}
			p.rewireClass(p.taskGraph, c, old.ID(), new.ID())
		}
	}

	if p.IsMission(old.ID()) {
		p.MarkMission(new)
		p.UnmarkMission(old)
	}
	if p.IsPermanent(old.ID()) {
		p.MarkPermanent(new.ID())
		p.UnmarkPermanent(old.ID())
	}
	return nil
}

// rewireClass applies the policy for class c to every edge where oldID
// is the child end (the other end is a parent of oldID), redirecting
// it to newID per policyFor(c). Edges where oldID is itself the parent
// (its Out neighbors) are left entirely alone: spec.md §4.2's
// replacement table only moves/copies an old-side edge into that
// direction for a `weak`-parent graph, and no relation class in this
// module declares that flag, so a replaced task always keeps its own
// subplan children untouched (spec.md §8 scenario 2: `old --depends_on-->
// c` survives replace_task(old, new) unchanged).
func (p *Plan) rewireClass(reg *relgraph.Registry[planobj.ObjID], c *relgraph.Class, oldID, newID planobj.ObjID) {
	g := reg.Graph(c)
	action := policyFor(c)
	if action == actionSkip {
		return
	}

	for _, from := range g.Neighbors(oldID, relgraph.In) {
		info, _ := g.EdgeInfo(from, oldID)
		g.AddEdge(from, newID, info)
		if action == actionMove {
			g.RemoveEdge(from, oldID)
		}
	}
}

// Replace performs ReplaceTask's task-space rewiring, then additionally
// rewrites event-space edges that cross the task boundary (one endpoint
// among old's bound events, the other outside old's subplan) — but
// never an edge internal to the replaced subplan, and never a strong
// relation (spec.md §4.2).
func (p *Plan) Replace(old, new *task.Task, filter *ReplacementFilter) error {
	if err := p.ReplaceTask(old, new, filter); err != nil {
		return err
	}
	if filter != nil && filter.ExcludeEventGraph {
		return nil
	}

	oldBound := map[planobj.ObjID]bool{}
	for _, g := range old.Events() {
		oldBound[g.ID()] = true
	}
	newByName := map[string]planobj.ObjID{}
	for _, g := range new.Events() {
		newByName[g.Name()] = g.ID()
	}

	for _, c := range p.eventGraph.Classes() {
		if c.Strong || filter.excludesClass(c) {
			continue
		}
		g := p.eventGraph.Graph(c)
		action := policyFor(c)
		if action == actionSkip {
			continue
		}
		for _, id := range oldBoundIDs(oldBound) {
			name := p.mustEventName(id)
			newID, ok := newByName[name]
			if !ok {
				continue
			}
			for _, to := range g.Neighbors(id, relgraph.Out) {
				if oldBound[to] {
					continue // internal edge: left for old's subplan teardown.
				}
				info, _ := g.EdgeInfo(id, to)
				g.AddEdge(newID, to, info)
				if action == actionMove {
					g.RemoveEdge(id, to)
				}
			}
			for _, from := range g.Neighbors(id, relgraph.In) {
				if oldBound[from] {
					continue
				}
				info, _ := g.EdgeInfo(from, id)
				g.AddEdge(from, newID, info)
				if action == actionMove {
					g.RemoveEdge(from, id)
				}
			}
		}
	}
	return nil
}

func oldBoundIDs(m map[planobj.ObjID]bool) []planobj.ObjID {
	out := make([]planobj.ObjID, 0, len(m))
	for id := range m {
		out = append(out, id)
	}
	return out
}

func (p *Plan) mustEventName(id planobj.ObjID) string {
	if g, ok := p.boundEvents[id]; ok {
		return g.Name()
	}
	return ""
}

// ReplacePlaceholder implements the job placeholder swap of spec.md
// §4.4: on successful planning, replace the placeholder task with the
// elaborated task, preserving the supplied jobID tag, then finalize the
// placeholder.
func (p *Plan) ReplacePlaceholder(placeholder, elaborated *task.Task, jobID string, now time.Time) error {
	elaborated.AddTag("job:" + jobID)
	if err := p.Replace(placeholder, elaborated, nil); err != nil {
		return err
	}
	return p.Remove(placeholder, now)
}
