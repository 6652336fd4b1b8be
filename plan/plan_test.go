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
	"errors"
	"testing"
	"time"

	"github.com/corectl/planengine/planobj"
	"github.com/corectl/planengine/task"
)

func TestAddTaskAssignsIdentityAndBoundEvents(t *testing.T) {
	p := New()
	tk := task.New("demo")
	if err := p.Add(tk); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if tk.OwningPlan() != p {
		t.Error("task should be owned by plan after Add")
	}
	start, _ := tk.Event(task.Start)
	if start.OwningPlan() != p {
		t.Error("bound event should be owned by plan after its task is added")
	}
	if _, ok := p.Event(start.ID()); !ok {
		t.Error("plan should be able to resolve a bound event by ID")
	}
}

func TestAddRejectsInvalidArgument(t *testing.T) {
	p := New()
	if err := p.Add(42); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("Add(42) = %v, want ErrInvalidArgument", err)
	}
}

func TestAddFinalizedRejected(t *testing.T) {
	p := New()
	tk := task.New("demo")
	if err := p.Add(tk); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := p.Remove(tk, time.Now()); err != nil {
		t.Fatalf("Remove: %v", err)
	}

	p2 := New()
	if err := p2.Add(tk); !errors.Is(err, ErrFinalized) {
		t.Fatalf("re-Add after finalize = %v, want ErrFinalized", err)
	}
}

func TestMissionNotifyOnlyOnTransition(t *testing.T) {
	p := New()
	tk := task.New("demo")
	p.Add(tk)

	calls := 0
	p.OnStatusChange(func(id planobj.ObjID, mission, permanent bool) { calls++ })

	p.MarkMission(tk)
	p.MarkMission(tk) // idempotent, should not notify again
	if calls != 1 {
		t.Fatalf("calls after two MarkMission = %d, want 1", calls)
	}
	p.UnmarkMission(tk)
	p.UnmarkMission(tk)
	if calls != 2 {
		t.Fatalf("calls after two UnmarkMission = %d, want 2", calls)
	}
}

func TestDependsOnEdgeAutoAddsBothSides(t *testing.T) {
	p := New()
	parent := task.New("parent")
	child := task.New("child")

	if err := p.DependsOnEdge(parent, child, []string{task.Success}); err != nil {
		t.Fatalf("DependsOnEdge: %v", err)
	}
	if parent.OwningPlan() != p || child.OwningPlan() != p {
		t.Error("both tasks should have been auto-added")
	}
	if !p.taskGraph.Graph(DependsOn).HasEdge(parent.ID(), child.ID()) {
		t.Error("DependsOn edge missing")
	}
}

func TestDependsOnEdgeRejectsCycle(t *testing.T) {
	p := New()
	a, b, c := task.New("a"), task.New("b"), task.New("c")
	p.DependsOnEdge(a, b, nil)
	p.DependsOnEdge(b, c, nil)
	if err := p.DependsOnEdge(c, a, nil); err == nil {
		t.Fatal("expected cycle rejection on DependsOn (DAG class)")
	}
}

func TestReplaceTaskScenario2WeakMovesStrongStays(t *testing.T) {
	// Scenario 2 from spec.md §8: depends_on is weak (the replacement
	// inherits its parent's dependency edges) while err_handled_by is
	// strong (a handler binding is pinned to the exact task it was
	// registered against and is never rewritten). A replaced task's own
	// depends_on children are untouched either way, since old remains
	// the parent end of that edge.
	p := New()
	parent := task.New("parent")
	old := task.New("old")
	child := task.New("child")
	p.DependsOnEdge(parent, old, nil)
	p.DependsOnEdge(old, child, nil)
	if _, err := p.taskGraph.Graph(ErrorHandledBy).AddEdge(parent.ID(), old.ID(), nil); err != nil {
		t.Fatalf("AddEdge: %v", err)
	}

	new := task.New("old") // same model, fulfills old's model trivially.
	if err := p.ReplaceTask(old, new, nil); err != nil {
		t.Fatalf("ReplaceTask: %v", err)
	}

	dependsOn := p.taskGraph.Graph(DependsOn)
	if dependsOn.HasEdge(parent.ID(), old.ID()) {
		t.Error("weak depends_on edge should have moved off old")
	}
	if !dependsOn.HasEdge(parent.ID(), new.ID()) {
		t.Error("weak depends_on edge should now be on new")
	}
	if !dependsOn.HasEdge(old.ID(), child.ID()) {
		t.Error("old's own depends_on child edge should be untouched by replacement")
	}
	if dependsOn.HasEdge(new.ID(), child.ID()) {
		t.Error("old's depends_on child edge should not have been copied to new")
	}

	errorHandledBy := p.taskGraph.Graph(ErrorHandledBy)
	if !errorHandledBy.HasEdge(parent.ID(), old.ID()) {
		t.Error("strong err_handled_by edge should remain on old after replace")
	}
	if errorHandledBy.HasEdge(parent.ID(), new.ID()) {
		t.Error("strong err_handled_by edge should not have moved to new")
	}
}

func TestReplaceTaskDefaultPolicyMoves(t *testing.T) {
	p := New()
	old := task.New("old")
	bookkeeper := task.New("bookkeeper")
	p.Add(old)
	p.Add(bookkeeper)
	if _, err := p.taskGraph.Graph(PlanningTaskOf).AddEdge(bookkeeper.ID(), old.ID(), nil); err != nil {
		t.Fatalf("AddEdge: %v", err)
	}

	new := task.New("old")
	if err := p.ReplaceTask(old, new, nil); err != nil {
		t.Fatalf("ReplaceTask: %v", err)
	}

	g := p.taskGraph.Graph(PlanningTaskOf)
	if g.HasEdge(bookkeeper.ID(), old.ID()) {
		t.Error("default-policy edge should have moved off old")
	}
	if !g.HasEdge(bookkeeper.ID(), new.ID()) {
		t.Error("default-policy edge should now be on new")
	}
}

func TestReplaceTaskInvalidModelRejected(t *testing.T) {
	p := New()
	old := task.New("old")
	p.Add(old)

	mismatched := task.New("different-model")
	if err := p.ReplaceTask(old, mismatched, nil); !errors.Is(err, ErrInvalidReplace) {
		t.Fatalf("ReplaceTask with wrong model = %v, want ErrInvalidReplace", err)
	}
}

func TestReplaceTaskTransfersMissionFlag(t *testing.T) {
	p := New()
	old := task.New("old")
	p.Add(old)
	p.MarkMission(old)

	new := task.New("old")
	if err := p.ReplaceTask(old, new, nil); err != nil {
		t.Fatalf("ReplaceTask: %v", err)
	}
	if p.IsMission(old.ID()) {
		t.Error("old should no longer be mission after replace")
	}
	if !p.IsMission(new.ID()) {
		t.Error("new should now be mission after replace")
	}
}

func TestTransactionCommitAppliesStagedOps(t *testing.T) {
	p := New()
	parent := task.New("parent")
	child := task.New("child")

	err := p.Begin().
		Add(parent).
		Add(child).
		DependsOnEdge(parent, child, nil).
		MarkMission(parent).
		Commit()
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if !p.IsMission(parent.ID()) {
		t.Error("mission flag should be applied after commit")
	}
	if !p.taskGraph.Graph(DependsOn).HasEdge(parent.ID(), child.ID()) {
		t.Error("DependsOn edge should exist after commit")
	}
}

func TestTransactionDiscardAppliesNothing(t *testing.T) {
	p := New()
	tk := task.New("demo")
	txn := p.Begin().Add(tk)
	txn.Discard()

	if tk.OwningPlan() == p {
		t.Error("discarded transaction must not have added the task")
	}
	if len(p.Tasks()) != 0 {
		t.Error("plan should have no tasks after discard")
	}
}

func TestTransactionConcurrentModificationRejected(t *testing.T) {
	p := New()
	tk := task.New("demo")
	txn := p.Begin().Add(tk)

	other := task.New("other")
	if err := p.Add(other); err != nil {
		t.Fatalf("Add: %v", err)
	}

	if err := txn.Commit(); !errors.Is(err, ErrConcurrentModification) {
		t.Fatalf("Commit after concurrent mutation = %v, want ErrConcurrentModification", err)
	}
}
