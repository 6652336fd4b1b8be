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
	"errors"
	"testing"
	"time"

	"github.com/corectl/planengine/event"
	"github.com/corectl/planengine/plan"
	"github.com/corectl/planengine/task"
	clocktesting "k8s.io/utils/clock/testing"
)

func newTestPlan(t *testing.T) (*plan.Plan, *Engine) {
	t.Helper()
	p := plan.New()
	c := clocktesting.NewFakePassiveClock(time.Unix(0, 0))
	return p, New(p, c)
}

func runningTask(t *testing.T, p *plan.Plan, model string, now time.Time) *task.Task {
	t.Helper()
	tk := task.New(model)
	if err := p.Add(tk); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := tk.MarkStarting(); err != nil {
		t.Fatalf("MarkStarting: %v", err)
	}
	if err := tk.MarkRunning(); err != nil {
		t.Fatalf("MarkRunning: %v", err)
	}
	if g, ok := tk.Event(task.Start); ok {
		if _, err := g.Record(nil, now); err != nil {
			t.Fatalf("record start: %v", err)
		}
	}
	return tk
}

func TestRunCycleSevenStepOrderingAndStats(t *testing.T) {
	p, e := newTestPlan(t)
	now := time.Unix(100, 0)

	parent := runningTask(t, p, "parent", now)
	child := task.New("child")
	if err := p.Add(child); err != nil {
		t.Fatalf("Add(child): %v", err)
	}
	if err := p.DependsOnEdge(parent, child, []string{task.Success}); err != nil {
		t.Fatalf("DependsOnEdge: %v", err)
	}
	p.MarkMission(parent)

	var polled int
	e.AddPoller(func(_ *plan.Plan, tk *task.Task, _ time.Time) error {
		polled++
		return nil
	})

	startEvt, _ := child.Event(task.Start)

	stats, err := e.RunCycle(now, []ExternalEvent{{ID: startEvt.ID()}})
	if err != nil {
		t.Fatalf("RunCycle: %v", err)
	}
	if stats.ExternalEvents != 1 {
		t.Errorf("ExternalEvents = %d, want 1", stats.ExternalEvents)
	}
	if stats.PollersRun != 1 {
		t.Errorf("PollersRun = %d, want 1", stats.PollersRun)
	}
	if polled != 1 {
		t.Errorf("poller invoked %d times, want 1 (only running tasks polled)", polled)
	}
	if stats.EventsEmitted != 1 {
		t.Errorf("EventsEmitted = %d, want 1", stats.EventsEmitted)
	}
	if stats.CycleStart != now {
		t.Errorf("CycleStart = %v, want %v", stats.CycleStart, now)
	}
}

func TestPropagateForwardJustEmits(t *testing.T) {
	p, e := newTestPlan(t)
	now := time.Unix(0, 0)

	a := task.New("a")
	b := task.New("b")
	for _, tk := range []*task.Task{a, b} {
		if err := p.Add(tk); err != nil {
			t.Fatalf("Add: %v", err)
		}
	}
	ga, _ := a.Event(task.Success)
	gb, _ := b.Event(task.Start) // uncontrollable; forward_to never calls it.

	forward := p.EventGraph().Graph(plan.Forward)
	if _, err := forward.AddEdge(ga.ID(), gb.ID(), nil); err != nil {
		t.Fatalf("AddEdge forward: %v", err)
	}

	emitted := e.propagate([]pendingEmission{{id: ga.ID(), at: now}}, now)
	if emitted != 2 {
		t.Fatalf("propagate emitted = %d, want 2 (a -forward-> b)", emitted)
	}
	if !ga.EmittedEver() || !gb.EmittedEver() {
		t.Error("expected both generators to have recorded an emission")
	}
}

func TestPropagateSignalFixpointRunsCommand(t *testing.T) {
	// spec.md §8 scenario 4: forward_to(e1,e2), signals(e1,e3), and e3's
	// command emits e4. History must contain e1,e2,e3,e4 each exactly
	// once, with e1 before e2 and e3, and e3 before e4.
	p, e := newTestPlan(t)
	now := time.Unix(0, 0)

	a := task.New("a")
	b := task.New("b")
	c := task.New("c")
	d := task.New("d")
	c.BindEvent("activate", true) // must bind before Add so it gets registered with the plan.
	for _, tk := range []*task.Task{a, b, c, d} {
		if err := p.Add(tk); err != nil {
			t.Fatalf("Add: %v", err)
		}
	}
	e1, _ := a.Event(task.Success)
	e2, _ := b.Event(task.Start)
	e3, _ := c.Event("activate")
	e4, _ := d.Event(task.Start)

	var ranCommand bool
	e3.SetCommand(func(caller event.Caller, ctx any, now time.Time) error {
		ranCommand = true
		caller.Emit(e4.ID(), ctx)
		return nil
	})

	forward := p.EventGraph().Graph(plan.Forward)
	if _, err := forward.AddEdge(e1.ID(), e2.ID(), nil); err != nil {
		t.Fatalf("AddEdge forward: %v", err)
	}
	signal := p.EventGraph().Graph(plan.Signal)
	if _, err := signal.AddEdge(e1.ID(), e3.ID(), nil); err != nil {
		t.Fatalf("AddEdge signal: %v", err)
	}

	emitted := e.propagate([]pendingEmission{{id: e1.ID(), at: now}}, now)
	if emitted != 4 {
		t.Fatalf("propagate emitted = %d, want 4 (e1,e2,e3,e4)", emitted)
	}
	if !ranCommand {
		t.Fatal("expected e3's command to have run")
	}
	for name, g := range map[string]*event.Generator{"e1": e1, "e2": e2, "e3": e3, "e4": e4} {
		if !g.EmittedEver() {
			t.Errorf("%s: expected an emission", name)
		}
		if len(g.History()) != 1 {
			t.Errorf("%s: history = %d entries, want exactly 1", name, len(g.History()))
		}
	}

	e3Emission, _ := e3.LastEmission()
	e4Emission, _ := e4.LastEmission()
	if e4Emission.Time.Before(e3Emission.Time) {
		t.Error("e4 should not be recorded before e3")
	}
}

func TestPropagateSignalNonControllableRaisesNotControllable(t *testing.T) {
	p, e := newTestPlan(t)
	now := time.Unix(0, 0)

	a := task.New("a")
	b := task.New("b")
	for _, tk := range []*task.Task{a, b} {
		if err := p.Add(tk); err != nil {
			t.Fatalf("Add: %v", err)
		}
	}
	e1, _ := a.Event(task.Success)
	e2, _ := b.Event(task.Start) // uncontrollable: cannot be signaled.

	signal := p.EventGraph().Graph(plan.Signal)
	if _, err := signal.AddEdge(e1.ID(), e2.ID(), nil); err != nil {
		t.Fatalf("AddEdge signal: %v", err)
	}

	var fatal *FatalError
	e.OnNotify(func(n Notification) {
		if fe, ok := n.Payload.(*FatalError); ok {
			fatal = fe
		}
	})

	emitted := e.propagate([]pendingEmission{{id: e1.ID(), at: now}}, now)
	e.flush()
	if emitted != 1 {
		t.Fatalf("propagate emitted = %d, want 1 (only e1; e2 rejected)", emitted)
	}
	if e2.EmittedEver() {
		t.Error("e2 should not have been recorded: signal target is not controllable")
	}
	if fatal == nil || !errors.Is(fatal.Cause.Cause, event.ErrNotControllable) {
		t.Fatalf("expected a fatal NotControllable notification, got %+v", fatal)
	}
}

func TestExceptionPropagationHandledStopsAtHandler(t *testing.T) {
	p, e := newTestPlan(t)
	now := time.Unix(0, 0)

	root := task.New("root")
	child := task.New("child")
	if err := p.Add(root); err != nil {
		t.Fatalf("Add(root): %v", err)
	}
	if err := p.DependsOnEdge(root, child, nil); err != nil {
		t.Fatalf("DependsOnEdge: %v", err)
	}

	var handlerCalled bool
	if err := RegisterErrorHandler(p, child, root, func(origin *task.Task, err error) (Disposition, error) {
		handlerCalled = true
		return Handle, nil
	}); err != nil {
		t.Fatalf("RegisterErrorHandler: %v", err)
	}

	var fatalSeen bool
	e.OnNotify(func(n Notification) {
		if n.Kind == NotificationException {
			if _, ok := n.Payload.(*FatalError); ok {
				fatalSeen = true
			}
		}
	})

	e.propagateException(child.ID(), errors.New("boom"), now)
	e.flush()

	if !handlerCalled {
		t.Error("expected handler to be invoked")
	}
	if fatalSeen {
		t.Error("expected no FatalError notification once handled")
	}
}

func TestExceptionPropagationUnhandledAtRootTerminates(t *testing.T) {
	p, e := newTestPlan(t)
	now := time.Unix(0, 0)

	root := runningTask(t, p, "root", now)

	var fatal *FatalError
	e.OnNotify(func(n Notification) {
		if f, ok := n.Payload.(*FatalError); ok {
			fatal = f
		}
	})

	e.propagateException(root.ID(), errors.New("boom"), now)
	e.flush()

	if fatal == nil {
		t.Fatal("expected a FatalError notification")
	}
	if fatal.Root != root.ID() {
		t.Errorf("FatalError.Root = %v, want %v", fatal.Root, root.ID())
	}
	if !root.State().Terminal() {
		t.Errorf("root state = %v, want terminal after unhandled exception", root.State())
	}
}

func TestExceptionPropagationTransformReplacesCause(t *testing.T) {
	p, e := newTestPlan(t)
	now := time.Unix(0, 0)

	root := task.New("root")
	child := task.New("child")
	if err := p.Add(root); err != nil {
		t.Fatalf("Add(root): %v", err)
	}
	if err := p.DependsOnEdge(root, child, nil); err != nil {
		t.Fatalf("DependsOnEdge: %v", err)
	}

	replacement := errors.New("wrapped")
	if err := RegisterErrorHandler(p, child, root, func(origin *task.Task, err error) (Disposition, error) {
		return Transform, replacement
	}); err != nil {
		t.Fatalf("RegisterErrorHandler: %v", err)
	}

	var fatal *FatalError
	e.OnNotify(func(n Notification) {
		if f, ok := n.Payload.(*FatalError); ok {
			fatal = f
		}
	})

	e.propagateException(child.ID(), errors.New("original"), now)
	e.flush()

	if fatal == nil {
		t.Fatal("expected a FatalError notification (root has no further parent)")
	}
	if !errors.Is(fatal.Cause.Cause, replacement) {
		t.Errorf("FatalError.Cause.Cause = %v, want %v", fatal.Cause.Cause, replacement)
	}
}

func TestFaultTableDispatchesMatchedHandlerThenFallback(t *testing.T) {
	_, e := newTestPlan(t)
	now := time.Unix(0, 0)

	ft := NewFaultTable()
	var matchedCalls, fallbackCalls int
	ft.Register(
		func(err error) bool { return err.Error() == "special" },
		func(_ *plan.Plan, _ error, _ time.Time) string { matchedCalls++; return "handled" },
	)
	ft.SetFallback(func(_ *plan.Plan, _ error, _ time.Time) string { fallbackCalls++; return "continue" })
	e.faults = ft

	handled := e.applyFaults([]error{errors.New("special"), errors.New("other")}, now)
	if handled != 2 {
		t.Errorf("applyFaults returned %d, want 2", handled)
	}
	if matchedCalls != 1 {
		t.Errorf("matched handler called %d times, want 1", matchedCalls)
	}
	if fallbackCalls != 1 {
		t.Errorf("fallback called %d times, want 1", fallbackCalls)
	}
}

func TestGarbageCollectRemovesUnreachableTaskAndFreeEvent(t *testing.T) {
	p, e := newTestPlan(t)
	now := time.Unix(0, 0)

	mission := task.New("mission")
	if err := p.Add(mission); err != nil {
		t.Fatalf("Add(mission): %v", err)
	}
	p.MarkMission(mission)

	orphan := runningTask(t, p, "orphan", now)

	freeEvt := event.New("standalone", false)
	if err := p.Add(freeEvt); err != nil {
		t.Fatalf("Add(freeEvt): %v", err)
	}

	collected := e.garbageCollect(now)
	if collected < 1 {
		t.Fatalf("garbageCollect = %d, want at least 1", collected)
	}
	if _, ok := p.Task(orphan.ID()); ok {
		t.Error("expected unreachable orphan task to be removed")
	}
	if _, ok := p.Task(mission.ID()); !ok {
		t.Error("expected mission task to survive GC")
	}
}

func TestGarbageCollectReachableTaskSurvives(t *testing.T) {
	p, e := newTestPlan(t)
	now := time.Unix(0, 0)

	mission := task.New("mission")
	if err := p.Add(mission); err != nil {
		t.Fatalf("Add(mission): %v", err)
	}
	p.MarkMission(mission)

	child := task.New("child")
	if err := p.Add(child); err != nil {
		t.Fatalf("Add(child): %v", err)
	}
	if err := p.DependsOnEdge(mission, child, nil); err != nil {
		t.Fatalf("DependsOnEdge: %v", err)
	}

	collected := e.garbageCollect(now)
	if collected != 0 {
		t.Errorf("garbageCollect = %d, want 0 (child reachable via depends_on)", collected)
	}
	if _, ok := p.Task(child.ID()); !ok {
		t.Error("expected depends_on-reachable child task to survive GC")
	}
}

func TestDryRunCountsButDoesNotCollectOrNotify(t *testing.T) {
	p := plan.New()
	c := clocktesting.NewFakePassiveClock(time.Unix(0, 0))
	e := New(p, c, WithDryRun(true))
	now := time.Unix(0, 0)

	mission := task.New("mission")
	if err := p.Add(mission); err != nil {
		t.Fatalf("Add(mission): %v", err)
	}
	p.MarkMission(mission)
	orphan := runningTask(t, p, "orphan", now)

	var delivered int
	e.OnNotify(func(Notification) { delivered++ })
	e.queue(Notification{Kind: NotificationUI, Payload: "would-have-fired"})

	stats, err := e.RunCycle(now, nil)
	if err != nil {
		t.Fatalf("RunCycle: %v", err)
	}
	if !stats.DryRun {
		t.Error("stats.DryRun = false, want true")
	}
	if stats.ObjectsCollected < 1 {
		t.Errorf("ObjectsCollected = %d, want at least 1 (orphan would be collected)", stats.ObjectsCollected)
	}
	if delivered != 0 {
		t.Errorf("delivered = %d notifications in dry-run, want 0", delivered)
	}
	if _, ok := p.Task(orphan.ID()); !ok {
		t.Error("expected orphan task to survive a dry-run cycle (nothing actually collected)")
	}
}

func TestCheckConstraintsFlagsUnsatisfiedDependency(t *testing.T) {
	p, e := newTestPlan(t)
	now := time.Unix(0, 0)

	parent := task.New("parent")
	child := runningTask(t, p, "child", now)
	if err := p.Add(parent); err != nil {
		t.Fatalf("Add(parent): %v", err)
	}
	if err := p.DependsOnEdge(parent, child, []string{task.Success}); err != nil {
		t.Fatalf("DependsOnEdge: %v", err)
	}

	// child finishes via failed, never emitting the required success event.
	if g, ok := child.Event(task.Failed); ok {
		if _, err := g.Record(nil, now); err != nil {
			t.Fatalf("record failed: %v", err)
		}
	}
	_ = child.MarkFailed()
	_ = child.MarkFinishing()
	if g, ok := child.Event(task.Stop); ok {
		if _, err := g.Record(nil, now); err != nil {
			t.Fatalf("record stop: %v", err)
		}
	}
	_ = child.MarkFinished()

	violations := e.checkConstraints(now)
	var found bool
	for _, v := range violations {
		var dep *DependencyUnsatisfiedError
		if errors.As(v, &dep) && dep.RequiredEvent == task.Success {
			found = true
		}
	}
	if !found {
		t.Errorf("expected DependencyUnsatisfiedError for required success event, got %v", violations)
	}
}
