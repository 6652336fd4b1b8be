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
	"testing"
	"time"

	"github.com/corectl/planengine/plan"
	"github.com/corectl/planengine/task"
	clocktesting "k8s.io/utils/clock/testing"
)

func newScriptRoot(t *testing.T) (*plan.Plan, *task.Task) {
	t.Helper()
	p := plan.New()
	root := task.New("deploy")
	if err := p.Add(root); err != nil {
		t.Fatalf("Add(root): %v", err)
	}
	return p, root
}

func TestScriptRunsToCompletionWithoutSuspendingInstructions(t *testing.T) {
	_, root := newScriptRoot(t)
	fc := clocktesting.NewFakePassiveClock(time.Unix(0, 0))
	s := NewScript(root, fc, []Instruction{
		&Emit{Name: task.Start},
	})
	if err := s.Step(); err != nil {
		t.Fatalf("Step: %v", err)
	}
	if !s.Done() {
		t.Error("Done() = false, want true")
	}
	g, _ := root.Event(task.Start)
	if !g.EmittedEver() {
		t.Error("start event was not recorded")
	}
}

func TestScriptWaitEventSuspendsUntilSignal(t *testing.T) {
	_, root := newScriptRoot(t)
	fc := clocktesting.NewFakePassiveClock(time.Unix(0, 0))
	s := NewScript(root, fc, []Instruction{
		&WaitEvent{Name: task.Start},
		&Emit{Name: task.Success},
	})
	if err := s.Step(); err != nil {
		t.Fatalf("Step: %v", err)
	}
	if s.Done() {
		t.Fatal("Done() = true before start emitted, want suspended")
	}

	g, _ := root.Event(task.Start)
	if _, err := g.Record(nil, time.Unix(1, 0)); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if err := s.Signal(g); err != nil {
		t.Fatalf("Signal: %v", err)
	}
	if !s.Done() {
		t.Fatal("Done() = false after signal, want completed")
	}
	sg, _ := root.Event(task.Success)
	if !sg.EmittedEver() {
		t.Error("success event was not recorded after resume")
	}
}

func TestScriptTimeoutFiresAndResumes(t *testing.T) {
	_, root := newScriptRoot(t)
	fc := clocktesting.NewFakePassiveClock(time.Unix(0, 0))
	s := NewScript(root, fc, []Instruction{
		&StartTimeout{Name: "grace", After: 10 * time.Second},
		&WaitTimeout{Name: "grace"},
		&Emit{Name: task.Failed},
	})
	if err := s.Step(); err != nil {
		t.Fatalf("Step: %v", err)
	}
	if s.Done() {
		t.Fatal("Done() = true before timeout elapsed, want suspended")
	}

	if err := s.Tick(time.Unix(5, 0)); err != nil {
		t.Fatalf("Tick (early): %v", err)
	}
	if s.Done() {
		t.Fatal("Done() = true before deadline, want still suspended")
	}

	if err := s.Tick(time.Unix(11, 0)); err != nil {
		t.Fatalf("Tick (after deadline): %v", err)
	}
	if !s.Done() {
		t.Fatal("Done() = false after deadline elapsed, want completed")
	}
	fg, _ := root.Event(task.Failed)
	if !fg.EmittedEver() {
		t.Error("failed event was not recorded after timeout")
	}
}

func TestScriptStopTimeoutCancelsWait(t *testing.T) {
	_, root := newScriptRoot(t)
	fc := clocktesting.NewFakePassiveClock(time.Unix(0, 0))
	s := NewScript(root, fc, []Instruction{
		&StartTimeout{Name: "grace", After: 10 * time.Second},
		&StopTimeout{Name: "grace"},
		&WaitTimeout{Name: "grace"},
		&Emit{Name: task.Success},
	})
	if err := s.Step(); err != nil {
		t.Fatalf("Step: %v", err)
	}
	if !s.Done() {
		t.Fatal("Done() = false, want completed (cancelled timer falls through immediately)")
	}
}

func TestScriptBranchSplicesInstructions(t *testing.T) {
	_, root := newScriptRoot(t)
	fc := clocktesting.NewFakePassiveClock(time.Unix(0, 0))
	s := NewScript(root, fc, []Instruction{
		&Branch{
			Cond:   func(*Script) bool { return true },
			IfTrue: []Instruction{&Emit{Name: task.Success}},
		},
	})
	if err := s.Step(); err != nil {
		t.Fatalf("Step: %v", err)
	}
	if !s.Done() {
		t.Fatal("Done() = false, want completed")
	}
	g, _ := root.Event(task.Success)
	if !g.EmittedEver() {
		t.Error("branch-spliced emit did not record success")
	}
}

func TestScriptCodeErrorWrapsPanic(t *testing.T) {
	_, root := newScriptRoot(t)
	fc := clocktesting.NewFakePassiveClock(time.Unix(0, 0))
	s := NewScript(root, fc, []Instruction{panicInstruction{}})
	err := s.Step()
	if err == nil {
		t.Fatal("Step succeeded, want CodeError")
	}
	if _, ok := err.(*CodeError); !ok {
		t.Fatalf("Step error = %T, want *CodeError", err)
	}
}

type panicInstruction struct{}

func (panicInstruction) Execute(*Script) (bool, error) {
	panic("boom")
}
