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

	"github.com/corectl/planengine/event"
	"github.com/corectl/planengine/plan"
	"github.com/corectl/planengine/task"
)

func newRootInPlan(t *testing.T, model string) (*plan.Plan, *task.Task) {
	t.Helper()
	p := plan.New()
	root := task.New(model)
	if err := p.Add(root); err != nil {
		t.Fatalf("Add(root): %v", err)
	}
	return p, root
}

func TestStateMachineEnterInstantiatesTasksAndForwards(t *testing.T) {
	p, root := newRootInPlan(t, "deploy")

	states := []*State{
		{
			Name: "provisioning",
			Tasks: []TaskSpec{
				{Role: "vm", Model: "provision_vm", Arguments: map[string]any{"zone": "us-central1-a"}},
			},
			Forwards: []EventForward{
				{Role: "vm", LocalEvent: task.Success, RootEvent: task.Success},
			},
		},
	}
	sm, err := NewStateMachine(root, states, nil)
	if err != nil {
		t.Fatalf("NewStateMachine: %v", err)
	}

	now := time.Unix(0, 0)
	if err := sm.Enter(p, "provisioning", now); err != nil {
		t.Fatalf("Enter: %v", err)
	}
	if sm.Current() != "provisioning" {
		t.Fatalf("Current() = %q, want provisioning", sm.Current())
	}
	vm, ok := sm.RoleTask("vm")
	if !ok {
		t.Fatal("role vm not instantiated")
	}
	if zone, _ := vm.Argument("zone"); zone != "us-central1-a" {
		t.Errorf("zone = %v, want us-central1-a", zone)
	}

	dependsOn := p.TaskGraph().Graph(plan.DependsOn)
	if !dependsOn.HasEdge(root.ID(), vm.ID()) {
		t.Error("expected depends_on edge from root to vm task")
	}

	var rootSucceeded bool
	rg, _ := root.Event(task.Success)
	rg.AddHandler(func(event.Emission) error { rootSucceeded = true; return nil })

	vg, _ := vm.Event(task.Success)
	if _, err := vg.Record(nil, now); err != nil {
		t.Fatalf("Record on vm success: %v", err)
	}
	if !rootSucceeded {
		t.Error("root success handler was not invoked by forwarded vm success")
	}
}

func TestStateMachineHandleEventTearsDownAndEnters(t *testing.T) {
	p, root := newRootInPlan(t, "deploy")
	states := []*State{
		{Name: "provisioning", Tasks: []TaskSpec{{Role: "vm", Model: "provision_vm"}}},
		{Name: "configuring", Tasks: []TaskSpec{{Role: "cfg", Model: "configure_vm"}}},
	}
	transitions := []Transition{
		{FromState: "provisioning", OnEvent: "provisioned", ToState: "configuring"},
	}
	sm, err := NewStateMachine(root, states, transitions)
	if err != nil {
		t.Fatalf("NewStateMachine: %v", err)
	}

	now := time.Unix(0, 0)
	if err := sm.Enter(p, "provisioning", now); err != nil {
		t.Fatalf("Enter: %v", err)
	}
	vm, _ := sm.RoleTask("vm")

	if err := sm.HandleEvent(p, "provisioned", now); err != nil {
		t.Fatalf("HandleEvent: %v", err)
	}
	if sm.Current() != "configuring" {
		t.Fatalf("Current() = %q, want configuring", sm.Current())
	}
	if _, ok := sm.RoleTask("vm"); ok {
		t.Error("vm role still present after transition out of provisioning")
	}
	if _, ok := sm.RoleTask("cfg"); !ok {
		t.Error("cfg role not instantiated after transition into configuring")
	}

	dependsOn := p.TaskGraph().Graph(plan.DependsOn)
	if dependsOn.HasEdge(root.ID(), vm.ID()) {
		t.Error("expected depends_on edge to vm removed on state exit")
	}
}

func TestStateMachineHandleEventUnknownEventRejected(t *testing.T) {
	p, root := newRootInPlan(t, "deploy")
	states := []*State{{Name: "provisioning"}}
	sm, err := NewStateMachine(root, states, nil)
	if err != nil {
		t.Fatalf("NewStateMachine: %v", err)
	}
	if err := sm.Enter(p, "provisioning", time.Unix(0, 0)); err != nil {
		t.Fatalf("Enter: %v", err)
	}
	if err := sm.HandleEvent(p, "nope", time.Unix(0, 0)); err == nil {
		t.Fatal("HandleEvent with unknown event succeeded, want ErrNoTransition")
	}
}

func TestNewStateMachineRejectsUnknownTransitionTarget(t *testing.T) {
	_, root := newRootInPlan(t, "deploy")
	states := []*State{{Name: "a"}}
	_, err := NewStateMachine(root, states, []Transition{{FromState: "a", OnEvent: "x", ToState: "b"}})
	if err == nil {
		t.Fatal("NewStateMachine with unknown transition target succeeded, want error")
	}
}
