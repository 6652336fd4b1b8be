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

// Package coordination implements action coordination of spec.md §4.6:
// state machines whose states instantiate task sets with roles, and
// scripts that sequence wait/emit/timeout/branch instructions against a
// root task.
//
// Grounded on the teacher's exec.Action Want/Signal contract
// (pkg/cloud/rgraph/exec/action.go): an Action there tracks a pending
// Want list and becomes runnable once every wanted Event has Signaled
// it. Script instructions here play the same CanRun/Signal role for a
// sequence of heterogeneous steps instead of a single action.
package coordination

import (
	"fmt"

	"github.com/corectl/planengine/event"
	"github.com/corectl/planengine/task"
)

// UnboundHandleError is returned by Context accessors before the context
// has been bound to a root task (spec.md §4.6 "until bound, attribute
// access returns a deferred reference").
type UnboundHandleError struct {
	Handle string
}

func (e *UnboundHandleError) Error() string {
	return fmt.Sprintf("coordination: handle %q accessed before context bound", e.Handle)
}

// Context binds a root task and an argument map to a coordination
// model, resolving the symbolic handles (event, child, variable) that
// scripts and state machines reference.
type Context struct {
	root      *task.Task
	args      map[string]any
	roleTasks map[string]*task.Task
}

// NewContext returns a context bound to root and args immediately. Use
// NewDeferredContext to build one that resolves handles lazily.
func NewContext(root *task.Task, args map[string]any) *Context {
	return &Context{root: root, args: args}
}

// NewDeferredContext returns an unbound context; every handle access
// errors with UnboundHandleError until Bind is called.
func NewDeferredContext() *Context {
	return &Context{}
}

// Bind attaches root, args, and the current role→task assignment (as
// maintained by a StateMachine's active state) to a previously deferred
// context.
func (c *Context) Bind(root *task.Task, args map[string]any, roleTasks map[string]*task.Task) {
	c.root = root
	c.args = args
	c.roleTasks = roleTasks
}

// Bound reports whether the context has a root task.
func (c *Context) Bound() bool { return c.root != nil }

// Root returns the bound root task, or nil if unbound.
func (c *Context) Root() *task.Task { return c.root }

// Event resolves the "event" handle: a named event on the root task.
func (c *Context) Event(name string) (*event.Generator, error) {
	if c.root == nil {
		return nil, &UnboundHandleError{Handle: "event:" + name}
	}
	g, ok := c.root.Event(name)
	if !ok {
		return nil, fmt.Errorf("coordination: root has no event %q", name)
	}
	return g, nil
}

// Child resolves the "child" handle: the task currently instantiated
// for the given role by the owning state machine's active state.
func (c *Context) Child(role string) (*task.Task, error) {
	if c.root == nil {
		return nil, &UnboundHandleError{Handle: "child:" + role}
	}
	t, ok := c.roleTasks[role]
	if !ok {
		return nil, fmt.Errorf("coordination: no child bound to role %q", role)
	}
	return t, nil
}

// Variable resolves the "variable" handle: a value from the context's
// argument map.
func (c *Context) Variable(name string) (any, error) {
	if c.root == nil {
		return nil, &UnboundHandleError{Handle: "variable:" + name}
	}
	v, ok := c.args[name]
	if !ok {
		return nil, fmt.Errorf("coordination: no variable %q bound", name)
	}
	return v, nil
}
