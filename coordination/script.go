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
	"github.com/corectl/planengine/task"
	"k8s.io/utils/clock"
)

// Instruction is one step of a Script (spec.md §4.6 "script contract").
// Execute reports whether the script should advance to the next
// instruction (true) or suspend until a trigger re-runs Step (false).
type Instruction interface {
	Execute(s *Script) (bool, error)
}

// CodeError wraps an uncaught panic raised while executing a script
// instruction, attached to the script's root task (spec.md §4.6
// "Uncaught exceptions are wrapped as CodeError(root_task)").
type CodeError struct {
	Root  *task.Task
	Cause error
}

func (e *CodeError) Error() string {
	return fmt.Sprintf("coordination: code error in script for %s: %v", e.Root, e.Cause)
}

func (e *CodeError) Unwrap() error { return e.Cause }

type timer struct {
	deadline  time.Time
	cancelled bool
	fired     bool
}

// Script sequences Instructions against a root task, suspending on an
// instruction that returns false until a matching Signal or Tick call
// resumes it.
type Script struct {
	root  *task.Task
	steps []Instruction
	pos   int
	clock clock.PassiveClock

	waitingOn *event.Generator
	signaled  *event.Generator
	timers    map[string]*timer
}

// NewScript returns a script bound to root, ready to run steps in
// order starting from Step.
func NewScript(root *task.Task, c clock.PassiveClock, steps []Instruction) *Script {
	return &Script{
		root:   root,
		steps:  steps,
		clock:  c,
		timers: map[string]*timer{},
	}
}

// Root returns the script's bound root task.
func (s *Script) Root() *task.Task { return s.root }

// Done reports whether every instruction has run to completion.
func (s *Script) Done() bool { return s.pos >= len(s.steps) }

// Step runs instructions in order starting from the current position
// until one suspends (returns false) or the script completes.
func (s *Script) Step() (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &CodeError{Root: s.root, Cause: fmt.Errorf("%v", r)}
		}
	}()

	for s.pos < len(s.steps) {
		cont, err := s.steps[s.pos].Execute(s)
		if err != nil {
			return &CodeError{Root: s.root, Cause: err}
		}
		if !cont {
			return nil
		}
		s.pos++
	}
	return nil
}

// Signal resumes the script if it is currently suspended waiting on g.
func (s *Script) Signal(g *event.Generator) error {
	if s.waitingOn == nil || s.waitingOn != g {
		return nil
	}
	s.signaled = g
	return s.Step()
}

// Tick advances every running timer against now and resumes the script
// if a WaitTimeout it is suspended on has fired.
func (s *Script) Tick(now time.Time) error {
	for _, t := range s.timers {
		if !t.cancelled && !t.fired && !now.Before(t.deadline) {
			t.fired = true
		}
	}
	return s.Step()
}

// WaitEvent suspends the script until the named root event emits.
type WaitEvent struct {
	Name string
}

func (w *WaitEvent) Execute(s *Script) (bool, error) {
	g, ok := s.root.Event(w.Name)
	if !ok {
		return false, fmt.Errorf("coordination: root has no event %q", w.Name)
	}
	if s.waitingOn == g && s.signaled == g {
		s.waitingOn = nil
		s.signaled = nil
		return true, nil
	}
	s.waitingOn = g
	return false, nil
}

// Emit records an emission on the named root event and continues
// immediately.
type Emit struct {
	Name    string
	Context any
	At      time.Time
}

func (e *Emit) Execute(s *Script) (bool, error) {
	g, ok := s.root.Event(e.Name)
	if !ok {
		return false, fmt.Errorf("coordination: root has no event %q", e.Name)
	}
	at := e.At
	if at.IsZero() {
		at = s.clock.Now()
	}
	_, err := g.Record(e.Context, at)
	return err == nil, err
}

// StartTimeout begins a named timer that fires After has elapsed;
// pairs with StopTimeout to cancel it (spec.md §4.6 "Timeout start/stop
// are paired instructions").
type StartTimeout struct {
	Name  string
	After time.Duration
}

func (t *StartTimeout) Execute(s *Script) (bool, error) {
	s.timers[t.Name] = &timer{deadline: s.clock.Now().Add(t.After)}
	return true, nil
}

// StopTimeout disables a timer started with StartTimeout; a cancelled
// timer never fires and a WaitTimeout on it falls through immediately.
type StopTimeout struct {
	Name string
}

func (t *StopTimeout) Execute(s *Script) (bool, error) {
	if timer, ok := s.timers[t.Name]; ok {
		timer.cancelled = true
	}
	return true, nil
}

// WaitTimeout suspends the script until the named timer fires (via
// Tick) or has been cancelled.
type WaitTimeout struct {
	Name string
}

func (w *WaitTimeout) Execute(s *Script) (bool, error) {
	t, ok := s.timers[w.Name]
	if !ok {
		return false, fmt.Errorf("coordination: timeout %q not started", w.Name)
	}
	if t.cancelled || t.fired {
		return true, nil
	}
	return false, nil
}

// Branch conditionally splices a set of instructions in place, right
// after itself, when Cond holds.
type Branch struct {
	Cond   func(*Script) bool
	IfTrue []Instruction
}

func (b *Branch) Execute(s *Script) (bool, error) {
	if b.Cond(s) {
		tail := append([]Instruction(nil), s.steps[s.pos+1:]...)
		s.steps = append(append(append([]Instruction(nil), s.steps[:s.pos+1]...), b.IfTrue...), tail...)
	}
	return true, nil
}
