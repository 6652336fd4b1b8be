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

// Package action implements the action/action-model core of spec.md §3:
// a named, documented factory (with typed argument descriptors)
// producing a sub-plan, usually behind a planning task.
//
// Grounded on the teacher's rnode.Builder (pkg/cloud/rgraph/rnode/builder.go):
// there, a Builder accumulates descriptor-validated fields before
// producing a concrete Node. Model/Action here generalizes that
// descriptor-driven construction from "build one typed resource" to
// "build an arbitrary sub-plan", since an action's output is a task
// graph rather than a single struct.
package action

import "fmt"

// ArgumentDescriptor describes one named argument an action model
// accepts (spec.md §3 "argument descriptors (name, required?, default,
// type)").
type ArgumentDescriptor struct {
	Name     string
	Required bool
	Default  any
	// Type is a human-readable type tag (e.g. "string", "int",
	// "[]string") used for documentation only; Validate does not check
	// argument values against it. This module does not attempt static typing
	// of argument payloads, matching the dynamically-typed `info` and
	// `arguments` payloads used throughout the rest of the substrate.
	Type string
}

// Model describes an action: its name, documentation, argument
// descriptors, and the task model name it produces (spec.md §3
// "returned-type (task model)").
type Model struct {
	Name          string
	Doc           string
	Arguments     []ArgumentDescriptor
	ReturnedModel string
}

// Descriptor looks up an argument descriptor by name.
func (m *Model) Descriptor(name string) (ArgumentDescriptor, bool) {
	for _, d := range m.Arguments {
		if d.Name == name {
			return d, true
		}
	}
	return ArgumentDescriptor{}, false
}

// ErrMissingArgument and ErrUnknownArgument are the two InvalidArgument
// cases Validate distinguishes.
var (
	ErrMissingArgument = fmt.Errorf("action: missing required argument")
	ErrUnknownArgument = fmt.Errorf("action: unknown argument")
)

// Action is an (action-model, argument-map) pair (spec.md §3).
type Action struct {
	Model     *Model
	Arguments map[string]any
}

// New builds an Action, applying the model's declared defaults for any
// argument the caller did not supply.
func New(m *Model, args map[string]any) *Action {
	merged := make(map[string]any, len(args))
	for _, d := range m.Arguments {
		if d.Default != nil {
			merged[d.Name] = d.Default
		}
	}
	for k, v := range args {
		merged[k] = v
	}
	return &Action{Model: m, Arguments: merged}
}

// Validate checks that every required argument is present and that no
// argument outside the model's declared set was supplied.
func (a *Action) Validate() error {
	declared := make(map[string]bool, len(a.Model.Arguments))
	for _, d := range a.Model.Arguments {
		declared[d.Name] = true
		if d.Required {
			if _, ok := a.Arguments[d.Name]; !ok {
				return fmt.Errorf("%s: %w %q", a.Model.Name, ErrMissingArgument, d.Name)
			}
		}
	}
	for k := range a.Arguments {
		if !declared[k] {
			return fmt.Errorf("%s: %w %q", a.Model.Name, ErrUnknownArgument, k)
		}
	}
	return nil
}
