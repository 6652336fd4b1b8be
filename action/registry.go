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

package action

import "fmt"

// Factory elaborates an Action into a sub-plan root task. The returned
// value is left as `any` here (rather than importing task.Task) so this
// package has no dependency on plan/task/job — the job package wires a
// Factory's result into a placeholder/planning-task pair at invocation
// time (spec.md §4.4 Jobs).
type Factory func(a *Action) (any, error)

// Library exposes a named set of actions to the interface, as spec.md
// §6 "Action registration" describes: "Action libraries expose their
// actions by name to the interface; argument descriptors are
// transmitted with the action model."
type Library struct {
	name    string
	models  map[string]*Model
	factory map[string]Factory
}

// NewLibrary returns an empty, named action library.
func NewLibrary(name string) *Library {
	return &Library{name: name, models: map[string]*Model{}, factory: map[string]Factory{}}
}

// Name returns the library's name.
func (l *Library) Name() string { return l.name }

// Register adds a model and its factory under model.Name. It panics on a
// duplicate name, a construction-time programmer error.
func (l *Library) Register(m *Model, f Factory) {
	if _, exists := l.models[m.Name]; exists {
		panic(fmt.Sprintf("action: library %s already has a model named %q", l.name, m.Name))
	}
	l.models[m.Name] = m
	l.factory[m.Name] = f
}

// ErrUnknownAction is returned by Invoke for a name not registered in
// the library.
var ErrUnknownAction = fmt.Errorf("action: unknown action")

// Model looks up a registered model by name.
func (l *Library) Model(name string) (*Model, bool) {
	m, ok := l.models[name]
	return m, ok
}

// Models returns every registered model, in no particular order.
func (l *Library) Models() []*Model {
	out := make([]*Model, 0, len(l.models))
	for _, m := range l.models {
		out = append(out, m)
	}
	return out
}

// Invoke validates args against the named model and runs its factory.
func (l *Library) Invoke(name string, args map[string]any) (any, error) {
	m, ok := l.models[name]
	if !ok {
		return nil, fmt.Errorf("%s: %w", name, ErrUnknownAction)
	}
	a := New(m, args)
	if err := a.Validate(); err != nil {
		return nil, err
	}
	return l.factory[name](a)
}
