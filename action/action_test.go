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

import (
	"errors"
	"testing"
)

func deployModel() *Model {
	return &Model{
		Name: "deploy",
		Doc:  "deploys a service",
		Arguments: []ArgumentDescriptor{
			{Name: "service", Required: true, Type: "string"},
			{Name: "replicas", Required: false, Default: 1, Type: "int"},
		},
		ReturnedModel: "deployment",
	}
}

func TestNewAppliesDefaults(t *testing.T) {
	m := deployModel()
	a := New(m, map[string]any{"service": "web"})
	if a.Arguments["replicas"] != 1 {
		t.Errorf("replicas = %v, want default 1", a.Arguments["replicas"])
	}
	if a.Arguments["service"] != "web" {
		t.Errorf("service = %v, want web", a.Arguments["service"])
	}
}

func TestValidateMissingRequired(t *testing.T) {
	m := deployModel()
	a := New(m, map[string]any{})
	if err := a.Validate(); !errors.Is(err, ErrMissingArgument) {
		t.Fatalf("Validate = %v, want ErrMissingArgument", err)
	}
}

func TestValidateUnknownArgument(t *testing.T) {
	m := deployModel()
	a := New(m, map[string]any{"service": "web", "bogus": true})
	if err := a.Validate(); !errors.Is(err, ErrUnknownArgument) {
		t.Fatalf("Validate = %v, want ErrUnknownArgument", err)
	}
}

func TestLibraryInvoke(t *testing.T) {
	lib := NewLibrary("demo")
	called := false
	lib.Register(deployModel(), func(a *Action) (any, error) {
		called = true
		return a.Arguments["service"], nil
	})

	out, err := lib.Invoke("deploy", map[string]any{"service": "web"})
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if !called {
		t.Error("factory was not called")
	}
	if out != "web" {
		t.Errorf("out = %v, want web", out)
	}
}

func TestLibraryInvokeUnknownAction(t *testing.T) {
	lib := NewLibrary("demo")
	if _, err := lib.Invoke("nope", nil); !errors.Is(err, ErrUnknownAction) {
		t.Fatalf("Invoke = %v, want ErrUnknownAction", err)
	}
}

func TestLibraryRegisterDuplicatePanics(t *testing.T) {
	lib := NewLibrary("demo")
	lib.Register(deployModel(), func(a *Action) (any, error) { return nil, nil })

	defer func() {
		if r := recover(); r == nil {
			t.Error("expected panic on duplicate registration")
		}
	}()
	lib.Register(deployModel(), func(a *Action) (any, error) { return nil, nil })
}
