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

package planobj

import (
	"testing"
	"time"
)

func TestBaseLifecycle(t *testing.T) {
	var b Base
	b.Init(ObjID{Kind: KindTask, Index: 3, Gen: 1})

	if got := b.ID(); got.Index != 3 || got.Kind != KindTask {
		t.Fatalf("ID = %+v", got)
	}
	if b.OwningPlan() != nil {
		t.Error("OwningPlan should start nil")
	}
	if b.IsFinalized() {
		t.Error("should not start finalized")
	}

	b.SetOwningPlan("fake-plan")
	if b.OwningPlan() != "fake-plan" {
		t.Error("SetOwningPlan did not stick")
	}

	now := time.Now()
	b.Finalize(now)
	if !b.IsFinalized() {
		t.Error("should be finalized after Finalize")
	}
	if !b.FinalizedAt().Equal(now) {
		t.Errorf("FinalizedAt = %v, want %v", b.FinalizedAt(), now)
	}
}

func TestObjIDString(t *testing.T) {
	id := ObjID{Kind: KindEvent, Index: 12, Gen: 0}
	if got, want := id.String(), "Event#12.0"; got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}
