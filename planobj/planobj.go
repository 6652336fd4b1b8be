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

// Package planobj defines the abstract ancestor of tasks and events
// (spec.md §3 "Plan object") and the stable-index identity scheme used to
// address them without Go pointers, per spec.md §9 ("cyclic object
// graphs" / "arena-of-nodes + stable indices").
//
// Tasks and bound events back-reference each other (a task enumerates its
// bound events; a bound event knows its task), and relation graphs hold
// edges between arbitrary plan objects. Modeling all of that with raw
// pointers would make finalization and garbage collection hard to reason
// about, so every reference in this module is an ObjID: an arena index
// plus a generation counter, resolved back to a live object only through
// the owning Plan's arena.
package planobj

import "time"

// Kind distinguishes a Task identity from an Event identity, so that the
// two identity spaces (and their relation Registries, see relgraph) never
// collide even though both are arena-indexed.
type Kind int

const (
	KindTask Kind = iota
	KindEvent
)

func (k Kind) String() string {
	if k == KindTask {
		return "Task"
	}
	return "Event"
}

// ObjID addresses a plan object by index. A Plan never reuses an index,
// so Gen stays 0 for every object it adds; it is part of the identity
// and of String's output but nothing in this module increments it.
type ObjID struct {
	Kind  Kind
	Index int
	Gen   int
}

func (id ObjID) String() string {
	return id.Kind.String() + "#" + itoa(id.Index) + "." + itoa(id.Gen)
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

// Base is embedded by Task and Event to provide the common Plan object
// fields from spec.md §3: identity, owning plan (nil before addition),
// and finalization timestamp (zero while live).
type Base struct {
	id          ObjID
	owningPlan  any
	finalizedAt time.Time
}

// Init sets the object's identity. Called once by Plan.Add when a task
// or event is added to a plan.
func (b *Base) Init(id ObjID) { b.id = id }

// ID returns the object's stable identity.
func (b *Base) ID() ObjID { return b.id }

// OwningPlan returns the Plan this object currently belongs to, or nil
// if it has never been added to one (or has been removed/finalized).
// The concrete type is always *plan.Plan; it is held as `any` here to
// avoid planobj importing plan (which imports planobj).
func (b *Base) OwningPlan() any { return b.owningPlan }

// SetOwningPlan is called by the plan package on add/remove.
func (b *Base) SetOwningPlan(p any) { b.owningPlan = p }

// Finalize records the time this object was removed from its plan for
// good. A finalized object can never be re-added (spec.md §3 invariant).
func (b *Base) Finalize(t time.Time) { b.finalizedAt = t }

// FinalizedAt returns the finalization timestamp, or the zero Time if
// the object is still live.
func (b *Base) FinalizedAt() time.Time { return b.finalizedAt }

// IsFinalized reports whether Finalize has been called.
func (b *Base) IsFinalized() bool { return !b.finalizedAt.IsZero() }
