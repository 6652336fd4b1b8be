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

// Package logstream implements the read-only, cycle-by-cycle plan delta
// stream of spec.md §6: a sequence of small packets describing what
// changed in a plan, and a Replay fold that reconstructs a plan
// snapshot from nothing but that sequence. There is no persistence
// layer here (§1 Non-goals: "persistence of historical logs") — this
// package only defines the wire shapes and the in-memory fold, the way
// spec.md §6 scopes it ("no on-disk log format").
//
// Grounded on the teacher's rgraph/workflow/plan got/want diff walk
// (workflow/plan/plan.go), generalized from "diff two graphs, emit an
// action list" to "diff one plan's state over time, emit a delta
// stream"; the delta Kind enum mirrors spec.md §6's own naming exactly.
package logstream

// Kind tags the shape of a Delta (spec.md §6's named plan-delta shapes).
type Kind string

const (
	KindObjectAdded     Kind = "object_added"
	KindObjectFinalized Kind = "object_finalized"
	KindEdgeAdded       Kind = "edge_added"
	KindEdgeRemoved     Kind = "edge_removed"
	KindEventEmitted    Kind = "event_emitted"
	KindEventCalled     Kind = "event_called"
	KindStatusChanged   Kind = "status_changed"
)

// Delta is one entry in the plan delta stream.
type Delta struct {
	Kind Kind `msgpack:"kind"`

	ObjectAdded     *ObjectAdded     `msgpack:"object_added,omitempty"`
	ObjectFinalized *ObjectFinalized `msgpack:"object_finalized,omitempty"`
	EdgeAdded       *EdgeChange      `msgpack:"edge_added,omitempty"`
	EdgeRemoved     *EdgeChange      `msgpack:"edge_removed,omitempty"`
	EventEmitted    *EventOccurrence `msgpack:"event_emitted,omitempty"`
	EventCalled     *EventOccurrence `msgpack:"event_called,omitempty"`
	StatusChanged   *StatusChange    `msgpack:"status_changed,omitempty"`
}

// ObjectAdded records a task or free event entering the plan.
type ObjectAdded struct {
	ID    string `msgpack:"id"`
	Kind  string `msgpack:"object_kind"` // "task" or "event"
	Model string `msgpack:"model,omitempty"`
	Name  string `msgpack:"name,omitempty"`
}

// ObjectFinalized records a task or free event leaving the plan.
type ObjectFinalized struct {
	ID string `msgpack:"id"`
}

// EdgeChange records a relation-graph edge's addition or removal.
type EdgeChange struct {
	Space string `msgpack:"space"` // "task" or "event"
	Class string `msgpack:"class"`
	From  string `msgpack:"from"`
	To    string `msgpack:"to"`
}

// EventOccurrence records an event generator's call or emission.
type EventOccurrence struct {
	ID string `msgpack:"id"`
}

// StatusChange records a mission/permanent flag transition (spec.md
// §4.2 "notify status-change observers exactly when the flag
// transitions").
type StatusChange struct {
	ID        string `msgpack:"id"`
	Mission   bool   `msgpack:"mission"`
	Permanent bool   `msgpack:"permanent"`
}

// ObjectAddedDelta builds an object_added Delta.
func ObjectAddedDelta(id, objectKind, model, name string) Delta {
	return Delta{Kind: KindObjectAdded, ObjectAdded: &ObjectAdded{ID: id, Kind: objectKind, Model: model, Name: name}}
}

// ObjectFinalizedDelta builds an object_finalized Delta.
func ObjectFinalizedDelta(id string) Delta {
	return Delta{Kind: KindObjectFinalized, ObjectFinalized: &ObjectFinalized{ID: id}}
}

// EdgeAddedDelta builds an edge_added Delta.
func EdgeAddedDelta(space, class, from, to string) Delta {
	return Delta{Kind: KindEdgeAdded, EdgeAdded: &EdgeChange{Space: space, Class: class, From: from, To: to}}
}

// EdgeRemovedDelta builds an edge_removed Delta.
func EdgeRemovedDelta(space, class, from, to string) Delta {
	return Delta{Kind: KindEdgeRemoved, EdgeRemoved: &EdgeChange{Space: space, Class: class, From: from, To: to}}
}

// EventEmittedDelta builds an event_emitted Delta.
func EventEmittedDelta(id string) Delta {
	return Delta{Kind: KindEventEmitted, EventEmitted: &EventOccurrence{ID: id}}
}

// EventCalledDelta builds an event_called Delta.
func EventCalledDelta(id string) Delta {
	return Delta{Kind: KindEventCalled, EventCalled: &EventOccurrence{ID: id}}
}

// StatusChangedDelta builds a status_changed Delta.
func StatusChangedDelta(id string, mission, permanent bool) Delta {
	return Delta{Kind: KindStatusChanged, StatusChanged: &StatusChange{ID: id, Mission: mission, Permanent: permanent}}
}
