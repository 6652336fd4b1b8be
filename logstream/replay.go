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

package logstream

// ObjectSnapshot is a replay consumer's view of one plan object: enough
// to answer "what does the plan currently look like" without
// reconstructing a live task.Task/event.Generator (which carry behavior
// a read-only viewer has no business re-running).
type ObjectSnapshot struct {
	ID        string
	Kind      string // "task" or "event"
	Model     string
	Name      string
	Mission   bool
	Permanent bool
	Emissions int
	Calls     int
}

// Edge is one relation-graph edge in a snapshot.
type Edge struct {
	Space string
	Class string
	From  string
	To    string
}

// Snapshot is the replay consumer's reconstruction of a plan's current
// shape, built by folding a Delta stream from an empty starting point
// (spec.md §6: "a replay consumer reconstructs plan snapshots from a
// starting empty plan").
type Snapshot struct {
	Objects map[string]*ObjectSnapshot
	Edges   []Edge
}

// NewSnapshot returns an empty snapshot.
func NewSnapshot() *Snapshot {
	return &Snapshot{Objects: map[string]*ObjectSnapshot{}}
}

// Replay folds deltas, in order, onto base (or a fresh Snapshot if base
// is nil), returning the resulting snapshot. Folding is append-only
// except for ObjectFinalized (which deletes the object) and EdgeRemoved
// (which deletes the matching edge): every other delta kind mutates or
// inserts in place, mirroring how the live plan itself only ever adds,
// mutates status, or removes.
func Replay(base *Snapshot, deltas []Delta) *Snapshot {
	snap := base
	if snap == nil {
		snap = NewSnapshot()
	}
	for _, d := range deltas {
		applyDelta(snap, d)
	}
	return snap
}

func applyDelta(snap *Snapshot, d Delta) {
	switch d.Kind {
	case KindObjectAdded:
		a := d.ObjectAdded
		if a == nil {
			return
		}
		snap.Objects[a.ID] = &ObjectSnapshot{ID: a.ID, Kind: a.Kind, Model: a.Model, Name: a.Name}

	case KindObjectFinalized:
		f := d.ObjectFinalized
		if f == nil {
			return
		}
		delete(snap.Objects, f.ID)
		kept := snap.Edges[:0:0]
		for _, e := range snap.Edges {
			if e.From != f.ID && e.To != f.ID {
				kept = append(kept, e)
			}
		}
		snap.Edges = kept

	case KindEdgeAdded:
		e := d.EdgeAdded
		if e == nil {
			return
		}
		snap.Edges = append(snap.Edges, Edge{Space: e.Space, Class: e.Class, From: e.From, To: e.To})

	case KindEdgeRemoved:
		e := d.EdgeRemoved
		if e == nil {
			return
		}
		kept := snap.Edges[:0:0]
		for _, existing := range snap.Edges {
			if existing == (Edge{Space: e.Space, Class: e.Class, From: e.From, To: e.To}) {
				continue
			}
			kept = append(kept, existing)
		}
		snap.Edges = kept

	case KindEventEmitted:
		o := d.EventEmitted
		if o == nil {
			return
		}
		if obj, ok := snap.Objects[o.ID]; ok {
			obj.Emissions++
		}

	case KindEventCalled:
		o := d.EventCalled
		if o == nil {
			return
		}
		if obj, ok := snap.Objects[o.ID]; ok {
			obj.Calls++
		}

	case KindStatusChanged:
		s := d.StatusChanged
		if s == nil {
			return
		}
		if obj, ok := snap.Objects[s.ID]; ok {
			obj.Mission = s.Mission
			obj.Permanent = s.Permanent
		}
	}
}
