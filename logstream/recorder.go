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

import (
	"github.com/corectl/planengine/planobj"
	"github.com/corectl/planengine/plan"
)

// Recorder accumulates the Delta stream for one plan. It subscribes to
// Plan.OnStatusChange directly (the one delta kind the plan already
// exposes a hook for) and exposes explicit Record* methods for the
// other kinds, called by whatever already observes the matching
// plan/engine/relgraph operation (Plan.Add, Plan.Remove,
// relgraph.Graph.AddEdge/RemoveEdge, event.Generator.Record).
type Recorder struct {
	deltas []Delta
}

// NewRecorder returns a Recorder subscribed to p's status-change
// notifications.
func NewRecorder(p *plan.Plan) *Recorder {
	r := &Recorder{}
	p.OnStatusChange(func(id planobj.ObjID, mission, permanent bool) {
		r.deltas = append(r.deltas, StatusChangedDelta(id.String(), mission, permanent))
	})
	return r
}

// Deltas returns every delta recorded so far, oldest first.
func (r *Recorder) Deltas() []Delta {
	return append([]Delta(nil), r.deltas...)
}

// Drain returns every delta recorded so far and clears the buffer, for
// a caller that wants to ship one batch of deltas per cycle (paired
// with engine.CycleStats's cycle_end, per spec.md §6's log stream being
// "cycle-by-cycle").
func (r *Recorder) Drain() []Delta {
	out := r.deltas
	r.deltas = nil
	return out
}

// RecordObjectAdded appends an object_added delta.
func (r *Recorder) RecordObjectAdded(id planobj.ObjID, objectKind, model, name string) {
	r.deltas = append(r.deltas, ObjectAddedDelta(id.String(), objectKind, model, name))
}

// RecordObjectFinalized appends an object_finalized delta.
func (r *Recorder) RecordObjectFinalized(id planobj.ObjID) {
	r.deltas = append(r.deltas, ObjectFinalizedDelta(id.String()))
}

// RecordEdgeAdded appends an edge_added delta.
func (r *Recorder) RecordEdgeAdded(space, class string, from, to planobj.ObjID) {
	r.deltas = append(r.deltas, EdgeAddedDelta(space, class, from.String(), to.String()))
}

// RecordEdgeRemoved appends an edge_removed delta.
func (r *Recorder) RecordEdgeRemoved(space, class string, from, to planobj.ObjID) {
	r.deltas = append(r.deltas, EdgeRemovedDelta(space, class, from.String(), to.String()))
}

// RecordEventEmitted appends an event_emitted delta.
func (r *Recorder) RecordEventEmitted(id planobj.ObjID) {
	r.deltas = append(r.deltas, EventEmittedDelta(id.String()))
}

// RecordEventCalled appends an event_called delta.
func (r *Recorder) RecordEventCalled(id planobj.ObjID) {
	r.deltas = append(r.deltas, EventCalledDelta(id.String()))
}
