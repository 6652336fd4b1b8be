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

package plan

import "github.com/corectl/planengine/relgraph"

// Task-space relation classes (spec.md §4.2, §4.4). DependsOn is a DAG
// (a failed child can never be masked by a dependency cycle) but is
// weak: replacing a task moves its depends_on parent edges onto the
// replacement (spec.md §8 scenario 2). ErrorHandledBy is strong: a
// handler binding is pinned to the exact task it was registered
// against and is never rewritten onto a replacement. PlanningTaskOf is
// a weak bookkeeping edge that replacement is allowed to move freely.
var (
	DependsOn = &relgraph.Class{
		Name:       "DependsOn",
		DAG:        true,
		EmbedsInfo: true,
	}
	ErrorHandledBy = &relgraph.Class{
		Name:       "ErrorHandledBy",
		Strong:     true,
		EmbedsInfo: true,
	}
	PlanningTaskOf = &relgraph.Class{
		Name: "PlanningTaskOf",
	}
)

// Event-space relation classes (spec.md §4.3, §4.5). Precedence is the
// causal-ordering superset of CausalLink (spec.md §8 scenario 1: every
// causal link is also a precedence, but not every precedence is a
// causal link). Forward and Signal drive the propagation fixpoint in
// the engine package. SchedulingMirror is the task-granularity mirror
// of TemporalMirror maintained automatically when both endpoints are
// task-bound (spec.md §4.5 "Scheduling constraints").
var (
	Precedence = &relgraph.Class{
		Name: "Precedence",
	}
	CausalLink = &relgraph.Class{
		Name:     "CausalLink",
		Superset: Precedence,
	}
	Forward = &relgraph.Class{
		Name: "Forward",
	}
	Signal = &relgraph.Class{
		Name: "Signal",
	}
	TemporalMirror = &relgraph.Class{
		Name:       "TemporalMirror",
		EmbedsInfo: true,
	}
	SchedulingMirror = &relgraph.Class{
		Name: "SchedulingMirror",
	}
)

// TaskClasses returns every relation class declared over the task-object
// identity space, for NewRegistry.
func TaskClasses() []*relgraph.Class {
	return []*relgraph.Class{DependsOn, ErrorHandledBy, PlanningTaskOf}
}

// EventClasses returns every relation class declared over the
// event-generator identity space, for NewRegistry.
func EventClasses() []*relgraph.Class {
	return []*relgraph.Class{Precedence, CausalLink, Forward, Signal, TemporalMirror, SchedulingMirror}
}
