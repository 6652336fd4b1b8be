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

// Package relgraph implements the multi-relation directed graph substrate
// described in spec.md §4.1: a registry of relation classes, each with a
// fixed set of policy flags (strong, DAG, copy-on-replace, embeds-info,
// hierarchy), and one Graph instance per class holding the actual edges.
//
// Every mutation goes through a Graph's methods so that hierarchy
// propagation, DAG checking, and embeds-info merge validation are applied
// uniformly rather than left to callers to remember.
package relgraph

import "fmt"

// Class describes the fixed policy of one relation. Classes are declared
// once (as package-level variables, see plan/relations.go) and shared by every Plan's
// Registry of the same shape.
type Class struct {
	// Name identifies the relation for error messages and debug output.
	Name string
	// Strong edges are never rewritten by replacements.
	Strong bool
	// DAG relations refuse an edge that would create a cycle.
	DAG bool
	// CopyOnReplace relations copy an edge during a replacement instead of
	// moving it.
	CopyOnReplace bool
	// EmbedsInfo relations carry a payload on each edge; re-adding an
	// existing edge with a different payload is an error unless MergeInfo
	// is set.
	EmbedsInfo bool
	// MergeInfo, when set, is used instead of equality to decide whether
	// two payloads for the same edge are compatible. It returns the
	// merged payload and whether the merge succeeded.
	MergeInfo func(existing, incoming any) (merged any, ok bool)
	// Superset names the relation this one is a subset of. Inserting an
	// edge into a subset also inserts it into the superset; removing an
	// edge from the superset also removes it from every subset.
	Superset *Class
}

func (c *Class) String() string {
	if c == nil {
		return "<nil class>"
	}
	return c.Name
}

// Direction of traversal for Neighbors.
type Direction int

const (
	Out Direction = iota
	In
)

// Sentinel errors returned by Graph mutators. Wrapped with the relation
// name via fmt.Errorf("%s: %w", ...), following the teacher's own
// errPrefix convention (rgraph/builder.go, rgraph/workflow/plan/plan.go).
var (
	ErrCycleFound   = fmt.Errorf("relgraph: would create a cycle")
	ErrInfoConflict = fmt.Errorf("relgraph: conflicting edge info")
)
