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

package relgraph

import (
	"fmt"
	"reflect"

	"k8s.io/klog/v2"
)

type edgeKey[K comparable] struct{ From, To K }

// Graph holds the edges for a single relation Class. K is the vertex
// identity type (in this module, planobj.ObjID). The set of Graphs
// sharing hierarchy links is built by a Registry.
type Graph[K comparable] struct {
	class *Class

	super *Graph[K]
	subs  []*Graph[K]

	// adjacency, preserving insertion order so that Neighbors and
	// TopologicalEach are stable across ties (spec.md §4.1).
	out map[K][]K
	in  map[K][]K

	info    map[edgeKey[K]]any
	hasInfo map[edgeKey[K]]bool

	// nodeOrder records the order nodes were first seen (via AddEdge or
	// Touch), used as the topological-sort tie-break.
	nodeOrder []K
	seen      map[K]bool
}

func newGraph[K comparable](c *Class) *Graph[K] {
	return &Graph[K]{
		class:   c,
		out:     map[K][]K{},
		in:      map[K][]K{},
		info:    map[edgeKey[K]]any{},
		hasInfo: map[edgeKey[K]]bool{},
		seen:    map[K]bool{},
	}
}

// Class returns the relation class this graph was built for.
func (g *Graph[K]) Class() *Class { return g.class }

func (g *Graph[K]) touch(v K) {
	if !g.seen[v] {
		g.seen[v] = true
		g.nodeOrder = append(g.nodeOrder, v)
	}
}

// Touch registers v as a known vertex even if it has no edges yet, so
// that it participates in TopologicalEach. Plan calls this when an
// object is added.
func (g *Graph[K]) Touch(v K) { g.touch(v) }

// HasEdge reports whether the edge currently exists in this graph.
func (g *Graph[K]) HasEdge(from, to K) bool {
	_, ok := g.info[edgeKey[K]{from, to}]
	if ok {
		return true
	}
	// info map only holds entries for EmbedsInfo graphs with a recorded
	// (possibly nil) payload; for non-EmbedsInfo graphs membership is
	// tracked purely via adjacency.
	for _, n := range g.out[from] {
		if n == to {
			return true
		}
	}
	return false
}

// AddEdge inserts from->to with the given info (nil for relations that
// don't embed info). Returns inserted=true if a new edge was created.
// inserted=false, err=nil means the edge already existed (and, for
// EmbedsInfo graphs, the info matched or was mergeable).
func (g *Graph[K]) AddEdge(from, to K, info any) (inserted bool, err error) {
	key := edgeKey[K]{from, to}

	if g.HasEdge(from, to) {
		if !g.class.EmbedsInfo {
			return false, nil
		}
		existing := g.info[key]
		if equalInfo(existing, info) {
			return false, nil
		}
		if g.class.MergeInfo != nil {
			merged, ok := g.class.MergeInfo(existing, info)
			if !ok {
				return false, fmt.Errorf("%s: %w (from=%v to=%v)", g.class.Name, ErrInfoConflict, from, to)
			}
			g.info[key] = merged
			return false, nil
		}
		return false, fmt.Errorf("%s: %w (from=%v to=%v)", g.class.Name, ErrInfoConflict, from, to)
	}

	if g.class.DAG {
		if g.reachable(to, from) {
			return false, fmt.Errorf("%s: %w (from=%v to=%v)", g.class.Name, ErrCycleFound, from, to)
		}
	}

	g.touch(from)
	g.touch(to)
	g.out[from] = append(g.out[from], to)
	g.in[to] = append(g.in[to], from)
	if g.class.EmbedsInfo {
		g.info[key] = info
		g.hasInfo[key] = true
	}

	if g.class.Superset != nil && g.super != nil {
		if _, err := g.super.AddEdge(from, to, info); err != nil {
			// Roll back the local insertion so the graph is left
			// unchanged on failure, matching spec.md §8's DAG
			// invariant ("if it would create one, it fails ... and G
			// is unchanged").
			g.removeEdgeLocal(from, to)
			return false, err
		}
	}

	klog.V(4).Infof("relgraph[%s]: add_edge %v -> %v", g.class.Name, from, to)
	return true, nil
}

// RemoveEdge deletes from->to. For a hierarchy superset, the edge is
// also removed from every subset graph that held it.
func (g *Graph[K]) RemoveEdge(from, to K) {
	if !g.HasEdge(from, to) {
		return
	}
	g.removeEdgeLocal(from, to)
	for _, sub := range g.subs {
		sub.RemoveEdge(from, to)
	}
}

func (g *Graph[K]) removeEdgeLocal(from, to K) {
	g.out[from] = removeVal(g.out[from], to)
	g.in[to] = removeVal(g.in[to], from)
	key := edgeKey[K]{from, to}
	delete(g.info, key)
	delete(g.hasInfo, key)
}

func removeVal[K comparable](s []K, v K) []K {
	for i, x := range s {
		if x == v {
			return append(s[:i], s[i+1:]...)
		}
	}
	return s
}

// EdgeInfo returns the payload stored for from->to, if any.
func (g *Graph[K]) EdgeInfo(from, to K) (any, bool) {
	v, ok := g.hasInfo[edgeKey[K]{from, to}]
	if !ok || !v {
		return nil, false
	}
	return g.info[edgeKey[K]{from, to}], true
}

// Neighbors returns the nodes reachable in one hop from v in the given
// direction, in insertion order.
func (g *Graph[K]) Neighbors(v K, dir Direction) []K {
	if dir == Out {
		return append([]K(nil), g.out[v]...)
	}
	return append([]K(nil), g.in[v]...)
}

// Nodes returns every vertex known to this graph (via AddEdge or Touch),
// in first-seen order.
func (g *Graph[K]) Nodes() []K {
	return append([]K(nil), g.nodeOrder...)
}

// reachable reports whether to is reachable from `from` by following
// out-edges. Used for DAG cycle checks before an edge is inserted: an
// edge from->to would create a cycle iff to can already reach from.
func (g *Graph[K]) reachable(from, to K) bool {
	if from == to {
		return true
	}
	visited := map[K]bool{}
	var stack []K
	stack = append(stack, from)
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if visited[cur] {
			continue
		}
		visited[cur] = true
		if cur == to {
			return true
		}
		stack = append(stack, g.out[cur]...)
	}
	return false
}

// CopyTo copies every edge (and its info) of g into other.
func (g *Graph[K]) CopyTo(other *Graph[K]) error {
	for _, from := range g.nodeOrder {
		for _, to := range g.out[from] {
			info, _ := g.EdgeInfo(from, to)
			if _, err := other.AddEdge(from, to, info); err != nil {
				return err
			}
		}
		other.touch(from)
	}
	return nil
}

// Merge is an alias for CopyTo kept for symmetry with spec.md §4.1's
// `merge` verb: it folds g's edges into other, applying other's own
// policy (DAG check, embeds-info merge) to each.
func (g *Graph[K]) Merge(other *Graph[K]) error { return g.CopyTo(other) }

// Clear removes every edge and node from the graph.
func (g *Graph[K]) Clear() {
	g.out = map[K][]K{}
	g.in = map[K][]K{}
	g.info = map[edgeKey[K]]any{}
	g.hasInfo = map[edgeKey[K]]bool{}
	g.nodeOrder = nil
	g.seen = map[K]bool{}
}

func equalInfo(a, b any) bool {
	return reflect.DeepEqual(a, b)
}
