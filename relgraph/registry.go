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

// Registry holds one Graph per Class and wires hierarchy (superset/subset)
// links between them. A Plan owns one Registry per object space (task
// relations and event relations are two distinct Registries, since a
// relation Class only makes sense within one vertex identity space).
type Registry[K comparable] struct {
	classes []*Class
	graphs  map[*Class]*Graph[K]
}

// NewRegistry builds a Registry for the given classes, wiring superset
// links. Classes may be declared in any order; Superset may point to a
// class later in the slice.
func NewRegistry[K comparable](classes ...*Class) *Registry[K] {
	r := &Registry[K]{classes: classes, graphs: map[*Class]*Graph[K]{}}
	for _, c := range classes {
		r.graphs[c] = newGraph[K](c)
	}
	for _, c := range classes {
		if c.Superset == nil {
			continue
		}
		g := r.graphs[c]
		super, ok := r.graphs[c.Superset]
		if !ok {
			panic("relgraph: superset class " + c.Superset.Name + " not registered")
		}
		g.super = super
		super.subs = append(super.subs, g)
	}
	return r
}

// Graph returns the Graph instance for c, or nil if c was not registered.
func (r *Registry[K]) Graph(c *Class) *Graph[K] { return r.graphs[c] }

// Classes returns every class registered, in declaration order.
func (r *Registry[K]) Classes() []*Class { return append([]*Class(nil), r.classes...) }

// Graphs returns every Graph in the registry, in declaration order. Used
// by the engine's reachability-based garbage collector, which needs to
// walk all relations at once rather than one class at a time.
func (r *Registry[K]) Graphs() []*Graph[K] {
	out := make([]*Graph[K], 0, len(r.classes))
	for _, c := range r.classes {
		out = append(out, r.graphs[c])
	}
	return out
}

// TouchAll registers v as a known vertex in every graph of the registry.
// Plan calls this when an object is added, so that objects with no
// edges yet still participate in topological ordering and GC reachability.
func (r *Registry[K]) TouchAll(v K) {
	for _, g := range r.graphs {
		g.Touch(v)
	}
}

// RemoveAll deletes every edge touching v from every graph in the
// registry. Plan calls this when an object is removed.
func (r *Registry[K]) RemoveAll(v K) {
	for _, g := range r.graphs {
		for _, to := range g.Neighbors(v, Out) {
			g.RemoveEdge(v, to)
		}
		for _, from := range g.Neighbors(v, In) {
			g.RemoveEdge(from, v)
		}
	}
}
