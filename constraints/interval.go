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

// Package constraints implements spec.md §4.5: temporal ("after A, B
// must happen within [min,max]") and occurrence constraints, deadline
// tracking, and the task-level scheduling mirror.
//
// The teacher repo has no deadline concept (GCE convergence planning is
// stateless per-pass, not time-bounded), so there is no direct file
// this package generalizes from. It is grounded in idiom instead: small,
// single-purpose data-structure types with a constructor and a handful
// of verbs, each covered by exhaustive edge-case tests, matching the
// shape of the teacher's own standalone helpers (algo/queue.go).
package constraints

import (
	"sort"
	"time"
)

// Interval is an inclusive [Min,Max] bound, in time.Duration units
// (spec.md §4.5 "after A, B must happen within [min,max]").
type Interval struct {
	Min, Max time.Duration
}

// DisjointIntervalSet is a sorted set of non-overlapping, non-adjacent
// intervals, maintained in canonical form by Add.
type DisjointIntervalSet struct {
	intervals []Interval
}

// NewDisjointIntervalSet returns an empty set.
func NewDisjointIntervalSet() *DisjointIntervalSet {
	return &DisjointIntervalSet{}
}

// Intervals returns the current canonical interval list, sorted by Min.
func (s *DisjointIntervalSet) Intervals() []Interval {
	return append([]Interval(nil), s.intervals...)
}

// Add merges [min,max] into the set, maintaining canonical (sorted,
// disjoint, non-adjacent) form in O(n). min must be <= max; callers are
// responsible for the sign-inversion rule of spec.md §4.5
// (add(a,b,-max,-min) == add(b,a,min,max)) since that's a statement
// about which ordered pair owns the set, not about this set's internal
// representation.
func (s *DisjointIntervalSet) Add(min, max time.Duration) error {
	if min > max {
		return errMinGreaterThanMax(min, max)
	}
	merged := make([]Interval, 0, len(s.intervals)+1)
	placed := false
	for _, iv := range s.intervals {
		switch {
		case iv.Max < min:
			merged = append(merged, iv)
		case max < iv.Min:
			if !placed {
				merged = append(merged, Interval{min, max})
				placed = true
			}
			merged = append(merged, iv)
		default:
			// Overlapping or touching: fold into the pending interval.
			if iv.Min < min {
				min = iv.Min
			}
			if iv.Max > max {
				max = iv.Max
			}
		}
	}
	if !placed {
		merged = append(merged, Interval{min, max})
	}
	sort.Slice(merged, func(i, j int) bool { return merged[i].Min < merged[j].Min })
	s.intervals = merged
	return nil
}

// Contains reports whether d falls within any interval of the set.
func (s *DisjointIntervalSet) Contains(d time.Duration) bool {
	// intervals are sorted and disjoint; a linear scan is fine at the
	// sizes this module expects (one set per temporal constraint pair).
	for _, iv := range s.intervals {
		if d >= iv.Min && d <= iv.Max {
			return true
		}
		if d < iv.Min {
			break
		}
	}
	return false
}

func errMinGreaterThanMax(min, max time.Duration) error {
	return &invalidIntervalError{min, max}
}

type invalidIntervalError struct{ min, max time.Duration }

func (e *invalidIntervalError) Error() string {
	return "constraints: min " + e.min.String() + " is greater than max " + e.max.String()
}
