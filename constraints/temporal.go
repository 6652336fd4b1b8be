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

package constraints

import (
	"fmt"
	"time"
)

// OccurrenceBounds is a [min_count,max_count] bound on how many times an
// event may occur, keyed by a `recurrent` flag (spec.md §4.5
// "occurrence_constraints table keyed by a recurrent flag").
type OccurrenceBounds struct {
	MinCount, MaxCount int
}

// Satisfied reports whether count falls within the bounds. MaxCount <= 0
// means unbounded.
func (b OccurrenceBounds) Satisfied(count int) bool {
	if count < b.MinCount {
		return false
	}
	if b.MaxCount > 0 && count > b.MaxCount {
		return false
	}
	return true
}

// TemporalConstraintSet is a DisjointIntervalSet of allowed delays
// between one ordered event pair (a, b), plus the occurrence bounds for
// each (recurrent) flag value.
type TemporalConstraintSet struct {
	allowed     *DisjointIntervalSet
	occurrences map[bool]OccurrenceBounds
}

// NewTemporalConstraintSet returns an empty constraint set.
func NewTemporalConstraintSet() *TemporalConstraintSet {
	return &TemporalConstraintSet{
		allowed:     NewDisjointIntervalSet(),
		occurrences: map[bool]OccurrenceBounds{},
	}
}

// AddTemporal requires min <= max and folds [min,max] into the allowed
// delay set (spec.md §4.5 `add_temporal_constraint`).
func (s *TemporalConstraintSet) AddTemporal(min, max time.Duration) error {
	if min > max {
		return fmt.Errorf("constraints: add_temporal_constraint requires min <= max, got min=%s max=%s", min, max)
	}
	return s.allowed.Add(min, max)
}

// AllowsDelay reports whether a delay of d satisfies the temporal
// constraint.
func (s *TemporalConstraintSet) AllowsDelay(d time.Duration) bool {
	return s.allowed.Contains(d)
}

// Intervals exposes the current canonical allowed-delay set.
func (s *TemporalConstraintSet) Intervals() []Interval { return s.allowed.Intervals() }

// SetOccurrenceBounds records the [min_count,max_count] bound for the
// given recurrent flag.
func (s *TemporalConstraintSet) SetOccurrenceBounds(recurrent bool, b OccurrenceBounds) {
	s.occurrences[recurrent] = b
}

// OccurrenceSatisfied reports whether count satisfies the bounds
// registered for recurrent, or true if none were registered.
func (s *TemporalConstraintSet) OccurrenceSatisfied(recurrent bool, count int) bool {
	b, ok := s.occurrences[recurrent]
	if !ok {
		return true
	}
	return b.Satisfied(count)
}
