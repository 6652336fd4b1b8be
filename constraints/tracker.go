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

	"k8s.io/utils/clock"
)

// pairKey identifies an ordered (a, b) temporal-constraint pair.
type pairKey[K comparable] struct{ A, B K }

// MissedDeadlineError reports that a deadline scheduled after an
// emission of Source elapsed without Target ever emitting (spec.md
// §4.5).
type MissedDeadlineError[K comparable] struct {
	Target   K
	Source   K
	Deadline time.Time
}

func (e *MissedDeadlineError[K]) Error() string {
	return fmt.Sprintf("constraints: %v missed deadline %s (scheduled after %v)", e.Target, e.Deadline, e.Source)
}

// TemporalConstraintViolation reports that a backward temporal
// predecessor's delay bound was violated by an emission.
type TemporalConstraintViolation[K comparable] struct {
	Predecessor, Successor K
	Delay                  time.Duration
}

func (e *TemporalConstraintViolation[K]) Error() string {
	return fmt.Sprintf("constraints: delay %s from %v to %v violates temporal constraint", e.Delay, e.Predecessor, e.Successor)
}

// OccurrenceConstraintViolation reports that an emission count bound was
// violated.
type OccurrenceConstraintViolation[K comparable] struct {
	Predecessor, Successor K
	Recurrent              bool
	Count                  int
}

func (e *OccurrenceConstraintViolation[K]) Error() string {
	return fmt.Sprintf("constraints: %v -> %v occurrence count %d violates bound (recurrent=%v)", e.Predecessor, e.Successor, e.Count, e.Recurrent)
}

// Tracker wires TemporalConstraintSet and EventDeadlines together across
// every registered (a, b) pair, implementing the per-emission contracts
// of spec.md §4.5. K is the event-generator identity type (planobj.ObjID
// in the rest of this module).
type Tracker[K comparable] struct {
	clock clock.PassiveClock

	sets      map[pairKey[K]]*TemporalConstraintSet
	deadlines *EventDeadlines
	lastEmit  map[K]time.Time
	counts    map[pairKey[K]]int
}

// NewTracker returns a Tracker that reads the current time from c.
func NewTracker[K comparable](c clock.PassiveClock) *Tracker[K] {
	return &Tracker[K]{
		clock:     c,
		sets:      map[pairKey[K]]*TemporalConstraintSet{},
		deadlines: NewEventDeadlines(),
		lastEmit:  map[K]time.Time{},
		counts:    map[pairKey[K]]int{},
	}
}

func (t *Tracker[K]) setFor(a, b K) *TemporalConstraintSet {
	k := pairKey[K]{a, b}
	s, ok := t.sets[k]
	if !ok {
		s = NewTemporalConstraintSet()
		t.sets[k] = s
	}
	return s
}

// AddTemporalConstraint requires min <= max and adds [min,max] to the
// (a, b) set. When either bound is negative it also adds the
// negated-and-swapped bounds to the (b, a) set (add(a,b,-max,-min) ==
// add(b,a,min,max)); for non-negative bounds only the (a, b) set is
// recorded, and OnEmission reaches it backward from b through
// backwardPairs.
func (t *Tracker[K]) AddTemporalConstraint(a, b K, min, max time.Duration) error {
	if err := t.setFor(a, b).AddTemporal(min, max); err != nil {
		return err
	}
	if min < 0 || max < 0 {
		return t.setFor(b, a).AddTemporal(-max, -min)
	}
	return nil
}

// SetOccurrenceBounds records bounds for the (a,b) pair's recurrent flag.
func (t *Tracker[K]) SetOccurrenceBounds(a, b K, recurrent bool, bounds OccurrenceBounds) {
	t.setFor(a, b).SetOccurrenceBounds(recurrent, bounds)
}

// forwardPairs returns every registered pair with a's identity as the
// left element.
func (t *Tracker[K]) forwardPairs(a K) []pairKey[K] {
	var out []pairKey[K]
	for k := range t.sets {
		if k.A == a {
			out = append(out, k)
		}
	}
	return out
}

func (t *Tracker[K]) backwardPairs(b K) []pairKey[K] {
	var out []pairKey[K]
	for k := range t.sets {
		if k.B == b {
			out = append(out, k)
		}
	}
	return out
}

// OnEmission processes an emission of generator id at emittedAt,
// implementing spec.md §4.5's per-emission contracts: scheduling a
// deadline for every registered forward successor that hasn't satisfied
// its delay bound yet, clearing one pending deadline registered by any
// predecessor, and checking backward temporal/occurrence predecessors
// for violations. Returns every violation raised (overdue deadlines are
// reported separately via DrainMissed).
func (t *Tracker[K]) OnEmission(id K, emittedAt time.Time) []error {
	var errs []error

	// This emission may satisfy deadlines scheduled by a predecessor.
	for _, k := range t.backwardPairs(id) {
		t.deadlines.RemoveFor(id, emittedAt)

		if last, ok := t.lastEmit[k.A]; ok {
			delay := emittedAt.Sub(last)
			if !t.sets[k].AllowsDelay(delay) {
				errs = append(errs, &TemporalConstraintViolation[K]{Predecessor: k.A, Successor: k.B, Delay: delay})
			}
		}
		t.counts[k]++
		count := t.counts[k]
		for _, recurrent := range []bool{true, false} {
			if !t.sets[k].OccurrenceSatisfied(recurrent, count) {
				errs = append(errs, &OccurrenceConstraintViolation[K]{Predecessor: k.A, Successor: k.B, Recurrent: recurrent, Count: count})
			}
		}
	}

	// Schedule deadlines for forward successors.
	for _, k := range t.forwardPairs(id) {
		set := t.sets[k]
		intervals := set.Intervals()
		if len(intervals) == 0 {
			continue
		}
		if lastB, ok := t.lastEmit[k.B]; ok && set.AllowsDelay(lastB.Sub(emittedAt)) {
			continue
		}
		max := intervals[len(intervals)-1].Max
		t.deadlines.Add(DeadlineEntry{Deadline: emittedAt.Add(max), Source: k.A, Target: k.B})
	}

	t.lastEmit[id] = emittedAt
	return errs
}

// DrainMissed drains every deadline overdue as of now and returns them as
// MissedDeadlineError values (spec.md §4.5 "each cycle, drain
// missed(now)").
func (t *Tracker[K]) DrainMissed(now time.Time) []*MissedDeadlineError[K] {
	var out []*MissedDeadlineError[K]
	for _, e := range t.deadlines.Missed(now) {
		out = append(out, &MissedDeadlineError[K]{
			Target:   e.Target.(K),
			Source:   e.Source.(K),
			Deadline: e.Deadline,
		})
	}
	return out
}
