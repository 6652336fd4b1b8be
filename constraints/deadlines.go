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
	"sort"
	"time"
)

// DeadlineEntry is one scheduled deadline: source emitted at some point,
// and target must emit by Deadline or a MissedDeadlineError is raised
// (spec.md §4.5 "EventDeadlines").
type DeadlineEntry struct {
	Deadline time.Time
	Source   any
	Target   any
}

// EventDeadlines is a list of pending deadlines sorted by Deadline,
// supporting add, remove-one-for-target, and drain-overdue.
type EventDeadlines struct {
	entries []DeadlineEntry
}

// NewEventDeadlines returns an empty deadline list.
func NewEventDeadlines() *EventDeadlines { return &EventDeadlines{} }

// Add inserts e, keeping entries sorted by Deadline.
func (d *EventDeadlines) Add(e DeadlineEntry) {
	i := sort.Search(len(d.entries), func(i int) bool { return d.entries[i].Deadline.After(e.Deadline) })
	d.entries = append(d.entries, DeadlineEntry{})
	copy(d.entries[i+1:], d.entries[i:])
	d.entries[i] = e
}

// RemoveFor removes at most one pending deadline registered for target
// whose deadline is after `after` (spec.md §4.5 "remove at most one
// pending deadline registered by a whose deadline is after the emission
// time"). Returns true if an entry was removed.
func (d *EventDeadlines) RemoveFor(target any, after time.Time) bool {
	for i, e := range d.entries {
		if e.Target == target && e.Deadline.After(after) {
			d.entries = append(d.entries[:i], d.entries[i+1:]...)
			return true
		}
	}
	return false
}

// Missed drains and returns every entry whose deadline is at or before
// now (spec.md §4.5 `missed(now)`).
func (d *EventDeadlines) Missed(now time.Time) []DeadlineEntry {
	i := 0
	for i < len(d.entries) && !d.entries[i].Deadline.After(now) {
		i++
	}
	missed := append([]DeadlineEntry(nil), d.entries[:i]...)
	d.entries = d.entries[i:]
	return missed
}

// Len reports the number of pending deadlines.
func (d *EventDeadlines) Len() int { return len(d.entries) }
