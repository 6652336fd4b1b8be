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

// Package job implements the planning-task (job) semantics of spec.md
// §4.4: the placeholder/planning-task pairing, the notification state
// machine, and the elaboration handoff that replaces a placeholder with
// its planned sub-plan on successful planning.
//
// Grounded on the teacher's rnode.Plan/PlanDetails/Operation
// (pkg/cloud/rgraph/rnode/plan.go): that type keeps a history of
// planned operations with the current one at the tail, exposed through
// a small Op/Details/Set/String surface. Job's notification history
// generalizes the same "append-only decision log with a current state"
// shape from a five-member Operation enum to the job lifecycle's wider
// notification state machine.
package job

import "fmt"

// NotificationState is one stage of the job notification lifecycle
// (spec.md §4.4 "The interface emits, in order: MONITORED →
// PLANNING_READY → PLANNING → (READY|PLANNING_FAILED) → STARTED →
// (SUCCESS|FAILED) → FINALIZED").
type NotificationState string

const (
	Monitored      NotificationState = "MONITORED"
	PlanningReady  NotificationState = "PLANNING_READY"
	Planning       NotificationState = "PLANNING"
	Ready          NotificationState = "READY"
	PlanningFailed NotificationState = "PLANNING_FAILED"
	Started        NotificationState = "STARTED"
	Success        NotificationState = "SUCCESS"
	Failed         NotificationState = "FAILED"
	Finalized      NotificationState = "FINALIZED"
	// Replaced is emitted instead of the normal forward progression when
	// a replacement happens inside a transaction.
	Replaced NotificationState = "REPLACED"
	// Dropped is emitted on mission-loss.
	Dropped NotificationState = "DROPPED"
	// Lost is emitted when a replacement's replacement carries a
	// different job id.
	Lost NotificationState = "LOST"
)

// transitions enumerates the legal next states from each state.
// Dropped can interrupt the happy path from Monitored, PlanningReady,
// Planning, Ready and Started; Replaced and Lost only from Ready and
// Started. Every outcome state leads only to Finalized.
var transitions = map[NotificationState][]NotificationState{
	Monitored:      {PlanningReady, Dropped},
	PlanningReady:  {Planning, Dropped},
	Planning:       {Ready, PlanningFailed, Dropped},
	Ready:          {Started, Replaced, Dropped, Lost},
	PlanningFailed: {Finalized},
	Started:        {Success, Failed, Replaced, Dropped, Lost},
	Success:        {Finalized},
	Failed:         {Finalized},
	Replaced:       {Finalized},
	Dropped:        {Finalized},
	Lost:           {Finalized},
	Finalized:      nil,
}

// ErrIllegalTransition is returned by Notify for a state not reachable
// from the job's current state.
var ErrIllegalTransition = fmt.Errorf("job: illegal notification transition")

func allowed(from, to NotificationState) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}
