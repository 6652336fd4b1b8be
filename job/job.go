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

package job

import (
	"fmt"

	"github.com/corectl/planengine/task"
)

// Listener is notified once per queued state, in order, when FlushCycle
// runs.
type Listener func(j *Job, state NotificationState)

// Job is a task fulfilling the job capability set of spec.md §4.4: a
// stable job_id and a human-readable job_name, plus the notification
// state machine tracking its progress.
type Job struct {
	*task.Task

	jobID   string
	jobName string

	state   NotificationState
	history []NotificationState
	pending []NotificationState

	listeners []Listener
}

// New returns a job task in the initial Monitored state.
func New(model, jobID, jobName string) *Job {
	return &Job{
		Task:    task.New(model),
		jobID:   jobID,
		jobName: jobName,
		state:   Monitored,
		history: []NotificationState{Monitored},
	}
}

func (j *Job) JobID() string              { return j.jobID }
func (j *Job) JobName() string            { return j.jobName }
func (j *Job) State() NotificationState   { return j.state }
func (j *Job) History() []NotificationState {
	return append([]NotificationState(nil), j.history...)
}

// OnNotify registers a listener invoked by FlushCycle for every queued
// notification.
func (j *Job) OnNotify(l Listener) { j.listeners = append(j.listeners, l) }

// Notify advances the job's notification state machine, queuing the
// transition for delivery at the next FlushCycle (spec.md §4.4
// "Notifications from a cycle are queued and flushed on cycle_end").
func (j *Job) Notify(state NotificationState) error {
	if !allowed(j.state, state) {
		return fmt.Errorf("%s: %w (%s -> %s)", j.jobName, ErrIllegalTransition, j.state, state)
	}
	j.state = state
	j.history = append(j.history, state)
	j.pending = append(j.pending, state)
	return nil
}

// FlushCycle delivers every notification queued since the last flush to
// every registered listener, in order, then clears the queue.
func (j *Job) FlushCycle() {
	pending := j.pending
	j.pending = nil
	for _, s := range pending {
		for _, l := range j.listeners {
			l(j, s)
		}
	}
}
