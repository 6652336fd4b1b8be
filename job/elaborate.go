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
	"time"

	"github.com/corectl/planengine/plan"
	"github.com/corectl/planengine/task"
)

// ErrPlanningFailed is the error Fail returns, wrapping the planning
// cause, when the placeholder task cannot be marked failed.
var ErrPlanningFailed = fmt.Errorf("job: planning failed")

// Attach links placeholder to planningJob (spec.md §4.4 "The
// placeholder task is the user-visible plan element; its planning_task
// ... runs asynchronously") and notifies PlanningReady.
func Attach(placeholder *task.Task, planningJob *Job) error {
	placeholder.SetPlanningTask(planningJob.Task)
	planningJob.SetPlannedTask(placeholder)
	return planningJob.Notify(PlanningReady)
}

// Succeed commits the planning job's transaction, replacing placeholder
// with elaborated and preserving the job id, per spec.md §4.4 "On
// successful planning, the planning task commits its transaction,
// replacing the placeholder with the elaborated subplan and preserving
// the job_id". The outcome notified is always Replaced: elaborated is a
// *task.Task and carries no job id of its own, so Succeed never reports
// Lost.
func Succeed(p *plan.Plan, placeholder *task.Task, planningJob *Job, elaborated *task.Task, now time.Time) error {
	if err := planningJob.Notify(Ready); err != nil {
		return err
	}
	if err := p.ReplacePlaceholder(placeholder, elaborated, planningJob.jobID, now); err != nil {
		return err
	}

	outcome := Replaced
	if ej, ok := elaboratedJob(elaborated); ok && ej.JobID() != planningJob.jobID {
		outcome = Lost
	}
	if err := planningJob.Notify(outcome); err != nil {
		return err
	}
	return planningJob.Notify(Finalized)
}

func elaboratedJob(t *task.Task) (*Job, bool) {
	j, ok := any(t).(*Job)
	return j, ok
}

// Fail marks the planning job PlanningFailed, marks the placeholder task
// failed, and notifies Finalized. No error object is attached to the
// placeholder and cause is not kept; cause is only returned, wrapped in
// ErrPlanningFailed, when the placeholder is not running and cannot be
// marked failed (Finalized is then not notified).
func Fail(placeholder *task.Task, planningJob *Job, cause error) error {
	if err := planningJob.Notify(PlanningFailed); err != nil {
		return err
	}
	if err := placeholder.MarkFailed(); err != nil {
		return fmt.Errorf("%w: %v (placeholder not running: %v)", ErrPlanningFailed, cause, err)
	}
	return planningJob.Notify(Finalized)
}
