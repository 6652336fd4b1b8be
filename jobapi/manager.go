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

// Package jobapi is the thin job-control surface of spec.md §6: a
// registry of jobs by id exposing the three verbs a remote client
// drives a supervised plan with (start_job, drop_job, kill_job), wiring
// action.Library invocation into the job package's placeholder/planning
// handoff and the engine package's forced-termination helper.
//
// Grounded on the teacher's rnode.Builder→Node construction entrypoint
// (pkg/cloud/rgraph/rnode/builder.go Build()): a small façade function
// that takes a descriptor and produces a registered, owned object,
// generalized here from "build one node" to "start one job".
package jobapi

import (
	"fmt"
	"time"

	"github.com/corectl/planengine/action"
	"github.com/corectl/planengine/engine"
	"github.com/corectl/planengine/job"
	"github.com/corectl/planengine/plan"
	"github.com/corectl/planengine/task"
	"github.com/google/uuid"
)

// ErrUnknownJob is returned by DropJob/KillJob for an id the Manager
// never registered.
var ErrUnknownJob = fmt.Errorf("jobapi: unknown job id")

// ErrActionReturnedNonTask is returned by StartJob when the invoked
// action factory's result isn't a *task.Task, so it cannot stand in as
// the elaborated sub-plan root spec.md §4.4 expects.
var ErrActionReturnedNonTask = fmt.Errorf("jobapi: action did not return a *task.Task")

func start(t *task.Task, now time.Time) error {
	if err := t.MarkStarting(); err != nil {
		return err
	}
	if err := t.MarkRunning(); err != nil {
		return err
	}
	g, _ := t.Event(task.Start)
	_, err := g.Record(nil, now)
	return err
}

// Manager tracks every job started through it, keyed by the job id it
// hands back from StartJob, so a remote client can drop/kill a job
// later by id alone (spec.md §6 "start_job(action, args) returns a
// job_id; drop_job(id) ...; kill_job(id) ...").
//
// A job's "live task" starts out as its placeholder and becomes the
// elaborated sub-plan root once planning succeeds (spec.md §4.4): the
// Manager tracks whichever one is currently the mission root, since
// drop_job/kill_job act on "the task", not on the planning handshake
// that produced it.
type Manager struct {
	plan *plan.Plan
	live map[string]*task.Task
}

// NewManager returns a Manager issuing jobs against p.
func NewManager(p *plan.Plan) *Manager {
	return &Manager{plan: p, live: map[string]*task.Task{}}
}

// LiveTask returns the task currently standing in for jobID: the
// placeholder while planning is in flight, or the elaborated root once
// planning has succeeded.
func (m *Manager) LiveTask(jobID string) (*task.Task, bool) {
	t, ok := m.live[jobID]
	return t, ok
}

// StartJob invokes actionName from lib with args, wiring the result
// through a placeholder/planning-job pair and returning the
// newly-minted job id (spec.md §4.4 Jobs, §6 start_job). The action
// factory runs synchronously, matching action.Library.Invoke; the
// factory is expected to return a *task.Task sub-plan root.
func (m *Manager) StartJob(lib *action.Library, actionName string, args map[string]any, now time.Time) (string, error) {
	model, ok := lib.Model(actionName)
	if !ok {
		return "", fmt.Errorf("jobapi: %w: %q", action.ErrUnknownAction, actionName)
	}
	jobID := uuid.NewString()

	// The placeholder's own model is the action's returned-model, not
	// the action's name: ReplacePlaceholder validates the elaborated
	// task against the placeholder's FullfilledModel (spec.md §4.2
	// InvalidReplace), and an elaborated task always carries
	// ReturnedModel.
	placeholder := job.New(model.ReturnedModel, jobID, actionName)
	if err := m.plan.Add(placeholder.Task); err != nil {
		return "", fmt.Errorf("jobapi: add placeholder: %w", err)
	}
	m.plan.MarkMission(placeholder.Task)
	m.live[jobID] = placeholder.Task
	if err := start(placeholder.Task, now); err != nil {
		return jobID, fmt.Errorf("jobapi: start placeholder: %w", err)
	}

	planningJob := job.New(actionName+".plan", jobID+"-plan", actionName+" planner")
	if err := m.plan.Add(planningJob.Task); err != nil {
		return jobID, fmt.Errorf("jobapi: add planning job: %w", err)
	}
	if err := job.Attach(placeholder.Task, planningJob); err != nil {
		return jobID, fmt.Errorf("jobapi: attach planning job: %w", err)
	}
	if err := planningJob.Notify(job.Planning); err != nil {
		return jobID, fmt.Errorf("jobapi: planning job: %w", err)
	}

	result, err := lib.Invoke(actionName, args)
	if err != nil {
		return jobID, m.fail(placeholder, planningJob, fmt.Errorf("jobapi: action %q: %w", actionName, err))
	}

	elaborated, ok := result.(*task.Task)
	if !ok {
		return jobID, m.fail(placeholder, planningJob, fmt.Errorf("%w (action %q returned %T)", ErrActionReturnedNonTask, actionName, result))
	}

	if err := job.Succeed(m.plan, placeholder.Task, planningJob, elaborated, now); err != nil {
		return jobID, fmt.Errorf("jobapi: succeed: %w", err)
	}
	// ReplaceTask (inside Succeed's ReplacePlaceholder) already carries
	// the mission flag from placeholder to elaborated.
	m.live[jobID] = elaborated
	return jobID, nil
}

func (m *Manager) fail(placeholder *job.Job, planningJob *job.Job, cause error) error {
	if err := job.Fail(placeholder.Task, planningJob, cause); err != nil {
		return fmt.Errorf("jobapi: recording failure also failed: %v (original: %w)", err, cause)
	}
	return cause
}

// DropJob unmarks jobID's live task as mission, a soft stop: the task
// keeps running to completion on its own, but no longer roots garbage
// collection (spec.md §6 "drop_job(id) unmarks as mission").
func (m *Manager) DropJob(jobID string) error {
	t, ok := m.live[jobID]
	if !ok {
		return fmt.Errorf("%s: %w", jobID, ErrUnknownJob)
	}
	m.plan.UnmarkMission(t)
	return nil
}

// KillJob unmarks jobID's live task as mission and forcibly stops it
// (spec.md §6 "kill_job(id) both unmarks and forcibly stops the task").
func (m *Manager) KillJob(jobID string, now time.Time) error {
	t, ok := m.live[jobID]
	if !ok {
		return fmt.Errorf("%s: %w", jobID, ErrUnknownJob)
	}
	m.plan.UnmarkMission(t)
	engine.Terminate(t, now)
	return nil
}
