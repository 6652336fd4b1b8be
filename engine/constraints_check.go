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

package engine

import (
	"fmt"
	"time"

	"github.com/corectl/planengine/plan"
	"github.com/corectl/planengine/planobj"
	"github.com/corectl/planengine/relgraph"
	"github.com/corectl/planengine/task"
)

// DependencyUnsatisfiedError reports that a finished task never emitted
// one of the events its depends_on edge required.
type DependencyUnsatisfiedError struct {
	Parent, Child planobj.ObjID
	RequiredEvent string
}

func (e *DependencyUnsatisfiedError) Error() string {
	return fmt.Sprintf("engine: %v depends on %v's %q, which never emitted", e.Parent, e.Child, e.RequiredEvent)
}

// checkConstraints runs the structural-constraint check of spec.md §4.7
// step 4: temporal/occurrence violations were already raised inline
// during propagate, as each touched generator's emission was fed to the
// tracker; this step adds missed-deadline drains and a
// dependency-satisfaction sweep over finished tasks.
func (e *Engine) checkConstraints(now time.Time) []error {
	var errs []error

	for _, missed := range e.tracker.DrainMissed(now) {
		errs = append(errs, missed)
	}

	dependsOn := e.plan.TaskGraph().Graph(plan.DependsOn)
	for _, t := range e.plan.Tasks() {
		if t.State() != task.StateFinished {
			continue
		}
		for _, parentID := range dependsOn.Neighbors(t.ID(), relgraph.In) {
			info, ok := dependsOn.EdgeInfo(parentID, t.ID())
			if !ok {
				continue
			}
			required, ok := info.([]string)
			if !ok {
				continue
			}
			for _, name := range required {
				g, ok := t.Event(name)
				if !ok || g.EmittedEver() {
					continue
				}
				errs = append(errs, &DependencyUnsatisfiedError{Parent: parentID, Child: t.ID(), RequiredEvent: name})
			}
		}
	}
	return errs
}
