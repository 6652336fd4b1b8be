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

// Command planengine runs a small supervised plan in-process: it
// registers a demo action library, starts one job, drives the engine
// for a handful of cycles on a wall clock, and logs each cycle's
// stats and every notification/plan-delta raised along the way.
//
// Grounded on the teacher's cmd/e2e-cleaner (flag parsing, a plain
// context.Background, and one linear sequence of calls in main) rather
// than cmd/resgraph/viz (an HTTP visualizer, out of scope per spec.md
// §1's GUI/renderer exclusion).
package main

import (
	"flag"
	"fmt"
	"time"

	"github.com/corectl/planengine/action"
	"github.com/corectl/planengine/engine"
	"github.com/corectl/planengine/jobapi"
	"github.com/corectl/planengine/logstream"
	"github.com/corectl/planengine/notify"
	"github.com/corectl/planengine/plan"
	"github.com/corectl/planengine/task"
	"k8s.io/klog/v2"
	"k8s.io/utils/clock"
)

var flags = struct {
	cycles   int
	interval time.Duration
}{
	cycles:   5,
	interval: time.Second,
}

func init() {
	flag.IntVar(&flags.cycles, "cycles", flags.cycles, "number of engine cycles to run")
	flag.DurationVar(&flags.interval, "interval", flags.interval, "wall-clock time between cycles")
}

func deployLibrary() *action.Library {
	lib := action.NewLibrary("demo")
	lib.Register(&action.Model{
		Name:          "deploy",
		Doc:           "deploys a service, returning the sub-plan root tracking its rollout",
		ReturnedModel: "deployment",
		Arguments: []action.ArgumentDescriptor{
			{Name: "service", Required: true, Type: "string"},
		},
	}, func(a *action.Action) (any, error) {
		service, _ := a.Arguments["service"].(string)
		root := task.New("deployment")
		klog.Infof("planengine: deploy action elaborated sub-plan root for service %q", service)
		return root, nil
	})
	return lib
}

func main() {
	flag.Parse()

	p := plan.New()
	c := clock.RealClock{}
	eng := engine.New(p, c)

	notifications := notify.New[engine.Notification]()
	notifications.Open()
	eng.OnNotify(func(n engine.Notification) { notifications.Post(n) })
	notifications.Register(func(n engine.Notification) {
		klog.Infof("planengine: notification kind=%s payload=%v", n.Kind, n.Payload)
	})

	recorder := logstream.NewRecorder(p)

	lib := deployLibrary()
	mgr := jobapi.NewManager(p)
	jobID, err := mgr.StartJob(lib, "deploy", map[string]any{"service": "web"}, c.Now())
	if err != nil {
		klog.Fatalf("planengine: start_job: %v", err)
	}
	klog.Infof("planengine: started job %s", jobID)

	for i := 0; i < flags.cycles; i++ {
		now := c.Now()
		stats, err := eng.RunCycle(now, nil)
		if err != nil {
			klog.Errorf("planengine: cycle %d raised: %v", i, err)
		}
		klog.Infof("planengine: cycle %d stats=%+v", i, *stats)

		for _, d := range recorder.Drain() {
			klog.Infof("planengine: delta kind=%s", d.Kind)
		}

		if i+1 < flags.cycles {
			time.Sleep(flags.interval)
		}
	}

	if live, ok := mgr.LiveTask(jobID); ok {
		fmt.Printf("job %s final state: %s\n", jobID, live.State())
	}
}
