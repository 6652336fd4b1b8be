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

// Package engine implements the execution engine cycle of spec.md §4.7:
// a fixed-period, single-threaded loop that gathers external events,
// runs pollers, propagates events to a fixpoint, checks structural
// constraints, applies fault responses, garbage collects, and flushes
// queued notifications.
//
// Grounded on the teacher's exec.serialExecutor.runAction
// (pkg/cloud/rgraph/exec/executor_serial.go): a `next`/`signal` worklist
// loop driving Action.CanRun/Signal to a fixpoint before returning. The
// per-cycle ordering here generalizes the same call/signal worklist
// shape from "run every runnable Action once" to the seven named steps
// of a supervised plan's control loop, with ExecutorConfig's functional
// Option/ErrorStrategy pattern (exec/executor.go) reused directly for
// Engine's dry-run and fault-table configuration.
package engine

import (
	"errors"
	"time"

	"github.com/corectl/planengine/constraints"
	"github.com/corectl/planengine/event"
	"github.com/corectl/planengine/plan"
	"github.com/corectl/planengine/planobj"
	"github.com/corectl/planengine/relgraph"
	"github.com/corectl/planengine/task"
	"github.com/hashicorp/go-multierror"
	"k8s.io/utils/clock"
)

// Poller is run once per cycle against every currently-running task
// (spec.md §4.7 step 2 "run_pollers on running tasks (may call/emit)").
type Poller func(p *plan.Plan, t *task.Task, now time.Time) error

// ExternalEvent is one externally-sourced occurrence gathered at the
// start of a cycle (spec.md §4.7 step 1 "gather_external_events
// (timers, incoming messages)"). The external interface layer (timers,
// transport) is responsible for producing these; the engine only
// consumes them.
type ExternalEvent struct {
	ID      planobj.ObjID
	Context any
}

// NotificationKind classifies a queued cycle_end notification (spec.md
// §4.7 step 7 "flushes queued job/exception/UI notifications").
type NotificationKind string

const (
	NotificationJob       NotificationKind = "job"
	NotificationException NotificationKind = "exception"
	NotificationUI        NotificationKind = "ui"
)

// Notification is one item flushed to listeners at cycle_end.
type Notification struct {
	Kind    NotificationKind
	Payload any
}

// NotificationListener receives every Notification flushed at
// cycle_end, in queue order.
type NotificationListener func(Notification)

// Option configures an Engine, mirroring the teacher's functional
// ExecutorConfig options (exec.DryRunOption, exec.ErrorStrategyOption).
type Option func(*Engine)

// WithDryRun runs a cycle for its observable statistics without
// collecting objects or delivering notifications, so callers can ask
// "what would this cycle do" (the job-control PLANNING_READY use case)
// without the cycle's garbage collection or notification side effects
// taking hold (teacher: exec.DryRunOption / Action.DryRun). Pollers and
// propagation still run against the live plan, since neither Generator
// emission history nor Task state transitions have a staged-Transaction
// equivalent to discard.
func WithDryRun(v bool) Option { return func(e *Engine) { e.dryRun = v } }

// WithFaultTable installs a non-default fault-response table.
func WithFaultTable(ft *FaultTable) Option { return func(e *Engine) { e.faults = ft } }

// WithPoller registers a poller at construction time.
func WithPoller(p Poller) Option { return func(e *Engine) { e.pollers = append(e.pollers, p) } }

// Engine drives one Plan's per-cycle control loop.
type Engine struct {
	plan   *plan.Plan
	clock  clock.PassiveClock
	dryRun bool

	faults  *FaultTable
	pollers []Poller
	tracker *constraints.Tracker[planobj.ObjID]

	pending   []Notification
	listeners []NotificationListener
}

// New returns an Engine driving p, reading time from c.
func New(p *plan.Plan, c clock.PassiveClock, opts ...Option) *Engine {
	e := &Engine{
		plan:    p,
		clock:   c,
		faults:  NewFaultTable(),
		tracker: constraints.NewTracker[planobj.ObjID](c),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Plan returns the driven plan.
func (e *Engine) Plan() *plan.Plan { return e.plan }

// Tracker exposes the engine's temporal/occurrence constraint tracker so
// callers can register constraints ahead of running cycles.
func (e *Engine) Tracker() *constraints.Tracker[planobj.ObjID] { return e.tracker }

// AddPoller registers a poller run on every running task each cycle.
func (e *Engine) AddPoller(p Poller) { e.pollers = append(e.pollers, p) }

// OnNotify registers a listener invoked, in order, for every
// notification flushed at cycle_end.
func (e *Engine) OnNotify(l NotificationListener) { e.listeners = append(e.listeners, l) }

func (e *Engine) queue(n Notification) { e.pending = append(e.pending, n) }

// CycleStats summarizes one RunCycle invocation (spec.md §6 names
// `(cycle_end, stats)` without defining its shape; grounded on the
// teacher's exec.TraceEntry Start/End/Signaled fields).
type CycleStats struct {
	CycleStart           time.Time
	Elapsed              time.Duration
	ExternalEvents       int
	EventsEmitted        int
	PollersRun           int
	ConstraintViolations int
	FaultsHandled        int
	ObjectsCollected     int
	DryRun               bool
}

// RunCycle executes the seven-step cycle of spec.md §4.7 once.
func (e *Engine) RunCycle(now time.Time, externals []ExternalEvent) (*CycleStats, error) {
	stats := &CycleStats{CycleStart: now, DryRun: e.dryRun, ExternalEvents: len(externals)}

	// 1. gather_external_events
	seed := make([]pendingEmission, 0, len(externals))
	for _, ext := range externals {
		seed = append(seed, pendingEmission{id: ext.ID, ctx: ext.Context, at: now})
	}

	// 2. run_pollers
	for _, t := range e.plan.Tasks() {
		if t.State() != task.StateRunning {
			continue
		}
		for _, poll := range e.pollers {
			if err := poll(e.plan, t, now); err != nil {
				e.propagateException(t.ID(), err, now)
			}
		}
	}
	stats.PollersRun = len(e.pollers)

	// 3. propagate_events to fixpoint
	emitted := e.propagate(seed, now)
	stats.EventsEmitted = emitted

	// 4. check_structural_constraints
	violations := e.checkConstraints(now)
	stats.ConstraintViolations = len(violations)
	for _, v := range violations {
		e.queue(Notification{Kind: NotificationException, Payload: v})
	}

	// 5. apply_fault_responses
	stats.FaultsHandled = e.applyFaults(violations, now)

	// 6. garbage_collect
	collected := e.garbageCollect(now)
	stats.ObjectsCollected = collected

	// 7. cycle_end
	stats.Elapsed = e.clock.Since(now)
	e.flush()

	// Every violation was already queued as a notification and run
	// through the fault table above; the returned error is a reporting
	// convenience for callers driving RunCycle synchronously (e.g. a
	// CLI demo loop) who want a single non-nil error out of a cycle that
	// raised more than one (spec.md §4.7/§7, aggregated per-cycle rather
	// than per-violation).
	var result *multierror.Error
	for _, v := range violations {
		result = multierror.Append(result, v)
	}
	return stats, result.ErrorOrNil()
}

// pendingEmission is one queued occurrence: either a direct emission
// (call == false, the Forward case of spec.md §4.3 — the destination
// simply emits) or a call (call == true, the Signal case — the
// destination is called, which rejects a non-controllable target with
// ErrNotControllable and otherwise runs its command before the
// generator's own forward/signal edges fire in turn).
type pendingEmission struct {
	id   planobj.ObjID
	ctx  any
	at   time.Time
	call bool
}

// engineCaller implements event.Caller by appending further pending
// occurrences to the same worklist propagate is draining, so a
// command's emit/call requests join the same fixpoint as everything else
// (spec.md §4.3 scenario 4: a signaled event's command emitting a
// further event must still land in that cycle's propagation).
type engineCaller struct {
	queue *[]pendingEmission
	at    time.Time
}

func (c *engineCaller) Emit(id planobj.ObjID, ctx any) {
	*c.queue = append(*c.queue, pendingEmission{id: id, ctx: ctx, at: c.at})
}

func (c *engineCaller) Call(id planobj.ObjID, ctx any) {
	*c.queue = append(*c.queue, pendingEmission{id: id, ctx: ctx, at: c.at, call: true})
}

// propagate drains seed (and everything it transitively forwards,
// signals, or a command schedules) to a fixpoint, recording each
// emission via its Generator (spec.md §4.3) and feeding it to the
// temporal/occurrence tracker. It returns the number of emissions
// recorded.
//
// Forward and Signal are NOT the same relation: a Forward destination
// simply emits (folded into the same occurrence), while a Signal
// destination is called — calling a non-controllable generator raises
// NotControllable (spec.md §4.3 step 2b, §7), and calling a controllable
// one runs its registered command, which may itself emit or call
// further events through the same worklist before returning.
func (e *Engine) propagate(seed []pendingEmission, now time.Time) int {
	forward := e.plan.EventGraph().Graph(plan.Forward)
	signal := e.plan.EventGraph().Graph(plan.Signal)

	queue := append([]pendingEmission(nil), seed...)
	emitted := 0

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]

		g, ok := e.plan.Event(cur.id)
		if !ok {
			continue
		}

		if cur.call && !g.Controllable() {
			e.propagateException(cur.id, event.ErrNotControllable, cur.at)
			continue
		}

		if _, err := g.Record(cur.ctx, cur.at); err != nil {
			e.propagateException(cur.id, err, cur.at)
			if errors.Is(err, event.ErrNotAdded) {
				continue
			}
		}
		emitted++

		for _, errv := range e.tracker.OnEmission(cur.id, cur.at) {
			e.queue(Notification{Kind: NotificationException, Payload: errv})
		}

		for _, to := range forward.Neighbors(cur.id, relgraph.Out) {
			queue = append(queue, pendingEmission{id: to, ctx: cur.ctx, at: cur.at})
		}
		for _, to := range signal.Neighbors(cur.id, relgraph.Out) {
			queue = append(queue, pendingEmission{id: to, ctx: cur.ctx, at: cur.at, call: true})
		}

		if cur.call && g.HasCommand() {
			caller := &engineCaller{queue: &queue, at: cur.at}
			if err := g.RunCommand(caller, cur.ctx, cur.at); err != nil {
				e.propagateException(cur.id, err, cur.at)
			}
		}
	}
	return emitted
}

// flush delivers every queued notification to every listener, in order,
// then clears the queue (spec.md §4.7 step 7). In dry-run mode nothing
// is delivered: a disposable cycle shouldn't surface job/exception/UI
// notifications a caller would act on as if the cycle had really run.
func (e *Engine) flush() {
	pending := e.pending
	e.pending = nil
	if e.dryRun {
		return
	}
	for _, n := range pending {
		for _, l := range e.listeners {
			l(n)
		}
	}
}
