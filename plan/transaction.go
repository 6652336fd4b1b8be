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

package plan

import (
	"fmt"
	"time"

	"github.com/corectl/planengine/task"
)

// ErrConcurrentModification is returned by Commit when the base plan was
// mutated after the transaction began (spec.md §4.2 "A transaction
// fails to commit if concurrent base-plan mutations violate its
// preconditions").
var ErrConcurrentModification = fmt.Errorf("plan: concurrent base-plan modification")

// Transaction stages a sequence of mutating operations against a base
// Plan, applying them in order on Commit or none of them on Discard
// (spec.md §4.2 "in_transaction { t ... }"). Commit does not roll back:
// if one operation fails, the operations applied before it stay applied.
//
// This is a staged-operation overlay rather than a full object-proxy
// overlay (the single-control-thread model of spec.md §5 means no
// reader ever observes a transaction's objects before commit, so
// proxying individual field reads buys nothing here; see DESIGN.md's
// Open Question decisions).
type Transaction struct {
	base        *Plan
	baseVersion int
	ops         []func(*Plan) error
	done        bool
}

// Begin starts a transaction against p, snapshotting its version for
// the optimistic-concurrency check at Commit time.
func (p *Plan) Begin() *Transaction {
	return &Transaction{base: p, baseVersion: p.version}
}

func (t *Transaction) stage(op func(*Plan) error) *Transaction {
	t.ops = append(t.ops, op)
	return t
}

// Add stages Plan.Add(obj).
func (t *Transaction) Add(obj any) *Transaction {
	return t.stage(func(p *Plan) error { return p.Add(obj) })
}

// DependsOnEdge stages Plan.DependsOnEdge.
func (t *Transaction) DependsOnEdge(parent, child *task.Task, requiredEvents []string) *Transaction {
	return t.stage(func(p *Plan) error { return p.DependsOnEdge(parent, child, requiredEvents) })
}

// MarkMission stages Plan.MarkMission.
func (t *Transaction) MarkMission(tk *task.Task) *Transaction {
	return t.stage(func(p *Plan) error { p.MarkMission(tk); return nil })
}

// Remove stages Plan.Remove at the given finalization time.
func (t *Transaction) Remove(obj any, now time.Time) *Transaction {
	return t.stage(func(p *Plan) error { return p.Remove(obj, now) })
}

// ReplaceTask stages Plan.ReplaceTask.
func (t *Transaction) ReplaceTask(old, new *task.Task, filter *ReplacementFilter) *Transaction {
	return t.stage(func(p *Plan) error { return p.ReplaceTask(old, new, filter) })
}

// Replace stages Plan.Replace.
func (t *Transaction) Replace(old, new *task.Task, filter *ReplacementFilter) *Transaction {
	return t.stage(func(p *Plan) error { return p.Replace(old, new, filter) })
}

// Commit applies every staged operation to the base plan in order. If
// any operation fails, the base plan is left as it was after the last
// successfully applied operation (spec.md doesn't mandate rollback of
// partially-applied commits, only that the transaction as a whole
// reports failure) and Commit returns that error. Commit refuses to run
// at all if the base plan changed since Begin.
func (t *Transaction) Commit() error {
	if t.done {
		return fmt.Errorf("plan: transaction already resolved")
	}
	if t.base.version != t.baseVersion {
		return ErrConcurrentModification
	}
	t.done = true
	for i, op := range t.ops {
		if err := op(t.base); err != nil {
			return fmt.Errorf("plan: transaction op %d: %w", i, err)
		}
	}
	return nil
}

// Discard drops every staged operation without touching the base plan.
func (t *Transaction) Discard() {
	t.done = true
	t.ops = nil
}
