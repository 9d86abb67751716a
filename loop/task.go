// Copyright 2024 The prop Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package loop

import (
	"errors"

	"github.com/petermattis/goid"
)

// TaskCtx is the execution handle passed to a task's function. It's what a
// suspension point needs: the loop, the park/resume handshake, and the
// pending cancellation request, if any.
//
// A TaskCtx is only valid inside the task function it was passed to.
type TaskCtx struct {
	l      *Loop
	resume chan struct{}
	park   chan struct{}

	started  bool
	parked   bool
	finished bool

	// cancelRequested is sticky, for Cancel idempotency.
	// cancelPending is consumed when the cancellation is delivered at a
	// suspension point.
	cancelRequested bool
	cancelPending   bool
}

// Task is a cooperative computation spawned on a loop. Its eventual outcome
// lives in a Future: the function's return value, its error, or Canceled.
type Task[T any] struct {
	fut *Future[T]
	tc  *TaskCtx
}

// Spawn schedules fn to run as a new task on l. The task starts on a later
// tick; Spawn itself never runs any of fn.
//
// fn runs on its own goroutine, but strictly serialized with the loop and
// every other task: it holds the loop until it suspends in Await (or
// AwaitAny) or returns. An error return of Canceled (by errors.Is) marks
// the task's future canceled; any other error rejects it.
func Spawn[T any](l *Loop, fn func(tc *TaskCtx) (T, error)) *Task[T] {
	l.checkOwner()
	tc := &TaskCtx{
		l:      l,
		resume: make(chan struct{}),
		park:   make(chan struct{}),
	}
	t := &Task[T]{fut: NewFuture[T](l), tc: tc}
	go taskMain(t, fn)
	l.CallSoon(tc.step)
	return t
}

// Future returns the task's result slot.
func (t *Task[T]) Future() *Future[T] { return t.fut }

// Cancel requests cooperative cancellation: the task observes Canceled at
// its current or next suspension point. A task that hasn't started yet
// never runs its function. Cancel reports whether the request was newly
// triggered; it's false on a finished task and on repeated calls.
func (t *Task[T]) Cancel() bool {
	t.tc.l.checkOwner()
	tc := t.tc
	if t.fut.Done() || tc.cancelRequested {
		return false
	}
	tc.cancelRequested = true
	tc.cancelPending = true
	if tc.parked {
		tc.l.CallSoon(tc.step)
	}
	return true
}

func taskMain[T any](t *Task[T], fn func(tc *TaskCtx) (T, error)) {
	tc := t.tc
	<-tc.resume
	tc.l.activeGoid = goid.Get()

	if tc.cancelPending {
		// canceled before the first run, the function never executes
		tc.cancelPending = false
		t.fut.Cancel()
		tc.finish()
		return
	}

	v, err := fn(tc)
	switch {
	case err == nil:
		_ = t.fut.SetResult(v)
	case errors.Is(err, Canceled):
		t.fut.Cancel()
	default:
		_ = t.fut.SetError(err)
	}
	tc.finish()
}

// step resumes the task and blocks until it parks again or finishes.
// Runs on the loop goroutine; spurious steps (double wake-ups from a
// settled future plus a cancellation) are no-ops.
func (tc *TaskCtx) step() {
	if tc.finished {
		return
	}
	if tc.started && !tc.parked {
		return
	}
	tc.started = true
	tc.parked = false
	caller := goid.Get()
	tc.resume <- struct{}{}
	<-tc.park
	tc.l.activeGoid = caller
}

// parkAndWait suspends the task until the loop resumes it.
// Runs on the task goroutine.
func (tc *TaskCtx) parkAndWait() {
	tc.parked = true
	tc.park <- struct{}{}
	<-tc.resume
	tc.l.activeGoid = goid.Get()
}

func (tc *TaskCtx) finish() {
	tc.finished = true
	tc.park <- struct{}{}
}

// deliverCancel consumes a pending cancellation request, if any.
func (tc *TaskCtx) deliverCancel() bool {
	if !tc.cancelPending {
		return false
	}
	tc.cancelPending = false
	return true
}

// Await suspends the task until f settles, then returns f's outcome.
// If the task is canceled before or while waiting, Await returns Canceled
// instead; the awaited future itself is never touched, so awaiting is
// always shielded: canceling the waiter never cancels what it waits on.
func Await[T any](tc *TaskCtx, f *Future[T]) (T, error) {
	for {
		if tc.deliverCancel() {
			var zero T
			return zero, Canceled
		}
		if f.Done() {
			return f.Result()
		}
		f.OnDone(tc.wake)
		tc.parkAndWait()
	}
}

func (tc *TaskCtx) wake() {
	tc.step()
}

// Waiter is anything with a terminal state that can be waited on.
// Both *Future and (upstack) promises satisfy it.
type Waiter interface {
	Done() bool
	OnDone(fn func())
}

// AwaitAny suspends the task until the first of ws settles and returns its
// index. It's the two-armed race primitive behind result-versus-cancellation
// decisions: typically one arm is a result future and the other a
// cancellation gate. If the task itself is canceled while waiting, AwaitAny
// returns Canceled with index -1, leaving every waiter untouched.
func AwaitAny(tc *TaskCtx, ws ...Waiter) (int, error) {
	if tc.deliverCancel() {
		return -1, Canceled
	}
	for i, w := range ws {
		if w.Done() {
			return i, nil
		}
	}
	for _, w := range ws {
		w.OnDone(tc.wake)
	}
	for {
		tc.parkAndWait()
		if tc.deliverCancel() {
			return -1, Canceled
		}
		for i, w := range ws {
			if w.Done() {
				return i, nil
			}
		}
	}
}
