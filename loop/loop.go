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

// Package loop implements a single-threaded cooperative scheduler: a ready
// queue of callbacks drained in tick-sized batches, a timer queue, single
// assignment futures, and goroutine-backed tasks that run one at a time and
// suspend only at explicit await points.
//
// Exactly one goroutine is runnable at any moment, either the goroutine
// driving the loop or the task it's currently resuming. Because of that, no
// locks are needed anywhere: futures and handles are plain values. The loop
// enforces the discipline by checking the calling goroutine's identity on
// every mutating call while it's running.
package loop

import (
	"errors"
	"log/slog"
	"time"

	"github.com/addrummond/heap"
	"github.com/gammazero/deque"
	"github.com/google/uuid"
	"github.com/petermattis/goid"
)

// ErrStalled is returned by RunUntil when the target future can't settle
// anymore: the ready queue is empty, no timers are armed, and every spawned
// task is parked waiting on something that will never complete.
var ErrStalled = errors.New("loop: stalled with no runnable work left")

// Event is a diagnostic report delivered to the loop's event handler.
// It mirrors the shape of the reports the scheduler itself emits: a unique
// report ID, a human-readable message, the error being reported (if any),
// and the object the report is about.
type Event struct {
	ID      uuid.UUID
	Message string
	Err     error
	Source  any
}

// Loop is a single-threaded cooperative scheduler.
//
// The zero value is not usable, create one with New. A Loop is driven by
// RunUntil or RunUntilIdle and must only be driven by one goroutine.
type Loop struct {
	ready  deque.Deque[*Handle]
	timers heap.Heap[timer, heap.Min]

	tick       uint64
	running    bool
	activeGoid int64

	handler func(Event)
}

// New returns a new, empty loop.
func New() *Loop {
	return &Loop{}
}

// Handle represents a scheduled callback. Cancel makes it a no-op if it
// hasn't run yet.
type Handle struct {
	fn       func()
	canceled bool
}

// Cancel prevents the callback from running. It has no effect if the
// callback already ran.
func (h *Handle) Cancel() { h.canceled = true }

type timer struct {
	when time.Time
	h    *Handle
}

func (a *timer) Cmp(b *timer) int {
	return a.when.Compare(b.when)
}

// Tick returns the number of completed scheduling ticks. A tick is one
// drained snapshot of the ready queue; callbacks scheduled during a tick
// run on a later one.
func (l *Loop) Tick() uint64 { return l.tick }

// CallSoon schedules fn to run on the next tick and returns a cancelable
// handle for it.
func (l *Loop) CallSoon(fn func()) *Handle {
	l.checkOwner()
	h := &Handle{fn: fn}
	l.ready.PushBack(h)
	return h
}

// CallLater schedules fn to run once d has elapsed.
func (l *Loop) CallLater(d time.Duration, fn func()) *Handle {
	l.checkOwner()
	h := &Handle{fn: fn}
	heap.PushOrderable(&l.timers, timer{when: time.Now().Add(d), h: h})
	return h
}

// SetEventHandler installs the diagnostics sink that HandleEvent reports to.
// Passing nil restores the default handler, which logs through slog.
func (l *Loop) SetEventHandler(h func(Event)) {
	l.handler = h
}

// HandleEvent delivers a diagnostic event to the installed handler.
// Events without an ID get one assigned.
func (l *Loop) HandleEvent(ev Event) {
	if ev.ID == uuid.Nil {
		ev.ID = uuid.New()
	}
	if l.handler != nil {
		l.handler(ev)
		return
	}
	slog.Error(ev.Message,
		slog.String("report", ev.ID.String()),
		slog.Any("error", ev.Err),
	)
}

// checkOwner panics if the calling goroutine isn't the one the loop is
// currently running: either the goroutine driving the loop or the task it
// has resumed. Before the loop starts running, any goroutine may set it up.
func (l *Loop) checkOwner() {
	if !l.running {
		return
	}
	if goid.Get() != l.activeGoid {
		panic("loop: call from outside the running loop's goroutine")
	}
}

// runOnce executes the due timers and one tick of the ready queue.
func (l *Loop) runOnce() {
	now := time.Now()
	for {
		t, ok := heap.Peek(&l.timers)
		if !ok || t.when.After(now) {
			break
		}
		t, _ = heap.PopOrderable(&l.timers)
		l.ready.PushBack(t.h)
	}

	// drain only the current snapshot, anything scheduled by these
	// callbacks belongs to a later tick
	n := l.ready.Len()
	for i := 0; i < n; i++ {
		h := l.ready.PopFront()
		if h.canceled {
			continue
		}
		h.fn()
	}
	l.tick++
}

// step runs one tick, sleeping until the next timer if the ready queue is
// empty. It reports false when there's nothing left to run.
func (l *Loop) step() bool {
	if l.ready.Len() == 0 {
		t, ok := heap.Peek(&l.timers)
		if !ok {
			return false
		}
		if d := time.Until(t.when); d > 0 {
			time.Sleep(d)
		}
	}
	l.runOnce()
	return true
}

func (l *Loop) enter() {
	if l.running {
		panic("loop: already running")
	}
	l.running = true
	l.activeGoid = goid.Get()
}

func (l *Loop) exit() {
	l.running = false
	l.activeGoid = 0
}

// RunUntilIdle drives the loop until no ready callbacks and no timers
// remain. Parked tasks whose futures never settle are left parked.
func (l *Loop) RunUntilIdle() {
	l.enter()
	defer l.exit()

	for l.step() {
	}
}

// RunUntil drives l until f settles, then returns f's outcome. If the loop
// runs out of work while f is still pending, it returns ErrStalled.
func RunUntil[T any](l *Loop, f *Future[T]) (T, error) {
	l.enter()
	defer l.exit()

	for !f.Done() {
		if !l.step() {
			var zero T
			return zero, ErrStalled
		}
	}
	return f.Result()
}
