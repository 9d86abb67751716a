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

package prop

import (
	"github.com/propkit/prop/loop"
)

// Promise is a single eventual result bound to a loop: pending until it
// settles with exactly one of a value, an error, or cancellation.
//
// A root promise (New, Wrap, Go, Resolved, Rejected) is settled by
// application code or by the computation it wraps. A chained promise
// (Then, Catch, Lastly) is settled only by its own continuation; calling
// Resolve or Reject on one fails with *loop.InvalidStateError.
type Promise[T any] struct {
	l   *loop.Loop
	fut *loop.Future[T]

	// task backs derived promises and Go roots; nil for plain roots.
	task *loop.Task[T]

	// link is non-nil for promises created by Then/Catch/Lastly.
	link *chainLink

	// notify is the cancellation gate: a second single-fire signal,
	// independent of fut, used only to fan cancellation out to chained
	// children. Created lazily on first chain call.
	notify *loop.Future[struct{}]

	reportEnabled bool
	reportHandle  *loop.Handle
	observed      bool

	warnOwnership bool
	managed       bool

	frames []Frame
}

// New returns a pending root promise on l, to be settled with Resolve or
// Reject.
func New[T any](l *loop.Loop, opts ...Option) *Promise[T] {
	return newRoot[T](l, callerFrame(1), opts)
}

// Wrap adopts an existing future as a root promise. The loop is inferred
// from the future.
func Wrap[T any](f *loop.Future[T], opts ...Option) *Promise[T] {
	p := newRoot[T](f.Loop(), callerFrame(1), opts)
	adopt(p, f)
	return p
}

// Go spawns fn as a task on l and returns the promise of its outcome.
// A panic inside fn rejects the promise with a PanicError; returning an
// error that matches Canceled cancels it.
func Go[T any](l *loop.Loop, fn func(tc *loop.TaskCtx) (T, error), opts ...Option) *Promise[T] {
	if fn == nil {
		panic(nilCallbackPanicMsg)
	}
	p := newRoot[T](l, callerFrame(1), opts)
	t := loop.Spawn(l, func(tc *loop.TaskCtx) (v T, err error) {
		defer func() {
			if x := recover(); x != nil {
				err = PanicError{V: x}
			}
		}()
		return fn(tc)
	})
	p.task = t
	adopt(p, t.Future())
	return p
}

// Resolved returns a root promise already fulfilled with v.
func Resolved[T any](l *loop.Loop, v T) *Promise[T] {
	p := newRoot[T](l, callerFrame(1), nil)
	_ = p.fut.SetResult(v)
	return p
}

// Rejected returns a root promise already rejected with err. Like any
// other rejected promise, it reports through the loop's diagnostics sink
// if it settles out of existence unobserved.
func Rejected[T any](l *loop.Loop, err error, opts ...Option) *Promise[T] {
	p := newRoot[T](l, callerFrame(1), opts)
	_ = p.fut.SetError(err)
	return p
}

func newRoot[T any](l *loop.Loop, frame Frame, opts []Option) *Promise[T] {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	p := &Promise[T]{
		l:             l,
		fut:           loop.NewFuture[T](l),
		reportEnabled: cfg.report,
		warnOwnership: cfg.warnOwnership,
		managed:       cfg.managed,
		frames:        []Frame{frame},
	}
	p.armReport()
	return p
}

// adopt rebinds p's slot to f, re-arming the unobserved-failure observer on
// the new slot.
func adopt[T any](p *Promise[T], f *loop.Future[T]) {
	p.fut = f
	p.observed = false
	p.armReport()
}

// Resolve fulfills a pending root promise with v. It fails with
// *loop.InvalidStateError on a derived promise or one that already settled.
func (p *Promise[T]) Resolve(v T) error {
	if p.task != nil || p.link != nil {
		return &loop.InvalidStateError{Op: "Resolve", State: "derived"}
	}
	return p.fut.SetResult(v)
}

// Reject rejects a pending root promise with err. Same restrictions as
// Resolve.
func (p *Promise[T]) Reject(err error) error {
	if p.task != nil || p.link != nil {
		return &loop.InvalidStateError{Op: "Reject", State: "derived"}
	}
	return p.fut.SetError(err)
}

// Await suspends the calling task until the promise settles, then returns
// its value, re-raises its error, or returns Canceled. The first Await
// observes the promise and disarms its unobserved-failure report.
func (p *Promise[T]) Await(tc *loop.TaskCtx) (T, error) {
	p.markObserved()
	return loop.Await(tc, p.fut)
}

// Run drives p's loop until p settles and returns its outcome. Running a
// promise observes it, like Await does.
func Run[T any](p *Promise[T]) (T, error) {
	p.markObserved()
	return loop.RunUntil(p.l, p.fut)
}

// Cancel requests cancellation of the promise. Idempotent; reports whether
// the cancellation was newly triggered.
//
// On a chained promise whose callback already produced its final value,
// Cancel is a no-op: a committed value is never retroactively unwound.
func (p *Promise[T]) Cancel() bool {
	if p.link != nil {
		p.link.directCancel = true
		if !p.link.awaitingResult {
			return false
		}
	}
	if p.task != nil {
		return p.task.Cancel()
	}
	return p.fut.Cancel()
}

// CancelChain cancels the promise and, if it already settled, fires its
// cancellation gate so every chained descendant is canceled too.
func (p *Promise[T]) CancelChain() bool {
	if p.Cancel() {
		return true
	}
	if p.notify != nil && p.notify.Cancel() {
		return true
	}
	return false
}

// Done reports whether the promise settled.
func (p *Promise[T]) Done() bool { return p.fut.Done() }

// Cancelled reports whether the promise was canceled.
func (p *Promise[T]) Cancelled() bool { return p.fut.Cancelled() }

// OnDone registers fn to run once the promise settles, in registration
// order. It makes a *Promise a loop.Waiter.
func (p *Promise[T]) OnDone(fn func()) { p.fut.OnDone(fn) }

// State returns the promise's current state without blocking.
func (p *Promise[T]) State() State {
	if !p.fut.Done() {
		return Pending
	}
	if p.fut.Cancelled() {
		return Cancelled
	}
	if _, err := p.fut.Result(); err != nil {
		return Rejected
	}
	return Fulfilled
}

// Val returns the promise's value if it's fulfilled, the zero value
// otherwise. Together with Err and State it makes a *Promise usable as a
// Result, so callbacks can return promises.
func (p *Promise[T]) Val() T {
	var zero T
	if !p.fut.Done() {
		return zero
	}
	v, err := p.fut.Result()
	if err != nil {
		return zero
	}
	return v
}

// Err returns the promise's error if it's rejected or canceled, nil
// otherwise.
func (p *Promise[T]) Err() error {
	if !p.fut.Done() {
		return nil
	}
	_, err := p.fut.Result()
	return err
}

// notifyChain returns the promise's cancellation gate, creating it on
// first use. The gate's done-callback list is the fan-out set: there is no
// explicit child registry.
func (p *Promise[T]) notifyChain() *loop.Future[struct{}] {
	if p.notify == nil {
		p.notify = loop.NewFuture[struct{}](p.l)
	}
	return p.notify
}
