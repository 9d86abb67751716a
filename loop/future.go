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
	"fmt"
)

// Canceled is the error reported by futures and tasks whose computation was
// canceled. It's a sentinel value, test for it with errors.Is.
var Canceled = errors.New("loop: canceled")

// InvalidStateError is returned when a one-way transition is attempted on a
// future that doesn't allow it, like settling an already settled future, or
// reading the result of a pending one.
// It's a programmer error, reported synchronously at the call site.
type InvalidStateError struct {
	// Op is the operation that was attempted.
	Op string

	// State is the state the future (or promise) was in at the time.
	State string
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("loop: %s called on a %s value", e.Op, e.State)
}

type futState uint8

const (
	statePending futState = iota
	stateValue
	stateError
	stateCanceled
)

func (s futState) String() string {
	switch s {
	case statePending:
		return "pending"
	case stateValue:
		return "fulfilled"
	case stateError:
		return "rejected"
	case stateCanceled:
		return "canceled"
	default:
		return "<unknown>"
	}
}

// Future is a single-assignment result slot bound to a Loop.
//
// A Future starts pending and moves to exactly one of three terminal states:
// fulfilled (SetResult), rejected (SetError), or canceled (Cancel). Terminal
// states are final, a second transition fails with *InvalidStateError.
//
// Futures are not goroutine safe. All access must happen from the loop's
// active goroutine while the loop is running, which the loop enforces.
type Future[T any] struct {
	l   *Loop
	st  futState
	val T
	err error
	cbs []func()
}

// NewFuture returns a new pending future bound to l.
func NewFuture[T any](l *Loop) *Future[T] {
	return &Future[T]{l: l}
}

// Loop returns the loop this future is bound to.
func (f *Future[T]) Loop() *Loop { return f.l }

// SetResult fulfills the future with v.
func (f *Future[T]) SetResult(v T) error {
	f.l.checkOwner()
	if f.st != statePending {
		return &InvalidStateError{Op: "SetResult", State: f.st.String()}
	}
	f.st = stateValue
	f.val = v
	f.fire()
	return nil
}

// SetError rejects the future with err.
func (f *Future[T]) SetError(err error) error {
	f.l.checkOwner()
	if f.st != statePending {
		return &InvalidStateError{Op: "SetError", State: f.st.String()}
	}
	f.st = stateError
	f.err = err
	f.fire()
	return nil
}

// Cancel moves a pending future to the canceled state. It reports whether
// the cancellation was newly triggered, so it's false on a settled future.
func (f *Future[T]) Cancel() bool {
	f.l.checkOwner()
	if f.st != statePending {
		return false
	}
	f.st = stateCanceled
	f.err = Canceled
	f.fire()
	return true
}

// Done reports whether the future reached a terminal state.
func (f *Future[T]) Done() bool { return f.st != statePending }

// Cancelled reports whether the future was canceled.
func (f *Future[T]) Cancelled() bool { return f.st == stateCanceled }

// Result returns the future's value or error without blocking.
// Calling it on a pending future fails with *InvalidStateError.
// A canceled future reports the Canceled error.
func (f *Future[T]) Result() (T, error) {
	if f.st == statePending {
		var zero T
		return zero, &InvalidStateError{Op: "Result", State: f.st.String()}
	}
	return f.val, f.err
}

// OnDone registers fn to run once the future settles. Callbacks run through
// the loop's ready queue, in registration order. Registering on a settled
// future schedules fn immediately.
func (f *Future[T]) OnDone(fn func()) {
	f.l.checkOwner()
	if f.st != statePending {
		f.l.CallSoon(fn)
		return
	}
	f.cbs = append(f.cbs, fn)
}

func (f *Future[T]) fire() {
	for _, fn := range f.cbs {
		f.l.CallSoon(fn)
	}
	f.cbs = nil
}
