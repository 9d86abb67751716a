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
	"errors"

	"github.com/propkit/prop/loop"
)

// linkKind tags the three continuation shapes a chained promise can wrap.
// One tagged kind with a 3-arm switch, not three types.
type linkKind uint8

const (
	fulfillmentLink linkKind = iota
	rejectionLink
	finallyLink
)

// callbacks carries the one callback relevant to the link's kind; the
// other fields stay nil.
type callbacks[T any] struct {
	onFulfilled func(val T) Result[T]
	onRejected  func(err error) Result[T]
	onFinally   func()
}

// runLink is the continuation body every chained promise runs: await the
// parent (shielded, by the scheduler's await semantics), dispatch to the
// callback variant, commit the outcome through ensureChain.
func runLink[T any](
	tc *loop.TaskCtx,
	parent *Promise[T],
	child *Promise[T],
	kind linkKind,
	cbs callbacks[T],
) (T, error) {
	var zero T

	val, err := parent.Await(tc)

	switch kind {
	case fulfillmentLink:
		if err != nil {
			// parent failure or cancellation short-circuits, the
			// callback never runs
			return zero, err
		}
		child.link.awaitingResult = false
		res := invoke(func() Result[T] { return cbs.onFulfilled(val) })
		return child.ensureChain(tc, res)

	case rejectionLink:
		if err == nil {
			// success passes through untouched
			return val, nil
		}
		if errors.Is(err, Canceled) {
			// cancellation is never caught
			return zero, err
		}
		child.link.awaitingResult = false
		res := invoke(func() Result[T] { return cbs.onRejected(err) })
		v, cbErr := child.ensureChain(tc, res)
		if cbErr != nil && !errors.Is(cbErr, Canceled) {
			return zero, &ChainedError{Err: cbErr, Cause: err}
		}
		return v, cbErr

	case finallyLink:
		child.link.awaitingResult = false
		if !errors.Is(err, Canceled) && !child.link.directCancel {
			if cbErr := invokeVoid(cbs.onFinally); cbErr != nil {
				return zero, cbErr
			}
		}
		child.relayGate()
		return val, err
	}

	panic("prop: internal: unknown chain link kind")
}

// invoke runs a result-returning callback, converting a panic into a
// rejected Result.
func invoke[T any](fn func() Result[T]) (res Result[T]) {
	defer func() {
		if v := recover(); v != nil {
			res = Err[T](PanicError{V: v})
		}
	}()
	return fn()
}

// invokeVoid runs a side-effect callback, converting a panic into an error.
func invokeVoid(fn func()) (err error) {
	defer func() {
		if v := recover(); v != nil {
			err = PanicError{V: v}
		}
	}()
	fn()
	return nil
}
