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

// chainLink is the extra state a chained promise carries on top of its
// result slot.
type chainLink struct {
	// parentGate is a read-only subscription to the parent's cancellation
	// gate. The link never fires it.
	parentGate *loop.Future[struct{}]

	// awaitingResult is true from construction until just before the
	// callback runs. While it's true, Cancel propagates to the underlying
	// task; afterwards a plain Cancel must not unwind the callback's
	// value.
	awaitingResult bool

	// directCancel marks that Cancel was called on this specific link, as
	// opposed to cancellation arriving through the parent. Lastly uses it
	// to decide whether its callback still runs.
	directCancel bool
}

// Then chains onFulfilled to run with the promise's value once it
// fulfills. A parent error or cancellation skips the callback and settles
// the new promise with the parent's outcome unchanged.
//
// The callback's Result may be another promise, which the chain then
// awaits. Then may be called any number of times on the same promise; each
// call creates an independent branch.
func (p *Promise[T]) Then(onFulfilled func(val T) Result[T]) *Promise[T] {
	if onFulfilled == nil {
		panic(nilCallbackPanicMsg)
	}
	p.assertManagement()
	return newLink(p, callerFrame(1), fulfillmentLink, callbacks[T]{onFulfilled: onFulfilled})
}

// Catch chains onRejected to run with the promise's error once it rejects.
// On a fulfilled parent the value passes through unchanged. Cancellation is
// not an error: it always propagates untouched, the callback never sees it.
//
// If the callback itself fails, the new promise rejects with a
// *ChainedError carrying the original rejection as context.
func (p *Promise[T]) Catch(onRejected func(err error) Result[T]) *Promise[T] {
	if onRejected == nil {
		panic(nilCallbackPanicMsg)
	}
	p.assertManagement()
	return newLink(p, callerFrame(1), rejectionLink, callbacks[T]{onRejected: onRejected})
}

// Lastly chains onFinally to run for side effects once the parent settles,
// on success and on failure alike. The new promise settles with the
// parent's outcome, not the callback's, unless the callback panics. The
// callback is skipped when cancellation reached this link before it ran.
func (p *Promise[T]) Lastly(onFinally func()) *Promise[T] {
	if onFinally == nil {
		panic(nilCallbackPanicMsg)
	}
	p.assertManagement()
	return newLink(p, callerFrame(1), finallyLink, callbacks[T]{onFinally: onFinally})
}

// newLink builds a chained promise: a continuation task that awaits the
// parent and dispatches to the callback, a fresh cancellation gate, and a
// subscription on the parent's gate so chain cancellation cascades without
// any child registry.
func newLink[T any](parent *Promise[T], frame Frame, kind linkKind, cbs callbacks[T]) *Promise[T] {
	child := &Promise[T]{
		l:             parent.l,
		reportEnabled: true,
		frames:        appendFrame(parent.frames, frame),
		link: &chainLink{
			parentGate:     parent.notifyChain(),
			awaitingResult: true,
		},
	}
	child.task = loop.Spawn(parent.l, func(tc *loop.TaskCtx) (T, error) {
		return runLink(tc, parent, child, kind, cbs)
	})
	child.fut = child.task.Future()
	child.link.parentGate.OnDone(func() { child.Cancel() })
	child.armReport()
	return child
}

// ensureChain commits a callback's result as the link's own, racing it
// against the parent's cancellation gate when the result is itself a
// promise.
//
// Whichever way the race goes, a chain cancellation that was logically
// earlier than the result still wins: if the gate is found canceled after
// the result arrived, the link keeps its value but re-arms its own gate as
// canceled, so every descendant observes the cancellation. Otherwise a
// late-binding hook is left on the parent's gate, covering children
// attached after this link settled.
func (child *Promise[T]) ensureChain(tc *loop.TaskCtx, res Result[T]) (T, error) {
	link := child.link

	nested, ok := res.(*Promise[T])
	if !ok {
		child.relayGate()
		if res == nil {
			var zero T
			return zero, nil
		}
		return res.Val(), res.Err()
	}

	// awaiting the nested promise counts as observing it
	nested.markObserved()

	_, err := loop.AwaitAny(tc, nested, link.parentGate)
	if err != nil {
		// this link itself was canceled during the race
		nested.Cancel()
		var zero T
		return zero, err
	}
	if nested.Done() {
		child.relayGate()
		return nested.fut.Result()
	}

	// the gate fired first: discard the nested computation
	nested.Cancel()
	var zero T
	return zero, Canceled
}

// relayGate links the parent's gate to this promise's own gate: cancel now
// if the chain cancellation already happened, otherwise whenever it does.
func (p *Promise[T]) relayGate() {
	gate := p.link.parentGate
	if gate.Cancelled() {
		p.notifyChain().Cancel()
		return
	}
	own := p.notifyChain()
	gate.OnDone(func() { own.Cancel() })
}
