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

// Package prop provides chainable promises over a single-threaded
// cooperative scheduler (package loop).
//
// A Promise is a single eventual result. Chains are built with Then,
// Catch, and Lastly, each returning a new promise; a promise may be
// chained any number of times, and each branch is independent.
//
//	l := loop.New()
//	p := prop.Resolved(l, 10)
//	q := p.Then(func(v int) prop.Result[int] { return prop.Val(v * 2) })
//	v, err := prop.Run(q) // 20, nil
//
// A Promise has four states: Pending, then exactly one of Fulfilled,
// Rejected, or Cancelled. Transitions are one-way; settling a promise
// twice fails with *loop.InvalidStateError.
//
// # Cancellation
//
// Cancellation flows strictly downstream. Cancelling a promise cancels
// every chained descendant, transitively; it never affects the parent it
// was chained from, nor sibling branches of the same parent. The
// propagation happens two ways: a pending descendant observes the
// cancellation when it awaits its parent, and a settled link passes it on
// through its cancellation gate, a single-fire signal separate from the
// result slot that children subscribe to. That second path is what makes
// the result-versus-cancellation race deterministic: a value that arrived
// an instant after a logically earlier cancellation is kept by its own
// link but discarded by every descendant.
//
// Catch callbacks never see cancellation; Lastly callbacks run unless
// cancellation reached their own link before the parent's outcome did.
//
// # Unobserved failures
//
// A promise that settles with an error nobody awaited reports exactly
// once to its loop's diagnostics sink, on the tick after it settles; an
// await in between withdraws the report. Chaining counts as observing the
// parent, so in an unhandled chain only the tail reports. The report
// carries the promise's provenance: the call sites of its root and of
// every chain call that produced it.
package prop
