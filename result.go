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

import "fmt"

// State describes where a promise (or a Result) is in its life cycle.
type State int

const (
	Pending State = iota
	Fulfilled
	Rejected
	Cancelled
)

func (s State) String() string {
	switch s {
	case Pending:
		return "pending"
	case Fulfilled:
		return "fulfilled"
	case Rejected:
		return "rejected"
	case Cancelled:
		return "cancelled"
	default:
		return "<unknown>"
	}
}

// Result is a container for generic result values.
//
// A *Promise satisfies Result, which is what lets a callback return another
// promise and have the chain await it (see Then).
type Result[T any] interface {
	Val() T
	Err() error
	State() State
}

// Empty returns a fulfilled Result with the zero value.
func Empty[T any]() Result[T] {
	return emptyResult[T]{}
}

// Val returns a fulfilled Result holding val.
func Val[T any](val T) Result[T] {
	return valResult[T]{val: val}
}

// Err returns a rejected Result holding err.
func Err[T any](err error) Result[T] {
	return errResult[T]{err: err}
}

// ValErr returns a rejected Result holding both a value and an error.
func ValErr[T any](val T, err error) Result[T] {
	return valErrResult[T]{val: val, err: err}
}

type emptyResult[T any] struct{}
type valResult[T any] struct{ val T }
type errResult[T any] struct{ err error }
type valErrResult[T any] struct {
	val T
	err error
}

func (r emptyResult[T]) Val() (v T)  { return v }
func (r valResult[T]) Val() (v T)    { return r.val }
func (r errResult[T]) Val() (v T)    { return v }
func (r valErrResult[T]) Val() (v T) { return r.val }

func (r emptyResult[T]) Err() error  { return nil }
func (r valResult[T]) Err() error    { return nil }
func (r errResult[T]) Err() error    { return r.err }
func (r valErrResult[T]) Err() error { return r.err }

func (r emptyResult[T]) State() State { return Fulfilled }
func (r valResult[T]) State() State   { return Fulfilled }
func (r errResult[T]) State() State   { return Rejected }
func (r valErrResult[T]) State() State {
	if r.err == nil {
		return Fulfilled
	}
	return Rejected
}

func (r emptyResult[T]) String() string {
	return "fulfilled: <zero>"
}
func (r valResult[T]) String() string {
	return fmt.Sprintf("fulfilled: %v", r.val)
}
func (r errResult[T]) String() string {
	return fmt.Sprintf("rejected: %s", r.err)
}
func (r valErrResult[T]) String() string {
	return fmt.Sprintf("rejected: (%v, %s)", r.val, r.err)
}
