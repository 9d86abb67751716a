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
	"fmt"

	"github.com/propkit/prop/loop"
)

// panic messages
const nilCallbackPanicMsg = "prop: the provided callback is nil"

// Canceled is the error observed when awaiting a canceled promise.
// It's the scheduler's cancellation signal, re-exported for convenience;
// test for it with errors.Is. Catch callbacks never see it: cancellation
// always propagates untouched through the chain.
var Canceled = loop.Canceled

// PanicError wraps a panic that happened inside a callback. The promise
// whose callback panicked is rejected with it, and it propagates down the
// chain like any other error.
type PanicError struct {
	// V is the value the callback passed to panic.
	V any
}

func (e PanicError) Error() string {
	return fmt.Sprintf("prop: callback panicked: %v", e.V)
}

// ChainedError is the failure of a Catch callback, with the rejection it
// was handling attached as context. errors.Is and errors.As see through to
// both.
type ChainedError struct {
	// Err is the error the Catch callback itself produced.
	Err error

	// Cause is the original rejection the callback was handling.
	Cause error
}

func (e *ChainedError) Error() string {
	return fmt.Sprintf("%s (while handling: %s)", e.Err, e.Cause)
}

func (e *ChainedError) Unwrap() []error {
	return []error{e.Err, e.Cause}
}
