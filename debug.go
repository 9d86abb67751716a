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
	"runtime"
	"strings"

	"github.com/google/uuid"

	"github.com/propkit/prop/loop"
)

// Frame is one call site in a promise's provenance: where the root was
// created and where each chain call was made. It only ever feeds
// diagnostics text, never control flow.
type Frame struct {
	Function string
	File     string
	Line     int
}

func (f Frame) String() string {
	return fmt.Sprintf("%s:%d: %s", f.File, f.Line, f.Function)
}

func callerFrame(skip int) Frame {
	pc, file, line, ok := runtime.Caller(skip + 1)
	if !ok {
		return Frame{Function: "<unknown>"}
	}
	fn := runtime.FuncForPC(pc)
	name := "<unknown>"
	if fn != nil {
		name = fn.Name()
	}
	return Frame{Function: name, File: file, Line: line}
}

// appendFrame copies the parent's provenance and appends one frame, so
// sibling branches never share backing arrays.
func appendFrame(parent []Frame, f Frame) []Frame {
	frames := make([]Frame, len(parent), len(parent)+1)
	copy(frames, parent)
	return append(frames, f)
}

func formatFrames(frames []Frame) string {
	var b strings.Builder
	for _, f := range frames {
		b.WriteString("\n  ")
		b.WriteString(f.String())
	}
	return b.String()
}

// markObserved flips the promise to observed and withdraws any scheduled
// unobserved-failure report.
func (p *Promise[T]) markObserved() {
	if p.observed {
		return
	}
	p.observed = true
	if p.reportHandle != nil {
		p.reportHandle.Cancel()
		p.reportHandle = nil
	}
}

// armReport registers the completion observer behind unobserved-failure
// reporting. If the promise settles with an error while unobserved, a
// one-shot report is scheduled for the next tick, leaving an await in the
// current tick time to withdraw it. Cancellation never reports.
func (p *Promise[T]) armReport() {
	if !p.reportEnabled {
		p.observed = true
		return
	}
	p.fut.OnDone(func() {
		if p.observed || p.fut.Cancelled() {
			return
		}
		_, err := p.fut.Result()
		if err == nil {
			return
		}
		p.reportHandle = p.l.CallSoon(func() { p.report(err) })
	})
}

func (p *Promise[T]) report(err error) {
	if p.observed {
		return
	}
	p.l.HandleEvent(loop.Event{
		ID:      uuid.New(),
		Message: "unhandled error propagated through unobserved promise" + formatFrames(p.frames),
		Err:     err,
		Source:  p,
	})
}
