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

import "github.com/propkit/prop/loop"

// Manage marks the promise as life-cycle managed: some owner has taken
// responsibility for eventually closing it. It returns the promise for
// chaining:
//
//	p := prop.New[int](l, prop.WithOwnershipWarning()).Manage()
//	defer p.Close()
func (p *Promise[T]) Manage() *Promise[T] {
	p.managed = true
	return p
}

// Close cancels the promise and its whole chain. It always returns nil;
// the error return is for io.Closer and defer friendliness.
func (p *Promise[T]) Close() error {
	p.CancelChain()
	return nil
}

// assertManagement emits an ownership warning when a warning-enabled
// promise is chained without being managed. Chaining spawns work that
// outlives the call site, so somebody should own its cancellation.
func (p *Promise[T]) assertManagement() {
	if !p.warnOwnership || p.managed {
		return
	}
	p.l.HandleEvent(loop.Event{
		Message: "promise is being chained without life-cycle management" + formatFrames(p.frames),
		Source:  p,
	})
}
