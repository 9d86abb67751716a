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
	"testing"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

// Then composes left to right: a chain of increments computes the same sum
// as applying them in order.
func TestThenComposesLeftToRight(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		start := rapid.IntRange(-1000, 1000).Draw(t, "start")
		deltas := rapid.SliceOfN(rapid.IntRange(-100, 100), 0, 20).Draw(t, "deltas")

		l := newTestLoop()
		p := Resolved(l, start)
		for _, d := range deltas {
			d := d
			p = p.Then(func(v int) Result[int] { return Val(v + d) })
		}

		want := start
		for _, d := range deltas {
			want += d
		}

		v, err := Run(p)
		require.NoError(t, err)
		require.Equal(t, want, v)
	})
}

// Catch never runs on a chain that only ever fulfills.
func TestCatchNeverRunsOnSuccess(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		start := rapid.IntRange(-1000, 1000).Draw(t, "start")
		n := rapid.IntRange(0, 10).Draw(t, "links")

		l := newTestLoop()
		caught := false
		p := Resolved(l, start)
		for i := 0; i < n; i++ {
			p = p.
				Then(func(v int) Result[int] { return Val(v) }).
				Catch(func(err error) Result[int] {
					caught = true
					return Val(0)
				})
		}

		v, err := Run(p)
		require.NoError(t, err)
		require.Equal(t, start, v)
		require.False(t, caught)
	})
}

// A rejection anywhere in a Then chain surfaces at the tail unchanged, no
// matter how many links follow it.
func TestRejectionSurvivesAnyChainLength(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		before := rapid.IntRange(0, 10).Draw(t, "before")
		after := rapid.IntRange(0, 10).Draw(t, "after")
		want := testError("boom")

		l := newTestLoop()
		p := Resolved(l, 0)
		for i := 0; i < before; i++ {
			p = p.Then(func(v int) Result[int] { return Val(v + 1) })
		}
		p = p.Then(func(v int) Result[int] { return Err[int](want) })
		ran := false
		for i := 0; i < after; i++ {
			p = p.Then(func(v int) Result[int] {
				ran = true
				return Val(v)
			})
		}

		_, err := Run(p)
		require.ErrorIs(t, err, want)
		require.False(t, ran)
	})
}

// Cancelling any link cancels exactly that link and everything after it.
func TestCancelSplitsChainAtTheLink(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(1, 8).Draw(t, "links")
		cut := rapid.IntRange(0, n-1).Draw(t, "cut")

		l := newTestLoop()
		root := New[int](l)
		links := make([]*Promise[int], n)
		p := root
		for i := 0; i < n; i++ {
			p = p.Then(func(v int) Result[int] { return Val(v + 1) })
			links[i] = p
		}

		links[cut].Cancel()
		require.NoError(t, root.Resolve(0))
		l.RunUntilIdle()

		require.Equal(t, Fulfilled, root.State())
		for i, link := range links {
			if i < cut {
				require.Equal(t, Fulfilled, link.State(), "link %d before the cut", i)
				require.Equal(t, i+1, link.Val())
			} else {
				require.Equal(t, Cancelled, link.State(), "link %d after the cut", i)
			}
		}
	})
}
