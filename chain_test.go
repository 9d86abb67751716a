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

	"github.com/propkit/prop/loop"
)

func TestThenChain(t *testing.T) {
	l := newTestLoop()

	p := Resolved(l, 10).
		Then(func(v int) Result[int] { return Val(v * 2) }).
		Then(func(v int) Result[int] { return Val(v + 2) }).
		Then(func(v int) Result[int] { return Val(v / 2) })

	v, err := Run(p)
	require.NoError(t, err)
	require.Equal(t, 11, v)
}

func TestThenSkippedOnRejection(t *testing.T) {
	l := newTestLoop()
	want := testError("boom")

	ran := false
	p := Rejected[int](l, want).Then(func(v int) Result[int] {
		ran = true
		return Val(v)
	})

	_, err := Run(p)
	require.ErrorIs(t, err, want)
	require.False(t, ran, "a rejected parent skips the fulfillment callback")
}

func TestCatch(t *testing.T) {
	t.Run("handles rejection", func(t *testing.T) {
		l := newTestLoop()
		want := testError("boom")

		calls := 0
		p := Rejected[int](l, want).
			Then(func(v int) Result[int] { return Val(v + 1) }).
			Catch(func(err error) Result[int] {
				calls++
				require.ErrorIs(t, err, want)
				return Val(-1)
			})

		v, err := Run(p)
		require.NoError(t, err)
		require.Equal(t, -1, v)
		require.Equal(t, 1, calls)
	})

	t.Run("never runs on success", func(t *testing.T) {
		l := newTestLoop()

		ran := false
		p := Resolved(l, 5).Catch(func(err error) Result[int] {
			ran = true
			return Val(0)
		})

		v, err := Run(p)
		require.NoError(t, err)
		require.Equal(t, 5, v, "success passes through a Catch untouched")
		require.False(t, ran)
	})

	t.Run("never sees cancellation", func(t *testing.T) {
		l := newTestLoop()

		ran := false
		root := New[int](l)
		p := root.Catch(func(err error) Result[int] {
			ran = true
			return Val(0)
		})
		root.Cancel()

		_, err := Run(p)
		require.ErrorIs(t, err, Canceled)
		require.True(t, p.Cancelled())
		require.False(t, ran)
	})

	t.Run("failing handler chains the original error", func(t *testing.T) {
		l := newTestLoop()
		cause := testError("original")
		inner := testError("handler failed")

		p := Rejected[int](l, cause).Catch(func(err error) Result[int] {
			return Err[int](inner)
		})

		_, err := Run(p)
		var ce *ChainedError
		require.ErrorAs(t, err, &ce)
		require.ErrorIs(t, err, inner)
		require.ErrorIs(t, err, cause)
	})

	t.Run("recovered chain continues", func(t *testing.T) {
		l := newTestLoop()

		p := Rejected[int](l, testError("boom")).
			Catch(func(err error) Result[int] { return Val(1) }).
			Then(func(v int) Result[int] { return Val(v + 1) })

		v, err := Run(p)
		require.NoError(t, err)
		require.Equal(t, 2, v)
	})
}

func TestLastly(t *testing.T) {
	t.Run("runs on success and keeps the value", func(t *testing.T) {
		l := newTestLoop()

		ran := false
		p := Resolved(l, 3).Lastly(func() { ran = true })

		v, err := Run(p)
		require.NoError(t, err)
		require.Equal(t, 3, v)
		require.True(t, ran)
	})

	t.Run("runs on failure and keeps the error", func(t *testing.T) {
		l := newTestLoop()
		want := testError("boom")

		ran := false
		p := Rejected[int](l, want).Lastly(func() { ran = true })

		_, err := Run(p)
		require.ErrorIs(t, err, want)
		require.True(t, ran)
	})

	t.Run("skipped on upstream cancellation", func(t *testing.T) {
		l := newTestLoop()

		ran := false
		root := New[int](l)
		p := root.Lastly(func() { ran = true })
		root.Cancel()

		_, err := Run(p)
		require.ErrorIs(t, err, Canceled)
		require.False(t, ran)
	})

	t.Run("skipped on direct cancellation", func(t *testing.T) {
		l := newTestLoop()

		ran := false
		root := New[int](l)
		p := root.Lastly(func() { ran = true })
		p.Cancel()
		require.NoError(t, root.Resolve(1))

		_, err := Run(p)
		require.ErrorIs(t, err, Canceled)
		require.False(t, ran)

		v, err := Run(root)
		require.NoError(t, err)
		require.Equal(t, 1, v, "canceling the link never touches the parent")
	})

	t.Run("panic replaces the outcome", func(t *testing.T) {
		l := newTestLoop()

		p := Resolved(l, 3).Lastly(func() { panic("cleanup blew up") })

		_, err := Run(p)
		var pe PanicError
		require.ErrorAs(t, err, &pe)
		require.Equal(t, "cleanup blew up", pe.V)
	})
}

func TestNilCallbackPanics(t *testing.T) {
	l := newTestLoop()
	p := New[int](l)

	require.PanicsWithValue(t, nilCallbackPanicMsg, func() { p.Then(nil) })
	require.PanicsWithValue(t, nilCallbackPanicMsg, func() { p.Catch(nil) })
	require.PanicsWithValue(t, nilCallbackPanicMsg, func() { p.Lastly(nil) })
}

func TestCallbackPanicRejects(t *testing.T) {
	l := newTestLoop()

	p := Resolved(l, 1).Then(func(v int) Result[int] {
		panic("then blew up")
	})

	_, err := Run(p)
	var pe PanicError
	require.ErrorAs(t, err, &pe)
	require.Equal(t, "then blew up", pe.V)
}

func TestNilResultFulfillsWithZero(t *testing.T) {
	l := newTestLoop()

	p := Resolved(l, 1).Then(func(v int) Result[int] { return nil })

	v, err := Run(p)
	require.NoError(t, err)
	require.Equal(t, 0, v)
}

func TestFanOutBranchesAreIndependent(t *testing.T) {
	l := newTestLoop()
	root := New[int](l)

	a := root.Then(func(v int) Result[int] { return Val(v + 1) })
	b := root.Then(func(v int) Result[int] { return Val(v + 2) })
	c := root.Then(func(v int) Result[int] { return Val(v + 3) })
	b.Cancel()

	require.NoError(t, root.Resolve(10))
	l.RunUntilIdle()

	require.Equal(t, Fulfilled, root.State())
	require.Equal(t, 11, a.Val())
	require.True(t, b.Cancelled(), "only the canceled branch is affected")
	require.Equal(t, 13, c.Val())
}

func TestMidChainCancel(t *testing.T) {
	l := newTestLoop()

	var ran []string
	root := New[int](l)
	t1 := root.Then(func(v int) Result[int] { ran = append(ran, "t1"); return Val(v) })
	t2 := t1.Then(func(v int) Result[int] { ran = append(ran, "t2"); return Val(v) })
	t3 := t2.Then(func(v int) Result[int] { ran = append(ran, "t3"); return Val(v) })

	t1.Cancel()
	require.NoError(t, root.Resolve(99))
	l.RunUntilIdle()

	require.Equal(t, Fulfilled, root.State(), "cancellation never flows upstream")
	require.Equal(t, 99, root.Val())
	require.True(t, t1.Cancelled())
	require.True(t, t2.Cancelled())
	require.True(t, t3.Cancelled())
	require.Empty(t, ran, "no callback downstream of the cancellation runs")
}

func TestCancelChainFromRoot(t *testing.T) {
	l := newTestLoop()

	root := New[int](l)
	tail := root.
		Then(func(v int) Result[int] { return Val(v + 1) }).
		Then(func(v int) Result[int] { return Val(v + 1) })

	require.True(t, root.CancelChain())
	l.RunUntilIdle()

	require.True(t, root.Cancelled())
	require.True(t, tail.Cancelled())
}

func TestNestedPromise(t *testing.T) {
	t.Run("value flows through", func(t *testing.T) {
		l := newTestLoop()

		p := Resolved(l, 2).Then(func(v int) Result[int] {
			return Go(l, func(tc *loop.TaskCtx) (int, error) {
				return v * 10, nil
			})
		})

		v, err := Run(p)
		require.NoError(t, err)
		require.Equal(t, 20, v)
	})

	t.Run("rejection flows through", func(t *testing.T) {
		l := newTestLoop()
		want := testError("inner boom")

		p := Resolved(l, 2).Then(func(v int) Result[int] {
			return Rejected[int](l, want)
		})

		_, err := Run(p)
		require.ErrorIs(t, err, want)
	})
}

// A nested result that lands an instant after a logically earlier chain
// cancellation is kept by its own link but discarded by every descendant.
func TestNestedResultRacesChainCancel(t *testing.T) {
	l := newTestLoop()

	root := New[int](l)
	inner := New[int](l)

	t1 := root.Then(func(v int) Result[int] { return inner })
	g2ran := false
	t2 := t1.Then(func(v int) Result[int] { g2ran = true; return Val(v) })

	require.NoError(t, root.Resolve(1))
	// while t1 is suspended on inner: first the result arrives, then the
	// chain cancellation, both before t1 gets to run again
	l.CallSoon(func() { _ = inner.Resolve(5) })
	l.CallSoon(func() { root.CancelChain() })

	l.RunUntilIdle()

	require.Equal(t, Fulfilled, t1.State(), "the committed value is kept")
	require.Equal(t, 5, t1.Val())
	require.True(t, t2.Cancelled(), "descendants observe the cancellation")
	require.False(t, g2ran)
}

func TestChainCancelDuringNestedAwait(t *testing.T) {
	l := newTestLoop()

	root := New[int](l)
	inner := New[int](l) // never settles on its own

	t1 := root.Then(func(v int) Result[int] { return inner })

	require.NoError(t, root.Resolve(1))
	l.CallSoon(func() { root.CancelChain() })

	l.RunUntilIdle()

	require.True(t, t1.Cancelled())
	require.True(t, inner.Cancelled(), "the discarded nested computation is canceled")
	require.Equal(t, Fulfilled, root.State())
}

func TestCancelAfterCallbackCommitted(t *testing.T) {
	l := newTestLoop()

	p := Resolved(l, 4).Then(func(v int) Result[int] { return Val(v * 2) })

	v, err := Run(p)
	require.NoError(t, err)
	require.Equal(t, 8, v)

	require.False(t, p.Cancel(), "a committed value is never unwound")
	require.Equal(t, Fulfilled, p.State())
}

func TestAttachAfterSettlement(t *testing.T) {
	l := newTestLoop()

	p := Resolved(l, 1).Then(func(v int) Result[int] { return Val(v + 1) })
	v, err := Run(p)
	require.NoError(t, err)
	require.Equal(t, 2, v)

	q := p.Then(func(v int) Result[int] { return Val(v * 10) })
	v, err = Run(q)
	require.NoError(t, err)
	require.Equal(t, 20, v)
}

// Chain cancellation after a link settled still reaches children attached
// later, through the hook the link left on its parent's gate.
func TestChainCancelReachesLateChildren(t *testing.T) {
	l := newTestLoop()

	root := New[int](l)
	t1 := root.Then(func(v int) Result[int] { return Val(v + 1) })
	require.NoError(t, root.Resolve(1))

	v, err := Run(t1)
	require.NoError(t, err)
	require.Equal(t, 2, v)

	root.CancelChain()
	l.RunUntilIdle()
	require.Equal(t, Fulfilled, t1.State(), "the settled link keeps its value")

	// a child attached now suspends on a nested result and observes the
	// cancellation there
	inner := New[int](l)
	t2 := t1.Then(func(v int) Result[int] { return inner })
	l.RunUntilIdle()

	require.True(t, t2.Cancelled())
	require.True(t, inner.Cancelled())
}

func TestCancelledNodeSkipsLaterCallbacks(t *testing.T) {
	l := newTestLoop()

	root := New[int](l)
	root.Cancel()

	var ran []string
	a := root.Then(func(v int) Result[int] { ran = append(ran, "then"); return Val(v) })
	b := root.Catch(func(err error) Result[int] { ran = append(ran, "catch"); return Val(0) })
	c := root.Lastly(func() { ran = append(ran, "lastly") })
	l.RunUntilIdle()

	require.Empty(t, ran)
	require.True(t, a.Cancelled())
	require.True(t, b.Cancelled())
	require.True(t, c.Cancelled())
}

func TestLongChainPropagation(t *testing.T) {
	l := newTestLoop()

	p := New[int](l)
	tail := p.Then(func(v int) Result[int] { return Val(v) })
	for i := 0; i < 50; i++ {
		tail = tail.Then(func(v int) Result[int] { return Val(v + 1) })
	}

	require.NoError(t, p.Resolve(0))
	v, err := Run(tail)
	require.NoError(t, err)
	require.Equal(t, 50, v)
}
