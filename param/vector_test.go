// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package param

import (
	"math"
	"testing"
)

func closeTo(a, b []float64, tol float64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if math.Abs(a[i]-b[i]) > tol*math.Max(1, math.Abs(b[i])) {
			return false
		}
	}
	return true
}

func mustPanic(t *testing.T, name string, f func()) {
	t.Helper()
	defer func() {
		if recover() == nil {
			t.Fatalf("%s: expected panic", name)
		}
	}()
	f()
}

func TestNewCopiesInput(t *testing.T) {
	data := []float64{1, 2, 3}
	v := New(data)
	data[0] = 9

	out := v.Values()
	out[1] = 9

	switch {
	case v.Len() != 3:
		t.Fatal("unexpected length")
	case v.At(0) != 1:
		t.Fatal("vector aliases constructor input")
	case v.At(1) != 2:
		t.Fatal("vector aliases Values output")
	}
}

func TestChange(t *testing.T) {
	v := New([]float64{1.0})
	r := v.Change([]float64{2.2}, Unset())

	switch {
	case !closeTo(r.Values(), []float64{2.2}, 0):
		t.Fatal("unexpected change result")
	case v.At(0) != 1.0:
		t.Fatal("receiver mutated")
	}
}

func TestChangeMaxCorrection(t *testing.T) {
	const mc = 0.1
	old := []float64{1, 2, 0, 0.1, 0.2}
	target := []float64{-1, 0.5, 2, 0.1, 0.25}
	expected := []float64{1 - mc, 2 - mc, 0 + mc, 0.1, 0.25}

	for name, limit := range map[string]Limit{
		"scalar":        Scalar(mc),
		"per-component": PerComponent(mc, mc, mc, mc, mc),
	} {
		v := New(old)
		r := v.Change(target, limit)
		if !closeTo(r.Values(), expected, 1e-12) {
			t.Fatalf("%s: got %v, want %v", name, r.Values(), expected)
		}
		if !closeTo(v.Values(), old, 0) {
			t.Fatalf("%s: receiver mutated", name)
		}
	}

	// every component moves at most its own correction
	mcs := []float64{0.5, 0.01, 1, 0, 0.2}
	r := New(old).Change(target, PerComponent(mcs...))
	for i, x := range r.Values() {
		if math.Abs(x-old[i]) > mcs[i]+1e-15 {
			t.Fatalf("component %d moved %g beyond %g", i, math.Abs(x-old[i]), mcs[i])
		}
	}
}

func TestClip(t *testing.T) {
	v := New([]float64{0, -1, 2, 3})
	expected := []float64{0.5, 0.5, 2, 2.5}

	scalar := v.Clip(Scalar(0.5), Scalar(2.5))
	each := v.Clip(PerComponent(0.5, 0.5, 0.5, 0.5), PerComponent(2.5, 2.5, 2.5, 2.5))

	switch {
	case !closeTo(scalar.Values(), expected, 0):
		t.Fatalf("scalar clip: %v", scalar.Values())
	case !closeTo(each.Values(), expected, 0):
		t.Fatalf("per-component clip: %v", each.Values())
	case !closeTo(v.Values(), []float64{0, -1, 2, 3}, 0):
		t.Fatal("receiver mutated")
	}

	lowerOnly := v.Clip(Scalar(0), Unset())
	upperOnly := v.Clip(Unset(), Scalar(1))
	switch {
	case !closeTo(lowerOnly.Values(), []float64{0, 0, 2, 3}, 0):
		t.Fatalf("lower only: %v", lowerOnly.Values())
	case !closeTo(upperOnly.Values(), []float64{0, -1, 1, 1}, 0):
		t.Fatalf("upper only: %v", upperOnly.Values())
	}
}

func TestClipIdempotent(t *testing.T) {
	lower, upper := PerComponent(0, 0.1, -1), PerComponent(1, 0.2, 1)
	v := New([]float64{0.3, 0.15, -1})
	if r := v.Clip(lower, upper); !r.Equal(v) {
		t.Fatalf("clip changed in-bound vector: %v", r)
	}
	once := New([]float64{-3, 4, 0.5}).Clip(lower, upper)
	if twice := once.Clip(lower, upper); !twice.Equal(once) {
		t.Fatal("clip is not idempotent")
	}
}

func TestClipSoftly(t *testing.T) {
	const s = 1e-6
	v := New([]float64{0, -1, 2, 3})
	r := v.ClipSoftly(Scalar(0.5), Scalar(2.5), s)
	expected := []float64{0.5 - s*0.5, 0.5 - s*1.5, 2, 2.5 + s*0.5}
	if !closeTo(r.Values(), expected, 1e-15) {
		t.Fatalf("got %v, want %v", r.Values(), expected)
	}
	if r.At(0) >= 0.5 || r.At(3) <= 2.5 {
		t.Fatal("soft clip must overshoot the bound")
	}

	const s2 = 1e-2
	r = New([]float64{-1, -1}).ClipSoftly(Scalar(0), Scalar(2), s2)
	if !closeTo(r.Values(), []float64{-s2, -s2}, 1e-15) {
		t.Fatalf("equal violations: %v", r.Values())
	}

	inside := New([]float64{1, 2})
	if r = inside.ClipSoftly(Scalar(0.5), Scalar(2.5), 0.1); !r.Equal(inside) {
		t.Fatalf("in-bound values changed: %v", r.Values())
	}
}

func TestEqual(t *testing.T) {
	a := New([]float64{1, 2})
	b := New([]float64{3, 4})
	c := New([]float64{1, 2})

	switch {
	case !a.Equal(c):
		t.Fatal("equal vectors reported different")
	case a.Equal(b):
		t.Fatal("different vectors reported equal")
	}

	mustPanic(t, "Equal", func() { a.Equal(New([]float64{1})) })
	mustPanic(t, "Change", func() { a.Change([]float64{1, 2, 3}, Unset()) })
	mustPanic(t, "Clip", func() { a.Clip(PerComponent(0), Unset()) })
}

func TestDistance(t *testing.T) {
	a := New([]float64{0, 0})
	b := New([]float64{3, 4})
	if d := a.Distance(b); d != 5 {
		t.Fatalf("unexpected distance %g", d)
	}
}

func TestLimit(t *testing.T) {
	switch {
	case Unset().IsSet():
		t.Fatal("unset limit reports set")
	case !Scalar(0).IsScalar():
		t.Fatal("scalar limit not scalar")
	case PerComponent().IsScalar():
		t.Fatal("empty per-component limit reported scalar")
	case Unset().String() != "unset":
		t.Fatal("unexpected unset string")
	}
}
