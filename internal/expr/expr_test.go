// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package expr

import (
	"math"
	"testing"
)

func TestField(t *testing.T) {

	cases := []struct {
		src      string
		values   []float64
		expected []float64
	}{
		{"x", []float64{0.35, 0.45}, []float64{0.35, 0.45}},
		{"1 / x", []float64{0.5, 0.25}, []float64{2, 4}},
		{"i == 0 ? 3 : 1", []float64{0.5, 0.5}, []float64{3, 1}},
		{"pow(x, 2) * n", []float64{1, 2, 3}, []float64{3, 12, 27}},
		{"x / sum", []float64{1, 3}, []float64{0.25, 0.75}},
		{"abs(x - mean)", []float64{1, 3}, []float64{1, 1}},
		{"sqrt(x) + exp(0) + log(1)", []float64{4}, []float64{3}},
	}

	for _, c := range cases {
		f, err := NewField(c.src)
		if err != nil {
			t.Fatalf("%s: %v", c.src, err)
		}
		out, err := f.Eval(c.values)
		if err != nil {
			t.Fatalf("%s: %v", c.src, err)
		}
		for i := range out {
			if math.Abs(out[i]-c.expected[i]) > 1e-12 {
				t.Fatalf("%s: got %v, want %v", c.src, out, c.expected)
			}
		}
		if f.String() != c.src {
			t.Fatalf("unexpected source %q", f.String())
		}
	}
}

func TestVolume(t *testing.T) {

	cases := map[string]float64{
		"sum - 1":         0.5,
		"mean - 0.5":      0.25,
		"max - min":       1,
		"n * 0.5 - sum":   -0.5,
		"sum > 1 ? 1 : 0": 1,
	}

	values := []float64{0.25, 1.25}
	for src, expected := range cases {
		v, err := NewVolume(src)
		if err != nil {
			t.Fatalf("%s: %v", src, err)
		}
		got, err := v.Eval(values)
		switch {
		case err != nil:
			t.Fatalf("%s: %v", src, err)
		case math.Abs(got-expected) > 1e-12:
			t.Fatalf("%s: got %g, want %g", src, got, expected)
		}
	}
}

func TestCompileErrors(t *testing.T) {
	for _, src := range []string{"", "   ", "x +", "(x"} {
		if _, err := NewField(src); err == nil {
			t.Fatalf("%q: expected error", src)
		}
		if _, err := NewVolume(src); err == nil {
			t.Fatalf("%q: expected error", src)
		}
	}

	f, err := NewField("y * 2")
	if err != nil {
		t.Fatal(err)
	}
	if _, err = f.Eval([]float64{1}); err == nil {
		t.Fatal("expected error for unknown variable")
	}

	f, err = NewField("pow(x)")
	if err != nil {
		t.Fatal(err)
	}
	if _, err = f.Eval([]float64{1}); err == nil {
		t.Fatal("expected error for wrong arity")
	}
}
