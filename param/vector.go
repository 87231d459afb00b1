// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package param holds the design parameter vector of a topology optimization run.
//
// A Vector is a value: Change, Clip and ClipSoftly never modify the receiver,
// they return a new Vector. Vectors of one run share the same length,
// mixing lengths is a programming error and panics.
package param

import (
	"fmt"
	"math"
	"slices"

	"gonum.org/v1/gonum/floats"
)

// DefaultSoftening is the ratio used by ClipSoftly when none is configured.
const DefaultSoftening = 1e-6

// Vector is an immutable sequence of design parameters.
type Vector struct {
	data []float64
}

// New creates a vector holding a copy of values.
func New(values []float64) Vector {
	return Vector{data: slices.Clone(values)}
}

// Len returns the number of design parameters.
func (v Vector) Len() int {
	return len(v.data)
}

// At returns the i-th parameter.
func (v Vector) At(i int) float64 {
	return v.data[i]
}

// Values returns a copy of the parameters.
func (v Vector) Values() []float64 {
	return slices.Clone(v.data)
}

// Equal reports whether both vectors hold the same values.
func (v Vector) Equal(other Vector) bool {
	v.mustMatch(other.Len())
	return floats.Equal(v.data, other.data)
}

// Distance returns the Euclidean norm of v - other.
func (v Vector) Distance(other Vector) float64 {
	v.mustMatch(other.Len())
	return floats.Distance(v.data, other.data, 2)
}

// Change returns a vector holding values.
// When maxCorrection is set, every component is kept within
// [vᵢ - maxCorrectionᵢ, vᵢ + maxCorrectionᵢ] of the receiver.
func (v Vector) Change(values []float64, maxCorrection Limit) Vector {
	v.mustMatch(len(values))
	out := slices.Clone(values)
	if maxCorrection.IsSet() {
		mc := maxCorrection.expand(len(out), 0)
		for i, old := range v.data {
			out[i] = clamp(out[i], old-mc[i], old+mc[i])
		}
	}
	return Vector{data: out}
}

// Clip returns a vector with every component clamped into [lowerᵢ, upperᵢ].
// An unset limit leaves its side open.
func (v Vector) Clip(lower, upper Limit) Vector {
	n := len(v.data)
	lo, hi := lower.expand(n, math.Inf(-1)), upper.expand(n, math.Inf(1))
	out := make([]float64, n)
	for i, x := range v.data {
		out[i] = clamp(x, lo[i], hi[i])
	}
	return Vector{data: out}
}

// ClipSoftly clamps like Clip and then lets components overshoot the bound
// by ratio times their original violation:
//
//	xᵢ < lᵢ : lᵢ + ratio × (xᵢ - lᵢ)
//	xᵢ > uᵢ : uᵢ + ratio × (xᵢ - uᵢ)
//
// The result stays strictly monotone in x, so a function of the clipped
// vector has no flat plateau at the bounds.
func (v Vector) ClipSoftly(lower, upper Limit, ratio float64) Vector {
	n := len(v.data)
	lo, hi := lower.expand(n, math.Inf(-1)), upper.expand(n, math.Inf(1))
	out := make([]float64, n)
	for i, x := range v.data {
		c := clamp(x, lo[i], hi[i])
		if d := x - lo[i]; d < 0 {
			c += ratio * d
		}
		if d := x - hi[i]; d > 0 {
			c += ratio * d
		}
		out[i] = c
	}
	return Vector{data: out}
}

func (v Vector) String() string {
	return fmt.Sprintf("param.Vector: %v", v.data)
}

func (v Vector) mustMatch(n int) {
	if len(v.data) != n {
		panic("parameter dimension not match vector")
	}
}

// clamp keeps the lower bound when the range is empty.
func clamp(x, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, x))
}
