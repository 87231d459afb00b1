// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package param

import "fmt"

// Limit is a bound on design parameters.
// It holds either one value shared by every component or one value per component.
// The zero Limit is unset and never clamps.
type Limit struct {
	set     bool
	uniform float64
	each    []float64
}

// Scalar returns a limit applying v to every component.
func Scalar(v float64) Limit {
	return Limit{set: true, uniform: v}
}

// PerComponent returns a limit applying v[i] to the i-th component.
// The length of v must equal the length of the vector it is applied to.
func PerComponent(v ...float64) Limit {
	each := make([]float64, len(v))
	copy(each, v)
	return Limit{set: true, each: each}
}

// Unset returns the limit that never clamps.
func Unset() Limit {
	return Limit{}
}

// IsSet reports whether the limit constrains anything.
func (l Limit) IsSet() bool {
	return l.set
}

// IsScalar reports whether the same value applies to every component.
func (l Limit) IsScalar() bool {
	return l.set && l.each == nil
}

// Uniform returns the shared value of a scalar limit.
func (l Limit) Uniform() (float64, bool) {
	return l.uniform, l.IsScalar()
}

// expand returns the limit as n components, fill is used when unset.
func (l Limit) expand(n int, fill float64) []float64 {
	out := make([]float64, n)
	switch {
	case !l.set:
		for i := range out {
			out[i] = fill
		}
	case l.each == nil:
		for i := range out {
			out[i] = l.uniform
		}
	default:
		if len(l.each) != n {
			panic("limit dimension not match vector")
		}
		copy(out, l.each)
	}
	return out
}

func (l Limit) String() string {
	switch {
	case !l.set:
		return "unset"
	case l.each == nil:
		return fmt.Sprint(l.uniform)
	default:
		return fmt.Sprint(l.each)
	}
}
