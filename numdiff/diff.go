// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package numdiff

import (
	"errors"
	"math"
)

var sqrtEps = math.Sqrt(math.Nextafter(1, 2) - 1)
var cubeEps = math.Pow(math.Nextafter(1, 2)-1, float64(1)/3)

type Method int

const (
	// Forward use the first order accuracy forward difference.
	Forward Method = iota
	// Central use the second order accuracy central difference.
	Central
)

// Func is a scalar function of one variable.
type Func func(x float64) float64

// Spec represents a finite difference scheme estimating the derivative of a scalar function.
//
// # Reference:
//
//   - https://en.wikipedia.org/wiki/Finite_difference
//   - https://github.com/scipy/scipy/blob/main/scipy/optimize/_numdiff.py
type Spec struct {
	// Finite difference method to use.
	Method Method
	// Relative step size used to compute absolute step size.
	// The default absolute step size is computed as h = eps * sign(x) * max(1, abs(x)),
	// with eps selected by Method.
	// Otherwise, absolute step size is computed as h = RelStep * sign(x) * abs(x).
	RelStep float64
	// Absolute step size to use. The RelStep is used when AbsStep is not provided.
	// For Central method the sign of AbsStep is ignored.
	AbsStep float64
}

// Check validates the scheme.
func (s *Spec) Check() (err error) {
	switch {
	case s.Method != Forward && s.Method != Central:
		err = errors.New("unknown method")
	case s.RelStep < 0 || math.IsNaN(s.RelStep):
		err = errors.New("relative step must not less than 0")
	case math.IsNaN(s.AbsStep) || math.IsInf(s.AbsStep, 0):
		err = errors.New("absolute step must be finite")
	}
	return
}

// Step returns the absolute step used at x.
func (s *Spec) Step(x float64) float64 {
	var eps float64
	switch s.Method {
	case Forward:
		eps = sqrtEps
	case Central:
		eps = cubeEps
	default:
		panic("unknown method")
	}

	h := s.AbsStep
	if h == 0 && s.RelStep == 0 {
		h = math.Copysign(eps, x) * math.Max(1.0, math.Abs(x))
	} else {
		if h == 0 {
			h = math.Copysign(s.RelStep, x) * math.Abs(x)
		}
		if (x+h)-x == 0 {
			h = math.Copysign(eps, x) * math.Max(1.0, math.Abs(x))
		}
	}

	if s.Method == Central {
		h = math.Abs(h)
	}
	return h
}

// Derivative approximates f′(x).
// fx must hold f(x), it is reused by the forward scheme.
func (s *Spec) Derivative(f Func, x, fx float64) (float64, error) {
	if err := s.Check(); err != nil {
		return math.NaN(), err
	}
	if f == nil {
		return math.NaN(), errors.New("function is required")
	}

	h := s.Step(x)
	if s.Method == Central {
		return (f(x+h) - f(x-h)) / (2 * h), nil
	}
	// use the step actually representable at x
	h = (x + h) - x
	return (f(x+h) - fx) / h, nil
}
