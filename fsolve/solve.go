// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package fsolve finds a root of a scalar function of one variable.
//
// The solver takes damped Newton (or secant) steps: a step is halved until |f| decreases.
// Once two evaluations of opposite sign are seen the bracket between them is kept,
// and any step leaving the bracket is replaced by bisection.
//
// Solve never fails. When no root is reached it returns the best estimate found,
// with Result.OK unset and Summary.Status telling why.
package fsolve

import (
	"errors"
	"fmt"
	"math"

	"github.com/curioloop/toptim/numdiff"
)

// Func is the scalar function whose root is searched.
type Func func(x float64) float64

type Method int

const (
	// Newton use the finite difference derivative at every iterate.
	Newton Method = iota
	// Secant use the slope through the last two iterates.
	Secant
)

type Status int

const (
	// StatusConverged the step or the function value fell within tolerance.
	StatusConverged Status = iota
	// StatusMaxEval the number of function evaluations exceeds limit.
	StatusMaxEval
	// StatusStalled no damped step could reduce |f|.
	StatusStalled
	// StatusFlat the slope vanished before a bracket was found.
	StatusFlat
	// StatusNotFinite the function is not finite at the initial guess.
	StatusNotFinite
)

func (s Status) String() string {
	switch s {
	case StatusConverged:
		return "converged"
	case StatusMaxEval:
		return "max evaluations reached"
	case StatusStalled:
		return "stalled"
	case StatusFlat:
		return "flat slope"
	case StatusNotFinite:
		return "not finite"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Termination specifies the stopping criteria for the root search.
type Termination struct {
	// The search stop when a full step satisfied:
	//   |xₖ₊₁ - xₖ| ≤ 𝚡𝚝𝚘𝚕 × (|xₖ₊₁| + 𝚡𝚝𝚘𝚕)
	// Zero selects 1.49012e-8.
	XTol float64
	// The search stop when |f(xₖ)| ≤ 𝚏𝚝𝚘𝚕. Zero only accepts an exact root.
	FTol float64
	// The search stop when the number of function evaluation exceeds limit.
	// Zero selects 400.
	MaxEvaluations int
	// The maximum number of step halvings in one iteration. Zero selects 64.
	MaxBacktracks int
}

const (
	defaultXTol       = 1.49012e-8
	defaultMaxEval    = 400
	defaultBacktracks = 64
)

// Problem specifies the root search.
type Problem struct {
	Func   Func         // Function whose root is searched
	Method Method       // Step method
	Stop   Termination  // Stop condition
	Diff   numdiff.Spec // Derivative scheme for Newton steps
}

// Check validates the termination criteria and fills the defaults.
func (t *Termination) Check() (err error) {
	switch {
	case t.XTol < 0 || math.IsNaN(t.XTol):
		err = errors.New("x tolerance must not less than 0")
	case t.FTol < 0 || math.IsNaN(t.FTol):
		err = errors.New("function tolerance must not less than 0")
	case t.MaxEvaluations < 0:
		err = errors.New("max evaluation must not less than 0")
	case t.MaxBacktracks < 0:
		err = errors.New("max backtracks must not less than 0")
	}
	if err != nil {
		return
	}
	if t.XTol == 0 {
		t.XTol = defaultXTol
	}
	if t.MaxEvaluations == 0 {
		t.MaxEvaluations = defaultMaxEval
	}
	if t.MaxBacktracks == 0 {
		t.MaxBacktracks = defaultBacktracks
	}
	return
}

// New creates a solver for the given problem.
func (p *Problem) New() (solver *Solver, err error) {

	stop := p.Stop

	switch {
	case p.Func == nil:
		err = errors.New("function is required")
	case p.Method != Newton && p.Method != Secant:
		err = errors.New("unknown method")
	}
	if err == nil {
		err = stop.Check()
	}
	if err == nil {
		err = p.Diff.Check()
	}
	if err != nil {
		return
	}

	solver = &Solver{
		fun:    p.Func,
		method: p.Method,
		stop:   stop,
		diff:   p.Diff,
	}
	return
}

// Solver searches a root of one function. It holds no state between calls.
type Solver struct {
	fun    Func
	method Method
	stop   Termination
	diff   numdiff.Spec
}

// Result contains the final result of the root search.
type Result struct {
	OK      bool    // Whether the search was converged.
	X, F    float64 // Final estimate and function value.
	Summary         // Search summary.
}

// Summary contains a summary of the root search.
type Summary struct {
	Status  Status // Final status of the search.
	NumIter int    // Number of iterations performed.
	NumEval int    // Number of function evaluations performed.
}

type point struct {
	x, f float64
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// Solve searches a root starting from x0.
func (s *Solver) Solve(x0 float64) *Result {

	stop := s.stop
	evals := 0
	f := func(x float64) float64 {
		evals++
		return s.fun(x)
	}

	cur := point{x0, f(x0)}
	best := cur
	iter := 0

	done := func(status Status) *Result {
		p := best
		if status == StatusConverged {
			p = cur
		}
		return &Result{
			OK: status == StatusConverged,
			X:  p.x, F: p.f,
			Summary: Summary{
				Status:  status,
				NumIter: iter,
				NumEval: evals,
			},
		}
	}

	if !finite(cur.f) {
		return done(StatusNotFinite)
	}
	if math.Abs(cur.f) <= stop.FTol {
		return done(StatusConverged)
	}

	var lo, hi point // lo.f and hi.f have opposite sign when bracketed
	bracketed := false
	narrow := func(p point) {
		if !finite(p.f) {
			return
		}
		switch {
		case bracketed && math.Signbit(p.f) == math.Signbit(lo.f):
			lo = p
		case bracketed:
			hi = p
		case math.Signbit(p.f) != math.Signbit(cur.f):
			lo, hi, bracketed = cur, p, true
		}
	}

	prev := point{math.NaN(), math.NaN()}

	for {
		iter++
		if evals >= stop.MaxEvaluations {
			return done(StatusMaxEval)
		}

		slope := s.slope(f, cur, prev)
		step := -cur.f / slope
		if !finite(step) && !bracketed {
			return done(StatusFlat)
		}

		var next point
		full, accepted := true, false
		for k := 0; k <= stop.MaxBacktracks; k++ {
			x := cur.x + step
			bisect := false
			if bracketed && !(x > math.Min(lo.x, hi.x) && x < math.Max(lo.x, hi.x)) || !finite(step) {
				x, bisect = 0.5*(lo.x+hi.x), true
			}

			next = point{x, f(x)}
			narrow(next)

			if bisect || finite(next.f) && math.Abs(next.f) < math.Abs(cur.f) {
				full = full && !bisect
				accepted = true
				break
			}
			if evals >= stop.MaxEvaluations {
				return done(StatusMaxEval)
			}
			step *= 0.5
			full = false
		}
		if !accepted {
			return done(StatusStalled)
		}

		prev, cur = cur, next
		if finite(cur.f) && math.Abs(cur.f) < math.Abs(best.f) {
			best = cur
		}

		switch {
		case math.Abs(cur.f) <= stop.FTol:
			return done(StatusConverged)
		case full && math.Abs(cur.x-prev.x) <= stop.XTol*(math.Abs(cur.x)+stop.XTol):
			return done(StatusConverged)
		case bracketed && math.Abs(hi.x-lo.x) <= stop.XTol*(math.Abs(cur.x)+stop.XTol):
			if math.Abs(best.f) < math.Abs(cur.f) {
				cur = best
			}
			return done(StatusConverged)
		}
	}
}

func (s *Solver) slope(f Func, cur, prev point) float64 {
	if s.method == Secant && finite(prev.f) && prev.x != cur.x {
		return (cur.f - prev.f) / (cur.x - prev.x)
	}
	d, err := s.diff.Derivative(numdiff.Func(f), cur.x, cur.f)
	if err != nil {
		panic(err) // checked by New
	}
	return d
}
