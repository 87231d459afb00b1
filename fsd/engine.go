// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package fsd implements the fully stressed design update.
//
// Every parameter is scaled by the magnitude of its field value,
// then the whole vector is divided by a Lagrange multiplier λ chosen so that
// the volume constraint is satisfied exactly:
//
//	xₖ₊₁ = clip( xₖ ⊙ |𝒇(xₖ)| / λ , l, u )   with   V( softclip(xₖ ⊙ |𝒇(xₖ)| / λ) ) = 0
//
// λ is searched by fsolve starting from 1. The candidate is softly clipped during the search,
// so the exceeded volume keeps a non-zero slope in λ when components sit on the bounds.
package fsd

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"

	"github.com/curioloop/toptim/fsolve"
	"github.com/curioloop/toptim/param"
	"gonum.org/v1/gonum/floats"
)

const (
	// BoundsSoftening is the soft clipping ratio used while searching λ.
	BoundsSoftening = 1e-6

	smallNumber = 1e-6
)

// ErrRootNotConverged is returned under RejectEstimate when λ could not be found.
var ErrRootNotConverged = errors.New("fsd: lagrange multiplier search did not converge")

// Bounds is the admissible range of every design parameter.
type Bounds struct {
	Lower, Upper param.Limit
}

// DefaultBounds returns [1e-6, 1 - 1e-6] for every parameter.
func DefaultBounds() Bounds {
	return Bounds{
		Lower: param.Scalar(smallNumber),
		Upper: param.Scalar(1 - smallNumber),
	}
}

// RootPolicy decides what an update does when the λ search does not converge.
type RootPolicy int

const (
	// AcceptEstimate use the best λ estimate and only log a warning.
	AcceptEstimate RootPolicy = iota
	// RejectEstimate fail the update with ErrRootNotConverged.
	RejectEstimate
)

// ExceededVolume reports the constraint violation of a parameter vector:
// positive when too much material is used, zero when exactly satisfied.
type ExceededVolume func(values []float64) float64

// Config specifies a fully stressed design engine.
type Config struct {
	ExceededVolume ExceededVolume     // Constraint evaluator (required)
	MaxCorrection  param.Limit        // Optional per-iteration change limit
	Bounds         *Bounds            // Optional bounds, DefaultBounds when nil
	Softening      float64            // Soft clipping ratio, BoundsSoftening when zero
	Root           fsolve.Termination // λ search stop condition
	Method         fsolve.Method      // λ search step method
	OnRootFailure  RootPolicy         // Non-convergence policy of the λ search
	Logger         *slog.Logger       // Optional logger
}

// New creates the engine described by c.
func (c *Config) New() (engine *Engine, err error) {

	bounds := DefaultBounds()
	if c.Bounds != nil {
		bounds = *c.Bounds
	}

	softening := c.Softening
	if softening == 0 {
		softening = BoundsSoftening
	}

	stop := c.Root

	switch {
	case c.ExceededVolume == nil:
		err = errors.New("exceeded volume function is required")
	case softening < 0 || math.IsNaN(softening):
		err = errors.New("softening ratio must not less than 0")
	case c.Method != fsolve.Newton && c.Method != fsolve.Secant:
		err = errors.New("unknown root search method")
	case c.OnRootFailure != AcceptEstimate && c.OnRootFailure != RejectEstimate:
		err = errors.New("unknown root failure policy")
	}
	if lo, ok := bounds.Lower.Uniform(); ok && err == nil {
		if hi, ok := bounds.Upper.Uniform(); ok && lo > hi {
			err = errors.New("lower bound must not greater than upper bound")
		}
	}
	if err == nil {
		err = stop.Check()
	}
	if err != nil {
		return
	}

	logger := c.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	engine = &Engine{
		exceeded:      c.ExceededVolume,
		maxCorrection: c.MaxCorrection,
		bounds:        bounds,
		softening:     softening,
		stop:          stop,
		method:        c.Method,
		policy:        c.OnRootFailure,
		logger:        logger,
	}
	return
}

// Engine updates design parameters with the fully stressed design heuristic.
// It holds no state between updates.
type Engine struct {
	exceeded      ExceededVolume
	maxCorrection param.Limit
	bounds        Bounds
	softening     float64
	stop          fsolve.Termination
	method        fsolve.Method
	policy        RootPolicy
	logger        *slog.Logger
}

// Step is the outcome of one update.
type Step struct {
	Parameters param.Vector   // Updated parameters
	Lambda     float64        // Lagrange multiplier applied
	RootOK     bool           // Whether the λ search converged
	Root       fsolve.Summary // λ search summary
}

// Bounds returns the hard bounds applied to updated parameters.
func (e *Engine) Bounds() Bounds {
	return e.bounds
}

// Update returns the parameters following current for the given field.
func (e *Engine) Update(current param.Vector, field []float64) (param.Vector, error) {
	step, err := e.UpdateStep(current, field)
	return step.Parameters, err
}

// UpdateStep is Update reporting the multiplier and the root search summary.
func (e *Engine) UpdateStep(current param.Vector, field []float64) (Step, error) {

	if len(field) != current.Len() {
		panic("field dimension not match parameters")
	}

	weighted := current.Values()
	for i, f := range field {
		weighted[i] *= math.Abs(f)
	}
	scaled := current.Change(weighted, e.maxCorrection)

	root, err := e.estimateLambda(scaled)
	if err != nil {
		return Step{}, err
	}

	step := Step{
		Lambda: root.X,
		RootOK: root.OK,
		Root:   root.Summary,
	}

	if !root.OK {
		if e.policy == RejectEstimate {
			return step, fmt.Errorf("%w: %s after %d evaluations (λ=%g, exceeded=%g)",
				ErrRootNotConverged, root.Status, root.NumEval, root.X, root.F)
		}
		e.logger.Warn("Lagrange multiplier search not converged, using best estimate",
			"status", root.Status.String(),
			"lambda", root.X,
			"exceeded_volume", root.F,
			"evaluations", root.NumEval,
		)
	}

	step.Parameters = current.
		Change(divide(scaled, root.X), param.Unset()).
		Clip(e.bounds.Lower, e.bounds.Upper)

	e.logger.Debug("Design updated",
		"lambda", root.X,
		"root_iterations", root.NumIter,
		"root_evaluations", root.NumEval,
	)
	return step, nil
}

func (e *Engine) estimateLambda(scaled param.Vector) (*fsolve.Result, error) {
	exceeded := func(lambda float64) float64 {
		return e.exceeded(
			scaled.
				Change(divide(scaled, lambda), param.Unset()).
				ClipSoftly(e.bounds.Lower, e.bounds.Upper, e.softening).
				Values(),
		)
	}

	p := fsolve.Problem{
		Func:   exceeded,
		Method: e.method,
		Stop:   e.stop,
	}
	solver, err := p.New()
	if err != nil {
		return nil, fmt.Errorf("fsd: %w", err)
	}
	return solver.Solve(1), nil
}

func divide(v param.Vector, lambda float64) []float64 {
	out := v.Values()
	floats.Scale(1/lambda, out)
	return out
}
