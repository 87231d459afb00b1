// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package optimize runs the fixed-point iteration of a topology optimization.
//
// Every iteration evaluates the field of the current parameters, asks the engine
// for updated parameters and stops once the Euclidean norm of the change
// falls below the accuracy:
//
//	‖xₖ₊₁ - xₖ‖₂ < 𝚊𝚌𝚌𝚞𝚛𝚊𝚌𝚢
//
// Without MaxIterations the loop is unbounded, as the fixed-point iteration itself.
package optimize

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"

	"github.com/curioloop/toptim/param"
)

// DefaultAccuracy is the convergence tolerance when none is configured.
const DefaultAccuracy = 1e-5

var (
	// ErrMaxIterations the loop ran MaxIterations without converging.
	ErrMaxIterations = errors.New("optimize: max iterations reached")
	// ErrStopped an OnIteration callback asked the loop to stop.
	ErrStopped = errors.New("optimize: stopped by callback")
)

// Engine produces the next parameters from the current ones and their field.
type Engine interface {
	Update(current param.Vector, field []float64) (param.Vector, error)
}

// FieldFunc evaluates the per-parameter field (e.g. strain energy density).
// It must return one value per parameter and be deterministic.
type FieldFunc func(values []float64) []float64

// Iteration describes one completed iteration.
type Iteration struct {
	Index      int          // 1-based iteration number
	Parameters param.Vector // Parameters produced by the iteration
	StepNorm   float64      // ‖xₖ₊₁ - xₖ‖₂
	Converged  bool         // Whether the step satisfied the accuracy
}

// Problem specifies a fixed-point optimization.
type Problem struct {
	Initial       param.Vector          // Starting parameters
	Engine        Engine                // Parameter update rule
	Field         FieldFunc             // Field evaluator
	Accuracy      float64               // Convergence tolerance, DefaultAccuracy when zero
	MaxIterations int                   // Iteration cap, zero means unbounded
	OnIteration   func(Iteration) error // Optional per-iteration callback
	Logger        *slog.Logger          // Optional logger
}

// New creates an optimizer for the given problem.
func (p *Problem) New() (optimizer *Optimizer, err error) {

	accuracy := p.Accuracy
	if accuracy == 0 {
		accuracy = DefaultAccuracy
	}

	switch {
	case p.Initial.Len() == 0:
		err = errors.New("initial parameters are required")
	case p.Engine == nil:
		err = errors.New("engine is required")
	case p.Field == nil:
		err = errors.New("field function is required")
	case accuracy < 0 || math.IsNaN(accuracy):
		err = errors.New("accuracy must not less than 0")
	case p.MaxIterations < 0:
		err = errors.New("max iteration must not less than 0")
	}
	if err != nil {
		return
	}

	logger := p.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	optimizer = &Optimizer{
		engine:   p.Engine,
		field:    p.Field,
		accuracy: accuracy,
		maxIter:  p.MaxIterations,
		onIter:   p.OnIteration,
		logger:   logger,
		current:  p.Initial,
	}
	return
}

// Optimizer iterates a problem until the parameters stop moving.
// It is not safe for concurrent use.
type Optimizer struct {
	engine   Engine
	field    FieldFunc
	accuracy float64
	maxIter  int
	onIter   func(Iteration) error
	logger   *slog.Logger

	current param.Vector
	iter    int
	history []float64
}

// Result contains the final result of the optimization.
type Result struct {
	Parameters param.Vector // Final parameters
	Converged  bool         // Whether the accuracy was reached
	Iterations int          // Number of iterations performed
	History    []float64    // Step norm of every iteration
}

// Parameters returns a copy of the current parameters.
func (o *Optimizer) Parameters() []float64 {
	return o.current.Values()
}

// Solve iterates until convergence.
//
// The context is checked once per iteration. On cancellation, on ErrMaxIterations
// and on ErrStopped the result holds the last parameters reached.
func (o *Optimizer) Solve(ctx context.Context) (*Result, error) {

	for done := 0; o.maxIter == 0 || done < o.maxIter; done++ {
		if err := ctx.Err(); err != nil {
			return o.result(false), fmt.Errorf("optimize: %w", err)
		}

		field := o.field(o.current.Values())
		if len(field) != o.current.Len() {
			panic("field dimension not match parameters")
		}

		next, err := o.engine.Update(o.current, field)
		if err != nil {
			return o.result(false), fmt.Errorf("optimize: iteration %d: %w", o.iter+1, err)
		}

		norm := next.Distance(o.current)
		converged := norm < o.accuracy

		o.iter++
		o.history = append(o.history, norm)
		o.current = next

		o.logger.Debug("Iteration completed",
			"iteration", o.iter,
			"step_norm", norm,
			"converged", converged,
		)

		if o.onIter != nil {
			it := Iteration{Index: o.iter, Parameters: next, StepNorm: norm, Converged: converged}
			if err = o.onIter(it); err != nil {
				if errors.Is(err, ErrStopped) {
					return o.result(converged), ErrStopped
				}
				return o.result(converged), fmt.Errorf("optimize: iteration %d: %w", o.iter, err)
			}
		}

		if converged {
			o.logger.Info("Optimization converged",
				"iterations", o.iter,
				"step_norm", norm,
			)
			return o.result(true), nil
		}
	}

	o.logger.Warn("Optimization not converged",
		"iterations", o.iter,
		"max_iterations", o.maxIter,
	)
	return o.result(false), ErrMaxIterations
}

func (o *Optimizer) result(converged bool) *Result {
	return &Result{
		Parameters: o.current,
		Converged:  converged,
		Iterations: o.iter,
		History:    append([]float64{}, o.history...),
	}
}
