// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package optimize

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/curioloop/toptim/fsd"
	"github.com/curioloop/toptim/fsolve"
	"github.com/curioloop/toptim/param"
)

// FullyStressDesign selects the fully stressed design engine.
const FullyStressDesign = "fully_stress_design"

// ErrUnknownEngine is returned for an engine kind that is not registered.
var ErrUnknownEngine = errors.New("optimize: unknown engine")

// ExceededFunc reports the constraint violation of a parameter vector,
// positive when the volume budget is exceeded.
type ExceededFunc func(values []float64) float64

type settings struct {
	maxCorrection param.Limit
	bounds        *fsd.Bounds
	accuracy      float64
	maxIterations int
	rootPolicy    fsd.RootPolicy
	rootStop      fsolve.Termination
	rootMethod    fsolve.Method
	onIteration   func(Iteration) error
	logger        *slog.Logger
}

// Option customizes Create and CreateEngine.
type Option func(*settings)

// WithMaxCorrection limits the change of every parameter per iteration.
func WithMaxCorrection(limit param.Limit) Option {
	return func(s *settings) { s.maxCorrection = limit }
}

// WithBounds sets the admissible range of the parameters.
func WithBounds(lower, upper param.Limit) Option {
	return func(s *settings) { s.bounds = &fsd.Bounds{Lower: lower, Upper: upper} }
}

// WithAccuracy sets the convergence tolerance of the step norm.
func WithAccuracy(accuracy float64) Option {
	return func(s *settings) { s.accuracy = accuracy }
}

// WithMaxIterations caps the number of iterations, zero means unbounded.
func WithMaxIterations(n int) Option {
	return func(s *settings) { s.maxIterations = n }
}

// WithRootPolicy sets what an update does when the multiplier search fails.
func WithRootPolicy(policy fsd.RootPolicy) Option {
	return func(s *settings) { s.rootPolicy = policy }
}

// WithRootSearch sets the step method and the stop condition of the multiplier search.
func WithRootSearch(method fsolve.Method, stop fsolve.Termination) Option {
	return func(s *settings) {
		s.rootMethod = method
		s.rootStop = stop
	}
}

// WithOnIteration registers a callback run after every iteration.
// Returning ErrStopped ends the run.
func WithOnIteration(fn func(Iteration) error) Option {
	return func(s *settings) { s.onIteration = fn }
}

// WithLogger sets the logger of the engine and the loop.
func WithLogger(logger *slog.Logger) Option {
	return func(s *settings) { s.logger = logger }
}

type engineFactory func(exceeded ExceededFunc, s *settings) (Engine, error)

var engines = map[string]engineFactory{
	FullyStressDesign: newFullyStressDesign,
}

func newFullyStressDesign(exceeded ExceededFunc, s *settings) (Engine, error) {
	c := fsd.Config{
		ExceededVolume: fsd.ExceededVolume(exceeded),
		MaxCorrection:  s.maxCorrection,
		Bounds:         s.bounds,
		Root:           s.rootStop,
		Method:         s.rootMethod,
		OnRootFailure:  s.rootPolicy,
		Logger:         s.logger,
	}
	return c.New()
}

// Engines lists the registered engine kinds.
func Engines() []string {
	kinds := make([]string, 0, len(engines))
	for k := range engines {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}

// CreateEngine builds the engine registered under kind.
func CreateEngine(kind string, exceeded ExceededFunc, opts ...Option) (Engine, error) {
	factory, ok := engines[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownEngine, kind)
	}
	s := new(settings)
	for _, opt := range opts {
		opt(s)
	}
	engine, err := factory(exceeded, s)
	if err != nil {
		return nil, fmt.Errorf("optimize: %s: %w", kind, err)
	}
	return engine, nil
}

// Create builds an optimizer starting from initial with the engine registered under kind.
func Create(kind string, initial []float64, field FieldFunc, exceeded ExceededFunc, opts ...Option) (*Optimizer, error) {
	engine, err := CreateEngine(kind, exceeded, opts...)
	if err != nil {
		return nil, err
	}
	s := new(settings)
	for _, opt := range opts {
		opt(s)
	}
	p := Problem{
		Initial:       param.New(initial),
		Engine:        engine,
		Field:         field,
		Accuracy:      s.accuracy,
		MaxIterations: s.maxIterations,
		OnIteration:   s.onIteration,
		Logger:        s.logger,
	}
	return p.New()
}
