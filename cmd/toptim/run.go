// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/curioloop/toptim/fsd"
	"github.com/curioloop/toptim/fsolve"
	"github.com/curioloop/toptim/internal/expr"
	"github.com/curioloop/toptim/optimize"
	"github.com/curioloop/toptim/param"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

type runOptions struct {
	initial       []float64
	field         string
	volume        string
	maxCorrection []float64
	lower         []float64
	upper         []float64
	accuracy      float64
	maxIter       int
	timeout       time.Duration
	method        string
	strictRoot    bool
	json          bool
}

type runReport struct {
	RunID          string    `json:"run_id"`
	Parameters     []float64 `json:"parameters"`
	Iterations     int       `json:"iterations"`
	Converged      bool      `json:"converged"`
	ExceededVolume float64   `json:"exceeded_volume"`
	Elapsed        string    `json:"elapsed"`
}

func newRunCmd() *cobra.Command {
	opts := new(runOptions)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one optimization",
		Long: `Runs the fully stressed design iteration from the initial parameters.

The field expression is evaluated per parameter with x, i, n, sum and mean.
The volume expression returns the exceeded volume (positive when violated)
and is evaluated with n, sum, mean, min and max.`,
		Example: `  toptim run --initial 0.5,0.5 --field "i == 0 ? 3 : 1" --volume "sum - 1"
  toptim run --initial 0.1,0.9 --field "1 / x" --volume "sum - 1" --max-correction 0.2`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOptimization(cmd, opts)
		},
	}

	f := cmd.Flags()
	f.Float64SliceVar(&opts.initial, "initial", nil, "Initial parameters (required)")
	f.StringVar(&opts.field, "field", "", "Field expression (required)")
	f.StringVar(&opts.volume, "volume", "", "Exceeded volume expression (required)")
	f.Float64SliceVar(&opts.maxCorrection, "max-correction", nil, "Max change per iteration, one value or one per parameter")
	f.Float64SliceVar(&opts.lower, "lower", nil, "Lower bound, one value or one per parameter (default 1e-6)")
	f.Float64SliceVar(&opts.upper, "upper", nil, "Upper bound, one value or one per parameter (default 1-1e-6)")
	f.Float64Var(&opts.accuracy, "accuracy", optimize.DefaultAccuracy, "Convergence tolerance of the step norm")
	f.IntVar(&opts.maxIter, "max-iter", 0, "Max iterations, 0 for unbounded")
	f.DurationVar(&opts.timeout, "timeout", 0, "Wall clock limit, 0 for none")
	f.StringVar(&opts.method, "method", "newton", "Multiplier search method (newton, secant)")
	f.BoolVar(&opts.strictRoot, "strict-root", false, "Fail when the multiplier search does not converge")
	f.BoolVar(&opts.json, "json", false, "Print the result as JSON")

	_ = cmd.MarkFlagRequired("initial")
	_ = cmd.MarkFlagRequired("field")
	_ = cmd.MarkFlagRequired("volume")
	return cmd
}

func toLimit(values []float64) param.Limit {
	switch len(values) {
	case 0:
		return param.Unset()
	case 1:
		return param.Scalar(values[0])
	default:
		return param.PerComponent(values...)
	}
}

func checkLimit(name string, values []float64, n int) error {
	if len(values) > 1 && len(values) != n {
		return fmt.Errorf("--%s needs 1 or %d values, got %d", name, n, len(values))
	}
	return nil
}

func runOptimization(cmd *cobra.Command, opts *runOptions) error {
	runID := uuid.NewString()
	logger := slog.Default().With("run_id", runID)

	n := len(opts.initial)
	for name, values := range map[string][]float64{
		"max-correction": opts.maxCorrection,
		"lower":          opts.lower,
		"upper":          opts.upper,
	} {
		if err := checkLimit(name, values, n); err != nil {
			return err
		}
	}

	var method fsolve.Method
	switch opts.method {
	case "newton":
		method = fsolve.Newton
	case "secant":
		method = fsolve.Secant
	default:
		return fmt.Errorf("unknown method: %s", opts.method)
	}

	field, err := expr.NewField(opts.field)
	if err != nil {
		return fmt.Errorf("invalid field: %w", err)
	}
	volume, err := expr.NewVolume(opts.volume)
	if err != nil {
		return fmt.Errorf("invalid volume: %w", err)
	}

	// the callbacks cannot fail, the first error stops the loop at the end of its iteration
	var evalErr error
	fieldFn := func(values []float64) []float64 {
		out, err := field.Eval(values)
		if err != nil {
			if evalErr == nil {
				evalErr = err
			}
			out = make([]float64, len(values))
			for i := range out {
				out[i] = math.NaN()
			}
		}
		return out
	}
	exceededFn := func(values []float64) float64 {
		v, err := volume.Eval(values)
		if err != nil && evalErr == nil {
			evalErr = err
		}
		return v
	}

	bounds := fsd.DefaultBounds()
	if len(opts.lower) > 0 {
		bounds.Lower = toLimit(opts.lower)
	}
	if len(opts.upper) > 0 {
		bounds.Upper = toLimit(opts.upper)
	}

	options := []optimize.Option{
		optimize.WithMaxCorrection(toLimit(opts.maxCorrection)),
		optimize.WithBounds(bounds.Lower, bounds.Upper),
		optimize.WithAccuracy(opts.accuracy),
		optimize.WithMaxIterations(opts.maxIter),
		optimize.WithRootSearch(method, fsolve.Termination{}),
		optimize.WithLogger(logger),
		optimize.WithOnIteration(func(it optimize.Iteration) error {
			return evalErr
		}),
	}
	if opts.strictRoot {
		options = append(options, optimize.WithRootPolicy(fsd.RejectEstimate))
	}

	o, err := optimize.Create(optimize.FullyStressDesign, opts.initial, fieldFn, exceededFn, options...)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if opts.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.timeout)
		defer cancel()
	}

	logger.Info("Starting optimization",
		"parameters", n,
		"field", field.String(),
		"volume", volume.String(),
		"max_correction", toLimit(opts.maxCorrection).String(),
		"accuracy", opts.accuracy,
	)

	start := time.Now()
	res, err := o.Solve(ctx)
	elapsed := time.Since(start)
	if evalErr != nil {
		return fmt.Errorf("expression evaluation failed: %w", evalErr)
	}
	if err != nil {
		return fmt.Errorf("optimization stopped after %d iterations: %w", res.Iterations, err)
	}

	values := res.Parameters.Values()
	exceeded, _ := volume.Eval(values)

	logger.Info("Optimization complete",
		"elapsed", elapsed,
		"iterations", res.Iterations,
		"exceeded_volume", exceeded,
	)

	out := cmd.OutOrStdout()
	if opts.json {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(runReport{
			RunID:          runID,
			Parameters:     values,
			Iterations:     res.Iterations,
			Converged:      res.Converged,
			ExceededVolume: exceeded,
			Elapsed:        elapsed.String(),
		})
	}

	fmt.Fprintf(out, "converged after %d iterations (exceeded volume %.3g)\n", res.Iterations, exceeded)
	for i, v := range values {
		fmt.Fprintf(out, "x[%d] = %.6f\n", i, v)
	}
	return nil
}
