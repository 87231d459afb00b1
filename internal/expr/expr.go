// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package expr compiles text expressions into field and volume callbacks.
//
// A field expression is evaluated once per parameter with the variables
//
//	x     the parameter value
//	i     the parameter index
//	n     the number of parameters
//	sum   the sum of all parameters
//	mean  the mean of all parameters
//
// A volume expression is evaluated once per vector with n, sum, mean, min and max.
package expr

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/Knetic/govaluate"
	"gonum.org/v1/gonum/floats"
)

var functions = map[string]govaluate.ExpressionFunction{
	"abs":  unary(math.Abs),
	"sqrt": unary(math.Sqrt),
	"exp":  unary(math.Exp),
	"log":  unary(math.Log),
	"sin":  unary(math.Sin),
	"cos":  unary(math.Cos),
	"pow": func(args ...interface{}) (interface{}, error) {
		if len(args) != 2 {
			return nil, fmt.Errorf("pow expects 2 arguments, got %d", len(args))
		}
		a, err := toFloat(args[0])
		if err != nil {
			return nil, err
		}
		b, err := toFloat(args[1])
		if err != nil {
			return nil, err
		}
		return math.Pow(a, b), nil
	},
}

func unary(fn func(float64) float64) govaluate.ExpressionFunction {
	return func(args ...interface{}) (interface{}, error) {
		if len(args) != 1 {
			return nil, fmt.Errorf("expects 1 argument, got %d", len(args))
		}
		v, err := toFloat(args[0])
		if err != nil {
			return nil, err
		}
		return fn(v), nil
	}
}

func toFloat(v interface{}) (float64, error) {
	switch t := v.(type) {
	case float64:
		return t, nil
	case int:
		return float64(t), nil
	case int64:
		return float64(t), nil
	case bool:
		if t {
			return 1, nil
		}
		return 0, nil
	case string:
		return strconv.ParseFloat(t, 64)
	default:
		return math.NaN(), fmt.Errorf("expression did not return a number: %T", v)
	}
}

func compile(src string) (*govaluate.EvaluableExpression, error) {
	src = strings.TrimSpace(src)
	if src == "" {
		return nil, errors.New("empty expression")
	}
	e, err := govaluate.NewEvaluableExpressionWithFunctions(src, functions)
	if err != nil {
		return nil, fmt.Errorf("parse %q: %w", src, err)
	}
	return e, nil
}

func aggregates(values []float64) map[string]interface{} {
	n := float64(len(values))
	sum := floats.Sum(values)
	return map[string]interface{}{
		"n":    n,
		"sum":  sum,
		"mean": sum / n,
	}
}

// Field computes one value per parameter from an expression.
type Field struct {
	src  string
	expr *govaluate.EvaluableExpression
}

// NewField compiles a field expression.
func NewField(src string) (*Field, error) {
	e, err := compile(src)
	if err != nil {
		return nil, err
	}
	return &Field{src: src, expr: e}, nil
}

func (f *Field) String() string {
	return f.src
}

// Eval evaluates the field of every parameter.
func (f *Field) Eval(values []float64) ([]float64, error) {
	params := aggregates(values)
	out := make([]float64, len(values))
	for i, x := range values {
		params["x"] = x
		params["i"] = float64(i)
		v, err := f.expr.Evaluate(params)
		if err != nil {
			return nil, fmt.Errorf("field at %d: %w", i, err)
		}
		if out[i], err = toFloat(v); err != nil {
			return nil, fmt.Errorf("field at %d: %w", i, err)
		}
	}
	return out, nil
}

// Volume computes the exceeded volume of a parameter vector from an expression.
type Volume struct {
	src  string
	expr *govaluate.EvaluableExpression
}

// NewVolume compiles an exceeded volume expression.
func NewVolume(src string) (*Volume, error) {
	e, err := compile(src)
	if err != nil {
		return nil, err
	}
	return &Volume{src: src, expr: e}, nil
}

func (v *Volume) String() string {
	return v.src
}

// Eval evaluates the exceeded volume.
func (v *Volume) Eval(values []float64) (float64, error) {
	params := aggregates(values)
	if len(values) > 0 {
		params["min"] = floats.Min(values)
		params["max"] = floats.Max(values)
	}
	r, err := v.expr.Evaluate(params)
	if err != nil {
		return math.NaN(), fmt.Errorf("volume: %w", err)
	}
	return toFloat(r)
}
