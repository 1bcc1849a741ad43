// Copyright 2025 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package kernels

import (
	"github.com/gx-org/tac/build/ir"
	"github.com/gx-org/tac/build/ir/irkind"
	"github.com/pkg/errors"
	"golang.org/x/exp/constraints"
)

type (
	floatFactory[T constraints.Float] struct {
		kind irkind.Kind
	}

	integerFactory[T constraints.Integer] struct {
		kind irkind.Kind
	}
)

var (
	_ Factory = floatFactory[float32]{}
	_ Factory = integerFactory[int64]{}
)

func (f floatFactory[T]) Kind() irkind.Kind {
	return f.kind
}

func (floatFactory[T]) Convert(x float64) float64 {
	return float64(T(x))
}

// UnaryOp creates a new kernel for a unary operator.
func (floatFactory[T]) UnaryOp(op ir.UnaryOp) (Unary, error) {
	if op != ir.OpNeg {
		return nil, errors.Errorf("operator %s not supported for floating-point values", op)
	}
	return func(x float64) float64 { return float64(-T(x)) }, nil
}

// BinaryOp creates a new kernel for a binary operator.
func (f floatFactory[T]) BinaryOp(op ir.BinaryOp) (Binary, error) {
	switch op {
	case ir.OpAdd:
		return add[T], nil
	case ir.OpSub:
		return sub[T], nil
	case ir.OpMul:
		return mul[T], nil
	case ir.OpDiv:
		return quo[T], nil
	}
	if kernel, ok := comparison(op); ok {
		return kernel, nil
	}
	return nil, errors.Errorf("operator %s not supported for %s", op, f.kind)
}

func (f integerFactory[T]) Kind() irkind.Kind {
	return f.kind
}

// Convert truncates a value towards zero and wraps it around the range of the integer type.
func (integerFactory[T]) Convert(x float64) float64 {
	return float64(T(int64(x)))
}

// UnaryOp creates a new kernel for a unary operator.
func (f integerFactory[T]) UnaryOp(op ir.UnaryOp) (Unary, error) {
	if op != ir.OpNeg {
		return nil, errors.Errorf("operator %s not supported for %s", op, f.kind)
	}
	return func(x float64) float64 { return float64(-T(x)) }, nil
}

// BinaryOp creates a new kernel for a binary operator.
func (f integerFactory[T]) BinaryOp(op ir.BinaryOp) (Binary, error) {
	switch op {
	case ir.OpAdd:
		return add[T], nil
	case ir.OpSub:
		return sub[T], nil
	case ir.OpMul:
		return mul[T], nil
	case ir.OpDiv:
		return quoInt[T], nil
	case ir.OpRem:
		return remInt[T], nil
	}
	if kernel, ok := comparison(op); ok {
		return kernel, nil
	}
	return nil, errors.Errorf("operator %s not supported for %s", op, f.kind)
}
