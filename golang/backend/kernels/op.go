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
	"math"

	"github.com/gx-org/tac/build/ir"
	"github.com/pkg/errors"
	"golang.org/x/exp/constraints"
)

type number interface {
	constraints.Integer | constraints.Float
}

func add[T number](x, y float64) (float64, error) {
	return float64(T(x) + T(y)), nil
}

func sub[T number](x, y float64) (float64, error) {
	return float64(T(x) - T(y)), nil
}

func mul[T number](x, y float64) (float64, error) {
	return float64(T(x) * T(y)), nil
}

func quo[T constraints.Float](x, y float64) (float64, error) {
	return float64(T(x) / T(y)), nil
}

func quoInt[T constraints.Integer](x, y float64) (float64, error) {
	if T(y) == 0 {
		return 0, errors.Errorf("integer division by zero")
	}
	return float64(T(x) / T(y)), nil
}

func remInt[T constraints.Integer](x, y float64) (float64, error) {
	if T(y) == 0 {
		return 0, errors.Errorf("integer division by zero")
	}
	return float64(T(x) % T(y)), nil
}

func minimum(x, y float64) (float64, error) {
	return math.Min(x, y), nil
}

func maximum(x, y float64) (float64, error) {
	return math.Max(x, y), nil
}

func equal(x, y float64) (float64, error) {
	return Bool(x == y), nil
}

func notEqual(x, y float64) (float64, error) {
	return Bool(x != y), nil
}

func less(x, y float64) (float64, error) {
	return Bool(x < y), nil
}

func lessEqual(x, y float64) (float64, error) {
	return Bool(x <= y), nil
}

func greater(x, y float64) (float64, error) {
	return Bool(x > y), nil
}

func greaterEqual(x, y float64) (float64, error) {
	return Bool(x >= y), nil
}

// comparison returns the kernel of a comparison operator.
func comparison(op ir.BinaryOp) (Binary, bool) {
	switch op {
	case ir.OpMin:
		return minimum, true
	case ir.OpMax:
		return maximum, true
	case ir.OpEq:
		return equal, true
	case ir.OpNe:
		return notEqual, true
	case ir.OpLt:
		return less, true
	case ir.OpLe:
		return lessEqual, true
	case ir.OpGt:
		return greater, true
	case ir.OpGe:
		return greaterEqual, true
	}
	return nil, false
}
