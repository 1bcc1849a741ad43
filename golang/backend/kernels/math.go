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
	"github.com/gx-org/tac/build/ir/irkind"
	"github.com/pkg/errors"
)

// bfloat16Factory computes in float32 and rounds results to the nearest bfloat16.
type bfloat16Factory struct{}

var _ Factory = (*bfloat16Factory)(nil)

func (bfloat16Factory) Kind() irkind.Kind {
	return irkind.Bfloat16
}

// Convert rounds a value to the nearest bfloat16, ties to even.
func (bfloat16Factory) Convert(x float64) float64 {
	f := float32(x)
	if math.IsNaN(float64(f)) {
		return x
	}
	bits := math.Float32bits(f)
	bits += 0x7fff + (bits>>16)&1
	return float64(math.Float32frombits(bits &^ 0xffff))
}

func (b bfloat16Factory) round(kernel Binary) Binary {
	return func(x, y float64) (float64, error) {
		z, err := kernel(x, y)
		return b.Convert(z), err
	}
}

// UnaryOp creates a new kernel for a unary operator.
func (bfloat16Factory) UnaryOp(op ir.UnaryOp) (Unary, error) {
	if op != ir.OpNeg {
		return nil, errors.Errorf("operator %s not supported for bfloat16", op)
	}
	return func(x float64) float64 { return -x }, nil
}

// BinaryOp creates a new kernel for a binary operator.
func (b bfloat16Factory) BinaryOp(op ir.BinaryOp) (Binary, error) {
	switch op {
	case ir.OpAdd:
		return b.round(add[float32]), nil
	case ir.OpSub:
		return b.round(sub[float32]), nil
	case ir.OpMul:
		return b.round(mul[float32]), nil
	case ir.OpDiv:
		return b.round(quo[float32]), nil
	}
	if kernel, ok := comparison(op); ok {
		return kernel, nil
	}
	return nil, errors.Errorf("operator %s not supported for bfloat16", op)
}
