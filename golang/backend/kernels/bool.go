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
)

type boolFactory struct{}

var _ Factory = (*boolFactory)(nil)

func (boolFactory) Kind() irkind.Kind {
	return irkind.Bool
}

func (boolFactory) Convert(x float64) float64 {
	return Bool(x != 0)
}

// UnaryOp creates a new kernel for a unary operator.
func (boolFactory) UnaryOp(op ir.UnaryOp) (Unary, error) {
	if op != ir.OpNot {
		return nil, errors.Errorf("operator %s not supported for booleans", op)
	}
	return func(x float64) float64 { return Bool(x == 0) }, nil
}

// BinaryOp creates a new kernel for a binary operator.
func (boolFactory) BinaryOp(op ir.BinaryOp) (Binary, error) {
	switch op {
	case ir.OpAnd:
		return func(x, y float64) (float64, error) { return Bool(x != 0 && y != 0), nil }, nil
	case ir.OpOr:
		return func(x, y float64) (float64, error) { return Bool(x != 0 || y != 0), nil }, nil
	case ir.OpEq:
		return equal, nil
	case ir.OpNe:
		return notEqual, nil
	}
	return nil, errors.Errorf("operator %s not supported for booleans", op)
}
