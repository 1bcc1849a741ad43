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

// Package kernels implements the scalar arithmetic of the Go reference backend.
//
// The executor stores all values as float64. Kernels apply the semantics of
// the element type of their kind: results are rounded to the element type,
// integer division truncates and booleans are 0 or 1.
package kernels

import (
	"github.com/gx-org/tac/build/ir"
	"github.com/gx-org/tac/build/ir/irkind"
	"github.com/pkg/errors"
)

type (
	// Unary like - or !.
	Unary func(float64) float64

	// Binary like +, -, *, /.
	Binary func(x, y float64) (float64, error)

	// Factory creates kernels for values of a given kind.
	Factory interface {
		// Kind of the values processed by the kernels.
		Kind() irkind.Kind

		// Convert rounds a value to the element type of the kind.
		Convert(float64) float64

		UnaryOp(ir.UnaryOp) (Unary, error)

		BinaryOp(ir.BinaryOp) (Binary, error)
	}
)

var factories [irkind.Max]Factory

func init() {
	for _, f := range []Factory{
		boolFactory{},
		bfloat16Factory{},
		floatFactory[float32]{kind: irkind.KindGeneric[float32]()},
		floatFactory[float64]{kind: irkind.KindGeneric[float64]()},
		integerFactory[int32]{kind: irkind.KindGeneric[int32]()},
		integerFactory[int64]{kind: irkind.KindGeneric[int64]()},
		integerFactory[uint32]{kind: irkind.KindGeneric[uint32]()},
		integerFactory[uint64]{kind: irkind.KindGeneric[uint64]()},
		integerFactory[int64]{kind: irkind.Index},
	} {
		factories[f.Kind()] = f
	}
}

// FactoryFor returns a factory given a kind.
func FactoryFor(knd irkind.Kind) (Factory, error) {
	if knd >= irkind.Max || factories[knd] == nil {
		return nil, errors.Errorf("no factory for %s", knd.String())
	}
	return factories[knd], nil
}

// Bool converts a boolean into a value.
func Bool(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
