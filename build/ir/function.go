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

package ir

import (
	"github.com/gx-org/tac/build/ir/irkind"
	"github.com/gx-org/tac/build/notation"
)

type (
	// Buffer is a flat array of elements. Buffers are compared by identity.
	Buffer struct {
		Name   string
		Knd    irkind.Kind
		Memory notation.MemoryLocation
	}

	// LevelArg are the buffers storing one level of a tensor.
	LevelArg struct {
		Level notation.Level
		// Size of the dimension stored by the level.
		Size int
		// Pos segments the coordinates of a compressed level by parent position.
		// Nil for dense and singleton levels.
		Pos *Buffer
		// Crd stores the coordinates of compressed and singleton levels. Nil for dense levels.
		Crd *Buffer
	}

	// TensorArg is a tensor passed to a function.
	TensorArg struct {
		Tensor *notation.TensorVar
		// Output is true if the function writes the tensor.
		Output bool
		// Dims are the sizes of the dimensions of the tensor, in dimension order.
		Dims []int
		// Levels of the tensor, in storage order.
		Levels []*LevelArg
		Vals   *Buffer
	}

	// Function is a lowered kernel.
	Function struct {
		Name string
		// Target is the name of the target the function has been lowered for.
		Target  string
		Tensors []*TensorArg
		Body    *Block
	}
)

// Tensor returns the argument of a tensor or nil.
func (f *Function) Tensor(t *notation.TensorVar) *TensorArg {
	for _, arg := range f.Tensors {
		if arg.Tensor == t {
			return arg
		}
	}
	return nil
}

// TensorByName returns the argument of a tensor given its name or nil.
func (f *Function) TensorByName(name string) *TensorArg {
	for _, arg := range f.Tensors {
		if arg.Tensor.Name() == name {
			return arg
		}
	}
	return nil
}

// Outputs returns the tensors written by the function.
func (f *Function) Outputs() []*TensorArg {
	var outs []*TensorArg
	for _, arg := range f.Tensors {
		if arg.Output {
			outs = append(outs, arg)
		}
	}
	return outs
}

// Buffers returns all the buffers of the tensor.
func (t *TensorArg) Buffers() []*Buffer {
	var bufs []*Buffer
	for _, lvl := range t.Levels {
		if lvl.Pos != nil {
			bufs = append(bufs, lvl.Pos)
		}
		if lvl.Crd != nil {
			bufs = append(bufs, lvl.Crd)
		}
	}
	return append(bufs, t.Vals)
}

// Dense returns true if all the levels of the tensor are dense.
func (t *TensorArg) Dense() bool {
	for _, lvl := range t.Levels {
		if !lvl.Level.IsDense() {
			return false
		}
	}
	return true
}
