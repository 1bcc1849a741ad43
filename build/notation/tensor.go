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

package notation

import (
	"fmt"
	"slices"
	"strings"

	"github.com/gx-org/backend/dtype"
)

type (
	// TensorVar is a tensor in index notation.
	// Tensors are compared by identity.
	TensorVar struct {
		name      string
		dtype     dtype.DataType
		dims      []Dimension
		format    Format
		memory    MemoryLocation
		temporary bool
	}

	// TensorOption configures a tensor variable.
	TensorOption func(*TensorVar)
)

// WithMemory places the values of a tensor in a memory tier.
func WithMemory(m MemoryLocation) TensorOption {
	return func(t *TensorVar) {
		t.memory = m
	}
}

// NewTensor returns a new tensor provided by the user of the compiler.
func NewTensor(name string, dt dtype.DataType, dims []Dimension, format Format, opts ...TensorOption) *TensorVar {
	t := &TensorVar{
		name:   name,
		dtype:  dt,
		dims:   slices.Clone(dims),
		format: format,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// NewScalar returns a new tensor of order 0.
func NewScalar(name string, dt dtype.DataType, opts ...TensorOption) *TensorVar {
	return NewTensor(name, dt, nil, DenseFormat(0), opts...)
}

// NewTemporary returns a new workspace tensor. Temporaries only exist
// in the statement introducing them.
func NewTemporary(name string, dt dtype.DataType, dims []Dimension, format Format, opts ...TensorOption) *TensorVar {
	t := NewTensor(name, dt, dims, format, opts...)
	t.temporary = true
	return t
}

// Name of the tensor.
func (t *TensorVar) Name() string { return t.name }

// DType returns the element type of the tensor.
func (t *TensorVar) DType() dtype.DataType { return t.dtype }

// Order returns the number of dimensions of the tensor.
func (t *TensorVar) Order() int { return len(t.dims) }

// Dims returns a copy of the dimensions of the tensor.
func (t *TensorVar) Dims() []Dimension { return slices.Clone(t.dims) }

// Dim returns the i-th dimension of the tensor.
func (t *TensorVar) Dim(i int) Dimension { return t.dims[i] }

// Format returns the storage format of the tensor.
func (t *TensorVar) Format() Format { return t.format }

// Memory returns the memory tier of the tensor.
func (t *TensorVar) Memory() MemoryLocation { return t.memory }

// Temporary returns true if the tensor has been created by the compiler
// or for a scheduling transformation.
func (t *TensorVar) Temporary() bool { return t.temporary }

// Access returns an access to the tensor.
func (t *TensorVar) Access(indices ...*IndexVar) *Access {
	return &Access{Tensor: t, Indices: indices}
}

// String representation of the tensor.
func (t *TensorVar) String() string {
	if t == nil {
		return "<nil>"
	}
	return t.name
}

// Declaration returns the name, the type, the format, and the memory location of the tensor.
func (t *TensorVar) Declaration() string {
	dims := make([]string, len(t.dims))
	for i, dim := range t.dims {
		dims[i] = dim.String()
	}
	return fmt.Sprintf("%s: %s[%s] %s %s", t.name, t.dtype, strings.Join(dims, ","), t.format, t.memory)
}
