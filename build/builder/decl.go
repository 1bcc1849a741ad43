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

package builder

import (
	"strings"

	"github.com/gx-org/backend/dtype"
	"github.com/gx-org/tac/build/fmterr"
	"github.com/gx-org/tac/build/ir/irkind"
	"github.com/gx-org/tac/build/notation"
)

// TensorDecl is the textual declaration of a tensor:
//
//	name: B
//	dtype: float32
//	dims: [16, 16]
//	format: csr
type TensorDecl struct {
	Name  string `yaml:"name"`
	DType string `yaml:"dtype"`
	Dims  []int  `yaml:"dims,flow"`
	// Format is either the name of a format (dense, csr, csc, coo, sparse)
	// or a comma-separated list of levels (dense, compressed, singleton,
	// nonunique compressed levels being written compressed-nu).
	Format string `yaml:"format,omitempty"`
	// Ordering of the dimensions in the levels. Natural order if empty.
	Ordering []int  `yaml:"ordering,flow,omitempty"`
	Memory   string `yaml:"memory,omitempty"`
}

// ParseDType returns an element data type given its name.
func ParseDType(s string) (dtype.DataType, error) {
	knd := irkind.KindFromString(s)
	if knd == irkind.Invalid || knd == irkind.Index {
		return dtype.Invalid, fmterr.Errorf(fmterr.ErrInvalidNotation, "unknown data type %q", s)
	}
	return knd.DType(), nil
}

var levelNames = map[string]notation.Level{
	"dense":         notation.DenseLevel,
	"compressed":    notation.CompressedLevel,
	"compressed-nu": {Kind: notation.Compressed},
	"singleton":     {Kind: notation.Singleton, Unique: true},
	"singleton-nu":  {Kind: notation.Singleton},
}

// ParseFormat returns the format of a tensor of a given order.
func ParseFormat(s string, order int, ordering []int) (notation.Format, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	var format notation.Format
	switch name {
	case "", "dense":
		format = notation.DenseFormat(order)
	case "csr", "csc":
		if order != 2 {
			return notation.Format{}, fmterr.Errorf(fmterr.ErrInvalidNotation, "format %s requires a matrix, got a tensor of order %d", name, order)
		}
		format = notation.CSR()
		if name == "csc" {
			format = notation.CSC()
		}
	case "coo":
		format = notation.COO(order)
	case "sparse":
		if order != 1 {
			return notation.Format{}, fmterr.Errorf(fmterr.ErrInvalidNotation, "format sparse requires a vector, got a tensor of order %d", order)
		}
		format = notation.SparseVector()
	default:
		var levels []notation.Level
		for _, field := range strings.Split(name, ",") {
			lvl, ok := levelNames[strings.TrimSpace(field)]
			if !ok {
				return notation.Format{}, fmterr.Errorf(fmterr.ErrInvalidNotation, "unknown level %q in format %q", field, s)
			}
			levels = append(levels, lvl)
		}
		if len(levels) != order {
			return notation.Format{}, fmterr.Errorf(fmterr.ErrInvalidNotation, "format %q has %d levels but the tensor has order %d", s, len(levels), order)
		}
		return newFormat(levels, ordering)
	}
	if ordering == nil {
		return format, nil
	}
	return newFormat(format.Levels(), ordering)
}

func newFormat(levels []notation.Level, ordering []int) (notation.Format, error) {
	if ordering != nil {
		if len(ordering) != len(levels) {
			return notation.Format{}, fmterr.Errorf(fmterr.ErrInvalidNotation, "ordering %v does not match %d levels", ordering, len(levels))
		}
		seen := make([]bool, len(levels))
		for _, d := range ordering {
			if d < 0 || d >= len(levels) || seen[d] {
				return notation.Format{}, fmterr.Errorf(fmterr.ErrInvalidNotation, "ordering %v is not a permutation", ordering)
			}
			seen[d] = true
		}
	}
	return notation.NewFormat(levels, ordering), nil
}

// Tensor creates the tensor of a declaration.
func (d *TensorDecl) Tensor() (*notation.TensorVar, error) {
	if d.Name == "" {
		return nil, fmterr.Errorf(fmterr.ErrInvalidNotation, "tensor declaration has no name")
	}
	dt, err := ParseDType(d.DType)
	if err != nil {
		return nil, fmterr.PrefixWith("tensor %s: ", d.Name)(err)
	}
	format, err := ParseFormat(d.Format, len(d.Dims), d.Ordering)
	if err != nil {
		return nil, fmterr.PrefixWith("tensor %s: ", d.Name)(err)
	}
	memory, ok := notation.ParseMemoryLocation(d.Memory)
	if !ok {
		return nil, fmterr.Errorf(fmterr.ErrInvalidNotation, "tensor %s: unknown memory location %q", d.Name, d.Memory)
	}
	dims := make([]notation.Dimension, len(d.Dims))
	for i, size := range d.Dims {
		if size <= 0 {
			return nil, fmterr.Errorf(fmterr.ErrInvalidNotation, "tensor %s: invalid size %d for dimension %d", d.Name, size, i)
		}
		dims[i] = notation.Fixed(size)
	}
	return notation.NewTensor(d.Name, dt, dims, format, notation.WithMemory(memory)), nil
}

// DeclareAll declares the tensors of a list of declarations.
func (b *Builder) DeclareAll(decls []TensorDecl) error {
	var errs fmterr.Errors
	for i := range decls {
		t, err := decls[i].Tensor()
		if err != nil {
			errs.Append(err)
			continue
		}
		errs.Append(b.Declare(t))
	}
	return errs.ToError()
}
