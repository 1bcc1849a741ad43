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

// Package irkind defines the kinds of values manipulated by the imperative IR.
package irkind

import "github.com/gx-org/backend/dtype"

// Kind of a value.
type Kind uint

// Kind of values supported by the IR.
const (
	Invalid = Kind(dtype.Invalid)

	Bool     = Kind(dtype.Bool)
	Int32    = Kind(dtype.Int32)
	Int64    = Kind(dtype.Int64)
	Uint32   = Kind(dtype.Uint32)
	Uint64   = Kind(dtype.Uint64)
	Bfloat16 = Kind(dtype.Bfloat16)
	Float32  = Kind(dtype.Float32)
	Float64  = Kind(dtype.Float64)

	// Index is the kind of loop variables, positions and coordinates.
	Index = Kind(iota + dtype.MaxDataType)
	// Void is the kind of statements.
	Void

	// Max value for a Kind constant.
	Max
)

// IndexDType is the data type used to store positions and coordinates.
const IndexDType = dtype.Int64

// String returns a string representation of a kind.
func (k Kind) String() string {
	switch k {
	case Index:
		return "index"
	case Void:
		return "void"
	case Bool:
		return "bool"
	case Int32:
		return "int32"
	case Int64:
		return "int64"
	case Uint32:
		return "uint32"
	case Uint64:
		return "uint64"
	case Bfloat16:
		return "bfloat16"
	case Float32:
		return "float32"
	case Float64:
		return "float64"
	}
	return "invalid"
}

// DType converts a kind into an array data type.
func (k Kind) DType() dtype.DataType {
	if k == Index {
		return IndexDType
	}
	if k >= dtype.MaxDataType {
		return dtype.Invalid
	}
	return dtype.DataType(k)
}

// FromDType returns the kind storing elements of a given data type.
func FromDType(dt dtype.DataType) Kind {
	if dt >= dtype.MaxDataType {
		return Invalid
	}
	return Kind(dt)
}

// KindFromString returns a kind given an identifier.
func KindFromString(ident string) Kind {
	switch ident {
	case "index":
		return Index
	case "bool":
		return Bool
	case "bfloat16":
		return Bfloat16
	case "float32":
		return Float32
	case "float64":
		return Float64
	case "int32":
		return Int32
	case "int64":
		return Int64
	case "uint32":
		return Uint32
	case "uint64":
		return Uint64
	default:
		return Invalid
	}
}

// KindGeneric returns the kind of a variable from its generic type.
// If the type is not supported, an invalid type is returned.
func KindGeneric[T dtype.GoDataType]() Kind {
	return Kind(dtype.Generic[T]())
}

// IsIntegerKind return true if kind is an integer.
func IsIntegerKind(kind Kind) bool {
	switch kind {
	case Index:
		return true
	case Int32, Int64, Uint32, Uint64:
		return true
	}
	return false
}
