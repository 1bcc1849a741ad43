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
)

// LevelKind is the storage kind of a level of a tensor.
type LevelKind int

const (
	// Dense levels store every coordinate of a dimension.
	// Positions are computed from coordinates.
	Dense LevelKind = iota
	// Compressed levels store the coordinates of the non-zero sub-tensors
	// in a coordinate array segmented by a position array.
	Compressed
	// Singleton levels store exactly one coordinate per parent position.
	Singleton
)

// String representation of the level kind.
func (k LevelKind) String() string {
	switch k {
	case Dense:
		return "Dense"
	case Compressed:
		return "Compressed"
	case Singleton:
		return "Singleton"
	}
	return fmt.Sprintf("LevelKind(%d)", int(k))
}

// Level describes the storage of one level of a tensor.
type Level struct {
	Kind LevelKind
	// Unique is false when a coordinate may appear more than once in a segment.
	Unique bool
}

// DenseLevel is a dense level.
var DenseLevel = Level{Kind: Dense, Unique: true}

// CompressedLevel is a compressed level with unique coordinates.
var CompressedLevel = Level{Kind: Compressed, Unique: true}

// IsDense returns true if positions can be computed from coordinates.
func (l Level) IsDense() bool {
	return l.Kind == Dense
}

// String representation of the level.
func (l Level) String() string {
	if l.Unique || l.Kind == Dense {
		return l.Kind.String()
	}
	return l.Kind.String() + "(nonunique)"
}

// Format is the storage format of a tensor: one level per dimension
// and the order in which dimensions are stored.
type Format struct {
	levels   []Level
	ordering []int
}

// NewFormat returns a new format. ordering[k] is the dimension stored at level k.
// A nil ordering stores dimensions in their natural order.
func NewFormat(levels []Level, ordering []int) Format {
	if ordering == nil {
		ordering = make([]int, len(levels))
		for i := range ordering {
			ordering[i] = i
		}
	}
	return Format{levels: slices.Clone(levels), ordering: slices.Clone(ordering)}
}

// DenseFormat returns a dense format of a given order.
func DenseFormat(order int) Format {
	levels := make([]Level, order)
	for i := range levels {
		levels[i] = DenseLevel
	}
	return NewFormat(levels, nil)
}

// SparseVector returns the format of a compressed vector.
func SparseVector() Format {
	return NewFormat([]Level{CompressedLevel}, nil)
}

// CSR returns the compressed sparse row format for matrices.
func CSR() Format {
	return NewFormat([]Level{DenseLevel, CompressedLevel}, nil)
}

// CSC returns the compressed sparse column format for matrices.
func CSC() Format {
	return NewFormat([]Level{DenseLevel, CompressedLevel}, []int{1, 0})
}

// COO returns a coordinate format: a non-unique compressed level followed by singleton levels.
func COO(order int) Format {
	levels := make([]Level, order)
	for i := range levels {
		levels[i] = Level{Kind: Singleton}
	}
	if order > 0 {
		levels[0].Kind = Compressed
		levels[order-1].Unique = true
	}
	if order == 1 {
		levels[0].Unique = true
	}
	return NewFormat(levels, nil)
}

// Order returns the number of levels of the format.
func (f Format) Order() int {
	return len(f.levels)
}

// Level returns the level stored at position k.
func (f Format) Level(k int) Level {
	return f.levels[k]
}

// Levels returns a copy of the levels of the format.
func (f Format) Levels() []Level {
	return slices.Clone(f.levels)
}

// Dimension returns the dimension stored at level k.
func (f Format) Dimension(k int) int {
	return f.ordering[k]
}

// Ordering returns a copy of the dimension ordering.
func (f Format) Ordering() []int {
	return slices.Clone(f.ordering)
}

// AllDense returns true if all levels are dense.
func (f Format) AllDense() bool {
	for _, lvl := range f.levels {
		if !lvl.IsDense() {
			return false
		}
	}
	return true
}

// Equal returns true if both formats are the same.
func (f Format) Equal(other Format) bool {
	return slices.Equal(f.levels, other.levels) && slices.Equal(f.ordering, other.ordering)
}

// String representation of the format.
func (f Format) String() string {
	ss := make([]string, len(f.levels))
	for i, lvl := range f.levels {
		ss[i] = lvl.String()
	}
	s := "{" + strings.Join(ss, ",") + "}"
	if !slices.IsSorted(f.ordering) {
		s += fmt.Sprint(f.ordering)
	}
	return s
}
