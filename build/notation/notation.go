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

// Package notation is the tensor index notation: the declarative and concrete
// statements the compiler transforms before lowering them to an imperative IR.
//
// Index notation trees are immutable. Transformations build new trees and may share
// unmodified sub-trees with their input.
//
// Expressions and statements are closed sets of node types: every node type implements
// an unexported method so that only this package can define nodes.
package notation

import (
	"fmt"
	"strconv"
)

// IndexVar is a named logical iteration dimension.
// Index variables are compared by identity: two variables with the same name are different variables.
type IndexVar struct {
	name string
}

// NewIndexVar returns a new index variable.
func NewIndexVar(name string) *IndexVar {
	return &IndexVar{name: name}
}

// IndexVars returns a new index variable for each name.
func IndexVars(names ...string) []*IndexVar {
	vars := make([]*IndexVar, len(names))
	for i, name := range names {
		vars[i] = NewIndexVar(name)
	}
	return vars
}

// Name of the index variable.
func (v *IndexVar) Name() string {
	return v.name
}

// String representation of the variable.
func (v *IndexVar) String() string {
	if v == nil {
		return "<nil>"
	}
	return v.name
}

// Dimension is the size of a tensor dimension.
// It is either a fixed size, the extent of an index variable, or unknown.
type Dimension struct {
	size int
	of   *IndexVar
}

// Fixed returns a dimension of a given size.
func Fixed(size int) Dimension {
	return Dimension{size: size}
}

// Of returns a dimension whose size is the extent of an index variable.
func Of(v *IndexVar) Dimension {
	return Dimension{of: v}
}

// Unknown returns a dimension with no size.
func Unknown() Dimension {
	return Dimension{}
}

// IsFixed returns true if the size of the dimension is known.
func (d Dimension) IsFixed() bool {
	return d.of == nil && d.size > 0
}

// Size of the dimension. Only valid if the dimension is fixed.
func (d Dimension) Size() int {
	return d.size
}

// Var returns the index variable defining the dimension or nil.
func (d Dimension) Var() *IndexVar {
	return d.of
}

// String representation of the dimension.
func (d Dimension) String() string {
	switch {
	case d.of != nil:
		return "|" + d.of.String() + "|"
	case d.size > 0:
		return strconv.Itoa(d.size)
	default:
		return "?"
	}
}

// MemoryLocation is the memory tier in which the values of a tensor are stored.
type MemoryLocation int

const (
	// MemoryDefault lets the target choose.
	MemoryDefault MemoryLocation = iota
	// MemoryRegister is private to a lane (registers, spatial Reg).
	MemoryRegister
	// MemoryOnChip is a fast on-chip buffer (GPU shared memory, spatial SRAM).
	MemoryOnChip
	// MemoryBulk is the bulk addressable memory (host memory, GPU global memory, spatial DRAM).
	MemoryBulk
)

// String representation of the memory location.
func (m MemoryLocation) String() string {
	switch m {
	case MemoryDefault:
		return "Default"
	case MemoryRegister:
		return "Register"
	case MemoryOnChip:
		return "OnChip"
	case MemoryBulk:
		return "Bulk"
	}
	return fmt.Sprintf("MemoryLocation(%d)", int(m))
}

// ParseMemoryLocation returns a memory location given its name.
// The empty string is the default location.
func ParseMemoryLocation(s string) (MemoryLocation, bool) {
	if s == "" {
		return MemoryDefault, true
	}
	for _, m := range []MemoryLocation{MemoryDefault, MemoryRegister, MemoryOnChip, MemoryBulk} {
		if m.String() == s {
			return m, true
		}
	}
	return MemoryDefault, false
}

// ParallelUnit is the hardware unit executing the lanes of a parallel loop.
type ParallelUnit int

const (
	// NotParallel executes the loop serially.
	NotParallel ParallelUnit = iota
	// DefaultUnit lets the target choose its default parallel unit.
	DefaultUnit
	// CPUThread executes each lane in a CPU thread.
	CPUThread
	// CPUVector executes lanes in CPU vector units.
	CPUVector
	// GPUBlock distributes lanes over accelerator blocks.
	GPUBlock
	// GPUWarp distributes lanes over the warps of a block.
	GPUWarp
	// GPUThread distributes lanes over the threads of a warp.
	GPUThread
	// Spatial distributes lanes over spatial parallel lanes.
	Spatial
)

var parallelUnitNames = map[ParallelUnit]string{
	NotParallel: "NotParallel",
	DefaultUnit: "DefaultUnit",
	CPUThread:   "CPUThread",
	CPUVector:   "CPUVector",
	GPUBlock:    "GPUBlock",
	GPUWarp:     "GPUWarp",
	GPUThread:   "GPUThread",
	Spatial:     "Spatial",
}

// String representation of the unit.
func (u ParallelUnit) String() string {
	if name, ok := parallelUnitNames[u]; ok {
		return name
	}
	return fmt.Sprintf("ParallelUnit(%d)", int(u))
}

// ParseParallelUnit returns a unit given its name.
func ParseParallelUnit(s string) (ParallelUnit, bool) {
	for unit, name := range parallelUnitNames {
		if name == s {
			return unit, true
		}
	}
	return NotParallel, false
}

// RaceStrategy is the policy reconciling concurrent writes to the same output location.
type RaceStrategy int

const (
	// NoRaces asserts that lanes never write to the same location.
	NoRaces RaceStrategy = iota
	// IgnoreRaces lets lanes write without synchronization.
	IgnoreRaces
	// Atomics updates output locations with atomic operations.
	Atomics
	// Temporary materializes a private result per lane and combines them after the loop.
	Temporary
	// ParallelReduction uses the native reduction primitive of the target.
	ParallelReduction
)

var raceStrategyNames = map[RaceStrategy]string{
	NoRaces:           "NoRaces",
	IgnoreRaces:       "IgnoreRaces",
	Atomics:           "Atomics",
	Temporary:         "Temporary",
	ParallelReduction: "ParallelReduction",
}

// String representation of the strategy.
func (r RaceStrategy) String() string {
	if name, ok := raceStrategyNames[r]; ok {
		return name
	}
	return fmt.Sprintf("RaceStrategy(%d)", int(r))
}

// ParseRaceStrategy returns a strategy given its name.
func ParseRaceStrategy(s string) (RaceStrategy, bool) {
	for race, name := range raceStrategyNames {
		if name == s {
			return race, true
		}
	}
	return NoRaces, false
}

// BoundKind specifies how the extent given to a bound relates to the actual extent.
type BoundKind int

const (
	// MaxExact states that the extent is exactly the bound.
	MaxExact BoundKind = iota
	// MaxConstraint states that the extent is at most the bound.
	MaxConstraint
)

// String representation of the bound kind.
func (k BoundKind) String() string {
	switch k {
	case MaxExact:
		return "MaxExact"
	case MaxConstraint:
		return "MaxConstraint"
	}
	return fmt.Sprintf("BoundKind(%d)", int(k))
}

// ParseBoundKind returns a bound kind given its name.
func ParseBoundKind(s string) (BoundKind, bool) {
	switch s {
	case "MaxExact":
		return MaxExact, true
	case "MaxConstraint":
		return MaxConstraint, true
	}
	return MaxExact, false
}
