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

// Package target describes the targets of the lowerer and what their parallel units support.
package target

import (
	"slices"
	"strings"

	"github.com/gx-org/tac/build/fmterr"
	"github.com/gx-org/tac/build/notation"
)

// ID identifies a target.
type ID int

// Targets supported by the lowerer.
const (
	// C is a multicore CPU with vector units.
	C ID = iota
	// CUDA is a GPU organized in blocks, warps and threads.
	CUDA
	// Spatial is a spatial accelerator with on-chip memories and parallel lanes.
	Spatial
)

var names = map[ID]string{
	C:       "C",
	CUDA:    "CUDA",
	Spatial: "Spatial",
}

// All returns all the targets.
func All() []ID {
	return []ID{C, CUDA, Spatial}
}

// String returns the name of the target.
func (id ID) String() string {
	if name, ok := names[id]; ok {
		return name
	}
	return "unknown"
}

// Parse returns a target given its name. The name is case insensitive.
func Parse(s string) (ID, error) {
	for _, id := range All() {
		if strings.EqualFold(names[id], s) {
			return id, nil
		}
	}
	return C, fmterr.Errorf(fmterr.ErrInvalidNotation, "unknown target %q", s)
}

// MarshalText returns the name of the target.
func (id ID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

// UnmarshalText parses the name of a target.
func (id *ID) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

type capabilities struct {
	defaultUnit notation.ParallelUnit
	units       map[notation.ParallelUnit][]notation.RaceStrategy
}

var plainRaces = []notation.RaceStrategy{notation.NoRaces, notation.IgnoreRaces}

var table = map[ID]capabilities{
	C: {
		defaultUnit: notation.CPUThread,
		units: map[notation.ParallelUnit][]notation.RaceStrategy{
			notation.CPUThread: {notation.NoRaces, notation.IgnoreRaces, notation.Atomics, notation.Temporary, notation.ParallelReduction},
			notation.CPUVector: plainRaces,
		},
	},
	CUDA: {
		defaultUnit: notation.GPUThread,
		units: map[notation.ParallelUnit][]notation.RaceStrategy{
			notation.GPUBlock:  {notation.NoRaces, notation.IgnoreRaces, notation.Atomics},
			notation.GPUWarp:   {notation.NoRaces, notation.IgnoreRaces, notation.Atomics, notation.ParallelReduction},
			notation.GPUThread: {notation.NoRaces, notation.IgnoreRaces, notation.Atomics},
		},
	},
	Spatial: {
		defaultUnit: notation.Spatial,
		units: map[notation.ParallelUnit][]notation.RaceStrategy{
			notation.Spatial: {notation.NoRaces, notation.IgnoreRaces, notation.ParallelReduction},
		},
	},
}

// Units returns the parallel units available on the target, sorted.
func (id ID) Units() []notation.ParallelUnit {
	var units []notation.ParallelUnit
	for unit := range table[id].units {
		units = append(units, unit)
	}
	slices.Sort(units)
	return units
}

// Races returns the race strategies supported by a unit of the target.
func (id ID) Races(unit notation.ParallelUnit) []notation.RaceStrategy {
	return slices.Clone(table[id].units[unit])
}

// Resolve returns the unit executing a loop annotated with unit.
func (id ID) Resolve(unit notation.ParallelUnit) notation.ParallelUnit {
	if unit == notation.DefaultUnit {
		return table[id].defaultUnit
	}
	return unit
}

// Check returns the unit executing a parallel loop and an error if the
// target cannot execute the loop with the given race strategy.
func (id ID) Check(unit notation.ParallelUnit, race notation.RaceStrategy) (notation.ParallelUnit, error) {
	caps, ok := table[id]
	if !ok {
		return unit, fmterr.Errorf(fmterr.ErrUnsupportedRaceStrategy, "unknown target %d", int(id))
	}
	resolved := id.Resolve(unit)
	races, ok := caps.units[resolved]
	if !ok {
		return resolved, fmterr.Errorf(fmterr.ErrUnsupportedRaceStrategy, "parallel unit %s is not available on target %s", resolved, id)
	}
	if !slices.Contains(races, race) {
		return resolved, fmterr.Errorf(fmterr.ErrUnsupportedRaceStrategy, "race strategy %s is not supported by %s on target %s", race, resolved, id)
	}
	return resolved, nil
}
