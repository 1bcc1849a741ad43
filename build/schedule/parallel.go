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

package schedule

import (
	"github.com/gx-org/tac/build/notation"
)

func checkRaces(prov *notation.Provenance, loop *notation.Forall, race notation.RaceStrategy) error {
	local := notation.Locals(loop.Body)
	for _, a := range notation.Assignments(loop.Body) {
		if local[a.Lhs.Tensor] {
			continue
		}
		aliased := !prov.AccessDependsOn(a.Lhs, loop.Var)
		switch race {
		case notation.NoRaces, notation.IgnoreRaces:
			if aliased {
				return invalidf("cannot parallelize %s with %s: all lanes write to %s", loop.Var, race, a.Lhs)
			}
		case notation.Atomics:
			if !a.IsAccumulation() {
				return invalidf("cannot parallelize %s with %s: %s is not an accumulation", loop.Var, race, a)
			}
		case notation.Temporary, notation.ParallelReduction:
			if !a.IsAccumulation() {
				return invalidf("cannot parallelize %s with %s: %s is not an accumulation", loop.Var, race, a)
			}
			if !aliased {
				return invalidf("cannot parallelize %s with %s: the location of %s changes in the loop", loop.Var, race, a.Lhs)
			}
		default:
			return invalidf("race strategy %s not supported", race)
		}
	}
	return nil
}

// Parallelize executes the loops over v in parallel lanes of a unit.
// The race strategy states how concurrent writes to the same output location are reconciled.
// A degree of zero lets the target choose the number of lanes.
func Parallelize(s notation.Stmt, v *notation.IndexVar, unit notation.ParallelUnit, race notation.RaceStrategy, degree int) (notation.Stmt, error) {
	if err := checkConcrete(s); err != nil {
		return nil, err
	}
	body, _ := notation.Root(s)
	if notation.FindForall(body, v) == nil {
		return nil, invalidf("cannot parallelize %s: no loop iterates over %s", v, v)
	}
	if degree < 0 {
		return nil, invalidf("cannot parallelize %s: invalid degree %d", v, degree)
	}
	if unit == notation.NotParallel && race != notation.NoRaces && race != notation.IgnoreRaces {
		return nil, invalidf("cannot use race strategy %s on a serial loop", race)
	}
	prov := notation.ProvenanceOf(s)
	var err error
	body = replaceLoops(body, v, func(loop *notation.Forall) notation.Stmt {
		if err == nil && unit != notation.NotParallel {
			err = checkRaces(prov, loop, race)
		}
		par := *loop
		par.Unit = unit
		par.Race = race
		par.Degree = degree
		return &par
	})
	if err != nil {
		return nil, err
	}
	return withBody(s, body), nil
}
