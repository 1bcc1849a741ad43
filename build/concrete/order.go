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

package concrete

import (
	"github.com/gx-org/tac/base/ordered"
	"github.com/gx-org/tac/build/fmterr"
	"github.com/gx-org/tac/build/notation"
)

// levelVar returns the index variable accessing the k-th storage level of a tensor.
func levelVar(a *notation.Access, k int) *notation.IndexVar {
	return a.Indices[a.Tensor.Format().Dimension(k)]
}

// LevelConstraints calls f for every pair of variables (before, after) such that
// before must be bound before after is iterated to walk the storage of an access.
// Only compressed and singleton levels impose an order: dense levels can be located
// from any coordinate.
func LevelConstraints(a *notation.Access, f func(before, after *notation.IndexVar)) {
	format := a.Tensor.Format()
	for k := range format.Order() {
		if format.Level(k).IsDense() {
			continue
		}
		after := levelVar(a, k)
		for m := range k {
			if before := levelVar(a, m); before != after {
				f(before, after)
			}
		}
	}
}

// sortVars returns the variables ordered by a topological sort of the level constraints
// of a set of accesses. Ties are broken by the order of the variables in vars.
func sortVars(vars []*notation.IndexVar, accesses []*notation.Access) ([]*notation.IndexVar, error) {
	set := ordered.NewSet(vars...)
	preds := make(map[*notation.IndexVar]*ordered.Set[*notation.IndexVar])
	for _, v := range vars {
		preds[v] = ordered.NewSet[*notation.IndexVar]()
	}
	for _, a := range accesses {
		LevelConstraints(a, func(before, after *notation.IndexVar) {
			if set.Has(before) && set.Has(after) {
				preds[after].Add(before)
			}
		})
	}
	done := ordered.NewSet[*notation.IndexVar]()
	for done.Size() < len(vars) {
		next := -1
		for i, v := range vars {
			if done.Has(v) {
				continue
			}
			if allDone(done, preds[v]) {
				next = i
				break
			}
		}
		if next < 0 {
			return nil, fmterr.Errorf(fmterr.ErrFormatConflict, "no loop order over %v is consistent with the storage order of %v", vars, accesses)
		}
		done.Add(vars[next])
	}
	return done.Slice(), nil
}

func allDone(done, preds *ordered.Set[*notation.IndexVar]) bool {
	for p := range preds.All() {
		if !done.Has(p) {
			return false
		}
	}
	return true
}

type levelChecker struct {
	errs fmterr.Errors
	prov *notation.Provenance
	path []*notation.IndexVar
}

// position returns the depth of the loop at which the value of v can first be computed.
func (c *levelChecker) position(v *notation.IndexVar) int {
	for d := range c.path {
		scope := c.path[:d+1]
		if c.prov.Recoverable(v, func(u *notation.IndexVar) bool { return contains(scope, u) }) {
			return d
		}
	}
	return -1
}

func (c *levelChecker) access(a *notation.Access) {
	LevelConstraints(a, func(before, after *notation.IndexVar) {
		pb, pa := c.position(before), c.position(after)
		if pb < 0 || pa < 0 {
			return
		}
		if pb > pa {
			c.errs.Appendf(fmterr.ErrFormatConflict, "%s: %s is stored before %s but is iterated after it", a, before, after)
		}
	})
}

func (c *levelChecker) stmt(s notation.Stmt) {
	switch sT := s.(type) {
	case *notation.Assignment:
		c.access(sT.Lhs)
		for _, a := range notation.ExprAccesses(sT.Rhs) {
			c.access(a)
		}
	case *notation.Forall:
		c.path = append(c.path, sT.Var)
		c.stmt(sT.Body)
		c.path = c.path[:len(c.path)-1]
	case *notation.Where:
		c.stmt(sT.Producer)
		c.stmt(sT.Consumer)
	case *notation.Sequence:
		for _, child := range sT.Stmts {
			c.stmt(child)
		}
	case *notation.SuchThat:
		c.stmt(sT.Stmt)
	}
}

// CheckLevelOrder checks that the loops of a statement iterate over the levels of every
// accessed tensor in storage order. Returns an error of kind fmterr.ErrFormatConflict otherwise.
func CheckLevelOrder(s notation.Stmt) error {
	c := &levelChecker{prov: notation.ProvenanceOf(s)}
	c.stmt(s)
	return c.errs.ToError()
}

func contains(vs []*notation.IndexVar, v *notation.IndexVar) bool {
	for _, x := range vs {
		if x == v {
			return true
		}
	}
	return false
}
