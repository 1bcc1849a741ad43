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

package lower

import (
	"github.com/gx-org/tac/build/fmterr"
	"github.com/gx-org/tac/build/ir"
	"github.com/gx-org/tac/build/notation"
)

// bind sets the value of an index variable and returns a function restoring its previous value.
func (l *lowerer) bind(v *notation.IndexVar, x ir.Expr) func() {
	prev, had := l.values[v]
	l.values[v] = x
	return func() {
		if had {
			l.values[v] = prev
		} else {
			delete(l.values, v)
		}
	}
}

func (l *lowerer) bound(v *notation.IndexVar) bool {
	_, ok := l.values[v]
	return ok
}

func (l *lowerer) recoverable(v *notation.IndexVar) bool {
	return l.prov.Recoverable(v, l.bound)
}

// value returns the value of an index variable computed from the variables of the enclosing loops.
func (l *lowerer) value(v *notation.IndexVar) (ir.Expr, error) {
	x, ok := l.recover(v, map[*notation.IndexVar]bool{})
	if !ok {
		return nil, fmterr.Errorf(fmterr.ErrUnboundIndexVar, "index variable %s cannot be computed from the enclosing loops", v)
	}
	return x, nil
}

func (l *lowerer) recover(v *notation.IndexVar, visiting map[*notation.IndexVar]bool) (ir.Expr, bool) {
	if x, ok := l.values[v]; ok {
		return x, true
	}
	if visiting[v] {
		return nil, false
	}
	visiting[v] = true
	defer delete(visiting, v)
	for _, rel := range l.prov.Definitions(v) {
		switch relT := rel.(type) {
		case *notation.BoundRelation:
			if x, ok := l.recover(relT.Bounded, visiting); ok {
				return x, true
			}
		case *notation.PrecomputeRelation:
			if x, ok := l.recover(relT.Workspace, visiting); ok {
				return x, true
			}
		case *notation.SplitRelation:
			outer, ok := l.recover(relT.Outer, visiting)
			if !ok {
				continue
			}
			inner, ok := l.recover(relT.Inner, visiting)
			if !ok {
				continue
			}
			return ir.Add(ir.Mul(outer, ir.Int(relT.Factor)), inner), true
		}
	}
	return nil, false
}

// iterates returns true if a loop over v iterates over the values of u.
func (l *lowerer) iterates(v, u *notation.IndexVar) bool {
	if u == v {
		return true
	}
	return l.prov.IsAlias(v) && l.prov.DependsOn(u, v)
}

// exact returns true if the loops bound over the descendants of root
// never produce values beyond the extent of root.
func (l *lowerer) exact(root *notation.IndexVar) bool {
	for _, u := range l.prov.Descendants(root) {
		if u == root || !l.bound(u) {
			continue
		}
		if ext, ok := l.prov.Extent(u); ok && !ext.Exact {
			return false
		}
	}
	return true
}

// guard returns the block in which the body of a loop over v is lowered.
// If binding v makes the root of v computable and the loops over the root
// may overshoot its extent, the body is guarded by a bound check.
func (l *lowerer) guard(blk *ir.Block, v *notation.IndexVar, wasRecoverable bool) (*ir.Block, error) {
	root := l.prov.Root(v)
	if root == v || wasRecoverable || !l.recoverable(root) || l.exact(root) {
		return blk, nil
	}
	limit, err := l.ext.Limit(root)
	if err != nil {
		return nil, err
	}
	x, err := l.value(root)
	if err != nil {
		return nil, err
	}
	then := ir.NewBlock()
	blk.Append(&ir.If{Cond: ir.Lt(x, ir.Int(limit)), Then: then})
	return then, nil
}
