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

// Package schedule implements the scheduling transformations of concrete index notation.
//
// Transformations are pure functions: the input statement is never modified and the
// relations introduced by a transformation are accumulated in a such that statement
// at the root of the returned statement.
package schedule

import (
	"github.com/gx-org/tac/build/concrete"
	"github.com/gx-org/tac/build/fmterr"
	"github.com/gx-org/tac/build/notation"
)

func invalidf(format string, a ...any) error {
	return fmterr.Errorf(fmterr.ErrInvalidTransformation, format, a...)
}

func checkFresh(body notation.Stmt, vs ...*notation.IndexVar) error {
	for i, v := range vs {
		if v == nil {
			return invalidf("nil index variable")
		}
		if notation.FindForall(body, v) != nil {
			return invalidf("index variable %s is already iterated", v)
		}
		for _, w := range vs[:i] {
			if w == v {
				return invalidf("index variable %s is used twice", v)
			}
		}
	}
	return nil
}

func checkConcrete(s notation.Stmt) error {
	if err := notation.Verify(s); err != nil {
		return fmterr.Wrap(fmterr.ErrInvalidTransformation, err)
	}
	return nil
}

// replaceLoops replaces all the loops over v by the statement returned by f.
func replaceLoops(s notation.Stmt, v *notation.IndexVar, f func(*notation.Forall) notation.Stmt) notation.Stmt {
	return notation.RewriteStmt(s, func(s notation.Stmt) (notation.Stmt, bool) {
		loop, ok := s.(*notation.Forall)
		if !ok || loop.Var != v {
			return nil, false
		}
		return f(loop), true
	})
}

// Bound states the extent of the loops over v.
// The loops over v are replaced by loops over bounded. The value of v is recovered from bounded.
//
// A MaxExact bound must be equal to the size of the dimensions accessed by v, if known.
// A MaxConstraint bound must be greater or equal to that size.
func Bound(s notation.Stmt, v, bounded *notation.IndexVar, extent int, kind notation.BoundKind) (notation.Stmt, error) {
	if err := checkConcrete(s); err != nil {
		return nil, err
	}
	body, _ := notation.Root(s)
	if notation.FindForall(body, v) == nil {
		return nil, invalidf("cannot bound %s: no loop iterates over %s", v, v)
	}
	if extent <= 0 {
		return nil, invalidf("cannot bound %s: invalid extent %d", v, extent)
	}
	if err := checkFresh(body, bounded); err != nil {
		return nil, err
	}
	if bounded == v {
		return nil, invalidf("cannot bound %s to itself", v)
	}
	extents := notation.NewExtents(s)
	if prev := extents.Provenance().Bound(v); prev != nil {
		return nil, invalidf("cannot bound %s: already bounded by %s", v, prev)
	}
	size, fixed, err := extents.Dim(v)
	if err != nil {
		return nil, fmterr.Wrap(fmterr.ErrInvalidTransformation, err)
	}
	if fixed {
		switch kind {
		case notation.MaxExact:
			if extent != size {
				return nil, invalidf("cannot bound %s to exactly %d: %s accesses dimensions of size %d", v, extent, v, size)
			}
		case notation.MaxConstraint:
			if extent < size {
				return nil, invalidf("cannot bound %s to at most %d: %s accesses dimensions of size %d", v, extent, v, size)
			}
		default:
			return nil, invalidf("bound kind %s not supported", kind)
		}
	}
	body = replaceLoops(body, v, func(loop *notation.Forall) notation.Stmt {
		return loop.WithVar(bounded)
	})
	return notation.WithRelations(withBody(s, body), &notation.BoundRelation{
		Var:     v,
		Bounded: bounded,
		Extent:  extent,
		Kind:    kind,
	}), nil
}

// withBody returns a statement with the relations of s guarding a new body.
func withBody(s notation.Stmt, body notation.Stmt) notation.Stmt {
	_, rels := notation.Root(s)
	return notation.WithRelations(body, rels...)
}

// Split splits the loops over v into an outer loop over outer and an inner loop over inner.
// The inner loop iterates factor times and the outer loop iterates ceil(extent/factor) times.
// The extent of v must be static, that is v, or the variable v has been derived from, must
// have been bounded. The parallel annotation of the loops over v is kept on the outer loop.
func Split(s notation.Stmt, v, outer, inner *notation.IndexVar, factor int) (notation.Stmt, error) {
	if err := checkConcrete(s); err != nil {
		return nil, err
	}
	body, _ := notation.Root(s)
	if notation.FindForall(body, v) == nil {
		return nil, invalidf("cannot split %s: no loop iterates over %s", v, v)
	}
	if factor <= 0 {
		return nil, invalidf("cannot split %s: invalid factor %d", v, factor)
	}
	if err := checkFresh(body, outer, inner); err != nil {
		return nil, err
	}
	ext, ok := notation.ProvenanceOf(s).Extent(v)
	if !ok {
		return nil, invalidf("cannot split %s: %s has no static extent (bound it first)", v, v)
	}
	if ext.Exact && ext.Size%factor != 0 {
		return nil, invalidf("cannot split %s: factor %d does not divide the exact extent %d", v, factor, ext.Size)
	}
	body = replaceLoops(body, v, func(loop *notation.Forall) notation.Stmt {
		return loop.WithVar(outer).WithBody(notation.NewForall(inner, loop.Body))
	})
	return notation.WithRelations(withBody(s, body), &notation.SplitRelation{
		Var:    v,
		Outer:  outer,
		Inner:  inner,
		Factor: factor,
	}), nil
}

// Reorder swaps two directly nested loops.
func Reorder(s notation.Stmt, a, b *notation.IndexVar) (notation.Stmt, error) {
	if err := checkConcrete(s); err != nil {
		return nil, err
	}
	body, _ := notation.Root(s)
	found := false
	body = notation.RewriteStmt(body, func(s notation.Stmt) (notation.Stmt, bool) {
		outerLoop, ok := s.(*notation.Forall)
		if !ok || (outerLoop.Var != a && outerLoop.Var != b) {
			return nil, false
		}
		innerLoop, ok := outerLoop.Body.(*notation.Forall)
		if !ok || (innerLoop.Var != a && innerLoop.Var != b) || innerLoop.Var == outerLoop.Var {
			return nil, false
		}
		found = true
		return innerLoop.WithBody(outerLoop.WithBody(innerLoop.Body)), true
	})
	if !found {
		return nil, invalidf("cannot reorder %s and %s: loops are not directly nested", a, b)
	}
	res := withBody(s, body)
	if err := concrete.CheckLevelOrder(res); err != nil {
		return nil, fmterr.Wrap(fmterr.ErrInvalidTransformation, err)
	}
	return res, nil
}
