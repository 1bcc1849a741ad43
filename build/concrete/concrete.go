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

// Package concrete turns declarative index notation assignments into
// concrete index notation: explicit ordered loop nests with explicit reductions.
package concrete

import (
	"github.com/gx-org/tac/base/ordered"
	"github.com/gx-org/tac/base/uname"
	"github.com/gx-org/tac/build/fmterr"
	"github.com/gx-org/tac/build/notation"
	"github.com/gx-org/tac/internal/exprdeps"
)

type concretizer struct {
	unames *uname.Unique
}

// Concretize returns the concrete statement of a declarative assignment.
//
// Index variables appearing only on the right-hand side are summed over the smallest
// sub-expression containing all their uses. A reduction at the root of the right-hand side
// accumulates into the destination. Other reductions are computed into scalar temporaries
// by a producer placed at the innermost position of the loops of their consumer.
//
// Loops are ordered so that every tensor is iterated in its storage order, ties being
// broken by the first occurrence of the variables (left-hand side first).
// Returns an error of kind fmterr.ErrFormatConflict if no such order exists.
//
// Concrete statements are returned unchanged.
func Concretize(s notation.Stmt) (notation.Stmt, error) {
	if err := notation.ValidateStmt(s); err != nil {
		return nil, err
	}
	if notation.IsConcrete(s) {
		return s, nil
	}
	assign, ok := s.(*notation.Assignment)
	if !ok {
		if err := notation.Verify(s); err != nil {
			return nil, err
		}
		return nil, fmterr.Errorf(fmterr.ErrInvalidNotation, "cannot concretize %s: only declarative assignments or concrete statements are supported", s)
	}
	c := &concretizer{unames: uname.New()}
	for _, t := range notation.Tensors(s) {
		c.unames.Register(t.Name())
	}
	rhs, err := Einsum(assign)
	if err != nil {
		return nil, err
	}
	stmt, err := c.nest(nil, assign.Lhs, assign.Op, rhs)
	if err != nil {
		return nil, err
	}
	if err := CheckLevelOrder(stmt); err != nil {
		return nil, err
	}
	return stmt, nil
}

// Einsum returns the right-hand side of an assignment with all its implicit
// reductions made explicit.
func Einsum(a *notation.Assignment) (notation.Expr, error) {
	rhs := a.Rhs
	for _, v := range exprdeps.ReductionVars(a) {
		rhs = placeSum(v, rhs)
	}
	var err error
	notation.InspectExpr(rhs, func(e notation.Expr) bool {
		if r, ok := e.(*notation.Reduction); ok && r.Op != notation.OpAdd && err == nil {
			err = fmterr.Errorf(fmterr.ErrInvalidNotation, "%s: reduction operator %s not supported", r, r.Op)
		}
		return err == nil
	})
	return rhs, err
}

// placeSum wraps the smallest sub-expression of e containing all the uses of v into a sum over v.
func placeSum(v *notation.IndexVar, e notation.Expr) notation.Expr {
	switch eT := e.(type) {
	case *notation.Neg:
		return &notation.Neg{X: placeSum(v, eT.X)}
	case *notation.Binary:
		inX, inY := exprdeps.Uses(eT.X, v), exprdeps.Uses(eT.Y, v)
		if inX && !inY {
			return &notation.Binary{Op: eT.Op, X: placeSum(v, eT.X), Y: eT.Y}
		}
		if inY && !inX {
			return &notation.Binary{Op: eT.Op, X: eT.X, Y: placeSum(v, eT.Y)}
		}
	case *notation.Reduction:
		return &notation.Reduction{Op: eT.Op, Var: eT.Var, X: placeSum(v, eT.X)}
	}
	return notation.Sum(v, e)
}

type producer struct {
	tmp *notation.TensorVar
	red *notation.Reduction
}

// nest builds the loops computing lhs op= rhs given the variables bound by enclosing loops.
func (c *concretizer) nest(outer []*notation.IndexVar, lhs *notation.Access, op notation.Op, rhs notation.Expr) (notation.Stmt, error) {
	for {
		red, ok := rhs.(*notation.Reduction)
		if !ok {
			break
		}
		rhs, op = red.X, notation.OpAdd
	}
	var prods []producer
	rhs = notation.ReplaceExpr(rhs, func(e notation.Expr) (notation.Expr, bool) {
		red, ok := e.(*notation.Reduction)
		if !ok {
			return nil, false
		}
		tmp := notation.NewTemporary(
			c.unames.Name("t"+red.Var.Name()),
			lhs.Tensor.DType(),
			nil,
			notation.DenseFormat(0),
			notation.WithMemory(notation.MemoryRegister),
		)
		prods = append(prods, producer{tmp: tmp, red: red})
		return tmp.Access(), true
	})
	body := &notation.Assignment{Lhs: lhs, Rhs: rhs, Op: op}

	vars := ordered.NewSet[*notation.IndexVar]()
	accesses := []*notation.Access{lhs}
	accesses = append(accesses, notation.ExprAccesses(rhs)...)
	for _, v := range exprdeps.AssignmentVars(body) {
		if !contains(outer, v) {
			vars.Add(v)
		}
	}
	for _, prod := range prods {
		for _, v := range exprdeps.FreeVars(prod.red) {
			if !contains(outer, v) {
				vars.Add(v)
			}
		}
		accesses = append(accesses, notation.ExprAccesses(prod.red)...)
	}
	order, err := sortVars(vars.Slice(), accesses)
	if err != nil {
		return nil, err
	}

	var inner notation.Stmt = body
	scope := append(append([]*notation.IndexVar{}, outer...), order...)
	var producers []notation.Stmt
	for _, prod := range prods {
		stmt, err := c.nest(scope, prod.tmp.Access(), notation.OpAdd, prod.red)
		if err != nil {
			return nil, err
		}
		producers = append(producers, stmt)
	}
	switch len(producers) {
	case 0:
	case 1:
		inner = notation.NewWhere(inner, producers[0])
	default:
		inner = notation.NewWhere(inner, notation.NewSequence(producers...))
	}
	for i := len(order) - 1; i >= 0; i-- {
		inner = notation.NewForall(order[i], inner)
	}
	return inner, nil
}
