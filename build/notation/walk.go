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

import "slices"

// InspectExpr traverses an expression in depth-first order.
// If f returns false, the children of the node are not visited.
func InspectExpr(e Expr, f func(Expr) bool) {
	if e == nil || !f(e) {
		return
	}
	switch eT := e.(type) {
	case *Neg:
		InspectExpr(eT.X, f)
	case *Binary:
		InspectExpr(eT.X, f)
		InspectExpr(eT.Y, f)
	case *Reduction:
		InspectExpr(eT.X, f)
	}
}

// InspectStmt traverses a statement in depth-first order.
// Where statements are visited producer first, in execution order.
// If f returns false, the children of the node are not visited.
func InspectStmt(s Stmt, f func(Stmt) bool) {
	if s == nil || !f(s) {
		return
	}
	switch sT := s.(type) {
	case *Forall:
		InspectStmt(sT.Body, f)
	case *Where:
		InspectStmt(sT.Producer, f)
		InspectStmt(sT.Consumer, f)
	case *Sequence:
		for _, child := range sT.Stmts {
			InspectStmt(child, f)
		}
	case *SuchThat:
		InspectStmt(sT.Stmt, f)
	}
}

// Assignments returns all the assignments of a statement in execution order.
func Assignments(s Stmt) []*Assignment {
	var all []*Assignment
	InspectStmt(s, func(s Stmt) bool {
		if a, ok := s.(*Assignment); ok {
			all = append(all, a)
		}
		return true
	})
	return all
}

// Foralls returns all the loops of a statement in depth-first order.
func Foralls(s Stmt) []*Forall {
	var all []*Forall
	InspectStmt(s, func(s Stmt) bool {
		if f, ok := s.(*Forall); ok {
			all = append(all, f)
		}
		return true
	})
	return all
}

// FindForall returns the first loop iterating over v or nil.
func FindForall(s Stmt, v *IndexVar) *Forall {
	var found *Forall
	InspectStmt(s, func(s Stmt) bool {
		if found != nil {
			return false
		}
		if f, ok := s.(*Forall); ok && f.Var == v {
			found = f
			return false
		}
		return true
	})
	return found
}

// ExprAccesses returns all the tensor accesses of an expression, from left to right.
func ExprAccesses(e Expr) []*Access {
	var all []*Access
	InspectExpr(e, func(e Expr) bool {
		if a, ok := e.(*Access); ok {
			all = append(all, a)
		}
		return true
	})
	return all
}

// Accesses returns all the tensor accesses of a statement.
// For each assignment, the left-hand side comes first.
func Accesses(s Stmt) []*Access {
	var all []*Access
	for _, a := range Assignments(s) {
		all = append(all, a.Lhs)
		all = append(all, ExprAccesses(a.Rhs)...)
	}
	return all
}

// Tensors returns the tensors accessed by a statement in first-occurrence order.
func Tensors(s Stmt) []*TensorVar {
	var all []*TensorVar
	for _, a := range Accesses(s) {
		if !slices.Contains(all, a.Tensor) {
			all = append(all, a.Tensor)
		}
	}
	return all
}

// ReplaceExpr returns a copy of e where every sub-expression for which f returns true
// has been replaced by the expression returned by f.
// Sub-expressions are visited before their parent is rebuilt. Unmodified sub-trees are shared.
func ReplaceExpr(e Expr, f func(Expr) (Expr, bool)) Expr {
	if r, ok := f(e); ok {
		return r
	}
	switch eT := e.(type) {
	case *Neg:
		x := ReplaceExpr(eT.X, f)
		if x == eT.X {
			return e
		}
		return &Neg{X: x}
	case *Binary:
		x, y := ReplaceExpr(eT.X, f), ReplaceExpr(eT.Y, f)
		if x == eT.X && y == eT.Y {
			return e
		}
		return &Binary{Op: eT.Op, X: x, Y: y}
	case *Reduction:
		x := ReplaceExpr(eT.X, f)
		if x == eT.X {
			return e
		}
		return &Reduction{Op: eT.Op, Var: eT.Var, X: x}
	}
	return e
}

// RewriteStmt returns a copy of s where every statement for which f returns true
// has been replaced by the statement returned by f. Children of replaced statements
// are not visited. Unmodified sub-trees are shared.
func RewriteStmt(s Stmt, f func(Stmt) (Stmt, bool)) Stmt {
	if r, ok := f(s); ok {
		return r
	}
	switch sT := s.(type) {
	case *Forall:
		body := RewriteStmt(sT.Body, f)
		if body == sT.Body {
			return s
		}
		return sT.WithBody(body)
	case *Where:
		consumer, producer := RewriteStmt(sT.Consumer, f), RewriteStmt(sT.Producer, f)
		if consumer == sT.Consumer && producer == sT.Producer {
			return s
		}
		return &Where{Consumer: consumer, Producer: producer}
	case *Sequence:
		stmts := make([]Stmt, len(sT.Stmts))
		changed := false
		for i, child := range sT.Stmts {
			stmts[i] = RewriteStmt(child, f)
			changed = changed || stmts[i] != child
		}
		if !changed {
			return s
		}
		return &Sequence{Stmts: stmts}
	case *SuchThat:
		body := RewriteStmt(sT.Stmt, f)
		if body == sT.Stmt {
			return s
		}
		return &SuchThat{Stmt: body, Relations: sT.Relations}
	}
	return s
}

// ReplaceExprInStmt replaces expressions in the right-hand sides of all the assignments of s.
func ReplaceExprInStmt(s Stmt, f func(Expr) (Expr, bool)) Stmt {
	return RewriteStmt(s, func(s Stmt) (Stmt, bool) {
		a, ok := s.(*Assignment)
		if !ok {
			return nil, false
		}
		rhs := ReplaceExpr(a.Rhs, f)
		if rhs == a.Rhs {
			return s, true
		}
		return &Assignment{Lhs: a.Lhs, Rhs: rhs, Op: a.Op}, true
	})
}

func renameAccess(a *Access, v, nv *IndexVar) *Access {
	if a.IndexOf(v) < 0 {
		return a
	}
	indices := slices.Clone(a.Indices)
	for i, idx := range indices {
		if idx == v {
			indices[i] = nv
		}
	}
	return &Access{Tensor: a.Tensor, Indices: indices}
}

// RenameVar returns a copy of s where v has been replaced by nv in all accesses and loops.
func RenameVar(s Stmt, v, nv *IndexVar) Stmt {
	return RewriteStmt(s, func(s Stmt) (Stmt, bool) {
		switch sT := s.(type) {
		case *Forall:
			if sT.Var != v {
				return nil, false
			}
			ff := sT.WithVar(nv)
			ff.Body = RenameVar(sT.Body, v, nv)
			return ff, true
		case *Assignment:
			return &Assignment{
				Lhs: renameAccess(sT.Lhs, v, nv),
				Rhs: RenameVarInExpr(sT.Rhs, v, nv),
				Op:  sT.Op,
			}, true
		}
		return nil, false
	})
}

// RenameVarInExpr returns a copy of e where v has been replaced by nv.
func RenameVarInExpr(e Expr, v, nv *IndexVar) Expr {
	return ReplaceExpr(e, func(e Expr) (Expr, bool) {
		switch eT := e.(type) {
		case *Access:
			return renameAccess(eT, v, nv), true
		case *Reduction:
			if eT.Var != v {
				return nil, false
			}
			return &Reduction{Op: eT.Op, Var: nv, X: RenameVarInExpr(eT.X, v, nv)}, true
		}
		return nil, false
	})
}

// Locals returns the temporaries written by the producers of the where statements of s.
func Locals(s Stmt) map[*TensorVar]bool {
	tmps := make(map[*TensorVar]bool)
	InspectStmt(s, func(s Stmt) bool {
		where, ok := s.(*Where)
		if !ok {
			return true
		}
		for _, a := range Assignments(where.Producer) {
			tmps[a.Lhs.Tensor] = true
		}
		return true
	})
	return tmps
}
