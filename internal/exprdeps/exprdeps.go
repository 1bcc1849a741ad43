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

// Package exprdeps extracts index variable dependencies from index notation.
package exprdeps

import (
	"github.com/gx-org/tac/base/ordered"
	"github.com/gx-org/tac/build/notation"
)

func vars(done *ordered.Set[*notation.IndexVar], expr notation.Expr) {
	notation.InspectExpr(expr, func(e notation.Expr) bool {
		switch eT := e.(type) {
		case *notation.Access:
			for _, idx := range eT.Indices {
				done.Add(idx)
			}
		case *notation.Reduction:
			done.Add(eT.Var)
		}
		return true
	})
}

// Vars returns all the index variables used in an expression in first-occurrence order.
func Vars(expr notation.Expr) []*notation.IndexVar {
	done := ordered.NewSet[*notation.IndexVar]()
	vars(done, expr)
	return done.Slice()
}

// AssignmentVars returns all the index variables of an assignment in first-occurrence order:
// the variables of the left-hand side first, then the variables of the right-hand side from left to right.
func AssignmentVars(a *notation.Assignment) []*notation.IndexVar {
	done := ordered.NewSet[*notation.IndexVar]()
	vars(done, a.Lhs)
	vars(done, a.Rhs)
	return done.Slice()
}

// FreeVars returns the variables of an expression not reduced by an explicit reduction.
func FreeVars(expr notation.Expr) []*notation.IndexVar {
	done := ordered.NewSet[*notation.IndexVar]()
	freeVars(done, nil, expr)
	return done.Slice()
}

func freeVars(done *ordered.Set[*notation.IndexVar], reduced []*notation.IndexVar, expr notation.Expr) {
	switch eT := expr.(type) {
	case *notation.Access:
		for _, idx := range eT.Indices {
			if !contains(reduced, idx) {
				done.Add(idx)
			}
		}
	case *notation.Neg:
		freeVars(done, reduced, eT.X)
	case *notation.Binary:
		freeVars(done, reduced, eT.X)
		freeVars(done, reduced, eT.Y)
	case *notation.Reduction:
		freeVars(done, append(reduced, eT.Var), eT.X)
	}
}

// Uses returns true if an expression accesses a tensor with v.
func Uses(expr notation.Expr, v *notation.IndexVar) bool {
	found := false
	notation.InspectExpr(expr, func(e notation.Expr) bool {
		if a, ok := e.(*notation.Access); ok && a.IndexOf(v) >= 0 {
			found = true
		}
		return !found
	})
	return found
}

// ReductionVars returns the variables of the right-hand side of an assignment
// absent from its left-hand side and not reduced by an explicit reduction.
// These variables are implicitly summed over.
func ReductionVars(a *notation.Assignment) []*notation.IndexVar {
	var vs []*notation.IndexVar
	for _, v := range FreeVars(a.Rhs) {
		if a.Lhs.IndexOf(v) < 0 {
			vs = append(vs, v)
		}
	}
	return vs
}

func contains(vs []*notation.IndexVar, v *notation.IndexVar) bool {
	for _, x := range vs {
		if x == v {
			return true
		}
	}
	return false
}
