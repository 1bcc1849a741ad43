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
	"github.com/gx-org/tac/build/fmterr"
)

// Validate checks that every access of an expression has as many indices
// as the order of its tensor.
func Validate(e Expr) error {
	var errs fmterr.Errors
	for _, a := range ExprAccesses(e) {
		validateAccess(&errs, a)
	}
	return errs.ToError()
}

func validateAccess(errs *fmterr.Errors, a *Access) {
	if a.Tensor == nil {
		errs.Appendf(fmterr.ErrInvalidNotation, "access without a tensor")
		return
	}
	if len(a.Indices) != a.Tensor.Order() {
		errs.Appendf(fmterr.ErrInvalidNotation, "%s: tensor %s has %d dimensions but is accessed with %d indices", a, a.Tensor, a.Tensor.Order(), len(a.Indices))
	}
	for _, idx := range a.Indices {
		if idx == nil {
			errs.Appendf(fmterr.ErrInvalidNotation, "%s: nil index variable", a)
		}
	}
}

// ValidateStmt checks all the accesses of a statement.
func ValidateStmt(s Stmt) error {
	var errs fmterr.Errors
	for _, a := range Accesses(s) {
		validateAccess(&errs, a)
	}
	return errs.ToError()
}

type verifier struct {
	errs  fmterr.Errors
	prov  *Provenance
	scope []*IndexVar
}

func (v *verifier) inScope(iv *IndexVar) bool {
	for _, s := range v.scope {
		if s == iv {
			return true
		}
	}
	return false
}

func (v *verifier) bound(iv *IndexVar) bool {
	return v.inScope(iv) || v.prov.Recoverable(iv, v.inScope)
}

func (v *verifier) expr(e Expr) {
	switch eT := e.(type) {
	case *Access:
		validateAccess(&v.errs, eT)
		for _, idx := range eT.Indices {
			if idx != nil && !v.bound(idx) {
				v.errs.Appendf(fmterr.ErrInvalidNotation, "%s: index variable %s is not bound by an enclosing forall", eT, idx)
			}
		}
	case *Neg:
		v.expr(eT.X)
	case *Binary:
		v.expr(eT.X)
		v.expr(eT.Y)
	case *Reduction:
		v.scope = append(v.scope, eT.Var)
		v.expr(eT.X)
		v.scope = v.scope[:len(v.scope)-1]
	}
}

func (v *verifier) stmt(s Stmt) {
	switch sT := s.(type) {
	case *Assignment:
		v.expr(sT.Lhs)
		v.expr(sT.Rhs)
	case *Forall:
		if sT.Var == nil {
			v.errs.Appendf(fmterr.ErrInvalidNotation, "forall without an index variable")
			return
		}
		if v.inScope(sT.Var) {
			v.errs.Appendf(fmterr.ErrInvalidNotation, "index variable %s is iterated by nested foralls", sT.Var)
		}
		v.errs.Push(fmterr.PrefixWith("forall(%s): ", sT.Var))
		v.scope = append(v.scope, sT.Var)
		v.stmt(sT.Body)
		v.scope = v.scope[:len(v.scope)-1]
		v.errs.Pop()
	case *Where:
		v.stmt(sT.Producer)
		v.stmt(sT.Consumer)
	case *Sequence:
		for _, child := range sT.Stmts {
			v.stmt(child)
		}
	case *SuchThat:
		v.stmt(sT.Stmt)
	default:
		v.errs.Append(fmterr.Internalf("statement type %T not supported", s))
	}
}

// Verify checks that every index variable used by a statement is bound by an enclosing
// forall, either directly or by recovering its value from derived variables.
// All the violations are reported.
func Verify(s Stmt) error {
	v := &verifier{prov: ProvenanceOf(s)}
	v.stmt(s)
	return v.errs.ToError()
}

// HasReductions returns true if an expression contains an explicit reduction.
func HasReductions(e Expr) bool {
	found := false
	InspectExpr(e, func(e Expr) bool {
		if _, ok := e.(*Reduction); ok {
			found = true
		}
		return !found
	})
	return found
}

// IsConcrete returns true if a statement iterates explicitly over all its index variables
// and does not contain any reduction.
func IsConcrete(s Stmt) bool {
	for _, a := range Assignments(s) {
		if HasReductions(a.Rhs) {
			return false
		}
	}
	return Verify(s) == nil
}
