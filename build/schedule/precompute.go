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
	"github.com/gx-org/tac/internal/exprdeps"
)

func containsExpr(s notation.Stmt, expr notation.Expr) bool {
	found := false
	for _, a := range notation.Assignments(s) {
		notation.InspectExpr(a.Rhs, func(e notation.Expr) bool {
			if !found && notation.EqualExpr(e, expr) {
				found = true
			}
			return !found
		})
		if found {
			return true
		}
	}
	return false
}

// findLoop returns the first loop over v containing expr in depth-first execution order
// and the index variables of the loops enclosing it.
func findLoop(s notation.Stmt, v *notation.IndexVar, expr notation.Expr) (*notation.Forall, []*notation.IndexVar) {
	var walk func(s notation.Stmt, scope []*notation.IndexVar) (*notation.Forall, []*notation.IndexVar)
	walk = func(s notation.Stmt, scope []*notation.IndexVar) (*notation.Forall, []*notation.IndexVar) {
		switch sT := s.(type) {
		case *notation.Forall:
			if sT.Var == v && containsExpr(sT.Body, expr) {
				return sT, scope
			}
			return walk(sT.Body, append(scope, sT.Var))
		case *notation.Where:
			if loop, sc := walk(sT.Producer, scope); loop != nil {
				return loop, sc
			}
			return walk(sT.Consumer, scope)
		case *notation.Sequence:
			for _, child := range sT.Stmts {
				if loop, sc := walk(child, scope); loop != nil {
					return loop, sc
				}
			}
		case *notation.SuchThat:
			return walk(sT.Stmt, scope)
		}
		return nil, nil
	}
	return walk(s, nil)
}

// Precompute computes expr into the temporary ws before the first loop over i containing expr.
// See PrecomputeVars.
func Precompute(s notation.Stmt, expr notation.Expr, i, iw *notation.IndexVar, ws *notation.TensorVar) (notation.Stmt, error) {
	return PrecomputeVars(s, expr, []*notation.IndexVar{i}, []*notation.IndexVar{iw}, ws)
}

// PrecomputeVars computes expr into the temporary ws before it is used.
//
// The first loop over is[0] containing expr is replaced by:
//
//	where(consumer, producer)
//
// where the producer iterates over the variables iws and assigns expr to ws(iws) and
// the consumer is the original loop reading ws(is) instead of computing expr.
// The loops over the other variables of is must be directly nested in the loop over is[0].
// When a variable of iws differs from its variable in is, a precompute relation
// records that it iterates over the same values. The producer loops are serial.
func PrecomputeVars(s notation.Stmt, expr notation.Expr, is, iws []*notation.IndexVar, ws *notation.TensorVar) (notation.Stmt, error) {
	if err := checkConcrete(s); err != nil {
		return nil, err
	}
	if len(is) == 0 || len(is) != len(iws) {
		return nil, invalidf("cannot precompute %s: got %d index variables and %d workspace variables", expr, len(is), len(iws))
	}
	if ws == nil || !ws.Temporary() {
		return nil, invalidf("cannot precompute %s into %s: not a temporary", expr, ws)
	}
	if ws.Order() != len(is) {
		return nil, invalidf("cannot precompute %s into %s: temporary has %d dimensions but is indexed by %d variables", expr, ws, ws.Order(), len(is))
	}
	if err := notation.Validate(expr); err != nil {
		return nil, err
	}
	body, _ := notation.Root(s)
	loop, scope := findLoop(body, is[0], expr)
	if loop == nil {
		return nil, invalidf("cannot precompute %s: no loop over %s computes this expression", expr, is[0])
	}
	// Collect the loops precomputed together.
	nested := []*notation.Forall{loop}
	for _, v := range is[1:] {
		next, ok := nested[len(nested)-1].Body.(*notation.Forall)
		if !ok || next.Var != v {
			return nil, invalidf("cannot precompute %s: loop over %s is not directly nested in the loop over %s", expr, v, nested[len(nested)-1].Var)
		}
		nested = append(nested, next)
	}
	for k, iw := range iws {
		if iw == is[k] {
			continue
		}
		if err := checkFresh(body, iw); err != nil {
			return nil, err
		}
	}
	// The expression can only use variables bound outside of the precomputed loops.
	prov := notation.ProvenanceOf(s)
	available := append(append([]*notation.IndexVar{}, scope...), is...)
	inScope := func(v *notation.IndexVar) bool { return contains(available, v) }
	for _, v := range exprdeps.FreeVars(expr) {
		if !prov.Recoverable(v, inScope) {
			return nil, invalidf("cannot precompute %s at %s: %s is bound inside the loop", expr, is[0], v)
		}
	}

	// Consumer: the loops reading the temporary.
	consumer := notation.ReplaceExprInStmt(loop, func(e notation.Expr) (notation.Expr, bool) {
		if notation.EqualExpr(e, expr) {
			return ws.Access(is...), true
		}
		return nil, false
	})
	// Producer: the loops writing the temporary.
	producerExpr := expr
	var rels []notation.Relation
	for k, iw := range iws {
		if iw == is[k] {
			continue
		}
		producerExpr = notation.RenameVarInExpr(producerExpr, is[k], iw)
		rels = append(rels, &notation.PrecomputeRelation{Var: is[k], Workspace: iw})
	}
	var producer notation.Stmt = notation.Assign(ws.Access(iws...), producerExpr)
	for k := len(nested) - 1; k >= 0; k-- {
		producer = notation.NewForall(iws[k], producer)
	}
	where := notation.NewWhere(consumer, producer)
	replaced := false
	body = notation.RewriteStmt(body, func(s notation.Stmt) (notation.Stmt, bool) {
		if s != loop || replaced {
			return nil, false
		}
		replaced = true
		return where, true
	})
	return notation.WithRelations(withBody(s, body), rels...), nil
}

func contains(vs []*notation.IndexVar, v *notation.IndexVar) bool {
	for _, x := range vs {
		if x == v {
			return true
		}
	}
	return false
}
