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

// EqualExpr returns true if two expressions have the same structure,
// access the same tensors with the same index variables, and use the same literals.
func EqualExpr(x, y Expr) bool {
	switch xT := x.(type) {
	case *Access:
		yT, ok := y.(*Access)
		return ok && xT.Tensor == yT.Tensor && slices.Equal(xT.Indices, yT.Indices)
	case *Literal:
		yT, ok := y.(*Literal)
		return ok && xT.Value == yT.Value
	case *Neg:
		yT, ok := y.(*Neg)
		return ok && EqualExpr(xT.X, yT.X)
	case *Binary:
		yT, ok := y.(*Binary)
		return ok && xT.Op == yT.Op && EqualExpr(xT.X, yT.X) && EqualExpr(xT.Y, yT.Y)
	case *Reduction:
		yT, ok := y.(*Reduction)
		return ok && xT.Op == yT.Op && xT.Var == yT.Var && EqualExpr(xT.X, yT.X)
	}
	return x == nil && y == nil
}

// EqualStmt returns true if two statements have the same structure.
func EqualStmt(x, y Stmt) bool {
	switch xT := x.(type) {
	case *Assignment:
		yT, ok := y.(*Assignment)
		return ok && xT.Op == yT.Op && EqualExpr(xT.Lhs, yT.Lhs) && EqualExpr(xT.Rhs, yT.Rhs)
	case *Forall:
		yT, ok := y.(*Forall)
		return ok &&
			xT.Var == yT.Var &&
			xT.Unit == yT.Unit &&
			xT.Race == yT.Race &&
			xT.Degree == yT.Degree &&
			EqualStmt(xT.Body, yT.Body)
	case *Where:
		yT, ok := y.(*Where)
		return ok && EqualStmt(xT.Consumer, yT.Consumer) && EqualStmt(xT.Producer, yT.Producer)
	case *Sequence:
		yT, ok := y.(*Sequence)
		return ok && slices.EqualFunc(xT.Stmts, yT.Stmts, EqualStmt)
	case *SuchThat:
		yT, ok := y.(*SuchThat)
		return ok && EqualStmt(xT.Stmt, yT.Stmt) && slices.EqualFunc(xT.Relations, yT.Relations, equalRelation)
	}
	return x == nil && y == nil
}

func equalRelation(x, y Relation) bool {
	switch xT := x.(type) {
	case *BoundRelation:
		yT, ok := y.(*BoundRelation)
		return ok && *xT == *yT
	case *SplitRelation:
		yT, ok := y.(*SplitRelation)
		return ok && *xT == *yT
	case *PrecomputeRelation:
		yT, ok := y.(*PrecomputeRelation)
		return ok && *xT == *yT
	}
	return false
}
