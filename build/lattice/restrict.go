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

package lattice

import (
	"slices"

	"github.com/gx-org/tac/build/notation"
)

var zero = notation.Lit(0)

func isZero(e notation.Expr) bool {
	lit, ok := e.(*notation.Literal)
	return ok && lit.Value == 0
}

// isMonotone returns true if removing iterators from a point where the expression
// is zero keeps the expression zero. Comparisons are not monotone: 0 == 0 is true.
func isMonotone(e notation.Expr) bool {
	monotone := true
	notation.InspectExpr(e, func(e notation.Expr) bool {
		if bin, ok := e.(*notation.Binary); ok && bin.Op.IsComparison() {
			monotone = false
		}
		return monotone
	})
	return monotone
}

// restrict returns the expression computed when only the given iterators are present.
// Iterators absent from the point are replaced by zero and the result is simplified.
// Accesses that are not iterators are present in every point.
func restrict(e notation.Expr, iterators, present []*notation.Access) notation.Expr {
	absent := func(a *notation.Access) bool {
		return slices.Contains(iterators, a) && !slices.Contains(present, a)
	}
	return simplify(e, absent)
}

// ZeroWithout returns true if expr is zero whenever the accesses for which absent returns true are zero.
func ZeroWithout(expr notation.Expr, absent func(*notation.Access) bool) bool {
	return isZero(simplify(expr, absent))
}

func simplify(e notation.Expr, absent func(*notation.Access) bool) notation.Expr {
	switch eT := e.(type) {
	case *notation.Access:
		if absent(eT) {
			return zero
		}
		return e
	case *notation.Neg:
		x := simplify(eT.X, absent)
		if isZero(x) {
			return zero
		}
		if x == eT.X {
			return e
		}
		return &notation.Neg{X: x}
	case *notation.Reduction:
		x := simplify(eT.X, absent)
		if isZero(x) {
			return zero
		}
		if x == eT.X {
			return e
		}
		return &notation.Reduction{Op: eT.Op, Var: eT.Var, X: x}
	case *notation.Binary:
		return simplifyBinary(eT, simplify(eT.X, absent), simplify(eT.Y, absent))
	}
	return e
}

func simplifyBinary(b *notation.Binary, x, y notation.Expr) notation.Expr {
	zx, zy := isZero(x), isZero(y)
	if lx, ok := x.(*notation.Literal); ok {
		if ly, ok := y.(*notation.Literal); ok {
			return notation.Lit(fold(b.Op, lx.Value, ly.Value))
		}
	}
	switch b.Op {
	case notation.OpMul, notation.OpDiv:
		if zx || zy {
			return zero
		}
	case notation.OpAdd:
		if zx {
			return y
		}
		if zy {
			return x
		}
	case notation.OpSub:
		if zy {
			return x
		}
		if zx {
			return &notation.Neg{X: y}
		}
	}
	if x == b.X && y == b.Y {
		return b
	}
	return &notation.Binary{Op: b.Op, X: x, Y: y}
}

// fold evaluates an operator on two constants.
// Divisions by zero fold to zero: an absent divisor means an absent result.
func fold(op notation.Op, x, y float64) float64 {
	switch op {
	case notation.OpAdd:
		return x + y
	case notation.OpSub:
		return x - y
	case notation.OpMul:
		return x * y
	case notation.OpDiv:
		if y == 0 {
			return 0
		}
		return x / y
	case notation.OpMin:
		return min(x, y)
	case notation.OpMax:
		return max(x, y)
	case notation.OpEq:
		return boolToFloat(x == y)
	case notation.OpLt:
		return boolToFloat(x < y)
	case notation.OpGt:
		return boolToFloat(x > y)
	}
	return 0
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
