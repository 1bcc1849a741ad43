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

package ir

import (
	"github.com/gx-org/tac/build/ir/irkind"
)

// Int returns an index constant.
func Int(n int) *Const {
	return &Const{Value: float64(n), Knd: irkind.Index}
}

// Zero returns the zero value of a kind.
func Zero(knd irkind.Kind) *Const {
	return &Const{Value: 0, Knd: knd}
}

// True is the boolean constant true.
var True = &Const{Value: 1, Knd: irkind.Bool}

// NewVar returns a new variable.
func NewVar(name string, knd irkind.Kind) *Var {
	return &Var{Name: name, Knd: knd}
}

// NewBlock returns a block of statements.
func NewBlock(stmts ...Stmt) *Block {
	return &Block{Stmts: stmts}
}

// ConstValue returns the value of x if x is a constant.
func ConstValue(x Expr) (float64, bool) {
	c, ok := x.(*Const)
	if !ok {
		return 0, false
	}
	return c.Value, true
}

func isConst(x Expr, val float64) bool {
	v, ok := ConstValue(x)
	return ok && v == val
}

// Binary returns a binary expression. Index arithmetic over constants is folded.
func Binary(op BinaryOp, x, y Expr) Expr {
	if x.Kind() == irkind.Index && y.Kind() == irkind.Index {
		if folded, ok := foldIndex(op, x, y); ok {
			return folded
		}
	}
	return &BinaryExpr{Op: op, X: x, Y: y}
}

func foldIndex(op BinaryOp, x, y Expr) (Expr, bool) {
	xv, xConst := ConstValue(x)
	yv, yConst := ConstValue(y)
	if xConst && yConst {
		a, b := int(xv), int(yv)
		switch op {
		case OpAdd:
			return Int(a + b), true
		case OpSub:
			return Int(a - b), true
		case OpMul:
			return Int(a * b), true
		case OpDiv:
			if b != 0 {
				return Int(a / b), true
			}
		case OpRem:
			if b != 0 {
				return Int(a % b), true
			}
		}
		return nil, false
	}
	switch op {
	case OpAdd:
		if isConst(x, 0) {
			return y, true
		}
		if isConst(y, 0) {
			return x, true
		}
	case OpSub:
		if isConst(y, 0) {
			return x, true
		}
	case OpMul:
		if isConst(x, 0) || isConst(y, 0) {
			return Int(0), true
		}
		if isConst(x, 1) {
			return y, true
		}
		if isConst(y, 1) {
			return x, true
		}
	case OpDiv:
		if isConst(y, 1) {
			return x, true
		}
	}
	return nil, false
}

// Add returns x + y.
func Add(x, y Expr) Expr { return Binary(OpAdd, x, y) }

// Sub returns x - y.
func Sub(x, y Expr) Expr { return Binary(OpSub, x, y) }

// Mul returns x * y.
func Mul(x, y Expr) Expr { return Binary(OpMul, x, y) }

// Div returns x / y.
func Div(x, y Expr) Expr { return Binary(OpDiv, x, y) }

// Rem returns x % y.
func Rem(x, y Expr) Expr { return Binary(OpRem, x, y) }

// Eq returns x == y.
func Eq(x, y Expr) Expr { return Binary(OpEq, x, y) }

// Lt returns x < y.
func Lt(x, y Expr) Expr { return Binary(OpLt, x, y) }

// And returns the conjunction of conditions. Returns true if there is no condition.
func And(conds ...Expr) Expr {
	var res Expr
	for _, cond := range conds {
		if cond == True {
			continue
		}
		if res == nil {
			res = cond
			continue
		}
		res = &BinaryExpr{Op: OpAnd, X: res, Y: cond}
	}
	if res == nil {
		return True
	}
	return res
}

// Min returns the minimum of its arguments.
func Min(args ...Expr) Expr {
	if len(args) == 1 {
		return args[0]
	}
	return &MinExpr{Args: args}
}
