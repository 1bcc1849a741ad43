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
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/gx-org/tac/base/stringseq"
)

// Op is an operator of index notation.
type Op int

// Operators of index notation.
const (
	OpNone Op = iota
	OpAdd
	OpSub
	OpMul
	OpDiv
	OpMin
	OpMax
	OpEq
	OpLt
	OpGt
)

var opStrings = map[Op]string{
	OpNone: "",
	OpAdd:  "+",
	OpSub:  "-",
	OpMul:  "*",
	OpDiv:  "/",
	OpMin:  "min",
	OpMax:  "max",
	OpEq:   "==",
	OpLt:   "<",
	OpGt:   ">",
}

// String representation of the operator.
func (op Op) String() string {
	if s, ok := opStrings[op]; ok {
		return s
	}
	return fmt.Sprintf("Op(%d)", int(op))
}

// IsComparison returns true if the operator compares its operands.
func (op Op) IsComparison() bool {
	return op == OpEq || op == OpLt || op == OpGt
}

func (op Op) isCall() bool {
	return op == OpMin || op == OpMax
}

func (op Op) precedence() int {
	switch op {
	case OpMul, OpDiv:
		return 3
	case OpAdd, OpSub:
		return 2
	case OpEq, OpLt, OpGt:
		return 1
	}
	return 4
}

type (
	// Expr is an index expression.
	Expr interface {
		fmt.Stringer
		expr()
	}

	// Access reads or writes a tensor at the coordinates given by index variables.
	Access struct {
		Tensor  *TensorVar
		Indices []*IndexVar
	}

	// Literal is a constant.
	Literal struct {
		Value float64
	}

	// Neg negates an expression.
	Neg struct {
		X Expr
	}

	// Binary is a binary operation.
	Binary struct {
		Op   Op
		X, Y Expr
	}

	// Reduction reduces an expression over all the values of an index variable.
	Reduction struct {
		Op  Op
		Var *IndexVar
		X   Expr
	}
)

var (
	_ Expr = (*Access)(nil)
	_ Expr = (*Literal)(nil)
	_ Expr = (*Neg)(nil)
	_ Expr = (*Binary)(nil)
	_ Expr = (*Reduction)(nil)
)

// Lit returns a literal.
func Lit(v float64) *Literal { return &Literal{Value: v} }

// Add returns x + y.
func Add(x, y Expr) *Binary { return &Binary{Op: OpAdd, X: x, Y: y} }

// Sub returns x - y.
func Sub(x, y Expr) *Binary { return &Binary{Op: OpSub, X: x, Y: y} }

// Mul returns x * y.
func Mul(x, y Expr) *Binary { return &Binary{Op: OpMul, X: x, Y: y} }

// Div returns x / y.
func Div(x, y Expr) *Binary { return &Binary{Op: OpDiv, X: x, Y: y} }

// Min returns min(x, y).
func Min(x, y Expr) *Binary { return &Binary{Op: OpMin, X: x, Y: y} }

// Max returns max(x, y).
func Max(x, y Expr) *Binary { return &Binary{Op: OpMax, X: x, Y: y} }

// Sum reduces x with an addition over all the values of v.
func Sum(v *IndexVar, x Expr) *Reduction { return &Reduction{Op: OpAdd, Var: v, X: x} }

func (*Access) expr() {}

// IsScalar returns true if the access has no index.
func (a *Access) IsScalar() bool { return len(a.Indices) == 0 }

// IndexOf returns the position of v in the indices of the access or -1.
func (a *Access) IndexOf(v *IndexVar) int {
	for i, idx := range a.Indices {
		if idx == v {
			return i
		}
	}
	return -1
}

// String representation of the access.
func (a *Access) String() string {
	if len(a.Indices) == 0 {
		return a.Tensor.String()
	}
	var s strings.Builder
	s.WriteString(a.Tensor.String())
	s.WriteString("(")
	stringseq.WriteStringers(&s, slices.Values(a.Indices), ",")
	s.WriteString(")")
	return s.String()
}

func (*Literal) expr() {}

// String representation of the literal.
func (l *Literal) String() string {
	return strconv.FormatFloat(l.Value, 'g', -1, 64)
}

func (*Neg) expr() {}

// String representation of the negation.
func (n *Neg) String() string {
	if _, ok := n.X.(*Binary); ok {
		return "-(" + n.X.String() + ")"
	}
	return "-" + n.X.String()
}

func (*Binary) expr() {}

func operandString(parent Op, x Expr, right bool) string {
	bin, ok := x.(*Binary)
	if !ok || bin.Op.isCall() {
		return x.String()
	}
	prec, parentPrec := bin.Op.precedence(), parent.precedence()
	if prec > parentPrec || (prec == parentPrec && !right) {
		return x.String()
	}
	return "(" + x.String() + ")"
}

// String representation of the binary expression.
func (b *Binary) String() string {
	if b.Op.isCall() {
		return fmt.Sprintf("%s(%s, %s)", b.Op, b.X, b.Y)
	}
	return operandString(b.Op, b.X, false) + " " + b.Op.String() + " " + operandString(b.Op, b.Y, true)
}

func (*Reduction) expr() {}

// String representation of the reduction.
func (r *Reduction) String() string {
	if r.Op == OpAdd {
		return fmt.Sprintf("sum(%s, %s)", r.Var, r.X)
	}
	return fmt.Sprintf("reduce(%s, %s, %s)", r.Op, r.Var, r.X)
}
