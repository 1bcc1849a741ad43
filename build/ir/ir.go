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

// Package ir is the imperative intermediate representation produced by the lowerer.
//
// The IR is target agnostic: loops, conditionals, loads and stores over flat buffers.
// Parallel loops carry the parallel unit and race strategy chosen by the schedule
// so that emitters for a given target can map them to their own primitives.
package ir

import (
	"github.com/gx-org/tac/build/ir/irkind"
	"github.com/gx-org/tac/build/notation"
)

// ----------------------------------------------------------------------------
// Types of node in the tree.
type (
	// Node in the tree.
	Node interface {
		// node marks a structure as a node structure.
		// It prevents external implementations of the interface.
		node()
	}

	// Expr is an expression computing a value.
	Expr interface {
		Node
		// Kind of the value computed by the expression.
		Kind() irkind.Kind
		expr()
	}

	// Stmt is a statement.
	Stmt interface {
		Node
		stmt()
	}
)

// ----------------------------------------------------------------------------
// Operators.

// BinaryOp is a binary operator.
type BinaryOp int

// Binary operators.
const (
	OpAdd BinaryOp = iota
	OpSub
	OpMul
	OpDiv
	OpRem
	OpMin
	OpMax
	OpEq
	OpNe
	OpLt
	OpLe
	OpGt
	OpGe
	OpAnd
	OpOr
)

var binaryOpStrings = [...]string{
	OpAdd: "+",
	OpSub: "-",
	OpMul: "*",
	OpDiv: "/",
	OpRem: "%",
	OpMin: "min",
	OpMax: "max",
	OpEq:  "==",
	OpNe:  "!=",
	OpLt:  "<",
	OpLe:  "<=",
	OpGt:  ">",
	OpGe:  ">=",
	OpAnd: "&&",
	OpOr:  "||",
}

// String representation of the operator.
func (op BinaryOp) String() string {
	if op < 0 || int(op) >= len(binaryOpStrings) {
		return "?"
	}
	return binaryOpStrings[op]
}

// IsComparison returns true if the operator returns a boolean from two values.
func (op BinaryOp) IsComparison() bool {
	return op >= OpEq && op <= OpGe
}

// IsLogical returns true if the operator combines two booleans.
func (op BinaryOp) IsLogical() bool {
	return op == OpAnd || op == OpOr
}

// UnaryOp is a unary operator.
type UnaryOp int

// Unary operators.
const (
	OpNeg UnaryOp = iota
	OpNot
)

// String representation of the operator.
func (op UnaryOp) String() string {
	switch op {
	case OpNeg:
		return "-"
	case OpNot:
		return "!"
	}
	return "?"
}

// ----------------------------------------------------------------------------
// Expressions.
type (
	// Var is a scalar variable: a loop variable, a position, a coordinate or an accumulator.
	// Variables are compared by identity.
	Var struct {
		Name string
		Knd  irkind.Kind
	}

	// Const is a constant value.
	Const struct {
		Value float64
		Knd   irkind.Kind
	}

	// BinaryExpr applies a binary operator to two operands.
	BinaryExpr struct {
		Op   BinaryOp
		X, Y Expr
	}

	// UnaryExpr applies a unary operator to an operand.
	UnaryExpr struct {
		Op UnaryOp
		X  Expr
	}

	// Load reads an element of a buffer.
	Load struct {
		Buffer *Buffer
		Index  Expr
	}

	// MinExpr is the minimum of its arguments.
	MinExpr struct {
		Args []Expr
	}

	// Cast converts a value to another kind.
	Cast struct {
		Knd irkind.Kind
		X   Expr
	}
)

var (
	_ Expr = (*Var)(nil)
	_ Expr = (*Const)(nil)
	_ Expr = (*BinaryExpr)(nil)
	_ Expr = (*UnaryExpr)(nil)
	_ Expr = (*Load)(nil)
	_ Expr = (*MinExpr)(nil)
	_ Expr = (*Cast)(nil)
)

func (*Var) node() {}
func (*Var) expr() {}

// Kind of the variable.
func (v *Var) Kind() irkind.Kind { return v.Knd }

func (*Const) node() {}
func (*Const) expr() {}

// Kind of the constant.
func (c *Const) Kind() irkind.Kind { return c.Knd }

func (*BinaryExpr) node() {}
func (*BinaryExpr) expr() {}

// Kind of the result.
func (b *BinaryExpr) Kind() irkind.Kind {
	if b.Op.IsComparison() || b.Op.IsLogical() {
		return irkind.Bool
	}
	return b.X.Kind()
}

func (*UnaryExpr) node() {}
func (*UnaryExpr) expr() {}

// Kind of the result.
func (u *UnaryExpr) Kind() irkind.Kind {
	if u.Op == OpNot {
		return irkind.Bool
	}
	return u.X.Kind()
}

func (*Load) node() {}
func (*Load) expr() {}

// Kind of the element loaded.
func (l *Load) Kind() irkind.Kind { return l.Buffer.Knd }

func (*MinExpr) node() {}
func (*MinExpr) expr() {}

// Kind of the result.
func (m *MinExpr) Kind() irkind.Kind {
	if len(m.Args) == 0 {
		return irkind.Invalid
	}
	return m.Args[0].Kind()
}

func (*Cast) node() {}
func (*Cast) expr() {}

// Kind of the result.
func (c *Cast) Kind() irkind.Kind { return c.Knd }

// ----------------------------------------------------------------------------
// Statements.
type (
	// Block is a sequence of statements executed in order.
	Block struct {
		Stmts []Stmt
	}

	// Decl declares a variable initialized with a value.
	Decl struct {
		Var  *Var
		Init Expr
	}

	// Assign assigns a value to a variable.
	Assign struct {
		Var *Var
		X   Expr
	}

	// Store writes a value into a buffer.
	Store struct {
		Buffer *Buffer
		Index  Expr
		X      Expr
		// Accumulate adds X to the element instead of overwriting it.
		Accumulate bool
		// Atomic requires the update to be performed atomically.
		Atomic bool
	}

	// Parallel describes how the iterations of a loop are distributed.
	Parallel struct {
		Unit notation.ParallelUnit
		// Degree is the number of lanes. Zero lets the target choose.
		Degree int
		Race   notation.RaceStrategy
	}

	// For iterates Var from Start (inclusive) to End (exclusive) by increments of 1.
	For struct {
		Var        *Var
		Start, End Expr
		Body       *Block
		// Parallel is nil for serial loops.
		Parallel *Parallel
	}

	// While executes its body while its condition is true.
	While struct {
		Cond Expr
		Body *Block
	}

	// If executes Then if its condition is true, Else otherwise.
	If struct {
		Cond Expr
		Then *Block
		// Else may be nil.
		Else *Block
	}

	// Allocate allocates a zero-filled buffer. The buffer lives until the end of the enclosing block.
	Allocate struct {
		Buffer *Buffer
		Size   Expr
	}

	// Reduce declares an accumulator initialized to zero and executes a parallel loop in which
	// every lane adds its contribution to the accumulator with the native reduction of the target.
	// The accumulator is available after the statement.
	Reduce struct {
		Acc  *Var
		Loop *For
	}

	// Barrier waits for all the lanes of a parallel unit.
	Barrier struct {
		Unit notation.ParallelUnit
	}

	// Comment is a comment for the reader of the generated code.
	Comment struct {
		Text string
	}
)

var (
	_ Stmt = (*Block)(nil)
	_ Stmt = (*Decl)(nil)
	_ Stmt = (*Assign)(nil)
	_ Stmt = (*Store)(nil)
	_ Stmt = (*For)(nil)
	_ Stmt = (*While)(nil)
	_ Stmt = (*If)(nil)
	_ Stmt = (*Allocate)(nil)
	_ Stmt = (*Reduce)(nil)
	_ Stmt = (*Barrier)(nil)
	_ Stmt = (*Comment)(nil)
)

func (*Block) node() {}
func (*Block) stmt() {}

// Append statements to the block.
func (b *Block) Append(stmts ...Stmt) {
	b.Stmts = append(b.Stmts, stmts...)
}

// Empty returns true if the block has no statement.
func (b *Block) Empty() bool {
	return b == nil || len(b.Stmts) == 0
}

func (*Decl) node()     {}
func (*Decl) stmt()     {}
func (*Assign) node()   {}
func (*Assign) stmt()   {}
func (*Store) node()    {}
func (*Store) stmt()    {}
func (*For) node()      {}
func (*For) stmt()      {}
func (*While) node()    {}
func (*While) stmt()    {}
func (*If) node()       {}
func (*If) stmt()       {}
func (*Allocate) node() {}
func (*Allocate) stmt() {}
func (*Reduce) node()   {}
func (*Reduce) stmt()   {}
func (*Barrier) node()  {}
func (*Barrier) stmt()  {}
func (*Comment) node()  {}
func (*Comment) stmt()  {}

// IsParallel returns true if the iterations of the loop are distributed over lanes.
func (f *For) IsParallel() bool {
	return f.Parallel != nil && f.Parallel.Unit != notation.NotParallel
}
