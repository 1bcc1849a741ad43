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

// Package irstring renders the imperative IR as pseudo-code.
package irstring

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	tacfmt "github.com/gx-org/tac/base/fmt"
	"github.com/gx-org/tac/base/stringseq"
	"github.com/gx-org/tac/build/ir"
	"github.com/gx-org/tac/build/ir/irkind"
)

// String returns the pseudo-code of a function.
func String(fn *ir.Function) string {
	var s strings.Builder
	fmt.Fprintf(&s, "kernel %s(", fn.Name)
	if len(fn.Tensors) > 0 {
		s.WriteString("\n")
	}
	for _, arg := range fn.Tensors {
		s.WriteString(tacfmt.Indent(TensorArg(arg) + "\n"))
	}
	fmt.Fprintf(&s, ") target %s ", fn.Target)
	s.WriteString(Block(fn.Body))
	return s.String()
}

// TensorArg returns the declaration of a tensor argument.
func TensorArg(arg *ir.TensorArg) string {
	direction := "in"
	if arg.Output {
		direction = "out"
	}
	dims := stringseq.Join(stringseq.Map(slices.Values(arg.Dims), strconv.Itoa), ",")
	var bufs []string
	for _, buf := range arg.Buffers() {
		bufs = append(bufs, buf.Name)
	}
	var levels []string
	for _, lvl := range arg.Levels {
		levels = append(levels, lvl.Level.String())
	}
	return fmt.Sprintf("%s %s %s[%s] %s: %s",
		direction,
		arg.Tensor.Name(),
		irkind.FromDType(arg.Tensor.DType()),
		dims,
		strings.Join(levels, ","),
		strings.Join(bufs, " "),
	)
}

// Block returns the pseudo-code of a block of statements, including the enclosing braces.
func Block(b *ir.Block) string {
	if b.Empty() {
		return "{}"
	}
	var s strings.Builder
	s.WriteString("{\n")
	for _, stmt := range b.Stmts {
		s.WriteString(tacfmt.Indent(Stmt(stmt) + "\n"))
	}
	s.WriteString("}")
	return s.String()
}

// Stmt returns the pseudo-code of a statement.
func Stmt(stmt ir.Stmt) string {
	switch sT := stmt.(type) {
	case *ir.Block:
		return Block(sT)
	case *ir.Decl:
		return fmt.Sprintf("var %s %s = %s", sT.Var.Name, sT.Var.Knd, Expr(sT.Init))
	case *ir.Assign:
		return fmt.Sprintf("%s = %s", sT.Var.Name, Expr(sT.X))
	case *ir.Store:
		op := "="
		if sT.Accumulate {
			op = "+="
		}
		prefix := ""
		if sT.Atomic {
			prefix = "atomic "
		}
		return fmt.Sprintf("%s%s[%s] %s %s", prefix, sT.Buffer.Name, Expr(sT.Index), op, Expr(sT.X))
	case *ir.For:
		return forString(sT)
	case *ir.While:
		return fmt.Sprintf("while %s %s", Expr(sT.Cond), Block(sT.Body))
	case *ir.If:
		s := fmt.Sprintf("if %s %s", Expr(sT.Cond), Block(sT.Then))
		if !sT.Else.Empty() {
			s += " else " + Block(sT.Else)
		}
		return s
	case *ir.Allocate:
		return fmt.Sprintf("alloc %s %s %s[%s]", sT.Buffer.Memory, sT.Buffer.Knd, sT.Buffer.Name, Expr(sT.Size))
	case *ir.Reduce:
		return fmt.Sprintf("%s = reduce %s", sT.Acc.Name, forString(sT.Loop))
	case *ir.Barrier:
		return fmt.Sprintf("barrier(%s)", sT.Unit)
	case *ir.Comment:
		return "// " + sT.Text
	}
	return fmt.Sprintf("<unknown statement %T>", stmt)
}

func forString(f *ir.For) string {
	prefix := ""
	if f.Parallel != nil {
		prefix = fmt.Sprintf("parallel(%s, %d, %s) ", f.Parallel.Unit, f.Parallel.Degree, f.Parallel.Race)
	}
	return fmt.Sprintf("%sfor %s := %s; %s < %s; %s++ %s",
		prefix,
		f.Var.Name, Expr(f.Start),
		f.Var.Name, Expr(f.End),
		f.Var.Name,
		Block(f.Body))
}

func precedence(op ir.BinaryOp) int {
	switch op {
	case ir.OpOr:
		return 1
	case ir.OpAnd:
		return 2
	case ir.OpEq, ir.OpNe, ir.OpLt, ir.OpLe, ir.OpGt, ir.OpGe:
		return 3
	case ir.OpAdd, ir.OpSub:
		return 4
	case ir.OpMul, ir.OpDiv, ir.OpRem:
		return 5
	}
	return 6
}

func operand(parent ir.BinaryOp, x ir.Expr, right bool) string {
	bin, ok := x.(*ir.BinaryExpr)
	if !ok || bin.Op == ir.OpMin || bin.Op == ir.OpMax {
		return Expr(x)
	}
	p, c := precedence(parent), precedence(bin.Op)
	if c < p || (c == p && right) {
		return "(" + Expr(x) + ")"
	}
	return Expr(x)
}

func constString(c *ir.Const) string {
	switch {
	case c.Knd == irkind.Bool:
		return strconv.FormatBool(c.Value != 0)
	case irkind.IsIntegerKind(c.Knd):
		return strconv.FormatInt(int64(c.Value), 10)
	}
	return strconv.FormatFloat(c.Value, 'g', -1, 64)
}

// Expr returns the pseudo-code of an expression.
func Expr(x ir.Expr) string {
	switch xT := x.(type) {
	case *ir.Var:
		return xT.Name
	case *ir.Const:
		return constString(xT)
	case *ir.BinaryExpr:
		if xT.Op == ir.OpMin || xT.Op == ir.OpMax {
			return fmt.Sprintf("%s(%s, %s)", xT.Op, Expr(xT.X), Expr(xT.Y))
		}
		return fmt.Sprintf("%s %s %s", operand(xT.Op, xT.X, false), xT.Op, operand(xT.Op, xT.Y, true))
	case *ir.UnaryExpr:
		if _, ok := xT.X.(*ir.BinaryExpr); ok {
			return fmt.Sprintf("%s(%s)", xT.Op, Expr(xT.X))
		}
		return xT.Op.String() + Expr(xT.X)
	case *ir.Load:
		return fmt.Sprintf("%s[%s]", xT.Buffer.Name, Expr(xT.Index))
	case *ir.MinExpr:
		args := make([]string, len(xT.Args))
		for i, arg := range xT.Args {
			args[i] = Expr(arg)
		}
		return "min(" + strings.Join(args, ", ") + ")"
	case *ir.Cast:
		return fmt.Sprintf("%s(%s)", xT.Knd, Expr(xT.X))
	}
	return fmt.Sprintf("<unknown expression %T>", x)
}
