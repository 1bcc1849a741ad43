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

// Package builder builds index notation from its textual form.
//
// Statements and expressions use a Go-like syntax:
//
//	A(i,j) = B(i,k) * C(k,j)
//	a += sum(i, B(i) * C(i))
//
// Tensors are declared before they are referenced. Index variables are
// created the first time they are referenced and shared afterwards.
package builder

import (
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"strconv"
	"sync"

	"github.com/gx-org/tac/base/ordered"
	"github.com/gx-org/tac/build/fmterr"
	"github.com/gx-org/tac/build/notation"
)

// Builder resolves the names of tensors and index variables used in index notation.
// Once all the tensors have been declared, a builder can be used concurrently.
type Builder struct {
	tensors *ordered.Map[string, *notation.TensorVar]

	mu   sync.Mutex
	vars *ordered.Map[string, *notation.IndexVar]
}

// New returns a builder with no declared tensor.
func New() *Builder {
	return &Builder{
		tensors: ordered.NewMap[string, *notation.TensorVar](),
		vars:    ordered.NewMap[string, *notation.IndexVar](),
	}
}

// Declare a tensor so that it can be referenced by name.
func (b *Builder) Declare(t *notation.TensorVar) error {
	if b.tensors.Has(t.Name()) {
		return fmterr.Errorf(fmterr.ErrInvalidNotation, "tensor %s redeclared", t.Name())
	}
	if _, builtin := builtins[t.Name()]; builtin {
		return fmterr.Errorf(fmterr.ErrInvalidNotation, "cannot declare tensor %s: %s is a builtin function", t.Name(), t.Name())
	}
	b.tensors.Store(t.Name(), t)
	return nil
}

// Tensor returns a declared tensor given its name.
func (b *Builder) Tensor(name string) (*notation.TensorVar, bool) {
	return b.tensors.Load(name)
}

// Tensors returns all the declared tensors in declaration order.
func (b *Builder) Tensors() []*notation.TensorVar {
	var all []*notation.TensorVar
	for t := range b.tensors.Values() {
		all = append(all, t)
	}
	return all
}

// IndexVar returns the index variable of a given name, creating it if necessary.
func (b *Builder) IndexVar(name string) *notation.IndexVar {
	b.mu.Lock()
	defer b.mu.Unlock()
	if v, ok := b.vars.Load(name); ok {
		return v
	}
	v := notation.NewIndexVar(name)
	b.vars.Store(name, v)
	return v
}

// Expr parses an index expression.
func (b *Builder) Expr(src string) (notation.Expr, error) {
	fset := token.NewFileSet()
	expr, err := parser.ParseExprFrom(fset, "", src, 0)
	if err != nil {
		return nil, fmterr.Wrap(fmterr.ErrInvalidNotation, err)
	}
	p := &exprParser{builder: b, fset: fset}
	e := p.expr(expr)
	if err := p.errs.ToError(); err != nil {
		return nil, err
	}
	return e, nil
}

// Assignment parses an assignment or an accumulation of an index expression into a tensor.
func (b *Builder) Assignment(src string) (*notation.Assignment, error) {
	const prefix = "package p\nfunc _() {\n"
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, "", prefix+src+"\n}\n", 0)
	if err != nil {
		return nil, fmterr.Errorf(fmterr.ErrInvalidNotation, "cannot parse %q: %v", src, err)
	}
	body := file.Decls[0].(*ast.FuncDecl).Body
	if len(body.List) != 1 {
		return nil, fmterr.Errorf(fmterr.ErrInvalidNotation, "%q: expected a single assignment, got %d statements", src, len(body.List))
	}
	assign, ok := body.List[0].(*ast.AssignStmt)
	if !ok || len(assign.Lhs) != 1 || len(assign.Rhs) != 1 {
		return nil, fmterr.Errorf(fmterr.ErrInvalidNotation, "%q is not an assignment", src)
	}
	p := &exprParser{builder: b, fset: fset, line: 2}
	var op notation.Op
	switch assign.Tok {
	case token.ASSIGN:
		op = notation.OpNone
	case token.ADD_ASSIGN:
		op = notation.OpAdd
	default:
		p.errorf(assign, "assignment operator %s not supported", assign.Tok)
	}
	lhs, _ := p.expr(assign.Lhs[0]).(*notation.Access)
	if lhs == nil && p.errs.Empty() {
		p.errorf(assign.Lhs[0], "left-hand side of %q is not a tensor access", src)
	}
	rhs := p.expr(assign.Rhs[0])
	if err := p.errs.ToError(); err != nil {
		return nil, err
	}
	return &notation.Assignment{Lhs: lhs, Rhs: rhs, Op: op}, nil
}

type exprParser struct {
	builder *Builder
	fset    *token.FileSet
	// line is the number of lines before the source in the parsed file.
	line int
	errs fmterr.Errors
}

func (p *exprParser) errorf(node ast.Node, format string, a ...any) {
	pos := p.fset.Position(node.Pos())
	msg := fmt.Sprintf(format, a...)
	p.errs.Appendf(fmterr.ErrInvalidNotation, "%d:%d: %s", pos.Line-p.line, pos.Column, msg)
}

var binaryOps = map[token.Token]notation.Op{
	token.ADD: notation.OpAdd,
	token.SUB: notation.OpSub,
	token.MUL: notation.OpMul,
	token.QUO: notation.OpDiv,
	token.EQL: notation.OpEq,
	token.LSS: notation.OpLt,
	token.GTR: notation.OpGt,
}

type builtin func(p *exprParser, call *ast.CallExpr) notation.Expr

var builtins map[string]builtin

func init() {
	builtins = map[string]builtin{
		"sum": (*exprParser).sum,
		"min": binaryBuiltin("min", notation.OpMin),
		"max": binaryBuiltin("max", notation.OpMax),
	}
}

func binaryBuiltin(name string, op notation.Op) builtin {
	return func(p *exprParser, call *ast.CallExpr) notation.Expr {
		if len(call.Args) != 2 {
			p.errorf(call, "%s expects 2 arguments, got %d", name, len(call.Args))
			return nil
		}
		x, y := p.expr(call.Args[0]), p.expr(call.Args[1])
		if x == nil || y == nil {
			return nil
		}
		return &notation.Binary{Op: op, X: x, Y: y}
	}
}

func (p *exprParser) sum(call *ast.CallExpr) notation.Expr {
	if len(call.Args) != 2 {
		p.errorf(call, "sum expects an index variable and an expression, got %d arguments", len(call.Args))
		return nil
	}
	v := p.indexVar(call.Args[0])
	x := p.expr(call.Args[1])
	if v == nil || x == nil {
		return nil
	}
	return notation.Sum(v, x)
}

func (p *exprParser) indexVar(expr ast.Expr) *notation.IndexVar {
	ident, ok := expr.(*ast.Ident)
	if !ok {
		p.errorf(expr, "expected an index variable")
		return nil
	}
	if _, isTensor := p.builder.tensors.Load(ident.Name); isTensor {
		p.errorf(expr, "%s is a tensor, not an index variable", ident.Name)
		return nil
	}
	return p.builder.IndexVar(ident.Name)
}

func (p *exprParser) access(ident *ast.Ident, args []ast.Expr) notation.Expr {
	t, ok := p.builder.tensors.Load(ident.Name)
	if !ok {
		p.errorf(ident, "undefined tensor %s", ident.Name)
		return nil
	}
	if len(args) != t.Order() {
		p.errorf(ident, "tensor %s of order %d accessed with %d indices", t.Name(), t.Order(), len(args))
		return nil
	}
	indices := make([]*notation.IndexVar, len(args))
	for i, arg := range args {
		if indices[i] = p.indexVar(arg); indices[i] == nil {
			return nil
		}
	}
	return t.Access(indices...)
}

func (p *exprParser) expr(expr ast.Expr) notation.Expr {
	switch exprT := expr.(type) {
	case *ast.ParenExpr:
		return p.expr(exprT.X)
	case *ast.BasicLit:
		if exprT.Kind != token.INT && exprT.Kind != token.FLOAT {
			p.errorf(exprT, "%s literals are not supported", exprT.Kind)
			return nil
		}
		val, err := strconv.ParseFloat(exprT.Value, 64)
		if err != nil {
			p.errorf(exprT, "cannot parse number %s: %v", exprT.Value, err)
			return nil
		}
		return notation.Lit(val)
	case *ast.Ident:
		return p.access(exprT, nil)
	case *ast.CallExpr:
		fun, ok := exprT.Fun.(*ast.Ident)
		if !ok {
			p.errorf(exprT.Fun, "expected a tensor or a builtin function")
			return nil
		}
		if b, ok := builtins[fun.Name]; ok {
			if _, shadowed := p.builder.tensors.Load(fun.Name); !shadowed {
				return b(p, exprT)
			}
		}
		return p.access(fun, exprT.Args)
	case *ast.UnaryExpr:
		x := p.expr(exprT.X)
		if x == nil {
			return nil
		}
		switch exprT.Op {
		case token.SUB:
			return &notation.Neg{X: x}
		case token.ADD:
			return x
		}
		p.errorf(exprT, "unary operator %s not supported", exprT.Op)
		return nil
	case *ast.BinaryExpr:
		op, ok := binaryOps[exprT.Op]
		if !ok {
			p.errorf(exprT, "binary operator %s not supported", exprT.Op)
			return nil
		}
		x, y := p.expr(exprT.X), p.expr(exprT.Y)
		if x == nil || y == nil {
			return nil
		}
		return &notation.Binary{Op: op, X: x, Y: y}
	}
	p.errorf(expr, "%T not supported in index notation", expr)
	return nil
}
