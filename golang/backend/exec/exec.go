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

// Package exec runs lowered kernels with the Go reference backend.
//
// The executor interprets the IR of a function: it is slow but it implements
// the semantics every target has to match. Parallel loops are executed serially,
// lane after lane, which is one of the valid schedules of a parallel loop.
package exec

import (
	"context"
	"math"

	"github.com/gx-org/backend/shape"
	"github.com/gx-org/tac/build/ir"
	"github.com/gx-org/tac/build/ir/irkind"
	"github.com/gx-org/tac/golang/backend/kernels"
	"github.com/gx-org/tac/golang/backend/storage"
	"github.com/pkg/errors"
)

// checkEvery is the number of loop iterations between two checks of the context.
const checkEvery = 1 << 14

type (
	// Tensors maps tensor names to their storage.
	Tensors map[string]*storage.Tensor

	machine struct {
		ctx   context.Context
		fn    *ir.Function
		bufs  map[*ir.Buffer][]float64
		vars  map[*ir.Var]float64
		steps int
	}
)

// Run executes a function. Inputs are given by tensor name and must be stored
// with the dimensions and the format of the function arguments.
// Returns the outputs of the function, trimmed to the positions in use.
func Run(ctx context.Context, fn *ir.Function, inputs Tensors) (Tensors, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m := &machine{
		ctx:  ctx,
		fn:   fn,
		bufs: make(map[*ir.Buffer][]float64),
		vars: make(map[*ir.Var]float64),
	}
	for name := range inputs {
		arg := fn.TensorByName(name)
		if arg == nil {
			return nil, errors.Errorf("kernel %s has no tensor %s", fn.Name, name)
		}
		if arg.Output {
			return nil, errors.Errorf("tensor %s is an output of kernel %s", name, fn.Name)
		}
	}
	outs := make(map[*ir.TensorArg]*storage.Tensor)
	for _, arg := range fn.Tensors {
		if arg.Output {
			t, err := storage.Allocate(argShape(arg), arg.Tensor.Format())
			if err != nil {
				return nil, errors.Wrapf(err, "cannot allocate output %s", arg.Tensor.Name())
			}
			outs[arg] = t
			m.bind(arg, t)
			continue
		}
		t := inputs[arg.Tensor.Name()]
		if t == nil {
			return nil, errors.Errorf("missing input %s", arg.Tensor.Name())
		}
		if err := checkInput(arg, t); err != nil {
			return nil, err
		}
		m.bind(arg, t)
	}
	if err := m.block(fn.Body); err != nil {
		return nil, errors.Wrapf(err, "kernel %s", fn.Name)
	}
	res := make(Tensors, len(outs))
	for arg, t := range outs {
		m.unbind(arg, t)
		if err := t.Trim(); err != nil {
			return nil, errors.Wrapf(err, "output %s", arg.Tensor.Name())
		}
		res[arg.Tensor.Name()] = t
	}
	return res, nil
}

func argShape(arg *ir.TensorArg) shape.Shape {
	return shape.Shape{DType: arg.Tensor.DType(), AxisLengths: arg.Dims}
}

func checkInput(arg *ir.TensorArg, t *storage.Tensor) error {
	name := arg.Tensor.Name()
	if len(t.Shape.AxisLengths) != len(arg.Dims) {
		return errors.Errorf("input %s: got %d axes, want %d", name, len(t.Shape.AxisLengths), len(arg.Dims))
	}
	for i, n := range arg.Dims {
		if t.Shape.AxisLengths[i] != n {
			return errors.Errorf("input %s: axis %d has length %d, want %d", name, i, t.Shape.AxisLengths[i], n)
		}
	}
	if !t.Format.Equal(arg.Tensor.Format()) {
		return errors.Errorf("input %s: got format %s, want %s", name, t.Format, arg.Tensor.Format())
	}
	if _, err := t.Positions(); err != nil {
		return errors.Wrapf(err, "input %s", name)
	}
	return nil
}

func toFloats(s []int) []float64 {
	fs := make([]float64, len(s))
	for i, x := range s {
		fs[i] = float64(x)
	}
	return fs
}

func toInts(dst []int, src []float64) {
	for i, x := range src {
		dst[i] = int(x)
	}
}

// bind copies the buffers of a tensor into the machine.
func (m *machine) bind(arg *ir.TensorArg, t *storage.Tensor) {
	for k, lvl := range arg.Levels {
		if lvl.Pos != nil {
			m.bufs[lvl.Pos] = toFloats(t.Levels[k].Pos)
		}
		if lvl.Crd != nil {
			m.bufs[lvl.Crd] = toFloats(t.Levels[k].Crd)
		}
	}
	m.bufs[arg.Vals] = append([]float64(nil), t.Vals...)
}

// unbind copies the buffers of the machine back into a tensor.
func (m *machine) unbind(arg *ir.TensorArg, t *storage.Tensor) {
	for k, lvl := range arg.Levels {
		if lvl.Pos != nil {
			toInts(t.Levels[k].Pos, m.bufs[lvl.Pos])
		}
		if lvl.Crd != nil {
			toInts(t.Levels[k].Crd, m.bufs[lvl.Crd])
		}
	}
	copy(t.Vals, m.bufs[arg.Vals])
}

func (m *machine) tick() error {
	m.steps++
	if m.steps%checkEvery != 0 {
		return nil
	}
	return m.ctx.Err()
}

func (m *machine) buffer(b *ir.Buffer) ([]float64, error) {
	buf, ok := m.bufs[b]
	if !ok {
		return nil, errors.Errorf("buffer %s has not been allocated", b.Name)
	}
	return buf, nil
}

func (m *machine) index(b *ir.Buffer, x ir.Expr) ([]float64, int, error) {
	buf, err := m.buffer(b)
	if err != nil {
		return nil, 0, err
	}
	v, err := m.expr(x)
	if err != nil {
		return nil, 0, err
	}
	i := int(v)
	if i < 0 || i >= len(buf) {
		return nil, 0, errors.Errorf("index %d out of bounds of %s[%d]", i, b.Name, len(buf))
	}
	return buf, i, nil
}

func convert(knd irkind.Kind, x float64) (float64, error) {
	f, err := kernels.FactoryFor(knd)
	if err != nil {
		return 0, err
	}
	return f.Convert(x), nil
}

func (m *machine) expr(x ir.Expr) (float64, error) {
	switch xT := x.(type) {
	case *ir.Const:
		return xT.Value, nil
	case *ir.Var:
		v, ok := m.vars[xT]
		if !ok {
			return 0, errors.Errorf("variable %s has not been declared", xT.Name)
		}
		return v, nil
	case *ir.Load:
		buf, i, err := m.index(xT.Buffer, xT.Index)
		if err != nil {
			return 0, err
		}
		return buf[i], nil
	case *ir.UnaryExpr:
		return m.unary(xT)
	case *ir.BinaryExpr:
		return m.binary(xT)
	case *ir.MinExpr:
		res := math.Inf(1)
		for _, arg := range xT.Args {
			v, err := m.expr(arg)
			if err != nil {
				return 0, err
			}
			res = min(res, v)
		}
		return res, nil
	case *ir.Cast:
		v, err := m.expr(xT.X)
		if err != nil {
			return 0, err
		}
		return convert(xT.Knd, v)
	}
	return 0, errors.Errorf("expression %T not supported", x)
}

func (m *machine) unary(u *ir.UnaryExpr) (float64, error) {
	x, err := m.expr(u.X)
	if err != nil {
		return 0, err
	}
	f, err := kernels.FactoryFor(u.X.Kind())
	if err != nil {
		return 0, err
	}
	kernel, err := f.UnaryOp(u.Op)
	if err != nil {
		return 0, err
	}
	return kernel(x), nil
}

func (m *machine) binary(b *ir.BinaryExpr) (float64, error) {
	x, err := m.expr(b.X)
	if err != nil {
		return 0, err
	}
	switch {
	case b.Op == ir.OpAnd && x == 0:
		return 0, nil
	case b.Op == ir.OpOr && x != 0:
		return 1, nil
	}
	y, err := m.expr(b.Y)
	if err != nil {
		return 0, err
	}
	f, err := kernels.FactoryFor(b.X.Kind())
	if err != nil {
		return 0, err
	}
	kernel, err := f.BinaryOp(b.Op)
	if err != nil {
		return 0, err
	}
	return kernel(x, y)
}

func (m *machine) block(b *ir.Block) error {
	if b == nil {
		return nil
	}
	for _, s := range b.Stmts {
		if err := m.stmt(s); err != nil {
			return err
		}
	}
	return nil
}

func (m *machine) stmt(s ir.Stmt) error {
	switch sT := s.(type) {
	case *ir.Block:
		return m.block(sT)
	case *ir.Decl:
		return m.assign(sT.Var, sT.Init)
	case *ir.Assign:
		return m.assign(sT.Var, sT.X)
	case *ir.Store:
		return m.store(sT)
	case *ir.For:
		return m.loop(sT)
	case *ir.While:
		return m.while(sT)
	case *ir.If:
		cond, err := m.expr(sT.Cond)
		if err != nil {
			return err
		}
		if cond != 0 {
			return m.block(sT.Then)
		}
		return m.block(sT.Else)
	case *ir.Allocate:
		size, err := m.expr(sT.Size)
		if err != nil {
			return err
		}
		if size < 0 {
			return errors.Errorf("cannot allocate %s with a negative size %v", sT.Buffer.Name, size)
		}
		m.bufs[sT.Buffer] = make([]float64, int(size))
		return nil
	case *ir.Reduce:
		m.vars[sT.Acc] = 0
		return m.loop(sT.Loop)
	case *ir.Barrier, *ir.Comment:
		return nil
	}
	return errors.Errorf("statement %T not supported", s)
}

func (m *machine) assign(v *ir.Var, x ir.Expr) error {
	val, err := m.expr(x)
	if err != nil {
		return err
	}
	if m.vars[v], err = convert(v.Knd, val); err != nil {
		return errors.Wrapf(err, "variable %s", v.Name)
	}
	return nil
}

func (m *machine) store(s *ir.Store) error {
	buf, i, err := m.index(s.Buffer, s.Index)
	if err != nil {
		return err
	}
	x, err := m.expr(s.X)
	if err != nil {
		return err
	}
	f, err := kernels.FactoryFor(s.Buffer.Knd)
	if err != nil {
		return errors.Wrapf(err, "buffer %s", s.Buffer.Name)
	}
	if s.Accumulate {
		add, err := f.BinaryOp(ir.OpAdd)
		if err != nil {
			return err
		}
		if x, err = add(buf[i], x); err != nil {
			return err
		}
	}
	buf[i] = f.Convert(x)
	return nil
}

func (m *machine) loop(f *ir.For) error {
	start, err := m.expr(f.Start)
	if err != nil {
		return err
	}
	m.vars[f.Var] = start
	for {
		end, err := m.expr(f.End)
		if err != nil {
			return err
		}
		if m.vars[f.Var] >= end {
			return nil
		}
		if err := m.block(f.Body); err != nil {
			return err
		}
		if err := m.tick(); err != nil {
			return err
		}
		m.vars[f.Var]++
	}
}

func (m *machine) while(w *ir.While) error {
	for {
		cond, err := m.expr(w.Cond)
		if err != nil {
			return err
		}
		if cond == 0 {
			return nil
		}
		if err := m.block(w.Body); err != nil {
			return err
		}
		if err := m.tick(); err != nil {
			return err
		}
	}
}
