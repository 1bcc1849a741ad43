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

// Package lower lowers concrete index notation to the imperative IR.
//
// Dense loops iterate over the static extent of their index variable.
// Loops over sparse levels walk the positions of the levels and loops
// co-iterating several sparse levels follow the merge lattice of their expression.
package lower

import (
	"fmt"

	"github.com/gx-org/tac/base/ordered"
	"github.com/gx-org/tac/base/uname"
	"github.com/gx-org/tac/build/fmterr"
	"github.com/gx-org/tac/build/ir"
	"github.com/gx-org/tac/build/ir/irkind"
	"github.com/gx-org/tac/build/notation"
	"github.com/gx-org/tac/build/target"
)

type (
	// tensorInfo are the buffers storing a tensor during lowering.
	tensorInfo struct {
		tensor *notation.TensorVar
		dims   []int
		levels []*ir.LevelArg
		vals   *ir.Buffer
		arg    *ir.TensorArg
		// counts of the positions appended to the compressed levels of an output.
		counts []*ir.Var
	}

	levelKey struct {
		access *notation.Access
		level  int
	}

	// levelPos is the position of an access in a level.
	// Non-unique levels also store the end of the segment of duplicated coordinates.
	levelPos struct {
		pos    ir.Expr
		segEnd ir.Expr
	}

	lowerer struct {
		cfg     target.Config
		ext     *notation.Extents
		prov    *notation.Provenance
		names   *uname.Unique
		tensors *ordered.Map[*notation.TensorVar, *tensorInfo]

		values    map[*notation.IndexVar]ir.Expr
		levels    map[levelKey]levelPos
		redirects []*redirect
		atomics   []map[*notation.TensorVar]bool
	}
)

// Lower lowers a concrete statement to a function for the target of the configuration.
// All failures are returned before any IR is produced.
func Lower(s notation.Stmt, name string, cfg target.Config) (*ir.Function, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if s == nil {
		return nil, fmterr.Errorf(fmterr.ErrInvalidNotation, "cannot lower a nil statement")
	}
	if err := notation.ValidateStmt(s); err != nil {
		return nil, err
	}
	for _, a := range notation.Assignments(s) {
		if notation.HasReductions(a.Rhs) {
			return nil, fmterr.Errorf(fmterr.ErrInvalidNotation, "cannot lower %s: statement has not been concretized", a)
		}
	}
	if err := notation.Verify(s); err != nil {
		return nil, err
	}
	l := &lowerer{
		cfg:     cfg,
		ext:     notation.NewExtents(s),
		prov:    notation.ProvenanceOf(s),
		names:   uname.New(),
		tensors: ordered.NewMap[*notation.TensorVar, *tensorInfo](),
		values:  make(map[*notation.IndexVar]ir.Expr),
		levels:  make(map[levelKey]levelPos),
	}
	return l.function(s, name)
}

func (l *lowerer) function(s notation.Stmt, name string) (*ir.Function, error) {
	fn := &ir.Function{
		Name:   name,
		Target: l.cfg.Target.String(),
		Body:   ir.NewBlock(),
	}
	for _, t := range notation.Tensors(s) {
		l.names.Register(t.Name())
	}
	// Temporaries are added to l.tensors while lowering: only user tensors are outputs.
	var outputs []*tensorInfo
	for _, t := range notation.Tensors(s) {
		if t.Temporary() {
			continue
		}
		info, err := l.tensorArg(s, t)
		if err != nil {
			return nil, err
		}
		l.tensors.Store(t, info)
		fn.Tensors = append(fn.Tensors, info.arg)
		if info.arg.Output {
			outputs = append(outputs, info)
		}
	}
	for _, info := range outputs {
		l.initOutput(fn.Body, info)
	}
	body, _ := notation.Root(s)
	if err := l.stmt(fn.Body, body); err != nil {
		return nil, err
	}
	for _, info := range outputs {
		l.finalizeOutput(fn.Body, info)
	}
	return fn, nil
}

// tensorArg creates the buffers of a tensor given by the user.
func (l *lowerer) tensorArg(s notation.Stmt, t *notation.TensorVar) (*tensorInfo, error) {
	dims, err := l.userDims(s, t)
	if err != nil {
		return nil, err
	}
	output := false
	for _, a := range notation.Assignments(s) {
		if a.Lhs.Tensor == t {
			output = true
		}
	}
	info := &tensorInfo{
		tensor: t,
		dims:   dims,
		vals:   &ir.Buffer{Name: l.names.Name(t.Name() + "_vals"), Knd: irkind.FromDType(t.DType()), Memory: t.Memory()},
	}
	format := t.Format()
	for k, lvl := range format.Levels() {
		arg := &ir.LevelArg{Level: lvl, Size: dims[format.Dimension(k)]}
		prefix := fmt.Sprintf("%s%d", t.Name(), k+1)
		switch lvl.Kind {
		case notation.Compressed:
			arg.Pos = &ir.Buffer{Name: l.names.Name(prefix + "_pos"), Knd: irkind.Index}
			arg.Crd = &ir.Buffer{Name: l.names.Name(prefix + "_crd"), Knd: irkind.Index}
		case notation.Singleton:
			if k == 0 {
				return nil, fmterr.Errorf(fmterr.ErrUnsupportedFormat, "tensor %s: the first level cannot be a singleton", t)
			}
			arg.Crd = &ir.Buffer{Name: l.names.Name(prefix + "_crd"), Knd: irkind.Index}
		}
		info.levels = append(info.levels, arg)
	}
	info.arg = &ir.TensorArg{
		Tensor: t,
		Output: output,
		Dims:   dims,
		Levels: info.levels,
		Vals:   info.vals,
	}
	if output && !format.AllDense() {
		if err := l.checkSparseOutput(s, info); err != nil {
			return nil, err
		}
	}
	return info, nil
}

// userDims returns the static sizes of the dimensions of a tensor given by the user.
func (l *lowerer) userDims(s notation.Stmt, t *notation.TensorVar) ([]int, error) {
	dims := make([]int, t.Order())
	for k, d := range t.Dims() {
		if d.IsFixed() {
			dims[k] = d.Size()
			continue
		}
		v := d.Var()
		if v == nil {
			v = accessVar(s, t, k)
		}
		if v == nil {
			return nil, fmterr.Errorf(fmterr.ErrUnboundIndexVar, "dimension %d of tensor %s has no static size", k, t)
		}
		size, err := l.ext.Limit(v)
		if err != nil {
			return nil, err
		}
		dims[k] = size
	}
	return dims, nil
}

func accessVar(s notation.Stmt, t *notation.TensorVar, k int) *notation.IndexVar {
	for _, a := range notation.Accesses(s) {
		if a.Tensor == t && k < len(a.Indices) {
			return a.Indices[k]
		}
	}
	return nil
}

// temporary allocates the buffer of a temporary.
func (l *lowerer) temporary(blk *ir.Block, t *notation.TensorVar) (*tensorInfo, error) {
	if !t.Format().AllDense() {
		return nil, fmterr.Errorf(fmterr.ErrUnsupportedFormat, "temporary %s: only dense temporaries are supported, got format %s", t, t.Format())
	}
	dims := make([]int, t.Order())
	for k, d := range t.Dims() {
		switch {
		case d.IsFixed():
			dims[k] = d.Size()
		case d.Var() != nil:
			ext, err := l.ext.Of(d.Var())
			if err != nil {
				return nil, err
			}
			dims[k] = ext.Size
		default:
			return nil, fmterr.Errorf(fmterr.ErrUnboundIndexVar, "dimension %d of temporary %s has no static size", k, t)
		}
	}
	info := &tensorInfo{
		tensor: t,
		dims:   dims,
		vals:   &ir.Buffer{Name: l.names.Name(t.Name()), Knd: irkind.FromDType(t.DType()), Memory: t.Memory()},
	}
	format := t.Format()
	for k, lvl := range format.Levels() {
		info.levels = append(info.levels, &ir.LevelArg{Level: lvl, Size: dims[format.Dimension(k)]})
	}
	blk.Append(&ir.Allocate{Buffer: info.vals, Size: ir.Int(info.size())})
	l.tensors.Store(t, info)
	return info, nil
}

// size returns the number of positions of the last level of a dense tensor
// or the maximum number of positions of a sparse tensor.
func (info *tensorInfo) size() int {
	size := 1
	for _, d := range info.dims {
		size *= d
	}
	return size
}

// capacity returns the maximum number of positions of the levels above level k.
func (info *tensorInfo) capacity(k int) int {
	size := 1
	for _, lvl := range info.levels[:k] {
		size *= lvl.Size
	}
	return size
}

func (l *lowerer) info(t *notation.TensorVar) (*tensorInfo, error) {
	info, ok := l.tensors.Load(t)
	if !ok {
		return nil, fmterr.Internalf("tensor %s has no buffer", t)
	}
	return info, nil
}

func (l *lowerer) stmt(blk *ir.Block, s notation.Stmt) error {
	switch sT := s.(type) {
	case *notation.Assignment:
		return l.assignment(blk, sT)
	case *notation.Forall:
		return l.forall(blk, sT)
	case *notation.Where:
		return l.where(blk, sT)
	case *notation.Sequence:
		for _, child := range sT.Stmts {
			if err := l.stmt(blk, child); err != nil {
				return err
			}
		}
		return nil
	case *notation.SuchThat:
		return l.stmt(blk, sT.Stmt)
	}
	return fmterr.Internalf("statement %T not supported", s)
}

func (l *lowerer) where(blk *ir.Block, w *notation.Where) error {
	// Temporaries of wheres nested in the producer are allocated by those wheres.
	nested := notation.Locals(w.Producer)
	temps := ordered.NewSet[*notation.TensorVar]()
	for _, a := range notation.Assignments(w.Producer) {
		if a.Lhs.Tensor.Temporary() && !nested[a.Lhs.Tensor] {
			temps.Add(a.Lhs.Tensor)
		}
	}
	for _, t := range temps.Slice() {
		if _, err := l.temporary(blk, t); err != nil {
			return err
		}
	}
	if err := l.stmt(blk, w.Producer); err != nil {
		return err
	}
	return l.stmt(blk, w.Consumer)
}

func (l *lowerer) assignment(blk *ir.Block, a *notation.Assignment) error {
	info, err := l.info(a.Lhs.Tensor)
	if err != nil {
		return err
	}
	if info.arg != nil && !l.cfg.Compute {
		return nil
	}
	x, err := l.expr(a.Rhs, info.vals.Knd)
	if err != nil {
		return err
	}
	pos, err := l.position(a.Lhs)
	if err != nil {
		return err
	}
	return l.store(blk, info, pos, x, a.Op)
}
