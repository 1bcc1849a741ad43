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

package lower

import (
	"github.com/gx-org/tac/build/fmterr"
	"github.com/gx-org/tac/build/ir"
	"github.com/gx-org/tac/build/ir/irkind"
	"github.com/gx-org/tac/build/notation"
)

var binaryOps = map[notation.Op]ir.BinaryOp{
	notation.OpAdd: ir.OpAdd,
	notation.OpSub: ir.OpSub,
	notation.OpMul: ir.OpMul,
	notation.OpDiv: ir.OpDiv,
	notation.OpMin: ir.OpMin,
	notation.OpMax: ir.OpMax,
	notation.OpEq:  ir.OpEq,
	notation.OpLt:  ir.OpLt,
	notation.OpGt:  ir.OpGt,
}

// levelVar returns the index variable accessing level k of a.
func levelVar(a *notation.Access, k int) *notation.IndexVar {
	return a.Indices[a.Tensor.Format().Dimension(k)]
}

// position returns the position of an access in the values of its tensor.
func (l *lowerer) position(a *notation.Access) (ir.Expr, error) {
	info, err := l.info(a.Tensor)
	if err != nil {
		return nil, err
	}
	if len(info.levels) == 0 {
		return ir.Int(0), nil
	}
	lp, err := l.levelPosition(a, info, len(info.levels)-1)
	if err != nil {
		return nil, err
	}
	if lp.segEnd != nil {
		return nil, fmterr.Errorf(fmterr.ErrUnsupportedFormat, "cannot access %s: the last level of %s is not unique", a, a.Tensor)
	}
	return lp.pos, nil
}

// levelPosition returns the position of an access in level k of its tensor.
// Sparse levels must have been iterated by an enclosing loop. Dense levels
// are located from the position of their parent and the value of their index variable.
func (l *lowerer) levelPosition(a *notation.Access, info *tensorInfo, k int) (levelPos, error) {
	if lp, ok := l.levels[levelKey{access: a, level: k}]; ok {
		return lp, nil
	}
	lvl := info.levels[k]
	v := levelVar(a, k)
	if !lvl.Level.IsDense() {
		return levelPos{}, fmterr.Errorf(fmterr.ErrUnsupportedFormat, "cannot locate %s: level %d is %s and no enclosing loop iterates over it with %s", a, k+1, lvl.Level, v)
	}
	parent := levelPos{pos: ir.Int(0)}
	if k > 0 {
		var err error
		if parent, err = l.levelPosition(a, info, k-1); err != nil {
			return levelPos{}, err
		}
		if parent.segEnd != nil {
			return levelPos{}, fmterr.Errorf(fmterr.ErrUnsupportedFormat, "cannot locate %s: dense level %d follows a non-unique level", a, k+1)
		}
	}
	x, err := l.value(v)
	if err != nil {
		return levelPos{}, err
	}
	return levelPos{pos: ir.Add(ir.Mul(parent.pos, ir.Int(lvl.Size)), x)}, nil
}

// expr lowers an expression computing values of a given kind.
func (l *lowerer) expr(e notation.Expr, knd irkind.Kind) (ir.Expr, error) {
	switch eT := e.(type) {
	case *notation.Access:
		info, err := l.info(eT.Tensor)
		if err != nil {
			return nil, err
		}
		pos, err := l.position(eT)
		if err != nil {
			return nil, err
		}
		var x ir.Expr = &ir.Load{Buffer: info.vals, Index: pos}
		if info.vals.Knd != knd {
			x = &ir.Cast{Knd: knd, X: x}
		}
		return x, nil
	case *notation.Literal:
		return &ir.Const{Value: eT.Value, Knd: knd}, nil
	case *notation.Neg:
		x, err := l.expr(eT.X, knd)
		if err != nil {
			return nil, err
		}
		return &ir.UnaryExpr{Op: ir.OpNeg, X: x}, nil
	case *notation.Binary:
		op, ok := binaryOps[eT.Op]
		if !ok {
			return nil, fmterr.Internalf("operator %s not supported", eT.Op)
		}
		x, err := l.expr(eT.X, knd)
		if err != nil {
			return nil, err
		}
		y, err := l.expr(eT.Y, knd)
		if err != nil {
			return nil, err
		}
		if eT.Op.IsComparison() {
			return &ir.Cast{Knd: knd, X: ir.Binary(op, x, y)}, nil
		}
		return ir.Binary(op, x, y), nil
	case *notation.Reduction:
		return nil, fmterr.Errorf(fmterr.ErrInvalidNotation, "cannot lower reduction %s: statement has not been concretized", eT)
	}
	return nil, fmterr.Internalf("expression %T not supported", e)
}

// store writes a value at a position of a tensor.
func (l *lowerer) store(blk *ir.Block, info *tensorInfo, pos, x ir.Expr, op notation.Op) error {
	if r := l.redirect(info.tensor); r != nil {
		return r.store(blk, pos, x, op)
	}
	st := &ir.Store{Buffer: info.vals, Index: pos, X: x}
	switch op {
	case notation.OpNone:
	case notation.OpAdd:
		st.Accumulate = true
		st.Atomic = l.atomic(info.tensor)
	default:
		bin, ok := binaryOps[op]
		if !ok || op.IsComparison() {
			return fmterr.Internalf("accumulation operator %s not supported", op)
		}
		if l.atomic(info.tensor) {
			return fmterr.Errorf(fmterr.ErrUnsupportedRaceStrategy, "cannot update %s atomically with operator %s", info.tensor, op)
		}
		st.X = ir.Binary(bin, &ir.Load{Buffer: info.vals, Index: pos}, x)
	}
	blk.Append(st)
	return nil
}
