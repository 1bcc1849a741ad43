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
	"fmt"

	"github.com/gx-org/tac/build/fmterr"
	"github.com/gx-org/tac/build/ir"
	"github.com/gx-org/tac/build/ir/irkind"
	"github.com/gx-org/tac/build/notation"
)

// outputLevel is a sparse level of an output assembled by a loop.
type outputLevel struct {
	access *notation.Access
	info   *tensorInfo
	level  int
}

// checkSparseOutput returns an error if a sparse output cannot be assembled in append mode.
func (l *lowerer) checkSparseOutput(s notation.Stmt, info *tensorInfo) error {
	if !l.cfg.Assemble {
		return fmterr.Errorf(fmterr.ErrUnsupportedFormat, "cannot compute sparse output %s without assembling it", info.tensor)
	}
	writes := 0
	for _, a := range notation.Assignments(s) {
		if a.Lhs.Tensor == info.tensor {
			writes++
		}
	}
	if writes > 1 {
		return fmterr.Errorf(fmterr.ErrUnsupportedFormat, "sparse output %s is written by %d assignments: only one is supported", info.tensor, writes)
	}
	for k, lvl := range info.levels {
		if lvl.Level.IsDense() {
			continue
		}
		if lvl.Level.Kind != notation.Compressed || !lvl.Level.Unique {
			return fmterr.Errorf(fmterr.ErrUnsupportedFormat, "cannot assemble level %d of %s: %s levels cannot be assembled", k+1, info.tensor, lvl.Level)
		}
	}
	return nil
}

// outputLevels returns the sparse levels of the outputs assembled by a loop.
func (l *lowerer) outputLevels(f *notation.Forall) ([]*outputLevel, error) {
	var outs []*outputLevel
	seen := make(map[levelKey]bool)
	for _, a := range notation.Assignments(f.Body) {
		lhs := a.Lhs
		if lhs.Tensor.Temporary() {
			continue
		}
		info, err := l.info(lhs.Tensor)
		if err != nil {
			return nil, err
		}
		for k, lvl := range info.levels {
			if lvl.Level.IsDense() || !l.iterates(f.Var, levelVar(lhs, k)) {
				continue
			}
			key := levelKey{access: lhs, level: k}
			if _, located := l.levels[key]; located || seen[key] {
				continue
			}
			seen[key] = true
			if f.IsParallel() {
				return nil, fmterr.Errorf(fmterr.ErrUnsupportedFormat, "cannot assemble %s in the parallel loop over %s", lhs, f.Var)
			}
			for u := range l.values {
				if !l.prov.AccessDependsOn(lhs, u) {
					return nil, fmterr.Errorf(fmterr.ErrUnsupportedFormat, "cannot assemble %s over %s inside the reduction loop over %s", lhs, f.Var, u)
				}
			}
			outs = append(outs, &outputLevel{access: lhs, info: info, level: k})
		}
	}
	return outs, nil
}

// fill returns a statement writing x in the n first elements of a buffer.
func (l *lowerer) fill(buf *ir.Buffer, n int, x ir.Expr) ir.Stmt {
	if n == 1 {
		return &ir.Store{Buffer: buf, Index: ir.Int(0), X: x}
	}
	p := ir.NewVar(l.names.Name("p"), irkind.Index)
	return &ir.For{
		Var:   p,
		Start: ir.Int(0),
		End:   ir.Int(n),
		Body:  ir.NewBlock(&ir.Store{Buffer: buf, Index: p, X: x}),
	}
}

// initOutput zero-fills the values of an output and prepares the assembly of its sparse levels.
func (l *lowerer) initOutput(blk *ir.Block, info *tensorInfo) {
	if l.cfg.Compute {
		blk.Append(l.fill(info.vals, info.size(), ir.Zero(info.vals.Knd)))
	}
	if info.tensor.Format().AllDense() {
		return
	}
	info.counts = make([]*ir.Var, len(info.levels))
	for k, lvl := range info.levels {
		if lvl.Level.Kind != notation.Compressed {
			continue
		}
		cnt := ir.NewVar(l.names.Name(fmt.Sprintf("%s%d_cnt", info.tensor.Name(), k+1)), irkind.Index)
		info.counts[k] = cnt
		blk.Append(
			&ir.Decl{Var: cnt, Init: ir.Int(0)},
			l.fill(lvl.Pos, info.capacity(k)+1, ir.Int(0)),
		)
	}
}

// assemble appends the coordinates of the current iteration to the sparse levels of the outputs.
// The returned function forgets the positions of the appended coordinates.
func (l *lowerer) assemble(blk *ir.Block, outs []*outputLevel) (func(), error) {
	var keys []levelKey
	restore := func() {
		for _, key := range keys {
			delete(l.levels, key)
		}
	}
	for _, out := range outs {
		lvl := out.info.levels[out.level]
		cnt := out.info.counts[out.level]
		x, err := l.value(levelVar(out.access, out.level))
		if err != nil {
			restore()
			return nil, err
		}
		p := ir.NewVar(l.names.Name(fmt.Sprintf("p%s%d", out.info.tensor.Name(), out.level+1)), irkind.Index)
		blk.Append(
			&ir.Decl{Var: p, Init: cnt},
			&ir.Store{Buffer: lvl.Crd, Index: cnt, X: x},
			&ir.Assign{Var: cnt, X: ir.Add(cnt, ir.Int(1))},
		)
		key := levelKey{access: out.access, level: out.level}
		l.levels[key] = levelPos{pos: p}
		keys = append(keys, key)
	}
	return restore, nil
}

// finishOutputs closes the segments of the sparse levels assembled by a loop.
func (l *lowerer) finishOutputs(blk *ir.Block, outs []*outputLevel) error {
	for _, out := range outs {
		var parent ir.Expr = ir.Int(0)
		if out.level > 0 {
			lp, err := l.levelPosition(out.access, out.info, out.level-1)
			if err != nil {
				return err
			}
			parent = lp.pos
		}
		lvl := out.info.levels[out.level]
		blk.Append(&ir.Store{Buffer: lvl.Pos, Index: ir.Add(parent, ir.Int(1)), X: out.info.counts[out.level]})
	}
	return nil
}

// finalizeOutput makes the segments of the sparse levels of an output monotone:
// segments of parents never visited by the loops are empty.
func (l *lowerer) finalizeOutput(blk *ir.Block, info *tensorInfo) {
	for k, lvl := range info.levels {
		if lvl.Level.Kind != notation.Compressed {
			continue
		}
		q := ir.NewVar(l.names.Name("q"), irkind.Index)
		prev := &ir.Load{Buffer: lvl.Pos, Index: ir.Sub(q, ir.Int(1))}
		blk.Append(&ir.For{
			Var:   q,
			Start: ir.Int(1),
			End:   ir.Int(info.capacity(k) + 1),
			Body: ir.NewBlock(&ir.Store{
				Buffer: lvl.Pos,
				Index:  q,
				X:      ir.Binary(ir.OpMax, &ir.Load{Buffer: lvl.Pos, Index: q}, prev),
			}),
		})
	}
}
