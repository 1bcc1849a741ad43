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
	"github.com/gx-org/tac/base/ordered"
	"github.com/gx-org/tac/build/fmterr"
	"github.com/gx-org/tac/build/ir"
	"github.com/gx-org/tac/build/ir/irkind"
	"github.com/gx-org/tac/build/notation"
)

type (
	// redirect sends the stores to a tensor in a parallel loop to a private location.
	redirect struct {
		tensor *notation.TensorVar
		// acc accumulates the contributions of a lane in a parallel reduction.
		acc *ir.Var
		// buf and offset are the private partial results of a lane.
		buf    *ir.Buffer
		offset ir.Expr
	}

	// raceState is the lowering state of the race strategy of a parallel loop.
	raceState struct {
		par       *ir.Parallel
		redirects []*redirect
		atomics   bool
		// partials of the temporary strategy.
		lanes    int
		partials []*partial
		// target of the parallel reduction.
		target *notation.Access
	}

	partial struct {
		info *tensorInfo
		buf  *ir.Buffer
	}
)

func (r *redirect) store(blk *ir.Block, pos, x ir.Expr, op notation.Op) error {
	if op != notation.OpAdd {
		return fmterr.Errorf(fmterr.ErrUnsupportedRaceStrategy, "cannot combine the writes of parallel lanes to %s: operator %s is not an accumulation", r.tensor, op)
	}
	if r.acc != nil {
		blk.Append(&ir.Assign{Var: r.acc, X: ir.Binary(ir.OpAdd, r.acc, x)})
		return nil
	}
	blk.Append(&ir.Store{Buffer: r.buf, Index: ir.Add(r.offset, pos), X: x, Accumulate: true})
	return nil
}

func (l *lowerer) redirect(t *notation.TensorVar) *redirect {
	for i := len(l.redirects) - 1; i >= 0; i-- {
		if l.redirects[i].tensor == t {
			return l.redirects[i]
		}
	}
	return nil
}

func (l *lowerer) atomic(t *notation.TensorVar) bool {
	for _, local := range l.atomics {
		if !local[t] {
			return true
		}
	}
	return false
}

// parallel returns the parallel annotation of a loop or nil if the loop is serial.
func (l *lowerer) parallel(f *notation.Forall) (*ir.Parallel, error) {
	if !f.IsParallel() {
		return nil, nil
	}
	unit, err := l.cfg.Target.Check(f.Unit, f.Race)
	if err != nil {
		return nil, err
	}
	return &ir.Parallel{Unit: unit, Degree: f.Degree, Race: f.Race}, nil
}

// raceTargets returns, for each tensor shared by the lanes of a loop, the accesses writing it.
func raceTargets(f *notation.Forall) *ordered.Map[*notation.TensorVar, []*notation.Access] {
	local := notation.Locals(f.Body)
	targets := ordered.NewMap[*notation.TensorVar, []*notation.Access]()
	for _, a := range notation.Assignments(f.Body) {
		if local[a.Lhs.Tensor] {
			continue
		}
		accesses, _ := targets.Load(a.Lhs.Tensor)
		targets.Store(a.Lhs.Tensor, append(accesses, a.Lhs))
	}
	return targets
}

// beginRace prepares the lowering of the body of a parallel loop.
// Statements required before the loop are appended to blk.
func (l *lowerer) beginRace(blk *ir.Block, f *notation.Forall, loop *ir.For) (*raceState, error) {
	rs := &raceState{par: loop.Parallel}
	if loop.Parallel == nil {
		return rs, nil
	}
	switch f.Race {
	case notation.Atomics:
		rs.atomics = true
		l.atomics = append(l.atomics, notation.Locals(f.Body))
	case notation.Temporary:
		if err := l.beginTemporary(blk, rs, f, loop); err != nil {
			return nil, err
		}
	case notation.ParallelReduction:
		if err := l.beginReduction(rs, f); err != nil {
			return nil, err
		}
	}
	l.redirects = append(l.redirects, rs.redirects...)
	return rs, nil
}

func (l *lowerer) beginTemporary(blk *ir.Block, rs *raceState, f *notation.Forall, loop *ir.For) error {
	rs.lanes = f.Degree
	if rs.lanes == 0 {
		start, okStart := ir.ConstValue(loop.Start)
		end, okEnd := ir.ConstValue(loop.End)
		if !okStart || !okEnd {
			return fmterr.Errorf(fmterr.ErrUnsupportedRaceStrategy, "loop over %s with strategy %s requires an explicit degree", f.Var, f.Race)
		}
		rs.lanes = int(end - start)
	}
	lane := ir.Rem(ir.Sub(loop.Var, loop.Start), ir.Int(rs.lanes))
	for t := range raceTargets(f).Keys() {
		info, err := l.info(t)
		if err != nil {
			return err
		}
		if !t.Format().AllDense() {
			return fmterr.Errorf(fmterr.ErrUnsupportedRaceStrategy, "cannot use strategy %s for sparse tensor %s", f.Race, t)
		}
		p := &partial{
			info: info,
			buf:  &ir.Buffer{Name: l.names.Name(t.Name() + "_partial"), Knd: info.vals.Knd, Memory: notation.MemoryDefault},
		}
		blk.Append(&ir.Allocate{Buffer: p.buf, Size: ir.Int(rs.lanes * info.size())})
		rs.partials = append(rs.partials, p)
		rs.redirects = append(rs.redirects, &redirect{
			tensor: t,
			buf:    p.buf,
			offset: ir.Mul(lane, ir.Int(info.size())),
		})
	}
	return nil
}

func (l *lowerer) beginReduction(rs *raceState, f *notation.Forall) error {
	targets := raceTargets(f)
	if targets.Size() != 1 {
		return fmterr.Errorf(fmterr.ErrUnsupportedRaceStrategy, "a parallel reduction over %s must write exactly one output, got %d", f.Var, targets.Size())
	}
	for t, accesses := range targets.All() {
		for _, a := range accesses {
			if !notation.EqualExpr(a, accesses[0]) {
				return fmterr.Errorf(fmterr.ErrUnsupportedRaceStrategy, "a parallel reduction over %s must write a single location of %s, got %s and %s", f.Var, t, accesses[0], a)
			}
			for _, idx := range a.Indices {
				if !l.recoverable(idx) {
					return fmterr.Errorf(fmterr.ErrUnsupportedRaceStrategy, "cannot reduce %s over %s: its location depends on %s which is bound inside the loop", a, f.Var, idx)
				}
			}
		}
		info, err := l.info(t)
		if err != nil {
			return err
		}
		rs.target = accesses[0]
		acc := ir.NewVar(l.names.Name("acc"+t.Name()), info.vals.Knd)
		rs.redirects = append(rs.redirects, &redirect{tensor: t, acc: acc})
	}
	return nil
}

// endRace appends the loop and the statements combining the results of the lanes.
func (l *lowerer) endRace(blk *ir.Block, rs *raceState, loop *ir.For) error {
	l.redirects = l.redirects[:len(l.redirects)-len(rs.redirects)]
	if rs.atomics {
		l.atomics = l.atomics[:len(l.atomics)-1]
	}
	if rs.target != nil {
		acc := rs.redirects[0].acc
		blk.Append(&ir.Reduce{Acc: acc, Loop: loop})
		info, err := l.info(rs.target.Tensor)
		if err != nil {
			return err
		}
		if info.arg != nil && !l.cfg.Compute {
			return nil
		}
		pos, err := l.position(rs.target)
		if err != nil {
			return err
		}
		return l.store(blk, info, pos, acc, notation.OpAdd)
	}
	blk.Append(loop)
	if len(rs.partials) == 0 {
		return nil
	}
	blk.Append(&ir.Barrier{Unit: rs.par.Unit})
	for _, p := range rs.partials {
		if p.info.arg != nil && !l.cfg.Compute {
			continue
		}
		lane := ir.NewVar(l.names.Name("lane"), irkind.Index)
		pos := ir.NewVar(l.names.Name("p"+p.info.tensor.Name()), irkind.Index)
		size := p.info.size()
		inner := &ir.For{Var: pos, Start: ir.Int(0), End: ir.Int(size), Body: ir.NewBlock()}
		x := &ir.Load{Buffer: p.buf, Index: ir.Add(ir.Mul(lane, ir.Int(size)), pos)}
		if err := l.store(inner.Body, p.info, pos, x, notation.OpAdd); err != nil {
			return err
		}
		blk.Append(&ir.For{Var: lane, Start: ir.Int(0), End: ir.Int(rs.lanes), Body: ir.NewBlock(inner)})
	}
	return nil
}
