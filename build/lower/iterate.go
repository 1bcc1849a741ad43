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
	"slices"

	"github.com/gx-org/tac/build/fmterr"
	"github.com/gx-org/tac/build/ir"
	"github.com/gx-org/tac/build/ir/irkind"
	"github.com/gx-org/tac/build/lattice"
	"github.com/gx-org/tac/build/notation"
)

type (
	// iterator walks the positions of a sparse level of an access.
	iterator struct {
		access *notation.Access
		info   *tensorInfo
		level  int
		// begin and end are the range of positions to walk.
		begin, end ir.Expr
		// pos and endVar are the variables holding the current position and the end of the range.
		pos, endVar *ir.Var
	}

	// plan of the loop over a variable co-iterating sparse levels.
	plan struct {
		loop      *notation.Forall
		iterators []*iterator
		// assignment whose expression drives the merge lattice.
		assignment *notation.Assignment
		lattice    *lattice.Lattice
		outputs    []*outputLevel
	}
)

func (it *iterator) unique() bool {
	return it.info.levels[it.level].Level.Unique
}

func (it *iterator) crd(pos ir.Expr) ir.Expr {
	return &ir.Load{Buffer: it.info.levels[it.level].Crd, Index: pos}
}

func (it *iterator) name() string {
	return fmt.Sprintf("p%s%d", it.info.tensor.Name(), it.level+1)
}

// declare declares the variables holding the range of positions of the iterator.
func (l *lowerer) declare(blk *ir.Block, it *iterator) {
	it.pos = ir.NewVar(l.names.Name(it.name()), irkind.Index)
	it.endVar = ir.NewVar(l.names.Name(it.name()+"_end"), irkind.Index)
	blk.Append(
		&ir.Decl{Var: it.pos, Init: it.begin},
		&ir.Decl{Var: it.endVar, Init: it.end},
	)
}

// sparseLevel returns the sparse level of an access iterated by a loop over v.
func (l *lowerer) sparseLevel(a *notation.Access, v *notation.IndexVar) (*tensorInfo, int, bool, error) {
	if a.Tensor.Temporary() {
		return nil, 0, false, nil
	}
	info, err := l.info(a.Tensor)
	if err != nil {
		return nil, 0, false, err
	}
	for k, lvl := range info.levels {
		if lvl.Level.IsDense() || !l.iterates(v, levelVar(a, k)) {
			continue
		}
		if _, located := l.levels[levelKey{access: a, level: k}]; located {
			continue
		}
		return info, k, true, nil
	}
	return nil, 0, false, nil
}

// iterators returns the sparse levels read in the body of a loop and iterated by the loop.
func (l *lowerer) iterators(f *notation.Forall) ([]*iterator, error) {
	var its []*iterator
	seen := make(map[*notation.Access]bool)
	for _, a := range notation.Assignments(f.Body) {
		for _, access := range notation.ExprAccesses(a.Rhs) {
			if seen[access] {
				continue
			}
			seen[access] = true
			info, k, ok, err := l.sparseLevel(access, f.Var)
			if err != nil {
				return nil, err
			}
			if !ok {
				continue
			}
			it, err := l.iterator(access, info, k)
			if err != nil {
				return nil, err
			}
			its = append(its, it)
		}
	}
	return its, nil
}

func (l *lowerer) iterator(a *notation.Access, info *tensorInfo, k int) (*iterator, error) {
	parent := levelPos{pos: ir.Int(0)}
	if k > 0 {
		var err error
		if parent, err = l.levelPosition(a, info, k-1); err != nil {
			return nil, err
		}
	}
	it := &iterator{access: a, info: info, level: k}
	lvl := info.levels[k]
	switch lvl.Level.Kind {
	case notation.Compressed:
		if parent.segEnd != nil {
			return nil, fmterr.Errorf(fmterr.ErrUnsupportedFormat, "cannot iterate %s: compressed level %d follows a non-unique level", a, k+1)
		}
		it.begin = &ir.Load{Buffer: lvl.Pos, Index: parent.pos}
		it.end = &ir.Load{Buffer: lvl.Pos, Index: ir.Add(parent.pos, ir.Int(1))}
	case notation.Singleton:
		it.begin = parent.pos
		it.end = parent.segEnd
		if it.end == nil {
			it.end = ir.Add(parent.pos, ir.Int(1))
		}
	default:
		return nil, fmterr.Internalf("level %s of %s cannot be iterated", lvl.Level, a)
	}
	return it, nil
}

// newPlan builds the merge lattice of a loop co-iterating sparse levels.
func (l *lowerer) newPlan(f *notation.Forall, its []*iterator, outs []*outputLevel) (*plan, error) {
	p := &plan{loop: f, iterators: its, outputs: outs}
	assignments := notation.Assignments(f.Body)
	for _, a := range assignments {
		for _, it := range its {
			if !slices.Contains(notation.ExprAccesses(a.Rhs), it.access) {
				continue
			}
			if p.assignment != nil && p.assignment != a {
				return nil, fmterr.Errorf(fmterr.ErrUnsupportedFormat, "cannot co-iterate the sparse levels of %s and %s over %s", p.assignment, a, f.Var)
			}
			p.assignment = a
		}
	}
	accesses := make([]*notation.Access, len(its))
	for i, it := range its {
		accesses[i] = it.access
	}
	var err error
	if p.lattice, err = lattice.Build(p.assignment.Rhs, f.Var, accesses); err != nil {
		return nil, err
	}
	if len(assignments) == 1 {
		return p, nil
	}
	if !p.lattice.Exact() {
		return nil, fmterr.Errorf(fmterr.ErrUnsupportedFormat, "cannot iterate over %s: %s is not zero outside of its sparse levels and the loop computes other assignments", f.Var, p.assignment)
	}
	written := func(a *notation.Access) bool { return a.Tensor == p.assignment.Lhs.Tensor }
	for _, a := range assignments {
		if a == p.assignment {
			continue
		}
		if !lattice.ZeroWithout(a.Rhs, written) {
			return nil, fmterr.Errorf(fmterr.ErrUnsupportedFormat, "cannot iterate over %s: %s is not zero outside of the sparse levels of %s", f.Var, a, p.assignment)
		}
	}
	return p, nil
}

// body returns the body of the loop computing the expression of a lattice point.
func (p *plan) body(pt *lattice.Point) notation.Stmt {
	return notation.RewriteStmt(p.loop.Body, func(s notation.Stmt) (notation.Stmt, bool) {
		if s != p.assignment {
			return nil, false
		}
		return &notation.Assignment{Lhs: p.assignment.Lhs, Rhs: pt.Expr, Op: p.assignment.Op}, true
	})
}

func (l *lowerer) forall(blk *ir.Block, f *notation.Forall) error {
	its, err := l.iterators(f)
	if err != nil {
		return err
	}
	outs, err := l.outputLevels(f)
	if err != nil {
		return err
	}
	par, err := l.parallel(f)
	if err != nil {
		return err
	}
	if len(its) == 0 {
		return l.denseLoop(blk, f, nil, outs, par)
	}
	p, err := l.newPlan(f, its, outs)
	if err != nil {
		return err
	}
	if !p.lattice.Exact() {
		if par != nil {
			return fmterr.Errorf(fmterr.ErrUnsupportedFormat, "cannot parallelize the loop over %s: it co-iterates dense and sparse levels", f.Var)
		}
		return l.denseLoop(blk, f, p, outs, par)
	}
	if len(p.lattice.Points) == 0 {
		return nil
	}
	if len(its) == 1 && its[0].unique() {
		return l.walk(blk, p, its[0], par)
	}
	if par != nil {
		return fmterr.Errorf(fmterr.ErrUnsupportedFormat, "cannot parallelize the loop over %s: it merges sparse levels", f.Var)
	}
	if len(its) == 1 {
		return l.segmentWalk(blk, p, its[0])
	}
	return l.merge(blk, p)
}

// denseLoop lowers a loop over the static extent of its variable.
// If p is not nil, the loop co-iterates the sparse levels of the plan.
func (l *lowerer) denseLoop(blk *ir.Block, f *notation.Forall, p *plan, outs []*outputLevel, par *ir.Parallel) error {
	ext, err := l.ext.Of(f.Var)
	if err != nil {
		return err
	}
	v := ir.NewVar(l.names.Name(f.Var.Name()), irkind.Index)
	loop := &ir.For{Var: v, Start: ir.Int(0), End: ir.Int(ext.Size), Body: ir.NewBlock(), Parallel: par}
	if p != nil {
		for _, it := range p.iterators {
			l.declare(blk, it)
		}
	}
	rs, err := l.beginRace(blk, f, loop)
	if err != nil {
		return err
	}
	wasRecoverable := l.recoverable(l.prov.Root(f.Var))
	restore := l.bind(f.Var, v)
	body, err := l.guard(loop.Body, f.Var, wasRecoverable)
	if err == nil {
		if p == nil {
			err = l.iteration(body, f.Body, outs)
		} else {
			err = l.coiterate(body, p, v, ext.Size)
		}
	}
	restore()
	if err != nil {
		return err
	}
	if err := l.endRace(blk, rs, loop); err != nil {
		return err
	}
	return l.finishOutputs(blk, outs)
}

// coiterate lowers the body of a dense loop co-iterating sparse levels.
// Each iteration executes the first lattice point whose iterators are all at the coordinate of the loop.
func (l *lowerer) coiterate(blk *ir.Block, p *plan, v *ir.Var, size int) error {
	crds := make(map[*iterator]*ir.Var)
	for _, it := range p.iterators {
		crd := ir.NewVar(l.names.Name(p.loop.Var.Name()+it.info.tensor.Name()), irkind.Index)
		crds[it] = crd
		blk.Append(
			&ir.Decl{Var: crd, Init: ir.Int(size)},
			&ir.If{
				Cond: ir.Lt(it.pos, it.endVar),
				Then: ir.NewBlock(&ir.Assign{Var: crd, X: it.crd(it.pos)}),
			},
		)
	}
	if err := l.cases(blk, p, p.lattice.Points, crds, v); err != nil {
		return err
	}
	l.advance(blk, p.iterators, crds, v)
	return nil
}

// walk lowers a loop over the positions of a single unique sparse level.
func (l *lowerer) walk(blk *ir.Block, p *plan, it *iterator, par *ir.Parallel) error {
	f := p.loop
	it.pos = ir.NewVar(l.names.Name(it.name()), irkind.Index)
	loop := &ir.For{Var: it.pos, Start: it.begin, End: it.end, Body: ir.NewBlock(), Parallel: par}
	rs, err := l.beginRace(blk, f, loop)
	if err != nil {
		return err
	}
	crd := ir.NewVar(l.names.Name(f.Var.Name()+it.info.tensor.Name()), irkind.Index)
	loop.Body.Append(&ir.Decl{Var: crd, Init: it.crd(it.pos)})
	restore := l.bind(f.Var, crd)
	err = l.point(loop.Body, p, p.lattice.Top())
	restore()
	if err != nil {
		return err
	}
	if err := l.endRace(blk, rs, loop); err != nil {
		return err
	}
	return l.finishOutputs(blk, p.outputs)
}

// segmentWalk lowers a loop over a single non-unique sparse level.
// Each iteration visits the segment of positions sharing the same coordinate.
func (l *lowerer) segmentWalk(blk *ir.Block, p *plan, it *iterator) error {
	f := p.loop
	l.declare(blk, it)
	body := ir.NewBlock()
	crd := ir.NewVar(l.names.Name(f.Var.Name()+it.info.tensor.Name()), irkind.Index)
	seg := ir.NewVar(l.names.Name(it.name()+"_seg"), irkind.Index)
	body.Append(
		&ir.Decl{Var: crd, Init: it.crd(it.pos)},
		&ir.Decl{Var: seg, Init: ir.Add(it.pos, ir.Int(1))},
		&ir.While{
			Cond: ir.And(ir.Lt(seg, it.endVar), ir.Eq(it.crd(seg), crd)),
			Body: ir.NewBlock(&ir.Assign{Var: seg, X: ir.Add(seg, ir.Int(1))}),
		},
	)
	restore := l.bind(f.Var, crd)
	key := levelKey{access: it.access, level: it.level}
	l.levels[key] = levelPos{pos: it.pos, segEnd: seg}
	err := l.iteration(body, p.body(p.lattice.Top()), p.outputs)
	delete(l.levels, key)
	restore()
	if err != nil {
		return err
	}
	body.Append(&ir.Assign{Var: it.pos, X: seg})
	blk.Append(&ir.While{Cond: ir.Lt(it.pos, it.endVar), Body: body})
	return l.finishOutputs(blk, p.outputs)
}

// merge lowers a loop co-iterating several unique sparse levels.
// The loop is split in one while loop per lattice point. Each while loop runs
// until one of the iterators of its point is exhausted.
func (l *lowerer) merge(blk *ir.Block, p *plan) error {
	f := p.loop
	for _, it := range p.iterators {
		if !it.unique() {
			return fmterr.Errorf(fmterr.ErrUnsupportedFormat, "cannot merge non-unique level %d of %s with other sparse levels", it.level+1, it.access)
		}
		l.declare(blk, it)
	}
	byAccess := make(map[*notation.Access]*iterator)
	for _, it := range p.iterators {
		byAccess[it.access] = it
	}
	for _, loopPoint := range p.lattice.Loops() {
		body := ir.NewBlock()
		crds := make(map[*iterator]*ir.Var)
		var present []*iterator
		var conds, args []ir.Expr
		for _, access := range loopPoint.Iterators {
			it := byAccess[access]
			present = append(present, it)
			crd := ir.NewVar(l.names.Name(f.Var.Name()+it.info.tensor.Name()), irkind.Index)
			crds[it] = crd
			body.Append(&ir.Decl{Var: crd, Init: it.crd(it.pos)})
			conds = append(conds, ir.Lt(it.pos, it.endVar))
			args = append(args, crd)
		}
		v := ir.NewVar(l.names.Name(f.Var.Name()), irkind.Index)
		body.Append(&ir.Decl{Var: v, Init: ir.Min(args...)})
		restore := l.bind(f.Var, v)
		err := l.cases(body, p, p.lattice.SubPoints(loopPoint), crds, v)
		restore()
		if err != nil {
			return err
		}
		l.advance(body, present, crds, v)
		blk.Append(&ir.While{Cond: ir.And(conds...), Body: body})
	}
	return l.finishOutputs(blk, p.outputs)
}

// cases appends a chain of conditionals executing the first point whose iterators
// are all at coordinate v.
func (l *lowerer) cases(blk *ir.Block, p *plan, points []*lattice.Point, crds map[*iterator]*ir.Var, v *ir.Var) error {
	byAccess := make(map[*notation.Access]*iterator)
	for it := range crds {
		byAccess[it.access] = it
	}
	cur := blk
	for i, pt := range points {
		var conds []ir.Expr
		for _, access := range pt.Iterators {
			conds = append(conds, ir.Eq(crds[byAccess[access]], v))
		}
		then := ir.NewBlock()
		if err := l.point(then, p, pt); err != nil {
			return err
		}
		cond := ir.And(conds...)
		if cond == ir.True {
			cur.Append(then.Stmts...)
			return nil
		}
		branch := &ir.If{Cond: cond, Then: then}
		cur.Append(branch)
		if i < len(points)-1 {
			branch.Else = ir.NewBlock()
			cur = branch.Else
		}
	}
	return nil
}

// advance moves the iterators at coordinate v to their next position.
func (l *lowerer) advance(blk *ir.Block, its []*iterator, crds map[*iterator]*ir.Var, v *ir.Var) {
	for _, it := range its {
		blk.Append(&ir.If{
			Cond: ir.Eq(crds[it], v),
			Then: ir.NewBlock(&ir.Assign{Var: it.pos, X: ir.Add(it.pos, ir.Int(1))}),
		})
	}
}

// point lowers the body of a loop for a lattice point: the iterators of the point
// are located at their current position.
func (l *lowerer) point(blk *ir.Block, p *plan, pt *lattice.Point) error {
	var keys []levelKey
	for _, it := range p.iterators {
		if !slices.Contains(pt.Iterators, it.access) {
			continue
		}
		key := levelKey{access: it.access, level: it.level}
		l.levels[key] = levelPos{pos: it.pos}
		keys = append(keys, key)
	}
	defer func() {
		for _, key := range keys {
			delete(l.levels, key)
		}
	}()
	return l.iteration(blk, p.body(pt), p.outputs)
}

// iteration lowers one iteration of a loop: sparse outputs are assembled then the body is lowered.
func (l *lowerer) iteration(blk *ir.Block, body notation.Stmt, outs []*outputLevel) error {
	restore, err := l.assemble(blk, outs)
	if err != nil {
		return err
	}
	defer restore()
	return l.stmt(blk, body)
}
