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

package schedule

import (
	"github.com/gx-org/tac/build/fmterr"
	"github.com/gx-org/tac/build/notation"
)

// Command is a transformation described declaratively, for instance in a YAML file:
//
//	- op: bound
//	  var: i
//	  with: ib
//	  extent: 16
//	  kind: MaxExact
//	- op: split
//	  var: ib
//	  outer: i0
//	  inner: i1
//	  factor: 4
type Command struct {
	Op string `yaml:"op"`

	// Var is the variable transformed by bound, split, and parallelize
	// and the first variable of reorder.
	Var string `yaml:"var,omitempty"`
	// With is the bounded variable of bound and the second variable of reorder.
	With string `yaml:"with,omitempty"`

	Extent int    `yaml:"extent,omitempty"`
	Kind   string `yaml:"kind,omitempty"`

	Outer  string `yaml:"outer,omitempty"`
	Inner  string `yaml:"inner,omitempty"`
	Factor int    `yaml:"factor,omitempty"`

	Expr      string   `yaml:"expr,omitempty"`
	Vars      []string `yaml:"vars,omitempty"`
	WorkVars  []string `yaml:"workspace_vars,omitempty"`
	Workspace string   `yaml:"workspace,omitempty"`
	Memory    string   `yaml:"memory,omitempty"`

	Unit   string `yaml:"unit,omitempty"`
	Race   string `yaml:"race,omitempty"`
	Degree int    `yaml:"degree,omitempty"`
}

// Resolver resolves the names used by commands.
type Resolver interface {
	// IndexVar returns the index variable of a given name, creating it if necessary.
	IndexVar(name string) *notation.IndexVar
	// Expr parses an index expression.
	Expr(src string) (notation.Expr, error)
}

func parseMemory(s string) (notation.MemoryLocation, error) {
	m, ok := notation.ParseMemoryLocation(s)
	if !ok {
		return m, invalidf("unknown memory location %q", s)
	}
	return m, nil
}

func (cmd *Command) vars(r Resolver, names []string) []*notation.IndexVar {
	vs := make([]*notation.IndexVar, len(names))
	for i, name := range names {
		vs[i] = r.IndexVar(name)
	}
	return vs
}

func (cmd *Command) workspace(expr notation.Expr, iws []*notation.IndexVar) (*notation.TensorVar, error) {
	if cmd.Workspace == "" {
		return nil, invalidf("precompute: missing workspace name")
	}
	accesses := notation.ExprAccesses(expr)
	if len(accesses) == 0 {
		return nil, invalidf("precompute: %s does not access any tensor", expr)
	}
	memory, err := parseMemory(cmd.Memory)
	if err != nil {
		return nil, err
	}
	dims := make([]notation.Dimension, len(iws))
	for i, iw := range iws {
		dims[i] = notation.Of(iw)
	}
	return notation.NewTemporary(
		cmd.Workspace,
		accesses[0].Tensor.DType(),
		dims,
		notation.DenseFormat(len(dims)),
		notation.WithMemory(memory),
	), nil
}

// Apply the command to a schedule.
func (cmd *Command) Apply(sch *Schedule, r Resolver) *Schedule {
	fail := func(err error) *Schedule {
		return sch.apply(cmd.Op, func(notation.Stmt) (notation.Stmt, error) { return nil, err })
	}
	switch cmd.Op {
	case "bound":
		kind, ok := notation.ParseBoundKind(cmd.Kind)
		if !ok {
			return fail(invalidf("unknown bound kind %q", cmd.Kind))
		}
		return sch.Bound(r.IndexVar(cmd.Var), r.IndexVar(cmd.With), cmd.Extent, kind)
	case "split":
		return sch.Split(r.IndexVar(cmd.Var), r.IndexVar(cmd.Outer), r.IndexVar(cmd.Inner), cmd.Factor)
	case "precompute":
		expr, err := r.Expr(cmd.Expr)
		if err != nil {
			return fail(err)
		}
		is := cmd.vars(r, cmd.Vars)
		iws := is
		if len(cmd.WorkVars) > 0 {
			iws = cmd.vars(r, cmd.WorkVars)
		}
		ws, err := cmd.workspace(expr, iws)
		if err != nil {
			return fail(err)
		}
		return sch.PrecomputeVars(expr, is, iws, ws)
	case "parallelize":
		unit, ok := notation.ParseParallelUnit(cmd.Unit)
		if !ok {
			return fail(invalidf("unknown parallel unit %q", cmd.Unit))
		}
		race, ok := notation.ParseRaceStrategy(cmd.Race)
		if !ok {
			return fail(invalidf("unknown race strategy %q", cmd.Race))
		}
		return sch.Parallelize(r.IndexVar(cmd.Var), unit, race, cmd.Degree)
	case "reorder":
		return sch.Reorder(r.IndexVar(cmd.Var), r.IndexVar(cmd.With))
	case "scalarPromote":
		return sch.ScalarPromote()
	}
	return fail(invalidf("unknown transformation %q", cmd.Op))
}

// Apply a list of commands to a statement.
func Apply(s notation.Stmt, r Resolver, cmds []Command) (notation.Stmt, []string, error) {
	sch := Of(s)
	for i := range cmds {
		sch = cmds[i].Apply(sch, r)
		if sch.err != nil {
			return nil, nil, fmterr.PrefixWith("command %d (%s): ", i, cmds[i].Op)(sch.err)
		}
	}
	stmt, err := sch.Stmt()
	return stmt, sch.Applied(), err
}
