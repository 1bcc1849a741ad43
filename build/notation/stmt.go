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

package notation

import (
	"fmt"
	"slices"
	"strings"

	"github.com/gx-org/tac/base/stringseq"
)

type (
	// Stmt is an index statement.
	Stmt interface {
		fmt.Stringer
		stmt()
	}

	// Assignment writes the value of an expression into a tensor access.
	// If Op is OpAdd, the value is accumulated into the destination.
	Assignment struct {
		Lhs *Access
		Rhs Expr
		Op  Op
	}

	// Forall iterates its body over all the values of an index variable.
	Forall struct {
		Var  *IndexVar
		Body Stmt

		// Unit executing the iterations of the loop.
		Unit ParallelUnit
		// Race is the strategy reconciling concurrent writes to the same output.
		Race RaceStrategy
		// Degree is the number of lanes executing the loop concurrently.
		// Zero lets the target choose.
		Degree int
	}

	// Where computes a temporary in its producer before executing its consumer.
	Where struct {
		Consumer Stmt
		Producer Stmt
	}

	// Sequence executes statements one after the other.
	Sequence struct {
		Stmts []Stmt
	}

	// SuchThat guards a statement with relations between index variables.
	SuchThat struct {
		Stmt      Stmt
		Relations []Relation
	}
)

var (
	_ Stmt = (*Assignment)(nil)
	_ Stmt = (*Forall)(nil)
	_ Stmt = (*Where)(nil)
	_ Stmt = (*Sequence)(nil)
	_ Stmt = (*SuchThat)(nil)
)

// Assign returns the assignment lhs = rhs.
func Assign(lhs *Access, rhs Expr) *Assignment {
	return &Assignment{Lhs: lhs, Rhs: rhs}
}

// Accumulate returns the assignment lhs += rhs.
func Accumulate(lhs *Access, rhs Expr) *Assignment {
	return &Assignment{Lhs: lhs, Rhs: rhs, Op: OpAdd}
}

// NewForall returns a serial loop.
func NewForall(v *IndexVar, body Stmt) *Forall {
	return &Forall{Var: v, Body: body}
}

// NewWhere returns a where statement.
func NewWhere(consumer, producer Stmt) *Where {
	return &Where{Consumer: consumer, Producer: producer}
}

// NewSequence returns a sequence of statements.
func NewSequence(stmts ...Stmt) *Sequence {
	return &Sequence{Stmts: stmts}
}

func (*Assignment) stmt() {}

// IsAccumulation returns true if the value is accumulated into the destination.
func (a *Assignment) IsAccumulation() bool {
	return a.Op != OpNone
}

// String representation of the assignment.
func (a *Assignment) String() string {
	return fmt.Sprintf("%s %s= %s", a.Lhs, a.Op, a.Rhs)
}

func (*Forall) stmt() {}

// IsParallel returns true if the loop has been parallelized.
func (f *Forall) IsParallel() bool {
	return f.Unit != NotParallel
}

// WithBody returns a copy of the loop with a different body.
func (f *Forall) WithBody(body Stmt) *Forall {
	ff := *f
	ff.Body = body
	return &ff
}

// WithVar returns a copy of the loop iterating over a different variable.
func (f *Forall) WithVar(v *IndexVar) *Forall {
	ff := *f
	ff.Var = v
	return &ff
}

// String representation of the loop.
func (f *Forall) String() string {
	if !f.IsParallel() {
		return fmt.Sprintf("forall(%s, %s)", f.Var, f.Body)
	}
	return fmt.Sprintf("forall(%s, %s, %s, %s, %d)", f.Var, f.Body, f.Unit, f.Race, f.Degree)
}

func (*Where) stmt() {}

// String representation of the where statement.
func (w *Where) String() string {
	return fmt.Sprintf("where(%s, %s)", w.Consumer, w.Producer)
}

func (*Sequence) stmt() {}

// String representation of the sequence.
func (s *Sequence) String() string {
	var b strings.Builder
	b.WriteString("seq(")
	stringseq.WriteStringers(&b, slices.Values(s.Stmts), ", ")
	b.WriteString(")")
	return b.String()
}

func (*SuchThat) stmt() {}

// String representation of the such that statement.
func (s *SuchThat) String() string {
	var b strings.Builder
	b.WriteString("suchthat(")
	b.WriteString(s.Stmt.String())
	for _, rel := range s.Relations {
		b.WriteString(", ")
		b.WriteString(rel.String())
	}
	b.WriteString(")")
	return b.String()
}

// Root returns the statement guarded by the such that statements at the root of s
// and all the relations of these statements.
func Root(s Stmt) (Stmt, []Relation) {
	var rels []Relation
	for {
		st, ok := s.(*SuchThat)
		if !ok {
			return s, rels
		}
		rels = append(rels, st.Relations...)
		s = st.Stmt
	}
}

// WithRelations returns a statement guarded by the relations of s and additional relations.
func WithRelations(s Stmt, rels ...Relation) Stmt {
	body, prev := Root(s)
	all := append(slices.Clone(prev), rels...)
	if len(all) == 0 {
		return body
	}
	return &SuchThat{Stmt: body, Relations: all}
}
