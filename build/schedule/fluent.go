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

import "github.com/gx-org/tac/build/notation"

// Schedule chains transformations. The first error stops the chain.
type Schedule struct {
	stmt    notation.Stmt
	err     error
	applied []string
}

// Of starts a chain of transformations from a concrete statement.
func Of(s notation.Stmt) *Schedule {
	return &Schedule{stmt: s}
}

func (sch *Schedule) apply(name string, f func(notation.Stmt) (notation.Stmt, error)) *Schedule {
	if sch.err != nil {
		return sch
	}
	stmt, err := f(sch.stmt)
	if err != nil {
		return &Schedule{stmt: sch.stmt, err: err, applied: sch.applied}
	}
	applied := append(append([]string{}, sch.applied...), name)
	return &Schedule{stmt: stmt, applied: applied}
}

// Bound applies the Bound transformation.
func (sch *Schedule) Bound(v, bounded *notation.IndexVar, extent int, kind notation.BoundKind) *Schedule {
	return sch.apply("bound", func(s notation.Stmt) (notation.Stmt, error) {
		return Bound(s, v, bounded, extent, kind)
	})
}

// Split applies the Split transformation.
func (sch *Schedule) Split(v, outer, inner *notation.IndexVar, factor int) *Schedule {
	return sch.apply("split", func(s notation.Stmt) (notation.Stmt, error) {
		return Split(s, v, outer, inner, factor)
	})
}

// Precompute applies the Precompute transformation.
func (sch *Schedule) Precompute(expr notation.Expr, i, iw *notation.IndexVar, ws *notation.TensorVar) *Schedule {
	return sch.apply("precompute", func(s notation.Stmt) (notation.Stmt, error) {
		return Precompute(s, expr, i, iw, ws)
	})
}

// PrecomputeVars applies the PrecomputeVars transformation.
func (sch *Schedule) PrecomputeVars(expr notation.Expr, is, iws []*notation.IndexVar, ws *notation.TensorVar) *Schedule {
	return sch.apply("precompute", func(s notation.Stmt) (notation.Stmt, error) {
		return PrecomputeVars(s, expr, is, iws, ws)
	})
}

// Parallelize applies the Parallelize transformation.
func (sch *Schedule) Parallelize(v *notation.IndexVar, unit notation.ParallelUnit, race notation.RaceStrategy, degree int) *Schedule {
	return sch.apply("parallelize", func(s notation.Stmt) (notation.Stmt, error) {
		return Parallelize(s, v, unit, race, degree)
	})
}

// Reorder applies the Reorder transformation.
func (sch *Schedule) Reorder(a, b *notation.IndexVar) *Schedule {
	return sch.apply("reorder", func(s notation.Stmt) (notation.Stmt, error) {
		return Reorder(s, a, b)
	})
}

// ScalarPromote applies the ScalarPromote transformation.
func (sch *Schedule) ScalarPromote() *Schedule {
	return sch.apply("scalarPromote", ScalarPromote)
}

// Stmt returns the transformed statement or the first error.
func (sch *Schedule) Stmt() (notation.Stmt, error) {
	if sch.err != nil {
		return nil, sch.err
	}
	return sch.stmt, nil
}

// Applied returns the names of the transformations applied successfully.
func (sch *Schedule) Applied() []string {
	return append([]string{}, sch.applied...)
}
