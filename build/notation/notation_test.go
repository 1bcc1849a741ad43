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

package notation_test

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/gx-org/backend/dtype"
	"github.com/gx-org/tac/build/fmterr"
	"github.com/gx-org/tac/build/notation"
)

func vector(name string, size int, format notation.Format) *notation.TensorVar {
	return notation.NewTensor(name, dtype.Float32, []notation.Dimension{notation.Fixed(size)}, format)
}

func matrix(name string, rows, cols int, format notation.Format) *notation.TensorVar {
	return notation.NewTensor(name, dtype.Float32, []notation.Dimension{notation.Fixed(rows), notation.Fixed(cols)}, format)
}

func TestString(t *testing.T) {
	i, j, k := notation.NewIndexVar("i"), notation.NewIndexVar("j"), notation.NewIndexVar("k")
	ib := notation.NewIndexVar("ib")
	A := matrix("A", 4, 4, notation.DenseFormat(2))
	B := matrix("B", 4, 4, notation.CSR())
	C := matrix("C", 4, 4, notation.DenseFormat(2))
	tests := []struct {
		node fmtStringer
		want string
	}{
		{
			node: notation.Assign(A.Access(i, j), notation.Mul(B.Access(i, k), C.Access(k, j))),
			want: "A(i,j) = B(i,k) * C(k,j)",
		},
		{
			node: notation.Mul(notation.Add(B.Access(i, k), C.Access(i, k)), notation.Lit(2)),
			want: "(B(i,k) + C(i,k)) * 2",
		},
		{
			node: notation.Sub(B.Access(i, k), notation.Sub(C.Access(i, k), notation.Lit(1))),
			want: "B(i,k) - (C(i,k) - 1)",
		},
		{
			node: notation.Max(&notation.Neg{X: B.Access(i, k)}, notation.Sum(k, C.Access(i, k))),
			want: "max(-B(i,k), sum(k, C(i,k)))",
		},
		{
			node: notation.NewForall(i, notation.NewForall(j, notation.Accumulate(A.Access(i, j), B.Access(i, j)))),
			want: "forall(i, forall(j, A(i,j) += B(i,j)))",
		},
		{
			node: &notation.Forall{Var: i, Body: notation.Assign(A.Access(i, j), C.Access(i, j)), Unit: notation.CPUThread, Race: notation.NoRaces, Degree: 4},
			want: "forall(i, A(i,j) = C(i,j), CPUThread, NoRaces, 4)",
		},
		{
			node: notation.WithRelations(
				notation.NewForall(ib, notation.Assign(A.Access(i, j), C.Access(i, j))),
				&notation.BoundRelation{Var: i, Bounded: ib, Extent: 16, Kind: notation.MaxExact},
			),
			want: "suchthat(forall(ib, A(i,j) = C(i,j)), bound(i, ib, 16, MaxExact))",
		},
	}
	for i, test := range tests {
		if got := test.node.String(); got != test.want {
			t.Errorf("test %d: got %q but want %q", i, got, test.want)
		}
	}
}

type fmtStringer interface{ String() string }

func TestFormat(t *testing.T) {
	tests := []struct {
		format   notation.Format
		want     string
		allDense bool
	}{
		{format: notation.DenseFormat(2), want: "{Dense,Dense}", allDense: true},
		{format: notation.CSR(), want: "{Dense,Compressed}"},
		{format: notation.CSC(), want: "{Dense,Compressed}[1 0]"},
		{format: notation.COO(2), want: "{Compressed(nonunique),Singleton}"},
		{format: notation.COO(1), want: "{Compressed}"},
		{format: notation.SparseVector(), want: "{Compressed}"},
	}
	for _, test := range tests {
		if got := test.format.String(); got != test.want {
			t.Errorf("got %q but want %q", got, test.want)
		}
		if got := test.format.AllDense(); got != test.allDense {
			t.Errorf("%s: AllDense() = %v but want %v", test.format, got, test.allDense)
		}
	}
	if !notation.CSR().Equal(notation.NewFormat([]notation.Level{notation.DenseLevel, notation.CompressedLevel}, []int{0, 1})) {
		t.Errorf("CSR should be equal to an explicit dense-compressed format")
	}
	if notation.CSR().Equal(notation.CSC()) {
		t.Errorf("CSR should not be equal to CSC")
	}
}

func TestProvenance(t *testing.T) {
	i, ib, i0, i1, iw := notation.NewIndexVar("i"), notation.NewIndexVar("ib"), notation.NewIndexVar("i0"), notation.NewIndexVar("i1"), notation.NewIndexVar("iw")
	prov := notation.NewProvenance([]notation.Relation{
		&notation.BoundRelation{Var: i, Bounded: ib, Extent: 18, Kind: notation.MaxExact},
		&notation.SplitRelation{Var: ib, Outer: i0, Inner: i1, Factor: 4},
		&notation.PrecomputeRelation{Var: i1, Workspace: iw},
	})
	want := map[*notation.IndexVar]notation.Extent{
		i:  {Size: 18, Exact: true},
		ib: {Size: 18, Exact: true},
		i0: {Size: 5, Exact: false},
		i1: {Size: 4, Exact: false},
		iw: {Size: 4, Exact: false},
	}
	for v, wantExt := range want {
		got, ok := prov.Extent(v)
		if !ok {
			t.Errorf("%s has no extent", v)
			continue
		}
		if !cmp.Equal(got, wantExt) {
			t.Errorf("extent of %s: got %v but want %v", v, got, wantExt)
		}
	}
	if got := prov.Root(iw); got != i {
		t.Errorf("root of iw: got %s but want i", got)
	}
	if !prov.DependsOn(i, iw) || prov.DependsOn(i0, i1) {
		t.Errorf("wrong dependencies")
	}
	inScope := func(vs ...*notation.IndexVar) func(*notation.IndexVar) bool {
		return func(v *notation.IndexVar) bool {
			for _, s := range vs {
				if s == v {
					return true
				}
			}
			return false
		}
	}
	if !prov.Recoverable(i, inScope(i0, i1)) {
		t.Errorf("i should be recoverable from i0 and i1")
	}
	if prov.Recoverable(i, inScope(i0)) {
		t.Errorf("i should not be recoverable from i0 only")
	}
	if prov.IsAlias(i1) || !prov.IsAlias(ib) {
		t.Errorf("wrong aliases")
	}
}

func TestAccessDependsOn(t *testing.T) {
	i, ib, i0, i1, iw := notation.NewIndexVar("i"), notation.NewIndexVar("ib"), notation.NewIndexVar("i0"), notation.NewIndexVar("i1"), notation.NewIndexVar("iw")
	prov := notation.NewProvenance([]notation.Relation{
		&notation.BoundRelation{Var: i, Bounded: ib, Extent: 16, Kind: notation.MaxExact},
		&notation.SplitRelation{Var: ib, Outer: i0, Inner: i1, Factor: 4},
		&notation.PrecomputeRelation{Var: i1, Workspace: iw},
	})
	A := vector("A", 16, notation.DenseFormat(1))
	tests := []struct {
		access *notation.Access
		v      *notation.IndexVar
		want   bool
	}{
		{access: A.Access(i), v: i, want: true},
		{access: A.Access(i), v: i1, want: true},
		{access: A.Access(ib), v: i, want: true},
		{access: A.Access(i1), v: iw, want: true},
		{access: A.Access(i0), v: i1, want: false},
		{access: A.Access(i1), v: i0, want: false},
	}
	for _, test := range tests {
		if got := prov.AccessDependsOn(test.access, test.v); got != test.want {
			t.Errorf("AccessDependsOn(%s, %s) = %v but want %v", test.access, test.v, got, test.want)
		}
	}
}

func TestLocals(t *testing.T) {
	i := notation.NewIndexVar("i")
	A := vector("A", 4, notation.DenseFormat(1))
	B := vector("B", 4, notation.DenseFormat(1))
	tmp := notation.NewTemporary("t", dtype.Float32, nil, notation.DenseFormat(0))
	s := notation.NewForall(i, notation.NewWhere(
		notation.Assign(A.Access(i), tmp.Access()),
		notation.Assign(tmp.Access(), B.Access(i)),
	))
	if diff := cmp.Diff(map[*notation.TensorVar]bool{tmp: true}, notation.Locals(s)); diff != "" {
		t.Errorf("unexpected locals:\n%s", diff)
	}
	if got := notation.Locals(notation.Assign(A.Access(i), B.Access(i))); len(got) != 0 {
		t.Errorf("an assignment has no local but got %v", got)
	}
}

func TestExtents(t *testing.T) {
	i, j, ib := notation.NewIndexVar("i"), notation.NewIndexVar("j"), notation.NewIndexVar("ib")
	A := notation.NewTensor("A", dtype.Float32, []notation.Dimension{notation.Fixed(10), notation.Of(i)}, notation.DenseFormat(2))
	stmt := notation.WithRelations(
		notation.NewForall(ib, notation.NewForall(j, notation.Assign(A.Access(i, j), notation.Lit(1)))),
		&notation.BoundRelation{Var: i, Bounded: ib, Extent: 16, Kind: notation.MaxConstraint},
	)
	x := notation.NewExtents(stmt)
	ext, err := x.Of(ib)
	if err != nil {
		t.Fatal(err)
	}
	if !cmp.Equal(ext, notation.Extent{Size: 16, Exact: false}) {
		t.Errorf("got extent %v", ext)
	}
	limit, err := x.Limit(ib)
	if err != nil {
		t.Fatal(err)
	}
	if limit != 10 {
		t.Errorf("got limit %d but want 10", limit)
	}
	// j takes the extent of i through its symbolic dimension.
	if ext, err := x.Of(j); err != nil || ext.Size != 10 {
		t.Errorf("extent of j: got %v, %v but want 10", ext, err)
	}
	unbound := notation.NewIndexVar("u")
	if _, err := x.Of(unbound); !errors.Is(err, fmterr.ErrUnboundIndexVar) {
		t.Errorf("got error %v but want %v", err, fmterr.ErrUnboundIndexVar)
	}
}

func TestVerify(t *testing.T) {
	i, j := notation.NewIndexVar("i"), notation.NewIndexVar("j")
	A := vector("A", 4, notation.DenseFormat(1))
	B := matrix("B", 4, 4, notation.DenseFormat(2))
	ok := notation.NewForall(i, notation.NewForall(j, notation.Accumulate(A.Access(i), B.Access(i, j))))
	if err := notation.Verify(ok); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if !notation.IsConcrete(ok) {
		t.Errorf("%s should be concrete", ok)
	}
	bad := notation.NewForall(i, notation.Assign(A.Access(i, j), B.Access(j, j)))
	err := notation.Verify(bad)
	if !errors.Is(err, fmterr.ErrInvalidNotation) {
		t.Fatalf("got error %v but want %v", err, fmterr.ErrInvalidNotation)
	}
	var errs fmterr.Errors
	errs.Append(err)
	if got := len(errs.Errors()); got != 4 {
		t.Errorf("got %d errors but want 4:\n%s", got, errs.String())
	}
	if notation.IsConcrete(notation.Assign(A.Access(i), notation.Sum(j, B.Access(i, j)))) {
		t.Errorf("an assignment with a reduction is not concrete")
	}
}

func TestReplace(t *testing.T) {
	i, j, iw := notation.NewIndexVar("i"), notation.NewIndexVar("j"), notation.NewIndexVar("iw")
	A := vector("A", 4, notation.DenseFormat(1))
	B := vector("B", 4, notation.DenseFormat(1))
	C := vector("C", 4, notation.DenseFormat(1))
	D := matrix("D", 4, 4, notation.DenseFormat(2))
	mul := notation.Mul(B.Access(i), C.Access(i))
	stmt := notation.NewForall(i, notation.NewForall(j, notation.Accumulate(A.Access(i), notation.Add(mul, D.Access(i, j)))))
	ws := notation.NewTemporary("ws", dtype.Float32, nil, notation.DenseFormat(0))
	got := notation.ReplaceExprInStmt(stmt, func(e notation.Expr) (notation.Expr, bool) {
		if notation.EqualExpr(e, notation.Mul(B.Access(i), C.Access(i))) {
			return ws.Access(), true
		}
		return nil, false
	})
	if want := "forall(i, forall(j, A(i) += ws + D(i,j)))"; got.String() != want {
		t.Errorf("got %s but want %s", got, want)
	}
	if want := "forall(i, forall(j, A(i) += B(i) * C(i) + D(i,j)))"; stmt.String() != want {
		t.Errorf("input has been modified: %s", stmt)
	}
	renamed := notation.RenameVar(stmt, i, iw)
	if want := "forall(iw, forall(j, A(iw) += B(iw) * C(iw) + D(iw,j)))"; renamed.String() != want {
		t.Errorf("got %s but want %s", renamed, want)
	}
	same := notation.ReplaceExprInStmt(stmt, func(notation.Expr) (notation.Expr, bool) { return nil, false })
	if !notation.EqualStmt(same, stmt) {
		t.Errorf("identity replacement changed the statement: %s", same)
	}
	if notation.EqualStmt(renamed, stmt) {
		t.Errorf("statements over different variables should be different")
	}
}
