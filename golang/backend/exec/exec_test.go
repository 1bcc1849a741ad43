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

package exec_test

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/gx-org/backend/dtype"
	"github.com/gx-org/backend/shape"
	"github.com/gx-org/tac/build/concrete"
	"github.com/gx-org/tac/build/lower"
	"github.com/gx-org/tac/build/notation"
	"github.com/gx-org/tac/build/schedule"
	"github.com/gx-org/tac/build/target"
	"github.com/gx-org/tac/golang/backend/exec"
	"github.com/gx-org/tac/golang/backend/storage"
)

type tensor struct {
	v      *notation.TensorVar
	values []float64
}

func newTensor(name string, dt dtype.DataType, format notation.Format, dims ...int) *notation.TensorVar {
	ds := make([]notation.Dimension, len(dims))
	for i, d := range dims {
		ds[i] = notation.Fixed(d)
	}
	return notation.NewTensor(name, dt, ds, format)
}

func ramp(n int, keep func(int) bool) []float64 {
	vals := make([]float64, n)
	for i := range vals {
		if keep(i) {
			vals[i] = float64(i)
		}
	}
	return vals
}

func all(int) bool { return true }

func concretize(t *testing.T, a *notation.Assignment) notation.Stmt {
	t.Helper()
	s, err := concrete.Concretize(a)
	if err != nil {
		t.Fatalf("%+v", err)
	}
	return s
}

func schedStmt(t *testing.T, sch *schedule.Schedule) notation.Stmt {
	t.Helper()
	s, err := sch.Stmt()
	if err != nil {
		t.Fatalf("%+v", err)
	}
	return s
}

// run lowers a statement, executes it and returns the output in row-major order.
func run(t *testing.T, s notation.Stmt, cfg target.Config, out *notation.TensorVar, inputs ...tensor) []float64 {
	t.Helper()
	fn, err := lower.Lower(s, "kernel", cfg)
	if err != nil {
		t.Fatalf("%+v", err)
	}
	ins := make(exec.Tensors)
	for _, in := range inputs {
		arg := fn.Tensor(in.v)
		if arg == nil {
			t.Fatalf("kernel has no tensor %s", in.v)
		}
		sh := shape.Shape{DType: in.v.DType(), AxisLengths: arg.Dims}
		if ins[in.v.Name()], err = storage.Pack(in.values, sh, in.v.Format()); err != nil {
			t.Fatalf("%+v", err)
		}
	}
	outs, err := exec.Run(context.Background(), fn, ins)
	if err != nil {
		t.Fatalf("%+v", err)
	}
	res, ok := outs[out.Name()]
	if !ok {
		t.Fatalf("no output %s in %v", out.Name(), outs)
	}
	dense, err := res.Dense()
	if err != nil {
		t.Fatalf("%+v\n%s", err, res)
	}
	return dense
}

func TestScenarios(t *testing.T) {
	i, j, k, l := notation.NewIndexVar("i"), notation.NewIndexVar("j"), notation.NewIndexVar("k"), notation.NewIndexVar("l")
	ib, jb, kb := notation.NewIndexVar("ib"), notation.NewIndexVar("jb"), notation.NewIndexVar("kb")
	i0, i1 := notation.NewIndexVar("i0"), notation.NewIndexVar("i1")
	onChip := func(name string, v *notation.IndexVar) *notation.TensorVar {
		return notation.NewTemporary(name, dtype.Float64, []notation.Dimension{notation.Of(v)}, notation.DenseFormat(1), notation.WithMemory(notation.MemoryOnChip))
	}
	t.Run("element-wise multiplication", func(t *testing.T) {
		A := newTensor("A", dtype.Float32, notation.DenseFormat(1), 16)
		B := newTensor("B", dtype.Float32, notation.DenseFormat(1), 16)
		C := newTensor("C", dtype.Float32, notation.DenseFormat(1), 16)
		s := concretize(t, notation.Assign(A.Access(i), notation.Mul(B.Access(i), C.Access(i))))
		got := run(t, s, target.NewConfig(target.C), A,
			tensor{B, ramp(16, all)},
			tensor{C, ramp(16, all)},
		)
		want := make([]float64, 16)
		for x := range want {
			want[x] = float64(x * x)
		}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("unexpected result:\n%s", diff)
		}
	})
	t.Run("tiled dot product", func(t *testing.T) {
		const n = 1024
		A := notation.NewScalar("A", dtype.Int32)
		B := newTensor("B", dtype.Int32, notation.DenseFormat(1), n)
		C := newTensor("C", dtype.Int32, notation.DenseFormat(1), n)
		s := schedStmt(t, schedule.Of(concretize(t, notation.Assign(A.Access(), notation.Mul(B.Access(i), C.Access(i))))).
			Bound(i, ib, n, notation.MaxExact).
			Split(ib, i0, i1, n/2).
			Parallelize(i1, notation.Spatial, notation.ParallelReduction, 32))
		got := run(t, s, target.NewConfig(target.Spatial), A,
			tensor{B, ramp(n, all)},
			tensor{C, ramp(n, all)},
		)
		want := 0
		for x := range n {
			want += x * x
		}
		if diff := cmp.Diff([]float64{float64(want)}, got); diff != "" {
			t.Errorf("unexpected result:\n%s", diff)
		}
	})
	t.Run("matrix multiplication", func(t *testing.T) {
		const n = 16
		A := newTensor("A", dtype.Float64, notation.DenseFormat(2), n, n)
		B := newTensor("B", dtype.Float64, notation.DenseFormat(2), n, n)
		C := newTensor("C", dtype.Float64, notation.DenseFormat(2), n, n)
		s := schedStmt(t, schedule.Of(concretize(t, notation.Assign(A.Access(i, j), notation.Mul(B.Access(i, k), C.Access(k, j))))).
			Bound(k, kb, n, notation.MaxExact).
			Parallelize(kb, notation.Spatial, notation.ParallelReduction, n))
		bVals, cVals := make([]float64, n*n), make([]float64, n*n)
		for x := range bVals {
			bVals[x] = float64(x%7) - 3
			cVals[x] = float64(x%5) + 1
		}
		got := run(t, s, target.NewConfig(target.Spatial), A,
			tensor{B, bVals},
			tensor{C, cVals},
		)
		want := make([]float64, n*n)
		for r := range n {
			for c := range n {
				for x := range n {
					want[r*n+c] += bVals[r*n+x] * cVals[x*n+c]
				}
			}
		}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("unexpected result:\n%s", diff)
		}
	})
	t.Run("tiled element-wise multiplication with on-chip workspaces", func(t *testing.T) {
		const n = 1024
		A := newTensor("A", dtype.Float64, notation.DenseFormat(1), n)
		B := newTensor("B", dtype.Float64, notation.DenseFormat(1), n)
		C := newTensor("C", dtype.Float64, notation.DenseFormat(1), n)
		s := schedStmt(t, schedule.Of(concretize(t, notation.Assign(A.Access(i), notation.Mul(B.Access(i), C.Access(i))))).
			Bound(i, ib, n, notation.MaxExact).
			Split(ib, i0, i1, 16).
			Parallelize(i0, notation.Spatial, notation.IgnoreRaces, 2).
			Precompute(notation.Mul(B.Access(i), C.Access(i)), i1, i1, onChip("wsA", i1)).
			Precompute(B.Access(i), i1, i1, onChip("wsB", i1)).
			Precompute(C.Access(i), i1, i1, onChip("wsC", i1)).
			Parallelize(i1, notation.Spatial, notation.IgnoreRaces, 16))
		bVals, cVals := ramp(n, all), make([]float64, n)
		for x := range cVals {
			cVals[x] = float64(x%9) - 4
		}
		got := run(t, s, target.NewConfig(target.Spatial), A,
			tensor{B, bVals},
			tensor{C, cVals},
		)
		want := make([]float64, n)
		for x := range want {
			want[x] = bVals[x] * cVals[x]
		}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("unexpected result:\n%s", diff)
		}
	})
	t.Run("tiled dot product with on-chip workspaces", func(t *testing.T) {
		const n = 1024
		A := notation.NewScalar("A", dtype.Float64)
		B := newTensor("B", dtype.Float64, notation.DenseFormat(1), n)
		C := newTensor("C", dtype.Float64, notation.DenseFormat(1), n)
		s := schedStmt(t, schedule.Of(concretize(t, notation.Assign(A.Access(), notation.Mul(B.Access(i), C.Access(i))))).
			Bound(i, ib, n, notation.MaxExact).
			Split(ib, i0, i1, 32).
			Parallelize(i1, notation.Spatial, notation.ParallelReduction, 32).
			Precompute(notation.Mul(B.Access(i), C.Access(i)), i1, i1, onChip("wsP", i1)).
			Precompute(B.Access(i), i1, i1, onChip("wsB", i1)).
			Precompute(C.Access(i), i1, i1, onChip("wsC", i1)))
		got := run(t, s, target.NewConfig(target.Spatial), A,
			tensor{B, ramp(n, all)},
			tensor{C, ramp(n, all)},
		)
		want := 0.0
		for x := range n {
			want += float64(x * x)
		}
		if diff := cmp.Diff([]float64{want}, got); diff != "" {
			t.Errorf("unexpected result:\n%s", diff)
		}
	})
	t.Run("higher-order reduction", func(t *testing.T) {
		const n = 4
		A := newTensor("A", dtype.Float64, notation.DenseFormat(3), n, n, n)
		B := newTensor("B", dtype.Float64, notation.DenseFormat(3), n, n, n)
		C := newTensor("C", dtype.Float64, notation.DenseFormat(2), n, n)
		s := schedStmt(t, schedule.Of(concretize(t, notation.Assign(A.Access(i, j, l), notation.Mul(B.Access(i, j, k), C.Access(k, l))))).
			ScalarPromote().
			Bound(k, kb, n, notation.MaxExact).
			Parallelize(kb, notation.Spatial, notation.ParallelReduction, 0))
		bVals, cVals := make([]float64, n*n*n), make([]float64, n*n)
		for x := range bVals {
			bVals[x] = float64(x%6) - 2
		}
		for x := range cVals {
			cVals[x] = float64(x%3) + 1
		}
		got := run(t, s, target.NewConfig(target.Spatial), A,
			tensor{B, bVals},
			tensor{C, cVals},
		)
		want := make([]float64, n*n*n)
		for x := range n {
			for y := range n {
				for z := range n {
					for r := range n {
						want[(x*n+y)*n+z] += bVals[(x*n+y)*n+r] * cVals[r*n+z]
					}
				}
			}
		}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("unexpected result:\n%s", diff)
		}
	})
	t.Run("matrix multiplication with a promoted accumulator", func(t *testing.T) {
		const n = 8
		A := newTensor("A", dtype.Float64, notation.DenseFormat(2), n, n)
		B := newTensor("B", dtype.Float64, notation.DenseFormat(2), n, n)
		C := newTensor("C", dtype.Float64, notation.DenseFormat(2), n, n)
		s := schedStmt(t, schedule.Of(concretize(t, notation.Assign(A.Access(i, j), notation.Mul(B.Access(i, k), C.Access(k, j))))).
			ScalarPromote().
			Bound(i, ib, n, notation.MaxExact).
			Bound(j, jb, n, notation.MaxExact).
			Bound(k, kb, n, notation.MaxExact).
			Parallelize(kb, notation.Spatial, notation.ParallelReduction, n))
		bVals, cVals := make([]float64, n*n), make([]float64, n*n)
		for x := range bVals {
			bVals[x] = float64(x%4) + 1
			cVals[x] = float64(x%7) - 3
		}
		got := run(t, s, target.NewConfig(target.Spatial), A,
			tensor{B, bVals},
			tensor{C, cVals},
		)
		want := make([]float64, n*n)
		for r := range n {
			for c := range n {
				for x := range n {
					want[r*n+c] += bVals[r*n+x] * cVals[x*n+c]
				}
			}
		}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("unexpected result:\n%s", diff)
		}
	})
	t.Run("coordinate matrix times dense vector", func(t *testing.T) {
		const n = 16
		A := newTensor("A", dtype.Float64, notation.DenseFormat(1), n)
		B := newTensor("B", dtype.Float64, notation.COO(2), n, n)
		C := newTensor("C", dtype.Float64, notation.DenseFormat(1), n)
		s := schedStmt(t, schedule.Of(concretize(t, notation.Assign(A.Access(i), notation.Mul(B.Access(i, j), C.Access(j))))).
			Parallelize(j, notation.Spatial, notation.ParallelReduction, 0))
		bVals := make([]float64, n*n)
		for x := range n {
			bVals[x*n+x] = float64(x)
		}
		got := run(t, s, target.NewConfig(target.Spatial), A,
			tensor{B, bVals},
			tensor{C, ramp(n, func(x int) bool { return x%4 == 0 })},
		)
		want := ramp(n, func(x int) bool { return x%4 == 0 })
		for x := range want {
			want[x] *= want[x]
		}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("unexpected result:\n%s", diff)
		}
	})
}

func TestKernels(t *testing.T) {
	i, j, iw := notation.NewIndexVar("i"), notation.NewIndexVar("j"), notation.NewIndexVar("iw")
	ib, i0, i1 := notation.NewIndexVar("ib"), notation.NewIndexVar("i0"), notation.NewIndexVar("i1")
	denseVec := func(name string) *notation.TensorVar {
		return newTensor(name, dtype.Float64, notation.DenseFormat(1), 8)
	}
	sparseVec := func(name string) *notation.TensorVar {
		return newTensor(name, dtype.Float64, notation.SparseVector(), 8)
	}
	A, B, C := denseVec("A"), denseVec("B"), denseVec("C")
	a, b, c, e := sparseVec("a"), sparseVec("b"), sparseVec("c"), sparseVec("e")
	dot := notation.NewScalar("A", dtype.Float64)
	mat := newTensor("M", dtype.Float64, notation.DenseFormat(2), 8, 8)
	csr := newTensor("S", dtype.Float64, notation.CSR(), 8, 8)
	csrOut := newTensor("R", dtype.Float64, notation.CSR(), 8, 8)

	bVals := []float64{0, 1, 0, 2, 0, 0, 3, 0}
	cVals := []float64{4, 0, 0, 5, 0, 6, 0, 0}
	dVals := []float64{1, 2, 3, 4, 5, 6, 7, 8}
	eVals := []float64{0, 7, 0, 3, 1, 0, 2, 9}
	mVals := make([]float64, 64)
	for x := range mVals {
		if x%3 == 0 {
			mVals[x] = float64(x % 11)
		}
	}
	withWorkspace := func(name string, v *notation.IndexVar) *notation.TensorVar {
		return notation.NewTemporary(name, dtype.Float64, []notation.Dimension{notation.Of(v)}, notation.DenseFormat(1))
	}
	gemv := concretize(t, notation.Assign(A.Access(i), notation.Mul(mat.Access(i, j), C.Access(j))))
	dotStmt := concretize(t, notation.Assign(dot.Access(), notation.Mul(B.Access(i), C.Access(i))))
	elementWise := concretize(t, notation.Assign(A.Access(i), notation.Mul(B.Access(i), C.Access(i))))
	sparseDot := concretize(t, notation.Assign(dot.Access(), notation.Mul(b.Access(i), C.Access(i))))

	combine := func(x, y []float64, f func(x, y float64) float64) []float64 {
		res := make([]float64, len(x))
		for i := range x {
			res[i] = f(x[i], y[i])
		}
		return res
	}
	add := func(x, y float64) float64 { return x + y }
	mul := func(x, y float64) float64 { return x * y }
	matVec := func(m, v []float64) []float64 {
		res := make([]float64, len(v))
		for r := range v {
			for c := range v {
				res[r] += m[r*len(v)+c] * v[c]
			}
		}
		return res
	}
	dotOf := func(x, y []float64) []float64 {
		sum := 0.0
		for i := range x {
			sum += x[i] * y[i]
		}
		return []float64{sum}
	}
	outer := make([]float64, 64)
	for r := range 8 {
		for c := range 8 {
			outer[r*8+c] = bVals[r] * cVals[c]
		}
	}
	scaled := make([]float64, 64)
	for x, v := range mVals {
		scaled[x] = 2 * v
	}

	tests := []struct {
		desc   string
		stmt   notation.Stmt
		cfg    target.Config
		out    *notation.TensorVar
		inputs []tensor
		want   []float64
	}{
		{
			desc:   "merge two sparse vectors",
			stmt:   concretize(t, notation.Assign(A.Access(i), notation.Add(b.Access(i), c.Access(i)))),
			out:    A,
			inputs: []tensor{{b, bVals}, {c, cVals}},
			want:   combine(bVals, cVals, add),
		},
		{
			desc:   "intersect two sparse vectors",
			stmt:   concretize(t, notation.Assign(A.Access(i), notation.Mul(b.Access(i), c.Access(i)))),
			out:    A,
			inputs: []tensor{{b, bVals}, {c, cVals}},
			want:   combine(bVals, cVals, mul),
		},
		{
			desc:   "add a sparse and a dense vector",
			stmt:   concretize(t, notation.Assign(A.Access(i), notation.Add(b.Access(i), C.Access(i)))),
			out:    A,
			inputs: []tensor{{b, bVals}, {C, dVals}},
			want:   combine(bVals, dVals, add),
		},
		{
			desc:   "subtract sparse vectors",
			stmt:   concretize(t, notation.Assign(A.Access(i), notation.Sub(b.Access(i), c.Access(i)))),
			out:    A,
			inputs: []tensor{{b, bVals}, {c, cVals}},
			want:   combine(bVals, cVals, func(x, y float64) float64 { return x - y }),
		},
		{
			desc:   "assemble a sparse vector",
			stmt:   concretize(t, notation.Assign(a.Access(i), notation.Add(b.Access(i), c.Access(i)))),
			out:    a,
			inputs: []tensor{{b, bVals}, {c, cVals}},
			want:   combine(bVals, cVals, add),
		},
		{
			desc:   "assemble a sparse matrix",
			stmt:   concretize(t, notation.Assign(csrOut.Access(i, j), notation.Mul(csr.Access(i, j), notation.Lit(2)))),
			out:    csrOut,
			inputs: []tensor{{csr, mVals}},
			want:   scaled,
		},
		{
			desc:   "outer product of sparse vectors",
			stmt:   concretize(t, notation.Assign(mat.Access(i, j), notation.Mul(b.Access(i), c.Access(j)))),
			out:    mat,
			inputs: []tensor{{b, bVals}, {c, cVals}},
			want:   outer,
		},
		{
			desc:   "sparse matrix times dense vector",
			stmt:   concretize(t, notation.Assign(A.Access(i), notation.Mul(csr.Access(i, j), C.Access(j)))),
			out:    A,
			inputs: []tensor{{csr, mVals}, {C, dVals}},
			want:   matVec(mVals, dVals),
		},
		{
			desc:   "matrix vector multiplication with a promoted accumulator",
			stmt:   schedStmt(t, schedule.Of(gemv).ScalarPromote()),
			out:    A,
			inputs: []tensor{{mat, mVals}, {C, dVals}},
			want:   matVec(mVals, dVals),
		},
		{
			desc: "tiled precomputation",
			stmt: schedStmt(t, schedule.Of(elementWise).
				Bound(i, ib, 8, notation.MaxExact).
				Split(ib, i0, i1, 4).
				Precompute(notation.Mul(B.Access(i), C.Access(i)), i1, i1, withWorkspace("ws", i1))),
			out:    A,
			inputs: []tensor{{B, dVals}, {C, cVals}},
			want:   combine(dVals, cVals, mul),
		},
		{
			desc: "precomputation into a workspace variable",
			stmt: schedStmt(t, schedule.Of(elementWise).
				Precompute(notation.Mul(B.Access(i), C.Access(i)), i, iw, withWorkspace("ws", i))),
			out:    A,
			inputs: []tensor{{B, dVals}, {C, cVals}},
			want:   combine(dVals, cVals, mul),
		},
		{
			desc:   "dot product with partial results",
			stmt:   schedStmt(t, schedule.Of(dotStmt).Parallelize(i, notation.CPUThread, notation.Temporary, 3)),
			out:    dot,
			inputs: []tensor{{B, dVals}, {C, cVals}},
			want:   dotOf(dVals, cVals),
		},
		{
			desc:   "dot product with atomics",
			stmt:   schedStmt(t, schedule.Of(dotStmt).Parallelize(i, notation.CPUThread, notation.Atomics, 0)),
			out:    dot,
			inputs: []tensor{{B, dVals}, {C, cVals}},
			want:   dotOf(dVals, cVals),
		},
		{
			desc:   "merge three sparse vectors",
			stmt:   concretize(t, notation.Assign(A.Access(i), notation.Add(notation.Add(b.Access(i), c.Access(i)), e.Access(i)))),
			out:    A,
			inputs: []tensor{{b, bVals}, {c, cVals}, {e, eVals}},
			want:   combine(combine(bVals, cVals, add), eVals, add),
		},
		{
			desc:   "intersect three sparse vectors",
			stmt:   concretize(t, notation.Assign(A.Access(i), notation.Mul(notation.Mul(b.Access(i), c.Access(i)), e.Access(i)))),
			out:    A,
			inputs: []tensor{{b, bVals}, {c, cVals}, {e, eVals}},
			want:   combine(combine(bVals, cVals, mul), eVals, mul),
		},
		{
			desc:   "add a sparse vector to an intersection",
			stmt:   concretize(t, notation.Assign(A.Access(i), notation.Add(b.Access(i), notation.Mul(c.Access(i), e.Access(i))))),
			out:    A,
			inputs: []tensor{{b, bVals}, {c, cVals}, {e, eVals}},
			want:   combine(bVals, combine(cVals, eVals, mul), add),
		},
		{
			desc:   "assemble a sparse vector from three operands",
			stmt:   concretize(t, notation.Assign(a.Access(i), notation.Add(notation.Add(b.Access(i), c.Access(i)), e.Access(i)))),
			out:    a,
			inputs: []tensor{{b, bVals}, {c, cVals}, {e, eVals}},
			want:   combine(combine(bVals, cVals, add), eVals, add),
		},
		{
			desc:   "sparse dot product",
			stmt:   sparseDot,
			out:    dot,
			inputs: []tensor{{b, bVals}, {C, dVals}},
			want:   dotOf(bVals, dVals),
		},
		{
			desc:   "sparse dot product with partial results",
			stmt:   schedStmt(t, schedule.Of(sparseDot).Parallelize(i, notation.CPUThread, notation.Temporary, 3)),
			out:    dot,
			inputs: []tensor{{b, bVals}, {C, dVals}},
			want:   dotOf(bVals, dVals),
		},
		{
			desc:   "sparse dot product with atomics",
			stmt:   schedStmt(t, schedule.Of(sparseDot).Parallelize(i, notation.CPUThread, notation.Atomics, 0)),
			out:    dot,
			inputs: []tensor{{b, bVals}, {C, dVals}},
			want:   dotOf(bVals, dVals),
		},
		{
			desc:   "parallel element-wise multiplication",
			stmt:   schedStmt(t, schedule.Of(elementWise).Parallelize(i, notation.DefaultUnit, notation.NoRaces, 0)),
			cfg:    target.NewConfig(target.CUDA),
			out:    A,
			inputs: []tensor{{B, dVals}, {C, cVals}},
			want:   combine(dVals, cVals, mul),
		},
	}
	for _, test := range tests {
		t.Run(test.desc, func(t *testing.T) {
			cfg := test.cfg
			if cfg == (target.Config{}) {
				cfg = target.NewConfig(target.C)
			}
			got := run(t, test.stmt, cfg, test.out, test.inputs...)
			if diff := cmp.Diff(test.want, got); diff != "" {
				t.Errorf("unexpected result:\n%s", diff)
			}
		})
	}
}

func TestAssembleOnly(t *testing.T) {
	i := notation.NewIndexVar("i")
	a := newTensor("a", dtype.Float64, notation.SparseVector(), 8)
	b := newTensor("b", dtype.Float64, notation.SparseVector(), 8)
	c := newTensor("c", dtype.Float64, notation.SparseVector(), 8)
	s := concretize(t, notation.Assign(a.Access(i), notation.Add(b.Access(i), c.Access(i))))
	cfg := target.NewConfig(target.C)
	cfg.Compute = false
	fn, err := lower.Lower(s, "assemble", cfg)
	if err != nil {
		t.Fatalf("%+v", err)
	}
	ins := make(exec.Tensors)
	for name, vals := range map[string][]float64{
		"b": {0, 1, 0, 2, 0, 0, 3, 0},
		"c": {4, 0, 0, 5, 0, 6, 0, 0},
	} {
		if ins[name], err = storage.Pack(vals, shape.Shape{DType: dtype.Float64, AxisLengths: []int{8}}, notation.SparseVector()); err != nil {
			t.Fatalf("%+v", err)
		}
	}
	outs, err := exec.Run(context.Background(), fn, ins)
	if err != nil {
		t.Fatalf("%+v", err)
	}
	got := outs["a"]
	want := []storage.Level{{Pos: []int{0, 5}, Crd: []int{0, 1, 3, 5, 6}}}
	if diff := cmp.Diff(want, got.Levels); diff != "" {
		t.Errorf("unexpected levels:\n%s", diff)
	}
	if diff := cmp.Diff([]float64{0, 0, 0, 0, 0}, got.Vals); diff != "" {
		t.Errorf("values should not be computed:\n%s", diff)
	}
}

func TestErrors(t *testing.T) {
	i := notation.NewIndexVar("i")
	A := newTensor("A", dtype.Float64, notation.DenseFormat(1), 4)
	B := newTensor("B", dtype.Float64, notation.DenseFormat(1), 4)
	fn, err := lower.Lower(concretize(t, notation.Assign(A.Access(i), B.Access(i))), "copy", target.NewConfig(target.C))
	if err != nil {
		t.Fatalf("%+v", err)
	}
	pack := func(n int, format notation.Format) *storage.Tensor {
		t.Helper()
		st, err := storage.Pack(make([]float64, n), shape.Shape{DType: dtype.Float64, AxisLengths: []int{n}}, format)
		if err != nil {
			t.Fatalf("%+v", err)
		}
		return st
	}
	cancelled, cancel := context.WithCancel(context.Background())
	cancel()
	tests := []struct {
		desc   string
		ctx    context.Context
		inputs exec.Tensors
	}{
		{desc: "missing input", inputs: exec.Tensors{}},
		{desc: "unknown tensor", inputs: exec.Tensors{"B": pack(4, notation.DenseFormat(1)), "X": pack(4, notation.DenseFormat(1))}},
		{desc: "output given as an input", inputs: exec.Tensors{"A": pack(4, notation.DenseFormat(1)), "B": pack(4, notation.DenseFormat(1))}},
		{desc: "wrong length", inputs: exec.Tensors{"B": pack(5, notation.DenseFormat(1))}},
		{desc: "wrong format", inputs: exec.Tensors{"B": pack(4, notation.SparseVector())}},
		{desc: "cancelled", ctx: cancelled, inputs: exec.Tensors{"B": pack(4, notation.DenseFormat(1))}},
	}
	for _, test := range tests {
		t.Run(test.desc, func(t *testing.T) {
			ctx := test.ctx
			if ctx == nil {
				ctx = context.Background()
			}
			if _, err := exec.Run(ctx, fn, test.inputs); err == nil {
				t.Errorf("expected an error")
			}
		})
	}
}
