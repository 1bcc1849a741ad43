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

package lower_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/gx-org/backend/dtype"
	"github.com/gx-org/tac/build/concrete"
	"github.com/gx-org/tac/build/fmterr"
	"github.com/gx-org/tac/build/ir/irstring"
	"github.com/gx-org/tac/build/lower"
	"github.com/gx-org/tac/build/notation"
	"github.com/gx-org/tac/build/schedule"
	"github.com/gx-org/tac/build/target"
)

func vector(name string, size int, format notation.Format) *notation.TensorVar {
	return notation.NewTensor(name, dtype.Float32, []notation.Dimension{notation.Fixed(size)}, format)
}

func concretize(t *testing.T, a *notation.Assignment) notation.Stmt {
	t.Helper()
	s, err := concrete.Concretize(a)
	if err != nil {
		t.Fatalf("%+v", err)
	}
	return s
}

func lowerString(t *testing.T, s notation.Stmt, cfg target.Config) string {
	t.Helper()
	fn, err := lower.Lower(s, "kernel", cfg)
	if err != nil {
		t.Fatalf("%+v", err)
	}
	return irstring.String(fn)
}

func TestGolden(t *testing.T) {
	i := notation.NewIndexVar("i")
	A := vector("A", 4, notation.DenseFormat(1))
	B := vector("B", 4, notation.DenseFormat(1))
	C := vector("C", 4, notation.DenseFormat(1))
	x := vector("x", 8, notation.SparseVector())
	y := vector("y", 8, notation.DenseFormat(1))
	tests := []struct {
		desc string
		stmt notation.Stmt
		want string
	}{
		{
			desc: "dense element-wise multiplication",
			stmt: concretize(t, notation.Assign(A.Access(i), notation.Mul(B.Access(i), C.Access(i)))),
			want: `kernel kernel(
	out A float32[4] Dense: A_vals
	in B float32[4] Dense: B_vals
	in C float32[4] Dense: C_vals
) target C {
	for p := 0; p < 4; p++ {
		A_vals[p] = 0
	}
	for i := 0; i < 4; i++ {
		A_vals[i] = B_vals[i] * C_vals[i]
	}
}`,
		},
		{
			desc: "sparse vector scaling",
			stmt: concretize(t, notation.Assign(y.Access(i), notation.Mul(x.Access(i), notation.Lit(2)))),
			want: `kernel kernel(
	out y float32[8] Dense: y_vals
	in x float32[8] Compressed: x1_pos x1_crd x_vals
) target C {
	for p := 0; p < 8; p++ {
		y_vals[p] = 0
	}
	for px1 := x1_pos[0]; px1 < x1_pos[1]; px1++ {
		var ix index = x1_crd[px1]
		y_vals[ix] = x_vals[px1] * 2
	}
}`,
		},
	}
	for _, test := range tests {
		t.Run(test.desc, func(t *testing.T) {
			got := lowerString(t, test.stmt, target.NewConfig(target.C))
			if diff := cmp.Diff(got, test.want); diff != "" {
				t.Errorf("unexpected kernel:\n%s\ngot:\n%s", diff, got)
			}
		})
	}
}

func TestLower(t *testing.T) {
	i := notation.NewIndexVar("i")
	A := vector("A", 8, notation.DenseFormat(1))
	B := vector("B", 8, notation.DenseFormat(1))
	C := vector("C", 8, notation.DenseFormat(1))
	a := vector("a", 8, notation.SparseVector())
	b := vector("b", 8, notation.SparseVector())
	c := vector("c", 8, notation.SparseVector())
	scalar := notation.NewScalar("A", dtype.Float32)
	dot := concretize(t, notation.Assign(scalar.Access(), notation.Mul(B.Access(i), C.Access(i))))
	parallel := func(s notation.Stmt, unit notation.ParallelUnit, race notation.RaceStrategy) notation.Stmt {
		t.Helper()
		par, err := schedule.Parallelize(s, i, unit, race, 0)
		if err != nil {
			t.Fatalf("%+v", err)
		}
		return par
	}
	noCompute := target.NewConfig(target.C)
	noCompute.Compute = false
	tests := []struct {
		desc   string
		stmt   notation.Stmt
		cfg    target.Config
		want   []string
		absent []string
	}{
		{
			desc: "merge two sparse vectors",
			stmt: concretize(t, notation.Assign(A.Access(i), notation.Add(b.Access(i), c.Access(i)))),
			cfg:  target.NewConfig(target.C),
			want: []string{
				"var pb1 index = b1_pos[0]",
				"var pc1_end index = c1_pos[1]",
				"while pb1 < pb1_end && pc1 < pc1_end {",
				"var i index = min(ib, ic)",
				"if ib == i && ic == i {",
				"A_vals[i] = b_vals[pb1] + c_vals[pc1]",
				"while pb1 < pb1_end {",
				"while pc1 < pc1_end {",
			},
		},
		{
			desc: "intersect two sparse vectors",
			stmt: concretize(t, notation.Assign(A.Access(i), notation.Mul(b.Access(i), c.Access(i)))),
			cfg:  target.NewConfig(target.C),
			want: []string{
				"while pb1 < pb1_end && pc1 < pc1_end {",
				"A_vals[i] = b_vals[pb1] * c_vals[pc1]",
			},
			absent: []string{"while pb1 < pb1_end {"},
		},
		{
			desc: "co-iterate dense and sparse vectors",
			stmt: concretize(t, notation.Assign(A.Access(i), notation.Add(b.Access(i), C.Access(i)))),
			cfg:  target.NewConfig(target.C),
			want: []string{
				"for i := 0; i < 8; i++ {",
				"var ib index = 8",
				"if ib == i {",
				"A_vals[i] = b_vals[pb1] + C_vals[i]",
				"A_vals[i] = C_vals[i]",
			},
		},
		{
			desc: "assemble a sparse output",
			stmt: concretize(t, notation.Assign(a.Access(i), notation.Mul(b.Access(i), notation.Lit(2)))),
			cfg:  target.NewConfig(target.C),
			want: []string{
				"var a1_cnt index = 0",
				"var pa1 index = a1_cnt",
				"a1_crd[a1_cnt] = ib",
				"a1_cnt = a1_cnt + 1",
				"a_vals[pa1] = b_vals[pb1] * 2",
				"a1_pos[1] = a1_cnt",
				"a1_pos[q] = max(a1_pos[q], a1_pos[q - 1])",
			},
		},
		{
			desc:   "assemble without computing",
			stmt:   concretize(t, notation.Assign(a.Access(i), notation.Mul(b.Access(i), notation.Lit(2)))),
			cfg:    noCompute,
			want:   []string{"a1_crd[a1_cnt] = ib"},
			absent: []string{"a_vals["},
		},
		{
			desc: "parallel reduction",
			stmt: parallel(dot, notation.CPUThread, notation.ParallelReduction),
			cfg:  target.NewConfig(target.C),
			want: []string{
				"accA = reduce parallel(CPUThread, 0, ParallelReduction) for i := 0; i < 8; i++ {",
				"accA = accA + B_vals[i] * C_vals[i]",
				"A_vals[0] += accA",
			},
		},
		{
			desc: "atomics",
			stmt: parallel(dot, notation.GPUThread, notation.Atomics),
			cfg:  target.NewConfig(target.CUDA),
			want: []string{
				"parallel(GPUThread, 0, Atomics) for i := 0; i < 8; i++ {",
				"atomic A_vals[0] += B_vals[i] * C_vals[i]",
			},
		},
		{
			desc: "temporary partial results",
			stmt: parallel(dot, notation.CPUThread, notation.Temporary),
			cfg:  target.NewConfig(target.C),
			want: []string{
				"A_partial[8]",
				"A_partial[i % 8] += B_vals[i] * C_vals[i]",
				"barrier(CPUThread)",
				"A_vals[pA] += A_partial[lane + pA]",
			},
		},
	}
	for _, test := range tests {
		t.Run(test.desc, func(t *testing.T) {
			got := lowerString(t, test.stmt, test.cfg)
			for _, want := range test.want {
				if !strings.Contains(got, want) {
					t.Errorf("kernel does not contain %q:\n%s", want, got)
				}
			}
			for _, absent := range test.absent {
				if strings.Contains(got, absent) {
					t.Errorf("kernel contains %q:\n%s", absent, got)
				}
			}
		})
	}
}

func TestLowerErrors(t *testing.T) {
	i := notation.NewIndexVar("i")
	B := vector("B", 8, notation.DenseFormat(1))
	C := vector("C", 8, notation.DenseFormat(1))
	a := vector("a", 8, notation.SparseVector())
	b := vector("b", 8, notation.SparseVector())
	scalar := notation.NewScalar("A", dtype.Float32)
	unknown := func(name string) *notation.TensorVar {
		return notation.NewTensor(name, dtype.Float32, []notation.Dimension{notation.Unknown()}, notation.DenseFormat(1))
	}
	dot := concretize(t, notation.Assign(scalar.Access(), notation.Mul(B.Access(i), C.Access(i))))
	atomics, err := schedule.Parallelize(dot, i, notation.CPUThread, notation.Atomics, 0)
	if err != nil {
		t.Fatalf("%+v", err)
	}
	noAssemble := target.NewConfig(target.C)
	noAssemble.Assemble = false
	tests := []struct {
		desc string
		stmt notation.Stmt
		cfg  target.Config
		want error
	}{
		{
			desc: "not concretized",
			stmt: notation.Assign(scalar.Access(), notation.Sum(i, B.Access(i))),
			cfg:  target.NewConfig(target.C),
			want: fmterr.ErrInvalidNotation,
		},
		{
			desc: "no static extent",
			stmt: concretize(t, notation.Assign(unknown("U").Access(i), unknown("V").Access(i))),
			cfg:  target.NewConfig(target.C),
			want: fmterr.ErrUnboundIndexVar,
		},
		{
			desc: "race strategy not available on the target",
			stmt: atomics,
			cfg:  target.NewConfig(target.Spatial),
			want: fmterr.ErrUnsupportedRaceStrategy,
		},
		{
			desc: "sparse output without assembly",
			stmt: concretize(t, notation.Assign(a.Access(i), b.Access(i))),
			cfg:  noAssemble,
			want: fmterr.ErrUnsupportedFormat,
		},
	}
	for _, test := range tests {
		t.Run(test.desc, func(t *testing.T) {
			fn, err := lower.Lower(test.stmt, "kernel", test.cfg)
			if err == nil {
				t.Fatalf("expected an error but got:\n%s", irstring.String(fn))
			}
			if !errors.Is(err, test.want) {
				t.Errorf("got error %v but want %v", err, test.want)
			}
		})
	}
}
