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

package ir_test

import (
	"testing"

	"github.com/gx-org/tac/build/ir"
	"github.com/gx-org/tac/build/ir/irkind"
)

func TestFoldIndex(t *testing.T) {
	v := ir.NewVar("v", irkind.Index)
	f := ir.NewVar("f", irkind.Float32)
	tests := []struct {
		got  ir.Expr
		want ir.Expr
	}{
		{got: ir.Add(ir.Int(0), v), want: v},
		{got: ir.Add(v, ir.Int(0)), want: v},
		{got: ir.Mul(ir.Int(1), v), want: v},
		{got: ir.Sub(v, ir.Int(0)), want: v},
		{got: ir.Div(v, ir.Int(1)), want: v},
	}
	for i, test := range tests {
		if test.got != test.want {
			t.Errorf("test %d: expression has not been folded: got %#v", i, test.got)
		}
	}
	consts := []struct {
		got  ir.Expr
		want float64
	}{
		{got: ir.Mul(ir.Int(2), ir.Int(3)), want: 6},
		{got: ir.Add(ir.Mul(ir.Int(2), ir.Int(3)), ir.Int(1)), want: 7},
		{got: ir.Rem(ir.Int(7), ir.Int(4)), want: 3},
		{got: ir.Mul(v, ir.Int(0)), want: 0},
	}
	for i, test := range consts {
		got, ok := ir.ConstValue(test.got)
		if !ok || got != test.want {
			t.Errorf("test %d: got %#v but want constant %v", i, test.got, test.want)
		}
	}
	if _, ok := ir.Add(f, &ir.Const{Value: 0, Knd: irkind.Float32}).(*ir.BinaryExpr); !ok {
		t.Errorf("float expressions should not be folded")
	}
	if _, ok := ir.Div(ir.Int(1), ir.Int(0)).(*ir.BinaryExpr); !ok {
		t.Errorf("division by zero should not be folded")
	}
}

func TestAnd(t *testing.T) {
	a := ir.Lt(ir.NewVar("a", irkind.Index), ir.Int(1))
	if got := ir.And(); got != ir.True {
		t.Errorf("empty conjunction: got %#v but want true", got)
	}
	if got := ir.And(ir.True, a); got != a {
		t.Errorf("got %#v but want %#v", got, a)
	}
	if got := ir.And(a, a); got.Kind() != irkind.Bool {
		t.Errorf("conjunction has kind %s", got.Kind())
	}
}
