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
	"github.com/gx-org/tac/base/uname"
	"github.com/gx-org/tac/build/notation"
)

// reductionChain returns the loops, starting from loop, nested around an accumulation whose
// location does not depend on any of these loops.
func reductionChain(prov *notation.Provenance, loop *notation.Forall) ([]*notation.Forall, *notation.Assignment) {
	var chain []*notation.Forall
	var s notation.Stmt = loop
	for {
		switch sT := s.(type) {
		case *notation.Forall:
			chain = append(chain, sT)
			s = sT.Body
			continue
		case *notation.Assignment:
			if !sT.IsAccumulation() || sT.Lhs.Tensor.Order() == 0 {
				return nil, nil
			}
			for _, l := range chain {
				if prov.AccessDependsOn(sT.Lhs, l.Var) {
					return nil, nil
				}
			}
			return chain, sT
		}
		return nil, nil
	}
}

// ScalarPromote accumulates reductions into scalar temporaries stored in registers.
//
// Every loop nest forall(r, A(...) += e) where the location of A does not depend on the
// reduction variables r is rewritten into where(A(...) += t, forall(r, t += e)).
// Accumulations into scalars are left unchanged.
func ScalarPromote(s notation.Stmt) (notation.Stmt, error) {
	if err := checkConcrete(s); err != nil {
		return nil, err
	}
	unames := uname.New()
	for _, t := range notation.Tensors(s) {
		unames.Register(t.Name())
	}
	prov := notation.ProvenanceOf(s)
	body, _ := notation.Root(s)
	body = notation.RewriteStmt(body, func(s notation.Stmt) (notation.Stmt, bool) {
		loop, ok := s.(*notation.Forall)
		if !ok {
			return nil, false
		}
		chain, assign := reductionChain(prov, loop)
		if chain == nil {
			return nil, false
		}
		tmp := notation.NewTemporary(
			unames.Name("t"+assign.Lhs.Tensor.Name()),
			assign.Lhs.Tensor.DType(),
			nil,
			notation.DenseFormat(0),
			notation.WithMemory(notation.MemoryRegister),
		)
		var producer notation.Stmt = notation.Accumulate(tmp.Access(), assign.Rhs)
		for i := len(chain) - 1; i >= 0; i-- {
			producer = chain[i].WithBody(producer)
		}
		return notation.NewWhere(notation.Accumulate(assign.Lhs, tmp.Access()), producer), true
	})
	return withBody(s, body), nil
}
