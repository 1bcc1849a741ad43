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

// Package lattice builds the merge lattices used to co-iterate sparse tensor accesses.
//
// A merge lattice lists the cases of a loop over an index variable co-iterating
// several sparse accesses. Each point of the lattice is a subset of the sparse
// accesses present at a coordinate together with the expression computed when
// only these accesses are present. Dense accesses are present in every point.
package lattice

import (
	"math/bits"
	"slices"
	"strings"

	"github.com/gx-org/tac/build/fmterr"
	"github.com/gx-org/tac/build/notation"
)

const maxIterators = 16

type (
	// Point is a case of a merge lattice.
	Point struct {
		// Mask of the iterators present at the point: bit k is set if the k-th iterator
		// of the lattice is present.
		Mask uint32
		// Iterators present at the point, in source order.
		Iterators []*notation.Access
		// Expr is the expression restricted to the present iterators.
		Expr notation.Expr
	}

	// Lattice is the merge lattice of a loop.
	Lattice struct {
		Var *notation.IndexVar
		// Iterators co-iterated by the loop, in source order.
		Iterators []*notation.Access
		// Points from the most specific (all iterators present) to the least specific.
		Points []*Point
	}
)

// Build the merge lattice of an expression in a loop over v co-iterating the given accesses.
// The accesses must be nodes of the expression.
func Build(expr notation.Expr, v *notation.IndexVar, iterators []*notation.Access) (*Lattice, error) {
	ordered, err := sourceOrder(expr, iterators)
	if err != nil {
		return nil, err
	}
	if len(ordered) > maxIterators {
		return nil, fmterr.Errorf(fmterr.ErrUnsupportedFormat, "cannot co-iterate %d sparse accesses over %s: at most %d are supported", len(ordered), v, maxIterators)
	}
	l := &Lattice{Var: v, Iterators: ordered}
	monotone := isMonotone(expr)
	var zeros []uint32
	for _, mask := range masks(len(ordered)) {
		if monotone && subsetOfAny(mask, zeros) {
			continue
		}
		restricted := restrict(expr, l.Iterators, l.present(mask))
		if isZero(restricted) {
			zeros = append(zeros, mask)
			continue
		}
		l.Points = append(l.Points, &Point{
			Mask:      mask,
			Iterators: l.present(mask),
			Expr:      restricted,
		})
	}
	return l, nil
}

// sourceOrder returns the iterators sorted by their position in the expression.
func sourceOrder(expr notation.Expr, iterators []*notation.Access) ([]*notation.Access, error) {
	accesses := notation.ExprAccesses(expr)
	var ordered []*notation.Access
	for _, a := range accesses {
		if slices.Contains(iterators, a) && !slices.Contains(ordered, a) {
			ordered = append(ordered, a)
		}
	}
	for _, it := range iterators {
		if !slices.Contains(ordered, it) {
			return nil, fmterr.Internalf("iterator %s is not an access of %s", it, expr)
		}
	}
	return ordered, nil
}

// masks returns all the subsets of n iterators ordered by decreasing size then
// by lexicographic order of the iterator positions.
func masks(n int) []uint32 {
	all := make([]uint32, 1<<n)
	for m := range all {
		all[m] = uint32(m)
	}
	slices.SortFunc(all, func(a, b uint32) int {
		if ca, cb := bits.OnesCount32(a), bits.OnesCount32(b); ca != cb {
			return cb - ca
		}
		return compareLex(a, b)
	})
	return all
}

// compareLex compares the sorted lists of the positions of the bits set in a and b.
func compareLex(a, b uint32) int {
	for a != 0 && b != 0 {
		pa, pb := bits.TrailingZeros32(a), bits.TrailingZeros32(b)
		if pa != pb {
			return pa - pb
		}
		a &= a - 1
		b &= b - 1
	}
	switch {
	case a == b:
		return 0
	case a == 0:
		return -1
	}
	return 1
}

func subsetOfAny(mask uint32, of []uint32) bool {
	for _, m := range of {
		if mask&m == mask {
			return true
		}
	}
	return false
}

func (l *Lattice) present(mask uint32) []*notation.Access {
	var present []*notation.Access
	for k, it := range l.Iterators {
		if mask&(1<<k) != 0 {
			present = append(present, it)
		}
	}
	return present
}

// Exact returns true if the loop only needs to visit the coordinates of its iterators,
// that is if the expression is zero when no iterator is present.
func (l *Lattice) Exact() bool {
	return len(l.Points) == 0 || l.Points[len(l.Points)-1].Mask != 0
}

// Top returns the first point of the lattice or nil if the lattice is empty.
func (l *Lattice) Top() *Point {
	if len(l.Points) == 0 {
		return nil
	}
	return l.Points[0]
}

// SubPoints returns, in lattice order, the points whose iterators are all present in p,
// p included.
func (l *Lattice) SubPoints(p *Point) []*Point {
	var sub []*Point
	for _, q := range l.Points {
		if q.Mask&p.Mask == q.Mask {
			sub = append(sub, q)
		}
	}
	return sub
}

// Loops returns the points from which the merge loops start: one loop per point iterating
// while all the iterators of the point have coordinates left. The universe point is excluded.
func (l *Lattice) Loops() []*Point {
	var loops []*Point
	for _, p := range l.Points {
		if p.Mask != 0 {
			loops = append(loops, p)
		}
	}
	return loops
}

// Index returns the position of an iterator in the lattice or -1.
func (l *Lattice) Index(it *notation.Access) int {
	return slices.Index(l.Iterators, it)
}

// String representation of the point.
func (p *Point) String() string {
	names := make([]string, len(p.Iterators))
	for i, it := range p.Iterators {
		names[i] = it.String()
	}
	return "[" + strings.Join(names, " ") + "]: " + p.Expr.String()
}

// String representation of the lattice.
func (l *Lattice) String() string {
	var s strings.Builder
	s.WriteString("lattice(")
	s.WriteString(l.Var.String())
	s.WriteString(")")
	for _, p := range l.Points {
		s.WriteString("\n  ")
		s.WriteString(p.String())
	}
	return s.String()
}
