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
	"github.com/gx-org/tac/build/fmterr"
)

// Extents resolves the static extents of the index variables of a statement.
// An extent is given, in order of priority, by the relations of the statement,
// by the fixed dimensions of the tensors accessed by the variable, or by the
// extent of the variable defining a symbolic dimension.
type Extents struct {
	prov *Provenance
	dims map[*IndexVar][]Dimension
}

// NewExtents returns the extents of the index variables of a statement.
func NewExtents(s Stmt) *Extents {
	x := &Extents{
		prov: ProvenanceOf(s),
		dims: make(map[*IndexVar][]Dimension),
	}
	for _, a := range Accesses(s) {
		if a.Tensor == nil {
			continue
		}
		for k, idx := range a.Indices {
			if k >= a.Tensor.Order() {
				break
			}
			x.dims[idx] = append(x.dims[idx], a.Tensor.Dim(k))
		}
	}
	return x
}

// Provenance returns the relations between the variables.
func (x *Extents) Provenance() *Provenance {
	return x.prov
}

// Dim returns the size of the tensor dimensions accessed by v.
// Returns an error if two tensors disagree on the size of the dimension.
func (x *Extents) Dim(v *IndexVar) (int, bool, error) {
	return x.dim(v, map[*IndexVar]bool{})
}

func (x *Extents) dim(v *IndexVar, visiting map[*IndexVar]bool) (int, bool, error) {
	if visiting[v] {
		return 0, false, nil
	}
	visiting[v] = true
	size := 0
	for _, d := range x.dims[v] {
		if !d.IsFixed() {
			continue
		}
		if size > 0 && size != d.Size() {
			return 0, false, fmterr.Errorf(fmterr.ErrInvalidNotation, "index variable %s accesses dimensions of different sizes: %d and %d", v, size, d.Size())
		}
		size = d.Size()
	}
	if size > 0 {
		return size, true, nil
	}
	for _, d := range x.dims[v] {
		if d.Var() == nil {
			continue
		}
		if size, ok, err := x.dim(d.Var(), visiting); ok || err != nil {
			return size, ok, err
		}
	}
	return 0, false, nil
}

// Limit returns the number of values actually taken by a variable.
// The limit is smaller than the iteration extent when the loops over
// a variable have been bounded by a constraint or split by a non-dividing factor.
func (x *Extents) Limit(v *IndexVar) (int, error) {
	root := x.prov.Root(v)
	if size, ok, err := x.Dim(root); ok || err != nil {
		return size, err
	}
	if bound := x.prov.Bound(root); bound != nil {
		return bound.Extent, nil
	}
	for _, desc := range x.prov.Descendants(root) {
		if bound := x.prov.Bound(desc); bound != nil && x.prov.IsAlias(desc) {
			return bound.Extent, nil
		}
	}
	return 0, fmterr.Errorf(fmterr.ErrUnboundIndexVar, "the extent of index variable %s has not been bound", root)
}

// Of returns the number of iterations of the loops over v.
func (x *Extents) Of(v *IndexVar) (Extent, error) {
	if ext, ok := x.prov.Extent(v); ok {
		return ext, nil
	}
	if x.prov.IsDerived(v) && !x.prov.IsAlias(v) {
		return Extent{}, fmterr.Errorf(fmterr.ErrUnboundIndexVar, "index variable %s has been derived from a variable with no static extent", v)
	}
	size, err := x.Limit(v)
	if err != nil {
		return Extent{}, err
	}
	return Extent{Size: size, Exact: true}, nil
}
