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
	"slices"
)

// Extent is the number of values taken by an index variable.
type Extent struct {
	Size int
	// Exact is false when the loops iterating over the variable may
	// generate more values than the actual extent of the variable.
	Exact bool
}

// Provenance is the graph of relations between index variables.
type Provenance struct {
	rels     []Relation
	byParent map[*IndexVar][]Relation
	byChild  map[*IndexVar]Relation
}

// NewProvenance builds the provenance graph of a set of relations.
func NewProvenance(rels []Relation) *Provenance {
	p := &Provenance{
		rels:     slices.Clone(rels),
		byParent: make(map[*IndexVar][]Relation),
		byChild:  make(map[*IndexVar]Relation),
	}
	for _, rel := range rels {
		p.byParent[rel.Parent()] = append(p.byParent[rel.Parent()], rel)
		for _, child := range rel.Children() {
			p.byChild[child] = rel
		}
	}
	return p
}

// ProvenanceOf returns the provenance graph of all the relations found in a statement.
func ProvenanceOf(s Stmt) *Provenance {
	var rels []Relation
	InspectStmt(s, func(s Stmt) bool {
		if st, ok := s.(*SuchThat); ok {
			rels = append(rels, st.Relations...)
		}
		return true
	})
	return NewProvenance(rels)
}

// Relations returns all the relations of the graph.
func (p *Provenance) Relations() []Relation {
	return slices.Clone(p.rels)
}

// Definitions returns the relations defining how v is recovered from other variables.
func (p *Provenance) Definitions(v *IndexVar) []Relation {
	return p.byParent[v]
}

// Origin returns the relation deriving v from another variable or nil.
func (p *Provenance) Origin(v *IndexVar) Relation {
	return p.byChild[v]
}

// IsDerived returns true if v has been derived from another variable.
func (p *Provenance) IsDerived(v *IndexVar) bool {
	_, ok := p.byChild[v]
	return ok
}

// Bound returns the bound relation of v or nil if v has not been bounded.
func (p *Provenance) Bound(v *IndexVar) *BoundRelation {
	for _, rel := range p.byParent[v] {
		if bound, ok := rel.(*BoundRelation); ok {
			return bound
		}
	}
	return nil
}

// Extent returns the static extent of a variable established by the relations.
func (p *Provenance) Extent(v *IndexVar) (Extent, bool) {
	return p.extent(v, 0)
}

func (p *Provenance) extent(v *IndexVar, depth int) (Extent, bool) {
	if depth > len(p.rels)+1 {
		return Extent{}, false
	}
	if bound := p.Bound(v); bound != nil {
		return Extent{Size: bound.Extent, Exact: bound.Kind == MaxExact}, true
	}
	origin := p.byChild[v]
	if origin == nil {
		return Extent{}, false
	}
	parent, ok := p.extent(origin.Parent(), depth+1)
	if !ok {
		return Extent{}, false
	}
	switch rel := origin.(type) {
	case *BoundRelation:
		return Extent{Size: rel.Extent, Exact: rel.Kind == MaxExact}, true
	case *SplitRelation:
		exact := parent.Exact && parent.Size%rel.Factor == 0
		if v == rel.Inner {
			return Extent{Size: rel.Factor, Exact: exact}, true
		}
		return Extent{Size: ceilDiv(parent.Size, rel.Factor), Exact: exact}, true
	case *PrecomputeRelation:
		return parent, true
	}
	return Extent{}, false
}

// Roots returns the variables from which v has been derived and which are not derived themselves.
// Returns v if v is not derived.
func (p *Provenance) Roots(v *IndexVar) []*IndexVar {
	origin := p.byChild[v]
	if origin == nil {
		return []*IndexVar{v}
	}
	return p.Roots(origin.Parent())
}

// Root returns the first non-derived ancestor of v.
func (p *Provenance) Root(v *IndexVar) *IndexVar {
	return p.Roots(v)[0]
}

// Descendants returns v and all the variables derived from v.
func (p *Provenance) Descendants(v *IndexVar) []*IndexVar {
	all := []*IndexVar{v}
	for _, rel := range p.byParent[v] {
		for _, child := range rel.Children() {
			all = append(all, p.Descendants(child)...)
		}
	}
	return all
}

// DependsOn returns true if the value of u depends on the value of v,
// that is if v is u or has been derived from u.
func (p *Provenance) DependsOn(u, v *IndexVar) bool {
	return slices.Contains(p.Descendants(u), v)
}

// IsAlias returns true if v iterates over exactly the same values as its root,
// that is if v has only been derived by bound or precompute relations.
func (p *Provenance) IsAlias(v *IndexVar) bool {
	for {
		origin := p.byChild[v]
		switch origin.(type) {
		case nil:
			return true
		case *SplitRelation:
			return false
		}
		v = origin.Parent()
	}
}

// Recoverable returns true if the value of v can be computed from the variables
// for which bound returns true.
func (p *Provenance) Recoverable(v *IndexVar, bound func(*IndexVar) bool) bool {
	return p.recoverable(v, bound, map[*IndexVar]bool{})
}

func (p *Provenance) recoverable(v *IndexVar, bound func(*IndexVar) bool, visiting map[*IndexVar]bool) bool {
	if bound(v) {
		return true
	}
	if visiting[v] {
		return false
	}
	visiting[v] = true
	defer delete(visiting, v)
	for _, rel := range p.byParent[v] {
		all := true
		for _, child := range rel.Children() {
			if !p.recoverable(child, bound, visiting) {
				all = false
				break
			}
		}
		if all {
			return true
		}
	}
	return false
}

func ceilDiv(a, b int) int {
	return (a + b - 1) / b
}

// related returns true if one of u and v has been derived from the other,
// that is if the value of one changes when the value of the other changes.
func (p *Provenance) related(u, v *IndexVar) bool {
	return p.DependsOn(u, v) || p.DependsOn(v, u)
}

// AccessDependsOn returns true if the location of an access changes with the value of v.
func (p *Provenance) AccessDependsOn(a *Access, v *IndexVar) bool {
	for _, idx := range a.Indices {
		if p.related(idx, v) {
			return true
		}
	}
	return false
}
