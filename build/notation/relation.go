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

import "fmt"

type (
	// Relation relates a parent index variable to the index variables derived from it.
	// A relation defines how the value of the parent is recovered from the values of its children.
	Relation interface {
		fmt.Stringer
		// Parent returns the variable from which the children are derived.
		Parent() *IndexVar
		// Children returns the variables derived from the parent.
		Children() []*IndexVar
		relation()
	}

	// BoundRelation states the extent of Var. Bounded iterates over the same values as Var.
	BoundRelation struct {
		Var     *IndexVar
		Bounded *IndexVar
		Extent  int
		Kind    BoundKind
	}

	// SplitRelation splits Var into two nested variables: Var = Outer*Factor + Inner.
	SplitRelation struct {
		Var    *IndexVar
		Outer  *IndexVar
		Inner  *IndexVar
		Factor int
	}

	// PrecomputeRelation states that Workspace iterates over the same values as Var
	// in the producer of a temporary.
	PrecomputeRelation struct {
		Var       *IndexVar
		Workspace *IndexVar
	}
)

var (
	_ Relation = (*BoundRelation)(nil)
	_ Relation = (*SplitRelation)(nil)
	_ Relation = (*PrecomputeRelation)(nil)
)

func (*BoundRelation) relation() {}

// Parent returns the bounded variable.
func (r *BoundRelation) Parent() *IndexVar { return r.Var }

// Children returns the variable iterating over the bounded range.
func (r *BoundRelation) Children() []*IndexVar { return []*IndexVar{r.Bounded} }

// String representation of the relation.
func (r *BoundRelation) String() string {
	return fmt.Sprintf("bound(%s, %s, %d, %s)", r.Var, r.Bounded, r.Extent, r.Kind)
}

func (*SplitRelation) relation() {}

// Parent returns the split variable.
func (r *SplitRelation) Parent() *IndexVar { return r.Var }

// Children returns the outer and inner variables.
func (r *SplitRelation) Children() []*IndexVar { return []*IndexVar{r.Outer, r.Inner} }

// String representation of the relation.
func (r *SplitRelation) String() string {
	return fmt.Sprintf("split(%s, %s, %s, %d)", r.Var, r.Outer, r.Inner, r.Factor)
}

func (*PrecomputeRelation) relation() {}

// Parent returns the variable of the consumer.
func (r *PrecomputeRelation) Parent() *IndexVar { return r.Var }

// Children returns the variable of the producer.
func (r *PrecomputeRelation) Children() []*IndexVar { return []*IndexVar{r.Workspace} }

// String representation of the relation.
func (r *PrecomputeRelation) String() string {
	return fmt.Sprintf("precompute(%s, %s)", r.Var, r.Workspace)
}
