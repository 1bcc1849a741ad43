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

// Package storage stores tensors in the level buffers of their format.
//
// A tensor of order n has one level per dimension, in the order given by its format.
// Dense levels have no buffer: position p of the parent and coordinate c
// give position p*N+c. Compressed levels store, for each parent position p,
// the coordinates Crd[Pos[p]:Pos[p+1]]. Singleton levels store one coordinate
// per parent position. Values are stored per position of the last level.
package storage

import (
	"fmt"
	"slices"
	"strings"

	"github.com/gx-org/backend/shape"
	"github.com/gx-org/tac/build/notation"
	"github.com/pkg/errors"
)

type (
	// Level are the buffers of a level. Both are nil for dense levels.
	Level struct {
		Pos []int
		Crd []int
	}

	// Tensor is a tensor stored in a format.
	Tensor struct {
		Shape  shape.Shape
		Format notation.Format
		Levels []Level
		// Vals are stored as float64 whatever the element type of the tensor.
		Vals []float64
	}
)

func newTensor(sh shape.Shape, format notation.Format) (*Tensor, error) {
	if len(sh.AxisLengths) != format.Order() {
		return nil, errors.Errorf("shape %v has %d axes but format %s has %d levels", sh.AxisLengths, len(sh.AxisLengths), format, format.Order())
	}
	for i, n := range sh.AxisLengths {
		if n <= 0 {
			return nil, errors.Errorf("invalid length %d for axis %d", n, i)
		}
	}
	return &Tensor{
		Shape:  sh,
		Format: format,
		Levels: make([]Level, format.Order()),
	}, nil
}

// Order of the tensor.
func (t *Tensor) Order() int {
	return len(t.Shape.AxisLengths)
}

// levelSize returns the size of the dimension stored at level k.
func (t *Tensor) levelSize(k int) int {
	return t.Shape.AxisLengths[t.Format.Dimension(k)]
}

// capacity returns the maximum number of positions of level k.
func (t *Tensor) capacity(k int) int {
	size := 1
	for i := 0; i <= k; i++ {
		size *= t.levelSize(i)
	}
	return size
}

// Allocate returns a tensor with buffers large enough to store any tensor of the shape.
// All the compressed segments are empty.
func Allocate(sh shape.Shape, format notation.Format) (*Tensor, error) {
	t, err := newTensor(sh, format)
	if err != nil {
		return nil, err
	}
	for k, lvl := range format.Levels() {
		switch lvl.Kind {
		case notation.Compressed:
			t.Levels[k].Pos = make([]int, t.capacity(k-1)+1)
			t.Levels[k].Crd = make([]int, t.capacity(k))
		case notation.Singleton:
			t.Levels[k].Crd = make([]int, t.capacity(k-1))
		}
	}
	t.Vals = make([]float64, t.capacity(t.Order()-1))
	return t, nil
}

// Positions returns the number of positions of each level given the current buffers.
func (t *Tensor) Positions() ([]int, error) {
	counts := make([]int, t.Order())
	prev := 1
	for k, lvl := range t.Format.Levels() {
		switch lvl.Kind {
		case notation.Dense:
			prev *= t.levelSize(k)
		case notation.Compressed:
			pos := t.Levels[k].Pos
			if len(pos) < prev+1 {
				return nil, errors.Errorf("level %d: %d segments for %d parent positions", k+1, len(pos)-1, prev)
			}
			prev = pos[prev]
			if prev > len(t.Levels[k].Crd) {
				return nil, errors.Errorf("level %d: %d coordinates for a buffer of size %d", k+1, prev, len(t.Levels[k].Crd))
			}
		case notation.Singleton:
			if prev > len(t.Levels[k].Crd) {
				return nil, errors.Errorf("level %d: %d coordinates for a buffer of size %d", k+1, prev, len(t.Levels[k].Crd))
			}
		}
		counts[k] = prev
	}
	return counts, nil
}

// Trim shrinks the buffers of the tensor to the positions in use.
func (t *Tensor) Trim() error {
	counts, err := t.Positions()
	if err != nil {
		return err
	}
	prev := 1
	for k, cnt := range counts {
		lvl := &t.Levels[k]
		if lvl.Pos != nil {
			lvl.Pos = lvl.Pos[:prev+1]
		}
		if lvl.Crd != nil {
			lvl.Crd = lvl.Crd[:cnt]
		}
		prev = cnt
	}
	if prev > len(t.Vals) {
		return errors.Errorf("%d values for a buffer of size %d", prev, len(t.Vals))
	}
	t.Vals = t.Vals[:prev]
	return nil
}

// Dense returns the values of the tensor in row-major order.
// Values stored at duplicated coordinates are summed.
func (t *Tensor) Dense() ([]float64, error) {
	u := &unpacker{
		t:      t,
		out:    make([]float64, t.Shape.Size()),
		coords: make([]int, t.Order()),
	}
	if err := u.unpack(0, 0); err != nil {
		return nil, err
	}
	return u.out, nil
}

type unpacker struct {
	t      *Tensor
	out    []float64
	coords []int
}

func (u *unpacker) unpack(k, p int) error {
	t := u.t
	if k == t.Order() {
		if p >= len(t.Vals) {
			return errors.Errorf("position %d out of %d values", p, len(t.Vals))
		}
		u.out[rowMajor(u.coords, t.Shape.AxisLengths)] += t.Vals[p]
		return nil
	}
	dim := t.Format.Dimension(k)
	size := t.levelSize(k)
	lvl := t.Levels[k]
	setCrd := func(c int) error {
		if c < 0 || c >= size {
			return errors.Errorf("level %d: coordinate %d out of [0, %d)", k+1, c, size)
		}
		u.coords[dim] = c
		return nil
	}
	switch t.Format.Level(k).Kind {
	case notation.Dense:
		for c := range size {
			u.coords[dim] = c
			if err := u.unpack(k+1, p*size+c); err != nil {
				return err
			}
		}
	case notation.Compressed:
		if p+1 >= len(lvl.Pos) {
			return errors.Errorf("level %d: no segment for position %d", k+1, p)
		}
		if lvl.Pos[p+1] > len(lvl.Crd) {
			return errors.Errorf("level %d: segment [%d, %d) out of %d coordinates", k+1, lvl.Pos[p], lvl.Pos[p+1], len(lvl.Crd))
		}
		for q := lvl.Pos[p]; q < lvl.Pos[p+1]; q++ {
			if err := setCrd(lvl.Crd[q]); err != nil {
				return err
			}
			if err := u.unpack(k+1, q); err != nil {
				return err
			}
		}
	case notation.Singleton:
		if p >= len(lvl.Crd) {
			return errors.Errorf("level %d: position %d out of %d coordinates", k+1, p, len(lvl.Crd))
		}
		if err := setCrd(lvl.Crd[p]); err != nil {
			return err
		}
		return u.unpack(k+1, p)
	}
	return nil
}

func rowMajor(coords, dims []int) int {
	flat := 0
	for i, c := range coords {
		flat = flat*dims[i] + c
	}
	return flat
}

// String representation of the tensor buffers.
func (t *Tensor) String() string {
	var s strings.Builder
	fmt.Fprintf(&s, "%s%v %s\n", t.Shape.DType, t.Shape.AxisLengths, t.Format)
	for k, lvl := range t.Levels {
		if lvl.Pos != nil {
			fmt.Fprintf(&s, "\tpos%d: %v\n", k+1, lvl.Pos)
		}
		if lvl.Crd != nil {
			fmt.Fprintf(&s, "\tcrd%d: %v\n", k+1, lvl.Crd)
		}
	}
	fmt.Fprintf(&s, "\tvals: %v", t.Vals)
	return s.String()
}

// Equal returns true if two tensors store the same buffers.
func (t *Tensor) Equal(o *Tensor) bool {
	if !slices.Equal(t.Shape.AxisLengths, o.Shape.AxisLengths) || !t.Format.Equal(o.Format) {
		return false
	}
	for k := range t.Levels {
		if !slices.Equal(t.Levels[k].Pos, o.Levels[k].Pos) || !slices.Equal(t.Levels[k].Crd, o.Levels[k].Crd) {
			return false
		}
	}
	return slices.Equal(t.Vals, o.Vals)
}
