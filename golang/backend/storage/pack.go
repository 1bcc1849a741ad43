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

package storage

import (
	"slices"

	"github.com/gx-org/backend/shape"
	"github.com/gx-org/tac/build/notation"
	"github.com/pkg/errors"
)

type entry struct {
	// crd are the coordinates of the entry in level order.
	crd []int
	val float64
}

type packer struct {
	t *Tensor
}

// Pack stores dense values, given in row-major order, in a format.
// Zeros are not stored by sparse levels.
func Pack(values []float64, sh shape.Shape, format notation.Format) (*Tensor, error) {
	t, err := newTensor(sh, format)
	if err != nil {
		return nil, err
	}
	if len(values) != sh.Size() {
		return nil, errors.Errorf("%d values for shape %v of size %d", len(values), sh.AxisLengths, sh.Size())
	}
	allDense := format.AllDense()
	var entries []entry
	coords := make([]int, t.Order())
	for flat, v := range values {
		if v == 0 && !allDense {
			continue
		}
		rem := flat
		for i := len(coords) - 1; i >= 0; i-- {
			coords[i] = rem % sh.AxisLengths[i]
			rem /= sh.AxisLengths[i]
		}
		crd := make([]int, t.Order())
		for k := range crd {
			crd[k] = coords[format.Dimension(k)]
		}
		entries = append(entries, entry{crd: crd, val: v})
	}
	slices.SortFunc(entries, func(a, b entry) int { return slices.Compare(a.crd, b.crd) })
	p := &packer{t: t}
	for k, lvl := range format.Levels() {
		if lvl.Kind == notation.Compressed {
			t.Levels[k].Pos = []int{0}
		}
	}
	if err := p.pack(0, entries, 0); err != nil {
		return nil, err
	}
	p.finish()
	return t, nil
}

func grow(s []int, n int) []int {
	if len(s) < n {
		s = append(s, make([]int, n-len(s))...)
	}
	return s
}

// segment returns the number of entries sharing the coordinate of the first entry at level k.
func segment(entries []entry, k int) int {
	n := 1
	for n < len(entries) && entries[n].crd[k] == entries[0].crd[k] {
		n++
	}
	return n
}

func (p *packer) pack(k int, entries []entry, parent int) error {
	t := p.t
	if len(entries) == 0 {
		return nil
	}
	if k == t.Order() {
		if len(entries) > 1 {
			return errors.Errorf("%d values at coordinates %v", len(entries), entries[0].crd)
		}
		if parent >= len(t.Vals) {
			t.Vals = append(t.Vals, make([]float64, parent+1-len(t.Vals))...)
		}
		t.Vals[parent] = entries[0].val
		return nil
	}
	lvl := t.Format.Level(k)
	buf := &t.Levels[k]
	switch lvl.Kind {
	case notation.Dense:
		size := t.levelSize(k)
		for len(entries) > 0 {
			n := segment(entries, k)
			if err := p.pack(k+1, entries[:n], parent*size+entries[0].crd[k]); err != nil {
				return err
			}
			entries = entries[n:]
		}
	case notation.Compressed:
		for len(entries) > 0 {
			n := 1
			if lvl.Unique {
				n = segment(entries, k)
			}
			q := len(buf.Crd)
			buf.Crd = append(buf.Crd, entries[0].crd[k])
			if err := p.pack(k+1, entries[:n], q); err != nil {
				return err
			}
			entries = entries[n:]
		}
		buf.Pos = grow(buf.Pos, parent+2)
		buf.Pos[parent+1] = len(buf.Crd)
	case notation.Singleton:
		if n := segment(entries, k); n != len(entries) || (!lvl.Unique && len(entries) > 1) {
			return errors.Errorf("level %d: singleton level with several coordinates at parent position %d", k+1, parent)
		}
		buf.Crd = grow(buf.Crd, parent+1)
		buf.Crd[parent] = entries[0].crd[k]
		return p.pack(k+1, entries, parent)
	}
	return nil
}

// finish extends the buffers to the number of positions of their parent
// and makes the compressed segments of parents with no entry empty.
func (p *packer) finish() {
	t := p.t
	prev := 1
	for k, lvl := range t.Format.Levels() {
		buf := &t.Levels[k]
		switch lvl.Kind {
		case notation.Dense:
			prev *= t.levelSize(k)
		case notation.Compressed:
			buf.Pos = grow(buf.Pos, prev+1)
			for q := 1; q <= prev; q++ {
				buf.Pos[q] = max(buf.Pos[q], buf.Pos[q-1])
			}
			prev = buf.Pos[prev]
			if buf.Crd == nil {
				buf.Crd = []int{}
			}
		case notation.Singleton:
			buf.Crd = grow(buf.Crd, prev)
		}
	}
	if t.Vals == nil {
		t.Vals = []float64{}
	}
	if len(t.Vals) < prev {
		t.Vals = append(t.Vals, make([]float64, prev-len(t.Vals))...)
	}
}
