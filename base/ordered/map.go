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

// Package ordered provides ordered data structure.
package ordered

import "iter"

// Map is an ordered map. Iterators range over the map
// using the same order in which the keys have been added.
type Map[K comparable, V any] struct {
	keys  []K
	index map[K]int
	vals  []V
}

// NewMap returns a new ordered map.
func NewMap[K comparable, V any]() *Map[K, V] {
	return &Map[K, V]{index: make(map[K]int)}
}

// Store a key,value pair.
// Storing an existing key replaces its value but does not change its position.
func (m *Map[K, V]) Store(k K, v V) {
	if i, in := m.index[k]; in {
		m.vals[i] = v
		return
	}
	m.index[k] = len(m.keys)
	m.keys = append(m.keys, k)
	m.vals = append(m.vals, v)
}

// Load returns a value given a key.
func (m *Map[K, V]) Load(k K) (V, bool) {
	i, ok := m.index[k]
	if !ok {
		var zero V
		return zero, false
	}
	return m.vals[i], true
}

// Has returns true if the key is in the map.
func (m *Map[K, V]) Has(k K) bool {
	_, ok := m.index[k]
	return ok
}

// Index returns the position at which a key has been added or -1.
func (m *Map[K, V]) Index(k K) int {
	i, ok := m.index[k]
	if !ok {
		return -1
	}
	return i
}

// All returns an iterator to range over the elements of the map.
func (m *Map[K, V]) All() iter.Seq2[K, V] {
	return func(yield func(K, V) bool) {
		for i, k := range m.keys {
			if !yield(k, m.vals[i]) {
				return
			}
		}
	}
}

// Keys returns an iterator to range over the keys of the map.
func (m *Map[K, V]) Keys() iter.Seq[K] {
	return func(yield func(K) bool) {
		for _, k := range m.keys {
			if !yield(k) {
				return
			}
		}
	}
}

// Values returns an iterator to range over the values of the map.
func (m *Map[K, V]) Values() iter.Seq[V] {
	return func(yield func(V) bool) {
		for _, v := range m.vals {
			if !yield(v) {
				return
			}
		}
	}
}

// Clone creates a new map with the same keys and values.
// This is a shallow clone.
func (m *Map[K, V]) Clone() *Map[K, V] {
	r := NewMap[K, V]()
	for k, v := range m.All() {
		r.Store(k, v)
	}
	return r
}

// Size returns the number of elements in the map.
func (m *Map[K, V]) Size() int {
	return len(m.keys)
}

// Set is an ordered set.
type Set[K comparable] struct {
	m *Map[K, struct{}]
}

// NewSet returns a new ordered set containing some elements.
func NewSet[K comparable](ks ...K) *Set[K] {
	s := &Set[K]{m: NewMap[K, struct{}]()}
	for _, k := range ks {
		s.Add(k)
	}
	return s
}

// Add an element to the set. Returns false if the element was already in the set.
func (s *Set[K]) Add(k K) bool {
	if s.m.Has(k) {
		return false
	}
	s.m.Store(k, struct{}{})
	return true
}

// Has returns true if the element is in the set.
func (s *Set[K]) Has(k K) bool {
	return s.m.Has(k)
}

// Index returns the position at which an element has been added or -1.
func (s *Set[K]) Index(k K) int {
	return s.m.Index(k)
}

// All returns an iterator to range over the elements of the set.
func (s *Set[K]) All() iter.Seq[K] {
	return s.m.Keys()
}

// Slice returns the elements of the set in a slice.
func (s *Set[K]) Slice() []K {
	return append([]K(nil), s.m.keys...)
}

// Size returns the number of elements in the set.
func (s *Set[K]) Size() int {
	return s.m.Size()
}
