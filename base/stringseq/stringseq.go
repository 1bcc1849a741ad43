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

// Package stringseq joins sequences into strings.
package stringseq

import (
	"fmt"
	"iter"
	"strings"
)

// Map returns a sequence applying f to each element of seq.
func Map[T, S any](seq iter.Seq[T], f func(T) S) iter.Seq[S] {
	return func(yield func(S) bool) {
		for x := range seq {
			if !yield(f(x)) {
				return
			}
		}
	}
}

// write writes the elements of seq to b, separated by sep.
func write(b *strings.Builder, seq iter.Seq[string], sep string) {
	first := true
	for s := range seq {
		if !first {
			b.WriteString(sep)
		}
		b.WriteString(s)
		first = false
	}
}

// WriteStringers writes the string representations of the elements of seq to b, separated by sep.
func WriteStringers[T fmt.Stringer](b *strings.Builder, seq iter.Seq[T], sep string) {
	write(b, Map(seq, func(x T) string { return x.String() }), sep)
}

// Join returns the elements of seq separated by sep.
func Join(seq iter.Seq[string], sep string) string {
	var b strings.Builder
	write(&b, seq, sep)
	return b.String()
}
