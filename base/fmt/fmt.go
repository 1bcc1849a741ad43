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

// Package fmt formats the textual dumps of kernels.
package fmt

import (
	"fmt"
	"strconv"
	"strings"
)

// Indent the lines of a string by a tabulation. Empty lines are not indented.
func Indent(x string) string {
	var s strings.Builder
	for line := range strings.Lines(x) {
		if line != "\n" {
			s.WriteString("\t")
		}
		s.WriteString(line)
	}
	return s.String()
}

// Number prefixes all lines of a string with their line number, right-aligned.
func Number(x string) string {
	lines := strings.SplitAfter(strings.TrimSuffix(x, "\n"), "\n")
	width := len(strconv.Itoa(len(lines)))
	var s strings.Builder
	for i, line := range lines {
		fmt.Fprintf(&s, "%*d  %s", width, i+1, line)
	}
	if strings.HasSuffix(x, "\n") {
		s.WriteString("\n")
	}
	return s.String()
}

// Values formats a list of values the shortest way they can be read back.
func Values(vals []float64) string {
	var s strings.Builder
	s.WriteString("[")
	for i, v := range vals {
		if i > 0 {
			s.WriteString(" ")
		}
		s.WriteString(strconv.FormatFloat(v, 'g', -1, 64))
	}
	s.WriteString("]")
	return s.String()
}
