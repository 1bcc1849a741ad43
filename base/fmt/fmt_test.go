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

package fmt_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	tacfmt "github.com/gx-org/tac/base/fmt"
)

func TestIndent(t *testing.T) {
	got := tacfmt.Indent("a\n\nb\n")
	want := "\ta\n\n\tb\n"
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("unexpected indentation (-want +got):\n%s", diff)
	}
}

func TestNumber(t *testing.T) {
	tests := []struct {
		txt  string
		want string
	}{
		{
			txt:  "for\nend",
			want: "1  for\n2  end",
		},
		{
			txt:  "a\nb\nc\nd\ne\nf\ng\nh\ni\nj\n",
			want: " 1  a\n 2  b\n 3  c\n 4  d\n 5  e\n 6  f\n 7  g\n 8  h\n 9  i\n10  j\n",
		},
	}
	for _, test := range tests {
		got := tacfmt.Number(test.txt)
		if diff := cmp.Diff(test.want, got); diff != "" {
			t.Errorf("Number(%q) (-want +got):\n%s", test.txt, diff)
		}
	}
}

func TestValues(t *testing.T) {
	got := tacfmt.Values([]float64{0, 1.5, -2, 1e-9})
	if want := "[0 1.5 -2 1e-09]"; got != want {
		t.Errorf("got %q but want %q", got, want)
	}
}
