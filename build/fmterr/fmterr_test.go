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

package fmterr_test

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/gx-org/tac/build/fmterr"
)

func TestKinds(t *testing.T) {
	err := fmterr.Errorf(fmterr.ErrUnboundIndexVar, "index variable %s has no extent", "i")
	if !errors.Is(err, fmterr.ErrUnboundIndexVar) {
		t.Errorf("%v is not of kind %q", err, fmterr.ErrUnboundIndexVar)
	}
	if errors.Is(err, fmterr.ErrFormatConflict) {
		t.Errorf("%v should not be of kind %q", err, fmterr.ErrFormatConflict)
	}
	if got := fmterr.KindOf(err); got != fmterr.ErrUnboundIndexVar {
		t.Errorf("KindOf returned %q but want %q", got, fmterr.ErrUnboundIndexVar)
	}
	want := "unbound index variable: index variable i has no extent"
	if got := err.Error(); got != want {
		t.Errorf("got %q but want %q", got, want)
	}
	wrapped := fmt.Errorf("lowering compute: %w", err)
	if !errors.Is(wrapped, fmterr.ErrUnboundIndexVar) {
		t.Errorf("wrapped error lost its kind: %v", wrapped)
	}
}

func TestVerboseFormat(t *testing.T) {
	err := fmterr.Errorf(fmterr.ErrInvalidTransformation, "split factor %d", 0)
	got := fmt.Sprintf("%+v", err)
	if !strings.Contains(got, "Error generated at:") {
		t.Errorf("verbose format does not contain a stack trace:\n%s", got)
	}
	if short := fmt.Sprintf("%v", err); strings.Contains(short, "\n") {
		t.Errorf("short format should fit on one line: %q", short)
	}
}

func TestErrors(t *testing.T) {
	var errs fmterr.Errors
	if !errs.Empty() || errs.ToError() != nil {
		t.Fatalf("zero value should be empty")
	}
	errs.Push(fmterr.PrefixWith("in %s: ", "forall(i)"))
	errs.Appendf(fmterr.ErrInvalidNotation, "i is not bound")
	errs.Pop()
	errs.Appendf(fmterr.ErrInvalidNotation, "j is not bound")
	if got := len(errs.Errors()); got != 2 {
		t.Fatalf("got %d errors but want 2", got)
	}
	want := "in forall(i): invalid notation: i is not bound\ninvalid notation: j is not bound"
	if got := errs.String(); got != want {
		t.Errorf("got:\n%s\nbut want:\n%s", got, want)
	}
	if !errors.Is(errs.ToError(), fmterr.ErrInvalidNotation) {
		t.Errorf("aggregated error lost its kind")
	}
}

func TestVerbose(t *testing.T) {
	if fmterr.Verbose(nil) != nil {
		t.Errorf("Verbose(nil) should be nil")
	}
	err := fmt.Errorf("kernel dot: %w", fmterr.Errorf(fmterr.ErrUnsupportedFormat, "cannot merge"))
	if got := fmt.Sprintf("%+v", err); strings.Contains(got, "Error generated at:") {
		t.Errorf("fmt wrapper should hide the stack trace:\n%s", got)
	}
	verbose := fmterr.Verbose(err)
	got := fmt.Sprintf("%+v", verbose)
	if !strings.HasPrefix(got, "kernel dot: unsupported format: cannot merge\nError generated at:") {
		t.Errorf("unexpected verbose error:\n%s", got)
	}
	if fmterr.StackOf(verbose) == nil {
		t.Errorf("no stack trace found in %v", verbose)
	}
	if !errors.Is(verbose, fmterr.ErrUnsupportedFormat) {
		t.Errorf("verbose error lost its kind")
	}
}
