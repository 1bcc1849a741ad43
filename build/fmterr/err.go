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

// Package fmterr defines the errors reported by the compiler
// and provides helpers to build and format them.
package fmterr

import (
	"fmt"
	"runtime/debug"

	"github.com/pkg/errors"
)

// Kind classifies a compiler error.
// Use errors.Is(err, kind) to test the kind of an error returned by the compiler.
type Kind string

// Error returns the name of the kind.
func (k Kind) Error() string { return string(k) }

const (
	// ErrFormatConflict is returned by the concretizer when no loop order
	// is consistent with the storage order of all the accessed tensors.
	ErrFormatConflict = Kind("format conflict")

	// ErrInvalidTransformation is returned by a scheduling primitive
	// when one of its preconditions is violated.
	ErrInvalidTransformation = Kind("invalid transformation")

	// ErrUnboundIndexVar is returned by the lowerer when the extent of
	// an index variable is required but has never been established.
	ErrUnboundIndexVar = Kind("unbound index variable")

	// ErrUnsupportedRaceStrategy is returned by the lowerer when a parallel
	// unit, race strategy, and degree combination has no lowering on a target.
	ErrUnsupportedRaceStrategy = Kind("unsupported race strategy")

	// ErrUnsupportedFormat is returned by the lowerer when a combination of
	// storage formats and loop order has no iteration strategy.
	ErrUnsupportedFormat = Kind("unsupported format")

	// ErrInvalidNotation is returned when a statement or an expression is malformed.
	ErrInvalidNotation = Kind("invalid notation")
)

// compileError is an error of a given kind.
type compileError struct {
	kind Kind
	err  error
}

// Errorf returns a formatted error of a given kind.
// The error records the stack trace at the point it was created.
func Errorf(kind Kind, format string, a ...any) error {
	return compileError{kind: kind, err: errors.Errorf(format, a...)}
}

// Wrap attaches a kind to an existing error.
func Wrap(kind Kind, err error) error {
	if err == nil {
		return nil
	}
	return compileError{kind: kind, err: errors.WithStack(err)}
}

// Internal marks an error as internal, potentially adding additional information.
func Internal(err error) error {
	return fmt.Errorf("tac internal error. This is a bug in the compiler. Please report it. Error:\n%+v", err)
}

// Internalf returns a formatted internal compiler error.
func Internalf(format string, a ...any) error {
	return Internal(errors.Errorf(format, a...))
}

// Error returns a string description of the error.
func (err compileError) Error() (s string) {
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		s = fmt.Sprintf("recovered from panic when building error message: %T:\n%v", err.err, string(debug.Stack()))
	}()
	return string(err.kind) + ": " + err.err.Error()
}

// Is reports if the error is of a given kind.
func (err compileError) Is(target error) bool {
	kind, ok := target.(Kind)
	return ok && kind == err.kind
}

// Unwrap the error.
func (err compileError) Unwrap() error {
	return err.err
}

// Format writes the error into the state of the formatter.
func (err compileError) Format(s fmt.State, verb rune) {
	format(err, s, verb)
}

// KindOf returns the kind of an error or an empty kind if the error
// has not been created by this package.
func KindOf(err error) Kind {
	var cErr compileError
	if !errors.As(err, &cErr) {
		return ""
	}
	return cErr.kind
}
