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

package fmterr

import (
	"strings"

	"go.uber.org/multierr"
)

// Errors accumulates errors while checking a tree.
// The zero value is ready to use.
type Errors struct {
	stack []func(error) error
	errs  error
}

// Push a new context in the error stack.
// Errors appended while the context is on the stack are transformed by f.
func (errs *Errors) Push(f func(error) error) {
	errs.stack = append(errs.stack, f)
}

// Pop removes the last error context in the stack.
func (errs *Errors) Pop() {
	errs.stack = errs.stack[:len(errs.stack)-1]
}

// Append an error to the list of errors.
// Always returns false so that it can be used as a return value of a check.
func (errs *Errors) Append(err error) bool {
	if err == nil {
		return false
	}
	for i := len(errs.stack) - 1; i >= 0; i-- {
		err = errs.stack[i](err)
	}
	errs.errs = multierr.Append(errs.errs, err)
	return false
}

// Appendf appends a formatted error of a given kind.
func (errs *Errors) Appendf(kind Kind, format string, a ...any) bool {
	return errs.Append(Errorf(kind, format, a...))
}

// Empty returns true if no error has been declared.
func (errs *Errors) Empty() bool {
	return errs.errs == nil
}

// Errors returns the list of all collected errors.
func (errs *Errors) Errors() []error {
	return multierr.Errors(errs.errs)
}

// ToError returns the errors as an error interface or nil if no error has been appended.
func (errs *Errors) ToError() error {
	if errs == nil {
		return nil
	}
	return errs.errs
}

// String representation of the errors, one per line.
func (errs *Errors) String() string {
	var ss []string
	for _, err := range errs.Errors() {
		ss = append(ss, err.Error())
	}
	return strings.Join(ss, "\n")
}
