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
	"fmt"
	"io"

	"github.com/pkg/errors"
)

type stackTracer interface {
	StackTrace() errors.StackTrace
}

// StackOf returns the stack trace recorded by the innermost error of a chain
// or nil if no error of the chain recorded one.
func StackOf(err error) errors.StackTrace {
	var st errors.StackTrace
	for ; err != nil; err = errors.Unwrap(err) {
		if tracer, ok := err.(stackTracer); ok {
			st = tracer.StackTrace()
		}
	}
	return st
}

// format writes err with its message only, except for %+v which appends
// the stack trace at which the error has been created.
func format(err error, s fmt.State, verb rune) {
	switch verb {
	case 'v':
		io.WriteString(s, err.Error())
		if !s.Flag('+') {
			return
		}
		if st := StackOf(err); st != nil {
			fmt.Fprintf(s, "\nError generated at:%+v\n", st)
		}
	case 's':
		io.WriteString(s, err.Error())
	case 'q':
		fmt.Fprintf(s, "%q", err.Error())
	}
}

type verboseError struct {
	err error
}

// Verbose returns an error printing the stack trace of err with %+v,
// whatever the wrappers between err and the error recording the stack trace.
func Verbose(err error) error {
	if err == nil {
		return nil
	}
	return verboseError{err: err}
}

func (err verboseError) Unwrap() error { return err.err }

func (err verboseError) Error() string { return err.err.Error() }

func (err verboseError) Format(s fmt.State, verb rune) {
	format(err, s, verb)
}
