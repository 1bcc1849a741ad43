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

// Package trace defines callbacks to observe the statements produced by the compilation pipeline.
package trace

import "github.com/gx-org/tac/build/notation"

// Stage of the compilation pipeline.
type Stage string

// Stages of the pipeline, in execution order.
const (
	Concretize Stage = "concretize"
	Schedule   Stage = "schedule"
	Lower      Stage = "lower"
)

type (
	// Callback is called with the statement produced by each stage of the pipeline.
	// The lower stage reports the statement given to the lowerer.
	// Returning an error stops the compilation.
	Callback interface {
		Trace(stage Stage, stmt notation.Stmt) error
	}

	// Func is a function implementing Callback.
	Func func(stage Stage, stmt notation.Stmt) error
)

var _ Callback = Func(nil)

// Trace calls the function.
func (f Func) Trace(stage Stage, stmt notation.Stmt) error {
	return f(stage, stmt)
}
