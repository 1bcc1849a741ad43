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

package target

import "github.com/gx-org/tac/build/fmterr"

// Config configures the lowering of a statement.
type Config struct {
	// Target for which the statement is lowered.
	Target ID `yaml:"target"`
	// Assemble generates the code writing the coordinates of sparse outputs.
	Assemble bool `yaml:"assemble"`
	// Compute generates the code writing the values of the outputs.
	Compute bool `yaml:"compute"`
}

// NewConfig returns the configuration assembling and computing outputs for a target.
func NewConfig(id ID) Config {
	return Config{Target: id, Assemble: true, Compute: true}
}

// Validate returns an error if the configuration cannot be used to lower a statement.
func (c Config) Validate() error {
	if _, ok := table[c.Target]; !ok {
		return fmterr.Errorf(fmterr.ErrInvalidNotation, "unknown target %d", int(c.Target))
	}
	if !c.Assemble && !c.Compute {
		return fmterr.Errorf(fmterr.ErrInvalidNotation, "configuration for target %s neither assembles nor computes outputs", c.Target)
	}
	return nil
}
