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

package compiler

import (
	"bytes"
	"context"
	"io"

	"github.com/gx-org/tac/build/builder"
	"github.com/gx-org/tac/build/fmterr"
	"github.com/gx-org/tac/build/notation"
	"github.com/gx-org/tac/build/schedule"
	"github.com/gx-org/tac/build/target"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

type (
	// Kernel is the description of a kernel, usually read from a YAML file:
	//
	//	name: spmv
	//	target: C
	//	tensors:
	//	  - {name: A, dtype: float64, dims: [16]}
	//	  - {name: B, dtype: float64, dims: [16, 16], format: csr}
	//	  - {name: C, dtype: float64, dims: [16]}
	//	statement: A(i) = B(i,j) * C(j)
	//	schedule:
	//	  - {op: parallelize, var: i, unit: CPUThread, race: NoRaces}
	Kernel struct {
		Name string `yaml:"name"`
		// Target is the name of the target. Defaults to C.
		Target string `yaml:"target,omitempty"`
		// Assemble and Compute default to true.
		Assemble *bool `yaml:"assemble,omitempty"`
		Compute  *bool `yaml:"compute,omitempty"`

		Tensors   []builder.TensorDecl `yaml:"tensors"`
		Statement string               `yaml:"statement"`
		Schedule  []schedule.Command   `yaml:"schedule,omitempty"`
		// Candidates are alternative schedules compared by a search.
		Candidates []NamedSchedule `yaml:"candidates,omitempty"`
		// Inputs are the values of the input tensors in row-major order.
		Inputs map[string][]float64 `yaml:"inputs,omitempty"`
	}

	// NamedSchedule is a named list of commands.
	NamedSchedule struct {
		Name     string             `yaml:"name"`
		Commands []schedule.Command `yaml:"commands"`
	}

	// Program is a kernel with all its names resolved.
	Program struct {
		Kernel     *Kernel
		Builder    *builder.Builder
		Assignment *notation.Assignment
		Config     target.Config
	}
)

// ReadKernel decodes a kernel from YAML. Unknown fields are rejected.
func ReadKernel(r io.Reader) (*Kernel, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	k := &Kernel{}
	if err := dec.Decode(k); err != nil {
		return nil, fmterr.Wrap(fmterr.ErrInvalidNotation, errors.Wrap(err, "cannot decode kernel"))
	}
	return k, nil
}

// ParseKernel decodes a kernel from YAML source.
func ParseKernel(src []byte) (*Kernel, error) {
	return ReadKernel(bytes.NewReader(src))
}

// Config returns the lowering configuration of the kernel.
func (k *Kernel) Config() (target.Config, error) {
	cfg := target.NewConfig(target.C)
	if k.Target != "" {
		id, err := target.Parse(k.Target)
		if err != nil {
			return cfg, err
		}
		cfg.Target = id
	}
	if k.Assemble != nil {
		cfg.Assemble = *k.Assemble
	}
	if k.Compute != nil {
		cfg.Compute = *k.Compute
	}
	return cfg, cfg.Validate()
}

// Validate returns all the errors found in the description of the kernel.
func (k *Kernel) Validate() error {
	var errs fmterr.Errors
	if k.Name == "" {
		errs.Appendf(fmterr.ErrInvalidNotation, "kernel has no name")
	}
	if k.Statement == "" {
		errs.Appendf(fmterr.ErrInvalidNotation, "kernel %s has no statement", k.Name)
	}
	if len(k.Tensors) == 0 {
		errs.Appendf(fmterr.ErrInvalidNotation, "kernel %s declares no tensor", k.Name)
	}
	seen := make(map[string]bool)
	for _, cand := range k.Candidates {
		if cand.Name == "" || seen[cand.Name] {
			errs.Appendf(fmterr.ErrInvalidNotation, "kernel %s: candidate schedule names must be unique and not empty, got %q", k.Name, cand.Name)
		}
		seen[cand.Name] = true
	}
	if _, err := k.Config(); err != nil {
		errs.Append(err)
	}
	return errs.ToError()
}

// Program resolves the names of the kernel.
func (k *Kernel) Program() (*Program, error) {
	if err := k.Validate(); err != nil {
		return nil, err
	}
	cfg, err := k.Config()
	if err != nil {
		return nil, err
	}
	b := builder.New()
	if err := b.DeclareAll(k.Tensors); err != nil {
		return nil, err
	}
	a, err := b.Assignment(k.Statement)
	if err != nil {
		return nil, err
	}
	return &Program{Kernel: k, Builder: b, Assignment: a, Config: cfg}, nil
}

// Schedule returns the schedule of the kernel.
func (p *Program) Schedule() Schedule {
	return Commands(p.Builder, p.Kernel.Schedule)
}

// Candidates returns the candidate schedules of the kernel.
func (p *Program) Candidates() []Candidate {
	cands := make([]Candidate, len(p.Kernel.Candidates))
	for i, cand := range p.Kernel.Candidates {
		cands[i] = Candidate{Name: cand.Name, Schedule: Commands(p.Builder, cand.Commands)}
	}
	return cands
}

// CompileProgram compiles a program with its schedule.
func (c *Compiler) CompileProgram(ctx context.Context, p *Program) (*Result, error) {
	return c.Compile(ctx, p.Kernel.Name, p.Assignment, p.Schedule(), p.Config)
}

// SearchProgram compiles a program with all its candidate schedules.
func (c *Compiler) SearchProgram(ctx context.Context, p *Program) ([]Outcome, error) {
	return c.Search(ctx, p.Kernel.Name, p.Assignment, p.Candidates(), p.Config)
}
