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
	"context"

	"github.com/gx-org/tac/build/notation"
	"github.com/gx-org/tac/build/target"
	"go.opentelemetry.io/otel/attribute"
	oteltrace "go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

type (
	// Candidate is a named schedule evaluated by Search.
	Candidate struct {
		Name     string
		Schedule Schedule
	}

	// Outcome is the compilation of a candidate schedule.
	Outcome struct {
		Candidate string
		// Result is nil if the compilation failed.
		Result *Result
		Err    error
	}
)

// Search compiles an assignment with every candidate schedule, concurrently.
// Outcomes are returned in the order of the candidates. A candidate failing to
// compile does not stop the search: its error is reported in its outcome.
// An error is returned only if the context is done before all the candidates have been compiled.
func (c *Compiler) Search(ctx context.Context, name string, a *notation.Assignment, candidates []Candidate, cfg target.Config) ([]Outcome, error) {
	ctx, span := c.tracer.Start(ctx, "search", oteltrace.WithAttributes(
		attribute.String("tac.kernel", name),
		attribute.Int("tac.candidates", len(candidates)),
	))
	defer span.End()
	outcomes := make([]Outcome, len(candidates))
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(c.opts.Parallelism)
	for i, cand := range candidates {
		g.Go(func() error {
			if err := gCtx.Err(); err != nil {
				return err
			}
			res, err := c.Compile(gCtx, name+"_"+cand.Name, a, cand.Schedule, cfg)
			outcomes[i] = Outcome{Candidate: cand.Name, Result: res, Err: err}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	succeeded := 0
	for _, o := range outcomes {
		if o.Err == nil {
			succeeded++
		}
	}
	span.SetAttributes(attribute.Int("tac.succeeded", succeeded))
	c.logger.InfoContext(ctx, "search done", "kernel", name, "candidates", len(candidates), "succeeded", succeeded)
	return outcomes, nil
}

// Succeeded returns the outcomes of the candidates compiled successfully.
func Succeeded(outcomes []Outcome) []Outcome {
	var ok []Outcome
	for _, o := range outcomes {
		if o.Err == nil {
			ok = append(ok, o)
		}
	}
	return ok
}
