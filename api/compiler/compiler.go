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

// Package compiler drives the compilation pipeline of a kernel:
// concretization, scheduling and lowering.
//
// A compiler records structured logs, OpenTelemetry spans and Prometheus
// metrics for every compilation. All the stages are pure: a compiler can be
// used concurrently and candidate schedules can be compiled in parallel.
package compiler

import (
	"context"
	"log/slog"
	"time"

	"github.com/gx-org/tac/api/options"
	"github.com/gx-org/tac/api/trace"
	"github.com/gx-org/tac/build/concrete"
	"github.com/gx-org/tac/build/fmterr"
	"github.com/gx-org/tac/build/ir"
	"github.com/gx-org/tac/build/lower"
	"github.com/gx-org/tac/build/notation"
	"github.com/gx-org/tac/build/schedule"
	"github.com/gx-org/tac/build/target"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	oteltrace "go.opentelemetry.io/otel/trace"
)

const instrumentation = "github.com/gx-org/tac/api/compiler"

type (
	// Schedule transforms a concrete statement.
	Schedule func(*schedule.Schedule) *schedule.Schedule

	// Compiler compiles kernels.
	Compiler struct {
		opts    options.Options
		logger  *slog.Logger
		tracer  oteltrace.Tracer
		metrics *metrics
	}

	// Result of a compilation.
	Result struct {
		// Concrete is the statement produced by the concretizer.
		Concrete notation.Stmt
		// Scheduled is the statement after the transformations of the schedule.
		Scheduled notation.Stmt
		// Applied lists the names of the transformations applied, in order.
		Applied []string
		// Function is the lowered kernel.
		Function *ir.Function
	}
)

// New returns a new compiler.
func New(opts ...options.Option) (*Compiler, error) {
	o := options.Apply(opts...)
	m, err := newMetrics(o.Registerer)
	if err != nil {
		return nil, errors.Wrap(err, "cannot register compiler metrics")
	}
	return &Compiler{
		opts:    o,
		logger:  o.Logger,
		tracer:  o.TracerProvider.Tracer(instrumentation),
		metrics: m,
	}, nil
}

// Commands returns a schedule applying a list of declarative commands.
// Names in the commands are resolved by r.
func Commands(r schedule.Resolver, cmds []schedule.Command) Schedule {
	return func(sch *schedule.Schedule) *schedule.Schedule {
		for i := range cmds {
			sch = cmds[i].Apply(sch, r)
		}
		return sch
	}
}

func outcome(err error) string {
	if err == nil {
		return "ok"
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return "cancelled"
	}
	if kind := fmterr.KindOf(err); kind != "" {
		return string(kind)
	}
	return "error"
}

// stage runs a stage of the pipeline in its own span.
func (c *Compiler) stage(ctx context.Context, stage trace.Stage, f func(context.Context, oteltrace.Span) (notation.Stmt, error)) (notation.Stmt, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ctx, span := c.tracer.Start(ctx, string(stage))
	defer span.End()
	start := time.Now()
	stmt, err := f(ctx, span)
	c.metrics.duration.WithLabelValues(string(stage)).Observe(time.Since(start).Seconds())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	c.logger.DebugContext(ctx, "stage done", "stage", stage, "stmt", stmt)
	if c.opts.Callback != nil {
		if err := c.opts.Callback.Trace(stage, stmt); err != nil {
			return nil, errors.Wrapf(err, "%s callback", stage)
		}
	}
	return stmt, nil
}

// Compile concretizes an assignment, applies a schedule to the concrete statement
// and lowers the result for a target. The schedule can be nil.
func (c *Compiler) Compile(ctx context.Context, name string, a *notation.Assignment, sched Schedule, cfg target.Config) (res *Result, err error) {
	ctx, span := c.tracer.Start(ctx, "compile", oteltrace.WithAttributes(
		attribute.String("tac.kernel", name),
		attribute.String("tac.target", cfg.Target.String()),
		attribute.String("tac.assignment", a.String()),
	))
	start := time.Now()
	defer func() {
		c.metrics.compilations.WithLabelValues(outcome(err)).Inc()
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			c.logger.WarnContext(ctx, "compilation failed", "kernel", name, "target", cfg.Target, "error", err.Error())
			err = errors.WithMessagef(err, "kernel %s", name)
		} else {
			c.logger.InfoContext(ctx, "kernel compiled",
				"kernel", name,
				"target", cfg.Target,
				"transformations", res.Applied,
				"duration", time.Since(start))
		}
		span.End()
	}()
	res = &Result{}
	if res.Concrete, err = c.stage(ctx, trace.Concretize, func(context.Context, oteltrace.Span) (notation.Stmt, error) {
		return concrete.Concretize(a)
	}); err != nil {
		return nil, err
	}
	if res.Scheduled, err = c.stage(ctx, trace.Schedule, func(_ context.Context, span oteltrace.Span) (notation.Stmt, error) {
		sch := schedule.Of(res.Concrete)
		if sched != nil {
			sch = sched(sch)
		}
		res.Applied = sch.Applied()
		for _, primitive := range res.Applied {
			c.metrics.transformations.WithLabelValues(primitive).Inc()
		}
		span.SetAttributes(attribute.StringSlice("tac.transformations", res.Applied))
		return sch.Stmt()
	}); err != nil {
		return nil, err
	}
	if _, err = c.stage(ctx, trace.Lower, func(_ context.Context, span oteltrace.Span) (notation.Stmt, error) {
		fn, err := lower.Lower(res.Scheduled, name, cfg)
		if err != nil {
			return nil, err
		}
		span.SetAttributes(attribute.Int("tac.tensors", len(fn.Tensors)))
		res.Function = fn
		return res.Scheduled, nil
	}); err != nil {
		return nil, err
	}
	return res, nil
}
