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

package compiler_test

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/gx-org/tac/api/compiler"
	"github.com/gx-org/tac/api/options"
	"github.com/gx-org/tac/api/trace"
	"github.com/gx-org/tac/build/fmterr"
	"github.com/gx-org/tac/build/ir/irstring"
	"github.com/gx-org/tac/build/notation"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

const dotKernel = `
name: dot
target: Spatial
tensors:
  - {name: a, dtype: float32}
  - {name: B, dtype: float32, dims: [16], memory: Bulk}
  - {name: C, dtype: float32, dims: [16], memory: Bulk}
statement: a = B(i) * C(i)
schedule:
  - {op: bound, var: i, with: ib, extent: 16, kind: MaxExact}
  - {op: parallelize, var: ib, unit: Spatial, race: ParallelReduction, degree: 4}
candidates:
  - name: serial
  - name: bounded
    commands:
      - {op: bound, var: i, with: ib, extent: 16, kind: MaxExact}
  - name: split
    commands:
      - {op: bound, var: i, with: ib, extent: 16, kind: MaxExact}
      - {op: split, var: ib, outer: i0, inner: i1, factor: 4}
      - {op: parallelize, var: i1, unit: Spatial, race: ParallelReduction, degree: 4}
  - name: atomics
    commands:
      - {op: parallelize, var: i, unit: Spatial, race: Atomics}
  - name: wrong
    commands:
      - {op: split, var: i, outer: i0, inner: i1, factor: 4}
`

func program(t *testing.T, src string) *compiler.Program {
	t.Helper()
	k, err := compiler.ParseKernel([]byte(src))
	require.NoError(t, err)
	p, err := k.Program()
	require.NoError(t, err)
	return p
}

func TestCompile(t *testing.T) {
	reg := prometheus.NewRegistry()
	spans := tracetest.NewSpanRecorder()
	var stages []trace.Stage
	c, err := compiler.New(
		options.WithRegisterer(reg),
		options.WithTracerProvider(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(spans))),
		options.WithCallback(trace.Func(func(stage trace.Stage, stmt notation.Stmt) error {
			stages = append(stages, stage)
			return nil
		})),
	)
	require.NoError(t, err)
	res, err := c.CompileProgram(context.Background(), program(t, dotKernel))
	require.NoError(t, err)

	require.Equal(t, "forall(i, a += B(i) * C(i))", res.Concrete.String())
	require.Equal(t, []string{"bound", "parallelize"}, res.Applied)
	require.Equal(t, []trace.Stage{trace.Concretize, trace.Schedule, trace.Lower}, stages)
	require.Equal(t, "Spatial", res.Function.Target)
	require.Contains(t, irstring.String(res.Function), "reduce parallel(Spatial, 4, ParallelReduction)")

	var names []string
	for _, span := range spans.Ended() {
		names = append(names, span.Name())
	}
	require.Equal(t, []string{"concretize", "schedule", "lower", "compile"}, names)

	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(`
# HELP tac_compilations_total Number of kernels compiled, by outcome.
# TYPE tac_compilations_total counter
tac_compilations_total{outcome="ok"} 1
# HELP tac_transformations_total Number of scheduling transformations applied, by primitive.
# TYPE tac_transformations_total counter
tac_transformations_total{primitive="bound"} 1
tac_transformations_total{primitive="parallelize"} 1
`), "tac_compilations_total", "tac_transformations_total"))
}

func TestCompileErrors(t *testing.T) {
	reg := prometheus.NewRegistry()
	c, err := compiler.New(options.WithRegisterer(reg))
	require.NoError(t, err)
	p := program(t, dotKernel)
	wrong := p.Candidates()[4]

	_, err = c.Compile(context.Background(), "dot", p.Assignment, wrong.Schedule, p.Config)
	require.ErrorIs(t, err, fmterr.ErrInvalidTransformation)
	require.Contains(t, err.Error(), "kernel dot")

	atomics := p.Candidates()[3]
	_, err = c.Compile(context.Background(), "dot", p.Assignment, atomics.Schedule, p.Config)
	require.ErrorIs(t, err, fmterr.ErrUnsupportedRaceStrategy)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = c.Compile(ctx, "dot", p.Assignment, nil, p.Config)
	require.ErrorIs(t, err, context.Canceled)

	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(`
# HELP tac_compilations_total Number of kernels compiled, by outcome.
# TYPE tac_compilations_total counter
tac_compilations_total{outcome="cancelled"} 1
tac_compilations_total{outcome="invalid transformation"} 1
tac_compilations_total{outcome="unsupported race strategy"} 1
`), "tac_compilations_total"))
}

func TestCallbackError(t *testing.T) {
	c, err := compiler.New(options.WithCallback(trace.Func(func(stage trace.Stage, stmt notation.Stmt) error {
		if stage == trace.Schedule {
			return fmterr.Errorf(fmterr.ErrInvalidNotation, "rejected")
		}
		return nil
	})))
	require.NoError(t, err)
	p := program(t, dotKernel)
	_, err = c.CompileProgram(context.Background(), p)
	require.ErrorIs(t, err, fmterr.ErrInvalidNotation)
	require.Contains(t, err.Error(), "schedule callback")
}

func TestSearch(t *testing.T) {
	c, err := compiler.New(options.WithParallelism(2))
	require.NoError(t, err)
	outcomes, err := c.SearchProgram(context.Background(), program(t, dotKernel))
	require.NoError(t, err)
	var names []string
	for _, o := range outcomes {
		names = append(names, o.Candidate)
	}
	require.Equal(t, []string{"serial", "bounded", "split", "atomics", "wrong"}, names)
	require.NoError(t, outcomes[0].Err)
	require.Empty(t, outcomes[0].Result.Applied)
	require.Equal(t, []string{"bound", "split", "parallelize"}, outcomes[2].Result.Applied)
	require.ErrorIs(t, outcomes[3].Err, fmterr.ErrUnsupportedRaceStrategy)
	require.ErrorIs(t, outcomes[4].Err, fmterr.ErrInvalidTransformation)
	require.Nil(t, outcomes[4].Result)
	require.Len(t, compiler.Succeeded(outcomes), 3)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = c.SearchProgram(ctx, program(t, dotKernel))
	require.ErrorIs(t, err, context.Canceled)
}

func TestConcurrentCompilers(t *testing.T) {
	reg := prometheus.NewRegistry()
	p := program(t, dotKernel)
	var wg sync.WaitGroup
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c, err := compiler.New(options.WithRegisterer(reg))
			if err != nil {
				t.Error(err)
				return
			}
			if _, err := c.CompileProgram(context.Background(), p); err != nil {
				t.Error(err)
			}
		}()
	}
	wg.Wait()
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(`
# HELP tac_compilations_total Number of kernels compiled, by outcome.
# TYPE tac_compilations_total counter
tac_compilations_total{outcome="ok"} 4
`), "tac_compilations_total"))
}

func TestKernel(t *testing.T) {
	tests := []struct {
		desc string
		src  string
	}{
		{
			desc: "unknown field",
			src:  "name: k\nstatment: a = b\n",
		},
		{
			desc: "missing statement",
			src:  "name: k\ntensors:\n  - {name: a, dtype: float32}\n",
		},
		{
			desc: "unknown target",
			src:  "name: k\ntarget: TPU\ntensors:\n  - {name: a, dtype: float32}\nstatement: a = 1\n",
		},
		{
			desc: "neither assemble nor compute",
			src:  "name: k\nassemble: false\ncompute: false\ntensors:\n  - {name: a, dtype: float32}\nstatement: a = 1\n",
		},
		{
			desc: "duplicated candidates",
			src:  "name: k\ntensors:\n  - {name: a, dtype: float32}\nstatement: a = 1\ncandidates:\n  - name: c\n  - name: c\n",
		},
		{
			desc: "undeclared tensor",
			src:  "name: k\ntensors:\n  - {name: a, dtype: float32}\nstatement: a = b\n",
		},
		{
			desc: "invalid declaration",
			src:  "name: k\ntensors:\n  - {name: a, dtype: complex}\nstatement: a = 1\n",
		},
	}
	for _, test := range tests {
		t.Run(test.desc, func(t *testing.T) {
			k, err := compiler.ParseKernel([]byte(test.src))
			if err == nil {
				_, err = k.Program()
			}
			require.ErrorIs(t, err, fmterr.ErrInvalidNotation)
		})
	}
}

func TestKernelConfig(t *testing.T) {
	k, err := compiler.ParseKernel([]byte("name: k\ntarget: cuda\ncompute: false\n"))
	require.NoError(t, err)
	cfg, err := k.Config()
	require.NoError(t, err)
	require.Equal(t, "CUDA", cfg.Target.String())
	require.True(t, cfg.Assemble)
	require.False(t, cfg.Compute)
}
