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

package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"strings"

	"github.com/gx-org/backend/shape"
	"github.com/gx-org/tac/api/compiler"
	"github.com/gx-org/tac/api/options"
	"github.com/gx-org/tac/api/trace"
	tacfmt "github.com/gx-org/tac/base/fmt"
	"github.com/gx-org/tac/build/fmterr"
	"github.com/gx-org/tac/build/ir"
	"github.com/gx-org/tac/build/ir/irstring"
	"github.com/gx-org/tac/build/notation"
	"github.com/gx-org/tac/build/target"
	"github.com/gx-org/tac/golang/backend/exec"
	"github.com/gx-org/tac/golang/backend/storage"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

// targetEnv overrides the target of the kernels.
const targetEnv = "TACC_TARGET"

type app struct {
	out    io.Writer
	errOut io.Writer
	getenv func(string) string

	logLevel string
	target   string
	stages   bool
	number   bool

	logger *slog.Logger
}

// run executes a command line and returns the exit code of the process.
// Errors are printed with their stack trace when the log level is debug.
func run(ctx context.Context, args []string, out, errOut io.Writer, getenv func(string) string) int {
	root := newRootCommand(out, errOut, getenv)
	root.SetArgs(args)
	err := root.ExecuteContext(ctx)
	if err == nil {
		return 0
	}
	format := "tacc: %v\n"
	if root.PersistentFlags().Lookup("log-level").Value.String() == "debug" {
		format = "tacc: %+v\n"
	}
	fmt.Fprintf(errOut, format, fmterr.Verbose(err))
	return 1
}

func newRootCommand(out, errOut io.Writer, getenv func(string) string) *cobra.Command {
	a := &app{out: out, errOut: errOut, getenv: getenv}
	root := &cobra.Command{
		Use:           "tacc",
		Short:         "Compile tensor algebra kernels",
		Long:          "tacc concretizes, schedules and lowers tensor algebra kernels described in YAML files.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup()
		},
	}
	root.SetOut(out)
	root.SetErr(errOut)
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "warn", "minimum level of the logs (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&a.target, "target", "", "target overriding the target of the kernel and "+targetEnv)

	lowerCmd := &cobra.Command{
		Use:   "lower [kernel.yaml]",
		Short: "Lower a kernel and print its imperative code",
		Args:  cobra.ExactArgs(1),
		RunE:  a.runLower,
	}
	lowerCmd.Flags().BoolVar(&a.stages, "stages", false, "print the statement produced by each stage of the pipeline")
	lowerCmd.Flags().BoolVarP(&a.number, "number", "n", false, "number the lines of the lowered code")
	root.AddCommand(
		lowerCmd,
		&cobra.Command{
			Use:   "run [kernel.yaml]",
			Short: "Lower a kernel and execute it on its inputs with the Go reference backend",
			Args:  cobra.ExactArgs(1),
			RunE:  a.runRun,
		},
		&cobra.Command{
			Use:   "search [kernel.yaml]",
			Short: "Lower a kernel with each of its candidate schedules",
			Args:  cobra.ExactArgs(1),
			RunE:  a.runSearch,
		},
		&cobra.Command{
			Use:   "targets",
			Short: "List the targets and the race strategies supported by their parallel units",
			Args:  cobra.NoArgs,
			RunE:  a.runTargets,
		},
	)
	return root
}

func (a *app) setup() error {
	var level slog.Level
	if err := level.UnmarshalText([]byte(a.logLevel)); err != nil {
		return errors.Errorf("invalid log level %q", a.logLevel)
	}
	a.logger = slog.New(slog.NewTextHandler(a.errOut, &slog.HandlerOptions{Level: level}))
	return nil
}

func (a *app) compiler(opts ...options.Option) (*compiler.Compiler, error) {
	return compiler.New(append([]options.Option{options.WithLogger(a.logger)}, opts...)...)
}

// load reads a kernel and resolves its names.
func (a *app) load(path string) (*compiler.Program, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "cannot open kernel")
	}
	defer f.Close()
	k, err := compiler.ReadKernel(f)
	if err != nil {
		return nil, errors.WithMessage(err, path)
	}
	if env := a.getenv(targetEnv); env != "" {
		a.logger.Debug("target overridden by the environment", "target", env, "kernel", k.Name)
		k.Target = env
	}
	if a.target != "" {
		k.Target = a.target
	}
	p, err := k.Program()
	if err != nil {
		return nil, errors.WithMessage(err, path)
	}
	a.logger.Info("kernel loaded", "kernel", k.Name, "path", path, "target", p.Config.Target)
	return p, nil
}

func (a *app) runLower(cmd *cobra.Command, args []string) error {
	p, err := a.load(args[0])
	if err != nil {
		return err
	}
	var opts []options.Option
	if a.stages {
		opts = append(opts, options.WithCallback(trace.Func(func(stage trace.Stage, stmt notation.Stmt) error {
			if stage == trace.Lower {
				return nil
			}
			_, err := fmt.Fprintf(a.out, "// %s\n%s\n", stage, stmt)
			return err
		})))
	}
	c, err := a.compiler(opts...)
	if err != nil {
		return err
	}
	res, err := c.CompileProgram(cmd.Context(), p)
	if err != nil {
		return err
	}
	code := irstring.String(res.Function)
	if a.number {
		code = tacfmt.Number(code)
	}
	_, err = fmt.Fprintln(a.out, code)
	return err
}

// inputs packs the values of the kernel inputs in the format of the function arguments.
func inputs(fn *ir.Function, values map[string][]float64) (exec.Tensors, error) {
	ins := make(exec.Tensors)
	for _, arg := range fn.Tensors {
		if arg.Output {
			continue
		}
		name := arg.Tensor.Name()
		vals, ok := values[name]
		if !ok {
			return nil, errors.Errorf("no value for input %s", name)
		}
		sh := shape.Shape{DType: arg.Tensor.DType(), AxisLengths: arg.Dims}
		if len(vals) != sh.Size() {
			return nil, errors.Errorf("input %s: got %d values, want %d", name, len(vals), sh.Size())
		}
		t, err := storage.Pack(vals, sh, arg.Tensor.Format())
		if err != nil {
			return nil, errors.WithMessagef(err, "input %s", name)
		}
		ins[name] = t
	}
	return ins, nil
}

func (a *app) runRun(cmd *cobra.Command, args []string) error {
	p, err := a.load(args[0])
	if err != nil {
		return err
	}
	c, err := a.compiler()
	if err != nil {
		return err
	}
	res, err := c.CompileProgram(cmd.Context(), p)
	if err != nil {
		return err
	}
	ins, err := inputs(res.Function, p.Kernel.Inputs)
	if err != nil {
		return err
	}
	outs, err := exec.Run(cmd.Context(), res.Function, ins)
	if err != nil {
		return err
	}
	names := make([]string, 0, len(outs))
	for name := range outs {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		dense, err := outs[name].Dense()
		if err != nil {
			return errors.WithMessagef(err, "output %s", name)
		}
		if _, err := fmt.Fprintf(a.out, "%s = %s\n", name, tacfmt.Values(dense)); err != nil {
			return err
		}
	}
	return nil
}

func (a *app) runSearch(cmd *cobra.Command, args []string) error {
	p, err := a.load(args[0])
	if err != nil {
		return err
	}
	if len(p.Kernel.Candidates) == 0 {
		return errors.Errorf("kernel %s has no candidate schedule", p.Kernel.Name)
	}
	c, err := a.compiler()
	if err != nil {
		return err
	}
	outcomes, err := c.SearchProgram(cmd.Context(), p)
	if err != nil {
		return err
	}
	for _, o := range outcomes {
		status := "ok"
		if o.Err != nil {
			status = o.Err.Error()
		} else if len(o.Result.Applied) > 0 {
			status = "ok: " + strings.Join(o.Result.Applied, ", ")
		}
		if _, err := fmt.Fprintf(a.out, "%s\t%s\n", o.Candidate, status); err != nil {
			return err
		}
	}
	if len(compiler.Succeeded(outcomes)) == 0 {
		return errors.Errorf("no candidate schedule of kernel %s compiles", p.Kernel.Name)
	}
	return nil
}

func (a *app) runTargets(cmd *cobra.Command, args []string) error {
	for _, id := range target.All() {
		var units []string
		for _, unit := range id.Units() {
			var races []string
			for _, race := range id.Races(unit) {
				races = append(races, race.String())
			}
			units = append(units, fmt.Sprintf("%s(%s)", unit, strings.Join(races, ", ")))
		}
		if _, err := fmt.Fprintf(a.out, "%s: %s\n", id, strings.Join(units, ", ")); err != nil {
			return err
		}
	}
	return nil
}
