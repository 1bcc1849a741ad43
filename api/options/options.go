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

// Package options specifies the options of a compiler.
package options

import (
	"io"
	"log/slog"
	"runtime"

	"github.com/gx-org/tac/api/trace"
	"github.com/prometheus/client_golang/prometheus"
	oteltrace "go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

type (
	// Options of a compiler.
	Options struct {
		// Logger receives the structured logs of the compiler.
		Logger *slog.Logger
		// TracerProvider creates the tracer recording the spans of the pipeline.
		TracerProvider oteltrace.TracerProvider
		// Registerer registers the metrics of the compiler. Metrics are not registered if nil.
		Registerer prometheus.Registerer
		// Callback is called after each stage of the pipeline if not nil.
		Callback trace.Callback
		// Parallelism is the maximum number of candidate schedules compiled concurrently.
		Parallelism int
	}

	// Option modifies the options of a compiler.
	Option func(*Options)
)

// Apply returns the default options modified by opts.
func Apply(opts ...Option) Options {
	o := Options{
		Logger:         slog.New(slog.NewTextHandler(io.Discard, nil)),
		TracerProvider: noop.NewTracerProvider(),
		Parallelism:    runtime.GOMAXPROCS(0),
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithLogger sets the logger of the compiler.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Options) {
		o.Logger = logger
	}
}

// WithTracerProvider sets the provider of the tracer recording the spans of the pipeline.
func WithTracerProvider(tp oteltrace.TracerProvider) Option {
	return func(o *Options) {
		o.TracerProvider = tp
	}
}

// WithRegisterer registers the metrics of the compiler.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(o *Options) {
		o.Registerer = reg
	}
}

// WithCallback sets a callback called after each stage of the pipeline.
func WithCallback(cb trace.Callback) Option {
	return func(o *Options) {
		o.Callback = cb
	}
}

// WithParallelism sets the maximum number of candidate schedules compiled concurrently.
// Values lower than 1 are ignored.
func WithParallelism(n int) Option {
	return func(o *Options) {
		if n > 0 {
			o.Parallelism = n
		}
	}
}
