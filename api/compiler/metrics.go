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
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
)

type metrics struct {
	compilations    *prometheus.CounterVec
	transformations *prometheus.CounterVec
	duration        *prometheus.HistogramVec
}

func newMetrics(reg prometheus.Registerer) (*metrics, error) {
	m := &metrics{
		compilations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tac_compilations_total",
			Help: "Number of kernels compiled, by outcome.",
		}, []string{"outcome"}),
		transformations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tac_transformations_total",
			Help: "Number of scheduling transformations applied, by primitive.",
		}, []string{"primitive"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "tac_stage_duration_seconds",
			Help:    "Duration of the stages of the compilation pipeline.",
			Buckets: []float64{0.00001, 0.0001, 0.001, 0.01, 0.1, 1},
		}, []string{"stage"}),
	}
	if reg == nil {
		return m, nil
	}
	var err error
	if m.compilations, err = register(reg, m.compilations); err != nil {
		return nil, err
	}
	if m.transformations, err = register(reg, m.transformations); err != nil {
		return nil, err
	}
	if m.duration, err = register(reg, m.duration); err != nil {
		return nil, err
	}
	return m, nil
}

// register a collector. If an identical collector has already been registered,
// for instance by another compiler, the existing collector is returned.
func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	err := reg.Register(c)
	if err == nil {
		return c, nil
	}
	var already prometheus.AlreadyRegisteredError
	if !errors.As(err, &already) {
		return c, err
	}
	existing, ok := already.ExistingCollector.(C)
	if !ok {
		return c, err
	}
	return existing, nil
}
