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

package target_test

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/gx-org/tac/build/fmterr"
	"github.com/gx-org/tac/build/notation"
	"github.com/gx-org/tac/build/target"
)

func TestCheck(t *testing.T) {
	tests := []struct {
		target   target.ID
		unit     notation.ParallelUnit
		race     notation.RaceStrategy
		resolved notation.ParallelUnit
		ok       bool
	}{
		{target: target.C, unit: notation.DefaultUnit, race: notation.NoRaces, resolved: notation.CPUThread, ok: true},
		{target: target.C, unit: notation.CPUThread, race: notation.ParallelReduction, resolved: notation.CPUThread, ok: true},
		{target: target.C, unit: notation.CPUThread, race: notation.Temporary, resolved: notation.CPUThread, ok: true},
		{target: target.C, unit: notation.CPUVector, race: notation.Atomics, resolved: notation.CPUVector},
		{target: target.C, unit: notation.GPUWarp, race: notation.NoRaces, resolved: notation.GPUWarp},
		{target: target.CUDA, unit: notation.DefaultUnit, race: notation.Atomics, resolved: notation.GPUThread, ok: true},
		{target: target.CUDA, unit: notation.GPUWarp, race: notation.ParallelReduction, resolved: notation.GPUWarp, ok: true},
		{target: target.CUDA, unit: notation.GPUBlock, race: notation.ParallelReduction, resolved: notation.GPUBlock},
		{target: target.CUDA, unit: notation.GPUThread, race: notation.Temporary, resolved: notation.GPUThread},
		{target: target.Spatial, unit: notation.Spatial, race: notation.ParallelReduction, resolved: notation.Spatial, ok: true},
		{target: target.Spatial, unit: notation.DefaultUnit, race: notation.IgnoreRaces, resolved: notation.Spatial, ok: true},
		{target: target.Spatial, unit: notation.Spatial, race: notation.Atomics, resolved: notation.Spatial},
		{target: target.Spatial, unit: notation.CPUThread, race: notation.NoRaces, resolved: notation.CPUThread},
	}
	for i, test := range tests {
		resolved, err := test.target.Check(test.unit, test.race)
		if resolved != test.resolved {
			t.Errorf("test %d: got unit %s but want %s", i, resolved, test.resolved)
		}
		if test.ok {
			if err != nil {
				t.Errorf("test %d: unexpected error: %v", i, err)
			}
			continue
		}
		if !errors.Is(err, fmterr.ErrUnsupportedRaceStrategy) {
			t.Errorf("test %d: got error %v but want %v", i, err, fmterr.ErrUnsupportedRaceStrategy)
		}
	}
}

func TestParse(t *testing.T) {
	for _, id := range target.All() {
		got, err := target.Parse(id.String())
		if err != nil {
			t.Fatal(err)
		}
		if got != id {
			t.Errorf("got %s but want %s", got, id)
		}
	}
	var id target.ID
	if err := id.UnmarshalText([]byte("spatial")); err != nil {
		t.Fatal(err)
	}
	if id != target.Spatial {
		t.Errorf("got %s but want %s", id, target.Spatial)
	}
	if _, err := target.Parse("fpga"); err == nil {
		t.Errorf("expected an error for an unknown target")
	}
}

func TestUnits(t *testing.T) {
	want := []notation.ParallelUnit{notation.GPUBlock, notation.GPUWarp, notation.GPUThread}
	if diff := cmp.Diff(want, target.CUDA.Units()); diff != "" {
		t.Errorf("unexpected units (-want +got):\n%s", diff)
	}
}

func TestConfig(t *testing.T) {
	if err := target.NewConfig(target.Spatial).Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := (target.Config{Target: target.C}).Validate(); err == nil {
		t.Errorf("expected an error for a configuration generating nothing")
	}
	if err := target.NewConfig(target.ID(42)).Validate(); err == nil {
		t.Errorf("expected an error for an unknown target")
	}
}
