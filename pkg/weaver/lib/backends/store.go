// Copyright 2025 Weaver Authors
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

// Package backends selects compute devices and owns the parameter store
// backing a loaded model. The numeric kernels themselves live in GoMLX
// (and optionally ONNX Runtime); this package wires them up.
package backends

import (
	"fmt"

	"github.com/gomlx/gomlx/backends"
	"github.com/gomlx/gomlx/pkg/core/graph"
	"github.com/gomlx/gomlx/pkg/core/tensors"
	mlctx "github.com/gomlx/gomlx/pkg/ml/context"
	"github.com/gomlx/onnx-gomlx/onnx"

	// Pure Go engine, always available.
	_ "github.com/gomlx/gomlx/backends/simplego"
)

// ParameterStore is the exclusive owner of all learned weight tensors backing
// one model instance. It pairs a GoMLX context (variable storage) with the
// compute engine selected for the configured device, and lives exactly as
// long as the model that owns it.
type ParameterStore struct {
	device Device
	engine backends.Backend
	ctx    *mlctx.Context
}

// NewParameterStore creates an empty parameter store targeting the given
// device. DeviceCUDA selects the XLA engine; DeviceCPU auto-detects, trying
// XLA (optimized CPU) first and falling back to the pure Go engine.
func NewParameterStore(device Device) (*ParameterStore, error) {
	engine, err := newEngine(device)
	if err != nil {
		return nil, err
	}
	return &ParameterStore{
		device: device,
		engine: engine,
		ctx:    mlctx.New(),
	}, nil
}

func newEngine(device Device) (backends.Backend, error) {
	if device == DeviceCUDA {
		engine, err := backends.NewWithConfig("xla")
		if err != nil {
			return nil, fmt.Errorf("creating XLA engine for %s: %w", device, err)
		}
		return engine, nil
	}

	engine, err := backends.NewWithConfig("xla")
	if err != nil {
		engine, err = backends.NewWithConfig("simplego")
		if err != nil {
			return nil, fmt.Errorf("creating compute engine: %w", err)
		}
	}
	return engine, nil
}

// Device returns the device this store places computation on.
func (s *ParameterStore) Device() Device {
	return s.device
}

// LoadONNX reads an ONNX file and loads its weight tensors into the store.
// The returned graph keeps no tensor data of its own; all variables live in
// the store's context. I/O and malformed-weight failures are recoverable.
func (s *ParameterStore) LoadONNX(path string) (*onnx.Model, error) {
	model, err := onnx.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading model weights %s: %w", path, err)
	}
	if err := model.VariablesToContext(s.ctx); err != nil {
		return nil, fmt.Errorf("loading weights into parameter store: %w", err)
	}
	return model, nil
}

// Exec runs a graph function once against the stored variables. Inputs and
// outputs are host tensors; no gradient graph is ever constructed, so
// execution is inference-only by construction.
func (s *ParameterStore) Exec(
	graphFn func(ctx *mlctx.Context, inputs []*graph.Node) []*graph.Node,
	inputs ...*tensors.Tensor,
) ([]*tensors.Tensor, error) {
	results, err := mlctx.ExecOnceN(s.engine, s.ctx, graphFn, inputs...)
	if err != nil {
		return nil, fmt.Errorf("executing graph: %w", err)
	}
	return results, nil
}

// Close releases the compute engine. The store must not be used afterwards.
func (s *ParameterStore) Close() error {
	if s.engine != nil {
		s.engine.Finalize()
		s.engine = nil
	}
	return nil
}
