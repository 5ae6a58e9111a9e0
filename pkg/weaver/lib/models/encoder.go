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

package models

import (
	"errors"
	"fmt"

	"github.com/gomlx/gomlx/pkg/core/graph"
	"github.com/gomlx/gomlx/pkg/core/tensors"
	mlctx "github.com/gomlx/gomlx/pkg/ml/context"
	"github.com/gomlx/onnx-gomlx/onnx"

	"github.com/weaverml/weaver/pkg/weaver/lib/backends"
)

// ForwardInputs carries the optional input tensors of a classification
// forward pass. Nil fields are omitted from the graph feed; which fields a
// family consumes is variant-specific.
type ForwardInputs struct {
	// InputIDs is the token-id tensor, shape [batch, seq].
	InputIDs [][]int64
	// AttentionMask marks real tokens with 1 and padding with 0.
	AttentionMask [][]int64
	// TokenTypeIDs distinguishes sequence pairs for families that use them.
	TokenTypeIDs [][]int64
	// PositionIDs overrides the default position encoding.
	PositionIDs [][]int64
	// InputEmbeds bypasses the embedding lookup, shape [batch, seq, dim].
	InputEmbeds [][][]float32
}

// ErrTrainingUnsupported is returned when a forward pass is requested in
// training mode; loaded graphs are inference-only.
var ErrTrainingUnsupported = errors.New("training mode is not supported for loaded classification graphs")

// errORTUnavailable signals that the ONNX Runtime path is not compiled into
// this binary; newRunner falls back to the GoMLX engine.
var errORTUnavailable = errors.New("ONNX Runtime support not compiled in (build with -tags onnx,ORT)")

// feed is one named input tensor for a graph execution. Exactly one of ints
// or floats is set.
type feed struct {
	name   string
	ints   [][]int64
	floats [][][]float32
}

// runner executes a loaded classification graph and returns logits with
// shape [batch, numLabels].
type runner interface {
	run(feeds []feed) ([][]float32, error)
	close() error
}

// newRunner creates the execution backend for a weights file. The ONNX
// Runtime path is preferred when compiled in (onnx && ORT build tags);
// otherwise the graph runs through the parameter store's GoMLX engine.
func newRunner(store *backends.ParameterStore, weightsPath string) (runner, error) {
	r, err := newORTRunner(weightsPath, store.Device() == backends.DeviceCUDA)
	if err == nil {
		return r, nil
	}
	if !errors.Is(err, errORTUnavailable) {
		return nil, err
	}

	model, err := store.LoadONNX(weightsPath)
	if err != nil {
		return nil, err
	}
	return &gomlxRunner{store: store, model: model}, nil
}

// gomlxRunner executes ONNX graphs converted to GoMLX against the parameter
// store's context. Always available; this is the pure Go / XLA path.
type gomlxRunner struct {
	store *backends.ParameterStore
	model *onnx.Model
}

func (r *gomlxRunner) run(feeds []feed) ([][]float32, error) {
	if len(feeds) == 0 {
		return nil, fmt.Errorf("no input tensors provided")
	}

	inputs := make([]*tensors.Tensor, len(feeds))
	names := make([]string, len(feeds))
	for i, f := range feeds {
		names[i] = f.name
		t, err := feedTensor(f)
		if err != nil {
			return nil, err
		}
		inputs[i] = t
	}

	graphFn := func(ctx *mlctx.Context, nodes []*graph.Node) []*graph.Node {
		inputMap := make(map[string]*graph.Node, len(nodes))
		for i, name := range names {
			inputMap[name] = nodes[i]
		}
		return r.model.CallGraph(ctx.Reuse(), nodes[0].Graph(), inputMap)
	}

	results, err := r.store.Exec(graphFn, inputs...)
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, fmt.Errorf("model produced no outputs")
	}

	logits, ok := results[0].Value().([][]float32)
	if !ok {
		return nil, fmt.Errorf("unexpected logits tensor type %T", results[0].Value())
	}
	return logits, nil
}

func (r *gomlxRunner) close() error {
	return nil
}

// feedTensor flattens a feed into a host tensor.
func feedTensor(f feed) (*tensors.Tensor, error) {
	if f.ints != nil {
		batch := len(f.ints)
		if batch == 0 {
			return nil, fmt.Errorf("input %s is empty", f.name)
		}
		seq := len(f.ints[0])
		flat := make([]int64, 0, batch*seq)
		for _, row := range f.ints {
			if len(row) != seq {
				return nil, fmt.Errorf("input %s has ragged rows", f.name)
			}
			flat = append(flat, row...)
		}
		return tensors.FromFlatDataAndDimensions(flat, batch, seq), nil
	}

	batch := len(f.floats)
	if batch == 0 {
		return nil, fmt.Errorf("input %s is empty", f.name)
	}
	seq := len(f.floats[0])
	dim := 0
	if seq > 0 {
		dim = len(f.floats[0][0])
	}
	flat := make([]float32, 0, batch*seq*dim)
	for _, row := range f.floats {
		for _, vec := range row {
			flat = append(flat, vec...)
		}
	}
	return tensors.FromFlatDataAndDimensions(flat, batch, seq, dim), nil
}

// checkLogits validates the classifier head's output width against the
// configured class count, so a weights/config mismatch surfaces as a
// descriptive error instead of a bad decode.
func checkLogits(logits [][]float32, numLabels int) error {
	if numLabels <= 0 {
		return nil // configuration carried no label table; accept as-is
	}
	for _, row := range logits {
		if len(row) != numLabels {
			return fmt.Errorf("classifier produced %d logits per row, configuration expects %d classes", len(row), numLabels)
		}
	}
	return nil
}
