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

//go:build !onnx || !ORT || darwin

package classification

import (
	"context"
	"errors"

	"github.com/weaverml/weaver/pkg/weaver/lib/pipelines"
)

// HugotClassifier is unavailable without the onnx and ORT build tags.
type HugotClassifier struct{}

var errHugotUnavailable = errors.New("hugot ONNX Runtime support not compiled in (build with -tags onnx,ORT)")

// NewHugotClassifier always fails in this build configuration.
func NewHugotClassifier(cfg HugotClassifierConfig) (*HugotClassifier, error) {
	return nil, errHugotUnavailable
}

func (h *HugotClassifier) Classify(ctx context.Context, texts []string) ([]pipelines.Label, error) {
	return nil, errHugotUnavailable
}

func (h *HugotClassifier) ClassifyMultiLabel(ctx context.Context, texts []string, threshold float64) ([][]pipelines.Label, error) {
	return nil, errHugotUnavailable
}

func (h *HugotClassifier) Close() error {
	return nil
}
