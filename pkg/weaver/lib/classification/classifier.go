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

// Package classification provides concurrent, service-side wrappers around
// the sequence classification pipeline: a pooled classifier for serving many
// callers, and an optional ONNX Runtime backend via hugot.
package classification

import (
	"context"

	"github.com/weaverml/weaver/pkg/weaver/lib/pipelines"
)

// Classifier is the serving surface for sequence classification. All
// implementations are safe for concurrent use.
type Classifier interface {
	// Classify returns the single best label per input text.
	Classify(ctx context.Context, texts []string) ([]pipelines.Label, error)

	// ClassifyMultiLabel returns, per input text, every label whose score
	// reaches the threshold.
	ClassifyMultiLabel(ctx context.Context, texts []string, threshold float64) ([][]pipelines.Label, error)

	// Close releases all underlying model resources.
	Close() error
}
