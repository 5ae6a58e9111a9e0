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

package classification

import (
	"go.uber.org/zap"

	"github.com/weaverml/weaver/pkg/weaver/lib/backends"
	"github.com/weaverml/weaver/pkg/weaver/lib/models"
)

// HugotClassifierConfig holds configuration for creating a HugotClassifier.
// Only honored by binaries built with the onnx and ORT tags; other builds
// fail construction with an explanatory error.
type HugotClassifierConfig struct {
	// ModelPath is the path to the model directory (config.json,
	// tokenizer.json and the ONNX weights).
	ModelPath string

	// ModelType selects the transformer family recorded in config.json.
	ModelType models.ModelType

	// OnnxFilename names the weights file inside ModelPath ("" = model.onnx).
	OnnxFilename string

	// GPUMode controls CUDA usage (auto-detect by default).
	GPUMode backends.GPUMode

	// Logger for logging (nil = no logging)
	Logger *zap.Logger
}
