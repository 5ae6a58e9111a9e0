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

//go:build onnx && ORT && !darwin

package classification

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/knights-analytics/hugot"
	"github.com/knights-analytics/hugot/options"
	"github.com/knights-analytics/hugot/pipelineBackends"
	khpipelines "github.com/knights-analytics/hugot/pipelines"
	"go.uber.org/zap"

	"github.com/weaverml/weaver/pkg/weaver/lib/backends"
	"github.com/weaverml/weaver/pkg/weaver/lib/models"
	"github.com/weaverml/weaver/pkg/weaver/lib/pipelines"
)

// Ensure HugotClassifier implements Classifier
var _ Classifier = (*HugotClassifier)(nil)

// HugotClassifier serves sequence classification through ONNX Runtime via
// hugot, bypassing the graph-compiling engine entirely. The model directory
// must hold config.json, tokenizer.json and the ONNX weights.
type HugotClassifier struct {
	session  *hugot.Session
	single   *khpipelines.TextClassificationPipeline
	multi    *khpipelines.TextClassificationPipeline
	labelIDs map[string]int64
	logger   *zap.Logger
}

// NewHugotClassifier creates an ONNX Runtime session and two text
// classification pipelines over it, one softmax (single-label) and one
// sigmoid (multi-label).
func NewHugotClassifier(cfg HugotClassifierConfig) (*HugotClassifier, error) {
	if cfg.ModelPath == "" {
		return nil, fmt.Errorf("model path is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	onnxFilename := cfg.OnnxFilename
	if onnxFilename == "" {
		onnxFilename = "model.onnx"
	}

	modelConfig, err := models.LoadConfigOption(cfg.ModelType, filepath.Join(cfg.ModelPath, "config.json"))
	if err != nil {
		return nil, err
	}
	labelIDs := make(map[string]int64, len(modelConfig.LabelMapping()))
	for id, text := range modelConfig.LabelMapping() {
		labelIDs[text] = id
	}

	var sessionOpts []options.WithOption
	if backends.ShouldUseGPU(cfg.GPUMode) {
		sessionOpts = append(sessionOpts, options.WithCuda(nil))
	}
	session, err := hugot.NewORTSession(sessionOpts...)
	if err != nil {
		return nil, fmt.Errorf("creating ONNX Runtime session: %w", err)
	}

	single, err := hugot.NewPipeline(session, hugot.TextClassificationConfig{
		Name:         "sequence-classification",
		ModelPath:    cfg.ModelPath,
		OnnxFilename: onnxFilename,
		Options: []pipelineBackends.PipelineOption[*khpipelines.TextClassificationPipeline]{
			khpipelines.WithSingleLabel(),
		},
	})
	if err != nil {
		_ = session.Destroy()
		return nil, fmt.Errorf("creating single-label pipeline: %w", err)
	}

	multi, err := hugot.NewPipeline(session, hugot.TextClassificationConfig{
		Name:         "sequence-classification-multilabel",
		ModelPath:    cfg.ModelPath,
		OnnxFilename: onnxFilename,
		Options: []pipelineBackends.PipelineOption[*khpipelines.TextClassificationPipeline]{
			khpipelines.WithMultiLabel(),
		},
	})
	if err != nil {
		_ = session.Destroy()
		return nil, fmt.Errorf("creating multi-label pipeline: %w", err)
	}

	logger.Info("Loaded hugot ONNX Runtime classifier",
		zap.String("modelPath", cfg.ModelPath),
		zap.String("modelType", cfg.ModelType.String()),
		zap.Int("numLabels", len(labelIDs)))

	return &HugotClassifier{
		session:  session,
		single:   single,
		multi:    multi,
		labelIDs: labelIDs,
		logger:   logger,
	}, nil
}

// Classify returns the single best label per input text.
func (h *HugotClassifier) Classify(ctx context.Context, texts []string) ([]pipelines.Label, error) {
	if len(texts) == 0 {
		return []pipelines.Label{}, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out, err := h.single.RunPipeline(texts)
	if err != nil {
		classificationErrors.WithLabelValues(modeSingleLabel).Inc()
		return nil, fmt.Errorf("running text classification: %w", err)
	}

	labels := make([]pipelines.Label, len(out.ClassificationOutputs))
	for sentenceIdx, classifications := range out.ClassificationOutputs {
		if len(classifications) == 0 {
			return nil, fmt.Errorf("no classification output for input %d", sentenceIdx)
		}
		best := classifications[0]
		for _, c := range classifications[1:] {
			if c.Score > best.Score {
				best = c
			}
		}
		id, err := h.labelID(best.Label)
		if err != nil {
			return nil, err
		}
		labels[sentenceIdx] = pipelines.Label{
			Text:     best.Label,
			Score:    float64(best.Score),
			ID:       id,
			Sentence: sentenceIdx,
		}
	}

	classificationsTotal.WithLabelValues(modeSingleLabel).Inc()
	classificationTexts.WithLabelValues(modeSingleLabel).Add(float64(len(texts)))
	return labels, nil
}

// ClassifyMultiLabel returns, per input text, every label whose sigmoid
// score reaches the threshold.
func (h *HugotClassifier) ClassifyMultiLabel(ctx context.Context, texts []string, threshold float64) ([][]pipelines.Label, error) {
	if len(texts) == 0 {
		return [][]pipelines.Label{}, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out, err := h.multi.RunPipeline(texts)
	if err != nil {
		classificationErrors.WithLabelValues(modeMultiLabel).Inc()
		return nil, fmt.Errorf("running multi-label text classification: %w", err)
	}

	labels := make([][]pipelines.Label, len(out.ClassificationOutputs))
	for sentenceIdx, classifications := range out.ClassificationOutputs {
		sentenceLabels := []pipelines.Label{}
		for _, c := range classifications {
			if float64(c.Score) < threshold {
				continue
			}
			id, err := h.labelID(c.Label)
			if err != nil {
				return nil, err
			}
			sentenceLabels = append(sentenceLabels, pipelines.Label{
				Text:     c.Label,
				Score:    float64(c.Score),
				ID:       id,
				Sentence: sentenceIdx,
			})
		}
		labels[sentenceIdx] = sentenceLabels
	}

	classificationsTotal.WithLabelValues(modeMultiLabel).Inc()
	classificationTexts.WithLabelValues(modeMultiLabel).Add(float64(len(texts)))
	return labels, nil
}

func (h *HugotClassifier) labelID(text string) (int64, error) {
	id, ok := h.labelIDs[text]
	if !ok {
		return 0, fmt.Errorf("no label mapping entry for %q", text)
	}
	return id, nil
}

// Close destroys the underlying ONNX Runtime session.
func (h *HugotClassifier) Close() error {
	return h.session.Destroy()
}
