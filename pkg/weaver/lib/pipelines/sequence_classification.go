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

// Package pipelines implements the sequence classification pipeline
// (e.g. sentiment analysis): tokenize and pad a batch of texts, run one
// forward pass through the selected model family, and decode softmax or
// sigmoid outputs into labeled results.
package pipelines

import (
	"fmt"

	"github.com/ajroetker/go-highway/hwy/contrib/algo"
	"github.com/ajroetker/go-highway/hwy/contrib/nn"
	"go.uber.org/zap"

	"github.com/weaverml/weaver/pkg/weaver/lib/backends"
	"github.com/weaverml/weaver/pkg/weaver/lib/models"
	"github.com/weaverml/weaver/pkg/weaver/lib/resources"
	"github.com/weaverml/weaver/pkg/weaver/lib/tokenizers"
)

// MaxSequenceLength is the fixed tokenization cutoff. Batches are padded to
// the longest sequence actually produced, which may be shorter.
const MaxSequenceLength = 128

// Label is one classification produced by a SequenceClassificationModel.
// Immutable once created.
type Label struct {
	// Text is the label's display string.
	Text string `json:"text"`
	// Score is the confidence score.
	Score float64 `json:"score"`
	// ID is the label's class id.
	ID int64 `json:"id"`
	// Sentence is the zero-based index of the input text this label belongs to.
	Sentence int `json:"sentence"`
}

// SequenceClassificationConfig describes the model to load and the device to
// place it on. Built once and consumed by NewSequenceClassificationModel.
type SequenceClassificationConfig struct {
	// ModelType selects the transformer family. Must match the
	// configuration and weights being loaded.
	ModelType models.ModelType
	// ModelResource locates the model weights (e.g. model.onnx).
	ModelResource resources.Resource
	// ConfigResource locates the model configuration (config.json).
	ConfigResource resources.Resource
	// VocabResource locates the tokenizer vocabulary.
	VocabResource resources.Resource
	// MergesResource locates the BPE merges table; only relevant for
	// RoBERTa-style tokenizers whose merges ship separately. May be nil.
	MergesResource resources.Resource
	// LowerCase lower-cases all input upon tokenization (lower-cased models).
	LowerCase bool
	// StripAccents removes accents during normalization. Nil picks the
	// family default (WordPiece families strip when lower-casing).
	StripAccents *bool
	// AddPrefixSpace prepends a space before tokenization; needed for some
	// RoBERTa checkpoints. Nil means false.
	AddPrefixSpace *bool
	// Device places the model's computation. Defaults to the best
	// available accelerator.
	Device backends.Device
	// Logger for construction and lifecycle logging (nil = no logging).
	Logger *zap.Logger
}

// NewSequenceClassificationConfig builds a configuration of the supplied
// family with the device defaulted to CUDA when available, else CPU.
func NewSequenceClassificationConfig(
	modelType models.ModelType,
	modelResource, configResource, vocabResource resources.Resource,
	mergesResource resources.Resource,
	lowerCase bool,
	stripAccents, addPrefixSpace *bool,
) SequenceClassificationConfig {
	return SequenceClassificationConfig{
		ModelType:      modelType,
		ModelResource:  modelResource,
		ConfigResource: configResource,
		VocabResource:  vocabResource,
		MergesResource: mergesResource,
		LowerCase:      lowerCase,
		StripAccents:   stripAccents,
		AddPrefixSpace: addPrefixSpace,
		Device:         backends.CudaIfAvailable(),
	}
}

// sst2Repo hosts the default English binary sentiment checkpoint.
const sst2Repo = "distilbert-base-uncased-finetuned-sst-2-english"

// DefaultSequenceClassificationConfig returns the SST-2 sentiment analysis
// configuration (DistilBERT, English, POSITIVE/NEGATIVE).
func DefaultSequenceClassificationConfig() SequenceClassificationConfig {
	return SequenceClassificationConfig{
		ModelType:      models.DistilBert,
		ModelResource:  resources.FromPretrained(sst2Repo, "model.onnx"),
		ConfigResource: resources.FromPretrained(sst2Repo, "config.json"),
		VocabResource:  resources.FromPretrained(sst2Repo, "tokenizer.json"),
		LowerCase:      true,
		Device:         backends.CudaIfAvailable(),
	}
}

// CacheModelsIn sets the download cache root on every remote resource of
// the configuration. Local resources are unaffected.
func (c *SequenceClassificationConfig) CacheModelsIn(dir string) {
	for _, res := range []resources.Resource{
		c.ModelResource, c.ConfigResource, c.VocabResource, c.MergesResource,
	} {
		if remote, ok := res.(*resources.RemoteResource); ok {
			remote.CacheDir = dir
		}
	}
}

// classifier is the model surface the pipeline drives. Satisfied by
// models.SequenceClassificationOption.
type classifier interface {
	ForwardT(inputs *models.ForwardInputs, train bool) ([][]float32, error)
	Close() error
}

// SequenceClassificationModel classifies texts into the labels of a loaded
// checkpoint. Immutable and ready after construction; all fallible work
// happens in NewSequenceClassificationModel.
type SequenceClassificationModel struct {
	tokenizer    *tokenizers.Option
	classifier   classifier
	labelMapping map[int64]string
	store        *backends.ParameterStore
	logger       *zap.Logger
}

// NewSequenceClassificationModel resolves the configured resources, builds
// the tokenizer and model variant, and loads the weights. Any intermediate
// failure aborts construction with the first encountered error; no partial
// model is ever returned.
func NewSequenceClassificationModel(config SequenceClassificationConfig) (*SequenceClassificationModel, error) {
	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	configPath, err := config.ConfigResource.LocalPath()
	if err != nil {
		return nil, fmt.Errorf("resolving config resource: %w", err)
	}
	vocabPath, err := config.VocabResource.LocalPath()
	if err != nil {
		return nil, fmt.Errorf("resolving vocab resource: %w", err)
	}
	weightsPath, err := config.ModelResource.LocalPath()
	if err != nil {
		return nil, fmt.Errorf("resolving model resource: %w", err)
	}
	mergesPath := ""
	if config.MergesResource != nil {
		mergesPath, err = config.MergesResource.LocalPath()
		if err != nil {
			return nil, fmt.Errorf("resolving merges resource: %w", err)
		}
	}

	device := config.Device
	if device == "" {
		device = backends.CudaIfAvailable()
	}

	tokenizer, err := tokenizers.NewOption(
		config.ModelType, vocabPath, mergesPath,
		config.LowerCase, config.StripAccents, config.AddPrefixSpace,
	)
	if err != nil {
		return nil, err
	}

	store, err := backends.NewParameterStore(device)
	if err != nil {
		return nil, err
	}

	modelConfig, err := models.LoadConfigOption(config.ModelType, configPath)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	classifier, err := models.NewSequenceClassificationOption(config.ModelType, store, modelConfig)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	if err := classifier.LoadWeights(weightsPath); err != nil {
		_ = store.Close()
		return nil, err
	}

	labelMapping := modelConfig.LabelMapping()

	logger.Info("Loaded sequence classification model",
		zap.String("modelType", config.ModelType.String()),
		zap.String("device", string(device)),
		zap.Int("numLabels", len(labelMapping)))

	return &SequenceClassificationModel{
		tokenizer:    tokenizer,
		classifier:   classifier,
		labelMapping: labelMapping,
		store:        store,
		logger:       logger,
	}, nil
}

// prepareForModel tokenizes the input texts and stacks them into one padded
// batch. Padding is batch-relative: every row is right-padded with the
// tokenizer's pad id up to the longest sequence the batch produced, capped
// at MaxSequenceLength. A tokenizer without a pad id is an invariant
// violation.
func (m *SequenceClassificationModel) prepareForModel(input []string) (ids, mask [][]int64) {
	tokenized := m.tokenizer.EncodeList(input, MaxSequenceLength, tokenizers.TruncateLongestFirst)

	maxLen := 0
	for _, row := range tokenized {
		if len(row) > maxLen {
			maxLen = len(row)
		}
	}

	padID, err := m.tokenizer.PadID()
	if err != nil {
		panic("the tokenizer used for sequence classification should define a pad id: " + err.Error())
	}

	ids = make([][]int64, len(tokenized))
	mask = make([][]int64, len(tokenized))
	for i, row := range tokenized {
		padded := make([]int64, maxLen)
		rowMask := make([]int64, maxLen)
		copy(padded, row)
		for j := len(row); j < maxLen; j++ {
			padded[j] = padID
		}
		for j := range row {
			rowMask[j] = 1
		}
		ids[i] = padded
		mask[i] = rowMask
	}
	return ids, mask
}

// Predict classifies each input text into its highest-probability label.
// Exactly one Label is returned per input, in input order, with Sentence set
// to the input's zero-based position. Predict has no recoverable-error path:
// once the model is constructed, failures here are invariant violations.
func (m *SequenceClassificationModel) Predict(input []string) []Label {
	if len(input) == 0 {
		return []Label{}
	}

	ids, mask := m.prepareForModel(input)
	logits, err := m.classifier.ForwardT(&models.ForwardInputs{
		InputIDs:      ids,
		AttentionMask: mask,
	}, false)
	if err != nil {
		panic("sequence classification forward pass failed: " + err.Error())
	}

	probs := applySoftmax(logits)

	labels := make([]Label, len(probs))
	for sentenceIdx, row := range probs {
		classIdx := argmax(row)
		text, ok := m.labelMapping[int64(classIdx)]
		if !ok {
			panic(fmt.Sprintf("no label mapping entry for class %d", classIdx))
		}
		labels[sentenceIdx] = Label{
			Text:     text,
			Score:    float64(row[classIdx]),
			ID:       int64(classIdx),
			Sentence: sentenceIdx,
		}
	}
	return labels
}

// PredictMultiLabel classifies each input text into every label whose
// sigmoid score reaches the threshold. One list is returned per input in
// input order; an input with no qualifying labels yields an empty list at
// its position. Scores are raw sigmoid outputs, not renormalized.
func (m *SequenceClassificationModel) PredictMultiLabel(input []string, threshold float64) ([][]Label, error) {
	if len(input) == 0 {
		return [][]Label{}, nil
	}

	ids, mask := m.prepareForModel(input)
	logits, err := m.classifier.ForwardT(&models.ForwardInputs{
		InputIDs:      ids,
		AttentionMask: mask,
	}, false)
	if err != nil {
		return nil, fmt.Errorf("sequence classification forward pass: %w", err)
	}

	probs := applySigmoid(logits)
	return decodeMultiLabel(probs, m.labelMapping, threshold)
}

// Close releases the model's execution resources and parameter store.
func (m *SequenceClassificationModel) Close() error {
	if err := m.classifier.Close(); err != nil {
		return err
	}
	return m.store.Close()
}

// decodeMultiLabel groups qualifying (sentence, class) scores into
// per-sentence label lists, positionally indexed by sentence.
func decodeMultiLabel(probs [][]float32, mapping map[int64]string, threshold float64) ([][]Label, error) {
	labels := make([][]Label, len(probs))
	for sentenceIdx, row := range probs {
		sentenceLabels := []Label{}
		for classIdx, score := range row {
			if float64(score) < threshold {
				continue
			}
			text, ok := mapping[int64(classIdx)]
			if !ok {
				return nil, fmt.Errorf("no label mapping entry for class %d", classIdx)
			}
			sentenceLabels = append(sentenceLabels, Label{
				Text:     text,
				Score:    float64(score),
				ID:       int64(classIdx),
				Sentence: sentenceIdx,
			})
		}
		labels[sentenceIdx] = sentenceLabels
	}
	return labels, nil
}

// argmax returns the index of the largest value; ties keep the first.
func argmax(row []float32) int {
	best := 0
	for i, v := range row {
		if v > row[best] {
			best = i
		}
	}
	return best
}

// applySoftmax converts each logits row to probabilities in place using the
// SIMD-accelerated kernel.
func applySoftmax(logits [][]float32) [][]float32 {
	for _, row := range logits {
		if len(row) == 0 {
			continue
		}
		nn.SoftmaxInPlace(row)
	}
	return logits
}

// applySigmoid converts each logits row to independent per-class
// probabilities in place.
func applySigmoid(logits [][]float32) [][]float32 {
	for _, row := range logits {
		if len(row) == 0 {
			continue
		}
		algo.SigmoidTransform(row, row)
	}
	return logits
}
