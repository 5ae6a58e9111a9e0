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
	"context"
	"fmt"
	"runtime"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/weaverml/weaver/pkg/weaver/lib/pipelines"
)

// Ensure PooledClassifier implements Classifier
var _ Classifier = (*PooledClassifier)(nil)

// sequenceModel is the per-instance pipeline surface the pool schedules
// over; satisfied by pipelines.SequenceClassificationModel.
type sequenceModel interface {
	Predict(input []string) []pipelines.Label
	PredictMultiLabel(input []string, threshold float64) ([][]pipelines.Label, error)
	Close() error
}

// PooledClassifierConfig holds configuration for creating a PooledClassifier.
type PooledClassifierConfig struct {
	// Pipeline describes the model each pooled instance loads.
	Pipeline pipelines.SequenceClassificationConfig

	// PoolSize determines how many concurrent requests can be processed (0 = auto-detect from CPU count)
	PoolSize int

	// Logger for logging (nil = no logging)
	Logger *zap.Logger
}

// PooledClassifier manages multiple SequenceClassificationModel instances for
// concurrent classification. Requests are admitted by a weighted semaphore
// and spread over the instances round-robin.
type PooledClassifier struct {
	models    []sequenceModel
	sem       *semaphore.Weighted
	nextModel atomic.Uint64
	logger    *zap.Logger
	poolSize  int
}

// NewPooledClassifier loads PoolSize independent copies of the configured
// model. A failure loading any copy closes the already-loaded ones and
// aborts.
func NewPooledClassifier(cfg PooledClassifierConfig) (*PooledClassifier, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	// Auto-detect pool size from CPU count if not specified
	poolSize := cfg.PoolSize
	if poolSize <= 0 {
		poolSize = runtime.NumCPU()
		if poolSize > 4 {
			poolSize = 4 // Cap at 4, each instance holds a full weight copy
		}
	}

	logger.Info("Initializing pooled sequence classifier",
		zap.String("modelType", cfg.Pipeline.ModelType.String()),
		zap.Int("poolSize", poolSize))

	models := make([]sequenceModel, poolSize)
	for i := 0; i < poolSize; i++ {
		pipelineConfig := cfg.Pipeline
		pipelineConfig.Logger = logger
		model, err := pipelines.NewSequenceClassificationModel(pipelineConfig)
		if err != nil {
			// Clean up already-created models
			for j := 0; j < i; j++ {
				if models[j] != nil {
					_ = models[j].Close()
				}
			}
			logger.Error("Failed to create classification model",
				zap.Int("index", i),
				zap.Error(err))
			return nil, fmt.Errorf("creating classification model %d: %w", i, err)
		}
		models[i] = model
		logger.Debug("Created classification model", zap.Int("index", i))
	}

	return &PooledClassifier{
		models:   models,
		sem:      semaphore.NewWeighted(int64(poolSize)),
		logger:   logger,
		poolSize: poolSize,
	}, nil
}

// Classify returns the single best label per input text.
// Thread-safe: uses semaphore to limit concurrent model access.
func (p *PooledClassifier) Classify(ctx context.Context, texts []string) ([]pipelines.Label, error) {
	if len(texts) == 0 {
		return []pipelines.Label{}, nil
	}

	// Acquire semaphore slot (blocks if all models busy)
	if err := p.sem.Acquire(ctx, 1); err != nil {
		classificationErrors.WithLabelValues(modeSingleLabel).Inc()
		return nil, fmt.Errorf("acquiring model slot: %w", err)
	}
	defer p.sem.Release(1)

	// Round-robin model selection
	idx := int(p.nextModel.Add(1) % uint64(p.poolSize))

	p.logger.Debug("Classifying texts",
		zap.Int("modelIndex", idx),
		zap.Int("num_texts", len(texts)))

	start := time.Now()
	labels := p.models[idx].Predict(texts)
	classificationDuration.WithLabelValues(modeSingleLabel).Observe(time.Since(start).Seconds())
	classificationsTotal.WithLabelValues(modeSingleLabel).Inc()
	classificationTexts.WithLabelValues(modeSingleLabel).Add(float64(len(texts)))

	return labels, nil
}

// ClassifyMultiLabel returns, per input text, every label whose sigmoid
// score reaches the threshold.
// Thread-safe: uses semaphore to limit concurrent model access.
func (p *PooledClassifier) ClassifyMultiLabel(ctx context.Context, texts []string, threshold float64) ([][]pipelines.Label, error) {
	if len(texts) == 0 {
		return [][]pipelines.Label{}, nil
	}

	if err := p.sem.Acquire(ctx, 1); err != nil {
		classificationErrors.WithLabelValues(modeMultiLabel).Inc()
		return nil, fmt.Errorf("acquiring model slot: %w", err)
	}
	defer p.sem.Release(1)

	idx := int(p.nextModel.Add(1) % uint64(p.poolSize))

	p.logger.Debug("Classifying texts multi-label",
		zap.Int("modelIndex", idx),
		zap.Int("num_texts", len(texts)),
		zap.Float64("threshold", threshold))

	start := time.Now()
	labels, err := p.models[idx].PredictMultiLabel(texts, threshold)
	if err != nil {
		classificationErrors.WithLabelValues(modeMultiLabel).Inc()
		p.logger.Error("Multi-label classification failed",
			zap.Int("modelIndex", idx),
			zap.Error(err))
		return nil, fmt.Errorf("classifying texts: %w", err)
	}
	classificationDuration.WithLabelValues(modeMultiLabel).Observe(time.Since(start).Seconds())
	classificationsTotal.WithLabelValues(modeMultiLabel).Inc()
	classificationTexts.WithLabelValues(modeMultiLabel).Add(float64(len(texts)))

	return labels, nil
}

// PoolSize returns the number of model instances backing this classifier.
func (p *PooledClassifier) PoolSize() int {
	return p.poolSize
}

// Close releases all pooled model instances.
func (p *PooledClassifier) Close() error {
	var lastErr error
	for i, model := range p.models {
		if model != nil {
			if err := model.Close(); err != nil {
				p.logger.Warn("Failed to close classification model",
					zap.Int("index", i),
					zap.Error(err))
				lastErr = err
			}
		}
	}
	p.models = nil
	return lastErr
}
