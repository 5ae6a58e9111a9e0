// Copyright 2025 Weaver Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
package cmd

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/weaverml/weaver/pkg/weaver/lib/backends"
	"github.com/weaverml/weaver/pkg/weaver/lib/models"
	"github.com/weaverml/weaver/pkg/weaver/lib/pipelines"
	"github.com/weaverml/weaver/pkg/weaver/lib/resources"
)

var (
	modelDir   string
	modelType  string
	vocabFile  string
	multiLabel bool
	threshold  float64
	device     string
	lowerCase  bool
)

var classifyCmd = &cobra.Command{
	Use:   "classify [texts...]",
	Short: "Classify texts with a sequence classification model",
	Long: `Classify texts into the labels of a sequence classification
checkpoint. Texts come from the arguments, or from stdin one per line when
no arguments are given. Results are printed as JSON, one per line.

Without --model-dir the default English SST-2 sentiment model is downloaded
and cached under the models directory.`,
	RunE: runClassify,
}

func init() {
	rootCmd.AddCommand(classifyCmd)

	classifyCmd.Flags().StringVar(&modelDir, "model-dir", "", "local model directory (config.json, tokenizer vocabulary and ONNX weights)")
	classifyCmd.Flags().StringVar(&modelType, "model-type", "distilbert", "model family (bert, distilbert, roberta, xlm-roberta, albert, bart)")
	classifyCmd.Flags().StringVar(&vocabFile, "vocab", "tokenizer.json", "vocabulary filename inside the model directory")
	classifyCmd.Flags().BoolVar(&multiLabel, "multi-label", false, "independent per-label sigmoid scores instead of a single softmax label")
	classifyCmd.Flags().Float64Var(&threshold, "threshold", 0.5, "minimum score for a label to be reported in multi-label mode")
	classifyCmd.Flags().StringVar(&device, "device", "", "computation device (cpu, cuda); auto-detects when empty")
	classifyCmd.Flags().BoolVar(&lowerCase, "lowercase", true, "lower-case input before tokenization")
}

func runClassify(cmd *cobra.Command, args []string) error {
	logger, err := newLogger()
	if err != nil {
		return err
	}
	defer func() {
		_ = logger.Sync()
	}()

	texts := args
	if len(texts) == 0 {
		texts, err = readLines(os.Stdin)
		if err != nil {
			return fmt.Errorf("reading texts from stdin: %w", err)
		}
	}
	if len(texts) == 0 {
		return fmt.Errorf("no input texts")
	}

	config, err := buildPipelineConfig()
	if err != nil {
		return err
	}
	config.Logger = logger

	model, err := pipelines.NewSequenceClassificationModel(config)
	if err != nil {
		return fmt.Errorf("loading model: %w", err)
	}
	defer func() {
		if err := model.Close(); err != nil {
			logger.Warn("Failed to close model", zap.Error(err))
		}
	}()

	encoder := json.NewEncoder(os.Stdout)
	if multiLabel {
		results, err := model.PredictMultiLabel(texts, threshold)
		if err != nil {
			return err
		}
		for _, labels := range results {
			if err := encoder.Encode(labels); err != nil {
				return err
			}
		}
		return nil
	}

	for _, label := range model.Predict(texts) {
		if err := encoder.Encode(label); err != nil {
			return err
		}
	}
	return nil
}

// buildPipelineConfig assembles the pipeline configuration from the classify
// flags. An empty --model-dir selects the default SST-2 sentiment model.
func buildPipelineConfig() (pipelines.SequenceClassificationConfig, error) {
	var config pipelines.SequenceClassificationConfig

	if modelDir == "" {
		config = pipelines.DefaultSequenceClassificationConfig()
		config.CacheModelsIn(viper.GetString("models_dir"))
	} else {
		parsed, err := models.ParseModelType(modelType)
		if err != nil {
			return config, err
		}
		config = pipelines.SequenceClassificationConfig{
			ModelType:      parsed,
			ModelResource:  resources.NewLocalResource(filepath.Join(modelDir, "model.onnx")),
			ConfigResource: resources.NewLocalResource(filepath.Join(modelDir, "config.json")),
			VocabResource:  resources.NewLocalResource(filepath.Join(modelDir, vocabFile)),
			LowerCase:      lowerCase,
			Device:         backends.CudaIfAvailable(),
		}
		mergesPath := filepath.Join(modelDir, "merges.txt")
		if _, err := os.Stat(mergesPath); err == nil {
			config.MergesResource = resources.NewLocalResource(mergesPath)
		}
	}

	if device != "" {
		parsed, err := backends.ParseDevice(device)
		if err != nil {
			return config, err
		}
		config.Device = parsed
	}
	return config, nil
}

func readLines(f *os.File) ([]string, error) {
	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if line := scanner.Text(); line != "" {
			lines = append(lines, line)
		}
	}
	return lines, scanner.Err()
}
