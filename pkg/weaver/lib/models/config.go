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
	"encoding/json"
	"fmt"
	"os"
	"strconv"
)

// BertConfig mirrors the HuggingFace BERT configuration schema. RoBERTa and
// XLM-RoBERTa checkpoints use the same schema.
type BertConfig struct {
	VocabSize         int               `json:"vocab_size"`
	HiddenSize        int               `json:"hidden_size"`
	NumHiddenLayers   int               `json:"num_hidden_layers"`
	NumAttentionHeads int               `json:"num_attention_heads"`
	IntermediateSize  int               `json:"intermediate_size"`
	TypeVocabSize     int               `json:"type_vocab_size"`
	MaxPositionEmbeds int               `json:"max_position_embeddings"`
	ID2Label          map[string]string `json:"id2label"`
	Label2ID          map[string]int64  `json:"label2id"`
}

// DistilBertConfig mirrors the HuggingFace DistilBERT configuration schema.
type DistilBertConfig struct {
	VocabSize int               `json:"vocab_size"`
	Dim       int               `json:"dim"`
	NLayers   int               `json:"n_layers"`
	NHeads    int               `json:"n_heads"`
	HiddenDim int               `json:"hidden_dim"`
	ID2Label  map[string]string `json:"id2label"`
	Label2ID  map[string]int64  `json:"label2id"`
}

// AlbertConfig mirrors the HuggingFace ALBERT configuration schema.
type AlbertConfig struct {
	VocabSize       int               `json:"vocab_size"`
	EmbeddingSize   int               `json:"embedding_size"`
	HiddenSize      int               `json:"hidden_size"`
	NumHiddenLayers int               `json:"num_hidden_layers"`
	InnerGroupNum   int               `json:"inner_group_num"`
	ID2Label        map[string]string `json:"id2label"`
	Label2ID        map[string]int64  `json:"label2id"`
}

// BartConfig mirrors the HuggingFace BART configuration schema.
type BartConfig struct {
	VocabSize     int               `json:"vocab_size"`
	DModel        int               `json:"d_model"`
	EncoderLayers int               `json:"encoder_layers"`
	DecoderLayers int               `json:"decoder_layers"`
	ID2Label      map[string]string `json:"id2label"`
	Label2ID      map[string]int64  `json:"label2id"`
}

// genericConfig is the minimal schema parsed for families without a
// classification head (Electra, Marian, T5); enough to carry the label
// mapping so the mismatch error at model construction is the one reported.
type genericConfig struct {
	ID2Label map[string]string `json:"id2label"`
}

// ConfigOption holds the loaded model configuration for exactly one family.
// The variant set is closed; the live variant must match the model type the
// classifier is constructed with.
type ConfigOption struct {
	kind ModelType

	bert       *BertConfig
	distilBert *DistilBertConfig
	albert     *AlbertConfig
	bart       *BartConfig
	generic    *genericConfig
}

// LoadConfigOption parses a HuggingFace-style config.json into the typed
// variant for the given model family.
func LoadConfigOption(modelType ModelType, path string) (*ConfigOption, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading model config %s: %w", path, err)
	}

	opt := &ConfigOption{kind: modelType}
	var target any
	switch modelType {
	case Bert, Roberta, XLMRoberta:
		opt.bert = &BertConfig{}
		target = opt.bert
	case DistilBert:
		opt.distilBert = &DistilBertConfig{}
		target = opt.distilBert
	case Albert:
		opt.albert = &AlbertConfig{}
		target = opt.albert
	case Bart:
		opt.bart = &BartConfig{}
		target = opt.bart
	case Electra, Marian, T5:
		opt.generic = &genericConfig{}
		target = opt.generic
	default:
		return nil, fmt.Errorf("unknown model type %q", modelType)
	}

	if err := json.Unmarshal(data, target); err != nil {
		return nil, fmt.Errorf("parsing %s config: %w", modelType, err)
	}
	return opt, nil
}

// ModelType returns the family this configuration was loaded for.
func (c *ConfigOption) ModelType() ModelType {
	return c.kind
}

// LabelMapping returns the class id to display string association from the
// configuration's id2label table. The mapping must contain an entry for
// every class index the classifier head can produce.
func (c *ConfigOption) LabelMapping() map[int64]string {
	return parseID2Label(c.rawID2Label())
}

// NumLabels returns the classifier head's output dimensionality.
func (c *ConfigOption) NumLabels() int {
	return len(c.rawID2Label())
}

func (c *ConfigOption) rawID2Label() map[string]string {
	switch c.kind {
	case Bert, Roberta, XLMRoberta:
		return c.bert.ID2Label
	case DistilBert:
		return c.distilBert.ID2Label
	case Albert:
		return c.albert.ID2Label
	case Bart:
		return c.bart.ID2Label
	case Electra, Marian, T5:
		return c.generic.ID2Label
	default:
		return nil
	}
}

// parseID2Label converts HF's string-keyed id2label into integer class ids.
// Non-numeric keys are skipped; they never occur in valid configurations.
func parseID2Label(raw map[string]string) map[int64]string {
	mapping := make(map[int64]string, len(raw))
	for key, label := range raw {
		id, err := strconv.ParseInt(key, 10, 64)
		if err != nil {
			continue
		}
		mapping[id] = label
	}
	return mapping
}
