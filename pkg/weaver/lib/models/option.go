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

// Package models holds the typed model configurations and the closed set of
// sequence classification model variants, one per supported transformer
// family, behind a uniform forward-pass interface.
package models

import (
	"fmt"

	"github.com/weaverml/weaver/pkg/weaver/lib/backends"
)

// variant is the interface every concrete family classifier satisfies.
type variant interface {
	forwardT(inputs *ForwardInputs, train bool) ([][]float32, error)
	LoadWeights(path string) error
	close() error
}

// SequenceClassificationOption holds exactly one concrete classifier for one
// of the supported model families. Selection is fixed at construction;
// switching families requires constructing a new option.
type SequenceClassificationOption struct {
	kind    ModelType
	variant variant
}

// NewSequenceClassificationOption constructs the classifier variant for the
// requested family, bound to the given parameter store. The configuration's
// family must match modelType; a mismatch, like a family without a
// classification head (Electra, Marian, T5), is a construction-time error —
// never a runtime classification error.
func NewSequenceClassificationOption(
	modelType ModelType,
	store *backends.ParameterStore,
	config *ConfigOption,
) (*SequenceClassificationOption, error) {
	switch modelType {
	case Bert:
		if config.kind != Bert {
			return nil, fmt.Errorf("a BertConfig is required for Bert, got a %s configuration", config.kind)
		}
		return &SequenceClassificationOption{
			kind:    Bert,
			variant: NewBertForSequenceClassification(store, config.bert),
		}, nil
	case DistilBert:
		if config.kind != DistilBert {
			return nil, fmt.Errorf("a DistilBertConfig is required for DistilBert, got a %s configuration", config.kind)
		}
		return &SequenceClassificationOption{
			kind:    DistilBert,
			variant: NewDistilBertModelClassifier(store, config.distilBert),
		}, nil
	case Roberta:
		if config.kind != Roberta {
			return nil, fmt.Errorf("a BertConfig is required for Roberta, got a %s configuration", config.kind)
		}
		return &SequenceClassificationOption{
			kind:    Roberta,
			variant: NewRobertaForSequenceClassification(store, config.bert),
		}, nil
	case XLMRoberta:
		if config.kind != XLMRoberta {
			return nil, fmt.Errorf("a BertConfig is required for XLMRoberta, got a %s configuration", config.kind)
		}
		return &SequenceClassificationOption{
			kind:    XLMRoberta,
			variant: NewRobertaForSequenceClassification(store, config.bert),
		}, nil
	case Albert:
		if config.kind != Albert {
			return nil, fmt.Errorf("an AlbertConfig is required for Albert, got a %s configuration", config.kind)
		}
		return &SequenceClassificationOption{
			kind:    Albert,
			variant: NewAlbertForSequenceClassification(store, config.albert),
		}, nil
	case Bart:
		if config.kind != Bart {
			return nil, fmt.Errorf("a BartConfig is required for Bart, got a %s configuration", config.kind)
		}
		return &SequenceClassificationOption{
			kind:    Bart,
			variant: NewBartForSequenceClassification(store, config.bart),
		}, nil
	case Electra:
		return nil, fmt.Errorf("sequence classification not implemented for Electra")
	case Marian:
		return nil, fmt.Errorf("sequence classification not implemented for Marian")
	case T5:
		return nil, fmt.Errorf("sequence classification not implemented for T5")
	default:
		return nil, fmt.Errorf("unknown model type %q", modelType)
	}
}

// ModelType returns the family tag of the live variant. XLM-RoBERTa reports
// Roberta, since the two share an implementation.
func (o *SequenceClassificationOption) ModelType() ModelType {
	switch o.kind {
	case XLMRoberta:
		return Roberta
	default:
		return o.kind
	}
}

// LoadWeights loads the variant's weight tensors from the given path into
// the attached parameter store.
func (o *SequenceClassificationOption) LoadWeights(path string) error {
	return o.variant.LoadWeights(path)
}

// ForwardT runs one forward pass through the live variant and returns logits
// with shape [batch, numClasses]. Gradient tracking is never enabled; train
// must be false.
func (o *SequenceClassificationOption) ForwardT(inputs *ForwardInputs, train bool) ([][]float32, error) {
	return o.variant.forwardT(inputs, train)
}

// Close releases execution resources held by the live variant.
func (o *SequenceClassificationOption) Close() error {
	return o.variant.close()
}
