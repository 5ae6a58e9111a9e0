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
	"fmt"

	"github.com/weaverml/weaver/pkg/weaver/lib/backends"
)

// encoderClassifier is the shared implementation behind the per-family
// classifier types: it owns the execution runner bound to the parameter
// store and maps ForwardInputs onto the graph's named feeds.
type encoderClassifier struct {
	store          *backends.ParameterStore
	family         ModelType
	numLabels      int
	withTokenTypes bool
	withPositions  bool
	run            runner
}

// LoadWeights loads the classifier graph and its weight tensors through the
// parameter store. Must be called exactly once before the first forward pass.
func (m *encoderClassifier) LoadWeights(path string) error {
	r, err := newRunner(m.store, path)
	if err != nil {
		return fmt.Errorf("loading %s classifier weights: %w", m.family, err)
	}
	m.run = r
	return nil
}

func (m *encoderClassifier) forwardT(inputs *ForwardInputs, train bool) ([][]float32, error) {
	if train {
		return nil, ErrTrainingUnsupported
	}
	if m.run == nil {
		return nil, fmt.Errorf("%s classifier weights not loaded", m.family)
	}

	logits, err := m.run.run(m.feeds(inputs))
	if err != nil {
		return nil, fmt.Errorf("%s forward pass: %w", m.family, err)
	}
	if err := checkLogits(logits, m.numLabels); err != nil {
		return nil, err
	}
	return logits, nil
}

// feeds maps the non-nil optional inputs onto the graph's input names,
// dropping inputs the family does not consume.
func (m *encoderClassifier) feeds(inputs *ForwardInputs) []feed {
	var feeds []feed
	if inputs == nil {
		return feeds
	}
	if inputs.InputIDs != nil {
		feeds = append(feeds, feed{name: "input_ids", ints: inputs.InputIDs})
	}
	if inputs.AttentionMask != nil {
		feeds = append(feeds, feed{name: "attention_mask", ints: inputs.AttentionMask})
	}
	if m.withTokenTypes && inputs.TokenTypeIDs != nil {
		feeds = append(feeds, feed{name: "token_type_ids", ints: inputs.TokenTypeIDs})
	}
	if m.withPositions && inputs.PositionIDs != nil {
		feeds = append(feeds, feed{name: "position_ids", ints: inputs.PositionIDs})
	}
	if inputs.InputEmbeds != nil {
		feeds = append(feeds, feed{name: "inputs_embeds", floats: inputs.InputEmbeds})
	}
	return feeds
}

func (m *encoderClassifier) close() error {
	if m.run != nil {
		return m.run.close()
	}
	return nil
}

// BertForSequenceClassification is a BERT encoder with a sequence
// classification head.
type BertForSequenceClassification struct {
	encoderClassifier
	Config *BertConfig
}

// NewBertForSequenceClassification creates the classifier bound to the given
// parameter store. Weights are loaded separately via LoadWeights.
func NewBertForSequenceClassification(store *backends.ParameterStore, config *BertConfig) *BertForSequenceClassification {
	return &BertForSequenceClassification{
		encoderClassifier: encoderClassifier{
			store:          store,
			family:         Bert,
			numLabels:      len(parseID2Label(config.ID2Label)),
			withTokenTypes: true,
			withPositions:  true,
		},
		Config: config,
	}
}

// DistilBertModelClassifier is a DistilBERT encoder with a sequence
// classification head. DistilBERT consumes no token-type or position inputs.
type DistilBertModelClassifier struct {
	encoderClassifier
	Config *DistilBertConfig
}

// NewDistilBertModelClassifier creates the classifier bound to the given
// parameter store.
func NewDistilBertModelClassifier(store *backends.ParameterStore, config *DistilBertConfig) *DistilBertModelClassifier {
	return &DistilBertModelClassifier{
		encoderClassifier: encoderClassifier{
			store:     store,
			family:    DistilBert,
			numLabels: len(parseID2Label(config.ID2Label)),
		},
		Config: config,
	}
}

// RobertaForSequenceClassification is a RoBERTa encoder with a sequence
// classification head. XLM-RoBERTa shares this implementation.
type RobertaForSequenceClassification struct {
	encoderClassifier
	Config *BertConfig
}

// NewRobertaForSequenceClassification creates the classifier bound to the
// given parameter store.
func NewRobertaForSequenceClassification(store *backends.ParameterStore, config *BertConfig) *RobertaForSequenceClassification {
	return &RobertaForSequenceClassification{
		encoderClassifier: encoderClassifier{
			store:          store,
			family:         Roberta,
			numLabels:      len(parseID2Label(config.ID2Label)),
			withTokenTypes: true,
			withPositions:  true,
		},
		Config: config,
	}
}

// AlbertForSequenceClassification is an ALBERT encoder with a sequence
// classification head.
type AlbertForSequenceClassification struct {
	encoderClassifier
	Config *AlbertConfig
}

// NewAlbertForSequenceClassification creates the classifier bound to the
// given parameter store.
func NewAlbertForSequenceClassification(store *backends.ParameterStore, config *AlbertConfig) *AlbertForSequenceClassification {
	return &AlbertForSequenceClassification{
		encoderClassifier: encoderClassifier{
			store:          store,
			family:         Albert,
			numLabels:      len(parseID2Label(config.ID2Label)),
			withTokenTypes: true,
			withPositions:  true,
		},
		Config: config,
	}
}

// BartForSequenceClassification is a BART encoder-decoder whose decoder
// output is reinterpreted as classification logits.
type BartForSequenceClassification struct {
	encoderClassifier
	Config *BartConfig
}

// NewBartForSequenceClassification creates the classifier bound to the given
// parameter store.
func NewBartForSequenceClassification(store *backends.ParameterStore, config *BartConfig) *BartForSequenceClassification {
	return &BartForSequenceClassification{
		encoderClassifier: encoderClassifier{
			store:     store,
			family:    Bart,
			numLabels: len(parseID2Label(config.ID2Label)),
		},
		Config: config,
	}
}

// forwardT for BART requires token ids: the decoder cannot be driven from
// embeddings or mask alone. Absence is an invariant violation, not a
// recoverable condition.
func (m *BartForSequenceClassification) forwardT(inputs *ForwardInputs, train bool) ([][]float32, error) {
	if inputs == nil || inputs.InputIDs == nil {
		panic("input_ids must be provided for BART models")
	}
	return m.encoderClassifier.forwardT(&ForwardInputs{
		InputIDs:      inputs.InputIDs,
		AttentionMask: inputs.AttentionMask,
	}, train)
}
