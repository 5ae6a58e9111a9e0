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

package pipelines

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/weaverml/weaver/pkg/weaver/lib/models"
	"github.com/weaverml/weaver/pkg/weaver/lib/resources"
	"github.com/weaverml/weaver/pkg/weaver/lib/tokenizers"
)

const testPadID = 99

// wordTokenizer maps each whitespace-separated word to an id derived from
// its length. Deterministic and stateless, which is all these tests need.
type wordTokenizer struct {
	noPad bool
}

func (w *wordTokenizer) Encode(text string) []int {
	words := strings.Fields(text)
	ids := make([]int, len(words))
	for i, word := range words {
		ids[i] = len(word)
	}
	return ids
}

func (w *wordTokenizer) Decode(ids []int) string { return "" }

func (w *wordTokenizer) SpecialTokenID(token tokenizers.SpecialToken) (int, error) {
	if token == tokenizers.TokPad && !w.noPad {
		return testPadID, nil
	}
	return 0, fmt.Errorf("no id for special token %d", int(token))
}

// fakeClassifier returns canned logits and records what it was fed.
type fakeClassifier struct {
	logits     [][]float32
	err        error
	lastInputs *models.ForwardInputs
	lastTrain  bool
	calls      int
}

func (f *fakeClassifier) ForwardT(inputs *models.ForwardInputs, train bool) ([][]float32, error) {
	f.calls++
	f.lastInputs = inputs
	f.lastTrain = train
	if f.err != nil {
		return nil, f.err
	}
	return f.logits, nil
}

func (f *fakeClassifier) Close() error { return nil }

func newTestModel(t *testing.T, fake *fakeClassifier, mapping map[int64]string) *SequenceClassificationModel {
	t.Helper()
	tok := tokenizers.NewFromTokenizer(models.Bert, &wordTokenizer{}, false, nil, nil)
	return &SequenceClassificationModel{
		tokenizer:    tok,
		classifier:   fake,
		labelMapping: mapping,
	}
}

func TestPredictReturnsArgmaxLabelPerInput(t *testing.T) {
	fake := &fakeClassifier{logits: [][]float32{
		{1, 3},
		{4, 0},
	}}
	model := newTestModel(t, fake, map[int64]string{0: "NEGATIVE", 1: "POSITIVE"})

	labels := model.Predict([]string{"great movie", "terrible plot"})
	require.Len(t, labels, 2)

	require.Equal(t, "POSITIVE", labels[0].Text)
	require.Equal(t, int64(1), labels[0].ID)
	require.Equal(t, 0, labels[0].Sentence)

	require.Equal(t, "NEGATIVE", labels[1].Text)
	require.Equal(t, int64(0), labels[1].ID)
	require.Equal(t, 1, labels[1].Sentence)

	// Softmax scores of the winning class exceed those of the loser and
	// stay inside (0, 1).
	for _, label := range labels {
		require.Greater(t, label.Score, 0.5)
		require.Less(t, label.Score, 1.0)
	}

	require.False(t, fake.lastTrain)
}

func TestPredictEmptyInput(t *testing.T) {
	fake := &fakeClassifier{}
	model := newTestModel(t, fake, map[int64]string{0: "NEUTRAL"})

	labels := model.Predict([]string{})
	require.NotNil(t, labels)
	require.Empty(t, labels)
	require.Zero(t, fake.calls)
}

func TestPredictPanicsOnForwardFailure(t *testing.T) {
	fake := &fakeClassifier{err: errors.New("graph execution failed")}
	model := newTestModel(t, fake, map[int64]string{0: "NEGATIVE"})

	require.Panics(t, func() {
		model.Predict([]string{"some text"})
	})
}

func TestPredictPanicsOnMissingLabelMapping(t *testing.T) {
	fake := &fakeClassifier{logits: [][]float32{{0, 5}}}
	// Class 1 wins but has no mapping entry.
	model := newTestModel(t, fake, map[int64]string{0: "NEGATIVE"})

	require.Panics(t, func() {
		model.Predict([]string{"some text"})
	})
}

func TestPredictPanicsWithoutPadID(t *testing.T) {
	tok := tokenizers.NewFromTokenizer(models.Bert, &wordTokenizer{noPad: true}, false, nil, nil)
	model := &SequenceClassificationModel{
		tokenizer:    tok,
		classifier:   &fakeClassifier{logits: [][]float32{{1}}},
		labelMapping: map[int64]string{0: "NEUTRAL"},
	}

	require.Panics(t, func() {
		model.Predict([]string{"some text"})
	})
}

func TestPrepareForModelPadsToBatchMax(t *testing.T) {
	fake := &fakeClassifier{}
	model := newTestModel(t, fake, nil)

	ids, mask := model.prepareForModel([]string{"one two three four", "one", "one two"})
	require.Len(t, ids, 3)
	require.Len(t, mask, 3)

	// All rows share the width of the longest sequence.
	for i := range ids {
		require.Len(t, ids[i], 4)
		require.Len(t, mask[i], 4)
	}

	// Shorter rows are right-padded with the pad id, masked out.
	require.Equal(t, []int64{3, 3, 5, 4}, ids[0])
	require.Equal(t, []int64{1, 1, 1, 1}, mask[0])
	require.Equal(t, []int64{3, testPadID, testPadID, testPadID}, ids[1])
	require.Equal(t, []int64{1, 0, 0, 0}, mask[1])
	require.Equal(t, []int64{3, 3, testPadID, testPadID}, ids[2])
	require.Equal(t, []int64{1, 1, 0, 0}, mask[2])
}

func TestPrepareForModelTruncatesLongInputs(t *testing.T) {
	fake := &fakeClassifier{}
	model := newTestModel(t, fake, nil)

	long := strings.Repeat("word ", MaxSequenceLength+40)
	ids, mask := model.prepareForModel([]string{long})
	require.Len(t, ids[0], MaxSequenceLength)
	require.Len(t, mask[0], MaxSequenceLength)
}

func TestPredictMultiLabelThresholdAndGrouping(t *testing.T) {
	// sigmoid(2) ~ 0.88, sigmoid(0) = 0.5, sigmoid(-2) ~ 0.12.
	fake := &fakeClassifier{logits: [][]float32{
		{2, -2, 2},
		{-2, -2, -2},
		{-2, 0, -2},
	}}
	mapping := map[int64]string{0: "sports", 1: "politics", 2: "science"}
	model := newTestModel(t, fake, mapping)

	labels, err := model.PredictMultiLabel([]string{"a", "b", "c"}, 0.5)
	require.NoError(t, err)
	require.Len(t, labels, 3)

	require.Len(t, labels[0], 2)
	require.Equal(t, "sports", labels[0][0].Text)
	require.Equal(t, int64(0), labels[0][0].ID)
	require.Equal(t, 0, labels[0][0].Sentence)
	require.Equal(t, "science", labels[0][1].Text)
	require.Equal(t, int64(2), labels[0][1].ID)

	// An input with no qualifying labels still occupies its position with
	// an empty list.
	require.NotNil(t, labels[1])
	require.Empty(t, labels[1])

	// The threshold comparison is inclusive: sigmoid(0) == 0.5 qualifies.
	require.Len(t, labels[2], 1)
	require.Equal(t, "politics", labels[2][0].Text)
	require.Equal(t, 2, labels[2][0].Sentence)
}

func TestPredictMultiLabelHighThreshold(t *testing.T) {
	fake := &fakeClassifier{logits: [][]float32{
		{5, 5},
		{5, 5},
	}}
	model := newTestModel(t, fake, map[int64]string{0: "a", 1: "b"})

	labels, err := model.PredictMultiLabel([]string{"x", "y"}, 1.1)
	require.NoError(t, err)
	require.Len(t, labels, 2)
	for _, sentenceLabels := range labels {
		require.NotNil(t, sentenceLabels)
		require.Empty(t, sentenceLabels)
	}
}

func TestPredictMultiLabelForwardFailure(t *testing.T) {
	fake := &fakeClassifier{err: errors.New("graph execution failed")}
	model := newTestModel(t, fake, map[int64]string{0: "a"})

	_, err := model.PredictMultiLabel([]string{"x"}, 0.5)
	require.Error(t, err)
}

func TestPredictMultiLabelMissingMapping(t *testing.T) {
	fake := &fakeClassifier{logits: [][]float32{{5, 5}}}
	model := newTestModel(t, fake, map[int64]string{0: "a"})

	_, err := model.PredictMultiLabel([]string{"x"}, 0.5)
	require.Error(t, err)
	require.Contains(t, err.Error(), "label mapping")
}

func TestPredictMultiLabelEmptyInput(t *testing.T) {
	fake := &fakeClassifier{}
	model := newTestModel(t, fake, map[int64]string{0: "a"})

	labels, err := model.PredictMultiLabel(nil, 0.5)
	require.NoError(t, err)
	require.NotNil(t, labels)
	require.Empty(t, labels)
	require.Zero(t, fake.calls)
}

func TestDefaultSequenceClassificationConfig(t *testing.T) {
	config := DefaultSequenceClassificationConfig()
	require.Equal(t, models.DistilBert, config.ModelType)
	require.NotNil(t, config.ModelResource)
	require.NotNil(t, config.ConfigResource)
	require.NotNil(t, config.VocabResource)
	require.Nil(t, config.MergesResource)
	require.True(t, config.LowerCase)
	require.NotEmpty(t, config.Device)
}

func TestCacheModelsInSetsRemoteCacheDir(t *testing.T) {
	config := DefaultSequenceClassificationConfig()
	config.CacheModelsIn("/opt/weaver-models")

	for _, res := range []resources.Resource{
		config.ModelResource, config.ConfigResource, config.VocabResource,
	} {
		remote, ok := res.(*resources.RemoteResource)
		require.True(t, ok)
		require.Equal(t, "/opt/weaver-models", remote.CacheDir)
	}
}

func TestCacheModelsInIgnoresLocalResources(t *testing.T) {
	local := resources.NewLocalResource("/models/model.onnx")
	config := SequenceClassificationConfig{
		ModelResource:  local,
		ConfigResource: resources.FromPretrained("org/model", "config.json"),
	}
	config.CacheModelsIn("/opt/weaver-models")

	require.Equal(t, "/models/model.onnx", local.Path)
	remote := config.ConfigResource.(*resources.RemoteResource)
	require.Equal(t, "/opt/weaver-models", remote.CacheDir)
}

func TestNewSequenceClassificationConfigDefaultsDevice(t *testing.T) {
	config := NewSequenceClassificationConfig(
		models.Roberta, nil, nil, nil, nil, false, nil, nil,
	)
	require.Equal(t, models.Roberta, config.ModelType)
	require.NotEmpty(t, config.Device)
}

func TestDecodeMultiLabelScoresAreRawSigmoid(t *testing.T) {
	probs := [][]float32{{0.9, 0.8}}
	labels, err := decodeMultiLabel(probs, map[int64]string{0: "a", 1: "b"}, 0.5)
	require.NoError(t, err)
	require.Len(t, labels[0], 2)
	require.InDelta(t, 0.9, labels[0][0].Score, 1e-6)
	require.InDelta(t, 0.8, labels[0][1].Score, 1e-6)
}
