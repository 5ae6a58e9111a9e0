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
	"os"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/weaverml/weaver/pkg/weaver/lib/backends"
	"github.com/weaverml/weaver/pkg/weaver/lib/resources"
)

// Movie reviews with a clear sentiment polarity.
var sentimentReviews = []string{
	"Probably my all-time favorite movie, a story of selflessness, sacrifice and dedication to a noble cause, but it's not preachy or boring.",
	"This film tried to be too many things all at once: stinging political satire, Hollywood blockbuster, sappy romantic comedy, family values promo...",
	"If you like original gut wrenching laughter you will like this movie. If you are young or old then you will love this movie, hell even my mom liked it.",
}

// newSST2TestModel loads the default SST-2 sentiment model, skipping the
// test when the checkpoint is neither cached nor downloadable.
func newSST2TestModel(t *testing.T) *SequenceClassificationModel {
	t.Helper()
	if testing.Short() {
		t.Skip("Skipping E2E test in short mode")
	}

	config := DefaultSequenceClassificationConfig()
	config.Device = backends.DeviceCPU
	config.Logger = zaptest.NewLogger(t)
	if dir := os.Getenv("WEAVER_MODELS_DIR"); dir != "" {
		config.CacheModelsIn(dir)
	}

	for _, res := range []resources.Resource{
		config.ModelResource, config.ConfigResource, config.VocabResource,
	} {
		if _, err := res.LocalPath(); err != nil {
			t.Skipf("SST-2 checkpoint not available: %v", err)
		}
	}

	model, err := NewSequenceClassificationModel(config)
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, model.Close())
	})
	return model
}

func TestPredictSST2MovieReviews(t *testing.T) {
	model := newSST2TestModel(t)

	labels := model.Predict(sentimentReviews)
	require.Len(t, labels, len(sentimentReviews))

	expected := []string{"POSITIVE", "NEGATIVE", "POSITIVE"}
	for i, label := range labels {
		require.Equal(t, i, label.Sentence)
		require.Equal(t, expected[i], label.Text)
		require.Greater(t, label.Score, 0.99)
	}
}

func TestPredictSST2BatchInvariance(t *testing.T) {
	model := newSST2TestModel(t)

	single := model.Predict(sentimentReviews[:1])
	require.Len(t, single, 1)
	batch := model.Predict(sentimentReviews)
	require.Len(t, batch, len(sentimentReviews))

	// Padding to the batch maximum must not change the first input's
	// classification.
	require.Equal(t, 0, single[0].Sentence)
	require.Equal(t, 0, batch[0].Sentence)
	require.Equal(t, single[0].ID, batch[0].ID)
	require.Equal(t, single[0].Text, batch[0].Text)
	require.InDelta(t, single[0].Score, batch[0].Score, 1e-4)
}
