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
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/weaverml/weaver/pkg/weaver/lib/pipelines"
)

// fakeModel counts invocations and returns one fixed label per input.
type fakeModel struct {
	calls      atomic.Int64
	closeCalls atomic.Int64
	multiErr   error
}

func (f *fakeModel) Predict(input []string) []pipelines.Label {
	f.calls.Add(1)
	labels := make([]pipelines.Label, len(input))
	for i := range input {
		labels[i] = pipelines.Label{Text: "POSITIVE", Score: 0.9, Sentence: i}
	}
	return labels
}

func (f *fakeModel) PredictMultiLabel(input []string, threshold float64) ([][]pipelines.Label, error) {
	f.calls.Add(1)
	if f.multiErr != nil {
		return nil, f.multiErr
	}
	labels := make([][]pipelines.Label, len(input))
	for i := range input {
		labels[i] = []pipelines.Label{}
	}
	return labels, nil
}

func (f *fakeModel) Close() error {
	f.closeCalls.Add(1)
	return nil
}

func newTestPool(fakes []*fakeModel) *PooledClassifier {
	models := make([]sequenceModel, len(fakes))
	for i, f := range fakes {
		models[i] = f
	}
	return &PooledClassifier{
		models:   models,
		sem:      semaphore.NewWeighted(int64(len(models))),
		logger:   zap.NewNop(),
		poolSize: len(models),
	}
}

func TestPooledClassifierRoundRobin(t *testing.T) {
	fakes := []*fakeModel{{}, {}, {}}
	pool := newTestPool(fakes)

	for i := 0; i < 9; i++ {
		labels, err := pool.Classify(context.Background(), []string{"some text"})
		require.NoError(t, err)
		require.Len(t, labels, 1)
	}

	// Sequential requests spread evenly over the instances.
	for i, fake := range fakes {
		require.Equal(t, int64(3), fake.calls.Load(), "model %d", i)
	}
}

func TestPooledClassifierConcurrentAccess(t *testing.T) {
	fakes := []*fakeModel{{}, {}}
	pool := newTestPool(fakes)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			labels, err := pool.Classify(context.Background(), []string{"a", "b"})
			require.NoError(t, err)
			require.Len(t, labels, 2)
		}()
	}
	wg.Wait()

	total := fakes[0].calls.Load() + fakes[1].calls.Load()
	require.Equal(t, int64(20), total)
}

func TestPooledClassifierEmptyInput(t *testing.T) {
	fakes := []*fakeModel{{}}
	pool := newTestPool(fakes)

	labels, err := pool.Classify(context.Background(), nil)
	require.NoError(t, err)
	require.NotNil(t, labels)
	require.Empty(t, labels)

	multi, err := pool.ClassifyMultiLabel(context.Background(), nil, 0.5)
	require.NoError(t, err)
	require.NotNil(t, multi)
	require.Empty(t, multi)

	require.Zero(t, fakes[0].calls.Load())
}

func TestPooledClassifierCancelledContext(t *testing.T) {
	pool := newTestPool([]*fakeModel{{}})
	// Exhaust the only slot so Acquire has to wait on the context.
	require.NoError(t, pool.sem.Acquire(context.Background(), 1))
	defer pool.sem.Release(1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := pool.Classify(ctx, []string{"some text"})
	require.Error(t, err)
	require.ErrorIs(t, err, context.Canceled)
}

func TestPooledClassifierMultiLabelError(t *testing.T) {
	fake := &fakeModel{multiErr: errors.New("graph execution failed")}
	pool := newTestPool([]*fakeModel{fake})

	_, err := pool.ClassifyMultiLabel(context.Background(), []string{"x"}, 0.5)
	require.Error(t, err)
}

func TestPooledClassifierCloseClosesAll(t *testing.T) {
	fakes := []*fakeModel{{}, {}, {}}
	pool := newTestPool(fakes)

	require.NoError(t, pool.Close())
	for i, fake := range fakes {
		require.Equal(t, int64(1), fake.closeCalls.Load(), "model %d", i)
	}
}
