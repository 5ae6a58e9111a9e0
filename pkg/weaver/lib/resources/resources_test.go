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

package resources

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLocalResource(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte("{}"), 0o644))

	resource := NewLocalResource(path)
	resolved, err := resource.LocalPath()
	require.NoError(t, err)
	require.Equal(t, path, resolved)
}

func TestLocalResourceMissingFile(t *testing.T) {
	resource := NewLocalResource(filepath.Join(t.TempDir(), "absent.onnx"))
	_, err := resource.LocalPath()
	require.Error(t, err)

	_, err = NewLocalResource("").LocalPath()
	require.Error(t, err)
}

func TestRemoteResourceDownloadsOnce(t *testing.T) {
	var hits atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, _ = w.Write([]byte("model-bytes"))
	}))
	defer server.Close()

	resource := &RemoteResource{
		URL:         server.URL + "/repo/resolve/main/model.onnx",
		CacheSubdir: "test-model",
		CacheDir:    t.TempDir(),
	}

	first, err := resource.LocalPath()
	require.NoError(t, err)
	require.FileExists(t, first)
	require.Equal(t, "model.onnx", filepath.Base(first))

	data, err := os.ReadFile(first)
	require.NoError(t, err)
	require.Equal(t, "model-bytes", string(data))

	// A second resolution reuses the memoized path without refetching.
	second, err := resource.LocalPath()
	require.NoError(t, err)
	require.Equal(t, first, second)
	require.Equal(t, int64(1), hits.Load())
}

func TestRemoteResourceCacheHitAcrossInstances(t *testing.T) {
	cacheDir := t.TempDir()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("payload"))
	}))
	defer server.Close()

	first := &RemoteResource{URL: server.URL + "/vocab.json", CacheDir: cacheDir}
	path, err := first.LocalPath()
	require.NoError(t, err)

	server.Close() // the cached copy must suffice now

	second := &RemoteResource{URL: server.URL + "/vocab.json", CacheDir: cacheDir}
	resolved, err := second.LocalPath()
	require.NoError(t, err)
	require.Equal(t, path, resolved)
}

func TestRemoteResourceHTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer server.Close()

	resource := &RemoteResource{URL: server.URL + "/missing.onnx", CacheDir: t.TempDir()}
	_, err := resource.LocalPath()
	require.Error(t, err)
	require.Contains(t, err.Error(), "unexpected status")

	// No partial artifact left behind after a failed download.
	entries, readErr := os.ReadDir(resource.CacheDir)
	require.NoError(t, readErr)
	require.Empty(t, entries)
}

func TestFromPretrained(t *testing.T) {
	resource := FromPretrained("distilbert-base-uncased-finetuned-sst-2-english", "config.json")
	require.Equal(t,
		"https://huggingface.co/distilbert-base-uncased-finetuned-sst-2-english/resolve/main/config.json",
		resource.URL)
	require.Equal(t, "distilbert-base-uncased-finetuned-sst-2-english", resource.CacheSubdir)

	nested := FromPretrained("org/model", "model.onnx")
	require.Equal(t, "org_model", nested.CacheSubdir)
}

func TestRemoteFilename(t *testing.T) {
	name, err := remoteFilename("https://example.com/a/b/model.onnx")
	require.NoError(t, err)
	require.Equal(t, "model.onnx", name)

	_, err = remoteFilename("https://example.com/")
	require.Error(t, err)
}
