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

// Package resources resolves logical model artifact references (weights,
// configuration, vocabularies, merges) to local filesystem paths.
package resources

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/weaverml/weaver/pkg/weaver/lib/paths"
)

// Resource is a reference to a model artifact that can be materialized
// as a local file. Resolution may perform I/O (download, cache lookup)
// and is expected to be called once during model construction.
type Resource interface {
	// LocalPath resolves the resource to a local file path.
	LocalPath() (string, error)
}

// LocalResource points at a file already present on disk.
type LocalResource struct {
	Path string
}

// NewLocalResource creates a resource backed by an existing local file.
func NewLocalResource(path string) *LocalResource {
	return &LocalResource{Path: path}
}

// LocalPath returns the configured path, verifying the file exists.
func (r *LocalResource) LocalPath() (string, error) {
	if r.Path == "" {
		return "", fmt.Errorf("local resource has no path configured")
	}
	if _, err := os.Stat(r.Path); err != nil {
		return "", fmt.Errorf("resolving local resource %s: %w", r.Path, err)
	}
	return r.Path, nil
}

// RemoteResource points at an artifact served over HTTP(S). The artifact is
// downloaded once into the cache directory and reused on later resolutions.
type RemoteResource struct {
	// URL is the location of the artifact.
	URL string

	// CacheSubdir is the subdirectory of the models cache the artifact is
	// stored under, typically a model identifier such as
	// "distilbert-sst2". Empty means the cache root.
	CacheSubdir string

	// CacheDir overrides the cache root. Empty means paths.DefaultModelsDir().
	CacheDir string

	mu   sync.Mutex
	path string // memoized local path after first successful resolution
}

// NewRemoteResource creates a resource downloaded from url and cached under
// the given model identifier.
func NewRemoteResource(url, cacheSubdir string) *RemoteResource {
	return &RemoteResource{URL: url, CacheSubdir: cacheSubdir}
}

// LocalPath downloads the artifact on first use and returns the cached file
// path. Concurrent callers share one download.
func (r *RemoteResource) LocalPath() (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.path != "" {
		return r.path, nil
	}

	filename, err := remoteFilename(r.URL)
	if err != nil {
		return "", err
	}

	cacheRoot := r.CacheDir
	if cacheRoot == "" {
		cacheRoot = paths.DefaultModelsDir()
	}
	dir := filepath.Join(cacheRoot, r.CacheSubdir)
	target := filepath.Join(dir, filename)

	// Cache hit from a previous process
	if _, err := os.Stat(target); err == nil {
		r.path = target
		return target, nil
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating cache directory %s: %w", dir, err)
	}

	if err := download(r.URL, target); err != nil {
		return "", err
	}

	r.path = target
	return target, nil
}

// remoteFilename extracts the artifact filename from the URL path.
func remoteFilename(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parsing resource URL %s: %w", rawURL, err)
	}
	name := filepath.Base(u.Path)
	if name == "" || name == "." || name == "/" {
		return "", fmt.Errorf("resource URL %s has no file component", rawURL)
	}
	return name, nil
}

// download fetches url into target, writing through a temporary file so a
// partially downloaded artifact is never observed at the final path.
func download(url, target string) error {
	resp, err := http.Get(url)
	if err != nil {
		return fmt.Errorf("downloading %s: %w", url, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("downloading %s: unexpected status %s", url, resp.Status)
	}

	tmp, err := os.CreateTemp(filepath.Dir(target), ".download-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := io.Copy(tmp, resp.Body); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("writing %s: %w", target, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", tmpName, err)
	}

	if err := os.Rename(tmpName, target); err != nil {
		return fmt.Errorf("moving download into place: %w", err)
	}
	return nil
}

// FromPretrained builds a RemoteResource for a file hosted in a HuggingFace
// model repository, cached under the repository name.
func FromPretrained(repo, filename string) *RemoteResource {
	repo = strings.TrimSuffix(repo, "/")
	return &RemoteResource{
		URL:         fmt.Sprintf("https://huggingface.co/%s/resolve/main/%s", repo, filename),
		CacheSubdir: strings.ReplaceAll(repo, "/", "_"),
	}
}
