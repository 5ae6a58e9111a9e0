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

//go:build onnx && ORT && !darwin

package models

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
)

// ONNX Runtime execution path. Fastest backend for CPU and CUDA inference.
//
// Runtime Requirements:
//   - Set LD_LIBRARY_PATH before running:
//     export LD_LIBRARY_PATH=/path/to/onnxruntime/lib
//   - For CUDA: export LD_LIBRARY_PATH=/path/to/onnxruntime/lib:/usr/local/cuda/lib64
//
// Build Requirements:
//   - CGO must be enabled (CGO_ENABLED=1)
//   - ONNX Runtime libraries must be available at link time

var (
	ortInitOnce sync.Once
	ortInitErr  error
)

// initORT initializes the ONNX Runtime library once per process.
func initORT() error {
	ortInitOnce.Do(func() {
		if libPath := ortLibraryPath(); libPath != "" {
			ort.SetSharedLibraryPath(filepath.Join(libPath, ortLibraryName()))
		}
		ortInitErr = ort.InitializeEnvironment()
	})
	return ortInitErr
}

// ortLibraryPath returns the directory containing the ONNX Runtime shared
// library. Checks ONNXRUNTIME_ROOT first, then LD_LIBRARY_PATH.
func ortLibraryPath() string {
	platform := runtime.GOOS + "-" + runtime.GOARCH

	if root := os.Getenv("ONNXRUNTIME_ROOT"); root != "" {
		platformDir := filepath.Join(root, platform, "lib")
		if _, err := os.Stat(filepath.Join(platformDir, ortLibraryName())); err == nil {
			return platformDir
		}
		directDir := filepath.Join(root, "lib")
		if _, err := os.Stat(filepath.Join(directDir, ortLibraryName())); err == nil {
			return directDir
		}
	}

	if ldPath := os.Getenv("LD_LIBRARY_PATH"); ldPath != "" {
		for _, dir := range filepath.SplitList(ldPath) {
			if _, err := os.Stat(filepath.Join(dir, ortLibraryName())); err == nil {
				return dir
			}
		}
	}

	return ""
}

func ortLibraryName() string {
	switch runtime.GOOS {
	case "windows":
		return "onnxruntime.dll"
	default:
		return "libonnxruntime.so"
	}
}

// ortRunner executes a classification graph through ONNX Runtime.
type ortRunner struct {
	session     *ort.DynamicAdvancedSession
	sessionOpts *ort.SessionOptions
	inputNames  []string
	outputNames []string
}

// newORTRunner creates an ONNX Runtime session for the weights file,
// discovering the graph's input and output names from the model itself.
func newORTRunner(weightsPath string, useCUDA bool) (runner, error) {
	if err := initORT(); err != nil {
		return nil, fmt.Errorf("initializing ONNX Runtime: %w", err)
	}

	inputs, outputs, err := ort.GetInputOutputInfo(weightsPath)
	if err != nil {
		return nil, fmt.Errorf("getting model info: %w", err)
	}

	inputNames := make([]string, len(inputs))
	for i, info := range inputs {
		inputNames[i] = info.Name
	}
	outputNames := make([]string, len(outputs))
	for i, info := range outputs {
		outputNames[i] = info.Name
	}

	sessionOpts, err := ort.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("creating session options: %w", err)
	}

	if useCUDA {
		cudaOpts, err := ort.NewCUDAProviderOptions()
		if err == nil {
			if err := sessionOpts.AppendExecutionProviderCUDA(cudaOpts); err != nil {
				// CUDA not available, fall back to CPU
				cudaOpts.Destroy()
			} else {
				defer cudaOpts.Destroy()
			}
		}
	}

	session, err := ort.NewDynamicAdvancedSession(weightsPath, inputNames, outputNames, sessionOpts)
	if err != nil {
		sessionOpts.Destroy()
		return nil, fmt.Errorf("creating ONNX session: %w", err)
	}

	return &ortRunner{
		session:     session,
		sessionOpts: sessionOpts,
		inputNames:  inputNames,
		outputNames: outputNames,
	}, nil
}

func (r *ortRunner) run(feeds []feed) ([][]float32, error) {
	if r.session == nil {
		return nil, fmt.Errorf("ONNX session not initialized")
	}
	if len(feeds) == 0 {
		return nil, fmt.Errorf("no input tensors provided")
	}

	byName := make(map[string]feed, len(feeds))
	batch, seq := 0, 0
	for _, f := range feeds {
		byName[f.name] = f
		if f.ints != nil && batch == 0 {
			batch = len(f.ints)
			if batch > 0 {
				seq = len(f.ints[0])
			}
		}
	}

	// The session expects a tensor for every graph input; inputs the caller
	// did not provide (typically token_type_ids) are fed as zeros.
	ortInputs := make([]ort.Value, 0, len(r.inputNames))
	destroyAll := func() {
		for _, t := range ortInputs {
			t.Destroy()
		}
	}
	for _, name := range r.inputNames {
		f, ok := byName[name]
		var tensor ort.Value
		var err error
		switch {
		case ok && f.ints != nil:
			tensor, err = intTensor(f.ints)
		case ok && f.floats != nil:
			tensor, err = floatTensor(f.floats)
		default:
			tensor, err = ort.NewTensor(ort.NewShape(int64(batch), int64(seq)), make([]int64, batch*seq))
		}
		if err != nil {
			destroyAll()
			return nil, fmt.Errorf("creating %s tensor: %w", name, err)
		}
		ortInputs = append(ortInputs, tensor)
	}
	defer destroyAll()

	// Output slots are nil; the session allocates them during Run.
	outputTensors := make([]ort.Value, len(r.outputNames))
	if err := r.session.Run(ortInputs, outputTensors); err != nil {
		return nil, fmt.Errorf("running ONNX inference: %w", err)
	}
	defer func() {
		for _, t := range outputTensors {
			if t != nil {
				t.Destroy()
			}
		}
	}()

	if len(outputTensors) == 0 || outputTensors[0] == nil {
		return nil, fmt.Errorf("no output tensors returned")
	}

	logitsTensor, ok := outputTensors[0].(*ort.Tensor[float32])
	if !ok {
		return nil, fmt.Errorf("logits tensor is not float32")
	}
	shape := logitsTensor.GetShape()
	if len(shape) != 2 {
		return nil, fmt.Errorf("unexpected logits shape: %v", shape)
	}
	data := logitsTensor.GetData()

	rows, cols := int(shape[0]), int(shape[1])
	logits := make([][]float32, rows)
	for i := 0; i < rows; i++ {
		logits[i] = make([]float32, cols)
		copy(logits[i], data[i*cols:(i+1)*cols])
	}
	return logits, nil
}

func (r *ortRunner) close() error {
	if r.session != nil {
		r.session.Destroy()
		r.session = nil
	}
	if r.sessionOpts != nil {
		r.sessionOpts.Destroy()
		r.sessionOpts = nil
	}
	return nil
}

func intTensor(rows [][]int64) (ort.Value, error) {
	batch := len(rows)
	seq := 0
	if batch > 0 {
		seq = len(rows[0])
	}
	flat := make([]int64, 0, batch*seq)
	for _, row := range rows {
		flat = append(flat, row...)
	}
	return ort.NewTensor(ort.NewShape(int64(batch), int64(seq)), flat)
}

func floatTensor(rows [][][]float32) (ort.Value, error) {
	batch := len(rows)
	seq, dim := 0, 0
	if batch > 0 {
		seq = len(rows[0])
		if seq > 0 {
			dim = len(rows[0][0])
		}
	}
	flat := make([]float32, 0, batch*seq*dim)
	for _, row := range rows {
		for _, vec := range row {
			flat = append(flat, vec...)
		}
	}
	return ort.NewTensor(ort.NewShape(int64(batch), int64(seq), int64(dim)), flat)
}
