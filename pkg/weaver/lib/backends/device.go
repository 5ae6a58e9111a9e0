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

package backends

import (
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strings"
	"sync"
)

// Device identifies where a model's computation is placed.
type Device string

const (
	// DeviceCPU runs inference on the CPU.
	DeviceCPU Device = "cpu"
	// DeviceCUDA runs inference on an NVIDIA GPU.
	DeviceCUDA Device = "cuda"
)

// ParseDevice converts a user-supplied device name into a Device.
// Only "cpu" and "cuda" are recognized.
func ParseDevice(name string) (Device, error) {
	switch Device(strings.ToLower(name)) {
	case DeviceCPU:
		return DeviceCPU, nil
	case DeviceCUDA:
		return DeviceCUDA, nil
	}
	return "", fmt.Errorf("unknown device %q (expected cpu or cuda)", name)
}

// GPUMode controls GPU acceleration policy.
type GPUMode string

const (
	// GPUModeAuto auto-detects GPU availability (default).
	GPUModeAuto GPUMode = "auto"
	// GPUModeCuda forces CUDA.
	GPUModeCuda GPUMode = "cuda"
	// GPUModeOff forces CPU-only inference.
	GPUModeOff GPUMode = "off"
)

var (
	cudaDetected     bool
	cudaDetectedOnce sync.Once
)

// CudaIfAvailable returns DeviceCUDA when an NVIDIA GPU is usable from this
// process, otherwise DeviceCPU. Detection runs once per process; the result
// is threaded explicitly through configuration rather than read as a global
// at inference time.
func CudaIfAvailable() Device {
	if ShouldUseGPU(GPUModeAuto) {
		return DeviceCUDA
	}
	return DeviceCPU
}

// ShouldUseGPU reports whether GPU acceleration should be enabled for the
// given mode. In auto mode this checks for NVIDIA driver presence.
func ShouldUseGPU(mode GPUMode) bool {
	switch mode {
	case GPUModeCuda:
		return true
	case GPUModeOff:
		return false
	}

	cudaDetectedOnce.Do(func() {
		cudaDetected = detectCUDA()
	})
	return cudaDetected
}

// detectCUDA checks for an NVIDIA GPU without initializing any runtime.
func detectCUDA() bool {
	if runtime.GOOS == "darwin" {
		return false
	}

	// CUDA_VISIBLE_DEVICES="" explicitly disables GPU use
	if v, ok := os.LookupEnv("CUDA_VISIBLE_DEVICES"); ok {
		return v != "" && v != "-1"
	}

	// Device nodes created by the NVIDIA kernel driver
	if _, err := os.Stat("/proc/driver/nvidia/version"); err == nil {
		return true
	}
	if _, err := os.Stat("/dev/nvidia0"); err == nil {
		return true
	}

	// Fall back to nvidia-smi on PATH (covers Windows and containers)
	if _, err := exec.LookPath("nvidia-smi"); err == nil {
		return true
	}

	return false
}
