// Copyright 2025 Weaver Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
package cmd

import (
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"

	"github.com/weaverml/weaver/pkg/weaver/lib/backends"
	"github.com/weaverml/weaver/pkg/weaver/lib/resources"
)

// resetClassifyFlags restores the classify flag variables after a test
// mutated them.
func resetClassifyFlags(t *testing.T) {
	t.Helper()
	prevModelDir, prevDevice := modelDir, device
	t.Cleanup(func() {
		modelDir, device = prevModelDir, prevDevice
	})
}

func TestBuildPipelineConfigUsesModelsDir(t *testing.T) {
	resetClassifyFlags(t)
	modelDir = ""
	device = ""
	prev := viper.GetString("models_dir")
	viper.Set("models_dir", "/opt/weaver-cache")
	t.Cleanup(func() { viper.Set("models_dir", prev) })

	config, err := buildPipelineConfig()
	require.NoError(t, err)

	for _, res := range []resources.Resource{
		config.ModelResource, config.ConfigResource, config.VocabResource,
	} {
		remote, ok := res.(*resources.RemoteResource)
		require.True(t, ok)
		require.Equal(t, "/opt/weaver-cache", remote.CacheDir)
	}
}

func TestBuildPipelineConfigDeviceOverride(t *testing.T) {
	resetClassifyFlags(t)
	modelDir = ""
	device = "cpu"

	config, err := buildPipelineConfig()
	require.NoError(t, err)
	require.Equal(t, backends.DeviceCPU, config.Device)
}

func TestBuildPipelineConfigRejectsUnknownDevice(t *testing.T) {
	resetClassifyFlags(t)
	modelDir = ""
	device = "tpu"

	_, err := buildPipelineConfig()
	require.Error(t, err)
	require.Contains(t, err.Error(), `unknown device "tpu"`)
}
