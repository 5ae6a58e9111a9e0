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
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/weaverml/weaver/pkg/weaver/lib/paths"
)

var (
	cfgFile string
	Version string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "weaver",
	Short: "Classify text with transformer models",
	Long: `Run sequence classification (e.g. sentiment analysis) with ONNX
transformer checkpoints.

Examples:
  # Classify with the default SST-2 sentiment model
  weaver classify "a gripping, beautifully shot film"

  # Classify with a local checkpoint
  weaver classify --model-dir ~/.weaver/models/my-model --model-type roberta "some text"

  # Multi-label classification with a threshold
  weaver classify --multi-label --threshold 0.7 "some text"`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	rootCmd.Version = Version
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().
		StringVar(&cfgFile, "config", "", "config file path (e.g. weaver.yaml)")
	rootCmd.PersistentFlags().
		String("log-level", "info", "set the logging level (e.g. debug, info, warn, error)")
	rootCmd.PersistentFlags().
		String("log-style", "terminal", "set the logging output style (terminal, json)")
	rootCmd.PersistentFlags().
		String("models-dir", paths.DefaultModelsDir(), "Directory for caching models (default: ~/.weaver/models)")

	// Bind to viper
	mustBindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
	mustBindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))
	mustBindPFlag("log.style", rootCmd.PersistentFlags().Lookup("log-style"))
	mustBindPFlag("models_dir", rootCmd.PersistentFlags().Lookup("models-dir"))

	// Default values
	viper.SetDefault("models_dir", paths.DefaultModelsDir())
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.style", "terminal")
}

func mustBindPFlag(key string, flag *pflag.Flag) {
	if err := viper.BindPFlag(key, flag); err != nil {
		panic(fmt.Sprintf("binding flag %s: %v", key, err))
	}
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		if _, err := os.Stat(cfgFile); err != nil {
			fmt.Fprintf(os.Stderr, "Config file not found: %s\n", cfgFile)
			os.Exit(1)
		}

		// Use config file from the flag.
		viper.SetConfigFile(cfgFile)
	} else {
		// Search for config file in home directory and current directory
		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(home)
			viper.SetConfigName(".weaver")
		}
		viper.AddConfigPath(".")
		viper.SetConfigName("weaver")
	}

	viper.SetConfigType("yaml")
	viper.SetEnvPrefix("WEAVER")                           // WEAVER_ prefix for env vars
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_")) // Replace . with _ in env var names
	viper.AutomaticEnv()                                   // read in environment variables that match

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintf(os.Stderr, "Using config file: %s\n", viper.ConfigFileUsed())
	} else if cfgFile != "" {
		// Only error if user explicitly specified a config file
		fmt.Fprintf(os.Stderr, "Error reading config file [%s]: %v\n", viper.ConfigFileUsed(), err)
		os.Exit(1)
	}
}

// newLogger builds a zap logger from the log.level and log.style settings.
func newLogger() (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(viper.GetString("log.level"))
	if err != nil {
		return nil, fmt.Errorf("parsing log level: %w", err)
	}

	var cfg zap.Config
	if viper.GetString("log.style") == "json" {
		cfg = zap.NewProductionConfig()
	} else {
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.Level = zap.NewAtomicLevelAt(level)
	return cfg.Build()
}
