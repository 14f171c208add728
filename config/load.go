// Copyright 2025 Poiesic Systems
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

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes environment overrides, e.g. PAIRREADER_AI_MODEL.
const EnvPrefix = "PAIRREADER"

// Setting keys as written in configuration files.
const (
	keyDecomposition      = "decomposition"
	keyRetrievalCount     = "retrieval_count"
	keySampleCount        = "sample_count"
	keySampleFraction     = "sample_fraction"
	keyClusterGranularity = "cluster_granularity"
	keyMinClusterSize     = "min_cluster_size"
	keyMaxClusterSize     = "max_cluster_size"
	keyApprovalTimeout    = "approval_timeout"
	keyUploadTimeout      = "upload_timeout"
	keyVerbosity          = "verbosity"
	keyMapConcurrency     = "map_concurrency"
	keyStorePath          = "store_path"
	keyModel              = "ai.model"
	keyFallbackModel      = "ai.fallback_model"
	keyGenerationHost     = "ai.generation_host"
	keyEmbeddingHost      = "ai.embedding_host"
	keyEmbeddingModel     = "ai.embedding_model"
	keyTemperature        = "ai.temperature"
)

// Load reads settings from path, falling back to defaults for missing keys.
// An empty path searches for pairreader.{yaml,toml,json} in the working
// directory and ~/.config/pairreader; finding none is not an error.
// Environment variables override file values.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v, DefaultConfig())

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("pairreader")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "pairreader"))
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	cfg := fromViper(v)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault(keyDecomposition, d.Decomposition)
	v.SetDefault(keyRetrievalCount, d.RetrievalCount)
	v.SetDefault(keySampleCount, d.SampleCount)
	v.SetDefault(keySampleFraction, d.SampleFraction)
	v.SetDefault(keyClusterGranularity, d.ClusterGranularity)
	v.SetDefault(keyMinClusterSize, d.MinClusterSize)
	v.SetDefault(keyMaxClusterSize, d.MaxClusterSize)
	v.SetDefault(keyApprovalTimeout, d.ApprovalTimeout)
	v.SetDefault(keyUploadTimeout, d.UploadTimeout)
	v.SetDefault(keyVerbosity, d.Verbosity)
	v.SetDefault(keyMapConcurrency, d.MapConcurrency)
	v.SetDefault(keyStorePath, d.StorePath)
	v.SetDefault(keyModel, d.AI.Model)
	v.SetDefault(keyFallbackModel, d.AI.FallbackModel)
	v.SetDefault(keyGenerationHost, d.AI.GenerationHost)
	v.SetDefault(keyEmbeddingHost, d.AI.EmbeddingHost)
	v.SetDefault(keyEmbeddingModel, d.AI.EmbeddingModel)
	v.SetDefault(keyTemperature, d.AI.Temperature)
}

func fromViper(v *viper.Viper) *Config {
	cfg := &Config{
		Decomposition:      v.GetBool(keyDecomposition),
		RetrievalCount:     v.GetInt(keyRetrievalCount),
		SampleCount:        v.GetInt(keySampleCount),
		SampleFraction:     v.GetFloat64(keySampleFraction),
		ClusterGranularity: v.GetFloat64(keyClusterGranularity),
		MinClusterSize:     v.GetInt(keyMinClusterSize),
		MaxClusterSize:     v.GetInt(keyMaxClusterSize),
		ApprovalTimeout:    v.GetDuration(keyApprovalTimeout),
		UploadTimeout:      v.GetDuration(keyUploadTimeout),
		Verbosity:          v.GetInt(keyVerbosity),
		MapConcurrency:     v.GetInt(keyMapConcurrency),
		StorePath:          v.GetString(keyStorePath),
	}
	cfg.AI.Model = v.GetString(keyModel)
	cfg.AI.FallbackModel = v.GetString(keyFallbackModel)
	cfg.AI.GenerationHost = v.GetString(keyGenerationHost)
	cfg.AI.EmbeddingHost = v.GetString(keyEmbeddingHost)
	cfg.AI.EmbeddingModel = v.GetString(keyEmbeddingModel)
	cfg.AI.Temperature = v.GetFloat64(keyTemperature)
	return cfg
}
