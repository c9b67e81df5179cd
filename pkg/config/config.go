/*
 * Copyright (c) 2026, WSO2 LLC. (https://www.wso2.com).
 *
 * WSO2 LLC. licenses this file to you under the Apache License,
 * Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.
 * You may obtain a copy of the License at
 *
 * http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing,
 * software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY
 * KIND, either express or implied.  See the License for the
 * specific language governing permissions and limitations
 * under the License.
 */

// Package config loads winpkg-core's process configuration from a TOML
// file with environment variable overrides.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	toml "github.com/knadh/koanf/parsers/toml/v2"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/wso2/winpkg-core/pkg/index"
)

// EnvPrefix is the prefix for environment variables used to configure
// winpkg-core.
const EnvPrefix = "WINPKG_"

// Config holds all configuration for winpkg-core.
type Config struct {
	StateRoot  string           `koanf:"state_root"`
	Index      IndexConfig      `koanf:"index"`
	Sources    SourcesConfig    `koanf:"sources"`
	Logging    LoggingConfig    `koanf:"logging"`
	Metrics    MetricsConfig    `koanf:"metrics"`
	Encryption EncryptionConfig `koanf:"encryption"`
}

// IndexConfig governs the embedded relational index store.
type IndexConfig struct {
	// SchemaVersion is the schema version this build writes. It exists
	// in config, rather than only as index.CurrentSchemaVersion, so an
	// operator can confirm which version a deployment expects without
	// reading a binary's source.
	SchemaVersion int `koanf:"schema_version"`
}

// SourcesConfig holds HTTP client tuning shared by the Rest and
// PreIndexed source factories.
type SourcesConfig struct {
	RestTimeout       time.Duration `koanf:"rest_timeout"`
	PreIndexedTimeout time.Duration `koanf:"preindexed_timeout"`
}

// LoggingConfig holds structured logging configuration.
type LoggingConfig struct {
	// Level is one of "debug", "info", "warn", "error".
	Level string `koanf:"level"`
	// Format is either "json" or "text".
	Format string `koanf:"format"`
}

// MetricsConfig holds Prometheus metrics server configuration.
type MetricsConfig struct {
	// Enabled indicates whether the metrics server should be started.
	Enabled bool `koanf:"enabled"`

	// Port is the port for the metrics HTTP server.
	Port int `koanf:"port"`
}

// EncryptionConfig holds the encryption key chain backing Secure-class
// settings streams.
type EncryptionConfig struct {
	Keys []EncryptionKeyConfig `koanf:"keys"`
}

// EncryptionKeyConfig names one versioned key file. The first entry is
// the primary encryption key; all entries remain available for
// decrypting data written under an older key.
type EncryptionKeyConfig struct {
	Version  string `koanf:"version"`
	FilePath string `koanf:"file_path"`
}

// LoadConfig reads configPath as TOML, overlays WINPKG_-prefixed
// environment variables, and unmarshals the result into a validated
// Config.
func LoadConfig(configPath string) (*Config, error) {
	cfg := defaultConfig()

	k := koanf.New(".")

	if configPath != "" {
		if err := k.Load(file.Provider(configPath), toml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		s = strings.TrimPrefix(s, EnvPrefix)
		s = strings.ToLower(s)

		// Step 1: convert double underscore "__" into a placeholder so a
		// key whose name itself contains an underscore (e.g.
		// "schema_version") is not split mid-word.
		s = strings.ReplaceAll(s, "__", "%UNDERSCORE%")
		// Step 2: convert single "_" into the koanf path separator "."
		s = strings.ReplaceAll(s, "_", ".")
		// Step 3: restore the placeholder as a literal "_"
		s = strings.ReplaceAll(s, "%UNDERSCORE%", "_")
		return s
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := k.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{
		DecoderConfig: &mapstructure.DecoderConfig{
			TagName:          "koanf",
			WeaklyTypedInput: true,
			Result:           cfg,
			DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
		},
	}); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with the values a fresh installation
// starts with.
func defaultConfig() *Config {
	return &Config{
		StateRoot: "./winpkg-state",
		Index: IndexConfig{
			SchemaVersion: index.CurrentSchemaVersion,
		},
		Sources: SourcesConfig{
			RestTimeout:       15 * time.Second,
			PreIndexedTimeout: 30 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Port:    9090,
		},
	}
}

// Validate aggregates every configuration error found, rather than
// stopping at the first, so an operator fixing a TOML file sees the
// whole problem set in one run.
func (c *Config) Validate() error {
	var errs []string

	if c.StateRoot == "" {
		errs = append(errs, "state_root must not be empty")
	}

	if c.Index.SchemaVersion < index.EarliestSupportedSchemaVersion {
		errs = append(errs, fmt.Sprintf("index.schema_version must be >= %d, got: %d", index.EarliestSupportedSchemaVersion, c.Index.SchemaVersion))
	}

	if c.Sources.RestTimeout <= 0 {
		errs = append(errs, fmt.Sprintf("sources.rest_timeout must be positive, got: %s", c.Sources.RestTimeout))
	}
	if c.Sources.PreIndexedTimeout <= 0 {
		errs = append(errs, fmt.Sprintf("sources.preindexed_timeout must be positive, got: %s", c.Sources.PreIndexedTimeout))
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "warning": true, "error": true}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, fmt.Sprintf("logging.level must be one of: debug, info, warn, error, got: %s", c.Logging.Level))
	}
	if c.Logging.Format != "json" && c.Logging.Format != "text" {
		errs = append(errs, fmt.Sprintf("logging.format must be either 'json' or 'text', got: %s", c.Logging.Format))
	}

	if c.Metrics.Enabled && (c.Metrics.Port < 1 || c.Metrics.Port > 65535) {
		errs = append(errs, fmt.Sprintf("metrics.port must be between 1 and 65535, got: %d", c.Metrics.Port))
	}

	for i, key := range c.Encryption.Keys {
		if key.Version == "" {
			errs = append(errs, fmt.Sprintf("encryption.keys[%d].version must not be empty", i))
		}
		if key.FilePath == "" {
			errs = append(errs, fmt.Sprintf("encryption.keys[%d].file_path must not be empty", i))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}
