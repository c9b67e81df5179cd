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

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wso2/winpkg-core/pkg/index"
)

func TestDefaultConfig_IsValid(t *testing.T) {
	cfg := defaultConfig()
	assert.NoError(t, cfg.Validate())
}

func TestValidate_RejectsEmptyStateRoot(t *testing.T) {
	cfg := defaultConfig()
	cfg.StateRoot = ""
	assert.Error(t, cfg.Validate())
}

func TestValidate_RejectsSchemaVersionBelowEarliestSupported(t *testing.T) {
	cfg := defaultConfig()
	cfg.Index.SchemaVersion = index.EarliestSupportedSchemaVersion - 1
	assert.Error(t, cfg.Validate())
}

func TestValidate_RejectsNonPositiveTimeouts(t *testing.T) {
	cfg := defaultConfig()
	cfg.Sources.RestTimeout = 0
	assert.Error(t, cfg.Validate())

	cfg = defaultConfig()
	cfg.Sources.PreIndexedTimeout = -time.Second
	assert.Error(t, cfg.Validate())
}

func TestValidate_RejectsUnknownLogLevel(t *testing.T) {
	cfg := defaultConfig()
	cfg.Logging.Level = "verbose"
	assert.Error(t, cfg.Validate())
}

func TestValidate_RejectsUnknownLogFormat(t *testing.T) {
	cfg := defaultConfig()
	cfg.Logging.Format = "xml"
	assert.Error(t, cfg.Validate())
}

func TestValidate_RejectsOutOfRangeMetricsPortWhenEnabled(t *testing.T) {
	cfg := defaultConfig()
	cfg.Metrics.Enabled = true
	cfg.Metrics.Port = 70000
	assert.Error(t, cfg.Validate())
}

func TestValidate_IgnoresMetricsPortWhenDisabled(t *testing.T) {
	cfg := defaultConfig()
	cfg.Metrics.Enabled = false
	cfg.Metrics.Port = 0
	assert.NoError(t, cfg.Validate())
}

func TestValidate_RejectsIncompleteEncryptionKey(t *testing.T) {
	cfg := defaultConfig()
	cfg.Encryption.Keys = []EncryptionKeyConfig{{Version: "", FilePath: "/tmp/key"}}
	assert.Error(t, cfg.Validate())
}

func TestValidate_AggregatesMultipleErrors(t *testing.T) {
	cfg := defaultConfig()
	cfg.StateRoot = ""
	cfg.Logging.Level = "verbose"

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "state_root")
	assert.Contains(t, err.Error(), "logging.level")
}

func TestLoadConfig_OverlaysFileValues(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "winpkg.toml")
	toml := `
state_root = "/var/lib/winpkg"

[logging]
level = "debug"
format = "text"

[metrics]
enabled = true
port = 9999
`
	require.NoError(t, os.WriteFile(path, []byte(toml), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "/var/lib/winpkg", cfg.StateRoot)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "text", cfg.Logging.Format)
	assert.True(t, cfg.Metrics.Enabled)
	assert.Equal(t, 9999, cfg.Metrics.Port)
}

func TestLoadConfig_EnvironmentOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "winpkg.toml")
	require.NoError(t, os.WriteFile(path, []byte(`state_root = "/var/lib/winpkg"`), 0o644))

	t.Setenv("WINPKG_STATE__ROOT", "/opt/winpkg")
	t.Setenv("WINPKG_SOURCES_REST__TIMEOUT", "45s")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "/opt/winpkg", cfg.StateRoot)
	assert.Equal(t, 45*time.Second, cfg.Sources.RestTimeout)
}

func TestLoadConfig_RejectsInvalidResult(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "winpkg.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[logging]
level = "not-a-level"
`), 0o644))

	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestLoadConfig_MissingFileIsNotAnError(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, defaultConfig(), cfg)
}
