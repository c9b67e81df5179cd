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

package aesgcm

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/wso2/winpkg-core/pkg/core"
)

// AESKeySize is the required key length for AES-256, in bytes.
const AESKeySize = 32

// Key is one versioned AES-256 key loaded from KeyConfig.FilePath.
type Key struct {
	Version string
	Data    []byte
}

// KeyConfig names one versioned key file backing a Secure settings
// stream's encryption provider.
type KeyConfig struct {
	Version  string
	FilePath string
}

// KeyManager loads and indexes the versioned key chain for one
// AESGCMProvider. The first KeyConfig is primary: all new settings
// values are encrypted under it, while every other loaded version
// remains available to decrypt values written before a key rotation.
type KeyManager struct {
	keys           map[string]*Key
	primaryKey     *Key
	primaryVersion string
	logger         *slog.Logger
}

// NewKeyManager loads every key in keyConfigs, keyed by version.
func NewKeyManager(keyConfigs []KeyConfig, logger *slog.Logger) (*KeyManager, error) {
	if len(keyConfigs) == 0 {
		return nil, core.NewError(core.KindValidation, "aesgcm.NewKeyManager", "at least one encryption key is required")
	}

	km := &KeyManager{
		keys:   make(map[string]*Key, len(keyConfigs)),
		logger: logger,
	}

	for i, cfg := range keyConfigs {
		key, err := km.loadKey(cfg)
		if err != nil {
			return nil, core.Wrap(core.KindValidation, "aesgcm.NewKeyManager", fmt.Errorf("loading key %s: %w", cfg.Version, err))
		}

		km.keys[cfg.Version] = key
		if i == 0 {
			km.primaryKey = key
			km.primaryVersion = cfg.Version
		}

		logger.Debug("loaded encryption key", slog.String("version", cfg.Version), slog.Bool("primary", i == 0))
	}

	logger.Info("key manager initialized", slog.Int("key_count", len(km.keys)), slog.String("primary_version", km.primaryVersion))
	return km, nil
}

// loadKey reads and validates one key file, warning if the file is
// world-readable.
func (km *KeyManager) loadKey(cfg KeyConfig) (*Key, error) {
	info, err := os.Stat(cfg.FilePath)
	if err != nil {
		return nil, core.Wrap(core.KindValidation, "aesgcm.loadKey", fmt.Errorf("key file %s: %w", cfg.FilePath, err))
	}

	if perm := info.Mode().Perm(); perm&0o004 != 0 {
		km.logger.Warn("encryption key file is world-readable, restrict its permissions",
			slog.String("key_version", cfg.Version),
			slog.String("file_path", cfg.FilePath),
			slog.String("permissions", perm.String()),
		)
	}

	data, err := os.ReadFile(cfg.FilePath)
	if err != nil {
		return nil, core.Wrap(core.KindValidation, "aesgcm.loadKey", err)
	}

	if len(data) != AESKeySize {
		return nil, core.NewError(core.KindValidation, "aesgcm.loadKey",
			fmt.Sprintf("key %s: expected %d bytes, got %d", cfg.Version, AESKeySize, len(data)))
	}

	return &Key{Version: cfg.Version, Data: data}, nil
}

// GetPrimaryKey returns the key new encryptions are sealed under.
func (km *KeyManager) GetPrimaryKey() *Key {
	return km.primaryKey
}

// GetKey looks up a specific key version, for decrypting a value
// sealed before the most recent key rotation.
func (km *KeyManager) GetKey(version string) (*Key, error) {
	key, ok := km.keys[version]
	if !ok {
		return nil, core.NewError(core.KindValidation, "aesgcm.GetKey", fmt.Sprintf("key version not found: %s", version))
	}
	return key, nil
}

// GetPrimaryVersion returns the primary key's version string.
func (km *KeyManager) GetPrimaryVersion() string {
	return km.primaryVersion
}
