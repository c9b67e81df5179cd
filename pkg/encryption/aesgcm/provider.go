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

// Package aesgcm is the encryption.EncryptionProvider backing the
// Secure settings-stream class: AES-256-GCM sealing under a versioned,
// rotatable key chain.
package aesgcm

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"fmt"
	"log/slog"

	"github.com/wso2/winpkg-core/pkg/core"
	"github.com/wso2/winpkg-core/pkg/encryption"
)

// NonceSize is the standard AES-GCM nonce length, in bytes.
const NonceSize = 12

// AESGCMProvider implements encryption.EncryptionProvider over a
// KeyManager's versioned key chain.
type AESGCMProvider struct {
	name       string
	keyManager *KeyManager
	logger     *slog.Logger
}

// NewAESGCMProvider loads keyConfigs and returns a ready provider.
func NewAESGCMProvider(keyConfigs []KeyConfig, logger *slog.Logger) (*AESGCMProvider, error) {
	keyManager, err := NewKeyManager(keyConfigs, logger)
	if err != nil {
		return nil, fmt.Errorf("initializing key manager: %w", err)
	}

	provider := &AESGCMProvider{
		name:       "aesgcm",
		keyManager: keyManager,
		logger:     logger,
	}

	logger.Info("aes-gcm provider initialized", slog.String("primary_key_version", keyManager.GetPrimaryVersion()))
	return provider, nil
}

// Name returns "aesgcm", the provider identifier recorded in every
// EncryptedPayload this provider produces.
func (p *AESGCMProvider) Name() string {
	return p.name
}

// Encrypt seals plaintext under the primary key with a fresh random
// nonce; the nonce and authentication tag travel with the ciphertext.
func (p *AESGCMProvider) Encrypt(plaintext []byte) (*encryption.EncryptedPayload, error) {
	key := p.keyManager.GetPrimaryKey()

	gcm, err := newGCM(key.Data)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, NonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return nil, core.Wrap(core.KindInternal, "aesgcm.Encrypt", fmt.Errorf("generating nonce: %w", err))
	}

	ciphertext := gcm.Seal(nonce, nonce, plaintext, nil)

	p.logger.Debug("sealed settings value", slog.String("key_version", key.Version), slog.Int("plaintext_size", len(plaintext)))

	return &encryption.EncryptedPayload{
		Provider:   p.name,
		KeyVersion: key.Version,
		Ciphertext: ciphertext,
	}, nil
}

// Decrypt opens a payload sealed by Encrypt (by this key chain or an
// earlier version of it), verifying the authentication tag.
func (p *AESGCMProvider) Decrypt(payload *encryption.EncryptedPayload) ([]byte, error) {
	key, err := p.keyManager.GetKey(payload.KeyVersion)
	if err != nil {
		return nil, err
	}

	if len(payload.Ciphertext) < NonceSize {
		return nil, core.NewError(core.KindIntegrity, "aesgcm.Decrypt", fmt.Sprintf("ciphertext too short: %d bytes", len(payload.Ciphertext)))
	}

	gcm, err := newGCM(key.Data)
	if err != nil {
		return nil, err
	}

	nonce, ciphertext := payload.Ciphertext[:NonceSize], payload.Ciphertext[NonceSize:]
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, core.Wrap(core.KindIntegrity, "aesgcm.Decrypt", fmt.Errorf("authentication failed: %w", err))
	}

	p.logger.Debug("opened settings value", slog.String("key_version", key.Version), slog.Int("plaintext_size", len(plaintext)))
	return plaintext, nil
}

// HealthCheck confirms a primary key is loaded and round-trips a
// canary value through Encrypt/Decrypt.
func (p *AESGCMProvider) HealthCheck() error {
	primaryKey := p.keyManager.GetPrimaryKey()
	if primaryKey == nil {
		return core.NewError(core.KindValidation, "aesgcm.HealthCheck", "no primary key available")
	}
	if len(primaryKey.Data) != AESKeySize {
		return core.NewError(core.KindValidation, "aesgcm.HealthCheck",
			fmt.Sprintf("primary key: expected %d bytes, got %d", AESKeySize, len(primaryKey.Data)))
	}

	const canary = "health-check-canary"
	encrypted, err := p.Encrypt([]byte(canary))
	if err != nil {
		return fmt.Errorf("health check encrypt: %w", err)
	}
	decrypted, err := p.Decrypt(encrypted)
	if err != nil {
		return fmt.Errorf("health check decrypt: %w", err)
	}
	if string(decrypted) != canary {
		return core.NewError(core.KindInternal, "aesgcm.HealthCheck", "round-trip produced mismatched data")
	}

	return nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, core.Wrap(core.KindInternal, "aesgcm", fmt.Errorf("constructing cipher: %w", err))
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, core.Wrap(core.KindInternal, "aesgcm", fmt.Errorf("constructing GCM: %w", err))
	}
	return gcm, nil
}
