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

// Package encryption backs the Secure settings-stream class with an
// at-rest encryption provider chain: the first provider is primary for
// new writes, and every provider remains available to decrypt values
// an older provider wrote.
package encryption

import (
	"encoding/base64"
	"fmt"
	"log/slog"
	"strings"

	"github.com/wso2/winpkg-core/pkg/core"
)

// EncryptionProvider is one at-rest encryption backend (e.g. AES-GCM).
type EncryptionProvider interface {
	// Name identifies the provider in a marshalled EncryptedPayload.
	Name() string

	Encrypt(plaintext []byte) (*EncryptedPayload, error)
	Decrypt(payload *EncryptedPayload) ([]byte, error)

	// HealthCheck verifies the provider's keys are loaded and usable.
	HealthCheck() error
}

// EncryptedPayload is a Secure-class settings value at rest.
type EncryptedPayload struct {
	Provider   string
	KeyVersion string
	Ciphertext []byte // nonce || ciphertext || tag, for AES-GCM providers
}

// ProviderManager is the encryption provider chain for one Secure
// settings-stream instance: all writes go through the primary
// (first) provider, while reads dispatch by the payload's recorded
// provider name so a key rotation never strands previously-written
// values.
type ProviderManager struct {
	providers []EncryptionProvider
	logger    *slog.Logger
}

// NewProviderManager validates and wraps a provider chain. providers[0]
// is the primary provider for new encryptions.
func NewProviderManager(providers []EncryptionProvider, logger *slog.Logger) (*ProviderManager, error) {
	if len(providers) == 0 {
		return nil, core.NewError(core.KindValidation, "encryption.NewProviderManager", "at least one encryption provider is required")
	}

	for _, provider := range providers {
		if err := provider.HealthCheck(); err != nil {
			return nil, core.Wrap(core.KindValidation, "encryption.NewProviderManager", fmt.Errorf("provider %s: %w", provider.Name(), err))
		}
	}

	logger.Info("encryption provider chain initialized",
		slog.Int("provider_count", len(providers)),
		slog.String("primary_provider", providers[0].Name()),
	)

	return &ProviderManager{
		providers: providers,
		logger:    logger,
	}, nil
}

// Encrypt encrypts plaintext with the primary (first) provider.
func (m *ProviderManager) Encrypt(plaintext []byte) (*EncryptedPayload, error) {
	primary := m.providers[0]

	payload, err := primary.Encrypt(plaintext)
	if err != nil {
		m.logger.Error("encryption failed", slog.String("provider", primary.Name()), slog.Any("error", err))
		return nil, core.Wrap(core.KindInternal, "encryption.Encrypt", err)
	}

	m.logger.Debug("encrypted settings value", slog.String("provider", payload.Provider), slog.String("key_version", payload.KeyVersion))
	return payload, nil
}

// Decrypt dispatches to whichever provider in the chain matches
// payload.Provider, so a value written under a retired provider still
// decrypts as long as that provider remains in the chain.
func (m *ProviderManager) Decrypt(payload *EncryptedPayload) ([]byte, error) {
	if payload == nil {
		return nil, core.NewError(core.KindValidation, "encryption.Decrypt", "encrypted payload is nil")
	}

	for _, provider := range m.providers {
		if provider.Name() != payload.Provider {
			continue
		}

		plaintext, err := provider.Decrypt(payload)
		if err != nil {
			m.logger.Error("decryption failed",
				slog.String("provider", provider.Name()),
				slog.String("key_version", payload.KeyVersion),
				slog.Any("error", err),
			)
			return nil, core.Wrap(core.KindIntegrity, "encryption.Decrypt", err)
		}

		m.logger.Debug("decrypted settings value", slog.String("provider", provider.Name()))
		return plaintext, nil
	}

	return nil, core.NewError(core.KindValidation, "encryption.Decrypt", fmt.Sprintf("no provider registered for %q", payload.Provider))
}

// HealthCheck runs every provider's HealthCheck.
func (m *ProviderManager) HealthCheck() error {
	for _, provider := range m.providers {
		if err := provider.HealthCheck(); err != nil {
			return core.Wrap(core.KindValidation, "encryption.HealthCheck", fmt.Errorf("provider %s: %w", provider.Name(), err))
		}
	}
	return nil
}

// GetPrimaryProvider returns providers[0].
func (m *ProviderManager) GetPrimaryProvider() EncryptionProvider {
	return m.providers[0]
}

// GetProviders returns the full provider chain.
func (m *ProviderManager) GetProviders() []EncryptionProvider {
	return m.providers
}

// MarshalPayload renders an EncryptedPayload as the string stored in a
// Secure-class settings stream: "enc:<provider>:v1:<key-version>:<base64-ciphertext>".
func MarshalPayload(payload *EncryptedPayload) string {
	encoded := base64.StdEncoding.EncodeToString(payload.Ciphertext)
	return fmt.Sprintf("enc:%s:v1:%s:%s", payload.Provider, payload.KeyVersion, encoded)
}

// UnmarshalPayload parses the format MarshalPayload produces.
func UnmarshalPayload(stored string) (*EncryptedPayload, error) {
	parts := strings.SplitN(stored, ":", 5)
	if len(parts) != 5 || parts[0] != "enc" {
		return nil, core.NewError(core.KindValidation, "encryption.UnmarshalPayload", fmt.Sprintf("invalid payload: %q", stored))
	}
	if parts[2] != "v1" {
		return nil, core.NewError(core.KindValidation, "encryption.UnmarshalPayload", fmt.Sprintf("unsupported payload version: %s", parts[2]))
	}

	ciphertext, err := base64.StdEncoding.DecodeString(parts[4])
	if err != nil {
		return nil, core.Wrap(core.KindValidation, "encryption.UnmarshalPayload", err)
	}

	return &EncryptedPayload{
		Provider:   parts[1],
		KeyVersion: parts[3],
		Ciphertext: ciphertext,
	}, nil
}
