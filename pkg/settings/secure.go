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

package settings

import (
	"fmt"

	"github.com/wso2/winpkg-core/pkg/encryption"
)

// secureStream is a Stream whose contents are encrypted at rest
// through a ProviderManager before being handed to the underlying
// fileStream, and decrypted on the way back out. Get/Set concurrency
// detection still operates on the encrypted bytes, so a concurrent
// writer is detected the same way regardless of class.
type secureStream struct {
	inner   *fileStream
	manager *encryption.ProviderManager
}

func newSecureStream(root, name string, manager *encryption.ProviderManager) (*secureStream, error) {
	if manager == nil {
		return nil, fmt.Errorf("secure settings stream %q requires an encryption provider manager", name)
	}
	inner, err := newFileStream(root, name, Secure)
	if err != nil {
		return nil, err
	}
	return &secureStream{inner: inner, manager: manager}, nil
}

func (s *secureStream) Get() ([]byte, bool, error) {
	raw, ok, err := s.inner.Get()
	if err != nil || !ok {
		return nil, ok, err
	}
	payload, err := encryption.UnmarshalPayload(string(raw))
	if err != nil {
		return nil, false, fmt.Errorf("parsing encrypted settings stream %s: %w", s.inner.name, err)
	}
	plaintext, err := s.manager.Decrypt(payload)
	if err != nil {
		return nil, false, fmt.Errorf("decrypting settings stream %s: %w", s.inner.name, err)
	}
	return plaintext, true, nil
}

func (s *secureStream) Set(data []byte) (bool, error) {
	payload, err := s.manager.Encrypt(data)
	if err != nil {
		return false, fmt.Errorf("encrypting settings stream %s: %w", s.inner.name, err)
	}
	encoded := []byte(encryption.MarshalPayload(payload))
	return s.inner.Set(encoded)
}

func (s *secureStream) Remove() error {
	return s.inner.Remove()
}

func (s *secureStream) Path() (string, bool) {
	return s.inner.Path()
}
