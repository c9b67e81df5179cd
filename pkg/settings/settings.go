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
	"path/filepath"

	"github.com/wso2/winpkg-core/pkg/encryption"
)

// Directories groups the three placement roots a Manager writes
// beneath. They are typically three subdirectories of one state root
// directory, but are kept distinct so a deployment can place Secure
// state on a more restrictively permissioned volume.
type Directories struct {
	StandardRoot string
	UserFileRoot string
	SecureRoot   string
}

// Manager opens Stream handles for a given Class and name, applying
// each class's placement policy and, for Secure, its encryption
// provider chain.
type Manager struct {
	dirs       Directories
	encryption *encryption.ProviderManager
}

// NewManager builds a Manager. encryptionManager may be nil if the
// deployment never opens a Secure-class stream.
func NewManager(dirs Directories, encryptionManager *encryption.ProviderManager) *Manager {
	return &Manager{dirs: dirs, encryption: encryptionManager}
}

// Open returns the Stream for name under class.
func (m *Manager) Open(class Class, name string) (Stream, error) {
	switch class {
	case Standard:
		return newFileStream(m.dirs.StandardRoot, name, Standard)
	case UserFile:
		return newFileStream(m.dirs.UserFileRoot, name, UserFile)
	case Secure:
		return newSecureStream(m.dirs.SecureRoot, name, m.encryption)
	default:
		return nil, fmt.Errorf("unknown settings stream class %v", class)
	}
}

// Root returns the placement root for class, for callers that need it
// outside of an individual stream (e.g. to list a directory's entries).
func (m *Manager) Root(class Class) string {
	switch class {
	case Standard:
		return m.dirs.StandardRoot
	case UserFile:
		return m.dirs.UserFileRoot
	case Secure:
		return m.dirs.SecureRoot
	default:
		return ""
	}
}

// DefaultDirectories lays out the three class roots as subdirectories
// of a single state root, matching the teacher's single-rooted
// configuration directory convention.
func DefaultDirectories(stateRoot string) Directories {
	return Directories{
		StandardRoot: filepath.Join(stateRoot, "state"),
		UserFileRoot: filepath.Join(stateRoot, "settings"),
		SecureRoot:   filepath.Join(stateRoot, "secure"),
	}
}
