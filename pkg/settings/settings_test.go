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
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wso2/winpkg-core/pkg/encryption"
	"github.com/wso2/winpkg-core/pkg/encryption/aesgcm"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testManager(t *testing.T) *Manager {
	t.Helper()
	root := t.TempDir()
	return NewManager(DefaultDirectories(root), testEncryptionManager(t))
}

func testEncryptionManager(t *testing.T) *encryption.ProviderManager {
	t.Helper()
	keyPath := filepath.Join(t.TempDir(), "key-v1.bin")
	key := make([]byte, aesgcm.AESKeySize)
	for i := range key {
		key[i] = byte(i)
	}
	require.NoError(t, os.WriteFile(keyPath, key, 0o600))

	provider, err := aesgcm.NewAESGCMProvider(
		[]aesgcm.KeyConfig{{Version: "v1", FilePath: keyPath}},
		testLogger(),
	)
	require.NoError(t, err)

	manager, err := encryption.NewProviderManager([]encryption.EncryptionProvider{provider}, testLogger())
	require.NoError(t, err)
	return manager
}

func TestFileStream_GetMissingStreamIsNotAnError(t *testing.T) {
	m := testManager(t)
	stream, err := m.Open(Standard, "sources.json")
	require.NoError(t, err)

	data, ok, err := stream.Get()
	require.NoError(t, err)
	require.False(t, ok)
	require.Nil(t, data)
}

func TestFileStream_SetThenGetRoundTrips(t *testing.T) {
	m := testManager(t)
	stream, err := m.Open(Standard, "sources.json")
	require.NoError(t, err)

	ok, err := stream.Set([]byte(`{"sources":[]}`))
	require.NoError(t, err)
	require.True(t, ok)

	data, found, err := stream.Get()
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, `{"sources":[]}`, string(data))
}

func TestFileStream_SetFailsOnConcurrentModification(t *testing.T) {
	m := testManager(t)

	writer, err := m.Open(Standard, "sources.json")
	require.NoError(t, err)
	_, _, err = writer.Get()
	require.NoError(t, err)

	// A second handle writes first, out from under the first handle's
	// stale "absent" observation.
	other, err := m.Open(Standard, "sources.json")
	require.NoError(t, err)
	ok, err := other.Set([]byte(`{"sources":["a"]}`))
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = writer.Set([]byte(`{"sources":["b"]}`))
	require.NoError(t, err)
	require.False(t, ok, "stale writer must lose the compare-and-swap")

	data, _, err := other.Get()
	require.NoError(t, err)
	require.Equal(t, `{"sources":["a"]}`, string(data))
}

func TestFileStream_RemoveIsIdempotent(t *testing.T) {
	m := testManager(t)
	stream, err := m.Open(Standard, "sources.json")
	require.NoError(t, err)

	require.NoError(t, stream.Remove())

	_, err = stream.Set([]byte("x"))
	require.NoError(t, err)
	require.NoError(t, stream.Remove())
	require.NoError(t, stream.Remove())

	_, ok, err := stream.Get()
	require.NoError(t, err)
	require.False(t, ok)
}

func TestValidateStreamName_RejectsTraversal(t *testing.T) {
	m := testManager(t)
	_, err := m.Open(Standard, "../escape.json")
	require.Error(t, err)

	_, err = m.Open(Standard, "")
	require.Error(t, err)
}

func TestSecureStream_EncryptsOnDisk(t *testing.T) {
	m := testManager(t)
	stream, err := m.Open(Secure, "sources.json")
	require.NoError(t, err)

	ok, err := stream.Set([]byte(`{"sources":["contoso"]}`))
	require.NoError(t, err)
	require.True(t, ok)

	path, _ := stream.Path()
	onDisk, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NotContains(t, string(onDisk), "contoso")

	data, found, err := stream.Get()
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, `{"sources":["contoso"]}`, string(data))
}

func TestSecureStream_RequiresEncryptionManager(t *testing.T) {
	root := t.TempDir()
	m := NewManager(DefaultDirectories(root), nil)
	_, err := m.Open(Secure, "sources.json")
	require.Error(t, err)
}

func TestUserSettingsLoader_DefaultsWhenAbsent(t *testing.T) {
	m := testManager(t)
	loader := NewUserSettingsLoader(m, testLogger())

	settings, err := loader.Load()
	require.NoError(t, err)
	require.Equal(t, DefaultUserSettings(), settings)
}

func TestUserSettingsLoader_SaveThenLoadRoundTrips(t *testing.T) {
	m := testManager(t)
	loader := NewUserSettingsLoader(m, testLogger())

	want := UserSettings{SourceAutoUpdateIntervalInMinutes: 15, VisualProgressBar: "retro"}
	require.NoError(t, loader.Save(want))

	got, err := loader.Load()
	require.NoError(t, err)
	require.Equal(t, want, got)
}

func TestUserSettingsLoader_FallsBackToBackupOnParseFailure(t *testing.T) {
	m := testManager(t)
	loader := NewUserSettingsLoader(m, testLogger())

	good := UserSettings{SourceAutoUpdateIntervalInMinutes: 30, VisualProgressBar: "rainbow"}
	require.NoError(t, loader.Save(good))

	primary, err := m.Open(UserFile, userSettingsPrimaryName)
	require.NoError(t, err)
	_, _, err = primary.Get()
	require.NoError(t, err)
	_, err = primary.Set([]byte("{not valid json"))
	require.NoError(t, err)

	got, err := loader.Load()
	require.NoError(t, err)
	require.Equal(t, good, got)
}

func TestUserSettingsLoader_TolerateCommentedJSON(t *testing.T) {
	m := testManager(t)
	loader := NewUserSettingsLoader(m, testLogger())

	primary, err := m.Open(UserFile, userSettingsPrimaryName)
	require.NoError(t, err)
	_, _, err = primary.Get()
	require.NoError(t, err)
	_, err = primary.Set([]byte(`{
		// how many minutes between background source refreshes
		"source.autoUpdateIntervalInMinutes": 42,
		"visual.progressBar": "accent"
	}`))
	require.NoError(t, err)

	got, err := loader.Load()
	require.NoError(t, err)
	require.Equal(t, 42, got.SourceAutoUpdateIntervalInMinutes)
}
