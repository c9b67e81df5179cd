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

package sourceregistry

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wso2/winpkg-core/pkg/core"
	"github.com/wso2/winpkg-core/pkg/encryption"
	"github.com/wso2/winpkg-core/pkg/encryption/aesgcm"
	"github.com/wso2/winpkg-core/pkg/models"
	"github.com/wso2/winpkg-core/pkg/policygate"
	"github.com/wso2/winpkg-core/pkg/settings"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
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

// fakeFactory records calls and lets tests control Add/Update outcomes.
type fakeFactory struct {
	addErr     error
	updateErr  error
	updated    bool
	addCalls   int
	removeCalls int
}

func (f *fakeFactory) Create(details models.SourceDetails, stateDir string) (Catalog, error) {
	return &fakeCatalog{name: details.Name}, nil
}

func (f *fakeFactory) Add(details models.SourceDetails, stateDir string, progress ProgressFunc) error {
	f.addCalls++
	return f.addErr
}

func (f *fakeFactory) Update(details models.SourceDetails, stateDir string, progress ProgressFunc) (bool, error) {
	return f.updated, f.updateErr
}

func (f *fakeFactory) Remove(details models.SourceDetails, stateDir string, progress ProgressFunc) error {
	f.removeCalls++
	return nil
}

type fakeCatalog struct {
	name string
}

func (c *fakeCatalog) Name() string { return c.name }

func (c *fakeCatalog) Search(context.Context, models.SearchRequest) (models.SearchResult, error) {
	return models.SearchResult{}, nil
}

func (c *fakeCatalog) Close() error { return nil }

func newTestRegistry(t *testing.T, gate *policygate.Gate) (*Registry, *fakeFactory) {
	t.Helper()
	root := t.TempDir()
	mgr := settings.NewManager(settings.DefaultDirectories(root), testEncryptionManager(t))
	reg := New(Options{StateRoot: t.TempDir()}, mgr, gate, testLogger())
	factory := &fakeFactory{}
	reg.RegisterFactory("Test.Type", factory)
	return reg, factory
}

func TestAdd_BlockedByDisableSourceConfigurationPolicy(t *testing.T) {
	store := policygate.NewMapStore()
	store.DWORDs[string(policygate.PolicyDisableSourceConfiguration)] = 1
	gate := policygate.New(store, testLogger())

	reg, factory := newTestRegistry(t, gate)

	err := reg.Add(models.SourceDetails{Name: "T", Type: "Test.Type", Arg: "https://example/msix"}, nil)
	require.Error(t, err)
	kind, ok := core.KindOf(err)
	require.True(t, ok)
	require.Equal(t, core.KindPolicyBlocked, kind)
	require.Equal(t, 0, factory.addCalls)

	sources, err := reg.List()
	require.NoError(t, err)
	require.Empty(t, sources)
}

func TestAdd_RejectsInsecureURL(t *testing.T) {
	reg, factory := newTestRegistry(t, nil)

	err := reg.Add(models.SourceDetails{Name: "T", Type: "Test.Type", Arg: "http://example/msix"}, nil)
	require.Error(t, err)
	kind, ok := core.KindOf(err)
	require.True(t, ok)
	require.Equal(t, core.KindIntegrity, kind)
	require.Equal(t, 0, factory.addCalls)
}

func TestAdd_PersistsOnSuccess(t *testing.T) {
	reg, factory := newTestRegistry(t, nil)

	err := reg.Add(models.SourceDetails{Name: "T", Type: "Test.Type", Arg: "https://example/msix"}, nil)
	require.NoError(t, err)
	require.Equal(t, 1, factory.addCalls)

	sources, err := reg.List()
	require.NoError(t, err)
	require.Len(t, sources, 1)
	require.Equal(t, "T", sources[0].Name)
	require.NotEmpty(t, sources[0].Identifier)
	require.Equal(t, models.OriginUser, sources[0].Origin)
}

func TestAdd_RejectsDuplicateName(t *testing.T) {
	reg, _ := newTestRegistry(t, nil)
	require.NoError(t, reg.Add(models.SourceDetails{Name: "T", Type: "Test.Type", Arg: "https://example/msix"}, nil))

	err := reg.Add(models.SourceDetails{Name: "T", Type: "Test.Type", Arg: "https://example/other"}, nil)
	require.Error(t, err)
}

func TestRemove_UnknownSourceIsIdempotentSuccess(t *testing.T) {
	reg, _ := newTestRegistry(t, nil)
	require.NoError(t, reg.Remove("does-not-exist", nil))
}

func TestRemove_InvokesFactoryAndDeletesEntry(t *testing.T) {
	reg, factory := newTestRegistry(t, nil)
	require.NoError(t, reg.Add(models.SourceDetails{Name: "T", Type: "Test.Type", Arg: "https://example/msix"}, nil))

	require.NoError(t, reg.Remove("T", nil))
	require.Equal(t, 1, factory.removeCalls)

	sources, err := reg.List()
	require.NoError(t, err)
	require.Empty(t, sources)
}

func TestList_PolicySourceMasksPredefinedOfSameName(t *testing.T) {
	store := policygate.NewMapStore()
	store.Lists[string(policygate.PolicyAdditionalSources)] = []string{
		`{"Name":"winget","Arg":"https://policy.example/index","Type":"Microsoft.PreIndexed","Data":"","Identifier":"policy-winget"}`,
	}
	gate := policygate.New(store, testLogger())

	root := t.TempDir()
	mgr := settings.NewManager(settings.DefaultDirectories(root), testEncryptionManager(t))
	reg := New(Options{StateRoot: t.TempDir(), Predefined: DefaultSources()}, mgr, gate, testLogger())

	sources, err := reg.List()
	require.NoError(t, err)

	var winget models.SourceDetails
	for _, s := range sources {
		if s.Name == "winget" {
			winget = s
		}
	}
	require.Equal(t, models.OriginPolicy, winget.Origin)
	require.Equal(t, "policy-winget", winget.Identifier)
}

func TestList_ExcludeDefaultSourcesPolicyDropsPredefined(t *testing.T) {
	store := policygate.NewMapStore()
	store.DWORDs[string(policygate.PolicyExcludeDefaultSources)] = 1
	gate := policygate.New(store, testLogger())

	root := t.TempDir()
	mgr := settings.NewManager(settings.DefaultDirectories(root), testEncryptionManager(t))
	reg := New(Options{StateRoot: t.TempDir(), Predefined: DefaultSources()}, mgr, gate, testLogger())

	sources, err := reg.List()
	require.NoError(t, err)
	require.Empty(t, sources)
}

func TestList_NoPolicyLeavesPredefinedSourcesIntact(t *testing.T) {
	root := t.TempDir()
	mgr := settings.NewManager(settings.DefaultDirectories(root), testEncryptionManager(t))
	reg := New(Options{StateRoot: t.TempDir(), Predefined: DefaultSources()}, mgr, nil, testLogger())

	sources, err := reg.List()
	require.NoError(t, err)
	require.Len(t, sources, len(DefaultSources()))
}

func TestOpen_EmptyNameReturnsAggregatedSource(t *testing.T) {
	reg, _ := newTestRegistry(t, nil)
	require.NoError(t, reg.Add(models.SourceDetails{Name: "T", Type: "Test.Type", Arg: "https://example/msix"}, nil))

	catalog, err := reg.Open("")
	require.NoError(t, err)
	_, ok := catalog.(*AggregatedSource)
	require.True(t, ok)
}
