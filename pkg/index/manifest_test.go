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

package index

import (
	"path/filepath"
	"testing"

	"gotest.tools/v3/assert"

	"github.com/wso2/winpkg-core/pkg/core"
	"github.com/wso2/winpkg-core/pkg/models"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := CreateNew(filepath.Join(t.TempDir(), "index.db"), Options{}, testLogger())
	assert.NilError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func sampleManifest(id, version string) models.Manifest {
	return models.Manifest{
		Id:                  id,
		Name:                "Contoso App",
		Moniker:             "contosoapp",
		Version:             core.ParseVersion(version),
		DefaultLocalization: "en-US",
		Tags:                []string{"productivity"},
		Installers: []models.Installer{
			{
				Architecture:           core.ArchX64,
				EffectiveInstallerType: core.InstallerTypeMsi,
				Scope:                  core.ScopeMachine,
				Locale:                 core.Locale("en-US"),
			},
		},
	}
}

func TestAddManifest_RejectsDuplicateKey(t *testing.T) {
	store := openTestStore(t)

	_, err := store.AddManifest(sampleManifest("Contoso.App", "1.0.0"), "manifests/c/Contoso.App/1.0.0.yaml")
	assert.NilError(t, err)

	_, err = store.AddManifest(sampleManifest("Contoso.App", "1.0.0"), "manifests/c/Contoso.App/1.0.0.yaml")
	assert.ErrorIs(t, err, ErrConflict)
}

func TestAddManifest_RejectsOverlappingArpRange(t *testing.T) {
	store := openTestStore(t)

	first := sampleManifest("Contoso.App", "1.0.0")
	first.ArpVersionRange = core.VersionRange{Min: core.ParseVersion("1.0.0"), Max: core.ParseVersion("1.5.0")}
	_, err := store.AddManifest(first, "")
	assert.NilError(t, err)

	second := sampleManifest("Contoso.App", "1.2.0")
	second.ArpVersionRange = core.VersionRange{Min: core.ParseVersion("1.2.0"), Max: core.ParseVersion("2.0.0")}
	_, err = store.AddManifest(second, "")
	assert.ErrorIs(t, err, ErrArpVersionOverlap)
}

func TestUpdateManifest_ExcludesSelfFromArpOverlapCheck(t *testing.T) {
	store := openTestStore(t)

	m := sampleManifest("Contoso.App", "1.0.0")
	m.ArpVersionRange = core.VersionRange{Min: core.ParseVersion("1.0.0"), Max: core.ParseVersion("1.5.0")}
	_, err := store.AddManifest(m, "")
	assert.NilError(t, err)

	m.Name = "Contoso App Updated"
	changed, err := store.UpdateManifest(m, "")
	assert.NilError(t, err)
	assert.Assert(t, changed)
}

func TestAddOrUpdateManifest_ReportsWhetherCreated(t *testing.T) {
	store := openTestStore(t)

	created, err := store.AddOrUpdateManifest(sampleManifest("Contoso.App", "1.0.0"), "")
	assert.NilError(t, err)
	assert.Assert(t, created)

	updated := sampleManifest("Contoso.App", "1.0.0")
	updated.Name = "Contoso App 2"
	created, err = store.AddOrUpdateManifest(updated, "")
	assert.NilError(t, err)
	assert.Assert(t, !created)
}

func TestRemoveManifest_RemovesDependentRows(t *testing.T) {
	store := openTestStore(t)

	rowID, err := store.AddManifest(sampleManifest("Contoso.App", "1.0.0"), "")
	assert.NilError(t, err)

	tags, err := store.GetMultiPropertyByPrimaryId(rowID, "Tags")
	assert.NilError(t, err)
	assert.Equal(t, len(tags), 1)

	assert.NilError(t, store.RemoveManifestById(rowID))

	_, err = store.GetPropertyByPrimaryId(rowID, "Id")
	assert.ErrorIs(t, err, ErrNotFound)

	tags, err = store.GetMultiPropertyByPrimaryId(rowID, "Tags")
	assert.NilError(t, err)
	assert.Equal(t, len(tags), 0)
}

func TestGetVersionKeysById_SortedDescending(t *testing.T) {
	store := openTestStore(t)

	for _, v := range []string{"1.0.0", "2.0.0", "1.5.0"} {
		_, err := store.AddManifest(sampleManifest("Contoso.App", v), "")
		assert.NilError(t, err)
	}

	keys, err := store.GetVersionKeysById("Contoso.App")
	assert.NilError(t, err)
	assert.Equal(t, len(keys), 3)
	assert.Equal(t, keys[0].Version.String(), "2.0.0")
	assert.Equal(t, keys[2].Version.String(), "1.0.0")
}
