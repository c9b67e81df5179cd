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
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"gotest.tools/v3/assert"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, nil))
}

func TestCreateNew_InitialisesCurrentSchemaVersion(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "index.db")

	store, err := CreateNew(dbPath, Options{}, testLogger())
	assert.NilError(t, err)
	defer store.Close()

	version, err := store.schemaVersion()
	assert.NilError(t, err)
	assert.Equal(t, version, CurrentSchemaVersion)
}

func TestOpen_ReadWriteUpLevelFails(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "index.db")

	store, err := CreateNew(dbPath, Options{}, testLogger())
	assert.NilError(t, err)
	_, execErr := store.db.Exec("PRAGMA user_version = 99")
	assert.NilError(t, execErr)
	assert.NilError(t, store.Close())

	_, err = Open(dbPath, ReadWrite, testLogger())
	assert.ErrorIs(t, err, ErrCannotWriteUpLevel)
}

func TestOpen_ReadOnlyToleratesHigherVersion(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "index.db")

	store, err := CreateNew(dbPath, Options{}, testLogger())
	assert.NilError(t, err)
	_, execErr := store.db.Exec("PRAGMA user_version = 99")
	assert.NilError(t, execErr)
	assert.NilError(t, store.Close())

	readStore, err := Open(dbPath, ReadOnly, testLogger())
	assert.NilError(t, err)
	defer readStore.Close()
}

func TestCopyFrom_ClonesDatabase(t *testing.T) {
	srcPath := filepath.Join(t.TempDir(), "src.db")
	src, err := CreateNew(srcPath, Options{}, testLogger())
	assert.NilError(t, err)
	defer src.Close()

	dstPath := filepath.Join(t.TempDir(), "dst.db")
	dst, err := CopyFrom(dstPath, src)
	assert.NilError(t, err)
	defer dst.Close()

	version, err := dst.schemaVersion()
	assert.NilError(t, err)
	assert.Equal(t, version, CurrentSchemaVersion)
}

func TestNormalizeName(t *testing.T) {
	store, err := CreateNew(filepath.Join(t.TempDir(), "index.db"), Options{}, testLogger())
	assert.NilError(t, err)
	defer store.Close()

	assert.Equal(t, store.NormalizeName("  Contoso   App  ", "Contoso"), "contoso app|contoso")
	assert.Equal(t, store.NormalizeName("Contoso App", ""), "contoso app")
}
