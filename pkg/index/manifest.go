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
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/wso2/winpkg-core/pkg/core"
	"github.com/wso2/winpkg-core/pkg/models"
)

// AddManifest inserts manifest, failing with ErrConflict if
// (Id, Version, Channel) already exists, or ErrArpVersionOverlap if its
// ARP range overlaps another manifest under the same Id.
func (s *Store) AddManifest(manifest models.Manifest, relativePath string) (int64, error) {
	var rowID int64
	err := s.withSavepoint("add_manifest", func(tx *sql.Tx) error {
		if err := checkArpOverlap(tx, manifest, ""); err != nil {
			return err
		}

		res, err := tx.Exec(
			`INSERT INTO manifests (id, name, moniker, version, channel, default_locale, arp_min_version, arp_max_version, relative_path)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			manifest.Id, manifest.Name, manifest.Moniker, manifest.Version.String(), manifest.Channel,
			manifest.DefaultLocalization, manifest.ArpVersionRange.Min.String(), manifest.ArpVersionRange.Max.String(),
			relativePath,
		)
		if err != nil {
			if isUniqueConstraintError(err) {
				return ErrConflict
			}
			return fmt.Errorf("inserting manifest: %w", err)
		}

		rowID, err = res.LastInsertId()
		if err != nil {
			return fmt.Errorf("reading inserted manifest row id: %w", err)
		}

		return insertManifestChildren(tx, rowID, manifest)
	})
	return rowID, err
}

// UpdateManifest modifies the row for the matching (Id, Version,
// Channel), returning whether any data actually changed.
func (s *Store) UpdateManifest(manifest models.Manifest, relativePath string) (bool, error) {
	var changed bool
	err := s.withSavepoint("update_manifest", func(tx *sql.Tx) error {
		rowID, existing, err := findManifestRow(tx, manifest.Id, manifest.Version.String(), manifest.Channel)
		if err != nil {
			return err
		}

		if err := checkArpOverlap(tx, manifest, manifest.Version.String()+"\x00"+manifest.Channel); err != nil {
			return err
		}

		if manifestsEqual(existing, manifest) {
			return nil
		}
		changed = true

		if _, err := tx.Exec(
			`UPDATE manifests SET name = ?, moniker = ?, default_locale = ?, arp_min_version = ?, arp_max_version = ?, relative_path = ?, updated_at = CURRENT_TIMESTAMP
			 WHERE rowid = ?`,
			manifest.Name, manifest.Moniker, manifest.DefaultLocalization,
			manifest.ArpVersionRange.Min.String(), manifest.ArpVersionRange.Max.String(), relativePath, rowID,
		); err != nil {
			return fmt.Errorf("updating manifest: %w", err)
		}

		if err := deleteManifestChildren(tx, rowID); err != nil {
			return err
		}
		return insertManifestChildren(tx, rowID, manifest)
	})
	return changed, err
}

// AddOrUpdateManifest upserts manifest, returning whether the row was
// newly created.
func (s *Store) AddOrUpdateManifest(manifest models.Manifest, relativePath string) (bool, error) {
	s.mu.Lock()
	_, _, err := findManifestRowQuerier(s.db, manifest.Id, manifest.Version.String(), manifest.Channel)
	s.mu.Unlock()

	if errors.Is(err, ErrNotFound) {
		_, addErr := s.AddManifest(manifest, relativePath)
		return true, addErr
	}
	if err != nil {
		return false, err
	}
	_, updateErr := s.UpdateManifest(manifest, relativePath)
	return false, updateErr
}

// RemoveManifest removes the row matching manifest's (Id, Version,
// Channel) and all dependent rows.
func (s *Store) RemoveManifest(manifest models.Manifest) error {
	return s.withSavepoint("remove_manifest", func(tx *sql.Tx) error {
		rowID, _, err := findManifestRow(tx, manifest.Id, manifest.Version.String(), manifest.Channel)
		if err != nil {
			return err
		}
		return removeManifestRow(tx, rowID)
	})
}

// RemoveManifestById removes the manifest with the given opaque row id.
func (s *Store) RemoveManifestById(id int64) error {
	return s.withSavepoint("remove_manifest_by_id", func(tx *sql.Tx) error {
		return removeManifestRow(tx, id)
	})
}

func removeManifestRow(tx *sql.Tx, rowID int64) error {
	res, err := tx.Exec(`DELETE FROM manifests WHERE rowid = ?`, rowID)
	if err != nil {
		return fmt.Errorf("deleting manifest: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("reading delete row count: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// querier is satisfied by both *sql.DB and *sql.Tx, letting read helpers
// run either inside or outside an explicit transaction.
type querier interface {
	Query(query string, args ...any) (*sql.Rows, error)
	QueryRow(query string, args ...any) *sql.Row
}

func findManifestRow(tx *sql.Tx, id, version, channel string) (int64, models.Manifest, error) {
	return findManifestRowQuerier(tx, id, version, channel)
}

func findManifestRowQuerier(db querier, id, version, channel string) (int64, models.Manifest, error) {
	row := db.QueryRow(
		`SELECT rowid, id, name, moniker, version, channel, default_locale, arp_min_version, arp_max_version, relative_path
		 FROM manifests WHERE id = ? AND version = ? AND channel = ?`,
		id, version, channel,
	)
	var rowID int64
	var m models.Manifest
	var versionRaw, arpMin, arpMax, relPath string
	if err := row.Scan(&rowID, &m.Id, &m.Name, &m.Moniker, &versionRaw, &m.Channel, &m.DefaultLocalization, &arpMin, &arpMax, &relPath); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, models.Manifest{}, ErrNotFound
		}
		return 0, models.Manifest{}, fmt.Errorf("querying manifest: %w", err)
	}
	m.Version = core.ParseVersion(versionRaw)
	m.ArpVersionRange = core.VersionRange{Min: core.ParseVersion(arpMin), Max: core.ParseVersion(arpMax)}
	m.RelativePath = relPath
	return rowID, m, nil
}

func manifestsEqual(a, b models.Manifest) bool {
	return a.Name == b.Name && a.Moniker == b.Moniker && a.DefaultLocalization == b.DefaultLocalization &&
		a.ArpVersionRange.Min.String() == b.ArpVersionRange.Min.String() &&
		a.ArpVersionRange.Max.String() == b.ArpVersionRange.Max.String() &&
		len(a.Installers) == len(b.Installers)
}

// checkArpOverlap enforces §4.3's ARP-version validation: if manifest
// declares a non-empty ARP range, no other manifest under the same Id
// may declare an overlapping range. excludeKey, when non-empty, is the
// raw "version\x00channel" of the row being updated, which is excluded
// from the check.
func checkArpOverlap(tx *sql.Tx, manifest models.Manifest, excludeKey string) error {
	if manifest.ArpVersionRange.IsEmpty() {
		return nil
	}

	rows, err := tx.Query(
		`SELECT version, channel, arp_min_version, arp_max_version FROM manifests WHERE id = ?`,
		manifest.Id,
	)
	if err != nil {
		return fmt.Errorf("querying ARP ranges for overlap check: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var version, channel, arpMin, arpMax string
		if err := rows.Scan(&version, &channel, &arpMin, &arpMax); err != nil {
			return fmt.Errorf("scanning ARP range row: %w", err)
		}
		if excludeKey != "" && version+"\x00"+channel == excludeKey {
			continue
		}
		other := core.VersionRange{Min: core.ParseVersion(arpMin), Max: core.ParseVersion(arpMax)}
		if manifest.ArpVersionRange.Overlaps(other) {
			return ErrArpVersionOverlap
		}
	}
	return rows.Err()
}

func insertManifestChildren(tx *sql.Tx, manifestRowID int64, manifest models.Manifest) error {
	for _, installer := range manifest.Installers {
		res, err := tx.Exec(
			`INSERT INTO installers (manifest_row_id, architecture, effective_installer_type, base_installer_type, scope, locale, min_os_version, unsupported_os_architectures, markets_allowed, markets_excluded)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			manifestRowID, string(installer.Architecture), string(installer.EffectiveInstallerType), string(installer.BaseInstallerType),
			string(installer.Scope), string(installer.Locale), installer.MinOSVersion.String(),
			joinArchitectures(installer.UnsupportedOSArchitectures), strings.Join(installer.Markets.Allowed, ","), strings.Join(installer.Markets.Excluded, ","),
		)
		if err != nil {
			return fmt.Errorf("inserting installer: %w", err)
		}
		installerRowID, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("reading installer row id: %w", err)
		}
		for _, entry := range installer.AppsAndFeaturesEntries {
			if _, err := tx.Exec(
				`INSERT INTO apps_and_features_entries (installer_row_id, installer_type, product_code) VALUES (?, ?, ?)`,
				installerRowID, string(entry.InstallerType), entry.ProductCode,
			); err != nil {
				return fmt.Errorf("inserting apps-and-features entry: %w", err)
			}
		}
	}

	for _, tag := range manifest.Tags {
		if _, err := tx.Exec(`INSERT INTO tags (manifest_row_id, tag) VALUES (?, ?)`, manifestRowID, tag); err != nil {
			return fmt.Errorf("inserting tag: %w", err)
		}
	}
	for _, cmd := range manifest.Commands {
		if _, err := tx.Exec(`INSERT INTO commands (manifest_row_id, command) VALUES (?, ?)`, manifestRowID, cmd); err != nil {
			return fmt.Errorf("inserting command: %w", err)
		}
	}
	for _, pfn := range manifest.PackageFamilyNames {
		if _, err := tx.Exec(`INSERT INTO package_family_names (manifest_row_id, package_family_name) VALUES (?, ?)`, manifestRowID, pfn); err != nil {
			return fmt.Errorf("inserting package family name: %w", err)
		}
	}
	for _, dep := range manifest.Dependencies {
		if _, err := tx.Exec(`INSERT INTO dependencies (manifest_row_id, normalized_name) VALUES (?, ?)`, manifestRowID, normalizedName(dep)); err != nil {
			return fmt.Errorf("inserting dependency: %w", err)
		}
	}
	return nil
}

func deleteManifestChildren(tx *sql.Tx, manifestRowID int64) error {
	for _, table := range []string{"installers", "tags", "commands", "package_family_names", "dependencies"} {
		if _, err := tx.Exec(fmt.Sprintf(`DELETE FROM %s WHERE manifest_row_id = ?`, table), manifestRowID); err != nil {
			return fmt.Errorf("clearing %s for manifest %d: %w", table, manifestRowID, err)
		}
	}
	return nil
}

func joinArchitectures(archs []core.Architecture) string {
	parts := make([]string, len(archs))
	for i, a := range archs {
		parts[i] = string(a)
	}
	return strings.Join(parts, ",")
}

func isUniqueConstraintError(err error) bool {
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
