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
	"fmt"
)

// DependencyRef is one dependency edge: the depending manifest's row id
// and the normalised name of the package it depends on. Scanned via
// sqlx's struct-tag reflection.
type DependencyRef struct {
	ManifestRowID  int64  `db:"manifest_row_id"`
	NormalizedName string `db:"normalized_name"`
}

// GetDependenciesByManifestRowId returns the set of packages rowID
// depends on.
func (s *Store) GetDependenciesByManifestRowId(rowID int64) ([]DependencyRef, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var refs []DependencyRef
	if err := s.db.Select(&refs, `SELECT manifest_row_id, normalized_name FROM dependencies WHERE manifest_row_id = ?`, rowID); err != nil {
		return nil, fmt.Errorf("reading dependencies: %w", err)
	}
	return refs, nil
}

// GetDependentsById returns every manifest that declares a dependency
// matching packageId's normalised name.
func (s *Store) GetDependentsById(packageId string) ([]DependencyRef, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	normalized := normalizedName(packageId)
	var refs []DependencyRef
	if err := s.db.Select(&refs, `SELECT manifest_row_id, normalized_name FROM dependencies WHERE normalized_name = ?`, normalized); err != nil {
		return nil, fmt.Errorf("reading dependents: %w", err)
	}
	return refs, nil
}

// SetMetadataByManifestId attaches a side-band key-value pair to a
// manifest row, upserting on key.
func (s *Store) SetMetadataByManifestId(rowID int64, key, value string) error {
	return s.withSavepoint("set_metadata", func(tx *sql.Tx) error {
		_, err := tx.Exec(
			`INSERT INTO manifest_metadata (manifest_row_id, key, value) VALUES (?, ?, ?)
			 ON CONFLICT(manifest_row_id, key) DO UPDATE SET value = excluded.value`,
			rowID, key, value,
		)
		if err != nil {
			return fmt.Errorf("setting manifest metadata: %w", err)
		}
		return nil
	})
}

// GetMetadataByManifestId returns all side-band metadata attached to a
// manifest row.
func (s *Store) GetMetadataByManifestId(rowID int64) (map[string]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.Query(`SELECT key, value FROM manifest_metadata WHERE manifest_row_id = ?`, rowID)
	if err != nil {
		return nil, fmt.Errorf("reading manifest metadata: %w", err)
	}
	defer rows.Close()

	metadata := make(map[string]string)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("scanning metadata row: %w", err)
		}
		metadata[key] = value
	}
	return metadata, rows.Err()
}

// SetProperty sets a store-level index property, such as
// PackageUpdateTrackingBaseTime or IntermediateFileOutputPath.
func (s *Store) SetProperty(property, value string) error {
	return s.withSavepoint("set_property", func(tx *sql.Tx) error {
		_, err := tx.Exec(
			`INSERT INTO index_properties (key, value) VALUES (?, ?)
			 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
			property, value,
		)
		if err != nil {
			return fmt.Errorf("setting index property %s: %w", property, err)
		}
		return nil
	})
}

// GetProperty reads a store-level index property previously set with
// SetProperty.
func (s *Store) GetProperty(property string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var value string
	err := s.db.QueryRow(`SELECT value FROM index_properties WHERE key = ?`, property).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("reading index property %s: %w", property, err)
	}
	return value, true, nil
}

// PrepareForPackaging drops data unneeded for publishing an index, such
// as internal side-band metadata and store-level properties.
func (s *Store) PrepareForPackaging() error {
	if err := s.withSavepoint("prepare_for_packaging", func(tx *sql.Tx) error {
		if _, err := tx.Exec(`DELETE FROM manifest_metadata`); err != nil {
			return fmt.Errorf("dropping manifest metadata: %w", err)
		}
		if _, err := tx.Exec(`DELETE FROM index_properties`); err != nil {
			return fmt.Errorf("dropping index properties: %w", err)
		}
		return nil
	}); err != nil {
		return err
	}

	// SQLite refuses VACUUM inside a transaction, so it runs after commit.
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.db.Exec(`VACUUM`); err != nil {
		return fmt.Errorf("vacuuming index: %w", err)
	}
	return nil
}

// CheckConsistency performs a referential integrity check through
// SQLite's foreign_key_check: every child row must reference a live
// parent row. Violations are reported as false, not as an error, and
// each one found is passed to the optional logFn; an error is returned
// only when the check itself cannot run.
func (s *Store) CheckConsistency(logFn func(string)) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.Query(`PRAGMA foreign_key_check`)
	if err != nil {
		return false, fmt.Errorf("running foreign key check: %w", err)
	}
	defer rows.Close()

	ok := true
	cols, err := rows.Columns()
	if err != nil {
		return false, fmt.Errorf("reading foreign key check columns: %w", err)
	}
	for rows.Next() {
		ok = false
		scanDest := make([]any, len(cols))
		scanVals := make([]sql.NullString, len(cols))
		for i := range scanVals {
			scanDest[i] = &scanVals[i]
		}
		if err := rows.Scan(scanDest...); err != nil {
			return false, fmt.Errorf("scanning foreign key violation row: %w", err)
		}
		if logFn != nil {
			logFn(fmt.Sprintf("foreign key violation: %v", scanVals))
		}
	}
	if err := rows.Err(); err != nil {
		return false, err
	}
	return ok, nil
}
