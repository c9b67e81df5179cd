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

import "errors"

// Index-store specific errors, implementation agnostic.
var (
	// ErrNotFound is returned when a manifest or row is not present.
	ErrNotFound = errors.New("manifest not found")

	// ErrConflict is returned when a manifest with the same (Id, Version, Channel) already exists.
	ErrConflict = errors.New("manifest already exists")

	// ErrArpVersionOverlap is returned when a manifest's ARP version range overlaps
	// another manifest already indexed under the same package identifier.
	ErrArpVersionOverlap = errors.New("ARP version range overlaps an existing manifest")

	// ErrCannotWriteUpLevel is returned when opening ReadWrite against a schema
	// whose version is newer than this implementation understands.
	ErrCannotWriteUpLevel = errors.New("index schema version is newer than this implementation supports for read-write access")

	// ErrDatabaseLocked is returned when the database is locked (SQLite specific).
	ErrDatabaseLocked = errors.New("index database is locked")

	// ErrConsistencyCheckFailed names a failed referential integrity check.
	// CheckConsistency does not return it; it reports violations through
	// its boolean result.
	ErrConsistencyCheckFailed = errors.New("index consistency check failed")
)

// IsConflictError reports whether err is or wraps ErrConflict.
func IsConflictError(err error) bool {
	return errors.Is(err, ErrConflict)
}

// IsNotFoundError reports whether err is or wraps ErrNotFound.
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsArpVersionOverlapError reports whether err is or wraps ErrArpVersionOverlap.
func IsArpVersionOverlapError(err error) bool {
	return errors.Is(err, ErrArpVersionOverlap)
}
