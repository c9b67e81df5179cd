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

// Package index is the embedded relational Index Store: a versioned
// SQLite database of manifests, keyed by package identity, with a
// structured query evaluator and forward-only schema migration.
package index

import (
	"database/sql"
	_ "embed"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"

	"github.com/wso2/winpkg-core/pkg/core"
	"github.com/wso2/winpkg-core/pkg/metrics"
	"github.com/wso2/winpkg-core/pkg/models"
)

//go:embed schema.sql
var schemaSQL string

// CurrentSchemaVersion is the schema version this implementation writes
// and requires for ReadWrite access. Opening ReadWrite against a higher
// version fails with ErrCannotWriteUpLevel; ReadOnly tolerates any
// version down to EarliestSupportedSchemaVersion.
const CurrentSchemaVersion = 1

// EarliestSupportedSchemaVersion is the oldest schema this
// implementation can still read.
const EarliestSupportedSchemaVersion = 1

// Disposition controls how Open treats the on-disk schema version.
type Disposition int

const (
	// ReadOnly tolerates any schema version >= EarliestSupportedSchemaVersion.
	ReadOnly Disposition = iota
	// ReadWrite requires the schema to equal CurrentSchemaVersion, migrating
	// forward if it is older and failing if it is newer.
	ReadWrite
)

// Options reserves room for future store-open tuning knobs (busy
// timeout, page cache size) without changing Open's signature.
type Options struct{}

// Store is a single open connection to an index database. Per §4.3, a
// single per-store mutex serialises all mutation; reads take the same
// mutex since the underlying SQLite connection is not assumed
// reentrant under the single-connection pool that openSQLite sets up.
type Store struct {
	db          *sqlx.DB
	path        string
	disposition Disposition
	mu          sync.Mutex
	logger      *slog.Logger
}

// CreateNew initialises a fresh schema at path, overwriting any
// existing file, and returns a ReadWrite Store.
func CreateNew(path string, _ Options, logger *slog.Logger) (*Store, error) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("removing existing index at %s: %w", path, err)
	}

	db, err := openSQLite(path)
	if err != nil {
		return nil, err
	}

	s := &Store{db: db, path: path, disposition: ReadWrite, logger: logger}
	if _, err := s.db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating index schema: %w", err)
	}
	if _, err := s.db.Exec(fmt.Sprintf("PRAGMA user_version = %d", CurrentSchemaVersion)); err != nil {
		db.Close()
		return nil, fmt.Errorf("stamping schema version: %w", err)
	}

	logger.Info("index store created", slog.String("path", path), slog.Int("schema_version", CurrentSchemaVersion))
	return s, nil
}

// Open opens the index database at path under the given disposition.
func Open(path string, disposition Disposition, logger *slog.Logger) (*Store, error) {
	db, err := openSQLite(path)
	if err != nil {
		return nil, err
	}

	s := &Store{db: db, path: path, disposition: disposition, logger: logger}

	version, err := s.schemaVersion()
	if err != nil {
		db.Close()
		return nil, err
	}

	if version == 0 {
		if disposition != ReadWrite {
			db.Close()
			return nil, fmt.Errorf("opening uninitialised index read-only: %w", ErrNotFound)
		}
		if _, err := s.db.Exec(schemaSQL); err != nil {
			db.Close()
			return nil, fmt.Errorf("initialising index schema: %w", err)
		}
		if _, err := s.db.Exec(fmt.Sprintf("PRAGMA user_version = %d", CurrentSchemaVersion)); err != nil {
			db.Close()
			return nil, fmt.Errorf("stamping schema version: %w", err)
		}
		return s, nil
	}

	if version < EarliestSupportedSchemaVersion {
		db.Close()
		return nil, fmt.Errorf("index schema version %d predates the earliest supported version %d", version, EarliestSupportedSchemaVersion)
	}

	if disposition == ReadWrite {
		if version > CurrentSchemaVersion {
			db.Close()
			return nil, fmt.Errorf("%w: index is at version %d, this build writes version %d", ErrCannotWriteUpLevel, version, CurrentSchemaVersion)
		}
		if version < CurrentSchemaVersion {
			if err := s.migrateTo(CurrentSchemaVersion); err != nil {
				db.Close()
				return nil, err
			}
		}
	}

	return s, nil
}

// CopyFrom clones source's on-disk database to path and opens it
// ReadWrite.
func CopyFrom(path string, source *Store) (*Store, error) {
	source.mu.Lock()
	defer source.mu.Unlock()

	in, err := os.Open(source.path)
	if err != nil {
		return nil, fmt.Errorf("opening source index for copy: %w", err)
	}
	defer in.Close()

	out, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("creating index copy destination: %w", err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return nil, fmt.Errorf("copying index data: %w", err)
	}
	if err := out.Close(); err != nil {
		return nil, fmt.Errorf("closing index copy destination: %w", err)
	}

	return Open(path, ReadWrite, source.logger)
}

func openSQLite(path string) (*sqlx.DB, error) {
	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL&_foreign_keys=ON", path)
	db, err := sqlx.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening index database: %w", err)
	}
	// A single connection avoids "database is locked" under SQLite's
	// single-writer model; all serialisation beyond that is handled by
	// Store.mu, matching the teacher's storage pool sizing.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)
	return db, nil
}

func (s *Store) schemaVersion() (int, error) {
	var version int
	if err := s.db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return 0, fmt.Errorf("reading schema version: %w", err)
	}
	return version, nil
}

// migrateTo runs forward-only migrations up to target, one savepoint
// per step; a failing step leaves the store unchanged.
func (s *Store) migrateTo(target int) error {
	version, err := s.schemaVersion()
	if err != nil {
		return err
	}

	for version < target {
		next := version + 1
		if err := s.withSavepoint(fmt.Sprintf("migrate_%d", next), func(tx *sql.Tx) error {
			migration, ok := migrations[next]
			if !ok {
				return fmt.Errorf("no migration registered for schema version %d", next)
			}
			if err := migration(tx); err != nil {
				return err
			}
			_, err := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", next))
			return err
		}); err != nil {
			return fmt.Errorf("migrating index schema from %d to %d: %w", version, next, err)
		}
		s.logger.Info("index schema migrated", slog.Int("from", version), slog.Int("to", next))
		version = next
	}
	return nil
}

// migrations maps a target schema version to the function that
// migrates the store from version-1 to version. Schema version 1 is
// created directly from schema.sql, so this registry starts empty;
// future versions append here, never rewriting an existing entry.
var migrations = map[int]func(tx *sql.Tx) error{}

// withSavepoint wraps fn in a SQL SAVEPOINT so that a failing mutating
// operation leaves the store byte-for-byte unchanged, per §4.3's
// concurrency contract. Store.mu serialises all callers.
func (s *Store) withSavepoint(name string, fn func(tx *sql.Tx) error) (err error) {
	metrics.Init()
	start := time.Now()
	status := "ok"
	defer func() {
		metrics.IndexOperationDurationSeconds.WithLabelValues(name).Observe(time.Since(start).Seconds())
		metrics.IndexOperationsTotal.WithLabelValues(name, status).Inc()
	}()

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, beginErr := s.db.Begin()
	if beginErr != nil {
		status = "error"
		return fmt.Errorf("beginning transaction: %w", beginErr)
	}

	if _, execErr := tx.Exec("SAVEPOINT " + name); execErr != nil {
		tx.Rollback()
		status = "error"
		return fmt.Errorf("creating savepoint %s: %w", name, execErr)
	}

	if fnErr := fn(tx); fnErr != nil {
		status = "error"
		if _, rbErr := tx.Exec("ROLLBACK TO SAVEPOINT " + name); rbErr != nil {
			tx.Rollback()
			return fmt.Errorf("%w (rollback to savepoint also failed: %v)", fnErr, rbErr)
		}
		tx.Commit()
		return fnErr
	}

	if _, execErr := tx.Exec("RELEASE SAVEPOINT " + name); execErr != nil {
		tx.Rollback()
		status = "error"
		return fmt.Errorf("releasing savepoint %s: %w", name, execErr)
	}
	if commitErr := tx.Commit(); commitErr != nil {
		status = "error"
		return commitErr
	}
	return nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	s.logger.Info("closing index store", slog.String("path", s.path))
	return s.db.Close()
}

// normalizedName lower-cases and collapses internal whitespace, the
// rule NormalizeName exposes publicly and dependency resolution relies
// on internally.
func normalizedName(name string) string {
	fields := strings.Fields(strings.ToLower(name))
	return strings.Join(fields, " ")
}

// NormalizeName publicly exposes the identifier-normalisation rule
// used internally for dependency matching.
func (s *Store) NormalizeName(name, publisher string) string {
	if publisher == "" {
		return normalizedName(name)
	}
	return normalizedName(name) + "|" + normalizedName(publisher)
}
