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

// Package sourceregistry manages the durable set of package sources
// and materialises their catalogs (spec §4.4): a Secure settings
// stream holds the user-configured SourceDetails list, including each
// source's LastUpdateTime, and a policy gate masks and injects entries
// on every list(). No registry operation reads or writes the Standard
// tracking stream that trackingStream opens.
package sourceregistry

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/wso2/winpkg-core/pkg/core"
	"github.com/wso2/winpkg-core/pkg/models"
	"github.com/wso2/winpkg-core/pkg/policygate"
	"github.com/wso2/winpkg-core/pkg/settings"
)

const sourceListStreamName = "sources.json"
const sourceTrackingStreamName = "source_tracking.json"

// ProgressFunc receives human-readable progress messages during a
// long-running add/update/remove. A nil ProgressFunc is valid and
// discards messages.
type ProgressFunc func(message string)

func report(progress ProgressFunc, format string, args ...any) {
	if progress == nil {
		return
	}
	progress(fmt.Sprintf(format, args...))
}

// Factory implements the type-specific behaviour for one SourceDetails.Type.
type Factory interface {
	// Create returns a connected catalog for an already-persisted source,
	// reading from stateDir without performing network I/O.
	Create(details models.SourceDetails, stateDir string) (Catalog, error)

	// Add performs the type's initial data fetch into stateDir.
	Add(details models.SourceDetails, stateDir string, progress ProgressFunc) error

	// Update refreshes stateDir from the source's origin. changed is
	// false when the refresh determined nothing new was available.
	Update(details models.SourceDetails, stateDir string, progress ProgressFunc) (changed bool, err error)

	// Remove performs type-specific cleanup (e.g. uninstalling a
	// per-source MSIX package) before the registry deletes stateDir.
	Remove(details models.SourceDetails, stateDir string, progress ProgressFunc) error
}

// Catalog is a connected, searchable source. A Catalog is not
// reference-counted: the first Close releases its underlying index for
// every holder. Close is idempotent.
type Catalog interface {
	Name() string
	Search(ctx context.Context, request models.SearchRequest) (models.SearchResult, error)
	Close() error
}

// Registry owns the durable source list, gates mutation through policy,
// and dispatches to type-specific Factory implementations.
type Registry struct {
	settings  *settings.Manager
	gate      *policygate.Gate
	factories map[string]Factory
	stateRoot string
	predefined []models.SourceDetails
	logger    *slog.Logger

	mu sync.Mutex
}

// Options configures a Registry.
type Options struct {
	// StateRoot is the directory under which each source gets a
	// per-source state subdirectory (<StateRoot>/<Identifier>/...).
	StateRoot string
	// Predefined lists the built-in sources (default repository,
	// store) always present unless masked or excluded by policy.
	Predefined []models.SourceDetails
}

// New constructs a Registry.
func New(opts Options, settingsManager *settings.Manager, gate *policygate.Gate, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		settings:   settingsManager,
		gate:       gate,
		factories:  make(map[string]Factory),
		stateRoot:  opts.StateRoot,
		predefined: opts.Predefined,
		logger:     logger,
	}
}

// RegisterFactory associates sourceType (SourceDetails.Type) with a Factory.
func (r *Registry) RegisterFactory(sourceType string, factory Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[sourceType] = factory
}

func (r *Registry) factoryFor(sourceType string) (Factory, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	f, ok := r.factories[sourceType]
	if !ok {
		return nil, core.NewError(core.KindValidation, "sourceregistry", fmt.Sprintf("unknown source type %q", sourceType))
	}
	return f, nil
}

// stateDirFor returns the per-source state directory, keyed by
// Identifier so a rename doesn't orphan on-disk state.
func (r *Registry) stateDirFor(details models.SourceDetails) string {
	return filepath.Join(r.stateRoot, details.Identifier)
}

func (r *Registry) userSourcesStream() (settings.Stream, error) {
	return r.settings.Open(settings.Secure, sourceListStreamName)
}

func (r *Registry) trackingStream() (settings.Stream, error) {
	return r.settings.Open(settings.Standard, sourceTrackingStreamName)
}
