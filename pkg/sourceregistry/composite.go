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

	"github.com/wso2/winpkg-core/pkg/models"
)

// CompositeBehavior selects which side(s) of a CompositeSource a
// search considers.
type CompositeBehavior int

const (
	// AllCatalogs searches both the remote and installed catalogs.
	AllCatalogs CompositeBehavior = iota
	// LocalCatalogs searches only the installed-packages catalog.
	LocalCatalogs
)

// CompositeSource joins a primary remote catalog with the implicit
// installed-packages catalog, producing matches whose PackageHandle
// may be resolvable against either or both. Joining is keyed on
// PackageHandle.Id; §4.4 additionally names ProductCode and
// PackageFamilyName as higher-precedence join keys, available only
// when both sides are Index-Store-backed and exposed through that
// store's per-manifest properties rather than through the generic
// Catalog interface this type operates over.
type CompositeSource struct {
	remote    Catalog
	installed Catalog
	behavior  CompositeBehavior
}

// NewCompositeSource builds a CompositeSource. installed may be nil,
// in which case it behaves as an empty installed-packages catalog.
func NewCompositeSource(remote, installed Catalog, behavior CompositeBehavior) *CompositeSource {
	return &CompositeSource{remote: remote, installed: installed, behavior: behavior}
}

func (c *CompositeSource) Name() string { return "CompositeSource" }

func (c *CompositeSource) Search(ctx context.Context, request models.SearchRequest) (models.SearchResult, error) {
	var installedMatches []models.ResultMatch
	if c.installed != nil {
		result, err := c.installed.Search(ctx, request)
		if err != nil {
			return models.SearchResult{}, err
		}
		installedMatches = result.Matches
	}

	if c.behavior == LocalCatalogs || c.remote == nil {
		return models.SearchResult{Matches: installedMatches}, nil
	}

	remoteResult, err := c.remote.Search(ctx, request)
	if err != nil {
		return models.SearchResult{}, err
	}

	installedByID := make(map[string]bool, len(installedMatches))
	for _, m := range installedMatches {
		installedByID[m.Package.Id] = true
	}

	all := append([]models.ResultMatch{}, remoteResult.Matches...)
	for _, m := range installedMatches {
		if !remoteContainsID(remoteResult.Matches, m.Package.Id) {
			all = append(all, m)
		}
	}
	return models.SearchResult{Matches: all, Truncated: remoteResult.Truncated}, nil
}

func remoteContainsID(matches []models.ResultMatch, id string) bool {
	for _, m := range matches {
		if m.Package.Id == id {
			return true
		}
	}
	return false
}

func (c *CompositeSource) Close() error {
	var firstErr error
	if c.remote != nil {
		if err := c.remote.Close(); err != nil {
			firstErr = err
		}
	}
	if c.installed != nil {
		if err := c.installed.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
