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
	"strings"

	"github.com/wso2/winpkg-core/pkg/models"
)

// ArpEntry is one Add/Remove Programs record as read from the local
// machine's installed-package registry.
type ArpEntry struct {
	ProductCode string
	Name        string
	Version     string
}

// ArpReader enumerates locally installed packages. A platform-specific
// Windows registry reader implements this outside this core package;
// it is injected rather than called directly so the registry and its
// composite catalog stay buildable and testable on any host.
type ArpReader interface {
	Enumerate() ([]ArpEntry, error)
}

// InstalledCatalog is the implicit "installed-packages" catalog
// CompositeSource joins a remote catalog against (§4.4).
type InstalledCatalog struct {
	reader ArpReader
}

// NewInstalledCatalog builds an InstalledCatalog backed by reader.
func NewInstalledCatalog(reader ArpReader) *InstalledCatalog {
	return &InstalledCatalog{reader: reader}
}

func (c *InstalledCatalog) Name() string { return "Installed" }

func (c *InstalledCatalog) Search(_ context.Context, request models.SearchRequest) (models.SearchResult, error) {
	entries, err := c.reader.Enumerate()
	if err != nil {
		return models.SearchResult{}, err
	}

	var matches []models.ResultMatch
	for _, e := range entries {
		if request.Query != nil && !containsFold(e.Name, request.Query.Text) && !containsFold(e.ProductCode, request.Query.Text) {
			continue
		}
		matches = append(matches, models.ResultMatch{
			Package:    models.PackageHandle{Id: e.ProductCode, Name: e.Name},
			SourceName: c.Name(),
		})
	}

	truncated := false
	if request.MaximumResults > 0 && len(matches) > request.MaximumResults {
		matches = matches[:request.MaximumResults]
		truncated = true
	}
	return models.SearchResult{Matches: matches, Truncated: truncated}, nil
}

func (c *InstalledCatalog) Close() error { return nil }

func containsFold(s, substr string) bool {
	if substr == "" {
		return true
	}
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}
