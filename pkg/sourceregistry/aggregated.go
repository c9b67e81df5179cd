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
	"sync"

	"github.com/wso2/winpkg-core/pkg/aggregator"
	"github.com/wso2/winpkg-core/pkg/models"
)

// AggregatedSource holds a set of child catalogs and dispatches
// Search to each of them, stamping and stably sorting results via
// pkg/aggregator (§4.5). Its children are not reference-counted:
// Close closes every child catalog, including one that another holder
// still uses.
type AggregatedSource struct {
	mu       sync.RWMutex
	children []Catalog
}

// NewAggregatedSource builds an AggregatedSource over children.
func NewAggregatedSource(children []Catalog) *AggregatedSource {
	return &AggregatedSource{children: children}
}

// Name identifies an aggregated catalog in diagnostics; individual
// matches are stamped with their originating child's name, not this
// one (§4.5).
func (a *AggregatedSource) Name() string { return "AggregatedSource" }

func (a *AggregatedSource) Search(ctx context.Context, request models.SearchRequest) (models.SearchResult, error) {
	a.mu.RLock()
	searchers := make([]aggregator.Searcher, 0, len(a.children))
	for _, c := range a.children {
		searchers = append(searchers, catalogSearcherAdapter{c})
	}
	a.mu.RUnlock()
	return aggregator.Search(ctx, searchers, request)
}

// Close releases every child catalog this aggregate holds.
func (a *AggregatedSource) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	var firstErr error
	for _, c := range a.children {
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	a.children = nil
	return firstErr
}

// catalogSearcherAdapter lets a Catalog satisfy aggregator.Searcher
// without aggregator importing this package.
type catalogSearcherAdapter struct {
	catalog Catalog
}

func (a catalogSearcherAdapter) Name() string { return a.catalog.Name() }

func (a catalogSearcherAdapter) Search(ctx context.Context, request models.SearchRequest) (models.SearchResult, error) {
	return a.catalog.Search(ctx, request)
}
