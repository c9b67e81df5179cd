/*
 * Copyright (c) 2025, WSO2 LLC. (https://www.wso2.com).
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

// Package aggregator fans a SearchRequest out across a set of named
// sources, tags each match with its origin, stably sorts by match
// quality, and optionally truncates (spec §4.5).
package aggregator

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/wso2/winpkg-core/pkg/constants"
	"github.com/wso2/winpkg-core/pkg/metrics"
	"github.com/wso2/winpkg-core/pkg/models"
)

// Searcher is the capability every source (PreIndexed, Rest,
// Aggregated, Composite, Installed) exposes to the aggregator.
type Searcher interface {
	Name() string
	Search(ctx context.Context, request models.SearchRequest) (models.SearchResult, error)
}

// Search dispatches request to every source concurrently on its own
// goroutine, concatenates results (in source-slice order, so ties
// sort deterministically) stamping SourceName on every match, sorts
// them per SortResultMatches, and truncates to request.MaximumResults
// if set. The first source error in slice order is returned; partial
// results from every source are discarded, since a caller cannot act
// on a result set whose completeness is unknown.
func Search(ctx context.Context, sources []Searcher, request models.SearchRequest) (models.SearchResult, error) {
	metrics.Init()

	perSource := make([][]models.ResultMatch, len(sources))
	errs := make([]error, len(sources))

	var wg sync.WaitGroup
	wg.Add(len(sources))
	for i, src := range sources {
		go func(i int, src Searcher) {
			defer wg.Done()

			sourceCtx, cancel := context.WithTimeout(ctx, constants.DefaultSourceSearchTimeout*time.Second)
			defer cancel()

			start := time.Now()
			result, err := src.Search(sourceCtx, request)
			metrics.SourceSearchDurationSeconds.WithLabelValues(src.Name()).Observe(time.Since(start).Seconds())
			if err != nil {
				errs[i] = err
				return
			}

			metrics.SourceSearchResultsTotal.WithLabelValues(src.Name()).Add(float64(len(result.Matches)))
			matches := make([]models.ResultMatch, len(result.Matches))
			for j, m := range result.Matches {
				m.SourceName = src.Name()
				matches[j] = m
			}
			perSource[i] = matches
		}(i, src)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return models.SearchResult{}, err
		}
	}

	var all []models.ResultMatch
	for _, matches := range perSource {
		all = append(all, matches...)
	}

	SortResultMatches(all)

	truncated := false
	if request.MaximumResults > 0 && len(all) > request.MaximumResults {
		all = all[:request.MaximumResults]
		truncated = true
	}

	return models.SearchResult{Matches: all, Truncated: truncated}, nil
}

// SortResultMatches stably sorts matches first by MatchType (Exact <
// CaseInsensitive < StartsWith < Fuzzy < Substring < FuzzySubstring <
// Wildcard), then by MatchField (Id < Name < Moniker < Command < Tag),
// preserving insertion order for any remaining tie. MatchType and
// MatchField are already defined as ordered integer enums (pkg/core),
// so this is a direct stable sort on their numeric values.
func SortResultMatches(matches []models.ResultMatch) {
	sort.SliceStable(matches, func(i, j int) bool {
		a, b := matches[i].Criteria, matches[j].Criteria
		if a.MatchType != b.MatchType {
			return a.MatchType < b.MatchType
		}
		return a.Field < b.Field
	})
}
