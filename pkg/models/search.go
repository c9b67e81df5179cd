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

package models

import "github.com/wso2/winpkg-core/pkg/core"

// Query is the optional free-text portion of a SearchRequest, applied
// ORed across the index's default field set (§4.3).
type Query struct {
	Text      string
	MatchType core.MatchType
}

// Filter is one ANDed clause of a SearchRequest.
type Filter struct {
	Field     core.MatchField
	MatchType core.MatchType
	Value     string
}

// SearchRequest describes a query against one or more sources.
type SearchRequest struct {
	Query          *Query
	Filters        []Filter
	MaximumResults int
}

// MatchCriteria records which field and match type produced a
// ResultMatch.
type MatchCriteria struct {
	Field     core.MatchField
	MatchType core.MatchType
}

// PackageHandle resolves to a manifest row while its owning source
// remains connected; it is deliberately opaque outside pkg/index.
type PackageHandle struct {
	PackageRowID int64
	Id           string
	Name         string
}

// ResultMatch is one hit returned by a source search, stamped with its
// origin by the Search Aggregator.
type ResultMatch struct {
	Package    PackageHandle
	Criteria   MatchCriteria
	SourceName string
}

// SearchResult is the outcome of a (possibly aggregated) search.
type SearchResult struct {
	Matches   []ResultMatch
	Truncated bool
}
