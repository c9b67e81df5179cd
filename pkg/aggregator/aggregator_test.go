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

package aggregator

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wso2/winpkg-core/pkg/core"
	"github.com/wso2/winpkg-core/pkg/models"
)

type fakeSource struct {
	name    string
	matches []models.ResultMatch
}

func (f *fakeSource) Name() string { return f.name }

func (f *fakeSource) Search(context.Context, models.SearchRequest) (models.SearchResult, error) {
	return models.SearchResult{Matches: f.matches}, nil
}

func TestSearch_OrderingAndStamping(t *testing.T) {
	src1 := &fakeSource{name: "contoso", matches: []models.ResultMatch{
		{Package: models.PackageHandle{Id: "b"}, Criteria: models.MatchCriteria{Field: core.MatchFieldName, MatchType: core.MatchTypeSubstring}},
	}}
	src2 := &fakeSource{name: "fabrikam", matches: []models.ResultMatch{
		{Package: models.PackageHandle{Id: "a"}, Criteria: models.MatchCriteria{Field: core.MatchFieldID, MatchType: core.MatchTypeExact}},
	}}

	result, err := Search(context.Background(), []Searcher{src1, src2}, models.SearchRequest{})
	require.NoError(t, err)
	require.Len(t, result.Matches, 2)

	// Exact beats Substring regardless of source dispatch order.
	assert.Equal(t, "a", result.Matches[0].Package.Id)
	assert.Equal(t, "fabrikam", result.Matches[0].SourceName)
	assert.Equal(t, "b", result.Matches[1].Package.Id)
	assert.False(t, result.Truncated)
}

func TestSearch_Truncation(t *testing.T) {
	src := &fakeSource{name: "contoso"}
	for i := 0; i < 5; i++ {
		src.matches = append(src.matches, models.ResultMatch{
			Criteria: models.MatchCriteria{MatchType: core.MatchTypeExact},
		})
	}

	result, err := Search(context.Background(), []Searcher{src}, models.SearchRequest{MaximumResults: 3})
	require.NoError(t, err)
	assert.Len(t, result.Matches, 3)
	assert.True(t, result.Truncated)
}

func TestSortResultMatches_StableOnFullTie(t *testing.T) {
	matches := []models.ResultMatch{
		{Package: models.PackageHandle{Id: "first"}, Criteria: models.MatchCriteria{MatchType: core.MatchTypeExact, Field: core.MatchFieldID}},
		{Package: models.PackageHandle{Id: "second"}, Criteria: models.MatchCriteria{MatchType: core.MatchTypeExact, Field: core.MatchFieldID}},
	}
	SortResultMatches(matches)
	assert.Equal(t, "first", matches[0].Package.Id)
	assert.Equal(t, "second", matches[1].Package.Id)
}
