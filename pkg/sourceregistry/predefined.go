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

import "github.com/wso2/winpkg-core/pkg/models"

// DefaultSources returns the built-in sources present unless masked or
// excluded by policy: the default community repository and the store
// source, matching winget-cli's WellKnownSource set.
func DefaultSources() []models.SourceDetails {
	return []models.SourceDetails{
		{
			Name:       "winget",
			Type:       "Microsoft.PreIndexed",
			Arg:        "https://cdn.winget.microsoft.com/cache",
			Identifier: "wingetcommunity",
			Origin:     models.OriginPredefined,
		},
		{
			Name:       "msstore",
			Type:       "Microsoft.Rest",
			Arg:        "https://storeedgefd.dsx.mp.microsoft.com/v9.0",
			Identifier: "msstore",
			Origin:     models.OriginPredefined,
		},
	}
}
