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

package comparator

import (
	"fmt"

	"github.com/wso2/winpkg-core/pkg/core"
	"github.com/wso2/winpkg-core/pkg/models"
)

// localeComparator ranks installers by locale fit. Requirement
// precedence is RequestedInstallerLocale, then PreviousUserIntentLocale
// (which behaves as a requirement derived from install-time intent, so
// it sets isInstalledLocale), then - only when no CurrentlyInstalledLocale
// is present - the user settings requirement. Preference precedence is
// CurrentlyInstalledLocale (also sets isInstalledLocale), then the user
// settings preference.
type localeComparator struct {
	requirement       []core.Locale
	isInstalledLocale bool
	preference        []core.Locale
}

func newLocaleComparator(opts Options) *localeComparator {
	c := &localeComparator{}

	switch {
	case opts.RequestedInstallerLocale != "":
		c.requirement = []core.Locale{opts.RequestedInstallerLocale}
	case opts.PreviousUserIntentLocale != "":
		c.requirement = []core.Locale{opts.PreviousUserIntentLocale}
		c.isInstalledLocale = true
	case opts.CurrentlyInstalledLocale == "" && opts.UserSettings.InstallLocaleRequirement != "":
		c.requirement = []core.Locale{opts.UserSettings.InstallLocaleRequirement}
	}

	switch {
	case opts.CurrentlyInstalledLocale != "":
		c.preference = []core.Locale{opts.CurrentlyInstalledLocale}
		c.isInstalledLocale = true
	case opts.UserSettings.InstallLocalePreference != "":
		c.preference = []core.Locale{opts.UserSettings.InstallLocalePreference}
	}

	return c
}

func (c *localeComparator) Name() string { return "LocaleComparator" }

func distanceOrUnknown(pref core.Locale, installerLocale core.Locale) float64 {
	if installerLocale == "" {
		return core.UnknownLanguageDistanceScore
	}
	return pref.DistanceScore(installerLocale)
}

func (c *localeComparator) Applicability(i models.Installer) core.InapplicabilityFlag {
	if len(c.requirement) > 0 {
		for _, req := range c.requirement {
			if req.DistanceScore(i.Locale) >= core.MinimumDistanceScoreAsPerfectMatch {
				return core.InapplicabilityNone
			}
		}
		return core.InapplicabilityLocale
	}

	if c.isInstalledLocale && len(c.preference) > 0 {
		if i.Locale == "" {
			return core.InapplicabilityNone
		}
		for _, pref := range c.preference {
			if pref.DistanceScore(i.Locale) >= core.MinimumDistanceScoreAsCompatibleMatch {
				return core.InapplicabilityNone
			}
		}
		return core.InapplicabilityInstalledLocale
	}

	return core.InapplicabilityNone
}

func (c *localeComparator) ExplainInapplicable(i models.Installer) string {
	return fmt.Sprintf("locale %s does not satisfy the requirement", i.Locale)
}

// IsFirstBetter walks the preference list in order; the first locale
// where either installer scores a compatible-or-better match decides
// the comparison outright (strong). If no preference locale ever
// reaches the compatible threshold, fall back to a weak preference for
// an installer with no declared locale over one whose declared locale
// matched no preference.
func (c *localeComparator) IsFirstBetter(first, second models.Installer) CompareResult {
	for _, pref := range c.preference {
		firstScore := distanceOrUnknown(pref, first.Locale)
		secondScore := distanceOrUnknown(pref, second.Locale)

		if firstScore >= core.MinimumDistanceScoreAsCompatibleMatch || secondScore >= core.MinimumDistanceScoreAsCompatibleMatch {
			if firstScore > secondScore {
				return StrongPositive
			}
			return Negative
		}
	}

	if first.Locale == "" && second.Locale != "" {
		return WeakPositive
	}
	return Negative
}
