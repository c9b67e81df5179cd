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

// installerTypeComparator ranks installers by installer technology.
// When the caller passes an explicit RequestedInstallerType, that alone
// becomes the requirement and preference stays empty; otherwise both
// the requirement and preference lists come from user settings. Only
// one of the two sides is ever populated from user settings, matching
// ManifestComparator.cpp's InstallerTypeComparator::Create: an explicit
// request is a hard requirement, never also a tie-breaking preference.
type installerTypeComparator struct {
	requirement []core.InstallerType
	preference  []core.InstallerType
}

func newInstallerTypeComparator(opts Options) *installerTypeComparator {
	var req, pref []core.InstallerType
	if len(opts.RequestedInstallerType) > 0 {
		req = opts.RequestedInstallerType
	} else {
		req = opts.UserSettings.InstallerTypeRequirement
		pref = opts.UserSettings.InstallerTypePreference
	}
	return &installerTypeComparator{
		requirement: req,
		preference:  pref,
	}
}

func (c *installerTypeComparator) Name() string { return "InstallerTypeComparator" }

// matchesInstallerType reports whether t is either the installer's
// effective or its manifest-declared base installer type, since an
// ARP-reported override of the effective type must not hide a base
// type that still satisfies the requirement/preference.
func matchesInstallerType(i models.Installer, t core.InstallerType) bool {
	return i.EffectiveInstallerType == t || i.BaseInstallerType == t
}

func (c *installerTypeComparator) Applicability(i models.Installer) core.InapplicabilityFlag {
	if len(c.requirement) == 0 {
		return core.InapplicabilityNone
	}
	for _, req := range c.requirement {
		if matchesInstallerType(i, req) {
			return core.InapplicabilityNone
		}
	}
	return core.InapplicabilityInstallerType
}

func (c *installerTypeComparator) ExplainInapplicable(i models.Installer) string {
	return fmt.Sprintf("installer type %s does not satisfy the requirement", i.EffectiveOrBaseType())
}

func (c *installerTypeComparator) IsFirstBetter(first, second models.Installer) CompareResult {
	for _, pref := range c.preference {
		firstMatch := matchesInstallerType(first, pref)
		secondMatch := matchesInstallerType(second, pref)
		if firstMatch == secondMatch {
			continue
		}
		if firstMatch {
			return WeakPositive
		}
		return Negative
	}
	return Negative
}
