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

// scopeComparator ranks installers by install scope. Preference always
// comes from user settings; requirement comes from the caller's
// RequestedInstallerScope, falling back to the user settings
// requirement. AllowUnknownScope forces preference to track the
// requirement once one is set.
type scopeComparator struct {
	requirement       core.Scope
	preference        core.Scope
	allowUnknownScope bool
}

func newScopeComparator(opts Options) *scopeComparator {
	c := &scopeComparator{
		preference:        opts.UserSettings.InstallScopePreference,
		allowUnknownScope: opts.AllowUnknownScope,
	}
	if opts.RequestedInstallerScope != "" && opts.RequestedInstallerScope != core.ScopeUnknown {
		c.requirement = opts.RequestedInstallerScope
	} else {
		c.requirement = opts.UserSettings.InstallScopeRequirement
	}
	if c.requirement != "" && c.requirement != core.ScopeUnknown && c.allowUnknownScope {
		c.preference = c.requirement
	}
	return c
}

func (c *scopeComparator) Name() string { return "ScopeComparator" }

func (c *scopeComparator) Applicability(i models.Installer) core.InapplicabilityFlag {
	if c.requirement == "" || c.requirement == core.ScopeUnknown {
		return core.InapplicabilityNone
	}
	if i.Scope == c.requirement {
		return core.InapplicabilityNone
	}
	if (i.Scope == core.ScopeUnknown || i.Scope == "") && c.allowUnknownScope {
		return core.InapplicabilityNone
	}
	if core.IsScopeAgnostic(i.EffectiveOrBaseType()) {
		return core.InapplicabilityNone
	}
	return core.InapplicabilityScope
}

func (c *scopeComparator) ExplainInapplicable(i models.Installer) string {
	return fmt.Sprintf("scope %s does not satisfy requirement %s", i.Scope, c.requirement)
}

func (c *scopeComparator) IsFirstBetter(first, second models.Installer) CompareResult {
	if c.preference == "" || c.preference == core.ScopeUnknown {
		return Negative
	}
	if first.Scope != c.preference || second.Scope == c.preference {
		return Negative
	}
	if second.Scope == core.ScopeUnknown || second.Scope == "" {
		return WeakPositive
	}
	return StrongPositive
}
