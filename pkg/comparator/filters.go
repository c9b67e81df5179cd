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

// osVersionFilter rejects an installer whose MinOSVersion exceeds the
// running OS version.
type osVersionFilter struct {
	currentOS core.Version
}

func newOSVersionFilter(opts Options) *osVersionFilter {
	return &osVersionFilter{currentOS: opts.CurrentOSVersion}
}

func (f *osVersionFilter) Name() string { return "OSVersionFilter" }

func (f *osVersionFilter) Applicability(i models.Installer) core.InapplicabilityFlag {
	if i.MinOSVersion.IsEmpty() {
		return core.InapplicabilityNone
	}
	if f.currentOS.LessThan(i.MinOSVersion) {
		return core.InapplicabilityOSVersion
	}
	return core.InapplicabilityNone
}

func (f *osVersionFilter) ExplainInapplicable(i models.Installer) string {
	return fmt.Sprintf("requires OS version %s or later", i.MinOSVersion)
}

// portableInstallFilter rejects the Portable installer type on OS
// versions earlier than 10.0.18362.
type portableInstallFilter struct {
	currentOS core.Version
}

func newPortableInstallFilter(opts Options) *portableInstallFilter {
	return &portableInstallFilter{currentOS: opts.CurrentOSVersion}
}

func (f *portableInstallFilter) Name() string { return "PortableInstallFilter" }

func (f *portableInstallFilter) Applicability(i models.Installer) core.InapplicabilityFlag {
	if i.EffectiveOrBaseType() != core.InstallerTypePortable {
		return core.InapplicabilityNone
	}
	if f.currentOS.LessThan(portableMinOSVersion) {
		return core.InapplicabilityOSVersion
	}
	return core.InapplicabilityNone
}

func (f *portableInstallFilter) ExplainInapplicable(models.Installer) string {
	return "Portable installers require OS version 10.0.18362 or later"
}

// installedScopeFilter rejects an installer whose Scope conflicts with
// an already-installed scope. Only constructed when
// CurrentlyInstalledScope is set and not Unknown.
type installedScopeFilter struct {
	installedScope core.Scope
}

func newInstalledScopeFilter(opts Options) *installedScopeFilter {
	if opts.CurrentlyInstalledScope == "" || opts.CurrentlyInstalledScope == core.ScopeUnknown {
		return nil
	}
	return &installedScopeFilter{installedScope: opts.CurrentlyInstalledScope}
}

func (f *installedScopeFilter) Name() string { return "InstalledScopeFilter" }

func (f *installedScopeFilter) Applicability(i models.Installer) core.InapplicabilityFlag {
	if i.Scope == core.ScopeUnknown || i.Scope == "" {
		return core.InapplicabilityNone
	}
	if core.IsScopeAgnostic(i.EffectiveOrBaseType()) {
		return core.InapplicabilityNone
	}
	if i.Scope != f.installedScope {
		return core.InapplicabilityInstalledScope
	}
	return core.InapplicabilityNone
}

func (f *installedScopeFilter) ExplainInapplicable(i models.Installer) string {
	return fmt.Sprintf("scope %s conflicts with installed scope %s", i.Scope, f.installedScope)
}

// marketFilter rejects installers whose allowed-markets list excludes
// the current market, or whose excluded-markets list includes it.
type marketFilter struct {
	currentMarket string
}

func newMarketFilter(opts Options) *marketFilter {
	return &marketFilter{currentMarket: opts.CurrentMarket}
}

func (f *marketFilter) Name() string { return "MarketFilter" }

func (f *marketFilter) Applicability(i models.Installer) core.InapplicabilityFlag {
	if f.currentMarket == "" {
		return core.InapplicabilityNone
	}
	if len(i.Markets.Allowed) > 0 {
		if !contains(i.Markets.Allowed, f.currentMarket) {
			return core.InapplicabilityMarket
		}
		return core.InapplicabilityNone
	}
	if len(i.Markets.Excluded) > 0 && contains(i.Markets.Excluded, f.currentMarket) {
		return core.InapplicabilityMarket
	}
	return core.InapplicabilityNone
}

func (f *marketFilter) ExplainInapplicable(models.Installer) string {
	return fmt.Sprintf("not available in market %s", f.currentMarket)
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}

// installedTypeFilter rejects an installer whose effective type and
// every AppsAndFeaturesEntries type are incompatible with an
// already-installed installer type. Only constructed when
// CurrentlyInstalledType is set.
type installedTypeFilter struct {
	installedType core.InstallerType
}

func newInstalledTypeFilter(opts Options) *installedTypeFilter {
	if opts.CurrentlyInstalledType == "" || opts.CurrentlyInstalledType == core.InstallerTypeUnknown {
		return nil
	}
	return &installedTypeFilter{installedType: opts.CurrentlyInstalledType}
}

func (f *installedTypeFilter) Name() string { return "InstalledTypeFilter" }

func (f *installedTypeFilter) Applicability(i models.Installer) core.InapplicabilityFlag {
	if i.EffectiveOrBaseType() == f.installedType {
		return core.InapplicabilityNone
	}
	for _, entry := range i.AppsAndFeaturesEntries {
		if entry.InstallerType == f.installedType {
			return core.InapplicabilityNone
		}
	}
	return core.InapplicabilityInstalledType
}

func (f *installedTypeFilter) ExplainInapplicable(i models.Installer) string {
	return fmt.Sprintf("installer type %s is incompatible with installed type %s", i.EffectiveOrBaseType(), f.installedType)
}
