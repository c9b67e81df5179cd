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

// Package models holds the value types shared by the index store,
// source registry and comparator: Manifest, Installer, SourceDetails,
// SearchRequest and ResultMatch.
package models

import "github.com/wso2/winpkg-core/pkg/core"

// Manifest is a package's metadata at a given Version/Channel: its
// identity, candidate installers, and ARP-version declaration. Manifest
// and Installer have value semantics and are freely cloneable.
type Manifest struct {
	Id                  string
	Name                string
	Moniker             string
	Version             core.Version
	Channel             string
	DefaultLocalization string
	Installers          []Installer
	ArpVersionRange     core.VersionRange
	RelativePath        string
	Tags                []string
	Commands            []string
	PackageFamilyNames  []string
	Dependencies        []string
}

// AppsAndFeaturesEntry mirrors one Add/Remove Programs registration an
// installer may leave behind; InstallerType here can override the
// manifest-declared EffectiveInstallerType for compatibility checks.
type AppsAndFeaturesEntry struct {
	InstallerType core.InstallerType
	ProductCode   string
}

// Markets constrains an installer's applicability to OS region.
type Markets struct {
	Allowed  []string
	Excluded []string
}

// Installer is a single candidate installation artifact within a
// Manifest.
type Installer struct {
	Architecture             core.Architecture
	EffectiveInstallerType   core.InstallerType
	BaseInstallerType        core.InstallerType
	Scope                    core.Scope
	Locale                   core.Locale
	MinOSVersion             core.Version
	UnsupportedOSArchitectures []core.Architecture
	Markets                  Markets
	AppsAndFeaturesEntries   []AppsAndFeaturesEntry
}

// EffectiveOrBaseType returns the EffectiveInstallerType when set,
// falling back to BaseInstallerType; ARP entries may further override
// this for compatibility checks (see InstalledTypeFilter).
func (i Installer) EffectiveOrBaseType() core.InstallerType {
	if i.EffectiveInstallerType != core.InstallerTypeUnknown {
		return i.EffectiveInstallerType
	}
	return i.BaseInstallerType
}

// VersionKey identifies one (Version, Channel) pair of a package, as
// returned by the index store's GetVersionKeysById.
type VersionKey struct {
	Version core.Version
	Channel string
}
