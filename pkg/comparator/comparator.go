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

// Package comparator is the installer-selection engine: given a
// Manifest and an Options bundle, it picks the single best Installer
// under machine- and caller-supplied constraints, or explains why none
// qualified. This is the core of the core (see spec §4.6).
package comparator

import (
	"log/slog"
	"strconv"

	"github.com/wso2/winpkg-core/pkg/core"
	"github.com/wso2/winpkg-core/pkg/metrics"
	"github.com/wso2/winpkg-core/pkg/models"
)

// CompareResult is the outcome of a Comparator's IsFirstBetter in one
// direction.
type CompareResult int

const (
	// Negative means the comparator found no preference in this
	// direction (a tie, or the other installer is preferred).
	Negative CompareResult = iota
	// WeakPositive establishes priority only when no Strong result
	// exists anywhere in the pipeline.
	WeakPositive
	// StrongPositive is a non-overridable quality difference; it wins
	// regardless of lower-priority comparators.
	StrongPositive
)

// Filter evaluates whether an Installer is applicable at all. A
// non-None flag means the installer is rejected outright.
type Filter interface {
	Name() string
	Applicability(i models.Installer) core.InapplicabilityFlag
	ExplainInapplicable(i models.Installer) string
}

// Comparator is also a Filter (§4.6: "each comparator is also a
// filter") and additionally ranks two applicable installers against
// each other.
type Comparator interface {
	Filter
	IsFirstBetter(first, second models.Installer) CompareResult
}

// Options bundles the caller- and policy-supplied constraints that
// parameterize filter/comparator construction (spec §4.6 table).
type Options struct {
	AllowedArchitectures   []core.Architecture
	SkipApplicabilityCheck bool

	RequestedInstallerType []core.InstallerType
	CurrentlyInstalledType core.InstallerType

	RequestedInstallerScope core.Scope
	CurrentlyInstalledScope core.Scope
	AllowUnknownScope       bool

	RequestedInstallerLocale core.Locale
	PreviousUserIntentLocale core.Locale
	CurrentlyInstalledLocale core.Locale

	// UserSettings carries the fallbacks applied when the corresponding
	// Requested*/CurrentlyInstalled* field above is unset, grounded on
	// winget's UserSettings.InstallerTypePreference/-Requirement,
	// InstallScopePreference/-Requirement, InstallLocalePreference/
	// -Requirement.
	UserSettings UserSettings

	// CurrentMarket is the running OS region, used by MarketFilter.
	CurrentMarket string

	// CurrentOSVersion is the running OS version, used by
	// OSVersionFilter and PortableInstallFilter.
	CurrentOSVersion core.Version
}

// UserSettings is the subset of persisted user preferences the
// comparator consults as a fallback when an Options field is unset.
type UserSettings struct {
	InstallerTypePreference []core.InstallerType
	InstallerTypeRequirement []core.InstallerType
	InstallScopePreference   core.Scope
	InstallScopeRequirement  core.Scope
	InstallLocalePreference  core.Locale
	InstallLocaleRequirement core.Locale
}

// portableMinOSVersion is the minimum OS version that supports the
// Portable installer type (10.0.18362, per spec §4.6).
var portableMinOSVersion = core.ParseVersion("10.0.18362")

// ManifestComparator runs the fixed filter and comparator pipeline of
// spec §4.6.
type ManifestComparator struct {
	filters     []Filter
	comparators []Comparator
	logger      *slog.Logger
}

// New builds a ManifestComparator for the given Options. Filters are
// added in the order OSVersionFilter, PortableInstallFilter,
// InstalledScopeFilter, MarketFilter, InstalledTypeFilter; comparators
// (also appended to the filter list as they are constructed) are added
// in the order LocaleComparator, ScopeComparator,
// MachineArchitectureComparator, InstallerTypeComparator.
func New(opts Options, logger *slog.Logger) *ManifestComparator {
	if logger == nil {
		logger = slog.Default()
	}
	mc := &ManifestComparator{logger: logger}

	mc.filters = append(mc.filters, newOSVersionFilter(opts))
	mc.filters = append(mc.filters, newPortableInstallFilter(opts))
	if f := newInstalledScopeFilter(opts); f != nil {
		mc.filters = append(mc.filters, f)
	}
	mc.filters = append(mc.filters, newMarketFilter(opts))
	if f := newInstalledTypeFilter(opts); f != nil {
		mc.filters = append(mc.filters, f)
	}

	mc.addComparator(newLocaleComparator(opts))
	mc.addComparator(newScopeComparator(opts))
	mc.addComparator(newMachineArchitectureComparator(opts))
	mc.addComparator(newInstallerTypeComparator(opts))

	return mc
}

func (mc *ManifestComparator) addComparator(c Comparator) {
	mc.comparators = append(mc.comparators, c)
	mc.filters = append(mc.filters, c)
}

// IsApplicable ORs the inapplicability flags of every filter (and
// comparator-as-filter) for the given installer.
func (mc *ManifestComparator) IsApplicable(i models.Installer) core.InapplicabilityFlag {
	var flags core.InapplicabilityFlag
	for _, f := range mc.filters {
		flags |= f.Applicability(i)
	}
	return flags
}

// IsFirstBetter runs every comparator in both directions. A
// StrongPositive in one direction wins immediately; a StrongPositive in
// *both* directions is an invariant violation and panics (spec §7 / §9:
// internal errors are panic-equivalent, never silently resolved). Absent
// a strong result, the first comparator (in pipeline order) returning a
// WeakPositive in either direction decides; otherwise the two installers
// are equivalent and first is kept.
func (mc *ManifestComparator) IsFirstBetter(first, second models.Installer) bool {
	var weakDecided bool
	var weakResult bool

	for _, c := range mc.comparators {
		forward := c.IsFirstBetter(first, second)
		reverse := c.IsFirstBetter(second, first)

		if forward != Negative && reverse != Negative {
			mc.logger.Error("comparator returned non-negative in both directions",
				slog.String("comparator", c.Name()))
			panic("comparator invariant violated: both directions non-negative for " + c.Name())
		}

		if forward == StrongPositive {
			return true
		}
		if reverse == StrongPositive {
			return false
		}

		if !weakDecided {
			if forward == WeakPositive {
				weakDecided = true
				weakResult = true
			} else if reverse == WeakPositive {
				weakDecided = true
				weakResult = false
			}
		}
	}

	if weakDecided {
		return weakResult
	}
	return false
}

// SelectionResult is the outcome of GetPreferredInstaller.
type SelectionResult struct {
	Installer        *models.Installer
	Inapplicabilities []core.InapplicabilityFlag
}

// GetPreferredInstaller implements the selection algorithm of spec
// §4.6: partition installers into applicable candidates and
// inapplicability reasons, then fold IsFirstBetter over the candidates
// to find a maximal element.
func (mc *ManifestComparator) GetPreferredInstaller(manifest models.Manifest) SelectionResult {
	metrics.Init()

	var candidates []models.Installer
	var inapplicabilities []core.InapplicabilityFlag

	for _, installer := range manifest.Installers {
		flags := mc.IsApplicable(installer)
		if flags == core.InapplicabilityNone {
			candidates = append(candidates, installer)
		} else {
			inapplicabilities = append(inapplicabilities, flags)
			for _, reason := range inapplicabilityReasons(flags) {
				metrics.ComparatorInapplicableTotal.WithLabelValues(reason).Inc()
			}
			mc.logger.Info("installer rejected",
				slog.String("manifest_id", manifest.Id),
				slog.Any("installer_architecture", installer.Architecture),
				slog.Any("inapplicability_flags", flags))
		}
	}

	var result *models.Installer
	for idx := range candidates {
		c := candidates[idx]
		if result == nil || mc.IsFirstBetter(c, *result) {
			result = &c
		}
	}

	if result != nil {
		metrics.ComparatorSelectionsTotal.WithLabelValues(string(result.EffectiveOrBaseType())).Inc()
	}

	return SelectionResult{Installer: result, Inapplicabilities: inapplicabilities}
}

// inapplicabilityReasons expands a (possibly multi-bit) flag value into
// its individual reason labels, since one installer can be rejected for
// more than one reason at once.
func inapplicabilityReasons(flags core.InapplicabilityFlag) []string {
	named := []struct {
		flag core.InapplicabilityFlag
		name string
	}{
		{core.InapplicabilityOSVersion, "os_version"},
		{core.InapplicabilityMachineArchitecture, "machine_architecture"},
		{core.InapplicabilityInstallerType, "installer_type"},
		{core.InapplicabilityInstalledType, "installed_type"},
		{core.InapplicabilityInstalledScope, "installed_scope"},
		{core.InapplicabilityScope, "scope"},
		{core.InapplicabilityLocale, "locale"},
		{core.InapplicabilityInstalledLocale, "installed_locale"},
		{core.InapplicabilityMarket, "market"},
	}

	var reasons []string
	for _, n := range named {
		if flags.Has(n.flag) {
			reasons = append(reasons, n.name)
		}
	}
	if len(reasons) == 0 {
		reasons = append(reasons, "unknown_"+strconv.FormatUint(uint64(flags), 10))
	}
	return reasons
}
