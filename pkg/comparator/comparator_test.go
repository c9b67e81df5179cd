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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gtassert "gotest.tools/v3/assert"
	"gotest.tools/v3/assert/cmp"

	"github.com/wso2/winpkg-core/pkg/core"
	"github.com/wso2/winpkg-core/pkg/models"
)

func installerWithArch(a core.Architecture) models.Installer {
	return models.Installer{Architecture: a, EffectiveInstallerType: core.InstallerTypeExe}
}

// TestArchitecturePreference mirrors spec scenario 4: installers
// [x64, x86, arm64], AllowedArchitectures=[arm64, Unknown], system x64.
// arm64 must be selected as the strong match on the first allowed entry.
func TestArchitecturePreference(t *testing.T) {
	manifest := models.Manifest{
		Id: "Contoso.App",
		Installers: []models.Installer{
			installerWithArch(core.ArchX64),
			installerWithArch(core.ArchX86),
			installerWithArch(core.ArchArm64),
		},
	}

	opts := Options{
		AllowedArchitectures: []core.Architecture{core.ArchArm64, core.ArchUnknown},
		SkipApplicabilityCheck: true,
	}
	mc := New(opts, nil)
	result := mc.GetPreferredInstaller(manifest)

	require.NotNil(t, result.Installer)
	assert.Equal(t, core.ArchArm64, result.Installer.Architecture)
}

// TestLocaleRequirementUnmet mirrors spec scenario 5: installers
// [en-US, de-DE], RequestedInstallerLocale="fr-FR". Selection must be
// None with one Locale inapplicability per installer.
func TestLocaleRequirementUnmet(t *testing.T) {
	manifest := models.Manifest{
		Id: "Contoso.App",
		Installers: []models.Installer{
			{Architecture: core.ArchX64, Locale: "en-US"},
			{Architecture: core.ArchX64, Locale: "de-DE"},
		},
	}

	opts := Options{
		RequestedInstallerLocale: "fr-FR",
		SkipApplicabilityCheck:   true,
	}
	mc := New(opts, nil)
	result := mc.GetPreferredInstaller(manifest)

	assert.Nil(t, result.Installer)
	require.Len(t, result.Inapplicabilities, 2)
	for _, flags := range result.Inapplicabilities {
		assert.True(t, flags.Has(core.InapplicabilityLocale))
	}
}

func TestIsFirstBetter_Asymmetric(t *testing.T) {
	opts := Options{
		UserSettings: UserSettings{InstallScopePreference: core.ScopeMachine},
	}
	mc := New(opts, nil)
	a := models.Installer{Architecture: core.ArchX64, Scope: core.ScopeMachine}
	b := models.Installer{Architecture: core.ArchX64, Scope: core.ScopeUser}

	firstBetter := mc.IsFirstBetter(a, b)
	secondBetter := mc.IsFirstBetter(b, a)

	gtassert.Check(t, cmp.Equal(firstBetter, true))
	gtassert.Check(t, cmp.Equal(secondBetter, false))
}

func TestBothStrongPanics(t *testing.T) {
	// A comparator pair that both resolve StrongPositive in opposing
	// directions is legitimate (asymmetric); what must panic is a
	// single comparator resolving StrongPositive in *both* directions
	// for the same pair, which indicates a comparator bug per spec §9.
	buggy := &buggyComparator{}
	mc := &ManifestComparator{comparators: []Comparator{buggy}}

	gtassert.Assert(t, func() (ok bool) {
		defer func() {
			if r := recover(); r != nil {
				ok = true
			}
		}()
		mc.IsFirstBetter(models.Installer{}, models.Installer{})
		return false
	}())
}

// TestInstallerTypeComparator_RequestedTypeIsNotAlsoAPreference mirrors
// ManifestComparator.cpp's InstallerTypeComparator::Create: an explicit
// RequestedInstallerType is a hard requirement only, never also a
// tie-breaking preference pulled from user settings.
func TestInstallerTypeComparator_RequestedTypeIsNotAlsoAPreference(t *testing.T) {
	opts := Options{
		RequestedInstallerType: []core.InstallerType{core.InstallerTypeMsi},
		UserSettings: UserSettings{
			InstallerTypePreference: []core.InstallerType{core.InstallerTypeExe},
		},
	}
	c := newInstallerTypeComparator(opts)

	assert.Equal(t, []core.InstallerType{core.InstallerTypeMsi}, c.requirement)
	assert.Empty(t, c.preference)

	first := models.Installer{EffectiveInstallerType: core.InstallerTypeExe}
	second := models.Installer{EffectiveInstallerType: core.InstallerTypeMsi}
	assert.Equal(t, Negative, c.IsFirstBetter(first, second))
}

// TestInstallerTypeComparator_MatchesBaseTypeWhenEffectiveOverridden
// mirrors ManifestComparator.cpp's IsApplicable/IsFirstBetter, which
// check EffectiveInstallerType and BaseInstallerType independently: an
// ARP-overridden effective type must not hide a base type that still
// satisfies the requirement or preference.
func TestInstallerTypeComparator_MatchesBaseTypeWhenEffectiveOverridden(t *testing.T) {
	opts := Options{
		RequestedInstallerType: []core.InstallerType{core.InstallerTypeMsi},
	}
	c := newInstallerTypeComparator(opts)

	installer := models.Installer{
		EffectiveInstallerType: core.InstallerTypeExe,
		BaseInstallerType:      core.InstallerTypeMsi,
	}
	assert.Equal(t, core.InapplicabilityNone, c.Applicability(installer))

	prefOpts := Options{
		UserSettings: UserSettings{InstallerTypePreference: []core.InstallerType{core.InstallerTypeMsi}},
	}
	prefComparator := newInstallerTypeComparator(prefOpts)
	other := models.Installer{EffectiveInstallerType: core.InstallerTypeExe, BaseInstallerType: core.InstallerTypeExe}
	assert.Equal(t, WeakPositive, prefComparator.IsFirstBetter(installer, other))
}

type buggyComparator struct{}

func (b *buggyComparator) Name() string { return "BuggyComparator" }
func (b *buggyComparator) Applicability(models.Installer) core.InapplicabilityFlag {
	return core.InapplicabilityNone
}
func (b *buggyComparator) ExplainInapplicable(models.Installer) string { return "" }
func (b *buggyComparator) IsFirstBetter(_, _ models.Installer) CompareResult {
	return StrongPositive
}
