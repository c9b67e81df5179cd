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

// Package policygate reads machine-wide administrator policy from a
// hierarchical configuration store and exposes it as typed queries
// (spec §4.1). It never blocks on I/O beyond a single config-store
// read, and a read error degrades to NotConfigured rather than
// propagating to the caller.
package policygate

import (
	"log/slog"
	"time"

	"github.com/wso2/winpkg-core/pkg/metrics"
)

// State is the three-valued toggle-policy reading.
type State int

const (
	NotConfigured State = iota
	Enabled
	Disabled
)

func (s State) String() string {
	switch s {
	case Enabled:
		return "Enabled"
	case Disabled:
		return "Disabled"
	default:
		return "NotConfigured"
	}
}

// TogglePolicy identifies one boolean administrator policy. The string
// value is the key as it appears in the configuration store (spec §6
// "Policy keys (toggle)").
type TogglePolicy string

const (
	PolicyDisableWinGet                TogglePolicy = "DisableWinGet"
	PolicyDisableSettingsCommand       TogglePolicy = "DisableSettingsCommand"
	PolicyDisableExperimentalFeatures  TogglePolicy = "DisableExperimentalFeatures"
	PolicyDisableLocalManifestFiles    TogglePolicy = "DisableLocalManifestFiles"
	PolicyEnableHashOverride           TogglePolicy = "EnableHashOverride"
	PolicyExcludeDefaultSources        TogglePolicy = "ExcludeDefaultSources"
	PolicyExcludeMicrosoftStoreSource  TogglePolicy = "ExcludeMicrosoftStoreSource"
	PolicyDisableSourceConfiguration   TogglePolicy = "DisableSourceConfiguration"
	PolicyAllowedSources               TogglePolicy = "AllowedSources"
	PolicyAdditionalSources            TogglePolicy = "AdditionalSources"
)

// defaultEnabled mirrors each toggle policy's default-enabled attribute
// (spec §4.1: "used when NotConfigured"). Every policy here except
// EnableHashOverride defaults to enabled (i.e. not restricting anything)
// when unconfigured, matching winget's convention that absence of policy
// means no restriction; EnableHashOverride defaults to disabled.
var defaultEnabled = map[TogglePolicy]bool{
	PolicyDisableWinGet:               true,
	PolicyDisableSettingsCommand:      true,
	PolicyDisableExperimentalFeatures: true,
	PolicyDisableLocalManifestFiles:   true,
	PolicyEnableHashOverride:          false,
	PolicyExcludeDefaultSources:       true,
	PolicyExcludeMicrosoftStoreSource: true,
	PolicyDisableSourceConfiguration:  true,
	PolicyAllowedSources:              true,
	PolicyAdditionalSources:           true,
}

// ValuePolicy identifies one typed-value administrator policy (spec §6
// "Policy keys (value)").
type ValuePolicy string

const (
	ValuePolicySourceAutoUpdateIntervalInMinutes ValuePolicy = "SourceAutoUpdateIntervalInMinutes"
	ValuePolicyAllowedSecurityZones               ValuePolicy = "AllowedSecurityZones"
)

// Store is the hierarchical configuration backend the gate reads from.
// Implementations must not block beyond a single read.
type Store interface {
	// GetDWORD returns an integer value for key, or ok=false if absent
	// or malformed.
	GetDWORD(key string) (value int, ok bool)
	// GetListValues returns the raw child values of a list-valued
	// sub-key (e.g. each JSON source descriptor under AdditionalSources),
	// or ok=false if the sub-key is absent.
	GetListValues(key string) (values []string, ok bool)
}

// Gate evaluates policy state and values. The zero value is not usable;
// construct with New.
type Gate struct {
	store    Store
	override Store
	logger   *slog.Logger
}

// New constructs a Gate reading from store.
func New(store Store, logger *slog.Logger) *Gate {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gate{store: store, logger: logger}
}

// Override installs a replacement Store, for tests. Reset restores
// production behavior. This models spec §4.1's "testing hook: installs
// a replacement policy source".
func (g *Gate) Override(store Store) {
	g.override = store
}

// Reset removes any Override.
func (g *Gate) Reset() {
	g.override = nil
}

func (g *Gate) activeStore() Store {
	if g.override != nil {
		return g.override
	}
	return g.store
}

// State reads the three-valued state of a toggle policy. Read errors
// (a nil store, or a malformed DWORD) degrade to NotConfigured; they
// never propagate to the caller.
func (g *Gate) State(policy TogglePolicy) State {
	metrics.Init()
	state := g.evaluateState(policy)
	metrics.PolicyEvaluationsTotal.WithLabelValues(string(policy), state.String()).Inc()
	return state
}

func (g *Gate) evaluateState(policy TogglePolicy) State {
	store := g.activeStore()
	if store == nil {
		return NotConfigured
	}
	v, ok := store.GetDWORD(string(policy))
	if !ok {
		return NotConfigured
	}
	if v == 0 {
		return Disabled
	}
	return Enabled
}

// IsEnabled reports true when State == Enabled, or State ==
// NotConfigured and the policy's default-enabled attribute is true.
func (g *Gate) IsEnabled(policy TogglePolicy) bool {
	switch g.State(policy) {
	case Enabled:
		return true
	case Disabled:
		return false
	default:
		return defaultEnabled[policy]
	}
}

// GetSourceAutoUpdateInterval returns the SourceAutoUpdateIntervalInMinutes
// value policy, or ok=false if absent/malformed.
func (g *Gate) GetSourceAutoUpdateInterval() (time.Duration, bool) {
	store := g.activeStore()
	if store == nil {
		return 0, false
	}
	minutes, ok := store.GetDWORD(string(ValuePolicySourceAutoUpdateIntervalInMinutes))
	if !ok || minutes < 0 {
		return 0, false
	}
	return time.Duration(minutes) * time.Minute, true
}
