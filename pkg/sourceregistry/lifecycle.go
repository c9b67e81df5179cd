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

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/wso2/winpkg-core/pkg/constants"
	"github.com/wso2/winpkg-core/pkg/core"
	"github.com/wso2/winpkg-core/pkg/models"
	"github.com/wso2/winpkg-core/pkg/policygate"
)

// Add validates name uniqueness, gates on policy, delegates the
// initial fetch to details.Type's factory, and persists the entry on
// success. On any failure after the state directory was created, the
// directory is removed so a retried Add starts clean.
func (r *Registry) Add(details models.SourceDetails, progress ProgressFunc) error {
	if r.sourceConfigurationBlocked() {
		return core.NewError(core.KindPolicyBlocked, "sourceregistry.add", "source configuration is disabled by administrator policy")
	}
	if err := r.checkAllowed(details); err != nil {
		return err
	}
	if err := requireSecureURL(details.Arg); err != nil {
		return err
	}

	r.mu.Lock()
	existing, err := r.List()
	r.mu.Unlock()
	if err != nil {
		return err
	}
	for _, s := range existing {
		if s.Name == details.Name {
			return core.NewError(core.KindValidation, "sourceregistry.add", fmt.Sprintf("source %q already exists", details.Name))
		}
	}

	factory, err := r.factoryFor(details.Type)
	if err != nil {
		return err
	}

	if details.Identifier == "" {
		details.Identifier = uuid.NewString()
	}
	stateDir := r.stateDirFor(details)
	if err := os.MkdirAll(stateDir, 0o755); err != nil {
		return fmt.Errorf("creating state directory for source %q: %w", details.Name, err)
	}

	report(progress, "fetching initial data for source %q", details.Name)
	if err := factory.Add(details, stateDir, progress); err != nil {
		os.RemoveAll(stateDir)
		return err
	}

	details.Origin = models.OriginUser
	if err := r.appendUserSource(details); err != nil {
		os.RemoveAll(stateDir)
		return err
	}
	return nil
}

// Update refreshes a named source from its origin. It is a no-op
// (changed=false) if the factory determines nothing is new.
func (r *Registry) Update(name string, progress ProgressFunc) (bool, error) {
	details, err := r.find(name)
	if err != nil {
		return false, err
	}
	factory, err := r.factoryFor(details.Type)
	if err != nil {
		return false, err
	}
	stateDir := r.stateDirFor(details)

	report(progress, "checking for updates to source %q", details.Name)
	changed, err := factory.Update(details, stateDir, progress)
	if err != nil {
		return false, err
	}
	if changed {
		if err := r.touchLastUpdateTime(details.Name); err != nil {
			return changed, err
		}
	}
	return changed, nil
}

// Remove gates on policy, invokes the factory's cleanup, then deletes
// the persisted entry and its state directory. Removing an unknown
// source is idempotent success.
func (r *Registry) Remove(name string, progress ProgressFunc) error {
	if r.sourceConfigurationBlocked() {
		return core.NewError(core.KindPolicyBlocked, "sourceregistry.remove", "source configuration is disabled by administrator policy")
	}

	details, err := r.find(name)
	if err != nil {
		if kind, ok := core.KindOf(err); ok && kind == core.KindValidation {
			return nil // unknown source: idempotent success
		}
		return err
	}
	if details.Origin != models.OriginUser {
		return core.NewError(core.KindPolicyBlocked, "sourceregistry.remove", fmt.Sprintf("source %q is not user-removable", name))
	}

	factory, err := r.factoryFor(details.Type)
	if err != nil {
		return err
	}
	stateDir := r.stateDirFor(details)

	report(progress, "removing source %q", details.Name)
	if err := factory.Remove(details, stateDir, progress); err != nil {
		return err
	}
	if err := os.RemoveAll(stateDir); err != nil {
		return fmt.Errorf("removing state directory for source %q: %w", name, err)
	}
	return r.deleteUserSource(name)
}

// Open returns a connected Catalog for name. If name is empty, it
// returns an AggregatedSource over every enabled source from List().
func (r *Registry) Open(name string) (Catalog, error) {
	if name == "" {
		all, err := r.List()
		if err != nil {
			return nil, err
		}
		var catalogs []Catalog
		for _, details := range all {
			cat, err := r.openOne(details)
			if err != nil {
				return nil, err
			}
			catalogs = append(catalogs, cat)
		}
		return NewAggregatedSource(catalogs), nil
	}

	details, err := r.find(name)
	if err != nil {
		return nil, err
	}
	return r.openOne(details)
}

func (r *Registry) openOne(details models.SourceDetails) (Catalog, error) {
	factory, err := r.factoryFor(details.Type)
	if err != nil {
		return nil, err
	}
	return factory.Create(details, r.stateDirFor(details))
}

func (r *Registry) find(name string) (models.SourceDetails, error) {
	all, err := r.List()
	if err != nil {
		return models.SourceDetails{}, err
	}
	for _, s := range all {
		if s.Name == name {
			return s, nil
		}
	}
	return models.SourceDetails{}, core.NewError(core.KindValidation, "sourceregistry.find", fmt.Sprintf("no source named %q", name))
}

// sourceConfigurationBlocked reports whether the DisableSourceConfiguration
// administrator policy is explicitly Enabled. Unlike Gate.IsEnabled's
// generic NotConfigured-falls-back-to-default behaviour, a Disable-named
// toggle policy's absence must mean "not restricted": only an explicit
// Enabled state blocks add/remove (spec §8 scenario 1).
func (r *Registry) sourceConfigurationBlocked() bool {
	if r.gate == nil {
		return false
	}
	return r.gate.State(policygate.PolicyDisableSourceConfiguration) == policygate.Enabled
}

// checkAllowed enforces the AllowedSources policy: when configured, a
// new source's Name+Arg must match an entry in the allow-list.
func (r *Registry) checkAllowed(details models.SourceDetails) error {
	if r.gate == nil {
		return nil
	}
	allowed, ok := r.gate.GetSourceList(policygate.PolicyAllowedSources)
	if !ok {
		return nil
	}
	for _, a := range allowed {
		if a.Name == details.Name && a.Arg == details.Arg {
			return nil
		}
	}
	return core.NewError(core.KindPolicyBlocked, "sourceregistry.add", fmt.Sprintf("source %q is not in the administrator-allowed source list", details.Name))
}

// requireSecureURL enforces that a source's Arg, when it names an
// HTTP(S) endpoint, uses https. This applies to both the PreIndexed
// and Rest factories unconditionally (§4.4, supplemented feature).
func requireSecureURL(arg string) error {
	u, err := url.Parse(arg)
	if err != nil {
		return core.NewError(core.KindValidation, "sourceregistry.add", fmt.Sprintf("invalid source argument %q: %v", arg, err))
	}
	if u.Scheme == "" || strings.EqualFold(u.Scheme, constants.SchemeFile) {
		return nil
	}
	if !strings.EqualFold(u.Scheme, constants.SchemeHTTPS) {
		return core.NewError(core.KindIntegrity, "sourceregistry.add", fmt.Sprintf("source argument %q is not a secure URL", arg))
	}
	return nil
}

func (r *Registry) appendUserSource(details models.SourceDetails) error {
	sources, err := r.readUserSources()
	if err != nil {
		return err
	}
	sources = append(sources, details)
	return r.writeUserSources(sources)
}

func (r *Registry) deleteUserSource(name string) error {
	sources, err := r.readUserSources()
	if err != nil {
		return err
	}
	out := sources[:0]
	for _, s := range sources {
		if s.Name != name {
			out = append(out, s)
		}
	}
	return r.writeUserSources(out)
}

func (r *Registry) touchLastUpdateTime(name string) error {
	sources, err := r.readUserSources()
	if err != nil {
		return err
	}
	for i := range sources {
		if sources[i].Name == name {
			sources[i].LastUpdateTime = time.Now()
		}
	}
	return r.writeUserSources(sources)
}
