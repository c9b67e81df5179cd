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
	"encoding/json"
	"fmt"

	"github.com/wso2/winpkg-core/pkg/core"
	"github.com/wso2/winpkg-core/pkg/models"
	"github.com/wso2/winpkg-core/pkg/policygate"
)

// List returns the union of user-configured sources, policy-injected
// AdditionalSources, and predefined built-in sources. A predefined or
// user source whose Name collides with a policy-origin source is
// masked (the policy entry wins). ExcludeDefaultSources/
// ExcludeMicrosoftStoreSource additionally drop matching predefined
// entries outright.
func (r *Registry) List() ([]models.SourceDetails, error) {
	userSources, err := r.readUserSources()
	if err != nil {
		return nil, err
	}

	byName := make(map[string]models.SourceDetails, len(userSources))
	order := make([]string, 0, len(userSources))
	for _, s := range userSources {
		byName[s.Name] = s
		order = append(order, s.Name)
	}

	if r.gate != nil {
		if descriptors, ok := r.gate.GetSourceList(policygate.PolicyAdditionalSources); ok {
			for _, d := range descriptors {
				name := d.Name
				if _, exists := byName[name]; !exists {
					order = append(order, name)
				}
				byName[name] = d.ToSourceDetails(models.OriginPolicy)
			}
		}
	}

	for _, p := range r.predefined {
		if r.predefinedExcluded(p) {
			continue
		}
		if _, exists := byName[p.Name]; exists {
			continue // masked by a user or policy source of the same name
		}
		byName[p.Name] = p
		order = append(order, p.Name)
	}

	out := make([]models.SourceDetails, 0, len(order))
	for _, name := range order {
		out = append(out, byName[name])
	}
	return out, nil
}

// predefinedExcluded reports whether an explicit administrator policy
// excludes p. As with DisableSourceConfiguration, an Exclude-named
// toggle's absence must mean "not excluded"; only an explicit Enabled
// state drops the source.
func (r *Registry) predefinedExcluded(p models.SourceDetails) bool {
	if r.gate == nil {
		return false
	}
	if p.Identifier == "msstore" && r.gate.State(policygate.PolicyExcludeMicrosoftStoreSource) == policygate.Enabled {
		return true
	}
	return r.gate.State(policygate.PolicyExcludeDefaultSources) == policygate.Enabled
}

func (r *Registry) readUserSources() ([]models.SourceDetails, error) {
	stream, err := r.userSourcesStream()
	if err != nil {
		return nil, err
	}
	data, ok, err := stream.Get()
	if err != nil {
		return nil, fmt.Errorf("reading source registry: %w", err)
	}
	if !ok {
		return nil, nil
	}
	var sources []models.SourceDetails
	if err := json.Unmarshal(data, &sources); err != nil {
		return nil, fmt.Errorf("parsing source registry: %w", err)
	}
	return sources, nil
}

func (r *Registry) writeUserSources(sources []models.SourceDetails) error {
	stream, err := r.userSourcesStream()
	if err != nil {
		return err
	}
	// Establish a baseline before the compare-and-swap write so a
	// stream opened fresh for this call doesn't treat its own first
	// write as a spurious conflict.
	if _, _, err := stream.Get(); err != nil {
		return fmt.Errorf("reading source registry: %w", err)
	}
	data, err := json.Marshal(sources)
	if err != nil {
		return fmt.Errorf("encoding source registry: %w", err)
	}
	ok, err := stream.Set(data)
	if err != nil {
		return err
	}
	if !ok {
		return core.NewError(core.KindTransient, "sourceregistry.write", "source registry was modified concurrently")
	}
	return nil
}
