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

// machineArchitectureComparator ranks installers by how well their
// Architecture matches the allowed-architecture list computed at
// construction time.
type machineArchitectureComparator struct {
	allowed         []core.Architecture
	allowedRank     map[core.Architecture]int
	strongArch      core.Architecture
}

func isSystemApplicable(a core.Architecture) bool {
	for _, s := range core.SystemApplicableArchitectures() {
		if s == a {
			return true
		}
	}
	return false
}

// newMachineArchitectureComparator builds the allowed-architecture list
// by walking Options.AllowedArchitectures in order, appending
// system-applicable (or unconditionally applicable under
// SkipApplicabilityCheck) non-duplicate entries. Hitting the Unknown
// sentinel appends all remaining system-applicable architectures and
// stops. An empty caller list falls back to system-applicable defaults
// in system-default order.
func newMachineArchitectureComparator(opts Options) *machineArchitectureComparator {
	var allowed []core.Architecture
	seen := make(map[core.Architecture]bool)

	if len(opts.AllowedArchitectures) == 0 {
		allowed = append(allowed, core.SystemApplicableArchitectures()...)
	} else {
		for _, a := range opts.AllowedArchitectures {
			if a == core.ArchUnknown {
				for _, s := range core.SystemApplicableArchitectures() {
					if !seen[s] {
						allowed = append(allowed, s)
						seen[s] = true
					}
				}
				break
			}
			if opts.SkipApplicabilityCheck || isSystemApplicable(a) {
				if !seen[a] {
					allowed = append(allowed, a)
					seen[a] = true
				}
			}
		}
	}

	rank := make(map[core.Architecture]int, len(allowed))
	for idx, a := range allowed {
		rank[a] = idx
	}

	strong := core.ArchUnknown
	if len(allowed) > 0 {
		strong = allowed[0]
	}

	return &machineArchitectureComparator{allowed: allowed, allowedRank: rank, strongArch: strong}
}

func (c *machineArchitectureComparator) Name() string { return "MachineArchitectureComparator" }

func (c *machineArchitectureComparator) rankOf(a core.Architecture) (int, bool) {
	r, ok := c.allowedRank[a]
	return r, ok
}

func (c *machineArchitectureComparator) Applicability(i models.Installer) core.InapplicabilityFlag {
	if _, ok := c.rankOf(i.Architecture); !ok {
		return core.InapplicabilityMachineArchitecture
	}
	for _, unsupported := range i.UnsupportedOSArchitectures {
		if unsupported == i.Architecture {
			return core.InapplicabilityMachineArchitecture
		}
	}
	return core.InapplicabilityNone
}

func (c *machineArchitectureComparator) ExplainInapplicable(i models.Installer) string {
	return fmt.Sprintf("architecture %s is not allowed on this machine", i.Architecture)
}

func (c *machineArchitectureComparator) IsFirstBetter(first, second models.Installer) CompareResult {
	firstRank, firstOK := c.rankOf(first.Architecture)
	secondRank, secondOK := c.rankOf(second.Architecture)
	if !firstOK || !secondOK || firstRank >= secondRank {
		return Negative
	}
	if first.Architecture == c.strongArch {
		return StrongPositive
	}
	return WeakPositive
}
