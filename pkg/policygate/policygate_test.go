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

package policygate

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestState_NotConfiguredWithNilStore(t *testing.T) {
	g := New(nil, nil)
	assert.Equal(t, NotConfigured, g.State(PolicyDisableSourceConfiguration))
	assert.True(t, g.IsEnabled(PolicyDisableSourceConfiguration))
}

func TestState_EnabledDisabled(t *testing.T) {
	store := NewMapStore()
	store.DWORDs[string(PolicyDisableSourceConfiguration)] = 1
	g := New(store, nil)
	assert.Equal(t, Enabled, g.State(PolicyDisableSourceConfiguration))
	assert.True(t, g.IsEnabled(PolicyDisableSourceConfiguration))

	store.DWORDs[string(PolicyDisableSourceConfiguration)] = 0
	assert.Equal(t, Disabled, g.State(PolicyDisableSourceConfiguration))
	assert.False(t, g.IsEnabled(PolicyDisableSourceConfiguration))
}

func TestOverrideAndReset(t *testing.T) {
	base := NewMapStore()
	base.DWORDs[string(PolicyDisableWinGet)] = 0
	g := New(base, nil)
	assert.False(t, g.IsEnabled(PolicyDisableWinGet))

	override := NewMapStore()
	override.DWORDs[string(PolicyDisableWinGet)] = 1
	g.Override(override)
	assert.True(t, g.IsEnabled(PolicyDisableWinGet))

	g.Reset()
	assert.False(t, g.IsEnabled(PolicyDisableWinGet))
}

func TestGetSourceList_DropsInvalidEntriesOnly(t *testing.T) {
	store := NewMapStore()
	store.Lists[string(PolicyAdditionalSources)] = []string{
		`{"Name":"Contoso","Arg":"https://contoso.example/index","Type":"Microsoft.PreIndexed","Data":"","Identifier":"contoso-1"}`,
		`{"Name":"Missing Fields"}`,
		`not even json`,
	}
	g := New(store, nil)

	descriptors, ok := g.GetSourceList(PolicyAdditionalSources)
	assert.True(t, ok)
	assert.Len(t, descriptors, 1)
	assert.Equal(t, "Contoso", descriptors[0].Name)
}
