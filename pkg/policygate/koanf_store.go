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
	"fmt"
	"strconv"

	"github.com/knadh/koanf/v2"
)

// KoanfStore adapts a *koanf.Koanf sub-tree (rooted at prefix, e.g.
// "policy.") into a Store, so production policy can be provisioned the
// same way the rest of the process configuration is: TOML file plus
// environment overrides (pkg/config).
type KoanfStore struct {
	k      *koanf.Koanf
	prefix string
}

// NewKoanfStore wraps k, reading keys under prefix (e.g. "policy.").
func NewKoanfStore(k *koanf.Koanf, prefix string) *KoanfStore {
	return &KoanfStore{k: k, prefix: prefix}
}

func (s *KoanfStore) key(name string) string {
	return fmt.Sprintf("%s%s", s.prefix, name)
}

func (s *KoanfStore) GetDWORD(key string) (int, bool) {
	full := s.key(key)
	if !s.k.Exists(full) {
		return 0, false
	}
	v, err := strconv.Atoi(fmt.Sprint(s.k.Get(full)))
	if err != nil {
		return 0, false
	}
	return v, true
}

func (s *KoanfStore) GetListValues(key string) ([]string, bool) {
	full := s.key(key)
	if !s.k.Exists(full) {
		return nil, false
	}
	return s.k.Strings(full), true
}
