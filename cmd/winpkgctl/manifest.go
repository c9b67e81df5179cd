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

package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/wso2/winpkg-core/pkg/core"
	"github.com/wso2/winpkg-core/pkg/models"
)

// manifestFile is the on-disk YAML shape the resolve subcommand reads,
// mirroring winget-cli's manifest documents closely enough for the
// comparator's selection algorithm while keeping only the fields the
// comparator actually consults.
type manifestFile struct {
	Id          string              `yaml:"id"`
	Name        string              `yaml:"name"`
	Version     string              `yaml:"version"`
	Channel     string              `yaml:"channel"`
	Installers  []manifestInstaller `yaml:"installers"`
}

type manifestInstaller struct {
	Architecture  string   `yaml:"architecture"`
	InstallerType string   `yaml:"installerType"`
	Scope         string   `yaml:"scope"`
	Locale        string   `yaml:"locale"`
	MinOSVersion  string   `yaml:"minimumOSVersion"`
	MarketsAllowed  []string `yaml:"marketsAllowed"`
	MarketsExcluded []string `yaml:"marketsExcluded"`
}

// loadManifestFile reads and converts a YAML manifest document into a
// models.Manifest, parsing version strings through core.ParseVersion
// since core.Version has no exported fields for yaml/json to populate
// directly.
func loadManifestFile(path string) (models.Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return models.Manifest{}, err
	}

	var mf manifestFile
	if err := yaml.Unmarshal(data, &mf); err != nil {
		return models.Manifest{}, fmt.Errorf("parsing manifest yaml: %w", err)
	}
	if mf.Id == "" {
		return models.Manifest{}, fmt.Errorf("manifest is missing required field %q", "id")
	}

	manifest := models.Manifest{
		Id:      mf.Id,
		Name:    mf.Name,
		Version: core.ParseVersion(mf.Version),
		Channel: mf.Channel,
	}

	for _, mi := range mf.Installers {
		manifest.Installers = append(manifest.Installers, models.Installer{
			Architecture:           core.Architecture(mi.Architecture),
			EffectiveInstallerType: core.InstallerType(mi.InstallerType),
			Scope:                  core.Scope(mi.Scope),
			Locale:                 core.Locale(mi.Locale),
			MinOSVersion:           core.ParseVersion(mi.MinOSVersion),
			Markets: models.Markets{
				Allowed:  mi.MarketsAllowed,
				Excluded: mi.MarketsExcluded,
			},
		})
	}

	return manifest, nil
}
