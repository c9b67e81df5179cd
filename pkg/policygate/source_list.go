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
	"encoding/json"
	"log/slog"

	"github.com/xeipuuv/gojsonschema"

	"github.com/wso2/winpkg-core/pkg/models"
)

// sourceDescriptorSchema is the JSON schema required string members
// Name, Arg, Type, Data, Identifier (spec §4.1).
const sourceDescriptorSchema = `{
  "type": "object",
  "required": ["Name", "Arg", "Type", "Data", "Identifier"],
  "properties": {
    "Name": {"type": "string"},
    "Arg": {"type": "string"},
    "Type": {"type": "string"},
    "Data": {"type": "string"},
    "Identifier": {"type": "string"}
  }
}`

var sourceDescriptorSchemaLoader = gojsonschema.NewStringLoader(sourceDescriptorSchema)

// decodeSourceDescriptor validates raw against the source-description
// schema and decodes it. A missing-or-wrong-typed member is reported
// via ok=false; the caller drops that entry but not the surrounding
// list, mirroring GroupPolicy's ReadSourceFromRegistryValue.
func decodeSourceDescriptor(raw string, logger *slog.Logger) (models.SourceDescriptor, bool) {
	result, err := gojsonschema.Validate(sourceDescriptorSchemaLoader, gojsonschema.NewStringLoader(raw))
	if err != nil || !result.Valid() {
		logger.Warn("dropping invalid source descriptor", slog.String("raw", raw), slog.Any("error", err))
		return models.SourceDescriptor{}, false
	}

	var desc models.SourceDescriptor
	if err := json.Unmarshal([]byte(raw), &desc); err != nil {
		logger.Warn("dropping unparseable source descriptor", slog.String("raw", raw), slog.Any("error", err))
		return models.SourceDescriptor{}, false
	}
	return desc, true
}

// GetSourceList decodes the list-valued AllowedSources/AdditionalSources
// policy named by policy. Each child value is validated independently;
// an invalid entry is dropped with a warning, the rest of the list
// survives.
func (g *Gate) GetSourceList(policy TogglePolicy) ([]models.SourceDescriptor, bool) {
	store := g.activeStore()
	if store == nil {
		return nil, false
	}
	raws, ok := store.GetListValues(string(policy))
	if !ok {
		return nil, false
	}

	var out []models.SourceDescriptor
	for _, raw := range raws {
		if desc, ok := decodeSourceDescriptor(raw, g.logger); ok {
			out = append(out, desc)
		}
	}
	return out, true
}
