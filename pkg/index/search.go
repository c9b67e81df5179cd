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

package index

import (
	"database/sql"
	"fmt"
	"path"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/wso2/winpkg-core/pkg/core"
	"github.com/wso2/winpkg-core/pkg/models"
)

// searchableField describes one of the default free-text fields (§4.3):
// its MatchField tag and the table/column(s) holding its values.
type searchableField struct {
	field       core.MatchField
	table       string
	column      string
	manifestCol bool // true when column lives directly on manifests, not a child table
}

var defaultSearchFields = []searchableField{
	{field: core.MatchFieldID, table: "manifests", column: "id", manifestCol: true},
	{field: core.MatchFieldName, table: "manifests", column: "name", manifestCol: true},
	{field: core.MatchFieldMoniker, table: "manifests", column: "moniker", manifestCol: true},
	{field: core.MatchFieldTag, table: "tags", column: "tag"},
	{field: core.MatchFieldCommand, table: "commands", column: "command"},
	{field: core.MatchFieldPackageFamilyName, table: "package_family_names", column: "package_family_name"},
	{field: core.MatchFieldProductCode, table: "apps_and_features_entries", column: "product_code"},
}

// Search evaluates request against the index: the free-text Query is
// ORed across the default field set, every Filter is ANDed, and
// results are de-duplicated by manifest row id before truncation.
func (s *Store) Search(request models.SearchRequest) (models.SearchResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	type hit struct {
		rowID    int64
		id       string
		name     string
		criteria models.MatchCriteria
	}

	seen := make(map[int64]bool)
	var hits []hit

	record := func(rowID int64, id, name string, criteria models.MatchCriteria) {
		if seen[rowID] {
			return
		}
		seen[rowID] = true
		hits = append(hits, hit{rowID: rowID, id: id, name: name, criteria: criteria})
	}

	if request.Query != nil && request.Query.Text != "" {
		for _, sf := range defaultSearchFields {
			clause, args := matchClause(sf, request.Query.Text, request.Query.MatchType)
			rows, err := s.queryManifestsByChildClause(sf, clause, args, request.Filters)
			if err != nil {
				return models.SearchResult{}, err
			}
			for _, r := range rows {
				record(r.RowID, r.ID, r.Name, models.MatchCriteria{Field: sf.field, MatchType: request.Query.MatchType})
			}
		}
	} else if len(request.Filters) > 0 {
		// No free-text query: the filter set alone selects manifests, and
		// each manifest is attributed to its first matching filter.
		primary := request.Filters[0]
		sf := fieldFor(primary.Field)
		clause, args := matchClause(sf, primary.Value, primary.MatchType)
		rows, err := s.queryManifestsByChildClause(sf, clause, args, request.Filters[1:])
		if err != nil {
			return models.SearchResult{}, err
		}
		for _, r := range rows {
			record(r.RowID, r.ID, r.Name, models.MatchCriteria{Field: primary.Field, MatchType: primary.MatchType})
		}
	} else {
		var rows []manifestRow
		if err := s.db.Select(&rows, `SELECT rowid, id, name FROM manifests`); err != nil {
			return models.SearchResult{}, fmt.Errorf("listing manifests: %w", err)
		}
		for _, r := range rows {
			record(r.RowID, r.ID, r.Name, models.MatchCriteria{Field: core.MatchFieldID, MatchType: core.MatchTypeWildcard})
		}
	}

	matches := make([]models.ResultMatch, 0, len(hits))
	for _, h := range hits {
		matches = append(matches, models.ResultMatch{
			Package:  models.PackageHandle{PackageRowID: h.rowID, Id: h.id, Name: h.name},
			Criteria: h.criteria,
		})
	}

	result := models.SearchResult{Matches: matches}
	if request.MaximumResults > 0 && len(result.Matches) > request.MaximumResults {
		result.Matches = result.Matches[:request.MaximumResults]
		result.Truncated = true
	}
	return result, nil
}

// manifestRow is scanned via sqlx's struct-tag reflection, so its
// fields must be exported.
type manifestRow struct {
	RowID int64  `db:"rowid"`
	ID    string `db:"id"`
	Name  string `db:"name"`
}

// queryManifestsByChildClause joins sf's table against manifests,
// applying clause/args as the matching predicate and additional
// filters as further ANDed joins.
func (s *Store) queryManifestsByChildClause(sf searchableField, clause string, args []any, filters []models.Filter) ([]manifestRow, error) {
	var query strings.Builder
	allArgs := append([]any{}, args...)

	if sf.manifestCol {
		query.WriteString(fmt.Sprintf(`SELECT DISTINCT m.rowid, m.id, m.name FROM manifests m WHERE %s`, rebind(clause, "m."+sf.column)))
	} else {
		query.WriteString(fmt.Sprintf(`SELECT DISTINCT m.rowid, m.id, m.name FROM manifests m JOIN %s c ON c.manifest_row_id = m.rowid WHERE %s`, sf.table, rebind(clause, "c."+sf.column)))
	}

	for _, f := range filters {
		fsf := fieldFor(f.Field)
		fClause, fArgs := matchClause(fsf, f.Value, f.MatchType)
		if fsf.manifestCol {
			query.WriteString(fmt.Sprintf(` AND %s`, rebind(fClause, "m."+fsf.column)))
		} else {
			alias := "f_" + fsf.table
			query.WriteString(fmt.Sprintf(` AND EXISTS (SELECT 1 FROM %s %s WHERE %s.manifest_row_id = m.rowid AND %s)`,
				fsf.table, alias, alias, rebind(fClause, alias+"."+fsf.column)))
		}
		allArgs = append(allArgs, fArgs...)
	}

	var result []manifestRow
	if err := s.db.Select(&result, query.String(), allArgs...); err != nil {
		return nil, fmt.Errorf("executing search query: %w", err)
	}
	return result, nil
}

func fieldFor(field core.MatchField) searchableField {
	for _, sf := range defaultSearchFields {
		if sf.field == field {
			return sf
		}
	}
	return searchableField{field: field, table: "manifests", column: "id", manifestCol: true}
}

// rebind substitutes the column placeholder "$col" in clause with the
// given qualified column expression.
func rebind(clause, column string) string {
	return strings.ReplaceAll(clause, "$col", column)
}

// matchClause builds a SQL predicate fragment (using the "$col"
// placeholder rebound by the caller) and its bind arguments for one
// MatchType against value.
func matchClause(_ searchableField, value string, matchType core.MatchType) (string, []any) {
	switch matchType {
	case core.MatchTypeExact:
		return "$col = ?", []any{value}
	case core.MatchTypeCaseInsensitive:
		return "LOWER($col) = LOWER(?)", []any{value}
	case core.MatchTypeStartsWith:
		return "LOWER($col) LIKE LOWER(?)", []any{escapeLike(value) + "%"}
	case core.MatchTypeSubstring:
		return "LOWER($col) LIKE LOWER(?)", []any{"%" + escapeLike(value) + "%"}
	case core.MatchTypeFuzzy:
		return "LOWER($col) = LOWER(?)", []any{fold(value)}
	case core.MatchTypeFuzzySubstring:
		return "LOWER($col) LIKE LOWER(?)", []any{"%" + escapeLike(fold(value)) + "%"}
	case core.MatchTypeWildcard:
		return "$col GLOB ?", []any{value}
	default:
		return "LOWER($col) LIKE LOWER(?)", []any{"%" + escapeLike(value) + "%"}
	}
}

func escapeLike(s string) string {
	replacer := strings.NewReplacer("%", "\\%", "_", "\\_")
	return replacer.Replace(s)
}

// fold approximates the normalisation Fuzzy/FuzzySubstring apply:
// accent folding and whitespace collapse.
func fold(s string) string {
	var b strings.Builder
	prevSpace := false
	for _, r := range s {
		if unicode.IsSpace(r) {
			if !prevSpace {
				b.WriteRune(' ')
			}
			prevSpace = true
			continue
		}
		prevSpace = false
		b.WriteRune(stripAccent(r))
	}
	return strings.TrimSpace(b.String())
}

// stripAccent folds a handful of common Latin diacritics to their base
// letter; a full Unicode normaliser is out of scope for the index's
// internal query folding.
func stripAccent(r rune) rune {
	const decomposed = "àáâãäåèéêëìíîïòóôõöùúûüñç"
	const base = "aaaaaaeeeeiiiiooooouuuunc"
	if idx := strings.IndexRune(decomposed, unicode.ToLower(r)); idx >= 0 {
		return rune(base[utf8.RuneCountInString(decomposed[:idx])])
	}
	return r
}

// GetPropertyByPrimaryId returns a typed single-valued manifest
// property.
func (s *Store) GetPropertyByPrimaryId(rowID int64, property string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	column, ok := manifestPropertyColumns[property]
	if !ok {
		return "", fmt.Errorf("unknown manifest property %q", property)
	}
	var value string
	err := s.db.Get(&value, fmt.Sprintf(`SELECT %s FROM manifests WHERE rowid = ?`, column), rowID)
	if err != nil {
		if err == sql.ErrNoRows {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("reading manifest property %s: %w", property, err)
	}
	return value, nil
}

var manifestPropertyColumns = map[string]string{
	"Id":                 "id",
	"Name":               "name",
	"Moniker":            "moniker",
	"Channel":            "channel",
	"Version":            "version",
	"DefaultLocalization": "default_locale",
	"RelativePath":       "relative_path",
}

// GetMultiPropertyByPrimaryId returns a repeated manifest property
// (Tags, Commands, PackageFamilyNames, ProductCodes).
func (s *Store) GetMultiPropertyByPrimaryId(rowID int64, property string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var query string
	switch property {
	case "Tags":
		query = `SELECT tag FROM tags WHERE manifest_row_id = ?`
	case "Commands":
		query = `SELECT command FROM commands WHERE manifest_row_id = ?`
	case "PackageFamilyNames":
		query = `SELECT package_family_name FROM package_family_names WHERE manifest_row_id = ?`
	case "ProductCodes":
		query = `SELECT DISTINCT a.product_code FROM apps_and_features_entries a JOIN installers i ON i.rowid = a.installer_row_id WHERE i.manifest_row_id = ? AND a.product_code != ''`
	default:
		return nil, fmt.Errorf("unknown manifest multi-property %q", property)
	}

	var values []string
	if err := s.db.Select(&values, query, rowID); err != nil {
		return nil, fmt.Errorf("reading manifest multi-property %s: %w", property, err)
	}
	return values, nil
}

// GetVersionKeysById returns every (Version, Channel) indexed for id,
// sorted descending by version.
func (s *Store) GetVersionKeysById(id string) ([]models.VersionKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var rows []struct {
		VersionRaw string `db:"version"`
		Channel    string `db:"channel"`
	}
	if err := s.db.Select(&rows, `SELECT version, channel FROM manifests WHERE id = ?`, id); err != nil {
		return nil, fmt.Errorf("reading version keys: %w", err)
	}

	keys := make([]models.VersionKey, 0, len(rows))
	for _, r := range rows {
		keys = append(keys, models.VersionKey{Version: core.ParseVersion(r.VersionRaw), Channel: r.Channel})
	}

	for i := 0; i < len(keys); i++ {
		for j := i + 1; j < len(keys); j++ {
			if keys[j].Version.Compare(keys[i].Version) > 0 {
				keys[i], keys[j] = keys[j], keys[i]
			}
		}
	}
	return keys, nil
}

// resolveManifestPath joins a source's root with a manifest's stored
// relative path, used when materialising a manifest for installation.
func resolveManifestPath(root, relative string) string {
	return path.Join(root, relative)
}
