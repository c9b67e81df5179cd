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
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/wso2/winpkg-core/pkg/core"
	"github.com/wso2/winpkg-core/pkg/models"
)

// RestFactory connects to an HTTP REST source endpoint. Unlike
// PreIndexed, it holds no local index: every search is a live request
// against details.Arg.
type RestFactory struct {
	httpClient *http.Client
	logger     *slog.Logger
}

// NewRestFactory builds a RestFactory. httpClient may be nil, in
// which case a client with a bounded timeout is used.
func NewRestFactory(httpClient *http.Client, logger *slog.Logger) *RestFactory {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RestFactory{httpClient: httpClient, logger: logger}
}

func (f *RestFactory) Create(details models.SourceDetails, _ string) (Catalog, error) {
	return &restCatalog{details: details, client: f.httpClient}, nil
}

// Add validates reachability (the endpoint's manifest-search root
// responds) but fetches nothing into local state, since a Rest source
// is served live.
func (f *RestFactory) Add(details models.SourceDetails, _ string, progress ProgressFunc) error {
	if err := requireSecureURL(details.Arg); err != nil {
		return err
	}
	report(progress, "validating endpoint for source %q", details.Name)
	return f.probe(details)
}

func (f *RestFactory) Update(details models.SourceDetails, _ string, progress ProgressFunc) (bool, error) {
	report(progress, "checking endpoint for source %q", details.Name)
	if err := f.probe(details); err != nil {
		return false, err
	}
	return true, nil
}

func (f *RestFactory) Remove(models.SourceDetails, string, ProgressFunc) error {
	return nil
}

func (f *RestFactory) probe(details models.SourceDetails) error {
	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, details.Arg, nil)
	if err != nil {
		return core.Wrap(core.KindValidation, "sourceregistry.rest.add", err)
	}
	resp, err := f.httpClient.Do(req)
	if err != nil {
		return core.Wrap(core.KindTransient, "sourceregistry.rest.add", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 500 {
		return core.NewError(core.KindTransient, "sourceregistry.rest.add", fmt.Sprintf("endpoint %s returned %s", details.Arg, resp.Status))
	}
	return nil
}

// restCatalog issues live search requests against a REST source.
type restCatalog struct {
	details models.SourceDetails
	client  *http.Client
}

func (c *restCatalog) Name() string { return c.details.Name }

// restSearchRequest/restSearchResponse mirror the wire shape of the
// teacher's JSON-over-HTTP API handlers (marshal request struct, POST,
// unmarshal response struct) rather than introducing a new client
// idiom for this one source type.
type restSearchRequest struct {
	Query          string `json:"query,omitempty"`
	MaximumResults int    `json:"maximumResults,omitempty"`
}

type restSearchResponse struct {
	Matches []struct {
		Id   string `json:"id"`
		Name string `json:"name"`
	} `json:"matches"`
	Truncated bool `json:"truncated"`
}

func (c *restCatalog) Search(ctx context.Context, request models.SearchRequest) (models.SearchResult, error) {
	payload := restSearchRequest{MaximumResults: request.MaximumResults}
	if request.Query != nil {
		payload.Query = request.Query.Text
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return models.SearchResult{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.details.Arg, bytes.NewReader(body))
	if err != nil {
		return models.SearchResult{}, core.Wrap(core.KindValidation, "sourceregistry.rest.search", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return models.SearchResult{}, core.Wrap(core.KindTransient, "sourceregistry.rest.search", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return models.SearchResult{}, core.NewError(core.KindTransient, "sourceregistry.rest.search", fmt.Sprintf("endpoint %s returned %s", c.details.Arg, resp.Status))
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return models.SearchResult{}, err
	}
	var parsed restSearchResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return models.SearchResult{}, core.Wrap(core.KindIntegrity, "sourceregistry.rest.search", err)
	}

	matches := make([]models.ResultMatch, 0, len(parsed.Matches))
	for _, m := range parsed.Matches {
		matches = append(matches, models.ResultMatch{
			Package:    models.PackageHandle{Id: m.Id, Name: m.Name},
			SourceName: c.details.Name,
		})
	}
	return models.SearchResult{Matches: matches, Truncated: parsed.Truncated}, nil
}

func (c *restCatalog) Close() error { return nil }
