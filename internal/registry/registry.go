// SPDX-License-Identifier: MPL-2.0

// Package registry implements the client for the remote module registry
// service. The service answers two questions: where to fetch a named module
// from (SearchModule), and which versions of a name exist with what host
// requirements (GetModuleInfo).
package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/modhub/modhub/pkg/hubmod"
)

// maxResponseBytes caps registry response bodies.
const maxResponseBytes = 4 << 20

type (
	// CandidateInfo is the host-requirement metadata for one version of a
	// module: constraint expressions against the engine and the manager.
	CandidateInfo struct {
		Engine  []string `json:"engine"`
		Manager []string `json:"manager"`
	}

	// CandidateTable maps version strings to their requirement metadata.
	// It is carried inside not-found/mismatch errors so diagnostics never
	// need a second registry round trip.
	CandidateTable map[string]CandidateInfo

	// Location is a successful search result: either a direct download URL
	// or a source descriptor pointing at an external repository checkout.
	// Version is the concrete version the registry selected.
	Location struct {
		URL     string         `json:"url,omitempty"`
		Version string         `json:"version,omitempty"`
		Source  *hubmod.Source `json:"source,omitempty"`
	}

	// Client talks to the registry service. The host's engine and manager
	// versions accompany every search so the server can filter candidates
	// by environment compatibility.
	Client struct {
		endpoint       string
		engineVersion  string
		managerVersion string
		http           *retryablehttp.Client
	}
)

// NewClient creates a registry client for the given API base URL.
func NewClient(endpoint, engineVersion, managerVersion string) *Client {
	c := retryablehttp.NewClient()
	c.RetryMax = 2
	c.HTTPClient.Timeout = 30 * time.Second
	c.Logger = nil

	return &Client{
		endpoint:       strings.TrimSuffix(endpoint, "/"),
		engineVersion:  engineVersion,
		managerVersion: managerVersion,
		http:           c,
	}
}

// SearchModule asks the registry for a fetch location for name, optionally
// narrowed by a version constraint and a source. Returns nil (not an error)
// when the registry has no compatible candidate.
func (c *Client) SearchModule(ctx context.Context, name, version, source string) (*Location, error) {
	query := url.Values{}
	query.Set("name", name)
	if version != "" {
		query.Set("version", version)
	}
	if source != "" {
		query.Set("source", source)
	}
	if c.engineVersion != "" {
		query.Set("engine", c.engineVersion)
	}
	if c.managerVersion != "" {
		query.Set("manager", c.managerVersion)
	}

	var loc Location
	found, err := c.get(ctx, "/modules/search", query, &loc)
	if err != nil {
		return nil, fmt.Errorf("registry search for %s failed: %w", name, err)
	}
	if !found || (loc.URL == "" && loc.Source == nil) {
		return nil, nil
	}
	return &loc, nil
}

// GetModuleInfo returns the version-keyed candidate table for name, or an
// empty table when the registry knows nothing about the name.
func (c *Client) GetModuleInfo(ctx context.Context, name, source string) (CandidateTable, error) {
	query := url.Values{}
	query.Set("name", name)
	if source != "" {
		query.Set("source", source)
	}

	var payload struct {
		Versions CandidateTable `json:"versions"`
	}
	found, err := c.get(ctx, "/modules/info", query, &payload)
	if err != nil {
		return nil, fmt.Errorf("registry info for %s failed: %w", name, err)
	}
	if !found {
		return CandidateTable{}, nil
	}
	return payload.Versions, nil
}

// get performs a GET against path, decoding a 200 body into out. A 404 or
// an empty body reports found=false; other non-2xx statuses are errors.
func (c *Client) get(ctx context.Context, path string, query url.Values, out any) (found bool, err error) {
	reqURL := c.endpoint + path + "?" + query.Encode()

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return false, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return false, nil
	}
	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("unexpected status %s", resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return false, fmt.Errorf("failed to read response: %w", err)
	}
	if len(body) == 0 || string(body) == "null" {
		return false, nil
	}

	if err := json.Unmarshal(body, out); err != nil {
		return false, fmt.Errorf("failed to decode response: %w", err)
	}
	return true, nil
}
