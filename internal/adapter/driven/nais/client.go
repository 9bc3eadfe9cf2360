// Package nais implements the DeployClient port against the deployment
// platform's console API.
package nais

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/ericfisherdev/foureyes/internal/domain/model"
	"github.com/ericfisherdev/foureyes/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.DeployClient = (*Client)(nil)

// Client implements the driven.DeployClient port over the platform's JSON
// read API.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

// NewClient creates a deployment platform client. baseURL is the console API
// root without a trailing slash.
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

// NewClientWithHTTPClient creates a Client with a custom http.Client, for
// tests against an httptest server.
func NewClientWithHTTPClient(baseURL, apiKey string, httpClient *http.Client) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		http:    httpClient,
	}
}

// wireDeployment is the platform's deployment event shape.
type wireDeployment struct {
	ID         int64     `json:"id"`
	CommitSHA  string    `json:"commitSha"`
	Deployer   string    `json:"deployer"`
	Repository string    `json:"repository"`
	Cluster    string    `json:"cluster"`
	Created    time.Time `json:"created"`
}

type deploymentsResponse struct {
	Deployments []wireDeployment `json:"deployments"`
}

type wireEvent struct {
	Status  string    `json:"status"`
	Message string    `json:"message"`
	Created time.Time `json:"created"`
}

type eventsResponse struct {
	Events []wireEvent `json:"events"`
}

// FetchDeployments returns deployment events for the application with a
// platform id strictly greater than sinceID, oldest first.
func (c *Client) FetchDeployments(ctx context.Context, app model.Application, sinceID int64) ([]model.Deployment, error) {
	q := url.Values{}
	q.Set("team", app.Team)
	q.Set("app", app.Name)
	q.Set("env", app.Environment)
	if sinceID > 0 {
		q.Set("since", strconv.FormatInt(sinceID, 10))
	}

	var resp deploymentsResponse
	if err := c.get(ctx, "/api/v1/deployments?"+q.Encode(), &resp); err != nil {
		return nil, fmt.Errorf("fetch deployments for %s/%s: %w", app.Team, app.Name, err)
	}

	var deployments []model.Deployment
	for _, wd := range resp.Deployments {
		// The since filter is advisory upstream; enforce it here so the
		// high-water mark semantics do not depend on platform behavior.
		if wd.ID <= sinceID {
			continue
		}

		owner, repo := splitRepository(wd.Repository)
		deployments = append(deployments, model.Deployment{
			ApplicationID: app.ID,
			PlatformID:    wd.ID,
			CommitSHA:     wd.CommitSHA,
			Deployer:      wd.Deployer,
			DetectedOwner: owner,
			DetectedRepo:  repo,
			Cluster:       wd.Cluster,
			Status:        model.StatusPending,
			DeployedAt:    wd.Created,
		})
	}

	sort.Slice(deployments, func(i, j int) bool {
		return deployments[i].PlatformID < deployments[j].PlatformID
	})

	return deployments, nil
}

// FetchDeployEvents returns the platform's status/log events for one
// deployment.
func (c *Client) FetchDeployEvents(ctx context.Context, app model.Application, platformID int64) ([]model.DeployEvent, error) {
	path := fmt.Sprintf("/api/v1/deployments/%d/events?team=%s", platformID, url.QueryEscape(app.Team))

	var resp eventsResponse
	if err := c.get(ctx, path, &resp); err != nil {
		return nil, fmt.Errorf("fetch deploy events for %s deployment %d: %w", app.Name, platformID, err)
	}

	events := make([]model.DeployEvent, 0, len(resp.Events))
	for _, we := range resp.Events {
		events = append(events, model.DeployEvent{
			Status:    we.Status,
			Message:   we.Message,
			CreatedAt: we.Created,
		})
	}
	return events, nil
}

func (c *Client) get(ctx context.Context, path string, dst any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("platform request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("platform returned 404 for %s: %w", path, driven.ErrNotFound)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("platform returned %d for %s", resp.StatusCode, path)
	}

	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return fmt.Errorf("decode platform response: %w", err)
	}
	return nil
}

// splitRepository splits "owner/repo" into its parts; missing separators
// leave the repo part empty so the mismatch check fires downstream.
func splitRepository(full string) (owner, repo string) {
	owner, repo, _ = strings.Cut(full, "/")
	return owner, repo
}
