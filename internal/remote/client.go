package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Client defines the contract for communicating with the Minard API.
type Client interface {
	GetProject(ctx context.Context, id string) (*Document, error)
	ListProjects(ctx context.Context, teamID string) (*Document, error)
	GetBranch(ctx context.Context, id string) (*Document, error)
	ListBranches(ctx context.Context, projectID string) (*Document, error)
	GetCommit(ctx context.Context, id string) (*Document, error)
	ListCommits(ctx context.Context, branchID string, page Page) (*Document, error)
	GetDeployment(ctx context.Context, id string) (*Document, error)
	ListComments(ctx context.Context, deploymentID string) (*Document, error)
	ListActivity(ctx context.Context, teamID string, page Page) (*Document, error)
	ListProjectActivity(ctx context.Context, projectID string, page Page) (*Document, error)
	GetPreview(ctx context.Context, kind, id string) (*Document, error)

	CreateProject(ctx context.Context, teamID string, in ProjectInput) (*Document, error)
	EditProject(ctx context.Context, id string, edit ProjectEdit) (*Document, error)
	DeleteProject(ctx context.Context, id string) error
	AddComment(ctx context.Context, in CommentInput) (*Document, error)
	DeleteComment(ctx context.Context, id string) error
}

const defaultRequestTimeout = 60 * time.Second

// HTTPClient implements Client over HTTP.
type HTTPClient struct {
	baseURL    string
	httpClient *http.Client

	mu    sync.RWMutex
	token string
}

// NewHTTPClient creates an HTTP-based API client. A zero timeout selects the
// default.
func NewHTTPClient(baseURL string, timeout time.Duration, logger *slog.Logger) *HTTPClient {
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Transport: newTransport(http.DefaultTransport, logger),
			Timeout:   timeout,
		},
	}
}

// SetToken sets the bearer token attached to subsequent requests.
func (c *HTTPClient) SetToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = token
}

func (c *HTTPClient) currentToken() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

func (c *HTTPClient) apiURL(path string, query url.Values) string {
	u := c.baseURL + "/api" + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return u
}

func pageQuery(q url.Values, page Page) url.Values {
	if q == nil {
		q = url.Values{}
	}
	if page.Count > 0 {
		q.Set("count", strconv.Itoa(page.Count))
	}
	if !page.Until.IsZero() {
		q.Set("until", page.Until.UTC().Format(time.RFC3339Nano))
	}
	return q
}

func (c *HTTPClient) do(ctx context.Context, method, url string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Accept", "application/vnd.api+json")
	if body != nil {
		req.Header.Set("Content-Type", "application/vnd.api+json")
	}
	if token := c.currentToken(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}

	return resp, nil
}

func (c *HTTPClient) doDocument(ctx context.Context, method, url string, reqBody interface{}) (*Document, error) {
	var body io.Reader
	if reqBody != nil {
		data, err := json.Marshal(reqBody)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	resp, err := c.do(ctx, method, url, body)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, decodeError(resp)
	}
	if resp.StatusCode == http.StatusNoContent {
		return &Document{}, nil
	}

	var doc Document
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &doc, nil
}

func (c *HTTPClient) get(ctx context.Context, op, path string, query url.Values) (*Document, error) {
	doc, err := c.doDocument(ctx, http.MethodGet, c.apiURL(path, query), nil)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return doc, nil
}

// GetProject fetches one project.
func (c *HTTPClient) GetProject(ctx context.Context, id string) (*Document, error) {
	return c.get(ctx, "get project "+id, "/projects/"+url.PathEscape(id), nil)
}

// ListProjects fetches all projects of a team.
func (c *HTTPClient) ListProjects(ctx context.Context, teamID string) (*Document, error) {
	return c.get(ctx, "list projects", "/projects", url.Values{"filter[team]": {teamID}})
}

// GetBranch fetches one branch.
func (c *HTTPClient) GetBranch(ctx context.Context, id string) (*Document, error) {
	return c.get(ctx, "get branch "+id, "/branches/"+url.PathEscape(id), nil)
}

// ListBranches fetches the branches of a project.
func (c *HTTPClient) ListBranches(ctx context.Context, projectID string) (*Document, error) {
	return c.get(ctx, "list branches", "/projects/"+url.PathEscape(projectID)+"/relationships/branches", nil)
}

// GetCommit fetches one commit.
func (c *HTTPClient) GetCommit(ctx context.Context, id string) (*Document, error) {
	return c.get(ctx, "get commit "+id, "/commits/"+url.PathEscape(id), nil)
}

// ListCommits fetches a page of a branch's commits, newest first.
func (c *HTTPClient) ListCommits(ctx context.Context, branchID string, page Page) (*Document, error) {
	return c.get(ctx, "list commits", "/branches/"+url.PathEscape(branchID)+"/relationships/commits", pageQuery(nil, page))
}

// GetDeployment fetches one deployment.
func (c *HTTPClient) GetDeployment(ctx context.Context, id string) (*Document, error) {
	return c.get(ctx, "get deployment "+id, "/deployments/"+url.PathEscape(id), nil)
}

// ListComments fetches the comments of a deployment.
func (c *HTTPClient) ListComments(ctx context.Context, deploymentID string) (*Document, error) {
	return c.get(ctx, "list comments", "/comments/deployment/"+url.PathEscape(deploymentID), nil)
}

// ListActivity fetches a page of a team's activity feed.
func (c *HTTPClient) ListActivity(ctx context.Context, teamID string, page Page) (*Document, error) {
	return c.get(ctx, "list activity", "/activity", pageQuery(url.Values{"filter[team]": {teamID}}, page))
}

// ListProjectActivity fetches a page of a project's activity feed.
func (c *HTTPClient) ListProjectActivity(ctx context.Context, projectID string, page Page) (*Document, error) {
	return c.get(ctx, "list project activity", "/activity", pageQuery(url.Values{"filter[project]": {projectID}}, page))
}

// GetPreview fetches the preview for a deployment or commit.
func (c *HTTPClient) GetPreview(ctx context.Context, kind, id string) (*Document, error) {
	return c.get(ctx, "get preview", "/previews/"+url.PathEscape(kind)+"/"+url.PathEscape(id), nil)
}

type requestDocument struct {
	Data requestResource `json:"data"`
}

type requestResource struct {
	Type       string      `json:"type"`
	ID         string      `json:"id,omitempty"`
	Attributes interface{} `json:"attributes"`
}

type createProjectAttributes struct {
	ProjectInput
	TeamID string `json:"team-id"`
}

// CreateProject creates a project for a team.
func (c *HTTPClient) CreateProject(ctx context.Context, teamID string, in ProjectInput) (*Document, error) {
	req := &requestDocument{Data: requestResource{
		Type:       "projects",
		Attributes: createProjectAttributes{ProjectInput: in, TeamID: teamID},
	}}
	doc, err := c.doDocument(ctx, http.MethodPost, c.apiURL("/projects", nil), req)
	if err != nil {
		return nil, fmt.Errorf("create project: %w", err)
	}
	return doc, nil
}

// EditProject patches a project.
func (c *HTTPClient) EditProject(ctx context.Context, id string, edit ProjectEdit) (*Document, error) {
	req := &requestDocument{Data: requestResource{Type: "projects", ID: id, Attributes: edit}}
	doc, err := c.doDocument(ctx, http.MethodPatch, c.apiURL("/projects/"+url.PathEscape(id), nil), req)
	if err != nil {
		return nil, fmt.Errorf("edit project %s: %w", id, err)
	}
	return doc, nil
}

// DeleteProject removes a project.
func (c *HTTPClient) DeleteProject(ctx context.Context, id string) error {
	if _, err := c.doDocument(ctx, http.MethodDelete, c.apiURL("/projects/"+url.PathEscape(id), nil), nil); err != nil {
		return fmt.Errorf("delete project %s: %w", id, err)
	}
	return nil
}

// AddComment posts a comment on a deployment.
func (c *HTTPClient) AddComment(ctx context.Context, in CommentInput) (*Document, error) {
	req := &requestDocument{Data: requestResource{Type: "comments", Attributes: in}}
	doc, err := c.doDocument(ctx, http.MethodPost, c.apiURL("/comments", nil), req)
	if err != nil {
		return nil, fmt.Errorf("add comment: %w", err)
	}
	return doc, nil
}

// DeleteComment removes a comment.
func (c *HTTPClient) DeleteComment(ctx context.Context, id string) error {
	if _, err := c.doDocument(ctx, http.MethodDelete, c.apiURL("/comments/"+url.PathEscape(id), nil), nil); err != nil {
		return fmt.Errorf("delete comment %s: %w", id, err)
	}
	return nil
}

// RemoteError represents a structured error from the API.
type RemoteError struct {
	Code         string
	Details      string
	Status       int
	Unauthorized bool
}

func (e *RemoteError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("remote error (%d): %s: %s", e.Status, e.Code, e.Details)
	}
	return fmt.Sprintf("remote error (%d): %s", e.Status, e.Code)
}

// IsUnauthorized reports whether err carries an authentication failure.
func IsUnauthorized(err error) bool {
	var re *RemoteError
	return errors.As(err, &re) && re.Unauthorized
}

func decodeError(resp *http.Response) error {
	unauthorized := resp.StatusCode == http.StatusUnauthorized

	var errResp ErrorResponse
	if err := json.NewDecoder(resp.Body).Decode(&errResp); err != nil || errResp.Error == "" {
		return &RemoteError{
			Code:         http.StatusText(resp.StatusCode),
			Status:       resp.StatusCode,
			Unauthorized: unauthorized,
		}
	}

	return &RemoteError{
		Code:         errResp.Error,
		Details:      errResp.Details,
		Status:       resp.StatusCode,
		Unauthorized: unauthorized || errResp.Unauthorized,
	}
}
