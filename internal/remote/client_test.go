package remote

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, handler http.HandlerFunc) *HTTPClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewHTTPClient(srv.URL, 5*time.Second, nil)
}

func TestHTTPClient_GetProject(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/api/projects/p1", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		assert.NotEmpty(t, r.Header.Get("X-Request-ID"))
		w.Write([]byte(`{"data": {"type": "projects", "id": "p1", "attributes": {"name": "site"}},
			"included": [{"type": "commits", "id": "c1"}]}`))
	})
	c.SetToken("tok")

	doc, err := c.GetProject(context.Background(), "p1")
	require.NoError(t, err)
	resources, err := doc.Resources()
	require.NoError(t, err)
	require.Len(t, resources, 1)
	assert.Equal(t, "p1", resources[0].ID)
	assert.Len(t, doc.Included, 1)
}

func TestHTTPClient_ListCommitsPaging(t *testing.T) {
	until := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/branches/b1/relationships/commits", r.URL.Path)
		assert.Equal(t, "10", r.URL.Query().Get("count"))
		assert.Equal(t, "2024-05-01T12:00:00Z", r.URL.Query().Get("until"))
		w.Write([]byte(`{"data": []}`))
	})

	_, err := c.ListCommits(context.Background(), "b1", Page{Count: 10, Until: until})
	require.NoError(t, err)
}

func TestHTTPClient_ListProjectsTeamFilter(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/projects", r.URL.Path)
		assert.Equal(t, "42", r.URL.Query().Get("filter[team]"))
		w.Write([]byte(`{"data": []}`))
	})

	_, err := c.ListProjects(context.Background(), "42")
	require.NoError(t, err)
}

func TestHTTPClient_ErrorDecoding(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"error": "forbidden", "details": "not a team member", "unauthorized": true}`))
	})

	_, err := c.GetBranch(context.Background(), "b1")
	require.Error(t, err)

	var re *RemoteError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, http.StatusForbidden, re.Status)
	assert.Equal(t, "forbidden", re.Code)
	assert.Equal(t, "not a team member", re.Details)
	assert.True(t, IsUnauthorized(err))
}

func TestHTTPClient_UnauthorizedStatus(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})

	_, err := c.GetCommit(context.Background(), "c1")
	require.Error(t, err)
	assert.True(t, IsUnauthorized(err))
}

func TestHTTPClient_CreateProject(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/vnd.api+json", r.Header.Get("Content-Type"))

		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		var req struct {
			Data struct {
				Type       string            `json:"type"`
				Attributes map[string]string `json:"attributes"`
			} `json:"data"`
		}
		require.NoError(t, json.Unmarshal(body, &req))
		assert.Equal(t, "projects", req.Data.Type)
		assert.Equal(t, "site", req.Data.Attributes["name"])
		assert.Equal(t, "7", req.Data.Attributes["team-id"])

		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"data": {"type": "projects", "id": "p9", "attributes": {"name": "site"}}}`))
	})

	doc, err := c.CreateProject(context.Background(), "7", ProjectInput{Name: "site"})
	require.NoError(t, err)
	resources, err := doc.Resources()
	require.NoError(t, err)
	assert.Equal(t, "p9", resources[0].ID)
}

func TestHTTPClient_DeleteNoContent(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		assert.Equal(t, "/api/comments/m1", r.URL.Path)
		w.WriteHeader(http.StatusNoContent)
	})

	assert.NoError(t, c.DeleteComment(context.Background(), "m1"))
}
