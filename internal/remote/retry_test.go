package remote

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRetryTestClient(t *testing.T, cfg *RetryConfig, handler http.HandlerFunc) *RetryClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	if cfg == nil {
		cfg = &RetryConfig{MaxRetries: 3, InitialBackoff: time.Millisecond, MaxBackoff: 5 * time.Millisecond}
	}
	return NewRetryClient(NewHTTPClient(srv.URL, 5*time.Second, nil), cfg)
}

func writeError(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write([]byte(body))
}

func TestRetryClient_GetCommitRecoversFromUnavailable(t *testing.T) {
	var hits atomic.Int32
	rc := newRetryTestClient(t, nil, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		if hits.Add(1) < 3 {
			writeError(w, http.StatusServiceUnavailable, `{"error": "unavailable"}`)
			return
		}
		w.Write([]byte(`{"data": {"type": "commits", "id": "c1", "attributes": {"hash": "c1"}}}`))
	})
	rc.SetToken("tok")

	doc, err := rc.GetCommit(context.Background(), "c1")
	require.NoError(t, err)
	resources, err := doc.Resources()
	require.NoError(t, err)
	require.Len(t, resources, 1)
	assert.Equal(t, "c1", resources[0].ID)
	assert.Equal(t, int32(3), hits.Load())
}

func TestRetryClient_ListCommitsKeepsPage(t *testing.T) {
	var (
		mu      sync.Mutex
		queries []string
	)
	rc := newRetryTestClient(t, nil, func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		queries = append(queries, r.URL.RawQuery)
		attempt := len(queries)
		mu.Unlock()
		if attempt == 1 {
			writeError(w, http.StatusBadGateway, `{"error": "bad_gateway"}`)
			return
		}
		w.Write([]byte(`{"data": []}`))
	})

	until := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	_, err := rc.ListCommits(context.Background(), "b1", Page{Count: 10, Until: until})
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, queries, 2)
	assert.Equal(t, queries[0], queries[1])
	assert.Contains(t, queries[1], "count=10")
	assert.Contains(t, queries[1], "until=2024-05-01T12%3A00%3A00Z")
}

func TestRetryClient_UnauthorizedNotRetried(t *testing.T) {
	var hits atomic.Int32
	rc := newRetryTestClient(t, nil, func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		writeError(w, http.StatusUnauthorized, `{"error": "token expired", "unauthorized": true}`)
	})

	_, err := rc.GetProject(context.Background(), "p1")
	require.Error(t, err)
	assert.True(t, IsUnauthorized(err))
	assert.Equal(t, int32(1), hits.Load())
}

func TestRetryClient_NotFoundNotRetried(t *testing.T) {
	var hits atomic.Int32
	rc := newRetryTestClient(t, nil, func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		writeError(w, http.StatusNotFound, `{"error": "not_found"}`)
	})

	_, err := rc.GetDeployment(context.Background(), "d1")
	require.Error(t, err)
	assert.Equal(t, int32(1), hits.Load())
}

func TestRetryClient_ListActivityGivesUp(t *testing.T) {
	var hits atomic.Int32
	rc := newRetryTestClient(t, &RetryConfig{MaxRetries: 2, InitialBackoff: time.Millisecond, MaxBackoff: time.Millisecond},
		func(w http.ResponseWriter, r *http.Request) {
			hits.Add(1)
			writeError(w, http.StatusInternalServerError, `{"error": "internal"}`)
		})

	_, err := rc.ListActivity(context.Background(), "t1", Page{Count: 5})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "giving up after 3 attempts")
	var re *RemoteError
	require.True(t, errors.As(err, &re))
	assert.Equal(t, http.StatusInternalServerError, re.Status)
	assert.Equal(t, int32(3), hits.Load())
}

func TestRetryClient_StopsWhenContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var hits atomic.Int32
	rc := newRetryTestClient(t, &RetryConfig{MaxRetries: 5, InitialBackoff: time.Minute, MaxBackoff: time.Minute},
		func(w http.ResponseWriter, r *http.Request) {
			hits.Add(1)
			cancel()
			writeError(w, http.StatusTooManyRequests, `{"error": "rate_limited"}`)
		})

	start := time.Now()
	_, err := rc.ListBranches(ctx, "p1")
	require.Error(t, err)
	assert.Less(t, time.Since(start), 10*time.Second)
	assert.Equal(t, int32(1), hits.Load())
}

func TestRetryClient_MutationsNotRetried(t *testing.T) {
	var hits atomic.Int32
	rc := newRetryTestClient(t, nil, func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		writeError(w, http.StatusServiceUnavailable, `{"error": "unavailable"}`)
	})

	assert.Error(t, rc.DeleteProject(context.Background(), "p1"))
	_, err := rc.AddComment(context.Background(), CommentInput{Deployment: "d1", Message: "hi"})
	assert.Error(t, err)
	assert.Equal(t, int32(2), hits.Load())
}

func TestRetryClient_Delay(t *testing.T) {
	rc := NewRetryClient(nil, &RetryConfig{InitialBackoff: 100 * time.Millisecond, MaxBackoff: time.Second})

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{0, 100 * time.Millisecond},
		{1, 200 * time.Millisecond},
		{3, 800 * time.Millisecond},
		{4, time.Second},
		{70, time.Second},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, rc.delay(tt.attempt), "attempt %d", tt.attempt)
	}
}
