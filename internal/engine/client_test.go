package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/kilupskalvis/minard/internal/remote"
)

// fakeClient serves canned JSON:API documents keyed by "<call>:<args>".
// Unknown keys answer 404. While gate is open every call blocks on it.
type fakeClient struct {
	mu    sync.Mutex
	docs  map[string]string
	errs  map[string]error
	calls map[string]int
	gate  chan struct{}
	token string
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		docs:  map[string]string{},
		errs:  map[string]error{},
		calls: map[string]int{},
	}
}

func (f *fakeClient) serve(key, raw string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.docs[key] = raw
}

func (f *fakeClient) fail(key string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errs[key] = err
}

func (f *fakeClient) hold() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gate = make(chan struct{})
}

func (f *fakeClient) release() {
	f.mu.Lock()
	gate := f.gate
	f.gate = nil
	f.mu.Unlock()
	if gate != nil {
		close(gate)
	}
}

func (f *fakeClient) count(key string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[key]
}

func (f *fakeClient) SetToken(token string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.token = token
}

func (f *fakeClient) currentToken() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.token
}

func (f *fakeClient) respond(key string) (*remote.Document, error) {
	f.mu.Lock()
	f.calls[key]++
	gate := f.gate
	raw, ok := f.docs[key]
	err := f.errs[key]
	f.mu.Unlock()

	if gate != nil {
		<-gate
	}
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, &remote.RemoteError{Status: http.StatusNotFound, Code: "not_found"}
	}
	var doc remote.Document
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

func pageKey(page remote.Page) string {
	if page.Until.IsZero() {
		return fmt.Sprintf("%d", page.Count)
	}
	return fmt.Sprintf("%d:%s", page.Count, page.Until.UTC().Format(time.RFC3339))
}

func (f *fakeClient) GetProject(_ context.Context, id string) (*remote.Document, error) {
	return f.respond("project:" + id)
}

func (f *fakeClient) ListProjects(_ context.Context, teamID string) (*remote.Document, error) {
	return f.respond("projects:" + teamID)
}

func (f *fakeClient) GetBranch(_ context.Context, id string) (*remote.Document, error) {
	return f.respond("branch:" + id)
}

func (f *fakeClient) ListBranches(_ context.Context, projectID string) (*remote.Document, error) {
	return f.respond("branches:" + projectID)
}

func (f *fakeClient) GetCommit(_ context.Context, id string) (*remote.Document, error) {
	return f.respond("commit:" + id)
}

func (f *fakeClient) ListCommits(_ context.Context, branchID string, page remote.Page) (*remote.Document, error) {
	return f.respond("commits:" + branchID + ":" + pageKey(page))
}

func (f *fakeClient) GetDeployment(_ context.Context, id string) (*remote.Document, error) {
	return f.respond("deployment:" + id)
}

func (f *fakeClient) ListComments(_ context.Context, deploymentID string) (*remote.Document, error) {
	return f.respond("comments:" + deploymentID)
}

func (f *fakeClient) ListActivity(_ context.Context, teamID string, page remote.Page) (*remote.Document, error) {
	return f.respond("activity:" + teamID + ":" + pageKey(page))
}

func (f *fakeClient) ListProjectActivity(_ context.Context, projectID string, page remote.Page) (*remote.Document, error) {
	return f.respond("project-activity:" + projectID + ":" + pageKey(page))
}

func (f *fakeClient) GetPreview(_ context.Context, kind, id string) (*remote.Document, error) {
	return f.respond("preview:" + kind + ":" + id)
}

func (f *fakeClient) CreateProject(_ context.Context, teamID string, _ remote.ProjectInput) (*remote.Document, error) {
	return f.respond("create-project:" + teamID)
}

func (f *fakeClient) EditProject(_ context.Context, id string, _ remote.ProjectEdit) (*remote.Document, error) {
	return f.respond("edit-project:" + id)
}

func (f *fakeClient) DeleteProject(_ context.Context, id string) error {
	_, err := f.respond("delete-project:" + id)
	return err
}

func (f *fakeClient) AddComment(_ context.Context, in remote.CommentInput) (*remote.Document, error) {
	return f.respond("add-comment:" + in.Deployment)
}

func (f *fakeClient) DeleteComment(_ context.Context, id string) error {
	_, err := f.respond("delete-comment:" + id)
	return err
}

var _ remote.Client = (*fakeClient)(nil)
