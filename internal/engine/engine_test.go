package engine

import (
	"context"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/kilupskalvis/minard/internal/models"
	"github.com/kilupskalvis/minard/internal/remote"
	"github.com/kilupskalvis/minard/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	projectP1 = `{"data": {"type": "projects", "id": "p1",
		"attributes": {"name": "site", "repo-url": "git@example.com:site.git"},
		"relationships": {"latest-successfully-deployed-commit": {"data": {"type": "commits", "id": "c1"}}}}}`
	commitC1 = `{"data": {"type": "commits", "id": "c1",
		"attributes": {"hash": "c1", "message": "first", "committer": {"email": "a@example.com", "timestamp": "2024-01-01T10:00:00Z"}},
		"relationships": {"deployments": {"data": [{"type": "deployments", "id": "d1"}]}}}}`
	deploymentD1 = `{"data": {"type": "deployments", "id": "d1", "attributes": {"status": "success"}}}`
)

func newTestEngine(t *testing.T, opts Options) (*Engine, *fakeClient) {
	t.Helper()
	client := newFakeClient()
	e := New(client, store.NewDispatcher(nil), opts)
	t.Cleanup(e.Wait)
	return e, client
}

func TestLoadProject_FetchesAndEnsures(t *testing.T) {
	e, client := newTestEngine(t, Options{})
	client.serve("project:p1", projectP1)
	client.serve("commit:c1", commitC1)
	client.serve("deployment:d1", deploymentD1)

	e.LoadProject(context.Background(), "p1")
	e.Wait()

	s := e.Store().State()
	p, ok := s.Projects.Entity("p1")
	require.True(t, ok)
	assert.Equal(t, "site", p.Name)
	assert.True(t, s.Has(models.TypeCommit, "c1"))
	assert.True(t, s.Has(models.TypeDeployment, "d1"))
	assert.False(t, s.Requests.IsLoading(models.TypeProject, "p1"))

	// A cache hit ensures again, but everything is cached.
	e.LoadProject(context.Background(), "p1")
	e.Wait()
	assert.Equal(t, 1, client.count("project:p1"))
	assert.Equal(t, 1, client.count("commit:c1"))
	assert.Equal(t, 1, client.count("deployment:d1"))
}

func TestLoadProject_DeduplicatesInFlight(t *testing.T) {
	e, client := newTestEngine(t, Options{})
	client.serve("project:p1", `{"data": {"type": "projects", "id": "p1", "attributes": {"name": "site"}}}`)
	client.hold()

	done := make(chan struct{})
	go func() {
		defer close(done)
		e.LoadProject(context.Background(), "p1")
	}()
	require.Eventually(t, func() bool {
		return e.Store().State().Requests.IsLoading(models.TypeProject, "p1")
	}, time.Second, time.Millisecond)

	for i := 0; i < 4; i++ {
		e.LoadProject(context.Background(), "p1")
	}
	client.release()
	<-done
	e.Wait()

	assert.Equal(t, 1, client.count("project:p1"))
	assert.True(t, e.Store().State().Has(models.TypeProject, "p1"))
}

func TestLoadProject_FailureStoresError(t *testing.T) {
	e, client := newTestEngine(t, Options{})

	e.LoadProject(context.Background(), "p1")
	e.Wait()

	s := e.Store().State()
	slot, ok := s.Projects.Get("p1")
	require.True(t, ok)
	require.NotNil(t, slot.Err)
	assert.Equal(t, "not_found", slot.Err.Err)
	assert.NotNil(t, s.Requests.Failure(store.FetchKey(models.TypeProject, "p1")))
	assert.Equal(t, 1, client.count("project:p1"))

	// An error slot is not a cache hit.
	client.serve("project:p1", `{"data": {"type": "projects", "id": "p1", "attributes": {"name": "site"}}}`)
	e.LoadProject(context.Background(), "p1")
	e.Wait()
	assert.Equal(t, 2, client.count("project:p1"))
	assert.True(t, e.Store().State().Has(models.TypeProject, "p1"))
}

func TestLoadProject_FailureSkipsEnsure(t *testing.T) {
	e, client := newTestEngine(t, Options{})
	client.fail("project:p1", &remote.RemoteError{Code: "internal", Status: http.StatusInternalServerError})
	client.serve("commit:c1", commitC1)
	client.serve("deployment:d1", deploymentD1)

	e.LoadProject(context.Background(), "p1")
	e.Wait()

	assert.Equal(t, 1, client.count("project:p1"))
	assert.Zero(t, client.count("commit:c1"))
	assert.Zero(t, client.count("deployment:d1"))

	e.LoadCommit(context.Background(), "c2")
	e.Wait()
	assert.Equal(t, 1, client.count("commit:c2"))
	assert.Zero(t, client.count("deployment:d1"))
}

func TestLoadProject_UnauthorizedCallback(t *testing.T) {
	var (
		mu  sync.Mutex
		got *models.FetchError
	)
	e, client := newTestEngine(t, Options{OnUnauthorized: func(ferr *models.FetchError) {
		mu.Lock()
		defer mu.Unlock()
		got = ferr
	}})
	client.fail("project:p1", &remote.RemoteError{Status: http.StatusUnauthorized, Code: "unauthorized", Unauthorized: true})

	e.LoadProject(context.Background(), "p1")
	e.Wait()

	mu.Lock()
	defer mu.Unlock()
	require.NotNil(t, got)
	assert.True(t, got.Unauthorized)
	assert.Equal(t, "p1", got.ID)
}

func TestLoadBranch_StoresIncludedFirst(t *testing.T) {
	e, client := newTestEngine(t, Options{})
	client.serve("branch:b1", `{
		"data": {"type": "branches", "id": "b1", "attributes": {"name": "main"},
			"relationships": {"project": {"data": {"type": "projects", "id": "p1"}}}},
		"included": [{"type": "projects", "id": "p1", "attributes": {"name": "site"}}]
	}`)

	var sawBranchWithoutProject bool
	unsubscribe := e.Store().Subscribe(func(_, next *store.State) {
		if next.Has(models.TypeBranch, "b1") && !next.Has(models.TypeProject, "p1") {
			sawBranchWithoutProject = true
		}
	})
	defer unsubscribe()

	e.LoadBranch(context.Background(), "b1")
	e.Wait()

	s := e.Store().State()
	assert.True(t, s.Has(models.TypeBranch, "b1"))
	assert.True(t, s.Has(models.TypeProject, "p1"))
	assert.False(t, sawBranchWithoutProject)
	assert.Zero(t, client.count("project:p1"))
}

func TestLoadAllProjects_FetchesSharedRelationsOnce(t *testing.T) {
	e, client := newTestEngine(t, Options{})
	client.serve("projects:t1", `{"data": [
		{"type": "projects", "id": "p1", "relationships": {"latest-successfully-deployed-commit": {"data": {"type": "commits", "id": "c1"}}}},
		{"type": "projects", "id": "p2", "relationships": {"latest-successfully-deployed-commit": {"data": {"type": "commits", "id": "c1"}}}}
	]}`)
	client.serve("commit:c1", commitC1)
	client.serve("deployment:d1", deploymentD1)

	e.LoadAllProjects(context.Background(), "t1")
	e.Wait()

	s := e.Store().State()
	assert.Equal(t, 2, s.Projects.Len())
	assert.True(t, s.Requests.AllRequested(models.TypeProject))
	assert.Equal(t, 1, client.count("commit:c1"))
	assert.Equal(t, 1, client.count("deployment:d1"))
}

func TestLoadBranchesForProject(t *testing.T) {
	e, client := newTestEngine(t, Options{})
	e.Store().Dispatch(store.StoreProjects{Projects: []models.Project{{ID: "p1"}}})
	client.serve("branches:p1", `{"data": [
		{"type": "branches", "id": "b1", "relationships": {"project": {"data": {"type": "projects", "id": "p1"}}}},
		{"type": "branches", "id": "b2", "relationships": {"project": {"data": {"type": "projects", "id": "p1"}}}}
	]}`)

	e.LoadBranchesForProject(context.Background(), "p1")
	e.Wait()

	p, ok := e.Store().State().Projects.Entity("p1")
	require.True(t, ok)
	assert.Equal(t, []string{"b1", "b2"}, p.Branches)
	assert.Nil(t, p.BranchesError)
	assert.Zero(t, client.count("project:p1"))
}

func TestLoadBranchesForProject_Failure(t *testing.T) {
	e, _ := newTestEngine(t, Options{})
	e.Store().Dispatch(store.StoreProjects{Projects: []models.Project{{ID: "p1"}}})

	e.LoadBranchesForProject(context.Background(), "p1")
	e.Wait()

	p, ok := e.Store().State().Projects.Entity("p1")
	require.True(t, ok)
	assert.Nil(t, p.Branches)
	require.NotNil(t, p.BranchesError)
	assert.Equal(t, "not_found", p.BranchesError.Err)
}

func TestLoadCommitsForBranch_Pagination(t *testing.T) {
	e, client := newTestEngine(t, Options{PageSize: 2})
	e.Store().Dispatch(store.StoreBranches{Branches: []models.Branch{{ID: "b1", Project: "p1", Commits: []string{}}}})
	client.serve("commits:b1:2", `{"data": [
		{"type": "commits", "id": "c3", "attributes": {"committer": {"timestamp": "2024-01-03T00:00:00Z"}}},
		{"type": "commits", "id": "c2", "attributes": {"committer": {"timestamp": "2024-01-02T00:00:00Z"}}}
	]}`)
	client.serve("commits:b1:2:2024-01-02T00:00:00Z", `{"data": [
		{"type": "commits", "id": "c1", "attributes": {"committer": {"timestamp": "2024-01-01T00:00:00Z"}}}
	]}`)

	e.LoadCommitsForBranch(context.Background(), "b1", 0, time.Time{})
	e.Wait()

	b, _ := e.Store().State().Branches.Entity("b1")
	assert.Equal(t, []string{"c3", "c2"}, b.Commits)
	assert.False(t, b.AllCommitsLoaded)

	e.LoadMoreCommits(context.Background(), "b1")
	e.Wait()

	s := e.Store().State()
	b, _ = s.Branches.Entity("b1")
	assert.Equal(t, []string{"c3", "c2", "c1"}, b.Commits)
	assert.True(t, b.AllCommitsLoaded)
	assert.True(t, s.Requests.AllRequestedForParent(models.TypeCommit, "b1"))

	// Exhausted history is not requested again.
	e.LoadMoreCommits(context.Background(), "b1")
	e.Wait()
	assert.Equal(t, 1, client.count("commits:b1:2:2024-01-02T00:00:00Z"))
}

func TestLoadCommitsForBranch_FullPageWithMalformedItem(t *testing.T) {
	e, client := newTestEngine(t, Options{PageSize: 2})
	e.Store().Dispatch(store.StoreBranches{Branches: []models.Branch{{ID: "b1", Project: "p1", Commits: []string{}}}})
	client.serve("commits:b1:2", `{"data": [
		{"type": "commits", "id": "c3", "attributes": {"committer": {"timestamp": "2024-01-03T00:00:00Z"}}},
		{"type": "commits", "id": "c2", "attributes": {"committer": "broken"}}
	]}`)

	e.LoadCommitsForBranch(context.Background(), "b1", 0, time.Time{})
	e.Wait()

	s := e.Store().State()
	b, _ := s.Branches.Entity("b1")
	assert.Equal(t, []string{"c3"}, b.Commits)
	assert.False(t, b.AllCommitsLoaded)
	assert.False(t, s.Requests.AllRequestedForParent(models.TypeCommit, "b1"))
}

func TestLoadActivity_FullPageWithMalformedItem(t *testing.T) {
	e, client := newTestEngine(t, Options{PageSize: 2})
	client.serve("activity:t1:2", `{"data": [
		{"type": "activities", "id": "a1", "attributes": {"activity-type": "deployment", "timestamp": "2024-01-01T00:00:00Z"},
		 "relationships": {
			"project": {"data": {"type": "projects", "id": "p1"}},
			"branch": {"data": {"type": "branches", "id": "b1"}},
			"deployment": {"data": {"type": "deployments", "id": "d1"}}}},
		{"type": "activities", "id": "a2", "attributes": {"activity-type": "deployment", "timestamp": "2024-01-01T00:00:00Z"}}
	]}`)
	client.serve("deployment:d1", deploymentD1)

	e.LoadActivity(context.Background(), "t1", 0, time.Time{})
	e.Wait()

	s := e.Store().State()
	assert.True(t, s.Has(models.TypeActivity, "a1"))
	assert.False(t, s.Has(models.TypeActivity, "a2"))
	assert.False(t, s.Requests.AllRequested(models.TypeActivity))
}

func TestLoadCommentsForDeployment(t *testing.T) {
	e, client := newTestEngine(t, Options{})
	e.Store().Dispatch(store.StoreDeployments{Deployments: []models.Deployment{{ID: "d1", Status: models.DeploymentSuccess}}})
	client.serve("comments:d1", `{"data": [
		{"type": "comments", "id": "m1", "attributes": {"message": "looks good", "deployment": "d1"}}
	]}`)

	e.LoadCommentsForDeployment(context.Background(), "d1")
	e.Wait()

	s := e.Store().State()
	d, _ := s.Deployments.Entity("d1")
	assert.Equal(t, []string{"m1"}, d.Comments)
	c, ok := s.Comments.Entity("m1")
	require.True(t, ok)
	assert.Equal(t, "looks good", c.Message)
}

func TestLoadActivity_EnsuresReferencedEntities(t *testing.T) {
	e, client := newTestEngine(t, Options{PageSize: 5})
	client.serve("activity:t1:5", `{"data": [
		{"type": "activities", "id": "a1", "attributes": {"activity-type": "deployment", "timestamp": "2024-01-01T00:00:00Z"},
		 "relationships": {
			"project": {"data": {"type": "projects", "id": "p1"}},
			"branch": {"data": {"type": "branches", "id": "b1"}},
			"commit": {"data": {"type": "commits", "id": "c1"}},
			"deployment": {"data": {"type": "deployments", "id": "d1"}}}}
	]}`)
	client.serve("commit:c1", commitC1)
	client.serve("deployment:d1", deploymentD1)

	e.LoadActivity(context.Background(), "t1", 0, time.Time{})
	e.Wait()

	s := e.Store().State()
	assert.True(t, s.Has(models.TypeActivity, "a1"))
	assert.True(t, s.Requests.AllRequested(models.TypeActivity))
	assert.Equal(t, 1, client.count("commit:c1"))
	assert.Equal(t, 1, client.count("deployment:d1"))
}

func TestLoadPreview(t *testing.T) {
	e, client := newTestEngine(t, Options{})
	client.serve("preview:deployment:d1", `{
		"data": {"type": "previews", "id": "x",
			"attributes": {"project": {"id": "p1", "name": "site"}, "branch": {"id": "b1", "name": "main"}},
			"relationships": {"commit": {"data": {"type": "commits", "id": "c1"}}, "deployment": {"data": {"type": "deployments", "id": "d1"}}}},
		"included": [{"type": "deployments", "id": "d1", "attributes": {"status": "success"}}]
	}`)

	e.LoadPreview(context.Background(), "deployment", "d1")
	e.LoadPreview(context.Background(), "deployment", "d1")
	e.Wait()

	s := e.Store().State()
	pv, ok := s.Previews.Entity(models.PreviewKey("deployment", "d1"))
	require.True(t, ok)
	assert.Equal(t, "site", pv.Project.Name)
	assert.True(t, s.Has(models.TypeDeployment, "d1"))
	assert.Equal(t, 1, client.count("preview:deployment:d1"))
}

type blockingStream struct {
	started chan struct{}
}

func (s *blockingStream) Run(ctx context.Context) error {
	close(s.started)
	<-ctx.Done()
	return ctx.Err()
}

func TestInitTeardown(t *testing.T) {
	e, client := newTestEngine(t, Options{})
	client.serve("project:p1", `{"data": {"type": "projects", "id": "p1"}}`)

	stream := &blockingStream{started: make(chan struct{})}
	e.Init(context.Background(), "secret", stream)
	<-stream.started
	assert.Equal(t, "secret", client.currentToken())

	e.LoadProject(context.Background(), "p1")
	e.Wait()
	require.Equal(t, 1, e.Store().State().Projects.Len())

	e.Teardown()
	assert.Equal(t, "", client.currentToken())
	assert.Zero(t, e.Store().State().Projects.Len())
}
