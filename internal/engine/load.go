package engine

import (
	"context"
	"time"

	"github.com/kilupskalvis/minard/internal/metrics"
	"github.com/kilupskalvis/minard/internal/models"
	"github.com/kilupskalvis/minard/internal/remote"
	"github.com/kilupskalvis/minard/internal/store"
)

// kind binds an entity type to its table, single-entity endpoint and
// converter.
type kind[T models.Entity] struct {
	typ     models.EntityType
	table   func(*store.State) *store.Table[T]
	get     func(c remote.Client, ctx context.Context, id string) (*remote.Document, error)
	convert remote.Converter[T]
	store   func([]T) store.Action
}

var (
	projectKind = kind[models.Project]{
		typ:     models.TypeProject,
		table:   func(s *store.State) *store.Table[models.Project] { return s.Projects },
		get:     remote.Client.GetProject,
		convert: remote.ConvertProject,
		store:   func(ps []models.Project) store.Action { return store.StoreProjects{Projects: ps} },
	}
	branchKind = kind[models.Branch]{
		typ:     models.TypeBranch,
		table:   func(s *store.State) *store.Table[models.Branch] { return s.Branches },
		get:     remote.Client.GetBranch,
		convert: remote.ConvertBranch,
		store:   func(bs []models.Branch) store.Action { return store.StoreBranches{Branches: bs} },
	}
	commitKind = kind[models.Commit]{
		typ:     models.TypeCommit,
		table:   func(s *store.State) *store.Table[models.Commit] { return s.Commits },
		get:     remote.Client.GetCommit,
		convert: remote.ConvertCommit,
		store:   func(cs []models.Commit) store.Action { return store.StoreCommits{Commits: cs} },
	}
	deploymentKind = kind[models.Deployment]{
		typ:     models.TypeDeployment,
		table:   func(s *store.State) *store.Table[models.Deployment] { return s.Deployments },
		get:     remote.Client.GetDeployment,
		convert: remote.ConvertDeployment,
		store:   func(ds []models.Deployment) store.Action { return store.StoreDeployments{Deployments: ds} },
	}
)

// fetchOne fetches a single entity by ID, storing a FetchError in its slot
// on failure.
func fetchOne[T models.Entity](ctx context.Context, e *Engine, k kind[T], id string) bool {
	return fetch(ctx, e, fetchSpec[T]{
		key:     store.FetchKey(k.typ, id),
		call:    func(ctx context.Context) (*remote.Document, error) { return k.get(e.client, ctx, id) },
		convert: k.convert,
		store:   k.store,
		failure: storeFailure,
	})
}

// load returns immediately on a cache hit and otherwise fetches id. After a
// hit or a successful fetch, ensure runs in the background exactly once; a
// failed or deduplicated fetch does not ensure.
func load[T models.Entity](ctx context.Context, e *Engine, k kind[T], id string, ensure func(context.Context, T)) {
	defer e.track()()

	if entity, ok := k.table(e.store.State()).Entity(id); ok {
		metrics.CacheHits.WithLabelValues(string(k.typ)).Inc()
		e.background(ctx, func(ctx context.Context) { ensure(ctx, entity) })
		return
	}

	if !fetchOne(context.WithoutCancel(ctx), e, k, id) {
		return
	}
	if entity, ok := k.table(e.store.State()).Entity(id); ok {
		e.background(ctx, func(ctx context.Context) { ensure(ctx, entity) })
	} else {
		e.logger.Warn("fetch succeeded without the requested entity", "type", k.typ, "id", id)
	}
}

// LoadProject loads a project and ensures its deployed commit.
func (e *Engine) LoadProject(ctx context.Context, id string) {
	load(ctx, e, projectKind, id, e.ensureProject)
}

// LoadBranch loads a branch and ensures its project and commits.
func (e *Engine) LoadBranch(ctx context.Context, id string) {
	load(ctx, e, branchKind, id, e.ensureBranch)
}

// LoadCommit loads a commit and ensures its deployment.
func (e *Engine) LoadCommit(ctx context.Context, id string) {
	load(ctx, e, commitKind, id, e.ensureCommit)
}

// LoadDeployment loads a deployment. Deployments have no relations to ensure.
func (e *Engine) LoadDeployment(ctx context.Context, id string) {
	load(ctx, e, deploymentKind, id, e.ensureDeployment)
}

// LoadAllProjects fetches every project of a team and ensures each one.
func (e *Engine) LoadAllProjects(ctx context.Context, teamID string) {
	defer e.track()()

	var loaded []models.Project
	ok := fetch(context.WithoutCancel(ctx), e, fetchSpec[models.Project]{
		key:     store.RequestKey{Type: models.TypeProject, Op: store.OpFetchList, ID: teamID},
		call:    func(ctx context.Context) (*remote.Document, error) { return e.client.ListProjects(ctx, teamID) },
		convert: remote.ConvertProject,
		store:   projectKind.store,
		after: func(ps []models.Project, _ int) []store.Action {
			loaded = ps
			return []store.Action{store.CollectionExhausted{Type: models.TypeProject}}
		},
	})
	if ok {
		e.background(ctx, func(ctx context.Context) { e.ensureProjects(ctx, loaded) })
	}
}

// LoadBranchesForProject fetches a project's branches, records the branch
// list on the project and ensures each branch.
func (e *Engine) LoadBranchesForProject(ctx context.Context, projectID string) {
	defer e.track()()

	var loaded []models.Branch
	ok := fetch(context.WithoutCancel(ctx), e, fetchSpec[models.Branch]{
		key:     store.RequestKey{Type: models.TypeBranch, Op: store.OpFetchList, ID: projectID},
		call:    func(ctx context.Context) (*remote.Document, error) { return e.client.ListBranches(ctx, projectID) },
		convert: remote.ConvertBranch,
		store:   branchKind.store,
		after: func(bs []models.Branch, _ int) []store.Action {
			loaded = bs
			return []store.Action{
				store.SetProjectBranches(projectID, ids(bs)),
				store.CollectionExhausted{Type: models.TypeBranch, Parent: projectID},
			}
		},
		failure: func(ferr *models.FetchError) []store.Action {
			return []store.Action{store.SetProjectBranchesError(projectID, ferr)}
		},
	})
	if ok {
		e.background(ctx, func(ctx context.Context) { e.ensureBranches(ctx, loaded) })
	}
}

// LoadCommitsForBranch fetches a page of up to count commits older than
// until (zero for the newest) and merges it into the branch. A page shorter
// than count marks the branch history as fully loaded.
func (e *Engine) LoadCommitsForBranch(ctx context.Context, branchID string, count int, until time.Time) {
	defer e.track()()

	if count <= 0 {
		count = e.pageSize
	}
	var loaded []models.Commit
	ok := fetch(context.WithoutCancel(ctx), e, fetchSpec[models.Commit]{
		key: store.RequestKey{Type: models.TypeCommit, Op: store.OpFetchList, ID: branchID},
		call: func(ctx context.Context) (*remote.Document, error) {
			return e.client.ListCommits(ctx, branchID, remote.Page{Count: count, Until: until})
		},
		convert: remote.ConvertCommit,
		store:   commitKind.store,
		after: func(cs []models.Commit, received int) []store.Action {
			loaded = cs
			allLoaded := received < count
			actions := []store.Action{store.AddBranchCommits(branchID, ids(cs), until.IsZero(), allLoaded)}
			if allLoaded {
				actions = append(actions, store.CollectionExhausted{Type: models.TypeCommit, Parent: branchID})
			}
			return actions
		},
	})
	if ok {
		e.background(ctx, func(ctx context.Context) { e.ensureCommits(ctx, loaded) })
	}
}

// LoadMoreCommits fetches the next page of a loaded branch's history, using
// the oldest known commit as the cursor. It does nothing once the history is
// fully loaded.
func (e *Engine) LoadMoreCommits(ctx context.Context, branchID string) {
	s := e.store.State()
	b, ok := s.Branches.Entity(branchID)
	if !ok || b.AllCommitsLoaded || s.Requests.AllRequestedForParent(models.TypeCommit, branchID) {
		return
	}

	var until time.Time
	if n := len(b.Commits); n > 0 {
		if oldest, ok := s.Commits.Entity(b.Commits[n-1]); ok {
			until = oldest.Committer.Timestamp
		}
	}
	e.LoadCommitsForBranch(ctx, branchID, e.pageSize, until)
}

// LoadCommentsForDeployment fetches a deployment's comments and records the
// comment list on the deployment.
func (e *Engine) LoadCommentsForDeployment(ctx context.Context, deploymentID string) {
	defer e.track()()

	fetch(context.WithoutCancel(ctx), e, fetchSpec[models.Comment]{
		key:     store.RequestKey{Type: models.TypeComment, Op: store.OpFetchList, ID: deploymentID},
		call:    func(ctx context.Context) (*remote.Document, error) { return e.client.ListComments(ctx, deploymentID) },
		convert: remote.ConvertComment,
		store:   func(cs []models.Comment) store.Action { return store.StoreComments{Comments: cs} },
		after: func(cs []models.Comment, _ int) []store.Action {
			return []store.Action{store.SetDeploymentComments(deploymentID, ids(cs))}
		},
		failure: func(ferr *models.FetchError) []store.Action {
			return []store.Action{store.SetDeploymentCommentsError(deploymentID, ferr)}
		},
	})
}

// LoadActivity fetches a page of the team activity feed.
func (e *Engine) LoadActivity(ctx context.Context, teamID string, count int, until time.Time) {
	e.loadActivity(ctx, "", count, until, func(ctx context.Context, page remote.Page) (*remote.Document, error) {
		return e.client.ListActivity(ctx, teamID, page)
	})
}

// LoadActivityForProject fetches a page of one project's activity feed.
func (e *Engine) LoadActivityForProject(ctx context.Context, projectID string, count int, until time.Time) {
	e.loadActivity(ctx, projectID, count, until, func(ctx context.Context, page remote.Page) (*remote.Document, error) {
		return e.client.ListProjectActivity(ctx, projectID, page)
	})
}

func (e *Engine) loadActivity(ctx context.Context, parent string, count int, until time.Time,
	call func(context.Context, remote.Page) (*remote.Document, error)) {
	defer e.track()()

	if count <= 0 {
		count = e.pageSize
	}
	var loaded []models.Activity
	ok := fetch(context.WithoutCancel(ctx), e, fetchSpec[models.Activity]{
		key:     store.RequestKey{Type: models.TypeActivity, Op: store.OpFetchList, ID: parent},
		call:    func(ctx context.Context) (*remote.Document, error) { return call(ctx, remote.Page{Count: count, Until: until}) },
		convert: remote.ConvertActivity,
		store:   func(as []models.Activity) store.Action { return store.StoreActivities{Activities: as} },
		after: func(as []models.Activity, received int) []store.Action {
			loaded = as
			if received < count {
				return []store.Action{store.CollectionExhausted{Type: models.TypeActivity, Parent: parent}}
			}
			return nil
		},
	})
	if ok {
		e.background(ctx, func(ctx context.Context) { e.ensureActivities(ctx, loaded) })
	}
}

// LoadPreview loads the preview of a deployment or commit together with the
// side-loaded commit and deployment it refers to.
func (e *Engine) LoadPreview(ctx context.Context, previewKind, id string) {
	defer e.track()()

	key := models.PreviewKey(previewKind, id)
	if _, ok := e.store.State().Previews.Entity(key); ok {
		metrics.CacheHits.WithLabelValues(string(models.TypePreview)).Inc()
		return
	}

	fetch(context.WithoutCancel(ctx), e, fetchSpec[models.Preview]{
		key:     store.FetchKey(models.TypePreview, key),
		call:    func(ctx context.Context) (*remote.Document, error) { return e.client.GetPreview(ctx, previewKind, id) },
		convert: remote.ConvertPreview,
		store: func(ps []models.Preview) store.Action {
			for i := range ps {
				ps[i].Key = key
			}
			return store.StorePreviews{Previews: ps}
		},
		failure: storeFailure,
	})
}
