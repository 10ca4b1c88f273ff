package engine

import (
	"context"

	"github.com/kilupskalvis/minard/internal/models"
	"golang.org/x/sync/errgroup"
)

// Ensurers fetch the direct relations of a resolved entity that are not yet
// cached. They never recurse past one hop; deeper data is loaded when a view
// asks for it.

// fetchIfMissing returns the entity for id, fetching it first when the cache
// has no valid entry for it.
func fetchIfMissing[T models.Entity](ctx context.Context, e *Engine, k kind[T], id string) (T, bool) {
	var zero T
	if id == "" {
		return zero, false
	}
	table := k.table(e.store.State())
	if entity, ok := table.Entity(id); ok {
		return entity, true
	}
	fetchOne(ctx, e, k, id)
	return k.table(e.store.State()).Entity(id)
}

// fetchAllMissing fetches every distinct missing ID in ids.
func fetchAllMissing[T models.Entity](ctx context.Context, e *Engine, k kind[T], ids []string) {
	var g errgroup.Group
	g.SetLimit(maxParallelFetches)

	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		g.Go(func() error {
			fetchIfMissing(ctx, e, k, id)
			return nil
		})
	}
	g.Wait()
}

// deploymentsOf returns the deployment IDs of the cached commits in commitIDs.
func (e *Engine) deploymentsOf(commitIDs []string) []string {
	commits := e.store.State().Commits
	var out []string
	for _, id := range commitIDs {
		if c, ok := commits.Entity(id); ok && c.Deployment != "" {
			out = append(out, c.Deployment)
		}
	}
	return out
}

// ensureProject: latest deployed commit, then its deployment.
func (e *Engine) ensureProject(ctx context.Context, p models.Project) {
	if c, ok := fetchIfMissing(ctx, e, commitKind, p.LatestSuccessfullyDeployedCommit); ok {
		fetchIfMissing(ctx, e, deploymentKind, c.Deployment)
	}
}

// ensureBranch: parent project, latest deployed commit and its deployment,
// and the latest commit.
func (e *Engine) ensureBranch(ctx context.Context, b models.Branch) {
	var g errgroup.Group
	g.Go(func() error {
		fetchIfMissing(ctx, e, projectKind, b.Project)
		return nil
	})
	g.Go(func() error {
		if c, ok := fetchIfMissing(ctx, e, commitKind, b.LatestSuccessfullyDeployedCommit); ok {
			fetchIfMissing(ctx, e, deploymentKind, c.Deployment)
		}
		return nil
	})
	g.Go(func() error {
		fetchIfMissing(ctx, e, commitKind, b.LatestCommit)
		return nil
	})
	g.Wait()
}

// ensureCommit: the commit's deployment.
func (e *Engine) ensureCommit(ctx context.Context, c models.Commit) {
	fetchIfMissing(ctx, e, deploymentKind, c.Deployment)
}

func (e *Engine) ensureDeployment(context.Context, models.Deployment) {}

func (e *Engine) ensureProjects(ctx context.Context, projects []models.Project) {
	deployed := make([]string, 0, len(projects))
	for _, p := range projects {
		deployed = append(deployed, p.LatestSuccessfullyDeployedCommit)
	}
	fetchAllMissing(ctx, e, commitKind, deployed)
	fetchAllMissing(ctx, e, deploymentKind, e.deploymentsOf(deployed))
}

func (e *Engine) ensureBranches(ctx context.Context, branches []models.Branch) {
	var projects, deployed, commits []string
	for _, b := range branches {
		projects = append(projects, b.Project)
		deployed = append(deployed, b.LatestSuccessfullyDeployedCommit)
		commits = append(commits, b.LatestSuccessfullyDeployedCommit, b.LatestCommit)
	}

	var g errgroup.Group
	g.Go(func() error {
		fetchAllMissing(ctx, e, projectKind, projects)
		return nil
	})
	g.Go(func() error {
		fetchAllMissing(ctx, e, commitKind, commits)
		return nil
	})
	g.Wait()

	fetchAllMissing(ctx, e, deploymentKind, e.deploymentsOf(deployed))
}

func (e *Engine) ensureCommits(ctx context.Context, commits []models.Commit) {
	deployments := make([]string, 0, len(commits))
	for _, c := range commits {
		deployments = append(deployments, c.Deployment)
	}
	fetchAllMissing(ctx, e, deploymentKind, deployments)
}

// ensureActivities: the commit and deployment each feed item refers to.
func (e *Engine) ensureActivities(ctx context.Context, activities []models.Activity) {
	var commits, deployments []string
	for _, a := range activities {
		commits = append(commits, a.Commit)
		deployments = append(deployments, a.Deployment)
	}

	var g errgroup.Group
	g.Go(func() error {
		fetchAllMissing(ctx, e, commitKind, commits)
		return nil
	})
	g.Go(func() error {
		fetchAllMissing(ctx, e, deploymentKind, deployments)
		return nil
	})
	g.Wait()
}
