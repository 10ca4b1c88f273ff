package store

import (
	"slices"
	"time"

	"github.com/kilupskalvis/minard/internal/models"
)

// AttachBranch appends branchID to the project's loaded branch list.
func AttachBranch(projectID, branchID string) Action {
	return UpdateProject{ID: projectID, Apply: func(p models.Project) models.Project {
		if p.Branches == nil || slices.Contains(p.Branches, branchID) {
			return p
		}
		p.Branches = append(slices.Clone(p.Branches), branchID)
		return p
	}}
}

// DetachBranch removes branchID from the project's branch list.
func DetachBranch(projectID, branchID string) Action {
	return UpdateProject{ID: projectID, Apply: func(p models.Project) models.Project {
		if !slices.Contains(p.Branches, branchID) {
			return p
		}
		p.Branches = slices.DeleteFunc(slices.Clone(p.Branches), func(id string) bool { return id == branchID })
		return p
	}}
}

// SetProjectBranches replaces the project's branch list.
func SetProjectBranches(projectID string, branchIDs []string) Action {
	return UpdateProject{ID: projectID, Apply: func(p models.Project) models.Project {
		p.Branches = slices.Clone(branchIDs)
		if p.Branches == nil {
			p.Branches = []string{}
		}
		p.BranchesError = nil
		return p
	}}
}

// SetProjectBranchesError records that the project's branch list failed to
// load. A list that is already loaded is kept.
func SetProjectBranchesError(projectID string, ferr *models.FetchError) Action {
	return UpdateProject{ID: projectID, Apply: func(p models.Project) models.Project {
		if p.Branches != nil {
			return p
		}
		p.BranchesError = ferr
		return p
	}}
}

// AttachComment appends commentID to the deployment's comment list.
func AttachComment(deploymentID, commentID string) Action {
	return UpdateDeployment{ID: deploymentID, Apply: func(d models.Deployment) models.Deployment {
		if slices.Contains(d.Comments, commentID) {
			return d
		}
		d.Comments = append(slices.Clone(d.Comments), commentID)
		return d
	}}
}

// DetachComment removes commentID from the deployment's comment list.
func DetachComment(deploymentID, commentID string) Action {
	return UpdateDeployment{ID: deploymentID, Apply: func(d models.Deployment) models.Deployment {
		if !slices.Contains(d.Comments, commentID) {
			return d
		}
		d.Comments = slices.DeleteFunc(slices.Clone(d.Comments), func(id string) bool { return id == commentID })
		return d
	}}
}

// SetDeploymentComments replaces the deployment's comment list.
func SetDeploymentComments(deploymentID string, commentIDs []string) Action {
	return UpdateDeployment{ID: deploymentID, Apply: func(d models.Deployment) models.Deployment {
		d.Comments = slices.Clone(commentIDs)
		if d.Comments == nil {
			d.Comments = []string{}
		}
		d.CommentsError = nil
		return d
	}}
}

// SetDeploymentCommentsError records that the comment list failed to load.
func SetDeploymentCommentsError(deploymentID string, ferr *models.FetchError) Action {
	return UpdateDeployment{ID: deploymentID, Apply: func(d models.Deployment) models.Deployment {
		if d.Comments != nil {
			return d
		}
		d.CommentsError = ferr
		return d
	}}
}

// AddBranchCommits merges a page of commit IDs (newest first) into the
// branch. A first page (zero until) replaces the list; later pages are
// appended after the commits already known.
func AddBranchCommits(branchID string, commitIDs []string, firstPage, allLoaded bool) Action {
	return UpdateBranch{ID: branchID, Apply: func(b models.Branch) models.Branch {
		var merged []string
		if firstPage {
			merged = make([]string, 0, len(commitIDs))
		} else {
			merged = slices.Clone(b.Commits)
		}
		for _, id := range commitIDs {
			if !slices.Contains(merged, id) {
				merged = append(merged, id)
			}
		}
		b.Commits = merged
		b.AllCommitsLoaded = allLoaded
		return b
	}}
}

// SetDeployedCommit marks commitID as the latest successfully deployed
// commit of both the branch and the project.
func SetDeployedCommit(projectID, branchID, commitID string) []Action {
	return []Action{
		UpdateBranch{ID: branchID, Apply: func(b models.Branch) models.Branch {
			b.LatestSuccessfullyDeployedCommit = commitID
			return b
		}},
		UpdateProject{ID: projectID, Apply: func(p models.Project) models.Project {
			p.LatestSuccessfullyDeployedCommit = commitID
			return p
		}},
	}
}

// TouchActivity sets the latest activity timestamp of the project and
// branch to ts, even when ts is older than the stored one.
func TouchActivity(projectID, branchID string, ts time.Time) []Action {
	return []Action{
		UpdateBranch{ID: branchID, Apply: func(b models.Branch) models.Branch {
			b.LatestActivityTimestamp = ts
			return b
		}},
		UpdateProject{ID: projectID, Apply: func(p models.Project) models.Project {
			p.LatestActivityTimestamp = ts
			return p
		}},
	}
}
