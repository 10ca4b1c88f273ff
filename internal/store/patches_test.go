package store

import (
	"testing"
	"time"

	"github.com/kilupskalvis/minard/internal/models"
	"github.com/stretchr/testify/assert"
)

func TestPatches_BranchAttachDetach(t *testing.T) {
	d := NewDispatcher(nil)
	d.Dispatch(StoreProjects{Projects: []models.Project{{ID: "p1", Branches: []string{"b1"}}}})
	orig, _ := d.State().Projects.Entity("p1")

	s := d.Dispatch(AttachBranch("p1", "b2"), AttachBranch("p1", "b2"))
	p, _ := s.Projects.Entity("p1")
	assert.Equal(t, []string{"b1", "b2"}, p.Branches)
	assert.Equal(t, []string{"b1"}, orig.Branches)

	s = d.Dispatch(DetachBranch("p1", "b1"))
	p, _ = s.Projects.Entity("p1")
	assert.Equal(t, []string{"b2"}, p.Branches)
}

func TestPatches_AttachBranchToUnloadedListIsNoop(t *testing.T) {
	d := NewDispatcher(nil)
	d.Dispatch(StoreProjects{Projects: []models.Project{{ID: "p1"}}})
	before := d.State()
	assert.Same(t, before, d.Dispatch(AttachBranch("p1", "b1")))
}

func TestPatches_BranchesErrorKeepsLoadedList(t *testing.T) {
	d := NewDispatcher(nil)
	d.Dispatch(StoreProjects{Projects: []models.Project{{ID: "p1"}, {ID: "p2", Branches: []string{"b1"}}}})
	ferr := &models.FetchError{Type: models.TypeBranch, ID: "p1", Err: "boom"}

	s := d.Dispatch(SetProjectBranchesError("p1", ferr), SetProjectBranchesError("p2", ferr))
	p1, _ := s.Projects.Entity("p1")
	p2, _ := s.Projects.Entity("p2")
	assert.Equal(t, ferr, p1.BranchesError)
	assert.Nil(t, p2.BranchesError)
	assert.Equal(t, []string{"b1"}, p2.Branches)
}

func TestPatches_Comments(t *testing.T) {
	d := NewDispatcher(nil)
	d.Dispatch(StoreDeployments{Deployments: []models.Deployment{{ID: "d1", Status: models.DeploymentSuccess}}})

	s := d.Dispatch(AttachComment("d1", "m1"), AttachComment("d1", "m2"), DetachComment("d1", "m1"))
	dep, _ := s.Deployments.Entity("d1")
	assert.Equal(t, []string{"m2"}, dep.Comments)

	s = d.Dispatch(SetDeploymentComments("d1", nil))
	dep, _ = s.Deployments.Entity("d1")
	assert.Equal(t, []string{}, dep.Comments)
}

func TestPatches_AddBranchCommits(t *testing.T) {
	d := NewDispatcher(nil)
	d.Dispatch(StoreBranches{Branches: []models.Branch{{ID: "b1", Commits: []string{"c9"}}}})

	s := d.Dispatch(AddBranchCommits("b1", []string{"c5", "c4"}, true, false))
	b, _ := s.Branches.Entity("b1")
	assert.Equal(t, []string{"c5", "c4"}, b.Commits)
	assert.False(t, b.AllCommitsLoaded)

	s = d.Dispatch(AddBranchCommits("b1", []string{"c4", "c3"}, false, true))
	b, _ = s.Branches.Entity("b1")
	assert.Equal(t, []string{"c5", "c4", "c3"}, b.Commits)
	assert.True(t, b.AllCommitsLoaded)
}

func TestPatches_TouchActivityFollowsPush(t *testing.T) {
	d := NewDispatcher(nil)
	newer := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	older := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	d.Dispatch(
		StoreProjects{Projects: []models.Project{{ID: "p1", LatestActivityTimestamp: newer}}},
		StoreBranches{Branches: []models.Branch{{ID: "b1", Project: "p1", LatestActivityTimestamp: newer}}},
	)

	// A force push back to an older commit rewinds the timestamps.
	s := d.Dispatch(TouchActivity("p1", "b1", older)...)
	p, _ := s.Projects.Entity("p1")
	b, _ := s.Branches.Entity("b1")
	assert.True(t, p.LatestActivityTimestamp.Equal(older))
	assert.True(t, b.LatestActivityTimestamp.Equal(older))
}
