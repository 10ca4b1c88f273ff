package store

import "github.com/kilupskalvis/minard/internal/models"

// Action is a state change applied by the Dispatcher. The set of actions is
// closed; Reduce handles every implementation.
type Action interface {
	isAction()
}

// StoreProjects creates or replaces projects.
type StoreProjects struct{ Projects []models.Project }

// StoreBranches creates or replaces branches.
type StoreBranches struct{ Branches []models.Branch }

// StoreCommits creates or replaces commits.
type StoreCommits struct{ Commits []models.Commit }

// StoreDeployments creates or replaces deployments.
type StoreDeployments struct{ Deployments []models.Deployment }

// StoreComments creates or replaces comments.
type StoreComments struct{ Comments []models.Comment }

// StoreActivities creates or replaces activity items.
type StoreActivities struct{ Activities []models.Activity }

// StorePreviews creates or replaces previews.
type StorePreviews struct{ Previews []models.Preview }

// StoreFailure records a fetch error in the slot named by Error.Type and
// Error.ID, unless that slot already holds a valid entity.
type StoreFailure struct{ Error *models.FetchError }

// RemoveEntity deletes one slot.
type RemoveEntity struct {
	Type models.EntityType
	ID   string
}

// UpdateProject patches a stored project.
type UpdateProject struct {
	ID    string
	Apply func(models.Project) models.Project
}

// UpdateBranch patches a stored branch.
type UpdateBranch struct {
	ID    string
	Apply func(models.Branch) models.Branch
}

// UpdateCommit patches a stored commit.
type UpdateCommit struct {
	ID    string
	Apply func(models.Commit) models.Commit
}

// UpdateDeployment patches a stored deployment.
type UpdateDeployment struct {
	ID    string
	Apply func(models.Deployment) models.Deployment
}

// RequestStarted marks a request as in flight.
type RequestStarted struct{ Key RequestKey }

// RequestSucceeded clears the in-flight and failure marks of a request.
type RequestSucceeded struct{ Key RequestKey }

// RequestFailed clears the in-flight mark and records the failure.
type RequestFailed struct {
	Key   RequestKey
	Error *models.FetchError
}

// CollectionExhausted marks a paged collection as fully requested. Parent
// is empty for unscoped collections.
type CollectionExhausted struct {
	Type   models.EntityType
	Parent string
}

// SetConnection records the streaming connection state.
type SetConnection struct{ State ConnectionState }

// Reset discards all cached state.
type Reset struct{}

func (StoreProjects) isAction()       {}
func (StoreBranches) isAction()       {}
func (StoreCommits) isAction()        {}
func (StoreDeployments) isAction()    {}
func (StoreComments) isAction()       {}
func (StoreActivities) isAction()     {}
func (StorePreviews) isAction()       {}
func (StoreFailure) isAction()        {}
func (RemoveEntity) isAction()        {}
func (UpdateProject) isAction()       {}
func (UpdateBranch) isAction()        {}
func (UpdateCommit) isAction()        {}
func (UpdateDeployment) isAction()    {}
func (RequestStarted) isAction()      {}
func (RequestSucceeded) isAction()    {}
func (RequestFailed) isAction()       {}
func (CollectionExhausted) isAction() {}
func (SetConnection) isAction()       {}
func (Reset) isAction()               {}
