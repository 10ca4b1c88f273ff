package models

import "time"

// Project is a repository with its branches.
type Project struct {
	ID                      string    `json:"id"`
	Name                    string    `json:"name"`
	Description             string    `json:"description,omitempty"`
	RepoURL                 string    `json:"repo_url"`
	ActiveUsers             []User    `json:"active_users"`
	LatestActivityTimestamp time.Time `json:"latest_activity_timestamp"`

	// Branches is nil until the branch list has been loaded.
	// BranchesError is set instead when loading it failed.
	Branches      []string    `json:"branches,omitempty"`
	BranchesError *FetchError `json:"branches_error,omitempty"`

	LatestSuccessfullyDeployedCommit string `json:"latest_successfully_deployed_commit,omitempty"`
}

// User is a project member seen as a commit author.
type User struct {
	Name      string    `json:"name,omitempty"`
	Email     string    `json:"email"`
	Timestamp time.Time `json:"timestamp"`
}

func (p Project) EntityID() string { return p.ID }

// HasBranch reports whether id is in the project's loaded branch list.
func (p Project) HasBranch(id string) bool {
	for _, b := range p.Branches {
		if b == id {
			return true
		}
	}
	return false
}
