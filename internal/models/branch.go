package models

import "time"

// Branch is a git branch of a project. Commits is ordered newest first.
type Branch struct {
	ID                               string    `json:"id"`
	Name                             string    `json:"name"`
	Project                          string    `json:"project"`
	Commits                          []string  `json:"commits"`
	AllCommitsLoaded                 bool      `json:"all_commits_loaded"`
	LatestCommit                     string    `json:"latest_commit,omitempty"`
	LatestSuccessfullyDeployedCommit string    `json:"latest_successfully_deployed_commit,omitempty"`
	LatestActivityTimestamp          time.Time `json:"latest_activity_timestamp"`
	BuildErrors                      []string  `json:"build_errors,omitempty"`
}

func (b Branch) EntityID() string { return b.ID }
