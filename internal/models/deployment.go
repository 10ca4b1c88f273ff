package models

import "fmt"

// DeploymentStatus is the lifecycle state of a deployment.
type DeploymentStatus string

const (
	DeploymentPending  DeploymentStatus = "pending"
	DeploymentRunning  DeploymentStatus = "running"
	DeploymentSuccess  DeploymentStatus = "success"
	DeploymentFailed   DeploymentStatus = "failed"
	DeploymentCanceled DeploymentStatus = "canceled"
)

// ParseDeploymentStatus validates a wire status string.
func ParseDeploymentStatus(s string) (DeploymentStatus, error) {
	switch st := DeploymentStatus(s); st {
	case DeploymentPending, DeploymentRunning, DeploymentSuccess, DeploymentFailed, DeploymentCanceled:
		return st, nil
	}
	return "", fmt.Errorf("unknown deployment status %q", s)
}

// Deployment is a build of a commit.
type Deployment struct {
	ID         string           `json:"id"`
	Status     DeploymentStatus `json:"status"`
	URL        string           `json:"url,omitempty"`
	Screenshot string           `json:"screenshot,omitempty"`
	Creator    Identity         `json:"creator"`

	// Comments is nil until the comment list is known.
	Comments      []string    `json:"comments,omitempty"`
	CommentsError *FetchError `json:"comments_error,omitempty"`
}

func (d Deployment) EntityID() string { return d.ID }
