package models

import "time"

// ActivityKind discriminates the activity feed variants.
type ActivityKind string

const (
	ActivityDeployment ActivityKind = "deployment"
	ActivityComment    ActivityKind = "comment"
)

// Activity is an immutable feed item. Comment is only set for
// ActivityComment items.
type Activity struct {
	ID         string       `json:"id"`
	Kind       ActivityKind `json:"kind"`
	Timestamp  time.Time    `json:"timestamp"`
	Project    string       `json:"project"`
	Branch     string       `json:"branch"`
	Commit     string       `json:"commit,omitempty"`
	Deployment string       `json:"deployment"`
	Comment    string       `json:"comment,omitempty"`
}

func (a Activity) EntityID() string { return a.ID }
