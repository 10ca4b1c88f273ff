// Package models defines the entities synchronised from the Minard API.
// Cross-entity relations are held as IDs only; the Preview read model is the
// one exception and embeds project and branch names.
package models

import (
	"fmt"
	"time"
)

// EntityType names one of the synchronised entity collections. The values
// match the JSON:API resource types used on the wire.
type EntityType string

const (
	TypeProject    EntityType = "projects"
	TypeBranch     EntityType = "branches"
	TypeCommit     EntityType = "commits"
	TypeDeployment EntityType = "deployments"
	TypeComment    EntityType = "comments"
	TypeActivity   EntityType = "activities"
	TypePreview    EntityType = "previews"
)

// EntityTypes lists every synchronised type.
var EntityTypes = []EntityType{
	TypeProject, TypeBranch, TypeCommit, TypeDeployment, TypeComment, TypeActivity, TypePreview,
}

// Entity is implemented by every stored entity.
type Entity interface {
	Project | Branch | Commit | Deployment | Comment | Activity | Preview
	EntityID() string
}

// Identity is a git author, committer or deployment creator.
type Identity struct {
	Name      string    `json:"name,omitempty"`
	Email     string    `json:"email"`
	Timestamp time.Time `json:"timestamp"`
}

// FetchError is stored in place of an entity when loading it failed.
type FetchError struct {
	Type         EntityType `json:"type"`
	ID           string     `json:"id"`
	Err          string     `json:"error"`
	Details      string     `json:"details,omitempty"`
	Unauthorized bool       `json:"unauthorized,omitempty"`
}

func (e *FetchError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("fetch %s %s: %s (%s)", e.Type, e.ID, e.Err, e.Details)
	}
	return fmt.Sprintf("fetch %s %s: %s", e.Type, e.ID, e.Err)
}
