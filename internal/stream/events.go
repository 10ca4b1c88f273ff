package stream

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/kilupskalvis/minard/internal/models"
	"github.com/kilupskalvis/minard/internal/remote"
)

// Named server events.
const (
	EventProjectCreated    = "PROJECT_CREATED"
	EventProjectEdited     = "PROJECT_EDITED"
	EventProjectDeleted    = "PROJECT_DELETED"
	EventDeploymentUpdated = "DEPLOYMENT_UPDATED"
	EventCommentAdded      = "COMMENT_ADDED"
	EventCommentDeleted    = "COMMENT_DELETED"
	EventNewActivity       = "NEW_ACTIVITY"
	EventCodePushed        = "CODE_PUSHED"
)

// ErrUnknownEvent is returned by ParseEvent for event names it does not
// handle, including generic unnamed messages.
var ErrUnknownEvent = errors.New("unknown event")

// Event is a decoded stream event. The set of implementations is closed.
type Event interface {
	EventName() string
	isEvent()
}

// ProjectCreated carries a newly created project.
type ProjectCreated struct {
	Project models.Project
}

// ProjectEdited carries the changed fields of a project. Nil fields are
// unchanged.
type ProjectEdited struct {
	ID          string
	Name        *string
	Description *string
	RepoURL     *string
}

type ProjectDeleted struct {
	ID string
}

// DeploymentUpdated carries a deployment whose status changed, together
// with the commit it builds and that commit's branch and project.
type DeploymentUpdated struct {
	Deployment models.Deployment
	Commit     string
	Branch     string
	Project    string
}

type CommentAdded struct {
	Comment models.Comment
}

type CommentDeleted struct {
	Comment    string
	Deployment string
}

type ActivityAdded struct {
	Activity models.Activity
}

// CodePushed describes a push to a branch. After is nil when the branch
// was deleted and Before is nil when it was created. Commits are ordered
// oldest first as received.
type CodePushed struct {
	Project string
	Branch  models.Branch
	After   *models.Commit
	Before  *models.Commit
	Commits []models.Commit
	Parents []string
}

func (ProjectCreated) EventName() string    { return EventProjectCreated }
func (ProjectEdited) EventName() string     { return EventProjectEdited }
func (ProjectDeleted) EventName() string    { return EventProjectDeleted }
func (DeploymentUpdated) EventName() string { return EventDeploymentUpdated }
func (CommentAdded) EventName() string      { return EventCommentAdded }
func (CommentDeleted) EventName() string    { return EventCommentDeleted }
func (ActivityAdded) EventName() string     { return EventNewActivity }
func (CodePushed) EventName() string        { return EventCodePushed }

func (ProjectCreated) isEvent()    {}
func (ProjectEdited) isEvent()     {}
func (ProjectDeleted) isEvent()    {}
func (DeploymentUpdated) isEvent() {}
func (CommentAdded) isEvent()      {}
func (CommentDeleted) isEvent()    {}
func (ActivityAdded) isEvent()     {}
func (CodePushed) isEvent()        {}

// ParseEvent decodes the data of a named event.
func ParseEvent(name string, data []byte) (Event, error) {
	switch name {
	case EventProjectCreated:
		p, err := decodeResource(data, remote.ConvertProject)
		if err != nil {
			return nil, err
		}
		if p.Branches == nil {
			p.Branches = []string{}
		}
		return ProjectCreated{Project: p}, nil

	case EventProjectEdited:
		var payload struct {
			ID          string  `json:"id"`
			Name        *string `json:"name"`
			Description *string `json:"description"`
			RepoURL     *string `json:"repo-url"`
		}
		if err := decode(data, &payload); err != nil {
			return nil, err
		}
		if payload.ID == "" {
			return nil, fmt.Errorf("project edit without id")
		}
		return ProjectEdited(payload), nil

	case EventProjectDeleted:
		var payload struct {
			ID string `json:"id"`
		}
		if err := decode(data, &payload); err != nil {
			return nil, err
		}
		if payload.ID == "" {
			return nil, fmt.Errorf("project delete without id")
		}
		return ProjectDeleted{ID: payload.ID}, nil

	case EventDeploymentUpdated:
		var payload struct {
			Deployment remote.Resource `json:"deployment"`
			Commit     string          `json:"commit"`
			Branch     string          `json:"branch"`
			Project    string          `json:"project"`
		}
		if err := decode(data, &payload); err != nil {
			return nil, err
		}
		d, err := remote.ConvertDeployment(payload.Deployment)
		if err != nil {
			return nil, err
		}
		if payload.Commit == "" {
			return nil, fmt.Errorf("deployment %s update without commit", d.ID)
		}
		return DeploymentUpdated{Deployment: d, Commit: payload.Commit, Branch: payload.Branch, Project: payload.Project}, nil

	case EventCommentAdded:
		c, err := decodeResource(data, remote.ConvertComment)
		if err != nil {
			return nil, err
		}
		return CommentAdded{Comment: c}, nil

	case EventCommentDeleted:
		var payload struct {
			Comment    string `json:"comment"`
			Deployment string `json:"deployment"`
		}
		if err := decode(data, &payload); err != nil {
			return nil, err
		}
		if payload.Comment == "" || payload.Deployment == "" {
			return nil, fmt.Errorf("comment delete without comment or deployment")
		}
		return CommentDeleted(payload), nil

	case EventNewActivity:
		a, err := decodeResource(data, remote.ConvertActivity)
		if err != nil {
			return nil, err
		}
		return ActivityAdded{Activity: a}, nil

	case EventCodePushed:
		return parseCodePushed(data)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownEvent, name)
}

func parseCodePushed(data []byte) (Event, error) {
	var payload struct {
		Project string            `json:"project"`
		Branch  remote.Resource   `json:"branch"`
		After   *remote.Resource  `json:"after"`
		Before  *remote.Resource  `json:"before"`
		Commits []remote.Resource `json:"commits"`
		Parents []string          `json:"parents"`
	}
	if err := decode(data, &payload); err != nil {
		return nil, err
	}
	if payload.Project == "" {
		return nil, fmt.Errorf("push without project")
	}
	if err := withProject(&payload.Branch, payload.Project); err != nil {
		return nil, err
	}
	branch, err := remote.ConvertBranch(payload.Branch)
	if err != nil {
		return nil, err
	}

	ev := CodePushed{Project: payload.Project, Branch: branch, Parents: payload.Parents}
	if ev.After, err = optionalCommit(payload.After); err != nil {
		return nil, err
	}
	if ev.Before, err = optionalCommit(payload.Before); err != nil {
		return nil, err
	}
	for _, r := range payload.Commits {
		c, err := remote.ConvertCommit(r)
		if err != nil {
			return nil, err
		}
		ev.Commits = append(ev.Commits, c)
	}
	return ev, nil
}

// withProject sets the branch's project relationship when the resource
// does not carry one; push payloads name the project alongside.
func withProject(r *remote.Resource, projectID string) error {
	if _, ok := r.Relationships["project"]; ok {
		return nil
	}
	raw, err := json.Marshal(remote.ResourceIdentifier{Type: string(models.TypeProject), ID: projectID})
	if err != nil {
		return err
	}
	if r.Relationships == nil {
		r.Relationships = map[string]remote.Relationship{}
	}
	r.Relationships["project"] = remote.Relationship{Data: raw}
	return nil
}

func optionalCommit(r *remote.Resource) (*models.Commit, error) {
	if r == nil {
		return nil, nil
	}
	c, err := remote.ConvertCommit(*r)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func decode(data []byte, v interface{}) error {
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode event: %w", err)
	}
	return nil
}

func decodeResource[T any](data []byte, conv remote.Converter[T]) (T, error) {
	var r remote.Resource
	if err := decode(data, &r); err != nil {
		var zero T
		return zero, err
	}
	return conv(r)
}
