package store

import (
	"fmt"
	"log/slog"

	"github.com/kilupskalvis/minard/internal/models"
)

// ConnectionState is the state of the streaming connection.
type ConnectionState string

const (
	ConnInitial    ConnectionState = "INITIAL_CONNECT"
	ConnConnecting ConnectionState = "CONNECTING"
	ConnOpen       ConnectionState = "OPEN"
	ConnClosed     ConnectionState = "CLOSED"
)

// State is an immutable snapshot of the cache.
type State struct {
	Projects    *Table[models.Project]
	Branches    *Table[models.Branch]
	Commits     *Table[models.Commit]
	Deployments *Table[models.Deployment]
	Comments    *Table[models.Comment]
	Activities  *Table[models.Activity]
	Previews    *Table[models.Preview]
	Requests    *Requests
	Connection  ConnectionState
}

// NewState returns an empty state.
func NewState() *State {
	return &State{
		Projects:    NewTable[models.Project](models.TypeProject),
		Branches:    NewTable[models.Branch](models.TypeBranch),
		Commits:     NewTable[models.Commit](models.TypeCommit),
		Deployments: NewTable[models.Deployment](models.TypeDeployment),
		Comments:    NewTable[models.Comment](models.TypeComment),
		Activities:  NewTable[models.Activity](models.TypeActivity),
		Previews:    NewTable[models.Preview](models.TypePreview),
		Requests:    newRequests(),
		Connection:  ConnClosed,
	}
}

// Has reports whether (typ, id) holds a valid entity.
func (s *State) Has(typ models.EntityType, id string) bool {
	switch typ {
	case models.TypeProject:
		_, ok := s.Projects.Entity(id)
		return ok
	case models.TypeBranch:
		_, ok := s.Branches.Entity(id)
		return ok
	case models.TypeCommit:
		_, ok := s.Commits.Entity(id)
		return ok
	case models.TypeDeployment:
		_, ok := s.Deployments.Entity(id)
		return ok
	case models.TypeComment:
		_, ok := s.Comments.Entity(id)
		return ok
	case models.TypeActivity:
		_, ok := s.Activities.Entity(id)
		return ok
	case models.TypePreview:
		_, ok := s.Previews.Entity(id)
		return ok
	}
	return false
}

// Reduce applies a to s. It returns s itself when a changes nothing.
func Reduce(s *State, a Action, logger *slog.Logger) *State {
	switch a := a.(type) {
	case StoreProjects:
		return s.withProjects(s.Projects.Put(a.Projects...))
	case StoreBranches:
		return s.withBranches(s.Branches.Put(a.Branches...))
	case StoreCommits:
		return s.withCommits(s.Commits.Put(a.Commits...))
	case StoreDeployments:
		return s.withDeployments(s.Deployments.Put(a.Deployments...))
	case StoreComments:
		return s.withComments(s.Comments.Put(a.Comments...))
	case StoreActivities:
		return s.withActivities(s.Activities.Put(a.Activities...))
	case StorePreviews:
		return s.withPreviews(s.Previews.Put(a.Previews...))
	case StoreFailure:
		return s.storeFailure(a.Error)
	case RemoveEntity:
		return s.remove(a.Type, a.ID, logger)
	case UpdateProject:
		return s.withProjects(s.Projects.Update(a.ID, a.Apply))
	case UpdateBranch:
		return s.withBranches(s.Branches.Update(a.ID, a.Apply))
	case UpdateCommit:
		return s.withCommits(s.Commits.Update(a.ID, a.Apply))
	case UpdateDeployment:
		return s.withDeployments(s.Deployments.Update(a.ID, a.Apply))
	case RequestStarted:
		return s.withRequests(s.Requests.started(a.Key))
	case RequestSucceeded:
		return s.withRequests(s.Requests.succeeded(a.Key))
	case RequestFailed:
		return s.withRequests(s.Requests.failed(a.Key, a.Error))
	case CollectionExhausted:
		return s.withRequests(s.Requests.exhausted(a.Type, a.Parent))
	case SetConnection:
		if s.Connection == a.State {
			return s
		}
		next := *s
		next.Connection = a.State
		return &next
	case Reset:
		next := NewState()
		next.Connection = s.Connection
		return next
	default:
		panic(fmt.Sprintf("store: unhandled action %T", a))
	}
}

func (s *State) storeFailure(ferr *models.FetchError) *State {
	switch ferr.Type {
	case models.TypeProject:
		return s.withProjects(s.Projects.PutError(ferr))
	case models.TypeBranch:
		return s.withBranches(s.Branches.PutError(ferr))
	case models.TypeCommit:
		return s.withCommits(s.Commits.PutError(ferr))
	case models.TypeDeployment:
		return s.withDeployments(s.Deployments.PutError(ferr))
	case models.TypeComment:
		return s.withComments(s.Comments.PutError(ferr))
	case models.TypeActivity:
		return s.withActivities(s.Activities.PutError(ferr))
	case models.TypePreview:
		return s.withPreviews(s.Previews.PutError(ferr))
	}
	return s
}

func (s *State) remove(typ models.EntityType, id string, logger *slog.Logger) *State {
	var (
		next  = s
		found bool
	)
	switch typ {
	case models.TypeProject:
		var t *Table[models.Project]
		t, found = s.Projects.Remove(id)
		next = s.withProjects(t)
	case models.TypeBranch:
		var t *Table[models.Branch]
		t, found = s.Branches.Remove(id)
		next = s.withBranches(t)
	case models.TypeCommit:
		var t *Table[models.Commit]
		t, found = s.Commits.Remove(id)
		next = s.withCommits(t)
	case models.TypeDeployment:
		var t *Table[models.Deployment]
		t, found = s.Deployments.Remove(id)
		next = s.withDeployments(t)
	case models.TypeComment:
		var t *Table[models.Comment]
		t, found = s.Comments.Remove(id)
		next = s.withComments(t)
	case models.TypeActivity:
		var t *Table[models.Activity]
		t, found = s.Activities.Remove(id)
		next = s.withActivities(t)
	case models.TypePreview:
		var t *Table[models.Preview]
		t, found = s.Previews.Remove(id)
		next = s.withPreviews(t)
	}
	if !found {
		logger.Warn("remove: entity not in store", "type", typ, "id", id)
	}
	return next
}

func (s *State) withProjects(t *Table[models.Project]) *State {
	if t == s.Projects {
		return s
	}
	next := *s
	next.Projects = t
	return &next
}

func (s *State) withBranches(t *Table[models.Branch]) *State {
	if t == s.Branches {
		return s
	}
	next := *s
	next.Branches = t
	return &next
}

func (s *State) withCommits(t *Table[models.Commit]) *State {
	if t == s.Commits {
		return s
	}
	next := *s
	next.Commits = t
	return &next
}

func (s *State) withDeployments(t *Table[models.Deployment]) *State {
	if t == s.Deployments {
		return s
	}
	next := *s
	next.Deployments = t
	return &next
}

func (s *State) withComments(t *Table[models.Comment]) *State {
	if t == s.Comments {
		return s
	}
	next := *s
	next.Comments = t
	return &next
}

func (s *State) withActivities(t *Table[models.Activity]) *State {
	if t == s.Activities {
		return s
	}
	next := *s
	next.Activities = t
	return &next
}

func (s *State) withPreviews(t *Table[models.Preview]) *State {
	if t == s.Previews {
		return s
	}
	next := *s
	next.Previews = t
	return &next
}

func (s *State) withRequests(r *Requests) *State {
	if r == s.Requests {
		return s
	}
	next := *s
	next.Requests = r
	return &next
}
