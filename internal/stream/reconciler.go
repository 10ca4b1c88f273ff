package stream

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/kilupskalvis/minard/internal/metrics"
	"github.com/kilupskalvis/minard/internal/models"
	"github.com/kilupskalvis/minard/internal/store"
)

// Reconciler applies stream events to the cache. Events must be handed to
// it one at a time in arrival order.
type Reconciler struct {
	store  *store.Dispatcher
	logger *slog.Logger
}

// NewReconciler creates a Reconciler writing to dispatcher.
func NewReconciler(dispatcher *store.Dispatcher, logger *slog.Logger) *Reconciler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconciler{store: dispatcher, logger: logger}
}

// HandleMessage parses and applies one raw event. A malformed event is
// logged and dropped; it never affects later events.
func (r *Reconciler) HandleMessage(name string, data []byte) {
	ev, err := ParseEvent(name, data)
	if errors.Is(err, ErrUnknownEvent) {
		metrics.StreamEvents.WithLabelValues(name, "ignored").Inc()
		r.logger.Debug("ignoring stream event", "event", name)
		return
	}
	if err == nil {
		err = r.safeApply(ev)
	}
	if err != nil {
		metrics.StreamEvents.WithLabelValues(name, "dropped").Inc()
		r.logger.Warn("dropping malformed stream event", "event", name, "error", err)
		return
	}
	metrics.StreamEvents.WithLabelValues(name, "applied").Inc()
}

func (r *Reconciler) safeApply(ev Event) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("apply %s: %v", ev.EventName(), p)
		}
	}()
	r.Apply(ev)
	return nil
}

// Apply patches the cache with ev as one atomic dispatch.
func (r *Reconciler) Apply(ev Event) {
	r.store.Dispatch(r.actions(r.store.State(), ev)...)
}

func (r *Reconciler) actions(s *store.State, ev Event) []store.Action {
	switch ev := ev.(type) {
	case ProjectCreated:
		return []store.Action{store.StoreProjects{Projects: []models.Project{ev.Project}}}

	case ProjectEdited:
		return []store.Action{store.UpdateProject{ID: ev.ID, Apply: func(p models.Project) models.Project {
			if ev.Name != nil {
				p.Name = *ev.Name
			}
			if ev.Description != nil {
				p.Description = *ev.Description
			}
			if ev.RepoURL != nil {
				p.RepoURL = *ev.RepoURL
			}
			return p
		}}}

	case ProjectDeleted:
		return []store.Action{store.RemoveEntity{Type: models.TypeProject, ID: ev.ID}}

	case DeploymentUpdated:
		return deploymentUpdated(s, ev)

	case CommentAdded:
		return []store.Action{
			store.StoreComments{Comments: []models.Comment{ev.Comment}},
			store.AttachComment(ev.Comment.Deployment, ev.Comment.ID),
		}

	case CommentDeleted:
		return []store.Action{
			store.RemoveEntity{Type: models.TypeComment, ID: ev.Comment},
			store.DetachComment(ev.Deployment, ev.Comment),
		}

	case ActivityAdded:
		return []store.Action{store.StoreActivities{Activities: []models.Activity{ev.Activity}}}

	case CodePushed:
		return codePushed(s, ev)
	}
	panic(fmt.Sprintf("stream: unhandled event %T", ev))
}

func deploymentUpdated(s *store.State, ev DeploymentUpdated) []store.Action {
	d := ev.Deployment
	// Status updates do not carry comments; keep the list already known.
	if d.Comments == nil {
		if old, ok := s.Deployments.Entity(d.ID); ok {
			d.Comments, d.CommentsError = old.Comments, old.CommentsError
		}
	}

	actions := []store.Action{
		store.StoreDeployments{Deployments: []models.Deployment{d}},
		store.UpdateCommit{ID: ev.Commit, Apply: func(c models.Commit) models.Commit {
			c.Deployment = d.ID
			return c
		}},
	}
	if d.Status == models.DeploymentSuccess {
		actions = append(actions, store.SetDeployedCommit(ev.Project, ev.Branch, ev.Commit)...)
	}
	return actions
}

func codePushed(s *store.State, ev CodePushed) []store.Action {
	branchID := ev.Branch.ID
	if ev.After == nil {
		return []store.Action{
			store.RemoveEntity{Type: models.TypeBranch, ID: branchID},
			store.DetachBranch(ev.Project, branchID),
		}
	}

	newest := slices.Clone(ev.Commits)
	slices.Reverse(newest)
	newIDs := make([]string, 0, len(newest))
	for _, c := range newest {
		newIDs = append(newIDs, c.ID)
	}

	var actions []store.Action
	if len(newest) > 0 {
		actions = append(actions, store.StoreCommits{Commits: newest})
	}
	if _, ok := s.Commits.Entity(ev.After.ID); !ok && !slices.Contains(newIDs, ev.After.ID) {
		actions = append(actions, store.StoreCommits{Commits: []models.Commit{*ev.After}})
	}

	created := ev.Before == nil
	if created {
		b := ev.Branch
		b.Commits = []string{}
		actions = append(actions,
			store.StoreBranches{Branches: []models.Branch{b}},
			store.AttachBranch(ev.Project, branchID),
		)
	}

	latest := ev.After.ID
	actions = append(actions, store.UpdateBranch{ID: branchID, Apply: func(b models.Branch) models.Branch {
		b.Commits = MergeCommitIDs(b.Commits, newIDs, ev.Parents, latest)
		b.LatestCommit = latest
		return b
	}})

	if len(newest) > 0 {
		actions = append(actions, store.TouchActivity(ev.Project, branchID, newest[0].Committer.Timestamp)...)
	}
	if created || len(newest) > 0 {
		actions = append(actions, addActiveUsers(ev.Project, newest))
	}
	return actions
}

// addActiveUsers adds the authors of commits (newest first) to the
// project's active users, skipping known emails.
func addActiveUsers(projectID string, commits []models.Commit) store.Action {
	return store.UpdateProject{ID: projectID, Apply: func(p models.Project) models.Project {
		users := slices.Clone(p.ActiveUsers)
		for _, c := range commits {
			email := c.Author.Email
			if email == "" || slices.ContainsFunc(users, func(u models.User) bool { return u.Email == email }) {
				continue
			}
			users = append(users, models.User{Name: c.Author.Name, Email: email, Timestamp: c.Author.Timestamp})
		}
		p.ActiveUsers = users
		return p
	}}
}
