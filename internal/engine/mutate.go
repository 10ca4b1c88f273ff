package engine

import (
	"context"
	"fmt"

	"github.com/kilupskalvis/minard/internal/models"
	"github.com/kilupskalvis/minard/internal/remote"
	"github.com/kilupskalvis/minard/internal/store"
)

// mutate runs a write request with request bookkeeping. On success the
// caller completes the request with the store actions to apply.
func (e *Engine) mutate(ctx context.Context, key store.RequestKey, call func(context.Context) (*remote.Document, error)) (*remote.Document, error) {
	if !e.store.Begin(key) {
		return nil, ErrRequestInFlight
	}
	doc, err := call(context.WithoutCancel(ctx))
	if err != nil {
		e.fail(key, err, nil)
		return nil, err
	}
	return doc, nil
}

func (e *Engine) complete(key store.RequestKey, actions ...store.Action) {
	e.store.Dispatch(append(actions, store.RequestSucceeded{Key: key})...)
}

// CreateProject creates a project and stores it.
func (e *Engine) CreateProject(ctx context.Context, teamID string, in remote.ProjectInput) (models.Project, error) {
	defer e.track()()

	key := store.RequestKey{Type: models.TypeProject, Op: store.OpCreate, ID: teamID}
	doc, err := e.mutate(ctx, key, func(ctx context.Context) (*remote.Document, error) {
		return e.client.CreateProject(ctx, teamID, in)
	})
	if err != nil {
		return models.Project{}, err
	}

	resources, err := doc.Resources()
	if err != nil {
		e.fail(key, err, nil)
		return models.Project{}, fmt.Errorf("create project: %w", err)
	}
	projects := remote.ConvertAll(resources, remote.ConvertProject, e.logger)
	if len(projects) == 0 {
		err := fmt.Errorf("create project: response carries no project")
		e.fail(key, err, nil)
		return models.Project{}, err
	}

	actions := e.includedActions(doc.Included)
	e.complete(key, append(actions, store.StoreProjects{Projects: projects[:1]})...)
	return projects[0], nil
}

// EditProject changes a project's name or description.
func (e *Engine) EditProject(ctx context.Context, id string, edit remote.ProjectEdit) error {
	defer e.track()()

	key := store.RequestKey{Type: models.TypeProject, Op: store.OpEdit, ID: id}
	doc, err := e.mutate(ctx, key, func(ctx context.Context) (*remote.Document, error) {
		return e.client.EditProject(ctx, id, edit)
	})
	if err != nil {
		return err
	}

	if resources, err := doc.Resources(); err == nil && len(resources) > 0 {
		if projects := remote.ConvertAll(resources, remote.ConvertProject, e.logger); len(projects) > 0 {
			e.complete(key, store.StoreProjects{Projects: projects})
			return nil
		}
	}
	e.complete(key, store.UpdateProject{ID: id, Apply: func(p models.Project) models.Project {
		if edit.Name != nil {
			p.Name = *edit.Name
		}
		if edit.Description != nil {
			p.Description = *edit.Description
		}
		return p
	}})
	return nil
}

// DeleteProject deletes a project and drops it from the cache.
func (e *Engine) DeleteProject(ctx context.Context, id string) error {
	defer e.track()()

	key := store.RequestKey{Type: models.TypeProject, Op: store.OpDelete, ID: id}
	if _, err := e.mutate(ctx, key, func(ctx context.Context) (*remote.Document, error) {
		return nil, e.client.DeleteProject(ctx, id)
	}); err != nil {
		return err
	}
	e.complete(key, store.RemoveEntity{Type: models.TypeProject, ID: id})
	return nil
}

// AddComment posts a comment and attaches it to its deployment.
func (e *Engine) AddComment(ctx context.Context, in remote.CommentInput) (models.Comment, error) {
	defer e.track()()

	key := store.RequestKey{Type: models.TypeComment, Op: store.OpCreate, ID: in.Deployment}
	doc, err := e.mutate(ctx, key, func(ctx context.Context) (*remote.Document, error) {
		return e.client.AddComment(ctx, in)
	})
	if err != nil {
		return models.Comment{}, err
	}

	resources, err := doc.Resources()
	if err != nil {
		e.fail(key, err, nil)
		return models.Comment{}, fmt.Errorf("add comment: %w", err)
	}
	comments := remote.ConvertAll(resources, remote.ConvertComment, e.logger)
	if len(comments) == 0 {
		err := fmt.Errorf("add comment: response carries no comment")
		e.fail(key, err, nil)
		return models.Comment{}, err
	}

	c := comments[0]
	e.complete(key, store.StoreComments{Comments: comments[:1]}, store.AttachComment(c.Deployment, c.ID))
	return c, nil
}

// DeleteComment deletes a comment and detaches it from its deployment.
func (e *Engine) DeleteComment(ctx context.Context, id string) error {
	defer e.track()()

	key := store.RequestKey{Type: models.TypeComment, Op: store.OpDelete, ID: id}
	if _, err := e.mutate(ctx, key, func(ctx context.Context) (*remote.Document, error) {
		return nil, e.client.DeleteComment(ctx, id)
	}); err != nil {
		return err
	}

	actions := []store.Action{store.RemoveEntity{Type: models.TypeComment, ID: id}}
	if c, ok := e.store.State().Comments.Entity(id); ok {
		actions = append(actions, store.DetachComment(c.Deployment, id))
	}
	e.complete(key, actions...)
	return nil
}
