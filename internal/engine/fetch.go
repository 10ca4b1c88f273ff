package engine

import (
	"context"
	"errors"
	"time"

	"github.com/kilupskalvis/minard/internal/metrics"
	"github.com/kilupskalvis/minard/internal/models"
	"github.com/kilupskalvis/minard/internal/remote"
	"github.com/kilupskalvis/minard/internal/store"
)

// fetchSpec describes one remote fetch of entities of type T.
type fetchSpec[T models.Entity] struct {
	key     store.RequestKey
	call    func(ctx context.Context) (*remote.Document, error)
	convert remote.Converter[T]
	store   func([]T) store.Action

	// after returns extra actions applied together with the stored
	// entities, e.g. telling a branch which commit IDs arrived. received is
	// the number of resources the server returned, before conversion
	// dropped any malformed ones.
	after func(entities []T, received int) []store.Action

	// failure returns extra actions applied when the call fails.
	failure func(*models.FetchError) []store.Action
}

// fetch performs request bookkeeping around f.call and stores the
// result. It reports whether the fetch succeeded; a fetch that is already
// in flight for the same key is not repeated and reports false. fetch never
// returns an error: callers only branch on the outcome.
func fetch[T models.Entity](ctx context.Context, e *Engine, f fetchSpec[T]) bool {
	typ := string(f.key.Type)
	if !e.store.Begin(f.key) {
		metrics.Fetches.WithLabelValues(typ, "deduplicated").Inc()
		e.logger.Debug("fetch already in flight", "type", f.key.Type, "op", f.key.Op, "id", f.key.ID)
		return false
	}

	start := time.Now()
	doc, err := f.call(ctx)
	metrics.FetchDuration.WithLabelValues(typ).Observe(time.Since(start).Seconds())

	var resources []remote.Resource
	if err == nil {
		resources, err = doc.Resources()
	}
	if err != nil {
		e.fail(f.key, err, f.failure)
		return false
	}

	actions := e.includedActions(doc.Included)
	entities := remote.ConvertAll(resources, f.convert, e.logger)
	actions = append(actions, f.store(entities))
	if f.after != nil {
		actions = append(actions, f.after(entities, len(resources))...)
	}
	actions = append(actions, store.RequestSucceeded{Key: f.key})
	e.store.Dispatch(actions...)

	metrics.Fetches.WithLabelValues(typ, "success").Inc()
	return true
}

func (e *Engine) fail(key store.RequestKey, err error, failure func(*models.FetchError) []store.Action) *models.FetchError {
	ferr := toFetchError(key, err)

	var actions []store.Action
	if failure != nil {
		actions = failure(ferr)
	}
	actions = append(actions, store.RequestFailed{Key: key, Error: ferr})
	e.store.Dispatch(actions...)

	metrics.Fetches.WithLabelValues(string(key.Type), "failure").Inc()
	e.logger.Warn("request failed", "type", key.Type, "op", key.Op, "id", key.ID, "error", err)
	if ferr.Unauthorized && e.onUnauthorized != nil {
		e.onUnauthorized(ferr)
	}
	return ferr
}

// storeFailure stores the error in the entity's own slot.
func storeFailure(ferr *models.FetchError) []store.Action {
	return []store.Action{store.StoreFailure{Error: ferr}}
}

func toFetchError(key store.RequestKey, err error) *models.FetchError {
	ferr := &models.FetchError{Type: key.Type, ID: key.ID, Err: err.Error()}
	var re *remote.RemoteError
	if errors.As(err, &re) {
		ferr.Err = re.Code
		ferr.Details = re.Details
		ferr.Unauthorized = re.Unauthorized
	}
	return ferr
}

// includedActions converts side-loaded resources into store actions, in a
// fixed type order so relation lookups right after the fetch succeed.
func (e *Engine) includedActions(included []remote.Resource) []store.Action {
	if len(included) == 0 {
		return nil
	}
	groups := remote.SplitIncluded(included)

	var actions []store.Action
	for _, typ := range models.EntityTypes {
		resources := groups[typ]
		if len(resources) == 0 {
			continue
		}
		switch typ {
		case models.TypeProject:
			actions = append(actions, store.StoreProjects{Projects: remote.ConvertAll(resources, remote.ConvertProject, e.logger)})
		case models.TypeBranch:
			actions = append(actions, store.StoreBranches{Branches: remote.ConvertAll(resources, remote.ConvertBranch, e.logger)})
		case models.TypeCommit:
			actions = append(actions, store.StoreCommits{Commits: remote.ConvertAll(resources, remote.ConvertCommit, e.logger)})
		case models.TypeDeployment:
			actions = append(actions, store.StoreDeployments{Deployments: remote.ConvertAll(resources, remote.ConvertDeployment, e.logger)})
		case models.TypeComment:
			actions = append(actions, store.StoreComments{Comments: remote.ConvertAll(resources, remote.ConvertComment, e.logger)})
		case models.TypeActivity:
			actions = append(actions, store.StoreActivities{Activities: remote.ConvertAll(resources, remote.ConvertActivity, e.logger)})
		case models.TypePreview:
			actions = append(actions, store.StorePreviews{Previews: remote.ConvertAll(resources, remote.ConvertPreview, e.logger)})
		}
	}
	return actions
}

func ids[T models.Entity](entities []T) []string {
	out := make([]string, 0, len(entities))
	for _, e := range entities {
		out = append(out, e.EntityID())
	}
	return out
}
