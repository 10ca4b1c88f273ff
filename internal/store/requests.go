package store

import "github.com/kilupskalvis/minard/internal/models"

// Operation names the kind of remote request being tracked.
type Operation string

const (
	OpFetch     Operation = "fetch"
	OpFetchList Operation = "fetch_list"
	OpCreate    Operation = "create"
	OpEdit      Operation = "edit"
	OpDelete    Operation = "delete"
)

// RequestKey identifies one tracked request. ID is the entity ID, the
// parent ID for list fetches, or empty for unscoped collections.
type RequestKey struct {
	Type models.EntityType
	Op   Operation
	ID   string
}

// FetchKey is the key used for single-entity loads.
func FetchKey(typ models.EntityType, id string) RequestKey {
	return RequestKey{Type: typ, Op: OpFetch, ID: id}
}

type collectionKey struct {
	typ    models.EntityType
	parent string
}

// Requests is the request tracker: in-flight requests, the last failure of
// each request and the collections known to be exhaustively paged.
type Requests struct {
	inFlight     map[RequestKey]struct{}
	failures     map[RequestKey]*models.FetchError
	allRequested map[collectionKey]struct{}
}

func newRequests() *Requests {
	return &Requests{
		inFlight:     map[RequestKey]struct{}{},
		failures:     map[RequestKey]*models.FetchError{},
		allRequested: map[collectionKey]struct{}{},
	}
}

// IsLoading reports whether a single-entity fetch for (typ, id) is in flight.
func (r *Requests) IsLoading(typ models.EntityType, id string) bool {
	return r.InFlight(FetchKey(typ, id))
}

// InFlight reports whether key has an outstanding request.
func (r *Requests) InFlight(key RequestKey) bool {
	_, ok := r.inFlight[key]
	return ok
}

// Failure returns the error recorded by the last failed request for key.
func (r *Requests) Failure(key RequestKey) *models.FetchError {
	return r.failures[key]
}

// AllRequested reports whether the unscoped collection of typ has been
// paged to its end.
func (r *Requests) AllRequested(typ models.EntityType) bool {
	return r.AllRequestedForParent(typ, "")
}

// AllRequestedForParent reports whether the collection of typ owned by
// parent has been paged to its end.
func (r *Requests) AllRequestedForParent(typ models.EntityType, parent string) bool {
	_, ok := r.allRequested[collectionKey{typ: typ, parent: parent}]
	return ok
}

func (r *Requests) started(key RequestKey) *Requests {
	next := r.clone()
	next.inFlight[key] = struct{}{}
	delete(next.failures, key)
	return next
}

func (r *Requests) succeeded(key RequestKey) *Requests {
	_, loading := r.inFlight[key]
	_, failed := r.failures[key]
	if !loading && !failed {
		return r
	}
	next := r.clone()
	delete(next.inFlight, key)
	delete(next.failures, key)
	return next
}

func (r *Requests) failed(key RequestKey, ferr *models.FetchError) *Requests {
	next := r.clone()
	delete(next.inFlight, key)
	next.failures[key] = ferr
	return next
}

func (r *Requests) exhausted(typ models.EntityType, parent string) *Requests {
	if r.AllRequestedForParent(typ, parent) {
		return r
	}
	next := r.clone()
	next.allRequested[collectionKey{typ: typ, parent: parent}] = struct{}{}
	return next
}

func (r *Requests) clone() *Requests {
	next := &Requests{
		inFlight:     make(map[RequestKey]struct{}, len(r.inFlight)+1),
		failures:     make(map[RequestKey]*models.FetchError, len(r.failures)),
		allRequested: make(map[collectionKey]struct{}, len(r.allRequested)),
	}
	for k := range r.inFlight {
		next.inFlight[k] = struct{}{}
	}
	for k, v := range r.failures {
		next.failures[k] = v
	}
	for k := range r.allRequested {
		next.allRequested[k] = struct{}{}
	}
	return next
}
