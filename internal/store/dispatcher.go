package store

import (
	"log/slog"
	"sync"
)

// Dispatcher owns the current State and applies actions to it one at a
// time. It is the only writer of cache state.
type Dispatcher struct {
	mu     sync.Mutex
	state  *State
	subs   map[int]func(prev, next *State)
	nextID int
	logger *slog.Logger
}

// NewDispatcher returns a Dispatcher holding an empty State.
func NewDispatcher(logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		state:  NewState(),
		subs:   make(map[int]func(prev, next *State)),
		logger: logger,
	}
}

// State returns the current snapshot.
func (d *Dispatcher) State() *State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// Dispatch applies actions in order as one atomic step and returns the
// resulting state.
func (d *Dispatcher) Dispatch(actions ...Action) *State {
	d.mu.Lock()
	defer d.mu.Unlock()

	prev := d.state
	next := prev
	for _, a := range actions {
		next = Reduce(next, a, d.logger)
	}
	d.commit(prev, next)
	return next
}

// Begin marks key as in flight unless it already is. It reports whether the
// caller now owns the request.
func (d *Dispatcher) Begin(key RequestKey) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.state.Requests.InFlight(key) {
		return false
	}
	prev := d.state
	d.commit(prev, Reduce(prev, RequestStarted{Key: key}, d.logger))
	return true
}

// Subscribe registers fn to be called after every state change. fn runs
// while the dispatcher is locked and must not dispatch.
func (d *Dispatcher) Subscribe(fn func(prev, next *State)) (unsubscribe func()) {
	d.mu.Lock()
	defer d.mu.Unlock()

	id := d.nextID
	d.nextID++
	d.subs[id] = fn
	return func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		delete(d.subs, id)
	}
}

func (d *Dispatcher) commit(prev, next *State) {
	if next == prev {
		return
	}
	d.state = next
	for _, fn := range d.subs {
		fn(prev, next)
	}
}
