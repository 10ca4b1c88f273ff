// Package engine loads entities into the cache on demand. Loads are
// cache-or-fetch, deduplicated per (type, id), and followed by a background
// pass that fetches the direct relations a view is about to need.
package engine

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/kilupskalvis/minard/internal/models"
	"github.com/kilupskalvis/minard/internal/remote"
	"github.com/kilupskalvis/minard/internal/store"
)

// DefaultPageSize is the number of commits or activity items requested per
// page when the caller does not choose.
const DefaultPageSize = 10

// maxParallelFetches bounds the fan-out of a single ensure pass.
const maxParallelFetches = 8

// ErrRequestInFlight is returned by mutations when the same request is
// already outstanding.
var ErrRequestInFlight = errors.New("request already in flight")

// Streamer is a long-running event feed started by Init.
type Streamer interface {
	Run(ctx context.Context) error
}

// TokenSetter is implemented by clients that accept an auth token.
type TokenSetter interface {
	SetToken(token string)
}

// Options configures an Engine.
type Options struct {
	PageSize int
	Logger   *slog.Logger

	// OnUnauthorized is called when a request fails with an
	// authentication error, e.g. to send the user back to login.
	OnUnauthorized func(*models.FetchError)
}

// Engine is the synchronisation context: it owns no state besides the
// dispatcher it writes to and the tasks it has started.
type Engine struct {
	client         remote.Client
	store          *store.Dispatcher
	logger         *slog.Logger
	pageSize       int
	onUnauthorized func(*models.FetchError)

	// tasks tracks loads and background ensure passes.
	tasks sync.WaitGroup

	mu           sync.Mutex
	streamCancel context.CancelFunc
	streamDone   chan struct{}
}

// New creates an Engine writing to dispatcher.
func New(client remote.Client, dispatcher *store.Dispatcher, opts Options) *Engine {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.PageSize <= 0 {
		opts.PageSize = DefaultPageSize
	}
	return &Engine{
		client:         client,
		store:          dispatcher,
		logger:         opts.Logger,
		pageSize:       opts.PageSize,
		onUnauthorized: opts.OnUnauthorized,
	}
}

// Store returns the dispatcher the engine writes to.
func (e *Engine) Store() *store.Dispatcher {
	return e.store
}

// Init configures the auth token and starts the streaming feed, if any.
// Calling Init on an initialised engine restarts the stream.
func (e *Engine) Init(ctx context.Context, token string, stream Streamer) {
	if ts, ok := e.client.(TokenSetter); ok {
		ts.SetToken(token)
	}

	e.stopStream()
	if stream == nil {
		return
	}

	streamCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	e.mu.Lock()
	e.streamCancel = cancel
	e.streamDone = done
	e.mu.Unlock()

	go func() {
		defer close(done)
		if err := stream.Run(streamCtx); err != nil && !errors.Is(err, context.Canceled) {
			e.logger.Error("stream stopped", "error", err)
		}
	}()
}

// Teardown stops the stream, waits for outstanding loads and ensure passes,
// drops the auth token and clears the cache.
func (e *Engine) Teardown() {
	e.stopStream()
	e.tasks.Wait()
	if ts, ok := e.client.(TokenSetter); ok {
		ts.SetToken("")
	}
	e.store.Dispatch(store.Reset{})
	e.logger.Info("sync engine torn down")
}

// Wait blocks until every load and background ensure pass has finished.
func (e *Engine) Wait() {
	e.tasks.Wait()
}

func (e *Engine) stopStream() {
	e.mu.Lock()
	cancel, done := e.streamCancel, e.streamDone
	e.streamCancel, e.streamDone = nil, nil
	e.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
}

// background runs fn without blocking the caller. The context is detached
// from the caller's cancellation: started fetches always complete.
func (e *Engine) background(ctx context.Context, fn func(ctx context.Context)) {
	e.tasks.Add(1)
	go func() {
		defer e.tasks.Done()
		fn(context.WithoutCancel(ctx))
	}()
}

// track registers a foreground operation so Teardown waits for it.
func (e *Engine) track() func() {
	e.tasks.Add(1)
	return e.tasks.Done
}
