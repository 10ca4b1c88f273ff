// Package stream keeps the cache current from the server's event stream.
// It owns the connection state machine and the reconciliation of each
// event into the entity store.
package stream

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kilupskalvis/minard/internal/metrics"
	"github.com/kilupskalvis/minard/internal/store"
)

const (
	// DefaultConnectingGrace is how long a connect may take before the
	// CONNECTING state is surfaced.
	DefaultConnectingGrace = 3 * time.Second
	// DefaultReconnectDelay is the pause between a closed connection and
	// the next attempt.
	DefaultReconnectDelay = 5 * time.Second
)

// Credentials select the feed to subscribe to: the whole team, or a single
// deployment for unauthenticated preview viewing.
type Credentials struct {
	TeamID       string
	Token        string
	DeploymentID string
	CommitHash   string
}

// Options configures a Stream.
type Options struct {
	HTTPClient      *http.Client
	ConnectingGrace time.Duration
	ReconnectDelay  time.Duration
	Logger          *slog.Logger
}

// Stream maintains one event-stream connection at a time and reconnects
// from scratch whenever it closes.
type Stream struct {
	baseURL    string
	client     *http.Client
	grace      time.Duration
	delay      time.Duration
	store      *store.Dispatcher
	reconciler *Reconciler
	logger     *slog.Logger

	mu    sync.Mutex
	creds Credentials
	state store.ConnectionState
}

// New creates a Stream for the events endpoint under baseURL.
func New(baseURL string, dispatcher *store.Dispatcher, creds Credentials, opts Options) *Stream {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.HTTPClient == nil {
		// No client timeout: the response body stays open for the
		// lifetime of the connection.
		opts.HTTPClient = &http.Client{}
	}
	if opts.ConnectingGrace <= 0 {
		opts.ConnectingGrace = DefaultConnectingGrace
	}
	if opts.ReconnectDelay <= 0 {
		opts.ReconnectDelay = DefaultReconnectDelay
	}
	return &Stream{
		baseURL:    strings.TrimRight(baseURL, "/"),
		client:     opts.HTTPClient,
		grace:      opts.ConnectingGrace,
		delay:      opts.ReconnectDelay,
		store:      dispatcher,
		reconciler: NewReconciler(dispatcher, opts.Logger),
		logger:     opts.Logger,
		creds:      creds,
		state:      store.ConnClosed,
	}
}

// SetCredentials replaces the credentials used by the next connection.
func (s *Stream) SetCredentials(creds Credentials) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.creds = creds
}

// State returns the current connection state.
func (s *Stream) State() store.ConnectionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// URL returns the events URL for creds.
func (s *Stream) URL(creds Credentials) (string, error) {
	q := url.Values{}
	var path string
	switch {
	case creds.DeploymentID != "":
		path = "/events/deployment/" + url.PathEscape(creds.DeploymentID)
		if creds.CommitHash != "" {
			q.Set("sha", creds.CommitHash)
		}
	case creds.TeamID != "":
		path = "/events/" + url.PathEscape(creds.TeamID)
	default:
		return "", errors.New("stream credentials name neither a team nor a deployment")
	}
	if creds.Token != "" {
		q.Set("token", creds.Token)
	}
	u := s.baseURL + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	return u, nil
}

// Run connects and keeps reconnecting until ctx is cancelled. It returns
// ctx's error, or an error if the credentials cannot form a URL.
func (s *Stream) Run(ctx context.Context) error {
	for {
		s.mu.Lock()
		creds := s.creds
		s.mu.Unlock()

		target, err := s.URL(creds)
		if err != nil {
			return err
		}

		connID := uuid.New().String()
		err = s.connect(ctx, connID, target)
		s.setState(store.ConnClosed)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		s.logger.Warn("stream closed", "conn", connID, "error", err, "retry_in", s.delay)

		t := time.NewTimer(s.delay)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
		metrics.StreamReconnects.Inc()
	}
}

// connect runs one connection until the server closes it or ctx ends.
func (s *Stream) connect(ctx context.Context, connID, target string) error {
	s.setState(store.ConnInitial)
	grace := time.AfterFunc(s.grace, func() {
		s.transition(store.ConnInitial, store.ConnConnecting)
	})
	defer grace.Stop()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return fmt.Errorf("create stream request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("connect stream: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("connect stream: unexpected status %d", resp.StatusCode)
	}

	grace.Stop()
	s.setState(store.ConnOpen)
	s.logger.Info("stream open", "conn", connID)

	if err := readMessages(resp.Body, func(m message) {
		s.reconciler.HandleMessage(m.name, []byte(m.data))
	}); err != nil {
		return fmt.Errorf("read stream: %w", err)
	}
	return errors.New("stream ended by server")
}

func (s *Stream) setState(next store.ConnectionState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setStateLocked(next)
}

// transition moves to next only if the current state is from.
func (s *Stream) transition(from, next store.ConnectionState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == from {
		s.setStateLocked(next)
	}
}

func (s *Stream) setStateLocked(next store.ConnectionState) {
	if s.state == next {
		return
	}
	s.logger.Info("stream state", "from", s.state, "to", next)
	s.state = next
	s.store.Dispatch(store.SetConnection{State: next})
}
