package remote

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"net/http"
	"time"
)

// RetryConfig controls how reads are retried after transient failures.
type RetryConfig struct {
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	JitterFraction float64 // 0.0 to 1.0
	Logger         *slog.Logger
}

// DefaultRetryConfig returns the retry policy used by the CLI.
func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxRetries:     3,
		InitialBackoff: 250 * time.Millisecond,
		MaxBackoff:     5 * time.Second,
		JitterFraction: 0.25,
	}
}

// RetryClient wraps a Client and retries GETs that failed with a 5xx, a 429
// or a network error. Mutations and rejected credentials are never retried.
type RetryClient struct {
	inner  Client
	config RetryConfig
	logger *slog.Logger
}

// NewRetryClient creates a RetryClient that wraps the given Client.
func NewRetryClient(inner Client, cfg *RetryConfig) *RetryClient {
	if cfg == nil {
		cfg = DefaultRetryConfig()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &RetryClient{inner: inner, config: *cfg, logger: logger}
}

func retryable(err error) bool {
	var re *RemoteError
	switch {
	case errors.As(err, &re):
		return !re.Unauthorized && (re.Status >= http.StatusInternalServerError || re.Status == http.StatusTooManyRequests)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return false
	default:
		return true
	}
}

// delay returns the wait before retry number attempt (zero-based).
func (rc *RetryClient) delay(attempt int) time.Duration {
	d := rc.config.InitialBackoff
	for i := 0; i < attempt && d < rc.config.MaxBackoff; i++ {
		d *= 2
	}
	d = min(d, rc.config.MaxBackoff)
	spread := float64(d) * rc.config.JitterFraction
	return max(d+time.Duration(spread*(2*rand.Float64()-1)), 0)
}

// read calls fn until it succeeds, fails permanently or runs out of retries.
func (rc *RetryClient) read(ctx context.Context, op string, fn func() (*Document, error)) (*Document, error) {
	for attempt := 0; ; attempt++ {
		doc, err := fn()
		if err == nil || !retryable(err) {
			return doc, err
		}
		if attempt >= rc.config.MaxRetries {
			return nil, fmt.Errorf("%s: giving up after %d attempts: %w", op, attempt+1, err)
		}

		wait := rc.delay(attempt)
		rc.logger.Debug("retrying request", "op", op, "attempt", attempt+1, "wait", wait, "error", err)
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, fmt.Errorf("%s: %w", op, err)
		case <-timer.C:
		}
	}
}

func (rc *RetryClient) GetProject(ctx context.Context, id string) (*Document, error) {
	return rc.read(ctx, "get project", func() (*Document, error) { return rc.inner.GetProject(ctx, id) })
}

func (rc *RetryClient) ListProjects(ctx context.Context, teamID string) (*Document, error) {
	return rc.read(ctx, "list projects", func() (*Document, error) { return rc.inner.ListProjects(ctx, teamID) })
}

func (rc *RetryClient) GetBranch(ctx context.Context, id string) (*Document, error) {
	return rc.read(ctx, "get branch", func() (*Document, error) { return rc.inner.GetBranch(ctx, id) })
}

func (rc *RetryClient) ListBranches(ctx context.Context, projectID string) (*Document, error) {
	return rc.read(ctx, "list branches", func() (*Document, error) { return rc.inner.ListBranches(ctx, projectID) })
}

func (rc *RetryClient) GetCommit(ctx context.Context, id string) (*Document, error) {
	return rc.read(ctx, "get commit", func() (*Document, error) { return rc.inner.GetCommit(ctx, id) })
}

func (rc *RetryClient) ListCommits(ctx context.Context, branchID string, page Page) (*Document, error) {
	return rc.read(ctx, "list commits", func() (*Document, error) { return rc.inner.ListCommits(ctx, branchID, page) })
}

func (rc *RetryClient) GetDeployment(ctx context.Context, id string) (*Document, error) {
	return rc.read(ctx, "get deployment", func() (*Document, error) { return rc.inner.GetDeployment(ctx, id) })
}

func (rc *RetryClient) ListComments(ctx context.Context, deploymentID string) (*Document, error) {
	return rc.read(ctx, "list comments", func() (*Document, error) { return rc.inner.ListComments(ctx, deploymentID) })
}

func (rc *RetryClient) ListActivity(ctx context.Context, teamID string, page Page) (*Document, error) {
	return rc.read(ctx, "list activity", func() (*Document, error) { return rc.inner.ListActivity(ctx, teamID, page) })
}

func (rc *RetryClient) ListProjectActivity(ctx context.Context, projectID string, page Page) (*Document, error) {
	return rc.read(ctx, "list project activity", func() (*Document, error) {
		return rc.inner.ListProjectActivity(ctx, projectID, page)
	})
}

func (rc *RetryClient) GetPreview(ctx context.Context, kind, id string) (*Document, error) {
	return rc.read(ctx, "get preview", func() (*Document, error) { return rc.inner.GetPreview(ctx, kind, id) })
}

// Mutations are NOT retried: a timed-out create may already have been applied.

func (rc *RetryClient) CreateProject(ctx context.Context, teamID string, in ProjectInput) (*Document, error) {
	return rc.inner.CreateProject(ctx, teamID, in)
}

func (rc *RetryClient) EditProject(ctx context.Context, id string, edit ProjectEdit) (*Document, error) {
	return rc.inner.EditProject(ctx, id, edit)
}

func (rc *RetryClient) DeleteProject(ctx context.Context, id string) error {
	return rc.inner.DeleteProject(ctx, id)
}

func (rc *RetryClient) AddComment(ctx context.Context, in CommentInput) (*Document, error) {
	return rc.inner.AddComment(ctx, in)
}

func (rc *RetryClient) DeleteComment(ctx context.Context, id string) error {
	return rc.inner.DeleteComment(ctx, id)
}

// SetToken forwards the token to the wrapped client when it accepts one.
func (rc *RetryClient) SetToken(token string) {
	if ts, ok := rc.inner.(interface{ SetToken(string) }); ok {
		ts.SetToken(token)
	}
}
