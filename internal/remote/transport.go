package remote

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// newTransport wraps next with request-ID tagging and request logging.
func newTransport(next http.RoundTripper, logger *slog.Logger) http.RoundTripper {
	if logger == nil {
		logger = slog.Default()
	}
	return &requestIDTransport{next: &loggingTransport{next: next, logger: logger}}
}

// requestIDTransport tags each outbound request with a fresh X-Request-ID.
type requestIDTransport struct {
	next http.RoundTripper
}

func (t *requestIDTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.Header.Set("X-Request-ID", uuid.New().String())
	return t.next.RoundTrip(req)
}

// loggingTransport logs request method, path, status, and latency.
type loggingTransport struct {
	next   http.RoundTripper
	logger *slog.Logger
}

func (t *loggingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()
	resp, err := t.next.RoundTrip(req)

	attrs := []any{
		"method", req.Method,
		"path", req.URL.Path,
		"latency_ms", time.Since(start).Milliseconds(),
		"request_id", req.Header.Get("X-Request-ID"),
	}
	if err != nil {
		t.logger.Debug("request failed", append(attrs, "error", err)...)
		return nil, err
	}
	t.logger.Debug("request", append(attrs, "status", resp.StatusCode)...)
	return resp, nil
}
