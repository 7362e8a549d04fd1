package api

import (
	"net/http"
	"time"

	"go.uber.org/zap"
)

// RequestIDHeader carries the per-request correlation id.
const RequestIDHeader = "X-Request-Id"

type loggingTransport struct {
	next http.RoundTripper
	log  *zap.Logger
}

// LoggingTransport wraps next with structured request logging. Only request
// metadata is logged, never bodies or headers with credentials.
func LoggingTransport(next http.RoundTripper, log *zap.Logger) http.RoundTripper {
	if next == nil {
		next = http.DefaultTransport
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &loggingTransport{next: next, log: log}
}

func (t *loggingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()
	resp, err := t.next.RoundTrip(req)

	fields := []zap.Field{
		zap.String("method", req.Method),
		zap.String("path", req.URL.Path),
		zap.Duration("dur", time.Since(start)),
		zap.String("request_id", req.Header.Get(RequestIDHeader)),
	}
	if err != nil {
		t.log.Warn("api", append(fields, zap.Error(err))...)
		return nil, err
	}
	fields = append(fields, zap.Int("status", resp.StatusCode))
	if resp.StatusCode >= 500 {
		t.log.Warn("api", fields...)
	} else {
		t.log.Debug("api", fields...)
	}
	return resp, nil
}
