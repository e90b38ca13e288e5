// Package observability wires error reporting and tracing providers.
package observability

import (
	"context"
	"fmt"
	"time"

	"github.com/getsentry/sentry-go"

	"warden/pkg/requestcontext"
)

// InitSentry configures the global Sentry hub. An empty DSN leaves reporting
// disabled and CaptureError becomes a no-op.
func InitSentry(dsn, environment, release string) error {
	if dsn == "" {
		return nil
	}
	if err := sentry.Init(sentry.ClientOptions{
		Dsn:              dsn,
		Environment:      environment,
		Release:          release,
		AttachStacktrace: true,
	}); err != nil {
		return fmt.Errorf("init sentry: %w", err)
	}
	return nil
}

// Flush waits for buffered events to be sent.
func Flush(timeout time.Duration) {
	sentry.Flush(timeout)
}

// CaptureError reports err with request-scoped tags. Keys and values are
// added as tags, so callers pass only pseudonymous identifiers.
func CaptureError(ctx context.Context, err error, tags map[string]string) {
	if err == nil {
		return
	}
	hub := sentry.GetHubFromContext(ctx)
	if hub == nil {
		hub = sentry.CurrentHub()
	}
	hub.WithScope(func(scope *sentry.Scope) {
		if id := requestcontext.RequestID(ctx); id != "" {
			scope.SetTag("request_id", id)
		}
		for k, v := range tags {
			scope.SetTag(k, v)
		}
		hub.CaptureException(err)
	})
}
