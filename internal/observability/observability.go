// Package observability reports fatal errors to Sentry before the worker
// server process (cmd/traincoordd) aborts. Trimmed from the teacher's
// multi-vendor Manager (Datadog/New Relic/Sentry/AWS) down to the single
// concern this module's error taxonomy needs: see DESIGN.md for why the
// other three vendors were dropped rather than force-wired.
package observability

import (
	"os"
	"time"

	"github.com/getsentry/sentry-go"
)

// Reporter wraps Sentry init/capture/flush.
type Reporter struct {
	active bool
}

// NewReporter initializes Sentry if SENTRY_DSN is set in the environment;
// otherwise CaptureFatal/CaptureMessage are no-ops, matching the teacher's
// conditional-initialization pattern.
func NewReporter(environment string) (*Reporter, error) {
	dsn := os.Getenv("SENTRY_DSN")
	if dsn == "" {
		return &Reporter{}, nil
	}
	if err := sentry.Init(sentry.ClientOptions{
		Dsn:         dsn,
		Environment: environment,
	}); err != nil {
		return nil, err
	}
	return &Reporter{active: true}, nil
}

// CaptureFatal reports a fatal error (such as a listen or accept failure
// in cmd/traincoordd) before the process aborts.
func (r *Reporter) CaptureFatal(err error) {
	if r.active && err != nil {
		sentry.CaptureException(err)
		sentry.Flush(2 * time.Second)
	}
}

// CaptureMessage reports a non-fatal operational event worth surfacing.
func (r *Reporter) CaptureMessage(msg string) {
	if r.active {
		sentry.CaptureMessage(msg)
	}
}
