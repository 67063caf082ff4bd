package observability

import (
	"errors"
	"testing"
)

func TestNewReporterIsNoopWithoutDSN(t *testing.T) {
	t.Setenv("SENTRY_DSN", "")

	r, err := NewReporter("test")
	if err != nil {
		t.Fatalf("NewReporter: %v", err)
	}
	if r.active {
		t.Fatalf("reporter should be inactive without SENTRY_DSN set")
	}

	// Must not panic even though no Sentry client was initialized.
	r.CaptureFatal(errors.New("boom"))
	r.CaptureMessage("hello")
}

func TestCaptureFatalIgnoresNilError(t *testing.T) {
	t.Setenv("SENTRY_DSN", "")
	r, err := NewReporter("test")
	if err != nil {
		t.Fatalf("NewReporter: %v", err)
	}
	r.CaptureFatal(nil)
}
