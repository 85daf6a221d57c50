package workflows

import (
	"errors"
	"fmt"
	"testing"

	enumspb "go.temporal.io/api/enums/v1"
	"go.temporal.io/sdk/temporal"

	"github.com/samirrijal/superres/internal/core/domain"
)

func TestFailureOf(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantKind domain.ErrorKind
		wantMsg  string
	}{
		{
			name:     "capability unavailable keeps plain message",
			err:      fmt.Errorf("activity: %w", temporal.NewNonRetryableApplicationError("s2dr3 missing", string(domain.ErrorKindCapabilityUnavailable), nil)),
			wantKind: domain.ErrorKindCapabilityUnavailable,
			wantMsg:  "s2dr3 missing",
		},
		{
			name:     "unknown application type is io_failed",
			err:      temporal.NewApplicationError("disk full", "weird"),
			wantKind: domain.ErrorKindIOFailed,
			wantMsg:  "disk full",
		},
		{
			name:     "start-to-close timeout is execution_failed",
			err:      fmt.Errorf("activity: %w", temporal.NewTimeoutError(enumspb.TIMEOUT_TYPE_START_TO_CLOSE, nil)),
			wantKind: domain.ErrorKindExecutionFailed,
			wantMsg:  "super-resolution timed out: StartToClose",
		},
		{
			name:     "plain error is io_failed",
			err:      errors.New("boom"),
			wantKind: domain.ErrorKindIOFailed,
			wantMsg:  "boom",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kind, msg := failureOf(tt.err)
			if kind != string(tt.wantKind) {
				t.Errorf("expected kind %s, got %s", tt.wantKind, kind)
			}
			if msg != tt.wantMsg {
				t.Errorf("expected message %q, got %q", tt.wantMsg, msg)
			}
		})
	}
}
