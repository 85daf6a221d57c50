package domain_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/samirrijal/superres/internal/core/domain"
)

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want domain.ErrorKind
	}{
		{"nil", nil, domain.ErrorKindNone},
		{"unavailable", domain.ErrCapabilityUnavailable, domain.ErrorKindCapabilityUnavailable},
		{"wrapped unavailable", fmt.Errorf("run: %w", domain.ErrCapabilityUnavailable), domain.ErrorKindCapabilityUnavailable},
		{"execution", &domain.ExecutionError{Message: "no scenes"}, domain.ErrorKindExecutionFailed},
		{"wrapped execution", fmt.Errorf("run: %w", &domain.ExecutionError{Message: "oom"}), domain.ErrorKindExecutionFailed},
		{"io", errors.New("permission denied"), domain.ErrorKindIOFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := domain.ClassifyError(tt.err); got != tt.want {
				t.Errorf("ClassifyError() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestExecutionError_Message(t *testing.T) {
	err := &domain.ExecutionError{Message: "no cloud-free scene"}
	if err.Error() != "super-resolution failed: no cloud-free scene" {
		t.Errorf("unexpected message: %s", err.Error())
	}

	cause := errors.New("exit status 1")
	err = &domain.ExecutionError{Err: cause}
	if !errors.Is(err, cause) {
		t.Error("expected ExecutionError to unwrap to its cause")
	}
}

func TestStageProgress(t *testing.T) {
	stages := []domain.Stage{
		domain.StageInitializing, domain.StageFetching, domain.StageInferring,
		domain.StageCollecting, domain.StageComplete,
	}
	prev := 0
	for _, s := range stages {
		if p := s.Progress(); p <= prev {
			t.Errorf("stage %s progress %d not above %d", s, p, prev)
		} else {
			prev = p
		}
	}
	if domain.StageComplete.Progress() != 100 {
		t.Error("complete must report 100")
	}
}
